package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/lakekeeper/catalog-authz/internal/authz"
	"github.com/lakekeeper/catalog-authz/internal/catalogerr"
	"github.com/lakekeeper/catalog-authz/internal/catalogstore"
	"github.com/lakekeeper/catalog-authz/internal/eventbus"
	"github.com/lakekeeper/catalog-authz/internal/relationschema"
	"github.com/lakekeeper/catalog-authz/internal/relationstore"
	"github.com/lakekeeper/catalog-authz/internal/taskqueue"
)

// CreateWarehouse implements create_warehouse (§4.3/§4.5 Create).
func (s *Service) CreateWarehouse(ctx context.Context, actor authz.Actor, id, projectID, name, storageProfile, storageCredentialID string, deleteProfile catalogstore.DeleteProfile, softDeleteSeconds int64) (catalogstore.Warehouse, error) {
	if _, err := authz.RequireAction(ctx, s.AZ, actor, relationschema.KindProject, projectID, relationschema.ProjectCreateWarehouse,
		func(ctx context.Context) (catalogstore.Project, bool, error) { return s.CS.GetProjectByID(ctx, projectID) }); err != nil {
		return catalogstore.Warehouse{}, err
	}
	if err := s.AZ.RequireNoRelations(ctx, relationschema.KindWarehouse, id, relationstore.MinimizeLatency); err != nil {
		return catalogstore.Warehouse{}, err
	}

	w := catalogstore.Warehouse{
		ID: id, ProjectID: projectID, Name: name, StorageProfile: storageProfile, StorageCredentialID: storageCredentialID,
		DeleteProfile: deleteProfile, SoftDeleteSeconds: softDeleteSeconds, Status: catalogstore.WarehouseActive, CreatedAt: time.Now(),
	}

	tx, err := s.CS.BeginWrite(ctx)
	if err != nil {
		return catalogstore.Warehouse{}, err
	}
	defer tx.Rollback()
	if err := tx.CreateWarehouse(ctx, w); err != nil {
		return catalogstore.Warehouse{}, err
	}
	if err := tx.Commit(); err != nil {
		return catalogstore.Warehouse{}, err
	}

	ownerID := ""
	if actor.Kind == authz.ActorPrincipal {
		ownerID = actor.UserID
	}
	if err := s.AZ.CreateRelations(ctx, relationschema.KindWarehouse, id, relationschema.KindProject, projectID, ownerID); err != nil {
		s.log.ErrorContext(ctx, "lifecycle: warehouse graph edges failed", slog.String("warehouse_id", id), slog.Any("error", err))
	}
	s.emit(ctx, eventbus.Event{Kind: eventbus.EventWarehouseCreated, ActorID: ownerID, ProjectID: projectID, WarehouseID: id, OccurredAt: time.Now()})
	return w, nil
}

// GetWarehouse implements require_warehouse_action(GetMetadata).
func (s *Service) GetWarehouse(ctx context.Context, actor authz.Actor, id string) (catalogstore.Warehouse, error) {
	return authz.RequireAction(ctx, s.AZ, actor, relationschema.KindWarehouse, id, relationschema.WarehouseGetMetadata,
		func(ctx context.Context) (catalogstore.Warehouse, bool, error) { return s.CS.GetWarehouseByID(ctx, id) })
}

// RenameWarehouse implements rename_warehouse (§4.5 Rename).
func (s *Service) RenameWarehouse(ctx context.Context, actor authz.Actor, id, newName string) (catalogstore.Warehouse, error) {
	if _, err := authz.RequireAction(ctx, s.AZ, actor, relationschema.KindWarehouse, id, relationschema.WarehouseRename,
		func(ctx context.Context) (catalogstore.Warehouse, bool, error) { return s.CS.GetWarehouseByID(ctx, id) }); err != nil {
		return catalogstore.Warehouse{}, err
	}
	tx, err := s.CS.BeginWrite(ctx)
	if err != nil {
		return catalogstore.Warehouse{}, err
	}
	defer tx.Rollback()
	if err := tx.RenameWarehouse(ctx, id, newName); err != nil {
		return catalogstore.Warehouse{}, err
	}
	if err := tx.Commit(); err != nil {
		return catalogstore.Warehouse{}, err
	}
	w, _, err := s.CS.GetWarehouseByID(ctx, id)
	return w, err
}

// ProtectWarehouse implements protect_warehouse (§4.5 Protect): flips the
// protected bit, no graph mutation.
func (s *Service) ProtectWarehouse(ctx context.Context, actor authz.Actor, id string, protected bool) error {
	if _, err := authz.RequireAction(ctx, s.AZ, actor, relationschema.KindWarehouse, id, relationschema.WarehouseGetMetadata,
		func(ctx context.Context) (catalogstore.Warehouse, bool, error) { return s.CS.GetWarehouseByID(ctx, id) }); err != nil {
		return err
	}
	tx, err := s.CS.BeginWrite(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := tx.SetWarehouseProtected(ctx, id, protected); err != nil {
		return err
	}
	return tx.Commit()
}

// SetWarehouseActive implements activate/deactivate warehouse (§4.5):
// toggles status only, deletes nothing.
func (s *Service) SetWarehouseActive(ctx context.Context, actor authz.Actor, id string, active bool) error {
	action := relationschema.WarehouseActivate
	status := catalogstore.WarehouseActive
	kind := eventbus.EventWarehouseActivated
	if !active {
		action = relationschema.WarehouseDeactivate
		status = catalogstore.WarehouseInactive
		kind = eventbus.EventWarehouseInactive
	}
	if _, err := authz.RequireAction(ctx, s.AZ, actor, relationschema.KindWarehouse, id, action,
		func(ctx context.Context) (catalogstore.Warehouse, bool, error) { return s.CS.GetWarehouseByID(ctx, id) }); err != nil {
		return err
	}

	tx, err := s.CS.BeginWrite(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := tx.SetWarehouseStatus(ctx, id, status); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.emit(ctx, eventbus.Event{Kind: kind, WarehouseID: id, OccurredAt: time.Now()})
	return nil
}

// UpdateDeleteProfile implements the SPEC_FULL expansion
// update_delete_profile: CS-update only, no graph mutation, rejected if a
// pending tabular_expiration task would be orphaned by a soft→hard switch.
func (s *Service) UpdateDeleteProfile(ctx context.Context, actor authz.Actor, id string, profile catalogstore.DeleteProfile, softDeleteSeconds int64) error {
	wh, err := authz.RequireAction(ctx, s.AZ, actor, relationschema.KindWarehouse, id, relationschema.WarehouseGetMetadata,
		func(ctx context.Context) (catalogstore.Warehouse, bool, error) { return s.CS.GetWarehouseByID(ctx, id) })
	if err != nil {
		return err
	}

	if wh.DeleteProfile == catalogstore.DeleteProfileSoft && profile == catalogstore.DeleteProfileHard {
		entries, _, err := s.TQ.List(ctx, taskqueue.ListFilter{WarehouseID: id, QueueName: QueueTabularExpiration, Status: "scheduled"})
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			return catalogerr.NewConflict("warehouse", "PendingExpirationTasksBlockHardProfile")
		}
	}

	tx, err := s.CS.BeginWrite(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := tx.SetWarehouseDeleteProfile(ctx, id, profile, softDeleteSeconds); err != nil {
		return err
	}
	return tx.Commit()
}

// RotateWarehouseCredential implements the SPEC_FULL §4.5 expansion
// "Secrets/storage-credential rotation": mints a new credential via the
// external SecretStore, swaps the warehouse's handle to it inside the CS
// transaction, then best-effort deletes the stale secret after commit
// (§7: "deleting a stale secret after a storage-credential rotation" must
// not fail the request).
func (s *Service) RotateWarehouseCredential(ctx context.Context, actor authz.Actor, id string, newSecret []byte) error {
	wh, err := authz.RequireAction(ctx, s.AZ, actor, relationschema.KindWarehouse, id, relationschema.WarehouseUpdateStorage,
		func(ctx context.Context) (catalogstore.Warehouse, bool, error) { return s.CS.GetWarehouseByID(ctx, id) })
	if err != nil {
		return err
	}
	if s.Secrets == nil {
		return catalogerr.NewValidation("warehouse", "no secret store configured")
	}

	staleID := wh.StorageCredentialID
	var newID string
	if staleID == "" {
		newID, err = s.Secrets.Create(ctx, id, newSecret)
	} else {
		newID, err = s.Secrets.Rotate(ctx, id, staleID, newSecret)
	}
	if err != nil {
		return catalogerr.Wrap("lifecycle.RotateWarehouseCredential", err)
	}

	tx, err := s.CS.BeginWrite(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := tx.SetWarehouseCredential(ctx, id, newID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if staleID != "" {
		if err := s.Secrets.Delete(ctx, staleID); err != nil {
			s.log.WarnContext(ctx, "lifecycle: best-effort stale secret delete failed",
				slog.String("warehouse_id", id), slog.String("secret_id", staleID), slog.Any("error", err))
		}
	}
	return nil
}

// DeleteWarehouse implements delete_warehouse (§4.5 Delete). Like a
// project, a warehouse itself has no soft-delete profile; recursive is
// implemented in terms of DropNamespace, which owns the tabular-level
// soft/hard/force/purge semantics (§4.5's Delete rules are phrased
// generically and are shared by every container kind).
func (s *Service) DeleteWarehouse(ctx context.Context, actor authz.Actor, id string, recursive, force, purge bool) error {
	wh, err := authz.RequireAction(ctx, s.AZ, actor, relationschema.KindWarehouse, id, relationschema.WarehouseDelete,
		func(ctx context.Context) (catalogstore.Warehouse, bool, error) { return s.CS.GetWarehouseByID(ctx, id) })
	if err != nil {
		return err
	}
	if wh.Protected && !force {
		return catalogerr.ErrProtectedDeletion
	}

	_, rootIDs, err := s.listAllChildNamespaceIDs(ctx, id, nil)
	if err != nil {
		return err
	}
	if len(rootIDs) > 0 && !recursive {
		return catalogerr.NewConflict("warehouse", "WarehouseHasNamespaces")
	}
	for _, nsID := range rootIDs {
		if err := s.DropNamespace(ctx, actor, nsID, true, force, purge); err != nil {
			return err
		}
	}

	tx, err := s.CS.BeginWrite(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	remaining, err := tx.DeleteWarehouseChildren(ctx, id)
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		return catalogerr.NewConflict("warehouse", "WarehouseHasNamespaces")
	}
	if err := tx.DeleteWarehouse(ctx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if err := s.AZ.DeleteRelations(ctx, relationschema.KindWarehouse, id); err != nil {
		s.log.WarnContext(ctx, "lifecycle: best-effort warehouse graph delete failed", slog.String("warehouse_id", id), slog.Any("error", err))
	}
	s.emit(ctx, eventbus.Event{Kind: eventbus.EventWarehouseDeleted, ProjectID: wh.ProjectID, WarehouseID: id, OccurredAt: time.Now()})
	return nil
}

// listAllChildNamespaceIDs collects every immediate child namespace id of
// parentID (nil = warehouse-level roots) via the store's read path,
// outside any write transaction (DeleteWarehouse needs this before it
// decides whether a Conflict or a recursive cascade applies).
func (s *Service) listAllChildNamespaceIDs(ctx context.Context, warehouseID string, parentID *string) ([]catalogstore.Namespace, []string, error) {
	var all []catalogstore.Namespace
	token := ""
	for {
		page, next, err := s.CS.ListNamespacesPage(ctx, warehouseID, parentID, nil, 200, token)
		if err != nil {
			return nil, nil, err
		}
		all = append(all, page...)
		if next == "" {
			break
		}
		token = next
	}
	ids := make([]string, len(all))
	for i, n := range all {
		ids[i] = n.ID
	}
	return all, ids, nil
}

// ListWarehouses implements list_warehouses (§4.5 pagination).
func (s *Service) ListWarehouses(ctx context.Context, actor authz.Actor, projectID string, pageSize int, token string) ([]catalogstore.Warehouse, string, error) {
	size := s.pageSize(pageSize)
	return filteredPage(ctx, s.AZ, actor, relationschema.KindWarehouse, relationschema.WarehouseIncludeInList,
		func(w catalogstore.Warehouse) string { return w.ID }, size, token,
		func(ctx context.Context, tok string, batch int) ([]catalogstore.Warehouse, string, error) {
			return s.CS.ListWarehousesPage(ctx, projectID, nil, batch, tok)
		})
}
