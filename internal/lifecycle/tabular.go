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

// tabularActionKind picks the relationschema kind and create-action matching a
// catalogstore.TabularKind.
func tabularActionKind(kind catalogstore.TabularKind) (relationschema.Kind, relationschema.Action) {
	if kind == catalogstore.TabularView {
		return relationschema.KindView, relationschema.NamespaceCreateView
	}
	return relationschema.KindTable, relationschema.NamespaceCreateTable
}

// CreateTabular implements create_table/create_view (§4.5 Create): a
// staged table carries no metadata location until CommitTabular.
func (s *Service) CreateTabular(ctx context.Context, actor authz.Actor, id, namespaceID, name string, kind catalogstore.TabularKind, metadataLocation string) (catalogstore.Tabular, error) {
	entityKind, createAction := tabularActionKind(kind)
	ns, err := authz.RequireAction(ctx, s.AZ, actor, relationschema.KindNamespace, namespaceID, createAction,
		func(ctx context.Context) (catalogstore.Namespace, bool, error) { return s.CS.GetNamespaceByID(ctx, namespaceID) })
	if err != nil {
		return catalogstore.Tabular{}, err
	}
	if err := s.AZ.RequireNoRelations(ctx, entityKind, id, relationstore.MinimizeLatency); err != nil {
		return catalogstore.Tabular{}, err
	}

	tab := catalogstore.Tabular{ID: id, WarehouseID: ns.WarehouseID, NamespaceID: namespaceID, Kind: kind, Name: name, MetadataLocation: metadataLocation, CreatedAt: time.Now()}

	tx, err := s.CS.BeginWrite(ctx)
	if err != nil {
		return catalogstore.Tabular{}, err
	}
	defer tx.Rollback()
	if metadataLocation != "" && kind == catalogstore.TabularTable {
		conflict, err := tx.LocationConflicts(ctx, ns.WarehouseID, metadataLocation)
		if err != nil {
			return catalogstore.Tabular{}, err
		}
		if conflict {
			return catalogstore.Tabular{}, catalogerr.NewConflict("tabular", "LocationConflict")
		}
	}
	if err := tx.CreateTabular(ctx, tab); err != nil {
		return catalogstore.Tabular{}, err
	}
	if err := tx.Commit(); err != nil {
		return catalogstore.Tabular{}, err
	}

	ownerID := ""
	if actor.Kind == authz.ActorPrincipal {
		ownerID = actor.UserID
	}
	if err := s.AZ.CreateRelations(ctx, entityKind, id, relationschema.KindNamespace, namespaceID, ownerID); err != nil {
		s.log.ErrorContext(ctx, "lifecycle: tabular graph edges failed", slog.String("tabular_id", id), slog.Any("error", err))
	}
	eventKind := eventbus.EventTableCreated
	if kind == catalogstore.TabularView {
		eventKind = eventbus.EventViewCreated
	}
	s.emit(ctx, eventbus.Event{Kind: eventKind, ActorID: ownerID, WarehouseID: ns.WarehouseID, ObjectID: id, OccurredAt: time.Now()})
	return tab, nil
}

// GetTabular implements require_tabular_action(GetMetadata).
func (s *Service) GetTabular(ctx context.Context, actor authz.Actor, id string) (catalogstore.Tabular, error) {
	return authz.RequireAction(ctx, s.AZ, actor, relationschema.KindTable, id, relationschema.TabularGetMetadata,
		func(ctx context.Context) (catalogstore.Tabular, bool, error) { return s.CS.GetTabularByID(ctx, id) })
}

// RenameTabular implements rename_table/rename_view (§4.5 Rename, S6): the
// store's case-insensitive per-namespace uniqueness index is the sole
// arbiter of conflicts.
func (s *Service) RenameTabular(ctx context.Context, actor authz.Actor, id, newNamespaceID, newName string) (catalogstore.Tabular, error) {
	if _, err := authz.RequireAction(ctx, s.AZ, actor, relationschema.KindTable, id, relationschema.TabularRename,
		func(ctx context.Context) (catalogstore.Tabular, bool, error) { return s.CS.GetTabularByID(ctx, id) }); err != nil {
		return catalogstore.Tabular{}, err
	}
	tx, err := s.CS.BeginWrite(ctx)
	if err != nil {
		return catalogstore.Tabular{}, err
	}
	defer tx.Rollback()
	if err := tx.RenameTabular(ctx, id, newNamespaceID, newName); err != nil {
		return catalogstore.Tabular{}, err
	}
	if err := tx.Commit(); err != nil {
		return catalogstore.Tabular{}, err
	}
	renamed, _, err := s.CS.GetTabularByID(ctx, id)
	return renamed, err
}

// CommitTabular implements commit_table (§4.5, §4.6 optimistic
// concurrency): requiredMetadataLocation empty means unconditional write
// (the staged-table first commit).
func (s *Service) CommitTabular(ctx context.Context, actor authz.Actor, id, metadataLocation, requiredMetadataLocation string) error {
	if _, err := authz.RequireAction(ctx, s.AZ, actor, relationschema.KindTable, id, relationschema.TabularCommit,
		func(ctx context.Context) (catalogstore.Tabular, bool, error) { return s.CS.GetTabularByID(ctx, id) }); err != nil {
		return err
	}
	tx, err := s.CS.BeginWrite(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := tx.CommitTabular(ctx, id, metadataLocation, requiredMetadataLocation); err != nil {
		return err
	}
	return tx.Commit()
}

// ProtectTabular flips the protected bit, no graph mutation.
func (s *Service) ProtectTabular(ctx context.Context, actor authz.Actor, id string, protected bool) error {
	if _, err := authz.RequireAction(ctx, s.AZ, actor, relationschema.KindTable, id, relationschema.TabularGetMetadata,
		func(ctx context.Context) (catalogstore.Tabular, bool, error) { return s.CS.GetTabularByID(ctx, id) }); err != nil {
		return err
	}
	tx, err := s.CS.BeginWrite(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := tx.SetTabularProtected(ctx, id, protected); err != nil {
		return err
	}
	return tx.Commit()
}

// DropTabular implements drop_table/drop_view (§4.5 Delete): a single
// tabular's soft/hard/force/purge decision, sharing dropOneTabular with
// DropNamespace's cascading path.
func (s *Service) DropTabular(ctx context.Context, actor authz.Actor, id string, force, purge bool) error {
	tab, err := authz.RequireAction(ctx, s.AZ, actor, relationschema.KindTable, id, relationschema.TabularDrop,
		func(ctx context.Context) (catalogstore.Tabular, bool, error) { return s.CS.GetTabularByID(ctx, id) })
	if err != nil {
		return err
	}
	if tab.Protected && !force {
		return catalogerr.ErrProtectedDeletion
	}
	wh, found, err := s.CS.GetWarehouseByID(ctx, tab.WarehouseID)
	if err != nil {
		return err
	}
	if !found {
		return catalogerr.NewNotFound("warehouse", tab.WarehouseID)
	}

	tx, err := s.CS.BeginWrite(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := s.dropOneTabular(ctx, tx, wh, tab, force, purge); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	eventKind := eventbus.EventTableDropped
	entityKind := relationschema.KindTable
	if tab.Kind == catalogstore.TabularView {
		eventKind = eventbus.EventViewDropped
		entityKind = relationschema.KindView
	}
	if force || wh.DeleteProfile == catalogstore.DeleteProfileHard {
		if err := s.AZ.DeleteRelations(ctx, entityKind, id); err != nil {
			s.log.WarnContext(ctx, "lifecycle: best-effort tabular graph delete failed", slog.String("tabular_id", id), slog.Any("error", err))
		}
	}
	s.emit(ctx, eventbus.Event{Kind: eventKind, WarehouseID: tab.WarehouseID, ObjectID: id, OccurredAt: time.Now()})
	return nil
}

// UndropTabular implements undrop_table/undrop_view (§4.5 Undrop, S4):
// clears deleted_at and best-effort cancels the pending tabular_expiration
// task; a missing task is not itself an error (§9: the purge race is
// accepted, not guarded against here).
func (s *Service) UndropTabular(ctx context.Context, actor authz.Actor, id string) error {
	tab, found, err := s.CS.GetTabularByID(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return catalogerr.NewNotFound("table", id)
	}
	allowed, err := s.AZ.IsAllowed(ctx, actor, relationschema.KindTable, id, relationschema.TabularUndrop)
	if err != nil {
		return err
	}
	if !allowed {
		return catalogerr.NewForbidden(relationschema.TabularUndrop.Name, id)
	}

	tx, err := s.CS.BeginWrite(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := tx.UndeleteTabular(ctx, id); err != nil {
		return err
	}
	tq := s.TQ.WithTx(tx.Raw())
	entries, _, err := tq.List(ctx, taskqueue.ListFilter{WarehouseID: tab.WarehouseID, QueueName: QueueTabularExpiration, EntityID: id, Status: "scheduled"})
	if err != nil {
		return err
	}
	for _, e := range entries {
		if cerr := tq.Cancel(ctx, e.ID); cerr != nil {
			s.log.WarnContext(ctx, "lifecycle: best-effort expiration task cancel failed", slog.String("task_id", e.ID), slog.Any("error", cerr))
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	eventKind := eventbus.EventTableUndropped
	if tab.Kind == catalogstore.TabularView {
		eventKind = eventbus.EventViewUndropped
	}
	s.emit(ctx, eventbus.Event{Kind: eventKind, WarehouseID: tab.WarehouseID, ObjectID: id, OccurredAt: time.Now()})
	return nil
}

// dropOneTabular applies the per-tabular leg of §4.5's Delete rules within
// tx: hard-delete (force, or the warehouse's own hard profile) cancels any
// pending expiration task and optionally schedules a purge; soft-delete
// marks deleted_at and schedules the matching expiration task. It returns
// the id of any expiration task it cancelled, for caller bookkeeping.
func (s *Service) dropOneTabular(ctx context.Context, tx *catalogstore.Tx, wh catalogstore.Warehouse, tab catalogstore.Tabular, force, purge bool) (cancelledTaskID string, err error) {
	tq := s.TQ.WithTx(tx.Raw())
	hard := force || wh.DeleteProfile == catalogstore.DeleteProfileHard

	if hard {
		entries, _, err := tq.List(ctx, taskqueue.ListFilter{WarehouseID: wh.ID, QueueName: QueueTabularExpiration, EntityID: tab.ID, Status: "scheduled"})
		if err != nil {
			return "", err
		}
		for _, e := range entries {
			if err := tq.Cancel(ctx, e.ID); err != nil {
				return "", err
			}
			cancelledTaskID = e.ID
		}
		if purge {
			nameParts := []string{tab.Name}
			entityKind := taskqueue.EntityTable
			if tab.Kind == catalogstore.TabularView {
				entityKind = taskqueue.EntityView
			}
			if _, err := tq.Schedule(ctx, taskqueue.Task{
				QueueName: QueueTabularPurge,
				Entity:    taskqueue.TabularEntity(entityKind, wh.ProjectID, wh.ID, tab.ID, nameParts),
			}); err != nil {
				return "", err
			}
		}
		if err := tx.DeleteTabular(ctx, tab.ID, ""); err != nil {
			return "", err
		}
		return cancelledTaskID, nil
	}

	now := time.Now()
	if err := tx.SoftDeleteTabular(ctx, tab.ID, now.Format(time.RFC3339Nano), ""); err != nil {
		return "", err
	}
	nameParts := []string{tab.Name}
	entityKind := taskqueue.EntityTable
	if tab.Kind == catalogstore.TabularView {
		entityKind = taskqueue.EntityView
	}
	if _, err := tq.Schedule(ctx, taskqueue.Task{
		QueueName:    QueueTabularExpiration,
		ScheduledFor: now.Add(time.Duration(wh.SoftDeleteSeconds) * time.Second),
		Entity:       taskqueue.TabularEntity(entityKind, wh.ProjectID, wh.ID, tab.ID, nameParts),
	}); err != nil {
		return "", err
	}
	return "", nil
}

// ListTabulars implements list_tables/list_views (§4.5 pagination).
func (s *Service) ListTabulars(ctx context.Context, actor authz.Actor, namespaceID string, kind catalogstore.TabularKind, pageSize int, token string) ([]catalogstore.Tabular, string, error) {
	entityKind, _ := tabularActionKind(kind)
	action := relationschema.TabularIncludeInList
	size := s.pageSize(pageSize)
	return filteredPage(ctx, s.AZ, actor, entityKind, action,
		func(t catalogstore.Tabular) string { return t.ID }, size, token,
		func(ctx context.Context, tok string, batch int) ([]catalogstore.Tabular, string, error) {
			return s.CS.ListTabularsPage(ctx, namespaceID, kind, nil, batch, tok)
		})
}

// ListSoftDeletedTabulars implements list_soft_deleted_tabulars (§4.6):
// paginated directly (no visibility filter — the underlying store call is
// already warehouse-scoped and this listing is an operator-facing view).
func (s *Service) ListSoftDeletedTabulars(ctx context.Context, actor authz.Actor, warehouseID string, pageSize int, token string) ([]catalogstore.SoftDeletedTabular, string, error) {
	if _, err := authz.RequireAction(ctx, s.AZ, actor, relationschema.KindWarehouse, warehouseID, relationschema.WarehouseGetMetadata,
		func(ctx context.Context) (catalogstore.Warehouse, bool, error) { return s.CS.GetWarehouseByID(ctx, warehouseID) }); err != nil {
		return nil, "", err
	}
	return s.CS.ListSoftDeletedTabulars(ctx, warehouseID, s.pageSize(pageSize), token)
}

// SearchTabulars implements search_tabulars (§4.6): results are filtered
// to what actor may see via a batched vec check, same as any other
// listing.
func (s *Service) SearchTabulars(ctx context.Context, actor authz.Actor, warehouseID, query string) ([]catalogstore.Tabular, error) {
	rows, err := s.CS.SearchTabulars(ctx, warehouseID, query)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	byKind := map[catalogstore.TabularKind][]catalogstore.Tabular{}
	for _, r := range rows {
		byKind[r.Kind] = append(byKind[r.Kind], r)
	}
	var out []catalogstore.Tabular
	for kind, group := range byKind {
		entityKind, _ := tabularActionKind(kind)
		ids := make([]string, len(group))
		for i, r := range group {
			ids[i] = r.ID
		}
		allowed, err := s.AZ.AreAllowedVec(ctx, actor, entityKind, ids, relationschema.TabularIncludeInList)
		if err != nil {
			return nil, err
		}
		for _, r := range group {
			if allowed[r.ID] {
				out = append(out, r)
			}
		}
	}
	return out, nil
}
