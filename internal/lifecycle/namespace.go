package lifecycle

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/lakekeeper/catalog-authz/internal/authz"
	"github.com/lakekeeper/catalog-authz/internal/catalogerr"
	"github.com/lakekeeper/catalog-authz/internal/catalogstore"
	"github.com/lakekeeper/catalog-authz/internal/eventbus"
	"github.com/lakekeeper/catalog-authz/internal/relationschema"
	"github.com/lakekeeper/catalog-authz/internal/relationstore"
)

// validateNamespaceParts enforces §4.5's namespace-name rules: at least one
// part and no more than maxDepth parts, no empty part, no part containing
// "+" or ".", and a first part that is not reserved. Property keys are
// handled separately by sanitizeNamespaceProperties.
func validateNamespaceParts(parts []string, maxDepth int, reserved map[string]bool) error {
	if len(parts) == 0 {
		return catalogerr.NewValidation("name", "namespace must have at least one part")
	}
	if maxDepth > 0 && len(parts) > maxDepth {
		return catalogerr.NewValidation("name", "namespace exceeds maximum depth")
	}
	for _, p := range parts {
		if p == "" {
			return catalogerr.NewValidation("name", "namespace part must not be empty")
		}
		if strings.ContainsAny(p, "+.") {
			return catalogerr.NewValidation("name", "namespace part must not contain '+' or '.'")
		}
	}
	if reserved != nil && reserved[strings.ToLower(parts[0])] {
		return catalogerr.NewValidation("name", "namespace's first part is reserved")
	}
	return nil
}

// sanitizeNamespaceProperties lower-cases every key and strips the two
// derived properties a caller must never set directly (§4.5).
func sanitizeNamespaceProperties(props map[string]string) map[string]string {
	out := make(map[string]string, len(props))
	for k, v := range props {
		lk := strings.ToLower(k)
		if lk == "namespace_id" || lk == "managed_access" {
			continue
		}
		out[lk] = v
	}
	return out
}

// deriveNamespaceLocation computes and validates the location property
// (§4.5): if the caller supplied one, it must end in "/"; otherwise, when
// parentLocation is non-empty, it is parentLocation followed by the
// lowercased last name part and "/". When parentLocation is empty (always
// the case for warehouse-level namespaces, for which CreateNamespace
// passes "") no location is derived and "" is returned; the warehouse's
// storage profile and the namespace id are not used. Location is
// immutable once set.
func deriveNamespaceLocation(parts []string, explicit, parentLocation string) (string, error) {
	if explicit != "" {
		if !strings.HasSuffix(explicit, "/") {
			return "", catalogerr.NewValidation("location", "namespace location must end in '/'")
		}
		return explicit, nil
	}
	base := parentLocation
	if base == "" {
		return "", nil
	}
	return base + strings.ToLower(parts[len(parts)-1]) + "/", nil
}

// CreateNamespace implements create_namespace (§4.5 Create, plus the
// namespace-property expansion in §4 and §9's location rules).
func (s *Service) CreateNamespace(ctx context.Context, actor authz.Actor, id, warehouseID string, parentID *string, parts []string, properties map[string]string) (catalogstore.Namespace, error) {
	var parentAction relationschema.Action
	var parentKind relationschema.Kind
	var parentObjID string
	if parentID == nil {
		parentAction = relationschema.WarehouseCreateNamespace
		parentKind = relationschema.KindWarehouse
		parentObjID = warehouseID
		if _, err := authz.RequireAction(ctx, s.AZ, actor, relationschema.KindWarehouse, warehouseID, parentAction,
			func(ctx context.Context) (catalogstore.Warehouse, bool, error) { return s.CS.GetWarehouseByID(ctx, warehouseID) }); err != nil {
			return catalogstore.Namespace{}, err
		}
	} else {
		parentAction = relationschema.NamespaceCreateNamespace
		parentKind = relationschema.KindNamespace
		parentObjID = *parentID
		if _, err := authz.RequireAction(ctx, s.AZ, actor, relationschema.KindNamespace, *parentID, parentAction,
			func(ctx context.Context) (catalogstore.Namespace, bool, error) { return s.CS.GetNamespaceByID(ctx, *parentID) }); err != nil {
			return catalogstore.Namespace{}, err
		}
	}

	if err := validateNamespaceParts(parts, s.Config.MaxNamespaceDepth, s.Config.ReservedNamespaces); err != nil {
		return catalogstore.Namespace{}, err
	}
	if err := s.AZ.RequireNoRelations(ctx, relationschema.KindNamespace, id, relationstore.MinimizeLatency); err != nil {
		return catalogstore.Namespace{}, err
	}

	props := sanitizeNamespaceProperties(properties)
	parentLocation := ""
	if parentID != nil {
		parent, found, err := s.CS.GetNamespaceByID(ctx, *parentID)
		if err != nil {
			return catalogstore.Namespace{}, err
		}
		if found {
			parentLocation = parent.Properties["location"]
		}
	}
	location, err := deriveNamespaceLocation(parts, props["location"], parentLocation)
	if err != nil {
		return catalogstore.Namespace{}, err
	}
	if location != "" {
		props["location"] = location
	}

	n := catalogstore.Namespace{ID: id, WarehouseID: warehouseID, ParentNamespaceID: parentID, NameParts: parts, Properties: props, CreatedAt: time.Now()}
	tx, err := s.CS.BeginWrite(ctx)
	if err != nil {
		return catalogstore.Namespace{}, err
	}
	defer tx.Rollback()
	if err := tx.CreateNamespace(ctx, n); err != nil {
		return catalogstore.Namespace{}, err
	}
	if err := tx.Commit(); err != nil {
		return catalogstore.Namespace{}, err
	}

	ownerID := ""
	if actor.Kind == authz.ActorPrincipal {
		ownerID = actor.UserID
	}
	if err := s.AZ.CreateRelations(ctx, relationschema.KindNamespace, id, parentKind, parentObjID, ownerID); err != nil {
		s.log.ErrorContext(ctx, "lifecycle: namespace graph edges failed", slog.String("namespace_id", id), slog.Any("error", err))
	}
	s.emit(ctx, eventbus.Event{Kind: eventbus.EventNamespaceCreated, ActorID: ownerID, WarehouseID: warehouseID, ObjectID: id, Parts: parts, OccurredAt: time.Now()})
	return n, nil
}

// GetNamespace implements require_namespace_action(GetMetadata).
func (s *Service) GetNamespace(ctx context.Context, actor authz.Actor, id string) (catalogstore.Namespace, error) {
	return authz.RequireAction(ctx, s.AZ, actor, relationschema.KindNamespace, id, relationschema.NamespaceGetMetadata,
		func(ctx context.Context) (catalogstore.Namespace, bool, error) { return s.CS.GetNamespaceByID(ctx, id) })
}

// RenameNamespace implements rename_namespace (§4.5 Rename): collation
// uniqueness is enforced by the store; the caller's casing is echoed back
// in the returned row's NameParts.
func (s *Service) RenameNamespace(ctx context.Context, actor authz.Actor, id string, newParts []string, newParentID *string) (catalogstore.Namespace, error) {
	if _, err := authz.RequireAction(ctx, s.AZ, actor, relationschema.KindNamespace, id, relationschema.NamespaceRename,
		func(ctx context.Context) (catalogstore.Namespace, bool, error) { return s.CS.GetNamespaceByID(ctx, id) }); err != nil {
		return catalogstore.Namespace{}, err
	}
	if err := validateNamespaceParts(newParts, s.Config.MaxNamespaceDepth, s.Config.ReservedNamespaces); err != nil {
		return catalogstore.Namespace{}, err
	}

	tx, err := s.CS.BeginWrite(ctx)
	if err != nil {
		return catalogstore.Namespace{}, err
	}
	defer tx.Rollback()
	if err := tx.RenameNamespace(ctx, id, newParts, newParentID); err != nil {
		return catalogstore.Namespace{}, err
	}
	if err := tx.Commit(); err != nil {
		return catalogstore.Namespace{}, err
	}
	renamed, _, err := s.CS.GetNamespaceByID(ctx, id)
	return renamed, err
}

// ProtectNamespace implements protect_namespace: flips the protected bit,
// no graph mutation.
func (s *Service) ProtectNamespace(ctx context.Context, actor authz.Actor, id string, protected bool) error {
	if _, err := authz.RequireAction(ctx, s.AZ, actor, relationschema.KindNamespace, id, relationschema.NamespaceGetMetadata,
		func(ctx context.Context) (catalogstore.Namespace, bool, error) { return s.CS.GetNamespaceByID(ctx, id) }); err != nil {
		return err
	}
	tx, err := s.CS.BeginWrite(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := tx.SetNamespaceProtected(ctx, id, protected); err != nil {
		return err
	}
	return tx.Commit()
}

// DropNamespace implements delete_namespace (§4.5 Delete, S3): the shared
// cascading-delete engine also reused, one recursive namespace at a time,
// by DeleteWarehouse. Every child tabular is soft- or hard-deleted
// according to the owning warehouse's delete profile and force/purge
// flags; child namespaces either block the delete (non-recursive) or are
// processed depth-first within the same write transaction.
func (s *Service) DropNamespace(ctx context.Context, actor authz.Actor, id string, recursive, force, purge bool) error {
	ns, err := authz.RequireAction(ctx, s.AZ, actor, relationschema.KindNamespace, id, relationschema.NamespaceDelete,
		func(ctx context.Context) (catalogstore.Namespace, bool, error) { return s.CS.GetNamespaceByID(ctx, id) })
	if err != nil {
		return err
	}
	if ns.Protected && !force {
		return catalogerr.ErrProtectedDeletion
	}

	wh, found, err := s.CS.GetWarehouseByID(ctx, ns.WarehouseID)
	if err != nil {
		return err
	}
	if !found {
		return catalogerr.NewNotFound("warehouse", ns.WarehouseID)
	}

	tx, err := s.CS.BeginWrite(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var cancelled []string
	deletedNamespaceIDs, deletedTabulars, err := s.dropNamespaceTx(ctx, tx, ns, wh, recursive, force, purge, &cancelled)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	for _, tab := range deletedTabulars {
		entityKind, _ := tabularActionKind(tab.Kind)
		if err := s.AZ.DeleteRelations(ctx, entityKind, tab.ID); err != nil {
			s.log.WarnContext(ctx, "lifecycle: best-effort tabular graph delete failed", slog.String("tabular_id", tab.ID), slog.Any("error", err))
		}
	}
	for _, nsID := range deletedNamespaceIDs {
		if err := s.AZ.DeleteRelations(ctx, relationschema.KindNamespace, nsID); err != nil {
			s.log.WarnContext(ctx, "lifecycle: best-effort namespace graph delete failed", slog.String("namespace_id", nsID), slog.Any("error", err))
		}
	}
	s.emit(ctx, eventbus.Event{Kind: eventbus.EventNamespaceDeleted, WarehouseID: ns.WarehouseID, ObjectID: id, Parts: ns.NameParts, OccurredAt: time.Now()})
	return nil
}

// dropNamespaceTx deletes ns's child tabulars (via dropOneTabular) and, if
// recursive, its child namespaces depth-first, all within tx; it returns
// the ids of every namespace removed and the rows of every tabular
// removed so the caller can synchronize the authorization graph once the
// transaction commits.
func (s *Service) dropNamespaceTx(ctx context.Context, tx *catalogstore.Tx, ns catalogstore.Namespace, wh catalogstore.Warehouse, recursive, force, purge bool, cancelled *[]string) (namespaceIDs []string, tabulars []catalogstore.Tabular, err error) {
	children, err := tx.ChildNamespaces(ctx, ns.WarehouseID, &ns.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(children) > 0 && !recursive {
		return nil, nil, catalogerr.NewConflict("namespace", "NamespaceNotEmpty")
	}
	for _, child := range children {
		childNSIDs, childTabs, err := s.dropNamespaceTx(ctx, tx, child, wh, recursive, force, purge, cancelled)
		if err != nil {
			return nil, nil, err
		}
		namespaceIDs = append(namespaceIDs, childNSIDs...)
		tabulars = append(tabulars, childTabs...)
	}

	tabs, err := tx.ChildTabulars(ctx, ns.ID, "")
	if err != nil {
		return nil, nil, err
	}
	for _, tab := range tabs {
		cancelledID, err := s.dropOneTabular(ctx, tx, wh, tab, force, purge)
		if err != nil {
			return nil, nil, err
		}
		if cancelledID != "" {
			*cancelled = append(*cancelled, cancelledID)
		}
		tabulars = append(tabulars, tab)
	}

	if err := tx.DeleteNamespace(ctx, ns.ID); err != nil {
		return nil, nil, err
	}
	namespaceIDs = append(namespaceIDs, ns.ID)
	return namespaceIDs, tabulars, nil
}

// ListNamespaces implements list_namespaces (§4.5 pagination).
func (s *Service) ListNamespaces(ctx context.Context, actor authz.Actor, warehouseID string, parentID *string, pageSize int, token string) ([]catalogstore.Namespace, string, error) {
	size := s.pageSize(pageSize)
	return filteredPage(ctx, s.AZ, actor, relationschema.KindNamespace, relationschema.NamespaceIncludeInList,
		func(n catalogstore.Namespace) string { return n.ID }, size, token,
		func(ctx context.Context, tok string, batch int) ([]catalogstore.Namespace, string, error) {
			return s.CS.ListNamespacesPage(ctx, warehouseID, parentID, nil, batch, tok)
		})
}
