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
)

// CreateRole implements create_role (§4.5 expansion): it writes the role's
// parent and child edges with its project, plus an ownership edge for a
// principal creator; it has no task-queue leg at all.
func (s *Service) CreateRole(ctx context.Context, actor authz.Actor, id, projectID, name, description string, sourceID *string) (catalogstore.Role, error) {
	allowed, err := s.AZ.IsAllowed(ctx, actor, relationschema.KindProject, projectID, relationschema.ProjectCreateRole)
	if err != nil {
		return catalogstore.Role{}, err
	}
	if !allowed {
		return catalogstore.Role{}, catalogerr.NewForbidden(relationschema.ProjectCreateRole.Name, projectID)
	}
	if err := s.AZ.RequireNoRelations(ctx, relationschema.KindRole, id, relationstore.MinimizeLatency); err != nil {
		return catalogstore.Role{}, err
	}

	r := catalogstore.Role{ID: id, ProjectID: projectID, Name: name, Description: description, SourceID: sourceID, CreatedAt: time.Now()}
	tx, err := s.CS.BeginWrite(ctx)
	if err != nil {
		return catalogstore.Role{}, err
	}
	defer tx.Rollback()
	if err := tx.CreateRole(ctx, r); err != nil {
		return catalogstore.Role{}, err
	}
	if err := tx.Commit(); err != nil {
		return catalogstore.Role{}, err
	}

	ownerID := ""
	if actor.Kind == authz.ActorPrincipal {
		ownerID = actor.UserID
	}
	if err := s.AZ.CreateRelations(ctx, relationschema.KindRole, id, relationschema.KindProject, projectID, ownerID); err != nil {
		s.log.ErrorContext(ctx, "lifecycle: role graph edges failed", slog.String("role_id", id), slog.Any("error", err))
	}
	s.emit(ctx, eventbus.Event{Kind: eventbus.EventRoleCreated, ActorID: ownerID, ProjectID: projectID, ObjectID: id, OccurredAt: time.Now()})
	return r, nil
}

// GetRole implements require_role_action(GetMetadata).
func (s *Service) GetRole(ctx context.Context, actor authz.Actor, id string) (catalogstore.Role, error) {
	return authz.RequireAction(ctx, s.AZ, actor, relationschema.KindRole, id, relationschema.RoleGetMetadata,
		func(ctx context.Context) (catalogstore.Role, bool, error) { return s.CS.GetRoleByID(ctx, id) })
}

// UpdateRole implements update_role (§4.5 expansion): name/description
// only, no graph mutation.
func (s *Service) UpdateRole(ctx context.Context, actor authz.Actor, id, name, description string) (catalogstore.Role, error) {
	if _, err := authz.RequireAction(ctx, s.AZ, actor, relationschema.KindRole, id, relationschema.RoleUpdate,
		func(ctx context.Context) (catalogstore.Role, bool, error) { return s.CS.GetRoleByID(ctx, id) }); err != nil {
		return catalogstore.Role{}, err
	}
	tx, err := s.CS.BeginWrite(ctx)
	if err != nil {
		return catalogstore.Role{}, err
	}
	defer tx.Rollback()
	if err := tx.UpdateRole(ctx, id, name, description); err != nil {
		return catalogstore.Role{}, err
	}
	if err := tx.Commit(); err != nil {
		return catalogstore.Role{}, err
	}
	updated, _, err := s.CS.GetRoleByID(ctx, id)
	return updated, err
}

// DeleteRole implements delete_role (§4.5 expansion): roles have no
// soft-delete profile and no task-queue leg, so deletion is a single CS
// row removal plus a best-effort graph delete.
func (s *Service) DeleteRole(ctx context.Context, actor authz.Actor, id string) error {
	role, err := authz.RequireAction(ctx, s.AZ, actor, relationschema.KindRole, id, relationschema.RoleDelete,
		func(ctx context.Context) (catalogstore.Role, bool, error) { return s.CS.GetRoleByID(ctx, id) })
	if err != nil {
		return err
	}

	tx, err := s.CS.BeginWrite(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := tx.DeleteRole(ctx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if err := s.AZ.DeleteRelations(ctx, relationschema.KindRole, id); err != nil {
		s.log.WarnContext(ctx, "lifecycle: best-effort role graph delete failed", slog.String("role_id", id), slog.Any("error", err))
	}
	s.emit(ctx, eventbus.Event{Kind: eventbus.EventRoleDeleted, ProjectID: role.ProjectID, ObjectID: id, OccurredAt: time.Now()})
	return nil
}

// ListRoles implements list_roles (§4.5 pagination).
func (s *Service) ListRoles(ctx context.Context, actor authz.Actor, projectID string, pageSize int, token string) ([]catalogstore.Role, string, error) {
	size := s.pageSize(pageSize)
	return filteredPage(ctx, s.AZ, actor, relationschema.KindRole, relationschema.RoleIncludeInList,
		func(r catalogstore.Role) string { return r.ID }, size, token,
		func(ctx context.Context, tok string, batch int) ([]catalogstore.Role, string, error) {
			return s.CS.ListRolesPage(ctx, projectID, nil, batch, tok)
		})
}
