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

// CreateProject implements create_project (§4.3 create_X, §4.5 Create):
// require_no_relations against the new id, CS-insert, then write the
// owner/parent/child authorization edges.
func (s *Service) CreateProject(ctx context.Context, actor authz.Actor, id, name string) (catalogstore.Project, error) {
	allowed, err := s.AZ.IsAllowedOnServer(ctx, actor, relationschema.ServerCreateProject)
	if err != nil {
		return catalogstore.Project{}, err
	}
	if !allowed {
		return catalogstore.Project{}, catalogerr.NewForbidden(relationschema.ServerCreateProject.Name, s.AZ.ServerObject())
	}

	if err := s.AZ.RequireNoRelations(ctx, relationschema.KindProject, id, relationstore.MinimizeLatency); err != nil {
		return catalogstore.Project{}, err
	}

	p := catalogstore.Project{ID: id, Name: name, CreatedAt: time.Now()}
	tx, err := s.CS.BeginWrite(ctx)
	if err != nil {
		return catalogstore.Project{}, err
	}
	defer tx.Rollback()

	if err := tx.CreateProject(ctx, p); err != nil {
		return catalogstore.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return catalogstore.Project{}, err
	}

	ownerID := ""
	if actor.Kind == authz.ActorPrincipal {
		ownerID = actor.UserID
	}
	if err := s.AZ.CreateRelations(ctx, relationschema.KindProject, id, relationschema.KindServer, s.AZ.ServerID(), ownerID); err != nil {
		s.log.ErrorContext(ctx, "lifecycle: project graph edges failed", slog.String("project_id", id), slog.Any("error", err))
	}

	s.emit(ctx, eventbus.Event{Kind: eventbus.EventProjectCreated, ActorID: ownerID, ProjectID: id, OccurredAt: time.Now()})
	return p, nil
}

// GetProject implements require_project_action(GetMetadata) (§4.3, §8
// property 2): hidden and missing are indistinguishable.
func (s *Service) GetProject(ctx context.Context, actor authz.Actor, id string) (catalogstore.Project, error) {
	return authz.RequireAction(ctx, s.AZ, actor, relationschema.KindProject, id, relationschema.ProjectGetMetadata,
		func(ctx context.Context) (catalogstore.Project, bool, error) { return s.CS.GetProjectByID(ctx, id) })
}

// RenameProject implements rename_project (§4.5 Rename): name uniqueness
// is enforced by the store's collation; no graph mutation.
func (s *Service) RenameProject(ctx context.Context, actor authz.Actor, id, newName string) (catalogstore.Project, error) {
	if _, err := authz.RequireAction(ctx, s.AZ, actor, relationschema.KindProject, id, relationschema.ProjectRename,
		func(ctx context.Context) (catalogstore.Project, bool, error) { return s.CS.GetProjectByID(ctx, id) }); err != nil {
		return catalogstore.Project{}, err
	}

	tx, err := s.CS.BeginWrite(ctx)
	if err != nil {
		return catalogstore.Project{}, err
	}
	defer tx.Rollback()
	if err := tx.RenameProject(ctx, id, newName); err != nil {
		return catalogstore.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return catalogstore.Project{}, err
	}
	renamed, _, err := s.CS.GetProjectByID(ctx, id)
	return renamed, err
}

// DeleteProject implements delete_project (§4.5 Delete). A project has no
// delete-profile concept of its own: it requires every child warehouse
// already gone, the way catalogstore's own fixtures exercise
// DeleteProjectChildren.
func (s *Service) DeleteProject(ctx context.Context, actor authz.Actor, id string) error {
	if _, err := authz.RequireAction(ctx, s.AZ, actor, relationschema.KindProject, id, relationschema.ProjectDelete,
		func(ctx context.Context) (catalogstore.Project, bool, error) { return s.CS.GetProjectByID(ctx, id) }); err != nil {
		return err
	}

	tx, err := s.CS.BeginWrite(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	children, err := tx.DeleteProjectChildren(ctx, id)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return catalogerr.NewConflict("project", "ProjectHasWarehouses")
	}
	if err := tx.DeleteProject(ctx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if err := s.AZ.DeleteRelations(ctx, relationschema.KindProject, id); err != nil {
		s.log.WarnContext(ctx, "lifecycle: best-effort project graph delete failed", slog.String("project_id", id), slog.Any("error", err))
	}
	s.emit(ctx, eventbus.Event{Kind: eventbus.EventProjectDeleted, ProjectID: id, OccurredAt: time.Now()})
	return nil
}

// ListProjects implements list_projects (§4.3/§4.5): the blanket-grant
// shortcut returns every project straight from the store; otherwise the
// visible id set masks a paginated CS listing.
func (s *Service) ListProjects(ctx context.Context, actor authz.Actor, pageSize int, token string) ([]catalogstore.Project, string, error) {
	vis, err := s.AZ.ListProjects(ctx, actor)
	if err != nil {
		return nil, "", err
	}
	size := s.pageSize(pageSize)
	if vis.All {
		return s.CS.ListProjectsPage(ctx, nil, size, token)
	}
	if len(vis.Projects) == 0 {
		return nil, "", nil
	}
	return s.CS.ListProjectsPage(ctx, vis.Projects, size, token)
}
