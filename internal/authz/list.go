package authz

import (
	"context"

	"github.com/lakekeeper/catalog-authz/internal/catalogerr"
	"github.com/lakekeeper/catalog-authz/internal/relationschema"
	"github.com/lakekeeper/catalog-authz/internal/relationstore"
)

// ProjectVisibility is the result of list-projects (§4.3): either every
// project (the actor holds the blanket grant) or an explicit set.
type ProjectVisibility struct {
	All      bool
	Projects []string
}

// ListProjects implements the list-projects algorithm of §4.3: first
// check(actor, server.can_list_all_projects, server); if true, return
// All. Otherwise list_objects(project, can_include_in_list, actor).
func (az *Authorizer) ListProjects(ctx context.Context, actor Actor) (ProjectVisibility, error) {
	subject, err := az.CheckActor(ctx, actor)
	if err != nil {
		if _, ok := err.(*catalogerr.RoleAssumptionNotAllowedError); ok {
			return ProjectVisibility{}, nil
		}
		return ProjectVisibility{}, err
	}

	all, err := az.rsc.Check(ctx, subject, string(relationschema.RelCanListAllProjects), az.ServerObject())
	if err != nil {
		return ProjectVisibility{}, catalogerr.Wrap("authz.ListProjects", err)
	}
	if all {
		return ProjectVisibility{All: true}, nil
	}

	ids, err := az.rsc.ListObjects(ctx, string(relationschema.KindProject), string(relationschema.RelCanIncludeInList), subject)
	if err != nil {
		return ProjectVisibility{}, catalogerr.Wrap("authz.ListProjects", err)
	}
	return ProjectVisibility{Projects: ids}, nil
}

// ListObjects implements the generic list_objects helper (§4.2 AZ
// surface): all object ids of kind for which action evaluates to true
// for actor. Used for kinds other than project where no "include
// everything" shortcut exists.
func (az *Authorizer) ListObjects(ctx context.Context, actor Actor, kind relationschema.Kind, action relationschema.Action) ([]string, error) {
	subject, err := az.CheckActor(ctx, actor)
	if err != nil {
		if _, ok := err.(*catalogerr.RoleAssumptionNotAllowedError); ok {
			return nil, nil
		}
		return nil, err
	}
	ids, err := az.rsc.ListObjects(ctx, string(kind), string(action.ToOpenFGA()), subject)
	if err != nil {
		return nil, catalogerr.Wrap("authz.ListObjects", err)
	}
	return ids, nil
}

// AreAllowedVec batches is_allowed checks for a slice of ids against the
// same action, backing the Lifecycle Service's paginated-listing filter
// (§4.5 are_allowed_X_actions_vec). Each check still goes through the
// RSC's semaphore individually; this only saves the caller from
// re-deriving the actor subject per id.
func (az *Authorizer) AreAllowedVec(ctx context.Context, actor Actor, kind relationschema.Kind, ids []string, action relationschema.Action) (map[string]bool, error) {
	subject, err := az.CheckActor(ctx, actor)
	if err != nil {
		if _, ok := err.(*catalogerr.RoleAssumptionNotAllowedError); ok {
			out := make(map[string]bool, len(ids))
			for _, id := range ids {
				out[id] = false
			}
			return out, nil
		}
		return nil, err
	}

	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		object := relationstore.TupleID(string(kind), id)
		ok, err := az.rsc.Check(ctx, subject, string(action.ToOpenFGA()), object)
		if err != nil {
			return nil, catalogerr.Wrap("authz.AreAllowedVec", err)
		}
		out[id] = ok
	}
	return out, nil
}
