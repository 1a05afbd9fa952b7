package authz

import (
	"context"
	"fmt"

	"github.com/lakekeeper/catalog-authz/internal/catalogerr"
	"github.com/lakekeeper/catalog-authz/internal/relationschema"
	"github.com/lakekeeper/catalog-authz/internal/relationstore"
)

// Authorizer wires the Relation Store Client to the fixed Relation Schema
// tables and exposes the per-kind authorization surface of §4.3.
type Authorizer struct {
	rsc      *relationstore.Client
	serverID string
}

// New builds an Authorizer against rsc, scoped to the deployment's
// server:<server_id> object (§6 configuration: server_id).
func New(rsc *relationstore.Client, serverID string) *Authorizer {
	return &Authorizer{rsc: rsc, serverID: serverID}
}

// ServerObject returns this deployment's server:<server_id> identifier.
func (az *Authorizer) ServerObject() string {
	return relationstore.TupleID(string(relationschema.KindServer), az.serverID)
}

// ServerID returns the bare deployment id backing ServerObject, for
// callers (the Lifecycle Service's create_project) that need it as a
// parent id rather than a fully-qualified tuple reference.
func (az *Authorizer) ServerID() string { return az.serverID }

// IsAllowedOnServer checks a server-scoped action (no object id beyond
// the deployment's own server:<server_id>), e.g. can_create_project.
func (az *Authorizer) IsAllowedOnServer(ctx context.Context, actor Actor, action relationschema.Action) (bool, error) {
	subject, err := az.CheckActor(ctx, actor)
	if err != nil {
		if _, ok := err.(*catalogerr.RoleAssumptionNotAllowedError); ok {
			return false, nil
		}
		return false, err
	}
	ok, err := az.rsc.Check(ctx, subject, string(action.ToOpenFGA()), az.ServerObject())
	if err != nil {
		return false, catalogerr.Wrap("authz.IsAllowedOnServer", err)
	}
	return ok, nil
}

// RSC exposes the underlying Relation Store Client for collaborators
// that need direct tuple access beyond the Authorizer's surface (e.g. the
// Tuple Migration Engine).
func (az *Authorizer) RSC() *relationstore.Client { return az.rsc }

// CheckActor resolves actor to the subject the tuple store should
// evaluate against, enforcing the role-assumption precondition first
// (§4.3 check-actor): a Role actor must be able to assume the role it
// claims before any further check runs.
func (az *Authorizer) CheckActor(ctx context.Context, actor Actor) (subject string, err error) {
	if actor.Kind == ActorAnonymous {
		return "", catalogerr.ErrUnauthenticated
	}
	if actor.Kind == ActorRole {
		principalSubj := "user:" + actor.UserID
		roleObj := relationstore.TupleID(string(relationschema.KindRole), actor.AssumedRole)
		allowed, cerr := az.rsc.Check(ctx, principalSubj, string(relationschema.RelCanAssume), roleObj)
		if cerr != nil {
			return "", catalogerr.Wrap("authz.CheckActor", cerr)
		}
		if !allowed {
			return "", &catalogerr.RoleAssumptionNotAllowedError{Principal: actor.UserID, AssumedRole: actor.AssumedRole}
		}
	}
	return actor.subjectID(), nil
}

// IsAllowed implements is_allowed_X_action: check(actor, action.relation, id).
func (az *Authorizer) IsAllowed(ctx context.Context, actor Actor, kind relationschema.Kind, id string, action relationschema.Action) (bool, error) {
	subject, err := az.CheckActor(ctx, actor)
	if err != nil {
		if _, ok := err.(*catalogerr.RoleAssumptionNotAllowedError); ok {
			return false, nil
		}
		return false, err
	}
	object := relationstore.TupleID(string(kind), id)
	ok, err := az.rsc.Check(ctx, subject, string(action.ToOpenFGA()), object)
	if err != nil {
		return false, catalogerr.Wrap("authz.IsAllowed", err)
	}
	return ok, nil
}

// RequireAction fuses a Catalog Store lookup with a permission check so a
// hidden entity cannot be probed for existence (§4.3 require_X_action,
// §8 property 2). load must report (entity, found, error); RequireAction
// returns a uniform NotFound when either the entity is absent or the
// actor is not allowed the action.
func RequireAction[T any](ctx context.Context, az *Authorizer, actor Actor, kind relationschema.Kind, id string, action relationschema.Action, load func(context.Context) (T, bool, error)) (T, error) {
	var zero T

	entity, found, err := load(ctx)
	if err != nil {
		return zero, fmt.Errorf("authz.RequireAction: load %s:%s: %w", kind, id, err)
	}

	allowed, err := az.IsAllowed(ctx, actor, kind, id, action)
	if err != nil {
		return zero, err
	}

	if !found || !allowed {
		return zero, catalogerr.NewNotFound(string(kind), id)
	}
	return entity, nil
}
