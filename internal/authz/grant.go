package authz

import (
	"context"

	"github.com/lakekeeper/catalog-authz/internal/catalogerr"
	"github.com/lakekeeper/catalog-authz/internal/relationschema"
	"github.com/lakekeeper/catalog-authz/internal/relationstore"
)

// GranteeKind distinguishes the two shapes a direct-grant tuple's `user`
// side may take (§3.1 Direct grants, GLOSSARY Userset): a bare principal,
// or every member of a role's #assignee userset.
type GranteeKind int

const (
	GranteeUser GranteeKind = iota
	GranteeRole
)

func granteeSubject(grantee GranteeKind, id string) string {
	if grantee == GranteeRole {
		return relationstore.UsersetID(string(relationschema.KindRole), id, "assignee")
	}
	return "user:" + id
}

func isAPIRelation(kind relationschema.Kind, relation relationschema.Relation) bool {
	for _, r := range relationschema.APIRelations(kind) {
		if r == relation {
			return true
		}
	}
	return false
}

// Grant writes one direct-grant tuple (§3.1: "Direct grants ... Writable
// by operators of the API"), gated by the relation's grant_relation
// action (§4.2 GrantAction mapping). relation must be one of kind's
// APIRelations; any other relation is rejected as Validation rather than
// silently written, since hierarchical and derived relations are never
// caller-writable.
func (az *Authorizer) Grant(ctx context.Context, actor Actor, kind relationschema.Kind, objectID string, relation relationschema.Relation, grantee GranteeKind, granteeID string) error {
	if !isAPIRelation(kind, relation) {
		return catalogerr.NewValidation("relation", "not a grantable relation for "+string(kind))
	}
	action := relationschema.GrantAction(kind, relation)
	allowed, err := az.IsAllowed(ctx, actor, kind, objectID, action)
	if err != nil {
		return err
	}
	if !allowed {
		return catalogerr.NewForbidden(action.Name, objectID)
	}

	object := relationstore.TupleID(string(kind), objectID)
	tuple := relationstore.Tuple{User: granteeSubject(grantee, granteeID), Relation: string(relation), Object: object}
	if err := az.rsc.Write(ctx, []relationstore.Tuple{tuple}, nil); err != nil {
		return catalogerr.Wrapf(err, "authz.Grant %s", object)
	}
	return nil
}

// Revoke deletes the direct-grant tuple a prior Grant wrote, gated by the
// same grant_relation action.
func (az *Authorizer) Revoke(ctx context.Context, actor Actor, kind relationschema.Kind, objectID string, relation relationschema.Relation, grantee GranteeKind, granteeID string) error {
	if !isAPIRelation(kind, relation) {
		return catalogerr.NewValidation("relation", "not a grantable relation for "+string(kind))
	}
	action := relationschema.GrantAction(kind, relation)
	allowed, err := az.IsAllowed(ctx, actor, kind, objectID, action)
	if err != nil {
		return err
	}
	if !allowed {
		return catalogerr.NewForbidden(action.Name, objectID)
	}

	object := relationstore.TupleID(string(kind), objectID)
	tuple := relationstore.Tuple{User: granteeSubject(grantee, granteeID), Relation: string(relation), Object: object}
	if err := az.rsc.Write(ctx, nil, []relationstore.Tuple{tuple}); err != nil {
		return catalogerr.Wrapf(err, "authz.Revoke %s", object)
	}
	return nil
}
