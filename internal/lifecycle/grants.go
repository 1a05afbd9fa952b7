package lifecycle

import (
	"context"
	"time"

	"github.com/lakekeeper/catalog-authz/internal/authz"
	"github.com/lakekeeper/catalog-authz/internal/eventbus"
	"github.com/lakekeeper/catalog-authz/internal/relationschema"
)

// GrantRelation is the API-visible grant entry point spec.md §3.1 names
// ("Direct grants ... Writable by operators of the API") and §4.2 gates
// by the relation's grant_relation action: write one direct-grant tuple
// on an existing object, never touching the Catalog Store.
func (s *Service) GrantRelation(ctx context.Context, actor authz.Actor, kind relationschema.Kind, objectID string, relation relationschema.Relation, grantee authz.GranteeKind, granteeID string) error {
	if err := s.AZ.Grant(ctx, actor, kind, objectID, relation, grantee, granteeID); err != nil {
		return err
	}
	s.emit(ctx, eventbus.Event{
		Kind:       eventbus.EventRelationGranted,
		ActorID:    actor.UserID,
		ObjectID:   objectID,
		OccurredAt: time.Now(),
		Raw:        map[string]any{"kind": string(kind), "relation": string(relation), "grantee": granteeID},
	})
	return nil
}

// RevokeRelation is the inverse of GrantRelation.
func (s *Service) RevokeRelation(ctx context.Context, actor authz.Actor, kind relationschema.Kind, objectID string, relation relationschema.Relation, grantee authz.GranteeKind, granteeID string) error {
	if err := s.AZ.Revoke(ctx, actor, kind, objectID, relation, grantee, granteeID); err != nil {
		return err
	}
	s.emit(ctx, eventbus.Event{
		Kind:       eventbus.EventRelationRevoked,
		ActorID:    actor.UserID,
		ObjectID:   objectID,
		OccurredAt: time.Now(),
		Raw:        map[string]any{"kind": string(kind), "relation": string(relation), "grantee": granteeID},
	})
	return nil
}
