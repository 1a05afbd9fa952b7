package authz

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/lakekeeper/catalog-authz/internal/catalogerr"
	"github.com/lakekeeper/catalog-authz/internal/relationschema"
	"github.com/lakekeeper/catalog-authz/internal/relationstore"
)

// CreateRelations writes the (owner, parent, inverse-parent) triple for a
// freshly created object in a single transactional batch (§3.1 invariant,
// §4.3 create_X). ownerID may be empty when the object has no initial
// owner (e.g. a bare server-level object).
func (az *Authorizer) CreateRelations(ctx context.Context, kind relationschema.Kind, id string, parentKind relationschema.Kind, parentID string, ownerUserID string) error {
	object := relationstore.TupleID(string(kind), id)
	parent := relationstore.TupleID(string(parentKind), parentID)

	writes := []relationstore.Tuple{
		{User: parent, Relation: string(relationschema.RelParent), Object: object},
		{User: object, Relation: string(relationschema.RelChild), Object: parent},
	}
	if ownerUserID != "" {
		writes = append(writes, relationstore.Tuple{
			User:     "user:" + ownerUserID,
			Relation: string(relationschema.RelOwnership),
			Object:   object,
		})
	}
	if err := az.rsc.Write(ctx, writes, nil); err != nil {
		return catalogerr.Wrapf(err, "authz.CreateRelations %s", object)
	}
	return nil
}

// DeleteRelations implements delete_X: delete_all_relations(id).
func (az *Authorizer) DeleteRelations(ctx context.Context, kind relationschema.Kind, id string) error {
	return az.DeleteAllRelations(ctx, kind, id)
}

// RequireNoRelations implements require_no_relations(obj) (§4.3): no tuple
// names obj as object, and for every kind that may reference obj as user
// (including userset suffixes), no such tuple exists. Sub-reads run in
// parallel under the RSC's semaphore, at the caller-specified consistency
// (use HigherConsistency immediately after a recent delete).
func (az *Authorizer) RequireNoRelations(ctx context.Context, kind relationschema.Kind, id string, consistency relationstore.Consistency) error {
	object := relationstore.TupleID(string(kind), id)

	// Phase (a): object has no relations of its own.
	own, _, err := az.rsc.Read(ctx, relationstore.TupleKey{Object: object}, 1, "", consistency)
	if err != nil {
		return catalogerr.Wrap("authz.RequireNoRelations", err)
	}
	if len(own) > 0 {
		return catalogerr.NewConflict(string(kind), "ObjectHasRelations")
	}

	// Phase (b): no kind that may reference this object as user does so,
	// for the bare id or any declared userset suffix.
	userIDs := []string{relationstore.TupleID(string(kind), id)}
	for _, suffix := range relationschema.UsersetSuffixes(kind) {
		userIDs = append(userIDs, relationstore.UsersetID(string(kind), id, suffix))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, refKind := range relationschema.ReferencingKinds(kind) {
		refKind := refKind
		for _, userID := range userIDs {
			userID := userID
			g.Go(func() error {
				tuples, _, err := az.rsc.Read(gctx, relationstore.TupleKey{User: userID, Object: string(refKind) + ":"}, 1, "", consistency)
				if err != nil {
					return catalogerr.Wrap("authz.RequireNoRelations", err)
				}
				if len(tuples) > 0 {
					return catalogerr.NewConflict(string(kind), "ObjectUsedInRelation")
				}
				return nil
			})
		}
	}
	return g.Wait()
}

// DeleteAllRelations runs the two-pass, two-branch delete of §4.3/§9: an
// own-relations branch (object as object) and a user-relations branch
// (object, and each userset suffix, as user elsewhere), each run twice to
// defeat the tuple store's eventual consistency. Failures of either
// branch are reported; the other branch still executes.
func (az *Authorizer) DeleteAllRelations(ctx context.Context, kind relationschema.Kind, id string) error {
	object := relationstore.TupleID(string(kind), id)

	// A plain Group (no shared context) so one branch failing does not
	// cancel the other; both errors are joined into the result.
	var ownErr, userErr error
	var g errgroup.Group
	g.Go(func() error { ownErr = az.deleteOwnRelationsTwice(ctx, object); return nil })
	g.Go(func() error { userErr = az.deleteUserRelationsTwice(ctx, kind, id); return nil })
	_ = g.Wait()
	return errors.Join(ownErr, userErr)
}

func (az *Authorizer) deleteOwnRelationsTwice(ctx context.Context, object string) error {
	for pass := 0; pass < 2; pass++ {
		if err := az.deleteAllMatching(ctx, relationstore.TupleKey{Object: object}); err != nil {
			return fmt.Errorf("delete own relations (pass %d) for %s: %w", pass+1, object, err)
		}
	}
	return nil
}

func (az *Authorizer) deleteUserRelationsTwice(ctx context.Context, kind relationschema.Kind, id string) error {
	userIDs := []string{relationstore.TupleID(string(kind), id)}
	for _, suffix := range relationschema.UsersetSuffixes(kind) {
		userIDs = append(userIDs, relationstore.UsersetID(string(kind), id, suffix))
	}

	refKinds := relationschema.ReferencingKinds(kind)
	g, gctx := errgroup.WithContext(ctx)
	for _, refKind := range refKinds {
		refKind := refKind
		for _, userID := range userIDs {
			userID := userID
			g.Go(func() error {
				for pass := 0; pass < 2; pass++ {
					key := relationstore.TupleKey{User: userID, Object: string(refKind) + ":"}
					if err := az.deleteAllMatching(gctx, key); err != nil {
						return fmt.Errorf("delete user relations (pass %d) for %s under %s: %w", pass+1, userID, refKind, err)
					}
				}
				return nil
			})
		}
	}
	return g.Wait()
}

// deleteAllMatching pages through every tuple matching key and deletes it
// in batches no larger than relationstore.MaxTuplesPerWrite.
func (az *Authorizer) deleteAllMatching(ctx context.Context, key relationstore.TupleKey) error {
	for {
		tuples, _, err := az.rsc.Read(ctx, key, relationstore.MaxTuplesPerWrite, "", relationstore.HigherConsistency)
		if err != nil {
			return err
		}
		if len(tuples) == 0 {
			return nil
		}
		if err := az.rsc.Write(ctx, nil, tuples); err != nil {
			return err
		}
		if len(tuples) < relationstore.MaxTuplesPerWrite {
			return nil
		}
	}
}
