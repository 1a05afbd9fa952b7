package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakekeeper/catalog-authz/internal/catalogerr"
	"github.com/lakekeeper/catalog-authz/internal/relationschema"
	"github.com/lakekeeper/catalog-authz/internal/relationstore"
)

func newTestAuthorizer(t *testing.T) *Authorizer {
	t.Helper()
	client := relationstore.NewClient(relationstore.NewInMemoryBackend(), 8, 50)
	return New(client, "srv1")
}

func TestCreateDeleteRoundTrip(t *testing.T) {
	// §8 property 1: create_K; delete_K; require_no_relations(higher_consistency) == ok
	az := newTestAuthorizer(t)
	ctx := context.Background()

	require.NoError(t, az.CreateRelations(ctx, relationschema.KindWarehouse, "w1", relationschema.KindProject, "p1", "owner1"))
	require.NoError(t, az.DeleteRelations(ctx, relationschema.KindWarehouse, "w1"))
	require.NoError(t, az.RequireNoRelations(ctx, relationschema.KindWarehouse, "w1", relationstore.HigherConsistency))
}

func TestRequireNoRelationsRejectsObjectWithOwnRelations(t *testing.T) {
	az := newTestAuthorizer(t)
	ctx := context.Background()
	require.NoError(t, az.CreateRelations(ctx, relationschema.KindWarehouse, "w1", relationschema.KindProject, "p1", "owner1"))

	err := az.RequireNoRelations(ctx, relationschema.KindWarehouse, "w1", relationstore.HigherConsistency)
	require.Error(t, err)
}

func TestRequireNoRelationsRejectsObjectUsedAsUser(t *testing.T) {
	az := newTestAuthorizer(t)
	ctx := context.Background()
	require.NoError(t, az.CreateRelations(ctx, relationschema.KindWarehouse, "w1", relationschema.KindProject, "p1", "owner1"))
	require.NoError(t, az.CreateRelations(ctx, relationschema.KindNamespace, "ns1", relationschema.KindWarehouse, "w1", "owner1"))

	// warehouse:w1 is used as user on namespace:ns1's parent relation, so
	// require_no_relations on w1 must fail even after deleting w1's own edges.
	require.NoError(t, az.deleteOwnRelationsTwice(ctx, relationstore.TupleID(string(relationschema.KindWarehouse), "w1")))
	err := az.RequireNoRelations(ctx, relationschema.KindWarehouse, "w1", relationstore.HigherConsistency)
	require.Error(t, err)
}

func TestIsAllowedViaOwnership(t *testing.T) {
	az := newTestAuthorizer(t)
	ctx := context.Background()
	require.NoError(t, az.CreateRelations(ctx, relationschema.KindWarehouse, "w1", relationschema.KindProject, "p1", "owner1"))

	allowed, err := az.IsAllowed(ctx, PrincipalActor("owner1"), relationschema.KindWarehouse, "w1", relationschema.WarehouseDelete)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = az.IsAllowed(ctx, PrincipalActor("stranger"), relationschema.KindWarehouse, "w1", relationschema.WarehouseDelete)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRequireActionHiddenEqualsMissing(t *testing.T) {
	// §8 property 2: if check is false, get_X returns NotFound regardless
	// of whether the row exists.
	az := newTestAuthorizer(t)
	ctx := context.Background()
	require.NoError(t, az.CreateRelations(ctx, relationschema.KindWarehouse, "w1", relationschema.KindProject, "p1", "owner1"))

	load := func(context.Context) (string, bool, error) { return "entity", true, nil }
	_, err := RequireAction(ctx, az, PrincipalActor("stranger"), relationschema.KindWarehouse, "w1", relationschema.WarehouseGetMetadata, load)
	require.Error(t, err)
	assert.ErrorIs(t, err, catalogerr.ErrNotFound)

	missingLoad := func(context.Context) (string, bool, error) { return "", false, nil }
	_, err = RequireAction(ctx, az, PrincipalActor("owner1"), relationschema.KindWarehouse, "w1", relationschema.WarehouseGetMetadata, missingLoad)
	require.Error(t, err)
	assert.ErrorIs(t, err, catalogerr.ErrNotFound)

	entity, err := RequireAction(ctx, az, PrincipalActor("owner1"), relationschema.KindWarehouse, "w1", relationschema.WarehouseGetMetadata, load)
	require.NoError(t, err)
	assert.Equal(t, "entity", entity)
}

func TestCheckActorRoleAssumption(t *testing.T) {
	az := newTestAuthorizer(t)
	ctx := context.Background()

	_, err := az.CheckActor(ctx, AssumedRoleActor("alice", "r1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, catalogerr.ErrForbidden)

	require.NoError(t, az.RSC().Write(ctx, []relationstore.Tuple{
		{User: "user:alice", Relation: string(relationschema.RelCanAssume), Object: "role:r1"},
	}, nil))

	subject, err := az.CheckActor(ctx, AssumedRoleActor("alice", "r1"))
	require.NoError(t, err)
	assert.Equal(t, "role:r1", subject)
}

func TestCheckActorAnonymousUnauthenticated(t *testing.T) {
	az := newTestAuthorizer(t)
	_, err := az.CheckActor(context.Background(), AnonymousActor())
	assert.ErrorIs(t, err, catalogerr.ErrUnauthenticated)
}

func TestGrantWritesDirectGrantTupleGatedByGrantAction(t *testing.T) {
	az := newTestAuthorizer(t)
	ctx := context.Background()
	require.NoError(t, az.CreateRelations(ctx, relationschema.KindWarehouse, "w1", relationschema.KindProject, "p1", "owner1"))

	// Stranger has no manage_grants on w1 yet: Grant is denied.
	err := az.Grant(ctx, PrincipalActor("stranger"), relationschema.KindWarehouse, "w1", relationschema.RelSelect, GranteeUser, "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, catalogerr.ErrForbidden)

	// Give the owner manage_grants directly, then grant "select" to alice.
	require.NoError(t, az.RSC().Write(ctx, []relationstore.Tuple{
		{User: "user:owner1", Relation: string(relationschema.RelManageGrants), Object: "warehouse:w1"},
	}, nil))
	require.NoError(t, az.Grant(ctx, PrincipalActor("owner1"), relationschema.KindWarehouse, "w1", relationschema.RelSelect, GranteeUser, "alice"))

	allowed, err := az.IsAllowed(ctx, PrincipalActor("alice"), relationschema.KindWarehouse, "w1", relationschema.WarehouseGetMetadata)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestGrantRejectsNonAPIRelation(t *testing.T) {
	az := newTestAuthorizer(t)
	ctx := context.Background()
	err := az.Grant(ctx, PrincipalActor("owner1"), relationschema.KindWarehouse, "w1", relationschema.RelCanDelete, GranteeUser, "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, catalogerr.ErrValidation)
}

func TestRevokeDeletesGrantTuple(t *testing.T) {
	az := newTestAuthorizer(t)
	ctx := context.Background()
	require.NoError(t, az.CreateRelations(ctx, relationschema.KindWarehouse, "w1", relationschema.KindProject, "p1", "owner1"))
	require.NoError(t, az.RSC().Write(ctx, []relationstore.Tuple{
		{User: "user:owner1", Relation: string(relationschema.RelManageGrants), Object: "warehouse:w1"},
	}, nil))
	require.NoError(t, az.Grant(ctx, PrincipalActor("owner1"), relationschema.KindWarehouse, "w1", relationschema.RelSelect, GranteeUser, "alice"))

	require.NoError(t, az.Revoke(ctx, PrincipalActor("owner1"), relationschema.KindWarehouse, "w1", relationschema.RelSelect, GranteeUser, "alice"))

	allowed, err := az.IsAllowed(ctx, PrincipalActor("alice"), relationschema.KindWarehouse, "w1", relationschema.WarehouseGetMetadata)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestListProjectsAllVsSubset(t *testing.T) {
	az := newTestAuthorizer(t)
	ctx := context.Background()
	require.NoError(t, az.CreateRelations(ctx, relationschema.KindProject, "p1", relationschema.KindServer, "srv1", "owner1"))
	require.NoError(t, az.CreateRelations(ctx, relationschema.KindProject, "p2", relationschema.KindServer, "srv1", "owner2"))

	vis, err := az.ListProjects(ctx, PrincipalActor("owner1"))
	require.NoError(t, err)
	assert.False(t, vis.All)
	assert.Equal(t, []string{"project:p1"}, vis.Projects)

	require.NoError(t, az.RSC().Write(ctx, []relationstore.Tuple{
		{User: "user:admin", Relation: string(relationschema.RelGlobalAdmin), Object: az.ServerObject()},
	}, nil))
	vis, err = az.ListProjects(ctx, PrincipalActor("admin"))
	require.NoError(t, err)
	assert.True(t, vis.All)
}
