package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakekeeper/catalog-authz/internal/authz"
	"github.com/lakekeeper/catalog-authz/internal/catalogstore"
	"github.com/lakekeeper/catalog-authz/internal/eventbus"
	"github.com/lakekeeper/catalog-authz/internal/relationschema"
	"github.com/lakekeeper/catalog-authz/internal/relationstore"
	"github.com/lakekeeper/catalog-authz/internal/taskqueue"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	cs, err := catalogstore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })

	client := relationstore.NewClient(relationstore.NewInMemoryBackend(), 8, 50)
	az := authz.New(client, "srv1")
	tq := taskqueue.New(cs.DB(), taskqueue.NewConfigProvider(time.Minute))
	bus := eventbus.New(nil)

	return New(cs, az, tq, bus, nil, DefaultConfig(), nil)
}

func TestGrantRelationWritesTupleAndEmitsEvent(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	require.NoError(t, s.AZ.CreateRelations(ctx, relationschema.KindWarehouse, "w1", relationschema.KindProject, "p1", "owner1"))
	require.NoError(t, s.AZ.RSC().Write(ctx, []relationstore.Tuple{
		{User: "user:owner1", Relation: string(relationschema.RelManageGrants), Object: "warehouse:w1"},
	}, nil))

	require.NoError(t, s.GrantRelation(ctx, authz.PrincipalActor("owner1"), relationschema.KindWarehouse, "w1", relationschema.RelSelect, authz.GranteeUser, "alice"))

	allowed, err := s.AZ.IsAllowed(ctx, authz.PrincipalActor("alice"), relationschema.KindWarehouse, "w1", relationschema.WarehouseGetMetadata)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRevokeRelationDeletesTuple(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	require.NoError(t, s.AZ.CreateRelations(ctx, relationschema.KindWarehouse, "w1", relationschema.KindProject, "p1", "owner1"))
	require.NoError(t, s.AZ.RSC().Write(ctx, []relationstore.Tuple{
		{User: "user:owner1", Relation: string(relationschema.RelManageGrants), Object: "warehouse:w1"},
	}, nil))
	require.NoError(t, s.GrantRelation(ctx, authz.PrincipalActor("owner1"), relationschema.KindWarehouse, "w1", relationschema.RelSelect, authz.GranteeUser, "alice"))

	require.NoError(t, s.RevokeRelation(ctx, authz.PrincipalActor("owner1"), relationschema.KindWarehouse, "w1", relationschema.RelSelect, authz.GranteeUser, "alice"))

	allowed, err := s.AZ.IsAllowed(ctx, authz.PrincipalActor("alice"), relationschema.KindWarehouse, "w1", relationschema.WarehouseGetMetadata)
	require.NoError(t, err)
	assert.False(t, allowed)
}
