package tuplemigration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakekeeper/catalog-authz/internal/relationschema"
	"github.com/lakekeeper/catalog-authz/internal/relationstore"
)

func newTestEngine(t *testing.T) (*Engine, *relationstore.Client) {
	t.Helper()
	backend := relationstore.NewInMemoryBackend()
	rsc := relationstore.NewClient(backend, 8, 50)
	mm := relationstore.NewModelManager(rsc)
	require.NoError(t, mm.InstallV3(context.Background()))
	return New(rsc, mm, "srv1"), rsc
}

// seedProject wires project -> server:srv1. Safe to call once per distinct
// project id; a second call for the same project would conflict on the
// already-written tuples, matching the store's real write semantics.
func seedProject(t *testing.T, rsc *relationstore.Client, project string) {
	t.Helper()
	serverObj := relationstore.TupleID(string(relationschema.KindServer), "srv1")
	projectObj := relationstore.TupleID(string(relationschema.KindProject), project)
	require.NoError(t, rsc.Write(context.Background(), []relationstore.Tuple{
		{User: serverObj, Relation: string(relationschema.RelParent), Object: projectObj},
		{User: projectObj, Relation: string(relationschema.RelChild), Object: serverObj},
	}, nil))
}

func seedWarehouse(t *testing.T, rsc *relationstore.Client, project, warehouse string) {
	t.Helper()
	projectObj := relationstore.TupleID(string(relationschema.KindProject), project)
	warehouseObj := relationstore.TupleID(string(relationschema.KindWarehouse), warehouse)
	require.NoError(t, rsc.Write(context.Background(), []relationstore.Tuple{
		{User: projectObj, Relation: string(relationschema.RelParent), Object: warehouseObj},
		{User: warehouseObj, Relation: string(relationschema.RelChild), Object: projectObj},
	}, nil))
}

func seedNamespace(t *testing.T, rsc *relationstore.Client, warehouse, namespace string) {
	t.Helper()
	warehouseObj := relationstore.TupleID(string(relationschema.KindWarehouse), warehouse)
	nsObj := relationstore.TupleID(string(relationschema.KindNamespace), namespace)
	require.NoError(t, rsc.Write(context.Background(), []relationstore.Tuple{
		{User: warehouseObj, Relation: string(relationschema.RelParent), Object: nsObj},
		{User: nsObj, Relation: string(relationschema.RelChild), Object: warehouseObj},
	}, nil))
}

func seedTabular(t *testing.T, rsc *relationstore.Client, namespace string, kind relationschema.Kind, id, ownerID string) {
	t.Helper()
	nsObj := relationstore.TupleID(string(relationschema.KindNamespace), namespace)
	tabObj := relationstore.TupleID(string(kind), id)
	require.NoError(t, rsc.Write(context.Background(), []relationstore.Tuple{
		{User: nsObj, Relation: string(relationschema.RelParent), Object: tabObj},
		{User: tabObj, Relation: string(relationschema.RelChild), Object: nsObj},
		{User: "user:" + ownerID, Relation: string(relationschema.RelOwnership), Object: tabObj},
	}, nil))
}

// seedV3Tabular wires project:p1 -> server:srv1, warehouse:wh ∈ p1,
// namespace:ns ∈ wh, and a table or view named id under ns, owned by
// ownerID, exactly as §4.4's S1 scenario sets up. It creates the project
// fresh, so callers seeding a second warehouse under the same project must
// use seedWarehouse/seedNamespace/seedTabular directly instead.
func seedV3Tabular(t *testing.T, rsc *relationstore.Client, project, warehouse, namespace string, kind relationschema.Kind, id, ownerID string) {
	t.Helper()
	seedProject(t, rsc, project)
	seedWarehouse(t, rsc, project, warehouse)
	seedNamespace(t, rsc, warehouse, namespace)
	seedTabular(t, rsc, namespace, kind, id, ownerID)
}

func TestRunPushesDownSingleWarehouse(t *testing.T) {
	// §4.4 scenario S1.
	e, rsc := newTestEngine(t)
	ctx := context.Background()
	seedV3Tabular(t, rsc, "p1", "wh1", "ns1", relationschema.KindTable, "t1", "owner1")

	stats, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Warehouses)
	assert.Equal(t, 1, stats.Tabulars)

	v4Obj := "lakekeeper_table:wh1/t1"
	nsObj := "namespace:ns1"

	parent, _, err := rsc.Read(ctx, relationstore.TupleKey{User: nsObj, Relation: string(relationschema.RelParent), Object: v4Obj}, 1, "", relationstore.HigherConsistency)
	require.NoError(t, err)
	assert.Len(t, parent, 1)

	owner, _, err := rsc.Read(ctx, relationstore.TupleKey{User: "user:owner1", Relation: string(relationschema.RelOwnership), Object: v4Obj}, 1, "", relationstore.HigherConsistency)
	require.NoError(t, err)
	assert.Len(t, owner, 1)

	child, _, err := rsc.Read(ctx, relationstore.TupleKey{User: v4Obj, Relation: string(relationschema.RelChild), Object: nsObj}, 1, "", relationstore.HigherConsistency)
	require.NoError(t, err)
	assert.Len(t, child, 1)

	// original v3 tuples still exist.
	v3Parent, _, err := rsc.Read(ctx, relationstore.TupleKey{User: nsObj, Relation: string(relationschema.RelParent), Object: "table:t1"}, 1, "", relationstore.HigherConsistency)
	require.NoError(t, err)
	assert.Len(t, v3Parent, 1)
}

func TestRunIsCrossWarehouseIsolated(t *testing.T) {
	// §4.4 scenario S2.
	e, rsc := newTestEngine(t)
	ctx := context.Background()
	seedProject(t, rsc, "p1")
	seedWarehouse(t, rsc, "p1", "wh1")
	seedNamespace(t, rsc, "wh1", "ns1")
	seedTabular(t, rsc, "ns1", relationschema.KindTable, "T", "u")
	seedWarehouse(t, rsc, "p1", "wh2")
	seedNamespace(t, rsc, "wh2", "ns2")
	seedTabular(t, rsc, "ns2", relationschema.KindTable, "T", "other")

	_, err := e.Run(ctx)
	require.NoError(t, err)

	wh1T := "lakekeeper_table:wh1/T"
	wh2T := "lakekeeper_table:wh2/T"

	wh1Owner, _, err := rsc.Read(ctx, relationstore.TupleKey{User: "user:u", Relation: string(relationschema.RelOwnership), Object: wh1T}, 1, "", relationstore.HigherConsistency)
	require.NoError(t, err)
	assert.Len(t, wh1Owner, 1)

	crossOwner, _, err := rsc.Read(ctx, relationstore.TupleKey{User: "user:u", Relation: string(relationschema.RelOwnership), Object: wh2T}, 1, "", relationstore.HigherConsistency)
	require.NoError(t, err)
	assert.Empty(t, crossOwner)
}

func TestRunTwiceIsNoOp(t *testing.T) {
	// §4.4 property 8.
	e, rsc := newTestEngine(t)
	ctx := context.Background()
	seedV3Tabular(t, rsc, "p1", "wh1", "ns1", relationschema.KindView, "v1", "owner1")

	first, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Tabulars)

	second, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, second)
}

func TestRunOnEmptyStoreSucceeds(t *testing.T) {
	e, _ := newTestEngine(t)
	stats, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}
