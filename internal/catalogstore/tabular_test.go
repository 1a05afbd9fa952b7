package catalogstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakekeeper/catalog-authz/internal/catalogerr"
	"github.com/lakekeeper/catalog-authz/internal/idgen"
)

func newTabular(t *testing.T, s *Store, warehouseID, namespaceID, name string, kind TabularKind, location string) Tabular {
	t.Helper()
	tab := Tabular{
		ID: idgen.NewString(), WarehouseID: warehouseID, NamespaceID: namespaceID,
		Kind: kind, Name: name, MetadataLocation: location, CreatedAt: time.Now(),
	}
	withWriteTx(t, s, func(tx *Tx) error { return tx.CreateTabular(context.Background(), tab) })
	return tab
}

func setupWarehouseAndNamespace(t *testing.T, s *Store) (Warehouse, Namespace) {
	t.Helper()
	p := newProject(t, s, "acme")
	w := newWarehouse(t, s, p.ID, "wh1")
	n := newNamespace(t, s, w.ID, nil, []string{"sales"})
	return w, n
}

func TestCreateAndGetTabularByName(t *testing.T) {
	s := newTestStore(t)
	w, n := setupWarehouseAndNamespace(t, s)
	tab := newTabular(t, s, w.ID, n.ID, "Orders", TabularTable, "s3://bucket/sales/orders/")

	got, found, err := s.GetTabularByName(context.Background(), n.ID, "orders", "")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, tab.ID, got.ID)
}

func TestTabularNameUniquePerNamespaceRegardlessOfKind(t *testing.T) {
	s := newTestStore(t)
	w, n := setupWarehouseAndNamespace(t, s)
	newTabular(t, s, w.ID, n.ID, "orders", TabularTable, "s3://bucket/sales/orders/")

	ctx := context.Background()
	tx, err := s.BeginWrite(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	err = tx.CreateTabular(ctx, Tabular{ID: "t2", WarehouseID: w.ID, NamespaceID: n.ID, Kind: TabularView, Name: "ORDERS", CreatedAt: time.Now()})
	require.Error(t, err)
}

func TestLocationConflictsPrefixDetection(t *testing.T) {
	s := newTestStore(t)
	w, n := setupWarehouseAndNamespace(t, s)
	newTabular(t, s, w.ID, n.ID, "orders", TabularTable, "s3://bucket/sales/orders/")

	ctx := context.Background()
	tx, err := s.BeginWrite(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	conflict, err := tx.LocationConflicts(ctx, w.ID, "s3://bucket/sales/orders/sub/")
	require.NoError(t, err)
	assert.True(t, conflict, "a location nested under an existing table's location must conflict")

	noConflict, err := tx.LocationConflicts(ctx, w.ID, "s3://bucket/sales/returns/")
	require.NoError(t, err)
	assert.False(t, noConflict)
}

func TestDropSoftDeleteAndUndrop(t *testing.T) {
	s := newTestStore(t)
	w, n := setupWarehouseAndNamespace(t, s)
	tab := newTabular(t, s, w.ID, n.ID, "orders", TabularTable, "s3://bucket/sales/orders/")

	now := formatTime(time.Now())
	withWriteTx(t, s, func(tx *Tx) error { return tx.SoftDeleteTabular(context.Background(), tab.ID, now, "") })

	_, found, err := s.GetTabularByName(context.Background(), n.ID, "orders", "")
	require.NoError(t, err)
	assert.False(t, found)

	withWriteTx(t, s, func(tx *Tx) error { return tx.UndeleteTabular(context.Background(), tab.ID) })
	got, found, err := s.GetTabularByName(context.Background(), n.ID, "orders", "")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, tab.ID, got.ID)
}

func TestCommitTabularConcurrentUpdate(t *testing.T) {
	s := newTestStore(t)
	w, n := setupWarehouseAndNamespace(t, s)
	tab := newTabular(t, s, w.ID, n.ID, "staged", TabularTable, "")

	ctx := context.Background()
	tx, err := s.BeginWrite(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	err = tx.CommitTabular(ctx, tab.ID, "s3://bucket/v1/", "wrong-location")
	require.Error(t, err)
	assert.ErrorIs(t, err, catalogerr.ErrConcurrentUpdate)

	require.NoError(t, tx.CommitTabular(ctx, tab.ID, "s3://bucket/v1/", ""))
}

func TestSearchTabularsByUUID(t *testing.T) {
	s := newTestStore(t)
	w, n := setupWarehouseAndNamespace(t, s)
	tab := newTabular(t, s, w.ID, n.ID, "orders", TabularTable, "s3://bucket/sales/orders/")

	results, err := s.SearchTabulars(context.Background(), w.ID, tab.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, tab.ID, results[0].ID)
}

func TestSearchTabularsByNameFragment(t *testing.T) {
	s := newTestStore(t)
	w, n := setupWarehouseAndNamespace(t, s)
	newTabular(t, s, w.ID, n.ID, "orders", TabularTable, "s3://bucket/sales/orders/")
	newTabular(t, s, w.ID, n.ID, "returns", TabularTable, "s3://bucket/sales/returns/")

	results, err := s.SearchTabulars(context.Background(), w.ID, "order")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "orders", results[0].Name)
}

func TestListSoftDeletedTabularsReportsMissingExpirationTask(t *testing.T) {
	s := newTestStore(t)
	w, n := setupWarehouseAndNamespace(t, s)
	tab := newTabular(t, s, w.ID, n.ID, "orders", TabularTable, "s3://bucket/sales/orders/")
	now := formatTime(time.Now())
	withWriteTx(t, s, func(tx *Tx) error { return tx.SoftDeleteTabular(context.Background(), tab.ID, now, "") })

	page, _, err := s.ListSoftDeletedTabulars(context.Background(), w.ID, 10, "")
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Nil(t, page[0].ExpirationTask, "no task row exists, so this must surface as a nil expiration with no error")
}
