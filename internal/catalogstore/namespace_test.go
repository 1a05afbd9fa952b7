package catalogstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakekeeper/catalog-authz/internal/idgen"
)

func newNamespace(t *testing.T, s *Store, warehouseID string, parentID *string, parts []string) Namespace {
	t.Helper()
	n := Namespace{
		ID: idgen.NewString(), WarehouseID: warehouseID, ParentNamespaceID: parentID,
		NameParts: parts, Properties: map[string]string{}, CreatedAt: time.Now(),
	}
	withWriteTx(t, s, func(tx *Tx) error { return tx.CreateNamespace(context.Background(), n) })
	return n
}

func TestCreateAndGetNamespaceByPath(t *testing.T) {
	s := newTestStore(t)
	p := newProject(t, s, "acme")
	w := newWarehouse(t, s, p.ID, "wh1")
	n := newNamespace(t, s, w.ID, nil, []string{"Sales"})

	got, found, err := s.GetNamespaceByPath(context.Background(), w.ID, []string{"sales"})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, []string{"Sales"}, got.NameParts, "caller's casing is echoed back from name_parts")
}

func TestNamespaceUniquePathPerWarehouse(t *testing.T) {
	s := newTestStore(t)
	p := newProject(t, s, "acme")
	w := newWarehouse(t, s, p.ID, "wh1")
	newNamespace(t, s, w.ID, nil, []string{"sales"})

	ctx := context.Background()
	tx, err := s.BeginWrite(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	err = tx.CreateNamespace(ctx, Namespace{ID: "n2", WarehouseID: w.ID, NameParts: []string{"SALES"}, Properties: map[string]string{}, CreatedAt: time.Now()})
	require.Error(t, err)
}

func TestRenameNamespace(t *testing.T) {
	s := newTestStore(t)
	p := newProject(t, s, "acme")
	w := newWarehouse(t, s, p.ID, "wh1")
	n := newNamespace(t, s, w.ID, nil, []string{"sales"})

	withWriteTx(t, s, func(tx *Tx) error { return tx.RenameNamespace(context.Background(), n.ID, []string{"marketing"}, nil) })

	_, found, err := s.GetNamespaceByPath(context.Background(), w.ID, []string{"sales"})
	require.NoError(t, err)
	assert.False(t, found)

	got, found, err := s.GetNamespaceByPath(context.Background(), w.ID, []string{"marketing"})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, n.ID, got.ID)
}

func TestChildNamespacesNesting(t *testing.T) {
	s := newTestStore(t)
	p := newProject(t, s, "acme")
	w := newWarehouse(t, s, p.ID, "wh1")
	parent := newNamespace(t, s, w.ID, nil, []string{"sales"})
	child := newNamespace(t, s, w.ID, &parent.ID, []string{"sales", "eu"})

	ctx := context.Background()
	tx, err := s.BeginWrite(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	topLevel, err := tx.ChildNamespaces(ctx, w.ID, nil)
	require.NoError(t, err)
	require.Len(t, topLevel, 1)
	assert.Equal(t, parent.ID, topLevel[0].ID)

	nested, err := tx.ChildNamespaces(ctx, w.ID, &parent.ID)
	require.NoError(t, err)
	require.Len(t, nested, 1)
	assert.Equal(t, child.ID, nested[0].ID)
}

func TestUpdateNamespaceProperties(t *testing.T) {
	s := newTestStore(t)
	p := newProject(t, s, "acme")
	w := newWarehouse(t, s, p.ID, "wh1")
	n := newNamespace(t, s, w.ID, nil, []string{"sales"})

	withWriteTx(t, s, func(tx *Tx) error {
		return tx.UpdateNamespaceProperties(context.Background(), n.ID, map[string]string{"location": "s3://bucket/sales/"})
	})

	got, _, err := s.GetNamespaceByID(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/sales/", got.Properties["location"])
}
