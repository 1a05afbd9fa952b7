package catalogstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakekeeper/catalog-authz/internal/idgen"
)

func newWarehouse(t *testing.T, s *Store, projectID, name string) Warehouse {
	t.Helper()
	w := Warehouse{
		ID: idgen.NewString(), ProjectID: projectID, Name: name,
		StorageProfile: "{}", DeleteProfile: DeleteProfileSoft, SoftDeleteSeconds: 3600,
		Status: WarehouseActive, CreatedAt: time.Now(),
	}
	withWriteTx(t, s, func(tx *Tx) error { return tx.CreateWarehouse(context.Background(), w) })
	return w
}

func TestCreateAndGetWarehouse(t *testing.T) {
	s := newTestStore(t)
	p := newProject(t, s, "acme")
	w := newWarehouse(t, s, p.ID, "wh1")

	got, found, err := s.GetWarehouseByID(context.Background(), w.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "wh1", got.Name)
	assert.Equal(t, WarehouseActive, got.Status)
}

func TestWarehouseActivateDeactivate(t *testing.T) {
	s := newTestStore(t)
	p := newProject(t, s, "acme")
	w := newWarehouse(t, s, p.ID, "wh1")

	withWriteTx(t, s, func(tx *Tx) error { return tx.SetWarehouseStatus(context.Background(), w.ID, WarehouseInactive) })
	got, _, err := s.GetWarehouseByID(context.Background(), w.ID)
	require.NoError(t, err)
	assert.Equal(t, WarehouseInactive, got.Status)
}

func TestWarehouseSoftDeleteAndUndelete(t *testing.T) {
	s := newTestStore(t)
	p := newProject(t, s, "acme")
	w := newWarehouse(t, s, p.ID, "wh1")

	now := formatTime(time.Now())
	withWriteTx(t, s, func(tx *Tx) error { return tx.SoftDeleteWarehouse(context.Background(), w.ID, now) })
	_, found, err := s.GetWarehouseByID(context.Background(), w.ID)
	require.NoError(t, err)
	assert.False(t, found, "soft-deleted warehouse should not be visible via GetWarehouseByID")

	withWriteTx(t, s, func(tx *Tx) error { return tx.UndeleteWarehouse(context.Background(), w.ID) })
	got, found, err := s.GetWarehouseByID(context.Background(), w.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Nil(t, got.DeletedAt)
}

func TestWarehouseNameUniquePerProject(t *testing.T) {
	s := newTestStore(t)
	p := newProject(t, s, "acme")
	newWarehouse(t, s, p.ID, "wh1")

	ctx := context.Background()
	tx, err := s.BeginWrite(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	err = tx.CreateWarehouse(ctx, Warehouse{ID: "w2", ProjectID: p.ID, Name: "WH1", Status: WarehouseActive, DeleteProfile: DeleteProfileHard, CreatedAt: time.Now()})
	require.Error(t, err)
}
