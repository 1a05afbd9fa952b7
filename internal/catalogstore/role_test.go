package catalogstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakekeeper/catalog-authz/internal/idgen"
)

func TestCreateUpdateDeleteRole(t *testing.T) {
	s := newTestStore(t)
	p := newProject(t, s, "acme")
	r := Role{ID: idgen.NewString(), ProjectID: p.ID, Name: "viewer", CreatedAt: time.Now()}
	withWriteTx(t, s, func(tx *Tx) error { return tx.CreateRole(context.Background(), r) })

	got, found, err := s.GetRoleByID(context.Background(), r.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "viewer", got.Name)

	withWriteTx(t, s, func(tx *Tx) error { return tx.UpdateRole(context.Background(), r.ID, "viewer2", "read-only") })
	got, _, err = s.GetRoleByID(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, "viewer2", got.Name)
	assert.Equal(t, "read-only", got.Description)

	withWriteTx(t, s, func(tx *Tx) error { return tx.DeleteRole(context.Background(), r.ID) })
	_, found, err = s.GetRoleByID(context.Background(), r.ID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRoleSourceIDUniquePerProjectWhenPresent(t *testing.T) {
	s := newTestStore(t)
	p := newProject(t, s, "acme")
	src := "ext-1"

	ctx := context.Background()
	withWriteTx(t, s, func(tx *Tx) error {
		return tx.CreateRole(ctx, Role{ID: idgen.NewString(), ProjectID: p.ID, Name: "r1", SourceID: &src, CreatedAt: time.Now()})
	})

	tx, err := s.BeginWrite(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	err = tx.CreateRole(ctx, Role{ID: idgen.NewString(), ProjectID: p.ID, Name: "r2", SourceID: &src, CreatedAt: time.Now()})
	require.Error(t, err)
}

func TestRoleSourceIDNullAllowsMultiple(t *testing.T) {
	s := newTestStore(t)
	p := newProject(t, s, "acme")
	ctx := context.Background()

	withWriteTx(t, s, func(tx *Tx) error {
		return tx.CreateRole(ctx, Role{ID: idgen.NewString(), ProjectID: p.ID, Name: "r1", CreatedAt: time.Now()})
	})
	withWriteTx(t, s, func(tx *Tx) error {
		return tx.CreateRole(ctx, Role{ID: idgen.NewString(), ProjectID: p.ID, Name: "r2", CreatedAt: time.Now()})
	})
}
