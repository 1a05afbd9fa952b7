package catalogstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakekeeper/catalog-authz/internal/catalogerr"
)

func TestCreateAndGetProject(t *testing.T) {
	s := newTestStore(t)
	p := newProject(t, s, "acme")

	got, found, err := s.GetProjectByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "acme", got.Name)
}

func TestProjectNameUniqueness(t *testing.T) {
	s := newTestStore(t)
	newProject(t, s, "acme")

	ctx := context.Background()
	tx, err := s.BeginWrite(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	err = tx.CreateProject(ctx, Project{ID: "p2", Name: "ACME"})
	require.Error(t, err)
	assert.ErrorIs(t, err, catalogerr.ErrConflict)
}

func TestGetProjectByNameIsCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	newProject(t, s, "Acme")

	got, found, err := s.GetProjectByName(context.Background(), "acme")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Acme", got.Name)
}

func TestRenameProject(t *testing.T) {
	s := newTestStore(t)
	p := newProject(t, s, "acme")

	withWriteTx(t, s, func(tx *Tx) error { return tx.RenameProject(context.Background(), p.ID, "acme-renamed") })

	got, _, err := s.GetProjectByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme-renamed", got.Name)
}

func TestDeleteProjectRequiresNoChildren(t *testing.T) {
	s := newTestStore(t)
	p := newProject(t, s, "acme")

	withWriteTx(t, s, func(tx *Tx) error {
		children, err := tx.DeleteProjectChildren(context.Background(), p.ID)
		require.NoError(t, err)
		assert.Empty(t, children)
		return tx.DeleteProject(context.Background(), p.ID)
	})

	_, found, err := s.GetProjectByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestListProjectsPageExhaustiveness(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		newProject(t, s, "p"+string(rune('a'+i)))
	}

	seen := map[string]bool{}
	token := ""
	for {
		page, next, err := s.ListProjectsPage(context.Background(), nil, 2, token)
		require.NoError(t, err)
		for _, p := range page {
			assert.False(t, seen[p.ID], "duplicate project in pagination")
			seen[p.ID] = true
		}
		if next == "" {
			break
		}
		token = next
	}
	assert.Len(t, seen, 5)
}
