package catalogstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lakekeeper/catalog-authz/internal/idgen"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func withWriteTx(t *testing.T, s *Store, fn func(tx *Tx) error) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.BeginWrite(ctx)
	require.NoError(t, err)
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		require.NoError(t, err)
		return
	}
	require.NoError(t, tx.Commit())
}

func newProject(t *testing.T, s *Store, name string) Project {
	t.Helper()
	p := Project{ID: idgen.NewString(), Name: name, CreatedAt: time.Now()}
	withWriteTx(t, s, func(tx *Tx) error { return tx.CreateProject(context.Background(), p) })
	return p
}
