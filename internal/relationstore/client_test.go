package relationstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakekeeper/catalog-authz/internal/catalogerr"
)

// flakyBackend fails the first failuresLeft calls with ErrStoreUnavailable
// before delegating to the wrapped backend.
type flakyBackend struct {
	*InMemoryBackend
	failuresLeft int
}

func (f *flakyBackend) Check(ctx context.Context, user, relation, object string) (bool, error) {
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return false, catalogerr.ErrStoreUnavailable
	}
	return f.InMemoryBackend.Check(ctx, user, relation, object)
}

func newTestClient(t *testing.T) (*Client, *InMemoryBackend) {
	t.Helper()
	backend := NewInMemoryBackend()
	return NewClient(backend, 4, 10), backend
}

func TestWriteEmptyBatchIsNoop(t *testing.T) {
	c, _ := newTestClient(t)
	require.NoError(t, c.Write(context.Background(), nil, nil))
}

func TestWriteTooManyTuplesFails(t *testing.T) {
	c, _ := newTestClient(t)
	writes := make([]Tuple, MaxTuplesPerWrite+1)
	for i := range writes {
		writes[i] = Tuple{User: "user:u", Relation: "ownership", Object: "warehouse:w"}
	}
	err := c.Write(context.Background(), writes, nil)
	require.Error(t, err)
}

func TestWriteDuplicateConflicts(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	tup := Tuple{User: "user:u1", Relation: "ownership", Object: "warehouse:w1"}
	require.NoError(t, c.Write(ctx, []Tuple{tup}, nil))
	err := c.Write(ctx, []Tuple{tup}, nil)
	require.Error(t, err)
}

func TestDeleteMissingNotFound(t *testing.T) {
	c, _ := newTestClient(t)
	err := c.Write(context.Background(), nil, []Tuple{{User: "user:u1", Relation: "ownership", Object: "warehouse:w1"}})
	require.Error(t, err)
}

func TestReadRequiresObjectType(t *testing.T) {
	c, _ := newTestClient(t)
	_, _, err := c.Read(context.Background(), TupleKey{}, 10, "", MinimizeLatency)
	require.Error(t, err)
}

func TestReadAllPagesIteratesToExhaustion(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		tup := Tuple{User: "user:u", Relation: "select", Object: TupleID("table", string(rune('a'+i)))}
		require.NoError(t, c.Write(ctx, []Tuple{tup}, nil))
	}
	all, err := c.ReadAllPages(ctx, TupleKey{Relation: "select", Object: "table:"}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 25)
}

func TestCheckAndListObjectsDirectGrant(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.Write(ctx, []Tuple{{User: "user:u1", Relation: "ownership", Object: "warehouse:w1"}}, nil))

	ok, err := c.Check(ctx, "user:u1", "ownership", "warehouse:w1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Check(ctx, "user:u2", "ownership", "warehouse:w1")
	require.NoError(t, err)
	assert.False(t, ok)

	objs, err := c.ListObjects(ctx, "warehouse", "can_get_metadata", "user:u1")
	require.NoError(t, err)
	assert.Contains(t, objs, "warehouse:w1")
}

func TestCheckRetriesOnStoreUnavailable(t *testing.T) {
	backend := &flakyBackend{InMemoryBackend: NewInMemoryBackend(), failuresLeft: 2}
	c := NewClient(backend, 4, 10)
	ctx := context.Background()
	require.NoError(t, c.Write(ctx, []Tuple{{User: "user:u1", Relation: "ownership", Object: "warehouse:w1"}}, nil))

	ok, err := c.Check(ctx, "user:u1", "ownership", "warehouse:w1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, backend.failuresLeft)
}

func TestCheckGivesUpAfterMaxRetries(t *testing.T) {
	backend := &flakyBackend{InMemoryBackend: NewInMemoryBackend(), failuresLeft: 100}
	c := NewClient(backend, 4, 10)

	_, err := c.Check(context.Background(), "user:u1", "ownership", "warehouse:w1")
	require.Error(t, err)
	assert.ErrorIs(t, err, catalogerr.ErrStoreUnavailable)
}

func TestTupleIDHelpers(t *testing.T) {
	assert.Equal(t, "warehouse:w1", TupleID("warehouse", "w1"))
	assert.Equal(t, "role:r1#assignee", UsersetID("role", "r1", "assignee"))
}
