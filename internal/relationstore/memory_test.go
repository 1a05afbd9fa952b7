package relationstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInheritedDerivedRelation(t *testing.T) {
	backend := NewInMemoryBackend()
	ctx := context.Background()

	require.NoError(t, backend.WriteBatch(ctx, []Tuple{
		{User: "user:owner", Relation: "ownership", Object: "warehouse:wh1"},
		{User: "warehouse:wh1", Relation: "parent", Object: "namespace:ns1"},
	}, nil))

	ok, err := backend.Check(ctx, "user:owner", "can_create_table", "namespace:ns1")
	require.NoError(t, err)
	assert.True(t, ok, "ownership on the parent warehouse should imply can_create_table on its namespace")
}

func TestDerivedRelationNotGrantedWithoutInheritance(t *testing.T) {
	backend := NewInMemoryBackend()
	ctx := context.Background()
	require.NoError(t, backend.WriteBatch(ctx, []Tuple{
		{User: "user:owner", Relation: "ownership", Object: "warehouse:wh1"},
		{User: "warehouse:wh1", Relation: "parent", Object: "namespace:ns1"},
	}, nil))

	// can_delete does not inherit: ownership on the parent warehouse must
	// not imply the right to delete the child namespace.
	ok, err := backend.Check(ctx, "user:owner", "can_delete", "namespace:ns1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUsersetExpansionViaRoleAssignee(t *testing.T) {
	backend := NewInMemoryBackend()
	ctx := context.Background()
	require.NoError(t, backend.WriteBatch(ctx, []Tuple{
		{User: "user:alice", Relation: "assignee", Object: "role:r1"},
		{User: "role:r1#assignee", Relation: "ownership", Object: "warehouse:wh1"},
	}, nil))

	ok, err := backend.Check(ctx, "user:alice", "ownership", "warehouse:wh1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStaleReadRoundsSimulatesGhostTuples(t *testing.T) {
	backend := NewInMemoryBackend()
	backend.StaleReadRounds = 1
	ctx := context.Background()

	tup := Tuple{User: "user:u1", Relation: "ownership", Object: "warehouse:w1"}
	require.NoError(t, backend.WriteBatch(ctx, []Tuple{tup}, nil))
	require.NoError(t, backend.WriteBatch(ctx, nil, []Tuple{tup}))

	// MinimizeLatency still sees the ghost for one round.
	page, _, err := backend.ReadPage(ctx, TupleKey{Object: "warehouse:w1"}, 10, "", MinimizeLatency)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	// HigherConsistency never sees it.
	page, _, err = backend.ReadPage(ctx, TupleKey{Object: "warehouse:w1"}, 10, "", HigherConsistency)
	require.NoError(t, err)
	assert.Empty(t, page)

	// The ghost round is consumed; a second MinimizeLatency read is clean.
	page, _, err = backend.ReadPage(ctx, TupleKey{Object: "warehouse:w1"}, 10, "", MinimizeLatency)
	require.NoError(t, err)
	assert.Empty(t, page)
}
