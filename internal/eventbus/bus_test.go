package eventbus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	id       string
	priority int
	kinds    []EventKind
	calls    *[]string
	err      error
}

func (h *recordingHandler) ID() string           { return h.id }
func (h *recordingHandler) Priority() int        { return h.priority }
func (h *recordingHandler) Handles() []EventKind { return h.kinds }
func (h *recordingHandler) Handle(_ context.Context, _ *Event, result *Result) error {
	*h.calls = append(*h.calls, h.id)
	if h.err != nil {
		result.Warnings = append(result.Warnings, h.err.Error())
		return h.err
	}
	return nil
}

func TestDispatchOrdersByPriority(t *testing.T) {
	var calls []string
	b := New(nil)
	b.Register(&recordingHandler{id: "second", priority: 20, kinds: []EventKind{EventTableCreated}, calls: &calls})
	b.Register(&recordingHandler{id: "first", priority: 10, kinds: []EventKind{EventTableCreated}, calls: &calls})

	b.Dispatch(context.Background(), &Event{Kind: EventTableCreated})
	require.Equal(t, []string{"first", "second"}, calls)
}

func TestDispatchSkipsNonMatchingHandlers(t *testing.T) {
	var calls []string
	b := New(nil)
	b.Register(&recordingHandler{id: "tables-only", priority: 10, kinds: []EventKind{EventTableCreated}, calls: &calls})

	b.Dispatch(context.Background(), &Event{Kind: EventNamespaceCreated})
	assert.Empty(t, calls)
}

func TestDispatchContinuesAfterHandlerError(t *testing.T) {
	var calls []string
	b := New(nil)
	b.Register(&recordingHandler{id: "failing", priority: 10, kinds: []EventKind{EventTableCreated}, calls: &calls, err: errors.New("boom")})
	b.Register(&recordingHandler{id: "healthy", priority: 20, kinds: []EventKind{EventTableCreated}, calls: &calls})

	result := b.Dispatch(context.Background(), &Event{Kind: EventTableCreated})
	require.Equal(t, []string{"failing", "healthy"}, calls)
	assert.Contains(t, result.Warnings, "boom")
}

func TestUnregister(t *testing.T) {
	b := New(nil)
	h := &recordingHandler{id: "h", priority: 1, kinds: []EventKind{EventTableCreated}, calls: &[]string{}}
	b.Register(h)
	require.Len(t, b.Handlers(), 1)

	ok := b.Unregister("h")
	require.True(t, ok)
	require.Empty(t, b.Handlers())

	ok = b.Unregister("missing")
	require.False(t, ok)
}

func TestDispatchNilEvent(t *testing.T) {
	b := New(nil)
	result := b.Dispatch(context.Background(), nil)
	require.NotNil(t, result)
}
