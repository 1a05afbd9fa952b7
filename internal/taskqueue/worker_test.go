package taskqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerProcessesScheduledTaskToSuccess(t *testing.T) {
	_, q := newTestQueue(t)
	ctx := context.Background()

	ids, err := q.Schedule(ctx, Task{QueueName: "q", Entity: ProjectEntity("p1", "n")})
	require.NoError(t, err)

	var processed atomic.Bool
	w := NewWorker(q, "q", func(ctx context.Context, task Task) error {
		processed.Store(true)
		assert.Equal(t, ids[0], task.ID)
		return nil
	}, WithPollInterval(10*time.Millisecond), WithConcurrency(2))

	runCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	_ = w.Run(runCtx)

	assert.True(t, processed.Load())
	_, found, err := q.GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.False(t, found)

	entries, _, err := q.List(ctx, ListFilter{QueueName: "q"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, string(FinalSuccess), entries[0].Status)
}

func TestWorkerRecordsTerminalFailure(t *testing.T) {
	_, q := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Schedule(ctx, Task{QueueName: "q", Entity: ProjectEntity("p1", "n"), MaxAttempts: 1})
	require.NoError(t, err)

	w := NewWorker(q, "q", func(ctx context.Context, task Task) error {
		return errors.New("handler exploded")
	}, WithPollInterval(10*time.Millisecond), WithConcurrency(1))

	runCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	_ = w.Run(runCtx)

	entries, _, err := q.List(ctx, ListFilter{QueueName: "q"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, string(FinalFailed), entries[0].Status)
	assert.Equal(t, "handler exploded", entries[0].ErrorMessage)
}
