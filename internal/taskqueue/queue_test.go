package taskqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakekeeper/catalog-authz/internal/catalogstore"
)

func newTestQueue(t *testing.T) (*catalogstore.Store, *Queue) {
	t.Helper()
	s, err := catalogstore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, New(s.DB(), NewConfigProvider(0))
}

func TestScheduleAndPick(t *testing.T) {
	_, q := newTestQueue(t)
	ctx := context.Background()

	ids, err := q.Schedule(ctx, Task{
		QueueName: "tabular_expiration",
		Entity:    WarehouseEntity("proj1", "wh1", "my-warehouse"),
	})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	picked, err := q.Pick(ctx, "tabular_expiration", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, picked)
	assert.Equal(t, ids[0], picked.ID)
	assert.Equal(t, StatusRunning, picked.Status)
	assert.Equal(t, 1, picked.Attempt)
	assert.Equal(t, "wh1", picked.Entity.WarehouseID)
	assert.Equal(t, []string{"my-warehouse"}, picked.Entity.NameParts)

	again, err := q.Pick(ctx, "tabular_expiration", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, again, "a fresh running task is not eligible for re-pick")
}

func TestPickIsAtMostOnceUnderConcurrency(t *testing.T) {
	_, q := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Schedule(ctx, Task{QueueName: "tabular_expiration", Entity: ProjectEntity("proj1", "p")})
	require.NoError(t, err)

	const workers = 8
	results := make(chan *Task, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			task, err := q.Pick(ctx, "tabular_expiration", time.Minute)
			results <- task
			errs <- err
		}()
	}

	var won int
	for i := 0; i < workers; i++ {
		require.NoError(t, <-errs)
		if r := <-results; r != nil {
			won++
		}
	}
	assert.Equal(t, 1, won, "exactly one concurrent picker should win the single scheduled task")
}

func TestPickRecoversStaleRunningTask(t *testing.T) {
	_, q := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Schedule(ctx, Task{QueueName: "q", Entity: ProjectEntity("p1", "n")})
	require.NoError(t, err)

	first, err := q.Pick(ctx, "q", 0)
	require.NoError(t, err)
	require.NotNil(t, first)

	// staleAfter=0 means "immediately stale", simulating a crashed worker
	// whose heartbeat never refreshed.
	second, err := q.Pick(ctx, "q", 0)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Attempt)
}

func TestHeartbeatRefreshesRunningTask(t *testing.T) {
	_, q := newTestQueue(t)
	ctx := context.Background()

	ids, err := q.Schedule(ctx, Task{QueueName: "q", Entity: ProjectEntity("p1", "n")})
	require.NoError(t, err)
	_, err = q.Pick(ctx, "q", time.Minute)
	require.NoError(t, err)

	require.NoError(t, q.Heartbeat(ctx, ids[0], "50%"))

	task, found, err := q.GetByID(ctx, ids[0])
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "50%", task.Progress)
}

func TestRecordSuccessMovesTaskToLog(t *testing.T) {
	_, q := newTestQueue(t)
	ctx := context.Background()

	ids, err := q.Schedule(ctx, Task{QueueName: "q", Entity: ProjectEntity("p1", "n")})
	require.NoError(t, err)
	_, err = q.Pick(ctx, "q", time.Minute)
	require.NoError(t, err)

	require.NoError(t, q.RecordSuccess(ctx, ids[0]))

	_, found, err := q.GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.False(t, found, "a successful task should be deleted from the active table")

	entries, _, err := q.List(ctx, ListFilter{QueueName: "q"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, string(FinalSuccess), entries[0].Status)
}

func TestRecordFailureReschedulesUntilMaxAttempts(t *testing.T) {
	_, q := newTestQueue(t)
	ctx := context.Background()

	ids, err := q.Schedule(ctx, Task{QueueName: "q", Entity: ProjectEntity("p1", "n"), MaxAttempts: 2})
	require.NoError(t, err)

	_, err = q.Pick(ctx, "q", time.Minute)
	require.NoError(t, err)
	rescheduled, err := q.RecordFailure(ctx, ids[0], "boom", 0)
	require.NoError(t, err)
	assert.True(t, rescheduled)

	task, found, err := q.GetByID(ctx, ids[0])
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StatusScheduled, task.Status)

	_, err = q.Pick(ctx, "q", time.Minute)
	require.NoError(t, err)
	rescheduled, err = q.RecordFailure(ctx, ids[0], "boom again", 0)
	require.NoError(t, err)
	assert.False(t, rescheduled, "attempt 2 of max_attempts=2 is terminal")

	_, found, err = q.GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.False(t, found)

	entries, _, err := q.List(ctx, ListFilter{QueueName: "q"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, string(FinalFailed), entries[0].Status)
	assert.Equal(t, "boom again", entries[0].ErrorMessage)
}

func TestCancelRequiresScheduledStatus(t *testing.T) {
	_, q := newTestQueue(t)
	ctx := context.Background()

	ids, err := q.Schedule(ctx, Task{QueueName: "q", Entity: ProjectEntity("p1", "n")})
	require.NoError(t, err)

	_, err = q.Pick(ctx, "q", time.Minute)
	require.NoError(t, err)
	err = q.Cancel(ctx, ids[0])
	assert.Error(t, err, "running tasks cannot be cancelled directly")

	require.NoError(t, q.RequestStop(ctx, ids[0]))
	require.NoError(t, q.ObserveStop(ctx, ids[0]))

	entries, _, err := q.List(ctx, ListFilter{QueueName: "q"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, string(FinalStopped), entries[0].Status)
}

func TestCancelScheduledTask(t *testing.T) {
	_, q := newTestQueue(t)
	ctx := context.Background()

	ids, err := q.Schedule(ctx, Task{QueueName: "q", Entity: ProjectEntity("p1", "n")})
	require.NoError(t, err)

	require.NoError(t, q.Cancel(ctx, ids[0]))

	_, found, err := q.GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.False(t, found)

	entries, _, err := q.List(ctx, ListFilter{QueueName: "q"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, string(FinalCancelled), entries[0].Status)
}

func TestListFiltersByWarehouseAndStatus(t *testing.T) {
	_, q := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Schedule(ctx,
		Task{QueueName: "q", Entity: WarehouseEntity("p1", "wh-a", "a")},
		Task{QueueName: "q", Entity: WarehouseEntity("p1", "wh-b", "b")},
	)
	require.NoError(t, err)

	entries, _, err := q.List(ctx, ListFilter{WarehouseID: "wh-a", Status: string(StatusScheduled)})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "wh-a", entries[0].Entity.WarehouseID)
	assert.Equal(t, string(StatusScheduled), entries[0].Status)
}

func TestScheduleWithinCatalogStoreTransaction(t *testing.T) {
	s, q := newTestQueue(t)
	ctx := context.Background()

	tx, err := s.BeginWrite(ctx)
	require.NoError(t, err)
	txQueue := q.WithTx(tx.Raw())
	_, err = txQueue.Schedule(ctx, Task{QueueName: "q", Entity: ProjectEntity("p1", "n")})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	entries, _, err := q.List(ctx, ListFilter{QueueName: "q"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, string(StatusScheduled), entries[0].Status)
}
