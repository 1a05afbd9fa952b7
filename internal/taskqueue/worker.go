package taskqueue

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Handler processes one picked task and returns when done. The worker
// heartbeats the task in the background while the handler runs (see
// runOne) and records success/failure from the returned error.
type Handler func(ctx context.Context, task Task) error

// Worker polls a single queue name, picking and running tasks with a
// bounded number of concurrent workers (§4.7 expansion: "spec.md
// specifies the queue's contract but not a worker; this is that worker").
// It mirrors the teacher's ephemeral-store sweeper: a poll loop guarded by
// a semaphore, spawned goroutines tracked by an errgroup so Run can wait
// for in-flight work to drain on shutdown.
type Worker struct {
	queue       *Queue
	queueName   string
	handler     Handler
	concurrency int64
	pollInterval time.Duration
	staleAfter   time.Duration
	log          *slog.Logger
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithConcurrency bounds the number of tasks this worker runs at once.
func WithConcurrency(n int64) WorkerOption {
	return func(w *Worker) { w.concurrency = n }
}

// WithPollInterval sets how often the worker attempts a Pick when idle.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) { w.pollInterval = d }
}

// WithStaleAfter overrides the heartbeat staleness threshold used to
// reclaim a task abandoned by a crashed worker.
func WithStaleAfter(d time.Duration) WorkerOption {
	return func(w *Worker) { w.staleAfter = d }
}

// WithLogger attaches a logger; nil falls back to slog.Default().
func WithLogger(log *slog.Logger) WorkerOption {
	return func(w *Worker) { w.log = log }
}

// NewWorker builds a Worker over queue for queueName, invoking handler for
// each picked task.
func NewWorker(queue *Queue, queueName string, handler Handler, opts ...WorkerOption) *Worker {
	w := &Worker{
		queue:        queue,
		queueName:    queueName,
		handler:      handler,
		concurrency:  4,
		pollInterval: time.Second,
		staleAfter:   DefaultQueueConfig.HeartbeatTimeout,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled, fanning picked tasks out to up to
// concurrency concurrent handler invocations, and waits for all in-flight
// handlers to finish before returning (graceful drain on shutdown).
func (w *Worker) Run(ctx context.Context) error {
	sem := semaphore.NewWeighted(w.concurrency)
	g, gctx := errgroup.WithContext(ctx)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		case <-ticker.C:
			if err := sem.Acquire(gctx, 1); err != nil {
				return g.Wait()
			}
			task, err := w.queue.Pick(gctx, w.queueName, w.staleAfter)
			if err != nil {
				sem.Release(1)
				w.log.ErrorContext(ctx, "task pick failed", slog.String("queue", w.queueName), slog.Any("error", err))
				continue
			}
			if task == nil {
				sem.Release(1)
				continue
			}
			g.Go(func() error {
				defer sem.Release(1)
				w.runOne(ctx, *task)
				return nil
			})
		}
	}
}

// runOne executes one task with a background heartbeat loop and records
// its outcome. It runs against a context derived from the long-lived
// parent (not gctx), so a task in flight when Run's poll loop is cancelled
// still gets a chance to finish and self-report before the process exits —
// mirroring the teacher's "let in-flight work finish" drain semantics.
func (w *Worker) runOne(parent context.Context, task Task) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	defer cancel()

	heartbeatEvery := w.staleAfter / 3
	if heartbeatEvery <= 0 {
		heartbeatEvery = time.Second
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(heartbeatEvery)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := w.queue.Heartbeat(ctx, task.ID, ""); err != nil {
					w.log.WarnContext(ctx, "heartbeat failed", slog.String("task_id", task.ID), slog.Any("error", err))
				}
			}
		}
	}()

	err := w.handler(ctx, task)
	close(stop)
	<-done

	if cur, found, getErr := w.queue.GetByID(context.WithoutCancel(parent), task.ID); getErr == nil && found && cur.Status == StatusStopping {
		if recErr := w.queue.ObserveStop(context.WithoutCancel(parent), task.ID); recErr != nil {
			w.log.ErrorContext(parent, "record stop failed", slog.String("task_id", task.ID), slog.Any("error", recErr))
		}
		return
	}

	if err != nil {
		cfg := w.queue.config.Get(task.Entity.WarehouseID, task.QueueName)
		backoff := cfg.NewBackOff().NextBackOff()
		rescheduled, recErr := w.queue.RecordFailure(context.WithoutCancel(parent), task.ID, err.Error(), backoff)
		if recErr != nil {
			w.log.ErrorContext(parent, "record failure failed", slog.String("task_id", task.ID), slog.Any("error", recErr))
			return
		}
		w.log.WarnContext(parent, "task failed", slog.String("task_id", task.ID), slog.Bool("rescheduled", rescheduled), slog.Any("error", err))
		return
	}

	if recErr := w.queue.RecordSuccess(context.WithoutCancel(parent), task.ID); recErr != nil {
		w.log.ErrorContext(parent, "record success failed", slog.String("task_id", task.ID), slog.Any("error", recErr))
	}
}
