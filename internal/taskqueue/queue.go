package taskqueue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/lakekeeper/catalog-authz/internal/catalogerr"
	"github.com/lakekeeper/catalog-authz/internal/idgen"
)

// queueMetrics holds the OTel instruments for the task queue (SPEC_FULL
// §2 DOMAIN STACK: "task-queue depth gauge"). Instruments are registered
// against the global provider at init time, so they forward to whatever
// MeterProvider internal/obsmetrics.Bootstrap installs.
var queueMetrics struct {
	scheduled metric.Int64Counter
	picked    metric.Int64Counter
	finished  metric.Int64Counter
	depth     metric.Int64ObservableGauge
}

func init() {
	m := otel.Meter("github.com/lakekeeper/catalog-authz/taskqueue")
	queueMetrics.scheduled, _ = m.Int64Counter("catalogauthz.taskqueue.scheduled",
		metric.WithDescription("Tasks inserted into the queue"), metric.WithUnit("{task}"))
	queueMetrics.picked, _ = m.Int64Counter("catalogauthz.taskqueue.picked",
		metric.WithDescription("Tasks transitioned to running by Pick"), metric.WithUnit("{task}"))
	queueMetrics.finished, _ = m.Int64Counter("catalogauthz.taskqueue.finished",
		metric.WithDescription("Tasks that reached a terminal status"), metric.WithUnit("{task}"))
	queueMetrics.depth, _ = m.Int64ObservableGauge("catalogauthz.taskqueue.depth",
		metric.WithDescription("Tasks currently scheduled and waiting to be picked"), metric.WithUnit("{task}"))
}

// dbHandle is satisfied by both *sql.DB and *sql.Tx, mirroring
// catalogstore's querier so Queue methods can run standalone or share a
// caller's transaction (catalogstore.Tx.Raw()).
type dbHandle interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queue is the Task Queue client. It shares its database handle with the
// Catalog Store it is built against.
type Queue struct {
	db     dbHandle
	config *ConfigProvider
}

// New wraps db (typically catalogstore.Store.DB(), or a *sql.Tx via
// catalogstore.Tx.Raw() for same-transaction scheduling) with config.
func New(db dbHandle, config *ConfigProvider) *Queue {
	if config == nil {
		config = NewConfigProvider(30 * time.Second)
	}
	q := &Queue{db: db, config: config}
	if queueMetrics.depth != nil {
		m := otel.Meter("github.com/lakekeeper/catalog-authz/taskqueue")
		_, _ = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			var depth int64
			if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM task WHERE status = 'scheduled'`).Scan(&depth); err != nil {
				return nil
			}
			o.ObserveInt64(queueMetrics.depth, depth)
			return nil
		}, queueMetrics.depth)
	}
	return q
}

// WithTx returns a Queue bound to the same transaction as tx, so Schedule
// (and Cancel) can participate in the Lifecycle Service's write
// transaction (§4.5 skeleton: "schedule/cancel tasks as required" before commit).
func (q *Queue) WithTx(tx dbHandle) *Queue {
	return &Queue{db: tx, config: q.config}
}

// Schedule inserts one or more tasks in a single batch (§4.7 "Schedule
// batch"). Duplicate (queue, entity, status=scheduled) rows within a
// race window are acceptable and deduplicated by scheduler callers, not
// by the store.
func (q *Queue) Schedule(ctx context.Context, tasks ...Task) ([]string, error) {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if t.ID == "" {
			t.ID = idgen.NewString()
		}
		if t.MaxAttempts == 0 {
			t.MaxAttempts = q.config.Get(t.Entity.WarehouseID, t.QueueName).MaxAttempts
		}
		if t.ScheduledFor.IsZero() {
			t.ScheduledFor = time.Now()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = time.Now()
		}
		nameParts, err := json.Marshal(t.Entity.NameParts)
		if err != nil {
			return nil, fmt.Errorf("taskqueue.Schedule: marshal entity name parts: %w", err)
		}

		var warehouseID, objectID sql.NullString
		if t.Entity.WarehouseID != "" {
			warehouseID = sql.NullString{String: t.Entity.WarehouseID, Valid: true}
		}
		entityID := t.Entity.ObjectID
		if entityID == "" {
			entityID = t.Entity.WarehouseID
		}
		if entityID != "" {
			objectID = sql.NullString{String: entityID, Valid: true}
		}

		_, err = q.db.ExecContext(ctx, `
INSERT INTO task (id, queue_name, status, attempt, max_attempts, payload, scheduled_for,
	parent_task_id, project_id, warehouse_id, entity_type, entity_id, entity_name_parts, created_at)
VALUES (?, ?, ?, 0, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, t.ID, t.QueueName, string(StatusScheduled), t.MaxAttempts, t.Payload, formatTime(t.ScheduledFor),
			t.ParentTaskID, nullIfEmpty(t.Entity.ProjectID), warehouseID, string(t.Entity.Kind), objectID, string(nameParts), formatTime(t.CreatedAt))
		if err != nil {
			return nil, wrapErr("taskqueue.Schedule", err)
		}
		ids = append(ids, t.ID)
		queueMetrics.scheduled.Add(ctx, 1, metric.WithAttributes(attribute.String("queue", t.QueueName)))
	}
	return ids, nil
}

// Pick atomically transitions at most one eligible row (scheduled, or
// running with a stale heartbeat) on queueName to running, bumping
// attempt and stamping picked_up_at/last_heartbeat_at (§4.7 Pick).
// Ordering: scheduled_for <= now, then FIFO by (scheduled_for, task_id).
func (q *Queue) Pick(ctx context.Context, queueName string, staleAfter time.Duration) (*Task, error) {
	now := time.Now()
	staleBefore := now.Add(-staleAfter)

	row := q.db.QueryRowContext(ctx, `
SELECT id FROM task
WHERE queue_name = ?
  AND (
    (status = 'scheduled' AND scheduled_for <= ?)
    OR (status = 'running' AND last_heartbeat_at <= ?)
  )
ORDER BY scheduled_for ASC, id ASC
LIMIT 1
`, queueName, formatTime(now), formatTime(staleBefore))

	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("taskqueue.Pick", err)
	}

	res, err := q.db.ExecContext(ctx, `
UPDATE task SET status = 'running', attempt = attempt + 1, picked_up_at = ?, last_heartbeat_at = ?
WHERE id = ? AND (
    (status = 'scheduled' AND scheduled_for <= ?)
    OR (status = 'running' AND last_heartbeat_at <= ?)
  )
`, formatTime(now), formatTime(now), id, formatTime(now), formatTime(staleBefore))
	if err != nil {
		return nil, wrapErr("taskqueue.Pick", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, wrapErr("taskqueue.Pick", err)
	}
	if n == 0 {
		// Another worker won the race between the SELECT and the
		// UPDATE; the caller should simply try again later.
		return nil, nil
	}

	t, found, err := q.getByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	queueMetrics.picked.Add(ctx, 1, metric.WithAttributes(attribute.String("queue", queueName)))
	return &t, nil
}

// Heartbeat refreshes last_heartbeat_at and progress for a running task.
func (q *Queue) Heartbeat(ctx context.Context, taskID, progress string) error {
	res, err := q.db.ExecContext(ctx, `
UPDATE task SET last_heartbeat_at = ?, progress = ? WHERE id = ? AND status = 'running'
`, formatTime(time.Now()), progress, taskID)
	if err != nil {
		return wrapErr("taskqueue.Heartbeat", err)
	}
	return requireAffected(res, "taskqueue.Heartbeat", taskID)
}

// RecordSuccess writes task_log(final_status=success) and deletes the
// task row in one transaction (§4.7 Success). db must be a *sql.DB (this
// call spans two statements that must be atomic together); if q was built
// with WithTx, the caller's outer transaction already provides atomicity.
func (q *Queue) RecordSuccess(ctx context.Context, taskID string) error {
	db, ok := q.db.(*sql.DB)
	if !ok {
		return q.finish(ctx, taskID, FinalSuccess, "")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("taskqueue.RecordSuccess", err)
	}
	defer tx.Rollback()
	if err := q.WithTx(tx).finish(ctx, taskID, FinalSuccess, ""); err != nil {
		return err
	}
	return wrapErr("taskqueue.RecordSuccess", tx.Commit())
}

// RecordFailure either reschedules (attempts remain) or terminally fails
// a task (§4.7 Failure). backoff is the delay before the next attempt.
func (q *Queue) RecordFailure(ctx context.Context, taskID, errMsg string, backoff time.Duration) (rescheduled bool, err error) {
	t, found, err := q.getByID(ctx, taskID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, catalogerr.NewNotFound("task", taskID)
	}

	if t.Attempt < t.MaxAttempts {
		res, execErr := q.db.ExecContext(ctx, `
UPDATE task SET status = 'scheduled', scheduled_for = ? WHERE id = ?
`, formatTime(time.Now().Add(backoff)), taskID)
		if execErr != nil {
			return false, wrapErr("taskqueue.RecordFailure", execErr)
		}
		if rerr := requireAffected(res, "taskqueue.RecordFailure", taskID); rerr != nil {
			return false, rerr
		}
		return true, nil
	}

	return false, q.finish(ctx, taskID, FinalFailed, errMsg)
}

// Cancel terminates a scheduled task (§4.7 Cancel): running tasks must
// first transition to stopping via RequestStop.
func (q *Queue) Cancel(ctx context.Context, taskID string) error {
	t, found, err := q.getByID(ctx, taskID)
	if err != nil {
		return err
	}
	if !found {
		return catalogerr.NewNotFound("task", taskID)
	}
	if t.Status != StatusScheduled {
		return catalogerr.NewConflict("task", "CancelRequiresScheduledStatus")
	}
	return q.finish(ctx, taskID, FinalCancelled, "")
}

// RequestStop transitions a running task to stopping. No signal is
// delivered to the in-flight worker (§5 cancellation: no explicit
// cancellation signal mid-task), and Heartbeat no longer matches the row
// once it is stopping. Worker checks for the transition when its handler
// returns and then records the stopped entry via ObserveStop instead of
// success or failure.
func (q *Queue) RequestStop(ctx context.Context, taskID string) error {
	res, err := q.db.ExecContext(ctx, `UPDATE task SET status = 'stopping' WHERE id = ? AND status = 'running'`, taskID)
	if err != nil {
		return wrapErr("taskqueue.RequestStop", err)
	}
	return requireAffected(res, "taskqueue.RequestStop", taskID)
}

// ObserveStop is called by a worker that notices its task moved to
// stopping; it writes the terminal stopped log entry.
func (q *Queue) ObserveStop(ctx context.Context, taskID string) error {
	return q.finish(ctx, taskID, FinalStopped, "")
}

func (q *Queue) finish(ctx context.Context, taskID string, final FinalStatus, errMsg string) error {
	t, found, err := q.getByID(ctx, taskID)
	if err != nil {
		return err
	}
	if !found {
		return catalogerr.NewNotFound("task", taskID)
	}

	nameParts, merr := json.Marshal(t.Entity.NameParts)
	if merr != nil {
		return fmt.Errorf("taskqueue.finish: marshal entity name parts: %w", merr)
	}
	var warehouseID, objectID sql.NullString
	if t.Entity.WarehouseID != "" {
		warehouseID = sql.NullString{String: t.Entity.WarehouseID, Valid: true}
	}
	entityID := t.Entity.ObjectID
	if entityID == "" {
		entityID = t.Entity.WarehouseID
	}
	if entityID != "" {
		objectID = sql.NullString{String: entityID, Valid: true}
	}

	now := time.Now()
	_, err = q.db.ExecContext(ctx, `
INSERT INTO task_log (id, task_id, queue_name, attempt, final_status, error_message,
	project_id, warehouse_id, entity_type, entity_id, entity_name_parts, created_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, idgen.NewString(), t.ID, t.QueueName, t.Attempt, string(final), nullIfEmpty(errMsg),
		nullIfEmpty(t.Entity.ProjectID), warehouseID, string(t.Entity.Kind), objectID, string(nameParts),
		formatTime(t.CreatedAt), formatTime(now))
	if err != nil {
		return wrapErr("taskqueue.finish", err)
	}

	res, err := q.db.ExecContext(ctx, `DELETE FROM task WHERE id = ?`, taskID)
	if err != nil {
		return wrapErr("taskqueue.finish", err)
	}
	if err := requireAffected(res, "taskqueue.finish", taskID); err != nil {
		return err
	}
	queueMetrics.finished.Add(ctx, 1, metric.WithAttributes(
		attribute.String("queue", t.QueueName), attribute.String("final_status", string(final))))
	return nil
}

func (q *Queue) getByID(ctx context.Context, id string) (Task, bool, error) {
	row := q.db.QueryRowContext(ctx, taskSelect+` WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, false, nil
	}
	if err != nil {
		return Task{}, false, wrapErr("taskqueue.getByID", err)
	}
	return t, true, nil
}

// GetByID exposes task lookup for callers (e.g. the lifecycle service
// cancelling a specific tabular_expiration task by id).
func (q *Queue) GetByID(ctx context.Context, id string) (Task, bool, error) {
	return q.getByID(ctx, id)
}

const taskSelect = `
SELECT id, queue_name, status, attempt, max_attempts, payload, scheduled_for, picked_up_at,
	last_heartbeat_at, progress, parent_task_id, project_id, warehouse_id, entity_type, entity_id,
	entity_name_parts, created_at
FROM task`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (Task, error) {
	var t Task
	var status, entityType, payload, scheduledFor, createdAt string
	var pickedUpAt, lastHeartbeatAt, progress, parentTaskID, projectID, warehouseID, entityID, nameParts sql.NullString
	if err := r.Scan(&t.ID, &t.QueueName, &status, &t.Attempt, &t.MaxAttempts, &payload, &scheduledFor, &pickedUpAt,
		&lastHeartbeatAt, &progress, &parentTaskID, &projectID, &warehouseID, &entityType, &entityID, &nameParts, &createdAt); err != nil {
		return Task{}, err
	}
	t.Status = Status(status)
	t.Entity.Kind = EntityKind(entityType)
	t.Payload = payload
	t.ScheduledFor = parseTime(scheduledFor)
	t.CreatedAt = parseTime(createdAt)
	if pickedUpAt.Valid {
		v := parseTime(pickedUpAt.String)
		t.PickedUpAt = &v
	}
	if lastHeartbeatAt.Valid {
		v := parseTime(lastHeartbeatAt.String)
		t.LastHeartbeatAt = &v
	}
	t.Progress = progress.String
	if parentTaskID.Valid {
		v := parentTaskID.String
		t.ParentTaskID = &v
	}
	t.Entity.ProjectID = projectID.String
	t.Entity.WarehouseID = warehouseID.String
	if entityID.Valid && t.Entity.Kind != EntityWarehouse {
		t.Entity.ObjectID = entityID.String
	}
	if nameParts.Valid && nameParts.String != "" {
		_ = json.Unmarshal([]byte(nameParts.String), &t.Entity.NameParts)
	}
	return t, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

func requireAffected(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(op, err)
	}
	if n == 0 {
		return catalogerr.NewNotFound("task", id)
	}
	return nil
}
