package taskqueue

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ListEntry is one row of a combined listing: an in-flight Task or a
// terminal LogEntry, normalized to a common shape for display (§4.7
// "List tasks... combining active and terminal history").
type ListEntry struct {
	ID           string
	QueueName    string
	Status       string // scheduled|running|stopping, or a FinalStatus value
	Attempt      int
	Entity       EntityRef
	CreatedAt    time.Time
	FinishedAt   *time.Time
	ErrorMessage string
}

// ListFilter narrows List to a scope and a set of optional predicates.
// ProjectID or WarehouseID (not both) establishes the scope every row must
// belong to (§4.7 "scoped to a warehouse or project").
type ListFilter struct {
	ProjectID    string
	WarehouseID  string
	QueueName    string
	EntityType   EntityKind
	EntityID     string
	Status       string // matches a Task.Status or LogEntry.FinalStatus value; empty means any
	CreatedAfter time.Time
	CreatedBefore time.Time
	PageSize     int
	PageToken    string
}

// List returns a page of tasks and log entries matching filter, newest
// first by (created_at, id) — the same cursor shape as the Catalog
// Store's listings.
func (q *Queue) List(ctx context.Context, filter ListFilter) ([]ListEntry, string, error) {
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	var after time.Time
	var afterID string
	if filter.PageToken != "" {
		var err error
		after, afterID, err = decodeListToken(filter.PageToken)
		if err != nil {
			return nil, "", err
		}
	}

	taskRows, err := q.listTasks(ctx, filter, after, afterID, pageSize+1)
	if err != nil {
		return nil, "", err
	}
	logRows, err := q.listLogs(ctx, filter, after, afterID, pageSize+1)
	if err != nil {
		return nil, "", err
	}

	merged := mergeListEntries(taskRows, logRows, pageSize+1)
	var next string
	if len(merged) > pageSize {
		merged = merged[:pageSize]
		last := merged[len(merged)-1]
		next = encodeListToken(last.CreatedAt, last.ID)
	}
	return merged, next, nil
}

func (q *Queue) listTasks(ctx context.Context, f ListFilter, after time.Time, afterID string, limit int) ([]ListEntry, error) {
	query, args := buildListQuery(taskSelect, f, after, afterID, limit, false)
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("taskqueue.List", err)
	}
	defer rows.Close()

	var out []ListEntry
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, wrapErr("taskqueue.List", err)
		}
		out = append(out, ListEntry{
			ID: t.ID, QueueName: t.QueueName, Status: string(t.Status), Attempt: t.Attempt,
			Entity: t.Entity, CreatedAt: t.CreatedAt,
		})
	}
	return out, wrapErr("taskqueue.List", rows.Err())
}

const logSelect = `
SELECT id, task_id, queue_name, attempt, final_status, error_message, project_id, warehouse_id,
	entity_type, entity_id, entity_name_parts, created_at, finished_at
FROM task_log`

func (q *Queue) listLogs(ctx context.Context, f ListFilter, after time.Time, afterID string, limit int) ([]ListEntry, error) {
	query, args := buildListQuery(logSelect, f, after, afterID, limit, true)
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("taskqueue.List", err)
	}
	defer rows.Close()

	var out []ListEntry
	for rows.Next() {
		var id, taskID, queueName, finalStatus, createdAt, finishedAt string
		var attempt int
		var errMsg, projectID, warehouseID, entityID, nameParts sql.NullString
		var entityType string
		if err := rows.Scan(&id, &taskID, &queueName, &attempt, &finalStatus, &errMsg, &projectID, &warehouseID,
			&entityType, &entityID, &nameParts, &createdAt, &finishedAt); err != nil {
			return nil, wrapErr("taskqueue.List", err)
		}
		entity := EntityRef{Kind: EntityKind(entityType), ProjectID: projectID.String, WarehouseID: warehouseID.String, ObjectID: entityID.String}
		if nameParts.Valid && nameParts.String != "" {
			_ = json.Unmarshal([]byte(nameParts.String), &entity.NameParts)
		}
		finished := parseTime(finishedAt)
		out = append(out, ListEntry{
			ID: taskID, QueueName: queueName, Status: finalStatus, Attempt: attempt,
			Entity: entity, CreatedAt: parseTime(createdAt), FinishedAt: &finished, ErrorMessage: errMsg.String,
		})
		_ = id
	}
	return out, wrapErr("taskqueue.List", rows.Err())
}

// buildListQuery composes the WHERE clause shared by task and task_log
// listings. isLog selects the task_log column names where they differ
// (final_status vs status).
func buildListQuery(selectClause string, f ListFilter, after time.Time, afterID string, limit int, isLog bool) (string, []any) {
	var where []string
	var args []any

	if f.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if f.WarehouseID != "" {
		where = append(where, "warehouse_id = ?")
		args = append(args, f.WarehouseID)
	}
	if f.QueueName != "" {
		where = append(where, "queue_name = ?")
		args = append(args, f.QueueName)
	}
	if f.EntityType != "" {
		where = append(where, "entity_type = ?")
		args = append(args, string(f.EntityType))
	}
	if f.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, f.EntityID)
	}
	if f.Status != "" {
		if isLog {
			where = append(where, "final_status = ?")
		} else {
			where = append(where, "status = ?")
		}
		args = append(args, f.Status)
	}
	if !f.CreatedAfter.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, formatTime(f.CreatedAfter))
	}
	if !f.CreatedBefore.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, formatTime(f.CreatedBefore))
	}

	idCol := "id"
	if isLog {
		idCol = "task_id"
	}
	if !after.IsZero() {
		where = append(where, "(created_at < ? OR (created_at = ? AND "+idCol+" < ?))")
		args = append(args, formatTime(after), formatTime(after), afterID)
	}

	query := selectClause
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, " + idCol + " DESC LIMIT ?"
	args = append(args, limit)
	return query, args
}

// mergeListEntries merges two already-descending-sorted slices by
// (created_at desc, id desc), the way a SQL UNION ORDER BY would, and
// truncates to limit.
func mergeListEntries(a, b []ListEntry, limit int) []ListEntry {
	out := make([]ListEntry, 0, limit)
	i, j := 0, 0
	for len(out) < limit && (i < len(a) || j < len(b)) {
		switch {
		case i >= len(a):
			out = append(out, b[j])
			j++
		case j >= len(b):
			out = append(out, a[i])
			i++
		case a[i].CreatedAt.After(b[j].CreatedAt) || (a[i].CreatedAt.Equal(b[j].CreatedAt) && a[i].ID > b[j].ID):
			out = append(out, a[i])
			i++
		default:
			out = append(out, b[j])
			j++
		}
	}
	return out
}

// encodeListToken/decodeListToken are this package's own opaque-cursor
// codec (the catalogstore equivalent is unexported, so List keeps its own
// copy of the same "rfc3339nano|id" encoding).
func encodeListToken(t time.Time, id string) string {
	if id == "" {
		return ""
	}
	raw := fmt.Sprintf("%s|%s", t.UTC().Format(time.RFC3339Nano), id)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeListToken(tok string) (time.Time, string, error) {
	if tok == "" {
		return time.Time{}, "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("taskqueue: decode page token: %w", err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", fmt.Errorf("taskqueue: decode page token: malformed")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("taskqueue: decode page token: bad timestamp: %w", err)
	}
	return ts, parts[1], nil
}
