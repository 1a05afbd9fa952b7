package catalogstore

import (
	"context"
	"database/sql"
	"time"
)

// CreateProject inserts a new project row within tx (§4.6 begin_write).
// Name uniqueness per server is enforced by the project.name UNIQUE
// index; a collision surfaces as ErrConflict via wrapDBError.
func (t *Tx) CreateProject(ctx context.Context, p Project) error {
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO project (id, name, created_at) VALUES (?, ?, ?)
`, p.ID, p.Name, formatTime(p.CreatedAt))
	return wrapDBError("catalogstore.CreateProject", err)
}

// GetProjectByID looks up a project by id, within tx's view.
func (t *Tx) GetProjectByID(ctx context.Context, id string) (Project, bool, error) {
	return getProjectByID(ctx, t.tx, id)
}

// GetProjectByID looks up a project by id against the store's committed state.
func (s *Store) GetProjectByID(ctx context.Context, id string) (Project, bool, error) {
	return getProjectByID(ctx, s.db, id)
}

func getProjectByID(ctx context.Context, q querier, id string) (Project, bool, error) {
	row := q.QueryRowContext(ctx, `
SELECT id, name, created_at, deleted_at FROM project WHERE id = ? AND deleted_at IS NULL
`, id)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return Project{}, false, nil
	}
	if err != nil {
		return Project{}, false, wrapDBError("catalogstore.GetProjectByID", err)
	}
	return p, true, nil
}

// GetProjectByName looks up a project by its case-insensitive name,
// echoing the row's stored casing (callers that must echo the caller's
// own casing do so themselves, per §4.6 case folding).
func (s *Store) GetProjectByName(ctx context.Context, name string) (Project, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, name, created_at, deleted_at FROM project WHERE name = ? AND deleted_at IS NULL
`, name)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return Project{}, false, nil
	}
	if err != nil {
		return Project{}, false, wrapDBError("catalogstore.GetProjectByName", err)
	}
	return p, true, nil
}

// RenameProject updates a project's name within tx.
func (t *Tx) RenameProject(ctx context.Context, id, newName string) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE project SET name = ? WHERE id = ? AND deleted_at IS NULL`, newName, id)
	if err != nil {
		return wrapDBError("catalogstore.RenameProject", err)
	}
	return requireRowsAffected(res, "catalogstore.RenameProject", id)
}

// DeleteProjectChildren reports the ids of every warehouse still attached
// to the project, for the lifecycle service to cancel/cascade before the
// project row itself is removed (§4.5 Delete: "CS-delete recursively
// returns child ... ids").
func (t *Tx) DeleteProjectChildren(ctx context.Context, projectID string) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id FROM warehouse WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, wrapDBError("catalogstore.DeleteProjectChildren", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapDBError("catalogstore.DeleteProjectChildren", err)
		}
		ids = append(ids, id)
	}
	return ids, wrapDBError("catalogstore.DeleteProjectChildren", rows.Err())
}

// DeleteProject removes the project row. Callers must have already
// removed (or be removing, in the same transaction) every child
// warehouse, since the schema has no ON DELETE CASCADE (deletion order
// is owned by the lifecycle service, not the store).
func (t *Tx) DeleteProject(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM project WHERE id = ?`, id)
	if err != nil {
		return wrapDBError("catalogstore.DeleteProject", err)
	}
	return requireRowsAffected(res, "catalogstore.DeleteProject", id)
}

// ListProjectsPage returns up to pageSize projects ordered by
// (created_at desc, id desc), optionally restricted to ids (nil means
// unrestricted — used when the caller already resolved a visible-id set
// via AZ.ListProjects, §4.3).
func (s *Store) ListProjectsPage(ctx context.Context, ids []string, pageSize int, token string) ([]Project, string, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	cur, err := decodePageToken(token)
	if err != nil {
		return nil, "", err
	}

	query := `SELECT id, name, created_at, deleted_at FROM project WHERE deleted_at IS NULL`
	args := []any{}
	if ids != nil {
		if len(ids) == 0 {
			return nil, "", nil
		}
		query += ` AND id IN (` + placeholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	if !cur.createdAt.IsZero() {
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, formatTime(cur.createdAt), formatTime(cur.createdAt), cur.id)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, pageSize+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", wrapDBError("catalogstore.ListProjectsPage", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		p, err := scanProjectRows(rows)
		if err != nil {
			return nil, "", wrapDBError("catalogstore.ListProjectsPage", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, "", wrapDBError("catalogstore.ListProjectsPage", err)
	}

	var next string
	if len(out) > pageSize {
		last := out[pageSize-1]
		next = encodePageToken(pageToken{createdAt: last.CreatedAt, id: last.ID})
		out = out[:pageSize]
	}
	return out, next, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(r rowScanner) (Project, error) {
	var p Project
	var createdAt string
	var deletedAt sql.NullString
	if err := r.Scan(&p.ID, &p.Name, &createdAt, &deletedAt); err != nil {
		return Project{}, err
	}
	p.CreatedAt = parseTime(createdAt)
	p.DeletedAt = parseTimePtr(deletedAt)
	return p, nil
}

func scanProjectRows(rows *sql.Rows) (Project, error) { return scanProject(rows) }

func requireRowsAffected(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError(op, err)
	}
	if n == 0 {
		return wrapDBError(op, sql.ErrNoRows)
	}
	return nil
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

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}
