package catalogstore

import (
	"context"
	"database/sql"
)

// CreateRole inserts a new role row. source_id uniqueness per project is
// enforced by the role (project_id, source_id) UNIQUE index, which
// sqlite treats as satisfied-by-default for NULL source_id (§3.2: "only
// unique when present").
func (t *Tx) CreateRole(ctx context.Context, r Role) error {
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO role (id, project_id, name, description, source_id, created_at) VALUES (?, ?, ?, ?, ?, ?)
`, r.ID, r.ProjectID, r.Name, r.Description, r.SourceID, formatTime(r.CreatedAt))
	return wrapDBError("catalogstore.CreateRole", err)
}

func (t *Tx) GetRoleByID(ctx context.Context, id string) (Role, bool, error) {
	return getRoleByID(ctx, t.tx, id)
}

func (s *Store) GetRoleByID(ctx context.Context, id string) (Role, bool, error) {
	return getRoleByID(ctx, s.db, id)
}

func getRoleByID(ctx context.Context, q querier, id string) (Role, bool, error) {
	row := q.QueryRowContext(ctx, roleSelect+` WHERE id = ? AND deleted_at IS NULL`, id)
	r, err := scanRole(row)
	if err == sql.ErrNoRows {
		return Role{}, false, nil
	}
	if err != nil {
		return Role{}, false, wrapDBError("catalogstore.GetRoleByID", err)
	}
	return r, true, nil
}

const roleSelect = `SELECT id, project_id, name, description, source_id, created_at, deleted_at FROM role`

func scanRole(r rowScanner) (Role, error) {
	var role Role
	var description, sourceID sql.NullString
	var createdAt string
	var deletedAt sql.NullString
	if err := r.Scan(&role.ID, &role.ProjectID, &role.Name, &description, &sourceID, &createdAt, &deletedAt); err != nil {
		return Role{}, err
	}
	role.Description = description.String
	if sourceID.Valid {
		v := sourceID.String
		role.SourceID = &v
	}
	role.CreatedAt = parseTime(createdAt)
	role.DeletedAt = parseTimePtr(deletedAt)
	return role, nil
}

// UpdateRole changes name/description (§4.5 expansion: update_role).
func (t *Tx) UpdateRole(ctx context.Context, id, name, description string) error {
	res, err := t.tx.ExecContext(ctx, `
UPDATE role SET name = ?, description = ? WHERE id = ? AND deleted_at IS NULL
`, name, description, id)
	if err != nil {
		return wrapDBError("catalogstore.UpdateRole", err)
	}
	return requireRowsAffected(res, "catalogstore.UpdateRole", id)
}

// DeleteRole removes the role row outright (roles have no soft-delete
// profile, §3.2/§4.5 expansion).
func (t *Tx) DeleteRole(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM role WHERE id = ?`, id)
	if err != nil {
		return wrapDBError("catalogstore.DeleteRole", err)
	}
	return requireRowsAffected(res, "catalogstore.DeleteRole", id)
}

// ListRolesPage lists non-deleted roles in a project, paginated.
func (s *Store) ListRolesPage(ctx context.Context, projectID string, ids []string, pageSize int, token string) ([]Role, string, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	cur, err := decodePageToken(token)
	if err != nil {
		return nil, "", err
	}

	query := roleSelect + ` WHERE project_id = ? AND deleted_at IS NULL`
	args := []any{projectID}
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
		return nil, "", wrapDBError("catalogstore.ListRolesPage", err)
	}
	defer rows.Close()

	var out []Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, "", wrapDBError("catalogstore.ListRolesPage", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, "", wrapDBError("catalogstore.ListRolesPage", err)
	}

	var next string
	if len(out) > pageSize {
		last := out[pageSize-1]
		next = encodePageToken(pageToken{createdAt: last.CreatedAt, id: last.ID})
		out = out[:pageSize]
	}
	return out, next, nil
}
