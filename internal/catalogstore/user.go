package catalogstore

import (
	"context"
	"database/sql"
)

// UpsertUser implements create_or_update_user (§4.5 expansion): an
// idempotent upsert keyed on the opaque UserId, writing no authorization
// graph edges (users are leaves, only ever referenced as the `user` side
// of a tuple).
func (t *Tx) UpsertUser(ctx context.Context, u User) error {
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO catalog_user (id, display_name, email, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET display_name = excluded.display_name, email = excluded.email, updated_at = excluded.updated_at
`, u.ID, u.DisplayName, u.Email, formatTime(u.CreatedAt), formatTime(u.UpdatedAt))
	return wrapDBError("catalogstore.UpsertUser", err)
}

func (t *Tx) GetUserByID(ctx context.Context, id string) (User, bool, error) {
	return getUserByID(ctx, t.tx, id)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (User, bool, error) {
	return getUserByID(ctx, s.db, id)
}

func getUserByID(ctx context.Context, q querier, id string) (User, bool, error) {
	row := q.QueryRowContext(ctx, `SELECT id, display_name, email, created_at, updated_at FROM catalog_user WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, wrapDBError("catalogstore.GetUserByID", err)
	}
	return u, true, nil
}

func scanUser(r rowScanner) (User, error) {
	var u User
	var email sql.NullString
	var createdAt, updatedAt string
	if err := r.Scan(&u.ID, &u.DisplayName, &email, &createdAt, &updatedAt); err != nil {
		return User{}, err
	}
	u.Email = email.String
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return u, nil
}

// ListUsersPage lists users ordered by (created_at desc, id desc), paginated.
func (s *Store) ListUsersPage(ctx context.Context, pageSize int, token string) ([]User, string, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	cur, err := decodePageToken(token)
	if err != nil {
		return nil, "", err
	}

	query := `SELECT id, display_name, email, created_at, updated_at FROM catalog_user`
	var args []any
	if !cur.createdAt.IsZero() {
		query += ` WHERE (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, formatTime(cur.createdAt), formatTime(cur.createdAt), cur.id)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, pageSize+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", wrapDBError("catalogstore.ListUsersPage", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, "", wrapDBError("catalogstore.ListUsersPage", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, "", wrapDBError("catalogstore.ListUsersPage", err)
	}

	var next string
	if len(out) > pageSize {
		last := out[pageSize-1]
		next = encodePageToken(pageToken{createdAt: last.CreatedAt, id: last.ID})
		out = out[:pageSize]
	}
	return out, next, nil
}
