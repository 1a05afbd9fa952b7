package catalogstore

import (
	"context"
	"database/sql"
)

// CreateWarehouse inserts a new warehouse row. Name uniqueness per project
// is enforced by the warehouse (project_id, name) UNIQUE index.
func (t *Tx) CreateWarehouse(ctx context.Context, w Warehouse) error {
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO warehouse (id, project_id, name, storage_profile, storage_credential_id,
	delete_profile, soft_delete_seconds, status, protected, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, w.ID, w.ProjectID, w.Name, w.StorageProfile, w.StorageCredentialID,
		string(w.DeleteProfile), w.SoftDeleteSeconds, string(w.Status), boolToInt(w.Protected), formatTime(w.CreatedAt))
	return wrapDBError("catalogstore.CreateWarehouse", err)
}

func (t *Tx) GetWarehouseByID(ctx context.Context, id string) (Warehouse, bool, error) {
	return getWarehouseByID(ctx, t.tx, id)
}

func (s *Store) GetWarehouseByID(ctx context.Context, id string) (Warehouse, bool, error) {
	return getWarehouseByID(ctx, s.db, id)
}

func getWarehouseByID(ctx context.Context, q querier, id string) (Warehouse, bool, error) {
	row := q.QueryRowContext(ctx, warehouseSelect+` WHERE id = ? AND deleted_at IS NULL`, id)
	w, err := scanWarehouse(row)
	if err == sql.ErrNoRows {
		return Warehouse{}, false, nil
	}
	if err != nil {
		return Warehouse{}, false, wrapDBError("catalogstore.GetWarehouseByID", err)
	}
	return w, true, nil
}

// GetWarehouseByName looks up a non-deleted warehouse by its
// case-insensitive (project_id, name).
func (s *Store) GetWarehouseByName(ctx context.Context, projectID, name string) (Warehouse, bool, error) {
	row := s.db.QueryRowContext(ctx, warehouseSelect+` WHERE project_id = ? AND name = ? AND deleted_at IS NULL`, projectID, name)
	w, err := scanWarehouse(row)
	if err == sql.ErrNoRows {
		return Warehouse{}, false, nil
	}
	if err != nil {
		return Warehouse{}, false, wrapDBError("catalogstore.GetWarehouseByName", err)
	}
	return w, true, nil
}

const warehouseSelect = `
SELECT id, project_id, name, storage_profile, storage_credential_id, delete_profile,
	soft_delete_seconds, status, protected, created_at, deleted_at
FROM warehouse`

func scanWarehouse(r rowScanner) (Warehouse, error) {
	var w Warehouse
	var deleteProfile, status, createdAt string
	var deletedAt sql.NullString
	var protected int
	if err := r.Scan(&w.ID, &w.ProjectID, &w.Name, &w.StorageProfile, &w.StorageCredentialID,
		&deleteProfile, &w.SoftDeleteSeconds, &status, &protected, &createdAt, &deletedAt); err != nil {
		return Warehouse{}, err
	}
	w.DeleteProfile = DeleteProfile(deleteProfile)
	w.Status = WarehouseStatus(status)
	w.Protected = protected != 0
	w.CreatedAt = parseTime(createdAt)
	w.DeletedAt = parseTimePtr(deletedAt)
	return w, nil
}

// RenameWarehouse updates a warehouse's name within tx.
func (t *Tx) RenameWarehouse(ctx context.Context, id, newName string) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE warehouse SET name = ? WHERE id = ? AND deleted_at IS NULL`, newName, id)
	if err != nil {
		return wrapDBError("catalogstore.RenameWarehouse", err)
	}
	return requireRowsAffected(res, "catalogstore.RenameWarehouse", id)
}

// SetWarehouseStatus toggles active/inactive (§4.5 Activate/Deactivate).
func (t *Tx) SetWarehouseStatus(ctx context.Context, id string, status WarehouseStatus) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE warehouse SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return wrapDBError("catalogstore.SetWarehouseStatus", err)
	}
	return requireRowsAffected(res, "catalogstore.SetWarehouseStatus", id)
}

// SetWarehouseProtected flips the protected bit (§4.5 Protect).
func (t *Tx) SetWarehouseProtected(ctx context.Context, id string, protected bool) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE warehouse SET protected = ? WHERE id = ?`, boolToInt(protected), id)
	if err != nil {
		return wrapDBError("catalogstore.SetWarehouseProtected", err)
	}
	return requireRowsAffected(res, "catalogstore.SetWarehouseProtected", id)
}

// SetWarehouseDeleteProfile updates the delete policy (§4.5 expansion:
// update_delete_profile). The lifecycle service is responsible for
// rejecting the change when a pending tabular_expiration task would be
// orphaned by a soft->hard transition.
func (t *Tx) SetWarehouseDeleteProfile(ctx context.Context, id string, profile DeleteProfile, softDeleteSeconds int64) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE warehouse SET delete_profile = ?, soft_delete_seconds = ? WHERE id = ?`,
		string(profile), softDeleteSeconds, id)
	if err != nil {
		return wrapDBError("catalogstore.SetWarehouseDeleteProfile", err)
	}
	return requireRowsAffected(res, "catalogstore.SetWarehouseDeleteProfile", id)
}

// SetWarehouseCredential rewrites the opaque storage-credential handle
// (§4.5 expansion: storage-credential rotation). The storage profile
// itself (region/bucket/prefix) is immutable and untouched here.
func (t *Tx) SetWarehouseCredential(ctx context.Context, id, credentialID string) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE warehouse SET storage_credential_id = ? WHERE id = ?`, credentialID, id)
	if err != nil {
		return wrapDBError("catalogstore.SetWarehouseCredential", err)
	}
	return requireRowsAffected(res, "catalogstore.SetWarehouseCredential", id)
}

// SoftDeleteWarehouse marks deleted_at = now (§4.5 Delete, soft profile).
func (t *Tx) SoftDeleteWarehouse(ctx context.Context, id string, now string) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE warehouse SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, now, id)
	if err != nil {
		return wrapDBError("catalogstore.SoftDeleteWarehouse", err)
	}
	return requireRowsAffected(res, "catalogstore.SoftDeleteWarehouse", id)
}

// UndeleteWarehouse clears deleted_at (§4.5 Undrop).
func (t *Tx) UndeleteWarehouse(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE warehouse SET deleted_at = NULL WHERE id = ?`, id)
	if err != nil {
		return wrapDBError("catalogstore.UndeleteWarehouse", err)
	}
	return requireRowsAffected(res, "catalogstore.UndeleteWarehouse", id)
}

// DeleteWarehouseChildren reports the ids of every namespace still
// attached to the warehouse, for cascading delete/cancel bookkeeping.
func (t *Tx) DeleteWarehouseChildren(ctx context.Context, warehouseID string) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id FROM namespace WHERE warehouse_id = ?`, warehouseID)
	if err != nil {
		return nil, wrapDBError("catalogstore.DeleteWarehouseChildren", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapDBError("catalogstore.DeleteWarehouseChildren", err)
		}
		ids = append(ids, id)
	}
	return ids, wrapDBError("catalogstore.DeleteWarehouseChildren", rows.Err())
}

// DeleteWarehouse removes the warehouse row outright (hard delete, or the
// final step of a force-deleted soft-delete warehouse).
func (t *Tx) DeleteWarehouse(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM warehouse WHERE id = ?`, id)
	if err != nil {
		return wrapDBError("catalogstore.DeleteWarehouse", err)
	}
	return requireRowsAffected(res, "catalogstore.DeleteWarehouse", id)
}

// ListWarehousesPage lists non-deleted warehouses in a project, optionally
// restricted to ids, paginated as in ListProjectsPage.
func (s *Store) ListWarehousesPage(ctx context.Context, projectID string, ids []string, pageSize int, token string) ([]Warehouse, string, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	cur, err := decodePageToken(token)
	if err != nil {
		return nil, "", err
	}

	query := warehouseSelect + ` WHERE project_id = ? AND deleted_at IS NULL`
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
		return nil, "", wrapDBError("catalogstore.ListWarehousesPage", err)
	}
	defer rows.Close()

	var out []Warehouse
	for rows.Next() {
		w, err := scanWarehouse(rows)
		if err != nil {
			return nil, "", wrapDBError("catalogstore.ListWarehousesPage", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, "", wrapDBError("catalogstore.ListWarehousesPage", err)
	}

	var next string
	if len(out) > pageSize {
		last := out[pageSize-1]
		next = encodePageToken(pageToken{createdAt: last.CreatedAt, id: last.ID})
		out = out[:pageSize]
	}
	return out, next, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
