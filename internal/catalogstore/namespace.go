package catalogstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
)

// namespacePathSeparator joins name parts into the collated uniqueness
// key. It must not appear in a validated name part (validation forbids
// "+" and "." per §4.5; 0x1f is never typeable, which is why it is used
// here rather than ".").
const namespacePathSeparator = "\x1f"

// NamespacePath lower-cases and joins parts into the stored collation key.
func NamespacePath(parts []string) string {
	lowered := make([]string, len(parts))
	for i, p := range parts {
		lowered[i] = strings.ToLower(p)
	}
	return strings.Join(lowered, namespacePathSeparator)
}

func (t *Tx) CreateNamespace(ctx context.Context, n Namespace) error {
	partsJSON, err := json.Marshal(n.NameParts)
	if err != nil {
		return err
	}
	propsJSON, err := json.Marshal(n.Properties)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
INSERT INTO namespace (id, warehouse_id, parent_namespace_id, path, name_parts, properties, protected, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, n.ID, n.WarehouseID, n.ParentNamespaceID, NamespacePath(n.NameParts), string(partsJSON), string(propsJSON),
		boolToInt(n.Protected), formatTime(n.CreatedAt))
	return wrapDBError("catalogstore.CreateNamespace", err)
}

func (t *Tx) GetNamespaceByID(ctx context.Context, id string) (Namespace, bool, error) {
	return getNamespaceByID(ctx, t.tx, id)
}

func (s *Store) GetNamespaceByID(ctx context.Context, id string) (Namespace, bool, error) {
	return getNamespaceByID(ctx, s.db, id)
}

func getNamespaceByID(ctx context.Context, q querier, id string) (Namespace, bool, error) {
	row := q.QueryRowContext(ctx, namespaceSelect+` WHERE id = ?`, id)
	n, err := scanNamespace(row)
	if err == sql.ErrNoRows {
		return Namespace{}, false, nil
	}
	if err != nil {
		return Namespace{}, false, wrapDBError("catalogstore.GetNamespaceByID", err)
	}
	return n, true, nil
}

// GetNamespaceByPath looks up a non-deleted namespace by its
// case-insensitive warehouse-relative path.
func (s *Store) GetNamespaceByPath(ctx context.Context, warehouseID string, parts []string) (Namespace, bool, error) {
	row := s.db.QueryRowContext(ctx, namespaceSelect+` WHERE warehouse_id = ? AND path = ? AND deleted_at IS NULL`,
		warehouseID, NamespacePath(parts))
	n, err := scanNamespace(row)
	if err == sql.ErrNoRows {
		return Namespace{}, false, nil
	}
	if err != nil {
		return Namespace{}, false, wrapDBError("catalogstore.GetNamespaceByPath", err)
	}
	return n, true, nil
}

const namespaceSelect = `
SELECT id, warehouse_id, parent_namespace_id, path, name_parts, properties, protected, created_at, deleted_at
FROM namespace`

func scanNamespace(r rowScanner) (Namespace, error) {
	var n Namespace
	var parentID sql.NullString
	var path, partsJSON, propsJSON, createdAt string
	var deletedAt sql.NullString
	var protected int
	if err := r.Scan(&n.ID, &n.WarehouseID, &parentID, &path, &partsJSON, &propsJSON, &protected, &createdAt, &deletedAt); err != nil {
		return Namespace{}, err
	}
	if parentID.Valid {
		v := parentID.String
		n.ParentNamespaceID = &v
	}
	n.Path = path
	if err := json.Unmarshal([]byte(partsJSON), &n.NameParts); err != nil {
		return Namespace{}, err
	}
	n.Properties = map[string]string{}
	if err := json.Unmarshal([]byte(propsJSON), &n.Properties); err != nil {
		return Namespace{}, err
	}
	n.Protected = protected != 0
	n.CreatedAt = parseTime(createdAt)
	n.DeletedAt = parseTimePtr(deletedAt)
	return n, nil
}

// RenameNamespace moves a namespace to new parts (and, implicitly, a
// possibly different parent) within the same warehouse.
func (t *Tx) RenameNamespace(ctx context.Context, id string, newParts []string, newParentID *string) error {
	partsJSON, err := json.Marshal(newParts)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `
UPDATE namespace SET path = ?, name_parts = ?, parent_namespace_id = ? WHERE id = ? AND deleted_at IS NULL
`, NamespacePath(newParts), string(partsJSON), newParentID, id)
	if err != nil {
		return wrapDBError("catalogstore.RenameNamespace", err)
	}
	return requireRowsAffected(res, "catalogstore.RenameNamespace", id)
}

// UpdateNamespaceProperties replaces the stored properties map. location
// is immutable (§4.5) — callers must preserve the existing value
// themselves; the store does not special-case any key.
func (t *Tx) UpdateNamespaceProperties(ctx context.Context, id string, props map[string]string) error {
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `UPDATE namespace SET properties = ? WHERE id = ? AND deleted_at IS NULL`, string(propsJSON), id)
	if err != nil {
		return wrapDBError("catalogstore.UpdateNamespaceProperties", err)
	}
	return requireRowsAffected(res, "catalogstore.UpdateNamespaceProperties", id)
}

func (t *Tx) SetNamespaceProtected(ctx context.Context, id string, protected bool) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE namespace SET protected = ? WHERE id = ?`, boolToInt(protected), id)
	if err != nil {
		return wrapDBError("catalogstore.SetNamespaceProtected", err)
	}
	return requireRowsAffected(res, "catalogstore.SetNamespaceProtected", id)
}

// ChildNamespaces lists the immediate child namespaces of a parent
// (warehouse-level namespaces pass parentID=nil).
func (t *Tx) ChildNamespaces(ctx context.Context, warehouseID string, parentID *string) ([]Namespace, error) {
	var rows *sql.Rows
	var err error
	if parentID == nil {
		rows, err = t.tx.QueryContext(ctx, namespaceSelect+` WHERE warehouse_id = ? AND parent_namespace_id IS NULL AND deleted_at IS NULL`, warehouseID)
	} else {
		rows, err = t.tx.QueryContext(ctx, namespaceSelect+` WHERE warehouse_id = ? AND parent_namespace_id = ? AND deleted_at IS NULL`, warehouseID, *parentID)
	}
	if err != nil {
		return nil, wrapDBError("catalogstore.ChildNamespaces", err)
	}
	defer rows.Close()
	var out []Namespace
	for rows.Next() {
		n, err := scanNamespace(rows)
		if err != nil {
			return nil, wrapDBError("catalogstore.ChildNamespaces", err)
		}
		out = append(out, n)
	}
	return out, wrapDBError("catalogstore.ChildNamespaces", rows.Err())
}

// DeleteNamespace removes the namespace row outright.
func (t *Tx) DeleteNamespace(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM namespace WHERE id = ?`, id)
	if err != nil {
		return wrapDBError("catalogstore.DeleteNamespace", err)
	}
	return requireRowsAffected(res, "catalogstore.DeleteNamespace", id)
}

// ListNamespacesPage lists non-deleted namespaces directly under parentID
// within a warehouse (nil = warehouse-level namespaces), paginated.
func (s *Store) ListNamespacesPage(ctx context.Context, warehouseID string, parentID *string, ids []string, pageSize int, token string) ([]Namespace, string, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	cur, err := decodePageToken(token)
	if err != nil {
		return nil, "", err
	}

	query := namespaceSelect + ` WHERE warehouse_id = ? AND deleted_at IS NULL`
	args := []any{warehouseID}
	if parentID == nil {
		query += ` AND parent_namespace_id IS NULL`
	} else {
		query += ` AND parent_namespace_id = ?`
		args = append(args, *parentID)
	}
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
		return nil, "", wrapDBError("catalogstore.ListNamespacesPage", err)
	}
	defer rows.Close()

	var out []Namespace
	for rows.Next() {
		n, err := scanNamespace(rows)
		if err != nil {
			return nil, "", wrapDBError("catalogstore.ListNamespacesPage", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, "", wrapDBError("catalogstore.ListNamespacesPage", err)
	}

	var next string
	if len(out) > pageSize {
		last := out[pageSize-1]
		next = encodePageToken(pageToken{createdAt: last.CreatedAt, id: last.ID})
		out = out[:pageSize]
	}
	return out, next, nil
}
