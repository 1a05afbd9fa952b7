package catalogstore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lakekeeper/catalog-authz/internal/catalogerr"
	"github.com/lakekeeper/catalog-authz/internal/idgen"
)

// CreateTabular inserts a table or view row. Uniqueness of (namespace,
// lowercased name) is enforced by the tabular UNIQUE index; location
// prefix-collision (§4.6) must be checked by the caller via
// LocationConflicts before calling this, inside the same transaction.
func (t *Tx) CreateTabular(ctx context.Context, tab Tabular) error {
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO tabular (id, warehouse_id, namespace_id, kind, name, metadata_location, protected, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, tab.ID, tab.WarehouseID, tab.NamespaceID, string(tab.Kind), tab.Name, tab.MetadataLocation,
		boolToInt(tab.Protected), formatTime(tab.CreatedAt))
	return wrapDBError("catalogstore.CreateTabular", err)
}

// LocationConflicts reports whether location is a prefix of, or is
// prefixed by, any other non-deleted table's location in the warehouse
// (§4.6 Location uniqueness). Views have no metadata location in this
// model and never participate in this check.
func (t *Tx) LocationConflicts(ctx context.Context, warehouseID, location string) (bool, error) {
	if location == "" {
		return false, nil
	}
	rows, err := t.tx.QueryContext(ctx, `
SELECT metadata_location FROM tabular
WHERE warehouse_id = ? AND kind = 'table' AND deleted_at IS NULL AND metadata_location != ''
`, warehouseID)
	if err != nil {
		return false, wrapDBError("catalogstore.LocationConflicts", err)
	}
	defer rows.Close()
	for rows.Next() {
		var other string
		if err := rows.Scan(&other); err != nil {
			return false, wrapDBError("catalogstore.LocationConflicts", err)
		}
		if other == location || strings.HasPrefix(other, location) || strings.HasPrefix(location, other) {
			return true, nil
		}
	}
	return false, wrapDBError("catalogstore.LocationConflicts", rows.Err())
}

func (t *Tx) GetTabularByID(ctx context.Context, id string) (Tabular, bool, error) {
	return getTabularByID(ctx, t.tx, id)
}

func (s *Store) GetTabularByID(ctx context.Context, id string) (Tabular, bool, error) {
	return getTabularByID(ctx, s.db, id)
}

func getTabularByID(ctx context.Context, q querier, id string) (Tabular, bool, error) {
	row := q.QueryRowContext(ctx, tabularSelect+` WHERE id = ?`, id)
	tab, err := scanTabular(row)
	if err == sql.ErrNoRows {
		return Tabular{}, false, nil
	}
	if err != nil {
		return Tabular{}, false, wrapDBError("catalogstore.GetTabularByID", err)
	}
	return tab, true, nil
}

// GetTabularByName looks up a non-deleted table or view by its
// case-insensitive name within a namespace. kind filters to "table" or
// "view"; empty matches either (names are unique per namespace
// regardless of kind, §3.2).
func (s *Store) GetTabularByName(ctx context.Context, namespaceID, name string, kind TabularKind) (Tabular, bool, error) {
	query := tabularSelect + ` WHERE namespace_id = ? AND name = ? AND deleted_at IS NULL`
	args := []any{namespaceID, name}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	row := s.db.QueryRowContext(ctx, query, args...)
	tab, err := scanTabular(row)
	if err == sql.ErrNoRows {
		return Tabular{}, false, nil
	}
	if err != nil {
		return Tabular{}, false, wrapDBError("catalogstore.GetTabularByName", err)
	}
	return tab, true, nil
}

const tabularSelect = `
SELECT id, warehouse_id, namespace_id, kind, name, metadata_location, protected, created_at, deleted_at
FROM tabular`

func scanTabular(r rowScanner) (Tabular, error) {
	var tab Tabular
	var kind, createdAt string
	var metadataLocation sql.NullString
	var deletedAt sql.NullString
	var protected int
	if err := r.Scan(&tab.ID, &tab.WarehouseID, &tab.NamespaceID, &kind, &tab.Name, &metadataLocation, &protected, &createdAt, &deletedAt); err != nil {
		return Tabular{}, err
	}
	tab.Kind = TabularKind(kind)
	tab.MetadataLocation = metadataLocation.String
	tab.Protected = protected != 0
	tab.CreatedAt = parseTime(createdAt)
	tab.DeletedAt = parseTimePtr(deletedAt)
	return tab, nil
}

// RenameTabular moves a tabular to a new namespace and/or name.
func (t *Tx) RenameTabular(ctx context.Context, id, newNamespaceID, newName string) error {
	res, err := t.tx.ExecContext(ctx, `
UPDATE tabular SET namespace_id = ?, name = ? WHERE id = ? AND deleted_at IS NULL
`, newNamespaceID, newName, id)
	if err != nil {
		return wrapDBError("catalogstore.RenameTabular", err)
	}
	return requireRowsAffected(res, "catalogstore.RenameTabular", id)
}

// CommitTabular sets the metadata location of a staged table, or updates
// it on an existing table commit (§3.2 "staged table has no metadata
// location").
func (t *Tx) CommitTabular(ctx context.Context, id, metadataLocation string, requiredMetadataLocation string) error {
	if requiredMetadataLocation != "" {
		var current sql.NullString
		err := t.tx.QueryRowContext(ctx, `SELECT metadata_location FROM tabular WHERE id = ?`, id).Scan(&current)
		if err != nil {
			return wrapDBError("catalogstore.CommitTabular", err)
		}
		if current.String != requiredMetadataLocation {
			return catalogerr.ErrConcurrentUpdate
		}
	}
	res, err := t.tx.ExecContext(ctx, `UPDATE tabular SET metadata_location = ? WHERE id = ?`, metadataLocation, id)
	if err != nil {
		return wrapDBError("catalogstore.CommitTabular", err)
	}
	return requireRowsAffected(res, "catalogstore.CommitTabular", id)
}

func (t *Tx) SetTabularProtected(ctx context.Context, id string, protected bool) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE tabular SET protected = ? WHERE id = ?`, boolToInt(protected), id)
	if err != nil {
		return wrapDBError("catalogstore.SetTabularProtected", err)
	}
	return requireRowsAffected(res, "catalogstore.SetTabularProtected", id)
}

// SoftDeleteTabular marks deleted_at = now (§4.5 Delete, soft profile;
// §4.7 schedules a matching tabular_expiration task).
func (t *Tx) SoftDeleteTabular(ctx context.Context, id, now string, requiredMetadataLocation string) error {
	if requiredMetadataLocation != "" {
		var current sql.NullString
		if err := t.tx.QueryRowContext(ctx, `SELECT metadata_location FROM tabular WHERE id = ?`, id).Scan(&current); err != nil {
			return wrapDBError("catalogstore.SoftDeleteTabular", err)
		}
		if current.String != requiredMetadataLocation {
			return catalogerr.ErrConcurrentUpdate
		}
	}
	res, err := t.tx.ExecContext(ctx, `UPDATE tabular SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, now, id)
	if err != nil {
		return wrapDBError("catalogstore.SoftDeleteTabular", err)
	}
	return requireRowsAffected(res, "catalogstore.SoftDeleteTabular", id)
}

// UndeleteTabular clears deleted_at (§4.5 Undrop).
func (t *Tx) UndeleteTabular(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE tabular SET deleted_at = NULL WHERE id = ?`, id)
	if err != nil {
		return wrapDBError("catalogstore.UndeleteTabular", err)
	}
	return requireRowsAffected(res, "catalogstore.UndeleteTabular", id)
}

// DeleteTabular removes the row outright (hard delete, or the final step
// of a force-deleted soft-delete tabular).
func (t *Tx) DeleteTabular(ctx context.Context, id string, requiredMetadataLocation string) error {
	if requiredMetadataLocation != "" {
		var current sql.NullString
		if err := t.tx.QueryRowContext(ctx, `SELECT metadata_location FROM tabular WHERE id = ?`, id).Scan(&current); err != nil {
			return wrapDBError("catalogstore.DeleteTabular", err)
		}
		if current.String != requiredMetadataLocation {
			return catalogerr.ErrConcurrentUpdate
		}
	}
	res, err := t.tx.ExecContext(ctx, `DELETE FROM tabular WHERE id = ?`, id)
	if err != nil {
		return wrapDBError("catalogstore.DeleteTabular", err)
	}
	return requireRowsAffected(res, "catalogstore.DeleteTabular", id)
}

// ChildTabulars lists the non-deleted tables and/or views directly in a
// namespace. kind = "" lists both. Staged tables (empty metadata
// location) are included here — callers that must hide staged tables
// from default listings (§3.2) filter on MetadataLocation == "".
func (t *Tx) ChildTabulars(ctx context.Context, namespaceID string, kind TabularKind) ([]Tabular, error) {
	query := tabularSelect + ` WHERE namespace_id = ? AND deleted_at IS NULL`
	args := []any{namespaceID}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("catalogstore.ChildTabulars", err)
	}
	defer rows.Close()
	var out []Tabular
	for rows.Next() {
		tab, err := scanTabular(rows)
		if err != nil {
			return nil, wrapDBError("catalogstore.ChildTabulars", err)
		}
		out = append(out, tab)
	}
	return out, wrapDBError("catalogstore.ChildTabulars", rows.Err())
}

// ListTabularsPage lists non-deleted tabulars of kind in a namespace,
// excluding staged tables, paginated.
func (s *Store) ListTabularsPage(ctx context.Context, namespaceID string, kind TabularKind, ids []string, pageSize int, token string) ([]Tabular, string, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	cur, err := decodePageToken(token)
	if err != nil {
		return nil, "", err
	}

	query := tabularSelect + ` WHERE namespace_id = ? AND kind = ? AND deleted_at IS NULL AND metadata_location != ''`
	args := []any{namespaceID, string(kind)}
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
		return nil, "", wrapDBError("catalogstore.ListTabularsPage", err)
	}
	defer rows.Close()

	var out []Tabular
	for rows.Next() {
		tab, err := scanTabular(rows)
		if err != nil {
			return nil, "", wrapDBError("catalogstore.ListTabularsPage", err)
		}
		out = append(out, tab)
	}
	if err := rows.Err(); err != nil {
		return nil, "", wrapDBError("catalogstore.ListTabularsPage", err)
	}

	var next string
	if len(out) > pageSize {
		last := out[pageSize-1]
		next = encodePageToken(pageToken{createdAt: last.CreatedAt, id: last.ID})
		out = out[:pageSize]
	}
	return out, next, nil
}

// SoftDeletedTabular pairs a deleted tabular with its scheduled expiration,
// if any (§4.6 Soft-delete listing: "a missing expiration task is logged
// as an internal inconsistency but the tabular is still returned").
type SoftDeletedTabular struct {
	Tabular        Tabular
	ExpirationTask *string // task id, nil if no matching tabular_expiration task was found
}

// ListSoftDeletedTabulars joins deleted tabulars in a warehouse against
// the task table to surface the scheduled expiration (§4.6, §9 Open
// Question: a deleted tabular with no expiration task is a logged
// inconsistency, never silently repaired here).
func (s *Store) ListSoftDeletedTabulars(ctx context.Context, warehouseID string, pageSize int, token string) ([]SoftDeletedTabular, string, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	cur, err := decodePageToken(token)
	if err != nil {
		return nil, "", err
	}

	query := `
SELECT t.id, t.warehouse_id, t.namespace_id, t.kind, t.name, t.metadata_location, t.protected, t.created_at, t.deleted_at,
	(SELECT task.id FROM task WHERE task.queue_name = 'tabular_expiration' AND task.entity_id = t.id LIMIT 1) AS expiration_task_id
FROM tabular t
WHERE t.warehouse_id = ? AND t.deleted_at IS NOT NULL`
	args := []any{warehouseID}
	if !cur.createdAt.IsZero() {
		query += ` AND (t.deleted_at < ? OR (t.deleted_at = ? AND t.id < ?))`
		args = append(args, formatTime(cur.createdAt), formatTime(cur.createdAt), cur.id)
	}
	query += ` ORDER BY t.deleted_at DESC, t.id DESC LIMIT ?`
	args = append(args, pageSize+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", wrapDBError("catalogstore.ListSoftDeletedTabulars", err)
	}
	defer rows.Close()

	var out []SoftDeletedTabular
	for rows.Next() {
		var kind, createdAt string
		var metadataLocation, deletedAt, taskID sql.NullString
		var protected int
		var tab Tabular
		if err := rows.Scan(&tab.ID, &tab.WarehouseID, &tab.NamespaceID, &kind, &tab.Name, &metadataLocation,
			&protected, &createdAt, &deletedAt, &taskID); err != nil {
			return nil, "", wrapDBError("catalogstore.ListSoftDeletedTabulars", err)
		}
		tab.Kind = TabularKind(kind)
		tab.MetadataLocation = metadataLocation.String
		tab.Protected = protected != 0
		tab.CreatedAt = parseTime(createdAt)
		tab.DeletedAt = parseTimePtr(deletedAt)
		entry := SoftDeletedTabular{Tabular: tab}
		if taskID.Valid {
			id := taskID.String
			entry.ExpirationTask = &id
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, "", wrapDBError("catalogstore.ListSoftDeletedTabulars", err)
	}

	var next string
	if len(out) > pageSize {
		last := out[pageSize-1]
		next = encodePageToken(pageToken{createdAt: *last.Tabular.DeletedAt, id: last.Tabular.ID})
		out = out[:pageSize]
	}
	return out, next, nil
}

// SearchTabulars implements the two search modes of §4.6: if query
// parses as a UUID, return the tabular with that id together with every
// tabular in the namespace with that id; otherwise rank by the number of
// 3-grams shared with concat(namespace_path, name), cutoff at one shared
// 3-gram, limit 10.
//
// sqlite has no trigram similarity operator (unlike the postgres backend
// the contract in §6 allows); counting shared 3-grams in Go (see
// trigramScore) is the nearest equivalent a pure-Go sqlite driver can
// express, not a drop-in trigram-index replacement.
func (s *Store) SearchTabulars(ctx context.Context, warehouseID string, query string) ([]Tabular, error) {
	if idgen.IsUUID(query) {
		rows, err := s.db.QueryContext(ctx, tabularSelect+` WHERE (id = ? OR namespace_id = ?) AND warehouse_id = ? AND deleted_at IS NULL`,
			query, query, warehouseID)
		if err != nil {
			return nil, wrapDBError("catalogstore.SearchTabulars", err)
		}
		defer rows.Close()
		var out []Tabular
		for rows.Next() {
			tab, err := scanTabular(rows)
			if err != nil {
				return nil, wrapDBError("catalogstore.SearchTabulars", err)
			}
			out = append(out, tab)
		}
		return out, wrapDBError("catalogstore.SearchTabulars", rows.Err())
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT t.id, t.warehouse_id, t.namespace_id, t.kind, t.name, t.metadata_location, t.protected, t.created_at, t.deleted_at,
	n.path
FROM tabular t JOIN namespace n ON n.id = t.namespace_id
WHERE t.warehouse_id = ? AND t.deleted_at IS NULL
`, warehouseID)
	if err != nil {
		return nil, wrapDBError("catalogstore.SearchTabulars", err)
	}
	defer rows.Close()

	type scored struct {
		tab   Tabular
		score int
	}
	needle := strings.ToLower(query)
	var candidates []scored
	for rows.Next() {
		var kind, createdAt, path string
		var metadataLocation, deletedAt sql.NullString
		var protected int
		var tab Tabular
		if err := rows.Scan(&tab.ID, &tab.WarehouseID, &tab.NamespaceID, &kind, &tab.Name, &metadataLocation,
			&protected, &createdAt, &deletedAt, &path); err != nil {
			return nil, wrapDBError("catalogstore.SearchTabulars", err)
		}
		tab.Kind = TabularKind(kind)
		tab.MetadataLocation = metadataLocation.String
		tab.Protected = protected != 0
		tab.CreatedAt = parseTime(createdAt)
		tab.DeletedAt = parseTimePtr(deletedAt)

		haystack := strings.ToLower(path) + strings.ToLower(tab.Name)
		score := trigramScore(haystack, needle)
		if score > 0 {
			candidates = append(candidates, scored{tab: tab, score: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("catalogstore.SearchTabulars", err)
	}

	for i := 1; i < len(candidates); i++ {
		j := i
		for j > 0 && candidates[j-1].score < candidates[j].score {
			candidates[j-1], candidates[j] = candidates[j], candidates[j-1]
			j--
		}
	}
	if len(candidates) > 10 {
		candidates = candidates[:10]
	}
	out := make([]Tabular, len(candidates))
	for i, c := range candidates {
		out[i] = c.tab
	}
	return out, nil
}

// trigramScore counts shared 3-grams between haystack and needle, the
// cheapest stand-in for a real trigram similarity index available
// without a C extension.
func trigramScore(haystack, needle string) int {
	grams := func(s string) map[string]struct{} {
		out := map[string]struct{}{}
		for i := 0; i+3 <= len(s); i++ {
			out[s[i:i+3]] = struct{}{}
		}
		return out
	}
	if len(needle) < 3 {
		if strings.Contains(haystack, needle) {
			return 1
		}
		return 0
	}
	hg, ng := grams(haystack), grams(needle)
	score := 0
	for g := range ng {
		if _, ok := hg[g]; ok {
			score++
		}
	}
	return score
}
