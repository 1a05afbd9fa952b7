package migrations

import "database/sql"

// InitialSchema creates the core entity tables: project, warehouse,
// namespace, and tabular (tables and views share one table, distinguished
// by the kind column, since their uniqueness and soft-delete rules are
// identical — spec.md §3.2/§4.6).
func InitialSchema(db *sql.DB) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS project (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL COLLATE NOCASE,
	created_at TEXT NOT NULL,
	deleted_at TEXT,
	UNIQUE (name)
);

CREATE TABLE IF NOT EXISTS warehouse (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES project(id),
	name TEXT NOT NULL COLLATE NOCASE,
	storage_profile TEXT NOT NULL DEFAULT '{}',
	storage_credential_id TEXT,
	delete_profile TEXT NOT NULL DEFAULT 'hard',
	soft_delete_seconds INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'active',
	protected INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	deleted_at TEXT,
	UNIQUE (project_id, name)
);

CREATE TABLE IF NOT EXISTS namespace (
	id TEXT PRIMARY KEY,
	warehouse_id TEXT NOT NULL REFERENCES warehouse(id),
	parent_namespace_id TEXT REFERENCES namespace(id),
	path TEXT NOT NULL COLLATE NOCASE,
	name_parts TEXT NOT NULL,
	properties TEXT NOT NULL DEFAULT '{}',
	protected INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	deleted_at TEXT,
	UNIQUE (warehouse_id, path)
);

CREATE TABLE IF NOT EXISTS tabular (
	id TEXT PRIMARY KEY,
	warehouse_id TEXT NOT NULL REFERENCES warehouse(id),
	namespace_id TEXT NOT NULL REFERENCES namespace(id),
	kind TEXT NOT NULL CHECK (kind IN ('table', 'view')),
	name TEXT NOT NULL COLLATE NOCASE,
	metadata_location TEXT,
	protected INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	deleted_at TEXT,
	UNIQUE (namespace_id, name)
);
CREATE INDEX IF NOT EXISTS idx_tabular_warehouse ON tabular(warehouse_id, deleted_at);
CREATE INDEX IF NOT EXISTS idx_namespace_warehouse ON namespace(warehouse_id, deleted_at);
`
	_, err := db.Exec(stmt)
	return err
}
