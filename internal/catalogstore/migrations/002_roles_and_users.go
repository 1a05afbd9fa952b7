package migrations

import "database/sql"

// RolesAndUsers creates the role and user tables (§3.2). source_id is only
// unique when present: sqlite treats NULLs as distinct under a UNIQUE
// index, which gives the "unique role source-id per project, when set"
// rule for free.
func RolesAndUsers(db *sql.DB) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS role (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES project(id),
	name TEXT NOT NULL,
	description TEXT,
	source_id TEXT,
	created_at TEXT NOT NULL,
	deleted_at TEXT,
	UNIQUE (project_id, source_id)
);

CREATE TABLE IF NOT EXISTS catalog_user (
	id TEXT PRIMARY KEY,
	display_name TEXT NOT NULL DEFAULT '',
	email TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`
	_, err := db.Exec(stmt)
	return err
}
