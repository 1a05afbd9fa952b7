package migrations

import "database/sql"

// TaskQueueTables creates the task and task_log tables backing the Task
// Queue (§4.7): task holds in-flight rows (scheduled/running/stopping);
// task_log is the terminal-history append log a completed or cancelled
// task is moved to in the same transaction that deletes its task row.
func TaskQueueTables(db *sql.DB) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS task (
	id TEXT PRIMARY KEY,
	queue_name TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'scheduled',
	attempt INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL DEFAULT 5,
	payload TEXT NOT NULL DEFAULT '{}',
	scheduled_for TEXT NOT NULL,
	picked_up_at TEXT,
	last_heartbeat_at TEXT,
	progress TEXT,
	parent_task_id TEXT REFERENCES task(id),
	project_id TEXT,
	warehouse_id TEXT,
	entity_type TEXT NOT NULL DEFAULT 'project',
	entity_id TEXT,
	entity_name_parts TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_task_pick ON task(queue_name, status, scheduled_for, id);
CREATE INDEX IF NOT EXISTS idx_task_warehouse ON task(warehouse_id, created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_task_entity ON task(entity_type, entity_id);

CREATE TABLE IF NOT EXISTS task_log (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL,
	queue_name TEXT NOT NULL,
	attempt INTEGER NOT NULL,
	final_status TEXT NOT NULL,
	error_message TEXT,
	project_id TEXT,
	warehouse_id TEXT,
	entity_type TEXT NOT NULL DEFAULT 'project',
	entity_id TEXT,
	entity_name_parts TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL,
	finished_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_task_log_listing ON task_log(created_at DESC, task_id DESC);
CREATE INDEX IF NOT EXISTS idx_task_log_warehouse ON task_log(warehouse_id, created_at DESC, task_id DESC);
`
	_, err := db.Exec(stmt)
	return err
}
