package catalogstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/lakekeeper/catalog-authz/internal/catalogstore/migrations"
)

// migrationStep names one forward-only schema change and the Go function
// that applies it. Numbered to match the teacher's migrations/ convention
// (internal/storage/sqlite/migrations), reduced here to the handful of
// steps this module's schema actually needs.
type migrationStep struct {
	version int
	name    string
	apply   func(*sql.DB) error
}

var migrationSteps = []migrationStep{
	{1, "initial schema", migrations.InitialSchema},
	{2, "roles and users", migrations.RolesAndUsers},
	{3, "task queue tables", migrations.TaskQueueTables},
}

// migrate applies every migrationStep with version greater than the
// currently recorded schema_version, tracked in a one-row _meta table.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS _meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`); err != nil {
		return fmt.Errorf("ensure _meta table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO _meta (key, value) VALUES ('schema_version', '0')`); err != nil {
		return fmt.Errorf("initialize schema version: %w", err)
	}

	var currentRaw string
	if err := s.db.QueryRowContext(ctx, `SELECT value FROM _meta WHERE key = 'schema_version'`).Scan(&currentRaw); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	current, err := strconv.Atoi(currentRaw)
	if err != nil {
		return fmt.Errorf("invalid schema version %q: %w", currentRaw, err)
	}

	for _, step := range migrationSteps {
		if step.version <= current {
			continue
		}
		if err := step.apply(s.db); err != nil {
			return fmt.Errorf("migration %03d (%s): %w", step.version, step.name, err)
		}
		if _, err := s.db.ExecContext(ctx, `UPDATE _meta SET value = ? WHERE key = 'schema_version'`, strconv.Itoa(step.version)); err != nil {
			return fmt.Errorf("record schema version %03d: %w", step.version, err)
		}
	}
	return nil
}
