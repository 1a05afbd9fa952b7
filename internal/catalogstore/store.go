// Package catalogstore is the Catalog Store (CS, spec.md §4.6): a
// transactional store for projects, warehouses, namespaces, tables, views,
// roles, users, and tasks. It provides row-level consistency, optimistic
// concurrency, collation-based case folding for identifier lookups, and
// paginated listings, backed by a pure-Go sqlite driver (no cgo) the way
// the teacher's ephemeral store is.
package catalogstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps a single sqlite database handle. SQLite serializes writers,
// so the pool is pinned to one connection (mirrors the teacher's ephemeral
// store: SetMaxOpenConns(1)) to avoid interleaving BEGIN IMMEDIATE
// transactions across connections.
type Store struct {
	db *sql.DB
}

// Open creates the database file's parent directory if needed, opens it
// with WAL journaling and foreign keys enabled, and applies every pending
// migration.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("catalogstore: create db dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("catalogstore: open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalogstore: ping db: %w", err)
	}

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA foreign_keys = ON`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("catalogstore: %s: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalogstore: migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the raw handle for collaborators that need it (task queue
// shares the same database file so queue and catalog mutations can share a
// transaction).
func (s *Store) DB() *sql.DB { return s.db }

// querier is satisfied by both *sql.DB and *sql.Tx, letting read helpers
// run either standalone or inside a caller's transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Tx is an open write transaction (§4.6 begin_write). Entity mutations,
// create_relations, and schedule_task calls made through it see consistent
// state until Commit or Rollback.
type Tx struct {
	tx *sql.Tx
}

// Raw exposes the underlying *sql.Tx so collaborators sharing this
// database file (the task queue, §4.6 expansion) can schedule or cancel
// tasks in the same transaction as a catalog entity mutation.
func (t *Tx) Raw() *sql.Tx { return t.tx }

// BeginWrite starts a write transaction. sqlite's default (DEFERRED) mode
// is sufficient here because the Store pins a single connection, so there
// is no concurrent writer to race against within the process; cross-process
// contention is serialized by sqlite's file lock.
func (s *Store) BeginWrite(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapDBError("catalogstore.BeginWrite", err)
	}
	return &Tx{tx: tx}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error { return wrapDBError("catalogstore.Commit", t.tx.Commit()) }

// Rollback aborts the transaction. Safe to call after Commit (a no-op, the
// driver returns sql.ErrTxDone which callers should ignore via defer).
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return wrapDBError("catalogstore.Rollback", err)
}
