package catalogstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lakekeeper/catalog-authz/internal/catalogerr"
)

// wrapDBError maps a raw database error onto the catalogerr sentinels (§7):
// sql.ErrNoRows becomes ErrNotFound, sqlite UNIQUE/CHECK constraint
// violations become ErrConflict, everything else is wrapped with op
// context. Mirrors the teacher's wrapDBError in internal/storage/sqlite.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, catalogerr.ErrNotFound)
	}
	if isConstraintViolation(err) {
		return fmt.Errorf("%s: %w", op, catalogerr.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isConstraintViolation reports whether err is a sqlite UNIQUE/CHECK
// constraint failure. modernc.org/sqlite reports these as plain *errors
// whose message contains "constraint failed"; there is no typed
// sqlite.Error in that driver's public API to match on, so string
// inspection is the only option (documented here rather than justified in
// DESIGN.md per-entry, since this is the one unavoidable case of it).
func isConstraintViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed")
}
