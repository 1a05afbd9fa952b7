// Package catalogerr defines the error-kind table of spec.md §7 as Go
// sentinel errors, following the teacher's internal/storage/sqlite
// errors.go pattern: a sentinel per kind, wrapped with fmt.Errorf("%w"),
// unwrapped with errors.Is/errors.As, and a single HTTPStatus helper
// centralizing the kind→status mapping for whatever surface eventually
// sits in front of this engine.
package catalogerr

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Every error returned across package boundaries in this
// module wraps exactly one of these.
var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrProtectedDeletion  = errors.New("protected deletion")
	ErrConcurrentUpdate   = errors.New("concurrent update")
	ErrValidation         = errors.New("validation")
	ErrTooManyWrites      = errors.New("too many writes")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrMigrationInProgress = errors.New("migration in progress")
)

// NotFoundError carries the kind/id of a missing (or hidden) entity.
// Hidden-vs-missing is deliberately not distinguished in the message:
// §8 property 2 requires the two to be indistinguishable to the caller.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Kind, e.ID, ErrNotFound)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFound builds a uniform 404 for a missing-or-hidden entity.
func NewNotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// ForbiddenError names the action and object a permission check refused.
type ForbiddenError struct {
	Action string
	Object string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("action %q on %q: %s", e.Action, e.Object, ErrForbidden)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// NewForbidden builds a 403 for a failed permission check.
func NewForbidden(action, object string) error {
	return &ForbiddenError{Action: action, Object: object}
}

// ConflictError names the entity kind and the reason a mutation was
// rejected (uniqueness violation, graph precondition, etc).
type ConflictError struct {
	Kind   string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict: %s: %s", e.Kind, e.Reason, ErrConflict)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// NewConflict builds a 409 for a uniqueness or graph-precondition violation.
func NewConflict(kind, reason string) error {
	return &ConflictError{Kind: kind, Reason: reason}
}

// ValidationError names the field and rule a request violated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Field, e.Reason, ErrValidation)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidation builds a 400 for a name/format/depth/reserved violation.
func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// RoleAssumptionNotAllowedError is the specific Forbidden raised by
// check-actor (§4.3) when a Role actor's principal may not assume the
// role it claims.
type RoleAssumptionNotAllowedError struct {
	Principal    string
	AssumedRole  string
}

func (e *RoleAssumptionNotAllowedError) Error() string {
	return fmt.Sprintf("principal %q may not assume role %q: %s", e.Principal, e.AssumedRole, ErrForbidden)
}

func (e *RoleAssumptionNotAllowedError) Unwrap() error { return ErrForbidden }

// Wrap adds operation context to an underlying error without obscuring
// the sentinel it wraps, the way wrapDBError does in the teacher's
// storage/sqlite package.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Wrapf is Wrap with a formatted operation string.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// HTTPStatus centralizes the kind→status mapping of spec.md §7 for
// whatever surface eventually sits in front of this engine (none is
// built here, per §1's scope boundary).
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return 200
	case errors.Is(err, ErrUnauthenticated):
		return 401
	case errors.Is(err, ErrForbidden):
		return 403
	case errors.Is(err, ErrNotFound):
		return 404
	case errors.Is(err, ErrConflict), errors.Is(err, ErrProtectedDeletion), errors.Is(err, ErrConcurrentUpdate):
		return 409
	case errors.Is(err, ErrValidation):
		return 400
	case errors.Is(err, ErrMigrationInProgress):
		return 503
	case errors.Is(err, ErrStoreUnavailable):
		return 503
	case errors.Is(err, ErrTooManyWrites):
		// Never reaches a client: a >100-tuple batch is an internal bug.
		return 500
	default:
		return 500
	}
}

// Retryable reports whether the call site should retry per §7's
// propagation policy (StoreUnavailable and ConcurrentUpdate are the only
// kinds the caller is expected to retry).
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrConcurrentUpdate)
}
