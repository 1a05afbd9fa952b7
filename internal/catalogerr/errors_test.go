package catalogerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewNotFoundUnwraps(t *testing.T) {
	err := NewNotFound("table", "t1")
	assert.True(t, errors.Is(err, ErrNotFound))
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
	assert.Equal(t, "table", nf.Kind)
}

func TestNewForbiddenUnwraps(t *testing.T) {
	err := NewForbidden("table.can_drop", "table:t1")
	assert.True(t, errors.Is(err, ErrForbidden))
}

func TestNewConflictUnwraps(t *testing.T) {
	err := NewConflict("warehouse", "duplicate name")
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestNewValidationUnwraps(t *testing.T) {
	err := NewValidation("namespace.parts", "empty part")
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestWrapPreservesSentinel(t *testing.T) {
	wrapped := Wrap("create_table", ErrConflict)
	assert.True(t, errors.Is(wrapped, ErrConflict))
	assert.Contains(t, wrapped.Error(), "create_table")
}

func TestWrapNilIsNil(t *testing.T) {
	assert.NoError(t, Wrap("op", nil))
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 200},
		{ErrUnauthenticated, 401},
		{NewForbidden("a", "b"), 403},
		{NewNotFound("table", "t1"), 404},
		{NewConflict("k", "r"), 409},
		{ErrProtectedDeletion, 409},
		{ErrConcurrentUpdate, 409},
		{NewValidation("f", "r"), 400},
		{ErrMigrationInProgress, 503},
		{ErrStoreUnavailable, 503},
		{ErrTooManyWrites, 500},
		{errors.New("unknown"), 500},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, HTTPStatus(c.err))
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(ErrStoreUnavailable))
	assert.True(t, Retryable(ErrConcurrentUpdate))
	assert.False(t, Retryable(ErrValidation))
}

func TestRoleAssumptionNotAllowed(t *testing.T) {
	err := &RoleAssumptionNotAllowedError{Principal: "u1", AssumedRole: "r1"}
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.Equal(t, 403, HTTPStatus(err))
}
