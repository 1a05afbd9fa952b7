package idgen

import "github.com/google/uuid"

// New mints a canonical UUIDv4 entity identifier.
func New() uuid.UUID {
	return uuid.New()
}

// NewString mints a canonical UUIDv4 entity identifier as a string.
func NewString() string {
	return uuid.NewString()
}

// Parse validates that s is a well-formed UUID and returns it.
func Parse(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// IsUUID reports whether s parses as a UUID, used by tabular search (§4.6)
// to decide whether a search query should be treated as an id lookup.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
