package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducesUniqueUUIDs(t *testing.T) {
	a := New()
	b := New()
	assert.NotEqual(t, a, b)
}

func TestParseRoundTrip(t *testing.T) {
	s := NewString()
	parsed, err := Parse(s)
	require.NoError(t, err)
	assert.Equal(t, s, parsed.String())
}

func TestIsUUID(t *testing.T) {
	assert.True(t, IsUUID(NewString()))
	assert.False(t, IsUUID("not-a-uuid"))
	assert.False(t, IsUUID(""))
}
