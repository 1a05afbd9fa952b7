package idgen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortDisplayIDDeterministic(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 6*1_000_000, time.UTC)
	a := ShortDisplayID("task", "warehouse:wh1/tabular_expiration", ts, 6, 0)
	b := ShortDisplayID("task", "warehouse:wh1/tabular_expiration", ts, 6, 0)
	require.Equal(t, a, b)
	assert.Regexp(t, `^task-[0-9a-z]{6}$`, a)
}

func TestShortDisplayIDNonceChangesOutput(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 6*1_000_000, time.UTC)
	a := ShortDisplayID("task", "same-content", ts, 6, 0)
	b := ShortDisplayID("task", "same-content", ts, 6, 1)
	assert.NotEqual(t, a, b)
}

func TestShortDisplayIDLengthVariants(t *testing.T) {
	ts := time.Now().UTC()
	for _, length := range []int{3, 4, 5, 6, 7, 8} {
		got := ShortDisplayID("t", "content", ts, length, 0)
		// "t-" prefix plus `length` base36 chars.
		assert.Len(t, got, len("t-")+length)
	}
}

func TestEncodeBase36PadsAndTruncates(t *testing.T) {
	assert.Equal(t, "000", EncodeBase36([]byte{0}, 3))
	assert.Len(t, EncodeBase36([]byte{1, 2, 3, 4, 5}, 4), 4)
}
