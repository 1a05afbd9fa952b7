// Package idgen mints identifiers for catalog entities and tasks.
// Canonical identity (warehouse_id, namespace_id, table_id, view_id,
// role_id, task_id) is always a UUIDv4 via google/uuid; see ids.go. This
// file adds a short, human-readable display id on top, generalized from
// the teacher's hash-ID scheme, for log lines and task listings where a
// full UUID is too noisy to scan.
package idgen

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// base36Alphabet is the character set for base36 encoding (0-9, a-z).
const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// EncodeBase36 converts a byte slice to a base36 string of specified length.
func EncodeBase36(data []byte, length int) string {
	// Convert bytes to big integer
	num := new(big.Int).SetBytes(data)

	// Convert to base36
	var result strings.Builder
	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	// Build the string in reverse
	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}

	// Reverse the string
	for i := len(chars) - 1; i >= 0; i-- {
		result.WriteByte(chars[i])
	}

	// Pad with zeros if needed
	str := result.String()
	if len(str) < length {
		str = strings.Repeat("0", length-len(str)) + str
	}

	// Truncate to exact length if needed (keep least significant digits)
	if len(str) > length {
		str = str[len(str)-length:]
	}

	return str
}

// ShortDisplayID derives a short base36 tag from stable content plus a
// collision nonce, prefixed for readability (e.g. "task-9wt4w"). It is
// never a primary key, only a display aid alongside the canonical UUID
// minted by New/NewString in ids.go.
func ShortDisplayID(prefix, content string, timestamp time.Time, length, nonce int) string {
	payload := fmt.Sprintf("%s|%d|%d", content, timestamp.UnixNano(), nonce)
	hash := sha256.Sum256([]byte(payload))

	var numBytes int
	switch length {
	case 3:
		numBytes = 2
	case 4:
		numBytes = 3
	case 5, 6:
		numBytes = 4
	case 7, 8:
		numBytes = 5
	default:
		numBytes = 3
	}

	shortHash := EncodeBase36(hash[:numBytes], length)
	return fmt.Sprintf("%s-%s", prefix, shortHash)
}
