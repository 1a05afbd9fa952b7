package catalogstore

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// pageToken encodes the opaque (created_at, id) cursor of §4.5 Pagination:
// list endpoints hand callers a token that embeds both fields so a
// "created_at desc, id desc" (or ascending, per listing) scan can resume
// exactly where the previous page left off even if rows with identical
// timestamps straddle a page boundary.
type pageToken struct {
	createdAt time.Time
	id        string
}

// encodePageToken renders a cursor as the opaque string handed back to
// callers. The encoding is base64 of "rfc3339nano|id" — deliberately
// undocumented as a format callers may parse; only encodePageToken and
// decodePageToken agree on it.
func encodePageToken(t pageToken) string {
	if t.id == "" {
		return ""
	}
	raw := fmt.Sprintf("%s|%s", t.createdAt.UTC().Format(time.RFC3339Nano), t.id)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// decodePageToken parses a token produced by encodePageToken. An empty
// token decodes to the zero pageToken, meaning "start from the beginning".
func decodePageToken(tok string) (pageToken, error) {
	if tok == "" {
		return pageToken{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return pageToken{}, fmt.Errorf("decode page token: %w", err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return pageToken{}, fmt.Errorf("decode page token: malformed")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return pageToken{}, fmt.Errorf("decode page token: bad timestamp: %w", err)
	}
	return pageToken{createdAt: ts, id: parts[1]}, nil
}

// DefaultPageSize bounds a listing page when the caller does not specify one.
const DefaultPageSize = 100
