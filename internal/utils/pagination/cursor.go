package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidToken is returned for tokens that were not produced by Encode.
var ErrInvalidToken = errors.New("invalid pagination token")

// Cursor points past the last row of a page ordered by
// (created_at DESC, id DESC). CreatedUnix is in millis.
type Cursor struct {
	ID          uint64 `json:"id"`
	CreatedUnix int64  `json:"created_unix,omitempty"`
}

// IsZero reports whether c points at the first page.
func (c Cursor) IsZero() bool { return c.ID == 0 || c.CreatedUnix == 0 }

func (c Cursor) Time() time.Time { return time.UnixMilli(c.CreatedUnix).UTC() }

// After builds the cursor for the page following the given row.
func After(id uint64, createdAt time.Time) Cursor {
	return Cursor{ID: id, CreatedUnix: createdAt.UnixMilli()}
}

// Encode renders c as an opaque URL-safe token.
func Encode(c Cursor) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Decode parses a token from Encode. The empty token is the first page.
// Padded tokens are accepted as well.
func Decode(token string) (Cursor, error) {
	var c Cursor
	if token == "" {
		return c, nil
	}

	enc := base64.RawURLEncoding
	if len(token)%4 == 0 && token[len(token)-1] == '=' {
		enc = base64.URLEncoding
	}
	raw, err := enc.DecodeString(token)
	if err != nil {
		return c, ErrInvalidToken
	}
	if err := json.Unmarshal(raw, &c); err != nil || c.IsZero() {
		return Cursor{}, ErrInvalidToken
	}
	return c, nil
}
