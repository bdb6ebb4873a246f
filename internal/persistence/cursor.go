// Package persistence contains helpers shared by repository implementations.
package persistence

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/fitprogress/internal/domain"
)

// ErrInvalidCursor reports a history token that was not produced by EncodeCursor.
var ErrInvalidCursor = errors.New("invalid cursor")

const cursorSeparator = "|"

// EncodeCursor turns the last submission of a page into an opaque "day|id" token.
func EncodeCursor(c *domain.Cursor) string {
	if c == nil {
		return ""
	}
	raw := c.Day.UTC().Format(time.DateOnly) + cursorSeparator + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token from EncodeCursor. A blank token means the first page.
func DecodeCursor(token string) (*domain.Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: not base64url", ErrInvalidCursor)
	}

	dayPart, idPart, ok := strings.Cut(string(decoded), cursorSeparator)
	if !ok {
		return nil, fmt.Errorf("%w: missing separator", ErrInvalidCursor)
	}
	day, err := time.Parse(time.DateOnly, dayPart)
	if err != nil {
		return nil, fmt.Errorf("%w: bad day %q", ErrInvalidCursor, dayPart)
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return nil, fmt.Errorf("%w: bad submission id", ErrInvalidCursor)
	}
	return &domain.Cursor{Day: day, ID: id.String()}, nil
}
