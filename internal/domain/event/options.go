package event

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

const (
	// MaxPageSize is the hard cap on page size regardless of the requested limit.
	MaxPageSize = 100
	// DefaultPageSize is used when no limit is requested.
	DefaultPageSize = 50
)

// Filter restricts an activity query. Filters combine with logical AND;
// an absent filter places no constraint.
type Filter struct {
	ProjectID        string
	EventTypes       []string
	EntityType       string
	WorkCategoryCode string
	Trade            string
	StageCode        string
	LocationID       string
	HomeownerVisible *bool
}

// PageOptions control pagination of an activity query.
type PageOptions struct {
	Limit  int
	Cursor string
	Filter Filter
}

// Page is one page of events ordered by timestamp descending.
type Page struct {
	Events     []Event `json:"events"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

// Cursor marks the position after the last event of a page.
type Cursor struct {
	Timestamp time.Time `json:"ts"`
	ID        string    `json:"id"`
}

// EncodeCursor serializes a cursor into an opaque token.
func EncodeCursor(c Cursor) string {
	data, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses an opaque token produced by EncodeCursor.
func DecodeCursor(token string) (Cursor, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	return c, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
