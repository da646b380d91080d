package event

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCursor indicates a malformed pagination cursor.
	ErrInvalidCursor = errors.New("invalid pagination cursor")
)

// ValidationError reports a missing required field on event creation.
// It is raised before any write occurs.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}
