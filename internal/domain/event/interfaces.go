package event

import (
	"context"
	"time"
)

// Repository provides persistence for activity events. Append is the only
// write operation; the table is append-only.
type Repository interface {
	Append(ctx context.Context, ev *Event) error
	List(ctx context.Context, opts ListOptions) ([]Event, error)
	CountByType(ctx context.Context, projectID string, since time.Time) (map[string]int, error)
	CountByCategory(ctx context.Context, projectID string, since time.Time) (map[string]int, error)
}

// ListOptions are the repository-level query parameters. Limit includes the
// extra row the service fetches to detect a further page.
type ListOptions struct {
	OrganizationID string
	Filter         Filter
	After          *Cursor
	Limit          int
}

// Enqueuer places a durable sync-queue record for a locally persisted write.
type Enqueuer interface {
	Enqueue(ctx context.Context, store, entityID string, data any) error
}
