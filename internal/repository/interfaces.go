package repository

import (
	"context"
	"time"

	"github.com/crewlog/crewlog/internal/domain/event"
	"github.com/crewlog/crewlog/internal/domain/syncqueue"
)

// EventRepository manages activity event persistence
type EventRepository interface {
	Append(ctx context.Context, ev *event.Event) error
	List(ctx context.Context, opts event.ListOptions) ([]event.Event, error)
	CountByType(ctx context.Context, projectID string, since time.Time) (map[string]int, error)
	CountByCategory(ctx context.Context, projectID string, since time.Time) (map[string]int, error)
}

// QueueRepository manages sync-queue persistence
type QueueRepository interface {
	Enqueue(ctx context.Context, item *syncqueue.Item) error
	PendingForStore(ctx context.Context, store string) ([]syncqueue.Item, error)
	MarkSynced(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id, message string) error
	ClearSynced(ctx context.Context) (int64, error)
	CountPending(ctx context.Context, store string, maxRetries int) (int, error)
	CountFailed(ctx context.Context, store string, maxRetries int) (int, error)
}
