package syncqueue

import (
	"context"
	"time"
)

// Repository provides persistence for sync-queue items.
type Repository interface {
	Enqueue(ctx context.Context, item *Item) error
	// PendingForStore returns all unsynced items for a store, unsorted.
	// The caller is responsible for ordering.
	PendingForStore(ctx context.Context, store string) ([]Item, error)
	MarkSynced(ctx context.Context, id string, at time.Time) error
	// MarkFailed increments the item's retry count and records the error.
	MarkFailed(ctx context.Context, id, message string) error
	// ClearSynced prunes synced items and reports how many were removed.
	// It never touches pending or exhausted items.
	ClearSynced(ctx context.Context) (int64, error)
	CountPending(ctx context.Context, store string, maxRetries int) (int, error)
	CountFailed(ctx context.Context, store string, maxRetries int) (int, error)
}
