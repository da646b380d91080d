package syncqueue

import "time"

// StoreActivityEvents is the logical collection name for queued activity
// event writes.
const StoreActivityEvents = "activity_events"

// Item is one durable sync-queue record: a payload snapshot awaiting
// confirmed delivery to the remote store. Items are created for every
// syncable write regardless of connectivity.
type Item struct {
	ID         string     `json:"id"`
	Store      string     `json:"store"`
	EntityID   string     `json:"entity_id"`
	Data       string     `json:"data"` // JSON snapshot of the payload to deliver
	EnqueuedAt time.Time  `json:"enqueued_at"`
	RetryCount int        `json:"retry_count"`
	LastError  *string    `json:"last_error,omitempty"`
	SyncedAt   *time.Time `json:"synced_at,omitempty"`
}

// Exhausted reports whether the item has reached the retry ceiling.
// Exhausted items are excluded from automatic sync attempts but retained
// for operator visibility.
func (i *Item) Exhausted(maxRetries int) bool {
	return i.RetryCount >= maxRetries
}
