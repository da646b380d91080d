package syncqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Queue applies enqueue-time defaults over a Repository. Enqueue never
// consults network state; tolerating offline writes is the point of the
// queue.
type Queue struct {
	repo Repository
}

// NewQueue creates a new durable sync queue.
func NewQueue(repo Repository) *Queue {
	return &Queue{repo: repo}
}

// Enqueue snapshots data as JSON and appends a pending item stamped with
// the current time.
func (q *Queue) Enqueue(ctx context.Context, store, entityID string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling sync payload: %w", err)
	}
	item := &Item{
		ID:         uuid.NewString(),
		Store:      store,
		EntityID:   entityID,
		Data:       string(payload),
		EnqueuedAt: time.Now().UTC(),
	}
	if err := q.repo.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("enqueueing sync item: %w", err)
	}
	return nil
}
