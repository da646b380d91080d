package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/crewlog/crewlog/internal/domain/syncqueue"
	"github.com/crewlog/crewlog/internal/repository"
)

// QueueRepository implements syncqueue.Repository for SQLite
type QueueRepository struct {
	db *DB
}

// NewQueueRepository creates a new QueueRepository
func NewQueueRepository(db *DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// Enqueue inserts a new pending item
func (r *QueueRepository) Enqueue(ctx context.Context, item *syncqueue.Item) error {
	query := `
		INSERT INTO sync_queue (id, store, entity_id, data, enqueued_at, retry_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		item.ID,
		item.Store,
		item.EntityID,
		item.Data,
		item.EnqueuedAt.UTC(),
		item.RetryCount,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue item: %w", err)
	}

	return nil
}

// PendingForStore returns all unsynced items for a store, in no
// particular order.
func (r *QueueRepository) PendingForStore(ctx context.Context, store string) ([]syncqueue.Item, error) {
	query := `
		SELECT id, store, entity_id, data, enqueued_at, retry_count, last_error, synced_at
		FROM sync_queue
		WHERE store = ? AND synced_at IS NULL
	`

	rows, err := r.db.QueryContext(ctx, query, store)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending items: %w", err)
	}
	defer rows.Close()

	var items []syncqueue.Item
	for rows.Next() {
		var item syncqueue.Item
		var lastError sql.NullString
		var syncedAt sql.NullTime
		if err := rows.Scan(
			&item.ID,
			&item.Store,
			&item.EntityID,
			&item.Data,
			&item.EnqueuedAt,
			&item.RetryCount,
			&lastError,
			&syncedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		if lastError.Valid {
			item.LastError = &lastError.String
		}
		if syncedAt.Valid {
			item.SyncedAt = &syncedAt.Time
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue rows: %w", err)
	}

	return items, nil
}

// MarkSynced records confirmed delivery; the item becomes eligible for
// pruning by ClearSynced.
func (r *QueueRepository) MarkSynced(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET synced_at = ? WHERE id = ? AND synced_at IS NULL`,
		at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark item synced: %w", err)
	}
	return requireRow(result)
}

// MarkFailed increments the retry count and records the failure message.
func (r *QueueRepository) MarkFailed(ctx context.Context, id, message string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET retry_count = retry_count + 1, last_error = ? WHERE id = ? AND synced_at IS NULL`,
		message, id)
	if err != nil {
		return fmt.Errorf("failed to mark item failed: %w", err)
	}
	return requireRow(result)
}

// ClearSynced prunes synced items only; pending and exhausted items are
// always retained.
func (r *QueueRepository) ClearSynced(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE synced_at IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear synced items: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared items: %w", err)
	}
	return removed, nil
}

// CountPending counts unsynced items still under the retry ceiling.
func (r *QueueRepository) CountPending(ctx context.Context, store string, maxRetries int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_queue WHERE store = ? AND synced_at IS NULL AND retry_count < ?`,
		store, maxRetries).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending items: %w", err)
	}
	return count, nil
}

// CountFailed counts unsynced items that have reached the retry ceiling.
func (r *QueueRepository) CountFailed(ctx context.Context, store string, maxRetries int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_queue WHERE store = ? AND synced_at IS NULL AND retry_count >= ?`,
		store, maxRetries).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count failed items: %w", err)
	}
	return count, nil
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
