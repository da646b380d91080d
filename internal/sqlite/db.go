package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &DB{db}, nil
}

// RunMigrations creates the two local collections: the append-only
// activity event records and the mutable sync queue. They are keyed
// independently; entity_id on the queue is an informal linkage only.
func (db *DB) RunMigrations() error {
	migration := `
-- Append-only activity events. No code path updates or deletes rows here;
-- corrections are recorded as new events.
CREATE TABLE activity_events (
    id TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL,
    project_id TEXT,
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    event_category TEXT NOT NULL,
    ts TIMESTAMP NOT NULL,
    actor_id TEXT NOT NULL,
    actor_type TEXT NOT NULL CHECK(actor_type IN ('team_member', 'system', 'customer')),
    actor_name TEXT NOT NULL,
    work_category_code TEXT,
    trade TEXT,
    stage_code TEXT,
    location_id TEXT,
    homeowner_visible INTEGER NOT NULL DEFAULT 0,
    input_method TEXT NOT NULL,
    batch_id TEXT,
    event_data TEXT NOT NULL
);
CREATE INDEX idx_org_events ON activity_events(organization_id, ts);
CREATE INDEX idx_project_events ON activity_events(project_id, ts);
CREATE INDEX idx_location_events ON activity_events(location_id, ts);
CREATE INDEX idx_event_type ON activity_events(event_type);
CREATE INDEX idx_batch_events ON activity_events(batch_id);

-- Durable sync queue. synced_at NULL = pending; retry_count at the
-- ceiling = exhausted, retained for operator visibility.
CREATE TABLE sync_queue (
    id TEXT PRIMARY KEY,
    store TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    data TEXT NOT NULL,
    enqueued_at TIMESTAMP NOT NULL,
    retry_count INTEGER NOT NULL DEFAULT 0,
    last_error TEXT,
    synced_at TIMESTAMP
);
CREATE INDEX idx_queue_store ON sync_queue(store, synced_at);
CREATE INDEX idx_queue_enqueued ON sync_queue(enqueued_at);
`

	_, err := db.Exec(migration)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
