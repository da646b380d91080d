package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/crewlog/crewlog/internal/domain/event"
)

// EventRepository implements event.Repository for SQLite
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new EventRepository
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// Append inserts a new activity event. Events are never updated or
// deleted afterward.
func (r *EventRepository) Append(ctx context.Context, ev *event.Event) error {
	data, err := json.Marshal(ev.EventData)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	query := `
		INSERT INTO activity_events (
			id, organization_id, project_id, entity_type, entity_id,
			event_type, event_category, ts, actor_id, actor_type, actor_name,
			work_category_code, trade, stage_code, location_id,
			homeowner_visible, input_method, batch_id, event_data
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		ev.ID,
		ev.OrganizationID,
		ev.ProjectID,
		ev.EntityType,
		ev.EntityID,
		ev.EventType,
		event.Category(ev.EventType),
		ev.Timestamp.UTC(),
		ev.ActorID,
		ev.ActorType,
		ev.ActorName,
		ev.WorkCategoryCode,
		ev.Trade,
		ev.StageCode,
		ev.LocationID,
		ev.HomeownerVisible,
		ev.InputMethod,
		ev.BatchID,
		string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	return nil
}

// List returns events matching the given options, newest first. Keyset
// pagination continues strictly after the (ts, id) cursor position.
func (r *EventRepository) List(ctx context.Context, opts event.ListOptions) ([]event.Event, error) {
	query := `
		SELECT
			id, organization_id, project_id, entity_type, entity_id,
			event_type, ts, actor_id, actor_type, actor_name,
			work_category_code, trade, stage_code, location_id,
			homeowner_visible, input_method, batch_id, event_data
		FROM activity_events
	`

	var args []interface{}
	var conditions []string

	if opts.OrganizationID != "" {
		conditions = append(conditions, "organization_id = ?")
		args = append(args, opts.OrganizationID)
	}
	conditions, args = appendFilter(conditions, args, opts.Filter)

	if opts.After != nil {
		conditions = append(conditions, "(ts < ? OR (ts = ? AND id < ?))")
		after := opts.After.Timestamp.UTC()
		args = append(args, after, after, opts.After.ID)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY ts DESC, id DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}

	return events, nil
}

func appendFilter(conditions []string, args []interface{}, f event.Filter) ([]string, []interface{}) {
	if f.ProjectID != "" {
		conditions = append(conditions, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if len(f.EventTypes) == 1 {
		conditions = append(conditions, "event_type = ?")
		args = append(args, f.EventTypes[0])
	} else if len(f.EventTypes) > 1 {
		placeholders := strings.Repeat("?, ", len(f.EventTypes)-1) + "?"
		conditions = append(conditions, "event_type IN ("+placeholders+")")
		for _, t := range f.EventTypes {
			args = append(args, t)
		}
	}
	if f.EntityType != "" {
		conditions = append(conditions, "entity_type = ?")
		args = append(args, f.EntityType)
	}
	if f.WorkCategoryCode != "" {
		conditions = append(conditions, "work_category_code = ?")
		args = append(args, f.WorkCategoryCode)
	}
	if f.Trade != "" {
		conditions = append(conditions, "trade = ?")
		args = append(args, f.Trade)
	}
	if f.StageCode != "" {
		conditions = append(conditions, "stage_code = ?")
		args = append(args, f.StageCode)
	}
	if f.LocationID != "" {
		conditions = append(conditions, "location_id = ?")
		args = append(args, f.LocationID)
	}
	if f.HomeownerVisible != nil {
		conditions = append(conditions, "homeowner_visible = ?")
		args = append(args, *f.HomeownerVisible)
	}
	return conditions, args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*event.Event, error) {
	var ev event.Event
	var projectID, workCategory, trade, stageCode, locationID, batchID sql.NullString
	var data string

	if err := row.Scan(
		&ev.ID,
		&ev.OrganizationID,
		&projectID,
		&ev.EntityType,
		&ev.EntityID,
		&ev.EventType,
		&ev.Timestamp,
		&ev.ActorID,
		&ev.ActorType,
		&ev.ActorName,
		&workCategory,
		&trade,
		&stageCode,
		&locationID,
		&ev.HomeownerVisible,
		&ev.InputMethod,
		&batchID,
		&data,
	); err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}

	ev.ProjectID = nullableString(projectID)
	ev.WorkCategoryCode = nullableString(workCategory)
	ev.Trade = nullableString(trade)
	ev.StageCode = nullableString(stageCode)
	ev.LocationID = nullableString(locationID)
	ev.BatchID = nullableString(batchID)

	if err := json.Unmarshal([]byte(data), &ev.EventData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
	}

	return &ev, nil
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

// CountByType returns per-event-type counts of a project's events with
// ts >= since. There is no upper time bound.
func (r *EventRepository) CountByType(ctx context.Context, projectID string, since time.Time) (map[string]int, error) {
	return r.countGrouped(ctx, "event_type", projectID, since)
}

// CountByCategory returns counts grouped by the event_type category
// prefix, with the same bounds as CountByType.
func (r *EventRepository) CountByCategory(ctx context.Context, projectID string, since time.Time) (map[string]int, error) {
	return r.countGrouped(ctx, "event_category", projectID, since)
}

func (r *EventRepository) countGrouped(ctx context.Context, column, projectID string, since time.Time) (map[string]int, error) {
	query := fmt.Sprintf(`
		SELECT %s, COUNT(*)
		FROM activity_events
		WHERE project_id = ? AND ts >= ?
		GROUP BY %s
	`, column, column)

	rows, err := r.db.QueryContext(ctx, query, projectID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to count events by %s: %w", column, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[key] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating count rows: %w", err)
	}

	return counts, nil
}
