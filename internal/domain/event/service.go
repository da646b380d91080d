package event

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crewlog/crewlog/internal/domain/syncqueue"
)

// Reserved actor used for system-generated events.
const (
	SystemActorID   = "system"
	SystemActorName = "System"
)

// schemaVersion is injected into event_data as _version at write time so
// the remote consumer can evolve the payload schema.
const schemaVersion = 1

// Service handles activity log operations. Every created event is appended
// to the local store and enqueued for sync before the call returns; local
// reads never wait on sync state.
type Service struct {
	repo   Repository
	queue  Enqueuer
	logger *slog.Logger
}

// NewService creates a new activity log service.
func NewService(repo Repository, queue Enqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{repo: repo, queue: queue, logger: logger}
}

// CreateEventInput describes a new activity event.
type CreateEventInput struct {
	OrganizationID   string         `json:"organization_id"`
	ProjectID        *string        `json:"project_id,omitempty"`
	EntityType       string         `json:"entity_type"`
	EntityID         string         `json:"entity_id"`
	EventType        string         `json:"event_type"`
	Timestamp        *time.Time     `json:"timestamp,omitempty"`
	ActorID          string         `json:"actor_id"`
	ActorType        ActorType      `json:"actor_type"`
	ActorName        string         `json:"actor_name"`
	WorkCategoryCode *string        `json:"work_category_code,omitempty"`
	Trade            *string        `json:"trade,omitempty"`
	StageCode        *string        `json:"stage_code,omitempty"`
	LocationID       *string        `json:"location_id,omitempty"`
	HomeownerVisible *bool          `json:"homeowner_visible,omitempty"`
	InputMethod      InputMethod    `json:"input_method,omitempty"`
	EventData        map[string]any `json:"event_data,omitempty"`
}

// CreateEvent validates and appends one event, then enqueues it for sync.
func (s *Service) CreateEvent(ctx context.Context, in CreateEventInput) (*Event, error) {
	return s.create(ctx, in, nil)
}

// CreateBatch applies CreateEvent semantics to each input with one shared
// batch id. An empty input slice returns an empty slice with no side effects.
func (s *Service) CreateBatch(ctx context.Context, inputs []CreateEventInput) ([]Event, error) {
	if len(inputs) == 0 {
		return []Event{}, nil
	}
	batchID := uuid.NewString()
	events := make([]Event, 0, len(inputs))
	for _, in := range inputs {
		ev, err := s.create(ctx, in, &batchID)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, nil
}

// LogSystemEvent records an event attributed to the reserved system actor.
func (s *Service) LogSystemEvent(ctx context.Context, in CreateEventInput) (*Event, error) {
	in.ActorID = SystemActorID
	in.ActorType = ActorSystem
	in.ActorName = SystemActorName
	return s.create(ctx, in, nil)
}

func (s *Service) create(ctx context.Context, in CreateEventInput, batchID *string) (*Event, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	if in.Timestamp != nil {
		ts = in.Timestamp.UTC()
	}

	visible := DefaultVisibility(in.EventType)
	if in.HomeownerVisible != nil {
		visible = *in.HomeownerVisible
	}

	method := in.InputMethod
	if in.ActorType == ActorSystem {
		method = InputSystem
	} else if method == "" {
		method = InputManualEntry
	}

	data := make(map[string]any, len(in.EventData)+1)
	for k, v := range in.EventData {
		data[k] = v
	}
	data["_version"] = schemaVersion

	ev := &Event{
		ID:               uuid.NewString(),
		OrganizationID:   in.OrganizationID,
		ProjectID:        in.ProjectID,
		EntityType:       in.EntityType,
		EntityID:         in.EntityID,
		EventType:        in.EventType,
		Timestamp:        ts,
		ActorID:          in.ActorID,
		ActorType:        in.ActorType,
		ActorName:        in.ActorName,
		WorkCategoryCode: in.WorkCategoryCode,
		Trade:            in.Trade,
		StageCode:        in.StageCode,
		LocationID:       in.LocationID,
		HomeownerVisible: visible,
		InputMethod:      method,
		BatchID:          batchID,
		EventData:        data,
	}

	if err := s.repo.Append(ctx, ev); err != nil {
		return nil, fmt.Errorf("appending event: %w", err)
	}
	if err := s.queue.Enqueue(ctx, syncqueue.StoreActivityEvents, ev.ID, ev); err != nil {
		return nil, fmt.Errorf("enqueueing event for sync: %w", err)
	}

	s.logger.Debug("event created", "id", ev.ID, "type", ev.EventType)
	return ev, nil
}

func validateInput(in CreateEventInput) error {
	if in.OrganizationID == "" {
		return &ValidationError{Field: "organization_id"}
	}
	if in.EventType == "" {
		return &ValidationError{Field: "event_type"}
	}
	if in.ActorID == "" {
		return &ValidationError{Field: "actor_id"}
	}
	if in.ActorType == "" {
		return &ValidationError{Field: "actor_type"}
	}
	if in.EntityType == "" {
		return &ValidationError{Field: "entity_type"}
	}
	if in.EntityID == "" {
		return &ValidationError{Field: "entity_id"}
	}
	return nil
}

// GetProjectActivity returns a project's events, newest first.
func (s *Service) GetProjectActivity(ctx context.Context, projectID string, opts PageOptions) (*Page, error) {
	filter := opts.Filter
	filter.ProjectID = projectID
	return s.page(ctx, ListOptions{Filter: filter}, opts)
}

// GetRecentActivity returns an organization's events, newest first.
func (s *Service) GetRecentActivity(ctx context.Context, orgID string, opts PageOptions) (*Page, error) {
	return s.page(ctx, ListOptions{OrganizationID: orgID, Filter: opts.Filter}, opts)
}

// GetPropertyActivity returns events at a property. When homeownerOnly is
// set only homeowner-visible events are returned.
func (s *Service) GetPropertyActivity(ctx context.Context, propertyID string, homeownerOnly bool, opts PageOptions) (*Page, error) {
	filter := opts.Filter
	filter.LocationID = propertyID
	if homeownerOnly {
		visible := true
		filter.HomeownerVisible = &visible
	}
	return s.page(ctx, ListOptions{Filter: filter}, opts)
}

func (s *Service) page(ctx context.Context, lo ListOptions, opts PageOptions) (*Page, error) {
	limit := clampLimit(opts.Limit)
	if opts.Cursor != "" {
		c, err := DecodeCursor(opts.Cursor)
		if err != nil {
			return nil, err
		}
		lo.After = &c
	}
	lo.Limit = limit + 1

	events, err := s.repo.List(ctx, lo)
	if err != nil {
		return nil, fmt.Errorf("listing activity: %w", err)
	}

	page := &Page{Events: events, HasMore: len(events) > limit}
	if page.HasMore {
		page.Events = events[:limit]
		last := page.Events[limit-1]
		token := EncodeCursor(Cursor{Timestamp: last.Timestamp, ID: last.ID})
		page.NextCursor = &token
	}
	if page.Events == nil {
		page.Events = []Event{}
	}
	return page, nil
}

// GetEventCountByType returns per-event-type counts of a project's events
// at or after since. There is no implicit upper bound; a future since
// simply matches nothing. The result is empty, never nil.
func (s *Service) GetEventCountByType(ctx context.Context, projectID string, since time.Time) (map[string]int, error) {
	counts, err := s.repo.CountByType(ctx, projectID, since)
	if err != nil {
		return nil, fmt.Errorf("counting events by type: %w", err)
	}
	if counts == nil {
		counts = map[string]int{}
	}
	return counts, nil
}

// GetEventCountByCategory returns counts rolled up by the event_type prefix
// before the first dot, with the same bounds as GetEventCountByType.
func (s *Service) GetEventCountByCategory(ctx context.Context, projectID string, since time.Time) (map[string]int, error) {
	counts, err := s.repo.CountByCategory(ctx, projectID, since)
	if err != nil {
		return nil, fmt.Errorf("counting events by category: %w", err)
	}
	if counts == nil {
		counts = map[string]int{}
	}
	return counts, nil
}
