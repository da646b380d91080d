package event

import (
	"strings"
	"time"
)

// ActorType identifies who performed an action
type ActorType string

const (
	ActorTeamMember ActorType = "team_member"
	ActorSystem     ActorType = "system"
	ActorCustomer   ActorType = "customer"
)

// InputMethod describes how an event was captured
type InputMethod string

const (
	InputManualEntry InputMethod = "manual_entry"
	InputSystem      InputMethod = "system"
	InputImport      InputMethod = "import"
	InputMobile      InputMethod = "mobile"
)

// Event is one immutable activity record. Once persisted no field is ever
// mutated or deleted; corrections are recorded as new events.
type Event struct {
	ID               string         `json:"id"`
	OrganizationID   string         `json:"organization_id"`
	ProjectID        *string        `json:"project_id,omitempty"`
	EntityType       string         `json:"entity_type"`
	EntityID         string         `json:"entity_id"`
	EventType        string         `json:"event_type"`
	Timestamp        time.Time      `json:"timestamp"`
	ActorID          string         `json:"actor_id"`
	ActorType        ActorType      `json:"actor_type"`
	ActorName        string         `json:"actor_name"`
	WorkCategoryCode *string        `json:"work_category_code,omitempty"`
	Trade            *string        `json:"trade,omitempty"`
	StageCode        *string        `json:"stage_code,omitempty"`
	LocationID       *string        `json:"location_id,omitempty"`
	HomeownerVisible bool           `json:"homeowner_visible"`
	InputMethod      InputMethod    `json:"input_method"`
	BatchID          *string        `json:"batch_id,omitempty"`
	EventData        map[string]any `json:"event_data"`
}

// Category returns the event_type prefix before the first dot, used for
// aggregate rollups. An event_type with no dot is its own category.
func Category(eventType string) string {
	category, _, _ := strings.Cut(eventType, ".")
	return category
}
