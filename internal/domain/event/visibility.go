package event

// visibilityDefaults maps event types to their default homeowner-feed
// visibility. Types not listed default to hidden. The default is
// overridable per event at creation.
var visibilityDefaults = map[string]bool{
	"task.completed":        true,
	"milestone.reached":     true,
	"photo.uploaded":        true,
	"inspection.passed":     true,
	"inspection.scheduled":  true,
	"selection.approved":    true,
	"change_order.approved": true,
	"schedule.updated":      true,
	"project.started":       true,
	"project.completed":     true,

	"task.created":       false,
	"task.assigned":      false,
	"note.added":         false,
	"invoice.sent":       false,
	"budget.updated":     false,
	"punch_item.created": false,
	"crew.checked_in":    false,
}

// DefaultVisibility returns the homeowner-feed default for an event type.
func DefaultVisibility(eventType string) bool {
	return visibilityDefaults[eventType]
}
