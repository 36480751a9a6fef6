package events

import (
	"time"

	"finquery-client/internal/constant"
)

// Event defines the contract for all client events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "AUTH_INVALIDATED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent helps embed common logic if needed,
// strictly creating valid implementations is preferred though.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewAuthInvalidated signals that the held credential was rejected by
// the backend and must be re-acquired before further calls. Handled by
// the session surface, never inside the streaming controller.
func NewAuthInvalidated(status int) Event {
	return BaseEvent{
		Type:       constant.EventTypeAuthInvalidated,
		Data:       map[string]interface{}{"status": status},
		OccurredAt: time.Now(),
	}
}
