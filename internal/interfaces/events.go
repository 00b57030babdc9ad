package interfaces

import "context"

// EventType identifies a class of application event.
type EventType string

const (
	EventProgress EventType = "tracking_progress"
	EventOutcome  EventType = "tracking_outcome"
)

// Event is a published application event.
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload"`
}

// EventHandler processes a published event.
type EventHandler func(ctx context.Context, event Event)

// EventService is a minimal in-process pub/sub bus.
type EventService interface {
	Subscribe(eventType EventType, handler EventHandler)
	Publish(ctx context.Context, event Event)
}
