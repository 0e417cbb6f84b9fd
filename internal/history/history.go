package history

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStart  EventType = "start"
	EventStop   EventType = "stop"
	EventCrash  EventType = "crash"  // out-of-band exit observed
	EventToggle EventType = "toggle" // telegram feature flip, any outcome
)

// Event is one supervisor lifecycle event exported to audit/analytics
// systems.
type Event struct {
	Type            EventType `json:"type"`
	OccurredAt      time.Time `json:"occurred_at"`
	PID             int       `json:"pid"`
	TelegramEnabled bool      `json:"telegram_enabled"`
	Detail          string    `json:"detail,omitempty"` // failure message or toggle outcome
}

// Sink is a destination for lifecycle events. Implementations must be safe
// for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}
