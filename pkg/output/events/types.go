// Package events defines the event types for csrfprobe output.
// All events are designed for JSON serialization and CI/CD integration.
//
// BaseEvent is embedded in every concrete event type (StartEvent,
// ResultEvent, CompleteEvent).
package events

import "time"

// EventType represents the type of output event.
type EventType string

const (
	// EventTypeStart indicates a probe run has started.
	EventTypeStart EventType = "start"
	// EventTypeResult indicates a single assertion result.
	EventTypeResult EventType = "result"
	// EventTypeComplete indicates a probe run has completed.
	EventTypeComplete EventType = "complete"
)

// Event is implemented by every event type.
type Event interface {
	EventType() EventType
	Timestamp() time.Time
	RunID() string
}

// BaseEvent contains common fields for all events.
// It is designed to be embedded in specific event types.
type BaseEvent struct {
	Type EventType `json:"type"`
	Time time.Time `json:"timestamp"`
	Run  string    `json:"run_id"`
}

// EventType returns the type of this event.
func (e BaseEvent) EventType() EventType { return e.Type }

// Timestamp returns when this event occurred.
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// RunID returns the identifier of the run that produced this event.
func (e BaseEvent) RunID() string { return e.Run }

func newBase(t EventType, runID string) BaseEvent {
	return BaseEvent{Type: t, Time: time.Now(), Run: runID}
}
