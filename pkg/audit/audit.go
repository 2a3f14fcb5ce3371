// Package audit emits security-relevant events (permission denials,
// sandbox violations, fallback invocations, routing decisions) to an
// external collector. Publishing is fire-and-forget: a slow or absent
// collector never blocks the pipeline.
package audit

import (
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Event kinds emitted by the pipeline
const (
	KindSessionCreated    = "session_created"
	KindSessionTerminated = "session_terminated"
	KindPermissionGranted = "permission_granted"
	KindPermissionDenied  = "permission_denied"
	KindSandboxViolation  = "sandbox_violation"
	KindFallbackInvoked   = "fallback_invoked"
	KindRoutingDecision   = "routing_decision"
)

// Event is a single audit record
type Event struct {
	ID        string                 `json:"id"`
	Kind      string                 `json:"kind"`
	SessionID string                 `json:"session_id,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
	Resource  string                 `json:"resource,omitempty"`
	Decision  string                 `json:"decision,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Sink receives audit events. Implementations must not block.
type Sink interface {
	Publish(event Event)
}

// NewEvent stamps an event with an id and timestamp
func NewEvent(kind string) Event {
	id, err := gonanoid.New()
	if err != nil {
		id = "evt-unknown"
	}

	return Event{
		ID:        id,
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

// NopSink discards everything; used in tests
type NopSink struct{}

func (NopSink) Publish(Event) {}
