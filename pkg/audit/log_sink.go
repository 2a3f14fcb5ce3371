package audit

import (
	"github.com/rs/zerolog"
)

// LogSink writes audit events to a structured logger. It is the default
// sink when no external collector is configured.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink writing to the given logger
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Publish logs the event at info level
func (s *LogSink) Publish(event Event) {
	s.logger.Info().
		Str("event_id", event.ID).
		Str("kind", event.Kind).
		Str("session_id", event.SessionID).
		Str("user_id", event.UserID).
		Str("resource", event.Resource).
		Str("decision", event.Decision).
		Time("event_time", event.Timestamp).
		Interface("details", event.Details).
		Msg("Audit event")
}
