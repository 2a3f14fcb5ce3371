package agent

import (
	"context"
	"errors"
	"strings"
)

// Message roles used throughout the pipeline
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message represents a single conversation turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// State carries the conversation state an agent consumes. The executor
// hands each worker its own copy, so agents may mutate it freely.
type State struct {
	Messages  []Message              `json:"messages"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	SessionID string                 `json:"session_id"`
	UserID    string                 `json:"user_id"`
}

// Result is what an agent produces: response messages plus a routing hint
// for the supervisor loop.
type Result struct {
	Messages  []Message `json:"messages"`
	NextAgent string    `json:"next_agent,omitempty"`
}

// Agent is the pluggable handler contract. Implementations must be safe
// for concurrent use; the executor may run several invocations at once.
type Agent interface {
	// Key returns the stable registry key for this agent
	Key() string

	// Run consumes conversation state and produces a response
	Run(ctx context.Context, state *State) (*Result, error)
}

// ErrNilState is returned when an agent is invoked without state
var ErrNilState = errors.New("agent state is nil")

// Clone returns a deep copy of the state. Workers that may be abandoned
// on timeout receive a clone so they can never mutate shared buffers.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}

	clone := &State{
		SessionID: s.SessionID,
		UserID:    s.UserID,
	}

	if s.Messages != nil {
		clone.Messages = make([]Message, len(s.Messages))
		copy(clone.Messages, s.Messages)
	}

	if s.Metadata != nil {
		clone.Metadata = make(map[string]interface{}, len(s.Metadata))
		for k, v := range s.Metadata {
			clone.Metadata[k] = v
		}
	}

	return clone
}

// LatestUserTurn returns the content of the most recent user message, or
// an empty string when the state holds no user turn.
func (s *State) LatestUserTurn() string {
	if s == nil {
		return ""
	}

	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return strings.TrimSpace(s.Messages[i].Content)
		}
	}

	return ""
}
