package router

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// FeedbackEntry records how a routing decision played out against the
// agent that actually served the request.
type FeedbackEntry struct {
	Timestamp        string   `json:"timestamp"`
	OriginalDecision Decision `json:"original_decision"`
	ActualAgent      string   `json:"actual_agent_used"`
	UserSatisfaction *float64 `json:"user_satisfaction,omitempty"`
	WasCorrect       bool     `json:"was_correct"`
}

// FeedbackJournal appends routing feedback to a JSONL file for offline
// analysis.
type FeedbackJournal struct {
	path string
	mu   sync.Mutex
}

// NewFeedbackJournal creates a journal writing to path, creating parent
// directories as needed.
func NewFeedbackJournal(path string) (*FeedbackJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create feedback directory: %w", err)
	}
	return &FeedbackJournal{path: path}, nil
}

// Record appends one feedback entry
func (j *FeedbackJournal) Record(decision Decision, actualAgent string, satisfaction *float64) error {
	entry := FeedbackEntry{
		Timestamp:        time.Now().Format(time.RFC3339),
		OriginalDecision: decision,
		ActualAgent:      actualAgent,
		UserSatisfaction: satisfaction,
		WasCorrect:       decision.AgentKey == actualAgent,
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open feedback journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write feedback: %w", err)
	}

	log.Debug().
		Str("selected", decision.AgentKey).
		Str("actual", actualAgent).
		Bool("was_correct", entry.WasCorrect).
		Msg("Routing feedback recorded")

	return nil
}
