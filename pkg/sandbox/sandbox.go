// Package sandbox provides resource-bounded execution wrappers for agent
// invocations: per-role ceilings, a polling resource monitor, and
// guaranteed teardown on every exit path.
package sandbox

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lucahq/luca/pkg/audit"
)

// Fn is the unit of work executed under a ceiling
type Fn func(ctx context.Context) (interface{}, error)

// Sandbox bounds one agent invocation at a time. Constructed per role
// from a Config; each Execute call gets its own scratch workspace and
// monitor, both released before Execute returns.
type Sandbox struct {
	config    Config
	sessionID string
	sink      audit.Sink
	createdAt time.Time

	mu     sync.Mutex
	closed bool
	usage  Usage
}

// New creates a sandbox for one agent type and session
func New(config Config, sessionID string, sink audit.Sink) (*Sandbox, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid sandbox config: %w", err)
	}
	if sink == nil {
		sink = audit.NopSink{}
	}

	return &Sandbox{
		config:    config,
		sessionID: sessionID,
		sink:      sink,
		createdAt: time.Now(),
	}, nil
}

// Config returns the sandbox configuration
func (s *Sandbox) Config() Config {
	return s.config
}

// CreatedAt returns when the sandbox was constructed
func (s *Sandbox) CreatedAt() time.Time {
	return s.createdAt
}

// LastUsage returns the most recent resource sample
func (s *Sandbox) LastUsage() Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// Close marks the sandbox unusable
func (s *Sandbox) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Execute runs fn under the active ceiling. With process isolation the
// work runs in its own goroutine with a scratch workspace and a monitor
// that proactively terminates it on a memory or wall-clock violation;
// with no isolation the work runs inline bounded only by wall-clock.
func (s *Sandbox) Execute(ctx context.Context, fn Fn) (interface{}, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSandboxClosed
	}
	s.mu.Unlock()

	if s.config.Isolation == IsolationNone {
		return s.executeInline(ctx, fn)
	}
	return s.executeIsolated(ctx, fn)
}

// executeInline applies only the reactive wall-clock limit
func (s *Sandbox) executeInline(ctx context.Context, fn Fn) (interface{}, error) {
	start := time.Now()

	result, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	if max := s.config.ResourceLimits.MaxExecutionTime; max > 0 && time.Since(start) > max {
		violation := &Violation{
			Reason: ReasonTimeLimit,
			Usage:  Usage{Timestamp: time.Now(), Elapsed: time.Since(start)},
		}
		s.auditViolation(violation)
		return nil, violation
	}

	return result, nil
}

// executeIsolated runs fn in a dedicated goroutine under a monitor
func (s *Sandbox) executeIsolated(ctx context.Context, fn Fn) (result interface{}, err error) {
	workDir, err := os.MkdirTemp("", fmt.Sprintf("sandbox_%s_", s.sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate scratch workspace: %w", err)
	}

	restoreLimits := applyOSLimits(s.config.ResourceLimits)
	mon := newMonitor(s.config.ResourceLimits)

	// Teardown on every exit path: monitor stopped, OS limits restored,
	// scratch workspace removed.
	defer func() {
		mon.stop()

		s.mu.Lock()
		s.usage = mon.currentUsage()
		s.mu.Unlock()

		restoreLimits()
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			log.Error().Err(rmErr).Str("dir", workDir).Msg("Failed to remove scratch workspace")
		}
	}()

	log.Debug().
		Str("agent_type", s.config.AgentType).
		Str("session_id", s.sessionID).
		Str("work_dir", workDir).
		Msg("Sandbox execution started")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		res, runErr := fn(runCtx)
		done <- outcome{result: res, err: runErr}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case v := <-mon.violation:
		// Proactive termination: cancel the worker and reclaim
		cancel()
		s.auditViolation(v)
		return nil, v
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}
}

func (s *Sandbox) auditViolation(v *Violation) {
	event := audit.NewEvent(audit.KindSandboxViolation)
	event.SessionID = s.sessionID
	event.Resource = s.config.AgentType
	event.Decision = string(v.Reason)
	event.Details = map[string]interface{}{
		"memory_mb": v.Usage.MemoryMB,
		"elapsed":   v.Usage.Elapsed.String(),
	}
	s.sink.Publish(event)

	log.Error().
		Str("agent_type", s.config.AgentType).
		Str("session_id", s.sessionID).
		Str("reason", string(v.Reason)).
		Msg("Sandbox execution terminated")
}
