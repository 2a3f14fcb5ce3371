// Package executor runs agents inside a bounded worker with wall-clock
// timeouts, a single fallback hop, and execution statistics. Callers
// always get a structured Result; agent failures never propagate as
// errors or panics.
package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lucahq/luca/pkg/agent"
	"github.com/lucahq/luca/pkg/audit"
)

// serviceUnavailableMessage is the terminal reply when both the chosen
// agent and the fallback fail.
const serviceUnavailableMessage = "Sistema temporalmente no disponible. Por favor, intenta nuevamente en unos momentos."

// DefaultTimeout bounds agent execution when no override is set
const DefaultTimeout = 30 * time.Second

// Result is the structured outcome of one execution
type Result struct {
	AgentUsed      string          `json:"agent_used"`
	Messages       []agent.Message `json:"messages"`
	NextAgent      string          `json:"next_agent,omitempty"`
	Success        bool            `json:"success"`
	FallbackUsed   bool            `json:"fallback_used"`
	FallbackReason string          `json:"fallback_reason,omitempty"`
	Err            string          `json:"error,omitempty"`
	ExecutionTime  time.Duration   `json:"execution_time"`
}

// Executor dispatches agents from a registry with per-agent timeout
// overrides and a designated fallback agent.
type Executor struct {
	mu             sync.RWMutex
	agents         map[string]agent.Agent
	agentTimeouts  map[string]time.Duration
	fallbackKey    string
	defaultTimeout time.Duration
	stats          *Stats
	sink           audit.Sink
}

// New creates an executor. fallbackKey names the agent used for the
// fallback hop; it does not have to be registered yet.
func New(fallbackKey string, defaultTimeout time.Duration, sink audit.Sink) *Executor {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	if sink == nil {
		sink = audit.NopSink{}
	}

	return &Executor{
		agents:         make(map[string]agent.Agent),
		agentTimeouts:  make(map[string]time.Duration),
		fallbackKey:    fallbackKey,
		defaultTimeout: defaultTimeout,
		stats:          NewStats(),
		sink:           sink,
	}
}

// Register adds an agent to the registry, replacing any previous entry
// under the same key.
func (e *Executor) Register(a agent.Agent) {
	e.mu.Lock()
	e.agents[a.Key()] = a
	e.mu.Unlock()

	log.Info().Str("agent", a.Key()).Msg("Agent registered")
}

// SetAgentTimeout overrides the execution timeout for one agent
func (e *Executor) SetAgentTimeout(agentKey string, timeout time.Duration) {
	e.mu.Lock()
	e.agentTimeouts[agentKey] = timeout
	e.mu.Unlock()

	log.Info().Str("agent", agentKey).Dur("timeout", timeout).Msg("Agent timeout override set")
}

// TimeoutFor returns the effective timeout for an agent
func (e *Executor) TimeoutFor(agentKey string) time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if t, ok := e.agentTimeouts[agentKey]; ok {
		return t
	}
	return e.defaultTimeout
}

// Stats returns the execution statistics tracker
func (e *Executor) Stats() *Stats {
	return e.stats
}

// Execute runs the named agent against state within a wall-clock
// timeout. A zero timeout uses the per-agent override or the default.
// The worker receives its own copy of state, so an abandoned worker
// cannot mutate what the caller observes.
func (e *Executor) Execute(ctx context.Context, agentKey string, state *agent.State, timeout time.Duration, enableFallback bool) *Result {
	e.stats.recordExecution()
	start := time.Now()

	if timeout <= 0 {
		timeout = e.TimeoutFor(agentKey)
	}

	e.mu.RLock()
	a, ok := e.agents[agentKey]
	e.mu.RUnlock()

	if !ok {
		log.Error().Str("agent", agentKey).Msg("Agent not found")
		reason := fmt.Sprintf("agent %s not found", agentKey)
		if enableFallback {
			return e.executeFallback(ctx, state, reason, start)
		}
		return e.errorResult(reason, start)
	}

	log.Info().Str("agent", agentKey).Dur("timeout", timeout).Msg("Executing agent")

	outcome := e.runBounded(ctx, a, state, timeout)

	switch {
	case outcome.timedOut:
		log.Warn().Str("agent", agentKey).Dur("timeout", timeout).Msg("Agent exceeded timeout")
		e.stats.recordTimeout()

		reason := fmt.Sprintf("timeout in %s (%s)", agentKey, timeout)
		if enableFallback {
			return e.executeFallback(ctx, state, reason, start)
		}
		return e.errorResult(reason, start)

	case outcome.err != nil:
		log.Error().Err(outcome.err).Str("agent", agentKey).Msg("Agent execution failed")
		e.stats.recordAgentError(agentKey)

		reason := fmt.Sprintf("error in %s: %s", agentKey, outcome.err)
		if enableFallback {
			return e.executeFallback(ctx, state, reason, start)
		}
		return e.errorResult(reason, start)

	case !validResponse(outcome.result):
		log.Warn().Str("agent", agentKey).Msg("Agent returned invalid response")
		e.stats.recordAgentError(agentKey)

		reason := fmt.Sprintf("invalid response from %s", agentKey)
		if enableFallback {
			return e.executeFallback(ctx, state, reason, start)
		}
		return e.errorResult(reason, start)
	}

	elapsed := time.Since(start)
	e.stats.recordSuccess(elapsed)

	log.Info().Str("agent", agentKey).Dur("elapsed", elapsed).Msg("Agent executed successfully")

	return &Result{
		AgentUsed:     agentKey,
		Messages:      outcome.result.Messages,
		NextAgent:     outcome.result.NextAgent,
		Success:       true,
		ExecutionTime: elapsed,
	}
}

type workerOutcome struct {
	result   *agent.Result
	err      error
	timedOut bool
}

// runBounded runs the agent in its own goroutine against a cloned
// state. On timeout the worker is abandoned; the buffered channel lets
// it finish and be collected without blocking anyone.
func (e *Executor) runBounded(ctx context.Context, a agent.Agent, state *agent.State, timeout time.Duration) workerOutcome {
	done := make(chan workerOutcome, 1)
	workerState := state.Clone()

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- workerOutcome{err: fmt.Errorf("agent panicked: %v", rec)}
			}
		}()
		result, err := a.Run(ctx, workerState)
		done <- workerOutcome{result: result, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case outcome := <-done:
		return outcome
	case <-timer.C:
		return workerOutcome{timedOut: true}
	case <-ctx.Done():
		return workerOutcome{err: ctx.Err()}
	}
}

// executeFallback re-invokes the fallback agent with the unmodified
// input state and no timeout enforcement.
func (e *Executor) executeFallback(ctx context.Context, state *agent.State, reason string, start time.Time) *Result {
	log.Info().Str("reason", reason).Msg("Executing fallback agent")
	e.stats.recordFallback()

	event := audit.NewEvent(audit.KindFallbackInvoked)
	if state != nil {
		event.SessionID = state.SessionID
		event.UserID = state.UserID
	}
	event.Details = map[string]interface{}{"reason": reason}
	e.sink.Publish(event)

	e.mu.RLock()
	fallback, ok := e.agents[e.fallbackKey]
	e.mu.RUnlock()

	if !ok {
		log.Error().Str("agent", e.fallbackKey).Msg("Fallback agent not available")
		return e.errorResult(serviceUnavailableMessage, start)
	}

	result, err := safeRun(ctx, fallback, state.Clone())
	if err != nil || !validResponse(result) {
		if err != nil {
			log.Error().Err(err).Msg("Fallback execution failed")
		} else {
			log.Error().Msg("Fallback returned invalid response")
		}
		return e.errorResult(serviceUnavailableMessage, start)
	}

	log.Info().Msg("Fallback executed successfully")

	return &Result{
		AgentUsed:      e.fallbackKey,
		Messages:       result.Messages,
		NextAgent:      result.NextAgent,
		Success:        true,
		FallbackUsed:   true,
		FallbackReason: reason,
		ExecutionTime:  time.Since(start),
	}
}

func safeRun(ctx context.Context, a agent.Agent, state *agent.State) (result *agent.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("agent panicked: %v", rec)
		}
	}()
	return a.Run(ctx, state)
}

// errorResult is the terminal structured error: an assistant-style
// apology plus a supervisor hint, never an error return.
func (e *Executor) errorResult(errMessage string, start time.Time) *Result {
	return &Result{
		AgentUsed: "error_handler",
		Messages: []agent.Message{
			{Role: agent.RoleAssistant, Content: serviceUnavailableMessage},
		},
		NextAgent:     "supervisor",
		Err:           errMessage,
		ExecutionTime: time.Since(start),
	}
}

// validResponse checks the structural contract: at least one assistant
// message with non-empty content.
func validResponse(result *agent.Result) bool {
	if result == nil || len(result.Messages) == 0 {
		return false
	}
	for _, msg := range result.Messages {
		if msg.Role == agent.RoleAssistant && strings.TrimSpace(msg.Content) != "" {
			return true
		}
	}
	return false
}
