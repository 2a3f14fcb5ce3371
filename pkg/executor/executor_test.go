package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucahq/luca/pkg/agent"
)

type stubAgent struct {
	key    string
	result *agent.Result
	err    error
	delay  time.Duration
	panics bool

	mu    sync.Mutex
	calls int
	seen  *agent.State
}

func (s *stubAgent) Key() string { return s.key }

func (s *stubAgent) Run(ctx context.Context, state *agent.State) (*agent.Result, error) {
	s.mu.Lock()
	s.calls++
	s.seen = state
	s.mu.Unlock()

	if s.panics {
		panic("boom")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.result, s.err
}

func (s *stubAgent) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func okResult(content string) *agent.Result {
	return &agent.Result{
		Messages:  []agent.Message{{Role: agent.RoleAssistant, Content: content}},
		NextAgent: "supervisor",
	}
}

func newState() *agent.State {
	return &agent.State{
		Messages:  []agent.Message{{Role: agent.RoleUser, Content: "hola"}},
		SessionID: "sess-1",
		UserID:    "user-1",
	}
}

func TestExecuteSuccess(t *testing.T) {
	e := New("general", time.Second, nil)
	e.Register(&stubAgent{key: "dte", result: okResult("listo")})

	result := e.Execute(context.Background(), "dte", newState(), 0, true)

	require.True(t, result.Success)
	assert.Equal(t, "dte", result.AgentUsed)
	assert.False(t, result.FallbackUsed)
	assert.Equal(t, "supervisor", result.NextAgent)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "listo", result.Messages[0].Content)

	snap := e.Stats().Snapshot()
	assert.Equal(t, int64(1), snap.TotalExecutions)
	assert.Equal(t, int64(1), snap.SuccessfulExecutions)
}

func TestExecuteTimeoutWithFallback(t *testing.T) {
	e := New("general", time.Second, nil)
	e.Register(&stubAgent{key: "dte", delay: time.Second, result: okResult("tarde")})
	fallback := &stubAgent{key: "general", result: okResult("fallback ok")}
	e.Register(fallback)

	result := e.Execute(context.Background(), "dte", newState(), 10*time.Millisecond, true)

	require.True(t, result.Success)
	assert.True(t, result.FallbackUsed)
	assert.Equal(t, "general", result.AgentUsed)
	assert.Contains(t, result.FallbackReason, "timeout")
	assert.Equal(t, 1, fallback.callCount())

	snap := e.Stats().Snapshot()
	assert.Equal(t, int64(1), snap.TimeoutErrors)
	assert.Equal(t, int64(1), snap.FallbackUsed)
}

func TestExecuteTimeoutWithoutFallback(t *testing.T) {
	e := New("general", time.Second, nil)
	e.Register(&stubAgent{key: "dte", delay: time.Second, result: okResult("tarde")})

	result := e.Execute(context.Background(), "dte", newState(), 10*time.Millisecond, false)

	assert.False(t, result.Success)
	assert.Equal(t, "error_handler", result.AgentUsed)
	assert.Equal(t, "supervisor", result.NextAgent)
	assert.Contains(t, result.Err, "timeout")
	require.Len(t, result.Messages, 1)
	assert.Equal(t, agent.RoleAssistant, result.Messages[0].Role)
}

func TestExecuteAgentNotFound(t *testing.T) {
	e := New("general", time.Second, nil)
	fallback := &stubAgent{key: "general", result: okResult("fallback ok")}
	e.Register(fallback)

	result := e.Execute(context.Background(), "missing", newState(), 0, true)

	require.True(t, result.Success)
	assert.True(t, result.FallbackUsed)
	assert.Contains(t, result.FallbackReason, "not found")
}

func TestExecuteAgentNotFoundNoFallback(t *testing.T) {
	e := New("general", time.Second, nil)

	result := e.Execute(context.Background(), "missing", newState(), 0, false)

	assert.False(t, result.Success)
	assert.Contains(t, result.Err, "not found")
}

func TestExecuteInvalidResponse(t *testing.T) {
	e := New("general", time.Second, nil)
	// assistant message with blank content fails structural validation
	e.Register(&stubAgent{key: "dte", result: &agent.Result{
		Messages: []agent.Message{{Role: agent.RoleAssistant, Content: "   "}},
	}})
	e.Register(&stubAgent{key: "general", result: okResult("fallback ok")})

	result := e.Execute(context.Background(), "dte", newState(), 0, true)

	require.True(t, result.Success)
	assert.True(t, result.FallbackUsed)
	assert.Contains(t, result.FallbackReason, "invalid response")

	snap := e.Stats().Snapshot()
	assert.Equal(t, int64(1), snap.AgentErrors["dte"])
}

func TestExecuteAgentError(t *testing.T) {
	e := New("general", time.Second, nil)
	e.Register(&stubAgent{key: "dte", err: errors.New("db unavailable")})

	result := e.Execute(context.Background(), "dte", newState(), 0, false)

	assert.False(t, result.Success)
	assert.Contains(t, result.Err, "db unavailable")
	assert.Equal(t, int64(1), e.Stats().Snapshot().AgentErrors["dte"])
}

func TestExecuteAgentPanic(t *testing.T) {
	e := New("general", time.Second, nil)
	e.Register(&stubAgent{key: "dte", panics: true})
	e.Register(&stubAgent{key: "general", result: okResult("fallback ok")})

	result := e.Execute(context.Background(), "dte", newState(), 0, true)

	require.True(t, result.Success)
	assert.True(t, result.FallbackUsed)
	assert.Contains(t, result.FallbackReason, "panicked")
}

func TestExecuteFallbackAlsoFails(t *testing.T) {
	e := New("general", time.Second, nil)
	e.Register(&stubAgent{key: "dte", err: errors.New("broken")})
	e.Register(&stubAgent{key: "general", err: errors.New("also broken")})

	result := e.Execute(context.Background(), "dte", newState(), 0, true)

	assert.False(t, result.Success)
	assert.Equal(t, "error_handler", result.AgentUsed)
	assert.Equal(t, "supervisor", result.NextAgent)
	require.Len(t, result.Messages, 1)
	assert.Contains(t, result.Messages[0].Content, "temporalmente no disponible")
}

func TestExecuteFallbackMissing(t *testing.T) {
	e := New("general", time.Second, nil)
	e.Register(&stubAgent{key: "dte", err: errors.New("broken")})

	result := e.Execute(context.Background(), "dte", newState(), 0, true)

	assert.False(t, result.Success)
	assert.Equal(t, "error_handler", result.AgentUsed)
}

func TestWorkerGetsClonedState(t *testing.T) {
	stub := &stubAgent{key: "dte", result: okResult("ok")}
	e := New("general", time.Second, nil)
	e.Register(stub)

	state := newState()
	e.Execute(context.Background(), "dte", state, 0, false)

	require.NotNil(t, stub.seen)
	assert.NotSame(t, state, stub.seen)
	stub.seen.Messages[0].Content = "mutated"
	assert.Equal(t, "hola", state.Messages[0].Content)
}

func TestPerAgentTimeoutOverride(t *testing.T) {
	e := New("general", time.Second, nil)
	e.SetAgentTimeout("dte", 5*time.Millisecond)
	e.Register(&stubAgent{key: "dte", delay: 500 * time.Millisecond, result: okResult("tarde")})

	assert.Equal(t, 5*time.Millisecond, e.TimeoutFor("dte"))
	assert.Equal(t, time.Second, e.TimeoutFor("general"))

	result := e.Execute(context.Background(), "dte", newState(), 0, false)
	assert.Contains(t, result.Err, "timeout")
}

func TestExecuteConcurrent(t *testing.T) {
	e := New("general", time.Second, nil)
	e.Register(&stubAgent{key: "dte", result: okResult("ok"), delay: time.Millisecond})

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := e.Execute(context.Background(), "dte", newState(), 0, true)
			assert.True(t, result.Success)
		}()
	}
	wg.Wait()

	snap := e.Stats().Snapshot()
	assert.Equal(t, int64(25), snap.TotalExecutions)
	assert.Equal(t, int64(25), snap.SuccessfulExecutions)
	assert.Greater(t, snap.AvgResponseTime, time.Duration(0))
}

func TestStatsRatesAndReset(t *testing.T) {
	e := New("general", time.Second, nil)
	e.Register(&stubAgent{key: "dte", result: okResult("ok")})

	e.Execute(context.Background(), "dte", newState(), 0, true)
	e.Execute(context.Background(), "missing", newState(), 0, false)

	snap := e.Stats().Snapshot()
	assert.Equal(t, int64(2), snap.TotalExecutions)
	assert.InDelta(t, 0.5, snap.SuccessRate, 1e-9)

	e.Stats().Reset()
	snap = e.Stats().Snapshot()
	assert.Zero(t, snap.TotalExecutions)
	assert.Empty(t, snap.AgentErrors)
	assert.Zero(t, snap.AvgResponseTime)
}

func TestValidResponse(t *testing.T) {
	assert.False(t, validResponse(nil))
	assert.False(t, validResponse(&agent.Result{}))
	assert.False(t, validResponse(&agent.Result{Messages: []agent.Message{{Role: agent.RoleUser, Content: "hola"}}}))
	assert.True(t, validResponse(&agent.Result{Messages: []agent.Message{
		{Role: agent.RoleUser, Content: "hola"},
		{Role: agent.RoleAssistant, Content: "respuesta"},
	}}))
}
