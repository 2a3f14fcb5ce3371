package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucahq/luca/internal/metrics"
	"github.com/lucahq/luca/pkg/agent"
	"github.com/lucahq/luca/pkg/authority"
	"github.com/lucahq/luca/pkg/executor"
	"github.com/lucahq/luca/pkg/router"
	"github.com/lucahq/luca/pkg/sandbox"
)

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return f.reply, f.err
}

func (f *fakeCompleter) Provider() string { return "fake" }

type stubAgent struct {
	key     string
	content string
	err     error

	mu    sync.Mutex
	calls int
}

func (s *stubAgent) Key() string { return s.key }

func (s *stubAgent) Run(ctx context.Context, state *agent.State) (*agent.Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	return &agent.Result{
		Messages:  []agent.Message{{Role: agent.RoleAssistant, Content: s.content}},
		NextAgent: "supervisor",
	}, nil
}

func newTestOrchestrator(t *testing.T, agents ...agent.Agent) (*Orchestrator, *authority.Authority) {
	t.Helper()

	rt, err := router.New(router.DefaultConfig(), nil, &fakeCompleter{reply: "GeneralAgent, 0.8"}, nil, nil, nil)
	require.NoError(t, err)

	auth := authority.New(nil, nil)
	sandboxes := sandbox.NewManager(nil)
	exec := executor.New("general", time.Second, nil)
	for _, a := range agents {
		exec.Register(a)
	}

	return New(rt, auth, sandboxes, exec, nil, metrics.NewMetrics()), auth
}

func TestHandleRequestFullPipeline(t *testing.T) {
	dte := &stubAgent{key: "dte", content: "aquí están tus facturas"}
	o, auth := newTestOrchestrator(t, dte)

	resp, err := o.HandleRequest(context.Background(), Request{
		Query:  "quiero emitir una factura con folio y timbre dte",
		UserID: "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "dte", resp.AgentUsed)
	assert.Equal(t, router.MethodRule, resp.Method)
	assert.NotEmpty(t, resp.SessionID)
	assert.False(t, resp.Denied)
	assert.False(t, resp.FallbackUsed)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "aquí están tus facturas", resp.Messages[0].Content)
	assert.Equal(t, "supervisor", resp.NextAgent)

	// session issued under the dte_agent role
	info, ok := auth.SessionInfo(resp.SessionID)
	require.True(t, ok)
	assert.Equal(t, "dte_agent", info.Role)
}

func TestHandleRequestDenied(t *testing.T) {
	dte := &stubAgent{key: "dte", content: "facturas"}
	o, auth := newTestOrchestrator(t, dte)

	// supervisor sessions cannot read documents
	sessionID, err := auth.CreateSession("supervisor_agent", "user-1", nil)
	require.NoError(t, err)

	resp, err := o.HandleRequest(context.Background(), Request{
		Query:     "quiero emitir una factura con folio y timbre dte",
		SessionID: sessionID,
		UserID:    "user-1",
	})
	require.NoError(t, err)

	assert.True(t, resp.Denied)
	assert.Empty(t, resp.Messages)
	assert.Contains(t, resp.Err, "denied")
	assert.Zero(t, dte.calls, "denied requests must not reach the agent")
}

func TestHandleRequestFallback(t *testing.T) {
	dte := &stubAgent{key: "dte", err: errors.New("backend down")}
	general := &stubAgent{key: "general", content: "te ayudo igual"}
	o, _ := newTestOrchestrator(t, dte, general)

	resp, err := o.HandleRequest(context.Background(), Request{
		Query:  "quiero emitir una factura con folio y timbre dte",
		UserID: "user-1",
	})
	require.NoError(t, err)

	assert.True(t, resp.FallbackUsed)
	assert.Equal(t, "general", resp.AgentUsed)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "te ayudo igual", resp.Messages[0].Content)
}

func TestHandleRequestUnknownRoleInRequest(t *testing.T) {
	o, _ := newTestOrchestrator(t, &stubAgent{key: "dte", content: "ok"})

	_, err := o.HandleRequest(context.Background(), Request{
		Query:  "quiero emitir una factura con folio y timbre dte",
		UserID: "user-1",
		Role:   "nonexistent_role",
	})
	assert.Error(t, err)
}

func TestHandleRequestCarriesHistory(t *testing.T) {
	dte := &stubAgent{key: "dte", content: "ok"}
	o, _ := newTestOrchestrator(t, dte)

	resp, err := o.HandleRequest(context.Background(), Request{
		Query:  "quiero emitir una factura con folio y timbre dte",
		UserID: "user-1",
		History: []agent.Message{
			{Role: agent.RoleUser, Content: "hola"},
			{Role: agent.RoleAssistant, Content: "hola, ¿en qué te ayudo?"},
		},
	})
	require.NoError(t, err)
	assert.False(t, resp.Denied)
	assert.Equal(t, 1, dte.calls)
}

func TestReport(t *testing.T) {
	o, _ := newTestOrchestrator(t, &stubAgent{key: "dte", content: "ok"})

	_, err := o.HandleRequest(context.Background(), Request{
		Query:  "quiero emitir una factura con folio y timbre dte",
		UserID: "user-1",
	})
	require.NoError(t, err)

	report := o.Report()
	for _, key := range []string{"routing", "execution", "sessions", "sandboxes"} {
		assert.Contains(t, report, key)
	}

	routing := report["routing"].(router.Snapshot)
	assert.Equal(t, int64(1), routing.TotalRequests)
}

func TestStartAndShutdown(t *testing.T) {
	o, _ := newTestOrchestrator(t, &stubAgent{key: "general", content: "ok"})

	// no embedder configured: warmup fails soft, schedule still starts
	require.NoError(t, o.Start(context.Background()))
	o.Shutdown()
}

func TestSetAccessRule(t *testing.T) {
	dte := &stubAgent{key: "dte", content: "ok"}
	o, _ := newTestOrchestrator(t, dte)

	// require a level the dte_agent role cannot satisfy
	o.SetAccessRule("dte", "dte_agent", authority.ResourceDocument, authority.LevelSystem)

	resp, err := o.HandleRequest(context.Background(), Request{
		Query:  "quiero emitir una factura con folio y timbre dte",
		UserID: "user-1",
	})
	require.NoError(t, err)
	assert.True(t, resp.Denied)
}
