// Package orchestrator wires routing, session authority, sandboxed
// execution and the agent registry into one request pipeline. It owns
// the maintenance schedule: session sweeps, sandbox cleanup and
// embedding cache refresh.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/lucahq/luca/internal/metrics"
	"github.com/lucahq/luca/pkg/agent"
	"github.com/lucahq/luca/pkg/authority"
	"github.com/lucahq/luca/pkg/executor"
	"github.com/lucahq/luca/pkg/router"
	"github.com/lucahq/luca/pkg/sandbox"
)

// Request is one inbound user query
type Request struct {
	Query     string            `json:"query"`
	SessionID string            `json:"session_id,omitempty"`
	UserID    string            `json:"user_id"`
	Role      string            `json:"role,omitempty"`
	History   []agent.Message   `json:"history,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Response is the pipeline outcome for one request
type Response struct {
	SessionID    string          `json:"session_id"`
	AgentUsed    string          `json:"agent_used"`
	Method       string          `json:"routing_method"`
	Confidence   float64         `json:"routing_confidence"`
	Messages     []agent.Message `json:"messages"`
	NextAgent    string          `json:"next_agent,omitempty"`
	FallbackUsed bool            `json:"fallback_used"`
	Denied       bool            `json:"denied"`
	Elapsed      time.Duration   `json:"elapsed"`
	Err          string          `json:"error,omitempty"`
}

// access maps an agent key to the role its sessions run under and the
// resource gate its requests must clear.
type access struct {
	role     string
	resource authority.ResourceType
	level    authority.PermissionLevel
}

// defaultRole issues sessions for agents outside the access map
const defaultRole = "supervisor_agent"

// Orchestrator composes the request pipeline
type Orchestrator struct {
	router    *router.Router
	authority *authority.Authority
	sandboxes *sandbox.Manager
	executor  *executor.Executor
	journal   *router.FeedbackJournal
	metrics   *metrics.Metrics
	schedule  *cron.Cron
	accessMap map[string]access
}

// New creates an orchestrator over already-constructed services. The
// journal and metrics are optional.
func New(rt *router.Router, auth *authority.Authority, sandboxes *sandbox.Manager, exec *executor.Executor, journal *router.FeedbackJournal, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		router:    rt,
		authority: auth,
		sandboxes: sandboxes,
		executor:  exec,
		journal:   journal,
		metrics:   m,
		schedule:  cron.New(),
		accessMap: map[string]access{
			"onboarding": {role: "supervisor_agent", resource: authority.ResourceUserData, level: authority.LevelRead},
			"dte":        {role: "dte_agent", resource: authority.ResourceDocument, level: authority.LevelRead},
			"general":    {role: "sii_agent", resource: authority.ResourceTaxData, level: authority.LevelRead},
		},
	}
}

// SetAccessRule overrides the session role and resource gate for one
// agent key.
func (o *Orchestrator) SetAccessRule(agentKey, role string, resource authority.ResourceType, level authority.PermissionLevel) {
	o.accessMap[agentKey] = access{role: role, resource: resource, level: level}
}

// HandleRequest runs the full pipeline: route the query, check the
// session's permission for the chosen agent's resource, then execute
// the agent inside its sandbox profile. Failures come back as
// structured responses, not errors; the error return covers only
// session issuance.
func (o *Orchestrator) HandleRequest(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	decision := o.router.Route(ctx, req.Query, map[string]interface{}{
		"session_id": req.SessionID,
		"user_id":    req.UserID,
	})
	o.recordRouting(decision)

	gate, ok := o.accessMap[decision.AgentKey]
	if !ok {
		gate = access{role: defaultRole, resource: authority.ResourceTaxData, level: authority.LevelRead}
	}

	sessionID := req.SessionID
	if sessionID == "" {
		role := req.Role
		if role == "" {
			role = gate.role
		}
		var err error
		sessionID, err = o.authority.CreateSession(role, req.UserID, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		if o.metrics != nil {
			o.metrics.SessionsTotal.Inc()
		}
	}

	allowed, _, err := o.authority.CheckPermission(sessionID, gate.resource, "", gate.level)
	if err != nil {
		return nil, err
	}
	if !allowed {
		if o.metrics != nil {
			o.metrics.PermissionDenialsTotal.WithLabelValues(string(gate.resource)).Inc()
		}
		return &Response{
			SessionID:  sessionID,
			AgentUsed:  decision.AgentKey,
			Method:     decision.Method,
			Confidence: decision.Confidence,
			Denied:     true,
			Elapsed:    time.Since(start),
			Err:        fmt.Sprintf("access to %s denied", gate.resource),
		}, nil
	}

	state := &agent.State{
		Messages:  append(append([]agent.Message{}, req.History...), agent.Message{Role: agent.RoleUser, Content: req.Query}),
		SessionID: sessionID,
		UserID:    req.UserID,
	}

	raw, err := o.sandboxes.Execute(ctx, decision.AgentKey, sessionID, func(ctx context.Context) (interface{}, error) {
		return o.executor.Execute(ctx, decision.AgentKey, state, 0, true), nil
	})

	resp := &Response{
		SessionID:  sessionID,
		AgentUsed:  decision.AgentKey,
		Method:     decision.Method,
		Confidence: decision.Confidence,
	}

	if err != nil {
		var v *sandbox.Violation
		if errors.As(err, &v) {
			log.Warn().Str("reason", string(v.Reason)).Str("agent", decision.AgentKey).Msg("Execution terminated by sandbox")
			if o.metrics != nil {
				o.metrics.SandboxViolationsTotal.WithLabelValues(string(v.Reason)).Inc()
			}
		}
		resp.Err = err.Error()
		resp.Elapsed = time.Since(start)
		o.recordExecution(decision.AgentKey, "violation", time.Since(start))
		return resp, nil
	}

	result := raw.(*executor.Result)
	resp.AgentUsed = result.AgentUsed
	resp.Messages = result.Messages
	resp.NextAgent = result.NextAgent
	resp.FallbackUsed = result.FallbackUsed
	resp.Err = result.Err
	resp.Elapsed = time.Since(start)

	status := "success"
	if !result.Success {
		status = "error"
	}
	o.recordExecution(result.AgentUsed, status, result.ExecutionTime)
	if result.FallbackUsed && o.metrics != nil {
		o.metrics.FallbacksTotal.Inc()
	}

	if o.journal != nil {
		if err := o.journal.Record(decision, result.AgentUsed, nil); err != nil {
			log.Warn().Err(err).Msg("Failed to record routing feedback")
		}
	}

	return resp, nil
}

func (o *Orchestrator) recordRouting(decision router.Decision) {
	if o.metrics == nil {
		return
	}
	o.metrics.RoutingDecisionsTotal.WithLabelValues(decision.AgentKey, decision.Method).Inc()
	o.metrics.RoutingDuration.WithLabelValues(decision.Method).Observe(decision.Elapsed.Seconds())
	o.metrics.RoutingConfidence.WithLabelValues(decision.Method).Observe(decision.Confidence)
}

func (o *Orchestrator) recordExecution(agentKey, status string, elapsed time.Duration) {
	if o.metrics == nil {
		return
	}
	o.metrics.AgentExecutionsTotal.WithLabelValues(agentKey, status).Inc()
	o.metrics.AgentExecutionDuration.WithLabelValues(agentKey).Observe(elapsed.Seconds())
}

// Start warms the router and begins the maintenance schedule
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.router.WarmEmbeddings(ctx); err != nil {
		log.Warn().Err(err).Msg("Embedding warmup failed, semantic tier disabled until refresh")
	}

	jobs := []struct {
		spec string
		name string
		fn   func()
	}{
		{"@hourly", "session_sweep", func() {
			removed := o.authority.CleanupExpiredSessions()
			if o.metrics != nil {
				o.metrics.SessionsActive.Set(float64(o.authority.ActiveSessions()))
			}
			log.Debug().Int("removed", removed).Msg("Session sweep completed")
		}},
		{"@hourly", "sandbox_cleanup", func() {
			removed := o.sandboxes.CleanupStale()
			if o.metrics != nil {
				o.metrics.SandboxesActive.Set(float64(o.sandboxes.ActiveCount()))
			}
			log.Debug().Int("removed", removed).Msg("Sandbox cleanup completed")
		}},
		{"@daily", "embedding_refresh", func() {
			if err := o.router.WarmEmbeddings(context.Background()); err != nil {
				log.Warn().Err(err).Msg("Embedding refresh failed")
			}
		}},
	}

	for _, job := range jobs {
		if _, err := o.schedule.AddFunc(job.spec, job.fn); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
	}

	o.schedule.Start()
	log.Info().Int("jobs", len(jobs)).Msg("Orchestrator started")
	return nil
}

// Shutdown stops the maintenance schedule and waits for running jobs
func (o *Orchestrator) Shutdown() {
	ctx := o.schedule.Stop()
	<-ctx.Done()
	log.Info().Msg("Orchestrator stopped")
}

// RecordFeedback journals how a routing decision compared to the agent
// that ultimately served the request.
func (o *Orchestrator) RecordFeedback(decision router.Decision, actualAgent string, satisfaction *float64) error {
	if o.journal == nil {
		return nil
	}
	return o.journal.Record(decision, actualAgent, satisfaction)
}

// Report aggregates the security and statistics views of every service
func (o *Orchestrator) Report() map[string]interface{} {
	return map[string]interface{}{
		"routing":   o.router.Stats().Snapshot(),
		"execution": o.executor.Stats().Snapshot(),
		"sessions":  o.authority.SecurityReport(),
		"sandboxes": o.sandboxes.SecurityReport(),
	}
}
