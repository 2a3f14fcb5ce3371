package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}

	if m.registry == nil {
		t.Error("Registry is nil")
	}

	// Verify routing metrics
	if m.RoutingDecisionsTotal == nil {
		t.Error("RoutingDecisionsTotal is nil")
	}
	if m.RoutingDuration == nil {
		t.Error("RoutingDuration is nil")
	}
	if m.RoutingConfidence == nil {
		t.Error("RoutingConfidence is nil")
	}

	// Verify execution metrics
	if m.AgentExecutionsTotal == nil {
		t.Error("AgentExecutionsTotal is nil")
	}
	if m.AgentExecutionDuration == nil {
		t.Error("AgentExecutionDuration is nil")
	}
	if m.FallbacksTotal == nil {
		t.Error("FallbacksTotal is nil")
	}

	// Verify session metrics
	if m.SessionsActive == nil {
		t.Error("SessionsActive is nil")
	}
	if m.PermissionDenialsTotal == nil {
		t.Error("PermissionDenialsTotal is nil")
	}

	// Verify sandbox metrics
	if m.SandboxViolationsTotal == nil {
		t.Error("SandboxViolationsTotal is nil")
	}
	if m.SandboxesActive == nil {
		t.Error("SandboxesActive is nil")
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()

	m.RoutingDecisionsTotal.WithLabelValues("dte", "rule").Inc()
	m.AgentExecutionsTotal.WithLabelValues("dte", "success").Inc()
	m.SessionsActive.Set(3)
	m.SandboxViolationsTotal.WithLabelValues("memory_limit_exceeded").Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"routing_decisions_total",
		"agent_executions_total",
		"sessions_active 3",
		"sandbox_violations_total",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRegistry(t *testing.T) {
	m := NewMetrics()
	if m.Registry() != m.registry {
		t.Error("Registry() did not return the internal registry")
	}
}
