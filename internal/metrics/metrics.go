package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// Routing metrics
	RoutingDecisionsTotal *prometheus.CounterVec
	RoutingDuration       *prometheus.HistogramVec
	RoutingConfidence     *prometheus.HistogramVec

	// Execution metrics
	AgentExecutionsTotal   *prometheus.CounterVec
	AgentExecutionDuration *prometheus.HistogramVec
	FallbacksTotal         prometheus.Counter

	// Session metrics
	SessionsActive         prometheus.Gauge
	SessionsTotal          prometheus.Counter
	PermissionDenialsTotal *prometheus.CounterVec

	// Sandbox metrics
	SandboxViolationsTotal *prometheus.CounterVec
	SandboxesActive        prometheus.Gauge
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		// Routing metrics
		RoutingDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "routing_decisions_total",
				Help: "Total number of routing decisions",
			},
			[]string{"agent", "method"},
		),
		RoutingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "routing_duration_seconds",
				Help:    "Duration of routing decisions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		RoutingConfidence: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "routing_confidence",
				Help:    "Confidence of routing decisions",
				Buckets: prometheus.LinearBuckets(0.0, 0.1, 11),
			},
			[]string{"method"},
		),

		// Execution metrics
		AgentExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_executions_total",
				Help: "Total number of agent executions",
			},
			[]string{"agent", "status"},
		),
		AgentExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_execution_duration_seconds",
				Help:    "Duration of agent executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent"},
		),
		FallbacksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "agent_fallbacks_total",
				Help: "Total number of fallback invocations",
			},
		),

		// Session metrics
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sessions_active",
				Help: "Number of currently active sessions",
			},
		),
		SessionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sessions_total",
				Help: "Total number of sessions created",
			},
		),
		PermissionDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "permission_denials_total",
				Help: "Total number of denied permission checks",
			},
			[]string{"resource"},
		),

		// Sandbox metrics
		SandboxViolationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sandbox_violations_total",
				Help: "Total number of sandbox resource violations",
			},
			[]string{"reason"},
		),
		SandboxesActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sandboxes_active",
				Help: "Number of currently active sandboxes",
			},
		),
	}

	// Register all metrics
	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	// Routing metrics
	m.registry.MustRegister(m.RoutingDecisionsTotal)
	m.registry.MustRegister(m.RoutingDuration)
	m.registry.MustRegister(m.RoutingConfidence)

	// Execution metrics
	m.registry.MustRegister(m.AgentExecutionsTotal)
	m.registry.MustRegister(m.AgentExecutionDuration)
	m.registry.MustRegister(m.FallbacksTotal)

	// Session metrics
	m.registry.MustRegister(m.SessionsActive)
	m.registry.MustRegister(m.SessionsTotal)
	m.registry.MustRegister(m.PermissionDenialsTotal)

	// Sandbox metrics
	m.registry.MustRegister(m.SandboxViolationsTotal)
	m.registry.MustRegister(m.SandboxesActive)
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
