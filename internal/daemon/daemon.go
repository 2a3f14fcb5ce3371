// Package daemon assembles the full service from configuration:
// providers, router, authority, sandboxes, executor, orchestrator and
// the gateway server.
package daemon

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/lucahq/luca/internal/config"
	"github.com/lucahq/luca/internal/metrics"
	"github.com/lucahq/luca/pkg/agent"
	"github.com/lucahq/luca/pkg/audit"
	"github.com/lucahq/luca/pkg/authority"
	"github.com/lucahq/luca/pkg/executor"
	"github.com/lucahq/luca/pkg/gateway"
	"github.com/lucahq/luca/pkg/orchestrator"
	"github.com/lucahq/luca/pkg/provider"
	"github.com/lucahq/luca/pkg/router"
	"github.com/lucahq/luca/pkg/sandbox"
)

// Daemon owns the assembled service graph
type Daemon struct {
	cfg          *config.Config
	metrics      *metrics.Metrics
	orchestrator *orchestrator.Orchestrator
	server       *gateway.Server
	cache        *router.EmbeddingCache
	wsSink       *audit.WebSocketSink
}

// New builds the service graph from configuration
func New(cfg *config.Config) (*Daemon, error) {
	m := metrics.NewMetrics()

	broadcaster := gateway.NewBroadcaster()
	sinks := audit.MultiSink{broadcaster}
	var wsSink *audit.WebSocketSink
	if cfg.Audit.Enabled {
		sinks = append(sinks, audit.NewLogSink(log.Logger))
		if cfg.Audit.WebSocketURL != "" {
			wsSink = audit.NewWebSocketSink(cfg.Audit.WebSocketURL)
			sinks = append(sinks, wsSink)
		}
	}

	factory := &provider.Factory{}
	completer, err := factory.NewCompleter(provider.AuthProfile{
		Provider: cfg.Providers.Completion.Provider,
		APIKey:   cfg.Providers.Completion.APIKey,
		Model:    cfg.Providers.Completion.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build completion provider: %w", err)
	}

	embedder, err := factory.NewEmbedder(provider.AuthProfile{
		Provider: cfg.Providers.Embedding.Provider,
		APIKey:   cfg.Providers.Embedding.APIKey,
		Model:    cfg.Providers.Embedding.Model,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Embedding provider unavailable, semantic routing disabled")
		embedder = nil
	}

	cache, err := router.OpenCache(cfg.Router.CachePath)
	if err != nil {
		log.Warn().Err(err).Msg("Embedding cache unavailable, embeddings regenerate on start")
		cache = nil
	}

	rt, err := router.New(router.Config{
		FallbackKey:       cfg.Router.FallbackAgent,
		RuleThreshold:     cfg.Router.RuleThreshold,
		SemanticThreshold: cfg.Router.SemanticThreshold,
	}, nil, completer, embedder, cache, sinks)
	if err != nil {
		return nil, fmt.Errorf("failed to build router: %w", err)
	}

	journal, err := router.NewFeedbackJournal(cfg.Router.FeedbackPath)
	if err != nil {
		log.Warn().Err(err).Msg("Feedback journal unavailable")
		journal = nil
	}

	auth := authority.New(nil, sinks)
	sandboxes := sandbox.NewManager(sinks)

	exec := executor.New(cfg.Router.FallbackAgent, cfg.Executor.DefaultTimeout, sinks)
	exec.Register(agent.NewOnboardingAgent(completer))
	exec.Register(agent.NewDTEAgent(completer))
	exec.Register(agent.NewGeneralAgent(completer))
	for key, timeout := range cfg.Executor.AgentTimeouts {
		exec.SetAgentTimeout(key, timeout)
	}

	o := orchestrator.New(rt, auth, sandboxes, exec, journal, m)

	server := gateway.NewServer(gateway.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		MetricsPath: cfg.Server.MetricsPath,
	}, o, m, broadcaster)

	return &Daemon{
		cfg:          cfg,
		metrics:      m,
		orchestrator: o,
		server:       server,
		cache:        cache,
		wsSink:       wsSink,
	}, nil
}

// Orchestrator returns the assembled pipeline
func (d *Daemon) Orchestrator() *orchestrator.Orchestrator {
	return d.orchestrator
}

// Run starts the service and blocks until ctx is canceled
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.orchestrator.Start(ctx); err != nil {
		return err
	}
	if err := d.server.Start(); err != nil {
		return err
	}

	log.Info().Msg("Daemon running")
	<-ctx.Done()

	return d.shutdown()
}

func (d *Daemon) shutdown() error {
	log.Info().Msg("Daemon shutting down")

	if err := d.server.Stop(); err != nil {
		log.Warn().Err(err).Msg("Gateway shutdown error")
	}
	d.orchestrator.Shutdown()

	if d.cache != nil {
		if err := d.cache.Close(); err != nil {
			log.Warn().Err(err).Msg("Embedding cache close error")
		}
	}
	if d.wsSink != nil {
		if err := d.wsSink.Close(); err != nil {
			log.Warn().Err(err).Msg("Audit sink close error")
		}
	}

	log.Info().Msg("Daemon stopped")
	return nil
}
