// Package router maps user queries to agent keys through a three-tier
// escalation: keyword rules, embedding similarity, then LLM
// arbitration. Routing never fails; every error path degrades to the
// fallback agent.
package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lucahq/luca/pkg/audit"
	"github.com/lucahq/luca/pkg/provider"
)

// Routing methods, reported on every decision
const (
	MethodRule      = "rule"
	MethodSemantic  = "semantic"
	MethodLLM       = "llm"
	MethodEmergency = "emergency_fallback"
)

const (
	defaultRuleThreshold     = 0.7
	defaultSemanticThreshold = 0.75
	emergencyConfidence      = 0.2
)

// TierAttempt records one escalation step for audit
type TierAttempt struct {
	Method     string  `json:"method"`
	AgentKey   string  `json:"agent,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Decision is the outcome of routing one query
type Decision struct {
	Query        string                 `json:"query"`
	AgentKey     string                 `json:"selected_agent"`
	Confidence   float64                `json:"confidence"`
	Method       string                 `json:"method_used"`
	MethodsTried []TierAttempt          `json:"methods_tried,omitempty"`
	Elapsed      time.Duration          `json:"processing_time"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Err          string                 `json:"error,omitempty"`
}

// Config holds router tuning knobs
type Config struct {
	FallbackKey       string  `mapstructure:"fallback_agent"`
	RuleThreshold     float64 `mapstructure:"rule_threshold"`
	SemanticThreshold float64 `mapstructure:"semantic_threshold"`
}

// DefaultConfig returns the default router configuration
func DefaultConfig() Config {
	return Config{
		FallbackKey:       "general",
		RuleThreshold:     defaultRuleThreshold,
		SemanticThreshold: defaultSemanticThreshold,
	}
}

// Router routes queries to agents. All fields are set at construction;
// only the warmed example embeddings mutate afterwards.
type Router struct {
	profiles  []Profile
	completer provider.Completer
	embedder  provider.Embedder
	cache     *EmbeddingCache
	sink      audit.Sink
	stats     *Stats

	fallbackKey       string
	ruleThreshold     float64
	semanticThreshold float64

	mu                sync.RWMutex
	exampleEmbeddings map[string][][]float32
}

// New creates a router over the given profiles. The cache may be nil,
// in which case example embeddings are regenerated on every warm.
func New(cfg Config, profiles []Profile, completer provider.Completer, embedder provider.Embedder, cache *EmbeddingCache, sink audit.Sink) (*Router, error) {
	if len(profiles) == 0 {
		profiles = DefaultProfiles()
	}
	if completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	if cfg.FallbackKey == "" {
		cfg.FallbackKey = "general"
	}
	if cfg.RuleThreshold == 0 {
		cfg.RuleThreshold = defaultRuleThreshold
	}
	if cfg.SemanticThreshold == 0 {
		cfg.SemanticThreshold = defaultSemanticThreshold
	}

	found := false
	for _, p := range profiles {
		if p.Key == cfg.FallbackKey {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("fallback agent %q is not a registered profile", cfg.FallbackKey)
	}

	return &Router{
		profiles:          profiles,
		completer:         completer,
		embedder:          embedder,
		cache:             cache,
		sink:              sink,
		stats:             NewStats(),
		fallbackKey:       cfg.FallbackKey,
		ruleThreshold:     cfg.RuleThreshold,
		semanticThreshold: cfg.SemanticThreshold,
	}, nil
}

// Profiles returns the registered profiles in registration order
func (r *Router) Profiles() []Profile {
	return r.profiles
}

// FallbackKey returns the fallback agent key
func (r *Router) FallbackKey() string {
	return r.fallbackKey
}

// Stats returns the routing statistics tracker
func (r *Router) Stats() *Stats {
	return r.stats
}

// Route decides which agent should handle the query. It never returns
// an error: provider failures and panics degrade to an emergency
// decision naming the fallback agent.
func (r *Router) Route(ctx context.Context, query string, metadata map[string]interface{}) (decision Decision) {
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			decision = r.emergency(query, metadata, start, fmt.Sprintf("panic: %v", rec))
		}
		decision.Elapsed = time.Since(start)
		r.stats.Record(decision.Method, decision.Confidence, decision.Elapsed)
		r.auditDecision(decision, metadata)

		log.Info().
			Str("agent", decision.AgentKey).
			Str("method", decision.Method).
			Float64("confidence", decision.Confidence).
			Dur("elapsed", decision.Elapsed).
			Msg("Routing decision")
	}()

	decision = Decision{Query: query, Metadata: metadata}

	if query == "" {
		decision.AgentKey = r.fallbackKey
		decision.Confidence = emergencyConfidence
		decision.Method = MethodEmergency
		decision.Err = "empty query"
		return decision
	}

	// Tier 1: keyword rules
	ruleKey, ruleConf := r.ruleRoute(query)
	decision.MethodsTried = append(decision.MethodsTried, TierAttempt{Method: MethodRule, AgentKey: ruleKey, Confidence: ruleConf})

	if ruleKey != "" && ruleConf > r.ruleThreshold {
		decision.AgentKey = ruleKey
		decision.Confidence = ruleConf
		decision.Method = MethodRule
		return decision
	}

	// Tier 2: embedding similarity
	semKey, semConf, err := r.semanticRoute(ctx, query)
	if err != nil {
		log.Warn().Err(err).Msg("Semantic routing unavailable, escalating to arbitration")
	}
	decision.MethodsTried = append(decision.MethodsTried, TierAttempt{Method: MethodSemantic, AgentKey: semKey, Confidence: semConf})

	if semKey != "" {
		decision.AgentKey = semKey
		decision.Confidence = semConf
		decision.Method = MethodSemantic
		return decision
	}

	// Tier 3: LLM arbitration
	llmKey, llmConf, err := r.llmRoute(ctx, query)
	if err != nil {
		return r.emergency(query, metadata, start, err.Error())
	}
	decision.MethodsTried = append(decision.MethodsTried, TierAttempt{Method: MethodLLM, AgentKey: llmKey, Confidence: llmConf})

	decision.AgentKey = llmKey
	decision.Confidence = llmConf
	decision.Method = MethodLLM
	return decision
}

func (r *Router) emergency(query string, metadata map[string]interface{}, start time.Time, reason string) Decision {
	log.Error().Str("reason", reason).Msg("Routing failed, emergency fallback")

	return Decision{
		Query:      query,
		AgentKey:   r.fallbackKey,
		Confidence: emergencyConfidence,
		Method:     MethodEmergency,
		Metadata:   metadata,
		Elapsed:    time.Since(start),
		Err:        reason,
	}
}

func (r *Router) auditDecision(decision Decision, metadata map[string]interface{}) {
	event := audit.NewEvent(audit.KindRoutingDecision)
	event.Decision = decision.AgentKey
	if sid, ok := metadata["session_id"].(string); ok {
		event.SessionID = sid
	}
	if uid, ok := metadata["user_id"].(string); ok {
		event.UserID = uid
	}
	event.Details = map[string]interface{}{
		"method":     decision.Method,
		"confidence": decision.Confidence,
	}
	if decision.Err != "" {
		event.Details["error"] = decision.Err
	}
	r.sink.Publish(event)
}
