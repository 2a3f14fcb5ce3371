package router

import (
	"sync"
	"time"
)

// statsSampleWindow bounds the confidence and latency sample buffers
const statsSampleWindow = 1000

// Stats tracks per-method routing counters with bounded confidence and
// latency samples.
type Stats struct {
	mu sync.Mutex

	totalRequests     int64
	ruleDecisions     int64
	semanticDecisions int64
	llmDecisions      int64
	fallbackDecisions int64

	confidenceSamples []float64
	latencySamples    []time.Duration
}

// NewStats creates an empty stats tracker
func NewStats() *Stats {
	return &Stats{}
}

// Record tallies a routing decision
func (s *Stats) Record(method string, confidence float64, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalRequests++
	switch method {
	case MethodRule:
		s.ruleDecisions++
	case MethodSemantic:
		s.semanticDecisions++
	case MethodLLM:
		s.llmDecisions++
	case MethodEmergency:
		s.fallbackDecisions++
	}

	s.confidenceSamples = appendBounded(s.confidenceSamples, confidence)
	s.latencySamples = appendBounded(s.latencySamples, elapsed)
}

func appendBounded[T any](samples []T, v T) []T {
	samples = append(samples, v)
	if len(samples) > statsSampleWindow {
		samples = samples[len(samples)-statsSampleWindow:]
	}
	return samples
}

// Snapshot is a point-in-time view of routing statistics
type Snapshot struct {
	TotalRequests     int64         `json:"total_requests"`
	RuleDecisions     int64         `json:"rule_decisions"`
	SemanticDecisions int64         `json:"semantic_decisions"`
	LLMDecisions      int64         `json:"llm_decisions"`
	FallbackDecisions int64         `json:"fallback_decisions"`
	AverageConfidence float64       `json:"average_confidence"`
	AverageLatency    time.Duration `json:"average_latency"`
	SuccessRate       float64       `json:"success_rate"`
}

// Snapshot returns current statistics
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		TotalRequests:     s.totalRequests,
		RuleDecisions:     s.ruleDecisions,
		SemanticDecisions: s.semanticDecisions,
		LLMDecisions:      s.llmDecisions,
		FallbackDecisions: s.fallbackDecisions,
	}

	if len(s.confidenceSamples) > 0 {
		sum := 0.0
		for _, c := range s.confidenceSamples {
			sum += c
		}
		snap.AverageConfidence = sum / float64(len(s.confidenceSamples))
	}

	if len(s.latencySamples) > 0 {
		var sum time.Duration
		for _, d := range s.latencySamples {
			sum += d
		}
		snap.AverageLatency = sum / time.Duration(len(s.latencySamples))
	}

	if s.totalRequests > 0 {
		snap.SuccessRate = float64(s.totalRequests-s.fallbackDecisions) / float64(s.totalRequests)
	}

	return snap
}

// Reset zeroes all counters and samples
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalRequests = 0
	s.ruleDecisions = 0
	s.semanticDecisions = 0
	s.llmDecisions = 0
	s.fallbackDecisions = 0
	s.confidenceSamples = nil
	s.latencySamples = nil
}
