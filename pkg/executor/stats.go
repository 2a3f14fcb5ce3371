package executor

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// responseTimeWindow bounds the response-time sample buffer
const responseTimeWindow = 1000

// Stats tracks execution outcomes across all agents
type Stats struct {
	mu sync.Mutex

	totalExecutions      int64
	successfulExecutions int64
	timeoutErrors        int64
	fallbackUsed         int64
	agentErrors          map[string]int64
	responseTimes        []time.Duration
}

// NewStats creates an empty stats tracker
func NewStats() *Stats {
	return &Stats{agentErrors: make(map[string]int64)}
}

func (s *Stats) recordExecution() {
	s.mu.Lock()
	s.totalExecutions++
	s.mu.Unlock()
}

func (s *Stats) recordSuccess(elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.successfulExecutions++
	s.responseTimes = append(s.responseTimes, elapsed)
	if len(s.responseTimes) > responseTimeWindow {
		s.responseTimes = s.responseTimes[len(s.responseTimes)-responseTimeWindow:]
	}
}

func (s *Stats) recordTimeout() {
	s.mu.Lock()
	s.timeoutErrors++
	s.mu.Unlock()
}

func (s *Stats) recordFallback() {
	s.mu.Lock()
	s.fallbackUsed++
	s.mu.Unlock()
}

func (s *Stats) recordAgentError(agentKey string) {
	s.mu.Lock()
	s.agentErrors[agentKey]++
	s.mu.Unlock()
}

// Snapshot is a point-in-time view of execution statistics
type Snapshot struct {
	TotalExecutions      int64            `json:"total_executions"`
	SuccessfulExecutions int64            `json:"successful_executions"`
	TimeoutErrors        int64            `json:"timeout_errors"`
	FallbackUsed         int64            `json:"fallback_used"`
	AgentErrors          map[string]int64 `json:"agent_errors"`
	SuccessRate          float64          `json:"success_rate"`
	FallbackRate         float64          `json:"fallback_rate"`
	TimeoutRate          float64          `json:"timeout_rate"`
	AvgResponseTime      time.Duration    `json:"avg_response_time"`
	MinResponseTime      time.Duration    `json:"min_response_time"`
	MaxResponseTime      time.Duration    `json:"max_response_time"`
}

// Snapshot returns current statistics
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		TotalExecutions:      s.totalExecutions,
		SuccessfulExecutions: s.successfulExecutions,
		TimeoutErrors:        s.timeoutErrors,
		FallbackUsed:         s.fallbackUsed,
		AgentErrors:          make(map[string]int64, len(s.agentErrors)),
	}
	for k, v := range s.agentErrors {
		snap.AgentErrors[k] = v
	}

	if s.totalExecutions > 0 {
		total := float64(s.totalExecutions)
		snap.SuccessRate = float64(s.successfulExecutions) / total
		snap.FallbackRate = float64(s.fallbackUsed) / total
		snap.TimeoutRate = float64(s.timeoutErrors) / total
	}

	if len(s.responseTimes) > 0 {
		var sum time.Duration
		snap.MinResponseTime = s.responseTimes[0]
		snap.MaxResponseTime = s.responseTimes[0]
		for _, d := range s.responseTimes {
			sum += d
			if d < snap.MinResponseTime {
				snap.MinResponseTime = d
			}
			if d > snap.MaxResponseTime {
				snap.MaxResponseTime = d
			}
		}
		snap.AvgResponseTime = sum / time.Duration(len(s.responseTimes))
	}

	return snap
}

// Reset zeroes all counters atomically
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalExecutions = 0
	s.successfulExecutions = 0
	s.timeoutErrors = 0
	s.fallbackUsed = 0
	s.agentErrors = make(map[string]int64)
	s.responseTimes = nil

	log.Info().Msg("Execution statistics reset")
}
