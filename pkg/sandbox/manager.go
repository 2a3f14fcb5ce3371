package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lucahq/luca/pkg/audit"
)

// Manager owns per-agent-type sandbox profiles and tracks active
// sandboxes for reporting and cleanup.
type Manager struct {
	configs map[string]Config
	sink    audit.Sink

	active map[string]*activeEntry
	mu     sync.RWMutex
}

type activeEntry struct {
	sandbox   *Sandbox
	agentType string
	sessionID string
	createdAt time.Time
}

// staleAfter is how long an active sandbox may linger before the periodic
// cleanup reclaims it.
const staleAfter = time.Hour

// NewManager creates a manager with the shipped default profiles
func NewManager(sink audit.Sink) *Manager {
	if sink == nil {
		sink = audit.NopSink{}
	}

	m := &Manager{
		configs: make(map[string]Config),
		active:  make(map[string]*activeEntry),
		sink:    sink,
	}
	m.registerDefaults()

	return m
}

// registerDefaults installs the shipped per-agent-type profiles. The
// onboarding tier tolerates network access for registration flows; the
// dte tier is tighter; the general tier is the most restrictive since it
// is also the fallback and must stay cheap.
func (m *Manager) registerDefaults() {
	m.configs["onboarding"] = Config{
		AgentType: "onboarding",
		Isolation: IsolationProcess,
		ResourceLimits: ResourceLimits{
			MaxCPUPercent:      30.0,
			MaxMemoryMB:        256,
			MaxExecutionTime:   20 * time.Second,
			MaxFileDescriptors: 50,
			MaxProcesses:       5,
			NetworkAllowed:     true,
			ReadOnlyFilesystem: true,
		},
	}

	m.configs["dte"] = Config{
		AgentType: "dte",
		Isolation: IsolationProcess,
		ResourceLimits: ResourceLimits{
			MaxCPUPercent:      25.0,
			MaxMemoryMB:        128,
			MaxExecutionTime:   15 * time.Second,
			MaxFileDescriptors: 30,
			MaxProcesses:       3,
			NetworkAllowed:     false,
			ReadOnlyFilesystem: true,
		},
	}

	m.configs["general"] = Config{
		AgentType: "general",
		Isolation: IsolationProcess,
		ResourceLimits: ResourceLimits{
			MaxCPUPercent:      15.0,
			MaxMemoryMB:        64,
			MaxExecutionTime:   10 * time.Second,
			MaxFileDescriptors: 20,
			MaxProcesses:       2,
			NetworkAllowed:     false,
			ReadOnlyFilesystem: true,
		},
	}
}

// SetConfig registers or replaces the profile for an agent type
func (m *Manager) SetConfig(cfg Config) error {
	if err := ValidateConfig(cfg); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[cfg.AgentType] = cfg
	return nil
}

// ConfigFor returns the profile for an agent type, falling back to the
// most restrictive shipped profile when the type is unknown.
func (m *Manager) ConfigFor(agentType string) Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if cfg, ok := m.configs[agentType]; ok {
		return cfg
	}

	log.Warn().Str("agent_type", agentType).Msg("No sandbox profile, using general")
	return m.configs["general"]
}

// Execute runs fn inside a sandbox for the given agent type and session,
// releasing the sandbox before returning.
func (m *Manager) Execute(ctx context.Context, agentType, sessionID string, fn Fn) (interface{}, error) {
	cfg := m.ConfigFor(agentType)

	sb, err := New(cfg, sessionID, m.sink)
	if err != nil {
		return nil, err
	}

	id := fmt.Sprintf("%s_%s_%d", agentType, sessionID, time.Now().UnixNano())

	m.mu.Lock()
	m.active[id] = &activeEntry{
		sandbox:   sb,
		agentType: agentType,
		sessionID: sessionID,
		createdAt: time.Now(),
	}
	m.mu.Unlock()

	defer func() {
		sb.Close()
		m.mu.Lock()
		delete(m.active, id)
		m.mu.Unlock()
	}()

	return sb.Execute(ctx, fn)
}

// CleanupStale closes sandboxes that have been active beyond staleAfter
// and returns how many were reclaimed.
func (m *Manager) CleanupStale() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-staleAfter)
	reclaimed := 0

	for id, entry := range m.active {
		if entry.createdAt.Before(cutoff) {
			entry.sandbox.Close()
			delete(m.active, id)
			reclaimed++
			log.Info().Str("sandbox_id", id).Msg("Stale sandbox reclaimed")
		}
	}

	return reclaimed
}

// ActiveCount returns the number of currently active sandboxes
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// SecurityReport summarizes active sandboxes and available profiles
func (m *Manager) SecurityReport() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	details := make(map[string]interface{}, len(m.active))
	for id, entry := range m.active {
		details[id] = map[string]interface{}{
			"agent_type": entry.agentType,
			"session_id": entry.sessionID,
			"created_at": entry.createdAt.Format(time.RFC3339),
			"usage":      entry.sandbox.LastUsage(),
			"isolation":  string(entry.sandbox.Config().Isolation),
		}
	}

	return map[string]interface{}{
		"timestamp":        time.Now().Format(time.RFC3339),
		"active_sandboxes": len(m.active),
		"profiles":         len(m.configs),
		"details":          details,
	}
}
