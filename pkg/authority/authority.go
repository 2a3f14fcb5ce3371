// Package authority issues and checks permission-scoped sessions against
// a static role table. Denials fail closed and are always audited; only
// structurally invalid calls surface errors.
package authority

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lucahq/luca/pkg/audit"
	"github.com/lucahq/luca/pkg/sandbox"
)

var (
	// ErrEmptySessionID is the programming-error path: callers must
	// always supply a session id.
	ErrEmptySessionID = errors.New("session id is required")

	// ErrUnknownRole is returned when creating a session for an
	// unregistered role.
	ErrUnknownRole = errors.New("unknown role")
)

// Condition is a structural policy fragment (field/type allow-list) from
// a matched permission, returned to the caller for enforcement at the
// query layer.
type Condition map[string]interface{}

// Authority is the session and permission service
type Authority struct {
	roles    map[string]Role
	sessions map[string]*Session
	sink     audit.Sink
	mu       sync.RWMutex

	accessLog []accessEntry
	logMu     sync.Mutex
}

type accessEntry struct {
	timestamp time.Time
	eventType string
	sessionID string
	userID    string
	resource  string
}

const (
	accessLogCapacity = 10000
	accessLogKeep     = 5000
)

// New creates an authority over the given role table. A nil table uses
// the shipped defaults.
func New(roles map[string]Role, sink audit.Sink) *Authority {
	if roles == nil {
		roles = DefaultRoles()
	}
	if sink == nil {
		sink = audit.NopSink{}
	}

	return &Authority{
		roles:    roles,
		sessions: make(map[string]*Session),
		sink:     sink,
	}
}

// CreateSession clones a role's permission set and resource policy into
// a new session and returns its opaque id.
func (a *Authority) CreateSession(roleName, subjectID string, context map[string]interface{}) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	role, ok := a.roles[roleName]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownRole, roleName)
	}

	now := time.Now()
	sessionID := newSessionID(roleName, subjectID, now)

	expiresAt := time.Time{}
	if role.MaxSessionDuration > 0 {
		expiresAt = now.Add(role.MaxSessionDuration)
	}

	policy := make(map[string]interface{}, len(role.DataAccessPolicy))
	for k, v := range role.DataAccessPolicy {
		policy[k] = v
	}

	capabilities := make([]string, len(role.AllowedCapabilities))
	copy(capabilities, role.AllowedCapabilities)

	session := &Session{
		ID:                  sessionID,
		SubjectID:           subjectID,
		Role:                roleName,
		Permissions:         clonePermissions(role.Permissions),
		AllowedCapabilities: capabilities,
		ResourceLimits:      role.ResourceLimits,
		DataAccessPolicy:    policy,
		Context:             context,
		CreatedAt:           now,
		ExpiresAt:           expiresAt,
		LastAccess:          now,
	}

	a.sessions[sessionID] = session
	a.recordAccess("session_created", sessionID, subjectID, "")

	event := audit.NewEvent(audit.KindSessionCreated)
	event.SessionID = sessionID
	event.UserID = subjectID
	event.Resource = roleName
	a.sink.Publish(event)

	log.Info().
		Str("session_id", sessionID).
		Str("role", roleName).
		Str("subject_id", subjectID).
		Time("expires_at", expiresAt).
		Msg("Session created")

	return sessionID, nil
}

// CheckPermission reports whether the session may access the resource at
// the required level. It fails closed: unknown and expired sessions
// return false (the latter is terminated and audited). Matched
// structural conditions are returned as policy fragments; they are not
// evaluated here. The error return fires only on a structurally invalid
// call (empty session id).
func (a *Authority) CheckPermission(sessionID string, resource ResourceType, resourceID string, required PermissionLevel) (bool, []Condition, error) {
	if sessionID == "" {
		return false, nil, ErrEmptySessionID
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	session, ok := a.sessions[sessionID]
	if !ok {
		log.Warn().Str("session_id", sessionID).Msg("Session not found")
		a.auditDenied(sessionID, "", resource, resourceID, required)
		return false, nil, nil
	}

	now := time.Now()
	if session.Expired(now) {
		log.Warn().Str("session_id", sessionID).Msg("Session expired")
		a.terminateLocked(sessionID, "expired")
		a.auditDenied(sessionID, session.SubjectID, resource, resourceID, required)
		return false, nil, nil
	}

	// Access bookkeeping on every call, success or failure alike
	session.LastAccess = now
	session.AccessCount++

	var conditions []Condition
	granted := false

	for i := range session.Permissions {
		perm := &session.Permissions[i]

		if perm.Resource != resource {
			continue
		}
		if resourceID != "" && perm.ResourceID != "" && perm.ResourceID != resourceID {
			continue
		}
		if !perm.Level.Satisfies(required) {
			continue
		}
		if perm.ExpiresAt != nil && now.After(*perm.ExpiresAt) {
			continue
		}

		granted = true
		if len(perm.Conditions) > 0 {
			conditions = append(conditions, Condition(perm.Conditions))
		}
	}

	if granted {
		a.recordAccess("permission_granted", sessionID, session.SubjectID, string(resource))
		return true, conditions, nil
	}

	log.Warn().
		Str("session_id", sessionID).
		Str("resource", string(resource)).
		Str("required_level", required.String()).
		Msg("Permission denied")
	a.auditDenied(sessionID, session.SubjectID, resource, resourceID, required)

	return false, nil, nil
}

// AllowedCapabilities returns the capability allow-list for a session,
// or nil when the session is unknown.
func (a *Authority) AllowedCapabilities(sessionID string) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	session, ok := a.sessions[sessionID]
	if !ok {
		return nil
	}

	capabilities := make([]string, len(session.AllowedCapabilities))
	copy(capabilities, session.AllowedCapabilities)
	return capabilities
}

// DataAccessPolicy returns the data access policy for a session
func (a *Authority) DataAccessPolicy(sessionID string) map[string]interface{} {
	a.mu.RLock()
	defer a.mu.RUnlock()

	session, ok := a.sessions[sessionID]
	if !ok {
		return map[string]interface{}{}
	}

	policy := make(map[string]interface{}, len(session.DataAccessPolicy))
	for k, v := range session.DataAccessPolicy {
		policy[k] = v
	}
	return policy
}

// ResourceLimitsFor returns the resource policy attached to the session
// role, falling back to the default ceiling for unknown sessions.
func (a *Authority) ResourceLimitsFor(sessionID string) sandbox.ResourceLimits {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if session, ok := a.sessions[sessionID]; ok {
		return session.ResourceLimits
	}
	return sandbox.DefaultLimits()
}

// SessionInfo returns the inspectable summary of an active session
func (a *Authority) SessionInfo(sessionID string) (Info, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	session, ok := a.sessions[sessionID]
	if !ok {
		return Info{}, false
	}

	return Info{
		SessionID:         session.ID,
		SubjectID:         session.SubjectID,
		Role:              session.Role,
		CreatedAt:         session.CreatedAt,
		ExpiresAt:         session.ExpiresAt,
		LastAccess:        session.LastAccess,
		AccessCount:       session.AccessCount,
		PermissionCount:   len(session.Permissions),
		CapabilitiesCount: len(session.AllowedCapabilities),
	}, true
}

// ActiveSessions returns the number of live sessions
func (a *Authority) ActiveSessions() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.sessions)
}

// TerminateSession removes a session explicitly
func (a *Authority) TerminateSession(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.terminateLocked(sessionID, "explicit")
}

// CleanupExpiredSessions sweeps sessions past expiry and returns how
// many were removed.
func (a *Authority) CleanupExpiredSessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	var expired []string
	for id, session := range a.sessions {
		if session.Expired(now) {
			expired = append(expired, id)
		}
	}

	for _, id := range expired {
		a.terminateLocked(id, "expired")
	}

	if len(expired) > 0 {
		log.Info().Int("count", len(expired)).Msg("Expired sessions cleaned up")
	}

	return len(expired)
}

// terminateLocked removes a session; callers hold the write lock
func (a *Authority) terminateLocked(sessionID, reason string) {
	session, ok := a.sessions[sessionID]
	if !ok {
		return
	}

	delete(a.sessions, sessionID)
	a.recordAccess("session_terminated", sessionID, session.SubjectID, reason)

	event := audit.NewEvent(audit.KindSessionTerminated)
	event.SessionID = sessionID
	event.UserID = session.SubjectID
	event.Decision = reason
	event.Details = map[string]interface{}{
		"duration_minutes": time.Since(session.CreatedAt).Minutes(),
		"access_count":     session.AccessCount,
	}
	a.sink.Publish(event)

	log.Info().
		Str("session_id", sessionID).
		Str("reason", reason).
		Dur("duration", time.Since(session.CreatedAt)).
		Int64("access_count", session.AccessCount).
		Msg("Session terminated")
}

func (a *Authority) auditDenied(sessionID, userID string, resource ResourceType, resourceID string, required PermissionLevel) {
	a.recordAccess("permission_denied", sessionID, userID, string(resource))

	event := audit.NewEvent(audit.KindPermissionDenied)
	event.SessionID = sessionID
	event.UserID = userID
	event.Resource = string(resource)
	event.Decision = "denied"
	event.Details = map[string]interface{}{
		"resource_id":    resourceID,
		"required_level": required.String(),
	}
	a.sink.Publish(event)
}

// recordAccess appends to the bounded in-memory access log
func (a *Authority) recordAccess(eventType, sessionID, userID, resource string) {
	a.logMu.Lock()
	defer a.logMu.Unlock()

	a.accessLog = append(a.accessLog, accessEntry{
		timestamp: time.Now(),
		eventType: eventType,
		sessionID: sessionID,
		userID:    userID,
		resource:  resource,
	})

	if len(a.accessLog) > accessLogCapacity {
		a.accessLog = a.accessLog[len(a.accessLog)-accessLogKeep:]
	}
}

// AccessAuditLog returns recent access entries, optionally filtered by
// user, within the given window.
func (a *Authority) AccessAuditLog(userID string, window time.Duration) []map[string]interface{} {
	a.logMu.Lock()
	defer a.logMu.Unlock()

	since := time.Now().Add(-window)
	var entries []map[string]interface{}

	for _, entry := range a.accessLog {
		if entry.timestamp.Before(since) {
			continue
		}
		if userID != "" && entry.userID != userID {
			continue
		}
		entries = append(entries, map[string]interface{}{
			"timestamp":  entry.timestamp.Format(time.RFC3339),
			"event_type": entry.eventType,
			"session_id": entry.sessionID,
			"user_id":    entry.userID,
			"resource":   entry.resource,
		})
	}

	return entries
}

// SecurityReport summarizes session and access activity
func (a *Authority) SecurityReport() map[string]interface{} {
	a.mu.RLock()
	sessionsByRole := make(map[string]int)
	for _, session := range a.sessions {
		sessionsByRole[session.Role]++
	}
	activeSessions := len(a.sessions)
	totalRoles := len(a.roles)
	a.mu.RUnlock()

	denied := 0
	for _, entry := range a.AccessAuditLog("", 24*time.Hour) {
		if entry["event_type"] == "permission_denied" {
			denied++
		}
	}

	return map[string]interface{}{
		"timestamp":         time.Now().Format(time.RFC3339),
		"active_sessions":   activeSessions,
		"sessions_by_role":  sessionsByRole,
		"denied_24h":        denied,
		"total_roles":       totalRoles,
		"audit_log_entries": len(a.accessLog),
	}
}

// newSessionID derives an opaque id from role, subject and timestamp
func newSessionID(role, subjectID string, now time.Time) string {
	seed := fmt.Sprintf("%s:%s:%s", role, subjectID, now.Format(time.RFC3339Nano))
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:16]
}
