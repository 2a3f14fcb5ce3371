package authority

import (
	"time"

	"github.com/lucahq/luca/pkg/sandbox"
)

// Session is an authorization-scoped, time-bounded context tied to one
// subject and one role. Its permission set and resource policy are
// cloned at creation and never change; only access bookkeeping does.
type Session struct {
	ID                  string
	SubjectID           string
	Role                string
	Permissions         []Permission
	AllowedCapabilities []string
	ResourceLimits      sandbox.ResourceLimits
	DataAccessPolicy    map[string]interface{}
	Context             map[string]interface{}
	CreatedAt           time.Time
	ExpiresAt           time.Time

	// Mutated under the authority lock on every permission check
	LastAccess  time.Time
	AccessCount int64
}

// Expired reports whether the session is past its expiry at the given
// instant.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Info is the inspectable summary of a session
type Info struct {
	SessionID         string    `json:"session_id"`
	SubjectID         string    `json:"subject_id"`
	Role              string    `json:"role"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	LastAccess        time.Time `json:"last_access"`
	AccessCount       int64     `json:"access_count"`
	PermissionCount   int       `json:"permission_count"`
	CapabilitiesCount int       `json:"capabilities_count"`
}
