package authority

import (
	"time"

	"github.com/lucahq/luca/pkg/sandbox"
)

// Permission grants a level of access to one resource class, optionally
// narrowed by structural conditions (field or type allow-lists). The
// authority never evaluates conditions; matching fragments are handed
// back to the caller as policy.
type Permission struct {
	Resource   ResourceType           `json:"resource" mapstructure:"resource"`
	ResourceID string                 `json:"resource_id,omitempty" mapstructure:"resource_id"`
	Level      PermissionLevel        `json:"level" mapstructure:"level"`
	Conditions map[string]interface{} `json:"conditions,omitempty" mapstructure:"conditions"`
	ExpiresAt  *time.Time             `json:"expires_at,omitempty" mapstructure:"expires_at"`
}

// Role is a static definition from the role registry: base permissions,
// capability allow-list, resource policy, and session lifetime.
type Role struct {
	Name                string                 `json:"name" mapstructure:"name"`
	Description         string                 `json:"description" mapstructure:"description"`
	Permissions         []Permission           `json:"permissions" mapstructure:"permissions"`
	AllowedCapabilities []string               `json:"allowed_capabilities" mapstructure:"allowed_capabilities"`
	ResourceLimits      sandbox.ResourceLimits `json:"resource_limits" mapstructure:"resource_limits"`
	MaxSessionDuration  time.Duration          `json:"max_session_duration" mapstructure:"max_session_duration"`
	DataAccessPolicy    map[string]interface{} `json:"data_access_policy,omitempty" mapstructure:"data_access_policy"`
}

// DefaultRoles returns the shipped role table. Production deployments
// override this from configuration; the defaults mirror the three agent
// tiers.
func DefaultRoles() map[string]Role {
	return map[string]Role{
		"sii_agent": {
			Name:        "sii_agent",
			Description: "Specialist for tax authority queries",
			Permissions: []Permission{
				{Resource: ResourceTaxAPI, Level: LevelRead},
				{Resource: ResourceDocument, Level: LevelRead,
					Conditions: map[string]interface{}{"document_type": []string{"dte", "factura", "boleta"}}},
				{Resource: ResourceTaxData, Level: LevelRead},
				{Resource: ResourceCompanyData, Level: LevelRead,
					Conditions: map[string]interface{}{"fields": []string{"rut", "razon_social", "giro"}}},
			},
			AllowedCapabilities: []string{"search_sii_documents", "get_tax_info", "validate_rut"},
			ResourceLimits: sandbox.ResourceLimits{
				MaxCPUPercent:      30.0,
				MaxMemoryMB:        256,
				MaxExecutionTime:   20 * time.Second,
				MaxFileDescriptors: 50,
				MaxProcesses:       5,
				NetworkAllowed:     true,
				ReadOnlyFilesystem: true,
			},
			MaxSessionDuration: 2 * time.Hour,
			DataAccessPolicy: map[string]interface{}{
				"anonymize_personal_data": true,
				"max_records_per_query":   100,
				"allowed_date_range_days": 365,
			},
		},
		"dte_agent": {
			Name:        "dte_agent",
			Description: "Specialist for electronic tax documents",
			Permissions: []Permission{
				{Resource: ResourceDocument, Level: LevelRead},
				{Resource: ResourceFinancialData, Level: LevelRead,
					Conditions: map[string]interface{}{"data_types": []string{"amounts", "taxes", "totals"}}},
				{Resource: ResourceCompanyData, Level: LevelRead,
					Conditions: map[string]interface{}{"fields": []string{"rut", "razon_social"}}},
			},
			AllowedCapabilities: []string{"search_documents_by_criteria", "get_document_stats_summary"},
			ResourceLimits: sandbox.ResourceLimits{
				MaxCPUPercent:      25.0,
				MaxMemoryMB:        128,
				MaxExecutionTime:   15 * time.Second,
				MaxFileDescriptors: 30,
				MaxProcesses:       3,
				NetworkAllowed:     false,
				ReadOnlyFilesystem: true,
			},
			MaxSessionDuration: time.Hour,
			DataAccessPolicy: map[string]interface{}{
				"anonymize_personal_data": true,
				"max_records_per_query":   50,
			},
		},
		"supervisor_agent": {
			Name:        "supervisor_agent",
			Description: "Coordination role for the routing supervisor",
			Permissions: []Permission{
				{Resource: ResourceUserData, Level: LevelRead,
					Conditions: map[string]interface{}{"fields": []string{"user_id", "session_id"}}},
				{Resource: ResourceSystemConfig, Level: LevelRead},
			},
			AllowedCapabilities: []string{"route_query", "get_agent_status"},
			ResourceLimits: sandbox.ResourceLimits{
				MaxCPUPercent:      15.0,
				MaxMemoryMB:        64,
				MaxExecutionTime:   10 * time.Second,
				MaxFileDescriptors: 20,
				MaxProcesses:       2,
				NetworkAllowed:     false,
				ReadOnlyFilesystem: true,
			},
			MaxSessionDuration: 4 * time.Hour,
			DataAccessPolicy: map[string]interface{}{
				"anonymize_personal_data": true,
				"log_all_decisions":       true,
			},
		},
	}
}

// clonePermissions deep-copies a permission set so sessions can never
// alias the role table.
func clonePermissions(perms []Permission) []Permission {
	cloned := make([]Permission, len(perms))
	for i, p := range perms {
		cloned[i] = p
		if p.Conditions != nil {
			conditions := make(map[string]interface{}, len(p.Conditions))
			for k, v := range p.Conditions {
				conditions[k] = v
			}
			cloned[i].Conditions = conditions
		}
		if p.ExpiresAt != nil {
			expiry := *p.ExpiresAt
			cloned[i].ExpiresAt = &expiry
		}
	}
	return cloned
}
