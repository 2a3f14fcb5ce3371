package sandbox

import "time"

// IsolationLevel defines how strongly an execution is isolated
type IsolationLevel string

const (
	// IsolationNone runs the function inline with only reactive limits
	IsolationNone IsolationLevel = "none"
	// IsolationProcess runs the function in a dedicated worker with a
	// scratch workspace and an active resource monitor
	IsolationProcess IsolationLevel = "process"
)

// ResourceLimits defines resource ceilings for sandboxed execution.
// Attached to a role and immutable after creation.
type ResourceLimits struct {
	// MaxCPUPercent limits CPU usage (percentage, 0-100)
	MaxCPUPercent float64 `json:"max_cpu_percent" mapstructure:"max_cpu_percent"`

	// MaxMemoryMB limits memory usage in megabytes
	MaxMemoryMB int `json:"max_memory_mb" mapstructure:"max_memory_mb"`

	// MaxExecutionTime limits wall-clock execution time
	MaxExecutionTime time.Duration `json:"max_execution_time" mapstructure:"max_execution_time"`

	// MaxFileDescriptors limits open file descriptors
	MaxFileDescriptors int `json:"max_file_descriptors" mapstructure:"max_file_descriptors"`

	// MaxProcesses limits spawned processes
	MaxProcesses int `json:"max_processes" mapstructure:"max_processes"`

	// NetworkAllowed allows outbound network access
	NetworkAllowed bool `json:"network_allowed" mapstructure:"network_allowed"`

	// ReadOnlyFilesystem restricts the scratch workspace to reads
	ReadOnlyFilesystem bool `json:"read_only_filesystem" mapstructure:"read_only_filesystem"`
}

// Config defines a sandbox profile for one agent type
type Config struct {
	AgentType      string         `json:"agent_type" mapstructure:"agent_type"`
	Isolation      IsolationLevel `json:"isolation" mapstructure:"isolation"`
	ResourceLimits ResourceLimits `json:"resource_limits" mapstructure:"resource_limits"`
}

// DefaultLimits returns a conservative default ceiling
func DefaultLimits() ResourceLimits {
	return ResourceLimits{
		MaxCPUPercent:      50.0,
		MaxMemoryMB:        512,
		MaxExecutionTime:   30 * time.Second,
		MaxFileDescriptors: 100,
		MaxProcesses:       10,
		NetworkAllowed:     false,
		ReadOnlyFilesystem: true,
	}
}

// ValidateConfig validates a sandbox configuration
func ValidateConfig(cfg Config) error {
	switch cfg.Isolation {
	case IsolationNone, IsolationProcess:
	default:
		return ErrInvalidIsolation
	}

	limits := cfg.ResourceLimits
	if limits.MaxCPUPercent < 0 || limits.MaxCPUPercent > 100 {
		return ErrInvalidCPULimit
	}
	if limits.MaxMemoryMB < 0 {
		return ErrInvalidMemoryLimit
	}
	if limits.MaxProcesses < 0 {
		return ErrInvalidProcessLimit
	}
	if limits.MaxFileDescriptors < 0 {
		return ErrInvalidFDLimit
	}
	if limits.MaxExecutionTime < 0 {
		return ErrInvalidTimeout
	}

	return nil
}
