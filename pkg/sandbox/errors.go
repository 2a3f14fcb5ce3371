package sandbox

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIsolation is returned when the isolation level is invalid
	ErrInvalidIsolation = errors.New("invalid isolation level")

	// ErrInvalidCPULimit is returned when the CPU limit is invalid
	ErrInvalidCPULimit = errors.New("invalid CPU limit (must be 0-100)")

	// ErrInvalidMemoryLimit is returned when the memory limit is invalid
	ErrInvalidMemoryLimit = errors.New("invalid memory limit (must be >= 0)")

	// ErrInvalidProcessLimit is returned when the process limit is invalid
	ErrInvalidProcessLimit = errors.New("invalid process limit (must be >= 0)")

	// ErrInvalidFDLimit is returned when the file descriptor limit is invalid
	ErrInvalidFDLimit = errors.New("invalid file descriptor limit (must be >= 0)")

	// ErrInvalidTimeout is returned when the timeout is invalid
	ErrInvalidTimeout = errors.New("invalid timeout (must be >= 0)")

	// ErrSandboxClosed is returned when executing on a closed sandbox
	ErrSandboxClosed = errors.New("sandbox is closed")
)

// ViolationReason identifies which ceiling was exceeded
type ViolationReason string

const (
	ReasonMemoryLimit ViolationReason = "memory_limit_exceeded"
	ReasonTimeLimit   ViolationReason = "time_limit_exceeded"
)

// Violation is returned when the monitor terminates an execution for
// exceeding a resource ceiling.
type Violation struct {
	Reason ViolationReason
	Usage  Usage
}

func (v *Violation) Error() string {
	return fmt.Sprintf("sandbox violation: %s (memory %.1fMB, elapsed %s)",
		v.Reason, v.Usage.MemoryMB, v.Usage.Elapsed)
}

// IsViolation reports whether err is a sandbox violation
func IsViolation(err error) bool {
	var v *Violation
	return errors.As(err, &v)
}
