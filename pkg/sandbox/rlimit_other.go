//go:build !linux

package sandbox

// applyOSLimits is a no-op off Linux: enforcement degrades to the
// polling monitor plus the caller's wall-clock backstop.
func applyOSLimits(limits ResourceLimits) func() {
	return func() {}
}
