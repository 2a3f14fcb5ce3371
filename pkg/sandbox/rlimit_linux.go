//go:build linux

package sandbox

import (
	"golang.org/x/sys/unix"

	"github.com/rs/zerolog/log"
)

// applyOSLimits applies best-effort kernel resource limits and returns a
// restore function. Failures are logged, not fatal: the monitor remains
// the enforcement backstop.
func applyOSLimits(limits ResourceLimits) func() {
	var restores []func()

	if limits.MaxFileDescriptors > 0 {
		var prev unix.Rlimit
		if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &prev); err == nil {
			ceiling := uint64(limits.MaxFileDescriptors)
			if ceiling <= prev.Max {
				next := unix.Rlimit{Cur: ceiling, Max: prev.Max}
				if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &next); err == nil {
					saved := prev
					restores = append(restores, func() {
						unix.Setrlimit(unix.RLIMIT_NOFILE, &saved)
					})
				} else {
					log.Warn().Err(err).Msg("Failed to set file descriptor limit")
				}
			}
		}
	}

	return func() {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
	}
}
