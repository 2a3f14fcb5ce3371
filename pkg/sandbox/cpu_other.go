//go:build !linux

package sandbox

// cpuPercent is unavailable off Linux; the sandbox degrades to memory
// and wall-clock enforcement only.
func cpuPercent() float64 {
	return 0
}
