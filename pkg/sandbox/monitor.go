package sandbox

import (
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Usage is a point-in-time resource sample
type Usage struct {
	Timestamp  time.Time     `json:"timestamp"`
	MemoryMB   float64       `json:"memory_mb"`
	CPUPercent float64       `json:"cpu_percent"`
	Goroutines int           `json:"goroutines"`
	Elapsed    time.Duration `json:"elapsed"`
}

const monitorInterval = 500 * time.Millisecond

// monitor polls resource usage for one sandbox execution and reports a
// violation when memory or wall-clock ceilings are exceeded. Exactly one
// monitor runs per sandbox; it is started at entry and stopped on every
// exit path.
type monitor struct {
	limits    ResourceLimits
	start     time.Time
	violation chan *Violation
	done      chan struct{}
	wg        sync.WaitGroup

	mu    sync.Mutex
	usage Usage
}

func newMonitor(limits ResourceLimits) *monitor {
	m := &monitor{
		limits:    limits,
		start:     time.Now(),
		violation: make(chan *Violation, 1),
		done:      make(chan struct{}),
	}

	m.wg.Add(1)
	go m.run()

	return m
}

func (m *monitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			sample := m.sample()

			m.mu.Lock()
			m.usage = sample
			m.mu.Unlock()

			if m.limits.MaxMemoryMB > 0 && sample.MemoryMB > float64(m.limits.MaxMemoryMB) {
				log.Warn().
					Float64("memory_mb", sample.MemoryMB).
					Int("limit_mb", m.limits.MaxMemoryMB).
					Msg("Memory limit exceeded")
				m.report(&Violation{Reason: ReasonMemoryLimit, Usage: sample})
				return
			}

			// CPU overage is logged but does not terminate; only memory
			// and wall-clock ceilings are enforced proactively.
			if m.limits.MaxCPUPercent > 0 && sample.CPUPercent > m.limits.MaxCPUPercent {
				log.Warn().
					Float64("cpu_percent", sample.CPUPercent).
					Float64("limit_percent", m.limits.MaxCPUPercent).
					Msg("CPU limit exceeded")
			}

			if m.limits.MaxExecutionTime > 0 && sample.Elapsed > m.limits.MaxExecutionTime {
				log.Warn().
					Dur("elapsed", sample.Elapsed).
					Dur("limit", m.limits.MaxExecutionTime).
					Msg("Execution time limit exceeded")
				m.report(&Violation{Reason: ReasonTimeLimit, Usage: sample})
				return
			}
		}
	}
}

func (m *monitor) sample() Usage {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return Usage{
		Timestamp:  time.Now(),
		MemoryMB:   float64(memStats.HeapAlloc) / 1024 / 1024,
		CPUPercent: cpuPercent(),
		Goroutines: runtime.NumGoroutine(),
		Elapsed:    time.Since(m.start),
	}
}

func (m *monitor) report(v *Violation) {
	select {
	case m.violation <- v:
	default:
	}
}

// stop terminates the monitor goroutine and waits for it to exit
func (m *monitor) stop() {
	select {
	case <-m.done:
	default:
		close(m.done)
	}
	m.wg.Wait()
}

// currentUsage returns the latest sample
func (m *monitor) currentUsage() Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}
