//go:build linux

package sandbox

import (
	"os"
	"strconv"
	"strings"
	"time"
)

var processStart = time.Now()

// cpuPercent returns the average CPU utilization of the process since
// start, from /proc/self/stat. Coarse, but sufficient for ceiling logs.
func cpuPercent() float64 {
	data, err := os.ReadFile("/proc/self/stat")
	if err != nil {
		return 0
	}

	// Fields after the parenthesized comm; utime is field 14, stime 15
	idx := strings.LastIndexByte(string(data), ')')
	if idx < 0 {
		return 0
	}
	fields := strings.Fields(string(data[idx+1:]))
	if len(fields) < 13 {
		return 0
	}

	utime, err1 := strconv.ParseFloat(fields[11], 64)
	stime, err2 := strconv.ParseFloat(fields[12], 64)
	if err1 != nil || err2 != nil {
		return 0
	}

	const clockTicks = 100.0
	cpuSeconds := (utime + stime) / clockTicks

	elapsed := time.Since(processStart).Seconds()
	if elapsed <= 0 {
		return 0
	}

	return cpuSeconds / elapsed * 100.0
}
