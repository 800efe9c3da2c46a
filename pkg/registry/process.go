package registry

import (
	"fmt"

	"github.com/shirou/gopsutil/process"
)

// ProcessStats describes the OS process behind a registry slot.
type ProcessStats struct {
	Name       string  `json:"name"`
	CPUTimeSec float64 `json:"cpu_time_sec"`
	MemoryRSS  uint64  `json:"memory_rss_bytes"`
}

// LookupProcess extracts name + CPU + memory usage for a pid using
// gopsutil. A pid belonging to an exited worker fails here; callers
// report that per worker rather than treating it as fatal.
func LookupProcess(pid int32) (*ProcessStats, error) {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return nil, fmt.Errorf("process %d not found: %w", pid, err)
	}

	name, err := proc.Name()
	if err != nil {
		return nil, fmt.Errorf("failed to get process name: %w", err)
	}

	times, err := proc.Times()
	if err != nil {
		return nil, fmt.Errorf("failed to get CPU times: %w", err)
	}

	mem, err := proc.MemoryInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get memory info: %w", err)
	}

	return &ProcessStats{
		Name:       name,
		CPUTimeSec: times.User + times.System,
		MemoryRSS:  mem.RSS,
	}, nil
}
