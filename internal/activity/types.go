// Package activity turns host metrics into immutable snapshots and hands
// the latest one from the sampler to any number of readers.
package activity

import (
	"slices"
	"time"
)

// MaxTopProcesses bounds Snapshot.TopProcesses.
const MaxTopProcesses = 5

// SystemStats are the host-wide counters of one sample.
type SystemStats struct {
	CPUUsage       float32 // percent, 0-100
	MemoryUsagePct float64 // percent, 0-100
	MemoryTotal    uint64  // bytes
	MemoryUsed     uint64  // bytes, <= MemoryTotal
	Uptime         uint64  // seconds
	ProcessCount   int
}

// ProcessInfo is a process that survived the activity filters.
type ProcessInfo struct {
	Name        string
	PID         uint32
	CPUUsage    float32
	MemoryUsage uint64 // bytes
	StartTime   uint64 // epoch seconds
}

// Snapshot is one complete capture of host state. Treat it as read-only;
// Cell hands out copies.
type Snapshot struct {
	Stats        SystemStats
	Timestamp    time.Time
	TopProcesses []ProcessInfo

	ActiveWindow    string
	HasActiveWindow bool
}

// TopProcess returns the busiest admitted process, if any.
func (s Snapshot) TopProcess() (ProcessInfo, bool) {
	if len(s.TopProcesses) == 0 {
		return ProcessInfo{}, false
	}
	return s.TopProcesses[0], true
}

func (s Snapshot) clone() Snapshot {
	s.TopProcesses = slices.Clone(s.TopProcesses)
	return s
}

// Filters decide which processes become ProcessInfo entries.
type Filters struct {
	HideSystemProcesses  bool
	HideBackgroundApps   bool
	MinimumCPUUsage      float32
	BlacklistedProcesses []string
}

func (f Filters) blacklist() map[string]struct{} {
	set := make(map[string]struct{}, len(f.BlacklistedProcesses))
	for _, name := range f.BlacklistedProcesses {
		set[name] = struct{}{}
	}
	return set
}
