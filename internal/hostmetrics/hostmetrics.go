// Package hostmetrics reads CPU, memory, uptime and the process table
// from the running host.
package hostmetrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// Process is one raw row of the host process table.
type Process struct {
	Name        string
	PID         uint32
	CPUUsage    float32
	MemoryUsage uint64 // resident bytes
	StartTime   uint64 // epoch seconds
}

// Snapshot is the result of a single Refresh.
type Snapshot struct {
	CPUUsage    float32
	MemoryTotal uint64
	MemoryUsed  uint64
	Uptime      uint64
	Processes   []Process
}

// Source is the host metrics capability consumed by the sampler.
type Source interface {
	Refresh(ctx context.Context) (Snapshot, error)
}

// System is a gopsutil-backed Source. Per-process CPU is measured between
// consecutive Refresh calls, so the handles are cached by PID.
type System struct {
	logger *slog.Logger

	mu    sync.Mutex
	procs map[int32]*process.Process
}

// NewSystem returns a Source reading the local host.
func NewSystem(logger *slog.Logger) *System {
	if logger == nil {
		logger = slog.Default()
	}
	return &System{
		logger: logger,
		procs:  make(map[int32]*process.Process),
	}
}

// Refresh samples global counters and walks the process table. Global
// counter failures abort the refresh; individual processes that vanish
// mid-walk are skipped.
func (s *System) Refresh(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return snap, fmt.Errorf("read cpu: %w", err)
	}
	if len(percents) == 0 {
		return snap, errors.New("read cpu: no samples")
	}
	snap.CPUUsage = float32(percents[0])

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return snap, fmt.Errorf("read memory: %w", err)
	}
	snap.MemoryTotal = vm.Total
	snap.MemoryUsed = min(vm.Used, vm.Total)

	uptime, err := host.UptimeWithContext(ctx)
	if err != nil {
		return snap, fmt.Errorf("read uptime: %w", err)
	}
	snap.Uptime = uptime

	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return snap, fmt.Errorf("list processes: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	live := make(map[int32]*process.Process, len(pids))
	snap.Processes = make([]Process, 0, len(pids))
	for _, pid := range pids {
		p, ok := s.procs[pid]
		if !ok {
			p, err = process.NewProcessWithContext(ctx, pid)
			if err != nil {
				continue
			}
		}
		row, err := readProcess(ctx, p)
		if err != nil {
			s.logger.Debug("skip process", "pid", pid, "error", err)
			continue
		}
		live[pid] = p
		snap.Processes = append(snap.Processes, row)
	}
	s.procs = live
	return snap, nil
}

func readProcess(ctx context.Context, p *process.Process) (Process, error) {
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return Process{}, err
	}
	// Percent(0) compares against the previous call on the same handle;
	// the first call on a fresh handle measures since process start.
	cpuPct, err := p.PercentWithContext(ctx, 0)
	if err != nil {
		return Process{}, err
	}
	row := Process{
		Name:     name,
		PID:      uint32(p.Pid),
		CPUUsage: float32(cpuPct),
	}
	if info, err := p.MemoryInfoWithContext(ctx); err == nil && info != nil {
		row.MemoryUsage = info.RSS
	}
	if created, err := p.CreateTimeWithContext(ctx); err == nil && created > 0 {
		row.StartTime = uint64(created / 1000)
	}
	return row, nil
}
