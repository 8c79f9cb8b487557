package activity

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"multipresence/internal/clock"
	"multipresence/internal/foreground"
	"multipresence/internal/hostmetrics"
)

// Settings are the sampler knobs that may change while it runs.
type Settings struct {
	Interval time.Duration
	Filters  Filters
}

func (s Settings) interval() time.Duration {
	if s.Interval <= 0 {
		return time.Second
	}
	return s.Interval
}

// Sampler periodically refreshes host metrics and publishes a Snapshot
// into a Cell. It never waits on readers.
type Sampler struct {
	source hostmetrics.Source
	window foreground.Titler
	cell   *Cell
	clock  clock.Clock
	logger *slog.Logger

	mu       sync.Mutex
	settings Settings
	changed  chan struct{}
}

// SamplerOption customises a Sampler.
type SamplerOption func(*Sampler)

// WithClock overrides the timestamp source.
func WithClock(c clock.Clock) SamplerOption {
	return func(s *Sampler) { s.clock = c }
}

// WithLogger sets the sampler logger.
func WithLogger(l *slog.Logger) SamplerOption {
	return func(s *Sampler) { s.logger = l }
}

// NewSampler wires a sampler. A nil window falls back to foreground.Unsupported.
func NewSampler(source hostmetrics.Source, window foreground.Titler, cell *Cell, settings Settings, opts ...SamplerOption) *Sampler {
	if window == nil {
		window = foreground.Unsupported{}
	}
	s := &Sampler{
		source:   source,
		window:   window,
		cell:     cell,
		clock:    clock.Real(),
		logger:   slog.Default(),
		settings: settings,
		changed:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpdateSettings hands new settings to the running loop. They take effect
// on the next tick; an interval change also resets the ticker.
func (s *Sampler) UpdateSettings(settings Settings) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// Settings returns the settings the next tick will use.
func (s *Sampler) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Run samples immediately and then once per interval until ctx is done.
func (s *Sampler) Run(ctx context.Context) error {
	current := s.Settings().interval()
	ticker := time.NewTicker(current)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.changed:
			if next := s.Settings().interval(); next != current {
				s.logger.Debug("sampler interval changed", "from", current, "to", next)
				current = next
				ticker.Reset(current)
			}
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sampler) tick(ctx context.Context) {
	snap, err := s.SampleOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("metrics refresh failed, keeping previous snapshot", "error", err)
		}
		return
	}
	s.cell.Write(snap)
}

// SampleOnce builds a Snapshot without touching the cell.
func (s *Sampler) SampleOnce(ctx context.Context) (Snapshot, error) {
	settings := s.Settings()

	raw, err := s.source.Refresh(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Stats: SystemStats{
			CPUUsage:       raw.CPUUsage,
			MemoryUsagePct: memoryPercent(raw.MemoryUsed, raw.MemoryTotal),
			MemoryTotal:    raw.MemoryTotal,
			MemoryUsed:     min(raw.MemoryUsed, raw.MemoryTotal),
			Uptime:         raw.Uptime,
			ProcessCount:   len(raw.Processes),
		},
		Timestamp:    s.clock.Now(),
		TopProcesses: SelectTop(raw.Processes, settings.Filters),
	}
	snap.ActiveWindow, snap.HasActiveWindow = s.window.Title()
	return snap, nil
}

// SelectTop applies the filters, orders survivors by CPU usage (stable,
// descending) and keeps at most MaxTopProcesses.
func SelectTop(procs []hostmetrics.Process, filters Filters) []ProcessInfo {
	blacklist := filters.blacklist()
	out := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		if filters.HideSystemProcesses {
			if _, hidden := blacklist[p.Name]; hidden {
				continue
			}
		}
		if p.CPUUsage < filters.MinimumCPUUsage {
			continue
		}
		out = append(out, ProcessInfo{
			Name:        p.Name,
			PID:         p.PID,
			CPUUsage:    p.CPUUsage,
			MemoryUsage: p.MemoryUsage,
			StartTime:   p.StartTime,
		})
	}
	slices.SortStableFunc(out, func(a, b ProcessInfo) int {
		switch {
		case a.CPUUsage > b.CPUUsage:
			return -1
		case a.CPUUsage < b.CPUUsage:
			return 1
		default:
			return 0
		}
	})
	if len(out) > MaxTopProcesses {
		out = out[:MaxTopProcesses:MaxTopProcesses]
	}
	return out
}

func memoryPercent(used, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(min(used, total)) / float64(total) * 100
}
