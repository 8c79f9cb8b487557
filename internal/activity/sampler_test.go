package activity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"multipresence/internal/clock"
	"multipresence/internal/foreground"
	"multipresence/internal/hostmetrics"
)

type fakeSource struct {
	mu    sync.Mutex
	snaps []hostmetrics.Snapshot
	errs  []error
	calls int
}

func (f *fakeSource) Refresh(ctx context.Context) (hostmetrics.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return hostmetrics.Snapshot{}, f.errs[i]
	}
	if i >= len(f.snaps) {
		i = len(f.snaps) - 1
	}
	return f.snaps[i], nil
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSelectTop(t *testing.T) {
	procs := []hostmetrics.Process{
		{Name: "idle", CPUUsage: 0.05},
		{Name: "dwm.exe", CPUUsage: 90},
		{Name: "b", CPUUsage: 10},
		{Name: "a", CPUUsage: 10},
		{Name: "c", CPUUsage: 50},
		{Name: "d", CPUUsage: 1},
		{Name: "e", CPUUsage: 2},
		{Name: "f", CPUUsage: 3},
		{Name: "g", CPUUsage: 0.1},
	}
	filters := Filters{
		HideSystemProcesses:  true,
		MinimumCPUUsage:      0.1,
		BlacklistedProcesses: []string{"dwm.exe"},
	}
	got := SelectTop(procs, filters)

	wantNames := []string{"c", "b", "a", "f", "e"}
	if len(got) != len(wantNames) {
		t.Fatalf("expected %d processes, got %d: %+v", len(wantNames), len(got), got)
	}
	for i, name := range wantNames {
		if got[i].Name != name {
			t.Fatalf("position %d: want %q, got %q (%+v)", i, name, got[i].Name, got)
		}
	}
}

func TestSelectTopInvariants(t *testing.T) {
	procs := make([]hostmetrics.Process, 0, 40)
	for i := 0; i < 40; i++ {
		procs = append(procs, hostmetrics.Process{
			Name:     []string{"sys", "app", "tool", "svc"}[i%4],
			PID:      uint32(i),
			CPUUsage: float32((i * 37) % 11),
		})
	}
	for _, filters := range []Filters{
		{},
		{HideSystemProcesses: true, BlacklistedProcesses: []string{"sys"}},
		{MinimumCPUUsage: 5},
		{HideSystemProcesses: true, MinimumCPUUsage: 3, BlacklistedProcesses: []string{"sys", "svc"}},
	} {
		got := SelectTop(procs, filters)
		if len(got) > MaxTopProcesses {
			t.Fatalf("too many processes: %d", len(got))
		}
		for i, p := range got {
			if i > 0 && got[i-1].CPUUsage < p.CPUUsage {
				t.Fatalf("not sorted: %+v", got)
			}
			if p.CPUUsage < filters.MinimumCPUUsage {
				t.Fatalf("process below minimum admitted: %+v", p)
			}
			if filters.HideSystemProcesses {
				for _, hidden := range filters.BlacklistedProcesses {
					if p.Name == hidden {
						t.Fatalf("blacklisted process admitted: %+v", p)
					}
				}
			}
			if i > 0 && got[i-1].CPUUsage == p.CPUUsage && got[i-1].PID > p.PID {
				t.Fatalf("tie order not stable: %+v", got)
			}
		}
	}
}

func TestSelectTopKeepsBlacklistedWhenNotHiding(t *testing.T) {
	got := SelectTop([]hostmetrics.Process{{Name: "dwm.exe", CPUUsage: 5}}, Filters{
		BlacklistedProcesses: []string{"dwm.exe"},
	})
	if len(got) != 1 {
		t.Fatalf("expected blacklisted process to pass when hiding is off, got %+v", got)
	}
}

func TestSampleOnceBuildsSnapshot(t *testing.T) {
	now := time.Date(2024, 5, 1, 14, 5, 9, 0, time.Local)
	src := &fakeSource{snaps: []hostmetrics.Snapshot{{
		CPUUsage:    42.3,
		MemoryTotal: 1000,
		MemoryUsed:  678,
		Uptime:      3600,
		Processes: []hostmetrics.Process{
			{Name: "low", CPUUsage: 1, PID: 1},
			{Name: "high", CPUUsage: 9, PID: 2},
		},
	}}}
	window := foreground.TitlerFunc(func() (string, bool) { return "notes.txt", true })
	s := NewSampler(src, window, NewCell(), Settings{Interval: time.Second}, WithClock(clock.Fake(now)), WithLogger(quietLogger()))

	snap, err := s.SampleOnce(context.Background())
	if err != nil {
		t.Fatalf("SampleOnce: %v", err)
	}
	if snap.Stats.CPUUsage != 42.3 || snap.Stats.ProcessCount != 2 || snap.Stats.Uptime != 3600 {
		t.Fatalf("unexpected stats %+v", snap.Stats)
	}
	if got := snap.Stats.MemoryUsagePct; got < 67.79 || got > 67.81 {
		t.Fatalf("unexpected memory percent %v", got)
	}
	if !snap.Timestamp.Equal(now) {
		t.Fatalf("unexpected timestamp %v", snap.Timestamp)
	}
	if top, ok := snap.TopProcess(); !ok || top.Name != "high" {
		t.Fatalf("unexpected top process %+v", snap.TopProcesses)
	}
	if !snap.HasActiveWindow || snap.ActiveWindow != "notes.txt" {
		t.Fatalf("unexpected window %q/%t", snap.ActiveWindow, snap.HasActiveWindow)
	}
}

func TestSampleOnceZeroMemoryTotal(t *testing.T) {
	src := &fakeSource{snaps: []hostmetrics.Snapshot{{MemoryUsed: 5}}}
	s := NewSampler(src, nil, NewCell(), Settings{}, WithLogger(quietLogger()))
	snap, err := s.SampleOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if snap.Stats.MemoryUsagePct != 0 || snap.Stats.MemoryUsed != 0 {
		t.Fatalf("expected zeroed memory, got %+v", snap.Stats)
	}
	if snap.HasActiveWindow {
		t.Fatal("nil titler should report no window")
	}
}

func TestRunWritesImmediatelyAndStopsOnCancel(t *testing.T) {
	src := &fakeSource{snaps: []hostmetrics.Snapshot{{CPUUsage: 1, MemoryTotal: 10}}}
	cell := NewCell()
	s := NewSampler(src, nil, cell, Settings{Interval: time.Hour}, WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitFor(t, func() bool { _, ok := cell.Read(); return ok })
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sampler did not stop after cancel")
	}
}

func TestRunKeepsPreviousSnapshotOnRefreshError(t *testing.T) {
	src := &fakeSource{
		snaps: []hostmetrics.Snapshot{{CPUUsage: 11, MemoryTotal: 10}, {CPUUsage: 22, MemoryTotal: 10}},
		errs:  []error{nil, errors.New("boom"), errors.New("boom")},
	}
	cell := NewCell()
	s := NewSampler(src, nil, cell, Settings{Interval: 10 * time.Millisecond}, WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	waitFor(t, func() bool { return src.Calls() >= 3 })
	snap, ok := cell.Read()
	if !ok || snap.Stats.CPUUsage != 11 {
		t.Fatalf("expected first snapshot to survive failed ticks, got %+v (ok=%t)", snap.Stats, ok)
	}
	waitFor(t, func() bool {
		s, _ := cell.Read()
		return s.Stats.CPUUsage == 22
	})
}

func TestUpdateSettingsAppliesOnNextTick(t *testing.T) {
	src := &fakeSource{snaps: []hostmetrics.Snapshot{{
		MemoryTotal: 10,
		Processes:   []hostmetrics.Process{{Name: "secret.exe", CPUUsage: 5}},
	}}}
	cell := NewCell()
	s := NewSampler(src, nil, cell, Settings{Interval: time.Hour}, WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	waitFor(t, func() bool { snap, ok := cell.Read(); return ok && len(snap.TopProcesses) == 1 })

	s.UpdateSettings(Settings{
		Interval: 10 * time.Millisecond,
		Filters:  Filters{HideSystemProcesses: true, BlacklistedProcesses: []string{"secret.exe"}},
	})
	waitFor(t, func() bool { snap, _ := cell.Read(); return len(snap.TopProcesses) == 0 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
