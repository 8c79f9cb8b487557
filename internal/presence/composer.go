package presence

import (
	"fmt"
	"strings"

	"multipresence/internal/activity"
	"multipresence/internal/wordfilter"
)

// Options are the user-controlled inputs to composition.
type Options struct {
	ShowSystemStats  bool
	ShowTime         bool
	ShowApplications bool
	CustomMessage    string
}

// Presence is the composed display text plus the fields the endpoint needs.
type Presence struct {
	Details   string
	State     string
	StartedAt int64
}

// Activity converts p into the endpoint payload.
func (p Presence) Activity() Activity {
	return Activity{
		Details:        p.Details,
		State:          p.State,
		StartedAt:      p.StartedAt,
		LargeImageKey:  LargeImageKey,
		LargeImageText: LargeImageText,
	}
}

const stateSeparator = " | "

// Composer derives Presence values. Everything sourced from the user or
// from process and window names goes through the word filter; purely
// numeric fields do not.
type Composer struct {
	filter *wordfilter.Filter
}

// NewComposer returns a Composer using filter (nil means no redaction).
func NewComposer(filter *wordfilter.Filter) *Composer {
	return &Composer{filter: filter}
}

// Filter returns the word filter in use.
func (c *Composer) Filter() *wordfilter.Filter {
	return c.filter
}

// Compose builds details and state for snap.
func (c *Composer) Compose(snap activity.Snapshot, opts Options) Presence {
	p := Presence{StartedAt: snap.Timestamp.Unix()}

	switch {
	case opts.CustomMessage != "":
		p.Details = c.filter.Apply(opts.CustomMessage)
	case opts.ShowSystemStats:
		p.Details = fmt.Sprintf("CPU: %.1f%% | RAM: %.1f%%", snap.Stats.CPUUsage, snap.Stats.MemoryUsagePct)
	}

	segments := make([]string, 0, 2)
	if opts.ShowTime {
		segments = append(segments, "Time: "+snap.Timestamp.Format("15:04:05"))
	}
	if opts.ShowApplications {
		if top, ok := snap.TopProcess(); ok {
			segments = append(segments, "Running: "+c.filter.Apply(top.Name))
		}
	}
	p.State = strings.Join(segments, stateSeparator)
	return p
}

// PreviewProcess is one redacted process row for display.
type PreviewProcess struct {
	Name     string
	CPUUsage float32
}

// Preview is the redacted, display-ready view of a snapshot.
type Preview struct {
	Processes       []PreviewProcess
	ActiveWindow    string
	HasActiveWindow bool
}

// Preview redacts the names a local status view shows alongside the
// composed presence.
func (c *Composer) Preview(snap activity.Snapshot) Preview {
	out := Preview{Processes: make([]PreviewProcess, 0, len(snap.TopProcesses))}
	for _, p := range snap.TopProcesses {
		out.Processes = append(out.Processes, PreviewProcess{
			Name:     c.filter.Apply(p.Name),
			CPUUsage: p.CPUUsage,
		})
	}
	if snap.HasActiveWindow {
		out.ActiveWindow = c.filter.Apply(snap.ActiveWindow)
		out.HasActiveWindow = true
	}
	return out
}
