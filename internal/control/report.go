package control

import (
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"multipresence/internal/pipeline"
	"multipresence/internal/presence"
)

// Report is the status document carried by the Status RPC. Process and
// window names are already redacted.
type Report struct {
	Connected     bool
	StatusMessage string
	LastPublish   time.Time

	CustomMessage  string
	FilterFallback bool

	Details string
	State   string

	HasSnapshot     bool
	Timestamp       time.Time
	CPUUsage        float64
	MemoryUsagePct  float64
	MemoryUsed      uint64
	MemoryTotal     uint64
	Uptime          uint64
	ProcessCount    int
	Processes       []ReportProcess
	ActiveWindow    string
	HasActiveWindow bool
}

// ReportProcess is one redacted top process.
type ReportProcess struct {
	Name     string
	CPUUsage float64
}

// NewReport flattens a pipeline preview. Raw process and window names
// never leave this function; only their redacted forms do.
func NewReport(pv pipeline.Preview) Report {
	r := Report{
		Connected:      pv.Status.State == presence.Connected,
		StatusMessage:  pv.Status.Message,
		LastPublish:    pv.Status.LastPublish,
		CustomMessage:  pv.CustomMessage,
		FilterFallback: pv.FilterFallback,
		HasSnapshot:    pv.HasSnapshot,
	}
	if !pv.HasSnapshot {
		return r
	}
	stats := pv.Snapshot.Stats
	r.Details = pv.Presence.Details
	r.State = pv.Presence.State
	r.Timestamp = pv.Snapshot.Timestamp
	r.CPUUsage = float64(stats.CPUUsage)
	r.MemoryUsagePct = stats.MemoryUsagePct
	r.MemoryUsed = stats.MemoryUsed
	r.MemoryTotal = stats.MemoryTotal
	r.Uptime = stats.Uptime
	r.ProcessCount = stats.ProcessCount
	r.ActiveWindow = pv.Redacted.ActiveWindow
	r.HasActiveWindow = pv.Redacted.HasActiveWindow
	r.Processes = make([]ReportProcess, 0, len(pv.Redacted.Processes))
	for _, p := range pv.Redacted.Processes {
		r.Processes = append(r.Processes, ReportProcess{Name: p.Name, CPUUsage: float64(p.CPUUsage)})
	}
	return r
}

func (r Report) toStruct() (*structpb.Struct, error) {
	procs := make([]any, 0, len(r.Processes))
	for _, p := range r.Processes {
		procs = append(procs, map[string]any{"name": p.Name, "cpu_usage": p.CPUUsage})
	}
	return structpb.NewStruct(map[string]any{
		"connected":         r.Connected,
		"status":            r.StatusMessage,
		"last_publish":      unixOrZero(r.LastPublish),
		"custom_message":    r.CustomMessage,
		"filter_fallback":   r.FilterFallback,
		"details":           r.Details,
		"state":             r.State,
		"has_snapshot":      r.HasSnapshot,
		"timestamp":         unixOrZero(r.Timestamp),
		"cpu_usage":         r.CPUUsage,
		"memory_usage":      r.MemoryUsagePct,
		"memory_used":       r.MemoryUsed,
		"memory_total":      r.MemoryTotal,
		"uptime":            r.Uptime,
		"process_count":     r.ProcessCount,
		"processes":         procs,
		"active_window":     r.ActiveWindow,
		"has_active_window": r.HasActiveWindow,
	})
}

func reportFromStruct(s *structpb.Struct) Report {
	f := s.GetFields()
	r := Report{
		Connected:       f["connected"].GetBoolValue(),
		StatusMessage:   f["status"].GetStringValue(),
		LastPublish:     fromUnix(f["last_publish"].GetNumberValue()),
		CustomMessage:   f["custom_message"].GetStringValue(),
		FilterFallback:  f["filter_fallback"].GetBoolValue(),
		Details:         f["details"].GetStringValue(),
		State:           f["state"].GetStringValue(),
		HasSnapshot:     f["has_snapshot"].GetBoolValue(),
		Timestamp:       fromUnix(f["timestamp"].GetNumberValue()),
		CPUUsage:        f["cpu_usage"].GetNumberValue(),
		MemoryUsagePct:  f["memory_usage"].GetNumberValue(),
		MemoryUsed:      uint64(f["memory_used"].GetNumberValue()),
		MemoryTotal:     uint64(f["memory_total"].GetNumberValue()),
		Uptime:          uint64(f["uptime"].GetNumberValue()),
		ProcessCount:    int(f["process_count"].GetNumberValue()),
		ActiveWindow:    f["active_window"].GetStringValue(),
		HasActiveWindow: f["has_active_window"].GetBoolValue(),
	}
	for _, v := range f["processes"].GetListValue().GetValues() {
		pf := v.GetStructValue().GetFields()
		r.Processes = append(r.Processes, ReportProcess{
			Name:     pf["name"].GetStringValue(),
			CPUUsage: pf["cpu_usage"].GetNumberValue(),
		})
	}
	return r
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(sec float64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(int64(sec), 0)
}
