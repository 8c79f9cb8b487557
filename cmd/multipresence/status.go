package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"multipresence/internal/app"
)

func init() {
	rootCmd.AddCommand(cmdStatus)
}

var cmdStatus = &cobra.Command{
	Use:   "status",
	Short: "Show the connection status and the presence being published",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl := controller()
		out := cmd.OutOrStdout()

		st, err := ctrl.Status()
		if err != nil {
			return err
		}
		if !st.Running {
			fmt.Fprintln(out, "Daemon: not running")
			return nil
		}
		report, err := ctrl.Presence(cmd.Context(), rpcTimeout)
		if err != nil {
			return err
		}
		if st.PID > 0 {
			fmt.Fprintf(out, "Daemon: running (pid %d)\n", st.PID)
		} else {
			fmt.Fprintln(out, "Daemon: running")
		}
		printReport(out, report)
		return nil
	},
}

func printReport(out io.Writer, r app.Report) {
	fmt.Fprintf(out, "Discord: %s\n", r.StatusMessage)
	if !r.LastPublish.IsZero() {
		fmt.Fprintf(out, "Last update: %s\n", humanize.Time(r.LastPublish))
	}
	if r.FilterFallback {
		fmt.Fprintln(out, "Warning: word filter failed to compile; nothing is being redacted")
	}
	if r.CustomMessage != "" {
		fmt.Fprintf(out, "Custom message: %s\n", r.CustomMessage)
	}
	if !r.HasSnapshot {
		fmt.Fprintln(out, "No activity data available")
		return
	}
	fmt.Fprintf(out, "Details: %s\n", r.Details)
	fmt.Fprintf(out, "State: %s\n", r.State)
	fmt.Fprintf(out, "CPU Usage: %.1f%%\n", r.CPUUsage)
	fmt.Fprintf(out, "Memory Usage: %.1f%% (%s / %s)\n", r.MemoryUsagePct, humanize.IBytes(r.MemoryUsed), humanize.IBytes(r.MemoryTotal))
	fmt.Fprintf(out, "Process Count: %d\n", r.ProcessCount)
	fmt.Fprintf(out, "Sampled: %s\n", r.Timestamp.Format(time.DateTime))
	for _, p := range r.Processes {
		fmt.Fprintf(out, "  %s - %.1f%% CPU\n", p.Name, p.CPUUsage)
	}
	if r.HasActiveWindow {
		fmt.Fprintf(out, "Active Window: %s\n", r.ActiveWindow)
	}
}
