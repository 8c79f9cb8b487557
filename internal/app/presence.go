package app

import (
	"context"
	"fmt"
	"time"

	"multipresence/internal/control"
)

// Report is the daemon's redacted view of the current presence.
type Report = control.Report

// ReportProcess is one redacted top process within a Report.
type ReportProcess = control.ReportProcess

// Presence fetches the daemon's status report.
func (a *App) Presence(ctx context.Context, timeout time.Duration) (Report, error) {
	var report Report
	err := a.withClient(ctx, timeout, func(ctx context.Context, client *control.Client) error {
		r, err := client.Status(ctx)
		if err != nil {
			return fmt.Errorf("daemon status RPC failed: %w", err)
		}
		report = r
		return nil
	})
	return report, err
}

// SetMessage replaces the custom message shown as presence details.
// An empty message restores the system stats line.
func (a *App) SetMessage(ctx context.Context, msg string, timeout time.Duration) error {
	return a.withClient(ctx, timeout, func(ctx context.Context, client *control.Client) error {
		if err := client.SetMessage(ctx, msg); err != nil {
			return fmt.Errorf("daemon set message RPC failed: %w", err)
		}
		return nil
	})
}

// Reconnect asks the daemon to re-establish the presence session and
// returns the resulting status line.
func (a *App) Reconnect(ctx context.Context, timeout time.Duration) (string, error) {
	var line string
	err := a.withClient(ctx, timeout, func(ctx context.Context, client *control.Client) error {
		resp, err := client.Reconnect(ctx)
		if err != nil {
			return fmt.Errorf("daemon reconnect RPC failed: %w", err)
		}
		line = resp
		return nil
	})
	return line, err
}
