package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"multipresence/internal/app"
)

func TestMessageSetsText(t *testing.T) {
	var sent string
	withController(t, &stubController{
		setMessageFunc: func(ctx context.Context, msg string, timeout time.Duration) error {
			sent = msg
			return nil
		},
	})
	buf := withOutput(t, cmdMessage)
	messageClear = false

	if err := cmdMessage.RunE(cmdMessage, []string{"shipping", "v2"}); err != nil {
		t.Fatalf("RunE: %v", err)
	}
	if sent != "shipping v2" || buf.String() != "Custom message set\n" {
		t.Fatalf("sent %q, output %q", sent, buf.String())
	}
}

func TestMessageClear(t *testing.T) {
	sent := "unset"
	withController(t, &stubController{
		setMessageFunc: func(ctx context.Context, msg string, timeout time.Duration) error {
			sent = msg
			return nil
		},
	})
	withOutput(t, cmdMessage)
	messageClear = true
	t.Cleanup(func() { messageClear = false })

	if err := cmdMessage.RunE(cmdMessage, nil); err != nil {
		t.Fatalf("RunE: %v", err)
	}
	if sent != "" {
		t.Fatalf("expected empty message, got %q", sent)
	}
	if err := cmdMessage.RunE(cmdMessage, []string{"oops"}); err == nil {
		t.Fatal("--clear with text should fail")
	}
}

func TestMessageRequiresText(t *testing.T) {
	withController(t, &stubController{})
	messageClear = false
	if err := cmdMessage.RunE(cmdMessage, nil); err == nil {
		t.Fatal("expected missing text error")
	}
}

func TestStatusNotRunning(t *testing.T) {
	withController(t, &stubController{})
	buf := withOutput(t, cmdStatus)
	if err := cmdStatus.RunE(cmdStatus, nil); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "Daemon: not running\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestStatusPrintsReport(t *testing.T) {
	withController(t, &stubController{
		status: app.DaemonStatus{Running: true, PID: 99},
		presenceFunc: func(ctx context.Context, timeout time.Duration) (app.Report, error) {
			return app.Report{
				Connected:     true,
				StatusMessage: "Connected",
				HasSnapshot:   true,
				Details:       "CPU: 42.3% | RAM: 67.8%",
				State:         "Time: 14:05:09 | Running: [FILTERED]",
				MemoryUsed:    1 << 30,
				MemoryTotal:   2 << 30,
				Processes:     []app.ReportProcess{{Name: "[FILTERED]", CPUUsage: 30}},
			}, nil
		},
	})
	buf := withOutput(t, cmdStatus)
	if err := cmdStatus.RunE(cmdStatus, nil); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"Daemon: running (pid 99)",
		"Discord: Connected",
		"Details: CPU: 42.3% | RAM: 67.8%",
		"State: Time: 14:05:09 | Running: [FILTERED]",
		"(1.0 GiB / 2.0 GiB)",
		"  [FILTERED] - 30.0% CPU",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestReconnectPrintsStatusLine(t *testing.T) {
	withController(t, &stubController{
		reconnectFunc: func(ctx context.Context, timeout time.Duration) (string, error) {
			return "Connected", nil
		},
	})
	buf := withOutput(t, cmdReconnect)
	if err := cmdReconnect.RunE(cmdReconnect, nil); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "Connected\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestStopWhenNotRunning(t *testing.T) {
	stub := &stubController{}
	withController(t, stub)
	buf := withOutput(t, cmdStop)
	if err := cmdStop.RunE(cmdStop, nil); err != nil {
		t.Fatal(err)
	}
	if stub.stopped || buf.String() != "Daemon is not running\n" {
		t.Fatalf("stopped=%t output=%q", stub.stopped, buf.String())
	}
}

func TestConfigPath(t *testing.T) {
	withController(t, &stubController{})
	buf := withOutput(t, cmdConfigPath)
	if err := cmdConfigPath.RunE(cmdConfigPath, nil); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "/tmp/multipresence/config.json\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestConfigSet(t *testing.T) {
	var gotKey, gotValue string
	withController(t, &stubController{
		setConfigFunc: func(ctx context.Context, key, value string) (app.ConfigResult, error) {
			gotKey, gotValue = key, value
			return app.ConfigResult{Path: "/tmp/multipresence/config.json", Reloaded: true}, nil
		},
	})
	buf := withOutput(t, cmdConfigSet)
	if err := cmdConfigSet.RunE(cmdConfigSet, []string{"show_time", "false"}); err != nil {
		t.Fatal(err)
	}
	if gotKey != "show_time" || gotValue != "false" {
		t.Fatalf("SetConfig(%q, %q)", gotKey, gotValue)
	}
	want := "Set show_time=false in /tmp/multipresence/config.json\nDaemon reloaded the configuration\n"
	if buf.String() != want {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestConfigSetError(t *testing.T) {
	expected := errors.New("unknown setting")
	withController(t, &stubController{
		setConfigFunc: func(ctx context.Context, key, value string) (app.ConfigResult, error) {
			return app.ConfigResult{}, expected
		},
	})
	if err := cmdConfigSet.RunE(cmdConfigSet, []string{"colour", "blue"}); !errors.Is(err, expected) {
		t.Fatalf("expected %v, got %v", expected, err)
	}
}

func TestConfigReload(t *testing.T) {
	stub := &stubController{}
	withController(t, stub)
	buf := withOutput(t, cmdConfigReload)
	if err := cmdConfigReload.RunE(cmdConfigReload, nil); err != nil {
		t.Fatal(err)
	}
	if stub.reloads != 1 || buf.String() != "Daemon reloaded the configuration\n" {
		t.Fatalf("reloads=%d output=%q", stub.reloads, buf.String())
	}
}

func TestConfigReloadWithoutDaemon(t *testing.T) {
	withController(t, &stubController{reloadErr: app.ErrDaemonNotRunning})
	buf := withOutput(t, cmdConfigReload)
	if err := cmdConfigReload.RunE(cmdConfigReload, nil); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "Daemon is not running; changes apply on next start\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
