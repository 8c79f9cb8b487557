package discord

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"multipresence/internal/presence"
)

// fakeDiscord plays the desktop side of a single session over a pipe.
type fakeDiscord struct {
	t        *testing.T
	conn     net.Conn
	commands chan command
}

func startFake(t *testing.T, reply func(f *fakeDiscord, cmd command)) (*Client, *fakeDiscord) {
	t.Helper()
	server, clientSide := net.Pipe()
	f := &fakeDiscord{t: t, conn: server, commands: make(chan command, 8)}
	t.Cleanup(func() { server.Close() })

	go func() {
		op, body, err := readFrame(server)
		if err != nil || op != opHandshake {
			return
		}
		var hs handshake
		if err := json.Unmarshal(body, &hs); err != nil || hs.ClientID != "42" {
			_ = writeFrame(server, opClose, map[string]any{"code": 4000, "message": "bad client id"})
			return
		}
		if err := writeFrame(server, opFrame, map[string]any{"cmd": "DISPATCH", "evt": "READY"}); err != nil {
			return
		}
		for {
			op, body, err := readFrame(server)
			if err != nil || op == opClose {
				return
			}
			var cmd command
			if err := json.Unmarshal(body, &cmd); err != nil {
				return
			}
			f.commands <- cmd
			reply(f, cmd)
		}
	}()

	c := NewClient("42",
		WithDialer(func(context.Context) (Conn, error) { return clientSide, nil }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return c, f
}

func ack(f *fakeDiscord, cmd command) {
	_ = writeFrame(f.conn, opFrame, map[string]any{"cmd": cmd.Cmd, "nonce": cmd.Nonce})
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSetActivityRoundTrip(t *testing.T) {
	c, f := startFake(t, ack)
	ctx := testContext(t)
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	err := c.SetActivity(ctx, presence.Activity{
		Details:        "CPU: 1.0% | RAM: 2.0%",
		State:          "Time: 10:00:00",
		StartedAt:      1700000000,
		LargeImageKey:  "default",
		LargeImageText: "MultiRichPresence",
	})
	if err != nil {
		t.Fatalf("SetActivity: %v", err)
	}

	cmd := <-f.commands
	if cmd.Cmd != "SET_ACTIVITY" || cmd.Nonce == "" || cmd.Args.PID == 0 {
		t.Fatalf("unexpected command %+v", cmd)
	}
	a := cmd.Args.Activity
	if a == nil || a.Details != "CPU: 1.0% | RAM: 2.0%" || a.Timestamps.Start != 1700000000 || a.Assets.LargeImage != "default" {
		t.Fatalf("unexpected activity %+v", a)
	}
}

func TestClearActivitySendsNull(t *testing.T) {
	c, f := startFake(t, ack)
	ctx := testContext(t)
	if err := c.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.ClearActivity(ctx); err != nil {
		t.Fatalf("ClearActivity: %v", err)
	}
	if cmd := <-f.commands; cmd.Args.Activity != nil {
		t.Fatalf("expected null activity, got %+v", cmd.Args.Activity)
	}
}

func TestCommandErrorKeepsSession(t *testing.T) {
	first := true
	c, _ := startFake(t, func(f *fakeDiscord, cmd command) {
		if first {
			first = false
			_ = writeFrame(f.conn, opFrame, map[string]any{
				"cmd": cmd.Cmd, "evt": "ERROR", "nonce": cmd.Nonce,
				"data": map[string]any{"code": 4002, "message": "bad payload"},
			})
			return
		}
		ack(f, cmd)
	})
	ctx := testContext(t)
	if err := c.Connect(ctx); err != nil {
		t.Fatal(err)
	}

	err := c.SetActivity(ctx, presence.Activity{Details: "x"})
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) || cmdErr.Code != 4002 {
		t.Fatalf("expected command error, got %v", err)
	}
	if !errors.Is(err, presence.ErrRejected) {
		t.Fatalf("command error should match presence.ErrRejected: %v", err)
	}
	if err := c.SetActivity(ctx, presence.Activity{Details: "y"}); err != nil {
		t.Fatalf("session should survive a command error: %v", err)
	}
}

func TestPingIsAnswered(t *testing.T) {
	c, _ := startFake(t, func(f *fakeDiscord, cmd command) {
		_ = writeFrame(f.conn, opPing, map[string]any{"n": 1})
		op, _, err := readFrame(f.conn)
		if err != nil || op != opPong {
			f.t.Errorf("expected pong, got op=%d err=%v", op, err)
			return
		}
		ack(f, cmd)
	})
	ctx := testContext(t)
	if err := c.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.SetActivity(ctx, presence.Activity{Details: "x"}); err != nil {
		t.Fatalf("SetActivity: %v", err)
	}
}

func TestHandshakeRejected(t *testing.T) {
	server, clientSide := net.Pipe()
	defer server.Close()
	go func() {
		if _, _, err := readFrame(server); err != nil {
			return
		}
		_ = writeFrame(server, opClose, map[string]any{"code": 4000, "message": "Invalid Client ID"})
	}()

	c := NewClient("nope", WithDialer(func(context.Context) (Conn, error) { return clientSide, nil }))
	if err := c.Connect(testContext(t)); err == nil {
		t.Fatal("expected handshake rejection")
	}
	if err := c.SetActivity(testContext(t), presence.Activity{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after failed handshake, got %v", err)
	}
}

func TestDialFailure(t *testing.T) {
	c := NewClient("42", WithDialer(func(context.Context) (Conn, error) {
		return nil, errors.New("no socket")
	}))
	if err := c.Connect(testContext(t)); err == nil {
		t.Fatal("expected dial error")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close without session: %v", err)
	}
}

func TestCommandWithoutSession(t *testing.T) {
	c := NewClient("42")
	if err := c.ClearActivity(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
