// Package discord speaks the local Rich Presence IPC protocol of the
// Discord desktop client.
package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"multipresence/internal/presence"
)

// ErrClosed is returned when a command is issued without a session.
var ErrClosed = errors.New("discord: not connected")

const defaultIOTimeout = 5 * time.Second

// Conn is the transport a session runs over.
type Conn interface {
	io.ReadWriteCloser
}

// Dialer opens a transport to the local Discord client.
type Dialer func(ctx context.Context) (Conn, error)

type deadliner interface {
	SetDeadline(t time.Time) error
}

// Client is a presence.Client backed by the Discord IPC socket.
type Client struct {
	appID  string
	dial   Dialer
	pid    int
	logger *slog.Logger

	mu   sync.Mutex
	conn Conn
}

var _ presence.Client = (*Client)(nil)

// Option customises a Client.
type Option func(*Client)

// WithDialer replaces the platform socket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dial = d }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient returns an unconnected client for the given application id.
func NewClient(appID string, opts ...Option) *Client {
	c := &Client{
		appID:  appID,
		dial:   dialIPC,
		pid:    os.Getpid(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the socket and performs the handshake. An existing
// session is closed first.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeLocked()
	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial discord ipc: %w", err)
	}
	if err := c.handshake(ctx, conn); err != nil {
		_ = conn.Close()
		return err
	}
	c.conn = conn
	c.logger.Debug("discord handshake complete", "app_id", c.appID)
	return nil
}

func (c *Client) handshake(ctx context.Context, conn Conn) error {
	setDeadline(ctx, conn)
	defer clearDeadline(conn)

	if err := writeFrame(conn, opHandshake, handshake{Version: 1, ClientID: c.appID}); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	op, body, err := readFrame(conn)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	if op == opClose {
		var reason closeReason
		_ = json.Unmarshal(body, &reason)
		return fmt.Errorf("handshake rejected: %s (code %d)", reason.Message, reason.Code)
	}
	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("handshake: decode reply: %w", err)
	}
	if resp.Evt != "READY" {
		return fmt.Errorf("handshake: unexpected event %q", resp.Evt)
	}
	return nil
}

// SetActivity replaces the presence shown for this process.
func (c *Client) SetActivity(ctx context.Context, a presence.Activity) error {
	return c.setActivity(ctx, toWire(a))
}

// ClearActivity removes the presence shown for this process.
func (c *Client) ClearActivity(ctx context.Context) error {
	return c.setActivity(ctx, nil)
}

func (c *Client) setActivity(ctx context.Context, a *wireActivity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrClosed
	}
	cmd := command{
		Cmd:   "SET_ACTIVITY",
		Args:  commandArgs{PID: c.pid, Activity: a},
		Nonce: uuid.NewString(),
	}
	if err := c.roundTrip(ctx, cmd); err != nil {
		if !errors.As(err, new(*CommandError)) {
			c.closeLocked()
		}
		return err
	}
	return nil
}

// CommandError is an error event returned by Discord for a command.
type CommandError struct {
	Code    int
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("discord error %d: %s", e.Code, e.Message)
}

// Is reports a command error as presence.ErrRejected: the session survives it.
func (e *CommandError) Is(target error) bool {
	return target == presence.ErrRejected
}

func (c *Client) roundTrip(ctx context.Context, cmd command) error {
	setDeadline(ctx, c.conn)
	defer clearDeadline(c.conn)

	if err := writeFrame(c.conn, opFrame, cmd); err != nil {
		return err
	}
	for {
		op, body, err := readFrame(c.conn)
		if err != nil {
			return err
		}
		switch op {
		case opPing:
			if err := writeFrame(c.conn, opPong, jsoniter.RawMessage(body)); err != nil {
				return err
			}
			continue
		case opClose:
			return errors.New("discord closed the connection")
		case opFrame:
		default:
			c.logger.Debug("ignoring discord frame", "op", op)
			continue
		}

		var resp response
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("decode reply: %w", err)
		}
		if resp.Nonce != cmd.Nonce {
			continue
		}
		if resp.Evt == "ERROR" {
			return &CommandError{Code: resp.Data.Code, Message: resp.Data.Message}
		}
		return nil
	}
}

// Close ends the session. It is safe to call when not connected.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil
	if d, ok := conn.(deadliner); ok {
		_ = d.SetDeadline(time.Now().Add(time.Second))
	}
	_ = writeFrame(conn, opClose, struct{}{})
	return conn.Close()
}

func toWire(a presence.Activity) *wireActivity {
	w := &wireActivity{Details: a.Details, State: a.State}
	if a.StartedAt > 0 {
		w.Timestamps = &wireTimestamps{Start: a.StartedAt}
	}
	if a.LargeImageKey != "" || a.LargeImageText != "" {
		w.Assets = &wireAssets{LargeImage: a.LargeImageKey, LargeText: a.LargeImageText}
	}
	return w
}

func setDeadline(ctx context.Context, conn Conn) {
	d, ok := conn.(deadliner)
	if !ok {
		return
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultIOTimeout)
	}
	_ = d.SetDeadline(deadline)
}

func clearDeadline(conn Conn) {
	if d, ok := conn.(deadliner); ok {
		_ = d.SetDeadline(time.Time{})
	}
}
