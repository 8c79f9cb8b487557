package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"multipresence/internal/clock"
)

// State is the publisher's connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status strings shown to the user.
const (
	StatusConnected    = "Connected"
	StatusDisconnected = "Disconnected"
)

// Status is a point-in-time view of the publisher.
type Status struct {
	State       State
	Message     string
	LastPublish time.Time
}

// Publisher owns the endpoint session. It is safe for concurrent use,
// though the pipeline drives it from a single consumer goroutine.
type Publisher struct {
	client Client
	clock  clock.Clock
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	message     string
	interval    time.Duration
	lastPublish time.Time
}

// PublisherOption customises a Publisher.
type PublisherOption func(*Publisher)

// WithPublisherClock overrides the rate-limit time source.
func WithPublisherClock(c clock.Clock) PublisherOption {
	return func(p *Publisher) { p.clock = c }
}

// WithPublisherLogger sets the publisher logger.
func WithPublisherLogger(l *slog.Logger) PublisherOption {
	return func(p *Publisher) { p.logger = l }
}

// NewPublisher returns a disconnected Publisher that sends at most one
// update per interval.
func NewPublisher(client Client, interval time.Duration, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		client:   client,
		clock:    clock.Real(),
		logger:   slog.Default(),
		state:    Disconnected,
		message:  StatusDisconnected,
		interval: interval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Connect (re)establishes the endpoint session. Calling it while
// connected closes the old session first. The returned error is also
// reflected in Status().Message.
func (p *Publisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Connected {
		if err := p.client.Close(); err != nil {
			p.logger.Debug("closing previous presence session", "error", err)
		}
	}
	p.state = Connecting

	if err := p.client.Connect(ctx); err != nil {
		p.state = Disconnected
		p.message = fmt.Sprintf("Connection failed: %v", err)
		p.logger.Error("presence connect failed", "error", err)
		return fmt.Errorf("connect presence endpoint: %w", err)
	}
	p.state = Connected
	p.message = StatusConnected
	// A fresh session has nothing shown yet; let the next cycle publish.
	p.lastPublish = time.Time{}
	p.logger.Info("connected to presence endpoint")
	return nil
}

// Due reports whether a publish would pass the rate limit right now.
func (p *Publisher) Due() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dueLocked(p.clock.Now())
}

func (p *Publisher) dueLocked(now time.Time) bool {
	return p.lastPublish.IsZero() || now.Sub(p.lastPublish) >= p.interval
}

// Publish sends presence when connected and the interval has elapsed.
// It reports whether the endpoint was called. Disconnected and
// rate-limited calls are no-ops. A rejected payload (ErrRejected) keeps
// the session and waits out the interval before the next attempt. Any
// other error drops the session with no retry until Connect is called.
func (p *Publisher) Publish(ctx context.Context, presence Presence) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Connected {
		p.logger.Debug("skip publish, endpoint not connected", "state", p.state)
		return false, nil
	}
	now := p.clock.Now()
	if !p.dueLocked(now) {
		return false, nil
	}

	if err := p.client.SetActivity(ctx, presence.Activity()); err != nil {
		p.message = fmt.Sprintf("Activity update failed: %v", err)
		if errors.Is(err, ErrRejected) {
			p.lastPublish = now
			p.logger.Warn("presence update rejected", "error", err)
		} else {
			p.state = Disconnected
			p.logger.Error("failed to set presence", "error", err)
		}
		return true, fmt.Errorf("set activity: %w", err)
	}
	p.lastPublish = now
	p.message = StatusConnected
	p.logger.Debug("presence updated", "details", presence.Details, "state", presence.State)
	return true, nil
}

// SetInterval changes the minimum spacing between publishes.
func (p *Publisher) SetInterval(d time.Duration) {
	p.mu.Lock()
	p.interval = d
	p.mu.Unlock()
}

// Status returns the current state and user-facing message.
func (p *Publisher) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{State: p.state, Message: p.message, LastPublish: p.lastPublish}
}

// Shutdown clears the remote presence and closes the session. Failures
// are logged and swallowed.
func (p *Publisher) Shutdown(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Connected {
		if err := p.client.ClearActivity(ctx); err != nil {
			p.logger.Warn("clear presence on shutdown", "error", err)
		}
	}
	if err := p.client.Close(); err != nil {
		p.logger.Debug("close presence session on shutdown", "error", err)
	}
	p.state = Disconnected
	p.message = StatusDisconnected
}
