// Package pipeline wires sampling, composition and publishing into the
// running presence service.
//
// The sampler writes snapshots on its own ticker. A separate consumer loop
// wakes every ConsumerPoll, reads the latest snapshot and hands a composed
// presence to the publisher once the update interval has elapsed. The
// snapshot cell is the only thing the two sides share.
package pipeline

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"multipresence/internal/activity"
	"multipresence/internal/clock"
	"multipresence/internal/config"
	"multipresence/internal/foreground"
	"multipresence/internal/hostmetrics"
	"multipresence/internal/presence"
	"multipresence/internal/wordfilter"
)

// ConsumerPoll is how often the consumer checks whether a publish is due.
const ConsumerPoll = time.Second

const shutdownTimeout = 3 * time.Second

// Deps are the collaborators a Pipeline drives.
type Deps struct {
	Source hostmetrics.Source
	Window foreground.Titler
	Client presence.Client
	Clock  clock.Clock
	Logger *slog.Logger
}

// Pipeline owns the sampler, the snapshot cell and the publisher.
type Pipeline struct {
	clock  clock.Clock
	logger *slog.Logger

	cell      *activity.Cell
	sampler   *activity.Sampler
	publisher *presence.Publisher

	// mu serialises the consumer side: composition inputs and every
	// publisher call, whether from the consumer loop or a control request.
	mu       sync.Mutex
	cfg      config.Config
	composer *presence.Composer
	message  string
}

// New builds a pipeline for cfg. Nothing runs until Run is called.
func New(cfg config.Config, deps Deps) *Pipeline {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Window == nil {
		deps.Window = foreground.Unsupported{}
	}
	cfg = cfg.Clone()

	cell := activity.NewCell()
	p := &Pipeline{
		clock:  deps.Clock,
		logger: deps.Logger,
		cell:   cell,
		sampler: activity.NewSampler(deps.Source, deps.Window, cell, samplerSettings(cfg),
			activity.WithClock(deps.Clock),
			activity.WithLogger(deps.Logger.With("stage", "sampler")),
		),
		publisher: presence.NewPublisher(deps.Client, cfg.UpdateInterval(),
			presence.WithPublisherClock(deps.Clock),
			presence.WithPublisherLogger(deps.Logger.With("stage", "publisher")),
		),
		cfg:      cfg,
		composer: presence.NewComposer(wordfilter.CompileWithLogger(cfg.BlacklistedWords, deps.Logger)),
	}
	return p
}

func samplerSettings(cfg config.Config) activity.Settings {
	f := cfg.ActivityFilters
	return activity.Settings{
		Interval: cfg.UpdateInterval(),
		Filters: activity.Filters{
			HideSystemProcesses:  f.HideSystemProcesses,
			HideBackgroundApps:   f.HideBackgroundApps,
			MinimumCPUUsage:      f.MinimumCPUUsage,
			BlacklistedProcesses: slices.Clone(f.BlacklistedProcesses),
		},
	}
}

// Run connects the publisher and drives sampler and consumer until ctx
// is cancelled. A failed initial connection is not fatal; the status
// reflects it and Reconnect can retry. On return the remote presence has
// been cleared and the session closed.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.Reconnect(ctx); err != nil {
		p.logger.Warn("starting without presence connection", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.sampler.Run(gctx)
	})
	g.Go(func() error {
		return p.consume(gctx)
	})
	err := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	p.mu.Lock()
	p.publisher.Shutdown(shutdownCtx)
	p.mu.Unlock()
	return err
}

func (p *Pipeline) consume(ctx context.Context) error {
	ticker := time.NewTicker(ConsumerPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Step(ctx)
		}
	}
}

// Step runs one consumer cycle and reports whether the endpoint was
// called. Cycles with no snapshot yet, no session, or an interval that
// has not elapsed do nothing.
func (p *Pipeline) Step(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.publisher.Due() {
		return false
	}
	snap, ok := p.cell.Read()
	if !ok {
		return false
	}
	composed := p.composer.Compose(snap, p.optionsLocked())
	called, err := p.publisher.Publish(ctx, composed)
	if err != nil {
		p.logger.Warn("presence update failed", "error", err)
	}
	return called
}

func (p *Pipeline) optionsLocked() presence.Options {
	return presence.Options{
		ShowSystemStats:  p.cfg.ShowSystemStats,
		ShowTime:         p.cfg.ShowTime,
		ShowApplications: p.cfg.ShowApplications,
		CustomMessage:    p.message,
	}
}

// SetCustomMessage replaces the free-form details text. An empty string
// clears it. The message is redacted at composition time.
func (p *Pipeline) SetCustomMessage(msg string) {
	p.mu.Lock()
	p.message = msg
	p.mu.Unlock()
}

// CustomMessage returns the current raw custom message.
func (p *Pipeline) CustomMessage() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.message
}

// Reconnect (re)establishes the presence session.
func (p *Pipeline) Reconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.publisher.Connect(ctx)
}

// Config returns a copy of the active configuration.
func (p *Pipeline) Config() config.Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.Clone()
}

// UpdateConfig applies cfg to a running pipeline. The word filter is only
// recompiled when the blacklist changed; interval and process filters
// reach the sampler on its next tick.
func (p *Pipeline) UpdateConfig(cfg config.Config) {
	cfg = cfg.Clone()

	p.mu.Lock()
	if !slices.Equal(p.cfg.BlacklistedWords, cfg.BlacklistedWords) {
		p.composer = presence.NewComposer(wordfilter.CompileWithLogger(cfg.BlacklistedWords, p.logger))
	}
	p.cfg = cfg
	p.publisher.SetInterval(cfg.UpdateInterval())
	p.mu.Unlock()

	p.sampler.UpdateSettings(samplerSettings(cfg))
	p.logger.Info("configuration applied", "interval", cfg.UpdateInterval(), "blacklisted_words", len(cfg.BlacklistedWords))
}

// Preview is everything a local status view shows.
type Preview struct {
	Snapshot       activity.Snapshot
	HasSnapshot    bool
	Presence       presence.Presence
	Redacted       presence.Preview
	Status         presence.Status
	CustomMessage  string
	FilterFallback bool
}

// Preview composes the current snapshot without publishing it.
func (p *Pipeline) Preview() Preview {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := Preview{
		Status:         p.publisher.Status(),
		CustomMessage:  p.message,
		FilterFallback: p.composer.Filter().Fallback(),
	}
	snap, ok := p.cell.Read()
	if !ok {
		return out
	}
	out.Snapshot = snap
	out.HasSnapshot = true
	out.Presence = p.composer.Compose(snap, p.optionsLocked())
	out.Redacted = p.composer.Preview(snap)
	return out
}

// Status returns the publisher status.
func (p *Pipeline) Status() presence.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.publisher.Status()
}
