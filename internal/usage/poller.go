package usage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"calmaquarium/internal/clock"
	"calmaquarium/internal/observe"
)

// PollerConfig configures the usage poller
type PollerConfig struct {
	// Interval between polls. Default: 30 seconds.
	Interval time.Duration

	// Window is the aggregation window passed to the source. Default: 24 hours.
	Window time.Duration
}

// Poller fetches usage from a Source on a fixed interval and publishes each
// batch. A failed fetch publishes an empty batch so the simulation keeps
// ticking.
type Poller struct {
	source    Source
	scheduler clock.Scheduler
	config    PollerConfig
	logger    *slog.Logger
	listeners *observe.Listeners[[]AppUsageData]

	mu   sync.Mutex
	stop func()
}

// NewPoller creates a poller
func NewPoller(source Source, scheduler clock.Scheduler, config PollerConfig, logger *slog.Logger) *Poller {
	if config.Interval <= 0 {
		config.Interval = DefaultPollInterval
	}
	if config.Window <= 0 {
		config.Window = DefaultWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "usage_poller")

	return &Poller{
		source:    source,
		scheduler: scheduler,
		config:    config,
		logger:    logger,
		listeners: observe.New[[]AppUsageData](logger),
	}
}

// Subscribe registers fn for every published batch
func (p *Poller) Subscribe(fn func([]AppUsageData)) func() {
	return p.listeners.Add(fn)
}

// Start polls immediately and then on every interval. Starting a running
// poller restarts it.
func (p *Poller) Start() {
	p.Stop()

	p.Poll(context.Background())

	p.mu.Lock()
	p.stop = p.scheduler.Every(p.config.Interval, func() {
		p.Poll(context.Background())
	})
	p.mu.Unlock()

	p.logger.Info("usage poller started", "interval", p.config.Interval)
}

// Stop cancels polling. Safe to call when not started.
func (p *Poller) Stop() {
	p.mu.Lock()
	stop := p.stop
	p.stop = nil
	p.mu.Unlock()

	if stop != nil {
		stop()
		p.logger.Info("usage poller stopped")
	}
}

// Poll fetches one batch and publishes it
func (p *Poller) Poll(ctx context.Context) []AppUsageData {
	samples, err := p.Fetch(ctx)
	if err != nil {
		if errors.Is(err, ErrNoPermission) {
			p.logger.Warn("usage access not granted, continuing without usage", "error", err)
		} else {
			p.logger.Error("failed to fetch usage", "error", err)
		}
		samples = nil
	}
	p.listeners.Emit(samples)
	return samples
}

// Fetch queries the source once without publishing
func (p *Poller) Fetch(ctx context.Context) ([]AppUsageData, error) {
	samples, err := p.source.UsageStats(ctx, p.config.Window)
	if err != nil {
		return nil, err
	}
	var out []AppUsageData
	for _, s := range samples {
		if s.AppID == "" || s.DailyUsage <= 0 {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// InstalledApps lists the user apps known to the source
func (p *Poller) InstalledApps(ctx context.Context) ([]InstalledApp, error) {
	return p.source.InstalledApps(ctx)
}
