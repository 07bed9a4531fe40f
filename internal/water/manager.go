package water

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"calmaquarium/internal/clock"
	"calmaquarium/internal/observe"
	"calmaquarium/internal/usage"
)

// Config tunes the water model
type Config struct {
	// Turbidity set by a weekly or manual water change, within [0,100].
	// DefaultConfig uses 100.
	ResetTurbidity float64

	// Percent per minute while restricted apps are used. Default: 2.
	IncreaseRate float64

	// Percent per idle minute. Default: 0.5.
	DecreaseRate float64

	// Interval of the self-ticks run while monitoring. Default: 1 minute.
	MonitorInterval time.Duration
}

// DefaultConfig returns the default water model
func DefaultConfig() Config {
	return Config{
		ResetTurbidity:  DefaultResetTurbidity,
		IncreaseRate:    DefaultIncreaseRate,
		DecreaseRate:    DefaultDecreaseRate,
		MonitorInterval: DefaultMonitorInterval,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ResetTurbidity < MinTurbidity || c.ResetTurbidity > MaxTurbidity {
		c.ResetTurbidity = d.ResetTurbidity
	}
	if c.IncreaseRate <= 0 {
		c.IncreaseRate = d.IncreaseRate
	}
	if c.DecreaseRate <= 0 {
		c.DecreaseRate = d.DecreaseRate
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = d.MonitorInterval
	}
	return c
}

// State is the persisted part of the manager
type State struct {
	Turbidity      float64                  `json:"turbidity"`
	LastUpdateTime time.Time                `json:"last_update_time"`
	LastResetTime  time.Time                `json:"last_reset_time"`
	Baseline       map[string]time.Duration `json:"baseline,omitempty"`
}

// Manager owns the turbidity of the tank
type Manager struct {
	clock     clock.Source
	config    Config
	logger    *slog.Logger
	tracker   *usage.Tracker
	listeners *observe.Listeners[Info]

	mu            sync.Mutex
	state         State
	pending       time.Duration // usage seen while no time had elapsed
	stopTicks     func()
	removeMonitor func()
}

// NewManager creates a manager with fresh water at the reset turbidity
func NewManager(src clock.Source, config Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "water")
	config = config.withDefaults()
	now := src.Now()

	return &Manager{
		clock:     src,
		config:    config,
		logger:    logger,
		tracker:   usage.NewTracker(),
		listeners: observe.New[Info](logger),
		state: State{
			Turbidity:      config.ResetTurbidity,
			LastUpdateTime: now,
			LastResetTime:  now,
		},
	}
}

// Restore replaces the state with a persisted one
func (m *Manager) Restore(s State) {
	s.Turbidity = clampTurbidity(s.Turbidity)
	now := m.clock.Now()
	if s.LastUpdateTime.IsZero() {
		s.LastUpdateTime = now
	}
	if s.LastResetTime.IsZero() {
		s.LastResetTime = now
	}

	m.tracker.Reset()
	for appID, d := range s.Baseline {
		m.tracker.Seed([]usage.AppUsageData{{AppID: appID, DailyUsage: d}})
	}

	m.mu.Lock()
	s.Baseline = nil
	m.state = s
	m.pending = 0
	m.mu.Unlock()
}

// State returns a copy of the persisted state
func (m *Manager) State() State {
	m.mu.Lock()
	s := m.state
	m.mu.Unlock()

	s.Baseline = m.tracker.Baseline()
	return s
}

// Subscribe registers fn for every change
func (m *Manager) Subscribe(fn func(Info)) func() {
	return m.listeners.Add(fn)
}

// CurrentWaterQuality returns the derived snapshot without advancing time
func (m *Manager) CurrentWaterQuality() Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.infoLocked()
}

// Update advances the model to now using a usage batch. A nil batch is a
// plain time step. Time going backwards or standing still changes nothing
// beyond a due weekly reset; usage reported then is held for the next step.
func (m *Manager) Update(samples []usage.AppUsageData) Info {
	now := m.clock.Now()
	deltas := m.tracker.Observe(samples)

	m.mu.Lock()
	changed := m.weeklyResetLocked(now)
	m.pending += usage.Total(deltas)

	elapsed := now.Sub(m.state.LastUpdateTime).Minutes()
	if elapsed > 0 {
		usageMinutes := m.pending.Minutes()
		t := m.state.Turbidity
		if usageMinutes > 0 {
			t += math.Min(usageMinutes, elapsed) * m.config.IncreaseRate
		} else {
			t -= elapsed * m.config.DecreaseRate
		}
		m.state.Turbidity = clampTurbidity(t)
		m.state.LastUpdateTime = now
		m.pending = 0
		changed = true
	}
	info := m.infoLocked()
	m.mu.Unlock()

	if changed {
		m.listeners.Emit(info)
	}
	return info
}

// PerformManualWaterChange resets turbidity immediately
func (m *Manager) PerformManualWaterChange() Info {
	now := m.clock.Now()

	m.mu.Lock()
	m.state.Turbidity = m.config.ResetTurbidity
	m.state.LastResetTime = now
	m.state.LastUpdateTime = now
	m.pending = 0
	info := m.infoLocked()
	m.mu.Unlock()

	m.logger.Info("manual water change", "turbidity", info.Turbidity)
	m.listeners.Emit(info)
	return info
}

// StartMonitoring registers fn, sends it the current state and starts
// periodic self-ticks. A running monitoring session is stopped first.
func (m *Manager) StartMonitoring(fn func(Info)) {
	m.StopMonitoring()

	var remove func()
	if fn != nil {
		remove = m.listeners.Add(fn)
		m.deliver(fn, m.CurrentWaterQuality())
	}
	stop := m.clock.Every(m.config.MonitorInterval, clock.Guarded(m.logger, "water_tick", func() {
		m.Update(nil)
	}))

	m.mu.Lock()
	m.stopTicks = stop
	m.removeMonitor = remove
	m.mu.Unlock()

	m.logger.Debug("water monitoring started", "interval", m.config.MonitorInterval)
}

// StopMonitoring cancels self-ticks and drops the monitoring callback.
// Safe to call when not started.
func (m *Manager) StopMonitoring() {
	m.mu.Lock()
	stop, remove := m.stopTicks, m.removeMonitor
	m.stopTicks, m.removeMonitor = nil, nil
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	if remove != nil {
		remove()
	}
}

// weeklyResetLocked resets the water when a Sunday boundary passed since the
// last reset. It reports whether it did.
func (m *Manager) weeklyResetLocked(now time.Time) bool {
	if now.Before(NextResetTime(m.state.LastResetTime)) {
		return false
	}
	m.state.Turbidity = m.config.ResetTurbidity
	m.state.LastResetTime = LastResetBoundary(now)
	m.state.LastUpdateTime = now
	m.pending = 0
	m.logger.Info("weekly water reset", "reset_time", m.state.LastResetTime)
	return true
}

func (m *Manager) deliver(fn func(Info), info Info) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("water callback panicked", "panic", r)
		}
	}()
	fn(info)
}

func (m *Manager) infoLocked() Info {
	level := ClassifyTurbidity(m.state.Turbidity)
	return Info{
		Turbidity:       m.state.Turbidity,
		Level:           level,
		IsHarmful:       level.Harmful(),
		TimeUntilDanger: TimeUntilDanger(m.state.Turbidity, m.config.IncreaseRate),
		LastResetTime:   m.state.LastResetTime,
		NextResetTime:   NextResetTime(m.state.LastResetTime),
	}
}
