package fish

import (
	"log/slog"
	"sync"
	"time"

	"calmaquarium/internal/clock"
	"calmaquarium/internal/observe"
	"calmaquarium/internal/pet"
	"calmaquarium/internal/water"
)

// Config sets the timer intervals
type Config struct {
	// Default: 2 seconds.
	PositionInterval time.Duration

	// Default: 10 seconds.
	PhaseInterval time.Duration
}

// Manager owns the fish state and its animation timers
type Manager struct {
	clock     clock.Source
	config    Config
	logger    *slog.Logger
	listeners *observe.Listeners[State]

	mu            sync.Mutex
	state         State
	startedAt     time.Time
	stopPosition  func()
	stopPhase     func()
	removeMonitor func()
}

// NewManager creates a manager with a healthy centered fish
func NewManager(src clock.Source, config Config, logger *slog.Logger) *Manager {
	if config.PositionInterval <= 0 {
		config.PositionInterval = DefaultPositionInterval
	}
	if config.PhaseInterval <= 0 {
		config.PhaseInterval = DefaultPhaseInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "fish")

	return &Manager{
		clock:     src,
		config:    config,
		logger:    logger,
		listeners: observe.New[State](logger),
		state:     InitialState(),
		startedAt: src.Now(),
	}
}

// State returns the current snapshot
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn for every change
func (m *Manager) Subscribe(fn func(State)) func() {
	return m.listeners.Add(fn)
}

// UpdateBehavior recomputes the behavior from water quality and the pet.
// A nil pet means there is no live fish.
func (m *Manager) UpdateBehavior(info water.Info, p *pet.Pet) State {
	m.mu.Lock()
	wasDead := m.state.IsDead
	m.state = Derive(m.state, info, p)
	s := m.state
	m.mu.Unlock()

	if s.IsDead && !wasDead {
		m.logger.Info("fish died")
	}
	m.listeners.Emit(s)
	return s
}

// UpdatePosition advances the fish one animation step
func (m *Manager) UpdatePosition() State {
	now := m.clock.Now()

	m.mu.Lock()
	m.state = Step(m.state, now.Sub(m.startedAt))
	s := m.state
	m.mu.Unlock()

	m.listeners.Emit(s)
	return s
}

// RandomizePhase picks a new phase for the circular swim
func (m *Manager) RandomizePhase() {
	phase := NewPhase()
	m.mu.Lock()
	m.state.AnimationPhase = phase
	m.mu.Unlock()
}

// ResetBehaviorState restores a healthy centered fish, used for a new pet
func (m *Manager) ResetBehaviorState() State {
	now := m.clock.Now()

	m.mu.Lock()
	m.state = InitialState()
	m.startedAt = now
	s := m.state
	m.mu.Unlock()

	m.listeners.Emit(s)
	return s
}

// StartBehaviorMonitoring registers fn, sends it the current state and starts
// the position and phase timers. A running session is stopped first.
func (m *Manager) StartBehaviorMonitoring(fn func(State)) {
	m.StopBehaviorMonitoring()

	var remove func()
	if fn != nil {
		remove = m.listeners.Add(fn)
		m.deliver(fn, m.State())
	}

	stopPosition := m.clock.Every(m.config.PositionInterval, clock.Guarded(m.logger, "fish_position", func() {
		m.UpdatePosition()
	}))
	stopPhase := m.clock.Every(m.config.PhaseInterval, clock.Guarded(m.logger, "fish_phase", m.RandomizePhase))

	m.mu.Lock()
	m.startedAt = m.clock.Now()
	m.stopPosition = stopPosition
	m.stopPhase = stopPhase
	m.removeMonitor = remove
	m.mu.Unlock()
}

// StopBehaviorMonitoring clears both timers and the monitoring callback.
// Safe to call when not started.
func (m *Manager) StopBehaviorMonitoring() {
	m.mu.Lock()
	stops := []func(){m.stopPosition, m.stopPhase, m.removeMonitor}
	m.stopPosition, m.stopPhase, m.removeMonitor = nil, nil, nil
	m.mu.Unlock()

	for _, stop := range stops {
		if stop != nil {
			stop()
		}
	}
}

func (m *Manager) deliver(fn func(State), s State) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("fish callback panicked", "panic", r)
		}
	}()
	fn(s)
}
