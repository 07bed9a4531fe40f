// Package aquarium wires the simulation together. A Session owns the saved
// game state and runs each usage batch through health, water and fish, then
// raises alerts and queues the result for storage.
package aquarium

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"calmaquarium/internal/clock"
	"calmaquarium/internal/fish"
	"calmaquarium/internal/health"
	"calmaquarium/internal/observe"
	"calmaquarium/internal/pet"
	"calmaquarium/internal/store"
	"calmaquarium/internal/telemetry"
	"calmaquarium/internal/usage"
	"calmaquarium/internal/water"
)

var (
	// ErrPetAlive is returned when adopting while a pet is still alive
	ErrPetAlive = errors.New("a pet is already living in the tank")

	// ErrNoPet is returned by operations that need a live pet
	ErrNoPet = errors.New("no pet in the tank")

	// ErrUnknownApp is returned when removing a restriction that does not exist
	ErrUnknownApp = errors.New("app is not restricted")

	// ErrInvalidApp is returned for a restriction without an app id
	ErrInvalidApp = errors.New("restriction needs an app id")
)

// Options configures a Session. Store and Source are required.
type Options struct {
	Clock         clock.Source
	Store         store.Store
	Source        usage.Source
	Poller        usage.PollerConfig
	Water         water.Config
	Fish          fish.Config
	FlushInterval time.Duration
	Recorder      *telemetry.Recorder
	Logger        *slog.Logger
}

// Status is everything a front end shows
type Status struct {
	Time      time.Time                `json:"time"`
	Pet       *pet.Pet                 `json:"pet,omitempty"`
	Health    health.Result            `json:"health"`
	Water     water.Info               `json:"water"`
	Fish      fish.State               `json:"fish"`
	Apps      []health.AppUsage        `json:"apps,omitempty"`
	Alerts    []Alert                  `json:"alerts,omitempty"`
	Stats     store.GameStats          `json:"stats"`
	Level     health.NotificationLevel `json:"level"`
	LastDeath *pet.DeadPet             `json:"last_death,omitempty"`
}

// Session is the single running aquarium
type Session struct {
	clock    clock.Source
	store    store.Store
	logger   *slog.Logger
	writer   *store.Writer
	poller   *usage.Poller
	water    *water.Manager
	fish     *fish.Manager
	tracker  *usage.Tracker
	recorder *telemetry.Recorder

	statusListeners *observe.Listeners[Status]
	alertListeners  *observe.Listeners[Alert]

	// tick serializes state transitions; mu guards the fields below.
	// Managers are never called with mu held unless they only read.
	tick sync.Mutex

	mu            sync.Mutex
	snap          *store.Snapshot
	names         *pet.Names
	alerts        *alertTracker
	result        health.Result
	lastReset     time.Time
	changingWater bool
	running       bool
}

// New creates a session with an empty tank. Call Load to restore the saved game.
func New(opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = clock.NewReal()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	// A zero reset turbidity is a valid setting, so only an unset block
	// falls back as a whole
	if opts.Water == (water.Config{}) {
		opts.Water = water.DefaultConfig()
	}
	logger := opts.Logger.With("component", "aquarium")

	s := &Session{
		clock:           opts.Clock,
		store:           opts.Store,
		logger:          logger,
		writer:          store.NewWriter(opts.Store, opts.Clock, opts.FlushInterval, opts.Logger),
		poller:          usage.NewPoller(opts.Source, opts.Clock, opts.Poller, opts.Logger),
		water:           water.NewManager(opts.Clock, opts.Water, opts.Logger),
		fish:            fish.NewManager(opts.Clock, opts.Fish, opts.Logger),
		tracker:         usage.NewTracker(),
		recorder:        opts.Recorder,
		statusListeners: observe.New[Status](logger),
		alertListeners:  observe.New[Alert](logger),
		snap:            store.NewSnapshot(),
		names:           pet.NewNames(nil),
		alerts:          newAlertTracker(),
	}
	s.lastReset = s.water.State().LastResetTime
	s.poller.Subscribe(func(samples []usage.AppUsageData) {
		s.HandleUsage(samples)
	})
	return s
}

// Load restores the saved game. A missing or unreadable save starts a fresh
// tank; only a save written by a newer version is an error, so it is never
// overwritten.
func (s *Session) Load(ctx context.Context) error {
	s.tick.Lock()
	defer s.tick.Unlock()

	snap, err := s.store.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrUnsupportedVersion):
		return fmt.Errorf("load aquarium: %w", err)
	case errors.Is(err, store.ErrNotFound):
		s.logger.Info("no saved aquarium, starting fresh")
		snap = store.NewSnapshot()
	default:
		s.logger.Error("failed to load aquarium, starting fresh", "error", err)
		snap = store.NewSnapshot()
	}

	if snap.Water != nil {
		s.water.Restore(*snap.Water)
	}
	s.tracker.Reset()
	s.tracker.Seed(snap.UsageCache)

	s.mu.Lock()
	s.snap = snap
	s.names = pet.NewNames(snap.UsedNames)
	s.alerts = newAlertTracker()
	s.lastReset = s.water.State().LastResetTime
	s.result = health.Result{}
	if snap.Pet != nil {
		if !snap.Pet.Alive() {
			// Saved between death and burial
			s.buryLocked(snap.Pet.Memorialize(snap.Pet.LastUpdated, pet.DeathNeglect, pet.NeglectCause))
		} else {
			s.result = resultFor(snap.Pet.Health)
		}
	}
	p := clonePet(s.snap.Pet)
	s.mu.Unlock()

	s.fish.UpdateBehavior(s.water.CurrentWaterQuality(), p)
	s.logger.Info("aquarium loaded", "pet", p != nil, "memorial", len(snap.DeadPets))
	return nil
}

// Start runs the poller, water and fish timers and the debounced writer
func (s *Session) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.water.StartMonitoring(s.onWater)
	s.fish.StartBehaviorMonitoring(nil)
	s.writer.Start()
	s.poller.Start()
	s.logger.Info("aquarium started")
}

// Stop cancels every timer and flushes queued writes
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	running := s.running
	s.running = false
	s.mu.Unlock()

	if running {
		s.poller.Stop()
		s.water.StopMonitoring()
		s.fish.StopBehaviorMonitoring()
		s.logger.Info("aquarium stopped")
	}
	return s.writer.Close(ctx)
}

// Close stops the session and writes the whole game
func (s *Session) Close(ctx context.Context) error {
	if err := s.Stop(ctx); err != nil {
		s.logger.Warn("flush before close failed", "error", err)
	}
	return s.SaveAll(ctx)
}

// SaveAll writes every section and waits for the write
func (s *Session) SaveAll(ctx context.Context) error {
	return s.writer.SaveAll(ctx, s.Snapshot())
}

// Subscribe registers fn for the status after every tick or action
func (s *Session) Subscribe(fn func(Status)) func() {
	return s.statusListeners.Add(fn)
}

// SubscribeAlerts registers fn for newly raised alerts. Nothing is delivered
// while notifications are disabled.
func (s *Session) SubscribeAlerts(fn func(Alert)) func() {
	return s.alertListeners.Add(fn)
}

// Refresh polls the usage source once and returns the resulting status
func (s *Session) Refresh(ctx context.Context) Status {
	s.poller.Poll(ctx)
	return s.Status()
}

// HandleUsage runs one simulation tick for a usage batch. An empty batch
// still advances time.
func (s *Session) HandleUsage(samples []usage.AppUsageData) Status {
	s.tick.Lock()
	defer s.tick.Unlock()

	now := s.clock.Now()
	deltas := s.tracker.Observe(samples)

	s.mu.Lock()
	limits := usage.DailyLimits(s.snap.Restrictions)
	s.snap.UsageCache = mergeUsage(s.snap.UsageCache, samples, now)
	restricted := usage.FilterRestricted(samples, s.snap.Restrictions)
	active := activeSamples(restricted, deltas)
	died := s.advancePetLocked(active, limits, now)
	p := clonePet(s.snap.Pet)
	s.mu.Unlock()

	info := s.water.Update(restricted)
	fishState := s.fish.UpdateBehavior(info, p)

	s.mu.Lock()
	s.observeWaterLocked(info)
	st, raised := s.finishTickLocked(info, fishState, died, now)
	snap := s.snapshotLocked()
	notify := s.snap.Settings.NotificationsEnabled
	s.mu.Unlock()

	if died != nil {
		s.logger.Info("pet died", "pet_id", died.ID, "name", died.Name,
			"reason", died.DeathReason, "cause", died.CauseOfDeath, "lifetime", died.TotalLifetime)
	}

	s.writer.Queue(snap)
	s.record(st, activeMinutes(active, deltas))
	s.publish(st, raised, notify)
	return st
}

// CreatePet adopts a new fish. The name is trimmed and must never have been
// used before; an empty personality picks one at random.
func (s *Session) CreatePet(name string, personality pet.Personality) (*pet.Pet, error) {
	if personality != "" && !personality.Valid() {
		return nil, &pet.ValidationError{Field: "personality", Value: string(personality), Reason: "unknown personality", Err: pet.ErrInvalidPersonality}
	}

	s.tick.Lock()
	defer s.tick.Unlock()

	now := s.clock.Now()

	s.mu.Lock()
	if s.snap.Pet.Alive() {
		s.mu.Unlock()
		return nil, ErrPetAlive
	}
	valid, err := s.names.Reserve(name)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	p := pet.New(valid, personality, now)
	s.snap.Pet = p
	s.snap.UsedNames = s.names.List()
	s.snap.Stats.PetsCreated++
	s.result = resultFor(p.Health)
	created := clonePet(p)
	s.mu.Unlock()

	s.fish.ResetBehaviorState()
	info := s.water.CurrentWaterQuality()
	fishState := s.fish.UpdateBehavior(info, created)

	s.mu.Lock()
	st, raised := s.finishTickLocked(info, fishState, nil, now)
	snap := s.snapshotLocked()
	notify := s.snap.Settings.NotificationsEnabled
	s.mu.Unlock()

	s.logger.Info("pet created", "pet_id", created.ID, "name", created.Name, "personality", created.Personality)
	s.writer.Queue(snap, store.SectionPet, store.SectionUsedNames, store.SectionStats)
	s.publish(st, raised, notify)
	return created, nil
}

// WaterChange resets the turbidity now
func (s *Session) WaterChange() water.Info {
	s.tick.Lock()
	defer s.tick.Unlock()

	now := s.clock.Now()

	s.mu.Lock()
	s.changingWater = true
	s.mu.Unlock()

	info := s.water.PerformManualWaterChange()
	fishState := s.fish.UpdateBehavior(info, s.livePet())

	s.mu.Lock()
	s.observeWaterLocked(info)
	s.changingWater = false
	s.snap.Stats.ManualWaterChanges++
	st, raised := s.finishTickLocked(info, fishState, nil, now)
	snap := s.snapshotLocked()
	notify := s.snap.Settings.NotificationsEnabled
	s.mu.Unlock()

	s.writer.Queue(snap, store.SectionWater, store.SectionStats)
	s.publish(st, raised, notify)
	return info
}

// SetRestriction adds or replaces the restriction for r.AppID. Limits are
// clamped to the offered ranges.
func (s *Session) SetRestriction(r usage.AppRestriction) (usage.AppRestriction, error) {
	if r.AppID == "" {
		return usage.AppRestriction{}, ErrInvalidApp
	}
	r = r.ClampLimits()

	s.mu.Lock()
	i := slices.IndexFunc(s.snap.Restrictions, func(x usage.AppRestriction) bool { return x.AppID == r.AppID })
	if i >= 0 {
		if r.AppName == "" {
			r.AppName = s.snap.Restrictions[i].AppName
		}
		s.snap.Restrictions[i] = r
	} else {
		s.snap.Restrictions = append(s.snap.Restrictions, r)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("restriction changed", "app_id", r.AppID, "daily_limit", r.DailyLimit,
		"weekly_limit", r.WeeklyLimit, "active", r.IsActive)
	s.writer.Queue(snap, store.SectionRestrictions)
	return r, nil
}

// RemoveRestriction forgets the restriction for appID
func (s *Session) RemoveRestriction(appID string) error {
	s.mu.Lock()
	i := slices.IndexFunc(s.snap.Restrictions, func(x usage.AppRestriction) bool { return x.AppID == appID })
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", appID, ErrUnknownApp)
	}
	s.snap.Restrictions = slices.Delete(s.snap.Restrictions, i, i+1)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("restriction removed", "app_id", appID)
	s.writer.Queue(snap, store.SectionRestrictions)
	return nil
}

// Restrictions returns the configured restrictions sorted by app id
func (s *Session) Restrictions() []usage.AppRestriction {
	s.mu.Lock()
	out := slices.Clone(s.snap.Restrictions)
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].AppID < out[j].AppID })
	return out
}

// InstalledApps lists the apps the usage source knows about
func (s *Session) InstalledApps(ctx context.Context) ([]usage.InstalledApp, error) {
	return s.poller.InstalledApps(ctx)
}

// Pet returns a copy of the live pet
func (s *Session) Pet() (*pet.Pet, error) {
	p := s.livePet()
	if p == nil {
		return nil, ErrNoPet
	}
	return p, nil
}

// DeadPets returns the memorial, oldest first
func (s *Session) DeadPets() []pet.DeadPet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.snap.DeadPets)
}

// SetNotifications turns alert delivery on or off
func (s *Session) SetNotifications(enabled bool) {
	s.mu.Lock()
	s.snap.Settings.NotificationsEnabled = enabled
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.writer.Queue(snap, store.SectionSettings)
}

// Status returns the current state without advancing the simulation
func (s *Session) Status() Status {
	info := s.water.CurrentWaterQuality()
	fishState := s.fish.State()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked(s.clock.Now(), info, fishState, s.appsLocked())
}

// Snapshot returns a copy of the game state for storage
func (s *Session) Snapshot() *store.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// onWater follows the water monitor: fish behavior tracks every change
func (s *Session) onWater(info water.Info) {
	s.fish.UpdateBehavior(info, s.livePet())

	s.mu.Lock()
	s.observeWaterLocked(info)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.writer.Queue(snap, store.SectionWater, store.SectionStats)
}

func (s *Session) livePet() *pet.Pet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePet(s.snap.Pet)
}

// advancePetLocked applies one tick of health to the live pet and buries it
// if the tick killed it
func (s *Session) advancePetLocked(active []usage.AppUsageData, limits map[string]time.Duration, now time.Time) *pet.DeadPet {
	p := s.snap.Pet
	if p == nil {
		s.result = health.Result{}
		return nil
	}

	elapsed := math.Max(now.Sub(p.LastUpdated).Minutes(), 0)
	offline := 0.0
	if len(active) == 0 {
		offline = elapsed
	}

	res := health.Update(health.Input{
		CurrentHealth:  p.Health,
		Samples:        active,
		Limits:         limits,
		ElapsedMinutes: elapsed,
		OfflineMinutes: offline,
	})
	s.result = res
	p.ApplyHealth(res.Health, now)
	if p.Alive() {
		return nil
	}

	reason, cause := pet.DetermineDeath(health.AnalyzeUsage(active, limits), res.UsageDamage)
	dead := p.Memorialize(now, reason, cause)
	s.buryLocked(dead)
	return &dead
}

func (s *Session) buryLocked(dead pet.DeadPet) {
	s.snap.DeadPets = append(s.snap.DeadPets, dead)
	s.snap.Pet = nil
	s.snap.Stats.Deaths++
	if dead.TotalLifetime > s.snap.Stats.LongestLifetime {
		s.snap.Stats.LongestLifetime = dead.TotalLifetime
	}
}

// observeWaterLocked counts a weekly reset when the reset time moved without
// a manual change in progress
func (s *Session) observeWaterLocked(info water.Info) {
	if !info.LastResetTime.After(s.lastReset) {
		return
	}
	if !s.changingWater {
		s.snap.Stats.WeeklyResets++
	}
	s.lastReset = info.LastResetTime
}

func (s *Session) finishTickLocked(info water.Info, fishState fish.State, died *pet.DeadPet, now time.Time) (Status, []Alert) {
	apps := s.appsLocked()
	raised := s.alerts.evaluate(tickFacts{
		pet:   s.snap.Pet,
		died:  died,
		apps:  apps,
		water: info,
	}, now)
	return s.statusLocked(now, info, fishState, apps), raised
}

// appsLocked measures today's usage of every active restriction
func (s *Session) appsLocked() []health.AppUsage {
	limits := usage.DailyLimits(s.snap.Restrictions)
	return health.AnalyzeUsage(usage.FilterRestricted(s.snap.UsageCache, s.snap.Restrictions), limits)
}

func (s *Session) statusLocked(now time.Time, info water.Info, fishState fish.State, apps []health.AppUsage) Status {
	st := Status{
		Time:   now,
		Pet:    clonePet(s.snap.Pet),
		Health: s.result,
		Water:  info,
		Fish:   fishState,
		Apps:   apps,
		Alerts: s.alerts.current(),
		Stats:  s.snap.Stats,
		Level:  health.NotifyNone,
	}
	if len(st.Alerts) > 0 {
		st.Level = st.Alerts[0].Level
	}
	if n := len(s.snap.DeadPets); n > 0 {
		last := s.snap.DeadPets[n-1]
		st.LastDeath = &last
	}
	return st
}

func (s *Session) snapshotLocked() *store.Snapshot {
	ws := s.water.State()
	return &store.Snapshot{
		SchemaVersion: store.CurrentSchemaVersion,
		LastUpdated:   s.clock.Now(),
		Pet:           clonePet(s.snap.Pet),
		DeadPets:      slices.Clone(s.snap.DeadPets),
		UsedNames:     s.names.List(),
		Restrictions:  slices.Clone(s.snap.Restrictions),
		UsageCache:    slices.Clone(s.snap.UsageCache),
		Stats:         s.snap.Stats,
		Settings:      s.snap.Settings,
		Water:         &ws,
	}
}

func (s *Session) publish(st Status, raised []Alert, notify bool) {
	for _, a := range raised {
		s.logger.Info("alert raised", "kind", a.Kind, "subject", a.Subject, "level", a.Level)
	}
	s.statusListeners.Emit(st)
	if !notify {
		return
	}
	for _, a := range raised {
		s.alertListeners.Emit(a)
	}
}

func (s *Session) record(st Status, usageMinutes float64) {
	rec := telemetry.TickRecord{
		Time:            st.Time.Format(time.RFC3339),
		Health:          st.Health.Health,
		Status:          string(st.Health.Status),
		UsageMinutes:    usageMinutes,
		UsageDamage:     st.Health.UsageDamage,
		NetDamage:       st.Health.NetDamage,
		Turbidity:       st.Water.Turbidity,
		WaterLevel:      string(st.Water.Level),
		FishSpeed:       st.Fish.Speed,
		MovementPattern: string(st.Fish.MovementPattern),
	}
	if st.Pet != nil {
		rec.PetID = st.Pet.ID
	} else if st.LastDeath != nil && st.LastDeath.DiedAt.Equal(st.Time) {
		rec.PetID = st.LastDeath.ID
		rec.Status = string(health.StatusDead)
	}
	if err := s.recorder.Record(rec); err != nil {
		s.logger.Warn("failed to record tick", "error", err)
	}
}

// resultFor is the health result of a pet that has not ticked yet
func resultFor(h float64) health.Result {
	return health.Update(health.Input{CurrentHealth: h})
}

// activeSamples keeps the apps used since the previous tick
func activeSamples(samples []usage.AppUsageData, deltas map[string]time.Duration) []usage.AppUsageData {
	var out []usage.AppUsageData
	for _, sample := range samples {
		if deltas[sample.AppID] > 0 {
			out = append(out, sample)
		}
	}
	return out
}

func activeMinutes(active []usage.AppUsageData, deltas map[string]time.Duration) float64 {
	var total time.Duration
	for _, a := range active {
		total += deltas[a.AppID]
	}
	return total.Minutes()
}

// mergeUsage overlays a batch onto the cached samples. Entries last used
// before today are dropped so yesterday's totals do not count against today.
func mergeUsage(cache, samples []usage.AppUsageData, now time.Time) []usage.AppUsageData {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	byApp := make(map[string]usage.AppUsageData, len(cache)+len(samples))
	for _, c := range cache {
		if !c.LastUsed.IsZero() && c.LastUsed.Before(dayStart) {
			continue
		}
		byApp[c.AppID] = c
	}
	for _, sample := range samples {
		byApp[sample.AppID] = sample
	}

	if len(byApp) == 0 {
		return nil
	}
	out := make([]usage.AppUsageData, 0, len(byApp))
	for _, v := range byApp {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppID < out[j].AppID })
	return out
}

func clonePet(p *pet.Pet) *pet.Pet {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Logs = slices.Clone(p.Logs)
	return &cp
}
