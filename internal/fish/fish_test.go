package fish

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calmaquarium/internal/clock"
	"calmaquarium/internal/pet"
	"calmaquarium/internal/water"
)

var (
	discard = slog.New(slog.NewTextHandler(io.Discard, nil))
	start   = time.Date(2024, 1, 10, 9, 0, 0, 0, time.Local)
)

func info(level water.Level) water.Info {
	return water.Info{Level: level}
}

func fishWith(health float64, personality pet.Personality) *pet.Pet {
	return &pet.Pet{Name: "Fin", Health: health, Personality: personality}
}

func mockRand(t *testing.T, v float64) {
	original := RandFloat64
	RandFloat64 = func() float64 { return v }
	t.Cleanup(func() { RandFloat64 = original })
}

func TestDerive_DeadRegardlessOfPersonality(t *testing.T) {
	for _, p := range pet.Personalities {
		for _, level := range []water.Level{water.LevelClean, water.LevelVeryDirty} {
			s := Derive(InitialState(), info(level), fishWith(0, p))
			assert.True(t, s.IsDead, "%s/%s", p, level)
			assert.Equal(t, PatternDead, s.MovementPattern)
			assert.Equal(t, 0.0, s.Speed)
			assert.Equal(t, DeadOpacity, s.Opacity)
		}
	}
}

func TestDerive_NilPetIsDead(t *testing.T) {
	s := Derive(InitialState(), info(water.LevelClean), nil)

	assert.True(t, s.IsDead)
	assert.Equal(t, PatternDead, s.MovementPattern)
	assert.Equal(t, 0.0, s.Speed)
}

func TestDerive_CleanActiveHealthy(t *testing.T) {
	s := Derive(InitialState(), info(water.LevelClean), fishWith(100, pet.PersonalityActive))

	assert.InDelta(t, BaseSpeed*1.2*1.3, s.Speed, 1e-9)
	assert.False(t, s.IsDistressed)
	assert.Equal(t, 1.0, s.Opacity)
	assert.Equal(t, PatternNormal, s.MovementPattern)
}

func TestDerive_WaterLevels(t *testing.T) {
	tests := []struct {
		level      water.Level
		speed      float64
		distress   float64
		distressed bool
		opacity    float64
		pattern    MovementPattern
		dying      bool
	}{
		{water.LevelClean, 1.2, 0, false, 1.0, PatternNormal, false},
		{water.LevelModerate, 1.0, 0.3, true, 0.9, PatternNormal, false},
		{water.LevelDirty, 0.6, 0.7, true, 0.7, PatternDistressed, false},
		{water.LevelVeryDirty, 0.3, 1.0, true, 0.4, PatternDying, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			s := Derive(InitialState(), info(tt.level), fishWith(100, pet.PersonalityCurious))
			assert.InDelta(t, tt.speed, s.Speed, 1e-9)
			assert.Equal(t, tt.distress, s.DistressLevel)
			assert.Equal(t, tt.distressed, s.IsDistressed)
			assert.Equal(t, tt.opacity, s.Opacity)
			assert.Equal(t, tt.pattern, s.MovementPattern)
			assert.Equal(t, tt.dying, s.IsDying)
		})
	}
}

func TestDerive_HealthFalloff(t *testing.T) {
	dying := Derive(InitialState(), info(water.LevelModerate), fishWith(20, pet.PersonalityCurious))
	assert.True(t, dying.IsDying)
	assert.Equal(t, PatternDying, dying.MovementPattern)
	assert.InDelta(t, 0.3, dying.Speed, 1e-9)

	slowed := Derive(InitialState(), info(water.LevelClean), fishWith(25, pet.PersonalityCalm))
	assert.InDelta(t, 1.2*0.5*0.8, slowed.Speed, 1e-9)
	assert.False(t, slowed.IsDying)
}

func TestDerive_RevivesAfterReset(t *testing.T) {
	dead := Derive(InitialState(), info(water.LevelClean), nil)
	alive := Derive(dead, info(water.LevelClean), fishWith(100, pet.PersonalityShy))

	assert.False(t, alive.IsDead)
	assert.InDelta(t, 1.2*0.9, alive.Speed, 1e-9)
}

func TestStep_PriorityAndBounds(t *testing.T) {
	mockRand(t, 0.5) // no drift or jitter

	dead := deadState(InitialState())
	dead = Step(dead, 0)
	assert.InDelta(t, CenterY-FloatStep, dead.Position.Y, 1e-9, "dead floats up")
	assert.InDelta(t, -FloatStep, dead.Velocity.Y, 1e-9)

	dying := InitialState()
	dying.IsDying = true
	dying.IsDistressed = true
	dying = Step(dying, 0)
	assert.InDelta(t, CenterY+SinkStep, dying.Position.Y, 1e-9, "dying sinks before jitter")

	for i := 0; i < 200; i++ {
		dead = Step(dead, 0)
		dying = Step(dying, 0)
	}
	assert.Equal(t, MinY, dead.Position.Y)
	assert.Equal(t, MaxY, dying.Position.Y)
}

func TestStep_JitterScaledByDistress(t *testing.T) {
	mockRand(t, 1.0)

	s := InitialState()
	s.IsDistressed = true
	s.DistressLevel = 0.7
	s = Step(s, 0)

	assert.InDelta(t, CenterX+0.5*JitterStep*0.7, s.Position.X, 1e-9)
	assert.InDelta(t, CenterY+0.5*JitterStep*0.7, s.Position.Y, 1e-9)
}

func TestStep_CircularSwim(t *testing.T) {
	s := InitialState()
	s.AnimationPhase = math.Pi / 2

	s = Step(s, 0)
	assert.InDelta(t, CenterX, s.Position.X, 1e-9)
	assert.InDelta(t, CenterY+OrbitRadiusY, s.Position.Y, 1e-9)

	for sec := 0; sec < 120; sec += 2 {
		s = Step(s, time.Duration(sec)*time.Second)
		require.GreaterOrEqual(t, s.Position.X, MinX)
		require.LessOrEqual(t, s.Position.X, MaxX)
		require.GreaterOrEqual(t, s.Position.Y, MinY)
		require.LessOrEqual(t, s.Position.Y, MaxY)
	}
}

func TestNewPhase_InRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		p := NewPhase()
		assert.GreaterOrEqual(t, p, 0.0)
		assert.Less(t, p, 2*math.Pi)
	}
}

func TestManager_MonitoringTimers(t *testing.T) {
	clk := clock.NewManual(start)
	m := NewManager(clk, Config{}, discard)

	var states []State
	m.StartBehaviorMonitoring(func(s State) { states = append(states, s) })
	require.Len(t, states, 1, "initial state sent on start")
	assert.Equal(t, 2, clk.Pending())

	clk.Advance(10 * time.Second)
	assert.Len(t, states, 6, "five position ticks")

	m.StartBehaviorMonitoring(nil)
	assert.Equal(t, 2, clk.Pending(), "restart replaces timers")

	m.StopBehaviorMonitoring()
	m.StopBehaviorMonitoring()
	assert.Equal(t, 0, clk.Pending())

	clk.Advance(10 * time.Second)
	assert.Len(t, states, 6)
}

func TestManager_RandomizePhase(t *testing.T) {
	mockRand(t, 0.25)
	m := NewManager(clock.NewManual(start), Config{}, discard)

	m.RandomizePhase()
	assert.InDelta(t, math.Pi/2, m.State().AnimationPhase, 1e-9)
}

func TestManager_UpdateBehaviorAndReset(t *testing.T) {
	m := NewManager(clock.NewManual(start), Config{}, discard)

	var got []State
	m.Subscribe(func(s State) { got = append(got, s) })

	dead := m.UpdateBehavior(info(water.LevelDirty), nil)
	assert.True(t, dead.IsDead)

	reset := m.ResetBehaviorState()
	assert.Equal(t, InitialState(), reset)
	assert.Equal(t, InitialState(), m.State())
	assert.Len(t, got, 2)
}
