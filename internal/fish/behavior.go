// Package fish derives the animated state of the fish from water quality,
// pet health and personality.
package fish

import (
	"math"
	"math/rand"
	"time"

	"calmaquarium/internal/pet"
	"calmaquarium/internal/water"
)

// Testable random function
var RandFloat64 = rand.Float64

// MovementPattern selects the motion model used by position updates
type MovementPattern string

const (
	PatternNormal     MovementPattern = "normal"
	PatternDistressed MovementPattern = "distressed"
	PatternDying      MovementPattern = "dying"
	PatternDead       MovementPattern = "dead"
)

// Motion constants
const (
	BaseSpeed = 1.0

	MinX = 0.1
	MaxX = 0.9
	MinY = 0.2
	MaxY = 0.8

	CenterX = 0.5
	CenterY = 0.5

	DistressThreshold = 0.2
	DeadOpacity       = 0.3
	DyingSpeedFactor  = 0.3

	// Health overrides
	DyingHealth   = 20.0
	SlowingHealth = 50.0

	OrbitRadiusX = 0.3
	OrbitRadiusY = 0.2
	AngularSpeed = 0.1 // radians per second at speed 1

	FloatStep  = 0.01  // dead fish rise per tick
	SinkStep   = 0.005 // dying fish sink per tick
	DriftScale = 0.01
	JitterStep = 0.05 // at distress 1

	DefaultPositionInterval = 2 * time.Second
	DefaultPhaseInterval    = 10 * time.Second
)

// Position is tank-relative, 0..1 on both axes with y growing downward
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Velocity is the last position change per tick
type Velocity struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// State is the animatable fish snapshot
type State struct {
	Position        Position        `json:"position"`
	Velocity        Velocity        `json:"velocity"`
	Speed           float64         `json:"speed"`
	Opacity         float64         `json:"opacity"`
	IsDistressed    bool            `json:"is_distressed"`
	DistressLevel   float64         `json:"distress_level"`
	MovementPattern MovementPattern `json:"movement_pattern"`
	AnimationPhase  float64         `json:"animation_phase"`
	IsDying         bool            `json:"is_dying"`
	IsDead          bool            `json:"is_dead"`
}

// InitialState is a healthy fish in the middle of the tank
func InitialState() State {
	return State{
		Position:        Position{X: CenterX, Y: CenterY},
		Speed:           BaseSpeed,
		Opacity:         1.0,
		MovementPattern: PatternNormal,
	}
}

type waterEffect struct {
	speed    float64
	distress float64
	opacity  float64
	pattern  MovementPattern
}

var waterEffects = map[water.Level]waterEffect{
	water.LevelClean:     {speed: 1.2, distress: 0, opacity: 1.0, pattern: PatternNormal},
	water.LevelModerate:  {speed: 1.0, distress: 0.3, opacity: 0.9, pattern: PatternNormal},
	water.LevelDirty:     {speed: 0.6, distress: 0.7, opacity: 0.7, pattern: PatternDistressed},
	water.LevelVeryDirty: {speed: 0.3, distress: 1.0, opacity: 0.4, pattern: PatternDying},
}

// Only speed is affected by personality for now
var personalitySpeed = map[pet.Personality]float64{
	pet.PersonalityActive:  1.3,
	pet.PersonalityCalm:    0.8,
	pet.PersonalityPlayful: 1.1,
	pet.PersonalityShy:     0.9,
	pet.PersonalityCurious: 1.0,
}

// PersonalityMultiplier returns the speed factor for a personality
func PersonalityMultiplier(p pet.Personality) float64 {
	if m, ok := personalitySpeed[p]; ok {
		return m
	}
	return 1.0
}

// Derive computes the behavior fields for the given water and pet, keeping
// position and animation phase from prev. A nil pet is dead.
func Derive(prev State, info water.Info, p *pet.Pet) State {
	s := prev
	if p == nil {
		return deadState(s)
	}

	effect, ok := waterEffects[info.Level]
	if !ok {
		effect = waterEffects[water.LevelModerate]
	}

	s.Speed = BaseSpeed * effect.speed
	s.DistressLevel = effect.distress
	s.IsDistressed = effect.distress > DistressThreshold
	s.Opacity = effect.opacity
	s.MovementPattern = effect.pattern
	s.IsDying = effect.pattern == PatternDying
	s.IsDead = false

	switch h := p.Health; {
	case h <= 0:
		return deadState(s)
	case h <= DyingHealth:
		s.MovementPattern = PatternDying
		s.IsDying = true
		s.Speed *= DyingSpeedFactor
	case h <= SlowingHealth:
		s.Speed *= h / SlowingHealth
	}

	s.Speed *= PersonalityMultiplier(p.Personality)
	return s
}

func deadState(s State) State {
	s.IsDead = true
	s.IsDying = false
	s.MovementPattern = PatternDead
	s.Speed = 0
	s.Opacity = DeadOpacity
	s.Velocity = Velocity{}
	return s
}

// Step moves the fish one tick. elapsed is the time since monitoring
// started and drives the circular swim.
func Step(s State, elapsed time.Duration) State {
	old := s.Position
	pos := old

	switch {
	case s.IsDead:
		pos.Y -= FloatStep
		pos.X += drift()
	case s.IsDying:
		pos.Y += SinkStep
		pos.X += drift()
	case s.IsDistressed:
		pos.X += (RandFloat64() - 0.5) * JitterStep * s.DistressLevel
		pos.Y += (RandFloat64() - 0.5) * JitterStep * s.DistressLevel
	default:
		angle := s.AnimationPhase + elapsed.Seconds()*AngularSpeed*s.Speed
		pos.X = CenterX + OrbitRadiusX*math.Cos(angle)
		pos.Y = CenterY + OrbitRadiusY*math.Sin(angle)
	}

	s.Position = clampPosition(pos)
	s.Velocity = Velocity{X: s.Position.X - old.X, Y: s.Position.Y - old.Y}
	return s
}

func drift() float64 {
	return (RandFloat64() - 0.5) * DriftScale
}

func clampPosition(p Position) Position {
	return Position{
		X: math.Max(MinX, math.Min(p.X, MaxX)),
		Y: math.Max(MinY, math.Min(p.Y, MaxY)),
	}
}

// NewPhase returns a random animation phase in [0, 2π)
func NewPhase() float64 {
	return RandFloat64() * 2 * math.Pi
}
