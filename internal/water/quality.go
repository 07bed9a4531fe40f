// Package water tracks tank turbidity from app usage over time.
package water

import (
	"math"
	"time"
)

// Level is the classified water quality
type Level string

const (
	LevelClean     Level = "clean"
	LevelModerate  Level = "moderate"
	LevelDirty     Level = "dirty"
	LevelVeryDirty Level = "very_dirty"
)

// Turbidity thresholds and rates
const (
	MinTurbidity = 0.0
	MaxTurbidity = 100.0

	CleanThreshold    = 20.0
	ModerateThreshold = 50.0
	DirtyThreshold    = 80.0

	DefaultResetTurbidity  = 100.0
	DefaultIncreaseRate    = 2.0 // % per minute of usage
	DefaultDecreaseRate    = 0.5 // % per idle minute
	DefaultMonitorInterval = time.Minute
)

// Info is the water snapshot published to subscribers
type Info struct {
	Turbidity       float64       `json:"turbidity"`
	Level           Level         `json:"level"`
	IsHarmful       bool          `json:"is_harmful"`
	TimeUntilDanger time.Duration `json:"time_until_danger"`
	LastResetTime   time.Time     `json:"last_reset_time"`
	NextResetTime   time.Time     `json:"next_reset_time"`
}

// ClassifyTurbidity maps turbidity to a level
func ClassifyTurbidity(t float64) Level {
	switch {
	case t < CleanThreshold:
		return LevelClean
	case t < ModerateThreshold:
		return LevelModerate
	case t < DirtyThreshold:
		return LevelDirty
	default:
		return LevelVeryDirty
	}
}

// Severity orders levels from clean (0) to very dirty (3)
func (l Level) Severity() int {
	switch l {
	case LevelModerate:
		return 1
	case LevelDirty:
		return 2
	case LevelVeryDirty:
		return 3
	default:
		return 0
	}
}

// Harmful reports whether the level is moderate or worse
func (l Level) Harmful() bool {
	return l.Severity() >= LevelModerate.Severity()
}

// TimeUntilDanger estimates how long until turbidity reaches the dirty
// threshold at increaseRate percent per minute
func TimeUntilDanger(turbidity, increaseRate float64) time.Duration {
	if turbidity >= DirtyThreshold || increaseRate <= 0 {
		return 0
	}
	minutes := (DirtyThreshold - turbidity) / increaseRate
	return time.Duration(minutes * float64(time.Minute))
}

// LastResetBoundary returns the most recent local Sunday 00:00 at or before t
func LastResetBoundary(t time.Time) time.Time {
	t = t.Local()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return midnight.AddDate(0, 0, -int(midnight.Weekday()))
}

// NextResetTime returns the first Sunday 00:00 strictly after t
func NextResetTime(t time.Time) time.Time {
	return LastResetBoundary(t).AddDate(0, 0, 7)
}

func clampTurbidity(v float64) float64 {
	if math.IsNaN(v) {
		return MinTurbidity
	}
	return math.Max(MinTurbidity, math.Min(v, MaxTurbidity))
}
