// Package health converts restricted-app usage and elapsed time into pet
// health. Every function is pure; callers own the state.
package health

import "time"

// Simulation constants
const (
	MaxHealth = 100.0
	MinHealth = 0.0

	BaseDecayRate      = 5.0 // Health lost per tick at usage/limit ratio 1
	MaxDecayMultiplier = 2.0 // Overuse never decays faster than 2x
	MaxHealthDecay     = BaseDecayRate * MaxDecayMultiplier
	NaturalDecayFactor = 0.1 // Passive decay runs at 10% of the usage rate
	RestoreRate        = 1.0 // Health restored per minute offline

	DefaultTimeLimit = 30 * time.Minute

	// Status thresholds, inclusive on the severe side
	CriticalThreshold = 20.0
	AtRiskThreshold   = 50.0

	// Usage alert ratios
	ApproachingRatio = 0.8
	ExceededRatio    = 1.0

	// Behavior parameter ranges
	MinMovementSpeed   = 0.3
	MaxMovementSpeed   = 1.0
	MinActivityLevel   = 0.2
	MaxActivityLevel   = 1.0
	MinResponseToTouch = 0.1
	MaxResponseToTouch = 1.0
)

// Status is the pet condition derived from health
type Status string

const (
	StatusAlive    Status = "alive"
	StatusAtRisk   Status = "at_risk"
	StatusCritical Status = "critical"
	StatusDead     Status = "dead"
)

// NotificationLevel is how loudly the user should be warned
type NotificationLevel string

const (
	NotifyNone     NotificationLevel = "none"
	NotifyWarning  NotificationLevel = "warning"
	NotifyCritical NotificationLevel = "critical"
	NotifyDeath    NotificationLevel = "death"
)
