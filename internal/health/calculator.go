package health

import (
	"math"
	"time"

	"calmaquarium/internal/usage"
)

// DecayFromUsage returns the health lost for usage against limit.
// A limit of zero or less means no allowance at all and yields the capped decay.
func DecayFromUsage(usageTime, limit time.Duration) float64 {
	if usageTime <= 0 {
		return 0
	}
	if limit <= 0 {
		return MaxHealthDecay
	}
	return math.Min(Ratio(usageTime, limit), MaxDecayMultiplier) * BaseDecayRate
}

// NaturalDecay is passive health loss over elapsed minutes
func NaturalDecay(elapsedMinutes float64) float64 {
	if elapsedMinutes <= 0 {
		return 0
	}
	return elapsedMinutes * BaseDecayRate * NaturalDecayFactor
}

// Restoration is health regained while restricted apps stay closed
func Restoration(offlineMinutes float64) float64 {
	if offlineMinutes <= 0 {
		return 0
	}
	return offlineMinutes * RestoreRate
}

// NewHealth applies delta to current and clamps to [0,100]
func NewHealth(current, delta float64) float64 {
	return clamp(current+delta, MinHealth, MaxHealth)
}

// StatusOf maps health to a status. A value exactly on a threshold takes the
// more severe status.
func StatusOf(health float64) Status {
	switch {
	case health <= MinHealth:
		return StatusDead
	case health <= CriticalThreshold:
		return StatusCritical
	case health <= AtRiskThreshold:
		return StatusAtRisk
	default:
		return StatusAlive
	}
}

// RiskPercentage is the share of health already lost
func RiskPercentage(health float64) float64 {
	return MaxHealth - clamp(health, MinHealth, MaxHealth)
}

// WaterTurbidityFromHealth is a display shortcut only. The water quality
// manager owns the real turbidity.
func WaterTurbidityFromHealth(health float64) float64 {
	return MaxHealth - clamp(health, MinHealth, MaxHealth)
}

// SurvivalTime estimates minutes left at decayRate health per minute.
// A non-positive rate never kills the pet and returns +Inf.
func SurvivalTime(currentHealth, decayRate float64) float64 {
	if decayRate <= 0 {
		return math.Inf(1)
	}
	return math.Max(currentHealth, 0) / decayRate
}

// Behavior holds animation parameters derived from health
type Behavior struct {
	MovementSpeed   float64 `json:"movement_speed"`
	ActivityLevel   float64 `json:"activity_level"`
	ResponseToTouch float64 `json:"response_to_touch"`
}

// BehaviorPattern derives animation parameters, each increasing with health
func BehaviorPattern(health float64) Behavior {
	ratio := clamp(health, MinHealth, MaxHealth) / MaxHealth
	return Behavior{
		MovementSpeed:   clamp(MinMovementSpeed+ratio*(MaxMovementSpeed-MinMovementSpeed), MinMovementSpeed, MaxMovementSpeed),
		ActivityLevel:   clamp(MinActivityLevel+ratio*(MaxActivityLevel-MinActivityLevel), MinActivityLevel, MaxActivityLevel),
		ResponseToTouch: clamp(MinResponseToTouch+ratio*(MaxResponseToTouch-MinResponseToTouch), MinResponseToTouch, MaxResponseToTouch),
	}
}

// NotificationLevelOf maps health to a notification level using the status thresholds
func NotificationLevelOf(health float64) NotificationLevel {
	switch StatusOf(health) {
	case StatusDead:
		return NotifyDeath
	case StatusCritical:
		return NotifyCritical
	case StatusAtRisk:
		return NotifyWarning
	default:
		return NotifyNone
	}
}

// Input is everything one simulation tick needs
type Input struct {
	CurrentHealth  float64
	Samples        []usage.AppUsageData
	Limits         map[string]time.Duration
	ElapsedMinutes float64
	OfflineMinutes float64
}

// Result is the snapshot produced by Update
type Result struct {
	Health         float64 `json:"health"`
	Status         Status  `json:"status"`
	RiskPercentage float64 `json:"risk_percentage"`
	WaterTurbidity float64 `json:"water_turbidity"`
	SurvivalTime   float64 `json:"-"` // minutes, +Inf when not decaying
	UsageDamage    float64 `json:"usage_damage"`
	NetDamage      float64 `json:"net_damage"`
}

// Update runs one tick: usage damage plus natural decay minus restoration.
// It has no state and returns the same result for the same input.
func Update(in Input) Result {
	usageDamage := TotalUsageDamage(in.Samples, in.Limits)
	net := usageDamage + NaturalDecay(in.ElapsedMinutes) - Restoration(in.OfflineMinutes)

	h := NewHealth(in.CurrentHealth, -net)
	rate := net / math.Max(in.ElapsedMinutes, 1)

	return Result{
		Health:         h,
		Status:         StatusOf(h),
		RiskPercentage: RiskPercentage(h),
		WaterTurbidity: WaterTurbidityFromHealth(h),
		SurvivalTime:   SurvivalTime(h, rate),
		UsageDamage:    usageDamage,
		NetDamage:      net,
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(v, hi))
}
