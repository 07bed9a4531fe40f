package health

import (
	"math"
	"sort"
	"time"

	"calmaquarium/internal/usage"
)

// LimitState classifies an app against its limit
type LimitState string

const (
	LimitOK          LimitState = "ok"
	LimitApproaching LimitState = "approaching"
	LimitExceeded    LimitState = "exceeded"
)

// AppUsage is one app's usage measured against its daily limit
type AppUsage struct {
	AppID   string
	AppName string
	Usage   time.Duration
	Limit   time.Duration
	Ratio   float64
	Decay   float64
	State   LimitState
}

// Ratio is usage/limit. A non-positive limit with any usage counts as
// infinitely over.
func Ratio(usageTime, limit time.Duration) float64 {
	if usageTime <= 0 {
		return 0
	}
	if limit <= 0 {
		return math.Inf(1)
	}
	return float64(usageTime) / float64(limit)
}

// LimitFor returns the configured limit for appID or DefaultTimeLimit
func LimitFor(appID string, limits map[string]time.Duration) time.Duration {
	if limit, ok := limits[appID]; ok {
		return limit
	}
	return DefaultTimeLimit
}

// ClassifyRatio buckets a usage ratio
func ClassifyRatio(ratio float64) LimitState {
	switch {
	case ratio >= ExceededRatio:
		return LimitExceeded
	case ratio >= ApproachingRatio:
		return LimitApproaching
	default:
		return LimitOK
	}
}

// AnalyzeUsage measures every sample against its limit, highest ratio first
func AnalyzeUsage(samples []usage.AppUsageData, limits map[string]time.Duration) []AppUsage {
	out := make([]AppUsage, 0, len(samples))
	for _, s := range samples {
		limit := LimitFor(s.AppID, limits)
		ratio := Ratio(s.DailyUsage, limit)
		out = append(out, AppUsage{
			AppID:   s.AppID,
			AppName: s.DisplayName(),
			Usage:   s.DailyUsage,
			Limit:   limit,
			Ratio:   ratio,
			Decay:   DecayFromUsage(s.DailyUsage, limit),
			State:   ClassifyRatio(ratio),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Ratio > out[j].Ratio })
	return out
}

// TotalUsageDamage sums per-app decay, using DefaultTimeLimit for apps
// without a restriction
func TotalUsageDamage(samples []usage.AppUsageData, limits map[string]time.Duration) float64 {
	total := 0.0
	for _, a := range AnalyzeUsage(samples, limits) {
		total += a.Decay
	}
	return total
}

// ExceededApps returns the apps at or over their limit
func ExceededApps(samples []usage.AppUsageData, limits map[string]time.Duration) []AppUsage {
	return filterState(AnalyzeUsage(samples, limits), LimitExceeded)
}

// ApproachingApps returns the apps at 80% or more of their limit but not over
func ApproachingApps(samples []usage.AppUsageData, limits map[string]time.Duration) []AppUsage {
	return filterState(AnalyzeUsage(samples, limits), LimitApproaching)
}

func filterState(apps []AppUsage, state LimitState) []AppUsage {
	var out []AppUsage
	for _, a := range apps {
		if a.State == state {
			out = append(out, a)
		}
	}
	return out
}
