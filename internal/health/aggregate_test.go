package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calmaquarium/internal/usage"
)

func TestTotalUsageDamage_DefaultLimit(t *testing.T) {
	samples := []usage.AppUsageData{
		{AppID: "restricted", DailyUsage: 20 * time.Minute},
		{AppID: "unrestricted", DailyUsage: 15 * time.Minute},
	}
	limits := map[string]time.Duration{"restricted": 10 * time.Minute}

	// restricted: ratio 2 -> 10; unrestricted: 15/30 -> 2.5
	assert.InDelta(t, 12.5, TotalUsageDamage(samples, limits), 1e-9)
	assert.Equal(t, 0.0, TotalUsageDamage(nil, limits))
}

func TestAnalyzeUsage_Classification(t *testing.T) {
	samples := []usage.AppUsageData{
		{AppID: "ok", DailyUsage: 10 * time.Minute},
		{AppID: "near", AppName: "Near", DailyUsage: 24 * time.Minute},
		{AppID: "over", AppName: "Over", DailyUsage: 30 * time.Minute},
	}
	limits := map[string]time.Duration{"ok": 30 * time.Minute, "near": 30 * time.Minute, "over": 30 * time.Minute}

	got := AnalyzeUsage(samples, limits)
	require.Len(t, got, 3)

	assert.Equal(t, "over", got[0].AppID, "sorted by ratio")
	assert.Equal(t, LimitExceeded, got[0].State)
	assert.Equal(t, LimitApproaching, got[1].State)
	assert.Equal(t, LimitOK, got[2].State)
	assert.Equal(t, "ok", got[2].AppName, "falls back to the package id")
}

func TestExceededAndApproaching(t *testing.T) {
	samples := []usage.AppUsageData{
		{AppID: "near", DailyUsage: 8 * time.Minute},
		{AppID: "over", DailyUsage: 11 * time.Minute},
		{AppID: "zero", DailyUsage: time.Minute},
	}
	limits := map[string]time.Duration{"near": 10 * time.Minute, "over": 10 * time.Minute, "zero": 0}

	exceeded := ExceededApps(samples, limits)
	approaching := ApproachingApps(samples, limits)

	require.Len(t, exceeded, 2)
	assert.Equal(t, "zero", exceeded[0].AppID, "no allowance is infinitely over")
	require.Len(t, approaching, 1)
	assert.Equal(t, "near", approaching[0].AppID)
}

func TestClassifyRatio(t *testing.T) {
	assert.Equal(t, LimitOK, ClassifyRatio(0.79))
	assert.Equal(t, LimitApproaching, ClassifyRatio(0.8))
	assert.Equal(t, LimitExceeded, ClassifyRatio(1.0))
}
