package water

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calmaquarium/internal/clock"
	"calmaquarium/internal/usage"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// Wednesday
var start = time.Date(2024, 1, 10, 9, 0, 0, 0, time.Local)

func newTestManager(t *testing.T, turbidity float64) (*Manager, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(start)
	m := NewManager(clk, DefaultConfig(), discard)
	m.Restore(State{Turbidity: turbidity, LastUpdateTime: start, LastResetTime: start})
	return m, clk
}

func sample(app string, d time.Duration) []usage.AppUsageData {
	return []usage.AppUsageData{{AppID: app, DailyUsage: d}}
}

func TestClassifyTurbidity(t *testing.T) {
	assert.Equal(t, LevelClean, ClassifyTurbidity(0))
	assert.Equal(t, LevelClean, ClassifyTurbidity(19.9))
	assert.Equal(t, LevelModerate, ClassifyTurbidity(20))
	assert.Equal(t, LevelDirty, ClassifyTurbidity(50))
	assert.Equal(t, LevelVeryDirty, ClassifyTurbidity(80))

	assert.False(t, LevelClean.Harmful())
	assert.True(t, LevelModerate.Harmful())
	assert.True(t, LevelVeryDirty.Harmful())
}

func TestTimeUntilDanger(t *testing.T) {
	assert.Equal(t, 30*time.Minute, TimeUntilDanger(20, 2))
	assert.Equal(t, time.Duration(0), TimeUntilDanger(80, 2))
	assert.Equal(t, time.Duration(0), TimeUntilDanger(95, 2))
}

func TestResetBoundaries(t *testing.T) {
	sunday := time.Date(2024, 1, 7, 0, 0, 0, 0, time.Local)

	assert.True(t, sunday.Equal(LastResetBoundary(start)))
	assert.True(t, sunday.Equal(LastResetBoundary(sunday)), "a boundary is its own last reset")
	assert.True(t, sunday.AddDate(0, 0, 7).Equal(NextResetTime(sunday)))
	assert.True(t, sunday.AddDate(0, 0, 7).Equal(NextResetTime(start)))
	assert.Equal(t, time.Sunday, NextResetTime(start).Weekday())
}

func TestNewManager_StartsAtResetValue(t *testing.T) {
	m := NewManager(clock.NewManual(start), DefaultConfig(), discard)

	info := m.CurrentWaterQuality()
	assert.Equal(t, DefaultResetTurbidity, info.Turbidity)
	assert.Equal(t, LevelVeryDirty, info.Level)
	assert.True(t, info.IsHarmful)
}

func TestUpdate_IdleDecreases(t *testing.T) {
	m, clk := newTestManager(t, 40)

	clk.Advance(10 * time.Minute)
	info := m.Update(nil)

	assert.InDelta(t, 35.0, info.Turbidity, 1e-9)
	assert.Equal(t, LevelModerate, info.Level)
}

func TestUpdate_UsageIncreasesBoundedByElapsed(t *testing.T) {
	m, clk := newTestManager(t, 10)

	// first batch only sets the baseline
	m.Update(sample("app", time.Hour))

	clk.Advance(5 * time.Minute)
	info := m.Update(sample("app", time.Hour+3*time.Minute))
	assert.InDelta(t, 16.0, info.Turbidity, 1e-9)

	// 20 minutes of usage reported within 5 elapsed minutes counts as 5
	clk.Advance(5 * time.Minute)
	info = m.Update(sample("app", time.Hour+23*time.Minute))
	assert.InDelta(t, 26.0, info.Turbidity, 1e-9)
}

func TestUpdate_SameBatchTwiceDoesNotCompound(t *testing.T) {
	m, clk := newTestManager(t, 10)
	m.Update(sample("app", time.Hour))

	clk.Advance(5 * time.Minute)
	m.Update(sample("app", time.Hour+5*time.Minute))

	clk.Advance(2 * time.Minute)
	info := m.Update(sample("app", time.Hour+5*time.Minute))

	// 20 after usage, then 2 idle minutes
	assert.InDelta(t, 19.0, info.Turbidity, 1e-9)
}

func TestUpdate_Clamped(t *testing.T) {
	m, clk := newTestManager(t, 1)

	clk.Advance(time.Hour)
	assert.Equal(t, MinTurbidity, m.Update(nil).Turbidity)

	m.Restore(State{Turbidity: 99, LastUpdateTime: clk.Now(), LastResetTime: clk.Now()})
	m.Update(sample("app", 0))
	clk.Advance(30 * time.Minute)
	assert.Equal(t, MaxTurbidity, m.Update(sample("app", 30*time.Minute)).Turbidity)
}

func TestUpdate_NoElapsedIsNoop(t *testing.T) {
	m, clk := newTestManager(t, 40)

	var events int
	m.Subscribe(func(Info) { events++ })

	clk.Set(start.Add(-time.Hour))
	info := m.Update(nil)

	assert.Equal(t, 40.0, info.Turbidity)
	assert.Equal(t, 0, events)
	assert.True(t, start.Equal(m.State().LastUpdateTime))
}

func TestUpdate_UsageAtTickInstantIsKept(t *testing.T) {
	m, clk := newTestManager(t, 50)
	m.Update(sample("app", 10*time.Minute))

	// a self-tick consumes the elapsed minute before the poll lands
	clk.Advance(time.Minute)
	assert.InDelta(t, 49.5, m.Update(nil).Turbidity, 1e-9)

	info := m.Update(sample("app", 11*time.Minute))
	assert.InDelta(t, 49.5, info.Turbidity, 1e-9, "no time to apply it yet")

	// the held minute counts on the next step, the repeated total adds nothing
	clk.Advance(time.Minute)
	info = m.Update(sample("app", 11*time.Minute))
	assert.InDelta(t, 51.5, info.Turbidity, 1e-9)

	clk.Advance(time.Minute)
	assert.InDelta(t, 51.0, m.Update(nil).Turbidity, 1e-9, "held usage applied once")
}

func TestPerformManualWaterChange_DropsHeldUsage(t *testing.T) {
	m, clk := newTestManager(t, 50)
	m.Update(sample("app", 10*time.Minute))
	m.Update(sample("app", 15*time.Minute))

	m.PerformManualWaterChange()
	clk.Advance(time.Minute)
	assert.InDelta(t, 99.5, m.Update(nil).Turbidity, 1e-9)
}

func TestUpdate_WeeklyReset(t *testing.T) {
	sunday := time.Date(2024, 1, 7, 0, 0, 0, 0, time.Local)
	clk := clock.NewManual(sunday.Add(time.Hour))
	m := NewManager(clk, DefaultConfig(), discard)
	m.Restore(State{Turbidity: 90, LastUpdateTime: sunday.Add(time.Hour), LastResetTime: sunday})

	clk.Set(time.Date(2024, 1, 14, 0, 30, 0, 0, time.Local))
	require.True(t, m.CurrentWaterQuality().NextResetTime.Before(clk.Now()))

	info := m.Update(nil)

	assert.Equal(t, DefaultResetTurbidity, info.Turbidity)
	next := time.Date(2024, 1, 14, 0, 0, 0, 0, time.Local)
	assert.True(t, next.Equal(info.LastResetTime), "got %s", info.LastResetTime)
	assert.True(t, next.AddDate(0, 0, 7).Equal(info.NextResetTime))
}

func TestUpdate_WeeklyResetAfterLongAbsence(t *testing.T) {
	m, clk := newTestManager(t, 10)

	clk.Set(time.Date(2024, 2, 1, 12, 0, 0, 0, time.Local)) // Thursday, three Sundays later
	info := m.Update(nil)

	assert.Equal(t, DefaultResetTurbidity, info.Turbidity)
	assert.True(t, time.Date(2024, 1, 28, 0, 0, 0, 0, time.Local).Equal(info.LastResetTime))
}

func TestPerformManualWaterChange(t *testing.T) {
	m, clk := newTestManager(t, 10)
	clk.Advance(3 * time.Hour)

	var got []Info
	m.Subscribe(func(i Info) { got = append(got, i) })

	info := m.PerformManualWaterChange()

	assert.Equal(t, DefaultResetTurbidity, info.Turbidity)
	assert.True(t, clk.Now().Equal(info.LastResetTime))
	require.Len(t, got, 1)
	assert.Equal(t, info, got[0])
	assert.True(t, clk.Now().Equal(m.State().LastUpdateTime))
}

func TestCustomResetTurbidity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResetTurbidity = 0
	m := NewManager(clock.NewManual(start), cfg, discard)

	assert.Equal(t, 0.0, m.PerformManualWaterChange().Turbidity)
}

func TestMonitoring_EmitsAndTicks(t *testing.T) {
	m, clk := newTestManager(t, 50)

	var got []float64
	m.StartMonitoring(func(i Info) { got = append(got, i.Turbidity) })
	require.Equal(t, []float64{50}, got, "current state sent on start")

	clk.Advance(2 * time.Minute)
	assert.Equal(t, []float64{50, 49.5, 49}, got)
}

func TestMonitoring_RestartStopsPrevious(t *testing.T) {
	m, clk := newTestManager(t, 50)

	var first, second int
	m.StartMonitoring(func(Info) { first++ })
	m.StartMonitoring(func(Info) { second++ })

	assert.Equal(t, 1, clk.Pending(), "only one ticker")

	clk.Advance(time.Minute)
	assert.Equal(t, 1, first, "old observer removed")
	assert.Equal(t, 2, second)

	m.StopMonitoring()
	m.StopMonitoring()
	assert.Equal(t, 0, clk.Pending())

	clk.Advance(time.Minute)
	assert.Equal(t, 2, second)
}

func TestMonitoring_PanickingCallbackKeepsTicking(t *testing.T) {
	m, clk := newTestManager(t, 50)

	calls := 0
	m.StartMonitoring(func(Info) {
		calls++
		panic("boom")
	})

	clk.Advance(3 * time.Minute)
	assert.Equal(t, 4, calls)
	assert.InDelta(t, 48.5, m.CurrentWaterQuality().Turbidity, 1e-9)
}

func TestStateRoundTripKeepsBaseline(t *testing.T) {
	m, clk := newTestManager(t, 10)
	m.Update(sample("app", 20*time.Minute))

	saved := m.State()
	assert.Equal(t, 20*time.Minute, saved.Baseline["app"])

	restored := NewManager(clk, DefaultConfig(), discard)
	restored.Restore(saved)
	clk.Advance(10 * time.Minute)

	info := restored.Update(sample("app", 25*time.Minute))
	assert.InDelta(t, 20.0, info.Turbidity, 1e-9, "delta from restored baseline")
}
