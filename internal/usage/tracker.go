package usage

import (
	"sync"
	"time"
)

// Tracker turns cumulative usage samples into per-app deltas.
//
// The first sample seen for an app only sets its baseline. A value lower than
// the previous one means the platform counter was reset (new day) and the new
// value is taken as the delta.
type Tracker struct {
	mu   sync.Mutex
	last map[string]time.Duration
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{last: make(map[string]time.Duration)}
}

// Observe records samples and returns appID -> usage since the previous call.
// Apps absent from samples keep their baseline.
func (t *Tracker) Observe(samples []AppUsageData) map[string]time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	deltas := make(map[string]time.Duration, len(samples))
	for _, s := range samples {
		prev, seen := t.last[s.AppID]
		t.last[s.AppID] = s.DailyUsage

		switch {
		case !seen:
			deltas[s.AppID] = 0
		case s.DailyUsage >= prev:
			deltas[s.AppID] = s.DailyUsage - prev
		default:
			deltas[s.AppID] = s.DailyUsage
		}
	}
	return deltas
}

// Baseline returns a copy of the last cumulative value per app
func (t *Tracker) Baseline() map[string]time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]time.Duration, len(t.last))
	for k, v := range t.last {
		out[k] = v
	}
	return out
}

// Seed restores baselines, typically from the persisted usage cache
func (t *Tracker) Seed(samples []AppUsageData) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range samples {
		t.last[s.AppID] = s.DailyUsage
	}
}

// Reset forgets every baseline
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = make(map[string]time.Duration)
}

// Total sums a delta map
func Total(deltas map[string]time.Duration) time.Duration {
	var total time.Duration
	for _, d := range deltas {
		total += d
	}
	return total
}
