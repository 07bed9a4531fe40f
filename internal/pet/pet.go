// Package pet holds the live fish, its memorial records and name rules.
package pet

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"calmaquarium/internal/health"
)

// Testable id and random functions
var (
	NewID    = func() string { return IDPrefix + uuid.New().String()[:8] }
	RandIntn = rand.Intn
)

// LogEntry represents a status change
type LogEntry struct {
	Time      time.Time     `json:"time"`
	OldStatus health.Status `json:"old_status"`
	NewStatus health.Status `json:"new_status"`
}

// Pet is the single live fish
type Pet struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Personality   Personality   `json:"personality"`
	Health        float64       `json:"health"`
	CreatedAt     time.Time     `json:"created_at"`
	LastFeedTime  time.Time     `json:"last_feed_time"`
	LastUpdated   time.Time     `json:"last_updated"`
	TotalLifetime time.Duration `json:"total_lifetime"`
	Logs          []LogEntry    `json:"logs,omitempty"`
}

// New creates a healthy pet. The name must already be validated and reserved.
// An empty personality picks one at random.
func New(name string, personality Personality, now time.Time) *Pet {
	if personality == "" {
		personality = RandomPersonality()
	}
	return &Pet{
		ID:           NewID(),
		Name:         name,
		Personality:  personality,
		Health:       health.MaxHealth,
		CreatedAt:    now,
		LastFeedTime: now,
		LastUpdated:  now,
		Logs: []LogEntry{{
			Time:      now,
			NewStatus: health.StatusAlive,
		}},
	}
}

// RandomPersonality picks one of the known personalities
func RandomPersonality() Personality {
	return Personalities[RandIntn(len(Personalities))]
}

// Status is derived from health only
func (p *Pet) Status() health.Status {
	return health.StatusOf(p.Health)
}

// Alive reports whether health is above the minimum
func (p *Pet) Alive() bool {
	return p != nil && p.Status() != health.StatusDead
}

// Age is the time since the pet was created
func (p *Pet) Age(now time.Time) time.Duration {
	if now.Before(p.CreatedAt) {
		return 0
	}
	return now.Sub(p.CreatedAt)
}

// ApplyHealth stores a new health value computed at now. Alive time since the
// last update is added to TotalLifetime and a gain in health counts as a feed.
func (p *Pet) ApplyHealth(value float64, now time.Time) {
	oldStatus := p.Status()
	value = health.NewHealth(value, 0)

	if now.After(p.LastUpdated) {
		p.TotalLifetime += now.Sub(p.LastUpdated)
		p.LastUpdated = now
	}
	if value > p.Health {
		p.LastFeedTime = now
	}
	p.Health = value

	if newStatus := p.Status(); newStatus != oldStatus {
		p.Logs = append(p.Logs, LogEntry{Time: now, OldStatus: oldStatus, NewStatus: newStatus})
		if len(p.Logs) > MaxStatusHistory {
			p.Logs = p.Logs[len(p.Logs)-MaxStatusHistory:]
		}
	}
}

// DeadPet is the memorial for a pet. It is never modified after creation.
type DeadPet struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Personality   Personality   `json:"personality"`
	Health        float64       `json:"health"`
	CreatedAt     time.Time     `json:"created_at"`
	LastFeedTime  time.Time     `json:"last_feed_time"`
	DiedAt        time.Time     `json:"died_at"`
	CauseOfDeath  string        `json:"cause_of_death"`
	DeathReason   DeathReason   `json:"death_reason"`
	TotalLifetime time.Duration `json:"total_lifetime"`
}

// Memorialize turns the pet into its memorial record
func (p *Pet) Memorialize(diedAt time.Time, reason DeathReason, cause string) DeadPet {
	lifetime := time.Duration(0)
	if diedAt.After(p.CreatedAt) {
		lifetime = diedAt.Sub(p.CreatedAt)
	}
	if cause == "" {
		cause = NeglectCause
	}
	return DeadPet{
		ID:            p.ID,
		Name:          p.Name,
		Personality:   p.Personality,
		Health:        health.MinHealth,
		CreatedAt:     p.CreatedAt,
		LastFeedTime:  p.LastFeedTime,
		DiedAt:        diedAt,
		CauseOfDeath:  cause,
		DeathReason:   reason,
		TotalLifetime: lifetime,
	}
}
