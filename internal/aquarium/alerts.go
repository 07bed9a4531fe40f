package aquarium

import (
	"fmt"
	"sort"
	"time"

	"calmaquarium/internal/health"
	"calmaquarium/internal/pet"
	"calmaquarium/internal/water"
)

// AlertKind identifies an alert definition
type AlertKind string

const (
	AlertApproaching  AlertKind = "approaching_limit"
	AlertExceeded     AlertKind = "limit_exceeded"
	AlertWaterHarmful AlertKind = "water_harmful"
	AlertPetAtRisk    AlertKind = "pet_at_risk"
	AlertPetCritical  AlertKind = "pet_critical"
	AlertPetDied      AlertKind = "pet_died"
)

// Alert is one raised notification
type Alert struct {
	Kind    AlertKind                `json:"kind"`
	Subject string                   `json:"subject,omitempty"` // app id, empty for tank-wide alerts
	Emoji   string                   `json:"emoji"`
	Message string                   `json:"message"`
	Level   health.NotificationLevel `json:"level"`
	Time    time.Time                `json:"time"`
}

// tickFacts is what the alert conditions look at after a tick
type tickFacts struct {
	pet   *pet.Pet
	died  *pet.DeadPet
	apps  []health.AppUsage
	water water.Info
}

// alertMatch is one firing instance of a definition
type alertMatch struct {
	subject string
	message string
}

// AlertDefinition describes an alert and when it fires
type AlertDefinition struct {
	Kind      AlertKind
	Emoji     string
	Level     health.NotificationLevel
	Condition func(f tickFacts) []alertMatch
}

// GetAlertDefinitions returns every alert the aquarium can raise
func GetAlertDefinitions() []AlertDefinition {
	return []AlertDefinition{
		{
			Kind:  AlertApproaching,
			Emoji: "⏳",
			Level: health.NotifyWarning,
			Condition: func(f tickFacts) []alertMatch {
				return appMatches(f.apps, health.LimitApproaching, func(a health.AppUsage) string {
					return fmt.Sprintf("%s is at %.0f%% of its daily limit", a.AppName, a.Ratio*100)
				})
			},
		},
		{
			Kind:  AlertExceeded,
			Emoji: "⛔",
			Level: health.NotifyCritical,
			Condition: func(f tickFacts) []alertMatch {
				return appMatches(f.apps, health.LimitExceeded, func(a health.AppUsage) string {
					return fmt.Sprintf("%s is over its daily limit of %s", a.AppName, a.Limit)
				})
			},
		},
		{
			Kind:  AlertWaterHarmful,
			Emoji: "🟤",
			Level: health.NotifyWarning,
			Condition: func(f tickFacts) []alertMatch {
				if !f.water.IsHarmful {
					return nil
				}
				return []alertMatch{{message: fmt.Sprintf("the water is %s, change it soon", f.water.Level)}}
			},
		},
		{
			Kind:  AlertPetAtRisk,
			Emoji: pet.StatusEmojiAtRisk,
			Level: health.NotifyWarning,
			Condition: func(f tickFacts) []alertMatch {
				return petMatch(f.pet, health.StatusAtRisk, "%s is not feeling well")
			},
		},
		{
			Kind:  AlertPetCritical,
			Emoji: pet.StatusEmojiCritical,
			Level: health.NotifyCritical,
			Condition: func(f tickFacts) []alertMatch {
				return petMatch(f.pet, health.StatusCritical, "%s is struggling to breathe")
			},
		},
		{
			Kind:  AlertPetDied,
			Emoji: pet.StatusEmojiDead,
			Level: health.NotifyDeath,
			Condition: func(f tickFacts) []alertMatch {
				if f.died == nil {
					return nil
				}
				return []alertMatch{{subject: f.died.ID, message: pet.MemorialLine(*f.died)}}
			},
		},
	}
}

func appMatches(apps []health.AppUsage, state health.LimitState, message func(health.AppUsage) string) []alertMatch {
	var out []alertMatch
	for _, a := range apps {
		if a.State == state {
			out = append(out, alertMatch{subject: a.AppID, message: message(a)})
		}
	}
	return out
}

func petMatch(p *pet.Pet, status health.Status, format string) []alertMatch {
	if !p.Alive() || p.Status() != status {
		return nil
	}
	return []alertMatch{{subject: p.ID, message: fmt.Sprintf(format, p.Name)}}
}

// alertTracker raises each (kind, subject) once until its condition clears
type alertTracker struct {
	definitions []AlertDefinition
	active      map[string]Alert
}

func newAlertTracker() *alertTracker {
	return &alertTracker{
		definitions: GetAlertDefinitions(),
		active:      make(map[string]Alert),
	}
}

// evaluate returns the alerts that started firing with this tick
func (t *alertTracker) evaluate(f tickFacts, now time.Time) []Alert {
	var raised []Alert
	next := make(map[string]Alert, len(t.active))

	for _, def := range t.definitions {
		for _, m := range def.Condition(f) {
			key := string(def.Kind) + "|" + m.subject
			if prev, ok := t.active[key]; ok {
				next[key] = prev
				continue
			}
			a := Alert{
				Kind:    def.Kind,
				Subject: m.subject,
				Emoji:   def.Emoji,
				Message: m.message,
				Level:   def.Level,
				Time:    now,
			}
			next[key] = a
			raised = append(raised, a)
		}
	}

	t.active = next
	return raised
}

// current returns the alerts still firing, most severe first
func (t *alertTracker) current() []Alert {
	out := make([]Alert, 0, len(t.active))
	for _, a := range t.active {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if levelRank[a.Level] != levelRank[b.Level] {
			return levelRank[a.Level] < levelRank[b.Level]
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Subject < b.Subject
	})
	return out
}

var levelRank = map[health.NotificationLevel]int{
	health.NotifyDeath:    0,
	health.NotifyCritical: 1,
	health.NotifyWarning:  2,
	health.NotifyNone:     3,
}
