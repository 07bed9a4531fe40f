package pet

import (
	"fmt"
	"time"

	"calmaquarium/internal/health"
)

// StatusEmoji returns the emoji shown for a status
func StatusEmoji(s health.Status) string {
	switch s {
	case health.StatusDead:
		return StatusEmojiDead
	case health.StatusCritical:
		return StatusEmojiCritical
	case health.StatusAtRisk:
		return StatusEmojiAtRisk
	default:
		return StatusEmojiThriving
	}
}

// GetStatusWithLabel returns status with a text label for the UI
func GetStatusWithLabel(p *Pet) string {
	if p == nil {
		return "🌊 Empty tank"
	}

	s := p.Status()
	emoji := StatusEmoji(s)

	switch s {
	case health.StatusDead:
		return emoji + " Dead"
	case health.StatusCritical:
		return emoji + " Critical"
	case health.StatusAtRisk:
		return emoji + " At risk"
	}

	// A recently fed healthy fish looks happier than one that is just coping
	if p.LastUpdated.Sub(p.LastFeedTime) < 10*time.Minute {
		return emoji + " Thriving"
	}
	return emoji + " Swimming"
}

// DeathReasonLabel is the human readable form of a death reason
func DeathReasonLabel(r DeathReason) string {
	switch r {
	case DeathTimeLimitExceeded:
		return "Time limit exceeded"
	case DeathAppOveruse:
		return "App overuse"
	default:
		return "Neglect"
	}
}

// MemorialLine formats a dead pet for listings
func MemorialLine(d DeadPet) string {
	return fmt.Sprintf("%s %s (%s) lived %s, died %s: %s (%s)",
		StatusEmojiDead, d.Name, d.Personality,
		FormatLifetime(d.TotalLifetime),
		d.DiedAt.Local().Format("2006-01-02 15:04"),
		DeathReasonLabel(d.DeathReason), d.CauseOfDeath)
}

// FormatLifetime renders a duration as days, hours and minutes
func FormatLifetime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
