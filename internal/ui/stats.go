package ui

import (
	"fmt"
	"strings"
	"time"

	"calmaquarium/internal/aquarium"
	"calmaquarium/internal/pet"
)

const barCells = 10

// makeBar renders a 0-100 value as a fixed width bar
func makeBar(value float64) string {
	filled := int(value) / (100 / barCells)
	filled = clampInt(filled, 0, barCells)
	return strings.Repeat("█", filled) + strings.Repeat("░", barCells-filled)
}

// StatusCard is the boxed summary printed by the status command
func StatusCard(st aquarium.Status) string {
	var s strings.Builder
	s.WriteString("╔════════════════════════════════════════╗\n")

	if st.Pet == nil {
		s.WriteString("║  🌊 The tank is empty                  ║\n")
		if st.LastDeath != nil {
			s.WriteString(fmt.Sprintf("║  Last: %-32s║\n", st.LastDeath.Name+" ("+pet.DeathReasonLabel(st.LastDeath.DeathReason)+")"))
		}
	} else {
		p := st.Pet
		s.WriteString(fmt.Sprintf("║  🐟 %-34s ║\n", p.Name))
		s.WriteString("╠════════════════════════════════════════╣\n")
		s.WriteString(fmt.Sprintf("║  Status:      %-24s ║\n", pet.GetStatusWithLabel(p)))
		s.WriteString(fmt.Sprintf("║  Personality: %-24s ║\n", p.Personality))
		s.WriteString(fmt.Sprintf("║  Age:         %-24s ║\n", pet.FormatLifetime(p.Age(st.Time))))
		s.WriteString(fmt.Sprintf("║  Health:    [%s] %3.0f%%      ║\n", makeBar(p.Health), p.Health))
	}

	s.WriteString(fmt.Sprintf("║  Turbidity: [%s] %3.0f%%      ║\n", makeBar(st.Water.Turbidity), st.Water.Turbidity))
	s.WriteString(fmt.Sprintf("║  Water:       %-24s ║\n", st.Water.Level))
	if !st.Water.NextResetTime.IsZero() {
		s.WriteString(fmt.Sprintf("║  Next reset:  %-24s ║\n", st.Water.NextResetTime.Local().Format("Mon Jan 2 15:04")))
	}

	if len(st.Apps) > 0 {
		s.WriteString("╠════════════════════════════════════════╣\n")
		for _, app := range st.Apps {
			line := fmt.Sprintf("%s %s / %s", app.AppName, formatMinutes(app.Usage), formatMinutes(app.Limit))
			s.WriteString(fmt.Sprintf("║  %-37s ║\n", line))
		}
	}

	if len(st.Alerts) > 0 {
		s.WriteString("╠════════════════════════════════════════╣\n")
		for _, a := range st.Alerts {
			s.WriteString(fmt.Sprintf("║  %s %s\n", a.Emoji, a.Message))
		}
	}
	s.WriteString("╚════════════════════════════════════════╝\n")
	return s.String()
}

// MemorialCard lists every pet that has died in the tank
func MemorialCard(dead []pet.DeadPet, sum pet.LifetimeSummary) string {
	if len(dead) == 0 {
		return "No fish have died yet. Keep it that way!\n"
	}

	var s strings.Builder
	s.WriteString("🪦 In memory of\n\n")
	for _, d := range dead {
		s.WriteString("  " + pet.MemorialLine(d) + "\n")
	}
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("Fish lost:        %d\n", sum.Count))
	s.WriteString(fmt.Sprintf("Average lifetime: %s (±%s)\n", pet.FormatLifetime(sum.Mean), pet.FormatLifetime(sum.StdDev)))
	s.WriteString(fmt.Sprintf("Longest lived:    %s, %s\n", sum.LongestName, pet.FormatLifetime(sum.Longest)))
	return s.String()
}

func formatMinutes(d time.Duration) string {
	return fmt.Sprintf("%dm", int(d.Minutes()))
}
