package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"calmaquarium/internal/aquarium"
	"calmaquarium/internal/health"
	"calmaquarium/internal/pet"
)

const (
	defaultTankWidth  = 40
	defaultTankHeight = 8
)

var gameStyles = struct {
	title   lipgloss.Style
	status  lipgloss.Style
	stats   lipgloss.Style
	menuBox lipgloss.Style
	warning lipgloss.Style
	danger  lipgloss.Style
}{
	title: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5FD7FF")).
		Padding(0, 1),

	status: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#5FD7FF")).
		Width(44),

	stats: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#87D7FF")).
		Width(44),

	menuBox: lipgloss.NewStyle().
		Padding(0, 2),

	warning: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFAF00")),

	danger: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF5F5F")),
}

// View implements tea.Model
func (m Model) View() string {
	if m.Quitting {
		return "See you soon! Keep the water clear.\n"
	}
	if m.Adopting {
		return m.adoptView()
	}
	if m.Animation.Type != AnimNone {
		return m.renderAnimation()
	}
	if m.Status.Pet == nil {
		return m.emptyView()
	}

	p := m.Status.Pet
	title := gameStyles.title.Render("🐟 " + p.Name + " 🐟")
	width, height := m.tankSize()

	sections := []string{
		title,
		RenderTank(m.Status.Fish, m.Status.Water.Level, width, height),
		m.renderStats(),
	}

	if apps := m.renderApps(); apps != "" {
		sections = append(sections, "", apps)
	}
	if alerts := m.renderAlerts(); alerts != "" {
		sections = append(sections, "", alerts)
	}
	if msg := m.activeMessage(); msg != "" {
		sections = append(sections, "", gameStyles.status.Render(msg))
	}

	sections = append(sections,
		"",
		gameStyles.status.Render("[W] change water • q to quit"),
	)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) tankSize() (int, int) {
	width, height := defaultTankWidth, defaultTankHeight
	if m.Width > 0 {
		width = min(m.Width-2, 60)
	}
	if m.Height > 0 {
		height = clampInt(m.Height-20, minTankHeight, 12)
	}
	return width, height
}

func (m Model) renderStats() string {
	p := m.Status.Pet
	w := m.Status.Water

	stats := []struct {
		name, value string
	}{
		{"Status", pet.GetStatusWithLabel(p)},
		{"Health", fmt.Sprintf("[%s] %3.0f%%", makeBar(p.Health), p.Health)},
		{"Water", fmt.Sprintf("[%s] %3.0f%% %s", makeBar(w.Turbidity), w.Turbidity, w.Level)},
		{"Age", pet.FormatLifetime(p.Age(m.Status.Time))},
		{"Type", string(p.Personality)},
	}
	if !w.IsHarmful && w.TimeUntilDanger > 0 {
		stats = append(stats, struct{ name, value string }{"Danger in", pet.FormatLifetime(w.TimeUntilDanger)})
	}

	var lines []string
	for _, stat := range stats {
		lines = append(lines, fmt.Sprintf("%-10s %s", stat.name+":", stat.value))
	}

	return gameStyles.stats.Render(strings.Join(lines, "\n"))
}

func (m Model) renderApps() string {
	if len(m.Status.Apps) == 0 {
		return ""
	}
	var lines []string
	for _, app := range m.Status.Apps {
		line := fmt.Sprintf("%-14s %s / %s", app.AppName, formatMinutes(app.Usage), formatMinutes(app.Limit))
		switch app.State {
		case health.LimitExceeded:
			line = gameStyles.danger.Render(line)
		case health.LimitApproaching:
			line = gameStyles.warning.Render(line)
		}
		lines = append(lines, line)
	}
	return gameStyles.menuBox.Render(strings.Join(lines, "\n"))
}

func (m Model) renderAlerts() string {
	if len(m.Status.Alerts) == 0 {
		return ""
	}
	var lines []string
	for _, a := range m.Status.Alerts {
		lines = append(lines, alertStyle(a).Render(a.Emoji+" "+a.Message))
	}
	return strings.Join(lines, "\n")
}

func alertStyle(a aquarium.Alert) lipgloss.Style {
	if a.Level == health.NotifyWarning {
		return gameStyles.warning
	}
	return gameStyles.danger
}

func (m Model) renderAnimation() string {
	frame := GetAnimationFrame(m.Animation)

	animStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#5FD7FF")).
		Bold(true).
		Padding(1, 2)

	sections := []string{
		gameStyles.title.Render("🌊 Calm Aquarium 🌊"),
		"",
		animStyle.Render(frame),
	}

	if msg := m.activeMessage(); msg != "" {
		sections = append(sections, "", gameStyles.status.Render(msg))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) adoptView() string {
	var choices []string
	for i, p := range pet.Personalities {
		cursor := " "
		if i == m.Personality%len(pet.Personalities) {
			cursor = ">"
		}
		choices = append(choices, fmt.Sprintf("%s %s", cursor, p))
	}

	sections := []string{
		gameStyles.title.Render("🫧 Adopt a fish 🫧"),
		"",
		gameStyles.status.Render("Name: " + m.NameInput + "█"),
		"",
		gameStyles.menuBox.Render(strings.Join(choices, "\n")),
	}
	if msg := m.activeMessage(); msg != "" {
		sections = append(sections, "", gameStyles.status.Render(msg))
	}
	sections = append(sections,
		"",
		gameStyles.status.Render("enter to adopt • tab for personality • esc to cancel"),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) emptyView() string {
	sections := []string{gameStyles.title.Render("🌊 Calm Aquarium 🌊"), ""}

	if d := m.Status.LastDeath; d != nil {
		sections = append(sections,
			gameStyles.title.Render("💀 "+d.Name+" 💀"),
			gameStyles.status.Render("Your fish has passed away..."),
			gameStyles.status.Render("Cause of death: "+pet.DeathReasonLabel(d.DeathReason)+causeSuffix(d.CauseOfDeath)),
			gameStyles.status.Render("They lived for "+pet.FormatLifetime(d.TotalLifetime)),
			"",
		)
	} else {
		sections = append(sections, gameStyles.status.Render("The tank is empty."), "")
	}

	if msg := m.activeMessage(); msg != "" {
		sections = append(sections, gameStyles.status.Render(msg), "")
	}

	sections = append(sections, gameStyles.status.Render("Press 'a' to adopt a new fish • q to quit"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func causeSuffix(cause string) string {
	if cause == "" {
		return ""
	}
	return " (" + cause + ")"
}
