package ui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"calmaquarium/internal/aquarium"
	"calmaquarium/internal/pet"
	"calmaquarium/internal/water"
)

// TimeNow is swapped out by tests
var TimeNow = time.Now

const (
	refreshInterval = time.Second
	messageDuration = 3 * time.Second
	maxRecentAlerts = 3
)

// Aquarium is the part of the session the TUI drives
type Aquarium interface {
	Status() aquarium.Status
	WaterChange() water.Info
	CreatePet(name string, personality pet.Personality) (*pet.Pet, error)
}

// Model represents the TUI state
type Model struct {
	aq             Aquarium
	Status         aquarium.Status
	Quitting       bool
	Adopting       bool
	NameInput      string
	Personality    int // index into pet.Personalities
	Message        string
	MessageExpires time.Time
	Animation      Animation
	Alerts         []aquarium.Alert
	Width          int
	Height         int
}

type tickMsg time.Time
type animTickMsg struct {
	started time.Time
}

// StatusMsg delivers a status published by the session
type StatusMsg aquarium.Status

// AlertMsg delivers a newly raised alert
type AlertMsg aquarium.Alert

// NewModel creates a model over a running aquarium
func NewModel(aq Aquarium) Model {
	st := aq.Status()
	return Model{
		aq:       aq,
		Status:   st,
		Adopting: st.Pet == nil && st.LastDeath == nil,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func animTick(start time.Time) tea.Cmd {
	return tea.Tick(AnimationFrameDuration, func(t time.Time) tea.Msg {
		return animTickMsg{started: start}
	})
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.Adopting {
			return m.updateAdopt(msg)
		}

		// While an animation is playing, ignore inputs except quit keys
		if m.Animation.Type != AnimNone {
			switch msg.String() {
			case "ctrl+c", "q":
				m.Quitting = true
				return m, tea.Quit
			default:
				return m, nil
			}
		}

		switch msg.String() {
		case "ctrl+c", "q":
			m.Quitting = true
			return m, tea.Quit
		case "w":
			info := m.aq.WaterChange()
			m.Status = m.aq.Status()
			m.setMessage(fmt.Sprintf("💧 Fresh water! Turbidity %.0f%%", info.Turbidity))
			m.startAnimation(AnimWaterChange)
			return m, animTick(m.Animation.StartTime)
		case "a":
			if m.Status.Pet != nil {
				m.setMessage("🐟 " + m.Status.Pet.Name + " already lives here")
				return m, nil
			}
			m.Adopting = true
			m.NameInput = ""
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case tickMsg:
		m.Status = m.aq.Status()
		return m, tick()

	case StatusMsg:
		m.Status = aquarium.Status(msg)
		return m, nil

	case AlertMsg:
		alert := aquarium.Alert(msg)
		m.Alerts = append(m.Alerts, alert)
		if len(m.Alerts) > maxRecentAlerts {
			m.Alerts = m.Alerts[len(m.Alerts)-maxRecentAlerts:]
		}
		m.setMessage(alert.Emoji + " " + alert.Message)
		return m, nil

	case animTickMsg:
		// Drop ticks that belong to an older animation
		if m.Animation.Type == AnimNone || !m.Animation.StartTime.Equal(msg.started) {
			return m, nil
		}

		m.Animation.Frame++
		if IsAnimationComplete(m.Animation) {
			m.Animation = Animation{}
			return m, nil
		}

		return m, animTick(m.Animation.StartTime)
	}

	return m, nil
}

func (m Model) updateAdopt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.Quitting = true
		return m, tea.Quit
	case tea.KeyEsc:
		m.Adopting = false
		m.NameInput = ""
		return m, nil
	case tea.KeyTab:
		m.Personality = (m.Personality + 1) % len(pet.Personalities)
		return m, nil
	case tea.KeyBackspace:
		if r := []rune(m.NameInput); len(r) > 0 {
			m.NameInput = string(r[:len(r)-1])
		}
		return m, nil
	case tea.KeySpace:
		m.NameInput += " "
		return m, nil
	case tea.KeyRunes:
		m.NameInput += string(msg.Runes)
		return m, nil
	case tea.KeyEnter:
		p, err := m.aq.CreatePet(m.NameInput, m.selectedPersonality())
		if err != nil {
			m.setMessage("⚠️ " + err.Error())
			return m, nil
		}
		m.Adopting = false
		m.NameInput = ""
		m.Status = m.aq.Status()
		m.setMessage("🎉 Welcome, " + p.Name + "!")
		m.startAnimation(AnimAdopt)
		return m, animTick(m.Animation.StartTime)
	}
	return m, nil
}

func (m Model) selectedPersonality() pet.Personality {
	return pet.Personalities[m.Personality%len(pet.Personalities)]
}

func (m *Model) setMessage(msg string) {
	m.Message = msg
	m.MessageExpires = TimeNow().Add(messageDuration)
}

func (m Model) activeMessage() string {
	if m.Message != "" && TimeNow().Before(m.MessageExpires) {
		return m.Message
	}
	return ""
}

func (m *Model) startAnimation(animType AnimationType) {
	m.Animation = Animation{
		Type:      animType,
		Frame:     0,
		StartTime: TimeNow(),
	}
}
