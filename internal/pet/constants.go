package pet

// Game constants
const (
	MaxNameLength    = 12
	IDPrefix         = "pet_"
	NeglectCause     = "Neglect"
	MaxStatusHistory = 20 // Keep last 20 status transitions

	// Status emojis
	StatusEmojiThriving = "🐟"
	StatusEmojiAtRisk   = "🐠"
	StatusEmojiCritical = "🫧"
	StatusEmojiDead     = "💀"
)

// Personality is one of the fixed fish temperaments
type Personality string

const (
	PersonalityActive  Personality = "active"
	PersonalityCalm    Personality = "calm"
	PersonalityPlayful Personality = "playful"
	PersonalityShy     Personality = "shy"
	PersonalityCurious Personality = "curious"
)

// Personalities lists every valid personality in display order
var Personalities = []Personality{
	PersonalityActive,
	PersonalityCalm,
	PersonalityPlayful,
	PersonalityShy,
	PersonalityCurious,
}

// Valid reports whether p is one of the known personalities
func (p Personality) Valid() bool {
	for _, known := range Personalities {
		if p == known {
			return true
		}
	}
	return false
}

// DeathReason records why a pet died
type DeathReason string

const (
	DeathTimeLimitExceeded DeathReason = "time_limit_exceeded"
	DeathNeglect           DeathReason = "neglect"
	DeathAppOveruse        DeathReason = "app_overuse"
)
