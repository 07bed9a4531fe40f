package store

import (
	"encoding/json"
	"fmt"
	"time"

	"calmaquarium/internal/pet"
	"calmaquarium/internal/usage"
	"calmaquarium/internal/water"
)

// CurrentSchemaVersion is written with every save
const CurrentSchemaVersion = 1

// Section names one independently saved part of the snapshot
type Section string

const (
	SectionPet          Section = "pet"
	SectionDeadPets     Section = "dead_pets"
	SectionUsedNames    Section = "used_names"
	SectionRestrictions Section = "restrictions"
	SectionUsageCache   Section = "usage_cache"
	SectionStats        Section = "stats"
	SectionSettings     Section = "settings"
	SectionWater        Section = "water"
)

// AllSections in save order
var AllSections = []Section{
	SectionPet,
	SectionDeadPets,
	SectionUsedNames,
	SectionRestrictions,
	SectionUsageCache,
	SectionStats,
	SectionSettings,
	SectionWater,
}

// GameStats counts lifetime events of the aquarium
type GameStats struct {
	PetsCreated        int           `json:"pets_created"`
	Deaths             int           `json:"deaths"`
	ManualWaterChanges int           `json:"manual_water_changes"`
	WeeklyResets       int           `json:"weekly_resets"`
	LongestLifetime    time.Duration `json:"longest_lifetime"`
}

// Settings are user preferences persisted with the game
type Settings struct {
	NotificationsEnabled bool   `json:"notifications_enabled"`
	DataSource           string `json:"data_source"`
}

// DefaultSettings for a fresh install
func DefaultSettings() Settings {
	return Settings{NotificationsEnabled: true, DataSource: "file"}
}

// Snapshot is the full persisted game state
type Snapshot struct {
	SchemaVersion int                    `json:"schema_version"`
	LastUpdated   time.Time              `json:"last_updated"`
	Pet           *pet.Pet               `json:"pet"`
	DeadPets      []pet.DeadPet          `json:"dead_pets"`
	UsedNames     []string               `json:"used_names"`
	Restrictions  []usage.AppRestriction `json:"restrictions"`
	UsageCache    []usage.AppUsageData   `json:"usage_cache"`
	Stats         GameStats              `json:"stats"`
	Settings      Settings               `json:"settings"`
	Water         *water.State           `json:"water"`
}

// NewSnapshot returns the state of a fresh install
func NewSnapshot() *Snapshot {
	return &Snapshot{
		SchemaVersion: CurrentSchemaVersion,
		Settings:      DefaultSettings(),
	}
}

// field returns a pointer to the snapshot field holding section
func (s *Snapshot) field(section Section) (any, error) {
	switch section {
	case SectionPet:
		return &s.Pet, nil
	case SectionDeadPets:
		return &s.DeadPets, nil
	case SectionUsedNames:
		return &s.UsedNames, nil
	case SectionRestrictions:
		return &s.Restrictions, nil
	case SectionUsageCache:
		return &s.UsageCache, nil
	case SectionStats:
		return &s.Stats, nil
	case SectionSettings:
		return &s.Settings, nil
	case SectionWater:
		return &s.Water, nil
	}
	return nil, fmt.Errorf("unknown section %q", section)
}

// encodeSections marshals the requested sections, all of them when none
// are given
func encodeSections(op string, s *Snapshot, sections []Section) (map[Section][]byte, error) {
	if len(sections) == 0 {
		sections = AllSections
	}
	out := make(map[Section][]byte, len(sections))
	for _, sec := range sections {
		ptr, err := s.field(sec)
		if err != nil {
			return nil, NewStoreError(op, sec, err.Error(), ErrInvalidData)
		}
		payload, err := json.Marshal(ptr)
		if err != nil {
			return nil, NewStoreError(op, sec, fmt.Sprintf("failed to serialize: %v", err), ErrInvalidData)
		}
		out[sec] = payload
	}
	return out, nil
}

// decodeSections builds a snapshot from raw section payloads. Unknown
// sections written by other builds are skipped.
func decodeSections(op string, version int, updated time.Time, payloads map[Section][]byte) (*Snapshot, error) {
	if version > CurrentSchemaVersion {
		return nil, NewStoreError(op, "", fmt.Sprintf("schema version %d is newer than %d", version, CurrentSchemaVersion), ErrUnsupportedVersion)
	}

	s := NewSnapshot()
	s.SchemaVersion = version
	s.LastUpdated = updated
	for sec, payload := range payloads {
		ptr, err := s.field(sec)
		if err != nil {
			continue
		}
		if err := json.Unmarshal(payload, ptr); err != nil {
			return nil, NewStoreError(op, sec, fmt.Sprintf("failed to parse: %v", err), ErrInvalidData)
		}
	}
	return s, nil
}
