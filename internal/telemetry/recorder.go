// Package telemetry appends per-tick simulation records to a CSV file.
package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gocarina/gocsv"
)

// TicksFile is the CSV file name inside the telemetry directory
const TicksFile = "ticks.csv"

// TickRecord is one simulation tick
type TickRecord struct {
	Time            string  `csv:"time"`
	PetID           string  `csv:"pet_id"`
	Health          float64 `csv:"health"`
	Status          string  `csv:"status"`
	UsageMinutes    float64 `csv:"usage_minutes"`
	UsageDamage     float64 `csv:"usage_damage"`
	NetDamage       float64 `csv:"net_damage"`
	Turbidity       float64 `csv:"turbidity"`
	WaterLevel      string  `csv:"water_level"`
	FishSpeed       float64 `csv:"fish_speed"`
	MovementPattern string  `csv:"movement_pattern"`
}

// Recorder writes tick records. A nil Recorder discards everything.
type Recorder struct {
	mu            sync.Mutex
	file          *os.File
	headerWritten bool
}

// NewRecorder opens dir/ticks.csv for appending.
// Returns nil if dir is empty (recording disabled).
func NewRecorder(dir string) (*Recorder, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating telemetry directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, TicksFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", TicksFile, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", TicksFile, err)
	}

	return &Recorder{file: f, headerWritten: info.Size() > 0}, nil
}

// Record appends one tick
func (r *Recorder) Record(rec TickRecord) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	records := []TickRecord{rec}
	if !r.headerWritten {
		if err := gocsv.Marshal(records, r.file); err != nil {
			return fmt.Errorf("writing tick: %w", err)
		}
		r.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, r.file); err != nil {
		return fmt.Errorf("writing tick: %w", err)
	}
	return nil
}

// Close closes the file
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}
