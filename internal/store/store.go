// Package store persists the aquarium snapshot, in SQLite or a JSON file.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Store loads and saves snapshots
type Store interface {
	// Load returns the saved snapshot or ErrNotFound.
	Load(ctx context.Context) (*Snapshot, error)

	// Save writes the named sections of snap, or all of them when none are
	// given. Sections not named keep their saved value.
	Save(ctx context.Context, snap *Snapshot, sections ...Section) error

	Close() error
}

// Supported drivers
const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"
)

// Testable time function
var TimeNow = time.Now

// Open creates the store for driver at path
func Open(driver, path string, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store", "driver", driver)

	switch driver {
	case DriverSQLite, "":
		return NewSQLiteStore(path, logger)
	case DriverFile:
		return NewFileStore(path, logger)
	}
	return nil, NewStoreError("Open", "", fmt.Sprintf("driver %q", driver), ErrUnknownDriver)
}
