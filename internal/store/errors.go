package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Load when nothing was saved yet.
	ErrNotFound = errors.New("snapshot not found")

	// ErrUnsupportedVersion is returned when the saved schema is newer than
	// this build understands.
	ErrUnsupportedVersion = errors.New("unsupported schema version")

	// ErrInvalidData is returned when a section cannot be encoded or decoded.
	ErrInvalidData = errors.New("invalid data format")

	ErrConnectionFailed = errors.New("database connection failed")
	ErrMigrationFailed  = errors.New("database migration failed")
	ErrTxFailed         = errors.New("transaction failed")
	ErrWriteFailed      = errors.New("write failed")
	ErrUnknownDriver    = errors.New("unknown store driver")
)

// StoreError wraps errors with additional context.
type StoreError struct {
	Op      string  // Operation that failed (e.g., "Save")
	Section Section // Snapshot section if applicable
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Section != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Section, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op string, section Section, message string, err error) *StoreError {
	return &StoreError{
		Op:      op,
		Section: section,
		Message: message,
		Err:     err,
	}
}
