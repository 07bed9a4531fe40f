package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	metaSchemaVersion = "schema_version"
	metaLastUpdated   = "last_updated"
)

// SQLiteStore keeps one row per snapshot section
type SQLiteStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

type sectionRow struct {
	Section string `db:"section"`
	Payload string `db:"payload"`
}

type metaRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// NewSQLiteStore opens the database at path and runs migrations
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, NewStoreError("NewSQLiteStore", "", fmt.Sprintf("failed to create directory: %v", err), ErrConnectionFailed)
		}
	}

	db, err := sqlx.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "failed to open database", ErrConnectionFailed)
	}
	// One writer; also keeps an in-memory database on a single connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", err.Error(), ErrMigrationFailed)
	}

	logger.Debug("sqlite store opened", "path", path)
	return &SQLiteStore{db: db, logger: logger}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Load reads every section
func (s *SQLiteStore) Load(ctx context.Context) (*Snapshot, error) {
	var meta []metaRow
	if err := s.db.SelectContext(ctx, &meta, `SELECT key, value FROM snapshot_meta`); err != nil {
		return nil, NewStoreError("Load", "", err.Error(), err)
	}
	var rows []sectionRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT section, payload FROM snapshot_sections`); err != nil {
		return nil, NewStoreError("Load", "", err.Error(), err)
	}
	if len(rows) == 0 && len(meta) == 0 {
		return nil, NewStoreError("Load", "", "nothing saved yet", ErrNotFound)
	}

	version := CurrentSchemaVersion
	var updated time.Time
	for _, m := range meta {
		switch m.Key {
		case metaSchemaVersion:
			v, err := strconv.Atoi(m.Value)
			if err != nil {
				return nil, NewStoreError("Load", "", fmt.Sprintf("bad schema version %q", m.Value), ErrInvalidData)
			}
			version = v
		case metaLastUpdated:
			t, err := time.Parse(time.RFC3339Nano, m.Value)
			if err != nil {
				return nil, NewStoreError("Load", "", fmt.Sprintf("bad timestamp %q", m.Value), ErrInvalidData)
			}
			updated = t
		}
	}

	payloads := make(map[Section][]byte, len(rows))
	for _, r := range rows {
		payloads[Section(r.Section)] = []byte(r.Payload)
	}
	return decodeSections("Load", version, updated, payloads)
}

// Save upserts the given sections and the meta rows in one transaction
func (s *SQLiteStore) Save(ctx context.Context, snap *Snapshot, sections ...Section) error {
	payloads, err := encodeSections("Save", snap, sections)
	if err != nil {
		return err
	}

	updated := snap.LastUpdated
	if updated.IsZero() {
		updated = TimeNow()
	}
	stamp := updated.UTC().Format(time.RFC3339Nano)

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		for sec, payload := range payloads {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO snapshot_sections (section, payload, updated_at) VALUES (?, ?, ?)
				ON CONFLICT(section) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
				string(sec), string(payload), stamp); err != nil {
				return NewStoreError("Save", sec, err.Error(), ErrWriteFailed)
			}
		}

		meta := map[string]string{
			metaSchemaVersion: strconv.Itoa(CurrentSchemaVersion),
			metaLastUpdated:   stamp,
		}
		for key, value := range meta {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO snapshot_meta (key, value) VALUES (?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value); err != nil {
				return NewStoreError("Save", "", err.Error(), ErrWriteFailed)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "failed to begin transaction", ErrTxFailed)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "failed to commit transaction", ErrTxFailed)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
