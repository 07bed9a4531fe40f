package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore keeps the snapshot as one indented JSON document
type FileStore struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewFileStore creates the parent directory of path if needed
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, NewStoreError("NewFileStore", "", fmt.Sprintf("failed to create directory: %v", err), ErrConnectionFailed)
	}
	return &FileStore{path: path, logger: logger}, nil
}

// Path returns the state file location
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the state file
func (s *FileStore) Load(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, NewStoreError("Load", "", "state file does not exist", ErrNotFound)
	}
	return decodeDocument(doc)
}

// Save merges the given sections into the state file. The new document is
// written to a temp file and renamed over the old one.
func (s *FileStore) Save(ctx context.Context, snap *Snapshot, sections ...Section) error {
	payloads, err := encodeSections("Save", snap, sections)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readLocked()
	if err != nil && !errors.Is(err, ErrInvalidData) {
		return err
	}
	if doc == nil {
		doc = make(map[string]json.RawMessage)
	}

	for sec, payload := range payloads {
		doc[string(sec)] = payload
	}

	updated := snap.LastUpdated
	if updated.IsZero() {
		updated = TimeNow()
	}
	version, _ := json.Marshal(CurrentSchemaVersion)
	stamp, _ := json.Marshal(updated.UTC())
	doc["schema_version"] = version
	doc["last_updated"] = stamp

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return NewStoreError("Save", "", fmt.Sprintf("failed to serialize: %v", err), ErrInvalidData)
	}
	return s.writeLocked(data)
}

// Close is a no-op for files
func (s *FileStore) Close() error {
	return nil
}

// readLocked returns nil without error when the file does not exist. A
// corrupt file is reported as ErrInvalidData.
func (s *FileStore) readLocked() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, NewStoreError("Load", "", fmt.Sprintf("failed to read state file: %v", err), err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("state file is corrupt", "path", s.path, "error", err)
		return nil, NewStoreError("Load", "", fmt.Sprintf("failed to parse state file: %v", err), ErrInvalidData)
	}
	return doc, nil
}

func (s *FileStore) writeLocked(data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return NewStoreError("Save", "", fmt.Sprintf("failed to create temp file: %v", err), ErrWriteFailed)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return NewStoreError("Save", "", fmt.Sprintf("failed to write state: %v", err), ErrWriteFailed)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return NewStoreError("Save", "", fmt.Sprintf("failed to write state: %v", err), ErrWriteFailed)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return NewStoreError("Save", "", fmt.Sprintf("failed to replace state file: %v", err), ErrWriteFailed)
	}
	return nil
}

func decodeDocument(doc map[string]json.RawMessage) (*Snapshot, error) {
	version := CurrentSchemaVersion
	if raw, ok := doc["schema_version"]; ok {
		if err := json.Unmarshal(raw, &version); err != nil {
			return nil, NewStoreError("Load", "", "bad schema version", ErrInvalidData)
		}
	}
	var updated time.Time
	if raw, ok := doc["last_updated"]; ok {
		if err := json.Unmarshal(raw, &updated); err != nil {
			return nil, NewStoreError("Load", "", "bad timestamp", ErrInvalidData)
		}
	}

	payloads := make(map[Section][]byte, len(doc))
	for key, raw := range doc {
		if key == "schema_version" || key == "last_updated" {
			continue
		}
		payloads[Section(key)] = raw
	}
	return decodeSections("Load", version, updated, payloads)
}
