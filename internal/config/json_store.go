package config

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/feedfm/fmsession/internal/models"
)

const (
	sessionFileName = "session.json"
	debounceDelay   = 500 * time.Millisecond
)

// JSONStore is an atomic JSON file store with debounced writes.
type JSONStore struct {
	mu      sync.Mutex
	path    string
	timer   *time.Timer
	pending *models.Persisted
}

// NewJSONStore creates a new JSON store in the given config directory.
func NewJSONStore(configDir string) *JSONStore {
	return &JSONStore{
		path: filepath.Join(configDir, sessionFileName),
	}
}

// Path returns the file path used by this store.
func (s *JSONStore) Path() string { return s.path }

// Load returns the pending record if a save is scheduled, otherwise reads
// the file. Returns defaults on ENOENT or parse errors.
func (s *JSONStore) Load() (*models.Persisted, error) {
	s.mu.Lock()
	if s.pending != nil {
		cp := s.pending.DeepCopy()
		s.mu.Unlock()
		return &cp, nil
	}
	s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			def := models.DefaultPersisted()
			return &def, nil
		}
		return nil, err
	}

	var p models.Persisted
	if err := json.Unmarshal(data, &p); err != nil {
		slog.Warn("config: corrupt session file, using defaults", "path", s.path, "err", err)
		def := models.DefaultPersisted()
		return &def, nil
	}

	migratePersisted(&p)
	return &p, nil
}

// Save schedules a debounced write. The file is written after 500ms with
// no further Save calls.
func (s *JSONStore) Save(p *models.Persisted) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := p.DeepCopy()
	s.pending = &cp

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(debounceDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		rec := s.pending
		if rec == nil {
			return
		}
		s.pending = nil
		if err := s.writeAtomic(rec); err != nil {
			slog.Error("config: failed to write session", "path", s.path, "err", err)
		}
	})
	return nil
}

// Flush forces an immediate write of any pending record.
func (s *JSONStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	rec := s.pending
	if rec == nil {
		return nil
	}
	s.pending = nil
	return s.writeAtomic(rec)
}

func (s *JSONStore) writeAtomic(p *models.Persisted) error {
	rec := p.DeepCopy()
	rec.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	// Write to temp file, then rename (atomic on Linux)
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}

var _ Store = (*JSONStore)(nil)
