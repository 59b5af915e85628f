// Package config loads the daemon settings and persists the session
// identity between runs.
package config

import (
	"sync"

	"github.com/feedfm/fmsession/internal/models"
)

// Store persists the session identity.
type Store interface {
	// Load returns the persisted record, or defaults if nothing was saved.
	Load() (*models.Persisted, error)

	// Save persists the record. Implementations may debounce rapid saves.
	Save(p *models.Persisted) error

	// Path returns the file path used by this store.
	Path() string

	// Flush forces an immediate write of any pending record.
	Flush() error
}

var updateMu sync.Mutex

// Update loads the record, lets fn modify it and saves it back. The player
// and the streamer share one record, so updates are serialized.
func Update(s Store, fn func(*models.Persisted)) error {
	if s == nil {
		return nil
	}
	updateMu.Lock()
	defer updateMu.Unlock()
	rec, err := s.Load()
	if err != nil {
		return err
	}
	fn(rec)
	return s.Save(rec)
}
