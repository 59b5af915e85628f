package config

import (
	"sync"

	"github.com/feedfm/fmsession/internal/models"
)

// MemStore is an in-memory Store for tests that never writes to disk.
type MemStore struct {
	mu    sync.Mutex
	rec   *models.Persisted
	saves int
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// NewMemStoreWith returns an in-memory store preloaded with p.
func NewMemStoreWith(p models.Persisted) *MemStore {
	cp := p.DeepCopy()
	return &MemStore{rec: &cp}
}

// Load returns a copy of the stored record, or defaults if none has been saved.
func (m *MemStore) Load() (*models.Persisted, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		def := models.DefaultPersisted()
		return &def, nil
	}
	cp := m.rec.DeepCopy()
	return &cp, nil
}

// Save stores a copy of the record.
func (m *MemStore) Save(p *models.Persisted) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p.DeepCopy()
	m.rec = &cp
	m.saves++
	return nil
}

// Saves returns how many times Save was called.
func (m *MemStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Path returns ":memory:" to indicate this is an in-memory store.
func (m *MemStore) Path() string { return ":memory:" }

// Flush is a no-op for in-memory stores.
func (m *MemStore) Flush() error { return nil }

var _ Store = (*MemStore)(nil)
