// Package auth guards the control API with API keys. Keys come from the
// daemon settings and can be replaced at runtime when the settings file
// changes.
package auth

import (
	"crypto/subtle"
	"log/slog"
	"strings"
	"sync"
)

// Service holds the accepted API keys.
type Service struct {
	mu   sync.RWMutex
	keys []string
}

// NewService creates a Service accepting keys. With no keys the API is open.
func NewService(keys []string) *Service {
	s := &Service{}
	s.SetKeys(keys)
	return s
}

// SetKeys replaces the accepted keys. Blank entries are ignored.
func (s *Service) SetKeys(keys []string) {
	clean := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			clean = append(clean, k)
		}
	}
	s.mu.Lock()
	s.keys = clean
	s.mu.Unlock()
	slog.Debug("auth: keys updated", "count", len(clean))
}

// IsOpenMode returns true if no keys are configured.
// In open mode, all requests are allowed without authentication.
func (s *Service) IsOpenMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys) == 0
}

// VerifyKey returns true if key matches a configured key.
// Uses constant-time comparison to prevent timing attacks.
func (s *Service) VerifyKey(key string) bool {
	if key == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(k)) == 1 {
			return true
		}
	}
	return false
}
