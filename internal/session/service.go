package session

import (
	"context"
	"sync"

	"github.com/feedfm/fmsession/internal/engine"
	"github.com/feedfm/fmsession/internal/models"
)

// runner is implemented by engines that need a goroutine of their own,
// such as engine.Simulator.
type runner interface {
	Run(ctx context.Context)
}

// Service owns the lifetime of one Player at a time. Initialize creates the
// engine and the Player; Shutdown discards both so that the next Initialize
// starts a new engine lifetime. This is the only way out of UNAVAILABLE.
type Service struct {
	newEngine func() engine.Engine

	mu     sync.Mutex
	player *Player
	cancel context.CancelFunc
}

// NewService returns a Service that builds engines with newEngine.
func NewService(newEngine func() engine.Engine) *Service {
	return &Service{newEngine: newEngine}
}

// Initialize creates and initializes the Player. Empty credentials default
// to "demo". If a Player already exists it is returned as is and cfg is
// ignored. ctx bounds the Player's event loop.
func (s *Service) Initialize(ctx context.Context, cfg Config) (*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player != nil {
		return s.player, nil
	}

	eng := s.newEngine()
	p := New(eng, cfg)
	runCtx, cancel := context.WithCancel(ctx)
	if r, ok := eng.(runner); ok {
		go r.Run(runCtx)
	}
	go p.Run(runCtx)

	if err := p.Initialize(); err != nil {
		cancel()
		p.Close()
		return nil, err
	}
	s.player = p
	s.cancel = cancel
	return p, nil
}

// Player returns the current Player, or models.ErrNotInitialized.
func (s *Service) Player() (*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player == nil {
		return nil, models.ErrNotInitialized
	}
	return s.player, nil
}

// Shutdown closes the current Player, if any.
func (s *Service) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player == nil {
		return
	}
	s.player.Close()
	s.cancel()
	s.player = nil
	s.cancel = nil
}
