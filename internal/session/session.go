// Package session implements the station player session: the single-writer
// state a native engine's events are reconciled into, and the commands that
// drive the engine.
package session

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/feedfm/fmsession/internal/availability"
	"github.com/feedfm/fmsession/internal/config"
	"github.com/feedfm/fmsession/internal/engine"
	"github.com/feedfm/fmsession/internal/events"
	"github.com/feedfm/fmsession/internal/metrics"
	"github.com/feedfm/fmsession/internal/models"
)

const source = events.SourcePlayer

// DefaultCredential is used for a token or secret left empty.
const DefaultCredential = "demo"

// Defaults for the LogEvent token bucket.
const (
	DefaultLogEventRate  = 5
	DefaultLogEventBurst = 10
)

// Config holds the player's engine credentials and collaborators. Store and
// Metrics may be nil.
type Config struct {
	Token                string
	Secret               string
	HandleRemoteCommands bool

	Store   config.Store
	Metrics *metrics.Metrics

	LogEventRate  float64
	LogEventBurst int
}

func (c Config) withDefaults() Config {
	if c.Token == "" {
		c.Token = DefaultCredential
	}
	if c.Secret == "" {
		c.Secret = DefaultCredential
	}
	if c.LogEventRate <= 0 {
		c.LogEventRate = DefaultLogEventRate
	}
	if c.LogEventBurst <= 0 {
		c.LogEventBurst = DefaultLogEventBurst
	}
	return c
}

// Player is the station player session. Engine events are applied one at a
// time by Handle; commands read the current state and call the engine.
type Player struct {
	eng     engine.Engine
	cfg     Config
	metrics *metrics.Metrics

	mu    sync.RWMutex
	state models.Session

	// handleMu serializes event handling, notifications included.
	handleMu sync.Mutex

	reg     *events.Registry
	gate    *availability.Gate
	limiter *rate.Limiter

	// storedClientID is the identity from the previous run. It is restored
	// once, when the engine first resolves available.
	storedClientID string

	closed    atomic.Bool
	stop      chan struct{}
	closeOnce sync.Once
}

// New creates a Player for eng. The persisted volume and client id are
// loaded from cfg.Store if one is set.
func New(eng engine.Engine, cfg Config) *Player {
	cfg = cfg.withDefaults()
	p := &Player{
		eng:     eng,
		cfg:     cfg,
		metrics: cfg.Metrics,
		state:   models.DefaultSession(),
		reg:     events.NewRegistry(),
		gate:    availability.New(),
		limiter: rate.NewLimiter(rate.Limit(cfg.LogEventRate), cfg.LogEventBurst),
		stop:    make(chan struct{}),
	}
	if cfg.Store != nil {
		if rec, err := cfg.Store.Load(); err == nil {
			p.storedClientID = rec.ClientID
			if rec.Volume != nil && models.ValidVolume(*rec.Volume) {
				p.state.Volume = *rec.Volume
			}
		}
	}
	return p
}

// Snapshot returns a copy of the state as consumers see it.
func (p *Player) Snapshot() models.Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.state.DeepCopy()
	s.State = s.State.Public()
	return s
}

// internalState returns the state including reserved values such as OFFLINE.
func (p *Player) internalState() models.Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.DeepCopy()
}

// apply is the only way the state changes: fn edits a copy, and the copy
// replaces the state if fn returns nil.
func (p *Player) apply(fn func(*models.Session) error) (models.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := p.state.DeepCopy()
	if err := fn(&next); err != nil {
		return models.Session{}, err
	}
	p.state = next
	return p.state.DeepCopy(), nil
}

// Run feeds engine events to Handle until ctx is done, the engine closes
// its channel, or Close is called.
func (p *Player) Run(ctx context.Context) {
	evs := p.eng.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case raw, ok := <-evs:
			if !ok {
				return
			}
			p.Handle(raw)
		}
	}
}

// Close stops Run. Commands issued afterwards return models.ErrClosed.
func (p *Player) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.stop)
	})
}

// Registry exposes the notification registry.
func (p *Player) Registry() *events.Registry { return p.reg }

// On subscribes h to kind.
func (p *Player) On(kind events.Kind, h events.Handler) func() { return p.reg.On(kind, h) }

// Once subscribes h to the next notification of kind.
func (p *Player) Once(kind events.Kind, h events.Handler) func() { return p.reg.Once(kind, h) }

// OnAny subscribes h to every notification.
func (p *Player) OnAny(h events.Handler) func() { return p.reg.OnAny(h) }

// OnStateChange subscribes to playback state changes.
func (p *Player) OnStateChange(fn func(models.PlaybackState)) func() {
	return p.reg.On(events.KindStateChange, func(n events.Notification) {
		fn(n.(events.StateChange).State)
	})
}

// OnPlayStarted subscribes to new songs.
func (p *Player) OnPlayStarted(fn func(models.Play)) func() {
	return p.reg.On(events.KindPlayStarted, func(n events.Notification) {
		fn(n.(events.PlayStarted).Play)
	})
}

// OnStationChange subscribes to active station changes. The station is nil
// when the engine names a station the session does not know.
func (p *Player) OnStationChange(fn func(*models.Station)) func() {
	return p.reg.On(events.KindStationChange, func(n events.Notification) {
		fn(n.(events.StationChange).Station)
	})
}

// OnSessionUpdated subscribes to confirmed identity changes.
func (p *Player) OnSessionUpdated(fn func(clientID string)) func() {
	return p.reg.On(events.KindSessionUpdated, func(n events.Notification) {
		fn(n.(events.SessionUpdated).ClientID)
	})
}

// OnSkipFailed subscribes to refused skips.
func (p *Player) OnSkipFailed(fn func()) func() {
	return p.reg.On(events.KindSkipFailed, func(events.Notification) { fn() })
}

// OnElapsed subscribes to elapsed ticks.
func (p *Player) OnElapsed(fn func(seconds float64)) func() {
	return p.reg.On(events.KindElapsed, func(n events.Notification) {
		fn(n.(events.Elapsed).Seconds)
	})
}

// OnMusicQueued subscribes to music-queued notifications.
func (p *Player) OnMusicQueued(fn func()) func() {
	return p.reg.On(events.KindMusicQueued, func(events.Notification) { fn() })
}

// WhenAvailable runs cb once availability is known: immediately if it
// already is, otherwise when the engine answers. There is no timeout.
func (p *Player) WhenAvailable(cb func(available bool)) {
	p.gate.WhenAvailable(cb)
}

// WaitAvailable blocks until availability is known or ctx is done.
func (p *Player) WaitAvailable(ctx context.Context) (bool, error) {
	return p.gate.Wait(ctx)
}

// Availability returns the current availability.
func (p *Player) Availability() models.Availability {
	return p.gate.State()
}
