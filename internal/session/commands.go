package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/feedfm/fmsession/internal/config"
	"github.com/feedfm/fmsession/internal/events"
	"github.com/feedfm/fmsession/internal/metrics"
	"github.com/feedfm/fmsession/internal/models"
)

// Initialize starts the engine with the configured credentials. It may be
// called once; every other command fails with models.ErrNotInitialized
// until it has been.
func (p *Player) Initialize() error {
	if p.closed.Load() {
		return models.ErrClosed
	}
	next, err := p.apply(func(s *models.Session) error {
		if s.Initialized {
			return models.ErrAlreadyInitialized
		}
		s.Initialized = true
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("session: initializing engine", "remote_commands", p.cfg.HandleRemoteCommands)
	p.eng.InitializeWithToken(p.cfg.Token, p.cfg.Secret, p.cfg.HandleRemoteCommands)
	if next.Volume != models.DefaultVolume {
		p.eng.SetVolume(next.Volume)
	}
	p.metrics.Command(source, "initialize", metrics.OutcomeSent)
	return nil
}

// usable returns the usage error for the current lifecycle, if any.
func (p *Player) usable() error {
	if p.closed.Load() {
		return models.ErrClosed
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.state.Initialized {
		return models.ErrNotInitialized
	}
	return nil
}

func (p *Player) unavailable() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.Available == models.Unavailable
}

// dispatch issues a playback command. Usage errors are returned; while the
// engine reports nothing playable the command is dropped silently.
func (p *Player) dispatch(name string, call func()) error {
	if err := p.usable(); err != nil {
		p.metrics.Command(source, name, metrics.OutcomeError)
		return err
	}
	if p.unavailable() {
		slog.Debug("session: command ignored while unavailable", "command", name)
		p.metrics.Command(source, name, metrics.OutcomeNoop)
		return nil
	}
	call()
	p.metrics.Command(source, name, metrics.OutcomeSent)
	return nil
}

// Play asks the engine to start or resume playback.
func (p *Player) Play() error { return p.dispatch("play", p.eng.Play) }

// Pause asks the engine to pause.
func (p *Player) Pause() error { return p.dispatch("pause", p.eng.Pause) }

// Stop asks the engine to stop.
func (p *Player) Stop() error { return p.dispatch("stop", p.eng.Stop) }

// Skip asks the engine for the next song. A refusal arrives later as a
// skip-failed notification; there is no timeout.
func (p *Player) Skip() error { return p.dispatch("skip", p.eng.Skip) }

// SeekCurrentStationBy moves playback forward by seconds.
func (p *Player) SeekCurrentStationBy(seconds float64) error {
	return p.dispatch("seek", func() { p.eng.SeekCurrentStationBy(seconds) })
}

// SetVolume stores v and forwards it to the engine. The engine never
// confirms a volume, so the stored value is authoritative.
func (p *Player) SetVolume(v float64) error {
	if !models.ValidVolume(v) {
		return models.ErrVolumeRange(v)
	}
	if err := p.usable(); err != nil {
		return err
	}
	p.apply(func(s *models.Session) error {
		s.Volume = v
		return nil
	})
	if err := config.Update(p.cfg.Store, func(rec *models.Persisted) { rec.Volume = &v }); err != nil {
		slog.Warn("session: failed to persist volume", "err", err)
	}
	return p.dispatch("volume", func() { p.eng.SetVolume(v) })
}

// SetActiveStation asks the engine to switch stations. The active station
// changes when the engine confirms with a station-change event. An id
// missing from a known station list is rejected.
func (p *Player) SetActiveStation(id int) error {
	if err := p.usable(); err != nil {
		p.metrics.Command(source, "station", metrics.OutcomeError)
		return err
	}
	s := p.internalState()
	if s.Available != models.Unavailable && len(s.Stations) > 0 && s.StationByID(id) == nil {
		p.metrics.Command(source, "station", metrics.OutcomeError)
		return models.ErrNotFound(fmt.Sprintf("station %d not found", id))
	}
	return p.dispatch("station", func() { p.eng.SetActiveStation(id) })
}

// SetClientID asks the engine to adopt an existing identity. If
// onUpdated is non-nil it runs once with the confirmed id.
func (p *Player) SetClientID(id string, onUpdated func(clientID string)) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.ErrBadRequest("client id is required")
	}
	return p.identityCommand("client_id", onUpdated, func() { p.eng.SetClientID(id) })
}

// CreateNewClientID asks the engine for a fresh identity. If onUpdated is
// non-nil it runs once with the new id.
func (p *Player) CreateNewClientID(onUpdated func(clientID string)) error {
	return p.identityCommand("client_id_new", onUpdated, p.eng.CreateNewClientID)
}

// identityCommand is not gated on availability: a session-updated event
// still carries the new identity when nothing is playable.
func (p *Player) identityCommand(name string, onUpdated func(string), call func()) error {
	if err := p.usable(); err != nil {
		p.metrics.Command(source, name, metrics.OutcomeError)
		return err
	}
	if onUpdated != nil {
		p.reg.Once(events.KindSessionUpdated, func(n events.Notification) {
			onUpdated(n.(events.SessionUpdated).ClientID)
		})
	}
	call()
	p.metrics.Command(source, name, metrics.OutcomeSent)
	return nil
}

// EnableAudioSession is forwarded as is. Engines without an OS audio
// session ignore it.
func (p *Player) EnableAudioSession(enable bool) error {
	if err := p.usable(); err != nil {
		return err
	}
	p.eng.EnableAudioSession(enable)
	p.metrics.Command(source, "audio_session", metrics.OutcomeSent)
	return nil
}

// LogEvent forwards an analytics event. Calls beyond the configured rate
// are dropped.
func (p *Player) LogEvent(name string, params map[string]interface{}) error {
	if name == "" {
		return models.ErrBadRequest("event name is required")
	}
	if err := p.usable(); err != nil {
		return err
	}
	if !p.limiter.Allow() {
		slog.Warn("session: log event rate exceeded, dropping", "event", name)
		p.metrics.Command(source, "log_event", metrics.OutcomeDropped)
		return nil
	}
	p.eng.LogEvent(name, models.CloneMap(params))
	p.metrics.Command(source, "log_event", metrics.OutcomeSent)
	return nil
}

// MaxSeekableLengthInSeconds asks the engine how far the current song can
// be seeked.
func (p *Player) MaxSeekableLengthInSeconds(ctx context.Context) (float64, error) {
	if err := p.usable(); err != nil {
		return 0, err
	}
	v, err := p.eng.MaxSeekableLengthInSeconds(ctx)
	if err != nil {
		return 0, fmt.Errorf("session: max seekable length: %w", err)
	}
	return v, nil
}

// CanSkip asks the engine whether the current song may be skipped.
func (p *Player) CanSkip(ctx context.Context) (bool, error) {
	if err := p.usable(); err != nil {
		return false, err
	}
	v, err := p.eng.CanSkip(ctx)
	if err != nil {
		return false, fmt.Errorf("session: can skip: %w", err)
	}
	return v, nil
}
