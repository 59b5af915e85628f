package session

import (
	"errors"
	"log/slog"

	"github.com/feedfm/fmsession/internal/config"
	"github.com/feedfm/fmsession/internal/engine"
	"github.com/feedfm/fmsession/internal/events"
	"github.com/feedfm/fmsession/internal/models"
	"github.com/feedfm/fmsession/internal/normalize"
)

// errNoChange aborts an apply that would not change anything visible.
var errNoChange = errors.New("session: no change")

// Suppression reasons reported to metrics.
const (
	reasonSuppressed   = "suppressed"
	reasonUnknown      = "unknown"
	reasonDuplicate    = "duplicate"
	reasonNoStations   = "no-stations"
	reasonRegression   = "elapsed-regression"
	reasonClosed       = "closed"
	reasonAvailability = "already-resolved"
)

// Handle applies one raw engine event and notifies subscribers. Calls are
// serialized: the next event is not applied until every handler for the
// previous one has returned. Handlers must not call Handle.
func (p *Player) Handle(raw engine.RawEvent) {
	p.handleMu.Lock()
	defer p.handleMu.Unlock()

	if p.closed.Load() {
		p.metrics.Suppressed(source, reasonClosed)
		return
	}
	p.metrics.Event(source, raw.Name)

	ev, err := normalize.Player(raw, p.eng.Codes())
	if err != nil {
		reason := reasonSuppressed
		if errors.Is(err, normalize.ErrUnknownEvent) {
			reason = reasonUnknown
		}
		slog.Debug("session: event dropped", "event", raw.Name, "reason", reason)
		p.metrics.Suppressed(source, reason)
		return
	}

	switch e := ev.(type) {
	case normalize.Availability:
		p.handleAvailability(e)
	case normalize.SessionUpdated:
		p.handleSessionUpdated(e)
	case normalize.StateChanged:
		p.handleStateChanged(e)
	case normalize.StationChanged:
		p.handleStationChanged(e)
	case normalize.PlayStarted:
		p.handlePlayStarted(e)
	case normalize.SkipFailed:
		p.reg.Emit(events.SkipFailed{})
	case normalize.Elapsed:
		p.handleElapsed(e)
	case normalize.MusicQueued:
		p.reg.Emit(events.MusicQueued{})
	}
}

func (p *Player) handleAvailability(e normalize.Availability) {
	next, err := p.apply(func(s *models.Session) error {
		if s.Available.Resolved() {
			return errNoChange
		}
		s.Available = models.AvailabilityOf(e.Available)
		s.CurrentPlay = nil
		s.ElapsedSeconds = 0
		if e.ClientID != "" {
			s.ClientID = e.ClientID
		}
		if !e.Available {
			s.Stations = []models.Station{}
			s.ActiveStation = nil
			return nil
		}
		s.Stations = e.Stations
		s.ActiveStation = activeStation(s, e.ActiveStationID)
		return nil
	})
	if err != nil {
		slog.Debug("session: availability already resolved, ignoring")
		p.metrics.Suppressed(source, reasonAvailability)
		return
	}

	p.gate.Resolve(e.Available)
	p.reg.Emit(events.Availability{Available: e.Available})

	if !e.Available {
		return
	}
	if p.storedClientID != "" && p.storedClientID != next.ClientID {
		slog.Info("session: restoring client id", "client_id", p.storedClientID)
		p.eng.SetClientID(p.storedClientID)
		return
	}
	p.persistClientID(next.ClientID)
}

func (p *Player) handleSessionUpdated(e normalize.SessionUpdated) {
	next, _ := p.apply(func(s *models.Session) error {
		if e.ClientID != "" {
			s.ClientID = e.ClientID
		}
		if s.Available != models.Available {
			return nil
		}
		s.Stations = e.Stations
		s.ActiveStation = activeStation(s, e.ActiveStationID)
		return nil
	})
	p.persistClientID(next.ClientID)
	p.reg.Emit(events.SessionUpdated{ClientID: next.ClientID})
}

func (p *Player) handleStateChanged(e normalize.StateChanged) {
	var prev models.PlaybackState
	_, err := p.apply(func(s *models.Session) error {
		if s.State == e.State {
			return errNoChange
		}
		prev = s.State
		s.State = e.State
		if !e.State.HasPlay() {
			s.CurrentPlay = nil
			s.ElapsedSeconds = 0
		}
		return nil
	})
	if err != nil {
		p.metrics.Suppressed(source, reasonDuplicate)
		return
	}
	if prev.Public() == e.State.Public() {
		// OFFLINE and UNAVAILABLE look the same from outside.
		p.metrics.Suppressed(source, reasonDuplicate)
		return
	}
	p.reg.Emit(events.StateChange{State: e.State.Public()})
}

func (p *Player) handleStationChanged(e normalize.StationChanged) {
	next, err := p.apply(func(s *models.Session) error {
		if len(s.Stations) == 0 {
			return errNoChange
		}
		s.ActiveStation = activeStation(s, e.ActiveStationID)
		return nil
	})
	if err != nil {
		slog.Debug("session: station change without a station list")
		p.metrics.Suppressed(source, reasonNoStations)
		return
	}
	p.reg.Emit(events.StationChange{Station: next.ActiveStation})
}

func (p *Player) handlePlayStarted(e normalize.PlayStarted) {
	next, _ := p.apply(func(s *models.Session) error {
		if e.StationID != nil {
			if st := s.StationByID(*e.StationID); st != nil {
				st.HasNewMusic = false
			}
			if s.ActiveStation != nil && s.ActiveStation.ID == *e.StationID {
				s.ActiveStation.HasNewMusic = false
			}
		}
		play := e.Play
		s.CurrentPlay = play.DeepCopy()
		s.ElapsedSeconds = 0
		return nil
	})
	p.reg.Emit(events.PlayStarted{Play: *next.CurrentPlay})
}

func (p *Player) handleElapsed(e normalize.Elapsed) {
	_, err := p.apply(func(s *models.Session) error {
		if e.Seconds < s.ElapsedSeconds {
			return errNoChange
		}
		s.ElapsedSeconds = e.Seconds
		return nil
	})
	if err != nil {
		p.metrics.Suppressed(source, reasonRegression)
		return
	}
	p.reg.Emit(events.Elapsed{Seconds: e.Seconds})
}

// activeStation returns a copy of the station with the given id, or nil.
func activeStation(s *models.Session, id *int) *models.Station {
	if id == nil {
		return nil
	}
	st := s.StationByID(*id)
	if st == nil {
		return nil
	}
	cp := st.DeepCopy()
	return &cp
}

func (p *Player) persistClientID(id string) {
	if id == "" {
		return
	}
	err := config.Update(p.cfg.Store, func(rec *models.Persisted) { rec.ClientID = id })
	if err != nil {
		slog.Warn("session: failed to persist client id", "err", err)
	}
}
