// Package normalize turns raw engine events into the canonical events the
// player and streamer sessions apply. It never panics on a payload: missing
// or mistyped fields fall back to the safest value.
package normalize

import (
	"errors"
	"log/slog"

	"github.com/feedfm/fmsession/internal/engine"
	"github.com/feedfm/fmsession/internal/models"
)

var (
	// ErrSuppressed marks an event that is valid but has no visible effect.
	ErrSuppressed = errors.New("normalize: event suppressed")
	// ErrUnknownEvent marks an event name outside the engine vocabulary.
	ErrUnknownEvent = errors.New("normalize: unknown event")
)

// Event is a canonical station player event.
type Event interface{ playerEvent() }

// Availability resolves whether anything is playable.
type Availability struct {
	Available       bool
	Stations        []models.Station
	ActiveStationID *int
	ClientID        string
}

// SessionUpdated reports a new identity and station list.
type SessionUpdated struct {
	Stations        []models.Station
	ActiveStationID *int
	ClientID        string
}

// StateChanged reports a playback state.
type StateChanged struct {
	State models.PlaybackState
}

// StationChanged reports the engine's active station.
type StationChanged struct {
	ActiveStationID *int
}

// PlayStarted reports a new song. StationID is the station that produced
// it, if the engine said so.
type PlayStarted struct {
	Play      models.Play
	StationID *int
}

// SkipFailed reports that the last skip was refused.
type SkipFailed struct{}

// Elapsed reports playback position within the current song.
type Elapsed struct {
	Seconds float64
}

// MusicQueued reports that music for a newly selected station is queued.
type MusicQueued struct{}

func (Availability) playerEvent()   {}
func (SessionUpdated) playerEvent() {}
func (StateChanged) playerEvent()   {}
func (StationChanged) playerEvent() {}
func (PlayStarted) playerEvent()    {}
func (SkipFailed) playerEvent()     {}
func (Elapsed) playerEvent()        {}
func (MusicQueued) playerEvent()    {}

// Player normalizes a station player event using the engine's code table.
func Player(raw engine.RawEvent, codes engine.PlayerCodes) (Event, error) {
	body := raw.Body
	if body == nil {
		body = map[string]interface{}{}
	}

	switch raw.Name {
	case engine.EventAvailability:
		ev := Availability{
			Available: boolField(body, "available"),
			Stations:  []models.Station{},
			ClientID:  stringField(body, "clientID"),
		}
		if ev.Available {
			ev.Stations = Stations(sliceField(body, "stations"))
			ev.ActiveStationID = intPtrField(body, "activeStationId")
		}
		return ev, nil

	case engine.EventSessionUpdated:
		return SessionUpdated{
			Stations:        Stations(sliceField(body, "stations")),
			ActiveStationID: intPtrField(body, "activeStationId"),
			ClientID:        stringField(body, "clientID"),
		}, nil

	case engine.EventStateChange:
		code, ok := intField(body, "state")
		if !ok {
			slog.Debug("normalize: state-change without usable code", "body", body)
			return StateChanged{State: models.StateUninitialized}, nil
		}
		if code == codes.RequestingSkip {
			return nil, ErrSuppressed
		}
		return StateChanged{State: PlaybackState(code, codes)}, nil

	case engine.EventStationChange:
		return StationChanged{ActiveStationID: intPtrField(body, "activeStationId")}, nil

	case engine.EventPlayStarted:
		play, stationID := Play(mapField(body, "play"))
		return PlayStarted{Play: play, StationID: stationID}, nil

	case engine.EventSkipFailed:
		return SkipFailed{}, nil

	case engine.EventElapse:
		secs, ok := floatField(body, "elapsed")
		if !ok || secs < 0 {
			secs = 0
		}
		return Elapsed{Seconds: secs}, nil

	case engine.EventMusicQueued:
		return MusicQueued{}, nil
	}
	return nil, ErrUnknownEvent
}

// PlaybackState maps a raw player state code. Unknown codes map to
// UNINITIALIZED.
func PlaybackState(code int, codes engine.PlayerCodes) models.PlaybackState {
	switch code {
	case codes.Uninitialized:
		return models.StateUninitialized
	case codes.Unavailable:
		return models.StateUnavailable
	case codes.WaitingForItem:
		return models.StateWaitingForItem
	case codes.ReadyToPlay, codes.Complete:
		return models.StateReadyToPlay
	case codes.Playing:
		return models.StatePlaying
	case codes.Paused:
		return models.StatePaused
	case codes.Stalled:
		return models.StateStalled
	case codes.OfflineOnly:
		return models.StateOffline
	}
	slog.Debug("normalize: unmapped player state code", "code", code)
	return models.StateUninitialized
}

// Stations converts the engine's station list. Entries without an id are
// dropped; keys other than id, name and hasNewMusic are kept as options.
func Stations(raw []interface{}) []models.Station {
	out := make([]models.Station, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id, ok := intField(m, "id")
		if !ok {
			slog.Debug("normalize: station without id dropped", "station", m)
			continue
		}
		st := models.Station{
			ID:          id,
			Name:        stringField(m, "name"),
			HasNewMusic: boolField(m, "hasNewMusic"),
		}
		for k, v := range m {
			switch k {
			case "id", "name", "hasNewMusic":
				continue
			}
			if st.Options == nil {
				st.Options = make(map[string]interface{})
			}
			st.Options[k] = v
		}
		st.Options = models.CloneMap(st.Options)
		out = append(out, st)
	}
	return out
}

// Play converts the engine's play record and splits off the station
// linkage.
func Play(m map[string]interface{}) (models.Play, *int) {
	if m == nil {
		return models.Play{}, nil
	}
	p := models.Play{
		ID:       stringField(m, "id"),
		Title:    stringField(m, "title"),
		Artist:   stringField(m, "artist"),
		Album:    stringField(m, "album"),
		CanSkip:  boolField(m, "canSkip"),
		Metadata: models.CloneMap(mapField(m, "metadata")),
	}
	if d, ok := floatField(m, "duration"); ok && d > 0 {
		p.DurationSeconds = d
	}
	return p, intPtrField(m, "station_id")
}
