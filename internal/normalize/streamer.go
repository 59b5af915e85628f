package normalize

import (
	"log/slog"

	"github.com/feedfm/fmsession/internal/engine"
	"github.com/feedfm/fmsession/internal/models"
)

// StreamerEvent is a canonical streamer event.
type StreamerEvent interface {
	// EventToken returns the stream token the engine attached to the event,
	// and whether it attached one at all.
	EventToken() (string, bool)
}

type scope struct {
	token  string
	scoped bool
}

func (s scope) EventToken() (string, bool) { return s.token, s.scoped }

func scopeOf(body map[string]interface{}) scope {
	v, ok := body["eventToken"]
	if !ok || v == nil {
		return scope{}
	}
	return scope{token: stringField(body, "eventToken"), scoped: true}
}

// StreamerStateChanged reports a streamer state.
type StreamerStateChanged struct {
	scope
	State models.StreamerState
}

// StreamerPlayStarted reports a new song on the stream.
type StreamerPlayStarted struct {
	scope
	Play models.Play
}

// StreamerElapsed reports the playback position.
type StreamerElapsed struct {
	scope
	Seconds float64
}

// StreamerError is an engine error. Unavailable is set for the error code
// that stands in for an Unavailable state.
type StreamerError struct {
	scope
	Code        int
	Message     string
	Unavailable bool
}

// Streamer normalizes a streamer engine event.
func Streamer(raw engine.RawEvent, codes engine.StreamerCodes) (StreamerEvent, error) {
	body := raw.Body
	if body == nil {
		body = map[string]interface{}{}
	}
	sc := scopeOf(body)

	switch raw.Name {
	case engine.EventStateChange:
		code, ok := intField(body, "state")
		if !ok {
			return StreamerStateChanged{scope: sc, State: models.StreamerUninitialized}, nil
		}
		return StreamerStateChanged{scope: sc, State: StreamerState(code, codes)}, nil

	case engine.EventPlayStarted:
		play, _ := Play(mapField(body, "play"))
		return StreamerPlayStarted{scope: sc, Play: play}, nil

	case engine.EventElapse:
		secs, ok := floatField(body, "elapsed")
		if !ok || secs < 0 {
			secs = 0
		}
		return StreamerElapsed{scope: sc, Seconds: secs}, nil

	case engine.EventError:
		errBody := mapField(body, "error")
		if errBody == nil {
			errBody = body
		}
		code, hasCode := intField(errBody, "code")
		return StreamerError{
			scope:       sc,
			Code:        code,
			Message:     stringField(errBody, "message"),
			Unavailable: hasCode && code == codes.ErrorUnavailable,
		}, nil
	}
	return nil, ErrUnknownEvent
}

// StreamerState maps a raw streamer state code. Available, Idle and Stopped
// all mean the stream can be connected.
func StreamerState(code int, codes engine.StreamerCodes) models.StreamerState {
	switch code {
	case codes.Available, codes.Idle, codes.Stopped:
		return models.StreamerIdle
	case codes.Unavailable:
		return models.StreamerUnavailable
	case codes.Uninitialized:
		return models.StreamerUninitialized
	case codes.Playing:
		return models.StreamerPlaying
	case codes.Stalled:
		return models.StreamerStalled
	}
	slog.Debug("normalize: unmapped streamer state code", "code", code)
	return models.StreamerUninitialized
}
