// Package events delivers session notifications. Registry is the in-process
// typed subscription API; Bus fans envelopes out to SSE clients.
package events

import "github.com/feedfm/fmsession/internal/models"

// Kind names a notification variant.
type Kind string

const (
	KindAvailability        Kind = "availability"
	KindStateChange         Kind = "state-change"
	KindStationChange       Kind = "station-change"
	KindPlayStarted         Kind = "play-started"
	KindSkipFailed          Kind = "skip-failed"
	KindSessionUpdated      Kind = "session-updated"
	KindElapsed             Kind = "elapsed"
	KindMusicQueued         Kind = "musicQueued"
	KindStreamerStateChange Kind = "streamer-state-change"
	KindStreamerError       Kind = "streamer-error"
)

// Notification is one of the variants below.
type Notification interface {
	Kind() Kind
}

// Availability reports the resolved availability. It is emitted once per
// engine lifetime.
type Availability struct {
	Available bool `json:"available"`
}

// StateChange carries the new playback state.
type StateChange struct {
	State models.PlaybackState `json:"state"`
}

// StationChange carries the new active station, nil if the engine named a
// station the session does not know.
type StationChange struct {
	Station *models.Station `json:"station"`
}

// PlayStarted carries the new song.
type PlayStarted struct {
	Play models.Play `json:"play"`
}

// SkipFailed reports a refused skip.
type SkipFailed struct{}

// SessionUpdated carries the confirmed client id.
type SessionUpdated struct {
	ClientID string `json:"client_id"`
}

// Elapsed carries the playback position in seconds.
type Elapsed struct {
	Seconds float64 `json:"seconds"`
}

// MusicQueued reports music queued for a newly selected station.
type MusicQueued struct{}

// StreamerStateChange carries the streamer's surfaced state.
type StreamerStateChange struct {
	State models.StreamerState `json:"state"`
}

// StreamerError carries a non-fatal streamer engine error.
type StreamerError struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

func (Availability) Kind() Kind        { return KindAvailability }
func (StateChange) Kind() Kind         { return KindStateChange }
func (StationChange) Kind() Kind       { return KindStationChange }
func (PlayStarted) Kind() Kind         { return KindPlayStarted }
func (SkipFailed) Kind() Kind          { return KindSkipFailed }
func (SessionUpdated) Kind() Kind      { return KindSessionUpdated }
func (Elapsed) Kind() Kind             { return KindElapsed }
func (MusicQueued) Kind() Kind         { return KindMusicQueued }
func (StreamerStateChange) Kind() Kind { return KindStreamerStateChange }
func (StreamerError) Kind() Kind       { return KindStreamerError }
