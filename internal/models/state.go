// Package models defines the session data structures shared by the player,
// the streamer, the persistence layer and the HTTP API.
package models

// PlaybackState is the canonical playback state of the station player.
type PlaybackState string

const (
	StateUninitialized  PlaybackState = "UNINITIALIZED"
	StateOffline        PlaybackState = "OFFLINE" // reserved; surfaced as UNAVAILABLE
	StateUnavailable    PlaybackState = "UNAVAILABLE"
	StateWaitingForItem PlaybackState = "WAITING_FOR_ITEM"
	StateReadyToPlay    PlaybackState = "READY_TO_PLAY"
	StatePlaying        PlaybackState = "PLAYING"
	StatePaused         PlaybackState = "PAUSED"
	StateStalled        PlaybackState = "STALLED"
)

// Public returns the state as consumers see it. OFFLINE is kept internally
// but reported as UNAVAILABLE.
func (s PlaybackState) Public() PlaybackState {
	if s == StateOffline {
		return StateUnavailable
	}
	return s
}

// HasPlay reports whether a song may be loaded in this state.
func (s PlaybackState) HasPlay() bool {
	switch s {
	case StatePlaying, StatePaused, StateStalled:
		return true
	}
	return false
}

// Availability is the tri-state answer to "is there anything to play".
type Availability string

const (
	AvailabilityUnknown Availability = "unknown"
	Available           Availability = "available"
	Unavailable         Availability = "unavailable"
)

// Resolved reports whether the engine has answered.
func (a Availability) Resolved() bool { return a != AvailabilityUnknown }

// AvailabilityOf converts an engine boolean into an Availability.
func AvailabilityOf(available bool) Availability {
	if available {
		return Available
	}
	return Unavailable
}

// Station is an addressable station-style playlist.
type Station struct {
	ID          int                    `json:"id"`
	Name        string                 `json:"name"`
	HasNewMusic bool                   `json:"has_new_music"`
	Options     map[string]interface{} `json:"options,omitempty"`
}

// Play is one song instance. The station linkage reported by the engine is
// consumed by the session and never stored here.
type Play struct {
	ID              string                 `json:"id,omitempty"`
	Title           string                 `json:"title"`
	Artist          string                 `json:"artist"`
	Album           string                 `json:"album"`
	DurationSeconds float64                `json:"duration_seconds"`
	CanSkip         bool                   `json:"can_skip"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// Session is the station player's state. Values handed to consumers are
// always deep copies.
type Session struct {
	Initialized    bool          `json:"initialized"`
	State          PlaybackState `json:"state"`
	Available      Availability  `json:"available"`
	Stations       []Station     `json:"stations"`
	ActiveStation  *Station      `json:"active_station,omitempty"`
	CurrentPlay    *Play         `json:"current_play,omitempty"`
	ElapsedSeconds float64       `json:"elapsed_seconds"`
	ClientID       string        `json:"client_id,omitempty"`
	Volume         float64       `json:"volume"`
}

// StationByID returns a pointer into s.Stations, or nil.
func (s *Session) StationByID(id int) *Station {
	for i := range s.Stations {
		if s.Stations[i].ID == id {
			return &s.Stations[i]
		}
	}
	return nil
}

// StreamerState is the canonical state of the simulcast streamer.
type StreamerState string

const (
	StreamerUninitialized StreamerState = "UNINITIALIZED"
	StreamerInitializing  StreamerState = "INITIALIZING"
	StreamerIdle          StreamerState = "IDLE"
	StreamerStalled       StreamerState = "STALLED"
	StreamerPlaying       StreamerState = "PLAYING"
	StreamerUnavailable   StreamerState = "UNAVAILABLE"
)

// StreamerIntent holds what the consumer asked for but the engine has not
// confirmed yet.
type StreamerIntent struct {
	Token        string `json:"token,omitempty"` // empty: no stream bound
	TryingToPlay bool   `json:"trying_to_play"`
}

// StreamerSession is the token-addressed streamer's state.
//
// State is what consumers observe and may be optimistic (INITIALIZING after a
// token change, STALLED after a connect). EngineState is the last state the
// engine actually reported.
type StreamerSession struct {
	State          StreamerState  `json:"state"`
	EngineState    StreamerState  `json:"engine_state"`
	Intent         StreamerIntent `json:"intent"`
	CurrentPlay    *Play          `json:"current_play,omitempty"`
	ElapsedSeconds float64        `json:"elapsed_seconds"`
	Volume         float64        `json:"volume"`
}
