// Package engine is the boundary to the native audio engine. The engine is
// opaque: commands go in as fire-and-forget calls, and everything it has to
// say comes back as RawEvents on the Events channel.
package engine

import "context"

// Event names delivered by engines.
const (
	EventAvailability   = "availability"
	EventSessionUpdated = "session-updated"
	EventStateChange    = "state-change"
	EventStationChange  = "station-change"
	EventPlayStarted    = "play-started"
	EventSkipFailed     = "skip-failed"
	EventElapse         = "elapse"
	EventMusicQueued    = "musicQueued"
	EventError          = "error"
)

// RawEvent is an event exactly as the engine delivered it. Body is a decoded
// JSON object; its shape is not trusted.
type RawEvent struct {
	Name string                 `json:"event"`
	Body map[string]interface{} `json:"body,omitempty"`
}

// Capabilities describes optional platform features of an engine.
type Capabilities struct {
	// AudioSession is true on platforms with an OS audio session to manage.
	AudioSession bool `json:"audio_session"`
}

// Engine is the station player boundary.
//
// Command methods must not block and must not call back into the caller.
// Their outcome, if any, arrives later on Events.
type Engine interface {
	InitializeWithToken(token, secret string, handleRemoteCommands bool)
	Play()
	Pause()
	Stop()
	Skip()
	SetVolume(v float64)
	SetActiveStation(id int)
	SetClientID(id string)
	CreateNewClientID()
	SeekCurrentStationBy(seconds float64)
	// EnableAudioSession is ignored by engines without Capabilities.AudioSession.
	EnableAudioSession(enable bool)
	LogEvent(name string, params map[string]interface{})

	// MaxSeekableLengthInSeconds and CanSkip round-trip to the engine.
	MaxSeekableLengthInSeconds(ctx context.Context) (float64, error)
	CanSkip(ctx context.Context) (bool, error)

	Events() <-chan RawEvent
	Codes() PlayerCodes
}

// StreamerEngine is the simulcast streamer boundary.
type StreamerEngine interface {
	Initialize(token string)
	Connect()
	Disconnect(force bool)
	SetVolume(v float64)

	Events() <-chan RawEvent
	Codes() StreamerCodes
}
