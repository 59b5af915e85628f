package models

// DefaultVolume is the volume a fresh session starts with.
const DefaultVolume = 1.0

// DefaultSession returns the state of a player that has not heard from its
// engine yet.
func DefaultSession() Session {
	return Session{
		State:     StateUninitialized,
		Available: AvailabilityUnknown,
		Stations:  []Station{},
		Volume:    DefaultVolume,
	}
}

// DefaultStreamerSession returns the state of a streamer with no token bound.
func DefaultStreamerSession() StreamerSession {
	return StreamerSession{
		State:       StreamerUninitialized,
		EngineState: StreamerUninitialized,
		Volume:      DefaultVolume,
	}
}

// DefaultPersisted returns an empty persisted record.
func DefaultPersisted() Persisted {
	v := DefaultVolume
	return Persisted{Volume: &v}
}
