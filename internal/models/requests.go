package models

// VolumeRequest is the PATCH body for volume changes.
type VolumeRequest struct {
	Volume *float64 `json:"volume"`
}

// StationRequest selects the active station.
type StationRequest struct {
	ID *int `json:"id"`
}

// ClientIDRequest restores a known client identity.
type ClientIDRequest struct {
	ClientID string `json:"client_id"`
}

// SeekRequest seeks within the current station.
type SeekRequest struct {
	Seconds float64 `json:"seconds"`
}

// LogEventRequest forwards an analytics event to the engine.
type LogEventRequest struct {
	Name   string                 `json:"name"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// ConnectRequest is the body for a streamer connect. Token is optional.
type ConnectRequest struct {
	Token string `json:"token,omitempty"`
}

// SwitchRequest is the body for a streamer stream switch.
type SwitchRequest struct {
	Token string `json:"token"`
}

// DisconnectRequest is the body for a streamer disconnect.
type DisconnectRequest struct {
	Force bool `json:"force"`
}

// Info describes the running daemon.
type Info struct {
	Hostname string `json:"hostname"`
	Version  string `json:"version"`
	Engine   string `json:"engine"`
}
