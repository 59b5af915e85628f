package engine

// PlayerCodes is the table of integer state codes a player engine reports in
// state-change events. Engines publish their own table; the normalizer never
// assumes fixed values.
type PlayerCodes struct {
	Uninitialized  int `json:"uninitialized"`
	Unavailable    int `json:"unavailable"`
	WaitingForItem int `json:"waiting_for_item"`
	ReadyToPlay    int `json:"ready_to_play"`
	Playing        int `json:"playing"`
	Paused         int `json:"paused"`
	Stalled        int `json:"stalled"`
	RequestingSkip int `json:"requesting_skip"`
	OfflineOnly    int `json:"offline_only"`
	Complete       int `json:"complete"`
}

// DefaultPlayerCodes follows the ordinal order of the engine's state enum.
var DefaultPlayerCodes = PlayerCodes{
	Uninitialized:  0,
	Unavailable:    1,
	WaitingForItem: 2,
	ReadyToPlay:    3,
	Playing:        4,
	Paused:         5,
	Stalled:        6,
	RequestingSkip: 7,
	OfflineOnly:    8,
	Complete:       9,
}

// StreamerCodes is the streamer engine's state code table.
type StreamerCodes struct {
	Idle          int `json:"idle"`
	Playing       int `json:"playing"`
	Stopped       int `json:"stopped"`
	Stalled       int `json:"stalled"`
	Uninitialized int `json:"uninitialized"`
	Unavailable   int `json:"unavailable"`
	Available     int `json:"available"`

	// ErrorUnavailable is the error code some engines send instead of an
	// Unavailable state change when a stream token is not playable.
	ErrorUnavailable int `json:"error_unavailable"`
}

// DefaultStreamerCodes follows the ordinal order of the streamer state enum.
var DefaultStreamerCodes = StreamerCodes{
	Idle:             0,
	Playing:          1,
	Stopped:          2,
	Stalled:          3,
	Uninitialized:    4,
	Unavailable:      5,
	Available:        6,
	ErrorUnavailable: 19,
}
