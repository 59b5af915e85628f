package models

import "time"

// Persisted is the part of the session that survives a restart.
type Persisted struct {
	ClientID    string    `json:"client_id,omitempty"`
	Volume      *float64  `json:"volume,omitempty"`
	StreamToken string    `json:"stream_token,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// DeepCopy returns a deep copy of the record.
func (p Persisted) DeepCopy() Persisted {
	if p.Volume != nil {
		v := *p.Volume
		p.Volume = &v
	}
	return p
}
