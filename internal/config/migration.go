package config

import (
	"log/slog"
	"strings"

	"github.com/feedfm/fmsession/internal/models"
)

// migratePersisted repairs records written by older versions or by hand.
func migratePersisted(p *models.Persisted) {
	p.ClientID = strings.TrimSpace(p.ClientID)
	p.StreamToken = strings.TrimSpace(p.StreamToken)

	if p.Volume == nil {
		v := models.DefaultVolume
		p.Volume = &v
		return
	}
	if !models.ValidVolume(*p.Volume) {
		slog.Warn("config: persisted volume out of range, clamping", "volume", *p.Volume)
		v := clamp01(*p.Volume)
		p.Volume = &v
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
