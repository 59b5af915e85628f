package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/feedfm/fmsession/internal/models"
)

const settingsFileName = "settings.json"

// DefaultCredential is used for token and secret when none is configured.
const DefaultCredential = "demo"

// Settings is the daemon's settings.json.
type Settings struct {
	Token                string   `json:"token"`
	Secret               string   `json:"secret"`
	HandleRemoteCommands bool     `json:"handle_remote_commands"`
	AudioSession         bool     `json:"audio_session"`
	StreamToken          string   `json:"stream_token,omitempty"`
	ConnectOnStart       bool     `json:"connect_on_start"`
	LogEventRate         float64  `json:"log_event_rate"`
	LogEventBurst        int      `json:"log_event_burst"`
	APIKeys              []string `json:"api_keys,omitempty"`
	Volume               *float64 `json:"volume,omitempty"`
	EngineCommand        []string `json:"engine_command,omitempty"`
}

// DefaultSettings returns the settings used when no file exists.
func DefaultSettings() Settings {
	return Settings{
		Token:         DefaultCredential,
		Secret:        DefaultCredential,
		LogEventRate:  5,
		LogEventBurst: 10,
	}
}

// SettingsPath returns the settings file path inside dir.
func SettingsPath(dir string) string {
	return filepath.Join(dir, settingsFileName)
}

// LoadSettings reads settings.json from dir. A missing file yields defaults;
// a malformed or invalid file is an error. Fields absent from the file keep
// their defaults.
func LoadSettings(dir string) (Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(SettingsPath(dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return DefaultSettings(), fmt.Errorf("config: parse %s: %w", settingsFileName, err)
	}
	if s.Token == "" {
		s.Token = DefaultCredential
	}
	if s.Secret == "" {
		s.Secret = DefaultCredential
	}
	if err := s.Validate(); err != nil {
		return DefaultSettings(), err
	}
	return s, nil
}

// Validate checks field ranges.
func (s Settings) Validate() error {
	if s.Volume != nil && !models.ValidVolume(*s.Volume) {
		return &models.AppError{Code: "BAD_REQUEST", Message: "settings: volume must be between 0 and 1", Field: "volume", Status: 400}
	}
	if s.LogEventRate < 0 {
		return &models.AppError{Code: "BAD_REQUEST", Message: "settings: log_event_rate must not be negative", Field: "log_event_rate", Status: 400}
	}
	if s.LogEventBurst < 0 {
		return &models.AppError{Code: "BAD_REQUEST", Message: "settings: log_event_burst must not be negative", Field: "log_event_burst", Status: 400}
	}
	return nil
}
