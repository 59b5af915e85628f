package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/feedfm/fmsession/internal/config"
)

func writeSettings(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(config.SettingsPath(dir), []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestLoadSettings_Missing(t *testing.T) {
	s, err := config.LoadSettings(newTempDir(t))
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if s.Token != "demo" || s.Secret != "demo" {
		t.Errorf("credentials = %q/%q, want demo/demo", s.Token, s.Secret)
	}
	if s.LogEventRate != 5 || s.LogEventBurst != 10 {
		t.Errorf("log event limits = %v/%d", s.LogEventRate, s.LogEventBurst)
	}
}

func TestLoadSettings_File(t *testing.T) {
	dir := newTempDir(t)
	writeSettings(t, dir, `{"token":"tok","stream_token":"s1","api_keys":["k1"],"volume":0.4,"log_event_rate":2}`)

	s, err := config.LoadSettings(dir)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if s.Token != "tok" || s.Secret != "demo" {
		t.Errorf("credentials = %q/%q, want tok/demo", s.Token, s.Secret)
	}
	if s.StreamToken != "s1" || len(s.APIKeys) != 1 || *s.Volume != 0.4 {
		t.Errorf("settings = %+v", s)
	}
	if s.LogEventRate != 2 || s.LogEventBurst != 10 {
		t.Errorf("log event limits = %v/%d, want 2/10", s.LogEventRate, s.LogEventBurst)
	}
}

func TestLoadSettings_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"token":`},
		{"volume out of range", `{"volume":1.5}`},
		{"negative rate", `{"log_event_rate":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newTempDir(t)
			writeSettings(t, dir, tt.body)
			if _, err := config.LoadSettings(dir); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := newTempDir(t)
	writeSettings(t, dir, `{"api_keys":["old"]}`)

	got := make(chan config.Settings, 8)
	w, err := config.Watch(dir, func(s config.Settings) { got <- s })
	if err != nil {
		t.Skipf("fsnotify unavailable: %v", err)
	}
	defer w.Close()

	writeSettings(t, dir, `{"api_keys":["new"]}`)

	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-got:
			if len(s.APIKeys) == 1 && s.APIKeys[0] == "new" {
				return
			}
		case <-deadline:
			t.Fatal("settings change not observed")
		}
	}
}
