package models_test

import (
	"testing"

	"github.com/feedfm/fmsession/internal/models"
)

func TestDefaultSession(t *testing.T) {
	s := models.DefaultSession()

	if s.State != models.StateUninitialized {
		t.Errorf("State = %q, want UNINITIALIZED", s.State)
	}
	if s.Available.Resolved() {
		t.Error("availability should start unresolved")
	}
	if s.Stations == nil || len(s.Stations) != 0 {
		t.Errorf("Stations = %v, want empty non-nil slice", s.Stations)
	}
	if s.ActiveStation != nil || s.CurrentPlay != nil {
		t.Error("fresh session should have no active station or play")
	}
	if s.Volume != models.DefaultVolume {
		t.Errorf("Volume = %v, want %v", s.Volume, models.DefaultVolume)
	}
}

func TestDefaultStreamerSession(t *testing.T) {
	s := models.DefaultStreamerSession()
	if s.State != models.StreamerUninitialized || s.EngineState != models.StreamerUninitialized {
		t.Errorf("states = %q/%q, want UNINITIALIZED", s.State, s.EngineState)
	}
	if s.Intent.Token != "" || s.Intent.TryingToPlay {
		t.Errorf("Intent = %+v, want zero", s.Intent)
	}
}

func TestPublicState(t *testing.T) {
	tests := []struct {
		in   models.PlaybackState
		want models.PlaybackState
	}{
		{models.StateOffline, models.StateUnavailable},
		{models.StatePlaying, models.StatePlaying},
		{models.StateUninitialized, models.StateUninitialized},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			if got := tt.in.Public(); got != tt.want {
				t.Errorf("Public() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSessionDeepCopy(t *testing.T) {
	s := models.DefaultSession()
	s.Stations = []models.Station{{ID: 1, Name: "A", Options: map[string]interface{}{"k": []interface{}{"x"}}}}
	s.ActiveStation = &models.Station{ID: 1, Name: "A"}
	s.CurrentPlay = &models.Play{Title: "t", Metadata: map[string]interface{}{"nested": map[string]interface{}{"a": 1}}}

	cp := s.DeepCopy()
	cp.Stations[0].Name = "changed"
	cp.Stations[0].Options["k"].([]interface{})[0] = "y"
	cp.ActiveStation.Name = "changed"
	cp.CurrentPlay.Metadata["nested"].(map[string]interface{})["a"] = 2

	if s.Stations[0].Name != "A" {
		t.Error("station name leaked through copy")
	}
	if s.Stations[0].Options["k"].([]interface{})[0] != "x" {
		t.Error("station options leaked through copy")
	}
	if s.ActiveStation.Name != "A" {
		t.Error("active station leaked through copy")
	}
	if s.CurrentPlay.Metadata["nested"].(map[string]interface{})["a"] != 1 {
		t.Error("play metadata leaked through copy")
	}
}

func TestValidVolume(t *testing.T) {
	for _, v := range []float64{0, 0.5, 1} {
		if !models.ValidVolume(v) {
			t.Errorf("ValidVolume(%v) = false", v)
		}
	}
	for _, v := range []float64{-0.1, 1.01} {
		if models.ValidVolume(v) {
			t.Errorf("ValidVolume(%v) = true", v)
		}
	}
}
