package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// UnavailableTokenPrefix marks tokens the StreamerSimulator treats as
// unplayable.
const UnavailableTokenPrefix = "unavailable"

// StreamerSimulator is an in-process StreamerEngine. Every event carries the
// token it belongs to as "eventToken".
type StreamerSimulator struct {
	codes  StreamerCodes
	events chan RawEvent
	tick   time.Duration

	mu      sync.Mutex
	token   string
	state   int
	play    map[string]interface{}
	elapsed float64
	songs   int
	volume  float64
}

// NewStreamerSimulator creates an idle StreamerSimulator.
func NewStreamerSimulator() *StreamerSimulator {
	return &StreamerSimulator{
		codes:  DefaultStreamerCodes,
		events: make(chan RawEvent, simEventBuffer),
		tick:   defaultTick,
		state:  DefaultStreamerCodes.Uninitialized,
		volume: 1,
	}
}

// Run emits elapse ticks while a stream is playing.
func (s *StreamerSimulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.state == s.codes.Playing && s.play != nil {
				s.elapsed += s.tick.Seconds()
				s.emitLocked(EventElapse, map[string]interface{}{"elapsed": s.elapsed})
			}
			s.mu.Unlock()
		}
	}
}

func (s *StreamerSimulator) emitLocked(name string, body map[string]interface{}) {
	body["eventToken"] = s.token
	select {
	case s.events <- RawEvent{Name: name, Body: body}:
	default:
		slog.Warn("streamer simulator: event buffer full, dropping", "event", name)
	}
}

func (s *StreamerSimulator) setStateLocked(code int) {
	s.state = code
	s.emitLocked(EventStateChange, map[string]interface{}{"state": code})
}

func (s *StreamerSimulator) Initialize(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.play = nil
	s.elapsed = 0
	if token == "" || strings.HasPrefix(token, UnavailableTokenPrefix) {
		s.setStateLocked(s.codes.Unavailable)
		return
	}
	s.setStateLocked(s.codes.Available)
}

func (s *StreamerSimulator) Connect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case s.codes.Available, s.codes.Idle, s.codes.Stopped:
	default:
		return
	}
	s.setStateLocked(s.codes.Stalled)
	s.songs++
	s.elapsed = 0
	s.play = map[string]interface{}{
		"title":    fmt.Sprintf("Live %d", s.songs),
		"artist":   "Simulcast",
		"album":    s.token,
		"duration": defaultSongSeconds,
		"metadata": map[string]interface{}{"source": "simulator"},
	}
	s.emitLocked(EventPlayStarted, map[string]interface{}{"play": s.play})
	s.setStateLocked(s.codes.Playing)
}

func (s *StreamerSimulator) Disconnect(force bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.play = nil
	s.elapsed = 0
	if force {
		s.state = s.codes.Uninitialized
		s.token = ""
		return
	}
	s.setStateLocked(s.codes.Stopped)
}

func (s *StreamerSimulator) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
}

func (s *StreamerSimulator) Events() <-chan RawEvent { return s.events }
func (s *StreamerSimulator) Codes() StreamerCodes { return s.codes }

var _ StreamerEngine = (*StreamerSimulator)(nil)
