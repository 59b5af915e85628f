package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	simEventBuffer     = 256
	defaultSkipLimit   = 6
	defaultSongSeconds = 180
	defaultTick        = time.Second
)

// SimStation is a station offered by the Simulator.
type SimStation struct {
	ID   int
	Name string
}

// SimulatorOptions configures a Simulator.
type SimulatorOptions struct {
	Stations     []SimStation
	Unavailable  bool // resolve availability to false
	SkipLimit    int
	SongSeconds  float64
	Tick         time.Duration
	Capabilities Capabilities
}

// DefaultSimStations is the catalogue used when none is configured.
var DefaultSimStations = []SimStation{
	{ID: 1, Name: "Chill Out"},
	{ID: 2, Name: "Up Tempo"},
	{ID: 3, Name: "Focus"},
}

// Simulator is an in-process Engine that answers commands with the events a
// real engine would send. It backs the daemon's --mock mode.
type Simulator struct {
	opts   SimulatorOptions
	codes  PlayerCodes
	events chan RawEvent

	mu           sync.Mutex
	initialized  bool
	state        int
	clientID     string
	active       int
	newMusic     map[int]bool
	play         map[string]interface{}
	duration     float64
	elapsed      float64
	skips        int
	songs        int
	volume       float64
	audioSession bool
}

// NewSimulator creates a Simulator. Zero option fields take defaults.
func NewSimulator(opts SimulatorOptions) *Simulator {
	if len(opts.Stations) == 0 {
		opts.Stations = DefaultSimStations
	}
	if opts.SkipLimit <= 0 {
		opts.SkipLimit = defaultSkipLimit
	}
	if opts.SongSeconds <= 0 {
		opts.SongSeconds = defaultSongSeconds
	}
	if opts.Tick <= 0 {
		opts.Tick = defaultTick
	}
	s := &Simulator{
		opts:     opts,
		codes:    DefaultPlayerCodes,
		events:   make(chan RawEvent, simEventBuffer),
		state:    DefaultPlayerCodes.Uninitialized,
		newMusic: make(map[int]bool),
		volume:   1,
	}
	for _, st := range opts.Stations {
		s.newMusic[st.ID] = true
	}
	return s
}

// Run advances playback time until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Simulator) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != s.codes.Playing || s.play == nil {
		return
	}
	s.elapsed += s.opts.Tick.Seconds()
	if s.elapsed >= s.duration {
		s.nextPlayLocked()
		return
	}
	s.emitLocked(EventElapse, map[string]interface{}{"elapsed": s.elapsed})
}

// emitLocked queues an event without blocking; callers hold s.mu so events
// leave in the order they were produced.
func (s *Simulator) emitLocked(name string, body map[string]interface{}) {
	select {
	case s.events <- RawEvent{Name: name, Body: body}:
	default:
		slog.Warn("simulator: event buffer full, dropping", "event", name)
	}
}

func (s *Simulator) setStateLocked(code int) {
	s.state = code
	s.emitLocked(EventStateChange, map[string]interface{}{"state": code})
}

func (s *Simulator) stationsLocked() []interface{} {
	out := make([]interface{}, 0, len(s.opts.Stations))
	for _, st := range s.opts.Stations {
		out = append(out, map[string]interface{}{
			"id":          st.ID,
			"name":        st.Name,
			"hasNewMusic": s.newMusic[st.ID],
		})
	}
	return out
}

func (s *Simulator) sessionBodyLocked() map[string]interface{} {
	return map[string]interface{}{
		"stations":        s.stationsLocked(),
		"activeStationId": s.active,
		"clientID":        s.clientID,
	}
}

func (s *Simulator) stationName(id int) (string, bool) {
	for _, st := range s.opts.Stations {
		if st.ID == id {
			return st.Name, true
		}
	}
	return "", false
}

func (s *Simulator) nextPlayLocked() {
	s.songs++
	s.elapsed = 0
	s.duration = s.opts.SongSeconds
	name, _ := s.stationName(s.active)
	s.play = map[string]interface{}{
		"id":         fmt.Sprintf("sim-%d", s.songs),
		"title":      fmt.Sprintf("Song %d", s.songs),
		"artist":     "Simulated Artist",
		"album":      name,
		"duration":   s.duration,
		"canSkip":    s.skips < s.opts.SkipLimit,
		"station_id": s.active,
		"metadata":   map[string]interface{}{"source": "simulator"},
	}
	s.newMusic[s.active] = false
	s.emitLocked(EventPlayStarted, map[string]interface{}{"play": s.play})
	if s.state != s.codes.Playing {
		s.setStateLocked(s.codes.Playing)
	}
}

func (s *Simulator) InitializeWithToken(token, secret string, handleRemoteCommands bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return
	}
	s.initialized = true
	slog.Debug("simulator: initialize", "token", token, "remote_commands", handleRemoteCommands)

	if s.opts.Unavailable || token == "" {
		s.emitLocked(EventAvailability, map[string]interface{}{"available": false})
		s.setStateLocked(s.codes.Unavailable)
		return
	}
	s.clientID = uuid.New().String()
	s.active = s.opts.Stations[0].ID
	body := s.sessionBodyLocked()
	body["available"] = true
	s.emitLocked(EventAvailability, body)
	s.setStateLocked(s.codes.ReadyToPlay)
}

func (s *Simulator) ready() bool {
	return s.initialized && s.state != s.codes.Unavailable
}

func (s *Simulator) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() || s.state == s.codes.Playing {
		return
	}
	if s.play == nil {
		s.setStateLocked(s.codes.Stalled)
		s.nextPlayLocked()
		return
	}
	s.setStateLocked(s.codes.Playing)
}

func (s *Simulator) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == s.codes.Playing {
		s.setStateLocked(s.codes.Paused)
	}
}

func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.play == nil {
		return
	}
	s.play = nil
	s.elapsed = 0
	s.setStateLocked(s.codes.ReadyToPlay)
}

func (s *Simulator) Skip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.play == nil {
		return
	}
	prev := s.state
	s.setStateLocked(s.codes.RequestingSkip)
	if s.skips >= s.opts.SkipLimit {
		s.setStateLocked(prev)
		s.emitLocked(EventSkipFailed, map[string]interface{}{})
		return
	}
	s.skips++
	s.state = prev
	s.nextPlayLocked()
}

func (s *Simulator) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
}

func (s *Simulator) SetActiveStation(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return
	}
	if _, ok := s.stationName(id); !ok {
		slog.Error("simulator: station not found", "id", id)
		return
	}
	s.active = id
	s.emitLocked(EventStationChange, map[string]interface{}{"activeStationId": id})
	s.emitLocked(EventMusicQueued, map[string]interface{}{})
	if s.play != nil {
		s.nextPlayLocked()
	}
}

func (s *Simulator) SetClientID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return
	}
	s.clientID = id
	s.emitLocked(EventSessionUpdated, s.sessionBodyLocked())
}

func (s *Simulator) CreateNewClientID() {
	s.SetClientID(uuid.New().String())
}

func (s *Simulator) SeekCurrentStationBy(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.play == nil {
		return
	}
	s.elapsed += seconds
	if s.elapsed < 0 {
		s.elapsed = 0
	}
	if s.elapsed > s.duration {
		s.elapsed = s.duration
	}
	s.emitLocked(EventElapse, map[string]interface{}{"elapsed": s.elapsed})
}

func (s *Simulator) EnableAudioSession(enable bool) {
	if !s.opts.Capabilities.AudioSession {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioSession = enable
}

func (s *Simulator) LogEvent(name string, params map[string]interface{}) {
	slog.Debug("simulator: log event", "name", name, "params", params)
}

func (s *Simulator) MaxSeekableLengthInSeconds(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.play == nil {
		return 0, nil
	}
	return s.duration - s.elapsed, nil
}

func (s *Simulator) CanSkip(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.play != nil && s.skips < s.opts.SkipLimit, nil
}

func (s *Simulator) Events() <-chan RawEvent { return s.events }
func (s *Simulator) Codes() PlayerCodes { return s.codes }

var _ Engine = (*Simulator)(nil)
