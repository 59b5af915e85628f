package engine

import (
	"context"
	"errors"
	"sync"
)

const mockEventBuffer = 64

// Call is one recorded boundary call.
type Call struct {
	Method string
	Args   []interface{}
}

// recorder is the call log shared by the mocks.
type recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *recorder) record(method string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Method: method, Args: args})
}

// Calls returns a copy of every recorded call in order.
func (r *recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallsTo returns the recorded calls to method.
func (r *recorder) CallsTo(method string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Count returns how many times method was called.
func (r *recorder) Count(method string) int {
	return len(r.CallsTo(method))
}

// Reset clears the call log.
func (r *recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// ErrQueryFailed is returned by Mock queries when SetFailQuery is on.
var ErrQueryFailed = errors.New("mock: query failure configured")

// Mock is a thread-safe recording Engine for tests. Events are injected with
// Emit.
type Mock struct {
	recorder
	events chan RawEvent
	codes  PlayerCodes
	caps   Capabilities

	qmu          sync.Mutex
	canSkip      bool
	maxSeekable  float64
	failQuery    bool
	audioSession bool
}

// NewMock creates a Mock with the default code table and no capabilities.
func NewMock() *Mock {
	return NewMockWithCapabilities(Capabilities{})
}

// NewMockWithCapabilities creates a Mock advertising caps.
func NewMockWithCapabilities(caps Capabilities) *Mock {
	return &Mock{
		events:  make(chan RawEvent, mockEventBuffer),
		codes:   DefaultPlayerCodes,
		caps:    caps,
		canSkip: true,
	}
}

// Emit queues a raw event on the Events channel.
func (m *Mock) Emit(ev RawEvent) { m.events <- ev }

// SetCanSkip sets the CanSkip answer.
func (m *Mock) SetCanSkip(v bool) {
	m.qmu.Lock()
	defer m.qmu.Unlock()
	m.canSkip = v
}

// SetMaxSeekable sets the MaxSeekableLengthInSeconds answer.
func (m *Mock) SetMaxSeekable(v float64) {
	m.qmu.Lock()
	defer m.qmu.Unlock()
	m.maxSeekable = v
}

// SetFailQuery makes both queries fail.
func (m *Mock) SetFailQuery(fail bool) {
	m.qmu.Lock()
	defer m.qmu.Unlock()
	m.failQuery = fail
}

// AudioSessionEnabled reports the last accepted EnableAudioSession value.
func (m *Mock) AudioSessionEnabled() bool {
	m.qmu.Lock()
	defer m.qmu.Unlock()
	return m.audioSession
}

func (m *Mock) InitializeWithToken(token, secret string, handleRemoteCommands bool) {
	m.record("InitializeWithToken", token, secret, handleRemoteCommands)
}

func (m *Mock) Play() { m.record("Play") }
func (m *Mock) Pause() { m.record("Pause") }
func (m *Mock) Stop() { m.record("Stop") }
func (m *Mock) Skip() { m.record("Skip") }

func (m *Mock) SetVolume(v float64) { m.record("SetVolume", v) }
func (m *Mock) SetActiveStation(id int) { m.record("SetActiveStation", id) }
func (m *Mock) SetClientID(id string) { m.record("SetClientID", id) }
func (m *Mock) CreateNewClientID() { m.record("CreateNewClientID") }
func (m *Mock) SeekCurrentStationBy(s float64) { m.record("SeekCurrentStationBy", s) }

func (m *Mock) EnableAudioSession(enable bool) {
	m.record("EnableAudioSession", enable)
	if !m.caps.AudioSession {
		return
	}
	m.qmu.Lock()
	m.audioSession = enable
	m.qmu.Unlock()
}

func (m *Mock) LogEvent(name string, params map[string]interface{}) {
	m.record("LogEvent", name, params)
}

func (m *Mock) MaxSeekableLengthInSeconds(ctx context.Context) (float64, error) {
	m.record("MaxSeekableLengthInSeconds")
	m.qmu.Lock()
	defer m.qmu.Unlock()
	if m.failQuery {
		return 0, ErrQueryFailed
	}
	return m.maxSeekable, nil
}

func (m *Mock) CanSkip(ctx context.Context) (bool, error) {
	m.record("CanSkip")
	m.qmu.Lock()
	defer m.qmu.Unlock()
	if m.failQuery {
		return false, ErrQueryFailed
	}
	return m.canSkip, nil
}

func (m *Mock) Events() <-chan RawEvent { return m.events }
func (m *Mock) Codes() PlayerCodes { return m.codes }

// MockStreamer is a thread-safe recording StreamerEngine for tests.
type MockStreamer struct {
	recorder
	events chan RawEvent
	codes  StreamerCodes
}

// NewMockStreamer creates a MockStreamer with the default code table.
func NewMockStreamer() *MockStreamer {
	return &MockStreamer{
		events: make(chan RawEvent, mockEventBuffer),
		codes:  DefaultStreamerCodes,
	}
}

// Emit queues a raw event on the Events channel.
func (m *MockStreamer) Emit(ev RawEvent) { m.events <- ev }

func (m *MockStreamer) Initialize(token string) { m.record("Initialize", token) }
func (m *MockStreamer) Connect() { m.record("Connect") }
func (m *MockStreamer) Disconnect(force bool) { m.record("Disconnect", force) }
func (m *MockStreamer) SetVolume(v float64) { m.record("SetVolume", v) }

func (m *MockStreamer) Events() <-chan RawEvent { return m.events }
func (m *MockStreamer) Codes() StreamerCodes { return m.codes }

var (
	_ Engine         = (*Mock)(nil)
	_ StreamerEngine = (*MockStreamer)(nil)
)
