// Package streamer implements the token-addressed simulcast streamer
// session.
//
// The consumer-facing state may run ahead of the engine: a token change
// shows INITIALIZING and a connect shows STALLED before the engine says so.
// Those optimistic values live next to the last engine-reported state in
// models.StreamerSession, and the pending intent (token, trying to play) is
// kept apart in StreamerIntent.
package streamer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/feedfm/fmsession/internal/config"
	"github.com/feedfm/fmsession/internal/engine"
	"github.com/feedfm/fmsession/internal/events"
	"github.com/feedfm/fmsession/internal/metrics"
	"github.com/feedfm/fmsession/internal/models"
	"github.com/feedfm/fmsession/internal/normalize"
)

const source = events.SourceStreamer

var errNoChange = errors.New("streamer: no change")

// Config holds optional collaborators.
type Config struct {
	Store   config.Store
	Metrics *metrics.Metrics
}

// Streamer is the simulcast streamer session.
type Streamer struct {
	eng     engine.StreamerEngine
	cfg     Config
	metrics *metrics.Metrics

	mu    sync.RWMutex
	state models.StreamerSession

	// Notifications are queued under mu in the same critical section as
	// the state change they describe, then delivered in queue order by one
	// goroutine at a time.
	queue     []queued
	seq       uint64
	delivered uint64
	draining  bool
	drained   *sync.Cond
	emitted   models.StreamerState // drainer only

	handleMu sync.Mutex
	reg      *events.Registry

	closed    atomic.Bool
	stop      chan struct{}
	closeOnce sync.Once
}

type queued struct {
	seq uint64
	n   events.Notification
}

// New creates a Streamer with no stream bound.
func New(eng engine.StreamerEngine, cfg Config) *Streamer {
	s := &Streamer{
		eng:     eng,
		cfg:     cfg,
		metrics: cfg.Metrics,
		state:   models.DefaultStreamerSession(),
		reg:     events.NewRegistry(),
		stop:    make(chan struct{}),
	}
	s.emitted = s.state.State
	s.drained = sync.NewCond(&s.mu)
	return s
}

// Snapshot returns a copy of the current state.
func (s *Streamer) Snapshot() models.StreamerSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.DeepCopy()
}

// update mutates a copy of the state with fn and swaps it in. The
// notification fn returns, if any, is queued before the lock is released;
// its sequence number is returned (0 when nothing was queued).
func (s *Streamer) update(fn func(*models.StreamerSession) (events.Notification, error)) (models.StreamerSession, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.DeepCopy()
	n, err := fn(&next)
	if err != nil {
		return models.StreamerSession{}, 0, err
	}
	s.state = next
	var seq uint64
	if n != nil {
		s.seq++
		seq = s.seq
		s.queue = append(s.queue, queued{seq: seq, n: n})
	}
	return s.state.DeepCopy(), seq, nil
}

func (s *Streamer) apply(fn func(*models.StreamerSession) error) (models.StreamerSession, error) {
	next, _, err := s.update(func(st *models.StreamerSession) (events.Notification, error) {
		return nil, fn(st)
	})
	return next, err
}

// flush delivers queued notifications. If another goroutine is delivering,
// or a handler further up this goroutine's stack is, flush returns at once
// and that caller delivers what was queued.
func (s *Streamer) flush() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for len(s.queue) > 0 {
		q := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		s.deliver(q.n)
		s.mu.Lock()
		s.delivered = q.seq
		s.drained.Broadcast()
	}
	s.draining = false
	s.mu.Unlock()
}

// await blocks until notification seq has been delivered.
func (s *Streamer) await(seq uint64) {
	s.mu.Lock()
	for s.delivered < seq {
		s.drained.Wait()
	}
	s.mu.Unlock()
}

func (s *Streamer) deliver(n events.Notification) {
	if sc, ok := n.(events.StreamerStateChange); ok {
		if sc.State == s.emitted {
			s.metrics.Suppressed(source, reasonDuplicate)
			return
		}
		s.emitted = sc.State
	}
	s.reg.Emit(n)
}

func stateChange(prev, next models.StreamerState) events.Notification {
	if prev == next {
		return nil
	}
	return events.StreamerStateChange{State: next}
}

// Run feeds engine events to Handle until ctx is done, the engine closes
// its channel, or Close is called.
func (s *Streamer) Run(ctx context.Context) {
	evs := s.eng.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case raw, ok := <-evs:
			if !ok {
				return
			}
			s.Handle(raw)
		}
	}
}

// Close stops Run. Commands issued afterwards return models.ErrClosed.
func (s *Streamer) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.stop)
	})
}

// Registry exposes the notification registry.
func (s *Streamer) Registry() *events.Registry { return s.reg }

// On subscribes h to kind.
func (s *Streamer) On(kind events.Kind, h events.Handler) func() { return s.reg.On(kind, h) }

// Once subscribes h to the next notification of kind.
func (s *Streamer) Once(kind events.Kind, h events.Handler) func() { return s.reg.Once(kind, h) }

// OnAny subscribes h to every notification.
func (s *Streamer) OnAny(h events.Handler) func() { return s.reg.OnAny(h) }

// OnStateChange subscribes to changes of the surfaced state.
func (s *Streamer) OnStateChange(fn func(models.StreamerState)) func() {
	return s.reg.On(events.KindStreamerStateChange, func(n events.Notification) {
		fn(n.(events.StreamerStateChange).State)
	})
}

// --- commands ---

// Connect starts playback. A token different from the bound one rebinds
// the stream first; playback then starts automatically once the engine
// reports the new stream idle. Connect does nothing while UNAVAILABLE or
// while the bound stream is still INITIALIZING.
func (s *Streamer) Connect(token string) error {
	if s.closed.Load() {
		return models.ErrClosed
	}
	token = strings.TrimSpace(token)

	var call func()
	prev := s.Snapshot().State
	next, _, err := s.update(func(st *models.StreamerSession) (events.Notification, error) {
		if st.State == models.StreamerUnavailable {
			return nil, errNoChange
		}
		was := st.State
		if token != "" && token != st.Intent.Token {
			st.Intent.Token = token
			st.Intent.TryingToPlay = true
			st.State = models.StreamerInitializing
			call = func() { s.eng.Initialize(token) }
			return stateChange(was, st.State), nil
		}
		if st.State != models.StreamerIdle {
			return nil, errNoChange
		}
		st.Intent.TryingToPlay = true
		st.State = models.StreamerStalled
		call = s.eng.Connect
		return stateChange(was, st.State), nil
	})
	if err != nil {
		slog.Debug("streamer: connect ignored", "state", prev)
		s.metrics.Command(source, "connect", metrics.OutcomeNoop)
		return nil
	}
	if token != "" {
		s.persistToken(next.Intent.Token)
	}
	call()
	s.metrics.Command(source, "connect", metrics.OutcomeSent)
	s.flush()
	return nil
}

// SwitchStream binds a different stream. It does not start playback by
// itself; an earlier connect intent carries over.
func (s *Streamer) SwitchStream(token string) error {
	if s.closed.Load() {
		return models.ErrClosed
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return models.ErrBadRequest("stream token is required")
	}

	_, _, err := s.update(func(st *models.StreamerSession) (events.Notification, error) {
		if token == st.Intent.Token {
			return nil, errNoChange
		}
		was := st.State
		st.Intent.Token = token
		st.State = models.StreamerInitializing
		return stateChange(was, st.State), nil
	})
	if err != nil {
		s.metrics.Command(source, "switch", metrics.OutcomeNoop)
		return nil
	}
	s.eng.Initialize(token)
	s.metrics.Command(source, "switch", metrics.OutcomeSent)
	s.persistToken(token)
	s.flush()
	return nil
}

// Disconnect stops playback. A forced disconnect also unbinds the stream.
func (s *Streamer) Disconnect(force bool) error {
	if s.closed.Load() {
		return models.ErrClosed
	}

	_, _, err := s.update(func(st *models.StreamerSession) (events.Notification, error) {
		switch st.State {
		case models.StreamerUninitialized, models.StreamerUnavailable:
			return nil, errNoChange
		}
		was := st.State
		st.CurrentPlay = nil
		st.ElapsedSeconds = 0
		st.Intent.TryingToPlay = false
		if force {
			st.State = models.StreamerUninitialized
			st.Intent.Token = ""
		} else {
			st.State = models.StreamerIdle
		}
		return stateChange(was, st.State), nil
	})
	if err != nil {
		s.metrics.Command(source, "disconnect", metrics.OutcomeNoop)
		return nil
	}
	s.eng.Disconnect(force)
	s.metrics.Command(source, "disconnect", metrics.OutcomeSent)
	if force {
		s.persistToken("")
	}
	s.flush()
	return nil
}

// Rebind sends the bound token to a new engine lifetime, such as a
// restarted helper process, and shows INITIALIZING until the engine
// answers. A pending connect intent survives, so a stream that was
// playing resumes once the engine reports idle.
func (s *Streamer) Rebind() error {
	if s.closed.Load() {
		return models.ErrClosed
	}

	var token string
	_, _, _ = s.update(func(st *models.StreamerSession) (events.Notification, error) {
		was := st.State
		token = st.Intent.Token
		st.CurrentPlay = nil
		st.ElapsedSeconds = 0
		st.EngineState = models.StreamerUninitialized
		if token == "" {
			st.Intent.TryingToPlay = false
			st.State = models.StreamerUninitialized
		} else {
			st.State = models.StreamerInitializing
		}
		return stateChange(was, st.State), nil
	})
	if token != "" {
		s.eng.Initialize(token)
		s.metrics.Command(source, "rebind", metrics.OutcomeSent)
	} else {
		s.metrics.Command(source, "rebind", metrics.OutcomeNoop)
	}
	s.flush()
	return nil
}

// SetVolume stores v and forwards it to the engine unless the stream is
// unavailable.
func (s *Streamer) SetVolume(v float64) error {
	if s.closed.Load() {
		return models.ErrClosed
	}
	if !models.ValidVolume(v) {
		return models.ErrVolumeRange(v)
	}
	next, _ := s.apply(func(st *models.StreamerSession) error {
		st.Volume = v
		return nil
	})
	if next.State == models.StreamerUnavailable {
		s.metrics.Command(source, "volume", metrics.OutcomeNoop)
		return nil
	}
	s.eng.SetVolume(v)
	s.metrics.Command(source, "volume", metrics.OutcomeSent)
	return nil
}

func (s *Streamer) persistToken(token string) {
	err := config.Update(s.cfg.Store, func(rec *models.Persisted) { rec.StreamToken = token })
	if err != nil {
		slog.Warn("streamer: failed to persist stream token", "err", err)
	}
}

// --- events ---

// Suppression reasons reported to metrics.
const (
	reasonStale     = "stale-token"
	reasonUnknown   = "unknown"
	reasonDuplicate = "duplicate"
	reasonClosed    = "closed"
)

// Handle applies one raw engine event. Calls are serialized and every
// handler for one event returns before the next event is applied.
// Notifications queued by commands racing with Handle are delivered in the
// order their state changes were made.
func (s *Streamer) Handle(raw engine.RawEvent) {
	s.handleMu.Lock()
	defer s.handleMu.Unlock()

	if s.closed.Load() {
		s.metrics.Suppressed(source, reasonClosed)
		return
	}
	s.metrics.Event(source, raw.Name)

	ev, err := normalize.Streamer(raw, s.eng.Codes())
	if err != nil {
		slog.Debug("streamer: event dropped", "event", raw.Name, "err", err)
		s.metrics.Suppressed(source, reasonUnknown)
		return
	}
	if tok, ok := ev.EventToken(); ok && tok != s.Snapshot().Intent.Token {
		slog.Debug("streamer: stale event dropped", "event", raw.Name, "event_token", tok)
		s.metrics.Suppressed(source, reasonStale)
		return
	}

	var seq uint64
	switch e := ev.(type) {
	case normalize.StreamerStateChanged:
		seq = s.handleState(e.State)
	case normalize.StreamerPlayStarted:
		_, seq, _ = s.update(func(st *models.StreamerSession) (events.Notification, error) {
			st.CurrentPlay = e.Play.DeepCopy()
			st.ElapsedSeconds = 0
			return events.PlayStarted{Play: *st.CurrentPlay.DeepCopy()}, nil
		})
	case normalize.StreamerElapsed:
		_, seq, err = s.update(func(st *models.StreamerSession) (events.Notification, error) {
			if e.Seconds < st.ElapsedSeconds {
				return nil, errNoChange
			}
			st.ElapsedSeconds = e.Seconds
			return events.Elapsed{Seconds: e.Seconds}, nil
		})
		if err != nil {
			s.metrics.Suppressed(source, reasonDuplicate)
			return
		}
	case normalize.StreamerError:
		if e.Unavailable {
			slog.Info("streamer: engine error reports stream unavailable", "code", e.Code)
			seq = s.handleState(models.StreamerUnavailable)
			break
		}
		slog.Warn("streamer: engine error", "code", e.Code, "message", e.Message)
		_, seq, _ = s.update(func(*models.StreamerSession) (events.Notification, error) {
			return events.StreamerError{Code: e.Code, Message: e.Message}, nil
		})
	}

	s.flush()
	if seq > 0 {
		s.await(seq)
	}
}

// handleState applies an engine-reported state, including the latch: a
// pending connect intent turns IDLE into STALLED and connects again.
func (s *Streamer) handleState(reported models.StreamerState) uint64 {
	reconnect := false
	_, seq, _ := s.update(func(st *models.StreamerSession) (events.Notification, error) {
		prev := st.State
		st.EngineState = reported
		out := reported
		switch reported {
		case models.StreamerIdle:
			st.CurrentPlay = nil
			st.ElapsedSeconds = 0
			if st.Intent.TryingToPlay {
				out = models.StreamerStalled
				reconnect = true
			}
		case models.StreamerUnavailable:
			st.CurrentPlay = nil
			st.ElapsedSeconds = 0
			st.Intent.TryingToPlay = false
		}
		st.State = out
		return stateChange(prev, out), nil
	})

	if reconnect {
		slog.Debug("streamer: connect intent pending, reconnecting")
		s.eng.Connect()
		s.metrics.Command(source, "reconnect", metrics.OutcomeSent)
	}
	if seq == 0 {
		s.metrics.Suppressed(source, reasonDuplicate)
	}
	return seq
}
