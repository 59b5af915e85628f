package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Frame targets.
const (
	TargetPlayer   = "player"
	TargetStreamer = "streamer"
)

// eventCodes is the event a helper sends to publish its state code table.
const eventCodes = "codes"

const (
	bridgeQueueSize   = 256
	bridgeEventBuffer = 64
	maxFrameSize      = 1 << 20
)

// ErrQueueFull is returned by queries that could not be queued.
var ErrQueueFull = errors.New("bridge: outbound queue full")

// frame is one line of the helper protocol. Commands carry Cmd, queries
// carry ID and Cmd, replies carry ID and Result or Error, and events carry
// Event and Body.
type frame struct {
	ID     string                 `json:"id,omitempty"`
	Target string                 `json:"target,omitempty"`
	Cmd    string                 `json:"cmd,omitempty"`
	Args   []interface{}          `json:"args,omitempty"`
	Event  string                 `json:"event,omitempty"`
	Body   map[string]interface{} `json:"body,omitempty"`
	Result json.RawMessage        `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// BridgeOptions configures a Bridge.
type BridgeOptions struct {
	Capabilities Capabilities
	// CommandRate caps outbound frames per second. Zero means 50.
	CommandRate  float64
	CommandBurst int
	// OnReattach runs in its own goroutine each time a helper incarnation
	// after the first attaches. A new helper knows nothing of the previous
	// one's sessions, so this is where callers initialize them again.
	OnReattach func()
}

// Bridge drives an out-of-process engine helper that speaks newline
// delimited JSON on stdio. One helper serves both the player and the
// streamer; frames are routed by target.
type Bridge struct {
	caps       Capabilities
	out        chan frame
	limiter    *rate.Limiter
	onReattach func()

	mu            sync.Mutex
	pending       map[string]chan frame
	attached      int
	playerCodes   PlayerCodes
	streamerCodes StreamerCodes

	player   chan RawEvent
	streamer chan RawEvent
}

// NewBridge creates a Bridge. Nothing is sent until Serve or Supervise runs.
func NewBridge(opts BridgeOptions) *Bridge {
	if opts.CommandRate <= 0 {
		opts.CommandRate = 50
	}
	if opts.CommandBurst <= 0 {
		opts.CommandBurst = 10
	}
	return &Bridge{
		caps:          opts.Capabilities,
		onReattach:    opts.OnReattach,
		out:           make(chan frame, bridgeQueueSize),
		limiter:       rate.NewLimiter(rate.Limit(opts.CommandRate), opts.CommandBurst),
		pending:       make(map[string]chan frame),
		playerCodes:   DefaultPlayerCodes,
		streamerCodes: DefaultStreamerCodes,
		player:        make(chan RawEvent, bridgeEventBuffer),
		streamer:      make(chan RawEvent, bridgeEventBuffer),
	}
}

// Supervise returns a Supervisor that runs argv as the helper and attaches
// the bridge to each incarnation.
func (b *Bridge) Supervise(argv []string) *Supervisor {
	return NewSupervisor("engine-helper", func() *exec.Cmd {
		if len(argv) == 0 {
			return nil
		}
		return exec.Command(argv[0], argv[1:]...)
	}, b.Serve)
}

// Serve exchanges frames over r and w until r is exhausted or ctx is done.
func (b *Bridge) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b.mu.Lock()
	b.attached++
	reattach := b.attached > 1
	b.mu.Unlock()
	if reattach {
		// Frames queued for the previous helper are meaningless to this one.
		if n := b.drop(); n > 0 {
			slog.Info("bridge: dropped frames queued for previous helper", "count", n)
		}
	}

	// The writer must be gone before Serve returns, or it could take
	// frames meant for the next helper.
	written := make(chan struct{})
	go func() {
		defer close(written)
		b.writeLoop(ctx, w)
	}()
	defer func() {
		cancel()
		<-written
	}()
	if reattach && b.onReattach != nil {
		go b.onReattach()
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxFrameSize)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var f frame
		if err := json.Unmarshal(line, &f); err != nil {
			slog.Warn("bridge: malformed frame", "err", err)
			continue
		}
		b.dispatch(ctx, f)
	}
	return sc.Err()
}

func (b *Bridge) drop() int {
	n := 0
	for {
		select {
		case <-b.out:
			n++
		default:
			return n
		}
	}
}

func (b *Bridge) writeLoop(ctx context.Context, w io.Writer) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-b.out:
			if err := b.limiter.Wait(ctx); err != nil {
				return
			}
			data, err := json.Marshal(f)
			if err != nil {
				slog.Error("bridge: encode frame", "cmd", f.Cmd, "err", err)
				continue
			}
			if _, err := w.Write(append(data, '\n')); err != nil {
				slog.Warn("bridge: write failed", "err", err)
				return
			}
		}
	}
}

func (b *Bridge) dispatch(ctx context.Context, f frame) {
	if f.Event == "" {
		if f.ID == "" {
			slog.Debug("bridge: frame with neither event nor id ignored")
			return
		}
		b.mu.Lock()
		ch, ok := b.pending[f.ID]
		delete(b.pending, f.ID)
		b.mu.Unlock()
		if !ok {
			slog.Debug("bridge: reply for unknown query", "id", f.ID)
			return
		}
		ch <- f
		return
	}

	if f.Event == eventCodes {
		b.updateCodes(f)
		return
	}

	var ch chan RawEvent
	switch f.Target {
	case TargetPlayer, "":
		ch = b.player
	case TargetStreamer:
		ch = b.streamer
	default:
		slog.Debug("bridge: event for unknown target", "target", f.Target, "event", f.Event)
		return
	}
	select {
	case ch <- RawEvent{Name: f.Event, Body: f.Body}:
	case <-ctx.Done():
	}
}

func (b *Bridge) updateCodes(f frame) {
	data, err := json.Marshal(f.Body)
	if err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch f.Target {
	case TargetStreamer:
		codes := b.streamerCodes
		if err := json.Unmarshal(data, &codes); err != nil {
			slog.Warn("bridge: bad streamer code table", "err", err)
			return
		}
		b.streamerCodes = codes
	default:
		codes := b.playerCodes
		if err := json.Unmarshal(data, &codes); err != nil {
			slog.Warn("bridge: bad player code table", "err", err)
			return
		}
		b.playerCodes = codes
	}
	slog.Debug("bridge: code table updated", "target", f.Target)
}

// send queues a command frame without blocking.
func (b *Bridge) send(target, cmd string, args ...interface{}) {
	select {
	case b.out <- frame{Target: target, Cmd: cmd, Args: args}:
	default:
		slog.Warn("bridge: outbound queue full, dropping command", "target", target, "cmd", cmd)
	}
}

// query sends a request frame and waits for its reply.
func (b *Bridge) query(ctx context.Context, target, cmd string, result interface{}) error {
	id := uuid.New().String()
	ch := make(chan frame, 1)
	b.mu.Lock()
	b.pending[id] = ch
	b.mu.Unlock()

	forget := func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}

	select {
	case b.out <- frame{ID: id, Target: target, Cmd: cmd}:
	default:
		forget()
		return ErrQueueFull
	}

	select {
	case <-ctx.Done():
		forget()
		return ctx.Err()
	case reply := <-ch:
		if reply.Error != "" {
			return fmt.Errorf("bridge: %s: %s", cmd, reply.Error)
		}
		if err := json.Unmarshal(reply.Result, result); err != nil {
			return fmt.Errorf("bridge: %s: decode result: %w", cmd, err)
		}
		return nil
	}
}

// Player returns the station player view of the bridge.
func (b *Bridge) Player() *BridgePlayer { return &BridgePlayer{b: b} }

// Streamer returns the streamer view of the bridge.
func (b *Bridge) Streamer() *BridgeStreamer { return &BridgeStreamer{b: b} }

// BridgePlayer is an Engine backed by a Bridge.
type BridgePlayer struct{ b *Bridge }

func (p *BridgePlayer) InitializeWithToken(token, secret string, handleRemoteCommands bool) {
	p.b.send(TargetPlayer, "initializeWithToken", token, secret, handleRemoteCommands)
}

func (p *BridgePlayer) Play() { p.b.send(TargetPlayer, "play") }
func (p *BridgePlayer) Pause() { p.b.send(TargetPlayer, "pause") }
func (p *BridgePlayer) Stop() { p.b.send(TargetPlayer, "stop") }
func (p *BridgePlayer) Skip() { p.b.send(TargetPlayer, "skip") }

func (p *BridgePlayer) SetVolume(v float64) { p.b.send(TargetPlayer, "setVolume", v) }

func (p *BridgePlayer) SetActiveStation(id int) { p.b.send(TargetPlayer, "setActiveStation", id) }

func (p *BridgePlayer) SetClientID(id string) { p.b.send(TargetPlayer, "setClientID", id) }

func (p *BridgePlayer) CreateNewClientID() { p.b.send(TargetPlayer, "createNewClientID") }

func (p *BridgePlayer) SeekCurrentStationBy(seconds float64) {
	p.b.send(TargetPlayer, "seekCurrentStationBy", seconds)
}

func (p *BridgePlayer) EnableAudioSession(enable bool) {
	if !p.b.caps.AudioSession {
		return
	}
	p.b.send(TargetPlayer, "enableAudioSession", enable)
}

func (p *BridgePlayer) LogEvent(name string, params map[string]interface{}) {
	p.b.send(TargetPlayer, "logEvent", name, params)
}

func (p *BridgePlayer) MaxSeekableLengthInSeconds(ctx context.Context) (float64, error) {
	var v float64
	err := p.b.query(ctx, TargetPlayer, "maxSeekableLengthInSeconds", &v)
	return v, err
}

func (p *BridgePlayer) CanSkip(ctx context.Context) (bool, error) {
	var v bool
	err := p.b.query(ctx, TargetPlayer, "canSkip", &v)
	return v, err
}

func (p *BridgePlayer) Events() <-chan RawEvent { return p.b.player }

func (p *BridgePlayer) Codes() PlayerCodes {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	return p.b.playerCodes
}

// BridgeStreamer is a StreamerEngine backed by a Bridge.
type BridgeStreamer struct{ b *Bridge }

func (s *BridgeStreamer) Initialize(token string) { s.b.send(TargetStreamer, "initialize", token) }
func (s *BridgeStreamer) Connect() { s.b.send(TargetStreamer, "connect") }
func (s *BridgeStreamer) Disconnect(force bool) { s.b.send(TargetStreamer, "disconnect", force) }
func (s *BridgeStreamer) SetVolume(v float64) { s.b.send(TargetStreamer, "setVolume", v) }

func (s *BridgeStreamer) Events() <-chan RawEvent { return s.b.streamer }

func (s *BridgeStreamer) Codes() StreamerCodes {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	return s.b.streamerCodes
}

var (
	_ Engine         = (*BridgePlayer)(nil)
	_ StreamerEngine = (*BridgeStreamer)(nil)
)
