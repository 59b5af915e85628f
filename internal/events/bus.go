package events

import (
	"sync"
	"time"

	"github.com/feedfm/fmsession/internal/models"
)

const subBufferSize = 8

// Sources of an Envelope.
const (
	SourcePlayer   = "player"
	SourceStreamer = "streamer"
)

// Envelope is what SSE clients receive: the notification plus the snapshot
// of the session that produced it.
type Envelope struct {
	Source   string                  `json:"source"`
	Kind     Kind                    `json:"kind,omitempty"`
	Data     Notification            `json:"data,omitempty"`
	Player   *models.Session         `json:"player,omitempty"`
	Streamer *models.StreamerSession `json:"streamer,omitempty"`
	At       time.Time               `json:"at"`
}

// Bus is a non-blocking publish-subscribe bus for envelopes.
// Subscribers that are slow to consume have envelopes dropped rather than
// blocking publishers.
type Bus struct {
	mu   sync.Mutex
	subs map[string]chan Envelope
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]chan Envelope),
	}
}

// Subscribe creates a new subscription with the given ID.
// Call Unsubscribe when done to clean up.
func (b *Bus) Subscribe(id string) <-chan Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Envelope, subBufferSize)
	b.subs[id] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish sends an envelope to all subscribers, dropping it for any
// subscriber whose channel is full.
func (b *Bus) Publish(env Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- env:
		default:
		}
	}
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Relay publishes every notification emitted on reg to the bus. fill adds
// the session snapshot to the envelope. The returned function stops the
// relay.
func Relay(reg *Registry, bus *Bus, source string, fill func(*Envelope)) (stop func()) {
	return reg.OnAny(func(n Notification) {
		env := Envelope{Source: source, Kind: n.Kind(), Data: n, At: time.Now()}
		if fill != nil {
			fill(&env)
		}
		bus.Publish(env)
	})
}
