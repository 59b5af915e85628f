package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Handler receives a notification.
type Handler func(Notification)

type subscription struct {
	kind    Kind // empty for OnAny
	handler Handler
	once    bool
	fired   atomic.Bool
}

// Registry is a typed publish/subscribe registry.
//
// Handlers for a kind run in registration order, followed by OnAny handlers
// in registration order. Each Emit works on a snapshot of the subscriber
// list, so a handler that unsubscribes itself or another handler does not
// change who is called in the current round.
type Registry struct {
	mu   sync.Mutex
	subs map[Kind][]*subscription
	any  []*subscription
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[Kind][]*subscription)}
}

// On subscribes h to kind until the returned function is called.
func (r *Registry) On(kind Kind, h Handler) (unsubscribe func()) {
	return r.add(&subscription{kind: kind, handler: h})
}

// Once subscribes h to the next notification of kind only.
func (r *Registry) Once(kind Kind, h Handler) (unsubscribe func()) {
	return r.add(&subscription{kind: kind, handler: h, once: true})
}

// OnAny subscribes h to every notification.
func (r *Registry) OnAny(h Handler) (unsubscribe func()) {
	return r.add(&subscription{handler: h})
}

func (r *Registry) add(s *subscription) func() {
	r.mu.Lock()
	if s.kind == "" {
		r.any = append(r.any, s)
	} else {
		r.subs[s.kind] = append(r.subs[s.kind], s)
	}
	r.mu.Unlock()

	var done sync.Once
	return func() { done.Do(func() { r.remove(s) }) }
}

func (r *Registry) remove(s *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.kind == "" {
		r.any = without(r.any, s)
		return
	}
	r.subs[s.kind] = without(r.subs[s.kind], s)
	if len(r.subs[s.kind]) == 0 {
		delete(r.subs, s.kind)
	}
}

// without returns a new slice so snapshots held by Emit stay intact.
func without(list []*subscription, sub *subscription) []*subscription {
	out := make([]*subscription, 0, len(list))
	for _, s := range list {
		if s != sub {
			out = append(out, s)
		}
	}
	return out
}

// Emit delivers n synchronously to every current subscriber.
func (r *Registry) Emit(n Notification) {
	kind := n.Kind()
	r.mu.Lock()
	round := make([]*subscription, 0, len(r.subs[kind])+len(r.any))
	round = append(round, r.subs[kind]...)
	round = append(round, r.any...)
	r.mu.Unlock()

	for _, s := range round {
		if s.once {
			if !s.fired.CompareAndSwap(false, true) {
				continue
			}
			r.remove(s)
		}
		r.call(s, n)
	}
}

// call runs one handler. A panicking handler is logged and does not stop
// delivery to the rest.
func (r *Registry) call(s *subscription, n Notification) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("events: handler panicked", "kind", n.Kind(), "panic", p)
		}
	}()
	s.handler(n)
}

// Count returns the number of handlers subscribed to kind, not counting
// OnAny handlers.
func (r *Registry) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[kind])
}
