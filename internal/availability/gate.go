// Package availability holds callers until the engine says whether anything
// is playable, then answers them once.
package availability

import (
	"context"
	"sync"

	"github.com/feedfm/fmsession/internal/models"
)

// Callback receives the resolved availability.
type Callback func(available bool)

// Gate resolves at most once per engine lifetime. Callbacks registered
// before resolution are queued and run in registration order when Resolve
// is called; callbacks registered afterwards run immediately. There is no
// timeout: if the engine never answers, queued callbacks never run.
type Gate struct {
	mu      sync.Mutex
	state   models.Availability
	pending []Callback
	done    chan struct{}
}

// New creates an unresolved Gate.
func New() *Gate {
	return &Gate{state: models.AvailabilityUnknown, done: make(chan struct{})}
}

// State returns the current availability.
func (g *Gate) State() models.Availability {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// WhenAvailable queues cb until resolution, or runs it now if the Gate has
// already resolved.
func (g *Gate) WhenAvailable(cb Callback) {
	g.mu.Lock()
	if !g.state.Resolved() {
		g.pending = append(g.pending, cb)
		g.mu.Unlock()
		return
	}
	available := g.state == models.Available
	g.mu.Unlock()
	cb(available)
}

// Resolve settles the Gate and drains the queue. It reports whether this
// call did the resolving; later calls leave the value untouched but still
// drain anything queued.
func (g *Gate) Resolve(available bool) (first bool) {
	g.mu.Lock()
	if !g.state.Resolved() {
		g.state = models.AvailabilityOf(available)
		close(g.done)
		first = true
	}
	resolved := g.state == models.Available
	queue := g.pending
	g.pending = nil
	g.mu.Unlock()

	for _, cb := range queue {
		cb(resolved)
	}
	return first
}

// Pending returns the number of queued callbacks.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// Done is closed once the Gate resolves.
func (g *Gate) Done() <-chan struct{} { return g.done }

// Wait blocks until the Gate resolves or ctx is done.
func (g *Gate) Wait(ctx context.Context) (bool, error) {
	select {
	case <-g.done:
		return g.State() == models.Available, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
