// Package toast holds the transient notification list shown over the TUI.
// Entries expire exactly once, a fixed interval after insertion, unless the
// user dismisses them first.
package toast

import (
	"sync"
	"time"

	"github.com/dsasheet/tui/internal/api"
	"github.com/dsasheet/tui/internal/clock"
)

// DisplayDuration is how long a toast stays visible.
const DisplayDuration = 5 * time.Second

// Queue is an ordered, auto-expiring notification list.
type Queue struct {
	clk clock.Clock

	mu       sync.Mutex
	items    []api.Notification
	timers   map[string]clock.Timer
	onChange func()
}

// NewQueue creates an empty queue driven by clk.
func NewQueue(clk clock.Clock) *Queue {
	return &Queue{
		clk:    clk,
		timers: make(map[string]clock.Timer),
	}
}

// SetOnChange registers a callback fired after every push, dismissal, or
// expiry. Used by the UI to re-render. Called without the queue's lock held.
func (q *Queue) SetOnChange(fn func()) {
	q.mu.Lock()
	q.onChange = fn
	q.mu.Unlock()
}

// Push appends n and arms its expiry timer. IDs come from the server; a
// duplicate id replaces nothing and resets nothing.
func (q *Queue) Push(n api.Notification) {
	q.mu.Lock()
	if _, exists := q.timers[n.ID]; exists {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, n)
	id := n.ID
	q.timers[id] = q.clk.AfterFunc(DisplayDuration, func() {
		q.Dismiss(id)
	})
	fn := q.onChange
	q.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Dismiss removes the entry with the given id. Idempotent.
func (q *Queue) Dismiss(id string) {
	q.mu.Lock()
	t, ok := q.timers[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	t.Stop()
	delete(q.timers, id)
	for i, n := range q.items {
		if n.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
	fn := q.onChange
	q.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Items returns the visible notifications, oldest first.
func (q *Queue) Items() []api.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]api.Notification, len(q.items))
	copy(out, q.items)
	return out
}

// Len reports the number of visible notifications.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
