package notify

import (
	"context"
	"sync"

	"github.com/go-pkgz/lgr"
)

// Hub broadcasts events to in-process subscribers, e.g. server-sent event streams.
// Slow subscribers lose events instead of blocking delivery.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	buffer int
}

// NewHub makes a hub with per-subscriber buffer size
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: map[chan Event]struct{}{}, buffer: buffer}
}

// Subscribe registers a subscriber, the returned func unsubscribes and closes the channel
func (h *Hub) Subscribe() (ch <-chan Event, unsubscribe func()) {
	c := make(chan Event, h.buffer)
	h.mu.Lock()
	h.subs[c] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return c, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, c)
			h.mu.Unlock()
			close(c)
		})
	}
}

// Send broadcasts the event to all current subscribers
func (h *Hub) Send(_ context.Context, e Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.subs {
		select {
		case c <- e:
		default:
			lgr.Printf("[DEBUG] subscriber buffer full, event %s dropped", e.MatchID)
		}
	}
	return nil
}
