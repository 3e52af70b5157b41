// Package notify delivers events about newly found matches to configured sinks
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/feedmon/pkg/domain"
)

// Event is a notification about a newly inserted match
type Event struct {
	MatchID         string    `json:"matchId"`
	FeedID          string    `json:"feedId"`
	Title           string    `json:"title"`
	Link            string    `json:"link"`
	Topics          []string  `json:"topics"`
	Message         string    `json:"message"`
	NotifyExtension bool      `json:"notifyExtension"`
	NotifyEmail     bool      `json:"notifyEmail"`
	Time            time.Time `json:"time"`
}

// Sink delivers a single event
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Dispatcher fans out events to sinks asynchronously. Each sink gets events in the order
// they were notified. Delivery failures are logged and never reported to the caller.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	wg      sync.WaitGroup

	mu    sync.Mutex
	tails []chan struct{} // per sink, closed when the last queued batch is delivered
}

// NewDispatcher makes a dispatcher for the given sinks, each delivery limited by timeout
func NewDispatcher(timeout time.Duration, sinks ...Sink) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{sinks: sinks, timeout: timeout, tails: make([]chan struct{}, len(sinks))}
}

// Notify emits one event per match, topic ids resolved to their queries. Returns immediately,
// deliveries are not bound to ctx cancellation.
func (d *Dispatcher) Notify(ctx context.Context, matches []domain.MatchItem, topics map[string]domain.Topic) {
	if len(d.sinks) == 0 || len(matches) == 0 {
		return
	}
	events := make([]Event, 0, len(matches))
	for _, m := range matches {
		events = append(events, NewEvent(m, topics))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for i, s := range d.sinks {
		prev, done := d.tails[i], make(chan struct{})
		d.tails[i] = done
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			defer close(done)
			if prev != nil {
				<-prev // previous batch for this sink goes first
			}
			for _, e := range events {
				d.send(ctx, s, e)
			}
		}()
	}
}

func (d *Dispatcher) send(ctx context.Context, s Sink, e Event) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()
	if err := s.Send(sctx, e); err != nil {
		lgr.Printf("[WARN] failed to deliver notification for %s via %T: %v", e.MatchID, s, err)
	}
}

// Close waits for in-flight deliveries
func (d *Dispatcher) Close() {
	d.wg.Wait()
}

// NewEvent builds the event for a match
func NewEvent(m domain.MatchItem, topics map[string]domain.Topic) Event {
	e := Event{MatchID: m.ID, FeedID: m.FeedID, Title: m.Title, Link: m.Link, Topics: []string{}, Time: time.Now().UTC()}
	for _, id := range m.MatchedTopics {
		t, ok := topics[id]
		if !ok {
			continue
		}
		e.Topics = append(e.Topics, t.Query)
		e.NotifyExtension = e.NotifyExtension || t.NotifyExtension
		e.NotifyEmail = e.NotifyEmail || t.NotifyEmail
	}
	e.Message = fmt.Sprintf("%s\nMatched topics: %s", m.Title, strings.Join(e.Topics, ", "))
	return e
}

// pushOnly passes events to the wrapped sink only if a matched topic asked for push notifications
type pushOnly struct {
	Sink
}

// PushOnly wraps sink to skip events of topics with extension notifications turned off
func PushOnly(s Sink) Sink {
	return pushOnly{Sink: s}
}

// Send delivers the event if push notifications are enabled for it
func (p pushOnly) Send(ctx context.Context, e Event) error {
	if !e.NotifyExtension {
		return nil
	}
	return p.Sink.Send(ctx, e)
}
