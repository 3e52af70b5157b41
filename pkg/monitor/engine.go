// Package monitor runs feed check cycles and owns all mutations of feeds, topics and matches.
// Every mutation and the flush that follows it happen under a single engine lock,
// fetches run outside of it.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/umputun/feedmon/pkg/domain"
	"github.com/umputun/feedmon/pkg/matcher"
	"github.com/umputun/feedmon/pkg/registry"
	"github.com/umputun/feedmon/pkg/store"
)

//go:generate moq -out mocks/fetcher.go -pkg mocks -skip-ensure -fmt goimports . Fetcher
//go:generate moq -out mocks/store.go -pkg mocks -skip-ensure -fmt goimports . Store
//go:generate moq -out mocks/notifier.go -pkg mocks -skip-ensure -fmt goimports . Notifier

// Fetcher retrieves and parses a feed document
type Fetcher interface {
	Parse(ctx context.Context, url string) (*domain.ParsedFeed, error)
}

// Store loads and saves the full state
type Store interface {
	Load(ctx context.Context) (domain.State, error)
	Save(ctx context.Context, state domain.State) error
}

// Notifier is told about newly inserted matches
type Notifier interface {
	Notify(ctx context.Context, matches []domain.MatchItem, topics map[string]domain.Topic)
}

// Engine is the monitor service facade
type Engine struct {
	feeds    *registry.Feeds
	topics   *registry.Topics
	matches  *store.Matches
	store    Store
	fetcher  Fetcher
	notifier Notifier

	maxWorkers int
	mu         sync.Mutex // serializes mutations and flushes
}

// Params defines engine dependencies and options
type Params struct {
	Fetcher    Fetcher
	Store      Store
	Notifier   Notifier // optional
	Retention  int      // recent matches kept, store.DefaultRetention if 0
	MaxWorkers int      // concurrent fetches per cycle, 5 if 0
}

// New makes an engine with empty state, call Init to load the persisted one
func New(p Params) *Engine {
	if p.MaxWorkers <= 0 {
		p.MaxWorkers = 5
	}
	return &Engine{
		feeds:      registry.NewFeeds(p.Fetcher),
		topics:     registry.NewTopics(),
		matches:    store.NewMatches(p.Retention),
		store:      p.Store,
		fetcher:    p.Fetcher,
		notifier:   p.Notifier,
		maxWorkers: p.MaxWorkers,
	}
}

// Init loads the persisted state
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	e.feeds.Load(state.Feeds)
	e.topics.Load(state.Topics)
	e.matches.Load(state.RecentMatches, state.ArchivedMatches, state.Evicted)
	lgr.Printf("[INFO] state loaded: %d feeds, %d topics, %d recent and %d archived matches",
		len(state.Feeds), len(state.Topics), len(state.RecentMatches), len(state.ArchivedMatches))
	return nil
}

// ListFeeds returns registered feeds in insertion order
func (e *Engine) ListFeeds() []domain.Feed {
	return e.feeds.List()
}

// AddFeed validates and registers a feed. A persistence error is returned together with
// the registered feed, the feed stays registered in memory.
func (e *Engine) AddFeed(ctx context.Context, name, url string) (domain.Feed, error) {
	f, err := e.feeds.Add(ctx, name, url) // validation fetch happens outside of the engine lock
	if err != nil {
		return domain.Feed{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return f, e.flush(ctx)
}

// RemoveFeed unregisters a feed, topics and matches stay. Removing an unknown feed is a no-op.
func (e *Engine) RemoveFeed(ctx context.Context, id string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.feeds.Remove(id) {
		return false, nil
	}
	return true, e.flush(ctx)
}

// ListTopics returns topics in insertion order
func (e *Engine) ListTopics() []domain.Topic {
	return e.topics.List()
}

// AddTopic registers a topic
func (e *Engine) AddTopic(ctx context.Context, query string, caseSensitive bool) (domain.Topic, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.topics.Add(query, caseSensitive)
	if err != nil {
		return domain.Topic{}, err
	}
	return t, e.flush(ctx)
}

// RemoveTopic unregisters a topic. Removing an unknown topic is a no-op.
func (e *Engine) RemoveTopic(ctx context.Context, id string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.topics.Remove(id) {
		return false, nil
	}
	return true, e.flush(ctx)
}

// ArchiveMatch moves a recent match to the archive, false if it isn't recent
func (e *Engine) ArchiveMatch(ctx context.Context, id string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.matches.Archive(id, time.Now().UTC()) {
		return false, nil
	}
	return true, e.flush(ctx)
}

// RestoreMatch moves an archived match back to recent, false if it isn't archived
func (e *Engine) RestoreMatch(ctx context.Context, id string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.matches.Restore(id) {
		return false, nil
	}
	return true, e.flush(ctx)
}

// State returns a consistent snapshot of the whole state
func (e *Engine) State() domain.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

// CheckFeeds runs one check cycle: fetches all feeds concurrently, matches new items against
// topics and ingests matches, flushing after every feed that produced new matches and once
// at the end. Unreachable or broken feeds are logged and skipped. Returns newly inserted
// matches, notifications are sent for exactly those.
func (e *Engine) CheckFeeds(ctx context.Context) ([]domain.MatchItem, error) {
	feeds := e.feeds.List()
	if len(feeds) == 0 || len(e.topics.List()) == 0 {
		lgr.Printf("[DEBUG] nothing to check, %d feeds, %d topics", len(feeds), len(e.topics.List()))
		return nil, nil
	}

	st := time.Now()
	var inserted []domain.MatchItem
	var saveErrs []error
	var failed int

	g := new(errgroup.Group) // not WithContext, a failing feed must not cancel the others
	g.SetLimit(e.maxWorkers)
	for _, f := range feeds {
		g.Go(func() error {
			parsed, err := e.fetcher.Parse(ctx, f.URL)
			e.mu.Lock()
			defer e.mu.Unlock()
			if err != nil {
				failed++
				lgr.Printf("[WARN] failed to check feed %s (%s): %v", f.Name, f.URL, err)
				return nil
			}
			items, err := e.apply(ctx, f, parsed)
			inserted = append(inserted, items...)
			if err != nil {
				saveErrs = append(saveErrs, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	e.mu.Lock()
	if err := e.flush(ctx); err != nil {
		saveErrs = append(saveErrs, err)
	}
	topics := e.topics.Snapshot()
	e.mu.Unlock()

	lgr.Printf("[INFO] checked %d feeds (%d failed) in %v, %d new matches",
		len(feeds), failed, time.Since(st).Truncate(time.Millisecond), len(inserted))

	if len(inserted) > 0 && e.notifier != nil {
		e.notifier.Notify(ctx, inserted, topics)
	}
	return inserted, errors.Join(saveErrs...)
}

// apply matches and ingests items of a fetched feed, must be called under the engine lock
func (e *Engine) apply(ctx context.Context, f domain.Feed, parsed *domain.ParsedFeed) ([]domain.MatchItem, error) {
	if _, ok := e.feeds.Get(f.ID); !ok {
		lgr.Printf("[DEBUG] feed %s removed during the cycle, results dropped", f.URL)
		return nil, nil
	}

	topics := e.topics.List()
	var inserted []domain.MatchItem
	// feeds list newest first, ingest oldest first so the newest ends up on top
	for _, item := range slices.Backward(parsed.Items) {
		found := matcher.Match(item, topics)
		if len(found) == 0 {
			continue
		}
		candidate := domain.NewMatch(f.ID, item, matcher.IDs(found))
		if e.matches.Ingest(candidate) {
			lgr.Printf("[DEBUG] new match %s from %s: %q", candidate.ID, f.Name, candidate.Title)
			inserted = append(inserted, candidate)
		}
	}
	e.feeds.Touch(f.ID, time.Now().UTC(), parsed.Updated)

	if len(inserted) == 0 {
		return nil, nil
	}
	return inserted, e.flush(ctx)
}

// flush saves the state, must be called under the engine lock. Uses a context detached from
// cancellation so a mutation already applied in memory is always persisted.
func (e *Engine) flush(ctx context.Context) error {
	if err := e.store.Save(context.WithoutCancel(ctx), e.snapshot()); err != nil {
		lgr.Printf("[WARN] failed to persist state: %v", err)
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}

func (e *Engine) snapshot() domain.State {
	return domain.State{
		Feeds:           e.feeds.Snapshot(),
		Topics:          e.topics.Snapshot(),
		RecentMatches:   e.matches.Recent(),
		ArchivedMatches: e.matches.Archived(),
		Evicted:         e.matches.Evicted(),
	}
}
