// Package registry keeps the monitored feeds and the topics items are matched against
package registry

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/google/uuid"

	"github.com/umputun/feedmon/pkg/domain"
	"github.com/umputun/feedmon/pkg/feed"
)

//go:generate moq -out mocks/validator.go -pkg mocks -skip-ensure -fmt goimports . Validator

// Validator checks that a url serves a parseable feed
type Validator interface {
	Parse(ctx context.Context, url string) (*domain.ParsedFeed, error)
}

// Feeds is the registry of monitored feeds, safe for concurrent use
type Feeds struct {
	validator Validator

	mu    sync.RWMutex
	feeds map[string]domain.Feed
	order []string
}

// NewFeeds makes an empty feed registry
func NewFeeds(validator Validator) *Feeds {
	return &Feeds{validator: validator, feeds: map[string]domain.Feed{}}
}

// Add validates url with a single fetch and registers the feed. On validation failure
// nothing is registered and the error wraps domain.ErrInvalidFeed. Empty name falls back
// to the feed title and then to the url. A url already registered returns the existing feed
// without fetching it again.
func (f *Feeds) Add(ctx context.Context, name, url string) (domain.Feed, error) {
	url = feed.NormalizeURL(url)
	f.mu.RLock()
	existing, found := f.byURL(url)
	f.mu.RUnlock()
	if found {
		return existing, nil
	}

	parsed, err := f.validator.Parse(ctx, url)
	if err != nil {
		return domain.Feed{}, fmt.Errorf("validate %s: %w: %w", url, domain.ErrInvalidFeed, err)
	}

	if name == "" {
		name = parsed.Title
	}
	if name == "" {
		name = url
	}

	now := time.Now().UTC()
	res := domain.Feed{ID: uuid.NewString(), URL: url, Name: name, LastChecked: &now, LastUpdate: parsed.Updated, AddedAt: now}

	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, found := f.byURL(url); found {
		return existing, nil // added concurrently
	}
	f.feeds[res.ID] = res
	f.order = append(f.order, res.ID)
	lgr.Printf("[INFO] feed added %s (%s), %d items", res.Name, res.URL, len(parsed.Items))
	return res, nil
}

// byURL finds a registered feed by normalized url, caller holds the lock
func (f *Feeds) byURL(url string) (domain.Feed, bool) {
	for _, id := range f.order {
		if f.feeds[id].URL == url {
			return f.feeds[id], true
		}
	}
	return domain.Feed{}, false
}

// Remove deletes a feed, returns false if it wasn't registered
func (f *Feeds) Remove(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.feeds[id]; !ok {
		return false
	}
	delete(f.feeds, id)
	f.order = slices.DeleteFunc(f.order, func(v string) bool { return v == id })
	return true
}

// Get returns a feed by id
func (f *Feeds) Get(id string) (domain.Feed, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	res, ok := f.feeds[id]
	return res, ok
}

// List returns feeds in insertion order
func (f *Feeds) List() []domain.Feed {
	f.mu.RLock()
	defer f.mu.RUnlock()
	res := make([]domain.Feed, 0, len(f.order))
	for _, id := range f.order {
		res = append(res, f.feeds[id])
	}
	return res
}

// Touch records a completed check of the feed. Zero updated keeps the previous value.
func (f *Feeds) Touch(id string, checked time.Time, updated *time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.feeds[id]
	if !ok {
		return // removed while the cycle was running
	}
	rec.LastChecked = &checked
	if updated != nil {
		rec.LastUpdate = updated
	}
	f.feeds[id] = rec
}

// Snapshot returns a copy of all feeds keyed by id
func (f *Feeds) Snapshot() map[string]domain.Feed {
	f.mu.RLock()
	defer f.mu.RUnlock()
	res := make(map[string]domain.Feed, len(f.feeds))
	for k, v := range f.feeds {
		res[k] = v
	}
	return res
}

// Load replaces the registry content with persisted feeds
func (f *Feeds) Load(feeds map[string]domain.Feed) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feeds = make(map[string]domain.Feed, len(feeds))
	for k, v := range feeds {
		v.ID = k
		f.feeds[k] = v
	}
	f.order = orderedIDs(f.feeds, func(v domain.Feed) time.Time { return v.AddedAt })
}

// orderedIDs returns map keys sorted by added time, ties broken by id
func orderedIDs[T any](m map[string]T, added func(T) time.Time) []string {
	ids := make([]string, 0, len(m))
	for k := range m {
		ids = append(ids, k)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if c := added(m[a]).Compare(added(m[b])); c != 0 {
			return c
		}
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	})
	return ids
}
