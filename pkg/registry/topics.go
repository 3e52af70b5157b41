package registry

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/umputun/feedmon/pkg/domain"
)

// Topics is the registry of topics, global to all feeds
type Topics struct {
	mu     sync.RWMutex
	topics map[string]domain.Topic
	order  []string
}

// NewTopics makes an empty topic registry
func NewTopics() *Topics {
	return &Topics{topics: map[string]domain.Topic{}}
}

// Add registers a topic. Queries equal under case folding with the same case sensitivity
// flag are duplicates, the same query with a different flag is a distinct topic.
func (t *Topics) Add(query string, caseSensitive bool) (domain.Topic, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Topic{}, domain.ErrEmptyQuery
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, existing := range t.topics {
		if existing.CaseSensitive == caseSensitive && strings.EqualFold(existing.Query, query) {
			return domain.Topic{}, fmt.Errorf("topic %q: %w", query, domain.ErrDuplicateTopic)
		}
	}

	res := domain.Topic{
		ID:              uuid.NewString(),
		Query:           query,
		CaseSensitive:   caseSensitive,
		NotifyEmail:     false,
		NotifyExtension: true,
		AddedAt:         time.Now().UTC(),
	}
	t.topics[res.ID] = res
	t.order = append(t.order, res.ID)
	return res, nil
}

// Remove deletes a topic, returns false if it wasn't registered
func (t *Topics) Remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.topics[id]; !ok {
		return false
	}
	delete(t.topics, id)
	t.order = slices.DeleteFunc(t.order, func(v string) bool { return v == id })
	return true
}

// List returns topics in insertion order
func (t *Topics) List() []domain.Topic {
	t.mu.RLock()
	defer t.mu.RUnlock()
	res := make([]domain.Topic, 0, len(t.order))
	for _, id := range t.order {
		res = append(res, t.topics[id])
	}
	return res
}

// Snapshot returns a copy of all topics keyed by id
func (t *Topics) Snapshot() map[string]domain.Topic {
	t.mu.RLock()
	defer t.mu.RUnlock()
	res := make(map[string]domain.Topic, len(t.topics))
	for k, v := range t.topics {
		res[k] = v
	}
	return res
}

// Load replaces the registry content with persisted topics
func (t *Topics) Load(topics map[string]domain.Topic) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.topics = make(map[string]domain.Topic, len(topics))
	for k, v := range topics {
		v.ID = k
		t.topics[k] = v
	}
	t.order = orderedIDs(t.topics, func(v domain.Topic) time.Time { return v.AddedAt })
}
