// Package store keeps the recent and archived matches with deduplication and retention
package store

import (
	"sync"
	"time"

	"github.com/umputun/feedmon/pkg/domain"
)

// DefaultRetention is the number of recent matches kept when not configured
const DefaultRetention = 100

// tombstoneFactor bounds remembered evicted ids as a multiple of retention
const tombstoneFactor = 10

// Matches holds recent matches, newest first, and archived matches, most recently archived first.
// An id is present in at most one of the two sets. Recent matches beyond retention are evicted
// silently, archived matches are never evicted.
type Matches struct {
	retention int

	mu       sync.Mutex
	recent   []domain.MatchItem
	archived []domain.MatchItem
	evicted  []string
	seen     map[string]struct{} // ids of evicted matches
}

// NewMatches makes an empty store keeping up to retention recent matches
func NewMatches(retention int) *Matches {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Matches{retention: retention, seen: map[string]struct{}{}}
}

// Ingest inserts a candidate at the head of the recent set. Returns false and changes nothing
// if a match with the same id is already recent, archived or was recently evicted.
func (m *Matches) Ingest(candidate domain.MatchItem) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexOf(m.recent, candidate.ID) >= 0 || m.indexOf(m.archived, candidate.ID) >= 0 {
		return false
	}
	if _, ok := m.seen[candidate.ID]; ok {
		return false
	}
	candidate.Archived = false
	candidate.RemovedAt = nil
	m.recent = append([]domain.MatchItem{candidate}, m.recent...)
	m.evict()
	return true
}

// Archive moves a recent match to the head of the archived set. No-op if id isn't recent.
func (m *Matches) Archive(id string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexOf(m.recent, id)
	if idx < 0 {
		return false
	}
	item := m.recent[idx]
	m.recent = append(m.recent[:idx:idx], m.recent[idx+1:]...)
	item.Archived = true
	item.RemovedAt = &now
	m.archived = append([]domain.MatchItem{item}, m.archived...)
	return true
}

// Restore moves an archived match back to the head of the recent set and applies retention.
// No-op if id isn't archived.
func (m *Matches) Restore(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexOf(m.archived, id)
	if idx < 0 {
		return false
	}
	item := m.archived[idx]
	m.archived = append(m.archived[:idx:idx], m.archived[idx+1:]...)
	item.Archived = false
	item.RemovedAt = nil
	m.recent = append([]domain.MatchItem{item}, m.recent...)
	m.evict()
	return true
}

// Recent returns a copy of recent matches, newest first
func (m *Matches) Recent() []domain.MatchItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.MatchItem{}, m.recent...)
}

// Archived returns a copy of archived matches, most recently archived first
func (m *Matches) Archived() []domain.MatchItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.MatchItem{}, m.archived...)
}

// Evicted returns ids of matches dropped by retention, oldest first
func (m *Matches) Evicted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.evicted...)
}

// Load replaces the store content with persisted matches. Recent matches beyond
// retention are evicted, an id present in both sets is kept as archived.
func (m *Matches) Load(recent, archived []domain.MatchItem, evicted []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archived = make([]domain.MatchItem, 0, len(archived))
	for _, item := range archived {
		if m.indexOf(m.archived, item.ID) >= 0 {
			continue
		}
		item.Archived = true
		if item.RemovedAt == nil {
			now := time.Now().UTC()
			item.RemovedAt = &now
		}
		m.archived = append(m.archived, item)
	}
	m.recent = make([]domain.MatchItem, 0, len(recent))
	for _, item := range recent {
		if m.indexOf(m.recent, item.ID) >= 0 || m.indexOf(m.archived, item.ID) >= 0 {
			continue
		}
		item.Archived = false
		item.RemovedAt = nil
		m.recent = append(m.recent, item)
	}
	m.evicted = nil
	m.seen = map[string]struct{}{}
	for _, id := range evicted {
		m.tombstone(id)
	}
	m.evict()
}

// evict drops recent matches beyond retention, remembering their ids
func (m *Matches) evict() {
	if len(m.recent) <= m.retention {
		return
	}
	for _, item := range m.recent[m.retention:] {
		m.tombstone(item.ID)
	}
	m.recent = m.recent[:m.retention:m.retention]
}

// tombstone remembers an evicted id, forgetting the oldest ones past the bound
func (m *Matches) tombstone(id string) {
	if _, ok := m.seen[id]; ok {
		return
	}
	m.seen[id] = struct{}{}
	m.evicted = append(m.evicted, id)
	if limit := m.retention * tombstoneFactor; len(m.evicted) > limit {
		for _, old := range m.evicted[:len(m.evicted)-limit] {
			delete(m.seen, old)
		}
		m.evicted = append([]string{}, m.evicted[len(m.evicted)-limit:]...)
	}
}

func (m *Matches) indexOf(items []domain.MatchItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}
