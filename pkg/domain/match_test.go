package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchID(t *testing.T) {
	id1 := MatchID("feed1", "https://example.com/a")
	id2 := MatchID("feed1", "https://example.com/a")
	assert.Equal(t, id1, id2, "same feed and identity gives the same id")
	assert.True(t, strings.HasPrefix(id1, "feed1-"))

	assert.NotEqual(t, id1, MatchID("feed2", "https://example.com/a"), "different feed")
	assert.NotEqual(t, id1, MatchID("feed1", "https://example.com/b"), "different identity")
}

func TestRawItem_Identity(t *testing.T) {
	assert.Equal(t, "guid-1", RawItem{GUID: "guid-1", Link: "https://example.com"}.Identity())
	assert.Equal(t, "https://example.com", RawItem{Link: "https://example.com"}.Identity())
	assert.Empty(t, RawItem{Title: "no id"}.Identity())
}

func TestNewMatch(t *testing.T) {
	item := RawItem{GUID: "g1", Title: "Rust 2.0", Link: "https://example.com/rust", Description: "news", PubDate: "Mon, 02 Jan 2006"}
	m := NewMatch("f1", item, []string{"t1"})
	assert.Equal(t, MatchID("f1", "g1"), m.ID)
	assert.Equal(t, "f1", m.FeedID)
	assert.Equal(t, "Rust 2.0", m.Title)
	assert.Equal(t, "Mon, 02 Jan 2006", m.PubDate)
	assert.Equal(t, []string{"t1"}, m.MatchedTopics)
	assert.False(t, m.Archived)
	assert.Nil(t, m.RemovedAt)

	m = NewMatch("f1", RawItem{Link: "https://example.com/x", Title: "x"}, []string{"t1"})
	assert.NotEmpty(t, m.PubDate, "missing pubDate defaults to now")
}
