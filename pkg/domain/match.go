package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// MatchItem is a feed item that matched at least one topic
type MatchItem struct {
	ID            string     `json:"id"`
	FeedID        string     `json:"feedId"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Link          string     `json:"link"`
	PubDate       string     `json:"pubDate"`
	MatchedTopics []string   `json:"matchedTopics"`
	Archived      bool       `json:"archived"`
	RemovedAt     *time.Time `json:"removedAt,omitempty"`
}

// MatchID derives the deterministic id of a match from the feed id and the item identity.
// The same item fetched again from the same feed always yields the same id.
func MatchID(feedID, identity string) string {
	h := sha256.Sum256([]byte(identity))
	return feedID + "-" + hex.EncodeToString(h[:8])
}

// NewMatch builds a match candidate for item found in feed feedID
func NewMatch(feedID string, item RawItem, topicIDs []string) MatchItem {
	pubDate := item.PubDate
	if pubDate == "" {
		pubDate = time.Now().UTC().Format(time.RFC3339)
	}
	return MatchItem{
		ID:            MatchID(feedID, item.Identity()),
		FeedID:        feedID,
		Title:         item.Title,
		Description:   item.Description,
		Link:          item.Link,
		PubDate:       pubDate,
		MatchedTopics: topicIDs,
	}
}
