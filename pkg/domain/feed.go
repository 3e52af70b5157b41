package domain

import "time"

// Feed represents a monitored syndication source
type Feed struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Name        string     `json:"name"`
	LastChecked *time.Time `json:"lastChecked,omitempty"`
	LastUpdate  *time.Time `json:"lastUpdate,omitempty"`
	AddedAt     time.Time  `json:"addedAt"`
}

// ParsedFeed is a fetched and normalized feed document
type ParsedFeed struct {
	Title   string
	Updated *time.Time
	Items   []RawItem
}

// RawItem is a single normalized item extracted from a feed document
type RawItem struct {
	GUID        string
	Title       string
	Link        string
	Description string
	PubDate     string
}

// Identity returns the token used for deduplication, guid if present, link otherwise
func (i RawItem) Identity() string {
	if i.GUID != "" {
		return i.GUID
	}
	return i.Link
}
