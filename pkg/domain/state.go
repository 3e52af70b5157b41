package domain

// State is the full durable snapshot of the monitor
type State struct {
	Feeds           map[string]Feed  `json:"feeds"`
	Topics          map[string]Topic `json:"topics"`
	RecentMatches   []MatchItem      `json:"recentMatches"`
	ArchivedMatches []MatchItem      `json:"archivedMatches"`
	Evicted         []string         `json:"evicted,omitempty"`
}

// NewState returns an empty state with initialized collections
func NewState() State {
	return State{
		Feeds:           map[string]Feed{},
		Topics:          map[string]Topic{},
		RecentMatches:   []MatchItem{},
		ArchivedMatches: []MatchItem{},
	}
}
