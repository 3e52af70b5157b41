package monitor

import "github.com/umputun/feedmon/pkg/domain"

// Command is one of the operations callers can request from the engine
type Command interface {
	command()
}

// ListFeeds requests registered feeds
type ListFeeds struct{}

// AddFeed requests feed validation and registration
type AddFeed struct {
	Name string
	URL  string
}

// RemoveFeed requests feed removal
type RemoveFeed struct {
	ID string
}

// ListTopics requests registered topics
type ListTopics struct{}

// AddTopic requests topic registration
type AddTopic struct {
	Query         string
	CaseSensitive bool
}

// RemoveTopic requests topic removal
type RemoveTopic struct {
	ID string
}

// CheckNow requests an immediate check cycle, joining the running one if any
type CheckNow struct{}

// ArchiveMatch requests moving a recent match to the archive
type ArchiveMatch struct {
	ID string
}

// RestoreMatch requests moving an archived match back to recent
type RestoreMatch struct {
	ID string
}

// GetState requests the full state snapshot
type GetState struct{}

func (ListFeeds) command()    {}
func (AddFeed) command()      {}
func (RemoveFeed) command()   {}
func (ListTopics) command()   {}
func (AddTopic) command()     {}
func (RemoveTopic) command()  {}
func (CheckNow) command()     {}
func (ArchiveMatch) command() {}
func (RestoreMatch) command() {}
func (GetState) command()     {}

// Result is the outcome of a command, only fields relevant to the command are set
type Result struct {
	Feed    *domain.Feed       `json:"feed,omitempty"`
	Feeds   []domain.Feed      `json:"feeds,omitempty"`
	Topic   *domain.Topic      `json:"topic,omitempty"`
	Topics  []domain.Topic     `json:"topics,omitempty"`
	Matches []domain.MatchItem `json:"matches,omitempty"`
	State   *domain.State      `json:"state,omitempty"`
	Changed bool               `json:"changed"`
}
