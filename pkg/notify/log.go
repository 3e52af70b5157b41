package notify

import (
	"context"

	"github.com/go-pkgz/lgr"
)

// Log writes events to the application log
type Log struct {
	L lgr.L
}

// Send logs the event
func (l Log) Send(_ context.Context, e Event) error {
	logger := l.L
	if logger == nil {
		logger = lgr.Default()
	}
	logger.Logf("[INFO] new match %s: %q %s, topics: %v", e.MatchID, e.Title, e.Link, e.Topics)
	return nil
}
