// Package matcher tests feed items against topic queries
package matcher

import (
	"strings"

	"github.com/umputun/feedmon/pkg/domain"
)

// Match returns all topics whose query is a substring of the item's title and description.
// Topics that are not case sensitive compare both sides lower-cased.
func Match(item domain.RawItem, topics []domain.Topic) []domain.Topic {
	content := item.Title + " " + item.Description
	lowered := ""
	var res []domain.Topic
	for _, t := range topics {
		if t.Query == "" {
			continue
		}
		if t.CaseSensitive {
			if strings.Contains(content, t.Query) {
				res = append(res, t)
			}
			continue
		}
		if lowered == "" {
			lowered = strings.ToLower(content)
		}
		if strings.Contains(lowered, strings.ToLower(t.Query)) {
			res = append(res, t)
		}
	}
	return res
}

// IDs returns ids of the given topics, in the same order
func IDs(topics []domain.Topic) []string {
	ids := make([]string, 0, len(topics))
	for _, t := range topics {
		ids = append(ids, t.ID)
	}
	return ids
}
