package feed

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/umputun/feedmon/pkg/domain"
)

// tolerant extraction for documents the strict parser rejects, e.g. feeds with unescaped
// ampersands or broken nesting. Item boundaries are located structurally and every field
// is taken from the first matching element inside the item.

var (
	feedMarkerRe = regexp.MustCompile(`(?i)<(rss|feed|channel|rdf:rdf)[\s>]`)
	itemRe       = regexp.MustCompile(`(?is)<item[\s>].*?</item>`)
	entryRe      = regexp.MustCompile(`(?is)<entry[\s>].*?</entry>`)
	feedDateRe   = regexp.MustCompile(`(?is)<(?:lastBuildDate|updated|pubDate)[^>]*>(.*?)</(?:lastBuildDate|updated|pubDate)>`)
	feedTitleRe  = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	linkHrefRe   = regexp.MustCompile(`(?is)<link[^>]*\shref\s*=\s*["']([^"']+)["']`)

	titleRes   = fieldRes("title")
	linkRes    = []*regexp.Regexp{regexp.MustCompile(`(?is)<link(?:\s[^>]*[^/])?>(.*?)</link>`)}
	guidRes    = fieldRes("guid", "id")
	contentRes = fieldRes("content:encoded", "content")
	summaryRes = fieldRes("description", "summary")
	dateRes    = fieldRes("pubDate", "published", "dc:date", "updated")
)

// scrape extracts items from a feed-like document. The second value is false
// when the body doesn't look like a feed at all.
func scrape(body []byte) (*domain.ParsedFeed, bool) {
	blocks := itemRe.FindAll(body, -1)
	if len(blocks) == 0 {
		blocks = entryRe.FindAll(body, -1)
	}
	if len(blocks) == 0 && !feedMarkerRe.Match(body) {
		return nil, false
	}

	result := &domain.ParsedFeed{Items: make([]domain.RawItem, 0, len(blocks))}
	head := body
	if len(blocks) > 0 {
		if idx := bytes.Index(body, blocks[0]); idx >= 0 {
			head = body[:idx]
		}
	}
	if m := feedTitleRe.FindSubmatch(head); m != nil {
		result.Title = cleanText(string(m[1]))
	}
	if m := feedDateRe.FindSubmatch(head); m != nil {
		if ts, err := parseDate(cleanText(string(m[1]))); err == nil {
			result.Updated = &ts
		}
	}

	for _, block := range blocks {
		s := string(block)
		description := firstMatch(s, contentRes)
		if strings.TrimSpace(cleanText(description)) == "" {
			description = firstMatch(s, summaryRes)
		}
		link := firstMatch(s, linkRes)
		if strings.TrimSpace(link) == "" {
			if m := linkHrefRe.FindStringSubmatch(s); m != nil {
				link = m[1]
			}
		}
		item := domain.RawItem{
			GUID:        cleanLink(firstMatch(s, guidRes)),
			Title:       cleanText(firstMatch(s, titleRes)),
			Link:        cleanLink(link),
			Description: cleanText(description),
			PubDate:     cleanText(firstMatch(s, dateRes)),
		}
		if !usable(item) {
			continue
		}
		result.Items = append(result.Items, item)
	}
	return result, true
}

// fieldRes builds first-match extractors for the given element names, in priority order
func fieldRes(names ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(names))
	for _, name := range names {
		n := regexp.QuoteMeta(name)
		res = append(res, regexp.MustCompile(`(?is)<`+n+`(?:\s[^>]*[^/])?>(.*?)</`+n+`>`))
	}
	return res
}

// firstMatch returns the content of the first element matched by any of res
func firstMatch(s string, res []*regexp.Regexp) string {
	for _, re := range res {
		if m := re.FindStringSubmatch(s); m != nil && strings.TrimSpace(m[1]) != "" {
			return m[1]
		}
	}
	return ""
}

var dateLayouts = []string{
	time.RFC1123Z, time.RFC1123, time.RFC3339, time.RFC822Z, time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700", "Mon, 2 Jan 2006 15:04:05 MST", "2006-01-02T15:04:05", "2006-01-02",
}

// parseDate parses the common feed date formats
func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format %q", s)
}
