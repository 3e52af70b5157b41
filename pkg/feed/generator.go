package feed

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/umputun/feedmon/pkg/domain"
)

// Generator creates RSS and OPML documents from the monitor state
type Generator struct {
	baseURL string
}

// NewGenerator creates a new feed generator
func NewGenerator(baseURL string) *Generator {
	return &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// rssDoc is an RSS 2.0 document of recent matches
type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Atom    string     `xml:"xmlns:atom,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Generator     string    `xml:"generator"`
	AtomLink      atomLink  `xml:"atom:link"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []rssItem `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

// rssGUID is a match id, not a link to the item
type rssGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link,omitempty"`
	GUID        rssGUID  `xml:"guid"`
	Description string   `xml:"description"`
	PubDate     string   `xml:"pubDate,omitempty"`
	Categories  []string `xml:"category"`
}

// GenerateRSS creates an RSS 2.0 feed of recent matches, topic ids resolved to queries
func (g *Generator) GenerateRSS(matches []domain.MatchItem, topics map[string]domain.Topic) (string, error) {
	items := make([]rssItem, 0, len(matches))
	for _, m := range matches {
		items = append(items, g.rssItem(m, topics))
	}

	doc := rssDoc{
		Version: "2.0",
		Atom:    "http://www.w3.org/2005/Atom",
		Channel: rssChannel{
			Title:         "feedmon - recent matches",
			Link:          g.baseURL + "/",
			Description:   "Feed items matching monitored topics",
			Generator:     "feedmon",
			AtomLink:      atomLink{Href: g.baseURL + "/rss", Rel: "self", Type: "application/rss+xml"},
			LastBuildDate: time.Now().Format(time.RFC1123Z),
			Items:         items,
		},
	}

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal RSS: %w", err)
	}

	return xml.Header + string(output), nil
}

// rssItem converts a match to an RSS item, matched topics go to categories and lead the description
func (g *Generator) rssItem(m domain.MatchItem, topics map[string]domain.Topic) rssItem {
	names := TopicNames(m.MatchedTopics, topics)
	desc := m.Description
	if len(names) > 0 {
		desc = fmt.Sprintf("Matched topics: %s\n\n%s", strings.Join(names, ", "), m.Description)
	}
	return rssItem{
		Title:       m.Title,
		Link:        m.Link,
		GUID:        rssGUID{Value: m.ID},
		Description: desc,
		PubDate:     m.PubDate,
		Categories:  names,
	}
}

// TopicNames resolves topic ids to their queries, unknown ids are skipped
func TopicNames(ids []string, topics map[string]domain.Topic) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if t, ok := topics[id]; ok {
			names = append(names, t.Query)
		}
	}
	return names
}

// GenerateOPML creates an OPML file with feed subscriptions
func (g *Generator) GenerateOPML(feeds []domain.Feed) (string, error) {
	type outline struct {
		XMLName xml.Name `xml:"outline"`
		Text    string   `xml:"text,attr"`
		Title   string   `xml:"title,attr"`
		Type    string   `xml:"type,attr"`
		XMLUrl  string   `xml:"xmlUrl,attr"`
	}

	type body struct {
		XMLName  xml.Name  `xml:"body"`
		Outlines []outline `xml:"outline"`
	}

	type head struct {
		XMLName     xml.Name `xml:"head"`
		Title       string   `xml:"title"`
		DateCreated string   `xml:"dateCreated"`
	}

	type opml struct {
		XMLName xml.Name `xml:"opml"`
		Version string   `xml:"version,attr"`
		Head    head     `xml:"head"`
		Body    body     `xml:"body"`
	}

	outlines := make([]outline, 0, len(feeds))
	for _, f := range feeds {
		outlines = append(outlines, outline{
			Text:   f.Name,
			Title:  f.Name,
			Type:   "rss",
			XMLUrl: f.URL,
		})
	}

	doc := opml{
		Version: "2.0",
		Head: head{
			Title:       "feedmon subscriptions",
			DateCreated: time.Now().Format(time.RFC1123Z),
		},
		Body: body{
			Outlines: outlines,
		},
	}

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal OPML: %w", err)
	}

	return xml.Header + string(output), nil
}
