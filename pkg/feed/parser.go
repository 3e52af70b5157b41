package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/mmcdole/gofeed"

	"github.com/umputun/feedmon/pkg/domain"
)

const defaultMaxBodySize = 10 * 1024 * 1024

// Parser fetches feed documents and extracts normalized items
type Parser struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
}

// ParserParams defines parser options
type ParserParams struct {
	Timeout     time.Duration
	UserAgent   string
	MaxBodySize int64
}

// NewParser creates a new feed parser
func NewParser(params ParserParams) *Parser {
	if params.Timeout == 0 {
		params.Timeout = 10 * time.Second
	}
	if params.UserAgent == "" {
		params.UserAgent = "Mozilla/5.0 (compatible; feedmon/1.0; RSS Reader)"
	}
	if params.MaxBodySize == 0 {
		params.MaxBodySize = defaultMaxBodySize
	}
	return &Parser{
		client: &http.Client{
			Timeout: params.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent:   params.UserAgent,
		maxBodySize: params.MaxBodySize,
	}
}

// Parse fetches and parses a feed from the given URL.
// Transport failures and non-success statuses are reported as domain.ErrUnreachable,
// a body that doesn't look like a feed at all as domain.ErrParseEmpty.
// A valid feed without usable items is not an error.
func (p *Parser) Parse(ctx context.Context, url string) (*domain.ParsedFeed, error) {
	body, err := p.fetch(ctx, NormalizeURL(url))
	if err != nil {
		return nil, err
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err == nil {
		return fromGofeed(parsed), nil
	}
	lgr.Printf("[DEBUG] strict parse of %s failed, falling back to tolerant extraction: %v", url, err)

	result, ok := scrape(body)
	if !ok {
		return nil, fmt.Errorf("parse %s: %w", url, domain.ErrParseEmpty)
	}
	return result, nil
}

// fetch retrieves the feed body
func (p *Parser) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w: %w", domain.ErrUnreachable, err)
	}

	// feed-reader accept list, caches bypassed so every cycle sees the current document
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5")
	req.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	req.Header.Set("Pragma", "no-cache")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w: %w", url, domain.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: %w: unexpected status code: %d", url, domain.ErrUnreachable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", url, domain.ErrUnreachable, err)
	}
	return body, nil
}

// fromGofeed converts a strictly parsed feed to normalized items
func fromGofeed(f *gofeed.Feed) *domain.ParsedFeed {
	result := &domain.ParsedFeed{
		Title: cleanText(f.Title),
		Items: make([]domain.RawItem, 0, len(f.Items)),
	}
	switch {
	case f.UpdatedParsed != nil:
		result.Updated = f.UpdatedParsed
	case f.PublishedParsed != nil:
		result.Updated = f.PublishedParsed
	}

	for _, item := range f.Items {
		description := item.Content
		if strings.TrimSpace(description) == "" {
			description = item.Description
		}
		pubDate := item.Published
		if pubDate == "" {
			pubDate = item.Updated
		}
		raw := domain.RawItem{
			GUID:        strings.TrimSpace(item.GUID),
			Title:       cleanText(item.Title),
			Link:        cleanLink(item.Link),
			Description: cleanText(description),
			PubDate:     cleanText(pubDate),
		}
		if !usable(raw) {
			continue
		}
		result.Items = append(result.Items, raw)
	}
	return result
}

// usable reports whether an item can be matched and deduplicated
func usable(item domain.RawItem) bool {
	if item.Title == "" && item.Link == "" {
		return false
	}
	return item.Identity() != ""
}

// NormalizeURL strips a leading "@" and adds https scheme if missing
func NormalizeURL(url string) string {
	url = strings.TrimSpace(url)
	url = strings.TrimPrefix(url, "@")
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}
	return url
}
