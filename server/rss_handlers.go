package server

import (
	"net/http"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/feedmon/pkg/feed"
	"github.com/umputun/feedmon/pkg/monitor"
)

// rssHandler serves recent matches as RSS 2.0
func (s *Server) rssHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.dispatcher.Dispatch(r.Context(), monitor.GetState{})
	if err != nil || res.State == nil {
		lgr.Printf("[ERROR] failed to get state for RSS: %v", err)
		http.Error(w, "Failed to generate RSS feed", http.StatusInternalServerError)
		return
	}

	rss, err := feed.NewGenerator(s.baseURL).GenerateRSS(res.State.RecentMatches, res.State.Topics)
	if err != nil {
		lgr.Printf("[ERROR] failed to generate RSS feed: %v", err)
		http.Error(w, "Failed to generate RSS feed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	if _, err := w.Write([]byte(rss)); err != nil {
		lgr.Printf("[WARN] failed to write RSS response: %v", err)
	}
}

// opmlHandler serves registered feeds as OPML subscription list
func (s *Server) opmlHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.dispatcher.Dispatch(r.Context(), monitor.ListFeeds{})
	if err != nil {
		lgr.Printf("[ERROR] failed to list feeds for OPML: %v", err)
		http.Error(w, "Failed to generate OPML", http.StatusInternalServerError)
		return
	}

	opml, err := feed.NewGenerator(s.baseURL).GenerateOPML(res.Feeds)
	if err != nil {
		lgr.Printf("[ERROR] failed to generate OPML: %v", err)
		http.Error(w, "Failed to generate OPML", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/x-opml; charset=utf-8")
	if _, err := w.Write([]byte(opml)); err != nil {
		lgr.Printf("[WARN] failed to write OPML response: %v", err)
	}
}
