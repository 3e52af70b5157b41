package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-pkgz/lgr"
)

const keepAliveInterval = 30 * time.Second

// eventsHandler streams match notifications as server-sent events until the client goes away
func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		renderError(w, r, errors.New("event stream is not enabled"), http.StatusNotFound)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		renderError(w, r, errors.New("streaming is not supported"), http.StatusInternalServerError)
		return
	}

	ch, unsubscribe := s.events.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case e, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				lgr.Printf("[WARN] can't marshal event %s: %v", e.MatchID, err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: match\nid: %s\ndata: %s\n\n", e.MatchID, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
