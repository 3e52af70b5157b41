package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/feedmon/pkg/domain"
	"github.com/umputun/feedmon/pkg/monitor"
	"github.com/umputun/feedmon/pkg/scheduler"
)

type addFeedRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type addTopicRequest struct {
	Query         string `json:"query"`
	CaseSensitive bool   `json:"caseSensitive"`
}

// statusHandler returns server status along with state counters
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC(),
	}
	if s.status != nil {
		status["scheduler"] = s.status.State().String()
	}
	if res, err := s.dispatcher.Dispatch(r.Context(), monitor.GetState{}); err == nil && res.State != nil {
		status["feeds"] = len(res.State.Feeds)
		status["topics"] = len(res.State.Topics)
		status["recent"] = len(res.State.RecentMatches)
		status["archived"] = len(res.State.ArchivedMatches)
	}
	renderJSON(w, r, http.StatusOK, status)
}

// stateHandler returns the full state snapshot
func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.dispatcher.Dispatch(r.Context(), monitor.GetState{})
	if err != nil {
		renderError(w, r, err, statusCode(err))
		return
	}
	renderJSON(w, r, http.StatusOK, res.State)
}

func (s *Server) listFeedsHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.dispatcher.Dispatch(r.Context(), monitor.ListFeeds{})
	if err != nil {
		renderError(w, r, err, statusCode(err))
		return
	}
	renderJSON(w, r, http.StatusOK, nonNil(res.Feeds))
}

// addFeedHandler validates and registers a feed, responds with the new feed
func (s *Server) addFeedHandler(w http.ResponseWriter, r *http.Request) {
	var req addFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		renderError(w, r, errors.New("feed url is required"), http.StatusBadRequest)
		return
	}

	res, err := s.dispatcher.Dispatch(r.Context(), monitor.AddFeed{Name: req.Name, URL: req.URL})
	if err != nil {
		lgr.Printf("[WARN] failed to add feed %s: %v", req.URL, err)
		renderError(w, r, err, statusCode(err))
		return
	}
	renderJSON(w, r, http.StatusCreated, res.Feed)
}

func (s *Server) removeFeedHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.dispatcher.Dispatch(r.Context(), monitor.RemoveFeed{ID: r.PathValue("id")})
	if err != nil {
		renderError(w, r, err, statusCode(err))
		return
	}
	renderJSON(w, r, http.StatusOK, map[string]bool{"removed": res.Changed})
}

func (s *Server) listTopicsHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.dispatcher.Dispatch(r.Context(), monitor.ListTopics{})
	if err != nil {
		renderError(w, r, err, statusCode(err))
		return
	}
	renderJSON(w, r, http.StatusOK, nonNil(res.Topics))
}

func (s *Server) addTopicHandler(w http.ResponseWriter, r *http.Request) {
	var req addTopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}

	res, err := s.dispatcher.Dispatch(r.Context(), monitor.AddTopic{Query: req.Query, CaseSensitive: req.CaseSensitive})
	if err != nil {
		renderError(w, r, err, statusCode(err))
		return
	}
	renderJSON(w, r, http.StatusCreated, res.Topic)
}

func (s *Server) removeTopicHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.dispatcher.Dispatch(r.Context(), monitor.RemoveTopic{ID: r.PathValue("id")})
	if err != nil {
		renderError(w, r, err, statusCode(err))
		return
	}
	renderJSON(w, r, http.StatusOK, map[string]bool{"removed": res.Changed})
}

// checkHandler runs a check cycle and responds with newly found matches.
// Per-feed failures don't fail the request, they are reported along with the matches.
func (s *Server) checkHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.dispatcher.Dispatch(r.Context(), monitor.CheckNow{})
	if err != nil && errors.Is(err, scheduler.ErrStopped) {
		renderError(w, r, err, http.StatusServiceUnavailable)
		return
	}
	resp := map[string]any{"matches": nonNil(res.Matches)}
	if err != nil {
		lgr.Printf("[WARN] check cycle completed with errors: %v", err)
		resp["error"] = err.Error()
	}
	renderJSON(w, r, http.StatusOK, resp)
}

func (s *Server) archiveHandler(w http.ResponseWriter, r *http.Request) {
	s.moveMatch(w, r, monitor.ArchiveMatch{ID: r.PathValue("id")})
}

func (s *Server) restoreHandler(w http.ResponseWriter, r *http.Request) {
	s.moveMatch(w, r, monitor.RestoreMatch{ID: r.PathValue("id")})
}

// moveMatch runs archive or restore command, unknown match id gives 404
func (s *Server) moveMatch(w http.ResponseWriter, r *http.Request, cmd monitor.Command) {
	res, err := s.dispatcher.Dispatch(r.Context(), cmd)
	if err != nil {
		renderError(w, r, err, statusCode(err))
		return
	}
	if !res.Changed {
		renderError(w, r, errors.New("match not found"), http.StatusNotFound)
		return
	}
	renderJSON(w, r, http.StatusOK, map[string]bool{"changed": true})
}

// statusCode maps engine errors to http status codes
func statusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidFeed), errors.Is(err, domain.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicateTopic):
		return http.StatusConflict
	case errors.Is(err, scheduler.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

// renderJSON sends JSON response
func renderJSON(w http.ResponseWriter, _ *http.Request, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			lgr.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// renderError sends error response as JSON
func renderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	renderJSON(w, r, code, map[string]string{"error": errMsg})
}
