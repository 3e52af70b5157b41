package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/feedmon/pkg/monitor"
	"github.com/umputun/feedmon/pkg/notify"
	"github.com/umputun/feedmon/pkg/scheduler"
)

//go:generate moq -out mocks/dispatcher.go -pkg mocks -skip-ensure -fmt goimports . Dispatcher
//go:generate moq -out mocks/events.go -pkg mocks -skip-ensure -fmt goimports . Events
//go:generate moq -out mocks/status.go -pkg mocks -skip-ensure -fmt goimports . StatusProvider

// Server represents HTTP server instance
type Server struct {
	dispatcher Dispatcher
	events     Events
	status     StatusProvider
	listen     string
	timeout    time.Duration
	baseURL    string
	version    string
	debug      bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// Dispatcher executes engine commands
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd monitor.Command) (monitor.Result, error)
}

// Events provides a stream of match notifications
type Events interface {
	Subscribe() (ch <-chan notify.Event, unsubscribe func())
}

// StatusProvider reports scheduler state
type StatusProvider interface {
	State() scheduler.State
}

// Params defines server dependencies and settings. Events and Status are optional.
type Params struct {
	Dispatcher Dispatcher
	Events     Events
	Status     StatusProvider
	Listen     string
	Timeout    time.Duration
	BaseURL    string
	Version    string
	Debug      bool
}

// New initializes a new server instance
func New(p Params) *Server {
	if p.Timeout == 0 {
		p.Timeout = 30 * time.Second
	}
	s := &Server{
		dispatcher: p.Dispatcher,
		events:     p.Events,
		status:     p.Status,
		listen:     p.Listen,
		timeout:    p.Timeout,
		baseURL:    p.BaseURL,
		version:    p.Version,
		debug:      p.Debug,
		router:     routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	lgr.Printf("[INFO] starting server on %s", s.listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:              s.listen,
		Handler:           s.router,
		ReadHeaderTimeout: s.timeout,
		ReadTimeout:       s.timeout,
		// no write timeout, the event stream is long-lived
		IdleTimeout: s.timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		lgr.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		s.lock.Lock()
		defer s.lock.Unlock()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			lgr.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// Handler returns the router, used by tests and embedding callers
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("feedmon", "umputun", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)
		r.HandleFunc("GET /state", s.stateHandler)

		r.HandleFunc("GET /feeds", s.listFeedsHandler)
		r.HandleFunc("POST /feeds", s.addFeedHandler)
		r.HandleFunc("DELETE /feeds/{id}", s.removeFeedHandler)

		r.HandleFunc("GET /topics", s.listTopicsHandler)
		r.HandleFunc("POST /topics", s.addTopicHandler)
		r.HandleFunc("DELETE /topics/{id}", s.removeTopicHandler)

		r.HandleFunc("POST /check", s.checkHandler)
		r.HandleFunc("POST /matches/{id}/archive", s.archiveHandler)
		r.HandleFunc("POST /matches/{id}/restore", s.restoreHandler)

		r.HandleFunc("GET /events", s.eventsHandler)
	})

	s.router.HandleFunc("GET /rss", s.rssHandler)
	s.router.HandleFunc("GET /opml", s.opmlHandler)
}
