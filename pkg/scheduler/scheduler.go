// Package scheduler triggers periodic and on-demand check cycles, never more than one at a time
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/singleflight"

	"github.com/umputun/feedmon/pkg/domain"
)

//go:generate moq -out mocks/checker.go -pkg mocks -skip-ensure -fmt goimports . Checker

// ErrStopped returned by CheckNow after Stop
var ErrStopped = errors.New("scheduler stopped")

// Checker runs a single check cycle
type Checker interface {
	CheckFeeds(ctx context.Context) ([]domain.MatchItem, error)
}

// State of the scheduler
type State int

// scheduler states, Stopped is terminal
const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Scheduler runs cycles on a ticker and on request. A tick arriving while a cycle runs is
// dropped, a manual request joins the running cycle and gets its result.
type Scheduler struct {
	checker    Checker
	interval   time.Duration
	grace      time.Duration
	runOnStart bool

	group   singleflight.Group
	running atomic.Bool

	// cycles run with their own context, cancelled by Stop once the grace period is over
	cycleCtx    context.Context
	cycleCancel context.CancelFunc

	mu         sync.Mutex
	started    bool
	stopped    bool
	loopCancel context.CancelFunc
	wg         sync.WaitGroup
}

// Params defines scheduler options
type Params struct {
	Checker     Checker
	Interval    time.Duration // 5m if 0
	GracePeriod time.Duration // 10s if 0
	RunOnStart  bool
}

// New makes a scheduler, Start begins periodic cycles
func New(p Params) *Scheduler {
	if p.Interval <= 0 {
		p.Interval = 5 * time.Minute
	}
	if p.GracePeriod <= 0 {
		p.GracePeriod = 10 * time.Second
	}
	s := &Scheduler{checker: p.Checker, interval: p.Interval, grace: p.GracePeriod, runOnStart: p.RunOnStart}
	s.cycleCtx, s.cycleCancel = context.WithCancel(context.Background())
	return s
}

// Start begins the ticker loop, it ends when ctx is done or on Stop. Calling Start again is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	ctx, s.loopCancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	lgr.Printf("[INFO] scheduler started with interval %v", s.interval)
}

// CheckNow runs a cycle and waits for it. If a cycle is already running it waits for that one
// and returns its result. Returns ErrStopped after Stop.
func (s *Scheduler) CheckNow(ctx context.Context) ([]domain.MatchItem, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrStopped
	}
	s.mu.Unlock()

	// the cycle itself is tracked by Stop, a caller giving up doesn't end it
	select {
	case res := <-s.group.DoChan("cycle", s.cycle):
		if res.Shared {
			lgr.Printf("[DEBUG] manual check joined the running cycle")
		}
		matches, _ := res.Val.([]domain.MatchItem)
		return matches, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop ends the ticker loop and waits for the running cycle up to the grace period,
// then cancels it. No cycles start after Stop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if s.loopCancel != nil {
		s.loopCancel()
	}
	s.mu.Unlock()

	lgr.Printf("[INFO] stopping scheduler...")
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.grace):
		lgr.Printf("[WARN] check cycle still running after %v, cancelling", s.grace)
		s.cycleCancel()
		<-done
	}
	s.cycleCancel()
	lgr.Printf("[INFO] scheduler stopped")
}

// State reports the current scheduler state
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.stopped:
		return Stopped
	case s.running.Load():
		return Running
	default:
		return Idle
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if s.runOnStart {
		s.tick()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick starts a cycle in background unless one is running
func (s *Scheduler) tick() {
	if s.running.Load() {
		lgr.Printf("[DEBUG] check cycle still running, tick dropped")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err, _ := s.group.Do("cycle", s.cycle); err != nil {
			lgr.Printf("[WARN] check cycle failed: %v", err)
		}
	}()
}

func (s *Scheduler) cycle() (any, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrStopped
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	s.running.Store(true)
	defer s.running.Store(false)
	return s.checker.CheckFeeds(s.cycleCtx)
}
