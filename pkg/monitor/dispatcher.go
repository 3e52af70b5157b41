package monitor

import (
	"context"
	"fmt"

	"github.com/umputun/feedmon/pkg/domain"
)

//go:generate moq -out mocks/cycle_runner.go -pkg mocks -skip-ensure -fmt goimports . CycleRunner

// CycleRunner runs a check cycle on request, joining the one in flight
type CycleRunner interface {
	CheckNow(ctx context.Context) ([]domain.MatchItem, error)
}

// Dispatcher executes commands against the engine
type Dispatcher struct {
	engine *Engine
	cycles CycleRunner
}

// NewDispatcher makes a dispatcher. With nil cycles CheckNow runs the engine cycle directly.
func NewDispatcher(engine *Engine, cycles CycleRunner) *Dispatcher {
	return &Dispatcher{engine: engine, cycles: cycles}
}

// Dispatch executes a command. Errors are returned as is, along with the partial result
// when a mutation was applied but failed to persist.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (Result, error) {
	switch c := cmd.(type) {
	case ListFeeds:
		return Result{Feeds: d.engine.ListFeeds()}, nil
	case AddFeed:
		f, err := d.engine.AddFeed(ctx, c.Name, c.URL)
		if f.ID == "" {
			return Result{}, err
		}
		return Result{Feed: &f, Changed: true}, err
	case RemoveFeed:
		changed, err := d.engine.RemoveFeed(ctx, c.ID)
		return Result{Changed: changed}, err
	case ListTopics:
		return Result{Topics: d.engine.ListTopics()}, nil
	case AddTopic:
		t, err := d.engine.AddTopic(ctx, c.Query, c.CaseSensitive)
		if t.ID == "" {
			return Result{}, err
		}
		return Result{Topic: &t, Changed: true}, err
	case RemoveTopic:
		changed, err := d.engine.RemoveTopic(ctx, c.ID)
		return Result{Changed: changed}, err
	case CheckNow:
		var matches []domain.MatchItem
		var err error
		if d.cycles != nil {
			matches, err = d.cycles.CheckNow(ctx)
		} else {
			matches, err = d.engine.CheckFeeds(ctx)
		}
		return Result{Matches: matches, Changed: len(matches) > 0}, err
	case ArchiveMatch:
		changed, err := d.engine.ArchiveMatch(ctx, c.ID)
		return Result{Changed: changed}, err
	case RestoreMatch:
		changed, err := d.engine.RestoreMatch(ctx, c.ID)
		return Result{Changed: changed}, err
	case GetState:
		state := d.engine.State()
		return Result{State: &state}, nil
	default:
		return Result{}, fmt.Errorf("unsupported command %T", cmd)
	}
}
