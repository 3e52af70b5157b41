package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/feedmon/pkg/agent/mocks"
	"github.com/umputun/feedmon/pkg/domain"
	"github.com/umputun/feedmon/pkg/monitor"
	"github.com/umputun/feedmon/pkg/scheduler"
)

func TestServer_FeedTools(t *testing.T) {
	var got []monitor.Command
	disp := &mocks.DispatcherMock{
		DispatchFunc: func(_ context.Context, cmd monitor.Command) (monitor.Result, error) {
			got = append(got, cmd)
			switch c := cmd.(type) {
			case monitor.AddFeed:
				return monitor.Result{Feed: &domain.Feed{ID: "f1", Name: c.Name, URL: c.URL}, Changed: true}, nil
			case monitor.ListFeeds:
				return monitor.Result{Feeds: []domain.Feed{{ID: "f1", Name: "blog"}}}, nil
			case monitor.RemoveFeed:
				return monitor.Result{Changed: c.ID == "f1"}, nil
			}
			return monitor.Result{}, fmt.Errorf("unexpected %T", cmd)
		},
	}
	s := NewServer(disp, "test")
	ctx := context.Background()

	res, err := s.handleAddFeed(ctx, request("add_feed", map[string]any{"url": "https://example.com/rss", "name": "blog"}))
	require.NoError(t, err)
	var f domain.Feed
	decode(t, res, &f)
	assert.Equal(t, "f1", f.ID)
	assert.Equal(t, "blog", f.Name)

	res, err = s.handleListFeeds(ctx, request("list_feeds", nil))
	require.NoError(t, err)
	var list struct {
		Feeds []domain.Feed `json:"feeds"`
		Count int           `json:"count"`
	}
	decode(t, res, &list)
	assert.Equal(t, 1, list.Count)

	res, err = s.handleRemoveFeed(ctx, request("remove_feed", map[string]any{"id": "f1"}))
	require.NoError(t, err)
	var out changedOutput
	decode(t, res, &out)
	assert.True(t, out.Changed)
	assert.Equal(t, "feed removed", out.Message)

	res, err = s.handleRemoveFeed(ctx, request("remove_feed", map[string]any{"id": "unknown"}))
	require.NoError(t, err)
	decode(t, res, &out)
	assert.False(t, out.Changed)

	assert.Equal(t, []monitor.Command{
		monitor.AddFeed{Name: "blog", URL: "https://example.com/rss"},
		monitor.ListFeeds{},
		monitor.RemoveFeed{ID: "f1"},
		monitor.RemoveFeed{ID: "unknown"},
	}, got)
}

func TestServer_AddFeedErrors(t *testing.T) {
	disp := &mocks.DispatcherMock{
		DispatchFunc: func(context.Context, monitor.Command) (monitor.Result, error) {
			return monitor.Result{}, fmt.Errorf("validate x: %w", domain.ErrInvalidFeed)
		},
	}
	s := NewServer(disp, "test")

	_, err := s.handleAddFeed(context.Background(), request("add_feed", map[string]any{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url is required")
	assert.Empty(t, disp.DispatchCalls())

	_, err = s.handleAddFeed(context.Background(), request("add_feed", map[string]any{"url": "x"}))
	require.ErrorIs(t, err, domain.ErrInvalidFeed)
}

func TestServer_TopicTools(t *testing.T) {
	disp := &mocks.DispatcherMock{
		DispatchFunc: func(_ context.Context, cmd monitor.Command) (monitor.Result, error) {
			switch c := cmd.(type) {
			case monitor.AddTopic:
				if c.Query == "dup" {
					return monitor.Result{}, domain.ErrDuplicateTopic
				}
				return monitor.Result{Topic: &domain.Topic{ID: "t1", Query: c.Query, CaseSensitive: c.CaseSensitive}}, nil
			case monitor.ListTopics:
				return monitor.Result{}, nil
			case monitor.RemoveTopic:
				return monitor.Result{Changed: true}, nil
			}
			return monitor.Result{}, fmt.Errorf("unexpected %T", cmd)
		},
	}
	s := NewServer(disp, "test")
	ctx := context.Background()

	res, err := s.handleAddTopic(ctx, request("add_topic", map[string]any{"query": "Go", "case_sensitive": true}))
	require.NoError(t, err)
	var topic domain.Topic
	decode(t, res, &topic)
	assert.Equal(t, "Go", topic.Query)
	assert.True(t, topic.CaseSensitive)

	_, err = s.handleAddTopic(ctx, request("add_topic", map[string]any{"query": "dup"}))
	require.ErrorIs(t, err, domain.ErrDuplicateTopic)

	res, err = s.handleListTopics(ctx, request("list_topics", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"topics":[],"count":0}`, text(t, res))

	res, err = s.handleRemoveTopic(ctx, request("remove_topic", map[string]any{"id": "t1"}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "topic removed")

	_, err = s.handleRemoveTopic(ctx, request("remove_topic", map[string]any{}))
	require.Error(t, err)
}

func TestServer_MatchTools(t *testing.T) {
	disp := &mocks.DispatcherMock{
		DispatchFunc: func(_ context.Context, cmd monitor.Command) (monitor.Result, error) {
			switch c := cmd.(type) {
			case monitor.ArchiveMatch:
				return monitor.Result{Changed: c.ID == "m1"}, nil
			case monitor.RestoreMatch:
				return monitor.Result{Changed: c.ID == "m1"}, nil
			case monitor.GetState:
				state := domain.NewState()
				state.ArchivedMatches = []domain.MatchItem{{ID: "m1", Archived: true}}
				return monitor.Result{State: &state}, nil
			}
			return monitor.Result{}, fmt.Errorf("unexpected %T", cmd)
		},
	}
	s := NewServer(disp, "test")
	ctx := context.Background()

	res, err := s.handleArchiveMatch(ctx, request("archive_match", map[string]any{"id": "m1"}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "match archived")

	res, err = s.handleArchiveMatch(ctx, request("archive_match", map[string]any{"id": "m2"}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "match is not in recent matches")

	res, err = s.handleRestoreMatch(ctx, request("restore_match", map[string]any{"id": "m1"}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "match restored")

	res, err = s.handleGetState(ctx, request("get_state", nil))
	require.NoError(t, err)
	var state domain.State
	decode(t, res, &state)
	require.Len(t, state.ArchivedMatches, 1)
	assert.True(t, state.ArchivedMatches[0].Archived)
}

func TestServer_CheckFeeds(t *testing.T) {
	t.Run("matches with partial failure", func(t *testing.T) {
		disp := &mocks.DispatcherMock{
			DispatchFunc: func(context.Context, monitor.Command) (monitor.Result, error) {
				return monitor.Result{Matches: []domain.MatchItem{{ID: "m1", Title: "hit"}}, Changed: true},
					fmt.Errorf("feed f2: %w", domain.ErrUnreachable)
			},
		}
		res, err := NewServer(disp, "test").handleCheckFeeds(context.Background(), request("check_feeds", nil))
		require.NoError(t, err)
		var out struct {
			Matches []domain.MatchItem `json:"matches"`
			Count   int                `json:"count"`
			Error   string             `json:"error"`
		}
		decode(t, res, &out)
		assert.Equal(t, 1, out.Count)
		assert.Equal(t, "hit", out.Matches[0].Title)
		assert.Contains(t, out.Error, "feed unreachable")
	})

	t.Run("stopped", func(t *testing.T) {
		disp := &mocks.DispatcherMock{
			DispatchFunc: func(context.Context, monitor.Command) (monitor.Result, error) {
				return monitor.Result{}, scheduler.ErrStopped
			},
		}
		_, err := NewServer(disp, "test").handleCheckFeeds(context.Background(), request("check_feeds", nil))
		require.ErrorIs(t, err, scheduler.ErrStopped)
	})

	t.Run("dispatch failure on list", func(t *testing.T) {
		disp := &mocks.DispatcherMock{
			DispatchFunc: func(context.Context, monitor.Command) (monitor.Result, error) {
				return monitor.Result{}, errors.New("boom")
			},
		}
		_, err := NewServer(disp, "test").handleListFeeds(context.Background(), request("list_feeds", nil))
		require.Error(t, err)
	})
}

func request(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	if args != nil {
		req.Params.Arguments = args
	}
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", res.Content[0])
	return tc.Text
}

func decode(t *testing.T, res *mcp.CallToolResult, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), v))
}
