package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/umputun/feedmon/pkg/monitor"
	"github.com/umputun/feedmon/pkg/scheduler"
)

type addFeedInput struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

type addTopicInput struct {
	Query         string `json:"query"`
	CaseSensitive bool   `json:"case_sensitive,omitempty"`
}

type idInput struct {
	ID string `json:"id"`
}

type changedOutput struct {
	Changed bool   `json:"changed"`
	Message string `json:"message"`
}

func (s *Server) registerTools() {
	noArgs := mcp.ToolInputSchema{Type: "object", Properties: map[string]interface{}{}}

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_feeds",
		Description: "List monitored RSS/Atom feeds in registration order, with last check and last update times.",
		InputSchema: noArgs,
	}, s.handleListFeeds)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "add_feed",
		Description: "Register a feed to monitor. The feed is fetched once to validate it, nothing is registered if it can't be fetched or parsed.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"url": map[string]interface{}{
					"type":        "string",
					"description": "Feed URL, scheme defaults to https. Example: 'https://go.dev/blog/feed.atom'",
				},
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Optional display name, defaults to the feed title",
				},
			},
			Required: []string{"url"},
		},
	}, s.handleAddFeed)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "remove_feed",
		Description: "Stop monitoring a feed. Matches already found from it are kept.",
		InputSchema: idSchema("Feed id as returned by list_feeds"),
	}, s.handleRemoveFeed)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_topics",
		Description: "List topics, the substring queries feed items are matched against.",
		InputSchema: noArgs,
	}, s.handleListTopics)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "add_topic",
		Description: "Add a topic. An item matches when its title or description contains the query. Queries equal ignoring case with the same case sensitivity are rejected as duplicates.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Substring to look for. Example: 'kubernetes'",
				},
				"case_sensitive": map[string]interface{}{
					"type":        "boolean",
					"description": "Match with exact case, default false",
				},
			},
			Required: []string{"query"},
		},
	}, s.handleAddTopic)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "remove_topic",
		Description: "Remove a topic. Existing matches keep referring to it.",
		InputSchema: idSchema("Topic id as returned by list_topics"),
	}, s.handleRemoveTopic)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "check_feeds",
		Description: "Fetch all feeds now and return newly found matches. Joins the running check if there is one.",
		InputSchema: noArgs,
	}, s.handleCheckFeeds)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "archive_match",
		Description: "Move a recent match to the archive. Archived matches are never evicted and never re-inserted.",
		InputSchema: idSchema("Match id"),
	}, s.handleArchiveMatch)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "restore_match",
		Description: "Move an archived match back to the head of recent matches.",
		InputSchema: idSchema("Match id"),
	}, s.handleRestoreMatch)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "get_state",
		Description: "Return feeds, topics, recent and archived matches.",
		InputSchema: noArgs,
	}, s.handleGetState)
}

func idSchema(desc string) mcp.ToolInputSchema {
	return mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"id": map[string]interface{}{"type": "string", "description": desc},
		},
		Required: []string{"id"},
	}
}

func (s *Server) handleListFeeds(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.dispatcher.Dispatch(ctx, monitor.ListFeeds{})
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	return jsonResult(map[string]any{"feeds": nonNil(res.Feeds), "count": len(res.Feeds)})
}

func (s *Server) handleAddFeed(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input addFeedInput
	if err := req.BindArguments(&input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if input.URL == "" {
		return nil, fmt.Errorf("url is required")
	}
	res, err := s.dispatcher.Dispatch(ctx, monitor.AddFeed{Name: input.Name, URL: input.URL})
	if err != nil {
		return nil, fmt.Errorf("add feed: %w", err)
	}
	return jsonResult(res.Feed)
}

func (s *Server) handleRemoveFeed(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.changeByID(ctx, req, func(id string) monitor.Command { return monitor.RemoveFeed{ID: id} }, "feed removed", "feed not found")
}

func (s *Server) handleListTopics(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.dispatcher.Dispatch(ctx, monitor.ListTopics{})
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return jsonResult(map[string]any{"topics": nonNil(res.Topics), "count": len(res.Topics)})
}

func (s *Server) handleAddTopic(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input addTopicInput
	if err := req.BindArguments(&input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	res, err := s.dispatcher.Dispatch(ctx, monitor.AddTopic{Query: input.Query, CaseSensitive: input.CaseSensitive})
	if err != nil {
		return nil, fmt.Errorf("add topic: %w", err)
	}
	return jsonResult(res.Topic)
}

func (s *Server) handleRemoveTopic(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.changeByID(ctx, req, func(id string) monitor.Command { return monitor.RemoveTopic{ID: id} }, "topic removed", "topic not found")
}

// handleCheckFeeds reports per-feed failures along with the matches found by the rest of the feeds
func (s *Server) handleCheckFeeds(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.dispatcher.Dispatch(ctx, monitor.CheckNow{})
	out := map[string]any{"matches": nonNil(res.Matches), "count": len(res.Matches)}
	if err != nil {
		if errors.Is(err, scheduler.ErrStopped) {
			return nil, fmt.Errorf("check feeds: %w", err)
		}
		out["error"] = err.Error()
	}
	return jsonResult(out)
}

func (s *Server) handleArchiveMatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.changeByID(ctx, req, func(id string) monitor.Command { return monitor.ArchiveMatch{ID: id} }, "match archived", "match is not in recent matches")
}

func (s *Server) handleRestoreMatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.changeByID(ctx, req, func(id string) monitor.Command { return monitor.RestoreMatch{ID: id} }, "match restored", "match is not archived")
}

func (s *Server) handleGetState(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.dispatcher.Dispatch(ctx, monitor.GetState{})
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}
	return jsonResult(res.State)
}

// changeByID runs an id-addressed command and reports whether anything changed
func (s *Server) changeByID(ctx context.Context, req mcp.CallToolRequest, mk func(id string) monitor.Command,
	changedMsg, unchangedMsg string) (*mcp.CallToolResult, error) {
	var input idInput
	if err := req.BindArguments(&input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if input.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	res, err := s.dispatcher.Dispatch(ctx, mk(input.ID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Params.Name, err)
	}
	out := changedOutput{Changed: res.Changed, Message: changedMsg}
	if !res.Changed {
		out.Message = unchangedMsg
	}
	return jsonResult(out)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal output: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
