// Package agent exposes engine commands as MCP tools for AI agents, served over stdio
package agent

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/umputun/feedmon/pkg/monitor"
)

//go:generate moq -out mocks/dispatcher.go -pkg mocks -skip-ensure -fmt goimports . Dispatcher

// Dispatcher executes engine commands
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd monitor.Command) (monitor.Result, error)
}

// Server wraps the MCP server, each tool maps to exactly one command
type Server struct {
	mcpServer  *server.MCPServer
	dispatcher Dispatcher
}

// NewServer creates MCP server with all tools registered
func NewServer(dispatcher Dispatcher, version string) *Server {
	s := &Server{dispatcher: dispatcher}
	s.mcpServer = server.NewMCPServer("feedmon", version, server.WithToolCapabilities(true))
	s.registerTools()
	return s
}

// ServeStdio serves MCP protocol on stdin/stdout until the input is closed
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
