// Package mcpserver exposes the run's plan and step history over MCP,
// so external agents and tooling can read and update the same plan
// state the loop renders.
package mcpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mark3labs/dispatchr/internal/journal"
	"github.com/mark3labs/dispatchr/internal/logger"
)

// Server is an embedded MCP HTTP server over one session's journal.
type Server struct {
	store     *journal.Store
	session   string
	iteration func() int

	mcpServer *server.MCPServer
	stdServer *http.Server
	port      int
	mu        sync.Mutex
}

// New creates a server for the given session. The iteration supplier
// attributes plan writes to the loop pass that made them; nil means
// iteration 0. The server does not listen until Start.
func New(store *journal.Store, session string, iteration func() int) *Server {
	if iteration == nil {
		iteration = func() int { return 0 }
	}
	return &Server{store: store, session: session, iteration: iteration}
}

// Start serves MCP over HTTP on a random loopback port and returns the
// port. The listener is opened before the goroutine starts, so the
// server accepts connections as soon as Start returns.
func (s *Server) Start(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdServer != nil {
		return 0, fmt.Errorf("server already started")
	}

	s.mcpServer = server.NewMCPServer(
		"dispatchr-tools",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("finding available port: %w", err)
	}
	s.port = listener.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.Handle("/mcp", server.NewStreamableHTTPServer(
		s.mcpServer,
		server.WithStateLess(true),
	))
	s.stdServer = &http.Server{Handler: mux}

	stdServer := s.stdServer
	go func() {
		if err := stdServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("MCP server error: %v", err)
		}
	}()

	logger.Debug("MCP server ready on port %d", s.port)
	return s.port, nil
}

// Stop shuts the HTTP server down. Safe to call more than once.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdServer == nil {
		return nil
	}
	if err := s.stdServer.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("stopping MCP server: %w", err)
	}
	s.stdServer = nil
	s.mcpServer = nil
	return nil
}

// URL returns the MCP endpoint URL.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("http://localhost:%d/mcp", s.port)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("plan_add",
			mcp.WithDescription("Add checklist items to the session plan"),
			mcp.WithArray("items", mcp.Required(),
				mcp.Items(map[string]any{"type": "string"}),
			),
		),
		s.handlePlanAdd,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("plan_update",
			mcp.WithDescription("Update the status of one plan item"),
			mcp.WithNumber("index", mcp.Required(),
				mcp.Description("1-based item index"),
			),
			mcp.WithString("status", mcp.Required(),
				mcp.Description("New status: pending, in_progress, or done"),
			),
		),
		s.handlePlanUpdate,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("plan_list",
			mcp.WithDescription("List the session plan as a checklist"),
		),
		s.handlePlanList,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("steps_list",
			mcp.WithDescription("List the tool executions recorded so far"),
		),
		s.handleStepsList,
	)
}
