// Package mcpserver exposes running report sessions to MCP clients so a
// reviewer can inspect a candidate plan, approve or reject it, and read the
// resulting document.
package mcpserver

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/richinex/reportflow/session"
	"github.com/richinex/reportflow/storage"
	"github.com/richinex/reportflow/workflow"
)

// Engine is the part of the runtime the tools drive.
type Engine interface {
	Status(ctx context.Context, sessionID string) (workflow.Result, error)
	Resume(ctx context.Context, sessionID string, decision *workflow.Decision) (workflow.Result, error)
}

// Store is the read side of persistence the tools use.
type Store interface {
	Sessions(ctx context.Context) (map[string]session.Status, error)
	Sections(ctx context.Context, sessionID string) ([]storage.SectionRecord, error)
}

// Deps are the collaborators of the server.
type Deps struct {
	Engine Engine
	Store  Store
	Logger *slog.Logger

	// Background runs resumed sessions. Nil starts a goroutine bound to
	// BaseContext.
	Background  func(func())
	BaseContext context.Context
}

// New creates the MCP server with every tool registered.
func New(deps Deps, version string) *server.MCPServer {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.BaseContext == nil {
		deps.BaseContext = context.Background()
	}
	if deps.Background == nil {
		deps.Background = func(f func()) { go f() }
	}

	s := server.NewMCPServer(
		"reportflow",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	status := NewStatusTool(deps.Engine)
	s.AddTool(status.Definition(), status.Handle)

	decide := NewDecideTool(deps.Engine, deps.Background, deps.BaseContext, deps.Logger)
	s.AddTool(decide.Definition(), decide.Handle)

	document := NewDocumentTool(deps.Engine, deps.Store)
	s.AddTool(document.Definition(), document.Handle)

	sessions := NewSessionsTool(deps.Store)
	s.AddTool(sessions.Definition(), sessions.Handle)

	return s
}

// Serve runs the server on stdin/stdout.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

const instructions = `reportflow drafts long technical reports in phases: plan, review, draft, synthesize.
A session waiting for review has a candidate plan. Read it with report_status, then call
report_decide with "approve", or "reject" and feedback describing the changes. Drafting continues
in the background; poll report_status and fetch the result with report_document.`
