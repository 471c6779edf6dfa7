package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/richinex/reportflow/model"
	"github.com/richinex/reportflow/session"
	"github.com/richinex/reportflow/workflow"
)

// StatusTool handles report_status.
type StatusTool struct {
	engine Engine
}

// NewStatusTool creates a StatusTool.
func NewStatusTool(engine Engine) *StatusTool {
	return &StatusTool{engine: engine}
}

// Definition returns the MCP tool definition for report_status.
func (t *StatusTool) Definition() mcp.Tool {
	return mcp.NewTool("report_status",
		mcp.WithDescription("Show a session's status, progress and, while it awaits review, the candidate plan."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("The session to inspect")),
	)
}

// Handle processes the report_status tool call.
func (t *StatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("session_id", "")
	if id == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}

	res, err := t.engine.Status(ctx, id)
	if err != nil {
		return lookupError(id, err), nil
	}
	return mcp.NewToolResultText(formatStatus(res)), nil
}

func formatStatus(res workflow.Result) string {
	st := res.State
	var b strings.Builder
	fmt.Fprintf(&b, "# Session %s\n\n", res.SessionID)
	fmt.Fprintf(&b, "**Status:** %s\n", res.Status)
	fmt.Fprintf(&b, "**Node:** %s\n", res.Node)
	fmt.Fprintf(&b, "**Approval:** %s\n", st.ApprovalStatus)
	if st.Plan != nil {
		total := len(workflow.Flatten(*st.Plan))
		fmt.Fprintf(&b, "**Tasks:** %d of %d\n", min(st.TaskCursor, total), total)
	}
	if len(st.Skipped) > 0 {
		fmt.Fprintf(&b, "**Skipped:** %s\n", strings.Join(st.Skipped, ", "))
	}
	if st.LastError != "" {
		fmt.Fprintf(&b, "**Last error:** %s\n", st.LastError)
	}
	if res.Status == session.StatusAwaitingReview && st.Plan != nil {
		plan, err := workflow.PlanJSON(*st.Plan)
		if err == nil {
			b.WriteString("\n## Candidate plan\n\n```json\n" + plan + "\n```\n")
		}
	}
	return b.String()
}

// DecideTool handles report_decide.
type DecideTool struct {
	engine     Engine
	background func(func())
	base       context.Context
	logger     *slog.Logger
}

// NewDecideTool creates a DecideTool. Resumed sessions run through
// background with base as their context.
func NewDecideTool(engine Engine, background func(func()), base context.Context, logger *slog.Logger) *DecideTool {
	return &DecideTool{engine: engine, background: background, base: base, logger: logger}
}

// Definition returns the MCP tool definition for report_decide.
func (t *DecideTool) Definition() mcp.Tool {
	return mcp.NewTool("report_decide",
		mcp.WithDescription("Approve or reject the candidate plan of a session awaiting review. "+
			"Approval starts drafting; rejection sends the feedback to the planner."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("The session awaiting review")),
		mcp.WithString("decision", mcp.Required(), mcp.Description("approve or reject"), mcp.Enum("approve", "reject")),
		mcp.WithString("feedback", mcp.Description("Requested changes; expected when rejecting")),
	)
}

// Handle processes the report_decide tool call.
func (t *DecideTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("session_id", "")
	if id == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}
	status, err := model.ParseApprovalStatus(req.GetString("decision", ""))
	if err != nil || status == model.ApprovalPending {
		return mcp.NewToolResultError("'decision' must be approve or reject"), nil
	}
	feedback := strings.TrimSpace(req.GetString("feedback", ""))
	if status == model.ApprovalRejected && feedback == "" {
		return mcp.NewToolResultError("'feedback' is required when rejecting"), nil
	}

	res, err := t.engine.Status(ctx, id)
	if err != nil {
		return lookupError(id, err), nil
	}
	if res.Status != session.StatusAwaitingReview {
		return mcp.NewToolResultError(fmt.Sprintf("session %s is %s, not awaiting review", id, res.Status)), nil
	}

	decision := &workflow.Decision{Status: status, Feedback: feedback}
	t.background(func() {
		out, err := t.engine.Resume(t.base, id, decision)
		if err != nil {
			t.logger.Error("resumed session failed", "session_id", id, "error", err)
			return
		}
		t.logger.Info("resumed session suspended", "session_id", id, "status", out.Status)
	})

	return mcp.NewToolResultText(fmt.Sprintf("Decision %s recorded for %s; the session is running.", status, id)), nil
}

// DocumentTool handles report_document.
type DocumentTool struct {
	engine Engine
	store  Store
}

// NewDocumentTool creates a DocumentTool.
func NewDocumentTool(engine Engine, store Store) *DocumentTool {
	return &DocumentTool{engine: engine, store: store}
}

// Definition returns the MCP tool definition for report_document.
func (t *DocumentTool) Definition() mcp.Tool {
	return mcp.NewTool("report_document",
		mcp.WithDescription("Return the assembled document of a session. Before completion the committed sections so far are assembled."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("The session")),
	)
}

// Handle processes the report_document tool call.
func (t *DocumentTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("session_id", "")
	if id == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}

	res, err := t.engine.Status(ctx, id)
	if err != nil {
		return lookupError(id, err), nil
	}
	if res.State.Document != "" {
		return mcp.NewToolResultText(res.State.Document), nil
	}
	if res.State.Plan == nil {
		return mcp.NewToolResultText(fmt.Sprintf("Session %s has no plan yet.", id)), nil
	}

	sections, err := t.store.Sections(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read sections: %v", err)), nil
	}
	drafts := make(map[string]string, len(sections))
	for _, s := range sections {
		drafts[s.Title] = s.Content
	}
	doc := workflow.Assemble(*res.State.Plan, drafts)
	if doc == "" {
		return mcp.NewToolResultText(fmt.Sprintf("Session %s has no committed sections yet.", id)), nil
	}
	return mcp.NewToolResultText(doc), nil
}

// SessionsTool handles report_sessions.
type SessionsTool struct {
	store Store
}

// NewSessionsTool creates a SessionsTool.
func NewSessionsTool(store Store) *SessionsTool {
	return &SessionsTool{store: store}
}

// Definition returns the MCP tool definition for report_sessions.
func (t *SessionsTool) Definition() mcp.Tool {
	return mcp.NewTool("report_sessions",
		mcp.WithDescription("List every session with its status."),
	)
}

// Handle processes the report_sessions tool call.
func (t *SessionsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions, err := t.store.Sessions(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list sessions: %v", err)), nil
	}
	if len(sessions) == 0 {
		return mcp.NewToolResultText("No sessions."), nil
	}

	ids := make([]string, 0, len(sessions))
	for id := range sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "- %s: %s\n", id, sessions[id])
	}
	return mcp.NewToolResultText(b.String()), nil
}

func lookupError(id string, err error) *mcp.CallToolResult {
	if errors.Is(err, session.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("session %s not found", id))
	}
	return mcp.NewToolResultError(fmt.Sprintf("failed to load session %s: %v", id, err))
}
