package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/richinex/reportflow/mcpserver"
	"github.com/richinex/reportflow/model"
	"github.com/richinex/reportflow/session"
	"github.com/richinex/reportflow/workflow"
)

// Output formats of the document command.
const (
	FormatMarkdown = "markdown"
	FormatYAML     = "yaml"
)

// Start begins a session and runs it to its first pause.
func (a *App) Start(ctx context.Context, sessionID, constraints string) error {
	res, err := a.Runtime.Start(ctx, sessionID, constraints)
	if err != nil && res.SessionID == "" {
		return err
	}
	a.printResult(res)
	return err
}

// Decide records a reviewer decision and resumes the session.
func (a *App) Decide(ctx context.Context, sessionID string, approve bool, feedback string) error {
	d := &workflow.Decision{Status: model.ApprovalApproved}
	if !approve {
		if strings.TrimSpace(feedback) == "" {
			return errors.New("--feedback is required when rejecting a plan")
		}
		d = &workflow.Decision{Status: model.ApprovalRejected, Feedback: feedback}
	}
	res, err := a.Runtime.Resume(ctx, sessionID, d)
	if err != nil && res.SessionID == "" {
		return err
	}
	a.printResult(res)
	return err
}

// Resume continues a session from its latest checkpoint without a decision.
// A session waiting for review needs approve or reject instead.
func (a *App) Resume(ctx context.Context, sessionID string) error {
	cur, err := a.Runtime.Status(ctx, sessionID)
	if err != nil {
		return lookupError(sessionID, err)
	}
	if cur.Status == session.StatusAwaitingReview {
		return fmt.Errorf("session %s is awaiting review: use approve or reject", sessionID)
	}
	res, err := a.Runtime.Resume(ctx, sessionID, nil)
	if err != nil && res.SessionID == "" {
		return err
	}
	a.printResult(res)
	return err
}

// ResumeAll continues every interrupted session.
func (a *App) ResumeAll(ctx context.Context) error {
	results, err := a.Runtime.ResumeAll(ctx)
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) == 0 && err == nil {
		fmt.Fprintln(a.Out, "No interrupted sessions.")
		return nil
	}
	for _, id := range ids {
		a.printResult(results[id])
	}
	return err
}

// Status prints the latest checkpoint of a session, or every session when
// sessionID is empty.
func (a *App) Status(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return a.listSessions(ctx)
	}
	res, err := a.Runtime.Status(ctx, sessionID)
	if err != nil {
		return lookupError(sessionID, err)
	}
	a.printResult(res)
	if res.Status == session.StatusAwaitingReview && res.State.Plan != nil {
		fmt.Fprintln(a.Out)
		fmt.Fprintln(a.Out, "Candidate plan:")
		return writePlan(a.Out, *res.State.Plan)
	}
	return nil
}

func (a *App) listSessions(ctx context.Context) error {
	sessions, err := a.Store.Sessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(a.Out, "No sessions.")
		return nil
	}
	ids := make([]string, 0, len(sessions))
	for id := range sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(a.Out, "%-38s %s\n", id, sessions[id])
	}
	return nil
}

// History prints every checkpoint of a session, oldest first.
func (a *App) History(ctx context.Context, sessionID string) error {
	cps, err := a.Store.History(ctx, sessionID)
	if err != nil {
		return lookupError(sessionID, err)
	}
	for _, cp := range cps {
		fmt.Fprintf(a.Out, "%4d  %-10s %-16s %s  tasks=%d skipped=%d\n",
			cp.Step, cp.Node, cp.Status, cp.CreatedAt.Format(time.RFC3339),
			cp.State.TaskCursor, len(cp.State.Skipped))
	}
	return nil
}

// Document prints the finished document, or the sections committed so far.
// The yaml format prints the current plan instead.
func (a *App) Document(ctx context.Context, sessionID, format string) error {
	res, err := a.Runtime.Status(ctx, sessionID)
	if err != nil {
		return lookupError(sessionID, err)
	}

	switch format {
	case FormatYAML:
		if res.State.Plan == nil {
			return fmt.Errorf("session %s has no plan yet", sessionID)
		}
		return writePlan(a.Out, *res.State.Plan)
	case FormatMarkdown, "":
	default:
		return fmt.Errorf("unknown format %q (use %s or %s)", format, FormatMarkdown, FormatYAML)
	}

	if res.State.Document != "" {
		fmt.Fprintln(a.Out, res.State.Document)
		return nil
	}
	if res.State.Plan == nil {
		return fmt.Errorf("session %s has no plan yet", sessionID)
	}
	sections, err := a.Store.Sections(ctx, sessionID)
	if err != nil {
		return err
	}
	drafts := make(map[string]string, len(sections))
	for _, s := range sections {
		drafts[s.Title] = s.Content
	}
	doc := workflow.Assemble(*res.State.Plan, drafts)
	if doc == "" {
		return fmt.Errorf("session %s has no committed sections yet", sessionID)
	}
	fmt.Fprintln(a.Out, doc)
	return nil
}

// Serve exposes the engine over MCP on stdio and, when configured, serves
// metrics until ctx ends.
func (a *App) Serve(ctx context.Context) error {
	if addr := a.Settings.Metrics.Addr; addr != "" {
		go func() {
			if err := a.Metrics.Serve(ctx, addr); err != nil {
				a.Logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	s := mcpserver.New(mcpserver.Deps{
		Engine:      a.Runtime,
		Store:       a.Store,
		Logger:      a.Logger,
		BaseContext: ctx,
	}, Version)
	a.Logger.Info("serving mcp on stdio", "tools", len(a.Registry.Names()))
	return mcpserver.Serve(s)
}

// ListTools lists the tools offered to the drafter.
func (a *App) ListTools(verbose bool) {
	fmt.Fprintln(a.Out, "Available tools:")
	fmt.Fprintln(a.Out)

	for _, meta := range a.Registry.List() {
		kind := ""
		if meta.Exploratory {
			kind = " (research)"
		}
		fmt.Fprintf(a.Out, "  %s%s\n", meta.Name, kind)
		fmt.Fprintf(a.Out, "    %s\n", meta.Description)

		if verbose && len(meta.Parameters) > 0 {
			fmt.Fprintln(a.Out, "    Parameters:")
			for _, param := range meta.Parameters {
				req := ""
				if param.Required {
					req = "*"
				}
				fmt.Fprintf(a.Out, "      %s%s: %s - %s\n", param.Name, req, param.ParamType, param.Description)
			}
		}
		fmt.Fprintln(a.Out)
	}
}

func lookupError(sessionID string, err error) error {
	if errors.Is(err, session.ErrNotFound) {
		return fmt.Errorf("session %s not found", sessionID)
	}
	return err
}
