package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/richinex/reportflow/llm"
	"github.com/richinex/reportflow/session"
	"github.com/richinex/reportflow/tools"
)

// ToolRunner executes the tool calls of the latest assistant turn.
// Failures never escape as errors; each call yields a tool-result message.
type ToolRunner struct {
	Tools    *tools.Registry
	Executor *tools.Executor
	Allowed  []string // defaults to DraftingTools
	Breaker  Breaker
	Logger   *slog.Logger
	Metrics  Metrics

	mu      sync.Mutex
	indexes map[string]*tools.SourceIndex
}

// Run executes every requested call in order.
func (r *ToolRunner) Run(ctx context.Context, st session.State) (session.Update, error) {
	log := r.Logger.With("session_id", st.SessionID, "node", NodeTools)

	if st.Plan == nil {
		return session.Update{LastError: session.Ptr(ErrNoPlan.Error()), Directive: session.DirectiveAbort}, nil
	}
	tasks := Flatten(*st.Plan)
	if st.TaskCursor >= len(tasks) {
		return session.Update{Directive: session.DirectiveJudge}, nil
	}
	task := tasks[st.TaskCursor]

	last, ok := session.LastMessage(st.Messages)
	if !ok || last.Role != session.RoleAssistant || len(last.ToolCalls) == 0 {
		log.Warn("no tool calls to run")
		return session.Update{Directive: session.DirectiveJudge}, nil
	}

	ctx = tools.WithSourceIndex(ctx, r.index(st))
	count := st.SearchAttemptCount

	var results []session.Message
	for _, call := range last.ToolCalls {
		var res tools.ToolResult
		switch {
		case !r.allowed(call.Name):
			res = tools.FailureResultf("unauthorized tool: %s", call.Name)

		case call.Name == tools.CommitSectionName:
			res = r.commit(ctx, st, task, call)

		case r.Tools.Exploratory(call.Name):
			if !r.Breaker.Allow(count) {
				r.Metrics.BreakerTrip(call.Name)
				log.Info("research limit reached", "task", task.Title, "tool", call.Name, "count", count)
				res = tools.SuccessResult(r.Breaker.Placeholder(call.Arguments))
				break
			}
			count++
			res = r.execute(ctx, call.Name, call.Arguments)

		default:
			res = r.execute(ctx, call.Name, call.Arguments)
		}

		status := toolStatus(res)
		r.Metrics.ToolCall(call.Name, string(status))
		log.Debug("tool call", "tool", call.Name, "status", status)

		results = append(results, session.Message{
			Role:       session.RoleTool,
			Content:    res.Content(),
			ToolCallID: call.ID,
			ToolName:   call.Name,
			ToolStatus: status,
			TaskID:     task.ID,
		})
	}

	return session.Update{
		Messages:           results,
		SearchAttemptCount: session.Ptr(count),
		Directive:          session.DirectiveJudge,
	}, nil
}

// commit fills the fields the workflow owns before running commit_section.
func (r *ToolRunner) commit(ctx context.Context, st session.State, task Task, call llm.ToolCall) tools.ToolResult {
	args, err := tools.ParseCommitArgs(call.Arguments)
	if err != nil {
		return tools.FailureResult(err)
	}
	if st.SessionID == "" {
		return tools.FailureResultf("session_id required: no active session")
	}
	args.SessionID = st.SessionID
	args.SectionID = task.ID
	args.Title = task.Title
	args.Order = task.Order

	raw, err := json.Marshal(args)
	if err != nil {
		return tools.FailureResult(fmt.Errorf("failed to encode arguments: %w", err))
	}
	return r.execute(ctx, call.Name, raw)
}

func (r *ToolRunner) execute(ctx context.Context, name string, args json.RawMessage) tools.ToolResult {
	tool, ok := r.Tools.Get(name)
	if !ok {
		return tools.FailureResultf("unauthorized tool: %s", name)
	}
	ex := r.executor()
	res, err := ex.ExecuteWithTimeout(ctx, tool, args, ex.Timeout())
	if err != nil {
		return tools.FailureResult(err)
	}
	return res
}

func (r *ToolRunner) executor() *tools.Executor {
	if r.Executor == nil {
		return tools.NewDefaultExecutor()
	}
	return r.Executor
}

func (r *ToolRunner) allowed(name string) bool {
	allowed := r.Allowed
	if len(allowed) == 0 {
		allowed = DraftingTools
	}
	return slices.Contains(allowed, name) && r.Tools.Has(name)
}

// index returns the session's source index, building it on first use.
// Content items do not change after hydration.
func (r *ToolRunner) index(st session.State) *tools.SourceIndex {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexes == nil {
		r.indexes = make(map[string]*tools.SourceIndex)
	}
	idx, ok := r.indexes[st.SessionID]
	if !ok {
		idx = tools.NewSourceIndex(st.ContentItems)
		r.indexes[st.SessionID] = idx
	}
	return idx
}

// Forget drops the cached index of a finished session.
func (r *ToolRunner) Forget(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.indexes, sessionID)
}

func toolStatus(res tools.ToolResult) session.ToolStatus {
	switch {
	case !res.Success():
		return session.ToolError
	case !res.Persisted():
		return session.ToolNotPersisted
	default:
		return session.ToolOK
	}
}
