package workflow

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/richinex/reportflow/session"
	"github.com/richinex/reportflow/tools"
)

// Retry and draft-length defaults.
const (
	DefaultMaxRetries     = 2
	DefaultMinDraftLength = 200
)

// Judge decides how the drafting loop continues after a model turn and its
// tool results. Precedence: a successful commit, then a research result,
// then a long plain-text answer taken as the draft, then retry or skip.
type Judge struct {
	Committer      tools.SectionCommitter
	Tools          *tools.Registry
	MaxRetries     int
	MinDraftLength int
	Logger         *slog.Logger
	Metrics        Metrics
}

// Run evaluates the latest turn of the current task.
func (j *Judge) Run(ctx context.Context, st session.State) (session.Update, error) {
	log := j.Logger.With("session_id", st.SessionID, "node", NodeJudge)

	if st.Plan == nil {
		return session.Update{LastError: session.Ptr(ErrNoPlan.Error()), Directive: session.DirectiveAbort}, nil
	}
	tasks := Flatten(*st.Plan)
	if st.TaskCursor >= len(tasks) {
		return session.Update{Directive: session.DirectiveSynthesize}, nil
	}
	task := tasks[st.TaskCursor]
	log = log.With("task", task.Title)

	last, _ := session.LastMessage(st.Messages)
	if last.TaskID != task.ID {
		// the turn failed before anything was recorded for this task
		return j.retryOrSkip(log, st, task), nil
	}

	switch last.Role {
	case session.RoleTool:
		results := session.TrailingToolResults(st.Messages)
		if content, res, ok := committed(st.Messages, results); ok {
			if res.ToolStatus == session.ToolNotPersisted {
				j.Metrics.PersistFailure()
				log.Warn("section drafted but not persisted", "detail", res.Content)
			}
			log.Info("section committed")
			return success(st, task, content), nil
		}
		for _, res := range results {
			if j.Tools != nil && j.Tools.Exploratory(res.ToolName) {
				return session.Update{
					RetryCount: session.Ptr(0),
					Directive:  session.DirectiveDraft,
				}, nil
			}
		}

	case session.RoleAssistant:
		text := strings.TrimSpace(last.Content)
		if len(last.ToolCalls) == 0 && utf8.RuneCountInString(text) >= j.minLength() {
			if err := j.Committer.CommitSection(ctx, st.SessionID, task.ID, task.Title, text, task.Order); err != nil {
				j.Metrics.PersistFailure()
				log.Warn("implicit draft not persisted", "error", err)
			}
			log.Info("plain-text draft accepted", "runes", utf8.RuneCountInString(text))
			return success(st, task, text), nil
		}
	}

	return j.retryOrSkip(log, st, task), nil
}

func (j *Judge) retryOrSkip(log *slog.Logger, st session.State, task Task) session.Update {
	limit := j.MaxRetries
	if limit <= 0 {
		limit = DefaultMaxRetries
	}

	if st.RetryCount < limit {
		j.Metrics.Retry()
		log.Warn("no draft produced, retrying", "retry", st.RetryCount+1, "limit", limit)
		return session.Update{
			RetryCount: session.Ptr(st.RetryCount + 1),
			Messages: []session.Message{{
				Role:    session.RoleSystem,
				Content: correctivePrompt(task, st.RetryCount+1, limit),
				TaskID:  task.ID,
			}},
			Directive: session.DirectiveDraft,
		}
	}

	j.Metrics.Skip()
	log.Warn("task skipped after repeated failures", "attempts", st.RetryCount+1)
	return session.Update{
		TaskCursor:         session.Ptr(st.TaskCursor + 1),
		RetryCount:         session.Ptr(0),
		SearchAttemptCount: session.Ptr(0),
		Skipped:            []string{task.Title},
		Directive:          session.DirectiveDraft,
	}
}

func (j *Judge) minLength() int {
	if j.MinDraftLength <= 0 {
		return DefaultMinDraftLength
	}
	return j.MinDraftLength
}

// success records a draft and advances to the next task.
func success(st session.State, task Task, content string) session.Update {
	return session.Update{
		SectionDrafts:      map[string]string{task.Title: content},
		TaskCursor:         session.Ptr(st.TaskCursor + 1),
		RetryCount:         session.Ptr(0),
		SearchAttemptCount: session.Ptr(0),
		Directive:          session.DirectiveDraft,
	}
}

// committed finds a successful commit among results and returns the
// content the model committed.
func committed(history, results []session.Message) (string, session.Message, bool) {
	asst, ok := session.LastAssistant(history)
	if !ok {
		return "", session.Message{}, false
	}
	for _, res := range results {
		if res.ToolName != tools.CommitSectionName || !res.Succeeded() {
			continue
		}
		for _, call := range asst.ToolCalls {
			if call.ID != res.ToolCallID {
				continue
			}
			args, err := tools.ParseCommitArgs(call.Arguments)
			if err != nil {
				continue
			}
			return args.Content, res, true
		}
	}
	return "", session.Message{}, false
}
