package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/richinex/reportflow/llm"
	"github.com/richinex/reportflow/model"
	"github.com/richinex/reportflow/session"
	"github.com/richinex/reportflow/tools"
)

// ErrNoPlan is recorded when drafting is reached without a plan.
var ErrNoPlan = errors.New("drafting reached without a plan")

// DraftingTools are the tools offered to the model while drafting.
var DraftingTools = []string{
	tools.CommitSectionName,
	tools.SearchSourcesName,
	tools.ReadSourceName,
	tools.FetchURLName,
}

// Drafter runs one model turn for the task under the cursor.
type Drafter struct {
	Provider llm.Provider
	Tools    *tools.Registry
	Resolver ContentResolver // optional
	Allowed  []string        // defaults to DraftingTools
	Logger   *slog.Logger
	Metrics  Metrics
}

// Run drafts the current task, replaying the task's own history when the
// previous turn belonged to it.
func (d *Drafter) Run(ctx context.Context, st session.State) (session.Update, error) {
	log := d.Logger.With("session_id", st.SessionID, "node", NodeDraft)

	if st.Plan == nil {
		log.Error("no plan to draft")
		return session.Update{
			LastError: session.Ptr(ErrNoPlan.Error()),
			Directive: session.DirectiveAbort,
		}, nil
	}

	tasks := Flatten(*st.Plan)
	if st.TaskCursor >= len(tasks) {
		return session.Update{Directive: session.DirectiveSynthesize}, nil
	}
	task := tasks[st.TaskCursor]
	log = log.With("task", task.Title)

	var upd session.Update
	history := session.TaskSegment(st.Messages, task.ID)
	if history == nil {
		prompt := session.Message{
			Role:       session.RoleUser,
			Content:    taskPrompt(task, st.TaskCursor+1, len(tasks), d.material(ctx, log, st, task), st.Constraints),
			TaskID:     task.ID,
			TaskPrompt: true,
		}
		history = []session.Message{prompt}
		upd.ReplaceMessages = true
		upd.Messages = []session.Message{prompt}
		log.Info("drafting task", "position", st.TaskCursor+1, "of", len(tasks))
	} else {
		history = session.DropOrphanToolResults(history)
		log.Debug("resuming task", "messages", len(history))
	}

	start := time.Now()
	resp, err := d.Provider.Invoke(ctx, llm.Request{
		System:   drafterSystem,
		Messages: session.ToChat(history),
		Tools:    d.Tools.Definitions(d.allowed()...),
	})
	d.Metrics.ModelCall(string(NodeDraft), time.Since(start), err)
	if err != nil {
		if ctx.Err() != nil {
			return session.Update{}, ctx.Err()
		}
		log.Warn("drafting call failed", "error", err)
		upd.Messages = append(upd.Messages, session.Message{
			Role:    session.RoleSystem,
			Content: "model call failed: " + err.Error(),
			TaskID:  task.ID,
		})
		upd.LastError = session.Ptr(err.Error())
		upd.Directive = session.DirectiveJudge
		return upd, nil
	}

	upd.Messages = append(upd.Messages, session.Message{
		Role:      session.RoleAssistant,
		Content:   resp.Text,
		ToolCalls: resp.ToolCalls,
		TaskID:    task.ID,
	})
	if resp.HasToolCalls() {
		upd.Directive = session.DirectiveCallTools
	} else {
		upd.Directive = session.DirectiveJudge
	}
	return upd, nil
}

func (d *Drafter) allowed() []string {
	if len(d.Allowed) > 0 {
		return d.Allowed
	}
	return DraftingTools
}

// material renders the task's assigned items. Items that cannot be
// resolved are described instead of failing the task.
func (d *Drafter) material(ctx context.Context, log *slog.Logger, st session.State, task Task) []string {
	var out []string
	for _, id := range task.ContentItemIDs {
		item, ok := st.ContentItem(id)
		if !ok {
			log.Warn("assigned content item missing", "item", id)
			continue
		}
		out = append(out, d.render(ctx, log, item))
	}
	return out
}

func (d *Drafter) render(ctx context.Context, log *slog.Logger, item model.ContentItem) string {
	if d.Resolver == nil {
		return tools.RenderItem(item, 0)
	}
	text, err := d.Resolver.Resolve(ctx, item)
	if err != nil {
		log.Warn("failed to resolve content item", "item", item.ID, "error", err)
		return tools.RenderItem(item, 0)
	}
	return text
}
