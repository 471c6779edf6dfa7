package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/richinex/reportflow/internal/json"
	"github.com/richinex/reportflow/llm"
	"github.com/richinex/reportflow/model"
	"github.com/richinex/reportflow/session"
)

// Planner turns source summaries, constraints and reviewer feedback into a
// validated plan with one model call.
type Planner struct {
	Provider  llm.Provider
	Documents Documents
	Logger    *slog.Logger
	Metrics   Metrics
}

// Run produces a plan, or stalls the session when the model output is
// unusable. A stalled session keeps its prior plan.
func (p *Planner) Run(ctx context.Context, st session.State) (session.Update, error) {
	log := p.Logger.With("session_id", st.SessionID, "node", NodePlanner)

	prompt, err := plannerPrompt(st)
	if err != nil {
		return session.Update{}, err
	}

	start := time.Now()
	resp, err := p.Provider.Invoke(ctx, llm.Request{
		System:   plannerSystem,
		Messages: []llm.ChatMessage{llm.UserMessage(prompt)},
		Format:   llm.NewJSONSchemaFormat("plan", planSchema),
	})
	p.Metrics.ModelCall(string(NodePlanner), time.Since(start), err)
	if err != nil {
		if ctx.Err() != nil {
			return session.Update{}, ctx.Err()
		}
		return p.stall(log, fmt.Errorf("planning call failed: %w", err)), nil
	}

	plan, err := json.Extract[model.Plan](resp.Text)
	if err != nil {
		return p.stall(log, fmt.Errorf("planner returned no usable plan: %w", err)), nil
	}
	if err := plan.Validate(); err != nil {
		return p.stall(log, err), nil
	}
	plan = dropUnknownItems(plan, st, log)

	pending := model.ApprovalPending
	if err := p.Documents.UpdateStatus(ctx, st.SessionID, model.StatusUpdate{Plan: &plan, Status: &pending}); err != nil {
		log.Warn("failed to publish plan status", "error", err)
	}

	log.Info("plan ready for review", "title", plan.Title, "sections", len(plan.Sections), "tasks", len(Flatten(plan)))
	return session.Update{
		Plan:               &plan,
		ApprovalStatus:     &pending,
		Feedback:           session.Ptr(""),
		TaskCursor:         session.Ptr(0),
		RetryCount:         session.Ptr(0),
		SearchAttemptCount: session.Ptr(0),
		Stalled:            session.Ptr(false),
		LastError:          session.Ptr(""),
		Directive:          session.DirectiveToApproval,
	}, nil
}

func (p *Planner) stall(log *slog.Logger, err error) session.Update {
	log.Error("planning stalled", "error", err)
	return session.Update{
		Stalled:   session.Ptr(true),
		LastError: session.Ptr(err.Error()),
		Directive: session.DirectiveStalled,
	}
}

// dropUnknownItems removes content ids the session does not have.
func dropUnknownItems(plan model.Plan, st session.State, log *slog.Logger) model.Plan {
	known := make(map[string]bool, len(st.ContentItems))
	for _, it := range st.ContentItems {
		known[it.ID] = true
	}

	var fix func([]model.Section)
	fix = func(sections []model.Section) {
		for i := range sections {
			kept := sections[i].ContentItemIDs[:0]
			for _, id := range sections[i].ContentItemIDs {
				if known[id] {
					kept = append(kept, id)
				} else {
					log.Warn("plan references unknown content item", "section", sections[i].ID, "item", id)
				}
			}
			sections[i].ContentItemIDs = kept
			fix(sections[i].Subsections)
		}
	}

	out := plan.Clone()
	fix(out.Sections)
	return out
}
