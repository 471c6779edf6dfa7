package workflow

import (
	"context"
	"log/slog"

	"github.com/richinex/reportflow/model"
	"github.com/richinex/reportflow/session"
)

// MissingDecisionFeedback is recorded when the gate runs while the plan is
// still pending.
const MissingDecisionFeedback = "system error: approval gate resumed without a reviewer decision"

// ApprovalGate routes on the reviewer's decision. The runtime suspends the
// session before this node and runs it only on resume.
type ApprovalGate struct {
	Documents Documents
	Logger    *slog.Logger
}

// Run routes an approved plan to drafting and anything else back to the
// planner.
func (g *ApprovalGate) Run(ctx context.Context, st session.State) (session.Update, error) {
	log := g.Logger.With("session_id", st.SessionID, "node", NodeApproval)

	switch st.ApprovalStatus {
	case model.ApprovalApproved:
		g.publish(ctx, log, st.SessionID, model.ApprovalApproved)
		log.Info("plan approved")
		return session.Update{
			Feedback:  session.Ptr(""),
			Directive: session.DirectiveApproved,
		}, nil

	case model.ApprovalRejected:
		log.Info("plan rejected", "feedback", st.Feedback)
		g.publish(ctx, log, st.SessionID, model.ApprovalRejected)
		return session.Update{
			ApprovalStatus: session.Ptr(model.ApprovalPending),
			TaskCursor:     session.Ptr(0),
			Directive:      session.DirectiveRejected,
		}, nil

	default:
		log.Error("approval gate ran without a decision")
		return session.Update{
			ApprovalStatus: session.Ptr(model.ApprovalPending),
			Feedback:       session.Ptr(MissingDecisionFeedback),
			TaskCursor:     session.Ptr(0),
			Directive:      session.DirectiveRejected,
		}, nil
	}
}

func (g *ApprovalGate) publish(ctx context.Context, log *slog.Logger, sessionID string, status model.ApprovalStatus) {
	if err := g.Documents.UpdateStatus(ctx, sessionID, model.StatusUpdate{Status: &status}); err != nil {
		log.Warn("failed to publish approval status", "error", err)
	}
}
