package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/richinex/reportflow/session"
)

// Hydrator loads the session's content items once, before planning.
type Hydrator struct {
	Sources SourceLoader
	Logger  *slog.Logger
}

// Run loads sources unless the state already carries them.
func (h *Hydrator) Run(ctx context.Context, st session.State) (session.Update, error) {
	if len(st.ContentItems) > 0 || h.Sources == nil {
		return session.Update{Directive: session.DirectiveToPlanner}, nil
	}

	items, err := h.Sources.Load(ctx, st.SessionID)
	if err != nil {
		return session.Update{}, fmt.Errorf("failed to load sources: %w", err)
	}
	h.Logger.Info("sources loaded", "session_id", st.SessionID, "items", len(items))

	return session.Update{
		ContentItems: items,
		Directive:    session.DirectiveToPlanner,
	}, nil
}
