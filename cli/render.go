package cli

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/richinex/reportflow/model"
	"github.com/richinex/reportflow/session"
	"github.com/richinex/reportflow/workflow"
)

// printResult summarizes where a run stopped and what to do next.
func (a *App) printResult(res workflow.Result) {
	fmt.Fprintf(a.Out, "Session %s: %s at %s (step %d)\n", res.SessionID, res.Status, res.Node, res.Step)

	st := res.State
	if st.Plan != nil {
		tasks := workflow.Flatten(*st.Plan)
		fmt.Fprintf(a.Out, "  plan: %q, %d tasks, %d drafted\n", st.Plan.Title, len(tasks), len(st.SectionDrafts))
	}
	if len(st.Skipped) > 0 {
		fmt.Fprintf(a.Out, "  skipped: %v\n", st.Skipped)
	}
	if st.LastError != "" {
		fmt.Fprintf(a.Out, "  last error: %s\n", st.LastError)
	}

	switch res.Status {
	case session.StatusAwaitingReview:
		fmt.Fprintf(a.Out, "  review the plan with `status %s`, then approve or reject it\n", res.SessionID)
	case session.StatusStalled:
		fmt.Fprintln(a.Out, "  planning stalled: the model returned no usable plan")
	case session.StatusCompleted:
		fmt.Fprintf(a.Out, "  read the report with `document %s`\n", res.SessionID)
	}
}

// writePlan renders a plan as YAML.
func writePlan(w io.Writer, plan model.Plan) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(plan); err != nil {
		return fmt.Errorf("failed to render plan: %w", err)
	}
	return enc.Close()
}
