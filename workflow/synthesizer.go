package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/richinex/reportflow/llm"
	"github.com/richinex/reportflow/model"
	"github.com/richinex/reportflow/session"
)

// Synthesis defaults.
const (
	DefaultSynthesisAttempts = 3
	DefaultSynthesisBackoff  = 2 * time.Second
)

// Synthesizer writes every document unit that has no draft, then assembles
// the final document.
type Synthesizer struct {
	Provider  llm.Provider
	Documents Documents
	Attempts  int
	BaseDelay time.Duration
	Logger    *slog.Logger
	Metrics   Metrics

	// Sleep waits between attempts; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Placeholder is stored for a section whose synthesis failed every attempt.
func Placeholder(title string, attempts int) string {
	return fmt.Sprintf("[SYNTHESIS ERROR] section %q could not be generated after %d attempts", title, attempts)
}

// Run fills gaps and assembles the document.
func (s *Synthesizer) Run(ctx context.Context, st session.State) (session.Update, error) {
	log := s.Logger.With("session_id", st.SessionID, "node", NodeSynthesize)

	if st.Plan == nil {
		return session.Update{LastError: session.Ptr(ErrNoPlan.Error()), Directive: session.DirectiveAbort}, nil
	}
	plan := *st.Plan

	drafts := maps.Clone(st.SectionDrafts)
	if drafts == nil {
		drafts = map[string]string{}
	}
	filled := map[string]string{}

	for _, unit := range Units(plan) {
		if _, ok := drafts[unit.Title]; ok {
			continue
		}

		text, err := s.generate(ctx, log, unit, plan, drafts, st.Constraints)
		if err != nil {
			if ctx.Err() != nil {
				// keep what was filled so a resume does not redo it
				return session.Update{SectionDrafts: filled}, ctx.Err()
			}
			s.Metrics.SynthesisPlaceholder()
			log.Error("synthesis failed", "section", unit.Title, "error", err)
			text = Placeholder(unit.Title, s.attempts())
		}

		if err := s.Documents.CommitSection(ctx, st.SessionID, unit.ID, unit.Title, text, unit.Order); err != nil {
			s.Metrics.PersistFailure()
			log.Warn("synthesized section not persisted", "section", unit.Title, "error", err)
		}
		drafts[unit.Title] = text
		filled[unit.Title] = text
	}

	doc := Assemble(plan, drafts)
	log.Info("document assembled", "synthesized", len(filled), "bytes", len(doc))

	return session.Update{
		SectionDrafts: filled,
		Document:      &doc,
		Directive:     session.DirectiveDone,
	}, nil
}

func (s *Synthesizer) generate(ctx context.Context, log *slog.Logger, unit Unit, plan model.Plan, drafts map[string]string, constraints string) (string, error) {
	prompt := synthesisPrompt(unit, plan, drafts, constraints)

	var lastErr error
	for attempt := 1; attempt <= s.attempts(); attempt++ {
		if attempt > 1 {
			if err := s.sleep(ctx, time.Duration(attempt-1)*s.baseDelay()); err != nil {
				return "", err
			}
		}

		start := time.Now()
		resp, err := s.Provider.Invoke(ctx, llm.Request{
			System:   synthesizerSystem,
			Messages: []llm.ChatMessage{llm.UserMessage(prompt)},
		})
		s.Metrics.ModelCall(string(NodeSynthesize), time.Since(start), err)
		if err == nil && strings.TrimSpace(resp.Text) == "" {
			err = errors.New("empty response")
		}
		if err == nil {
			return strings.TrimSpace(resp.Text), nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		lastErr = err
		log.Warn("synthesis attempt failed", "section", unit.Title, "attempt", attempt, "error", err)
	}
	return "", lastErr
}

func (s *Synthesizer) attempts() int {
	if s.Attempts <= 0 {
		return DefaultSynthesisAttempts
	}
	return s.Attempts
}

func (s *Synthesizer) baseDelay() time.Duration {
	if s.BaseDelay <= 0 {
		return DefaultSynthesisBackoff
	}
	return s.BaseDelay
}

func (s *Synthesizer) sleep(ctx context.Context, d time.Duration) error {
	if s.Sleep != nil {
		return s.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Assemble renders the document in plan order: the plan title, a level-2
// heading per top-level section and a level-3 heading per subsection.
// Sections with no text are omitted.
func Assemble(plan model.Plan, drafts map[string]string) string {
	var b strings.Builder
	if plan.Title != "" {
		b.WriteString("# " + plan.Title + "\n\n")
	}

	for _, sec := range plan.Ordered() {
		var body strings.Builder
		if text := strings.TrimSpace(drafts[sec.Title]); text != "" {
			body.WriteString(text + "\n\n")
		}
		for _, sub := range sec.Subsections {
			if text := strings.TrimSpace(drafts[LeafTitle(sec.Title, sub.Title)]); text != "" {
				fmt.Fprintf(&body, "### %s\n\n%s\n\n", sub.Title, text)
			}
		}
		if body.Len() > 0 {
			fmt.Fprintf(&b, "## %s\n\n%s", sec.Title, body.String())
		}
	}

	out := strings.TrimRight(b.String(), "\n")
	if out == "" {
		return ""
	}
	return out + "\n"
}
