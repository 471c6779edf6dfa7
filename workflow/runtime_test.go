package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/richinex/reportflow/llm"
	"github.com/richinex/reportflow/model"
	"github.com/richinex/reportflow/session"
	"github.com/richinex/reportflow/storage"
)

// auditProvider plans auditPlan, commits every task and synthesizes the
// remaining sections.
func auditProvider(t *testing.T) *fakeProvider {
	plan := mustPlanJSON(t, auditPlan())
	return &fakeProvider{respond: func(n int, req llm.Request) (llm.Response, error) {
		switch req.System {
		case plannerSystem:
			return llm.Response{Text: plan}, nil
		case drafterSystem:
			return llm.Response{ToolCalls: []llm.ToolCall{commitCall("c1", "Draft of "+taskTitle(req))}}, nil
		case synthesizerSystem:
			return llm.Response{Text: "Synthesized text"}, nil
		}
		return llm.Response{}, errors.New("unexpected request")
	}}
}

func newTestRuntime(t *testing.T, store *storage.MemoryStore, provider llm.Provider, opts Options) *Runtime {
	t.Helper()
	if opts.SynthesisBackoff == 0 {
		opts.SynthesisBackoff = time.Millisecond
	}
	return New(store, Deps{
		Provider:  provider,
		Documents: store,
		Sources:   staticSources{{ID: "img-1", Title: "Pump photo", Kind: model.ContentImage, Description: "corroded impeller"}},
		Tools:     draftingRegistry(t, store),
		Logger:    discardLogger(),
	}, opts)
}

// Scenario A: two drafted subsections, then the synthesizer writes the
// summary and recommendations.
func TestRuntimeEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	provider := auditProvider(t)
	rt := newTestRuntime(t, store, provider, Options{CheckpointEveryStep: true})

	var mu sync.Mutex
	var events []StepEvent
	rt.Observe(ObserverFunc(func(e StepEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}))

	res, err := rt.Start(ctx, "s1", "metric units")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if res.Status != session.StatusAwaitingReview || res.Node != NodeApproval {
		t.Fatalf("expected suspension before approval, got %s at %s", res.Status, res.Node)
	}
	if got := len(Flatten(*res.State.Plan)); got != 2 {
		t.Fatalf("tasks = %d, want 2", got)
	}

	res, err = rt.Resume(ctx, "s1", &Decision{Status: model.ApprovalApproved})
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if res.Status != session.StatusCompleted || res.Node != NodeEnd {
		t.Fatalf("expected completion, got %s at %s (%s)", res.Status, res.Node, res.State.LastError)
	}

	drafts := provider.bySystem(drafterSystem)
	if len(drafts) != 2 || taskTitle(drafts[0]) != "Observations: Pumps" || taskTitle(drafts[1]) != "Observations: Valves" {
		t.Errorf("unexpected drafting requests: %d", len(drafts))
	}
	if got := len(provider.bySystem(synthesizerSystem)); got != 2 {
		t.Errorf("synthesis calls = %d, want 2", got)
	}

	st := res.State
	for _, title := range []string{"Exec Summary", "Observations: Pumps", "Observations: Valves", "Recommendations"} {
		if !st.Drafted(title) {
			t.Errorf("missing draft %q", title)
		}
	}
	if st.SectionDrafts["Exec Summary"] != "Synthesized text" {
		t.Errorf("Exec Summary = %q", st.SectionDrafts["Exec Summary"])
	}
	if !strings.Contains(st.Document, "## Exec Summary") || !strings.Contains(st.Document, "### Valves\n\nDraft of Observations: Valves") {
		t.Errorf("unexpected document:\n%s", st.Document)
	}

	sections, err := store.Sections(ctx, "s1")
	if err != nil || len(sections) != 4 {
		t.Errorf("stored sections = %d (%v), want 4", len(sections), err)
	}
	status, err := store.Status(ctx, "s1")
	if err != nil || status.Approval != model.ApprovalApproved {
		t.Errorf("document status = %+v (%v)", status, err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) == 0 || events[len(events)-1].Next != NodeEnd {
		t.Errorf("observer saw %d events", len(events))
	}

	if _, err := rt.Resume(ctx, "s1", &Decision{Status: model.ApprovalApproved}); !errors.Is(err, ErrNotAwaitingReview) {
		t.Errorf("decision on a finished session: %v", err)
	}
}

// Scenario B: a rejection routes back to the planner with the feedback and
// the previous plan in the request.
func TestRuntimeRejectionReplans(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	provider := auditProvider(t)
	rt := newTestRuntime(t, store, provider, Options{})

	first, err := rt.Start(ctx, "s1", "")
	if err != nil {
		t.Fatal(err)
	}
	prior := mustPlanJSON(t, *first.State.Plan)

	res, err := rt.Resume(ctx, "s1", &Decision{Status: model.ApprovalRejected, Feedback: "merge sections 2 and 3"})
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if res.Status != session.StatusAwaitingReview {
		t.Fatalf("expected a new plan awaiting review, got %s", res.Status)
	}

	plans := provider.bySystem(plannerSystem)
	if len(plans) != 2 {
		t.Fatalf("planner calls = %d, want 2", len(plans))
	}
	prompt := plans[1].Messages[0].Content
	if !strings.Contains(prompt, "merge sections 2 and 3") {
		t.Error("revision prompt lacks the feedback")
	}
	if !strings.Contains(prompt, prior) {
		t.Error("revision prompt lacks the prior plan verbatim")
	}
	if strings.Contains(plans[0].Messages[0].Content, "Previous plan") {
		t.Error("first planning prompt should not carry a prior plan")
	}
	if res.State.ApprovalStatus != model.ApprovalPending {
		t.Errorf("approval = %s, want PENDING", res.State.ApprovalStatus)
	}
}

func TestRuntimeStallsOnUnusablePlan(t *testing.T) {
	store := storage.NewMemoryStore()
	provider := &fakeProvider{respond: func(int, llm.Request) (llm.Response, error) {
		return llm.Response{Text: "I cannot plan this."}, nil
	}}
	rt := newTestRuntime(t, store, provider, Options{})

	res, err := rt.Start(context.Background(), "s1", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != session.StatusStalled || res.Node != NodePlanner {
		t.Errorf("got %s at %s, want stalled at planner", res.Status, res.Node)
	}
	cp, err := store.Get(context.Background(), "s1")
	if err != nil || cp.Status != session.StatusStalled {
		t.Errorf("checkpoint = %+v (%v)", cp, err)
	}
}

func TestRuntimeStepLimitAndResumeAll(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	provider := auditProvider(t)
	rt := newTestRuntime(t, store, provider, Options{MaxSteps: 3})

	if _, err := rt.Start(ctx, "s1", ""); err != nil {
		t.Fatal(err)
	}
	res, err := rt.Resume(ctx, "s1", &Decision{Status: model.ApprovalApproved})
	if !errors.Is(err, ErrStepLimit) {
		t.Fatalf("expected step limit, got %v", err)
	}
	if res.Status != session.StatusRunning || res.Node != NodeJudge {
		t.Fatalf("got %s at %s, want running at judge", res.Status, res.Node)
	}

	fresh := newTestRuntime(t, store, provider, Options{})
	results, err := fresh.ResumeAll(ctx)
	if err != nil {
		t.Fatalf("ResumeAll failed: %v", err)
	}
	if got := results["s1"]; got.Status != session.StatusCompleted {
		t.Errorf("resumed status = %s", got.Status)
	}
	if got := len(provider.bySystem(drafterSystem)); got != 2 {
		t.Errorf("drafting calls = %d, want 2 (no task redone)", got)
	}
}

func TestResumeAllSkipsSessionsAwaitingReview(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	provider := auditProvider(t)
	rt := newTestRuntime(t, store, provider, Options{ResumeConcurrency: 2})

	if _, err := rt.Start(ctx, "s1", ""); err != nil {
		t.Fatal(err)
	}
	results, err := rt.ResumeAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("resumed %d sessions, want 0", len(results))
	}
}

func TestRuntimeUnknownDirectiveFails(t *testing.T) {
	store := storage.NewMemoryStore()
	rt := newTestRuntime(t, store, auditProvider(t), Options{})
	rt.nodes[NodeHydrate] = func(ctx context.Context, st session.State) (session.Update, error) {
		return session.Update{Directive: session.Directive("jump")}, nil
	}

	res, err := rt.Start(context.Background(), "s1", "")
	if !errors.Is(err, ErrUnknownDirective) {
		t.Fatalf("expected ErrUnknownDirective, got %v", err)
	}
	if res.Status != session.StatusFailed {
		t.Errorf("status = %s, want failed", res.Status)
	}
	cp, _ := store.Get(context.Background(), "s1")
	if cp.Status != session.StatusFailed || cp.State.LastError == "" {
		t.Errorf("checkpoint = %+v", cp)
	}
}

func TestRuntimeStartRejectsDuplicateSession(t *testing.T) {
	store := storage.NewMemoryStore()
	rt := newTestRuntime(t, store, auditProvider(t), Options{})

	if _, err := rt.Start(context.Background(), "s1", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := rt.Start(context.Background(), "s1", ""); !errors.Is(err, ErrSessionExists) {
		t.Errorf("expected ErrSessionExists, got %v", err)
	}
}

func TestRuntimeCancelledCheckpointsRunning(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	provider := &fakeProvider{respond: func(int, llm.Request) (llm.Response, error) {
		cancel()
		return llm.Response{}, context.Canceled
	}}
	rt := newTestRuntime(t, store, provider, Options{})

	res, err := rt.Start(ctx, "s1", "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if res.Status != session.StatusRunning || res.Node != NodePlanner {
		t.Errorf("got %s at %s, want running at planner", res.Status, res.Node)
	}
	cp, _ := store.Get(context.Background(), "s1")
	if cp.Node != string(NodePlanner) || cp.Status != session.StatusRunning {
		t.Errorf("checkpoint = %s/%s", cp.Node, cp.Status)
	}
}
