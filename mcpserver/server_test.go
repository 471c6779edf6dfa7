package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/richinex/reportflow/model"
	"github.com/richinex/reportflow/session"
	"github.com/richinex/reportflow/storage"
	"github.com/richinex/reportflow/workflow"
)

type fakeEngine struct {
	mu        sync.Mutex
	results   map[string]workflow.Result
	decisions []workflow.Decision
}

func (e *fakeEngine) Status(ctx context.Context, id string) (workflow.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	res, ok := e.results[id]
	if !ok {
		return workflow.Result{}, session.ErrNotFound
	}
	return res, nil
}

func (e *fakeEngine) Resume(ctx context.Context, id string, d *workflow.Decision) (workflow.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.decisions = append(e.decisions, *d)
	res := e.results[id]
	res.Status = session.StatusCompleted
	e.results[id] = res
	return res, nil
}

func reviewPlan() model.Plan {
	return model.Plan{Title: "Audit", Sections: []model.Section{
		{ID: "a", Title: "Summary", Order: 1},
		{ID: "b", Title: "Findings", Order: 2},
		{ID: "c", Title: "Next steps", Order: 3},
	}}
}

func newEngine() *fakeEngine {
	plan := reviewPlan()
	st := session.New("s1", "")
	st.Plan = &plan
	return &fakeEngine{results: map[string]workflow.Result{
		"s1": {SessionID: "s1", Status: session.StatusAwaitingReview, Node: workflow.NodeApproval, State: st},
	}}
}

func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(r *mcp.CallToolResult) string {
	if r == nil {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func syncBackground(f func()) { f() }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestStatusShowsCandidatePlan(t *testing.T) {
	tool := NewStatusTool(newEngine())

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"session_id": "s1"}))
	if err != nil || res.IsError {
		t.Fatalf("Handle failed: %v %s", err, resultText(res))
	}
	text := resultText(res)
	for _, want := range []string{"awaiting_review", "Candidate plan", `"title": "Findings"`, "**Tasks:** 0 of 1"} {
		if !strings.Contains(text, want) {
			t.Errorf("status missing %q:\n%s", want, text)
		}
	}
}

func TestStatusUnknownSession(t *testing.T) {
	tool := NewStatusTool(newEngine())
	res, _ := tool.Handle(context.Background(), makeReq(map[string]interface{}{"session_id": "nope"}))
	if !res.IsError || !strings.Contains(resultText(res), "not found") {
		t.Errorf("expected not found error, got %q", resultText(res))
	}

	res, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{}))
	if !res.IsError {
		t.Error("missing session_id should fail")
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]interface{}
		wantErr string
	}{
		{"bad decision", map[string]interface{}{"session_id": "s1", "decision": "maybe"}, "approve or reject"},
		{"reject without feedback", map[string]interface{}{"session_id": "s1", "decision": "reject"}, "feedback"},
		{"unknown session", map[string]interface{}{"session_id": "x", "decision": "approve"}, "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newEngine()
			tool := NewDecideTool(engine, syncBackground, context.Background(), discard())
			res, _ := tool.Handle(context.Background(), makeReq(tt.args))
			if !res.IsError || !strings.Contains(resultText(res), tt.wantErr) {
				t.Errorf("got %q, want error containing %q", resultText(res), tt.wantErr)
			}
			if len(engine.decisions) != 0 {
				t.Error("engine resumed on invalid input")
			}
		})
	}
}

func TestDecideRejectResumes(t *testing.T) {
	engine := newEngine()
	tool := NewDecideTool(engine, syncBackground, context.Background(), discard())

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"session_id": "s1", "decision": "reject", "feedback": "merge sections 2 and 3",
	}))
	if err != nil || res.IsError {
		t.Fatalf("Handle failed: %v %s", err, resultText(res))
	}
	if len(engine.decisions) != 1 {
		t.Fatalf("decisions = %+v", engine.decisions)
	}
	d := engine.decisions[0]
	if d.Status != model.ApprovalRejected || d.Feedback != "merge sections 2 and 3" {
		t.Errorf("decision = %+v", d)
	}

	res, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{"session_id": "s1", "decision": "approve"}))
	if !res.IsError || !strings.Contains(resultText(res), "not awaiting review") {
		t.Errorf("second decision should fail, got %q", resultText(res))
	}
}

func TestDocumentAssemblesCommittedSections(t *testing.T) {
	ctx := context.Background()
	engine := newEngine()
	store := storage.NewMemoryStore()
	if err := store.CommitSection(ctx, "s1", "b", "Findings", "Pumps leak.", 2); err != nil {
		t.Fatal(err)
	}
	tool := NewDocumentTool(engine, store)

	res, err := tool.Handle(ctx, makeReq(map[string]interface{}{"session_id": "s1"}))
	if err != nil || res.IsError {
		t.Fatalf("Handle failed: %v %s", err, resultText(res))
	}
	if want := "# Audit\n\n## Findings\n\nPumps leak.\n"; resultText(res) != want {
		t.Errorf("document = %q, want %q", resultText(res), want)
	}

	engine.results["s1"] = func() workflow.Result {
		r := engine.results["s1"]
		r.State.Document = "final"
		return r
	}()
	res, _ = tool.Handle(ctx, makeReq(map[string]interface{}{"session_id": "s1"}))
	if resultText(res) != "final" {
		t.Errorf("finished document = %q", resultText(res))
	}
}

func TestSessionsAndServer(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	st := session.New("s2", "")
	if err := store.Put(ctx, session.NewCheckpoint(st, 1, "planner", session.StatusStalled)); err != nil {
		t.Fatal(err)
	}

	res, err := NewSessionsTool(store).Handle(ctx, makeReq(nil))
	if err != nil || !strings.Contains(resultText(res), "- s2: stalled") {
		t.Errorf("sessions = %q (%v)", resultText(res), err)
	}

	if s := New(Deps{Engine: newEngine(), Store: store, Logger: discard()}, "test"); s == nil {
		t.Error("New returned nil")
	}
}
