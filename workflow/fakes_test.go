package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/richinex/reportflow/llm"
	"github.com/richinex/reportflow/model"
	"github.com/richinex/reportflow/tools"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProvider answers with a script keyed on the system prompt and records
// every request.
type fakeProvider struct {
	mu       sync.Mutex
	requests []llm.Request
	respond  func(n int, req llm.Request) (llm.Response, error)
}

func (p *fakeProvider) Name() string  { return "fake" }
func (p *fakeProvider) Model() string { return "fake-model" }

func (p *fakeProvider) Invoke(ctx context.Context, req llm.Request) (llm.Response, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	n := len(p.requests)
	p.mu.Unlock()
	return p.respond(n, req)
}

func (p *fakeProvider) bySystem(system string) []llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []llm.Request
	for _, r := range p.requests {
		if r.System == system {
			out = append(out, r)
		}
	}
	return out
}

type commitRecord struct {
	SessionID, SectionID, Title, Content string
	Order                                int
}

// fakeDocuments implements Documents in memory.
type fakeDocuments struct {
	mu        sync.Mutex
	commitErr error
	commits   []commitRecord
	statuses  []model.StatusUpdate
}

func (d *fakeDocuments) CommitSection(ctx context.Context, sessionID, sectionID, title, content string, order int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.commitErr != nil {
		return d.commitErr
	}
	d.commits = append(d.commits, commitRecord{sessionID, sectionID, title, content, order})
	return nil
}

func (d *fakeDocuments) UpdateStatus(ctx context.Context, sessionID string, upd model.StatusUpdate) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statuses = append(d.statuses, upd)
	return nil
}

type staticSources []model.ContentItem

func (s staticSources) Load(ctx context.Context, sessionID string) ([]model.ContentItem, error) {
	return s, nil
}

// countingTool is an exploratory tool that records its invocations.
type countingTool struct {
	tools.BaseTool
	name  string
	mu    sync.Mutex
	calls int
}

func (t *countingTool) Metadata() tools.ToolMetadata {
	return tools.ToolMetadata{
		Name:        t.name,
		Description: "counts calls",
		Parameters:  []tools.ToolParameter{{Name: "query", ParamType: "string", Required: true}},
		Exploratory: true,
	}
}

func (t *countingTool) Execute(ctx context.Context, args json.RawMessage) (tools.ToolResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	return tools.SuccessResult("result"), nil
}

func (t *countingTool) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

func draftingRegistry(t *testing.T, docs Documents) *tools.Registry {
	t.Helper()
	reg, err := tools.NewDraftingRegistry(docs, tools.Options{})
	if err != nil {
		t.Fatalf("NewDraftingRegistry failed: %v", err)
	}
	return reg
}

func commitCall(id, content string) llm.ToolCall {
	args, _ := json.Marshal(map[string]string{"content": content})
	return llm.ToolCall{ID: id, Name: tools.CommitSectionName, Arguments: args}
}

func searchCall(id, query string) llm.ToolCall {
	args, _ := json.Marshal(map[string]string{"query": query})
	return llm.ToolCall{ID: id, Name: tools.SearchSourcesName, Arguments: args}
}

// taskTitle reads the task title out of a drafting request's prompt.
func taskTitle(req llm.Request) string {
	if len(req.Messages) == 0 {
		return ""
	}
	line, _, _ := strings.Cut(req.Messages[0].Content, "\n")
	_, title, _ := strings.Cut(line, ": ")
	return title
}

var errModelDown = errors.New("model unavailable")

// auditPlan is the three-section plan of the end-to-end scenarios.
func auditPlan() model.Plan {
	return model.Plan{
		Title: "Pump Station Audit",
		Sections: []model.Section{
			{ID: "summary", Title: "Exec Summary", Order: 1},
			{ID: "obs", Title: "Observations", Order: 2, Subsections: []model.Section{
				{ID: "obs-pumps", Title: "Pumps", Order: 1, ContentItemIDs: []string{"img-1"}},
				{ID: "obs-valves", Title: "Valves", Order: 2},
			}},
			{ID: "recs", Title: "Recommendations", Order: 3},
		},
	}
}

func mustPlanJSON(t *testing.T, p model.Plan) string {
	t.Helper()
	s, err := PlanJSON(p)
	if err != nil {
		t.Fatalf("PlanJSON failed: %v", err)
	}
	return s
}
