package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/richinex/reportflow/tools"
)

type fakeCaller struct {
	tools  []mcp.Tool
	calls  []mcp.CallToolRequest
	result *mcp.CallToolResult
	err    error
	closed bool
}

func (f *fakeCaller) ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	return &mcp.ListToolsResult{Tools: f.tools}, nil
}

func (f *fakeCaller) CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f.calls = append(f.calls, req)
	return f.result, f.err
}

func (f *fakeCaller) Close() error {
	f.closed = true
	return nil
}

func searchTool() mcp.Tool {
	return mcp.NewTool("web_search",
		mcp.WithDescription("Search the web"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search terms")),
		mcp.WithNumber("count", mcp.Description("Results")),
	)
}

func TestToolsetAdd(t *testing.T) {
	caller := &fakeCaller{
		tools:  []mcp.Tool{searchTool(), mcp.NewTool("delete_everything")},
		result: mcp.NewToolResultText("three results"),
	}
	set := &Toolset{}
	if err := set.Add(context.Background(), "brave", ServerConfig{Command: "x", Tools: []string{"web_search"}}, caller); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if len(set.Tools()) != 1 {
		t.Fatalf("tools = %d, want 1 (filtered)", len(set.Tools()))
	}
	tool := set.Tools()[0]
	meta := tool.Metadata()
	if meta.Name != "brave_web_search" || !meta.Exploratory {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	if len(meta.Parameters) != 2 || meta.Parameters[0].Name != "count" || meta.Parameters[0].ParamType != "number" {
		t.Errorf("parameters = %+v", meta.Parameters)
	}
	if !meta.Parameters[1].Required {
		t.Error("query should be required")
	}

	res, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"pump cavitation"}`))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success() || res.Output != "three results" {
		t.Errorf("result = %+v", res)
	}
	if len(caller.calls) != 1 || caller.calls[0].Params.Name != "web_search" {
		t.Errorf("remote call = %+v", caller.calls)
	}

	if err := set.Close(); err != nil || !caller.closed {
		t.Errorf("Close: %v closed=%v", err, caller.closed)
	}
}

func TestToolErrorResultNotRetried(t *testing.T) {
	caller := &fakeCaller{tools: []mcp.Tool{searchTool()}, result: mcp.NewToolResultError("quota exceeded")}
	set := &Toolset{}
	exploratory := false
	if err := set.Add(context.Background(), "s", ServerConfig{Command: "x", Exploratory: &exploratory}, caller); err != nil {
		t.Fatal(err)
	}
	tool := set.Tools()[0]
	if tool.Metadata().Exploratory {
		t.Error("exploratory override ignored")
	}

	res, err := tools.NewDefaultExecutor().Execute(context.Background(), tool, json.RawMessage(`{"query":"q"}`))
	if err != nil {
		t.Fatal(err)
	}
	if res.Success() || !errors.Is(res.Error, tools.ErrNotRetryable) {
		t.Errorf("expected a not-retryable failure, got %+v", res)
	}
	if len(caller.calls) != 1 {
		t.Errorf("remote error should not be retried, got %d calls", len(caller.calls))
	}
}

func TestToolTransportError(t *testing.T) {
	caller := &fakeCaller{tools: []mcp.Tool{searchTool()}, err: errors.New("broken pipe")}
	set := &Toolset{}
	_ = set.Add(context.Background(), "s", ServerConfig{Command: "x"}, caller)

	if _, err := set.Tools()[0].Execute(context.Background(), json.RawMessage(`{}`)); err == nil {
		t.Error("expected transport error")
	}
	if err := set.Tools()[0].Validate(json.RawMessage(`[1]`)); err == nil {
		t.Error("non-object arguments should fail validation")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcp.json")
	content := `{"mcpServers": {
		"b": {"command": "npx", "args": ["-y", "srv"], "env": {"K": "V"}},
		"a": {"command": "uvx", "exploratory": false}
	}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if names := cfg.ServerNames(); len(names) != 2 || names[0] != "a" {
		t.Errorf("ServerNames = %v", names)
	}
	if cfg.MCPServers["a"].IsExploratory() || !cfg.MCPServers["b"].IsExploratory() {
		t.Error("exploratory flags wrong")
	}
	if env := cfg.MCPServers["b"].environ(); len(env) != 1 || env[0] != "K=V" {
		t.Errorf("environ = %v", env)
	}

	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(bad, []byte(`{"mcpServers": {"x": {}}}`), 0o644)
	if _, err := LoadConfig(bad); err == nil {
		t.Error("server without command should fail")
	}
}
