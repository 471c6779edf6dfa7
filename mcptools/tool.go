// MCP Tool Wrapper - makes MCP tools usable in the drafting loop.

package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/richinex/reportflow/tools"
)

// Toolset holds the tools of every connected server.
// The caller must call Close() when done to release resources.
type Toolset struct {
	callers []Caller
	tools   []tools.Tool
}

// Tools returns the discovered tools.
func (s *Toolset) Tools() []tools.Tool {
	return s.tools
}

// Close closes every MCP client.
func (s *Toolset) Close() error {
	var errs []error
	for _, c := range s.callers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Open connects to every configured server and discovers its tools.
// A server that fails to start is logged and skipped.
func Open(ctx context.Context, cfg *Config, version string, logger *slog.Logger) (*Toolset, error) {
	set := &Toolset{}
	for _, name := range cfg.ServerNames() {
		server := cfg.MCPServers[name]
		c, err := Connect(ctx, server, version)
		if err != nil {
			logger.Warn("mcp server unavailable", "server", name, "error", err)
			continue
		}
		if err := set.Add(ctx, name, server, c); err != nil {
			logger.Warn("mcp tool discovery failed", "server", name, "error", err)
			continue
		}
		logger.Info("mcp server connected", "server", name)
	}
	return set, nil
}

// Add discovers the tools of one connected client. The toolset takes
// ownership of c.
func (s *Toolset) Add(ctx context.Context, server string, cfg ServerConfig, c Caller) error {
	res, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		c.Close()
		return fmt.Errorf("failed to list tools: %w", err)
	}

	s.callers = append(s.callers, c)
	for _, t := range res.Tools {
		if len(cfg.Tools) > 0 && !slices.Contains(cfg.Tools, t.Name) {
			continue
		}
		s.tools = append(s.tools, &toolWrapper{
			caller:      c,
			name:        ToolName(server, t.Name),
			remote:      t.Name,
			description: t.Description,
			schema:      t.InputSchema,
			exploratory: cfg.IsExploratory(),
		})
	}
	return nil
}

// ToolName is the registry name of a server's tool.
func ToolName(server, tool string) string {
	return server + "_" + tool
}

// toolWrapper implements tools.Tool over a shared client.
type toolWrapper struct {
	caller      Caller
	name        string
	remote      string
	description string
	schema      mcp.ToolInputSchema
	exploratory bool
}

// Metadata returns the tool metadata extracted from the MCP schema.
func (w *toolWrapper) Metadata() tools.ToolMetadata {
	return tools.ToolMetadata{
		Name:        w.name,
		Description: w.description,
		Parameters:  parseParameters(w.schema),
		Exploratory: w.exploratory,
	}
}

// parseParameters extracts tool parameters from the JSON schema.
// Returns parameters in sorted order for deterministic output.
func parseParameters(schema mcp.ToolInputSchema) []tools.ToolParameter {
	required := make(map[string]bool, len(schema.Required))
	for _, r := range schema.Required {
		required[r] = true
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]tools.ToolParameter, 0, len(names))
	for _, name := range names {
		paramType, description := "string", ""
		if prop, ok := schema.Properties[name].(map[string]interface{}); ok {
			if t, ok := prop["type"].(string); ok && t != "" {
				paramType = t
			}
			description, _ = prop["description"].(string)
		}
		params = append(params, tools.ToolParameter{
			Name:        name,
			ParamType:   paramType,
			Description: description,
			Required:    required[name],
		})
	}
	return params
}

// Execute calls the remote tool.
func (w *toolWrapper) Execute(ctx context.Context, args json.RawMessage) (tools.ToolResult, error) {
	var arguments map[string]interface{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &arguments); err != nil {
			return tools.FailureResultf("invalid JSON arguments: %v", err), nil
		}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = w.remote
	req.Params.Arguments = arguments

	res, err := w.caller.CallTool(ctx, req)
	if err != nil {
		return tools.ToolResult{}, fmt.Errorf("tool call failed: %w", err)
	}
	return formatResult(res), nil
}

// Validate validates that arguments are a JSON object.
// Schema validation is performed by the MCP server.
func (w *toolWrapper) Validate(args json.RawMessage) error {
	var v map[string]interface{}
	if err := json.Unmarshal(args, &v); err != nil {
		return fmt.Errorf("invalid JSON arguments: %w", err)
	}
	return nil
}

// formatResult joins the text content of a result.
func formatResult(res *mcp.CallToolResult) tools.ToolResult {
	var parts []string
	for _, c := range res.Content {
		switch c := c.(type) {
		case mcp.TextContent:
			parts = append(parts, c.Text)
		case mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[image %s]", c.MIMEType))
		}
	}
	text := strings.Join(parts, "\n")
	if res.IsError {
		return tools.PermanentFailuref("%s", text)
	}
	return tools.SuccessResult(text)
}

var _ tools.Tool = (*toolWrapper)(nil)
