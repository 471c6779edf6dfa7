// Package tools provides the tool system used while drafting.
//
// Information Hiding:
// - Tool execution details hidden behind interface
// - Tool parameters and schemas hidden in implementations
// - Error handling internalized per tool: failures are returned as
//   ToolResult values, never as Go errors escaping to the workflow
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/richinex/reportflow/llm"
)

// ErrNotPersisted marks a commit the model made that the document store
// did not accept. The draft still counts.
var ErrNotPersisted = errors.New("section not persisted")

// ErrNotRetryable marks a failure that will not change on a second attempt.
var ErrNotRetryable = errors.New("not retryable")

// ToolParameter defines a parameter schema for a tool.
type ToolParameter struct {
	Name        string `json:"name"`
	ParamType   string `json:"param_type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// ToolMetadata describes what a tool does and how to use it.
type ToolMetadata struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`

	// Exploratory marks research tools whose calls are counted by the
	// circuit breaker.
	Exploratory bool `json:"exploratory,omitempty"`
}

// String returns a string representation of the tool metadata.
func (m ToolMetadata) String() string {
	return fmt.Sprintf("%s: %s", m.Name, m.Description)
}

// Definition renders the metadata as a JSON-schema tool definition.
func (m ToolMetadata) Definition() llm.ToolDefinition {
	props := make(map[string]interface{}, len(m.Parameters))
	required := []string{}
	for _, p := range m.Parameters {
		props[p.Name] = map[string]interface{}{
			"type":        p.ParamType,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return llm.ToolDefinition{
		Name:        m.Name,
		Description: m.Description,
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": props,
			"required":   required,
		},
	}
}

// ToolResult represents the result of a tool execution.
// Success is determined by whether Error is nil. Warning carries a
// non-fatal problem such as ErrNotPersisted.
type ToolResult struct {
	Output  string `json:"output"`
	Error   error  `json:"-"`
	Warning error  `json:"-"`
}

// MarshalJSON implements custom JSON marshaling for ToolResult.
func (t ToolResult) MarshalJSON() ([]byte, error) {
	env := struct {
		Success bool   `json:"success"`
		Output  string `json:"output"`
		Error   string `json:"error,omitempty"`
		Warning string `json:"warning,omitempty"`
	}{
		Success: t.Error == nil,
		Output:  t.Output,
	}
	if t.Error != nil {
		env.Error = t.Error.Error()
	}
	if t.Warning != nil {
		env.Warning = t.Warning.Error()
	}
	return json.Marshal(env)
}

// Success returns true if the tool execution succeeded.
func (t ToolResult) Success() bool {
	return t.Error == nil
}

// Persisted reports whether a successful commit reached the store.
func (t ToolResult) Persisted() bool {
	return t.Error == nil && !errors.Is(t.Warning, ErrNotPersisted)
}

// Content returns the text sent back to the model.
func (t ToolResult) Content() string {
	if t.Error != nil {
		if t.Output != "" {
			return fmt.Sprintf("error: %v\n%s", t.Error, t.Output)
		}
		return fmt.Sprintf("error: %v", t.Error)
	}
	if t.Warning != nil {
		return fmt.Sprintf("%s\nwarning: %v", t.Output, t.Warning)
	}
	return t.Output
}

// SuccessResult creates a successful tool result.
func SuccessResult(output string) ToolResult {
	return ToolResult{Output: output}
}

// FailureResult creates a failed tool result.
func FailureResult(err error) ToolResult {
	return ToolResult{Error: err}
}

// FailureResultf creates a failed tool result with a formatted error message.
func FailureResultf(format string, args ...interface{}) ToolResult {
	return ToolResult{Error: fmt.Errorf(format, args...)}
}

// PermanentFailuref creates a failed result the executor will not retry.
func PermanentFailuref(format string, args ...interface{}) ToolResult {
	return ToolResult{Error: fmt.Errorf("%s (%w)", fmt.Sprintf(format, args...), ErrNotRetryable)}
}

// NotPersistedResult creates a successful result whose side effect did not
// reach the store.
func NotPersistedResult(output string, cause error) ToolResult {
	return ToolResult{Output: output, Warning: fmt.Errorf("%w: %v", ErrNotPersisted, cause)}
}

// Tool is the interface that all tools must implement.
type Tool interface {
	// Metadata returns tool metadata (name, description, parameters).
	Metadata() ToolMetadata

	// Execute runs the tool with given arguments.
	Execute(ctx context.Context, args json.RawMessage) (ToolResult, error)

	// Validate validates arguments before execution (optional).
	Validate(args json.RawMessage) error
}

// BaseTool provides a default implementation for Validate.
type BaseTool struct{}

// Validate provides a default no-op validation.
func (BaseTool) Validate(args json.RawMessage) error {
	return nil
}

// ToolConfig holds tool execution configuration.
// The zero value is safe: timeout defaults to 30s and retries to 3.
type ToolConfig struct {
	TimeoutSecs uint64
	MaxRetries  uint32
}

// Timeout returns the configured timeout, defaulting to 30 seconds if zero.
func (c *ToolConfig) Timeout() uint64 {
	if c == nil || c.TimeoutSecs == 0 {
		return 30
	}
	return c.TimeoutSecs
}

// Retries returns the configured max retries, defaulting to 3 if zero.
func (c *ToolConfig) Retries() uint32 {
	if c == nil || c.MaxRetries == 0 {
		return 3
	}
	return c.MaxRetries
}

// DefaultToolConfig returns the default tool configuration.
func DefaultToolConfig() ToolConfig {
	return ToolConfig{
		TimeoutSecs: 30,
		MaxRetries:  3,
	}
}
