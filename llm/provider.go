// Package llm provides LLM provider abstractions.
//
// A Provider hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific handling of structured output
//
// The workflow engine receives a Provider by injection; nothing in this
// package keeps a shared client.
package llm

import (
	"context"
)

// Provider defines the model-call collaborator used by every workflow node.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// Invoke sends one request and returns the model's reply.
	// When req.Tools is non-empty the reply may carry tool calls instead of,
	// or in addition to, text.
	Invoke(ctx context.Context, req Request) (Response, error)
}

// Request is a single model call.
type Request struct {
	// System is the system prompt. Providers that take the system prompt
	// out of band send it there; others prepend it as a system message.
	System string

	Messages []ChatMessage
	Tools    []ToolDefinition

	// Format requests structured output. Nil means free text.
	Format *ResponseFormat
}

// Response is the reply to a Request.
type Response struct {
	Text      string
	ToolCalls []ToolCall
	Usage     *TokenUsage
}

// HasToolCalls reports whether the model asked for tools.
func (r Response) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}
