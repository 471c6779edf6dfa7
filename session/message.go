package session

import "github.com/richinex/reportflow/llm"

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolStatus is the outcome recorded on a tool-result message.
type ToolStatus string

const (
	ToolOK           ToolStatus = "ok"
	ToolError        ToolStatus = "error"
	ToolNotPersisted ToolStatus = "not_persisted"
)

// Message is one entry of the conversation history.
//
// TaskID tags every message produced while drafting a task, so the segment
// belonging to the current task is found without scanning for a marker.
// TaskPrompt is set on the user message that opened the task.
type Message struct {
	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []llm.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	ToolStatus ToolStatus     `json:"tool_status,omitempty"`
	TaskID     string         `json:"task_id,omitempty"`
	TaskPrompt bool           `json:"task_prompt,omitempty"`
}

// Succeeded reports whether a tool result counts as a success. A commit
// that reached the model but not the store still counts.
func (m Message) Succeeded() bool {
	return m.ToolStatus == ToolOK || m.ToolStatus == ToolNotPersisted
}

// ToChat converts history entries into provider messages.
func ToChat(msgs []Message) []llm.ChatMessage {
	out := make([]llm.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llm.ChatMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCalls:  m.ToolCalls,
			ToolCallID: m.ToolCallID,
			Name:       m.ToolName,
		})
	}
	return out
}
