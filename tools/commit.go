// Section commit tool.
//
// Information Hiding:
// - Persistence target hidden behind SectionCommitter
// - Store failures downgraded to a not-persisted success

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// CommitSectionName is the name of the commit tool.
const CommitSectionName = "commit_section"

// SectionCommitter persists a finished section.
type SectionCommitter interface {
	CommitSection(ctx context.Context, sessionID, sectionID, title, content string, order int) error
}

// CommitArgs are the arguments of commit_section. SessionID, SectionID,
// Title and Order are filled by the workflow from its own state.
type CommitArgs struct {
	SessionID string `json:"session_id"`
	SectionID string `json:"section_id"`
	Title     string `json:"title"`
	Order     int    `json:"order"`
	Content   string `json:"content"`
}

// ParseCommitArgs decodes commit_section arguments.
func ParseCommitArgs(args json.RawMessage) (CommitArgs, error) {
	var a CommitArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return a, fmt.Errorf("invalid arguments: %w", err)
	}
	return a, nil
}

// CommitSectionTool writes a drafted section to the document store.
type CommitSectionTool struct {
	store SectionCommitter
}

// NewCommitSectionTool creates the commit tool.
func NewCommitSectionTool(store SectionCommitter) *CommitSectionTool {
	return &CommitSectionTool{store: store}
}

// Metadata returns the tool metadata.
func (t *CommitSectionTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        CommitSectionName,
		Description: "Save the finished text of the section you are writing. Call this once the section is complete.",
		Parameters: []ToolParameter{
			{Name: "content", ParamType: "string", Description: "Full markdown text of the section, without its heading", Required: true},
		},
	}
}

// Validate validates the arguments.
func (t *CommitSectionTool) Validate(args json.RawMessage) error {
	a, err := ParseCommitArgs(args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(a.Content) == "" {
		return fmt.Errorf("content cannot be empty")
	}
	if a.SessionID == "" {
		return fmt.Errorf("session_id required")
	}
	return nil
}

// Execute persists the section.
func (t *CommitSectionTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	a, err := ParseCommitArgs(args)
	if err != nil {
		return FailureResult(err), nil
	}
	if a.SessionID == "" {
		return FailureResultf("session_id required: no active session"), nil
	}

	summary := fmt.Sprintf("section %q committed (%d characters)", a.Title, len([]rune(a.Content)))
	if err := t.store.CommitSection(ctx, a.SessionID, a.SectionID, a.Title, a.Content, a.Order); err != nil {
		return NotPersistedResult(summary, err), nil
	}
	return SuccessResult(summary), nil
}

var _ Tool = (*CommitSectionTool)(nil)
