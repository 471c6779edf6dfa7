// Package session holds the per-session workflow state, the rules for
// merging node updates into it, and the checkpoint contract.
package session

import (
	"maps"

	"github.com/richinex/reportflow/model"
)

// State is the full state of one document-generation session.
// Values are treated as immutable: Apply returns a new State.
type State struct {
	SessionID          string               `json:"session_id"`
	Messages           []Message            `json:"messages,omitempty"`
	Plan               *model.Plan          `json:"plan,omitempty"`
	ApprovalStatus     model.ApprovalStatus `json:"approval_status,omitempty"`
	Feedback           string               `json:"feedback,omitempty"`
	TaskCursor         int                  `json:"task_cursor"`
	RetryCount         int                  `json:"retry_count"`
	SearchAttemptCount int                  `json:"search_attempt_count"`
	SectionDrafts      map[string]string    `json:"section_drafts,omitempty"`
	Directive          Directive            `json:"directive,omitempty"`
	ContentItems       []model.ContentItem  `json:"content_items,omitempty"`
	Constraints        string               `json:"constraints,omitempty"`
	Document           string               `json:"document,omitempty"`
	Skipped            []string             `json:"skipped,omitempty"`
	Stalled            bool                 `json:"stalled,omitempty"`
	LastError          string               `json:"last_error,omitempty"`
}

// New returns the initial state for a session.
func New(sessionID, constraints string) State {
	return State{
		SessionID:      sessionID,
		Constraints:    constraints,
		ApprovalStatus: model.ApprovalPending,
		SectionDrafts:  map[string]string{},
	}
}

// ContentItem looks up a content item by id.
func (s State) ContentItem(id string) (model.ContentItem, bool) {
	for _, c := range s.ContentItems {
		if c.ID == id {
			return c, true
		}
	}
	return model.ContentItem{}, false
}

// Drafted reports whether a draft exists for title.
func (s State) Drafted(title string) bool {
	_, ok := s.SectionDrafts[title]
	return ok
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := s
	out.Messages = append([]Message(nil), s.Messages...)
	if s.Plan != nil {
		p := s.Plan.Clone()
		out.Plan = &p
	}
	out.SectionDrafts = maps.Clone(s.SectionDrafts)
	if out.SectionDrafts == nil {
		out.SectionDrafts = map[string]string{}
	}
	out.ContentItems = append([]model.ContentItem(nil), s.ContentItems...)
	out.Skipped = append([]string(nil), s.Skipped...)
	return out
}
