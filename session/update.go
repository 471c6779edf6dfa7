package session

import (
	"maps"

	"github.com/richinex/reportflow/model"
)

// Update is a partial state produced by one node. Nil pointer fields mean
// "no change"; slices and maps are merged according to the rule declared
// for their field in mergeRules.
type Update struct {
	SessionID          *string
	Messages           []Message
	ReplaceMessages    bool
	Plan               *model.Plan
	ApprovalStatus     *model.ApprovalStatus
	Feedback           *string
	TaskCursor         *int
	RetryCount         *int
	SearchAttemptCount *int
	SectionDrafts      map[string]string
	Directive          Directive
	ContentItems       []model.ContentItem
	Constraints        *string
	Document           *string
	Skipped            []string
	Stalled            *bool
	LastError          *string
}

// mergeRule folds one field of an update into the next state.
type mergeRule func(next *State, u Update)

// mergeRules is the declared merge behavior per field. Every field of
// Update appears exactly once.
var mergeRules = map[string]mergeRule{
	"session_id":           replaceIfSet(func(s *State, u Update) { s.SessionID = *u.SessionID }, func(u Update) bool { return u.SessionID != nil }),
	"messages":             appendMessages,
	"plan":                 replaceIfSet(func(s *State, u Update) { p := u.Plan.Clone(); s.Plan = &p }, func(u Update) bool { return u.Plan != nil }),
	"approval_status":      replaceIfSet(func(s *State, u Update) { s.ApprovalStatus = *u.ApprovalStatus }, func(u Update) bool { return u.ApprovalStatus != nil }),
	"feedback":             replaceIfSet(func(s *State, u Update) { s.Feedback = *u.Feedback }, func(u Update) bool { return u.Feedback != nil }),
	"task_cursor":          replaceIfSet(func(s *State, u Update) { s.TaskCursor = *u.TaskCursor }, func(u Update) bool { return u.TaskCursor != nil }),
	"retry_count":          replaceIfSet(func(s *State, u Update) { s.RetryCount = *u.RetryCount }, func(u Update) bool { return u.RetryCount != nil }),
	"search_attempt_count": replaceIfSet(func(s *State, u Update) { s.SearchAttemptCount = *u.SearchAttemptCount }, func(u Update) bool { return u.SearchAttemptCount != nil }),
	"section_drafts":       unionDrafts,
	"directive":            func(s *State, u Update) { s.Directive = u.Directive },
	"content_items":        replaceIfSet(func(s *State, u Update) { s.ContentItems = append([]model.ContentItem(nil), u.ContentItems...) }, func(u Update) bool { return u.ContentItems != nil }),
	"constraints":          replaceIfSet(func(s *State, u Update) { s.Constraints = *u.Constraints }, func(u Update) bool { return u.Constraints != nil }),
	"document":             replaceIfSet(func(s *State, u Update) { s.Document = *u.Document }, func(u Update) bool { return u.Document != nil }),
	"skipped":              func(s *State, u Update) { s.Skipped = append(s.Skipped, u.Skipped...) },
	"stalled":              replaceIfSet(func(s *State, u Update) { s.Stalled = *u.Stalled }, func(u Update) bool { return u.Stalled != nil }),
	"last_error":           replaceIfSet(func(s *State, u Update) { s.LastError = *u.LastError }, func(u Update) bool { return u.LastError != nil }),
}

func replaceIfSet(set func(*State, Update), present func(Update) bool) mergeRule {
	return func(s *State, u Update) {
		if present(u) {
			set(s, u)
		}
	}
}

func appendMessages(s *State, u Update) {
	if u.ReplaceMessages {
		s.Messages = append([]Message(nil), u.Messages...)
		return
	}
	s.Messages = append(s.Messages, u.Messages...)
}

func unionDrafts(s *State, u Update) {
	if len(u.SectionDrafts) == 0 {
		return
	}
	merged := maps.Clone(s.SectionDrafts)
	if merged == nil {
		merged = make(map[string]string, len(u.SectionDrafts))
	}
	maps.Copy(merged, u.SectionDrafts)
	s.SectionDrafts = merged
}

// Apply merges u into a copy of s and returns it. s is not modified.
func (s State) Apply(u Update) State {
	next := s.Clone()
	for _, rule := range mergeRules {
		rule(&next, u)
	}
	return next
}

// Ptr returns a pointer to v, for building updates.
func Ptr[T any](v T) *T {
	return &v
}
