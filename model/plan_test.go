package model

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestPlanValidate(t *testing.T) {
	tests := []struct {
		name    string
		plan    Plan
		wantErr bool
	}{
		{
			name: "valid",
			plan: Plan{Sections: []Section{
				{ID: "s1", Title: "Summary", Order: 1},
				{ID: "s2", Title: "Findings", Order: 2, Subsections: []Section{
					{ID: "s2a", Title: "Pumps", ContentItemIDs: []string{"c1"}},
				}},
			}},
		},
		{name: "empty", plan: Plan{}, wantErr: true},
		{
			name:    "missing id",
			plan:    Plan{Sections: []Section{{Title: "x"}}},
			wantErr: true,
		},
		{
			name: "duplicate id",
			plan: Plan{Sections: []Section{
				{ID: "a", Title: "x"},
				{ID: "a", Title: "y"},
			}},
			wantErr: true,
		},
		{
			name: "duplicate title",
			plan: Plan{Sections: []Section{
				{ID: "a", Title: "Intro"},
				{ID: "b", Title: "Findings"},
				{ID: "c", Title: "Findings"},
				{ID: "d", Title: "Recs"},
			}},
			wantErr: true,
		},
		{
			name: "duplicate subsection title",
			plan: Plan{Sections: []Section{
				{ID: "p", Title: "Findings", Subsections: []Section{
					{ID: "p1", Title: "Pumps"},
					{ID: "p2", Title: "Pumps"},
				}},
			}},
			wantErr: true,
		},
		{
			name: "subsection key collides with section title",
			plan: Plan{Sections: []Section{
				{ID: "a", Title: "Findings: Pumps"},
				{ID: "p", Title: "Findings", Subsections: []Section{
					{ID: "p1", Title: "Pumps"},
				}},
			}},
			wantErr: true,
		},
		{
			name: "same subsection title under different parents",
			plan: Plan{Sections: []Section{
				{ID: "a", Title: "North", Subsections: []Section{{ID: "a1", Title: "Pumps"}}},
				{ID: "b", Title: "South", Subsections: []Section{{ID: "b1", Title: "Pumps"}}},
			}},
		},
		{
			name: "parent with content",
			plan: Plan{Sections: []Section{
				{ID: "p", Title: "Parent", ContentItemIDs: []string{"c1"}, Subsections: []Section{
					{ID: "c", Title: "Child"},
				}},
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPlan) {
					t.Errorf("expected ErrInvalidPlan, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestPlanOrderedDoesNotMutate(t *testing.T) {
	plan := Plan{Sections: []Section{
		{ID: "b", Title: "B", Order: 2},
		{ID: "a", Title: "A", Order: 1},
	}}

	ordered := plan.Ordered()
	if ordered[0].ID != "a" || ordered[1].ID != "b" {
		t.Errorf("unexpected order: %v", ordered)
	}
	if plan.Sections[0].ID != "b" {
		t.Error("Ordered mutated the plan")
	}
}

func TestPlanClone(t *testing.T) {
	plan := Plan{Sections: []Section{
		{ID: "a", Title: "A", ContentItemIDs: []string{"c1"}, Synthesize: Bool(true)},
	}}
	clone := plan.Clone()
	clone.Sections[0].ContentItemIDs[0] = "changed"
	*clone.Sections[0].Synthesize = false

	if plan.Sections[0].ContentItemIDs[0] != "c1" {
		t.Error("clone shares content id slice")
	}
	if !*plan.Sections[0].Synthesize {
		t.Error("clone shares synthesize flag")
	}
}

func TestParseApprovalStatus(t *testing.T) {
	for in, want := range map[string]ApprovalStatus{
		"approve":  ApprovalApproved,
		"REJECTED": ApprovalRejected,
		" pending": ApprovalPending,
	} {
		got, err := ParseApprovalStatus(in)
		if err != nil || got != want {
			t.Errorf("ParseApprovalStatus(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseApprovalStatus("maybe"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestContentItemSummaryTruncatesByRune(t *testing.T) {
	item := ContentItem{ID: "n1", Title: "Notes", Body: strings.Repeat("é", 200)}

	got := item.Summary()
	if !utf8.ValidString(got) {
		t.Fatalf("summary is not valid UTF-8: %q", got)
	}
	want := "[n1] Notes (text): " + strings.Repeat("é", 160) + "..."
	if got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}

	short := ContentItem{ID: "n2", Title: "Short", Kind: ContentTable, Description: "flow readings"}
	if got := short.Summary(); got != "[n2] Short (table): flow readings" {
		t.Errorf("Summary() = %q", got)
	}
}
