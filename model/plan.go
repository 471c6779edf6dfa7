package model

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidPlan is wrapped by every plan validation failure.
var ErrInvalidPlan = errors.New("invalid plan")

// Section is one node of the hierarchical plan.
// Content items live only at the leaf level: a section with subsections
// carries no direct assignment.
type Section struct {
	ID             string    `json:"id" yaml:"id"`
	Title          string    `json:"title" yaml:"title"`
	Order          int       `json:"order" yaml:"order"`
	Purpose        string    `json:"purpose,omitempty" yaml:"purpose,omitempty"`
	Subsections    []Section `json:"subsections,omitempty" yaml:"subsections,omitempty"`
	ContentItemIDs []string  `json:"content_item_ids,omitempty" yaml:"content_item_ids,omitempty"`

	// Synthesize marks a section that is written after drafting from all
	// drafted content (executive summary, recommendations). Nil means the
	// plan did not say.
	Synthesize *bool `json:"synthesize,omitempty" yaml:"synthesize,omitempty"`
}

// HasSubsections reports whether the section is a parent.
func (s Section) HasSubsections() bool {
	return len(s.Subsections) > 0
}

// Plan is the structured outline of a document.
type Plan struct {
	Title    string    `json:"title" yaml:"title"`
	Sections []Section `json:"sections" yaml:"sections"`
}

// Validate checks the structural invariants of the plan.
func (p Plan) Validate() error {
	if len(p.Sections) == 0 {
		return fmt.Errorf("%w: no sections", ErrInvalidPlan)
	}
	seen := make(map[string]bool)
	var check func(sections []Section, parent string) error
	check = func(sections []Section, parent string) error {
		for _, s := range sections {
			if s.ID == "" {
				return fmt.Errorf("%w: section %q has no id", ErrInvalidPlan, s.Title)
			}
			if seen[s.ID] {
				return fmt.Errorf("%w: duplicate section id %q", ErrInvalidPlan, s.ID)
			}
			seen[s.ID] = true
			if s.Title == "" {
				return fmt.Errorf("%w: section %q has no title", ErrInvalidPlan, s.ID)
			}
			if s.HasSubsections() {
				if parent != "" {
					return fmt.Errorf("%w: section %q nests deeper than one level", ErrInvalidPlan, s.ID)
				}
				if len(s.ContentItemIDs) > 0 {
					return fmt.Errorf("%w: section %q has subsections and direct content items", ErrInvalidPlan, s.ID)
				}
				if err := check(s.Subsections, s.ID); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := check(p.Sections, ""); err != nil {
		return err
	}

	// drafts are keyed by title, so every key must be unique
	keys := make(map[string]bool)
	for _, s := range p.Sections {
		if keys[s.Title] {
			return fmt.Errorf("%w: duplicate section title %q", ErrInvalidPlan, s.Title)
		}
		keys[s.Title] = true
	}
	for _, s := range p.Sections {
		for _, sub := range s.Subsections {
			key := DraftKey(s.Title, sub.Title)
			if keys[key] {
				return fmt.Errorf("%w: duplicate section title %q", ErrInvalidPlan, key)
			}
			keys[key] = true
		}
	}
	return nil
}

// DraftKey is the title a subsection's draft is stored under.
func DraftKey(parent, sub string) string {
	return parent + ": " + sub
}

// Ordered returns the top-level sections sorted by report-display order.
// Subsections are sorted the same way. The plan itself is not modified.
func (p Plan) Ordered() []Section {
	out := sortSections(p.Sections)
	for i := range out {
		if out[i].HasSubsections() {
			out[i].Subsections = sortSections(out[i].Subsections)
		}
	}
	return out
}

func sortSections(in []Section) []Section {
	out := make([]Section, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order < out[j].Order
	})
	return out
}

// Clone returns a deep copy.
func (p Plan) Clone() Plan {
	return Plan{Title: p.Title, Sections: cloneSections(p.Sections)}
}

func cloneSections(in []Section) []Section {
	if in == nil {
		return nil
	}
	out := make([]Section, len(in))
	for i, s := range in {
		out[i] = s
		out[i].ContentItemIDs = append([]string(nil), s.ContentItemIDs...)
		out[i].Subsections = cloneSections(s.Subsections)
		if s.Synthesize != nil {
			v := *s.Synthesize
			out[i].Synthesize = &v
		}
	}
	return out
}

// Bool returns a pointer to b, for Section.Synthesize literals.
func Bool(b bool) *bool {
	return &b
}
