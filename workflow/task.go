package workflow

import (
	"github.com/richinex/reportflow/model"
)

// TaskKind distinguishes top-level tasks from subsection tasks.
type TaskKind string

const (
	TaskMain TaskKind = "main"
	TaskLeaf TaskKind = "leaf"
)

// Task is one unit of drafting work. Tasks are derived from the plan on
// every use and never stored.
type Task struct {
	ID             string
	Title          string
	Purpose        string
	ContentItemIDs []string
	Kind           TaskKind
	Order          int
}

// Unit is a titled piece of the final document: a drafting task or a
// synthesis section.
type Unit struct {
	ID         string
	Title      string
	Purpose    string
	Order      int
	Synthesize bool
}

// synthesisFlags reports which top-level sections (by position in ordered)
// are written by the synthesizer rather than drafted. Explicit flags win
// when any section sets one; otherwise the first and last sections of a
// plan with three or more sections, or the first of a two-section plan,
// are synthesis sections.
func synthesisFlags(ordered []model.Section) []bool {
	flags := make([]bool, len(ordered))

	explicit := false
	for _, s := range ordered {
		if s.Synthesize != nil {
			explicit = true
			break
		}
	}
	if explicit {
		for i, s := range ordered {
			flags[i] = s.Synthesize != nil && *s.Synthesize
		}
		return flags
	}

	switch n := len(ordered); {
	case n >= 3:
		flags[0], flags[n-1] = true, true
	case n == 2:
		flags[0] = true
	}
	return flags
}

// Flatten derives the ordered drafting queue from a plan. Synthesis
// sections are excluded; a section with subsections contributes one leaf
// task per subsection and none for itself.
func Flatten(plan model.Plan) []Task {
	ordered := plan.Ordered()
	flags := synthesisFlags(ordered)

	var tasks []Task
	for i, s := range ordered {
		if flags[i] {
			continue
		}
		if !s.HasSubsections() {
			tasks = append(tasks, Task{
				ID:             s.ID,
				Title:          s.Title,
				Purpose:        s.Purpose,
				ContentItemIDs: append([]string(nil), s.ContentItemIDs...),
				Kind:           TaskMain,
				Order:          s.Order,
			})
			continue
		}
		for _, sub := range s.Subsections {
			tasks = append(tasks, Task{
				ID:             sub.ID,
				Title:          LeafTitle(s.Title, sub.Title),
				Purpose:        sub.Purpose,
				ContentItemIDs: append([]string(nil), sub.ContentItemIDs...),
				Kind:           TaskLeaf,
				Order:          s.Order,
			})
		}
	}
	return tasks
}

// LeafTitle is the draft key of a subsection.
func LeafTitle(parent, sub string) string {
	return model.DraftKey(parent, sub)
}

// Units returns every titled unit of the document in document order:
// synthesis sections and drafting tasks.
func Units(plan model.Plan) []Unit {
	ordered := plan.Ordered()
	flags := synthesisFlags(ordered)

	var units []Unit
	for i, s := range ordered {
		if flags[i] || !s.HasSubsections() {
			units = append(units, Unit{ID: s.ID, Title: s.Title, Purpose: s.Purpose, Order: s.Order, Synthesize: flags[i]})
			continue
		}
		for _, sub := range s.Subsections {
			units = append(units, Unit{ID: sub.ID, Title: LeafTitle(s.Title, sub.Title), Purpose: sub.Purpose, Order: s.Order})
		}
	}
	return units
}

// DraftableTitles returns the titles of every unit in document order.
func DraftableTitles(plan model.Plan) []string {
	units := Units(plan)
	titles := make([]string, len(units))
	for i, u := range units {
		titles[i] = u.Title
	}
	return titles
}
