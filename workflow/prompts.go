package workflow

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/richinex/reportflow/model"
	"github.com/richinex/reportflow/session"
)

const plannerSystem = `You are a technical editor planning a long-form report.
Produce a plan as a single JSON object. Every section needs a unique id, a
title, an integer order and a one-sentence purpose. Assign source items to
sections by id through content_item_ids. A section may have one level of
subsections; when it does, assign items only to its subsections and never to
the section itself. Mark sections that summarize the rest of the report
(executive summary, conclusions, recommendations) with "synthesize": true.`

const drafterSystem = `You are a technical writer drafting one section of a
report at a time. Use only the assigned source material and what the research
tools return. When the section is complete, call commit_section with the full
markdown text of the section, without its heading.`

const synthesizerSystem = `You are a technical writer completing a report.
Write the requested section from the drafted sections provided. Return only
the markdown text of the section, without its heading.`

// planSchema is the JSON schema sent with planning requests.
var planSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "sections": {"type": "array", "items": {"$ref": "#/$defs/section"}}
  },
  "required": ["title", "sections"],
  "$defs": {
    "section": {
      "type": "object",
      "properties": {
        "id": {"type": "string"},
        "title": {"type": "string"},
        "order": {"type": "integer"},
        "purpose": {"type": "string"},
        "synthesize": {"type": "boolean"},
        "content_item_ids": {"type": "array", "items": {"type": "string"}},
        "subsections": {"type": "array", "items": {"$ref": "#/$defs/section"}}
      },
      "required": ["id", "title", "order"]
    }
  }
}`)

func plannerPrompt(st session.State) (string, error) {
	var b strings.Builder

	b.WriteString("Source material available for this report:\n")
	if len(st.ContentItems) == 0 {
		b.WriteString("(none)\n")
	}
	for _, it := range st.ContentItems {
		b.WriteString("- " + it.Summary() + "\n")
	}

	if st.Constraints != "" {
		b.WriteString("\nFormatting constraints:\n" + st.Constraints + "\n")
	}

	if st.Plan != nil && st.Feedback != "" {
		prior, err := PlanJSON(*st.Plan)
		if err != nil {
			return "", err
		}
		b.WriteString("\nThe reviewer rejected the previous plan. Previous plan:\n")
		b.WriteString(prior)
		b.WriteString("\n\nReviewer feedback:\n" + st.Feedback + "\n")
		b.WriteString("\nRevise the plan to address the feedback. Keep every section the feedback does not touch unchanged, and return the complete plan.\n")
	} else {
		b.WriteString("\nReturn the plan.\n")
	}
	return b.String(), nil
}

// PlanJSON renders a plan the way it is shown to the model and reviewers.
func PlanJSON(p model.Plan) (string, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode plan: %w", err)
	}
	return string(data), nil
}

func taskPrompt(task Task, position, total int, material []string, constraints string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Section %d of %d: %s\n", position, total, task.Title)
	if task.Purpose != "" {
		b.WriteString("Purpose: " + task.Purpose + "\n")
	}
	if constraints != "" {
		b.WriteString("Constraints: " + constraints + "\n")
	}
	if len(material) == 0 {
		b.WriteString("\nNo source items are assigned; use the research tools if you need material.\n")
	} else {
		b.WriteString("\nAssigned source material:\n\n")
		b.WriteString(strings.Join(material, "\n\n"))
		b.WriteString("\n")
	}
	b.WriteString("\nWrite this section now and commit it with commit_section.")
	return b.String()
}

func correctivePrompt(task Task, attempt, limit int) string {
	return fmt.Sprintf("The previous turn did not produce the section %q. "+
		"Write the complete section and call commit_section with it (attempt %d of %d).",
		task.Title, attempt+1, limit+1)
}

func synthesisPrompt(unit Unit, plan model.Plan, drafts map[string]string, constraints string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the section %q of the report %q.\n", unit.Title, plan.Title)
	if unit.Purpose != "" {
		b.WriteString("Purpose: " + unit.Purpose + "\n")
	}
	if constraints != "" {
		b.WriteString("Constraints: " + constraints + "\n")
	}
	b.WriteString("\nDrafted sections:\n")
	for _, title := range DraftableTitles(plan) {
		if text, ok := drafts[title]; ok && title != unit.Title {
			fmt.Fprintf(&b, "\n### %s\n%s\n", title, text)
		}
	}
	return b.String()
}
