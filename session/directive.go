package session

// Directive is the routing token a node leaves in the state for the
// runtime. The set is closed; the runtime rejects anything else.
type Directive string

const (
	DirectiveNone       Directive = ""
	DirectiveToPlanner  Directive = "to_planner"
	DirectiveToApproval Directive = "to_approval"
	DirectiveStalled    Directive = "stalled"
	DirectiveApproved   Directive = "approved"
	DirectiveRejected   Directive = "rejected"
	DirectiveDraft      Directive = "draft"
	DirectiveCallTools  Directive = "call_tools"
	DirectiveJudge      Directive = "judge"
	DirectiveSynthesize Directive = "synthesize"
	DirectiveAbort      Directive = "abort"
	DirectiveDone       Directive = "done"
)

// Directives lists every valid directive.
var Directives = []Directive{
	DirectiveToPlanner, DirectiveToApproval, DirectiveStalled,
	DirectiveApproved, DirectiveRejected, DirectiveDraft,
	DirectiveCallTools, DirectiveJudge, DirectiveSynthesize,
	DirectiveAbort, DirectiveDone,
}
