package workflow

import (
	"errors"
	"fmt"

	"github.com/richinex/reportflow/session"
)

// ErrUnknownDirective is returned when a node leaves a directive its
// routing row does not list.
var ErrUnknownDirective = errors.New("unknown directive")

// Node identifies a step of the state machine.
type Node string

const (
	NodeHydrate    Node = "hydrate"
	NodePlanner    Node = "planner"
	NodeApproval   Node = "approval"
	NodeDraft      Node = "draft"
	NodeTools      Node = "tools"
	NodeJudge      Node = "judge"
	NodeSynthesize Node = "synthesize"
	NodeEnd        Node = "end"
)

// ParseNode validates a node name read from a checkpoint.
func ParseNode(s string) (Node, error) {
	n := Node(s)
	if _, ok := routes[n]; ok || n == NodeEnd {
		return n, nil
	}
	return "", fmt.Errorf("unknown node %q", s)
}

// routes is the complete routing table. An empty directive routes to
// NodeEnd; anything not listed for the current node is an error.
var routes = map[Node]map[session.Directive]Node{
	NodeHydrate: {
		session.DirectiveToPlanner: NodePlanner,
	},
	NodePlanner: {
		session.DirectiveToApproval: NodeApproval,
		session.DirectiveStalled:    NodePlanner,
	},
	NodeApproval: {
		session.DirectiveApproved: NodeDraft,
		session.DirectiveRejected: NodePlanner,
	},
	NodeDraft: {
		session.DirectiveCallTools:  NodeTools,
		session.DirectiveJudge:      NodeJudge,
		session.DirectiveSynthesize: NodeSynthesize,
		session.DirectiveAbort:      NodeEnd,
	},
	NodeTools: {
		session.DirectiveJudge: NodeJudge,
		session.DirectiveAbort: NodeEnd,
	},
	NodeJudge: {
		session.DirectiveDraft:      NodeDraft,
		session.DirectiveSynthesize: NodeSynthesize,
		session.DirectiveAbort:      NodeEnd,
	},
	NodeSynthesize: {
		session.DirectiveDone:  NodeEnd,
		session.DirectiveAbort: NodeEnd,
	},
}

// Route returns the node that follows from after directive d.
func Route(from Node, d session.Directive) (Node, error) {
	if d == session.DirectiveNone {
		return NodeEnd, nil
	}
	row, ok := routes[from]
	if !ok {
		return "", fmt.Errorf("%w: %q from node %q", ErrUnknownDirective, d, from)
	}
	next, ok := row[d]
	if !ok {
		return "", fmt.Errorf("%w: %q from node %q", ErrUnknownDirective, d, from)
	}
	return next, nil
}
