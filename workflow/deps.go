// Package workflow implements the document-generation state machine:
// planning, human approval, the per-task drafting loop with its retry and
// research limits, gap-filling synthesis, and the checkpointing runtime
// that drives them.
package workflow

import (
	"context"
	"time"

	"github.com/richinex/reportflow/model"
	"github.com/richinex/reportflow/tools"
)

// Documents is the document-status and section store the engine writes to.
type Documents interface {
	tools.SectionCommitter

	// UpdateStatus publishes a candidate plan and/or approval status.
	UpdateStatus(ctx context.Context, sessionID string, upd model.StatusUpdate) error
}

// SourceLoader resolves the content items available to a session.
type SourceLoader interface {
	Load(ctx context.Context, sessionID string) ([]model.ContentItem, error)
}

// ContentResolver renders an assigned content item into prompt text.
// Implementations may read files or describe media.
type ContentResolver interface {
	Resolve(ctx context.Context, item model.ContentItem) (string, error)
}

// Decision is a reviewer's verdict on a pending plan.
type Decision struct {
	Status   model.ApprovalStatus
	Feedback string
}

// Metrics receives engine events. All methods must be safe for concurrent
// use.
type Metrics interface {
	Step(node string)
	ToolCall(tool, status string)
	BreakerTrip(tool string)
	Retry()
	Skip()
	SynthesisPlaceholder()
	PersistFailure()
	ModelCall(node string, d time.Duration, err error)
}

// NopMetrics discards every event.
type NopMetrics struct{}

func (NopMetrics) Step(string) {}
func (NopMetrics) ToolCall(string, string) {}
func (NopMetrics) BreakerTrip(string) {}
func (NopMetrics) Retry() {}
func (NopMetrics) Skip() {}
func (NopMetrics) SynthesisPlaceholder() {}
func (NopMetrics) PersistFailure() {}
func (NopMetrics) ModelCall(string, time.Duration, error) {}

var _ Metrics = NopMetrics{}
