package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a session has no checkpoint.
var ErrNotFound = errors.New("checkpoint not found")

// Status is the run status recorded with a checkpoint.
type Status string

const (
	StatusRunning        Status = "running"
	StatusAwaitingReview Status = "awaiting_review"
	StatusStalled        Status = "stalled"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
)

// Terminal reports whether a run with this status will not continue
// without outside action.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Checkpoint is a durable snapshot of a session taken after a step.
// Node names the next node to run on resume.
type Checkpoint struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Step      int       `json:"step"`
	Node      string    `json:"node"`
	Status    Status    `json:"status"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCheckpoint builds a checkpoint with a fresh id.
func NewCheckpoint(state State, step int, node string, status Status) Checkpoint {
	return Checkpoint{
		ID:        uuid.NewString(),
		SessionID: state.SessionID,
		Step:      step,
		Node:      node,
		Status:    status,
		State:     state.Clone(),
		CreatedAt: time.Now().UTC(),
	}
}

// CheckpointStore persists checkpoints keyed by session id.
// Implementations must be safe for concurrent use across sessions.
type CheckpointStore interface {
	// Put appends a checkpoint. Earlier checkpoints are kept.
	Put(ctx context.Context, cp Checkpoint) error

	// Get returns the latest checkpoint for a session, or ErrNotFound.
	Get(ctx context.Context, sessionID string) (Checkpoint, error)

	// History returns every checkpoint for a session, oldest first.
	History(ctx context.Context, sessionID string) ([]Checkpoint, error)

	// Sessions lists session ids with their latest status.
	Sessions(ctx context.Context) (map[string]Status, error)
}

// NewID returns a new session id.
func NewID() string {
	return uuid.NewString()
}
