// Package storage provides checkpoint and document persistence.
//
// Information Hiding:
// - Backend choice (memory, SQLite) hidden behind session.CheckpointStore
//   and DocumentStore
// - Serialization of state and plans encapsulated per backend
package storage

import (
	"context"
	"time"

	"github.com/richinex/reportflow/model"
	"github.com/richinex/reportflow/session"
)

// SectionRecord is a committed section.
type SectionRecord struct {
	SessionID   string    `json:"session_id"`
	SectionID   string    `json:"section_id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Order       int       `json:"order"`
	CommittedAt time.Time `json:"committed_at"`
}

// DocumentStatus is the reviewer-visible status of a session's document.
type DocumentStatus struct {
	SessionID string               `json:"session_id"`
	Plan      *model.Plan          `json:"plan,omitempty"`
	Approval  model.ApprovalStatus `json:"approval"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// DocumentStore persists committed sections and plan status.
type DocumentStore interface {
	// CommitSection upserts a section keyed by session and title.
	CommitSection(ctx context.Context, sessionID, sectionID, title, content string, order int) error

	// UpdateStatus records a candidate plan and/or approval status.
	UpdateStatus(ctx context.Context, sessionID string, upd model.StatusUpdate) error

	// Sections lists a session's committed sections by order then title.
	Sections(ctx context.Context, sessionID string) ([]SectionRecord, error)

	// Status returns the document status, or session.ErrNotFound.
	Status(ctx context.Context, sessionID string) (DocumentStatus, error)
}

// Store is a backend serving both checkpoints and documents.
type Store interface {
	session.CheckpointStore
	DocumentStore
	Close() error
}
