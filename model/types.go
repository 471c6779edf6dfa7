// Package model provides domain types shared across packages.
package model

import (
	"fmt"
	"strings"
)

// ApprovalStatus is the reviewer decision state of a plan.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// String returns the string representation of the status.
func (s ApprovalStatus) String() string {
	return string(s)
}

// ParseApprovalStatus parses a status from string (case-insensitive).
// Accepts the short forms used on the command line ("approve", "reject").
func ParseApprovalStatus(s string) (ApprovalStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PENDING":
		return ApprovalPending, nil
	case "APPROVED", "APPROVE":
		return ApprovalApproved, nil
	case "REJECTED", "REJECT":
		return ApprovalRejected, nil
	default:
		return "", fmt.Errorf("unknown approval status: %s", s)
	}
}

// ContentKind describes how a content item is presented to the model.
type ContentKind string

const (
	ContentText  ContentKind = "text"
	ContentTable ContentKind = "table"
	ContentImage ContentKind = "image"
)

// ContentItem is one piece of source material available to a session.
// Items are resolved once per session and treated as read-mostly reference
// data by every drafting task.
type ContentItem struct {
	ID          string            `json:"id" yaml:"id"`
	Title       string            `json:"title" yaml:"title"`
	Kind        ContentKind       `json:"kind,omitempty" yaml:"kind,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Body        string            `json:"body,omitempty" yaml:"body,omitempty"`
	MediaURI    string            `json:"media_uri,omitempty" yaml:"media_uri,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

const summaryRunes = 160

// Summary returns a one-line description for planning prompts.
func (c ContentItem) Summary() string {
	desc := c.Description
	if desc == "" {
		desc = c.Body
	}
	if r := []rune(desc); len(r) > summaryRunes {
		desc = string(r[:summaryRunes]) + "..."
	}
	return fmt.Sprintf("[%s] %s (%s): %s", c.ID, c.Title, c.kind(), desc)
}

func (c ContentItem) kind() ContentKind {
	if c.Kind == "" {
		return ContentText
	}
	return c.Kind
}

// StatusUpdate is sent to the document-status store so a reviewer can see
// the candidate plan. Nil fields are left unchanged.
type StatusUpdate struct {
	Plan   *Plan
	Status *ApprovalStatus
}
