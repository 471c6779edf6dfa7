package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/richinex/reportflow/model"
	"github.com/richinex/reportflow/session"
)

// MemoryStore keeps checkpoints and documents in process memory.
// Thread-safe via RWMutex.
type MemoryStore struct {
	mu          sync.RWMutex
	checkpoints map[string][]session.Checkpoint
	sections    map[string]map[string]SectionRecord // session -> title -> record
	status      map[string]DocumentStatus
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		checkpoints: make(map[string][]session.Checkpoint),
		sections:    make(map[string]map[string]SectionRecord),
		status:      make(map[string]DocumentStatus),
	}
}

// Put appends a checkpoint.
func (m *MemoryStore) Put(ctx context.Context, cp session.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp.State = cp.State.Clone()
	m.checkpoints[cp.SessionID] = append(m.checkpoints[cp.SessionID], cp)
	return nil
}

// Get returns the latest checkpoint for a session.
func (m *MemoryStore) Get(ctx context.Context, sessionID string) (session.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.checkpoints[sessionID]
	if len(history) == 0 {
		return session.Checkpoint{}, session.ErrNotFound
	}
	cp := history[len(history)-1]
	cp.State = cp.State.Clone()
	return cp, nil
}

// History returns every checkpoint for a session, oldest first.
func (m *MemoryStore) History(ctx context.Context, sessionID string) ([]session.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.checkpoints[sessionID]
	out := make([]session.Checkpoint, len(history))
	for i, cp := range history {
		cp.State = cp.State.Clone()
		out[i] = cp
	}
	return out, nil
}

// Sessions lists session ids with their latest status.
func (m *MemoryStore) Sessions(ctx context.Context) (map[string]session.Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]session.Status, len(m.checkpoints))
	for id, history := range m.checkpoints {
		if len(history) > 0 {
			out[id] = history[len(history)-1].Status
		}
	}
	return out, nil
}

// CommitSection upserts a section.
func (m *MemoryStore) CommitSection(ctx context.Context, sessionID, sectionID, title, content string, order int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sections[sessionID] == nil {
		m.sections[sessionID] = make(map[string]SectionRecord)
	}
	m.sections[sessionID][title] = SectionRecord{
		SessionID:   sessionID,
		SectionID:   sectionID,
		Title:       title,
		Content:     content,
		Order:       order,
		CommittedAt: time.Now().UTC(),
	}
	return nil
}

// UpdateStatus records plan and approval status.
func (m *MemoryStore) UpdateStatus(ctx context.Context, sessionID string, upd model.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.status[sessionID]
	if !ok {
		st = DocumentStatus{SessionID: sessionID, Approval: model.ApprovalPending}
	}
	if upd.Plan != nil {
		p := upd.Plan.Clone()
		st.Plan = &p
	}
	if upd.Status != nil {
		st.Approval = *upd.Status
	}
	st.UpdatedAt = time.Now().UTC()
	m.status[sessionID] = st
	return nil
}

// Sections lists committed sections.
func (m *MemoryStore) Sections(ctx context.Context, sessionID string) ([]SectionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]SectionRecord, 0, len(m.sections[sessionID]))
	for _, rec := range m.sections[sessionID] {
		out = append(out, rec)
	}
	sortSections(out)
	return out, nil
}

// Status returns the document status.
func (m *MemoryStore) Status(ctx context.Context, sessionID string) (DocumentStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.status[sessionID]
	if !ok {
		return DocumentStatus{}, session.ErrNotFound
	}
	return st, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

func sortSections(recs []SectionRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Order != recs[j].Order {
			return recs[i].Order < recs[j].Order
		}
		return recs[i].Title < recs[j].Title
	})
}

var _ Store = (*MemoryStore)(nil)
