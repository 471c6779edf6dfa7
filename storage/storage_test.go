package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/richinex/reportflow/model"
	"github.com/richinex/reportflow/session"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()

	cgo, err := OpenSqlite(DriverCGO, filepath.Join(t.TempDir(), "cgo.db"))
	if err != nil {
		t.Fatalf("Failed to open sqlite3 store: %v", err)
	}
	pure, err := OpenSqlite(DriverPureGo, filepath.Join(t.TempDir(), "pure.db"))
	if err != nil {
		t.Fatalf("Failed to open sqlite store: %v", err)
	}
	t.Cleanup(func() {
		cgo.Close()
		pure.Close()
	})

	return map[string]Store{
		"memory":  NewMemoryStore(),
		"sqlite3": cgo,
		"sqlite":  pure,
	}
}

func TestCheckpointHistory(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Get(ctx, "s1"); !errors.Is(err, session.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			st := session.New("s1", "metric units")
			if err := store.Put(ctx, session.NewCheckpoint(st, 1, "planner", session.StatusRunning)); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			st = st.Apply(session.Update{
				SectionDrafts: map[string]string{"Observations: Pumps": "text"},
				Messages:      []session.Message{{Role: session.RoleUser, Content: "task", TaskID: "t1", TaskPrompt: true}},
			})
			if err := store.Put(ctx, session.NewCheckpoint(st, 2, "approval", session.StatusAwaitingReview)); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			latest, err := store.Get(ctx, "s1")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if latest.Step != 2 || latest.Node != "approval" || latest.Status != session.StatusAwaitingReview {
				t.Errorf("unexpected latest checkpoint: %+v", latest)
			}
			if latest.State.SectionDrafts["Observations: Pumps"] != "text" {
				t.Errorf("drafts not restored: %v", latest.State.SectionDrafts)
			}
			if len(latest.State.Messages) != 1 || !latest.State.Messages[0].TaskPrompt {
				t.Errorf("messages not restored: %+v", latest.State.Messages)
			}

			history, err := store.History(ctx, "s1")
			if err != nil {
				t.Fatalf("History failed: %v", err)
			}
			if len(history) != 2 || history[0].Step != 1 {
				t.Errorf("unexpected history: %+v", history)
			}

			sessions, err := store.Sessions(ctx)
			if err != nil {
				t.Fatalf("Sessions failed: %v", err)
			}
			if sessions["s1"] != session.StatusAwaitingReview {
				t.Errorf("unexpected sessions: %v", sessions)
			}
		})
	}
}

func TestDocumentSections(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			must := func(err error) {
				t.Helper()
				if err != nil {
					t.Fatalf("CommitSection failed: %v", err)
				}
			}
			must(store.CommitSection(ctx, "s1", "rec", "Recommendations", "r", 3))
			must(store.CommitSection(ctx, "s1", "obs-a", "Observations: Pumps", "old", 2))
			must(store.CommitSection(ctx, "s1", "obs-a", "Observations: Pumps", "new", 2))
			must(store.CommitSection(ctx, "s2", "x", "Other", "x", 1))

			secs, err := store.Sections(ctx, "s1")
			if err != nil {
				t.Fatalf("Sections failed: %v", err)
			}
			if len(secs) != 2 {
				t.Fatalf("expected 2 sections, got %d", len(secs))
			}
			if secs[0].Title != "Observations: Pumps" || secs[0].Content != "new" {
				t.Errorf("unexpected first section: %+v", secs[0])
			}
		})
	}
}

func TestDocumentStatus(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Status(ctx, "s1"); !errors.Is(err, session.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			plan := model.Plan{Title: "Audit", Sections: []model.Section{{ID: "a", Title: "A"}}}
			pending := model.ApprovalPending
			if err := store.UpdateStatus(ctx, "s1", model.StatusUpdate{Plan: &plan, Status: &pending}); err != nil {
				t.Fatalf("UpdateStatus failed: %v", err)
			}
			approved := model.ApprovalApproved
			if err := store.UpdateStatus(ctx, "s1", model.StatusUpdate{Status: &approved}); err != nil {
				t.Fatalf("UpdateStatus failed: %v", err)
			}

			st, err := store.Status(ctx, "s1")
			if err != nil {
				t.Fatalf("Status failed: %v", err)
			}
			if st.Approval != model.ApprovalApproved {
				t.Errorf("expected APPROVED, got %s", st.Approval)
			}
			if st.Plan == nil || st.Plan.Title != "Audit" {
				t.Errorf("plan lost on status-only update: %+v", st.Plan)
			}
		})
	}
}

func TestConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			errs := make(chan error, 8)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					st := session.New(string(rune('a'+i)), "")
					errs <- store.Put(ctx, session.NewCheckpoint(st, 1, "hydrate", session.StatusRunning))
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				if err != nil {
					t.Fatalf("Put failed: %v", err)
				}
			}

			sessions, err := store.Sessions(ctx)
			if err != nil {
				t.Fatalf("Sessions failed: %v", err)
			}
			if len(sessions) != 8 {
				t.Errorf("expected 8 sessions, got %d", len(sessions))
			}
		})
	}
}
