package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/richinex/reportflow/model"
	"github.com/richinex/reportflow/session"
	_ "modernc.org/sqlite"
)

// SQLite driver names.
const (
	DriverCGO    = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPureGo = "sqlite"  // modernc.org/sqlite
)

// SqliteStore implements Store on a SQLite database file.
// Thread-safe: sql.DB serializes access over one connection and
// multi-statement writes run in transactions.
type SqliteStore struct {
	db *sql.DB
}

// OpenSqlite opens or creates a database at path with the given driver
// (DriverCGO or DriverPureGo; empty selects DriverCGO).
// Creates parent directories if they don't exist.
func OpenSqlite(driver, path string) (*SqliteStore, error) {
	if driver == "" {
		driver = DriverCGO
	}
	if driver != DriverCGO && driver != DriverPureGo {
		return nil, fmt.Errorf("unsupported sqlite driver: %s", driver)
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// SQLite allows one writer; a single pooled connection serializes
	// writers instead of surfacing SQLITE_BUSY, and keeps ":memory:"
	// databases from splitting across connections.
	db.SetMaxOpenConns(1)

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS checkpoints (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			node TEXT NOT NULL,
			status TEXT NOT NULL,
			state TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_checkpoints_session
		ON checkpoints(session_id, seq);

		CREATE TABLE IF NOT EXISTS sections (
			session_id TEXT NOT NULL,
			title TEXT NOT NULL,
			section_id TEXT NOT NULL,
			content TEXT NOT NULL,
			ord INTEGER NOT NULL,
			committed_at INTEGER NOT NULL,
			PRIMARY KEY (session_id, title)
		);

		CREATE TABLE IF NOT EXISTS documents (
			session_id TEXT PRIMARY KEY,
			plan TEXT,
			approval TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Put appends a checkpoint.
func (s *SqliteStore) Put(ctx context.Context, cp session.Checkpoint) error {
	state, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (id, session_id, step, node, status, state, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cp.ID, cp.SessionID, cp.Step, cp.Node, string(cp.Status), string(state), cp.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert checkpoint: %w", err)
	}
	return nil
}

// Get returns the latest checkpoint for a session.
func (s *SqliteStore) Get(ctx context.Context, sessionID string) (session.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, step, node, status, state, created_at
		 FROM checkpoints WHERE session_id = ? ORDER BY seq DESC LIMIT 1`, sessionID)

	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Checkpoint{}, session.ErrNotFound
	}
	if err != nil {
		return session.Checkpoint{}, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return cp, nil
}

// History returns every checkpoint for a session, oldest first.
func (s *SqliteStore) History(ctx context.Context, sessionID string) ([]session.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, step, node, status, state, created_at
		 FROM checkpoints WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoints: %w", err)
	}
	defer rows.Close()

	var history []session.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		history = append(history, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checkpoints: %w", err)
	}
	return history, nil
}

// Sessions lists session ids with their latest status.
func (s *SqliteStore) Sessions(ctx context.Context) (map[string]session.Status, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.session_id, c.status FROM checkpoints c
		 WHERE c.seq = (SELECT MAX(seq) FROM checkpoints WHERE session_id = c.session_id)`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]session.Status)
	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out[id] = session.Status(status)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row scanner) (session.Checkpoint, error) {
	var cp session.Checkpoint
	var status, state string
	var created int64
	if err := row.Scan(&cp.ID, &cp.SessionID, &cp.Step, &cp.Node, &status, &state, &created); err != nil {
		return cp, err
	}
	if err := json.Unmarshal([]byte(state), &cp.State); err != nil {
		return cp, fmt.Errorf("failed to decode state: %w", err)
	}
	if cp.State.SectionDrafts == nil {
		cp.State.SectionDrafts = map[string]string{}
	}
	cp.Status = session.Status(status)
	cp.CreatedAt = time.Unix(0, created).UTC()
	return cp, nil
}

// CommitSection upserts a section keyed by session and title.
func (s *SqliteStore) CommitSection(ctx context.Context, sessionID, sectionID, title, content string, order int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sections (session_id, title, section_id, content, ord, committed_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, title) DO UPDATE SET
		   section_id = excluded.section_id,
		   content = excluded.content,
		   ord = excluded.ord,
		   committed_at = excluded.committed_at`,
		sessionID, title, sectionID, content, order, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to commit section: %w", err)
	}
	return nil
}

// UpdateStatus records a candidate plan and/or approval status.
func (s *SqliteStore) UpdateStatus(ctx context.Context, sessionID string, upd model.StatusUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var plan sql.NullString
	approval := string(model.ApprovalPending)
	err = tx.QueryRowContext(ctx,
		`SELECT plan, approval FROM documents WHERE session_id = ?`, sessionID).Scan(&plan, &approval)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to load document status: %w", err)
	}

	if upd.Plan != nil {
		data, err := json.Marshal(upd.Plan)
		if err != nil {
			return fmt.Errorf("failed to encode plan: %w", err)
		}
		plan = sql.NullString{String: string(data), Valid: true}
	}
	if upd.Status != nil {
		approval = string(*upd.Status)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (session_id, plan, approval, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   plan = excluded.plan, approval = excluded.approval, updated_at = excluded.updated_at`,
		sessionID, plan, approval, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save document status: %w", err)
	}

	return tx.Commit()
}

// Sections lists committed sections by order then title.
func (s *SqliteStore) Sections(ctx context.Context, sessionID string) ([]SectionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT section_id, title, content, ord, committed_at FROM sections
		 WHERE session_id = ? ORDER BY ord ASC, title ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sections: %w", err)
	}
	defer rows.Close()

	var out []SectionRecord
	for rows.Next() {
		rec := SectionRecord{SessionID: sessionID}
		var committed int64
		if err := rows.Scan(&rec.SectionID, &rec.Title, &rec.Content, &rec.Order, &committed); err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		rec.CommittedAt = time.Unix(0, committed).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sections: %w", err)
	}
	return out, nil
}

// Status returns the document status.
func (s *SqliteStore) Status(ctx context.Context, sessionID string) (DocumentStatus, error) {
	var plan sql.NullString
	var approval string
	var updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT plan, approval, updated_at FROM documents WHERE session_id = ?`, sessionID).
		Scan(&plan, &approval, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return DocumentStatus{}, session.ErrNotFound
	}
	if err != nil {
		return DocumentStatus{}, fmt.Errorf("failed to load document status: %w", err)
	}

	st := DocumentStatus{
		SessionID: sessionID,
		Approval:  model.ApprovalStatus(approval),
		UpdatedAt: time.Unix(0, updated).UTC(),
	}
	if plan.Valid {
		var p model.Plan
		if err := json.Unmarshal([]byte(plan.String), &p); err != nil {
			return DocumentStatus{}, fmt.Errorf("failed to decode plan: %w", err)
		}
		st.Plan = &p
	}
	return st, nil
}

var _ Store = (*SqliteStore)(nil)
