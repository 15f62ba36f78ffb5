// Package workstream is a thin persistent map of user-visible conversation
// handles ("workstreams") to agent session IDs. The gateway calls Create,
// Get, List, SetActiveSession and Unlink.
package workstream

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Workstream is a stable handle that may point to zero or more successive
// agent sessions over its lifetime.
type Workstream struct {
	ID               string
	Name             string
	WorkingDirectory string
	ActiveSessionID  string // empty when unlinked
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS workstreams (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		working_directory TEXT NOT NULL,
		active_session_id TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
}

// Store is a pure-Go SQLite-backed workstream index. modernc.org/sqlite
// needs no CGO, but concurrent writers to the same file still benefit
// from serializing through one in-process mutex ahead of SQLite's own
// locking.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening workstream store: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	for _, stmt := range migrations {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("running migration: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(id, name, workingDirectory string) (*Workstream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	_, err := s.db.Exec(
		`INSERT INTO workstreams (id, name, working_directory, active_session_id, created_at, updated_at)
		 VALUES (?, ?, ?, '', ?, ?)`,
		id, name, workingDirectory, now.Unix(), now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating workstream: %w", err)
	}
	return &Workstream{ID: id, Name: name, WorkingDirectory: workingDirectory, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *Store) Get(id string) (*Workstream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(
		`SELECT id, name, working_directory, active_session_id, created_at, updated_at FROM workstreams WHERE id = ?`, id)
	var w Workstream
	var created, updated int64
	if err := row.Scan(&w.ID, &w.Name, &w.WorkingDirectory, &w.ActiveSessionID, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("loading workstream %s: %w", id, err)
	}
	w.CreatedAt = time.Unix(created, 0)
	w.UpdatedAt = time.Unix(updated, 0)
	return &w, nil
}

func (s *Store) List() ([]*Workstream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT id, name, working_directory, active_session_id, created_at, updated_at FROM workstreams ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing workstreams: %w", err)
	}
	defer rows.Close()

	var out []*Workstream
	for rows.Next() {
		var w Workstream
		var created, updated int64
		if err := rows.Scan(&w.ID, &w.Name, &w.WorkingDirectory, &w.ActiveSessionID, &created, &updated); err != nil {
			return nil, err
		}
		w.CreatedAt = time.Unix(created, 0)
		w.UpdatedAt = time.Unix(updated, 0)
		out = append(out, &w)
	}
	return out, rows.Err()
}

// SetActiveSession links the workstream to a (possibly new) agent session.
func (s *Store) SetActiveSession(id, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE workstreams SET active_session_id = ?, updated_at = ? WHERE id = ?`,
		sessionID, time.Now().Unix(), id)
	return err
}

// Unlink clears the active session, preserving the workstream record so
// a future prompt against the same workstream starts a fresh session.
func (s *Store) Unlink(id string) (previousSessionID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`SELECT active_session_id FROM workstreams WHERE id = ?`, id)
	if err := row.Scan(&previousSessionID); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}

	_, err = s.db.Exec(`UPDATE workstreams SET active_session_id = '', updated_at = ? WHERE id = ?`,
		time.Now().Unix(), id)
	return previousSessionID, err
}

// UnlinkActiveSession implements recipe.WorkstreamUnlinker.
func (s *Store) UnlinkActiveSession(workstreamID string) (string, bool) {
	prev, err := s.Unlink(workstreamID)
	if err != nil || prev == "" {
		return "", false
	}
	return prev, true
}
