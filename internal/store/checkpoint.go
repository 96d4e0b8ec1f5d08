// Package store persists assignment decisions in SQLite so an interrupted or
// failed run can resume without re-asking the model. The raw decision line is
// cached, not the merged result: replaying cached decisions through the
// scheduler's merge reproduces the taxonomy byte for byte.
//
// Replay is only sound against the snapshot the decisions were made under.
// Each scope is pinned to a snapshot fingerprint; Begin drops the scope's
// decisions whenever the fingerprint changes, and each row carries its label
// so a decision is never replayed for a different label at the same index.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// CheckpointStore is a SQLite-backed decision cache keyed by
// (run scope, label index). Safe for concurrent use.
type CheckpointStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewCheckpointStore opens (or creates) the database at path.
func NewCheckpointStore(path string) (*CheckpointStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &CheckpointStore{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *CheckpointStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS decisions (
		run_scope   TEXT NOT NULL,
		label_index INTEGER NOT NULL,
		label       TEXT NOT NULL,
		decision    TEXT NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (run_scope, label_index)
	);
	CREATE TABLE IF NOT EXISTS scopes (
		run_scope   TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Begin pins a scope to a snapshot fingerprint. When the fingerprint differs
// from the pinned one, or the scope was never pinned, any cached decisions
// for the scope are dropped before replay can read them.
func (s *CheckpointStore) Begin(scope, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current string
	err := s.db.QueryRow(
		`SELECT fingerprint FROM scopes WHERE run_scope = ?`, scope,
	).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checkpoint scope read failed: %w", err)
	}
	if err == nil && current == fingerprint {
		return nil
	}

	if _, err := s.db.Exec(`DELETE FROM decisions WHERE run_scope = ?`, scope); err != nil {
		return fmt.Errorf("checkpoint invalidation failed: %w", err)
	}
	if _, err := s.db.Exec(
		`INSERT OR REPLACE INTO scopes (run_scope, fingerprint) VALUES (?, ?)`,
		scope, fingerprint,
	); err != nil {
		return fmt.Errorf("checkpoint scope write failed: %w", err)
	}
	return nil
}

// Get returns the cached label and decision for (scope, index), if any.
func (s *CheckpointStore) Get(scope string, index int) (string, string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var label, decision string
	err := s.db.QueryRow(
		`SELECT label, decision FROM decisions WHERE run_scope = ? AND label_index = ?`,
		scope, index,
	).Scan(&label, &decision)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, fmt.Errorf("checkpoint read failed: %w", err)
	}
	return label, decision, true, nil
}

// Put records a decision, replacing any previous entry for the same slot.
func (s *CheckpointStore) Put(scope string, index int, label, decision string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO decisions (run_scope, label_index, label, decision) VALUES (?, ?, ?, ?)`,
		scope, index, label, decision,
	)
	if err != nil {
		return fmt.Errorf("checkpoint write failed: %w", err)
	}
	return nil
}

// Clear drops all cached decisions for a scope. Called after a file's output
// is persisted, so a later re-run starts fresh instead of replaying a
// completed taxonomy onto new input.
func (s *CheckpointStore) Clear(scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM decisions WHERE run_scope = ?`, scope); err != nil {
		return fmt.Errorf("checkpoint clear failed: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM scopes WHERE run_scope = ?`, scope); err != nil {
		return fmt.Errorf("checkpoint clear failed: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *CheckpointStore) Close() error {
	return s.db.Close()
}
