// Package history records finished integrations in a SQLite database so
// `para history` can show how sessions landed over time.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Result describes how an integration ended.
type Result string

const (
	ResultCompleted Result = "completed"
	ResultAborted   Result = "aborted"
	ResultFailed    Result = "failed"
)

// Record is a single finished integration.
type Record struct {
	ID            int64
	SessionID     string
	FeatureBranch string
	BaseBranch    string
	Strategy      string
	Result        Result
	ConflictCount int
	StartedAt     time.Time
	FinishedAt    time.Time
	DurationMS    int64
}

// Store is a SQLite-backed integration history.
type Store struct {
	db *sql.DB
}

// Open opens or creates a history store at the given path.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS integrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		feature_branch TEXT NOT NULL,
		base_branch TEXT NOT NULL,
		strategy TEXT NOT NULL,
		result TEXT NOT NULL,
		conflict_count INTEGER NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		finished_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		duration_ms INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_integrations_session ON integrations(session_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Add inserts a finished integration and returns its ID.
func (s *Store) Add(r *Record) (int64, error) {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now().UTC()
	}
	if r.DurationMS == 0 && !r.StartedAt.IsZero() {
		r.DurationMS = r.FinishedAt.Sub(r.StartedAt).Milliseconds()
	}

	res, err := s.db.Exec(
		`INSERT INTO integrations
		 (session_id, feature_branch, base_branch, strategy, result, conflict_count, started_at, finished_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.FeatureBranch, r.BaseBranch, r.Strategy, string(r.Result),
		r.ConflictCount, r.StartedAt, r.FinishedAt, r.DurationMS,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting integration: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns the most recent integrations, newest first.
func (s *Store) Recent(limit int) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, feature_branch, base_branch, strategy, result, conflict_count, started_at, finished_at, duration_ms
		 FROM integrations ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying integrations: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ForSession returns all integrations for a session, newest first.
func (s *Store) ForSession(sessionID string) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, feature_branch, base_branch, strategy, result, conflict_count, started_at, finished_at, duration_ms
		 FROM integrations WHERE session_id = ? ORDER BY id DESC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying integrations: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var recs []Record
	for rows.Next() {
		var r Record
		var result string
		if err := rows.Scan(&r.ID, &r.SessionID, &r.FeatureBranch, &r.BaseBranch, &r.Strategy,
			&result, &r.ConflictCount, &r.StartedAt, &r.FinishedAt, &r.DurationMS); err != nil {
			return nil, fmt.Errorf("scanning integration: %w", err)
		}
		r.Result = Result(result)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
