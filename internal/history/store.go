package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/RyanBlaney/dubsync/internal/analysis"
	"github.com/RyanBlaney/dubsync/pkg/logging"
)

// Entry is one recorded reference/candidate comparison
type Entry struct {
	ID              int64     `json:"id" yaml:"id"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
	Reference       string    `json:"reference" yaml:"reference"`
	Candidate       string    `json:"candidate" yaml:"candidate"`
	OffsetMs        float64   `json:"offset_ms" yaml:"offset_ms"`
	MatchConfidence float64   `json:"match_confidence" yaml:"match_confidence"`
	NeedsReview     bool      `json:"needs_review" yaml:"needs_review"`
	Issues          []string  `json:"issues" yaml:"issues"`
	Error           string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Store persists the analysis audit trail in SQLite
type Store struct {
	db     *sql.DB
	path   string
	logger logging.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at       TEXT    NOT NULL,
	reference        TEXT    NOT NULL,
	candidate        TEXT    NOT NULL,
	offset_ms        REAL    NOT NULL,
	match_confidence REAL    NOT NULL,
	needs_review     INTEGER NOT NULL,
	issues           TEXT    NOT NULL,
	error            TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_analyses_needs_review ON analyses(needs_review);
`

// Open initializes or connects to the history database at path
func Open(path string, logger logging.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history db path must not be empty")
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &Store{db: db, path: path, logger: logger}, nil
}

// Close closes the underlying database connection
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Record stores every candidate row of a report in one transaction
func (s *Store) Record(ctx context.Context, report *analysis.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin history tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO analyses
		(created_at, reference, candidate, offset_ms, match_confidence, needs_review, issues, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare history insert: %w", err)
	}
	defer stmt.Close()

	createdAt := report.GeneratedAt.UTC().Format(time.RFC3339Nano)
	for _, result := range report.Results {
		issuesJSON, err := json.Marshal(result.Issues)
		if err != nil {
			return fmt.Errorf("failed to encode issues: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			createdAt, report.Reference, result.Filename,
			result.OffsetMs, result.MatchConfidence, result.NeedsReview,
			string(issuesJSON), result.Error); err != nil {
			return fmt.Errorf("failed to insert history row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit history tx: %w", err)
	}

	s.logger.Debug("Recorded analysis history", logging.Fields{
		"reference": report.Reference,
		"rows":      len(report.Results),
	})
	return nil
}

// Recent returns the newest entries, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.query(ctx, `SELECT id, created_at, reference, candidate, offset_ms,
		match_confidence, needs_review, issues, error
		FROM analyses ORDER BY id DESC LIMIT ?`, limit)
}

// Flagged returns the newest entries that need review, newest first
func (s *Store) Flagged(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.query(ctx, `SELECT id, created_at, reference, candidate, offset_ms,
		match_confidence, needs_review, issues, error
		FROM analyses WHERE needs_review = 1 ORDER BY id DESC LIMIT ?`, limit)
}

// Counts returns total and flagged row counts
func (s *Store) Counts(ctx context.Context) (total, flagged int, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(needs_review), 0) FROM analyses`)
	if err := row.Scan(&total, &flagged); err != nil {
		return 0, 0, fmt.Errorf("failed to count history rows: %w", err)
	}
	return total, flagged, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry := &Entry{}
		var createdAt, issuesJSON string
		if err := rows.Scan(&entry.ID, &createdAt, &entry.Reference, &entry.Candidate,
			&entry.OffsetMs, &entry.MatchConfidence, &entry.NeedsReview,
			&issuesJSON, &entry.Error); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if ts, parseErr := time.Parse(time.RFC3339Nano, createdAt); parseErr == nil {
			entry.CreatedAt = ts
		}
		if json.Unmarshal([]byte(issuesJSON), &entry.Issues) != nil || entry.Issues == nil {
			entry.Issues = []string{}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
