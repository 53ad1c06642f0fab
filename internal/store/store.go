// Package store persists healing telemetry in SQLite so fix effectiveness
// can be analyzed across sessions. Recording is best effort by design: the
// healing loop never fails because its history could not be written.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"journeyheal/internal/heal"
)

const schema = `
CREATE TABLE IF NOT EXISTS heal_sessions (
	id              TEXT PRIMARY KEY,
	journey_id      TEXT NOT NULL,
	test_file       TEXT NOT NULL,
	outcome         TEXT NOT NULL,
	attempts        INTEGER NOT NULL,
	recommendation  TEXT,
	created_at      TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS heal_attempts (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	journey_id    TEXT NOT NULL,
	attempt       INTEGER NOT NULL,
	failure_type  TEXT NOT NULL,
	fix_type      TEXT NOT NULL,
	result        TEXT NOT NULL,
	error_message TEXT,
	duration_ms   INTEGER NOT NULL,
	created_at    TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_heal_attempts_session ON heal_attempts(session_id);
CREATE INDEX IF NOT EXISTS idx_heal_attempts_fix ON heal_attempts(fix_type);
`

// Store is a SQLite-backed healing history. It implements heal.History.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ heal.History = (*Store)(nil)

// Open creates or opens the history database at path, applying the schema.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply store schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// RecordAttempt stores one healing attempt.
func (s *Store) RecordAttempt(ctx context.Context, sessionID, journeyID string, a heal.Attempt) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO heal_attempts
		 (session_id, journey_id, attempt, failure_type, fix_type, result, error_message, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, journeyID, a.Attempt, string(a.FailureType), string(a.FixType),
		string(a.Result), a.ErrorMessage, a.DurationMs,
	)
	if err != nil {
		s.logger.Error("failed to store healing attempt",
			zap.String("session_id", sessionID), zap.Error(err))
	}
	return err
}

// RecordSession stores the terminal outcome of one healing session.
func (s *Store) RecordSession(ctx context.Context, sessionID, journeyID, testFile string,
	outcome string, attempts int, recommendation string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO heal_sessions (id, journey_id, test_file, outcome, attempts, recommendation)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, journeyID, testFile, outcome, attempts, recommendation,
	)
	if err != nil {
		s.logger.Error("failed to store healing session",
			zap.String("session_id", sessionID), zap.Error(err))
	}
	return err
}

// SessionRecord is one stored session outcome.
type SessionRecord struct {
	ID             string
	JourneyID      string
	TestFile       string
	Outcome        string
	Attempts       int
	Recommendation string
	CreatedAt      time.Time
}

// RecentSessions returns the most recent sessions, newest first.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, journey_id, test_file, outcome, attempts, COALESCE(recommendation, ''), created_at
		 FROM heal_sessions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var r SessionRecord
		if err := rows.Scan(&r.ID, &r.JourneyID, &r.TestFile, &r.Outcome,
			&r.Attempts, &r.Recommendation, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FixStats is the success profile of one fix type.
type FixStats struct {
	FixType  string
	Attempts int
	Passes   int
}

// FixSuccessRates aggregates pass counts per fix type across all sessions.
func (s *Store) FixSuccessRates(ctx context.Context) ([]FixStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fix_type,
		        COUNT(*) AS attempts,
		        SUM(CASE WHEN result = 'pass' THEN 1 ELSE 0 END) AS passes
		 FROM heal_attempts GROUP BY fix_type ORDER BY attempts DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FixStats
	for rows.Next() {
		var f FixStats
		if err := rows.Scan(&f.FixType, &f.Attempts, &f.Passes); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
