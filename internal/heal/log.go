// Package heal drives the verification-classification-healing loop: run a
// baseline, classify the failure, and apply a bounded ordered sequence of
// candidate source repairs, re-verifying after each and persisting an
// auditable per-journey log regardless of outcome.
package heal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"journeyheal/internal/classify"
	"journeyheal/internal/rules"
)

// Status is the lifecycle state recorded in the persisted log.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusHealed     Status = "healed"
	StatusFailed     Status = "failed"
	StatusExhausted  Status = "exhausted"
)

// AttemptResult is the outcome of one healing attempt.
type AttemptResult string

const (
	AttemptPass  AttemptResult = "pass"
	AttemptFail  AttemptResult = "fail"
	AttemptError AttemptResult = "error"
)

// Attempt is one entry in the healing trail. Appended, never mutated.
type Attempt struct {
	Attempt      int               `json:"attempt"` // 1-based
	Timestamp    time.Time         `json:"timestamp"`
	FailureType  classify.Category `json:"failureType"`
	FixType      rules.FixType     `json:"fixType"`
	File         string            `json:"file"`
	Change       string            `json:"change"`
	Evidence     []string          `json:"evidence,omitempty"`
	Result       AttemptResult     `json:"result"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	DurationMs   int64             `json:"duration"`
}

// LogSummary is computed once at finalization.
type LogSummary struct {
	TotalAttempts     int             `json:"totalAttempts"`
	SuccessfulFixes   int             `json:"successfulFixes"`
	FailedAttempts    int             `json:"failedAttempts"`
	TotalDurationMs   int64           `json:"totalDuration"`
	FixTypesAttempted []rules.FixType `json:"fixTypesAttempted"`
	Recommendation    string          `json:"recommendation,omitempty"`
}

// Log is the persisted shape of one healing session.
type Log struct {
	JourneyID    string      `json:"journeyId"`
	SessionID    string      `json:"sessionId"`
	SessionStart time.Time   `json:"sessionStart"`
	SessionEnd   *time.Time  `json:"sessionEnd,omitempty"`
	MaxAttempts  int         `json:"maxAttempts"`
	Status       Status      `json:"status"`
	Attempts     []Attempt   `json:"attempts"`
	Summary      *LogSummary `json:"summary,omitempty"`
}

// errFinalized guards the finalize-exactly-once contract.
var errFinalized = errors.New("healing log already finalized")

// Logger incrementally persists a healing session to
// <outputDir>/<journeyID>.heal-log.json. The file is rewritten in full after
// every mutation so a crash mid-session leaves a readable trail.
type Logger struct {
	path      string
	log       Log
	finalized bool
	zl        *zap.Logger
}

// LogPath returns the heal-log location for a journey.
func LogPath(outputDir, journeyID string) string {
	return filepath.Join(outputDir, journeyID+".heal-log.json")
}

// NewLogger creates the session log with status in_progress and persists it
// immediately.
func NewLogger(outputDir, journeyID, sessionID string, maxAttempts int, zl *zap.Logger) (*Logger, error) {
	if zl == nil {
		zl = zap.NewNop()
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create heal-log directory: %w", err)
	}
	l := &Logger{
		path: LogPath(outputDir, journeyID),
		log: Log{
			JourneyID:    journeyID,
			SessionID:    sessionID,
			SessionStart: time.Now().UTC(),
			MaxAttempts:  maxAttempts,
			Status:       StatusInProgress,
			Attempts:     []Attempt{},
		},
		zl: zl,
	}
	if err := l.persist(); err != nil {
		return nil, err
	}
	return l, nil
}

// Path returns the on-disk log location.
func (l *Logger) Path() string { return l.path }

// Attempts returns a copy of the attempts recorded so far.
func (l *Logger) Attempts() []Attempt {
	out := make([]Attempt, len(l.log.Attempts))
	copy(out, l.log.Attempts)
	return out
}

// Append records one attempt and persists the whole log.
func (l *Logger) Append(a Attempt) error {
	if l.finalized {
		return errFinalized
	}
	l.log.Attempts = append(l.log.Attempts, a)
	l.zl.Info("healing attempt recorded",
		zap.Int("attempt", a.Attempt),
		zap.String("fix_type", string(a.FixType)),
		zap.String("result", string(a.Result)))
	return l.persist()
}

// Finalize transitions the log to a terminal status, computes the summary,
// and persists. It may be called exactly once.
func (l *Logger) Finalize(status Status, recommendation string) error {
	if l.finalized {
		return errFinalized
	}
	l.finalized = true

	now := time.Now().UTC()
	l.log.SessionEnd = &now
	l.log.Status = status

	s := &LogSummary{
		TotalAttempts:   len(l.log.Attempts),
		Recommendation:  recommendation,
		TotalDurationMs: now.Sub(l.log.SessionStart).Milliseconds(),
	}
	seen := map[rules.FixType]bool{}
	for _, a := range l.log.Attempts {
		if a.Result == AttemptPass {
			s.SuccessfulFixes++
		} else {
			s.FailedAttempts++
		}
		if !seen[a.FixType] {
			seen[a.FixType] = true
			s.FixTypesAttempted = append(s.FixTypesAttempted, a.FixType)
		}
	}
	l.log.Summary = s

	l.zl.Info("healing session finalized",
		zap.String("status", string(status)),
		zap.Int("attempts", s.TotalAttempts))
	return l.persist()
}

// persist rewrites the log atomically (temp file + rename).
func (l *Logger) persist() error {
	data, err := json.MarshalIndent(&l.log, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal healing log: %w", err)
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write healing log: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("failed to replace healing log: %w", err)
	}
	return nil
}
