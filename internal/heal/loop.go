package heal

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"journeyheal/internal/classify"
	"journeyheal/internal/config"
	"journeyheal/internal/fixes"
	"journeyheal/internal/rules"
	"journeyheal/internal/verify"
)

// Outcome is the terminal result of a healing session. Unlike the persisted
// log status, it distinguishes not-healable from other failures.
type Outcome string

const (
	OutcomeHealed      Outcome = "healed"
	OutcomeFailed      Outcome = "failed"
	OutcomeExhausted   Outcome = "exhausted"
	OutcomeNotHealable Outcome = "not_healable"
)

// logStatus maps a session outcome onto the persisted log's status set,
// which folds not-healable into failed.
func (o Outcome) logStatus() Status {
	switch o {
	case OutcomeHealed:
		return StatusHealed
	case OutcomeExhausted:
		return StatusExhausted
	default:
		return StatusFailed
	}
}

// History receives healing telemetry for cross-session analysis. Recording
// is best effort; a failing store never aborts a session.
type History interface {
	RecordAttempt(ctx context.Context, sessionID, journeyID string, a Attempt) error
	RecordSession(ctx context.Context, sessionID, journeyID, testFile string,
		outcome string, attempts int, recommendation string) error
}

// Options configures one healing session.
type Options struct {
	JourneyID string
	TestFile  string
	OutputDir string          // heal-log destination
	Config    config.Healing  // read-only within the loop
	Verify    verify.Func     // sole source of ground truth, required
	Aria      *fixes.AriaInfo // optional structural hints for selector-refine
	Store     History         // optional
	Logger    *zap.Logger
}

// Result is what a healing session returns to its caller.
type Result struct {
	Success        bool                     `json:"success"`
	Outcome        Outcome                  `json:"status"`
	Attempts       int                      `json:"attempts"`
	AppliedFix     rules.FixType            `json:"applied_fix,omitempty"`
	Recommendation string                   `json:"recommendation"`
	LogPath        string                   `json:"log_path"`
	FinalCode      string                   `json:"final_code,omitempty"`
	Classification *classify.Classification `json:"classification,omitempty"`
}

// categoryHints are the category-specific tails of exhaustion
// recommendations.
var categoryHints = map[classify.Category]string{
	classify.CategorySelector:   "review the element's accessibility attributes and add a stable test id.",
	classify.CategoryTiming:     "profile the slow interaction or add explicit waits by hand.",
	classify.CategoryNavigation: "confirm the target route exists and that redirects are expected.",
	classify.CategoryData:       "align the journey's expected values with the application's test data.",
	classify.CategoryScript:     "fix the script error in the generated test manually.",
}

func exhaustedRecommendation(category classify.Category, attempts int) string {
	hint, ok := categoryHints[category]
	if !ok {
		hint = "manual investigation required."
	}
	return fmt.Sprintf("Healing exhausted after %d attempts: %s", attempts, hint)
}

// Run executes one healing session against a single test file. The session
// is strictly sequential: attempts are ordered 1..N and fix selection for
// attempt k+1 always observes the outcome of attempt k. Infrastructure
// problems (lock held, log unwritable) return an error; every other outcome,
// fatal or not, is a Result with a persisted log.
func Run(ctx context.Context, opts Options) (*Result, error) {
	zl := opts.Logger
	if zl == nil {
		zl = zap.NewNop()
	}
	zl = zl.With(zap.String("journey_id", opts.JourneyID))

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create heal-log directory: %w", err)
	}
	lock := newSessionLock(LogPath(opts.OutputDir, opts.JourneyID))
	if err := lock.TryLock(); err != nil {
		return nil, err
	}
	defer lock.Unlock()

	sessionID := uuid.NewString()
	logger, err := NewLogger(opts.OutputDir, opts.JourneyID, sessionID, opts.Config.MaxAttempts, zl)
	if err != nil {
		return nil, err
	}

	s := &session{
		opts:      opts,
		sessionID: sessionID,
		logger:    logger,
		machine:   newMachine(),
		zl:        zl,
	}
	return s.run(ctx)
}

// session holds the mutable state of one loop execution.
type session struct {
	opts      Options
	sessionID string
	logger    *Logger
	machine   *machine
	zl        *zap.Logger

	working   classify.Classification
	errText   string
	attempted []rules.FixType
}

func (s *session) run(ctx context.Context) (*Result, error) {
	info, err := os.Stat(s.opts.TestFile)
	if err != nil {
		return s.terminal(ctx, OutcomeFailed, "Test file not found.", nil), nil
	}

	baseline, err := s.opts.Verify(ctx)
	if err != nil {
		return s.terminal(ctx, OutcomeFailed,
			fmt.Sprintf("Verification could not be executed: %v", err), nil), nil
	}
	if baseline.Status == verify.StatusPassed {
		res := s.terminal(ctx, OutcomeHealed, "Test already passing; no healing required.", nil)
		return res, nil
	}

	key, cls, ok := baseline.Primary()
	if !ok {
		return s.terminal(ctx, OutcomeFailed, "Unable to classify the baseline failure.", nil), nil
	}
	s.working = cls
	s.errText = baseline.Failures.Errors[key]
	s.zl.Info("baseline failure classified",
		zap.String("category", string(cls.Category)),
		zap.Float64("confidence", cls.Confidence))

	decision := rules.Evaluate(cls, s.opts.Config)
	if !decision.CanHeal {
		return s.terminal(ctx, OutcomeNotHealable, decision.Reason, &cls), nil
	}

	if err := s.machine.to(StateSelect); err != nil {
		return nil, err
	}
	return s.iterate(ctx, info.Mode().Perm())
}

// iterate runs the bounded attempt loop. Every attempt, applied or not,
// consumes one unit of the budget and is logged.
func (s *session) iterate(ctx context.Context, perm os.FileMode) (*Result, error) {
	cfg := s.opts.Config

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		fix, ok := rules.NextFix(s.working, s.attempted, cfg)
		if !ok {
			rec := exhaustedRecommendation(s.working.Category, len(s.attempted))
			return s.terminal(ctx, OutcomeExhausted, rec, &s.working), nil
		}
		s.attempted = append(s.attempted, fix)

		if err := s.machine.to(StateApply); err != nil {
			return nil, err
		}

		start := time.Now()
		code, err := os.ReadFile(s.opts.TestFile)
		if err != nil {
			s.append(attempt, fix, AttemptError, "", err.Error(), start)
			return s.terminal(ctx, OutcomeFailed,
				fmt.Sprintf("Test file became unreadable during healing: %v", err), &s.working), nil
		}

		fres := fixes.Apply(fix, string(code), fixes.Context{
			ErrorText:  s.errText,
			Aria:       s.opts.Aria,
			MaxTimeout: time.Duration(cfg.MaxTimeoutIncreaseMs) * time.Millisecond,
		})
		if !fres.Applied {
			// The attempt still consumes budget; there is no point
			// re-verifying an unchanged file.
			s.append(attempt, fix, AttemptFail, fres.Description, "Fix not applied", start)
			if err := s.machine.to(StateSelect); err != nil {
				return nil, err
			}
			continue
		}

		if err := os.WriteFile(s.opts.TestFile, []byte(fres.Code), perm); err != nil {
			s.append(attempt, fix, AttemptError, fres.Description, err.Error(), start)
			return s.terminal(ctx, OutcomeFailed,
				fmt.Sprintf("Test file became unwritable during healing: %v", err), &s.working), nil
		}

		if err := s.machine.to(StateVerify); err != nil {
			return nil, err
		}
		summary, verr := s.opts.Verify(ctx)
		if verr != nil {
			s.append(attempt, fix, AttemptError, fres.Description, verr.Error(), start)
			return s.terminal(ctx, OutcomeFailed,
				fmt.Sprintf("Verification could not be executed during healing: %v", verr), &s.working), nil
		}

		if summary.Status == verify.StatusPassed {
			s.append(attempt, fix, AttemptPass, fres.Description, "", start)
			res := s.terminal(ctx, OutcomeHealed,
				fmt.Sprintf("Healed by %s after %d attempt(s).", fix, attempt), &s.working)
			res.AppliedFix = fix
			res.FinalCode = fres.Code
			return res, nil
		}

		s.append(attempt, fix, AttemptFail, fres.Description, "", start)

		// A fix can shift the failure into a different category; follow it.
		// The already-tried fix list is never reset.
		if k, next, ok := summary.Primary(); ok {
			if next.Category != s.working.Category {
				s.zl.Info("failure category changed",
					zap.String("from", string(s.working.Category)),
					zap.String("to", string(next.Category)))
				s.working = next
			}
			s.errText = summary.Failures.Errors[k]
		}

		if err := s.machine.to(StateSelect); err != nil {
			return nil, err
		}
	}

	rec := exhaustedRecommendation(s.working.Category, len(s.attempted))
	return s.terminal(ctx, OutcomeExhausted, rec, &s.working), nil
}

// append records one attempt in the log and the optional history store.
func (s *session) append(attempt int, fix rules.FixType, result AttemptResult, change, errMsg string, start time.Time) {
	a := Attempt{
		Attempt:      attempt,
		Timestamp:    time.Now().UTC(),
		FailureType:  s.working.Category,
		FixType:      fix,
		File:         s.opts.TestFile,
		Change:       change,
		Evidence:     s.working.MatchedKeywords,
		Result:       result,
		ErrorMessage: errMsg,
		DurationMs:   time.Since(start).Milliseconds(),
	}
	if err := s.logger.Append(a); err != nil {
		s.zl.Warn("failed to persist healing attempt", zap.Error(err))
	}
	if s.opts.Store != nil {
		if err := s.opts.Store.RecordAttempt(context.Background(), s.sessionID, s.opts.JourneyID, a); err != nil {
			s.zl.Warn("failed to record attempt in history store", zap.Error(err))
		}
	}
}

// terminal finalizes the log exactly once and builds the session result.
func (s *session) terminal(ctx context.Context, outcome Outcome, recommendation string, cls *classify.Classification) *Result {
	if err := s.logger.Finalize(outcome.logStatus(), recommendation); err != nil {
		s.zl.Warn("failed to finalize healing log", zap.Error(err))
	}
	if s.opts.Store != nil {
		if err := s.opts.Store.RecordSession(ctx, s.sessionID, s.opts.JourneyID, s.opts.TestFile,
			string(outcome), len(s.attempted), recommendation); err != nil {
			s.zl.Warn("failed to record session in history store", zap.Error(err))
		}
	}
	_ = s.machine.to(StateDone)

	return &Result{
		Success:        outcome == OutcomeHealed,
		Outcome:        outcome,
		Attempts:       len(s.attempted),
		Recommendation: recommendation,
		LogPath:        s.logger.Path(),
		Classification: cls,
	}
}
