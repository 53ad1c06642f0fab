package heal

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"journeyheal/internal/classify"
	"journeyheal/internal/config"
	"journeyheal/internal/verify"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const timingError = "Timeout 5000ms exceeded while waiting for locator('button')"

func healingConfig() config.Healing {
	return config.DefaultConfig().Healing
}

func passedSummary() *verify.Summary {
	return &verify.Summary{Status: verify.StatusPassed}
}

func failedSummary(errText string) *verify.Summary {
	cls := classify.Classify(errText)
	s := &verify.Summary{Status: verify.StatusFailed}
	s.Failures.Classifications = map[string]classify.Classification{"suite > test": cls}
	s.Failures.Errors = map[string]string{"suite > test": errText}
	return s
}

// sequenceVerify returns each summary in order, then repeats the last one.
// It counts invocations so tests can assert how often ground truth was asked.
func sequenceVerify(calls *int, summaries ...*verify.Summary) verify.Func {
	return func(ctx context.Context) (*verify.Summary, error) {
		i := *calls
		*calls++
		if i >= len(summaries) {
			i = len(summaries) - 1
		}
		return summaries[i], nil
	}
}

func writeTestFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journey.spec.ts")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func baseOptions(t *testing.T, testFile string, vf verify.Func) Options {
	t.Helper()
	return Options{
		JourneyID: "journey-1",
		TestFile:  testFile,
		OutputDir: t.TempDir(),
		Config:    healingConfig(),
		Verify:    vf,
	}
}

func readLog(t *testing.T, path string) Log {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var l Log
	require.NoError(t, json.Unmarshal(data, &l))
	return l
}

func TestRunBaselineAlreadyPassing(t *testing.T) {
	content := "await page.goto('/home');\n"
	file := writeTestFile(t, content)
	calls := 0

	res, err := Run(context.Background(), baseOptions(t, file, sequenceVerify(&calls, passedSummary())))
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, OutcomeHealed, res.Outcome)
	assert.Zero(t, res.Attempts)
	assert.Equal(t, "Test already passing; no healing required.", res.Recommendation)
	assert.Equal(t, 1, calls)

	// The file was never touched.
	after, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, content, string(after))

	l := readLog(t, res.LogPath)
	assert.Equal(t, StatusHealed, l.Status)
	assert.Empty(t, l.Attempts)
}

func TestRunMissingTestFile(t *testing.T) {
	calls := 0
	opts := baseOptions(t, filepath.Join(t.TempDir(), "absent.spec.ts"),
		sequenceVerify(&calls, passedSummary()))

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, "Test file not found.", res.Recommendation)
	assert.Zero(t, calls, "verification must not run without a test file")
}

func TestRunVerifyError(t *testing.T) {
	file := writeTestFile(t, "await page.goto('/');\n")
	opts := baseOptions(t, file, func(ctx context.Context) (*verify.Summary, error) {
		return nil, errors.New("runner missing")
	})

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Recommendation, "Verification could not be executed")
}

func TestRunNotHealable(t *testing.T) {
	file := writeTestFile(t, "await page.goto('/');\n")
	calls := 0
	opts := baseOptions(t, file,
		sequenceVerify(&calls, failedSummary("Error: 401 Unauthorized: invalid credentials")))

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, OutcomeNotHealable, res.Outcome)
	assert.Zero(t, res.Attempts)
	assert.Contains(t, res.Recommendation, `category "auth" requires human, credential, or environment intervention`)
	require.NotNil(t, res.Classification)
	assert.Equal(t, classify.CategoryAuth, res.Classification.Category)

	// not_healable is folded into failed in the persisted log.
	l := readLog(t, res.LogPath)
	assert.Equal(t, StatusFailed, l.Status)
}

func TestRunHealsAfterFix(t *testing.T) {
	file := writeTestFile(t, "page.click('#save');\n")
	calls := 0
	opts := baseOptions(t, file,
		sequenceVerify(&calls, failedSummary(timingError), passedSummary()))

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, OutcomeHealed, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "missing-await", string(res.AppliedFix))
	assert.Equal(t, "Healed by missing-await after 1 attempt(s).", res.Recommendation)
	assert.Equal(t, 2, calls, "baseline plus one re-verification")

	after, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "await page.click('#save');\n", string(after))
	assert.Equal(t, string(after), res.FinalCode)

	l := readLog(t, res.LogPath)
	assert.Equal(t, StatusHealed, l.Status)
	require.Len(t, l.Attempts, 1)
	assert.Equal(t, AttemptPass, l.Attempts[0].Result)
	assert.Equal(t, classify.CategoryTiming, l.Attempts[0].FailureType)
	require.NotNil(t, l.Summary)
	assert.Equal(t, 1, l.Summary.SuccessfulFixes)
}

func TestRunExhaustsAttemptBudget(t *testing.T) {
	file := writeTestFile(t, "page.click('#save');\n")
	cfg := healingConfig()
	cfg.MaxAttempts = 1

	calls := 0
	opts := baseOptions(t, file, sequenceVerify(&calls, failedSummary(timingError)))
	opts.Config = cfg

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, OutcomeExhausted, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.Contains(t, res.Recommendation, "exhausted after 1 attempts")

	l := readLog(t, res.LogPath)
	assert.Equal(t, StatusExhausted, l.Status)
	assert.LessOrEqual(t, len(l.Attempts), cfg.MaxAttempts)
}

func TestRunExhaustsCandidatesBeforeBudget(t *testing.T) {
	// A selector failure with no extractable selector and no tightenable
	// locators: both candidate fixes refuse to apply. Each refusal still
	// consumes an attempt, but an unchanged file is never re-verified.
	file := writeTestFile(t, "await page.click('#x');\n")
	calls := 0
	opts := baseOptions(t, file,
		sequenceVerify(&calls, failedSummary("element not found, element is detached, no element matches")))

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, OutcomeExhausted, res.Outcome)
	assert.Equal(t, 2, res.Attempts, "selector-refine and add-exact both consumed budget")
	assert.Equal(t, 1, calls, "no-op fixes must not trigger re-verification")

	l := readLog(t, res.LogPath)
	require.Len(t, l.Attempts, 2)
	for _, a := range l.Attempts {
		assert.Equal(t, AttemptFail, a.Result)
		assert.Equal(t, "Fix not applied", a.ErrorMessage)
	}
}

func TestRunFollowsCategoryShift(t *testing.T) {
	// Attempt 1 fixes the missing await; the failure then shifts to
	// navigation, and attempt 2 heals it with a navigation wait.
	file := writeTestFile(t, "page.goto('/checkout');\n\n\n\nawait page.click('#pay');\n")
	calls := 0
	opts := baseOptions(t, file, sequenceVerify(&calls,
		failedSummary(timingError),
		failedSummary("page.goto: navigation to '/checkout' failed: net::ERR_ABORTED"),
		passedSummary()))

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, OutcomeHealed, res.Outcome)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "navigation-wait", string(res.AppliedFix))

	after, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(after), "await page.goto('/checkout');")
	assert.Contains(t, string(after), "await page.waitForURL('/checkout');")
}

func TestRunHealingDisabled(t *testing.T) {
	file := writeTestFile(t, "page.click('#x');\n")
	cfg := healingConfig()
	cfg.Enabled = false

	calls := 0
	opts := baseOptions(t, file, sequenceVerify(&calls, failedSummary(timingError)))
	opts.Config = cfg

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotHealable, res.Outcome)
	assert.Equal(t, "healing is disabled by configuration", res.Recommendation)
}

func TestRunUnclassifiableBaseline(t *testing.T) {
	file := writeTestFile(t, "page.click('#x');\n")
	calls := 0
	opts := baseOptions(t, file,
		sequenceVerify(&calls, &verify.Summary{Status: verify.StatusFailed}))

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, "Unable to classify the baseline failure.", res.Recommendation)
}

// recordingHistory captures store calls for assertion.
type recordingHistory struct {
	attempts []Attempt
	sessions int
	outcome  string
}

func (r *recordingHistory) RecordAttempt(_ context.Context, _, _ string, a Attempt) error {
	r.attempts = append(r.attempts, a)
	return nil
}

func (r *recordingHistory) RecordSession(_ context.Context, _, _, _ string,
	outcome string, _ int, _ string) error {
	r.sessions++
	r.outcome = outcome
	return nil
}

func TestRunRecordsHistory(t *testing.T) {
	file := writeTestFile(t, "page.click('#save');\n")
	hist := &recordingHistory{}
	calls := 0
	opts := baseOptions(t, file,
		sequenceVerify(&calls, failedSummary(timingError), passedSummary()))
	opts.Store = hist

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, OutcomeHealed, res.Outcome)

	assert.Len(t, hist.attempts, 1)
	assert.Equal(t, 1, hist.sessions)
	assert.Equal(t, "healed", hist.outcome)
}

func TestRunRejectsConcurrentSession(t *testing.T) {
	outputDir := t.TempDir()
	lock := newSessionLock(LogPath(outputDir, "journey-1"))
	require.NoError(t, lock.TryLock())
	defer lock.Unlock()

	file := writeTestFile(t, "await page.goto('/');\n")
	calls := 0
	opts := baseOptions(t, file, sequenceVerify(&calls, passedSummary()))
	opts.OutputDir = outputDir

	_, err := Run(context.Background(), opts)
	assert.ErrorIs(t, err, ErrSessionActive)
	assert.Zero(t, calls)
}
