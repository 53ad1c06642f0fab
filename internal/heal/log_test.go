package heal

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journeyheal/internal/classify"
	"journeyheal/internal/rules"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	l, err := NewLogger(t.TempDir(), "journey-1", "session-1", 3, nil)
	require.NoError(t, err)
	return l
}

func sampleAttempt(n int, result AttemptResult) Attempt {
	return Attempt{
		Attempt:     n,
		Timestamp:   time.Now().UTC(),
		FailureType: classify.CategoryTiming,
		FixType:     rules.FixMissingAwait,
		File:        "journey.spec.ts",
		Change:      "inserted 1 missing await keyword(s)",
		Evidence:    []string{"timeout", "waiting for"},
		Result:      result,
		DurationMs:  1200,
	}
}

func TestNewLoggerPersistsInProgress(t *testing.T) {
	l := newTestLogger(t)

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)

	var persisted Log
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Equal(t, StatusInProgress, persisted.Status)
	assert.Equal(t, "journey-1", persisted.JourneyID)
	assert.Equal(t, 3, persisted.MaxAttempts)
	assert.NotNil(t, persisted.Attempts, "attempts must serialize as [], not null")
	assert.Nil(t, persisted.SessionEnd)
	assert.Nil(t, persisted.Summary)
}

func TestLoggerAppendPersistsEachAttempt(t *testing.T) {
	l := newTestLogger(t)
	require.NoError(t, l.Append(sampleAttempt(1, AttemptFail)))
	require.NoError(t, l.Append(sampleAttempt(2, AttemptPass)))

	assert.Len(t, l.Attempts(), 2)

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	var persisted Log
	require.NoError(t, json.Unmarshal(data, &persisted))
	require.Len(t, persisted.Attempts, 2)
	assert.Equal(t, 1, persisted.Attempts[0].Attempt)
	assert.Equal(t, AttemptPass, persisted.Attempts[1].Result)
}

func TestLoggerFinalizeComputesSummary(t *testing.T) {
	l := newTestLogger(t)
	require.NoError(t, l.Append(sampleAttempt(1, AttemptFail)))
	a2 := sampleAttempt(2, AttemptPass)
	a2.FixType = rules.FixWebFirstAssertion
	require.NoError(t, l.Append(a2))

	require.NoError(t, l.Finalize(StatusHealed, "Healed by web-first-assertion after 2 attempt(s)."))

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	var persisted Log
	require.NoError(t, json.Unmarshal(data, &persisted))

	assert.Equal(t, StatusHealed, persisted.Status)
	require.NotNil(t, persisted.SessionEnd)
	require.NotNil(t, persisted.Summary)
	assert.Equal(t, 2, persisted.Summary.TotalAttempts)
	assert.Equal(t, 1, persisted.Summary.SuccessfulFixes)
	assert.Equal(t, 1, persisted.Summary.FailedAttempts)
	assert.Equal(t, []rules.FixType{rules.FixMissingAwait, rules.FixWebFirstAssertion},
		persisted.Summary.FixTypesAttempted)
}

func TestLoggerFinalizeExactlyOnce(t *testing.T) {
	l := newTestLogger(t)
	require.NoError(t, l.Finalize(StatusFailed, "x"))

	assert.ErrorIs(t, l.Finalize(StatusHealed, "y"), errFinalized)
	assert.ErrorIs(t, l.Append(sampleAttempt(1, AttemptFail)), errFinalized)
}

func TestLogFieldNamesAreCamelCase(t *testing.T) {
	l := newTestLogger(t)
	require.NoError(t, l.Append(sampleAttempt(1, AttemptFail)))
	require.NoError(t, l.Finalize(StatusExhausted, "Healing exhausted after 1 attempts: x"))

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"journeyId", "sessionId", "sessionStart", "sessionEnd",
		"maxAttempts", "status", "attempts", "summary"} {
		assert.Contains(t, raw, key)
	}

	var attempts []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["attempts"], &attempts))
	require.Len(t, attempts, 1)
	for _, key := range []string{"attempt", "timestamp", "failureType", "fixType",
		"file", "change", "result", "duration"} {
		assert.Contains(t, attempts[0], key)
	}

	var summary map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["summary"], &summary))
	for _, key := range []string{"totalAttempts", "successfulFixes", "failedAttempts",
		"totalDuration", "fixTypesAttempted", "recommendation"} {
		assert.Contains(t, summary, key)
	}
}

func TestLogPath(t *testing.T) {
	assert.Equal(t, ".journeyheal/login-journey.heal-log.json",
		LogPath(".journeyheal", "login-journey"))
}
