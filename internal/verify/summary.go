// Package verify normalizes one test run into a VerifySummary: runner
// outcome plus parsed report plus per-test failure classification.
package verify

import (
	"context"
	"sort"
	"time"

	"journeyheal/internal/classify"
	"journeyheal/internal/report"
	"journeyheal/internal/runner"
)

// Status is the overall outcome of one run.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
	StatusFlaky  Status = "flaky"
	StatusError  Status = "error"
)

// Counts aggregates per-test outcomes.
type Counts struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Flaky   int `json:"flaky"`
}

// Failures carries everything known about the failing tests of a run.
type Failures struct {
	Tests           []string                           `json:"tests,omitempty"`
	Classifications map[string]classify.Classification `json:"classifications,omitempty"`
	Errors          map[string]string                  `json:"errors,omitempty"` // testKey -> raw error text
	Stats           map[classify.Category]int          `json:"stats,omitempty"`
}

// RunnerInfo echoes the subprocess outcome that produced the summary.
type RunnerInfo struct {
	ExitCode int      `json:"exit_code"`
	Command  []string `json:"command"`
}

// Summary is the normalized outcome of one test run.
type Summary struct {
	Status     Status        `json:"status"`
	Counts     Counts        `json:"counts"`
	Duration   time.Duration `json:"duration"`
	Failures   Failures      `json:"failures"`
	Runner     RunnerInfo    `json:"runner"`
	ReportPath string        `json:"report_path,omitempty"`
}

// Func obtains ground truth for the healing loop. It is expected to invoke
// the Verification Runner against the current on-disk state of the test file
// and return a fully populated Summary.
type Func func(ctx context.Context) (*Summary, error)

// BuildSummary combines a runner result with its report, classifying every
// failed test. Status priority is failed > flaky > passed; without a report
// it falls back to the runner's exit status. A negative exit code with no
// report means the invocation itself died (killed on timeout, never exited
// normally) and is reported as StatusError rather than a test failure.
func BuildSummary(res *runner.Result) *Summary {
	s := &Summary{
		Duration: res.Duration,
		Runner: RunnerInfo{
			ExitCode: res.ExitCode,
			Command:  res.Command,
		},
		ReportPath: res.ReportPath,
	}

	rep := report.Parse(res.ReportPath)
	if rep == nil {
		switch {
		case res.Success:
			s.Status = StatusPassed
		case res.ExitCode < 0:
			s.Status = StatusError
		default:
			s.Status = StatusFailed
		}
		return s
	}

	sum := report.Summarize(rep)
	s.Counts = Counts{
		Total:   sum.Total,
		Passed:  sum.Passed,
		Failed:  sum.Failed,
		Skipped: sum.Skipped,
		Flaky:   sum.Flaky,
	}
	s.Duration = time.Duration(sum.Duration * float64(time.Millisecond))

	switch {
	case sum.Failed > 0:
		s.Status = StatusFailed
	case sum.Flaky > 0:
		s.Status = StatusFlaky
	default:
		s.Status = StatusPassed
	}

	flat := report.Flatten(rep)
	s.Failures.Classifications = classify.ClassifyAll(flat)
	if len(s.Failures.Classifications) > 0 {
		s.Failures.Tests = sum.FailedTests
		s.Failures.Errors = make(map[string]string)
		s.Failures.Stats = make(map[classify.Category]int)
		for _, t := range flat {
			if _, ok := s.Failures.Classifications[t.Key()]; !ok {
				continue
			}
			s.Failures.Errors[t.Key()] = t.ErrorText()
		}
		for _, c := range s.Failures.Classifications {
			s.Failures.Stats[c.Category]++
		}
	}

	return s
}

// Primary returns the highest-confidence failure classification of the run,
// with the key of the test it belongs to. Ties are broken by test key order
// so the result is deterministic. ok is false when the run recorded no
// classifiable failures.
func (s *Summary) Primary() (testKey string, c classify.Classification, ok bool) {
	if len(s.Failures.Classifications) == 0 {
		return "", classify.Classification{}, false
	}
	keys := make([]string, 0, len(s.Failures.Classifications))
	for k := range s.Failures.Classifications {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best := keys[0]
	for _, k := range keys[1:] {
		if s.Failures.Classifications[k].Confidence > s.Failures.Classifications[best].Confidence {
			best = k
		}
	}
	return best, s.Failures.Classifications[best], true
}
