// Package report parses the machine-readable JSON report emitted by the
// external Playwright runner and flattens its nested suite tree into
// per-test results.
package report

import (
	"encoding/json"
	"os"
	"strings"
)

// Report is the top-level shape of the runner's JSON reporter output.
type Report struct {
	Suites []Suite `json:"suites"`
	Stats  Stats   `json:"stats"`
}

// Stats carries run-wide metadata.
type Stats struct {
	StartTime string  `json:"startTime"`
	Duration  float64 `json:"duration"` // milliseconds
}

// Suite is one level of the nested suite tree.
type Suite struct {
	Title  string  `json:"title"`
	File   string  `json:"file"`
	Specs  []Spec  `json:"specs"`
	Suites []Suite `json:"suites"`
}

// Spec is a single declared test case.
type Spec struct {
	Title string     `json:"title"`
	File  string     `json:"file"`
	Line  int        `json:"line"`
	Tests []SpecTest `json:"tests"`
}

// SpecTest is one project/browser execution of a spec.
type SpecTest struct {
	ProjectName string       `json:"projectName"`
	Results     []SpecResult `json:"results"`
}

// SpecResult is the outcome of one attempt (retry) of a test.
type SpecResult struct {
	Status   string      `json:"status"`
	Retry    int         `json:"retry"`
	Duration float64     `json:"duration"` // milliseconds
	Errors   []TestError `json:"errors"`
	Error    *TestError  `json:"error"`
	Location *Location   `json:"location"`
}

// TestError is one recorded failure of a test attempt.
type TestError struct {
	Message  string    `json:"message"`
	Stack    string    `json:"stack"`
	Location *Location `json:"location"`
}

// Location points at a source position in the test file.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// TestResult is a flattened, per-test view of the report.
type TestResult struct {
	TitlePath []string
	File      string
	Line      int
	Status    string // status of the final attempt
	Retries   int    // retry index of the final attempt
	Duration  float64
	Errors    []TestError
}

// Key returns the full title path joined for use as a map key.
func (t TestResult) Key() string {
	return strings.Join(t.TitlePath, " > ")
}

// Flaky reports whether the test ultimately passed but needed retries.
func (t TestResult) Flaky() bool {
	return t.Status == "passed" && t.Retries > 0
}

// ErrorText concatenates all recorded errors (message + stack) for
// classification.
func (t TestResult) ErrorText() string {
	var b strings.Builder
	for _, e := range t.Errors {
		if e.Message != "" {
			b.WriteString(e.Message)
			b.WriteString("\n")
		}
		if e.Stack != "" {
			b.WriteString(e.Stack)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Parse reads a report file from disk. It returns nil on a missing or
// corrupt file; absence of a report is expected in environments without
// JSON reporter support and is never an error.
func Parse(path string) *Report {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil
	}
	return &r
}

// Flatten walks the nested suite tree depth-first and returns one TestResult
// per executed test, accumulating the suite/spec title path.
func Flatten(r *Report) []TestResult {
	if r == nil {
		return nil
	}
	var out []TestResult
	for _, s := range r.Suites {
		flattenSuite(s, nil, &out)
	}
	return out
}

func flattenSuite(s Suite, path []string, out *[]TestResult) {
	path = append(path, s.Title)
	for _, spec := range s.Specs {
		for _, t := range spec.Tests {
			if len(t.Results) == 0 {
				continue
			}
			final := t.Results[len(t.Results)-1]
			tr := TestResult{
				File:     spec.File,
				Line:     spec.Line,
				Status:   final.Status,
				Retries:  final.Retry,
				Duration: final.Duration,
			}
			tr.TitlePath = append(tr.TitlePath, path...)
			tr.TitlePath = append(tr.TitlePath, spec.Title)
			if t.ProjectName != "" {
				tr.TitlePath = append([]string{t.ProjectName}, tr.TitlePath...)
			}
			// Collect errors across all attempts so the classifier sees
			// every recorded failure, not only the final one.
			for _, res := range t.Results {
				tr.Errors = append(tr.Errors, res.Errors...)
				if res.Error != nil && len(res.Errors) == 0 {
					tr.Errors = append(tr.Errors, *res.Error)
				}
			}
			*out = append(*out, tr)
		}
	}
	for _, child := range s.Suites {
		flattenSuite(child, path, out)
	}
}

// Summary aggregates per-test outcomes into run-level counts.
type Summary struct {
	Total       int
	Passed      int
	Failed      int
	Skipped     int
	Flaky       int
	Duration    float64 // milliseconds
	StartTime   string
	Files       []string
	FailedTests []string
	FlakyTests  []string
}

// Summarize flattens the report and counts outcomes. A test counts as flaky
// when it passed with a retry count greater than zero.
func Summarize(r *Report) Summary {
	s := Summary{}
	if r == nil {
		return s
	}
	s.Duration = r.Stats.Duration
	s.StartTime = r.Stats.StartTime

	seenFiles := map[string]bool{}
	for _, t := range Flatten(r) {
		s.Total++
		if t.File != "" && !seenFiles[t.File] {
			seenFiles[t.File] = true
			s.Files = append(s.Files, t.File)
		}
		switch {
		case t.Flaky():
			s.Flaky++
			s.Passed++
			s.FlakyTests = append(s.FlakyTests, t.Key())
		case t.Status == "passed":
			s.Passed++
		case t.Status == "skipped":
			s.Skipped++
		default:
			s.Failed++
			s.FailedTests = append(s.FailedTests, t.Key())
		}
	}
	return s
}
