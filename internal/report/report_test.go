package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleReport = `{
  "stats": {"startTime": "2026-08-24T10:00:00.000Z", "duration": 4523.5},
  "suites": [
    {
      "title": "checkout.spec.ts",
      "file": "checkout.spec.ts",
      "suites": [
        {
          "title": "checkout flow",
          "file": "checkout.spec.ts",
          "specs": [
            {
              "title": "pays with saved card",
              "file": "checkout.spec.ts",
              "line": 12,
              "tests": [
                {
                  "projectName": "chromium",
                  "results": [
                    {
                      "status": "failed",
                      "retry": 0,
                      "duration": 5100,
                      "errors": [
                        {"message": "Timeout 5000ms exceeded while waiting for locator('button')"}
                      ]
                    },
                    {"status": "passed", "retry": 1, "duration": 900}
                  ]
                }
              ]
            },
            {
              "title": "shows order summary",
              "file": "checkout.spec.ts",
              "line": 30,
              "tests": [
                {
                  "projectName": "chromium",
                  "results": [
                    {
                      "status": "failed",
                      "retry": 0,
                      "duration": 200,
                      "error": {"message": "strict mode violation: resolved to 2 elements"}
                    }
                  ]
                }
              ]
            }
          ]
        }
      ]
    }
  ]
}`

func writeReport(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseMissingFile(t *testing.T) {
	if got := Parse(filepath.Join(t.TempDir(), "absent.json")); got != nil {
		t.Errorf("Parse(missing) = %+v, want nil", got)
	}
	if got := Parse(""); got != nil {
		t.Errorf("Parse(\"\") = %+v, want nil", got)
	}
}

func TestParseCorruptFile(t *testing.T) {
	path := writeReport(t, "{not json at all")
	if got := Parse(path); got != nil {
		t.Errorf("Parse(corrupt) = %+v, want nil", got)
	}
}

func TestFlatten(t *testing.T) {
	r := Parse(writeReport(t, sampleReport))
	if r == nil {
		t.Fatal("Parse returned nil for a valid report")
	}

	got := Flatten(r)
	if len(got) != 2 {
		t.Fatalf("Flatten returned %d results, want 2", len(got))
	}

	wantPath := []string{"chromium", "checkout.spec.ts", "checkout flow", "pays with saved card"}
	if diff := cmp.Diff(wantPath, got[0].TitlePath); diff != "" {
		t.Errorf("TitlePath mismatch (-want +got):\n%s", diff)
	}

	// The final attempt passed on retry 1, but errors from the first attempt
	// are kept for classification.
	first := got[0]
	if first.Status != "passed" || first.Retries != 1 {
		t.Errorf("final attempt = %s/retry %d, want passed/1", first.Status, first.Retries)
	}
	if !first.Flaky() {
		t.Error("pass-after-retry must be flaky")
	}
	if len(first.Errors) != 1 {
		t.Errorf("kept %d errors, want 1 (from the failed attempt)", len(first.Errors))
	}

	// Singular "error" field is promoted into the Errors slice.
	second := got[1]
	if second.Status != "failed" {
		t.Errorf("second.Status = %q, want failed", second.Status)
	}
	if len(second.Errors) != 1 || second.Errors[0].Message == "" {
		t.Errorf("second.Errors = %+v, want the promoted singular error", second.Errors)
	}
	if second.Line != 30 {
		t.Errorf("second.Line = %d, want 30", second.Line)
	}
}

func TestTestResultKeyAndErrorText(t *testing.T) {
	tr := TestResult{
		TitlePath: []string{"chromium", "login.spec.ts", "logs in"},
		Errors: []TestError{
			{Message: "first", Stack: "at line 1"},
			{Message: "second"},
		},
	}
	if got, want := tr.Key(), "chromium > login.spec.ts > logs in"; got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
	if got, want := tr.ErrorText(), "first\nat line 1\nsecond\n"; got != want {
		t.Errorf("ErrorText() = %q, want %q", got, want)
	}
}

func TestSummarize(t *testing.T) {
	r := Parse(writeReport(t, sampleReport))
	s := Summarize(r)

	want := Summary{
		Total:     2,
		Passed:    1,
		Failed:    1,
		Flaky:     1,
		Duration:  4523.5,
		StartTime: "2026-08-24T10:00:00.000Z",
		Files:     []string{"checkout.spec.ts"},
		FailedTests: []string{
			"chromium > checkout.spec.ts > checkout flow > shows order summary",
		},
		FlakyTests: []string{
			"chromium > checkout.spec.ts > checkout flow > pays with saved card",
		},
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("Summarize mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarizeNilReport(t *testing.T) {
	s := Summarize(nil)
	if s.Total != 0 || s.Failed != 0 {
		t.Errorf("Summarize(nil) = %+v, want zero value", s)
	}
}
