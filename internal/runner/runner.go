// Package runner invokes the external Playwright test runner as a subprocess
// and returns its outcome as data. A nonzero exit from the tests under test
// is never an error; only failing to locate or start the tool is.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ErrRunnerUnavailable is returned when the external test runner executable
// cannot be located.
var ErrRunnerUnavailable = errors.New("test runner executable not found")

// Options controls a single runner invocation.
type Options struct {
	Grep        string            // filter pattern passed to --grep
	Project     string            // project/browser selection
	Workers     int               // parallel worker count
	Retries     int               // per-test retry count
	RepeatEach  int               // per-test repeat count
	FailOnFlaky bool              // treat flaky tests as failures
	Timeout     time.Duration     // wall clock bound for the whole invocation
	Reporter    string            // reporter name, defaults to json
	OutputDir   string            // directory for the machine-readable report
	Env         map[string]string // environment overrides
}

// Result is the immutable outcome of one subprocess invocation.
type Result struct {
	Success    bool          `json:"success"`
	ExitCode   int           `json:"exit_code"`
	Stdout     string        `json:"stdout"`
	Stderr     string        `json:"stderr"`
	ReportPath string        `json:"report_path,omitempty"`
	Duration   time.Duration `json:"duration"`
	Command    []string      `json:"command"`
}

// Runner spawns the external test tool. The zero value is not usable; use New.
type Runner struct {
	command  string
	baseArgs []string
	dir      string
	logger   *zap.Logger
}

// New creates a Runner. command defaults to "npx" with base args
// "playwright test" when empty.
func New(command string, baseArgs []string, dir string, logger *zap.Logger) *Runner {
	if command == "" {
		command = "npx"
		baseArgs = []string{"playwright", "test"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{command: command, baseArgs: baseArgs, dir: dir, logger: logger}
}

// Run executes the test file once, blocking until the subprocess exits or
// the timeout elapses. Test failures surface in the Result, not as errors.
func (r *Runner) Run(ctx context.Context, testFile string, opts Options) (*Result, error) {
	bin, err := exec.LookPath(r.command)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRunnerUnavailable, r.command)
	}

	args, reportPath := r.buildArgs(testFile, opts)

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = r.dir
	cmd.Env = os.Environ()
	if reportPath != "" {
		cmd.Env = append(cmd.Env, "PLAYWRIGHT_JSON_OUTPUT_NAME="+reportPath)
	}
	for k, v := range opts.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Info("running verification",
		zap.String("test_file", testFile),
		zap.Strings("args", args))

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: elapsed,
		Command:  append([]string{r.command}, args...),
	}

	switch {
	case runErr == nil:
		res.Success = true
		res.ExitCode = 0
	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			// Test failures land here. They are data, not errors.
			res.ExitCode = exitErr.ExitCode()
		} else if ctx.Err() != nil {
			res.ExitCode = -1
			res.Stderr += "\nverification timed out: " + ctx.Err().Error()
		} else {
			return nil, fmt.Errorf("failed to start test runner: %w", runErr)
		}
	}

	if reportPath != "" {
		if _, err := os.Stat(reportPath); err == nil {
			res.ReportPath = reportPath
		}
	}

	r.logger.Info("verification finished",
		zap.Bool("success", res.Success),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", elapsed))

	return res, nil
}

// buildArgs constructs the subprocess argument list and the expected report
// path for the JSON reporter.
func (r *Runner) buildArgs(testFile string, opts Options) ([]string, string) {
	args := append([]string(nil), r.baseArgs...)
	args = append(args, testFile)

	if opts.Grep != "" {
		args = append(args, "--grep", opts.Grep)
	}
	if opts.Project != "" {
		args = append(args, "--project", opts.Project)
	}
	if opts.Workers > 0 {
		args = append(args, "--workers", strconv.Itoa(opts.Workers))
	}
	if opts.Retries > 0 {
		args = append(args, "--retries", strconv.Itoa(opts.Retries))
	}
	if opts.RepeatEach > 0 {
		args = append(args, "--repeat-each", strconv.Itoa(opts.RepeatEach))
	}
	if opts.FailOnFlaky {
		args = append(args, "--fail-on-flaky-tests")
	}

	reporter := opts.Reporter
	if reporter == "" {
		reporter = "json"
	}
	args = append(args, "--reporter", reporter)

	var reportPath string
	if reporter == "json" && opts.OutputDir != "" {
		reportPath = filepath.Join(opts.OutputDir, "report.json")
		args = append(args, "--output", opts.OutputDir)
	}

	return args, reportPath
}
