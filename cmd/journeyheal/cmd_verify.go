package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"journeyheal/internal/runner"
	"journeyheal/internal/verify"
)

var (
	verifyProject string
	verifyRetries int
	verifyJSON    bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify <test-file> [test-file...]",
	Short: "Run tests and report classified results without healing",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r := runner.New(cfg.Runner.Command, cfg.Runner.Args, cfg.Runner.WorkDir, logger)

		type entry struct {
			File    string          `json:"file"`
			Summary *verify.Summary `json:"summary"`
		}
		results := make([]entry, len(args))

		// Verification without healing is read-only, so independent files
		// may run in parallel. Healing never does.
		var mu sync.Mutex
		g, ctx := errgroup.WithContext(cmd.Context())
		workers := cfg.Runner.Workers
		if workers <= 0 {
			workers = 1
		}
		g.SetLimit(workers)

		for i, file := range args {
			g.Go(func() error {
				outDir := filepath.Join(cfg.Runner.OutputDir, sanitizeName(file))
				if err := os.MkdirAll(outDir, 0o755); err != nil {
					return err
				}
				res, err := r.Run(ctx, file, runner.Options{
					Project:   verifyProject,
					Retries:   verifyRetries,
					Timeout:   runnerTimeout(),
					OutputDir: outDir,
				})
				if err != nil {
					return fmt.Errorf("%s: %w", file, err)
				}
				mu.Lock()
				results[i] = entry{File: file, Summary: verify.BuildSummary(res)}
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if verifyJSON {
			return json.NewEncoder(os.Stdout).Encode(results)
		}

		failed := 0
		for _, e := range results {
			s := e.Summary
			fmt.Printf("%-8s %s  (%d passed, %d failed, %d flaky, %d skipped)\n",
				s.Status, e.File, s.Counts.Passed, s.Counts.Failed, s.Counts.Flaky, s.Counts.Skipped)
			for test, c := range s.Failures.Classifications {
				fmt.Printf("    %s: %s (%.2f) - %s\n", test, c.Category, c.Confidence, c.Suggestion)
			}
			if s.Status != verify.StatusPassed {
				failed++
			}
		}
		if failed > 0 {
			logger.Info("verification finished with failures", zap.Int("failed_files", failed))
			return fmt.Errorf("%d of %d file(s) failed verification", failed, len(results))
		}
		return nil
	},
}

func sanitizeName(path string) string {
	name := filepath.Base(path)
	if ext := filepath.Ext(name); ext != "" {
		name = name[:len(name)-len(ext)]
	}
	return name
}

func init() {
	verifyCmd.Flags().StringVar(&verifyProject, "project", "", "runner project/browser selection")
	verifyCmd.Flags().IntVar(&verifyRetries, "retries", 0, "per-test retry count")
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "emit machine-readable output")
}
