package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"journeyheal/internal/runner"
	"journeyheal/internal/verify"
)

var (
	watchProject  string
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Re-verify journey tests whenever their source changes",
	Long: `watch monitors a directory for changes to .spec.ts and .spec.js files
and re-runs verification for each changed file. Healing is never triggered
automatically; use the heal command for that.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		info, err := os.Stat(dir)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		defer watcher.Close()

		if err := watcher.Add(dir); err != nil {
			return err
		}
		// Watch one level of subdirectories too; journey suites commonly
		// group specs by feature.
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
				if err := watcher.Add(filepath.Join(dir, e.Name())); err != nil {
					return err
				}
			}
		}

		r := runner.New(cfg.Runner.Command, cfg.Runner.Args, cfg.Runner.WorkDir, logger)
		logger.Info("watching for spec changes", zap.String("dir", dir))

		// Editors fire bursts of write events for a single save, so each
		// file gets a debounce timer instead of an immediate run.
		pending := make(map[string]*time.Timer)
		runFile := func(file string) {
			outDir := filepath.Join(cfg.Runner.OutputDir, sanitizeName(file))
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				logger.Error("failed to create output dir", zap.Error(err))
				return
			}
			res, err := r.Run(cmd.Context(), file, runner.Options{
				Project:   watchProject,
				Timeout:   runnerTimeout(),
				OutputDir: outDir,
			})
			if err != nil {
				logger.Error("verification run failed", zap.String("file", file), zap.Error(err))
				return
			}
			s := verify.BuildSummary(res)
			fmt.Printf("%s %-8s %s  (%d passed, %d failed, %d flaky)\n",
				time.Now().Format("15:04:05"), s.Status, file,
				s.Counts.Passed, s.Counts.Failed, s.Counts.Flaky)
			for test, c := range s.Failures.Classifications {
				fmt.Printf("    %s: %s (%.2f) - %s\n", test, c.Category, c.Confidence, c.Suggestion)
			}
		}

		for {
			select {
			case <-cmd.Context().Done():
				return nil
			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if !isSpecFile(ev.Name) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				file := ev.Name
				if t, exists := pending[file]; exists {
					t.Reset(watchDebounce)
					continue
				}
				pending[file] = time.AfterFunc(watchDebounce, func() {
					runFile(file)
				})
				// AfterFunc entries are re-armed by Reset above; stale map
				// entries for files that stop changing are harmless.
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				logger.Warn("watch error", zap.Error(err))
			}
		}
	},
}

func isSpecFile(path string) bool {
	return strings.HasSuffix(path, ".spec.ts") || strings.HasSuffix(path, ".spec.js")
}

func init() {
	watchCmd.Flags().StringVar(&watchProject, "project", "", "runner project/browser selection")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "quiet period before re-verifying a changed file")
}
