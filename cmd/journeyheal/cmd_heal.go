package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"journeyheal/internal/fixes"
	"journeyheal/internal/heal"
	"journeyheal/internal/inspect"
	"journeyheal/internal/runner"
	"journeyheal/internal/store"
	"journeyheal/internal/verify"
)

var (
	healMaxAttempts int
	healAllow       []string
	healForbid      []string
	healProject     string
	healInspectURL  string
	healSelector    string
	healJSON        bool
)

var healCmd = &cobra.Command{
	Use:   "heal <journey-id> <test-file>",
	Short: "Run one bounded healing session against a test file",
	Long: `heal runs the verification-classification-healing loop for a single
journey. The test file is mutated in place between attempts; healing is
strictly sequential and one session per journey id may run at a time.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		journeyID, testFile := args[0], args[1]

		healingCfg := cfg.Healing
		if healMaxAttempts > 0 {
			healingCfg.MaxAttempts = healMaxAttempts
		}
		if len(healAllow) > 0 {
			healingCfg.AllowedFixes = healAllow
		}
		if len(healForbid) > 0 {
			healingCfg.ForbiddenFixes = append(healingCfg.ForbiddenFixes, healForbid...)
		}

		r := runner.New(cfg.Runner.Command, cfg.Runner.Args, cfg.Runner.WorkDir, logger)
		outDir := cfg.Runner.OutputDir
		verifyFn := func(ctx context.Context) (*verify.Summary, error) {
			res, err := r.Run(ctx, testFile, runner.Options{
				Project:   healProject,
				Timeout:   runnerTimeout(),
				OutputDir: outDir,
			})
			if err != nil {
				return nil, err
			}
			return verify.BuildSummary(res), nil
		}

		var aria *fixes.AriaInfo
		if healInspectURL != "" && healSelector != "" {
			aria = liveHints(cmd.Context(), healInspectURL, healSelector)
		}

		var history heal.History
		if cfg.Store.Enabled {
			st, err := store.Open(cfg.Store.Path, logger)
			if err != nil {
				logger.Warn("history store unavailable, continuing without it", zap.Error(err))
			} else {
				defer st.Close()
				history = st
			}
		}

		result, err := heal.Run(cmd.Context(), heal.Options{
			JourneyID: journeyID,
			TestFile:  testFile,
			OutputDir: outDir,
			Config:    healingCfg,
			Verify:    verifyFn,
			Aria:      aria,
			Store:     history,
			Logger:    logger,
		})
		if err != nil {
			return err
		}

		if healJSON {
			return json.NewEncoder(os.Stdout).Encode(result)
		}
		fmt.Printf("outcome:        %s\n", result.Outcome)
		fmt.Printf("attempts:       %d\n", result.Attempts)
		if result.AppliedFix != "" {
			fmt.Printf("applied fix:    %s\n", result.AppliedFix)
		}
		fmt.Printf("recommendation: %s\n", result.Recommendation)
		fmt.Printf("heal log:       %s\n", result.LogPath)
		if !result.Success {
			return fmt.Errorf("journey %s not healed (%s)", journeyID, result.Outcome)
		}
		return nil
	},
}

// liveHints asks a headless browser for the element's structural metadata.
// Inspection failures only cost selector-refine confidence, never the run.
func liveHints(ctx context.Context, url, selector string) *fixes.AriaInfo {
	insp, err := inspect.New(logger)
	if err != nil {
		logger.Warn("live inspection unavailable", zap.Error(err))
		return nil
	}
	defer insp.Close()

	aria, err := insp.Hints(ctx, url, selector)
	if err != nil {
		logger.Warn("live inspection failed, falling back to text heuristics", zap.Error(err))
		return nil
	}
	return aria
}

func init() {
	healCmd.Flags().IntVar(&healMaxAttempts, "max-attempts", 0, "override configured attempt budget")
	healCmd.Flags().StringSliceVar(&healAllow, "allow", nil, "override allowed fix types")
	healCmd.Flags().StringSliceVar(&healForbid, "forbid", nil, "additional forbidden fix types")
	healCmd.Flags().StringVar(&healProject, "project", "", "runner project/browser selection")
	healCmd.Flags().StringVar(&healInspectURL, "inspect-url", "", "page URL for live structural hints")
	healCmd.Flags().StringVar(&healSelector, "selector", "", "brittle selector to inspect on the live page")
	healCmd.Flags().BoolVar(&healJSON, "json", false, "emit machine-readable output")
}
