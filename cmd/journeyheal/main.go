// journeyheal verifies generated journey tests, classifies their failures,
// and applies bounded self-healing to the test source.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"journeyheal/internal/config"
)

const version = "0.3.0"

var (
	// Global flags
	configPath string
	verbose    bool
	outputDir  string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "journeyheal",
	Short: "Verify, classify, and heal generated journey tests",
	Long: `journeyheal runs generated Playwright journey tests, classifies why
they fail, and applies a bounded sequence of mechanical source repairs,
re-verifying after each one. Every session leaves an auditable JSON trail
whether or not it succeeds.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath != "" {
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
		} else {
			cfg = config.DefaultConfig()
		}
		if outputDir != "" {
			cfg.Runner.OutputDir = outputDir
		}

		zcfg := zap.NewProductionConfig()
		if verbose || cfg.Logging.Level == "debug" {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the journeyheal version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("journeyheal %s\n", version)
	},
}

func runnerTimeout() time.Duration {
	return time.Duration(cfg.Runner.TimeoutSec) * time.Second
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to journeyheal.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output-dir", "o", "", "report and heal-log directory")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(healCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
