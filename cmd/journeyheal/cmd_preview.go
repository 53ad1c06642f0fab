package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"journeyheal/internal/classify"
	"journeyheal/internal/heal"
	"journeyheal/internal/rules"
)

var (
	previewError string
	previewDiff  bool
	previewJSON  bool
)

var previewCmd = &cobra.Command{
	Use:   "preview <test-file>",
	Short: "Show which fixes would apply, without mutating anything",
	Long: `preview classifies a failure message and dry-runs every applicable fix
strategy against the test source. Nothing is written to disk and no test
runner is invoked.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if previewError == "" {
			return fmt.Errorf("--error is required: paste the failure output to classify")
		}
		code, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read test file: %w", err)
		}

		cls := classify.Classify(previewError)
		previews := heal.PreviewFixes(string(code), previewError, cls, cfg.Healing, nil)

		if previewJSON {
			out := struct {
				Classification classify.Classification `json:"classification"`
				Fixes          []heal.FixPreview       `json:"fixes"`
			}{cls, previews}
			return json.NewEncoder(os.Stdout).Encode(out)
		}

		fmt.Printf("category:    %s (confidence %.2f)\n", cls.Category, cls.Confidence)
		fmt.Printf("explanation: %s\n", cls.Explanation)
		if cls.Suggestion != "" {
			fmt.Printf("suggestion:  %s\n", cls.Suggestion)
		}
		if len(previews) == 0 {
			decision := rules.Evaluate(cls, cfg.Healing)
			fmt.Printf("\nno fixes to preview: %s\n", decision.Reason)
			return nil
		}

		fmt.Println()
		for _, p := range previews {
			status := "would not apply"
			if p.Applied {
				status = fmt.Sprintf("applies (confidence %.2f)", p.Confidence)
			}
			fmt.Printf("%-20s %s\n", p.FixType, status)
			if p.Applied && p.Description != "" {
				fmt.Printf("%-20s %s\n", "", p.Description)
			}
			if previewDiff && p.Applied {
				fmt.Println(indent(p.Code, "    | "))
			}
		}
		return nil
	},
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func init() {
	previewCmd.Flags().StringVarP(&previewError, "error", "e", "", "failure output to classify (required)")
	previewCmd.Flags().BoolVar(&previewDiff, "show-code", false, "print the transformed source for each applied fix")
	previewCmd.Flags().BoolVar(&previewJSON, "json", false, "emit machine-readable output")
}
