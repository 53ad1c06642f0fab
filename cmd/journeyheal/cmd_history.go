package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"journeyheal/internal/store"
)

var (
	historyLimit int
	historyRates bool
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded healing sessions and fix success rates",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Store.Path, logger)
		if err != nil {
			return fmt.Errorf("failed to open history store: %w", err)
		}
		defer st.Close()

		if historyRates {
			stats, err := st.FixSuccessRates(cmd.Context())
			if err != nil {
				return err
			}
			if historyJSON {
				return json.NewEncoder(os.Stdout).Encode(stats)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FIX TYPE\tATTEMPTS\tPASSES\tRATE")
			for _, s := range stats {
				rate := 0.0
				if s.Attempts > 0 {
					rate = float64(s.Passes) / float64(s.Attempts)
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%.0f%%\n", s.FixType, s.Attempts, s.Passes, rate*100)
			}
			return w.Flush()
		}

		sessions, err := st.RecentSessions(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if historyJSON {
			return json.NewEncoder(os.Stdout).Encode(sessions)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tJOURNEY\tOUTCOME\tATTEMPTS\tFILE")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				s.CreatedAt.Format("2006-01-02 15:04"), s.JourneyID, s.Outcome, s.Attempts, s.TestFile)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum sessions to list")
	historyCmd.Flags().BoolVar(&historyRates, "rates", false, "show per-fix-type success rates instead of sessions")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "emit machine-readable output")
}
