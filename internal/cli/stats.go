package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-minute trigger statistics",
	Long: `Prints the statistics written by "run" when stats are enabled in the
configuration file.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().Duration("since", time.Hour, "how far back to look")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	since, _ := cmd.Flags().GetDuration("since")

	storage, err := openStats(cmd.Context(), cfg.Stats.Path)
	if err != nil {
		return err
	}
	history, err := storage.History(cmd.Context(), cfg.Scheduler.Name, time.Now().Add(-since), time.Time{})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MINUTE\tTRIGGERED\tFAILED\tCONFLICTS\tCONNECTION FAILURES")
	for _, row := range history {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n",
			row.Timestamp.UTC().Format("2006-01-02 15:04"),
			row.Triggered, row.Failed, row.Conflicts, row.ConnectionFailures)
	}
	return w.Flush()
}
