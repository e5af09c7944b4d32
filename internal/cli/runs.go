package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent healing runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadValidConfig()
		if err != nil {
			return err
		}
		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := database.ListRuns(limit)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}

		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs found.")
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-36s %-16s %-10s %-6s %-30s %s\n", "RUN", "STATUS", "ITER", "FIXES", "BRANCH", "STARTED")
		fmt.Fprintf(w, "%-36s %-16s %-10s %-6s %-30s %s\n",
			strings.Repeat("-", 36),
			strings.Repeat("-", 16),
			strings.Repeat("-", 10),
			strings.Repeat("-", 6),
			strings.Repeat("-", 30),
			strings.Repeat("-", 7))
		for _, r := range runs {
			fmt.Fprintf(w, "%-36s %-16s %-10d %-6d %-30s %s\n",
				r.ID, r.FinalStatus, r.Iterations, r.PatchesApplied, r.Branch, r.StartedAt)
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().Int("limit", 20, "maximum number of runs to show")
	runsCmd.Flags().StringVarP(&configFile, "config", "f", "", "path to config file")
}
