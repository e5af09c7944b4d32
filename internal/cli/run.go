package cli

import (
	"fmt"

	"github.com/lucasnoah/healfactory/internal/heal"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <repo-url>",
	Short: "Heal a repository end to end",
	Long: `Clone the repository, run its test suite, and heal failures: one
deterministic pass for syntax, import, lint, and indentation defects,
then up to max_iterations of AI-proposed patches. Each pass that applies
fixes commits and pushes to a team branch.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		team, _ := cmd.Flags().GetString("team")
		leader, _ := cmd.Flags().GetString("leader")
		if team == "" {
			return fmt.Errorf("--team is required")
		}
		if leader == "" {
			return fmt.Errorf("--leader is required")
		}

		cfg, err := loadValidConfig()
		if err != nil {
			return err
		}

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		store := heal.NewStore(reportDir(cfg))
		healer, err := newHealer(cfg, nil, store, database)
		if err != nil {
			return err
		}

		report, runErr := healer.Run(cmd.Context(), heal.Options{
			RepoURL: args[0],
			Team:    team,
			Leader:  leader,
		})
		printReport(cmd, report)
		if runErr != nil {
			return fmt.Errorf("healing run: %w", runErr)
		}
		return nil
	},
}

func printReport(cmd *cobra.Command, r *heal.Report) {
	if r == nil {
		return
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run:        %s\n", r.RunID)
	fmt.Fprintf(w, "Branch:     %s\n", r.Branch)
	fmt.Fprintf(w, "Status:     %s\n", r.FinalStatus)
	fmt.Fprintf(w, "Iterations: %d\n", len(r.Iterations))
	fmt.Fprintf(w, "Failures:   %d detected\n", r.TotalFailures)
	fmt.Fprintf(w, "Fixes:      %d applied\n", r.PatchesApplied)
	fmt.Fprintf(w, "Time:       %.2fs\n", r.TimeTaken)
	if r.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", r.Error)
	}
}

func init() {
	runCmd.Flags().String("team", "", "team name used to derive the fix branch")
	runCmd.Flags().String("leader", "", "team leader name used to derive the fix branch")
	runCmd.Flags().StringVarP(&configFile, "config", "f", "", "path to config file")
}
