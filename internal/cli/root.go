package cli

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "healfactory",
	Short: "healfactory — a self-healing build pipeline",
	Long: `healfactory clones a repository, runs its test suite, and heals failures
in two passes: a deterministic scan for syntax, import, lint, and
indentation defects, then a bounded loop of AI-proposed line patches.

All state is stored in ~/.healfactory/ (SQLite for run history, JSON for
reports). The serve command exposes the same flow over HTTP with a live
event stream.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
}
