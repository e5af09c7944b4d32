package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect <path>",
	Short: "Run the deterministic defect scan on a local directory",
	Long: `Scan a checked-out source tree for syntax errors, unresolvable imports,
lint findings, and mixed indentation without applying any fixes. Each
proposed patch is printed with its file, line, and category.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workspace := args[0]
		if info, err := os.Stat(workspace); err != nil || !info.IsDir() {
			return fmt.Errorf("not a directory: %s", workspace)
		}

		cfg, err := loadValidConfig()
		if err != nil {
			return err
		}

		patches := newDetector(cfg).Detect(workspace)
		w := cmd.OutOrStdout()
		if len(patches) == 0 {
			fmt.Fprintln(w, "No defects found.")
			return nil
		}

		fmt.Fprintf(w, "%d proposed fix(es):\n", len(patches))
		for _, p := range patches {
			fmt.Fprintf(w, "  %s:%d [%s] %s\n", p.File, p.Line, p.Category, p.Description)
		}
		return nil
	},
}

func init() {
	detectCmd.Flags().StringVarP(&configFile, "config", "f", "", "path to config file")
}
