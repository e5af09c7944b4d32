package cli

import (
	"github.com/lucasnoah/healfactory/internal/event"
	"github.com/lucasnoah/healfactory/internal/heal"
	"github.com/lucasnoah/healfactory/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the healing HTTP API",
	Long: `Start the HTTP API on the configured port. POST /api/run launches a
healing run in the background (one at a time); GET /api/events streams
run progress as server-sent events; /api/status, /api/runs, and
/api/results expose current state and history.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadValidConfig()
		if err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.Healing.Server.Port = port
		}

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		broker := event.NewBroker()
		store := heal.NewStore(reportDir(cfg))
		healer, err := newHealer(cfg, broker, store, database)
		if err != nil {
			return err
		}

		server := web.NewServer(healer, heal.NewRunManager(), broker, store, database, cfg.Healing.Server.Port)
		return server.Start()
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "port to listen on (overrides config)")
	serveCmd.Flags().StringVarP(&configFile, "config", "f", "", "path to config file")
}
