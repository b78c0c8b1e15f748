package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/airtable-api/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "airtable-api",
	Short: "Geographic area mapping backend for Airtable",
	Long:  "Serves geo mapping records from Airtable and resolves street addresses to the contact, target community, geographic area and auto-response template responsible for them.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Earlier files win; existing environment variables are never overridden.
		for _, f := range []string{".env.local", ".env"} {
			_ = godotenv.Load(f)
		}

		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
