package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/nfcgate/internal/config"
	"github.com/BrandonDHaskell/nfcgate/internal/logging"
)

// cli carries what every subcommand needs once flags are parsed.
type cli struct {
	cfg    config.Config
	logger *zap.Logger

	dbPath    string
	masterKey string
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:          "nfcgate",
		Short:        "NFC access-control gateway",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			config.LoadDotEnv()
			c.cfg = config.FromEnv()

			if cmd.Flags().Changed("db") {
				c.cfg.DBPath = c.dbPath
			}
			if cmd.Flags().Changed("master-key") {
				c.cfg.MasterKey = c.masterKey
			}

			logger, err := logging.New(logging.Config{Level: c.cfg.LogLevel, Dev: c.cfg.LogDev})
			if err != nil {
				return err
			}
			c.logger = logger.Named("nfcgate")
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "SQLite database path (overrides NFCGATE_DB_PATH)")
	root.PersistentFlags().StringVar(&c.masterKey, "master-key", "", "master key tag id (overrides NFCGATE_MASTER_KEY)")

	root.AddCommand(
		newServeCmd(c),
		newReaderCmd(c),
		newUsersCmd(c),
		newLogsCmd(c),
	)
	return root
}
