// Package cmd provides the seeder's commands.
package cmd

import (
	"context"
	"fmt"

	"github.com/punchamoorthee/txledger/internal/app"
	"github.com/punchamoorthee/txledger/internal/config"
	"github.com/punchamoorthee/txledger/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	storage string
	debug   bool

	logger    *zap.Logger
	ledgerApp *app.App
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "seeder",
	Short: "Seed and inspect a transaction ledger",
	Long: `seeder writes demo transactions through the ledger into the
backend selected by LEDGER_STORAGE (or --storage) and reports totals.

Example:
  seeder seed --clients 100 --services 10 --per-client 20
  seeder balance --agent client:client-1 --type DEPOSIT`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		if storage != "" {
			cfg.Storage = storage
			if err := cfg.Validate(); err != nil {
				return err
			}
		}

		level := cfg.LogLevel
		if debug {
			level = "debug"
		}

		logger, err = logging.New(cfg.Env, level)
		if err != nil {
			return err
		}

		ledgerApp, err = app.New(cmd.Context(), cfg, logger, nil)
		if err != nil {
			return fmt.Errorf("failed to open ledger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if ledgerApp != nil {
			ledgerApp.Close()
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storage, "storage", "", "storage backend, overrides LEDGER_STORAGE")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(balanceCmd)
}
