package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/xraph/jobqueue/store"
)

// app carries what every subcommand needs once flags and configuration
// are resolved.
type app struct {
	cfg    Config
	logger *slog.Logger
	store  store.Store
	close  func() error
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		dsn        string
		a          = &app{}
	)

	root := &cobra.Command{
		Use:          "jobq",
		Short:        "Persistent priority job queue",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			if dsn != "" {
				cfg.Store = dsn
			}
			logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
			if err != nil {
				return err
			}
			st, closer, err := openStore(cmd.Context(), cfg.Store, logger)
			if err != nil {
				return err
			}
			a.cfg, a.logger, a.store, a.close = cfg, logger, st, closer
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.close != nil {
				return a.close()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "jobq.toml", "configuration file")
	root.PersistentFlags().StringVar(&dsn, "store", "", "store DSN (overrides configuration)")

	root.AddCommand(
		newMigrateCmd(a),
		newAddCmd(a),
		newListCmd(a),
		newStatsCmd(a),
		newRequeueCmd(a),
		newRemoveCmd(a),
		newPurgeCmd(a),
		newRunCmd(a),
		newServeCmd(a),
	)
	return root
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
