package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/meeting-tracker/internal/config"
	"github.com/example/meeting-tracker/internal/logging"
	"github.com/example/meeting-tracker/internal/persistence/sqlite"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	cfg        config.Config
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "meetingtracker",
		Short:        "Meeting tracker API with document storage and attendance",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML configuration file (defaults to $"+config.EnvConfigFile+")")

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newMigrateCmd(a))
	root.AddCommand(newSweepScratchCmd(a))
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// openStorage opens the configured database and applies pending migrations.
func (a *app) openStorage(ctx context.Context) (*sqlite.Storage, error) {
	storage, err := sqlite.Open(sqlite.DefaultConfig(a.cfg.DatabasePath), a.logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return storage, nil
}

func (a *app) closeStorage(storage *sqlite.Storage) {
	if err := storage.Close(); err != nil {
		a.logger.Error("failed to close storage", zap.Error(err))
	}
}
