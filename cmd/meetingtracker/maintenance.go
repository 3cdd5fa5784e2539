package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/meeting-tracker/internal/filestore"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and print the schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			storage, err := a.openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer a.closeStorage(storage)

			status, err := storage.MigrationStatus(cmd.Context())
			if err != nil {
				return err
			}
			a.logger.Info("migrations applied",
				zap.String("version", status.CurrentVersion),
				zap.Int("applied", len(status.AppliedMigrations)),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %s (%d applied, %d pending)\n",
				status.CurrentVersion, len(status.AppliedMigrations), status.PendingCount)
			return nil
		},
	}
}

func newSweepScratchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-scratch",
		Short: "Remove scratch files older than scratch_max_age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			files, err := filestore.NewLocal(a.cfg.UploadDir, a.cfg.ScratchDir, a.logger)
			if err != nil {
				return err
			}
			removed, err := files.SweepScratch(a.cfg.ScratchMaxAge)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d scratch files\n", removed)
			return nil
		},
	}
}
