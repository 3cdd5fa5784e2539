package migration

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// MigrationManager orchestrates scanning and executing migrations.
type MigrationManager struct {
	scanner  FileScanner
	executor Executor
	logger   *zap.Logger
}

// NewMigrationManager creates a new MigrationManager
func NewMigrationManager(scanner FileScanner, executor Executor, logger *zap.Logger) *MigrationManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MigrationManager{
		scanner:  scanner,
		executor: executor,
		logger:   logger.With(zap.String("component", "migration")),
	}
}

// RunMigrations executes all pending migrations in sequential order
func (m *MigrationManager) RunMigrations(ctx context.Context) error {
	status, err := m.GetMigrationStatus(ctx)
	if err != nil {
		m.logger.Error("migration status unavailable", zap.Error(err))
		return err
	}

	if status.PendingCount == 0 {
		m.logger.Info("schema up to date", zap.String("version", status.CurrentVersion))
		return nil
	}

	m.logger.Info("applying migrations",
		zap.String("from_version", status.CurrentVersion),
		zap.Int("pending", status.PendingCount),
	)

	for i, migration := range status.PendingMigrations {
		elapsed, err := m.executor.ExecuteMigration(ctx, migration)
		if err != nil {
			m.logger.Error("migration failed",
				zap.String("version", migration.Version),
				zap.String("file", migration.FilePath),
				zap.Error(err),
			)
			return NewMigrationError(migration.Version, migration.FilePath, "execute migration",
				fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}

		m.logger.Info("migration applied",
			zap.String("version", migration.Version),
			zap.String("description", migration.Description),
			zap.Int("step", i+1),
			zap.Int("of", status.PendingCount),
			zap.Duration("elapsed", elapsed),
		)
	}

	return nil
}

// GetMigrationStatus returns applied and pending migrations after checking
// that the files on hand agree with what the database has recorded.
func (m *MigrationManager) GetMigrationStatus(ctx context.Context) (*MigrationStatus, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize version table: %w", err)
	}

	available, err := m.scanner.ScanMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}

	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied versions: %w", err)
	}

	if err := validateSequence(available, applied); err != nil {
		return nil, err
	}

	appliedByVersion := make(map[int]AppliedMigration, len(applied))
	for _, a := range applied {
		appliedByVersion[versionNumber(a.Version)] = a
	}

	status := &MigrationStatus{AppliedMigrations: applied}
	for _, migration := range available {
		if _, ok := appliedByVersion[versionNumber(migration.Version)]; ok {
			status.CurrentVersion = migration.Version
			continue
		}
		status.PendingMigrations = append(status.PendingMigrations, migration)
	}
	status.PendingCount = len(status.PendingMigrations)

	return status, nil
}

// validateSequence rejects gaps in the available versions, applied versions
// with no matching file, and applied files whose content has changed.
func validateSequence(available []Migration, applied []AppliedMigration) error {
	byVersion := make(map[int]Migration, len(available))
	for i, migration := range available {
		n := versionNumber(migration.Version)
		if i > 0 && n != versionNumber(available[i-1].Version)+1 {
			return fmt.Errorf("%w: missing migration version %03d in sequence",
				ErrVersionConflict, versionNumber(available[i-1].Version)+1)
		}
		byVersion[n] = migration
	}

	for _, a := range applied {
		migration, ok := byVersion[versionNumber(a.Version)]
		if !ok {
			return fmt.Errorf("%w: applied migration %s not found in available migrations",
				ErrVersionConflict, a.Version)
		}
		if a.Checksum != "" && a.Checksum != migration.Checksum {
			return NewMigrationError(migration.Version, migration.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}

	return nil
}
