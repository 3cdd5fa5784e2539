package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/meeting-tracker/internal/persistence"
	"github.com/example/meeting-tracker/internal/persistence/sqlite/migration"
)

// Storage bundles the SQLite repositories behind one connection pool.
type Storage struct {
	*UserRepository
	*LocationRepository
	*MeetingRepository
	*DocumentRepository
	*AttendeeRepository

	pool   *ConnectionPool
	logger *zap.Logger
}

var (
	_ persistence.UserRepository     = (*Storage)(nil)
	_ persistence.LocationRepository = (*Storage)(nil)
	_ persistence.MeetingRepository  = (*Storage)(nil)
	_ persistence.DocumentRepository = (*Storage)(nil)
	_ persistence.AttendeeRepository = (*Storage)(nil)
)

// Open connects to the database described by config. Call Migrate before
// first use of a fresh database.
func Open(config Config, logger *zap.Logger) (*Storage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}

	return &Storage{
		UserRepository:     NewUserRepository(pool),
		LocationRepository: NewLocationRepository(pool),
		MeetingRepository:  NewMeetingRepository(pool),
		DocumentRepository: NewDocumentRepository(pool),
		AttendeeRepository: NewAttendeeRepository(pool),
		pool:               pool,
		logger:             logger.With(zap.String("component", "sqlite")),
	}, nil
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

// Ping checks the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// DB exposes the underlying handle for tests and tooling.
func (s *Storage) DB() *sql.DB {
	return s.pool.DB()
}

// Migrate applies every pending embedded schema migration.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewMigrationManager(
		migration.NewFileScanner(migration.Files, migration.Dir),
		migration.NewSQLiteExecutor(s.pool.DB(), s.logger),
		s.logger,
	)
	if err := manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// MigrationStatus reports applied and pending migrations.
func (s *Storage) MigrationStatus(ctx context.Context) (*migration.MigrationStatus, error) {
	manager := migration.NewMigrationManager(
		migration.NewFileScanner(migration.Files, migration.Dir),
		migration.NewSQLiteExecutor(s.pool.DB(), s.logger),
		s.logger,
	)
	return manager.GetMigrationStatus(ctx)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// timeLayout is fixed-width UTC so stored values sort and compare as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseNullableTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
