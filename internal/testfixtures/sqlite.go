package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/example/meeting-tracker/internal/adapters"
	"github.com/example/meeting-tracker/internal/filestore"
	"github.com/example/meeting-tracker/internal/persistence/sqlite"
)

// SQLiteHarness bundles a migrated temporary database with an upload root
// and scratch directory for integration-style tests.
type SQLiteHarness struct {
	Storage *sqlite.Storage
	Files   *filestore.Local
	Clock   *Clock
	Tokens  *KeyTokens
	Logger  *zap.Logger

	cleanup func()
}

// HarnessOption configures a SQLiteHarness.
type HarnessOption func(*SQLiteHarness)

// WithClock sets the clock the file store sweeps against.
func WithClock(clock *Clock) HarnessOption {
	return func(h *SQLiteHarness) {
		h.Clock = clock
	}
}

// WithLogger sets the logger handed to storage and services.
func WithLogger(logger *zap.Logger) HarnessOption {
	return func(h *SQLiteHarness) {
		h.Logger = logger
	}
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens and migrates a database file under tb.TempDir and
// creates the upload and scratch directories beside it. Storage keys are
// drawn from Tokens so tests can predict file names. Close is registered
// with tb.Cleanup.
func NewSQLiteHarness(tb testing.TB, opts ...HarnessOption) *SQLiteHarness {
	tb.Helper()

	harness := &SQLiteHarness{
		Clock:  NewClock(ReferenceTime()),
		Tokens: NewKeyTokens("key"),
		Logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(harness)
	}

	dir := tb.TempDir()
	storage, err := sqlite.Open(sqlite.DefaultConfig(filepath.Join(dir, "meetings.db")), harness.Logger)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	files, err := filestore.NewLocal(
		filepath.Join(dir, "uploads"),
		filepath.Join(dir, "scratch"),
		harness.Logger,
		filestore.WithClock(harness.Clock.NowFunc()),
		filestore.WithTokenSource(harness.Tokens.Next),
	)
	if err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to create file store: %v", err)
	}

	harness.Storage = storage
	harness.Files = files
	harness.cleanup = func() {
		_ = storage.Close()
	}

	tb.Cleanup(harness.Close)
	return harness
}

// Services wires the application services against the harness storage and
// files. Download links are root-relative.
func (h *SQLiteHarness) Services() *adapters.Services {
	return adapters.NewServices(h.Storage, h.Files, "", h.Logger)
}
