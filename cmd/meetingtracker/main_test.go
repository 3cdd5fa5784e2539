package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/meeting-tracker/internal/config"
	"github.com/example/meeting-tracker/internal/filestore"
	"github.com/example/meeting-tracker/internal/testfixtures"
)

// useTempEnv points every configured path into a fresh temp dir.
func useTempEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvConfigFile, "")
	t.Setenv("MEETINGS_DATABASE_PATH", filepath.Join(dir, "meetings.db"))
	t.Setenv("MEETINGS_UPLOAD_DIR", filepath.Join(dir, "uploads"))
	t.Setenv("MEETINGS_SCRATCH_DIR", filepath.Join(dir, "scratch"))
	t.Setenv("MEETINGS_LOG_LEVEL", "error")
	t.Setenv("MEETINGS_SCRATCH_MAX_AGE", "1h")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrateCommand(t *testing.T) {
	useTempEnv(t)

	for i := 0; i < 2; i++ {
		out, err := execute(t, "migrate")
		if err != nil {
			t.Fatalf("migrate run %d: %v", i+1, err)
		}
		if !strings.Contains(out, "schema version 002 (2 applied, 0 pending)") {
			t.Fatalf("unexpected output on run %d: %q", i+1, out)
		}
	}
}

func TestMigrateCommandRejectsInvalidConfig(t *testing.T) {
	useTempEnv(t)
	t.Setenv("MEETINGS_HTTP_PORT", "70000")

	if _, err := execute(t, "migrate"); err == nil || !strings.Contains(err.Error(), "MEETINGS_HTTP_PORT") {
		t.Fatalf("expected port validation error, got %v", err)
	}
}

func TestMigrateCommandReadsConfigFlag(t *testing.T) {
	useTempEnv(t)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "from-file.db")
	configPath := filepath.Join(dir, "meetings.yaml")
	t.Setenv("MEETINGS_DATABASE_PATH", "")
	if err := os.WriteFile(configPath, []byte("database_path: "+dbPath+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := execute(t, "--config", configPath, "migrate"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected database at %s: %v", dbPath, err)
	}
}

func TestSweepScratchCommand(t *testing.T) {
	dir := useTempEnv(t)
	scratch := filepath.Join(dir, "scratch")
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	stale := filepath.Join(scratch, "bundle-stale.zip")
	fresh := filepath.Join(scratch, "bundle-fresh.zip")
	for _, path := range []string{stale, fresh} {
		if err := os.WriteFile(path, []byte("zip"), 0o600); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	out, err := execute(t, "sweep-scratch")
	if err != nil {
		t.Fatalf("sweep-scratch: %v", err)
	}
	if !strings.Contains(out, "removed 1 scratch files") {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale file removed, got %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("expected fresh file kept: %v", err)
	}
}

func TestStartScratchSweeper(t *testing.T) {
	files, err := filestore.NewLocal(t.TempDir(), "", zap.NewNop())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	t.Run("schedules the sweep", func(t *testing.T) {
		cfg := config.Default()
		c, err := startScratchSweeper(cfg, files, zap.NewNop())
		if err != nil {
			t.Fatalf("startScratchSweeper: %v", err)
		}
		defer func() { <-c.Stop().Done() }()
		if len(c.Entries()) != 1 {
			t.Fatalf("expected one entry, got %d", len(c.Entries()))
		}
	})

	t.Run("empty schedule disables it", func(t *testing.T) {
		cfg := config.Default()
		cfg.ScratchSweepSchedule = ""
		c, err := startScratchSweeper(cfg, files, zap.NewNop())
		if err != nil {
			t.Fatalf("startScratchSweeper: %v", err)
		}
		defer func() { <-c.Stop().Done() }()
		if len(c.Entries()) != 0 {
			t.Fatalf("expected no entries, got %d", len(c.Entries()))
		}
	})

	t.Run("bad schedule is an error", func(t *testing.T) {
		cfg := config.Default()
		cfg.ScratchSweepSchedule = "every so often"
		if _, err := startScratchSweeper(cfg, files, zap.NewNop()); err == nil {
			t.Fatalf("expected schedule parse error")
		}
	})
}

func TestNewHandler(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	cfg := config.Default()
	cfg.MaxUploadBytes = 64
	handler := newHandler(cfg, harness.Services(), zap.NewNop())

	t.Run("serves the api", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/meetings", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Fatalf("expected request id header")
		}
	})

	t.Run("limits request bodies", func(t *testing.T) {
		body := `{"title":"` + strings.Repeat("x", 128) + `"}`
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/meetings", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("expected 413, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}
