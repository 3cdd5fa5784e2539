package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// EnvConfigFile names the YAML file read when no path is passed to Load.
const EnvConfigFile = "MEETINGS_CONFIG_FILE"

// Config captures the settings of the meeting tracker service.
type Config struct {
	HTTPPort             int           `yaml:"http_port"`
	DatabasePath         string        `yaml:"database_path"`
	UploadDir            string        `yaml:"upload_dir"`
	ScratchDir           string        `yaml:"scratch_dir"`
	PublicBaseURL        string        `yaml:"public_base_url"`
	MaxUploadBytes       int64         `yaml:"max_upload_bytes"`
	LogLevel             string        `yaml:"log_level"`
	ScratchSweepSchedule string        `yaml:"scratch_sweep_schedule"`
	ScratchMaxAge        time.Duration `yaml:"scratch_max_age"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		HTTPPort:             8080,
		DatabasePath:         "data/meetings.db",
		UploadDir:            "data/uploads",
		ScratchDir:           "data/scratch",
		MaxUploadBytes:       100 << 20,
		LogLevel:             "info",
		ScratchSweepSchedule: "@every 1h",
		ScratchMaxAge:        6 * time.Hour,
	}
}

// Load applies, in order, the defaults, the YAML file at path (or at
// $MEETINGS_CONFIG_FILE when path is empty), and MEETINGS_* environment
// variables. Every invalid value is reported in one error.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) == "" {
		path = strings.TrimSpace(os.Getenv(EnvConfigFile))
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	var invalid []string
	applyEnv(&cfg, &invalid)
	invalid = append(invalid, cfg.validate()...)

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("config: invalid values: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: file %s does not exist", path)
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, invalid *[]string) {
	if v, ok := lookup("MEETINGS_HTTP_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			*invalid = append(*invalid, "MEETINGS_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}
	if v, ok := lookup("MEETINGS_DATABASE_PATH"); ok {
		cfg.DatabasePath = v
	}
	if v, ok := lookup("MEETINGS_UPLOAD_DIR"); ok {
		cfg.UploadDir = v
	}
	if v, ok := lookup("MEETINGS_SCRATCH_DIR"); ok {
		cfg.ScratchDir = v
	}
	if v, ok := lookup("MEETINGS_PUBLIC_BASE_URL"); ok {
		cfg.PublicBaseURL = v
	}
	if v, ok := lookup("MEETINGS_MAX_UPLOAD_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			*invalid = append(*invalid, "MEETINGS_MAX_UPLOAD_BYTES")
		} else {
			cfg.MaxUploadBytes = n
		}
	}
	if v, ok := lookup("MEETINGS_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := lookup("MEETINGS_SCRATCH_SWEEP_SCHEDULE"); ok {
		cfg.ScratchSweepSchedule = v
	}
	if v, ok := lookup("MEETINGS_SCRATCH_MAX_AGE"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			*invalid = append(*invalid, "MEETINGS_SCRATCH_MAX_AGE")
		} else {
			cfg.ScratchMaxAge = d
		}
	}
}

func lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func (c Config) validate() []string {
	var invalid []string
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		invalid = append(invalid, "http_port")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		invalid = append(invalid, "database_path")
	}
	if strings.TrimSpace(c.UploadDir) == "" {
		invalid = append(invalid, "upload_dir")
	}
	if strings.TrimSpace(c.ScratchDir) == "" {
		invalid = append(invalid, "scratch_dir")
	}
	if c.MaxUploadBytes < 0 {
		invalid = append(invalid, "max_upload_bytes")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		invalid = append(invalid, "log_level")
	}
	if c.ScratchSweepSchedule != "" {
		if _, err := cron.ParseStandard(c.ScratchSweepSchedule); err != nil {
			invalid = append(invalid, "scratch_sweep_schedule")
		}
	}
	if c.ScratchMaxAge <= 0 {
		invalid = append(invalid, "scratch_max_age")
	}
	return invalid
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
