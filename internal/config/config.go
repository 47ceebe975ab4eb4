// Package config loads runtime settings from MUDRA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends for the vocabulary.
const (
	StorageSQLite = "sqlite"
	StorageFile   = "file"
)

// ErrInvalid is returned by Validate for settings that cannot be used.
var ErrInvalid = errors.New("invalid configuration")

// Config holds the runtime settings.
type Config struct {
	Addr    string `env:"MUDRA_ADDR" envDefault:":8080"`
	DataDir string `env:"MUDRA_DATA_DIR" envDefault:"~/.mudra"`

	// Storage selects where the vocabulary lives: a settings row in
	// mudra.db, or a signs.json file (zstd-compressed when Compress is set).
	Storage  string `env:"MUDRA_STORAGE" envDefault:"sqlite"`
	Compress bool   `env:"MUDRA_COMPRESS" envDefault:"false"`

	Threshold       float64 `env:"MUDRA_THRESHOLD" envDefault:"0.04"`
	CameraID        int     `env:"MUDRA_CAMERA_ID" envDefault:"0"`
	MotionThreshold float64 `env:"MUDRA_MOTION_THRESHOLD" envDefault:"1.0"`

	PluginDir     string        `env:"MUDRA_PLUGIN_DIR"`
	SpeechPlugin  string        `env:"MUDRA_SPEECH_PLUGIN" envDefault:"speech"`
	PluginTimeout time.Duration `env:"MUDRA_PLUGIN_TIMEOUT" envDefault:"5s"`

	LogLevel  string `env:"MUDRA_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"MUDRA_LOG_FORMAT" envDefault:"text"`

	Tray      bool   `env:"MUDRA_TRAY" envDefault:"true"`
	StaticDir string `env:"MUDRA_STATIC_DIR"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the environment, expands "~" in paths, fills derived
// defaults and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	dataDir, err := expandHome(cfg.DataDir)
	if err != nil {
		return Config{}, err
	}
	cfg.DataDir = dataDir

	if cfg.PluginDir == "" {
		cfg.PluginDir = filepath.Join(cfg.DataDir, "plugins")
	} else if cfg.PluginDir, err = expandHome(cfg.PluginDir); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that env parsing cannot.
func (c Config) Validate() error {
	switch c.Storage {
	case StorageSQLite, StorageFile:
	default:
		return fmt.Errorf("%w: MUDRA_STORAGE must be %q or %q, got %q", ErrInvalid, StorageSQLite, StorageFile, c.Storage)
	}
	if c.Threshold <= 0 {
		return fmt.Errorf("%w: MUDRA_THRESHOLD must be positive, got %v", ErrInvalid, c.Threshold)
	}
	if c.MotionThreshold < 0 {
		return fmt.Errorf("%w: MUDRA_MOTION_THRESHOLD must not be negative, got %v", ErrInvalid, c.MotionThreshold)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: MUDRA_LOG_FORMAT must be text or json, got %q", ErrInvalid, c.LogFormat)
	}
	return nil
}

// DBPath is the SQLite database location.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "mudra.db")
}

// VocabularyPath is the vocabulary file used by the file storage backend.
func (c Config) VocabularyPath() string {
	if c.Compress {
		return filepath.Join(c.DataDir, "signs.json.zst")
	}
	return filepath.Join(c.DataDir, "signs.json")
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
