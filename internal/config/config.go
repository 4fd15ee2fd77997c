// Package config resolves teleprompter settings from flags, environment,
// the settings store and built-in defaults, in that order.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
	"github.com/zhaorenjie77/smart-teleprompter/internal/daemon"
	"github.com/zhaorenjie77/smart-teleprompter/internal/db"
)

// EnvPrefix prefixes environment overrides, e.g. TELEPROMPTER_BACKEND_URL.
const EnvPrefix = "TELEPROMPTER"

// Keys only settable from flags or the environment.
const (
	KeyDaemonSocket = "daemon_socket"
	KeySettingsDB   = "settings_db"
	KeyLogFile      = "log_file"
	KeyLogLevel     = "log_level"
)

const (
	DefaultBackendURL = "http://localhost:8000"
	DefaultLocale     = "zh-CN"
	DefaultLogLevel   = "info"
)

// Config is the resolved configuration.
type Config struct {
	BackendURL   string
	Locale       string
	Device       string
	DaemonSocket string
	SettingsDB   string
	LogFile      string
	LogLevel     string
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(db.KeyBackendURL, DefaultBackendURL)
	v.SetDefault(db.KeyLocale, DefaultLocale)
	v.SetDefault(db.KeyDevice, "")
	v.SetDefault(KeyDaemonSocket, daemon.DefaultSocketPath())
	v.SetDefault(KeySettingsDB, db.DefaultDBPath())
	v.SetDefault(KeyLogFile, DefaultLogPath())
	v.SetDefault(KeyLogLevel, DefaultLogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load applies stored settings on top of the defaults. Flags and the
// environment still take precedence.
func Load(v *viper.Viper, store *db.Store) error {
	settings, err := store.All()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	for _, s := range settings {
		v.SetDefault(s.Key, s.Value)
	}
	return nil
}

// Resolve reads the effective configuration out of v.
func Resolve(v *viper.Viper) Config {
	return Config{
		BackendURL:   v.GetString(db.KeyBackendURL),
		Locale:       v.GetString(db.KeyLocale),
		Device:       v.GetString(db.KeyDevice),
		DaemonSocket: v.GetString(KeyDaemonSocket),
		SettingsDB:   v.GetString(KeySettingsDB),
		LogFile:      v.GetString(KeyLogFile),
		LogLevel:     v.GetString(KeyLogLevel),
	}
}

// DefaultLogPath returns $XDG_STATE_HOME/teleprompter/teleprompter.log,
// falling back to ~/.local/state.
func DefaultLogPath() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, "teleprompter", "teleprompter.log")
}

// NewLogger opens the log file and returns a logger writing to it. The
// caller closes the returned closer on exit.
func NewLogger(cfg Config) (*log.Logger, io.Closer, error) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("parse log level: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	logger := log.NewWithOptions(f, log.Options{
		ReportTimestamp: true,
		Prefix:          "teleprompter",
		Level:           level,
	})
	return logger, f, nil
}
