package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/zhaorenjie77/smart-teleprompter/internal/db"
)

func TestDefaults(t *testing.T) {
	cfg := Resolve(New())

	if cfg.BackendURL != DefaultBackendURL {
		t.Errorf("BackendURL = %q", cfg.BackendURL)
	}
	if cfg.Locale != DefaultLocale {
		t.Errorf("Locale = %q", cfg.Locale)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.DaemonSocket == "" || cfg.SettingsDB == "" || cfg.LogFile == "" {
		t.Errorf("paths should have defaults: %+v", cfg)
	}
}

func TestPrecedence(t *testing.T) {
	store, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	store.Set(db.KeyBackendURL, "http://stored:8000")
	store.Set(db.KeyLocale, "en-US")
	store.Set(db.KeyDevice, "Stored Mic")

	t.Setenv("TELEPROMPTER_LOCALE", "ja-JP")
	t.Setenv("TELEPROMPTER_DEVICE", "Env Mic")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("device", "", "")
	if err := flags.Parse([]string{"--device", "Flag Mic"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	v := New()
	if err := v.BindPFlag(db.KeyDevice, flags.Lookup("device")); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := Load(v, store); err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg := Resolve(v)

	if cfg.BackendURL != "http://stored:8000" {
		t.Errorf("BackendURL = %q, want stored value", cfg.BackendURL)
	}
	if cfg.Locale != "ja-JP" {
		t.Errorf("Locale = %q, want env value", cfg.Locale)
	}
	if cfg.Device != "Flag Mic" {
		t.Errorf("Device = %q, want flag value", cfg.Device)
	}
}

func TestUnsetFlagDoesNotShadowStore(t *testing.T) {
	store, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	store.Set(db.KeyBackendURL, "http://stored:8000")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("backend-url", DefaultBackendURL, "")

	v := New()
	v.BindPFlag(db.KeyBackendURL, flags.Lookup("backend-url"))
	Load(v, store)

	if got := Resolve(v).BackendURL; got != "http://stored:8000" {
		t.Errorf("BackendURL = %q, want stored value", got)
	}
}

func TestDefaultLogPathUsesXDG(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/tmp/state")
	want := filepath.Join("/tmp/state", "teleprompter", "teleprompter.log")
	if got := DefaultLogPath(); got != want {
		t.Errorf("DefaultLogPath = %q, want %q", got, want)
	}
}

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "teleprompter.log")
	logger, closer, err := NewLogger(Config{LogFile: path, LogLevel: "debug"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Debug("open", "session", "abc")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "session=abc") {
		t.Errorf("log = %q", data)
	}
}

func TestNewLoggerBadLevel(t *testing.T) {
	_, _, err := NewLogger(Config{LogFile: filepath.Join(t.TempDir(), "x.log"), LogLevel: "loud"})
	if err == nil {
		t.Error("expected error for unknown level")
	}
}
