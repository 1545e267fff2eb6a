package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ServerURL != "http://localhost:8000" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if !cfg.Stream {
		t.Error("Stream default should be true")
	}
	if cfg.DebounceWindow != 300*time.Millisecond {
		t.Errorf("DebounceWindow = %v", cfg.DebounceWindow)
	}
	if cfg.DuplicateWindow != 2*time.Second {
		t.Errorf("DuplicateWindow = %v", cfg.DuplicateWindow)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server_url: https://chat.example.com
auth_token: secret
stream: false
model: gpt-4o
enabled_tools: [search, calculator]
debounce_window: 500ms
redis:
  addr: localhost:6379
  db: 2
log_level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ServerURL != "https://chat.example.com" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.AuthToken != "secret" {
		t.Errorf("AuthToken = %q", cfg.AuthToken)
	}
	if cfg.Stream {
		t.Error("Stream should be false")
	}
	if cfg.Model != "gpt-4o" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if len(cfg.EnabledTools) != 2 || cfg.EnabledTools[0] != "search" {
		t.Errorf("EnabledTools = %v", cfg.EnabledTools)
	}
	if cfg.DebounceWindow != 500*time.Millisecond {
		t.Errorf("DebounceWindow = %v", cfg.DebounceWindow)
	}
	if cfg.RedisAddr != "localhost:6379" || cfg.RedisDB != 2 {
		t.Errorf("Redis = %q db %d", cfg.RedisAddr, cfg.RedisDB)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server_url: https://from-file.example.com\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ZIGI_SERVER_URL", "https://from-env.example.com")
	t.Setenv("ZIGI_STREAM", "false")
	t.Setenv("ZIGI_ENABLED_TOOLS", "search, web ,")
	t.Setenv("ZIGI_DUPLICATE_WINDOW", "5s")
	t.Setenv("ZIGI_LOG_LEVEL", "ERROR")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ServerURL != "https://from-env.example.com" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.Stream {
		t.Error("Stream should be false")
	}
	if len(cfg.EnabledTools) != 2 || cfg.EnabledTools[1] != "web" {
		t.Errorf("EnabledTools = %v", cfg.EnabledTools)
	}
	if cfg.DuplicateWindow != 5*time.Second {
		t.Errorf("DuplicateWindow = %v", cfg.DuplicateWindow)
	}
	if cfg.LogLevel != slog.LevelError {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server_url: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("Load() accepted malformed YAML")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"garbage", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
