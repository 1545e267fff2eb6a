package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// Chat server connection
	ServerURL string
	AuthToken string
	Timeout   time.Duration

	// Exchange behavior
	Stream       bool
	Model        string
	EnabledTools []string

	// Submit gating
	DebounceWindow  time.Duration
	DuplicateWindow time.Duration

	// Rendering
	FlushInterval time.Duration

	// Redis snapshot cache (disabled when Addr is empty)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// fileConfig is the YAML layout of the optional config file. Environment
// variables override file values.
type fileConfig struct {
	ServerURL       string   `yaml:"server_url"`
	AuthToken       string   `yaml:"auth_token"`
	Timeout         string   `yaml:"timeout"`
	Stream          *bool    `yaml:"stream"`
	Model           string   `yaml:"model"`
	EnabledTools    []string `yaml:"enabled_tools"`
	DebounceWindow  string   `yaml:"debounce_window"`
	DuplicateWindow string   `yaml:"duplicate_window"`
	FlushInterval   string   `yaml:"flush_interval"`
	Redis           struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "zigi", "config.yaml")
}

// Load builds the configuration: defaults, then the config file at path
// (skipped when absent), then environment variables. An empty path selects
// DefaultPath.
func Load(path string) (Config, error) {
	cfg := Config{
		ServerURL:       "http://localhost:8000",
		Timeout:         5 * time.Minute,
		Stream:          true,
		DebounceWindow:  300 * time.Millisecond,
		DuplicateWindow: 2 * time.Second,
		FlushInterval:   50 * time.Millisecond,
		LogFile:         "/tmp/zigi.log",
		LogLevel:        slog.LevelInfo,
	}

	if path == "" {
		path = DefaultPath()
	}
	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.ServerURL != "" {
		cfg.ServerURL = fc.ServerURL
	}
	if fc.AuthToken != "" {
		cfg.AuthToken = fc.AuthToken
	}
	if fc.Model != "" {
		cfg.Model = fc.Model
	}
	if fc.Stream != nil {
		cfg.Stream = *fc.Stream
	}
	if len(fc.EnabledTools) > 0 {
		cfg.EnabledTools = fc.EnabledTools
	}
	if fc.Redis.Addr != "" {
		cfg.RedisAddr = fc.Redis.Addr
		cfg.RedisPassword = fc.Redis.Password
		cfg.RedisDB = fc.Redis.DB
	}
	if fc.LogFile != "" {
		cfg.LogFile = fc.LogFile
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = parseLogLevel(fc.LogLevel)
	}

	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{
		{fc.Timeout, &cfg.Timeout},
		{fc.DebounceWindow, &cfg.DebounceWindow},
		{fc.DuplicateWindow, &cfg.DuplicateWindow},
		{fc.FlushInterval, &cfg.FlushInterval},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse duration %q in %s: %w", d.raw, path, err)
		}
		*d.dst = parsed
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.ServerURL = getEnv("ZIGI_SERVER_URL", cfg.ServerURL)
	cfg.AuthToken = getEnv("ZIGI_AUTH_TOKEN", cfg.AuthToken)
	cfg.Model = getEnv("ZIGI_MODEL", cfg.Model)
	cfg.Stream = getEnvBool("ZIGI_STREAM", cfg.Stream)

	if tools := os.Getenv("ZIGI_ENABLED_TOOLS"); tools != "" {
		cfg.EnabledTools = splitList(tools)
	}

	cfg.Timeout = getEnvDuration("ZIGI_TIMEOUT", cfg.Timeout)
	cfg.DebounceWindow = getEnvDuration("ZIGI_DEBOUNCE_WINDOW", cfg.DebounceWindow)
	cfg.DuplicateWindow = getEnvDuration("ZIGI_DUPLICATE_WINDOW", cfg.DuplicateWindow)
	cfg.FlushInterval = getEnvDuration("ZIGI_FLUSH_INTERVAL", cfg.FlushInterval)

	cfg.RedisAddr = getEnv("ZIGI_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("ZIGI_REDIS_PASSWORD", cfg.RedisPassword)
	if raw := os.Getenv("ZIGI_REDIS_DB"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			cfg.RedisDB = n
		}
	}

	cfg.LogFile = getEnv("ZIGI_LOG_FILE", cfg.LogFile)
	if raw := os.Getenv("ZIGI_LOG_LEVEL"); raw != "" {
		cfg.LogLevel = parseLogLevel(raw)
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return defaultVal
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
