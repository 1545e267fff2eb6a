// Package cli provides the command-line interface for zigi.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/zygotrix/zigi-go/internal/cache"
	"github.com/zygotrix/zigi-go/internal/config"
	"github.com/zygotrix/zigi-go/internal/metrics"
	"github.com/zygotrix/zigi-go/internal/transport"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	configPath string

	// Global config and shared components
	cfg           config.Config
	logger        *slog.Logger
	loggerCleanup func() error
	apiClient     *transport.Client
	store         cache.Store
	collector     *metrics.Collector
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "zigi",
	Short: "Terminal client for the Zygotrix AI chat service",
	Long: `Zigi is a terminal client for the Zygotrix AI chat service.

Stream model responses into an interactive chat view, browse and resume
past conversations, and export transcripts for sharing or archival.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}

		logger, loggerCleanup = config.NewLogger(cfg.LogFile, cfg.LogLevel)
		collector = metrics.NewCollector()

		apiClient = transport.New(transport.Config{
			BaseURL:   cfg.ServerURL,
			AuthToken: cfg.AuthToken,
			Timeout:   cfg.Timeout,
		}, logger)

		store = openStore(cmd.Context())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			if err := store.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close cache: %v\n", err)
			}
		}
		if loggerCleanup != nil {
			_ = loggerCleanup()
		}
	},
}

// openStore connects the Redis snapshot cache when configured, falling
// back to the in-process store.
func openStore(ctx context.Context) cache.Store {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryStore()
	}

	if ctx == nil {
		ctx = context.Background()
	}
	redisStore, err := cache.NewRedisStore(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Warn("redis unavailable, using in-memory cache", "addr", cfg.RedisAddr, "error", err)
		return cache.NewMemoryStore()
	}
	return redisStore
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")

	// Add subcommands
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(exportCmd)
}
