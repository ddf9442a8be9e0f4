// Package main is the entry point for the diagram server.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/axonops/openapi-diagram/internal/api"
	"github.com/axonops/openapi-diagram/internal/cache"
	"github.com/axonops/openapi-diagram/internal/config"
	"github.com/axonops/openapi-diagram/internal/metrics"
	"github.com/axonops/openapi-diagram/internal/openapi"
	"github.com/axonops/openapi-diagram/internal/registry"
	"github.com/axonops/openapi-diagram/internal/storage"
	_ "github.com/axonops/openapi-diagram/internal/storage/memory"
	_ "github.com/axonops/openapi-diagram/internal/storage/mysql"
	_ "github.com/axonops/openapi-diagram/internal/storage/postgres"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

const cacheCleanupInterval = time.Minute

func main() {
	// Command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("openapi-diagram %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger, closeLog := newLogger(cfg.Logging, os.Stdout)
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("starting diagram server",
		slog.String("version", version),
		slog.String("storage", cfg.Storage.Type),
		slog.String("address", cfg.Address()),
	)

	store, err := storage.Create(storage.StorageType(cfg.Storage.Type), cfg.Storage)
	if err != nil {
		logger.Error("failed to create storage backend", slog.String("error", err.Error()))
		os.Exit(1)
	}

	m := metrics.New()
	reg := registry.New(store, registryOptions(cfg, m, logger)...)
	reg.RefreshMetrics(context.Background())

	server := api.NewServer(cfg, reg, logger,
		api.WithMetrics(m),
		api.WithBuildInfo(version, commit, buildDate),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if cfg.Cache.Enabled {
		go cleanupLoop(ctx, reg, logger)
	}

	// Handle shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// Wait for shutdown signal or error
	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case sig := <-shutdown:
		logger.Info("shutting down", slog.String("signal", sig.String()))
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
		}

		if err := store.Close(); err != nil {
			logger.Error("storage close error", slog.String("error", err.Error()))
		}
	}

	logger.Info("shutdown complete")
}

// registryOptions builds the registry options from configuration.
func registryOptions(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) []registry.Option {
	opts := []registry.Option{
		registry.WithLoadOptions(openapi.LoadOptions{
			MergeAllOf: cfg.Diagram.MergeAllOf,
			Validate:   cfg.Diagram.Validate,
		}),
		registry.WithMetrics(m),
		registry.WithLogger(logger),
		registry.WithBackendName(cfg.Storage.Type),
	}
	if cfg.Cache.Enabled {
		ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
		opts = append(opts,
			registry.WithGraphCache(cache.NewGraphCache(cfg.Cache.MaxEntries, ttl)),
			registry.WithDocumentCache(cache.NewDocumentCache(cfg.Cache.MaxEntries, ttl)),
		)
	}
	return opts
}

func cleanupLoop(ctx context.Context, reg *registry.Registry, logger *slog.Logger) {
	ticker := time.NewTicker(cacheCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := reg.CleanupCaches(); n > 0 {
				logger.Debug("expired cache entries removed", slog.Int("count", n))
			}
			reg.RefreshMetrics(ctx)
		}
	}
}

// newLogger creates the process logger. When a log file is configured, records
// are also written to it with size-based rotation.
func newLogger(cfg config.LoggingConfig, stdout io.Writer) (*slog.Logger, func()) {
	out := stdout
	closeFn := func() {}
	if cfg.File.Path != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}
		out = io.MultiWriter(stdout, rotator)
		closeFn = func() { _ = rotator.Close() }
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return slog.New(handler), closeFn
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
