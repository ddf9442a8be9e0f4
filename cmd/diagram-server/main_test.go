package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/axonops/openapi-diagram/internal/config"
	"github.com/axonops/openapi-diagram/internal/metrics"
	"github.com/axonops/openapi-diagram/internal/registry"
	"github.com/axonops/openapi-diagram/internal/storage"
)

func TestNewLogger_Formats(t *testing.T) {
	var buf bytes.Buffer
	logger, closeLog := newLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	defer closeLog()
	logger.Info("hello", slog.String("k", "v"))
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("Expected JSON output, got %s", buf.String())
	}

	buf.Reset()
	logger, _ = newLogger(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("Expected info records to be filtered at warn level")
	}
	if !strings.Contains(out, "msg=shown") {
		t.Errorf("Expected text output, got %s", out)
	}
}

func TestNewLogger_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	var buf bytes.Buffer
	logger, closeLog := newLogger(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		File:   config.FileSinkConfig{Path: path, MaxSizeMB: 1},
	}, &buf)
	logger.Info("to both")
	closeLog()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), "to both") || !strings.Contains(buf.String(), "to both") {
		t.Error("Expected the record in stdout and the log file")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRegistryOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	store, err := storage.Create(storage.StorageTypeMemory, cfg.Storage)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	reg := registry.New(store, registryOptions(cfg, metrics.New(), slog.Default())...)

	ctx := context.Background()
	doc := []byte("openapi: 3.0.3\ninfo: {title: t, version: '1'}\npaths: {}\n")
	if _, err := reg.Publish(ctx, "p", "1", doc); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	first, err := reg.Diagram(ctx, "p", "1", nil)
	if err != nil {
		t.Fatalf("Diagram failed: %v", err)
	}
	second, _ := reg.Diagram(ctx, "p", "1", nil)
	if first.Cached || !second.Cached {
		t.Error("Expected the configured graph cache to serve the second build")
	}

	cfg.Cache.Enabled = false
	if n := len(registryOptions(cfg, metrics.New(), slog.Default())); n != 4 {
		t.Errorf("Expected 4 options without caching, got %d", n)
	}
}
