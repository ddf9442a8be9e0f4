package postgres

import (
	"os"
	"testing"
	"time"

	"github.com/axonops/openapi-diagram/internal/config"
	"github.com/axonops/openapi-diagram/internal/storage"
	"github.com/axonops/openapi-diagram/internal/storage/conformance"
)

func TestFromStorageConfig(t *testing.T) {
	cfg := FromStorageConfig(config.PostgreSQLConfig{
		Host:            "db",
		Database:        "diagrams",
		User:            "app",
		Password:        "secret",
		ConnMaxLifetime: 60,
	})

	if cfg.Host != "db" || cfg.Database != "diagrams" || cfg.Username != "app" {
		t.Errorf("explicit fields not applied: %+v", cfg)
	}
	if cfg.Port != 5432 {
		t.Errorf("expected default port 5432, got %d", cfg.Port)
	}
	if cfg.SSLMode != "disable" {
		t.Errorf("expected default sslmode disable, got %s", cfg.SSLMode)
	}
	if cfg.ConnMaxLifetime != time.Minute {
		t.Errorf("expected 1m conn lifetime, got %v", cfg.ConnMaxLifetime)
	}

	want := "host=db port=5432 dbname=diagrams user=app password=secret sslmode=disable"
	if cfg.DSN() != want {
		t.Errorf("DSN() = %q, want %q", cfg.DSN(), want)
	}
}

func TestConformance(t *testing.T) {
	dsn := os.Getenv("DIAGRAM_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DIAGRAM_TEST_POSTGRES_DSN not set")
	}

	store, err := open(dsn, DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create PostgreSQL store: %v", err)
	}
	defer store.Close()

	conformance.RunAll(t, func() storage.Storage {
		if _, err := store.db.Exec(`TRUNCATE TABLE documents RESTART IDENTITY`); err != nil {
			t.Fatalf("Failed to clean PostgreSQL: %v", err)
		}
		return conformance.NoClose(store)
	})
}
