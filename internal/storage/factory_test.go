package storage

import (
	"testing"

	"github.com/axonops/openapi-diagram/internal/config"
)

func withFactories(t *testing.T) {
	t.Helper()
	orig := factories
	factories = make(map[StorageType]Factory)
	t.Cleanup(func() { factories = orig })
}

func TestRegister_AndCreate(t *testing.T) {
	withFactories(t)

	var got config.StorageConfig
	Register("test-backend", func(cfg config.StorageConfig) (Storage, error) {
		got = cfg
		return nil, nil
	})

	_, err := Create("test-backend", config.StorageConfig{Type: "test-backend"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Type != "test-backend" {
		t.Errorf("factory did not receive the storage config, got %+v", got)
	}
}

func TestCreate_PostgresAlias(t *testing.T) {
	withFactories(t)

	called := false
	Register(StorageTypePostgres, func(cfg config.StorageConfig) (Storage, error) {
		called = true
		return nil, nil
	})

	if _, err := Create("postgres", config.StorageConfig{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected the postgresql factory to serve the postgres alias")
	}
}

func TestCreate_UnknownType(t *testing.T) {
	withFactories(t)

	if _, err := Create("nonexistent", config.StorageConfig{}); err == nil {
		t.Error("expected error for unknown storage type")
	}
}

func TestSupportedTypes(t *testing.T) {
	withFactories(t)

	dummy := func(cfg config.StorageConfig) (Storage, error) { return nil, nil }
	Register("type-b", dummy)
	Register("type-a", dummy)

	types := SupportedTypes()
	if len(types) != 2 || types[0] != "type-a" || types[1] != "type-b" {
		t.Errorf("expected [type-a type-b], got %v", types)
	}
	if !IsSupported("type-a") {
		t.Error("expected type-a to be supported")
	}
	if IsSupported("type-c") {
		t.Error("expected type-c to not be supported")
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		pkg, version string
		want         error
	}{
		{"petstore", "1.0.0", nil},
		{"pet_store-v2", "2024.01+build.7", nil},
		{"", "1.0.0", ErrInvalidPackage},
		{"pet/store", "1.0.0", ErrInvalidPackage},
		{"petstore", "", ErrInvalidVersion},
		{"petstore", "1.0 beta", ErrInvalidVersion},
	}

	for _, tt := range tests {
		if err := ValidateKey(tt.pkg, tt.version); err != tt.want {
			t.Errorf("ValidateKey(%q, %q) = %v, want %v", tt.pkg, tt.version, err, tt.want)
		}
	}
}
