package memory

import (
	"context"
	"testing"

	"github.com/axonops/openapi-diagram/internal/config"
	"github.com/axonops/openapi-diagram/internal/storage"
	"github.com/axonops/openapi-diagram/internal/storage/conformance"
)

func TestConformance(t *testing.T) {
	conformance.RunAll(t, func() storage.Storage {
		return NewStore()
	})
}

func TestStore_RegisteredFactory(t *testing.T) {
	store, err := storage.Create(storage.StorageTypeMemory, config.StorageConfig{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, ok := store.(*Store); !ok {
		t.Errorf("expected *memory.Store, got %T", store)
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	rec := &storage.DocumentRecord{Package: "petstore", Version: "1.0.0", Content: "{}", Fingerprint: "fp"}
	if err := store.CreateDocument(ctx, rec); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}

	rec.Content = "mutated"
	got, err := store.GetDocument(ctx, "petstore", "1.0.0")
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if got.Content != "{}" {
		t.Errorf("expected stored record to be isolated from the caller, got %q", got.Content)
	}

	got.Content = "mutated again"
	again, _ := store.GetDocument(ctx, "petstore", "1.0.0")
	if again.Content != "{}" {
		t.Errorf("expected returned record to be a copy, got %q", again.Content)
	}
}

func TestStore_KeepsExplicitID(t *testing.T) {
	store := NewStore()
	rec := &storage.DocumentRecord{ID: "fixed-id", Package: "petstore", Version: "1.0.0"}
	if err := store.CreateDocument(context.Background(), rec); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	if rec.ID != "fixed-id" {
		t.Errorf("expected explicit ID to be kept, got %s", rec.ID)
	}
}
