// Package conformance provides a shared test suite that every storage backend must pass.
// Usage: call RunAll(t, factory) where factory creates a fresh store for each sub-test.
package conformance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/axonops/openapi-diagram/internal/storage"
)

// StoreFactory creates a fresh, empty storage.Storage for each sub-test.
type StoreFactory func() storage.Storage

// RunAll runs every conformance test category against the given store factory.
func RunAll(t *testing.T, newStore StoreFactory) {
	t.Helper()

	t.Run("Document", func(t *testing.T) { RunDocumentTests(t, newStore) })
	t.Run("Package", func(t *testing.T) { RunPackageTests(t, newStore) })
	t.Run("Error", func(t *testing.T) { RunErrorTests(t, newStore) })
}

func newRecord(pkg, version string) *storage.DocumentRecord {
	return &storage.DocumentRecord{
		Package:     pkg,
		Version:     version,
		Title:       "Petstore",
		OpenAPI:     "3.0.3",
		Content:     "openapi: 3.0.3\ninfo:\n  title: Petstore\n  version: " + version + "\npaths: {}\n",
		Fingerprint: "fp-" + pkg + "-" + version,
	}
}

// RunDocumentTests covers create, get and delete of single documents.
func RunDocumentTests(t *testing.T, newStore StoreFactory) {
	t.Helper()

	t.Run("CreateAndGet", func(t *testing.T) {
		store := newStore()
		defer store.Close()
		ctx := context.Background()

		rec := newRecord("petstore", "1.0.0")
		before := time.Now().Add(-time.Minute)
		if err := store.CreateDocument(ctx, rec); err != nil {
			t.Fatalf("CreateDocument failed: %v", err)
		}
		if rec.ID == "" {
			t.Error("expected an ID to be assigned")
		}
		if rec.CreatedAt.Before(before) {
			t.Errorf("expected CreatedAt to be set, got %v", rec.CreatedAt)
		}

		got, err := store.GetDocument(ctx, "petstore", "1.0.0")
		if err != nil {
			t.Fatalf("GetDocument failed: %v", err)
		}
		if got.ID != rec.ID {
			t.Errorf("ID mismatch: got %s, want %s", got.ID, rec.ID)
		}
		if got.Content != rec.Content {
			t.Errorf("Content mismatch: got %q, want %q", got.Content, rec.Content)
		}
		if got.Fingerprint != rec.Fingerprint || got.Title != "Petstore" || got.OpenAPI != "3.0.3" {
			t.Errorf("metadata mismatch: got %+v", got)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		store := newStore()
		defer store.Close()
		ctx := context.Background()

		for _, v := range []string{"1.0.0", "1.1.0"} {
			if err := store.CreateDocument(ctx, newRecord("petstore", v)); err != nil {
				t.Fatalf("CreateDocument(%s) failed: %v", v, err)
			}
		}

		if err := store.DeleteDocument(ctx, "petstore", "1.0.0"); err != nil {
			t.Fatalf("DeleteDocument failed: %v", err)
		}
		if _, err := store.GetDocument(ctx, "petstore", "1.0.0"); !errors.Is(err, storage.ErrVersionNotFound) {
			t.Errorf("expected ErrVersionNotFound after delete, got %v", err)
		}

		if err := store.DeleteDocument(ctx, "petstore", "1.1.0"); err != nil {
			t.Fatalf("DeleteDocument failed: %v", err)
		}
		if _, err := store.ListVersions(ctx, "petstore"); !errors.Is(err, storage.ErrPackageNotFound) {
			t.Errorf("expected package to disappear with its last version, got %v", err)
		}
	})

	t.Run("RecreateAfterDelete", func(t *testing.T) {
		store := newStore()
		defer store.Close()
		ctx := context.Background()

		if err := store.CreateDocument(ctx, newRecord("petstore", "1.0.0")); err != nil {
			t.Fatalf("CreateDocument failed: %v", err)
		}
		if err := store.DeleteDocument(ctx, "petstore", "1.0.0"); err != nil {
			t.Fatalf("DeleteDocument failed: %v", err)
		}
		if err := store.CreateDocument(ctx, newRecord("petstore", "1.0.0")); err != nil {
			t.Errorf("expected a deleted version to be publishable again, got %v", err)
		}
	})
}

// RunPackageTests covers listing and counting.
func RunPackageTests(t *testing.T, newStore StoreFactory) {
	t.Helper()

	t.Run("ListPackagesAndVersions", func(t *testing.T) {
		store := newStore()
		defer store.Close()
		ctx := context.Background()

		for _, rec := range []*storage.DocumentRecord{
			newRecord("zoo", "1.0.0"),
			newRecord("petstore", "1.0.0"),
			newRecord("petstore", "0.9.0"),
			newRecord("petstore", "2.0.0"),
		} {
			if err := store.CreateDocument(ctx, rec); err != nil {
				t.Fatalf("CreateDocument failed: %v", err)
			}
		}

		pkgs, err := store.ListPackages(ctx)
		if err != nil {
			t.Fatalf("ListPackages failed: %v", err)
		}
		if len(pkgs) != 2 || pkgs[0].Name != "petstore" || pkgs[1].Name != "zoo" {
			t.Fatalf("expected [petstore zoo], got %+v", pkgs)
		}
		if pkgs[0].VersionCount != 3 {
			t.Errorf("expected 3 versions, got %d", pkgs[0].VersionCount)
		}
		if pkgs[0].LatestVersion != "2.0.0" {
			t.Errorf("expected latest version 2.0.0, got %s", pkgs[0].LatestVersion)
		}

		versions, err := store.ListVersions(ctx, "petstore")
		if err != nil {
			t.Fatalf("ListVersions failed: %v", err)
		}
		want := []string{"1.0.0", "0.9.0", "2.0.0"}
		if len(versions) != len(want) {
			t.Fatalf("expected %d versions, got %d", len(want), len(versions))
		}
		for i, v := range want {
			if versions[i].Version != v {
				t.Errorf("version %d: got %s, want %s (publication order)", i, versions[i].Version, v)
			}
		}
	})

	t.Run("Count", func(t *testing.T) {
		store := newStore()
		defer store.Close()
		ctx := context.Background()

		counts, err := store.Count(ctx)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if counts.Packages != 0 || counts.Documents != 0 {
			t.Errorf("expected empty counts, got %+v", counts)
		}

		store.CreateDocument(ctx, newRecord("a", "1"))
		store.CreateDocument(ctx, newRecord("a", "2"))
		store.CreateDocument(ctx, newRecord("b", "1"))

		counts, err = store.Count(ctx)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if counts.Packages != 2 || counts.Documents != 3 {
			t.Errorf("expected 2 packages and 3 documents, got %+v", counts)
		}
	})

	t.Run("Healthy", func(t *testing.T) {
		store := newStore()
		defer store.Close()

		if !store.IsHealthy(context.Background()) {
			t.Error("expected store to be healthy")
		}
	})
}

// RunErrorTests verifies that every sentinel error is triggered by the appropriate operation.
func RunErrorTests(t *testing.T, newStore StoreFactory) {
	t.Helper()

	t.Run("ErrDocumentExists", func(t *testing.T) {
		store := newStore()
		defer store.Close()
		ctx := context.Background()

		if err := store.CreateDocument(ctx, newRecord("petstore", "1.0.0")); err != nil {
			t.Fatalf("CreateDocument failed: %v", err)
		}
		err := store.CreateDocument(ctx, newRecord("petstore", "1.0.0"))
		if !errors.Is(err, storage.ErrDocumentExists) {
			t.Errorf("expected ErrDocumentExists, got %v", err)
		}
	})

	t.Run("ErrPackageNotFound", func(t *testing.T) {
		store := newStore()
		defer store.Close()
		ctx := context.Background()

		if _, err := store.GetDocument(ctx, "nope", "1.0.0"); !errors.Is(err, storage.ErrPackageNotFound) {
			t.Errorf("GetDocument: expected ErrPackageNotFound, got %v", err)
		}
		if _, err := store.ListVersions(ctx, "nope"); !errors.Is(err, storage.ErrPackageNotFound) {
			t.Errorf("ListVersions: expected ErrPackageNotFound, got %v", err)
		}
		if err := store.DeleteDocument(ctx, "nope", "1.0.0"); !errors.Is(err, storage.ErrPackageNotFound) {
			t.Errorf("DeleteDocument: expected ErrPackageNotFound, got %v", err)
		}
	})

	t.Run("ErrVersionNotFound", func(t *testing.T) {
		store := newStore()
		defer store.Close()
		ctx := context.Background()

		store.CreateDocument(ctx, newRecord("petstore", "1.0.0"))
		if _, err := store.GetDocument(ctx, "petstore", "9.9.9"); !errors.Is(err, storage.ErrVersionNotFound) {
			t.Errorf("GetDocument: expected ErrVersionNotFound, got %v", err)
		}
		if err := store.DeleteDocument(ctx, "petstore", "9.9.9"); !errors.Is(err, storage.ErrVersionNotFound) {
			t.Errorf("DeleteDocument: expected ErrVersionNotFound, got %v", err)
		}
	})

	t.Run("ErrInvalidPackage", func(t *testing.T) {
		store := newStore()
		defer store.Close()

		err := store.CreateDocument(context.Background(), newRecord("bad/name", "1.0.0"))
		if !errors.Is(err, storage.ErrInvalidPackage) {
			t.Errorf("expected ErrInvalidPackage, got %v", err)
		}
	})
}

// NoClose wraps a store so sub-tests sharing one database connection cannot close it.
func NoClose(s storage.Storage) storage.Storage {
	return &noCloseStore{s}
}

type noCloseStore struct {
	storage.Storage
}

func (s *noCloseStore) Close() error { return nil }
