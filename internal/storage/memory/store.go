// Package memory provides an in-memory storage implementation.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/axonops/openapi-diagram/internal/config"
	"github.com/axonops/openapi-diagram/internal/storage"
)

func init() {
	storage.Register(storage.StorageTypeMemory, func(config.StorageConfig) (storage.Storage, error) {
		return NewStore(), nil
	})
}

// Store implements the storage.Storage interface using in-memory data structures.
type Store struct {
	mu sync.RWMutex

	// packages maps a package name to its versions in publication order
	packages map[string][]*storage.DocumentRecord
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		packages: make(map[string][]*storage.DocumentRecord),
	}
}

// CreateDocument stores a new document version.
func (s *Store) CreateDocument(ctx context.Context, record *storage.DocumentRecord) error {
	if err := storage.ValidateKey(record.Package, record.Version); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	versions := s.packages[record.Package]
	for _, existing := range versions {
		if existing.Version == record.Version {
			return storage.ErrDocumentExists
		}
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.CreatedAt = time.Now().UTC()

	stored := *record
	s.packages[record.Package] = append(versions, &stored)
	return nil
}

// GetDocument retrieves a document by package and version.
func (s *Store) GetDocument(ctx context.Context, pkg, version string) (*storage.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions, ok := s.packages[pkg]
	if !ok {
		return nil, storage.ErrPackageNotFound
	}
	for _, rec := range versions {
		if rec.Version == version {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, storage.ErrVersionNotFound
}

// ListPackages returns a summary of every package, sorted by name.
func (s *Store) ListPackages(ctx context.Context) ([]storage.PackageSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]storage.PackageSummary, 0, len(s.packages))
	for name, versions := range s.packages {
		latest := versions[len(versions)-1]
		summaries = append(summaries, storage.PackageSummary{
			Name:          name,
			VersionCount:  len(versions),
			LatestVersion: latest.Version,
			UpdatedAt:     latest.CreatedAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Name < summaries[j].Name
	})
	return summaries, nil
}

// ListVersions returns every version of a package in publication order.
func (s *Store) ListVersions(ctx context.Context, pkg string) ([]*storage.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions, ok := s.packages[pkg]
	if !ok {
		return nil, storage.ErrPackageNotFound
	}
	result := make([]*storage.DocumentRecord, len(versions))
	for i, rec := range versions {
		cp := *rec
		result[i] = &cp
	}
	return result, nil
}

// DeleteDocument removes a document version. The package disappears with its last version.
func (s *Store) DeleteDocument(ctx context.Context, pkg, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions, ok := s.packages[pkg]
	if !ok {
		return storage.ErrPackageNotFound
	}
	for i, rec := range versions {
		if rec.Version != version {
			continue
		}
		versions = append(versions[:i:i], versions[i+1:]...)
		if len(versions) == 0 {
			delete(s.packages, pkg)
		} else {
			s.packages[pkg] = versions
		}
		return nil
	}
	return storage.ErrVersionNotFound
}

// Count returns the number of packages and documents.
func (s *Store) Count(ctx context.Context) (storage.Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := storage.Counts{Packages: len(s.packages)}
	for _, versions := range s.packages {
		counts.Documents += len(versions)
	}
	return counts, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// IsHealthy always reports true.
func (s *Store) IsHealthy(ctx context.Context) bool {
	return true
}
