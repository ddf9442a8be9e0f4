// Package storage provides storage interfaces and implementations for published documents.
package storage

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrPackageNotFound  = errors.New("package not found")
	ErrVersionNotFound  = errors.New("version not found")
	ErrDocumentExists   = errors.New("document version already exists")
	ErrInvalidPackage   = errors.New("invalid package name")
	ErrInvalidVersion   = errors.New("invalid version")
	ErrStorageUnhealthy = errors.New("storage backend is unhealthy")
)

// DocumentRecord represents one published version of an API document.
type DocumentRecord struct {
	ID          string    `json:"id"`
	Package     string    `json:"package"`
	Version     string    `json:"version"`
	Title       string    `json:"title,omitempty"`
	OpenAPI     string    `json:"openapi,omitempty"`
	Content     string    `json:"-"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
}

// PackageSummary describes a package and its published versions.
type PackageSummary struct {
	Name          string    `json:"name"`
	VersionCount  int       `json:"version_count"`
	LatestVersion string    `json:"latest_version"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Counts holds aggregate document counts.
type Counts struct {
	Packages  int
	Documents int
}

// Storage is the document store used by the registry.
// Versions of a package are returned in publication order.
type Storage interface {
	// CreateDocument stores a new document version. It assigns ID and CreatedAt
	// and returns ErrDocumentExists if the package already has that version.
	CreateDocument(ctx context.Context, record *DocumentRecord) error
	GetDocument(ctx context.Context, pkg, version string) (*DocumentRecord, error)
	ListPackages(ctx context.Context) ([]PackageSummary, error)
	ListVersions(ctx context.Context, pkg string) ([]*DocumentRecord, error)
	DeleteDocument(ctx context.Context, pkg, version string) error
	Count(ctx context.Context) (Counts, error)

	// Lifecycle
	Close() error
	IsHealthy(ctx context.Context) bool
}

// ValidateKey checks a package name and version before they are stored.
func ValidateKey(pkg, version string) error {
	if !validSegment(pkg) {
		return ErrInvalidPackage
	}
	if !validSegment(version) {
		return ErrInvalidVersion
	}
	return nil
}

func validSegment(s string) bool {
	if s == "" || len(s) > 255 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == '+':
		default:
			return false
		}
	}
	return true
}
