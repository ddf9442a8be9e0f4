// Package registry provides the document registry and diagram build service.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/axonops/openapi-diagram/internal/cache"
	"github.com/axonops/openapi-diagram/internal/diagram"
	"github.com/axonops/openapi-diagram/internal/metrics"
	"github.com/axonops/openapi-diagram/internal/openapi"
	"github.com/axonops/openapi-diagram/internal/storage"
)

// Cache names used in metrics.
const (
	graphCacheName    = "graph"
	documentCacheName = "document"
)

// Registry publishes documents as package versions and builds their diagrams.
// It is safe for concurrent use.
type Registry struct {
	storage     storage.Storage
	backend     string
	loadOptions openapi.LoadOptions
	documents   *cache.DocumentCache
	graphs      *cache.GraphCache
	metrics     *metrics.Metrics
	logger      *slog.Logger
	builds      singleflight.Group
}

// Option configures a Registry.
type Option func(*Registry)

// WithLoadOptions sets the normalization options used for every document.
func WithLoadOptions(opts openapi.LoadOptions) Option {
	return func(r *Registry) { r.loadOptions = opts }
}

// WithGraphCache enables caching of built graphs.
func WithGraphCache(c *cache.GraphCache) Option {
	return func(r *Registry) { r.graphs = c }
}

// WithDocumentCache enables caching of normalized stored documents.
func WithDocumentCache(c *cache.DocumentCache) Option {
	return func(r *Registry) { r.documents = c }
}

// WithMetrics records build, cache and storage metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithBackendName sets the storage backend label used in metrics.
func WithBackendName(name string) Option {
	return func(r *Registry) { r.backend = name }
}

// New creates a new Registry.
func New(store storage.Storage, opts ...Option) *Registry {
	r := &Registry{
		storage:     store,
		backend:     string(storage.StorageTypeMemory),
		loadOptions: openapi.DefaultLoadOptions(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DiagramResult is a built graph plus the outcome of navigating its scope.
type DiagramResult struct {
	Package     string
	Version     string
	Fingerprint string
	Scope       diagram.Scope
	Graph       *diagram.Graph
	// Root is the class selected by a non-empty scope.
	Root *diagram.SchemaClass
	// Navigation is set when a non-empty scope does not select exactly one class.
	Navigation *diagram.NavigationError
	Cached     bool
}

// Publish parses content and stores it as a new version of pkg.
func (r *Registry) Publish(ctx context.Context, pkg, version string, content []byte) (*storage.DocumentRecord, error) {
	doc, err := r.load(content)
	if err != nil {
		r.recordPublish(false)
		return nil, err
	}

	record := &storage.DocumentRecord{
		Package:     pkg,
		Version:     version,
		Title:       doc.Title,
		OpenAPI:     doc.OpenAPI,
		Content:     string(content),
		Fingerprint: doc.Fingerprint,
	}

	start := time.Now()
	err = r.storage.CreateDocument(ctx, record)
	r.recordStorage("create", start, err)
	if err != nil {
		r.recordPublish(false)
		if errors.Is(err, storage.ErrDocumentExists) || errors.Is(err, storage.ErrInvalidPackage) || errors.Is(err, storage.ErrInvalidVersion) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	if r.documents != nil {
		r.documents.Set(record.Fingerprint, doc)
	}
	r.recordPublish(true)
	r.refreshCounts(ctx)

	r.logger.Info("document published",
		slog.String("package", pkg),
		slog.String("version", version),
		slog.String("fingerprint", record.Fingerprint),
	)
	return record, nil
}

// GetDocument returns a stored document version.
func (r *Registry) GetDocument(ctx context.Context, pkg, version string) (*storage.DocumentRecord, error) {
	start := time.Now()
	rec, err := r.storage.GetDocument(ctx, pkg, version)
	r.recordStorage("get", start, err)
	return rec, err
}

// ListPackages returns every package.
func (r *Registry) ListPackages(ctx context.Context) ([]storage.PackageSummary, error) {
	start := time.Now()
	pkgs, err := r.storage.ListPackages(ctx)
	r.recordStorage("list_packages", start, err)
	return pkgs, err
}

// ListVersions returns every version of pkg in publication order.
func (r *Registry) ListVersions(ctx context.Context, pkg string) ([]*storage.DocumentRecord, error) {
	start := time.Now()
	versions, err := r.storage.ListVersions(ctx, pkg)
	r.recordStorage("list_versions", start, err)
	return versions, err
}

// DeleteDocument removes a document version and drops its cached graphs.
func (r *Registry) DeleteDocument(ctx context.Context, pkg, version string) error {
	rec, err := r.GetDocument(ctx, pkg, version)
	if err != nil {
		return err
	}

	start := time.Now()
	err = r.storage.DeleteDocument(ctx, pkg, version)
	r.recordStorage("delete", start, err)
	if err != nil {
		return err
	}

	if r.documents != nil {
		r.documents.Delete(rec.Fingerprint)
	}
	if r.graphs != nil {
		r.graphs.Invalidate(rec.Fingerprint)
		r.updateCacheSize()
	}
	r.refreshCounts(ctx)

	r.logger.Info("document deleted",
		slog.String("package", pkg),
		slog.String("version", version),
	)
	return nil
}

// Diagram builds the diagram of a stored document version.
func (r *Registry) Diagram(ctx context.Context, pkg, version string, scope diagram.Scope) (*DiagramResult, error) {
	rec, err := r.GetDocument(ctx, pkg, version)
	if err != nil {
		return nil, err
	}

	doc, ok := r.cachedDocument(rec.Fingerprint)
	if !ok {
		doc, err = r.load([]byte(rec.Content))
		if err != nil {
			return nil, err
		}
		if r.documents != nil {
			r.documents.Set(rec.Fingerprint, doc)
		}
	}

	res, err := r.diagram(doc, scope)
	if err != nil {
		return nil, err
	}
	res.Package = pkg
	res.Version = version
	return res, nil
}

// BuildDiagram builds the diagram of a document that is not stored.
func (r *Registry) BuildDiagram(ctx context.Context, content []byte, scope diagram.Scope) (*DiagramResult, error) {
	doc, err := r.load(content)
	if err != nil {
		return nil, err
	}
	return r.diagram(doc, scope)
}

// ParseScope parses a JSON pointer scope. The empty string selects the whole document.
func ParseScope(pointer string) (diagram.Scope, error) {
	scope, err := diagram.ParseScope(pointer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScope, err)
	}
	return scope, nil
}

// IsHealthy returns true if the storage backend is reachable.
func (r *Registry) IsHealthy(ctx context.Context) bool {
	return r.storage.IsHealthy(ctx)
}

// Ready returns storage.ErrStorageUnhealthy, wrapped with the backend name,
// when the storage backend cannot serve requests.
func (r *Registry) Ready(ctx context.Context) error {
	if !r.IsHealthy(ctx) {
		return fmt.Errorf("%w: %s", storage.ErrStorageUnhealthy, r.backend)
	}
	return nil
}

func (r *Registry) load(content []byte) (*openapi.Document, error) {
	doc, err := openapi.Load(content, r.loadOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return doc, nil
}

func (r *Registry) cachedDocument(fingerprint string) (*openapi.Document, bool) {
	if r.documents == nil {
		return nil, false
	}
	doc, ok := r.documents.Get(fingerprint)
	r.recordCache(documentCacheName, ok)
	return doc, ok
}

// diagram returns the graph of doc for scope, from the cache when possible.
// Concurrent builds of the same document and scope are coalesced.
func (r *Registry) diagram(doc *openapi.Document, scope diagram.Scope) (*DiagramResult, error) {
	res := &DiagramResult{Fingerprint: doc.Fingerprint, Scope: scope}

	if r.graphs != nil {
		g, ok := r.graphs.Get(doc.Fingerprint, scope)
		r.recordCache(graphCacheName, ok)
		if ok {
			res.Graph = g
			res.Cached = true
		}
	}

	if res.Graph == nil {
		key := doc.Fingerprint + "#" + scope.String()
		v, err, _ := r.builds.Do(key, func() (interface{}, error) {
			return r.build(doc, scope)
		})
		if err != nil {
			return nil, err
		}
		res.Graph = v.(*diagram.Graph)
	}

	if !scope.IsEmpty() {
		root, err := diagram.Navigate(res.Graph, scope)
		var navErr *diagram.NavigationError
		switch {
		case errors.As(err, &navErr):
			res.Navigation = navErr
			r.recordNavigation(navErr.Reason)
		case err != nil:
			return nil, err
		default:
			res.Root = root
			r.recordNavigation("matched")
		}
	}
	return res, nil
}

func (r *Registry) build(doc *openapi.Document, scope diagram.Scope) (*diagram.Graph, error) {
	start := time.Now()
	g, err := diagram.Transform(doc, scope, diagram.WithLogger(r.logger))
	if r.metrics != nil {
		classes, relations := 0, 0
		if g != nil {
			classes, relations = len(g.Classes), len(g.Relations)
		}
		r.metrics.RecordBuild(time.Since(start), classes, relations, err)
	}
	if err != nil {
		r.logger.Error("diagram build failed",
			slog.String("fingerprint", doc.Fingerprint),
			slog.String("scope", scope.String()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}

	if r.graphs != nil {
		r.graphs.Set(doc.Fingerprint, scope, g)
		r.updateCacheSize()
	}
	return g, nil
}

func (r *Registry) refreshCounts(ctx context.Context) {
	if r.metrics == nil {
		return
	}
	start := time.Now()
	counts, err := r.storage.Count(ctx)
	r.recordStorage("count", start, err)
	if err != nil {
		r.logger.Warn("failed to count documents", slog.String("error", err.Error()))
		return
	}
	r.metrics.UpdateDocumentCounts(counts.Packages, counts.Documents)
}

// RefreshMetrics updates the document gauges from storage.
func (r *Registry) RefreshMetrics(ctx context.Context) {
	r.refreshCounts(ctx)
	r.updateCacheSize()
}

// CleanupCaches drops expired cache entries and returns how many were removed.
func (r *Registry) CleanupCaches() int {
	removed := 0
	if r.graphs != nil {
		removed += r.graphs.CleanupExpired()
	}
	if r.documents != nil {
		removed += r.documents.CleanupExpired()
	}
	r.updateCacheSize()
	return removed
}

func (r *Registry) updateCacheSize() {
	if r.metrics == nil {
		return
	}
	if r.graphs != nil {
		r.metrics.UpdateCacheSize(graphCacheName, r.graphs.Stats().Size)
	}
	if r.documents != nil {
		r.metrics.UpdateCacheSize(documentCacheName, r.documents.Size())
	}
}

func (r *Registry) recordStorage(op string, start time.Time, err error) {
	if r.metrics == nil {
		return
	}
	if errors.Is(err, storage.ErrPackageNotFound) || errors.Is(err, storage.ErrVersionNotFound) ||
		errors.Is(err, storage.ErrDocumentExists) {
		err = nil
	}
	r.metrics.RecordStorageOperation(r.backend, op, time.Since(start), err)
}

func (r *Registry) recordCache(name string, hit bool) {
	if r.metrics != nil {
		r.metrics.RecordCacheAccess(name, hit)
	}
}

func (r *Registry) recordPublish(success bool) {
	if r.metrics != nil {
		r.metrics.RecordPublish(success)
	}
}

func (r *Registry) recordNavigation(result string) {
	if r.metrics != nil {
		r.metrics.RecordNavigation(result)
	}
}
