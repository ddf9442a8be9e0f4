package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/axonops/openapi-diagram/internal/cache"
	"github.com/axonops/openapi-diagram/internal/diagram"
	"github.com/axonops/openapi-diagram/internal/metrics"
	"github.com/axonops/openapi-diagram/internal/openapi"
	"github.com/axonops/openapi-diagram/internal/storage"
	"github.com/axonops/openapi-diagram/internal/storage/memory"
)

const petstore = `
openapi: 3.0.3
info: {title: Petstore, version: "1.0.0"}
paths:
  /pets:
    get:
      parameters:
        - name: limit
          in: query
          schema: {type: integer, format: int32}
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Pet'
components:
  schemas:
    Pet:
      title: Pet
      type: object
      required: [name]
      properties:
        name: {type: string}
        owner:
          $ref: '#/components/schemas/Pet'
`

// setupTestRegistry creates a test registry with memory storage, caches and metrics.
func setupTestRegistry(t *testing.T) (*Registry, *metrics.Metrics, *cache.GraphCache) {
	t.Helper()
	m := metrics.New()
	graphs := cache.NewGraphCache(16, time.Hour)
	reg := New(memory.NewStore(),
		WithGraphCache(graphs),
		WithDocumentCache(cache.NewDocumentCache(16, time.Hour)),
		WithMetrics(m),
		WithLoadOptions(openapi.DefaultLoadOptions()),
	)
	return reg, m, graphs
}

func counter(t *testing.T, m interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if out.Counter != nil {
		return out.GetCounter().GetValue()
	}
	return out.GetGauge().GetValue()
}

// --- Publish tests ---

func TestPublish_AndGetDocument(t *testing.T) {
	reg, m, _ := setupTestRegistry(t)
	ctx := context.Background()

	rec, err := reg.Publish(ctx, "petstore", "1.0.0", []byte(petstore))
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if rec.Title != "Petstore" {
		t.Errorf("Expected title Petstore, got %q", rec.Title)
	}
	if rec.OpenAPI != "3.0.3" {
		t.Errorf("Expected openapi 3.0.3, got %q", rec.OpenAPI)
	}
	if len(rec.Fingerprint) != 64 {
		t.Errorf("Expected a sha256 fingerprint, got %q", rec.Fingerprint)
	}

	got, err := reg.GetDocument(ctx, "petstore", "1.0.0")
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if got.Content != petstore {
		t.Error("Expected stored content to match the published document")
	}

	if v := counter(t, m.DocumentsTotal); v != 1 {
		t.Errorf("Expected documents gauge 1, got %v", v)
	}
	if v := counter(t, m.PublishesTotal.WithLabelValues("success")); v != 1 {
		t.Errorf("Expected 1 successful publish, got %v", v)
	}
}

func TestPublish_InvalidDocument(t *testing.T) {
	reg, m, _ := setupTestRegistry(t)

	_, err := reg.Publish(context.Background(), "petstore", "1.0.0", []byte("- just\n- a list\n"))
	if !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("Expected ErrInvalidDocument, got %v", err)
	}
	if !errors.Is(err, openapi.ErrInvalidDocument) {
		t.Errorf("Expected the loader error to stay wrapped, got %v", err)
	}
	if v := counter(t, m.PublishesTotal.WithLabelValues("failure")); v != 1 {
		t.Errorf("Expected 1 failed publish, got %v", v)
	}
}

func TestPublish_Duplicate(t *testing.T) {
	reg, _, _ := setupTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.Publish(ctx, "petstore", "1.0.0", []byte(petstore)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	_, err := reg.Publish(ctx, "petstore", "1.0.0", []byte(petstore))
	if !errors.Is(err, storage.ErrDocumentExists) {
		t.Errorf("Expected ErrDocumentExists, got %v", err)
	}
}

func TestPublish_InvalidKey(t *testing.T) {
	reg, _, _ := setupTestRegistry(t)

	_, err := reg.Publish(context.Background(), "pet store", "1.0.0", []byte(petstore))
	if !errors.Is(err, storage.ErrInvalidPackage) {
		t.Errorf("Expected ErrInvalidPackage, got %v", err)
	}
}

// --- Listing tests ---

func TestListPackagesAndVersions(t *testing.T) {
	reg, _, _ := setupTestRegistry(t)
	ctx := context.Background()

	for _, v := range []string{"1.0.0", "1.1.0"} {
		if _, err := reg.Publish(ctx, "petstore", v, []byte(petstore)); err != nil {
			t.Fatalf("Publish(%s) failed: %v", v, err)
		}
	}

	pkgs, err := reg.ListPackages(ctx)
	if err != nil {
		t.Fatalf("ListPackages failed: %v", err)
	}
	if len(pkgs) != 1 || pkgs[0].Name != "petstore" || pkgs[0].LatestVersion != "1.1.0" {
		t.Errorf("Unexpected packages: %+v", pkgs)
	}

	versions, err := reg.ListVersions(ctx, "petstore")
	if err != nil {
		t.Fatalf("ListVersions failed: %v", err)
	}
	if len(versions) != 2 {
		t.Errorf("Expected 2 versions, got %d", len(versions))
	}

	if _, err := reg.ListVersions(ctx, "unknown"); !errors.Is(err, storage.ErrPackageNotFound) {
		t.Errorf("Expected ErrPackageNotFound, got %v", err)
	}
}

// --- Diagram tests ---

func TestDiagram_WholeDocument(t *testing.T) {
	reg, _, _ := setupTestRegistry(t)
	ctx := context.Background()
	reg.Publish(ctx, "petstore", "1.0.0", []byte(petstore))

	res, err := reg.Diagram(ctx, "petstore", "1.0.0", nil)
	if err != nil {
		t.Fatalf("Diagram failed: %v", err)
	}
	if res.Package != "petstore" || res.Version != "1.0.0" {
		t.Errorf("Expected package/version on the result, got %s/%s", res.Package, res.Version)
	}
	if res.Graph.ClassByName("Pet") == nil {
		t.Error("Expected a Pet class")
	}
	if res.Graph.ClassByName("Parameter limit") == nil {
		t.Error("Expected the primitive parameter to be wrapped in a class")
	}
	if res.Root != nil || res.Navigation != nil {
		t.Error("Expected no navigation for an empty scope")
	}
}

func TestDiagram_Scoped(t *testing.T) {
	reg, m, _ := setupTestRegistry(t)
	ctx := context.Background()
	reg.Publish(ctx, "petstore", "1.0.0", []byte(petstore))

	scope := diagram.MustParseScope("/paths/~1pets/get/responses/200")
	res, err := reg.Diagram(ctx, "petstore", "1.0.0", scope)
	if err != nil {
		t.Fatalf("Diagram failed: %v", err)
	}
	if res.Root == nil || res.Root.Name != "Pet" {
		t.Fatalf("Expected navigation to select Pet, got %+v", res.Root)
	}
	if res.Graph.ClassByName("Parameter limit") != nil {
		t.Error("Expected the out-of-scope parameter to be skipped")
	}
	if v := counter(t, m.NavigationsTotal.WithLabelValues("matched")); v != 1 {
		t.Errorf("Expected 1 matched navigation, got %v", v)
	}
}

func TestDiagram_NoMatchedNodes(t *testing.T) {
	reg, _, _ := setupTestRegistry(t)
	ctx := context.Background()
	reg.Publish(ctx, "petstore", "1.0.0", []byte(petstore))

	res, err := reg.Diagram(ctx, "petstore", "1.0.0", diagram.MustParseScope("/paths/~1orders"))
	if err != nil {
		t.Fatalf("Expected navigation misses not to fail the build, got %v", err)
	}
	if res.Navigation == nil || res.Navigation.Reason != diagram.ReasonNoMatchedNodes {
		t.Errorf("Expected no_matched_nodes, got %+v", res.Navigation)
	}
	if len(res.Graph.Classes) != 0 {
		t.Errorf("Expected an empty graph, got %d classes", len(res.Graph.Classes))
	}
}

func TestDiagram_Cached(t *testing.T) {
	reg, m, graphs := setupTestRegistry(t)
	ctx := context.Background()
	reg.Publish(ctx, "petstore", "1.0.0", []byte(petstore))

	first, err := reg.Diagram(ctx, "petstore", "1.0.0", nil)
	if err != nil {
		t.Fatalf("Diagram failed: %v", err)
	}
	second, err := reg.Diagram(ctx, "petstore", "1.0.0", nil)
	if err != nil {
		t.Fatalf("Diagram failed: %v", err)
	}

	if first.Cached {
		t.Error("Expected the first build not to be cached")
	}
	if !second.Cached || second.Graph != first.Graph {
		t.Error("Expected the second request to reuse the cached graph")
	}
	if v := counter(t, m.BuildsTotal.WithLabelValues("success")); v != 1 {
		t.Errorf("Expected exactly 1 build, got %v", v)
	}
	if graphs.Stats().Size != 1 {
		t.Errorf("Expected 1 cached graph, got %d", graphs.Stats().Size)
	}
}

func TestDiagram_SameContentSharesGraph(t *testing.T) {
	reg, m, _ := setupTestRegistry(t)
	ctx := context.Background()
	reg.Publish(ctx, "petstore", "1.0.0", []byte(petstore))
	reg.Publish(ctx, "petstore-copy", "1.0.0", []byte(petstore))

	reg.Diagram(ctx, "petstore", "1.0.0", nil)
	res, err := reg.Diagram(ctx, "petstore-copy", "1.0.0", nil)
	if err != nil {
		t.Fatalf("Diagram failed: %v", err)
	}
	if !res.Cached {
		t.Error("Expected identical documents to share a cached graph")
	}
	if v := counter(t, m.BuildsTotal.WithLabelValues("success")); v != 1 {
		t.Errorf("Expected exactly 1 build, got %v", v)
	}
}

func TestDiagram_NotFound(t *testing.T) {
	reg, _, _ := setupTestRegistry(t)

	_, err := reg.Diagram(context.Background(), "nope", "1.0.0", nil)
	if !errors.Is(err, storage.ErrPackageNotFound) {
		t.Errorf("Expected ErrPackageNotFound, got %v", err)
	}
}

func TestDiagram_Concurrent(t *testing.T) {
	reg, _, _ := setupTestRegistry(t)
	ctx := context.Background()
	reg.Publish(ctx, "petstore", "1.0.0", []byte(petstore))

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := reg.Diagram(ctx, "petstore", "1.0.0", nil)
			if err != nil {
				errs <- err
				return
			}
			if res.Graph.ClassByName("Pet") == nil {
				errs <- errors.New("missing Pet class")
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent diagram: %v", err)
	}
}

func TestBuildDiagram_AdHoc(t *testing.T) {
	reg, _, _ := setupTestRegistry(t)

	res, err := reg.BuildDiagram(context.Background(), []byte(petstore), nil)
	if err != nil {
		t.Fatalf("BuildDiagram failed: %v", err)
	}
	if res.Package != "" {
		t.Errorf("Expected no package for an ad-hoc build, got %q", res.Package)
	}
	if res.Graph.ClassByName("Pet") == nil {
		t.Error("Expected a Pet class")
	}

	if _, err := reg.BuildDiagram(context.Background(), []byte("{"), nil); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("Expected ErrInvalidDocument, got %v", err)
	}
}

// --- Delete tests ---

func TestDeleteDocument_InvalidatesCache(t *testing.T) {
	reg, m, graphs := setupTestRegistry(t)
	ctx := context.Background()
	reg.Publish(ctx, "petstore", "1.0.0", []byte(petstore))
	reg.Diagram(ctx, "petstore", "1.0.0", nil)

	if err := reg.DeleteDocument(ctx, "petstore", "1.0.0"); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	if graphs.Stats().Size != 0 {
		t.Errorf("Expected cached graphs to be dropped, got %d", graphs.Stats().Size)
	}
	if _, err := reg.GetDocument(ctx, "petstore", "1.0.0"); !errors.Is(err, storage.ErrPackageNotFound) {
		t.Errorf("Expected ErrPackageNotFound, got %v", err)
	}
	if v := counter(t, m.DocumentsTotal); v != 0 {
		t.Errorf("Expected documents gauge 0, got %v", v)
	}

	if err := reg.DeleteDocument(ctx, "petstore", "1.0.0"); !errors.Is(err, storage.ErrPackageNotFound) {
		t.Errorf("Expected ErrPackageNotFound on second delete, got %v", err)
	}
}

// --- Misc ---

func TestParseScope(t *testing.T) {
	scope, err := ParseScope("#/paths/~1pets/get")
	if err != nil {
		t.Fatalf("ParseScope failed: %v", err)
	}
	if scope.String() != "/paths/~1pets/get" {
		t.Errorf("Expected /paths/~1pets/get, got %s", scope.String())
	}

	empty, err := ParseScope("")
	if err != nil || !empty.IsEmpty() {
		t.Errorf("Expected empty scope, got %v (%v)", empty, err)
	}

	if _, err := ParseScope("paths"); !errors.Is(err, ErrInvalidScope) {
		t.Errorf("Expected ErrInvalidScope, got %v", err)
	}
}

func TestNew_WithoutOptions(t *testing.T) {
	reg := New(memory.NewStore())
	ctx := context.Background()

	if !reg.IsHealthy(ctx) {
		t.Error("Expected registry to be healthy")
	}
	if _, err := reg.Publish(ctx, "petstore", "1.0.0", []byte(petstore)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	res, err := reg.Diagram(ctx, "petstore", "1.0.0", nil)
	if err != nil {
		t.Fatalf("Diagram failed: %v", err)
	}
	if res.Cached {
		t.Error("Expected no caching without a graph cache")
	}
	reg.RefreshMetrics(ctx)
}

func TestCleanupCaches(t *testing.T) {
	graphs := cache.NewGraphCache(16, time.Nanosecond)
	documents := cache.NewDocumentCache(16, time.Nanosecond)
	reg := New(memory.NewStore(), WithGraphCache(graphs), WithDocumentCache(documents))
	ctx := context.Background()

	if _, err := reg.Publish(ctx, "petstore", "1.0.0", []byte(petstore)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if _, err := reg.Diagram(ctx, "petstore", "1.0.0", nil); err != nil {
		t.Fatalf("Diagram failed: %v", err)
	}
	time.Sleep(time.Millisecond)

	if removed := reg.CleanupCaches(); removed == 0 {
		t.Error("Expected expired entries to be removed")
	}
	if graphs.Stats().Size != 0 || documents.Size() != 0 {
		t.Error("Expected both caches to be empty")
	}
}

type downStore struct {
	*memory.Store
}

func (downStore) IsHealthy(context.Context) bool { return false }

func TestReady(t *testing.T) {
	ctx := context.Background()

	if err := New(memory.NewStore()).Ready(ctx); err != nil {
		t.Errorf("Expected a ready registry, got %v", err)
	}

	err := New(downStore{memory.NewStore()}, WithBackendName("postgresql")).Ready(ctx)
	if !errors.Is(err, storage.ErrStorageUnhealthy) {
		t.Fatalf("Expected ErrStorageUnhealthy, got %v", err)
	}
	if err.Error() != "storage backend is unhealthy: postgresql" {
		t.Errorf("Unexpected error message %q", err.Error())
	}
}
