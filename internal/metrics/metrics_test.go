package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	return m.GetCounter().GetValue()
}

func histogramCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m dto.Metric
	if err := h.Write(&m); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestNew(t *testing.T) {
	m := New()
	if m == nil {
		t.Fatal("Expected non-nil Metrics")
	}
	if m.RequestsTotal == nil {
		t.Error("Expected RequestsTotal to be initialized")
	}
	if m.BuildsTotal == nil {
		t.Error("Expected BuildsTotal to be initialized")
	}
	if m.Registry() == nil {
		t.Error("Expected a registry")
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()

	// Record some metrics so they appear in output
	m.RequestsTotal.WithLabelValues("GET", "/packages", "200").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), "openapi_diagram_requests_total") {
		t.Error("Expected metrics output to contain openapi_diagram_requests_total")
	}
	if !strings.Contains(string(body), "go_") {
		t.Error("Expected metrics output to contain Go runtime metrics")
	}
}

func TestMetrics_Middleware(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/packages/{package}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest("GET", "/packages/petstore", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Errorf("Expected status 418, got %d", rr.Code)
	}
	got := counterValue(t, m.RequestsTotal.WithLabelValues("GET", "/packages/{package}", "418"))
	if got != 1 {
		t.Errorf("Expected one request recorded under the route pattern, got %v", got)
	}
}

func TestMetrics_RecordBuild(t *testing.T) {
	m := New()

	m.RecordBuild(10*time.Millisecond, 4, 3, nil)
	m.RecordBuild(5*time.Millisecond, 0, 0, errors.New("boom"))

	if v := counterValue(t, m.BuildsTotal.WithLabelValues("success")); v != 1 {
		t.Errorf("Expected 1 successful build, got %v", v)
	}
	if v := counterValue(t, m.BuildsTotal.WithLabelValues("failure")); v != 1 {
		t.Errorf("Expected 1 failed build, got %v", v)
	}
	if n := histogramCount(t, m.BuildDuration); n != 2 {
		t.Errorf("Expected 2 duration samples, got %d", n)
	}
	if n := histogramCount(t, m.GraphClasses); n != 1 {
		t.Errorf("Expected 1 class-count sample, got %d", n)
	}
}

func TestMetrics_RecordPublishAndNavigation(t *testing.T) {
	m := New()

	m.RecordPublish(true)
	m.RecordPublish(false)
	m.RecordNavigation("matched")
	m.RecordNavigation("no_matched_nodes")
	m.RecordNavigation("no_matched_nodes")

	if v := counterValue(t, m.PublishesTotal.WithLabelValues("failure")); v != 1 {
		t.Errorf("Expected 1 failed publish, got %v", v)
	}
	if v := counterValue(t, m.NavigationsTotal.WithLabelValues("no_matched_nodes")); v != 2 {
		t.Errorf("Expected 2 unmatched navigations, got %v", v)
	}
}

func TestMetrics_RecordStorageOperation(t *testing.T) {
	m := New()

	m.RecordStorageOperation("memory", "get", 10*time.Millisecond, nil)
	m.RecordStorageOperation("postgresql", "put", 50*time.Millisecond, io.EOF)

	if v := counterValue(t, m.StorageErrors.WithLabelValues("postgresql", "put")); v != 1 {
		t.Errorf("Expected 1 storage error, got %v", v)
	}
	if v := counterValue(t, m.StorageErrors.WithLabelValues("memory", "get")); v != 0 {
		t.Errorf("Expected no memory storage errors, got %v", v)
	}
}

func TestMetrics_RecordCacheAccess(t *testing.T) {
	m := New()

	m.RecordCacheAccess("graph", true)
	m.RecordCacheAccess("graph", false)
	m.RecordCacheAccess("graph", false)

	if v := counterValue(t, m.CacheMisses.WithLabelValues("graph")); v != 2 {
		t.Errorf("Expected 2 misses, got %v", v)
	}
}

func TestMetrics_Gauges(t *testing.T) {
	m := New()

	m.UpdateDocumentCounts(3, 7)
	m.UpdateCacheSize("graph", 12)

	var out dto.Metric
	if err := m.DocumentsTotal.Write(&out); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if out.GetGauge().GetValue() != 7 {
		t.Errorf("Expected 7 documents, got %v", out.GetGauge().GetValue())
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/packages", "/packages"},
		{"/packages/petstore", "/packages/{package}"},
		{"/packages/petstore/versions", "/packages/{package}/versions"},
		{"/packages/petstore/versions/1.0.0", "/packages/{package}/versions/{version}"},
		{"/packages/petstore/versions/1.0.0/diagram", "/packages/{package}/versions/{version}/diagram"},
		{"/diagrams", "/diagrams"},
		{"/health/live", "/health/live"},
	}

	for _, tt := range tests {
		result := normalizePath(tt.input)
		if result != tt.expected {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
