// Package handlers provides HTTP request handlers.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/axonops/openapi-diagram/internal/api/types"
	"github.com/axonops/openapi-diagram/internal/registry"
	"github.com/axonops/openapi-diagram/internal/storage"
)

// Handler provides HTTP handlers for the diagram service.
type Handler struct {
	registry       *registry.Registry
	version        string
	commit         string
	buildTime      string
	maxUploadBytes int64
}

// Config holds handler configuration.
type Config struct {
	Version   string
	Commit    string
	BuildTime string
	// MaxUploadBytes limits request bodies; zero means 10 MiB.
	MaxUploadBytes int64
}

const defaultMaxUploadBytes = 10 << 20

// New creates a new Handler.
func New(reg *registry.Registry) *Handler {
	return NewWithConfig(reg, Config{Version: "dev"})
}

// NewWithConfig creates a new Handler with configuration.
func NewWithConfig(reg *registry.Registry, cfg Config) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{
		registry:       reg,
		version:        cfg.Version,
		commit:         cfg.Commit,
		buildTime:      cfg.BuildTime,
		maxUploadBytes: cfg.MaxUploadBytes,
	}
}

// HealthCheck handles GET /
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{})
}

// LivenessCheck handles GET /health/live
// Always returns 200; confirms the process is alive and not deadlocked.
func (h *Handler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

// ReadinessCheck handles GET /health/ready
// Returns 200 when storage is healthy, 503 when not.
func (h *Handler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Ready(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "DOWN",
			"reason": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

// GetServerVersion handles GET /v1/metadata/version
func (h *Handler) GetServerVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.ServerVersionResponse{
		Version:   h.version,
		Commit:    h.commit,
		BuildTime: h.buildTime,
	})
}

// ListPackages handles GET /packages
func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	pkgs, err := h.registry.ListPackages(r.Context())
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	resp := make([]types.PackageResponse, len(pkgs))
	for i, p := range pkgs {
		resp[i] = types.PackageResponse{
			Name:          p.Name,
			VersionCount:  p.VersionCount,
			LatestVersion: p.LatestVersion,
			UpdatedAt:     p.UpdatedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListVersions handles GET /packages/{package}/versions
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.registry.ListVersions(r.Context(), chi.URLParam(r, "package"))
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	resp := make([]types.DocumentResponse, len(versions))
	for i, rec := range versions {
		resp[i] = documentResponse(rec, false)
	}
	writeJSON(w, http.StatusOK, resp)
}

// PublishDocument handles PUT /packages/{package}/versions/{version}
// The body is the raw JSON or YAML document.
func (h *Handler) PublishDocument(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	rec, err := h.registry.Publish(r.Context(), chi.URLParam(r, "package"), chi.URLParam(r, "version"), body)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, documentResponse(rec, false))
}

// GetDocument handles GET /packages/{package}/versions/{version}
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	rec, err := h.registry.GetDocument(r.Context(), chi.URLParam(r, "package"), chi.URLParam(r, "version"))
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentResponse(rec, true))
}

// GetRawDocument handles GET /packages/{package}/versions/{version}/document
func (h *Handler) GetRawDocument(w http.ResponseWriter, r *http.Request) {
	rec, err := h.registry.GetDocument(r.Context(), chi.URLParam(r, "package"), chi.URLParam(r, "version"))
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	w.Header().Set("Content-Type", documentContentType(rec.Content))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, rec.Content)
}

// DeleteDocument handles DELETE /packages/{package}/versions/{version}
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.DeleteDocument(r.Context(), chi.URLParam(r, "package"), chi.URLParam(r, "version")); err != nil {
		writeRegistryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readBody reads a size-limited request body, writing the error response itself.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, types.ErrorCodeRequestTooLarge, "Request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, types.ErrorCodeInvalidRequest, "Failed to read request body")
		return nil, false
	}
	if len(body) == 0 {
		writeError(w, http.StatusUnprocessableEntity, types.ErrorCodeInvalidDocument, "Empty document")
		return nil, false
	}
	return body, true
}

func documentResponse(rec *storage.DocumentRecord, withContent bool) types.DocumentResponse {
	resp := types.DocumentResponse{
		ID:          rec.ID,
		Package:     rec.Package,
		Version:     rec.Version,
		Title:       rec.Title,
		OpenAPI:     rec.OpenAPI,
		Fingerprint: rec.Fingerprint,
		CreatedAt:   rec.CreatedAt,
	}
	if withContent {
		resp.Content = rec.Content
	}
	return resp
}

func documentContentType(content string) string {
	for _, c := range content {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		case '{':
			return "application/json"
		default:
			return "application/yaml"
		}
	}
	return "application/yaml"
}

// writeRegistryError maps registry and storage errors to HTTP responses.
func writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrPackageNotFound):
		writeError(w, http.StatusNotFound, types.ErrorCodePackageNotFound, "Package not found")
	case errors.Is(err, storage.ErrVersionNotFound):
		writeError(w, http.StatusNotFound, types.ErrorCodeVersionNotFound, "Version not found")
	case errors.Is(err, storage.ErrDocumentExists):
		writeError(w, http.StatusConflict, types.ErrorCodeDocumentExists, "Document version already exists")
	case errors.Is(err, storage.ErrInvalidPackage):
		writeError(w, http.StatusUnprocessableEntity, types.ErrorCodeInvalidPackage, "Invalid package name")
	case errors.Is(err, storage.ErrInvalidVersion):
		writeError(w, http.StatusUnprocessableEntity, types.ErrorCodeInvalidVersion, "Invalid version")
	case errors.Is(err, registry.ErrInvalidDocument):
		writeError(w, http.StatusUnprocessableEntity, types.ErrorCodeInvalidDocument, err.Error())
	case errors.Is(err, registry.ErrInvalidScope):
		writeError(w, http.StatusUnprocessableEntity, types.ErrorCodeInvalidScope, err.Error())
	case errors.Is(err, registry.ErrBuildFailed):
		writeError(w, http.StatusInternalServerError, types.ErrorCodeBuildFailed, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, types.ErrorCodeStorageError, err.Error())
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{
		ErrorCode: code,
		Message:   message,
	})
}
