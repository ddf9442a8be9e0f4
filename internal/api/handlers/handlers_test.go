package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/axonops/openapi-diagram/internal/api/types"
	"github.com/axonops/openapi-diagram/internal/registry"
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

const petstoreJSON = `{"openapi":"3.0.3","info":{"title":"Tiny","version":"1"},"paths":{}}`

func setupTestHandler(t *testing.T) *Handler {
	t.Helper()
	return New(registry.New(memory.NewStore()))
}

func setupRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.HealthCheck)
	r.Get("/health/live", h.LivenessCheck)
	r.Get("/health/ready", h.ReadinessCheck)
	r.Get("/v1/metadata/version", h.GetServerVersion)
	r.Get("/packages", h.ListPackages)
	r.Get("/packages/{package}/versions", h.ListVersions)
	r.Put("/packages/{package}/versions/{version}", h.PublishDocument)
	r.Get("/packages/{package}/versions/{version}", h.GetDocument)
	r.Delete("/packages/{package}/versions/{version}", h.DeleteDocument)
	r.Get("/packages/{package}/versions/{version}/document", h.GetRawDocument)
	r.Get("/packages/{package}/versions/{version}/diagram", h.GetDiagram)
	r.Post("/diagrams", h.BuildDiagram)
	return r
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func publish(t *testing.T, r http.Handler, pkg, version, content string) {
	t.Helper()
	w := do(r, "PUT", "/packages/"+pkg+"/versions/"+version, content)
	if w.Code != http.StatusCreated {
		t.Fatalf("publish failed: %d %s", w.Code, w.Body.String())
	}
}

func decodeErrorResponse(t *testing.T, w *httptest.ResponseRecorder) types.ErrorResponse {
	t.Helper()
	var resp types.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

func TestHealthChecks(t *testing.T) {
	r := setupRouter(setupTestHandler(t))

	for _, path := range []string{"/", "/health/live", "/health/ready"} {
		w := do(r, "GET", path, "")
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s: expected application/json, got %s", path, ct)
		}
	}
}

func TestGetServerVersion(t *testing.T) {
	h := NewWithConfig(registry.New(memory.NewStore()), Config{Version: "1.2.3", Commit: "abc123"})
	w := do(setupRouter(h), "GET", "/v1/metadata/version", "")

	var resp types.ServerVersionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Version != "1.2.3" || resp.Commit != "abc123" {
		t.Errorf("Unexpected version response %+v", resp)
	}
}

func TestPublishDocument(t *testing.T) {
	r := setupRouter(setupTestHandler(t))

	w := do(r, "PUT", "/packages/petstore/versions/1.0.0", petstore)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp types.DocumentResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Package != "petstore" || resp.Version != "1.0.0" {
		t.Errorf("Unexpected key %s/%s", resp.Package, resp.Version)
	}
	if resp.Title != "Petstore" || resp.OpenAPI != "3.0.3" {
		t.Errorf("Unexpected metadata %+v", resp)
	}
	if resp.Fingerprint == "" || resp.ID == "" {
		t.Error("Expected fingerprint and id")
	}
	if resp.Content != "" {
		t.Error("Expected publish response without content")
	}
}

func TestPublishDocument_Errors(t *testing.T) {
	r := setupRouter(setupTestHandler(t))
	publish(t, r, "petstore", "1.0.0", petstore)

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCode   int
	}{
		{"duplicate", "/packages/petstore/versions/1.0.0", petstore, http.StatusConflict, types.ErrorCodeDocumentExists},
		{"empty body", "/packages/petstore/versions/2.0.0", "", http.StatusUnprocessableEntity, types.ErrorCodeInvalidDocument},
		{"not openapi", "/packages/petstore/versions/2.0.0", "just: yaml", http.StatusUnprocessableEntity, types.ErrorCodeInvalidDocument},
		{"invalid package", "/packages/" + url.PathEscape("pet store") + "/versions/1.0.0", petstore, http.StatusUnprocessableEntity, types.ErrorCodeInvalidPackage},
		{"invalid version", "/packages/petstore/versions/" + url.PathEscape("1 0"), petstore, http.StatusUnprocessableEntity, types.ErrorCodeInvalidVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, "PUT", tt.path, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if resp := decodeErrorResponse(t, w); resp.ErrorCode != tt.wantCode {
				t.Errorf("Expected error code %d, got %d", tt.wantCode, resp.ErrorCode)
			}
		})
	}
}

func TestPublishDocument_TooLarge(t *testing.T) {
	h := NewWithConfig(registry.New(memory.NewStore()), Config{MaxUploadBytes: 16})
	w := do(setupRouter(h), "PUT", "/packages/petstore/versions/1.0.0", petstore)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("Expected 413, got %d", w.Code)
	}
	if resp := decodeErrorResponse(t, w); resp.ErrorCode != types.ErrorCodeRequestTooLarge {
		t.Errorf("Expected error code %d, got %d", types.ErrorCodeRequestTooLarge, resp.ErrorCode)
	}
}

func TestGetDocument(t *testing.T) {
	r := setupRouter(setupTestHandler(t))
	publish(t, r, "petstore", "1.0.0", petstore)

	w := do(r, "GET", "/packages/petstore/versions/1.0.0", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp types.DocumentResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Content != petstore {
		t.Error("Expected the stored content to be returned unchanged")
	}

	w = do(r, "GET", "/packages/petstore/versions/9.9.9", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", w.Code)
	}
	if resp := decodeErrorResponse(t, w); resp.ErrorCode != types.ErrorCodeVersionNotFound {
		t.Errorf("Expected version not found, got %d", resp.ErrorCode)
	}

	w = do(r, "GET", "/packages/unknown/versions/1.0.0", "")
	if resp := decodeErrorResponse(t, w); resp.ErrorCode != types.ErrorCodePackageNotFound {
		t.Errorf("Expected package not found, got %d", resp.ErrorCode)
	}
}

func TestGetRawDocument(t *testing.T) {
	r := setupRouter(setupTestHandler(t))
	publish(t, r, "petstore", "1.0.0", petstore)
	publish(t, r, "tiny", "1", petstoreJSON)

	w := do(r, "GET", "/packages/petstore/versions/1.0.0/document", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/yaml" {
		t.Errorf("Expected application/yaml, got %s", ct)
	}
	if w.Body.String() != petstore {
		t.Error("Expected the raw document")
	}

	w = do(r, "GET", "/packages/tiny/versions/1/document", "")
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %s", ct)
	}
}

func TestListPackagesAndVersions(t *testing.T) {
	r := setupRouter(setupTestHandler(t))

	w := do(r, "GET", "/packages", "")
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("Expected empty list, got %s", w.Body.String())
	}

	publish(t, r, "petstore", "1.0.0", petstore)
	publish(t, r, "petstore", "1.1.0", petstore)
	publish(t, r, "tiny", "1", petstoreJSON)

	var pkgs []types.PackageResponse
	json.NewDecoder(do(r, "GET", "/packages", "").Body).Decode(&pkgs)
	if len(pkgs) != 2 {
		t.Fatalf("Expected 2 packages, got %d", len(pkgs))
	}
	if pkgs[0].Name != "petstore" || pkgs[0].VersionCount != 2 || pkgs[0].LatestVersion != "1.1.0" {
		t.Errorf("Unexpected package summary %+v", pkgs[0])
	}

	var versions []types.DocumentResponse
	json.NewDecoder(do(r, "GET", "/packages/petstore/versions", "").Body).Decode(&versions)
	if len(versions) != 2 || versions[0].Version != "1.0.0" || versions[1].Version != "1.1.0" {
		t.Errorf("Unexpected versions %+v", versions)
	}

	w = do(r, "GET", "/packages/unknown/versions", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestDeleteDocument(t *testing.T) {
	r := setupRouter(setupTestHandler(t))
	publish(t, r, "petstore", "1.0.0", petstore)

	w := do(r, "DELETE", "/packages/petstore/versions/1.0.0", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", w.Code)
	}
	w = do(r, "DELETE", "/packages/petstore/versions/1.0.0", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 on second delete, got %d", w.Code)
	}
}

func TestGetDiagram(t *testing.T) {
	r := setupRouter(setupTestHandler(t))
	publish(t, r, "petstore", "1.0.0", petstore)

	w := do(r, "GET", "/packages/petstore/versions/1.0.0/diagram", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp types.DiagramResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Package != "petstore" || resp.Version != "1.0.0" || resp.Scope != "" {
		t.Errorf("Unexpected diagram header %+v", resp)
	}
	if resp.Navigation != nil {
		t.Error("Expected no navigation for an unscoped diagram")
	}

	var pet *types.ClassResponse
	for i := range resp.Classes {
		if resp.Classes[i].Name == "Pet" {
			pet = &resp.Classes[i]
		}
	}
	if pet == nil {
		t.Fatal("Expected a Pet class")
	}
	props := make(map[string]types.PropertyResponse)
	for _, p := range pet.Properties {
		props[p.Name] = p
	}
	if !props["name"].Required {
		t.Error("Expected required name property")
	}
	if owner := props["owner"]; len(owner.SharedNames) != 1 || owner.SharedNames[0] != "Pet" {
		t.Errorf("Expected owner to reference the shared Pet schema, got %v", owner.SharedNames)
	}
	if len(resp.Relations) == 0 || len(resp.Roots) == 0 {
		t.Error("Expected relations and roots")
	}
}

func TestGetDiagram_Scoped(t *testing.T) {
	r := setupRouter(setupTestHandler(t))
	publish(t, r, "petstore", "1.0.0", petstore)

	scope := url.QueryEscape("/paths/~1pets/get/responses/200")
	w := do(r, "GET", "/packages/petstore/versions/1.0.0/diagram?subgraph=true&scope="+scope, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp types.DiagramResponse
	json.NewDecoder(w.Body).Decode(&resp)

	if resp.Navigation == nil || resp.Navigation.ClassName != "Pet" {
		t.Fatalf("Expected navigation to Pet, got %+v", resp.Navigation)
	}
	found := false
	for _, c := range resp.Classes {
		if c.Key == resp.Navigation.ClassKey {
			found = true
		}
		if c.Name == "Parameter limit" {
			t.Error("Expected out-of-scope classes to be excluded")
		}
	}
	if !found {
		t.Error("Expected the subgraph to contain the selected class")
	}
}

func TestGetDiagram_NavigationMiss(t *testing.T) {
	r := setupRouter(setupTestHandler(t))
	publish(t, r, "petstore", "1.0.0", petstore)

	w := do(r, "GET", "/packages/petstore/versions/1.0.0/diagram?scope="+url.QueryEscape("/paths/~1orders"), "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp types.DiagramResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Navigation == nil || resp.Navigation.Error != "no_matched_nodes" {
		t.Errorf("Expected no_matched_nodes, got %+v", resp.Navigation)
	}
}

func TestGetDiagram_Errors(t *testing.T) {
	r := setupRouter(setupTestHandler(t))
	publish(t, r, "petstore", "1.0.0", petstore)

	w := do(r, "GET", "/packages/petstore/versions/1.0.0/diagram?scope=paths", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d", w.Code)
	}
	if resp := decodeErrorResponse(t, w); resp.ErrorCode != types.ErrorCodeInvalidScope {
		t.Errorf("Expected invalid scope, got %d", resp.ErrorCode)
	}

	w = do(r, "GET", "/packages/petstore/versions/1.0.0/diagram?subgraph=maybe", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for bad subgraph flag, got %d", w.Code)
	}

	w = do(r, "GET", "/packages/petstore/versions/2.0.0/diagram", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestBuildDiagram(t *testing.T) {
	r := setupRouter(setupTestHandler(t))

	body, _ := json.Marshal(types.DiagramRequest{Document: petstore, Scope: "/components/schemas/Pet"})
	req := httptest.NewRequest("POST", "/diagrams", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp types.DiagramResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Package != "" || resp.Fingerprint == "" {
		t.Errorf("Expected an unstored build with fingerprint, got %+v", resp)
	}
	if resp.Scope != "/components/schemas/Pet" {
		t.Errorf("Expected scope to be echoed, got %q", resp.Scope)
	}

	// Nothing was stored.
	var pkgs []types.PackageResponse
	json.NewDecoder(do(r, "GET", "/packages", "").Body).Decode(&pkgs)
	if len(pkgs) != 0 {
		t.Errorf("Expected no packages, got %d", len(pkgs))
	}
}

func TestBuildDiagram_Errors(t *testing.T) {
	r := setupRouter(setupTestHandler(t))

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"malformed json", "{", types.ErrorCodeInvalidRequest},
		{"missing document", `{"scope":"/paths"}`, types.ErrorCodeInvalidDocument},
		{"invalid document", `{"document":"- a\n- b"}`, types.ErrorCodeInvalidDocument},
		{"invalid scope", `{"document":"openapi: 3.0.0","scope":"nope"}`, types.ErrorCodeInvalidScope},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, "POST", "/diagrams", tt.body)
			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("Expected 422, got %d: %s", w.Code, w.Body.String())
			}
			if resp := decodeErrorResponse(t, w); resp.ErrorCode != tt.wantCode {
				t.Errorf("Expected error code %d, got %d", tt.wantCode, resp.ErrorCode)
			}
		})
	}
}

func TestDocumentContentType(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{`{"openapi":"3.0.0"}`, "application/json"},
		{"\n  {\"openapi\":\"3.0.0\"}", "application/json"},
		{"openapi: 3.0.0", "application/yaml"},
		{"", "application/yaml"},
	}
	for _, tt := range tests {
		if got := documentContentType(tt.content); got != tt.want {
			t.Errorf("documentContentType(%q) = %s, want %s", tt.content, got, tt.want)
		}
	}
}
