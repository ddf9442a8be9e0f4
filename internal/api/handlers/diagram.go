package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/axonops/openapi-diagram/internal/api/types"
	"github.com/axonops/openapi-diagram/internal/registry"
)

// GetDiagram handles GET /packages/{package}/versions/{version}/diagram
// The optional scope query parameter is a JSON pointer into the document.
func (h *Handler) GetDiagram(w http.ResponseWriter, r *http.Request) {
	scope, err := registry.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	subgraph, err := parseBoolQuery(r, "subgraph")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, types.ErrorCodeInvalidRequest, "Invalid subgraph parameter")
		return
	}

	res, err := h.registry.Diagram(r.Context(), chi.URLParam(r, "package"), chi.URLParam(r, "version"), scope)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewDiagramResponse(res, subgraph))
}

// BuildDiagram handles POST /diagrams
// The document is built without being stored.
func (h *Handler) BuildDiagram(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	var req types.DiagramRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, types.ErrorCodeInvalidRequest, "Invalid request body")
		return
	}
	if req.Document == "" {
		writeError(w, http.StatusUnprocessableEntity, types.ErrorCodeInvalidDocument, "Empty document")
		return
	}

	scope, err := registry.ParseScope(req.Scope)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	subgraph, err := parseBoolQuery(r, "subgraph")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, types.ErrorCodeInvalidRequest, "Invalid subgraph parameter")
		return
	}

	res, err := h.registry.BuildDiagram(r.Context(), []byte(req.Document), scope)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewDiagramResponse(res, subgraph))
}

func parseBoolQuery(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}
