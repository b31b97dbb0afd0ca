package handler

import (
	"net/http"

	"pdf-page-viewer/internal/domain"
	"pdf-page-viewer/internal/service"

	"github.com/gorilla/mux"
)

// ExplorerHandler handles document tree and cache HTTP requests
type ExplorerHandler struct {
	explorer *service.ExplorerService
	logger   domain.Logger
}

// NewExplorerHandler creates a new explorer handler
func NewExplorerHandler(explorer *service.ExplorerService, logger domain.Logger) *ExplorerHandler {
	return &ExplorerHandler{
		explorer: explorer,
		logger:   logger,
	}
}

// GetChildren handles GET /api/v1/nodes/{id}/children
func (h *ExplorerHandler) GetChildren(w http.ResponseWriter, r *http.Request) {
	children, err := h.explorer.GetChildren(mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, h.logger, "Failed to get children", err)
		return
	}
	if children == nil {
		children = []domain.Node{}
	}
	writeJSON(w, http.StatusOK, children)
}

// GetDocument handles GET /api/v1/documents/{id}
func (h *ExplorerHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.explorer.GetDocument(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, h.logger, "Failed to get document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// SearchDocuments handles GET /api/v1/documents/search?q=
func (h *ExplorerHandler) SearchDocuments(w http.ResponseWriter, r *http.Request) {
	results, err := h.explorer.SearchDocuments(r.URL.Query().Get("q"))
	if err != nil {
		writeAppError(w, h.logger, "Failed to search documents", err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// EvictDocument handles DELETE /api/v1/documents/{id}/cache
func (h *ExplorerHandler) EvictDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.explorer.EvictDocument(mux.Vars(r)["id"]); err != nil {
		writeAppError(w, h.logger, "Failed to evict document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearCache handles DELETE /api/v1/documents/cache
func (h *ExplorerHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"cleared": h.explorer.ClearCache()})
}
