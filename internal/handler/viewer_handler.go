package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"time"

	"pdf-page-viewer/internal/domain"
	"pdf-page-viewer/internal/service"
	"pdf-page-viewer/internal/viewer"

	"github.com/gorilla/mux"
)

// keepAliveInterval is how often an idle event stream sends a comment line.
const keepAliveInterval = 15 * time.Second

// ViewerHandler handles viewer session HTTP requests
type ViewerHandler struct {
	viewers *service.ViewerService
	logger  domain.Logger
}

// NewViewerHandler creates a new viewer handler
func NewViewerHandler(viewers *service.ViewerService, logger domain.Logger) *ViewerHandler {
	return &ViewerHandler{
		viewers: viewers,
		logger:  logger,
	}
}

type createViewerRequest struct {
	Locator        string  `json:"locator"`
	ViewportHeight float64 `json:"viewport_height"`
}

type createViewerResponse struct {
	ID    string             `json:"id"`
	State domain.ViewerState `json:"state"`
}

type locatorRequest struct {
	Locator string `json:"locator"`
}

type scrollRequest struct {
	Top float64 `json:"top"`
}

type resizeRequest struct {
	Height float64 `json:"height"`
}

type scaleRequest struct {
	Scale float64 `json:"scale"`
}

// CreateViewer handles POST /api/v1/viewers
func (h *ViewerHandler) CreateViewer(w http.ResponseWriter, r *http.Request) {
	var req createViewerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, h.logger, "Invalid create viewer request", err)
		return
	}
	if req.ViewportHeight < 0 {
		writeError(w, http.StatusBadRequest, "viewport_height must not be negative")
		return
	}

	id, state, err := h.viewers.Create(req.Locator, req.ViewportHeight)
	if err != nil {
		writeAppError(w, h.logger, "Failed to create viewer", err)
		return
	}
	writeJSON(w, http.StatusCreated, createViewerResponse{ID: id, State: state})
}

// GetViewer handles GET /api/v1/viewers/{id}
func (h *ViewerHandler) GetViewer(w http.ResponseWriter, r *http.Request) {
	h.withViewer(w, r, nil)
}

// DeleteViewer handles DELETE /api/v1/viewers/{id}
func (h *ViewerHandler) DeleteViewer(w http.ResponseWriter, r *http.Request) {
	if err := h.viewers.Dispose(mux.Vars(r)["id"]); err != nil {
		writeAppError(w, h.logger, "Failed to dispose viewer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetLocator handles PUT /api/v1/viewers/{id}/locator
func (h *ViewerHandler) SetLocator(w http.ResponseWriter, r *http.Request) {
	var req locatorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, h.logger, "Invalid locator request", err)
		return
	}
	h.withViewer(w, r, func(v *viewer.Viewer) error { return v.SetLocator(req.Locator) })
}

// ZoomIn handles POST /api/v1/viewers/{id}/zoom-in
func (h *ViewerHandler) ZoomIn(w http.ResponseWriter, r *http.Request) {
	h.withViewer(w, r, (*viewer.Viewer).ZoomIn)
}

// ZoomOut handles POST /api/v1/viewers/{id}/zoom-out
func (h *ViewerHandler) ZoomOut(w http.ResponseWriter, r *http.Request) {
	h.withViewer(w, r, (*viewer.Viewer).ZoomOut)
}

// SetScale handles PUT /api/v1/viewers/{id}/scale
func (h *ViewerHandler) SetScale(w http.ResponseWriter, r *http.Request) {
	var req scaleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, h.logger, "Invalid scale request", err)
		return
	}
	h.withViewer(w, r, func(v *viewer.Viewer) error { return v.SetScale(req.Scale) })
}

// Scroll handles POST /api/v1/viewers/{id}/scroll
func (h *ViewerHandler) Scroll(w http.ResponseWriter, r *http.Request) {
	var req scrollRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, h.logger, "Invalid scroll request", err)
		return
	}
	h.withViewer(w, r, func(v *viewer.Viewer) error { return v.Scroll(req.Top) })
}

// Resize handles POST /api/v1/viewers/{id}/resize
func (h *ViewerHandler) Resize(w http.ResponseWriter, r *http.Request) {
	var req resizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, h.logger, "Invalid resize request", err)
		return
	}
	if req.Height <= 0 {
		writeError(w, http.StatusBadRequest, "height must be positive")
		return
	}
	h.withViewer(w, r, func(v *viewer.Viewer) error { return v.Resize(req.Height) })
}

// GoToPage handles POST /api/v1/viewers/{id}/pages/{page}/goto
func (h *ViewerHandler) GoToPage(w http.ResponseWriter, r *http.Request) {
	page, err := pathInt(r, "page")
	if err != nil {
		writeAppError(w, h.logger, "Invalid page", err)
		return
	}
	h.withViewer(w, r, func(v *viewer.Viewer) error { return v.GoToPage(page) })
}

// GetPage handles GET /api/v1/viewers/{id}/pages/{page}. It answers 202
// with the page slot while the page has no surface yet.
func (h *ViewerHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	page, err := pathInt(r, "page")
	if err != nil {
		writeAppError(w, h.logger, "Invalid page", err)
		return
	}
	v, err := h.viewers.Get(mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, h.logger, "Failed to get viewer", err)
		return
	}

	surface, err := v.Surface(page)
	if errors.Is(err, domain.ErrPageNotRendered) {
		state, serr := v.State()
		if serr != nil {
			writeAppError(w, h.logger, "Failed to get viewer state", serr)
			return
		}
		slot := domain.PageSlotState{Page: page}
		if page >= 1 && page <= len(state.Pages) {
			slot = state.Pages[page-1]
		}
		writeJSON(w, http.StatusAccepted, slot)
		return
	}
	if err != nil {
		writeAppError(w, h.logger, "Failed to get page", err)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, surface.Image); err != nil {
		writeAppError(w, h.logger, "Failed to encode page", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Page-Scale", fmt.Sprintf("%.1f", surface.Scale))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// GetPageText handles GET /api/v1/viewers/{id}/pages/{page}/text
func (h *ViewerHandler) GetPageText(w http.ResponseWriter, r *http.Request) {
	page, err := pathInt(r, "page")
	if err != nil {
		writeAppError(w, h.logger, "Invalid page", err)
		return
	}
	text, err := h.viewers.PageText(r.Context(), mux.Vars(r)["id"], page)
	if err != nil {
		writeAppError(w, h.logger, "Failed to extract page text", err)
		return
	}
	writeJSON(w, http.StatusOK, text)
}

// StreamEvents handles GET /api/v1/viewers/{id}/events as a server-sent
// event stream. The current state is sent first, then every viewer event
// until the client goes away or the viewer is disposed.
func (h *ViewerHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	v, err := h.viewers.Get(id)
	if err != nil {
		writeAppError(w, h.logger, "Failed to get viewer", err)
		return
	}
	events, cancel, err := h.viewers.Subscribe(id)
	if err != nil {
		writeAppError(w, h.logger, "Failed to subscribe to viewer", err)
		return
	}
	defer cancel()
	state, err := v.State()
	if err != nil {
		writeAppError(w, h.logger, "Failed to get viewer state", err)
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "state", state); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.logger.Warn("Event stream does not support flushing", "id", id, "error", err.Error())
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, string(e.Type), e); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// withViewer runs fn, when set, against the viewer named in the route and
// answers with its state.
func (h *ViewerHandler) withViewer(w http.ResponseWriter, r *http.Request, fn func(*viewer.Viewer) error) {
	v, err := h.viewers.Get(mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, h.logger, "Failed to get viewer", err)
		return
	}
	if fn != nil {
		if err := fn(v); err != nil {
			writeAppError(w, h.logger, "Viewer operation failed", err)
			return
		}
	}
	state, err := v.State()
	if err != nil {
		writeAppError(w, h.logger, "Failed to get viewer state", err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func writeEvent(w http.ResponseWriter, name string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
	return err
}
