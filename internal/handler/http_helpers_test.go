package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pdf-page-viewer/internal/domain"
)

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, http.StatusTeapot, "nope")

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected content type application/json, got %s", ct)
	}
	if strings.TrimSpace(rr.Body.String()) != `{"error":"nope"}` {
		t.Fatalf("unexpected response body: %s", rr.Body.String())
	}
}

func TestWriteError_EscapesMessage(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, http.StatusBadRequest, `load "x": bad`)

	if strings.TrimSpace(rr.Body.String()) != `{"error":"load \"x\": bad"}` {
		t.Fatalf("unexpected response body: %s", rr.Body.String())
	}
}

func TestWriteAppError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &domain.ValidationError{Field: "q", Message: "required"}, http.StatusBadRequest},
		{"invalid locator", &domain.LoadError{Locator: "ftp://x", Err: domain.ErrInvalidLocator}, http.StatusBadRequest},
		{"viewer not found", domain.ErrViewerNotFound, http.StatusNotFound},
		{"node not found", fmt.Errorf("get node: %w", domain.ErrNodeNotFound), http.StatusNotFound},
		{"page out of range", domain.ErrPageOutOfRange, http.StatusUnprocessableEntity},
		{"viewer closed", domain.ErrViewerClosed, http.StatusGone},
		{"load failure", &domain.LoadError{Locator: "https://x", Err: fmt.Errorf("status 500")}, http.StatusBadGateway},
		{"unexpected", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeAppError(rr, NewMockHandlerLogger(), "failed", tt.err)
			if rr.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rr.Code)
			}
		})
	}
}
