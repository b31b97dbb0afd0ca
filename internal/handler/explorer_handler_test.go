package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"pdf-page-viewer/internal/domain"

	"github.com/google/go-cmp/cmp"
)

func testTree() *mockNodeRepository {
	acta := &domain.Document{ID: "d1", ParentID: "f1", Name: "Acta 01", Locator: "https://docs.example/d1.pdf", OCRText: "La ordenanza fue aprobada."}
	oficio := &domain.Document{ID: "d2", ParentID: "f1", Name: "Oficio", Locator: "https://docs.example/d2.pdf", OCRText: "sin novedad"}
	sub := &domain.Folder{ID: "f2", ParentID: "f1", Name: "Anexos"}
	root := &domain.Folder{ID: "f1", Name: "Concejo", Children: []domain.Node{sub, acta, oficio}}
	return newMockNodeRepository(root, sub, acta, oficio)
}

func TestExplorerHandler_GetChildren(t *testing.T) {
	router, _ := newTestRouter(t, &mockLoader{}, testTree())

	rr := doRequest(t, router, http.MethodGet, "/api/v1/nodes/f1/children", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	var children []struct {
		ID   string `json:"id"`
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&children); err != nil {
		t.Fatalf("failed to decode children: %v", err)
	}
	var got []string
	for _, c := range children {
		got = append(got, c.Kind+":"+c.ID)
	}
	want := []string{"folder:f2", "document:d1", "document:d2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("children mismatch (-want +got):\n%s", diff)
	}

	rr = doRequest(t, router, http.MethodGet, "/api/v1/nodes/f2/children", "")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("expected empty array for an empty folder, got %s", rr.Body.String())
	}
}

func TestExplorerHandler_DocumentsAndCache(t *testing.T) {
	router, _ := newTestRouter(t, &mockLoader{}, testTree())

	rr := doRequest(t, router, http.MethodGet, "/api/v1/documents/d1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"kind":"document"`) {
		t.Errorf("expected kind discriminator, got %s", rr.Body.String())
	}
	doRequest(t, router, http.MethodGet, "/api/v1/documents/d2", "")

	rr = doRequest(t, router, http.MethodGet, "/api/v1/documents/search?q=ORDENANZA", "")
	var results []struct {
		DocumentID string `json:"document_id"`
		Matches    int    `json:"matches"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&results); err != nil {
		t.Fatalf("failed to decode results: %v", err)
	}
	if len(results) != 1 || results[0].DocumentID != "d1" || results[0].Matches != 1 {
		t.Errorf("unexpected search results %+v", results)
	}

	rr = doRequest(t, router, http.MethodDelete, "/api/v1/documents/d1/cache", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("evict: expected status %d, got %d", http.StatusNoContent, rr.Code)
	}
	rr = doRequest(t, router, http.MethodDelete, "/api/v1/documents/d1/cache", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("second evict: expected status %d, got %d", http.StatusNotFound, rr.Code)
	}

	rr = doRequest(t, router, http.MethodDelete, "/api/v1/documents/cache", "")
	if strings.TrimSpace(rr.Body.String()) != `{"cleared":1}` {
		t.Errorf("unexpected clear response %s", rr.Body.String())
	}
}

func TestExplorerHandler_Errors(t *testing.T) {
	router, _ := newTestRouter(t, &mockLoader{}, testTree())

	tests := []struct {
		name string
		path string
		want int
	}{
		{"children of unknown node", "/api/v1/nodes/nope/children", http.StatusNotFound},
		{"children of a document", "/api/v1/nodes/d1/children", http.StatusBadRequest},
		{"unknown document", "/api/v1/documents/nope", http.StatusNotFound},
		{"folder as document", "/api/v1/documents/f1", http.StatusUnprocessableEntity},
		{"blank search", "/api/v1/documents/search?q=%20", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, router, http.MethodGet, tt.path, "")
			if rr.Code != tt.want {
				t.Fatalf("expected status %d, got %d: %s", tt.want, rr.Code, rr.Body.String())
			}
		})
	}
}
