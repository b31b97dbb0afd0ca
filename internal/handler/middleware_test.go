package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestLogger_RecordsStatus(t *testing.T) {
	h := RequestLogger(NewMockHandlerLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := w.(interface{ Unwrap() http.ResponseWriter }); !ok {
			t.Error("expected wrapped writer to support Unwrap")
		}
		writeError(w, http.StatusTeapot, "nope")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}
}

func TestRequestLogger_FlushThroughRecorder(t *testing.T) {
	h := RequestLogger(NewMockHandlerLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data: x\n\n"))
		if err := http.NewResponseController(w).Flush(); err != nil {
			t.Errorf("expected flush to reach the underlying writer: %v", err)
		}
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if !rr.Flushed {
		t.Fatal("expected the response to be flushed")
	}
}

func TestCompress(t *testing.T) {
	body := make([]byte, 4096)
	for i := range body {
		body[i] = 'a'
	}
	h := Compress(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip response, got headers %v", rr.Header())
	}
	if rr.Body.Len() >= len(body) {
		t.Errorf("expected compressed body, got %d bytes", rr.Body.Len())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("Content-Encoding") != "" || rr.Body.Len() != len(body) {
		t.Errorf("expected identity response without Accept-Encoding")
	}
}
