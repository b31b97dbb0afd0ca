package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"pdf-page-viewer/internal/domain"

	"github.com/google/go-cmp/cmp"
)

func TestBuildPageText(t *testing.T) {
	long := strings.Repeat("El concejo municipal aprobó la ordenanza ", 4)
	text := "ACTA DE SESIÓN\r\n\r\n" + long + "\nen segunda lectura.\n\n\n\x00Firma\x07 del secretario\n\n   \n\n"

	got := BuildPageText(3, text)

	want := PageText{Page: 3, Blocks: []TextBlock{
		{Type: "heading", Content: "ACTA DE SESIÓN", Level: 1, Position: 0},
		{Type: "paragraph", Content: strings.TrimSpace(long) + " en segunda lectura.", Position: 1},
		{Type: "heading", Content: "Firma del secretario", Level: 1, Position: 2},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildPageText mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildPageText_Empty(t *testing.T) {
	got := BuildPageText(1, " \n\n\t")
	if got.Blocks == nil || len(got.Blocks) != 0 {
		t.Errorf("expected an empty, non-nil block list, got %#v", got.Blocks)
	}
}

func TestIsHeading(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"", false},
		{"Capítulo 1", true},
		{strings.ToUpper(strings.Repeat("resolución ", 6)), true},
		{strings.Repeat("resolución ", 6), false},
		{strings.Repeat("A", 120), false},
	}
	for _, tt := range tests {
		if got := isHeading(strings.TrimSpace(tt.text)); got != tt.want {
			t.Errorf("isHeading(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestViewerService_PageText(t *testing.T) {
	svc := NewViewerService(&MockDocumentLoader{pages: 2}, testViewerSettings(), MockLogger{})
	defer svc.Close()

	if _, err := svc.PageText(context.Background(), "nope", 1); !errors.Is(err, domain.ErrViewerNotFound) {
		t.Errorf("expected ErrViewerNotFound, got %v", err)
	}

	id, _, err := svc.Create("", 0)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.PageText(context.Background(), id, 1); !errors.Is(err, domain.ErrPageOutOfRange) {
		t.Errorf("expected ErrPageOutOfRange without a document, got %v", err)
	}
}
