package handler

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"testing"
	"time"

	"pdf-page-viewer/internal/domain"
	"pdf-page-viewer/internal/service"
)

// mockHandle renders blank pages sized 600x800 points times the scale.
type mockHandle struct {
	locator string
	pages   int
	block   chan struct{}
}

func (h *mockHandle) Locator() string { return h.locator }
func (h *mockHandle) PageCount() int  { return h.pages }

func (h *mockHandle) PageSize(page int) (domain.PageSize, error) {
	return domain.PageSize{Width: 600, Height: 800}, nil
}

func (h *mockHandle) RenderPage(ctx context.Context, page int, scale float64) (*domain.Surface, error) {
	if h.block != nil {
		select {
		case <-h.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	img := image.NewRGBA(image.Rect(0, 0, int(600*scale), int(800*scale)))
	return &domain.Surface{Page: page, Scale: scale, Image: img}, nil
}

func (h *mockHandle) PageText(ctx context.Context, page int) (string, error) {
	return fmt.Sprintf("ACTA %d\n\nTexto de la página %d.", page, page), nil
}

func (h *mockHandle) Close() error { return nil }

type mockLoader struct {
	pages int
	block chan struct{}
}

func (l *mockLoader) Open(ctx context.Context, locator string, progress func(int)) (domain.DocumentHandle, error) {
	if locator == "https://docs.example/missing.pdf" {
		return nil, &domain.LoadError{Locator: locator, Err: domain.ErrDocumentNotFound}
	}
	if progress != nil {
		progress(100)
	}
	return &mockHandle{locator: locator, pages: l.pages, block: l.block}, nil
}

// mockNodeRepository serves a fixed tree from memory.
type mockNodeRepository struct {
	nodes map[string]domain.Node
}

func newMockNodeRepository(nodes ...domain.Node) *mockNodeRepository {
	m := &mockNodeRepository{nodes: make(map[string]domain.Node)}
	for _, n := range nodes {
		m.nodes[n.NodeID()] = n
	}
	return m
}

func (m *mockNodeRepository) GetNode(id string) (domain.Node, error) {
	n, ok := m.nodes[id]
	if !ok {
		return nil, domain.ErrNodeNotFound
	}
	return n, nil
}

func (m *mockNodeRepository) GetChildren(folderID string) ([]domain.Node, error) {
	n, ok := m.nodes[folderID]
	if !ok {
		return nil, domain.ErrNodeNotFound
	}
	folder, ok := n.(*domain.Folder)
	if !ok {
		return nil, &domain.ValidationError{Field: "id", Message: "node is not a folder"}
	}
	return folder.Children, nil
}

func testSettings() domain.ViewerSettings {
	return domain.ViewerSettings{
		ViewportHeight: 900,
		InitialScale:   1,
		PageGap:        10,
		Debounce:       10 * time.Millisecond,
	}
}

// newTestRouter wires the real services around the mocks.
func newTestRouter(t *testing.T, loader domain.DocumentLoader, repo domain.NodeRepository) (http.Handler, *service.ViewerService) {
	t.Helper()
	logger := NewMockHandlerLogger()

	viewers := service.NewViewerService(loader, testSettings(), logger)
	t.Cleanup(func() { viewers.Close() })

	cache, err := service.NewDocumentCache(repo, 8, logger)
	if err != nil {
		t.Fatalf("NewDocumentCache failed: %v", err)
	}
	explorer := service.NewExplorerService(repo, cache, logger)

	router := NewRouter(
		NewViewerHandler(viewers, logger),
		NewExplorerHandler(explorer, logger),
		RequestLogger(logger),
	)
	return router, viewers
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
