package viewer

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pdf-page-viewer/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, fields ...interface{})             {}
func (nopLogger) Error(msg string, err error, fields ...interface{}) {}
func (nopLogger) Debug(msg string, fields ...interface{})            {}
func (nopLogger) Warn(msg string, fields ...interface{})             {}

var testPageSize = domain.PageSize{Width: 600, Height: 800}

// fakeDoc describes how the fake loader opens one locator.
type fakeDoc struct {
	pages    int
	progress []int
	err      error

	// gate, when set, holds Open until it is closed.
	gate chan struct{}
	// ignoreCancel makes a gated Open wait for the gate even when its
	// context is cancelled, like a load that settles late.
	ignoreCancel bool

	mu          sync.Mutex
	renderGates map[int]chan struct{}
	failOnce    map[int]error
	handles     []*fakeHandle
}

func (d *fakeDoc) gateRender(page int) chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.renderGates == nil {
		d.renderGates = make(map[int]chan struct{})
	}
	ch := make(chan struct{})
	d.renderGates[page] = ch
	return ch
}

func (d *fakeDoc) handle(t *testing.T) *fakeHandle {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.handles) != 1 {
		t.Fatalf("expected one handle, got %d", len(d.handles))
	}
	return d.handles[0]
}

type fakeLoader struct {
	docs map[string]*fakeDoc
}

func (l *fakeLoader) Open(ctx context.Context, locator string, progress func(int)) (domain.DocumentHandle, error) {
	d, ok := l.docs[locator]
	if !ok {
		return nil, &domain.LoadError{Locator: locator, Err: domain.ErrDocumentNotFound}
	}
	if d.gate != nil {
		if d.ignoreCancel {
			<-d.gate
		} else {
			select {
			case <-d.gate:
			case <-ctx.Done():
				return nil, &domain.LoadError{Locator: locator, Err: ctx.Err()}
			}
		}
	}
	for _, p := range d.progress {
		progress(p)
	}
	if d.err != nil {
		return nil, &domain.LoadError{Locator: locator, Err: d.err}
	}
	progress(100)

	h := &fakeHandle{locator: locator, doc: d, renders: make(map[int]int)}
	d.mu.Lock()
	d.handles = append(d.handles, h)
	d.mu.Unlock()
	return h, nil
}

type fakeHandle struct {
	locator string
	doc     *fakeDoc

	mu        sync.Mutex
	renders   map[int]int
	cancelled int
	scales    []float64

	closes atomic.Int32
}

func (h *fakeHandle) Locator() string { return h.locator }
func (h *fakeHandle) PageCount() int  { return h.doc.pages }

func (h *fakeHandle) PageSize(page int) (domain.PageSize, error) {
	if page < 1 || page > h.doc.pages {
		return domain.PageSize{}, domain.ErrPageOutOfRange
	}
	return testPageSize, nil
}

func (h *fakeHandle) RenderPage(ctx context.Context, page int, scale float64) (*domain.Surface, error) {
	h.mu.Lock()
	h.renders[page]++
	h.scales = append(h.scales, scale)
	h.mu.Unlock()

	h.doc.mu.Lock()
	gate := h.doc.renderGates[page]
	failure := h.doc.failOnce[page]
	delete(h.doc.failOnce, page)
	h.doc.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			h.mu.Lock()
			h.cancelled++
			h.mu.Unlock()
			return nil, &domain.RenderError{Page: page, Err: ctx.Err()}
		}
	}
	if h.closes.Load() > 0 {
		return nil, &domain.RenderError{Page: page, Err: domain.ErrDocumentClosed}
	}
	if failure != nil {
		return nil, &domain.RenderError{Page: page, Err: failure}
	}
	size := testPageSize.Scaled(scale)
	return &domain.Surface{
		Page:  page,
		Scale: scale,
		Image: image.NewGray(image.Rect(0, 0, int(size.Width), int(size.Height))),
	}, nil
}

func (h *fakeHandle) Close() error {
	h.closes.Add(1)
	return nil
}

func (h *fakeHandle) renderCount(page int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.renders[page]
}

func (h *fakeHandle) cancelledCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

// recorder collects viewer events.
type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) on(e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

func (r *recorder) ofType(t domain.EventType) []domain.Event {
	var out []domain.Event
	for _, e := range r.all() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) waitFor(t *testing.T, what string, match func(domain.Event) bool) domain.Event {
	t.Helper()
	var found domain.Event
	eventually(t, what, func() bool {
		for _, e := range r.all() {
			if match(e) {
				found = e
				return true
			}
		}
		return false
	})
	return found
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testSettings() domain.ViewerSettings {
	return domain.ViewerSettings{
		ViewportHeight: 900,
		InitialScale:   1,
		Lookahead:      0,
		PageGap:        10,
		Debounce:       20 * time.Millisecond,
	}
}

func newTestViewer(t *testing.T, loader domain.DocumentLoader, settings domain.ViewerSettings) (*Viewer, *recorder) {
	t.Helper()
	rec := &recorder{}
	v := New(loader, Options{Settings: settings, Logger: nopLogger{}, OnEvent: rec.on})
	t.Cleanup(func() { _ = v.Close() })
	return v, rec
}

func mustState(t *testing.T, v *Viewer) domain.ViewerState {
	t.Helper()
	st, err := v.State()
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	return st
}

func pageState(t *testing.T, v *Viewer, page int) domain.RenderState {
	t.Helper()
	return mustState(t, v).Pages[page-1].State
}

func waitRendered(t *testing.T, v *Viewer, pages ...int) {
	t.Helper()
	for _, p := range pages {
		eventually(t, "page render", func() bool {
			st := mustState(t, v)
			return len(st.Pages) >= p && st.Pages[p-1].State == domain.RenderRendered
		})
	}
}

func loadDocument(t *testing.T, v *Viewer, rec *recorder, locator string) {
	t.Helper()
	if err := v.SetLocator(locator); err != nil {
		t.Fatalf("SetLocator failed: %v", err)
	}
	rec.waitFor(t, "document_loaded", func(e domain.Event) bool {
		return e.Type == domain.EventDocumentLoaded && e.Locator == locator
	})
}

var errBoom = errors.New("boom")
