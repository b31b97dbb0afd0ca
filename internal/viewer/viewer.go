// Package viewer renders the pages of one remote document at a time into a
// modelled scroll container, only rendering pages near the viewport.
//
// A Viewer owns a single goroutine that holds all of its state. Public
// methods run closures on that goroutine; document loads and page renders
// run on worker goroutines and post their results back, where results that
// belong to an older document or an older render are discarded.
package viewer

import (
	"context"
	"sync"

	"pdf-page-viewer/internal/domain"
)

// fallbackPageSize is used for pages whose size the loader cannot report.
var fallbackPageSize = domain.PageSize{Width: 595, Height: 842}

// Options configures a Viewer.
type Options struct {
	Settings domain.ViewerSettings
	Logger   domain.Logger
	// OnEvent receives notifications on the viewer goroutine. It must not
	// block and must not call back into the viewer.
	OnEvent func(domain.Event)
}

type Viewer struct {
	loader  domain.DocumentLoader
	logger  domain.Logger
	onEvent func(domain.Event)

	ops       chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	// workers is only added to from the loop goroutine.
	workers sync.WaitGroup

	// Everything below is owned by the loop goroutine.
	gen        uint64
	locator    string
	status     domain.ViewerStatus
	handle     domain.DocumentHandle
	loadCancel context.CancelFunc
	progress   int
	loadErr    string

	scale       float64
	scrollTop   float64
	height      float64
	currentPage int

	sched    *scheduler
	cache    *renderCache
	debounce *debouncer
}

func New(loader domain.DocumentLoader, opts Options) *Viewer {
	s := opts.Settings
	scale := domain.DefaultScale
	if s.InitialScale > 0 {
		scale = domain.ClampScale(s.InitialScale)
	}
	v := &Viewer{
		loader:   loader,
		logger:   opts.Logger,
		onEvent:  opts.OnEvent,
		ops:      make(chan func()),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		status:   domain.ViewerIdle,
		scale:    scale,
		height:   max(s.ViewportHeight, 0),
		sched:    newScheduler(max(s.PageGap, 0), max(s.Lookahead, 0)),
		cache:    newRenderCache(),
		debounce: newDebouncer(s.Debounce),
	}
	go v.loop()
	return v
}

func (v *Viewer) loop() {
	defer close(v.done)
	for {
		select {
		case <-v.quit:
			v.unload()
			v.status = domain.ViewerIdle
			return
		case fn := <-v.ops:
			fn()
		case <-v.debounce.timerC():
			v.debounce.stop()
			v.updateCurrentPage()
		}
	}
}

// do runs fn on the loop goroutine and waits for it.
func (v *Viewer) do(fn func()) error {
	ran := make(chan struct{})
	select {
	case v.ops <- func() { fn(); close(ran) }:
	case <-v.quit:
		return domain.ErrViewerClosed
	}
	select {
	case <-ran:
		return nil
	case <-v.done:
		select {
		case <-ran:
			return nil
		default:
			return domain.ErrViewerClosed
		}
	}
}

// post hands a worker result to the loop. It reports false once the viewer
// is closing; the result was not delivered and the caller keeps ownership.
func (v *Viewer) post(fn func()) bool {
	select {
	case v.ops <- fn:
		return true
	case <-v.quit:
		return false
	}
}

// spawn starts a worker. Only the loop goroutine may call it.
func (v *Viewer) spawn(fn func()) {
	v.workers.Add(1)
	go func() {
		defer v.workers.Done()
		fn()
	}()
}

// Close stops the viewer, releases the active document exactly once and
// waits for all workers. No events are delivered once Close returns. It is
// safe to call more than once.
func (v *Viewer) Close() error {
	v.closeOnce.Do(func() { close(v.quit) })
	<-v.done
	v.workers.Wait()
	return nil
}

// SetLocator replaces the active document. An empty locator unloads it.
func (v *Viewer) SetLocator(locator string) error {
	return v.do(func() { v.setLocator(locator) })
}

// GoToPage centres page, clamped into the document, in the viewport.
func (v *Viewer) GoToPage(page int) error {
	return v.do(func() { v.navigateToPage(page) })
}

func (v *Viewer) ZoomIn() error {
	return v.do(func() { v.setScale(v.scale + domain.ScaleStep) })
}

func (v *Viewer) ZoomOut() error {
	return v.do(func() { v.setScale(v.scale - domain.ScaleStep) })
}

func (v *Viewer) SetScale(scale float64) error {
	return v.do(func() { v.setScale(scale) })
}

// Scroll moves the viewport to top, clamped to the scrollable range.
func (v *Viewer) Scroll(top float64) error {
	return v.do(func() {
		v.scrollTop = v.sched.clampScroll(top, v.height)
		v.observe()
		v.debounce.touch()
	})
}

// Resize changes the viewport height.
func (v *Viewer) Resize(height float64) error {
	return v.do(func() {
		v.height = max(height, 0)
		v.scrollTop = v.sched.clampScroll(v.scrollTop, v.height)
		v.observe()
		v.debounce.touch()
	})
}

func (v *Viewer) State() (domain.ViewerState, error) {
	var st domain.ViewerState
	err := v.do(func() { st = v.snapshot() })
	return st, err
}

// Surface returns the rendered surface of page.
func (v *Viewer) Surface(page int) (*domain.Surface, error) {
	var (
		s   *domain.Surface
		err error
	)
	if derr := v.do(func() { s, err = v.cache.surface(page) }); derr != nil {
		return nil, derr
	}
	return s, err
}

// PageText extracts the text layer of page from the active document. The
// extraction runs on the caller's goroutine; closing the document meanwhile
// fails it with domain.ErrDocumentClosed.
func (v *Viewer) PageText(ctx context.Context, page int) (string, error) {
	var (
		src domain.TextSource
		err error
	)
	derr := v.do(func() {
		if v.handle == nil || page < 1 || page > v.sched.pageCount() {
			err = domain.ErrPageOutOfRange
			return
		}
		ts, ok := v.handle.(domain.TextSource)
		if !ok {
			err = domain.ErrTextUnavailable
			return
		}
		src = ts
	})
	if derr != nil {
		return "", derr
	}
	if err != nil {
		return "", err
	}
	return src.PageText(ctx, page)
}

func (v *Viewer) emit(e domain.Event) {
	e.Locator = v.locator
	if v.onEvent != nil {
		v.onEvent(e)
	}
}

func (v *Viewer) setLocator(locator string) {
	v.unload()
	v.locator = locator
	if locator == "" {
		v.status = domain.ViewerIdle
		return
	}
	v.status = domain.ViewerLoading

	gen := v.gen
	ctx, cancel := context.WithCancel(context.Background())
	v.loadCancel = cancel
	v.logger.Debug("Loading document", "locator", locator)

	v.spawn(func() {
		progress := func(pct int) {
			v.post(func() { v.onProgress(gen, pct) })
		}
		h, err := v.loader.Open(ctx, locator, progress)
		if !v.post(func() { v.onLoaded(gen, h, err) }) && h != nil {
			_ = h.Close()
		}
	})
}

func (v *Viewer) onProgress(gen uint64, pct int) {
	if gen != v.gen || v.status != domain.ViewerLoading || pct <= v.progress {
		return
	}
	v.progress = min(pct, 100)
	v.emit(domain.Event{Type: domain.EventLoadingProgress, Progress: v.progress})
}

func (v *Viewer) onLoaded(gen uint64, h domain.DocumentHandle, err error) {
	if gen != v.gen {
		if h != nil {
			v.release(h)
		}
		v.logger.Debug("Discarding stale document load", "error", domain.ErrStaleResult)
		return
	}
	if v.loadCancel != nil {
		v.loadCancel()
		v.loadCancel = nil
	}
	if err != nil {
		v.status = domain.ViewerFailed
		v.loadErr = err.Error()
		v.logger.Error("Failed to load document", err, "locator", v.locator)
		v.emit(domain.Event{Type: domain.EventLoadFailed, Error: v.loadErr})
		return
	}

	v.handle = h
	v.status = domain.ViewerReady
	pageCount := h.PageCount()
	sizes := make([]domain.PageSize, pageCount)
	for i := range sizes {
		size, err := h.PageSize(i + 1)
		if err != nil || size.Width <= 0 || size.Height <= 0 {
			size = fallbackPageSize
		}
		sizes[i] = size
	}
	v.cache.reset(pageCount)
	v.sched.initialize(sizes, v.scale)
	v.scrollTop = v.sched.clampScroll(v.scrollTop, v.height)

	if v.progress < 100 {
		v.progress = 100
		v.emit(domain.Event{Type: domain.EventLoadingProgress, Progress: 100})
	}
	v.logger.Info("Document loaded", "locator", v.locator, "pages", pageCount)
	v.emit(domain.Event{Type: domain.EventDocumentLoaded, PageCount: pageCount, Progress: 100})

	v.observe()
	v.debounce.touch()
}

// unload supersedes the active document: pending results become stale, the
// observer stops, renders are cancelled and the handle is released.
func (v *Viewer) unload() {
	v.gen++
	if v.loadCancel != nil {
		v.loadCancel()
		v.loadCancel = nil
	}
	v.debounce.stop()
	v.sched.teardown()
	v.cache.teardown()
	if v.handle != nil {
		v.release(v.handle)
		v.handle = nil
	}
	v.locator = ""
	v.progress = 0
	v.loadErr = ""
	v.currentPage = 0
	v.scrollTop = 0
}

// release closes h off the loop; Close may wait for a render to leave it.
func (v *Viewer) release(h domain.DocumentHandle) {
	v.spawn(func() {
		if err := h.Close(); err != nil {
			v.logger.Warn("Failed to release document", "locator", h.Locator(), "error", err)
		}
	})
}

// observe runs an observation pass and renders newly visible pages.
func (v *Viewer) observe() {
	v.onVisibility(v.sched.observe(v.scrollTop, v.height))
}

func (v *Viewer) onVisibility(entries []observation) {
	if v.handle == nil {
		return
	}
	for _, e := range entries {
		if e.intersecting {
			v.requestRender(e.page)
		}
	}
}

// requestRender starts a render of page at the current scale unless one is
// already running or done.
func (v *Viewer) requestRender(page int) {
	if !v.cache.pending(page) {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	token := v.cache.begin(page, cancel)
	gen, h, scale := v.gen, v.handle, v.scale

	v.spawn(func() {
		surface, err := h.RenderPage(ctx, page, scale)
		v.post(func() { v.onRendered(gen, page, token, surface, err) })
	})
}

func (v *Viewer) onRendered(gen uint64, page int, token uint64, surface *domain.Surface, err error) {
	if gen != v.gen {
		return
	}
	if err == nil {
		if !v.cache.complete(page, token, surface) {
			v.logger.Debug("Discarding stale render", "page", page, "error", domain.ErrStaleResult)
		}
		return
	}
	if !v.cache.fail(page, token, err) || domain.IsCancellation(err) {
		return
	}
	v.logger.Warn("Page render failed", "locator", v.locator, "page", page, "error", err)
}

func (v *Viewer) setScale(scale float64) {
	scale = domain.ClampScale(scale)
	if scale == v.scale {
		return
	}
	old := v.scale
	v.scale = scale
	if v.handle == nil {
		return
	}

	redo := v.cache.invalidate()
	v.sched.layout(scale)
	v.scrollTop = v.sched.clampScroll(v.scrollTop*scale/old, v.height)
	v.sched.observe(v.scrollTop, v.height)
	redo = append(redo, v.sched.intersecting()...)
	for _, page := range redo {
		v.requestRender(page)
	}
	v.logger.Debug("Scale changed", "scale", scale, "rerender", len(redo))
	v.debounce.touch()
}

func (v *Viewer) navigateToPage(page int) {
	if v.handle == nil {
		return
	}
	page = domain.ClampPage(page, v.sched.pageCount())
	v.scrollTop = v.sched.clampScroll(v.sched.center(page)-v.height/2, v.height)
	v.observe()
	// Navigation decides the current page; a pending scroll computation
	// must not override it.
	v.debounce.stop()
	v.setCurrentPage(page)
}

func (v *Viewer) updateCurrentPage() {
	if v.handle == nil {
		return
	}
	if page := v.sched.closest(v.scrollTop + v.height/2); page > 0 {
		v.setCurrentPage(page)
	}
}

func (v *Viewer) setCurrentPage(page int) {
	if page == v.currentPage {
		return
	}
	v.currentPage = page
	v.emit(domain.Event{Type: domain.EventPageChanged, Page: page})
}

func (v *Viewer) snapshot() domain.ViewerState {
	pageCount := 0
	if v.handle != nil {
		pageCount = v.handle.PageCount()
	}
	return domain.ViewerState{
		Status:         v.status,
		Locator:        v.locator,
		PageCount:      pageCount,
		Progress:       v.progress,
		Scale:          v.scale,
		CurrentPage:    v.currentPage,
		ScrollTop:      v.scrollTop,
		ViewportHeight: v.height,
		ContentHeight:  v.sched.contentHeight(),
		Pages:          v.cache.snapshot(),
		Error:          v.loadErr,
	}
}
