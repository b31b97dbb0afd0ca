// Package loader opens remote documents incrementally with HTTP range
// requests and renders their pages on demand.
package loader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"pdf-page-viewer/internal/domain"

	"golang.org/x/time/rate"
)

// Options configures a Loader.
type Options struct {
	// Client performs the range requests. It should carry a cookie jar
	// when documents sit behind session cookies.
	Client *http.Client
	// Token is sent as a bearer token with http(s) locators.
	Token string
	// PrefetchRate paces background chunk downloads, in chunks per second.
	// Zero or less means unlimited.
	PrefetchRate float64
	Resolvers    []domain.LocatorResolver
}

// Loader implements domain.DocumentLoader.
type Loader struct {
	client    *http.Client
	engine    Engine
	token     string
	prefetch  rate.Limit
	resolvers map[string]domain.LocatorResolver
	logger    domain.Logger
}

func New(engine Engine, logger domain.Logger, opts Options) *Loader {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	limit := rate.Inf
	if opts.PrefetchRate > 0 {
		limit = rate.Limit(opts.PrefetchRate)
	}
	resolvers := make(map[string]domain.LocatorResolver, len(opts.Resolvers))
	for _, r := range opts.Resolvers {
		resolvers[r.Scheme()] = r
	}
	return &Loader{
		client:    client,
		engine:    engine,
		token:     opts.Token,
		prefetch:  limit,
		resolvers: resolvers,
		logger:    logger,
	}
}

// Open starts downloading locator and returns once its structure is known.
// Cancelling ctx before Open returns aborts the download; afterwards the
// returned handle owns the download and Close releases it.
func (l *Loader) Open(ctx context.Context, locator string, progress func(percent int)) (domain.DocumentHandle, error) {
	target, err := l.resolve(locator)
	if err != nil {
		return nil, &domain.LoadError{Locator: locator, Err: err}
	}

	reporter := newProgressReporter(progress)
	reader := newRangeReader(l.client, target, reporter.update)
	stop := context.AfterFunc(ctx, reader.Close)

	fail := func(err error) (domain.DocumentHandle, error) {
		stop()
		reader.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		if domain.IsCancellation(err) {
			l.logger.Debug("Document load abandoned", "locator", locator)
		} else {
			l.logger.Warn("Document load failed", "locator", locator, "error", err)
		}
		return nil, &domain.LoadError{Locator: locator, Err: err}
	}

	if err := reader.probe(); err != nil {
		return fail(err)
	}
	l.logger.Debug("Document size known", "locator", locator, "bytes", reader.Size())

	go func() {
		limiter := rate.NewLimiter(l.prefetch, 1)
		if err := reader.prefetch(limiter); err != nil && !domain.IsCancellation(err) {
			l.logger.Warn("Document prefetch stopped", "locator", locator, "error", err)
		}
	}()

	doc, err := l.engine.Open(ctx, reader)
	if err != nil {
		return fail(err)
	}
	if doc.PageCount() <= 0 {
		_ = doc.Close()
		return fail(errEmptyDocument)
	}
	if !stop() {
		// ctx was cancelled while parsing; the reader is already closed.
		_ = doc.Close()
		return nil, &domain.LoadError{Locator: locator, Err: context.Cause(ctx)}
	}

	reporter.finish()
	l.logger.Info("Document opened", "locator", locator, "pages", doc.PageCount())
	return &Handle{
		locator: locator,
		reader:  reader,
		doc:     doc,
		pages:   doc.PageCount(),
	}, nil
}

func (l *Loader) resolve(locator string) (*domain.FetchTarget, error) {
	locator = strings.TrimSpace(locator)
	u, err := url.Parse(locator)
	if err != nil || u.Scheme == "" {
		return nil, domain.ErrInvalidLocator
	}
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return nil, domain.ErrInvalidLocator
		}
		header := make(http.Header)
		if l.token != "" {
			header.Set("Authorization", "Bearer "+l.token)
		}
		return &domain.FetchTarget{URL: u.String(), Header: header}, nil
	}
	if r, ok := l.resolvers[u.Scheme]; ok {
		return r.Resolve(locator)
	}
	return nil, fmt.Errorf("%w: unsupported scheme %q", domain.ErrInvalidLocator, u.Scheme)
}

// Handle is an opened document. It implements domain.DocumentHandle.
type Handle struct {
	locator string
	reader  *rangeReader
	doc     Document
	pages   int

	// mu is held shared by renders and exclusively by Close, so the
	// rasterizer is never freed under a running render.
	mu        sync.RWMutex
	closing   atomic.Bool
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

func (h *Handle) Locator() string {
	return h.locator
}

func (h *Handle) PageCount() int {
	return h.pages
}

// Downloaded reports whether the whole document has been fetched.
func (h *Handle) Downloaded() bool {
	return h.reader.Complete()
}

func (h *Handle) PageSize(page int) (domain.PageSize, error) {
	if page < 1 || page > h.pages {
		return domain.PageSize{}, domain.ErrPageOutOfRange
	}
	return h.doc.PageSize(page)
}

// RenderPage renders page at scale. Renders that race with Close fail with
// a RenderError wrapping domain.ErrDocumentClosed.
func (h *Handle) RenderPage(ctx context.Context, page int, scale float64) (*domain.Surface, error) {
	if page < 1 || page > h.pages {
		return nil, &domain.RenderError{Page: page, Err: domain.ErrPageOutOfRange}
	}
	if scale <= 0 {
		return nil, &domain.RenderError{Page: page, Err: fmt.Errorf("invalid scale %v", scale)}
	}
	if h.closing.Load() {
		return nil, &domain.RenderError{Page: page, Err: domain.ErrDocumentClosed}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, &domain.RenderError{Page: page, Err: domain.ErrDocumentClosed}
	}

	img, err := h.doc.Render(ctx, page, scale)
	if err != nil {
		if h.closing.Load() || errors.Is(err, domain.ErrDocumentClosed) {
			err = domain.ErrDocumentClosed
		}
		return nil, &domain.RenderError{Page: page, Err: err}
	}
	return &domain.Surface{Page: page, Scale: scale, Image: img}, nil
}

// PageText extracts the text layer of page. It waits for the download to
// complete, like the first render does.
func (h *Handle) PageText(ctx context.Context, page int) (string, error) {
	if page < 1 || page > h.pages {
		return "", domain.ErrPageOutOfRange
	}
	if h.closing.Load() {
		return "", domain.ErrDocumentClosed
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return "", domain.ErrDocumentClosed
	}
	text, err := h.doc.Text(ctx, page)
	if err != nil && (h.closing.Load() || errors.Is(err, domain.ErrDocumentClosed)) {
		return "", domain.ErrDocumentClosed
	}
	return text, err
}

// Close releases the download and the rasterizer. It is safe to call more
// than once and while renders are in flight.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		h.closing.Store(true)
		h.reader.Close()

		h.mu.Lock()
		defer h.mu.Unlock()
		h.closed = true
		h.closeErr = h.doc.Close()
	})
	return h.closeErr
}
