package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"pdf-page-viewer/internal/domain"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

var (
	errEmptyDocument = errors.New("document is empty")
	errUnknownSize   = errors.New("server did not report the document size")
)

// rangeReader gives random access to a remote document by fetching fixed
// size chunks with HTTP range requests. Chunks are kept in memory until the
// reader is closed.
type rangeReader struct {
	ctx    context.Context
	cancel context.CancelFunc
	client *http.Client
	target *domain.FetchTarget

	size   int64
	chunks int

	mu      sync.Mutex
	data    map[int][]byte
	loaded  int64
	closed  bool
	onChunk func(loaded, total int64)

	group singleflight.Group
}

func newRangeReader(client *http.Client, target *domain.FetchTarget, onChunk func(loaded, total int64)) *rangeReader {
	ctx, cancel := context.WithCancel(context.Background())
	return &rangeReader{
		ctx:     ctx,
		cancel:  cancel,
		client:  client,
		target:  target,
		data:    make(map[int][]byte),
		onChunk: onChunk,
	}
}

// probe fetches the first chunk and learns the document size from it.
func (r *rangeReader) probe() error {
	resp, err := r.request(0, domain.ChunkSize-1)
	if err != nil {
		return r.closedOr(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		total, err := parseContentRange(resp.Header.Get("Content-Range"))
		if errors.Is(err, errUnknownSize) {
			// Chunks cannot be addressed without a length.
			return r.fetchWhole()
		}
		if err != nil {
			return err
		}
		if total == 0 {
			return errEmptyDocument
		}
		r.setSize(total)
		want := min(int64(domain.ChunkSize), total)
		buf := make([]byte, want)
		if _, err := io.ReadFull(resp.Body, buf); err != nil {
			return r.closedOr(fmt.Errorf("read first chunk: %w", err))
		}
		r.store(0, buf)
		return nil

	case http.StatusOK:
		// The server ignored the range header and sent the whole document.
		return r.storeWhole(resp.Body)

	case http.StatusRequestedRangeNotSatisfiable:
		return errEmptyDocument

	default:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

// fetchWhole downloads the document with a single unranged request.
func (r *rangeReader) fetchWhole() error {
	resp, err := r.get("")
	if err != nil {
		return r.closedOr(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return r.storeWhole(resp.Body)
}

// storeWhole reads a complete document body and reports it loaded once.
func (r *rangeReader) storeWhole(body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return r.closedOr(fmt.Errorf("read document: %w", err))
	}
	if len(data) == 0 {
		return errEmptyDocument
	}
	r.setSize(int64(len(data)))

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return domain.ErrDocumentClosed
	}
	for i := 0; i < r.chunks; i++ {
		start := i * domain.ChunkSize
		end := min(start+domain.ChunkSize, len(data))
		r.data[i] = data[start:end]
	}
	r.loaded = r.size
	cb := r.onChunk
	r.mu.Unlock()

	if cb != nil {
		cb(r.size, r.size)
	}
	return nil
}

func (r *rangeReader) setSize(total int64) {
	r.size = total
	r.chunks = int((total + domain.ChunkSize - 1) / domain.ChunkSize)
}

// Size returns the total document size in bytes.
func (r *rangeReader) Size() int64 {
	return r.size
}

// ReadAt implements io.ReaderAt, fetching missing chunks on demand.
func (r *rangeReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	if off >= r.size {
		return 0, io.EOF
	}
	n := 0
	for n < len(p) && off+int64(n) < r.size {
		pos := off + int64(n)
		idx := int(pos / domain.ChunkSize)
		b, err := r.chunk(idx)
		if err != nil {
			return n, err
		}
		n += copy(p[n:], b[pos-int64(idx)*domain.ChunkSize:])
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Bytes returns the whole document, fetching whatever is still missing.
func (r *rangeReader) Bytes(ctx context.Context) ([]byte, error) {
	out := make([]byte, 0, r.size)
	for i := 0; i < r.chunks; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := r.chunk(i)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

// prefetch downloads all chunks in order, paced by limiter.
func (r *rangeReader) prefetch(limiter *rate.Limiter) error {
	for i := 0; i < r.chunks; i++ {
		if r.has(i) {
			continue
		}
		if err := limiter.Wait(r.ctx); err != nil {
			return domain.ErrDocumentClosed
		}
		if _, err := r.chunk(i); err != nil {
			return err
		}
	}
	return nil
}

// Complete reports whether every chunk has been downloaded.
func (r *rangeReader) Complete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed && r.size > 0 && r.loaded == r.size
}

// Close aborts in-flight requests and drops cached chunks. It is idempotent.
func (r *rangeReader) Close() {
	r.mu.Lock()
	r.closed = true
	r.data = nil
	r.mu.Unlock()
	r.cancel()
}

func (r *rangeReader) has(i int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.data[i]
	return ok
}

func (r *rangeReader) chunk(i int) ([]byte, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, domain.ErrDocumentClosed
	}
	if b, ok := r.data[i]; ok {
		r.mu.Unlock()
		return b, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(strconv.Itoa(i), func() (interface{}, error) {
		start := int64(i) * domain.ChunkSize
		end := min(start+domain.ChunkSize, r.size) - 1
		resp, err := r.request(start, end)
		if err != nil {
			return nil, r.closedOr(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusPartialContent {
			return nil, fmt.Errorf("range %d-%d: unexpected status %d", start, end, resp.StatusCode)
		}
		buf := make([]byte, end-start+1)
		if _, err := io.ReadFull(resp.Body, buf); err != nil {
			return nil, r.closedOr(fmt.Errorf("range %d-%d: %w", start, end, err))
		}
		r.store(i, buf)
		return buf, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (r *rangeReader) store(i int, b []byte) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if _, ok := r.data[i]; ok {
		r.mu.Unlock()
		return
	}
	r.data[i] = b
	r.loaded += int64(len(b))
	loaded, total, cb := r.loaded, r.size, r.onChunk
	r.mu.Unlock()

	if cb != nil {
		cb(loaded, total)
	}
}

func (r *rangeReader) request(start, end int64) (*http.Response, error) {
	return r.get(fmt.Sprintf("bytes=%d-%d", start, end))
}

// get issues a GET for the target; an empty byteRange requests the whole
// document.
func (r *rangeReader) get(byteRange string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(r.ctx, http.MethodGet, r.target.URL, nil)
	if err != nil {
		return nil, err
	}
	for key, values := range r.target.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if byteRange != "" {
		req.Header.Set("Range", byteRange)
	}
	return r.client.Do(req)
}

// closedOr maps errors caused by Close onto ErrDocumentClosed.
func (r *rangeReader) closedOr(err error) error {
	if r.ctx.Err() != nil {
		return domain.ErrDocumentClosed
	}
	return err
}

// parseContentRange returns the complete length from a header such as
// "bytes 0-65535/1048576".
func parseContentRange(header string) (int64, error) {
	_, total, ok := strings.Cut(header, "/")
	if !ok || !strings.HasPrefix(header, "bytes ") {
		return 0, fmt.Errorf("malformed Content-Range %q", header)
	}
	if total == "*" {
		return 0, errUnknownSize
	}
	n, err := strconv.ParseInt(strings.TrimSpace(total), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("malformed Content-Range %q", header)
	}
	return n, nil
}
