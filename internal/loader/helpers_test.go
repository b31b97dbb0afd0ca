package loader

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
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

// documentServer serves data with range support and records requests.
type documentServer struct {
	*httptest.Server
	data []byte

	mu       sync.Mutex
	ranges   []string
	auth     []string
	requests atomic.Int32
}

func newDocumentServer(t *testing.T, data []byte) *documentServer {
	t.Helper()
	ds := &documentServer{data: data}
	ds.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ds.requests.Add(1)
		ds.mu.Lock()
		ds.ranges = append(ds.ranges, r.Header.Get("Range"))
		ds.auth = append(ds.auth, r.Header.Get("Authorization"))
		ds.mu.Unlock()
		http.ServeContent(w, r, "doc.pdf", time.Time{}, bytes.NewReader(ds.data))
	}))
	t.Cleanup(ds.Close)
	return ds
}

func (ds *documentServer) rangeHeaders() []string {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return append([]string(nil), ds.ranges...)
}

func (ds *documentServer) authHeaders() []string {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return append([]string(nil), ds.auth...)
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(b)
	return b
}

// fakeEngine reads the head and tail of the source, like a parser looking
// for the header and the cross-reference table.
type fakeEngine struct {
	pages   int
	openErr error
	block   chan struct{}

	mu   sync.Mutex
	docs []*fakeDocument
}

func (e *fakeEngine) Open(ctx context.Context, src Source) (Document, error) {
	if e.block != nil {
		select {
		case <-e.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	head := make([]byte, 16)
	if _, err := src.ReadAt(head, 0); err != nil {
		return nil, err
	}
	tail := make([]byte, 16)
	if _, err := src.ReadAt(tail, src.Size()-16); err != nil {
		return nil, err
	}
	if e.openErr != nil {
		return nil, e.openErr
	}
	doc := &fakeDocument{pages: e.pages, src: src}
	e.mu.Lock()
	e.docs = append(e.docs, doc)
	e.mu.Unlock()
	return doc, nil
}

type fakeDocument struct {
	pages  int
	src    Source
	closes atomic.Int32
	render func(ctx context.Context, page int) error
}

func (d *fakeDocument) PageCount() int { return d.pages }

func (d *fakeDocument) PageSize(page int) (domain.PageSize, error) {
	return domain.PageSize{Width: 600, Height: 800}, nil
}

func (d *fakeDocument) Render(ctx context.Context, page int, scale float64) (image.Image, error) {
	if d.render != nil {
		if err := d.render(ctx, page); err != nil {
			return nil, err
		}
	}
	return image.NewGray(image.Rect(0, 0, int(600*scale), int(800*scale))), nil
}

func (d *fakeDocument) Text(ctx context.Context, page int) (string, error) {
	return fmt.Sprintf("page %d text", page), nil
}

func (d *fakeDocument) Close() error {
	d.closes.Add(1)
	return nil
}

// buildPDF writes a minimal well-formed PDF with one filled rectangle per
// page and a correct cross-reference table.
func buildPDF(sizes [][2]float64) []byte {
	return buildPaddedPDF(sizes, 0)
}

// buildPaddedPDF is buildPDF with pad bytes of whitespace appended to each
// content stream. The catalog and page tree stay at the start of the file
// and the cross-reference table at its end.
func buildPaddedPDF(sizes [][2]float64, pad int) []byte {
	var buf bytes.Buffer
	var offsets []int
	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	n := len(sizes)
	buf.WriteString("%PDF-1.4\n")
	writeObj("<< /Type /Catalog /Pages 2 0 R >>")
	kids := make([]string, n)
	for i := range sizes {
		kids[i] = fmt.Sprintf("%d 0 R", 3+i)
	}
	writeObj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n))
	for i, sz := range sizes {
		writeObj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] /Resources << >> /Contents %d 0 R >>", sz[0], sz[1], 3+n+i))
	}
	for range sizes {
		stream := "0 0 1 rg 10 10 50 50 re f\n" + strings.Repeat(" ", pad)
		writeObj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}
