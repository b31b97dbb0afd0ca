package loader

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"sync"

	"pdf-page-viewer/internal/domain"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/pagetree"
)

// Source is random access to a document while it is still downloading.
type Source interface {
	io.ReaderAt
	Size() int64
	// Bytes blocks until the whole document is available.
	Bytes(ctx context.Context) ([]byte, error)
}

// Engine parses and rasterizes documents.
type Engine interface {
	Open(ctx context.Context, src Source) (Document, error)
}

// Document is a parsed document. Page numbers are 1-based.
type Document interface {
	PageCount() int
	PageSize(page int) (domain.PageSize, error)
	Render(ctx context.Context, page int, scale float64) (image.Image, error)
	Text(ctx context.Context, page int) (string, error)
	Close() error
}

// pointsPerInch maps scale 1.0 onto the natural page size in pixels.
const pointsPerInch = 72

// fallbackPageSize is used for pages whose MediaBox could not be read (A4).
var fallbackPageSize = domain.PageSize{Width: 595, Height: 842}

// PDFEngine reads the document structure through seehuhn's lazy reader,
// which only touches the trailer, the cross-reference table and the page
// tree. Files it cannot parse are read whole and repaired by pdfcpu.
// Pages are rasterized with MuPDF through go-fitz once the whole file is
// present.
type PDFEngine struct {
	logger domain.Logger
}

func NewPDFEngine(logger domain.Logger) *PDFEngine {
	return &PDFEngine{logger: logger}
}

func (e *PDFEngine) Open(ctx context.Context, src Source) (Document, error) {
	sizes, err := readPageTree(src)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if domain.IsCancellation(err) {
			return nil, err
		}
		e.logger.Warn("Incremental parse failed; reading the whole document", "error", err)
		sizes, err = e.readRepaired(ctx, src)
		if err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.logger.Debug("Document structure parsed", "pages", len(sizes), "bytes", src.Size())
	return &pdfDocument{src: src, sizes: sizes}, nil
}

// readPageTree walks the page tree without loading content streams.
func readPageTree(src Source) ([]domain.PageSize, error) {
	r, err := pdf.NewReader(src, src.Size(), nil)
	if err != nil {
		return nil, fmt.Errorf("parse document structure: %w", err)
	}
	count, err := pagetree.NumPages(r)
	if err != nil {
		return nil, fmt.Errorf("read page count: %w", err)
	}

	sizes := make([]domain.PageSize, 0, min(count, 4096))
	it := pagetree.NewIterator(r)
	for _, dict := range it.All() {
		if len(sizes) == count {
			break
		}
		sizes = append(sizes, mediaBoxSize(r, dict))
	}
	if it.Err != nil {
		return nil, fmt.Errorf("read page tree: %w", it.Err)
	}
	// /Count can overstate the leaves in damaged files; the leaves win.
	if len(sizes) == 0 {
		return nil, errEmptyDocument
	}
	return sizes, nil
}

// mediaBoxSize returns the displayed page size, honouring /Rotate.
func mediaBoxSize(r pdf.Getter, page pdf.Dict) domain.PageSize {
	box, err := pdf.GetRectangle(r, page["MediaBox"])
	if err != nil || box == nil || box.Dx() <= 0 || box.Dy() <= 0 {
		return fallbackPageSize
	}
	size := domain.PageSize{Width: box.Dx(), Height: box.Dy()}
	if rotate, err := pdf.GetInteger(r, page["Rotate"]); err == nil && (rotate%180+180)%180 == 90 {
		size.Width, size.Height = size.Height, size.Width
	}
	return size
}

// readRepaired waits for the whole file and parses it with relaxed
// validation.
func (e *PDFEngine) readRepaired(ctx context.Context, src Source) ([]domain.PageSize, error) {
	data, err := src.Bytes(ctx)
	if err != nil {
		return nil, err
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("parse document structure: %w", err)
	}

	sizes := make([]domain.PageSize, pdfCtx.PageCount)
	for i := range sizes {
		sizes[i] = fallbackPageSize
	}
	dims, err := pdfCtx.PageDims()
	if err != nil {
		e.logger.Warn("Page dimensions unavailable; using fallback size", "error", err)
	}
	for i, d := range dims {
		if i < len(sizes) && d.Width > 0 && d.Height > 0 {
			sizes[i] = domain.PageSize{Width: d.Width, Height: d.Height}
		}
	}
	return sizes, nil
}

type pdfDocument struct {
	src   Source
	sizes []domain.PageSize

	mu     sync.Mutex
	raster *fitz.Document
	closed bool
}

func (d *pdfDocument) PageCount() int {
	return len(d.sizes)
}

func (d *pdfDocument) PageSize(page int) (domain.PageSize, error) {
	if page < 1 || page > len(d.sizes) {
		return domain.PageSize{}, domain.ErrPageOutOfRange
	}
	return d.sizes[page-1], nil
}

func (d *pdfDocument) Render(ctx context.Context, page int, scale float64) (image.Image, error) {
	doc, err := d.rasterizer(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return doc.ImageDPI(page-1, pointsPerInch*scale)
}

func (d *pdfDocument) Text(ctx context.Context, page int) (string, error) {
	doc, err := d.rasterizer(ctx)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return doc.Text(page - 1)
}

// rasterizer opens the MuPDF document on first use; it waits for the
// download to complete.
func (d *pdfDocument) rasterizer(ctx context.Context) (*fitz.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, domain.ErrDocumentClosed
	}
	if d.raster != nil {
		return d.raster, nil
	}
	data, err := d.src.Bytes(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open rasterizer: %w", err)
	}
	d.raster = doc
	return doc, nil
}

func (d *pdfDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.raster != nil {
		err := d.raster.Close()
		d.raster = nil
		return err
	}
	return nil
}
