package domain

import (
	"fmt"
	"image"
	"math"
	"time"
)

// Scale bounds applied to every zoom change.
const (
	MinScale     = 0.5
	MaxScale     = 3.0
	ScaleStep    = 0.2
	DefaultScale = 1.0
)

// ChunkSize is the byte-range size used for incremental document fetches.
const ChunkSize = 65536

// RenderState is the render lifecycle of a single page slot.
type RenderState int

const (
	RenderPending RenderState = iota
	RenderRendering
	RenderRendered
)

func (s RenderState) String() string {
	switch s {
	case RenderPending:
		return "pending"
	case RenderRendering:
		return "rendering"
	case RenderRendered:
		return "rendered"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name so JSON payloads stay readable.
func (s RenderState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name produced by MarshalText.
func (s *RenderState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "pending":
		*s = RenderPending
	case "rendering":
		*s = RenderRendering
	case "rendered":
		*s = RenderRendered
	default:
		return fmt.Errorf("unknown render state %q", text)
	}
	return nil
}

// PageSize is the natural size of a page in PDF points (1/72 inch).
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Scaled returns the size multiplied by scale.
func (p PageSize) Scaled(scale float64) PageSize {
	return PageSize{Width: p.Width * scale, Height: p.Height * scale}
}

// Surface is a rendered page bitmap. A surface is never mutated after it is
// produced; a re-render replaces it.
type Surface struct {
	Page  int
	Scale float64
	Image image.Image
}

// Bounds returns the pixel bounds of the surface, or an empty rectangle.
func (s *Surface) Bounds() image.Rectangle {
	if s == nil || s.Image == nil {
		return image.Rectangle{}
	}
	return s.Image.Bounds()
}

// EventType names the caller-facing notifications emitted by a viewer.
type EventType string

const (
	EventDocumentLoaded  EventType = "document_loaded"
	EventLoadingProgress EventType = "loading_progress"
	EventPageChanged     EventType = "page_changed"
	EventLoadFailed      EventType = "load_failed"
)

// Event is a single viewer notification.
type Event struct {
	Type      EventType `json:"type"`
	Locator   string    `json:"locator,omitempty"`
	PageCount int       `json:"page_count,omitempty"`
	Progress  int       `json:"progress"`
	Page      int       `json:"page,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// ViewerStatus is the coarse state of a viewer's active document.
type ViewerStatus string

const (
	ViewerIdle    ViewerStatus = "idle"
	ViewerLoading ViewerStatus = "loading"
	ViewerReady   ViewerStatus = "ready"
	ViewerFailed  ViewerStatus = "failed"
)

// PageSlotState is the externally visible view of one page slot.
type PageSlotState struct {
	Page  int         `json:"page"`
	State RenderState `json:"state"`
	Error string      `json:"error,omitempty"`
}

// ViewerState is a point-in-time snapshot of a viewer.
type ViewerState struct {
	Status         ViewerStatus    `json:"status"`
	Locator        string          `json:"locator,omitempty"`
	PageCount      int             `json:"page_count"`
	Progress       int             `json:"progress"`
	Scale          float64         `json:"scale"`
	CurrentPage    int             `json:"current_page"`
	ScrollTop      float64         `json:"scroll_top"`
	ViewportHeight float64         `json:"viewport_height"`
	ContentHeight  float64         `json:"content_height"`
	Pages          []PageSlotState `json:"pages"`
	Error          string          `json:"error,omitempty"`
}

// ViewerSettings tunes the layout and scheduling of new viewers.
type ViewerSettings struct {
	ViewportHeight float64       `yaml:"viewport_height"`
	InitialScale   float64       `yaml:"initial_scale"`
	Lookahead      float64       `yaml:"lookahead"`
	PageGap        float64       `yaml:"page_gap"`
	Debounce       time.Duration `yaml:"debounce"`
}

// ClampScale rounds scale to one decimal and clamps it into [MinScale, MaxScale].
func ClampScale(scale float64) float64 {
	scale = math.Round(scale*10) / 10
	if scale < MinScale {
		return MinScale
	}
	if scale > MaxScale {
		return MaxScale
	}
	return scale
}

// ClampPage clamps page into [1, pageCount]. It returns 0 when pageCount is 0.
func ClampPage(page, pageCount int) int {
	if pageCount <= 0 {
		return 0
	}
	if page < 1 {
		return 1
	}
	if page > pageCount {
		return pageCount
	}
	return page
}
