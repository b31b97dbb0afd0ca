package viewer

import (
	"context"

	"pdf-page-viewer/internal/domain"
)

type pageSlot struct {
	state   domain.RenderState
	surface *domain.Surface
	// token identifies the render currently owning the slot; results
	// carrying another token are stale.
	token  uint64
	cancel context.CancelFunc
	err    error
}

// renderCache is the authoritative render state per page. It is owned by the
// viewer loop.
type renderCache struct {
	slots     []pageSlot
	lastToken uint64
}

func newRenderCache() *renderCache {
	return &renderCache{}
}

// reset creates pageCount Pending slots, dropping any previous ones.
func (c *renderCache) reset(pageCount int) {
	c.teardown()
	c.slots = make([]pageSlot, pageCount)
}

func (c *renderCache) slot(page int) *pageSlot {
	if page < 1 || page > len(c.slots) {
		return nil
	}
	return &c.slots[page-1]
}

func (c *renderCache) state(page int) domain.RenderState {
	if s := c.slot(page); s != nil {
		return s.state
	}
	return domain.RenderPending
}

// pending reports whether page may start a render.
func (c *renderCache) pending(page int) bool {
	s := c.slot(page)
	return s != nil && s.state == domain.RenderPending
}

// begin moves a Pending page to Rendering and returns the render token.
func (c *renderCache) begin(page int, cancel context.CancelFunc) uint64 {
	s := c.slot(page)
	c.lastToken++
	s.state = domain.RenderRendering
	s.token = c.lastToken
	s.cancel = cancel
	s.err = nil
	return s.token
}

// complete stores surface if token still owns the slot.
func (c *renderCache) complete(page int, token uint64, surface *domain.Surface) bool {
	s := c.slot(page)
	if s == nil || s.state != domain.RenderRendering || s.token != token {
		return false
	}
	s.cancel()
	s.state = domain.RenderRendered
	s.surface = surface
	s.cancel = nil
	return true
}

// fail returns the slot to Pending so a later visibility change retries it.
func (c *renderCache) fail(page int, token uint64, err error) bool {
	s := c.slot(page)
	if s == nil || s.state != domain.RenderRendering || s.token != token {
		return false
	}
	s.cancel()
	s.state = domain.RenderPending
	s.cancel = nil
	s.token = 0
	if !domain.IsCancellation(err) {
		s.err = err
	}
	return true
}

// invalidate cancels in-flight renders, releases rendered surfaces and
// returns every page that was Rendering or Rendered.
func (c *renderCache) invalidate() []int {
	var pages []int
	for i := range c.slots {
		s := &c.slots[i]
		switch s.state {
		case domain.RenderRendering:
			s.cancel()
		case domain.RenderRendered:
		default:
			continue
		}
		*s = pageSlot{state: domain.RenderPending}
		pages = append(pages, i+1)
	}
	return pages
}

func (c *renderCache) surface(page int) (*domain.Surface, error) {
	s := c.slot(page)
	if s == nil {
		return nil, domain.ErrPageOutOfRange
	}
	if s.state != domain.RenderRendered {
		return nil, domain.ErrPageNotRendered
	}
	return s.surface, nil
}

func (c *renderCache) snapshot() []domain.PageSlotState {
	out := make([]domain.PageSlotState, len(c.slots))
	for i, s := range c.slots {
		out[i] = domain.PageSlotState{Page: i + 1, State: s.state}
		if s.err != nil {
			out[i].Error = s.err.Error()
		}
	}
	return out
}

// teardown cancels every in-flight render and releases all surfaces.
func (c *renderCache) teardown() {
	for i := range c.slots {
		if c.slots[i].cancel != nil {
			c.slots[i].cancel()
		}
	}
	c.slots = nil
}
