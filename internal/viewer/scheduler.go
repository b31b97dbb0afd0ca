package viewer

import (
	"math"

	"pdf-page-viewer/internal/domain"
)

// observation correlates a placeholder with its visibility. It is recomputed
// on every observation pass and never stored.
type observation struct {
	page         int
	intersecting bool
}

type placement struct {
	top    float64
	height float64
}

// scheduler lays page placeholders out vertically and tracks which of them
// intersect the viewport plus the lookahead band. Like an intersection
// observer, a pass reports only placeholders whose state changed, except the
// first pass after initialize which reports every placeholder.
type scheduler struct {
	gap       float64
	lookahead float64

	sizes   []domain.PageSize
	places  []placement
	content float64

	seen   []bool
	primed bool
	active bool
}

func newScheduler(gap, lookahead float64) *scheduler {
	return &scheduler{gap: gap, lookahead: lookahead}
}

// initialize creates one placeholder per page and arms the observer.
func (s *scheduler) initialize(sizes []domain.PageSize, scale float64) {
	s.sizes = sizes
	s.seen = make([]bool, len(sizes))
	s.primed = false
	s.active = true
	s.layout(scale)
}

// layout recomputes placeholder geometry for scale. Intersection state is
// kept so the next pass reports what the new geometry changed.
func (s *scheduler) layout(scale float64) {
	s.places = make([]placement, len(s.sizes))
	y := 0.0
	for i, size := range s.sizes {
		if i > 0 {
			y += s.gap
		}
		h := size.Scaled(scale).Height
		s.places[i] = placement{top: y, height: h}
		y += h
	}
	s.content = y
}

func (s *scheduler) pageCount() int {
	return len(s.places)
}

func (s *scheduler) contentHeight() float64 {
	return s.content
}

// observe runs an observation pass for the viewport [top, top+height].
func (s *scheduler) observe(top, height float64) []observation {
	if !s.active {
		return nil
	}
	lo := top - s.lookahead
	hi := top + height + s.lookahead

	var out []observation
	for i, p := range s.places {
		in := p.top < hi && p.top+p.height > lo
		if s.primed && in == s.seen[i] {
			continue
		}
		s.seen[i] = in
		out = append(out, observation{page: i + 1, intersecting: in})
	}
	s.primed = true
	return out
}

// intersecting returns the pages seen as intersecting by the last pass.
func (s *scheduler) intersecting() []int {
	var pages []int
	for i, in := range s.seen {
		if in {
			pages = append(pages, i+1)
		}
	}
	return pages
}

// center returns the vertical centre of page's placeholder.
func (s *scheduler) center(page int) float64 {
	p := s.places[page-1]
	return p.top + p.height/2
}

// closest returns the page whose placeholder centre is nearest to y, or 0
// when nothing is laid out. Ties go to the lower page.
func (s *scheduler) closest(y float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, p := range s.places {
		d := math.Abs(p.top + p.height/2 - y)
		if d < bestDist {
			best, bestDist = i+1, d
		}
	}
	return best
}

// clampScroll limits top to the scrollable range for a viewport of height.
func (s *scheduler) clampScroll(top, height float64) float64 {
	maxTop := s.content - height
	if top > maxTop {
		top = maxTop
	}
	if top < 0 || math.IsNaN(top) {
		top = 0
	}
	return top
}

// teardown disconnects the observer and drops the layout. It is safe to call
// repeatedly and before initialize.
func (s *scheduler) teardown() {
	s.active = false
	s.primed = false
	s.sizes = nil
	s.places = nil
	s.seen = nil
	s.content = 0
}
