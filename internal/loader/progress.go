package loader

import (
	"math"
	"sync"
)

// progressReporter turns byte counts into non-decreasing percentages.
// Values below 100 are reported while downloading; 100 is reported exactly
// once, by finish, when the document structure has been parsed.
type progressReporter struct {
	mu    sync.Mutex
	emit  func(int)
	last  int
	final bool
}

func newProgressReporter(emit func(int)) *progressReporter {
	return &progressReporter{emit: emit}
}

func (p *progressReporter) update(loaded, total int64) {
	if p.emit == nil || total <= 0 {
		return
	}
	pct := int(math.Round(float64(loaded) / float64(total) * 100))

	// emit runs under the lock so concurrent chunk completions cannot
	// deliver percentages out of order.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.final || pct >= 100 || pct <= p.last {
		return
	}
	p.last = pct
	p.emit(pct)
}

func (p *progressReporter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.final {
		return
	}
	p.final = true
	p.last = 100
	if p.emit != nil {
		p.emit(100)
	}
}
