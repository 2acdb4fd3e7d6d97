package sketch

import "github.com/gohistogram/sketch/layout"

// staticHistogram stores one counter per regular bin in a dense
// pre-allocated array, trading memory for the simplest possible
// per-update cost. It is appropriate when the layout's regular bin range
// is small enough to allocate up front.
type staticHistogram struct {
	*histogram
}

// NewStatic returns a mutable histogram with storage pre-allocated over
// every regular bin index l can produce. opts is accepted for interface
// symmetry with NewDynamic; static histograms have no construction-time
// knobs today.
func NewStatic(l layout.Layout, opts ...Option) (Histogram, error) {
	lowRegular := l.GetUnderflowBinIndex() + 1
	highRegular := l.GetOverflowBinIndex() - 1
	counts := newStaticCounts(lowRegular, highRegular)
	return &staticHistogram{histogram: newHistogram(l, counts, true)}, nil
}
