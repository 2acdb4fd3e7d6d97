package sketch

import "github.com/gohistogram/sketch/layout"

// dynamicHistogram stores regular bin counts in a bit-packed, lazily
// allocated, growable window, trading a small per-update overhead for
// footprint proportional to the bins actually touched rather than the
// full range a layout can address.
type dynamicHistogram struct {
	*histogram
}

// NewDynamic returns a mutable histogram backed by bit-packed, on-demand
// storage; appropriate for layouts whose addressable bin range is far
// larger than the number of bins any single histogram will populate.
func NewDynamic(l layout.Layout, opts ...Option) (Histogram, error) {
	o := defaultHistogramOptions()
	for _, opt := range opts {
		opt(&o)
	}
	counts := newDynamicCounts(o.initialDynamicMode)
	return &dynamicHistogram{histogram: newHistogram(l, counts, true)}, nil
}
