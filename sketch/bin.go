package sketch

import (
	"github.com/gohistogram/sketch/sketcherr"
)

// BinIterator is a cursor over a histogram's non-empty bins — underflow,
// regular, and overflow alike — ordered by bin index. It is invalidated by
// any mutation of the histogram it was created from.
type BinIterator interface {
	BinIndex() int32
	Count() uint64
	LessCount() uint64
	GreaterCount() uint64
	LowerBound() float64
	UpperBound() float64
	IsUnderflowBin() bool
	IsOverflowBin() bool
	IsFirstNonEmptyBin() bool
	IsLastNonEmptyBin() bool
	Next() error
	Previous() error
	Copy() BinIterator
}

// binIterator is the concrete BinIterator shared by static, dynamic and
// preprocessed histograms (preprocessedHistogram positions its starting
// binIterator from a prefix-sum ladder instead of a countStore scan).
type binIterator struct {
	h       *histogram
	index   int32
	count   uint64
	less    uint64
	greater uint64
}

func (it *binIterator) BinIndex() int32     { return it.index }
func (it *binIterator) Count() uint64       { return it.count }
func (it *binIterator) LessCount() uint64   { return it.less }
func (it *binIterator) GreaterCount() uint64 { return it.greater }

func (it *binIterator) LowerBound() float64 {
	lo := it.h.layout.GetBinLowerBound(it.index)
	if it.h.min > lo {
		return it.h.min
	}
	return lo
}

func (it *binIterator) UpperBound() float64 {
	hi := it.h.layout.GetBinUpperBound(it.index)
	if it.h.max < hi {
		return it.h.max
	}
	return hi
}

func (it *binIterator) IsUnderflowBin() bool { return it.index == it.h.layout.GetUnderflowBinIndex() }
func (it *binIterator) IsOverflowBin() bool  { return it.index == it.h.layout.GetOverflowBinIndex() }
func (it *binIterator) IsFirstNonEmptyBin() bool { return it.less == 0 }
func (it *binIterator) IsLastNonEmptyBin() bool  { return it.greater == 0 }

func (it *binIterator) Next() error {
	if it.IsLastNonEmptyBin() {
		return sketcherr.InvalidArgument("no non-empty bin follows the last non-empty bin")
	}
	nextIdx, count, ok := logicalNext(it.h, it.index)
	if !ok {
		return sketcherr.InvalidArgument("no non-empty bin follows bin %d", it.index)
	}
	it.less += it.count
	it.greater -= count
	it.index = nextIdx
	it.count = count
	return nil
}

func (it *binIterator) Previous() error {
	if it.IsFirstNonEmptyBin() {
		return sketcherr.InvalidArgument("no non-empty bin precedes the first non-empty bin")
	}
	prevIdx, count, ok := logicalPrev(it.h, it.index)
	if !ok {
		return sketcherr.InvalidArgument("no non-empty bin precedes bin %d", it.index)
	}
	it.greater += it.count
	it.less -= count
	it.index = prevIdx
	it.count = count
	return nil
}

func (it *binIterator) Copy() BinIterator {
	cp := *it
	return &cp
}

// logicalCount returns the count held at logical bin index idx, where idx
// may be the layout's underflow index, overflow index, or a regular bin.
func logicalCount(h *histogram, idx int32) uint64 {
	switch {
	case idx == h.layout.GetUnderflowBinIndex():
		return h.underflow
	case idx == h.layout.GetOverflowBinIndex():
		return h.overflow
	default:
		return h.counts.get(idx)
	}
}

// logicalFirst returns the first non-empty logical bin: the underflow bin
// if non-empty, else the first non-empty regular bin, else the overflow
// bin if non-empty.
func logicalFirst(h *histogram) (int32, uint64, bool) {
	if h.underflow > 0 {
		return h.layout.GetUnderflowBinIndex(), h.underflow, true
	}
	if idx, ok := h.counts.firstNonEmpty(); ok {
		return idx, h.counts.get(idx), true
	}
	if h.overflow > 0 {
		return h.layout.GetOverflowBinIndex(), h.overflow, true
	}
	return 0, 0, false
}

// logicalLast is the symmetric counterpart of logicalFirst.
func logicalLast(h *histogram) (int32, uint64, bool) {
	if h.overflow > 0 {
		return h.layout.GetOverflowBinIndex(), h.overflow, true
	}
	if idx, ok := h.counts.lastNonEmpty(); ok {
		return idx, h.counts.get(idx), true
	}
	if h.underflow > 0 {
		return h.layout.GetUnderflowBinIndex(), h.underflow, true
	}
	return 0, 0, false
}

func logicalNext(h *histogram, idx int32) (int32, uint64, bool) {
	underflowIdx := h.layout.GetUnderflowBinIndex()
	overflowIdx := h.layout.GetOverflowBinIndex()
	if idx == overflowIdx {
		return 0, 0, false
	}
	if idx == underflowIdx {
		if nidx, ok := h.counts.firstNonEmpty(); ok {
			return nidx, h.counts.get(nidx), true
		}
		if h.overflow > 0 {
			return overflowIdx, h.overflow, true
		}
		return 0, 0, false
	}
	if nidx, ok := h.counts.next(idx); ok {
		return nidx, h.counts.get(nidx), true
	}
	if h.overflow > 0 {
		return overflowIdx, h.overflow, true
	}
	return 0, 0, false
}

func logicalPrev(h *histogram, idx int32) (int32, uint64, bool) {
	underflowIdx := h.layout.GetUnderflowBinIndex()
	overflowIdx := h.layout.GetOverflowBinIndex()
	if idx == underflowIdx {
		return 0, 0, false
	}
	if idx == overflowIdx {
		if pidx, ok := h.counts.lastNonEmpty(); ok {
			return pidx, h.counts.get(pidx), true
		}
		if h.underflow > 0 {
			return underflowIdx, h.underflow, true
		}
		return 0, 0, false
	}
	if pidx, ok := h.counts.prev(idx); ok {
		return pidx, h.counts.get(pidx), true
	}
	if h.underflow > 0 {
		return underflowIdx, h.underflow, true
	}
	return 0, 0, false
}

// newFirstIterator and newLastIterator build a binIterator positioned at
// the first/last non-empty logical bin of h.
func newFirstIterator(h *histogram) (*binIterator, error) {
	idx, count, ok := logicalFirst(h)
	if !ok {
		return nil, sketcherr.InvalidArgument("histogram has no non-empty bins")
	}
	return &binIterator{h: h, index: idx, count: count, less: 0, greater: h.total - count}, nil
}

func newLastIterator(h *histogram) (*binIterator, error) {
	idx, count, ok := logicalLast(h)
	if !ok {
		return nil, sketcherr.InvalidArgument("histogram has no non-empty bins")
	}
	return &binIterator{h: h, index: idx, count: count, less: h.total - count, greater: 0}, nil
}
