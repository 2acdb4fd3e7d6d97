// Package sketch implements the static, dynamic, and preprocessed
// histogram containers that record samples against a layout.Layout and
// answer rank, value, and quantile queries.
package sketch

import (
	"fmt"
	"math"
	"math/bits"
	"strings"

	"github.com/gohistogram/sketch/estimator"
	"github.com/gohistogram/sketch/layout"
	"github.com/gohistogram/sketch/sketcherr"
)

// ValueEstimator and QuantileEstimator are the estimator package's
// interfaces, re-exported here so callers of this package never need to
// import estimator directly just to call GetValue/GetQuantile.
type ValueEstimator = estimator.ValueEstimator
type QuantileEstimator = estimator.QuantileEstimator

// Histogram records samples against a Layout and answers rank, value, and
// quantile queries over them. A Histogram offers no internal
// synchronization; callers must serialize concurrent mutation and any
// mutation with concurrent reads.
type Histogram interface {
	AddValue(x float64) error
	AddValueCount(x float64, n uint64) error
	AddAscendingSequence(f func(i int64) float64, length int64) error
	AddHistogram(other Histogram, ve ValueEstimator) error

	GetMin() float64
	GetMax() float64
	GetTotalCount() uint64
	GetUnderflowCount() uint64
	GetOverflowCount() uint64
	IsEmpty() bool
	GetLayout() layout.Layout

	GetBinByRank(rank uint64) (BinIterator, error)
	GetValue(rank uint64, ve ValueEstimator) float64
	GetQuantile(p float64, qe QuantileEstimator, ve ValueEstimator) float64
	GetEstimatedFootprintInBytes() int
	GetPreprocessedCopy() Histogram

	String() string
}

// histogramFixedOverhead approximates the bytes owned by a histogram
// outside its count storage: the layout reference, min/max/total/
// underflow/overflow fields, and the interface/pointer scaffolding.
const histogramFixedOverhead = 64

// histogram is the shared base embedded by staticHistogram,
// dynamicHistogram, and preprocessedHistogram. Its methods implement the
// full Histogram contract for the mutable (static/dynamic) case;
// preprocessedHistogram shadows the methods that differ.
type histogram struct {
	layout     layout.Layout
	min, max   float64
	total      uint64
	underflow  uint64
	overflow   uint64
	counts     countStore
	mutable    bool
}

func newHistogram(l layout.Layout, counts countStore, mutable bool) *histogram {
	return &histogram{
		layout:  l,
		min:     math.Inf(1),
		max:     math.Inf(-1),
		counts:  counts,
		mutable: mutable,
	}
}

func (h *histogram) GetMin() float64                { return h.min }
func (h *histogram) GetMax() float64                { return h.max }
func (h *histogram) GetTotalCount() uint64          { return h.total }
func (h *histogram) GetUnderflowCount() uint64      { return h.underflow }
func (h *histogram) GetOverflowCount() uint64       { return h.overflow }
func (h *histogram) IsEmpty() bool                  { return h.total == 0 }
func (h *histogram) GetLayout() layout.Layout       { return h.layout }

func (h *histogram) GetEstimatedFootprintInBytes() int {
	return histogramFixedOverhead + h.counts.footprintBytes()
}

// addRawCount increments the logical bin at idx by n, updating total, but
// does not touch min/max. Used by bin-index-preserving merges, where no
// single representative sample value exists for the increment.
func (h *histogram) addRawCount(idx int32, n uint64) error {
	newTotal, carry := bits.Add64(h.total, n, 0)
	if carry != 0 {
		return sketcherr.ArithmeticOverflow("total count overflows uint64")
	}
	switch idx {
	case h.layout.GetUnderflowBinIndex():
		nv, c := bits.Add64(h.underflow, n, 0)
		if c != 0 {
			return sketcherr.ArithmeticOverflow("underflow count overflows uint64")
		}
		h.underflow = nv
	case h.layout.GetOverflowBinIndex():
		nv, c := bits.Add64(h.overflow, n, 0)
		if c != 0 {
			return sketcherr.ArithmeticOverflow("overflow count overflows uint64")
		}
		h.overflow = nv
	default:
		if _, err := h.counts.add(idx, n); err != nil {
			return err
		}
	}
	h.total = newTotal
	return nil
}

// addAtIndex is addRawCount plus the min/max update implied by recording
// an actual sample value x.
func (h *histogram) addAtIndex(x float64, idx int32, n uint64) error {
	if err := h.addRawCount(idx, n); err != nil {
		return err
	}
	if x < h.min {
		h.min = x
	}
	if x > h.max {
		h.max = x
	}
	return nil
}

func (h *histogram) AddValue(x float64) error {
	return h.AddValueCount(x, 1)
}

func (h *histogram) AddValueCount(x float64, n uint64) error {
	if !h.mutable {
		return sketcherr.InvalidArgument("histogram is immutable")
	}
	if math.IsNaN(x) {
		return sketcherr.InvalidArgument("value must not be NaN")
	}
	idx := h.layout.MapToBinIndex(x)
	return h.addAtIndex(x, idx, n)
}

func (h *histogram) AddAscendingSequence(f func(i int64) float64, length int64) error {
	if !h.mutable {
		return sketcherr.InvalidArgument("histogram is immutable")
	}
	if length < 0 {
		return sketcherr.InvalidArgument("length must be non-negative, got %d", length)
	}
	var prevIdx int32
	var prevLo, prevHi float64
	havePrev := false
	for i := int64(0); i < length; i++ {
		x := f(i)
		if math.IsNaN(x) {
			return sketcherr.InvalidArgument("value must not be NaN")
		}
		idx := prevIdx
		if !havePrev || x < prevLo || x >= prevHi {
			idx = h.layout.MapToBinIndex(x)
			prevIdx = idx
			prevLo = h.layout.GetBinLowerBound(idx)
			prevHi = h.layout.GetBinUpperBound(idx)
			havePrev = true
		}
		if err := h.addAtIndex(x, idx, 1); err != nil {
			return err
		}
	}
	return nil
}

func (h *histogram) AddHistogram(other Histogram, ve ValueEstimator) error {
	if !h.mutable {
		return sketcherr.InvalidArgument("histogram is immutable")
	}
	if other.IsEmpty() {
		return nil
	}
	it, err := other.GetBinByRank(0)
	if err != nil {
		return err
	}
	if h.layout.Equal(other.GetLayout()) {
		for {
			if err := h.addRawCount(it.BinIndex(), it.Count()); err != nil {
				return err
			}
			if it.IsLastNonEmptyBin() {
				break
			}
			if err := it.Next(); err != nil {
				return err
			}
		}
		if other.GetMin() < h.min {
			h.min = other.GetMin()
		}
		if other.GetMax() > h.max {
			h.max = other.GetMax()
		}
		return nil
	}
	for {
		val := ve.Estimate(it, 0, other.GetMin(), other.GetMax())
		idx := h.layout.MapToBinIndex(val)
		if err := h.addAtIndex(val, idx, it.Count()); err != nil {
			return err
		}
		if it.IsLastNonEmptyBin() {
			break
		}
		if err := it.Next(); err != nil {
			return err
		}
	}
	return nil
}

func (h *histogram) GetBinByRank(rank uint64) (BinIterator, error) {
	if rank >= h.total {
		return nil, sketcherr.InvalidArgument("rank %d out of range [0,%d)", rank, h.total)
	}
	if rank < h.total/2 {
		it, err := newFirstIterator(h)
		if err != nil {
			return nil, err
		}
		for rank >= it.less+it.count {
			if err := it.Next(); err != nil {
				return nil, err
			}
		}
		return it, nil
	}
	it, err := newLastIterator(h)
	if err != nil {
		return nil, err
	}
	for rank < it.less {
		if err := it.Previous(); err != nil {
			return nil, err
		}
	}
	return it, nil
}

func (h *histogram) GetValue(rank uint64, ve ValueEstimator) float64 {
	it, err := h.GetBinByRank(rank)
	if err != nil {
		return math.NaN()
	}
	order := rank - it.LessCount()
	return ve.Estimate(it, order, h.min, h.max)
}

func (h *histogram) GetQuantile(p float64, qe QuantileEstimator, ve ValueEstimator) float64 {
	if h.total == 0 {
		return math.NaN()
	}
	return qe.Estimate(p, h.total, func(rank uint64) float64 { return h.GetValue(rank, ve) })
}

func (h *histogram) GetPreprocessedCopy() Histogram {
	return newPreprocessedHistogram(h)
}

func (h *histogram) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Histogram{layout=%s, total=%d, underflow=%d, overflow=%d, min=%g, max=%g}\n",
		h.layout.String(), h.total, h.underflow, h.overflow, h.min, h.max)
	if h.total == 0 {
		return b.String()
	}
	it, err := newFirstIterator(h)
	if err != nil {
		return b.String()
	}
	const maxBarWidth = 40
	maxCount := uint64(0)
	for cursor := it.Copy().(*binIterator); ; {
		if cursor.count > maxCount {
			maxCount = cursor.count
		}
		if cursor.IsLastNonEmptyBin() {
			break
		}
		if err := cursor.Next(); err != nil {
			break
		}
	}
	for {
		label := fmt.Sprintf("[%g, %g)", it.LowerBound(), it.UpperBound())
		if it.IsUnderflowBin() {
			label = fmt.Sprintf("(-Inf, %g)", it.UpperBound())
		} else if it.IsOverflowBin() {
			label = fmt.Sprintf("[%g, +Inf)", it.LowerBound())
		}
		barWidth := 0
		if maxCount > 0 {
			barWidth = int(it.count * maxBarWidth / maxCount)
		}
		fmt.Fprintf(&b, "%-28s %8d %s\n", label, it.count, strings.Repeat("#", barWidth))
		if it.IsLastNonEmptyBin() {
			break
		}
		if err := it.Next(); err != nil {
			break
		}
	}
	return b.String()
}
