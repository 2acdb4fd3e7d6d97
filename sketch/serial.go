package sketch

import (
	"io"

	"github.com/gohistogram/sketch/layout"
	"github.com/gohistogram/sketch/serial"
	"github.com/gohistogram/sketch/sketcherr"
	"github.com/klauspost/compress/flate"
)

// histogramSource adapts any Histogram to serial.Source purely through its
// public interface (GetMin/GetMax/.../GetBinByRank), so it works uniformly
// across static, dynamic, and preprocessed histograms without needing
// access to their internal countStore representation.
type histogramSource struct{ h Histogram }

func (s histogramSource) Min() float64      { return s.h.GetMin() }
func (s histogramSource) Max() float64      { return s.h.GetMax() }
func (s histogramSource) Total() uint64     { return s.h.GetTotalCount() }
func (s histogramSource) Underflow() uint64 { return s.h.GetUnderflowCount() }
func (s histogramSource) Overflow() uint64  { return s.h.GetOverflowCount() }

func (s histogramSource) ForEachRegularBin(fn func(idx int32, count uint64) bool) {
	if s.h.IsEmpty() {
		return
	}
	it, err := s.h.GetBinByRank(0)
	if err != nil {
		return
	}
	for {
		if !it.IsUnderflowBin() && !it.IsOverflowBin() {
			if !fn(it.BinIndex(), it.Count()) {
				return
			}
		}
		if it.IsLastNonEmptyBin() {
			return
		}
		if err := it.Next(); err != nil {
			return
		}
	}
}

// Write encodes h as a version-0 byte stream (see the serial package doc).
func Write(w io.Writer, h Histogram) error {
	return serial.Write(w, histogramSource{h})
}

// WriteCompressed is Write wrapped in a DEFLATE stream.
func WriteCompressed(w io.Writer, h Histogram) error {
	return serial.WriteCompressed(w, histogramSource{h})
}

// histogramBuilder implements serial.Builder on top of the shared
// histogram base, reusing addRawCount/addAtIndex exactly as AddValue and
// AddHistogram do, so decoding a stream never duplicates the bin-update
// bookkeeping those paths already get right.
type histogramBuilder struct {
	l            layout.Layout
	h            *histogram
	preprocessed bool
}

func newHistogramBuilder(l layout.Layout, counts countStore, preprocessed bool) *histogramBuilder {
	return &histogramBuilder{l: l, h: newHistogram(l, counts, true), preprocessed: preprocessed}
}

func (b *histogramBuilder) IncrementUnderflow(n uint64) error {
	return b.h.addRawCount(b.l.GetUnderflowBinIndex(), n)
}

func (b *histogramBuilder) IncrementOverflow(n uint64) error {
	return b.h.addRawCount(b.l.GetOverflowBinIndex(), n)
}

// AllocateRegularCounts gives dynamic storage a chance to size its window
// once instead of growing it bin by bin while IncrementRegularCount plays
// back the wire's dense range; for static storage it validates the range
// falls within what NewStatic already allocated.
func (b *histogramBuilder) AllocateRegularCounts(minBin, maxBin int32, mode uint8) error {
	switch c := b.h.counts.(type) {
	case *dynamicCounts:
		c.resize(minBin, maxBin, mode)
	case *staticCounts:
		if minBin < c.base || maxBin > c.base+int32(len(c.counts))-1 {
			return sketcherr.MalformedData("regular bin range [%d,%d] outside static layout range", minBin, maxBin)
		}
	}
	return nil
}

func (b *histogramBuilder) IncrementRegularCount(idx int32, n uint64) error {
	return b.h.addRawCount(idx, n)
}

func (b *histogramBuilder) RecordSingleValue(v float64) error {
	idx := b.l.MapToBinIndex(v)
	return b.h.addAtIndex(v, idx, 1)
}

// Finalize adds back the one (or two, if the same bin holds both extremes)
// occurrences Write excluded from the wire's effective counts: the bin
// holding the global minimum always sits first in ascending order, and the
// bin holding the global maximum always sits last, so mapping min and max
// through the layout recovers exactly the bins Write decremented.
func (b *histogramBuilder) Finalize(min, max float64) error {
	if err := b.h.addAtIndex(min, b.l.MapToBinIndex(min), 1); err != nil {
		return err
	}
	return b.h.addAtIndex(max, b.l.MapToBinIndex(max), 1)
}

func (b *histogramBuilder) Build() (any, error) {
	if b.preprocessed {
		return b.h.GetPreprocessedCopy(), nil
	}
	if _, ok := b.h.counts.(*staticCounts); ok {
		return &staticHistogram{histogram: b.h}, nil
	}
	return &dynamicHistogram{histogram: b.h}, nil
}

func readInto(r io.Reader, b *histogramBuilder) (Histogram, error) {
	if err := serial.Read(r, b); err != nil {
		return nil, err
	}
	built, err := b.Build()
	if err != nil {
		return nil, err
	}
	return built.(Histogram), nil
}

// ReadAsStatic decodes a stream written by Write/WriteCompressed into a
// staticHistogram over l. l must match the layout the stream was written
// with; this is not verified against the stream, since the format carries
// no layout identity of its own.
func ReadAsStatic(r io.Reader, l layout.Layout) (Histogram, error) {
	lowRegular := l.GetUnderflowBinIndex() + 1
	highRegular := l.GetOverflowBinIndex() - 1
	b := newHistogramBuilder(l, newStaticCounts(lowRegular, highRegular), false)
	return readInto(r, b)
}

// ReadAsDynamic is ReadAsStatic's dynamic-storage counterpart.
func ReadAsDynamic(r io.Reader, l layout.Layout, opts ...Option) (Histogram, error) {
	o := defaultHistogramOptions()
	for _, opt := range opts {
		opt(&o)
	}
	b := newHistogramBuilder(l, newDynamicCounts(o.initialDynamicMode), false)
	return readInto(r, b)
}

// ReadAsPreprocessed decodes directly into an immutable preprocessed
// histogram, skipping the intermediate mutable copy a caller would
// otherwise build and then call GetPreprocessedCopy on.
func ReadAsPreprocessed(r io.Reader, l layout.Layout) (Histogram, error) {
	b := newHistogramBuilder(l, newDynamicCounts(0), true)
	return readInto(r, b)
}

// ReadAsStaticCompressed, ReadAsDynamicCompressed, and
// ReadAsPreprocessedCompressed are the DEFLATE-wrapped counterparts of
// their non-Compressed namesakes, mirroring WriteCompressed.
func ReadAsStaticCompressed(r io.Reader, l layout.Layout) (Histogram, error) {
	fr := flate.NewReader(r)
	defer fr.Close()
	return ReadAsStatic(fr, l)
}

func ReadAsDynamicCompressed(r io.Reader, l layout.Layout, opts ...Option) (Histogram, error) {
	fr := flate.NewReader(r)
	defer fr.Close()
	return ReadAsDynamic(fr, l, opts...)
}

func ReadAsPreprocessedCompressed(r io.Reader, l layout.Layout) (Histogram, error) {
	fr := flate.NewReader(r)
	defer fr.Close()
	return ReadAsPreprocessed(fr, l)
}
