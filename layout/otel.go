package layout

import (
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/gohistogram/sketch/sketcherr"
)

// OpenTelemetryExponentialBucketsLayout reproduces the OpenTelemetry exponential-histogram
// bucketing scheme: bins are pure powers of a base = 2^(2^-precision), so bin
// boundaries are independent of any observed data and two histograms built
// at the same precision always line up exactly. There is no error-bound
// negotiation; the caller picks the precision directly, trading bin count for
// precision.
//
// A single zero bin, [-zeroThreshold, zeroThreshold], absorbs values too
// small to place in a reliable exponential bucket, mirroring how the OTel
// SDK tracks a dedicated zero count alongside its positive and negative
// bucket ranges.
type OpenTelemetryExponentialBucketsLayout struct {
	precision          int
	zeroThreshold  float64
	scaleFactor    float64
	valueRangeLow  float64
	valueRangeHigh float64
	underflowIndex int32
	overflowIndex  int32
	zeroIndex      int32
}

// NewOTelExponential builds an OpenTelemetryExponentialBucketsLayout at the given precision
// (larger precision means finer buckets; OTel SDKs typically operate precision in
// [-10,20]). zeroThreshold must be non-negative and finite; it is commonly
// left at 0 unless small subnormal noise needs to be excluded from the
// exponential region.
func NewOTelExponential(precision int, zeroThreshold, valueRangeLow, valueRangeHigh float64) (OpenTelemetryExponentialBucketsLayout, error) {
	if precision < -10 || precision > 30 {
		return OpenTelemetryExponentialBucketsLayout{}, sketcherr.InvalidArgument("precision %d out of supported range [-10,30]", precision)
	}
	if math.IsNaN(zeroThreshold) || zeroThreshold < 0 || math.IsInf(zeroThreshold, 0) {
		return OpenTelemetryExponentialBucketsLayout{}, sketcherr.InvalidArgument("zeroThreshold must be finite and non-negative, got %v", zeroThreshold)
	}
	if math.IsNaN(valueRangeLow) || math.IsNaN(valueRangeHigh) || valueRangeLow > valueRangeHigh {
		return OpenTelemetryExponentialBucketsLayout{}, sketcherr.InvalidArgument("invalid value range [%v,%v]", valueRangeLow, valueRangeHigh)
	}

	l := OpenTelemetryExponentialBucketsLayout{
		precision:          precision,
		zeroThreshold:  zeroThreshold,
		scaleFactor:    math.Exp2(float64(precision)),
		valueRangeLow:  valueRangeLow,
		valueRangeHigh: valueRangeHigh,
	}

	maxAbs := math.Max(math.Abs(valueRangeLow), math.Abs(valueRangeHigh))
	var span int64
	if !math.IsInf(maxAbs, 0) && maxAbs > 0 {
		span = l.bucketIndex(maxAbs) + 2
		if span < 1 {
			span = 1
		}
	} else {
		span = 1
	}
	if span > (1 << 30) {
		return OpenTelemetryExponentialBucketsLayout{}, sketcherr.InvalidArgument("value range too wide for precision %d", precision)
	}

	l.zeroIndex = 0
	l.overflowIndex = int32(span) + 1
	l.underflowIndex = -int32(span) - 1
	return l, nil
}

// bucketIndex implements the standard OTel logarithm mapping: the bucket
// holding v (v>0) is ceil(log2(v) * 2^precision) - 1.
func (l OpenTelemetryExponentialBucketsLayout) bucketIndex(v float64) int64 {
	return int64(math.Ceil(math.Log2(v)*l.scaleFactor)) - 1
}

func (l OpenTelemetryExponentialBucketsLayout) bucketLowerBound(idx int64) float64 {
	return math.Exp2(float64(idx) / l.scaleFactor)
}

func (l OpenTelemetryExponentialBucketsLayout) MapToBinIndex(x float64) int32 {
	if math.IsNaN(x) {
		return l.overflowIndex
	}
	if x >= -l.zeroThreshold && x <= l.zeroThreshold {
		return l.zeroIndex
	}
	neg := x < 0
	m := math.Abs(x)
	idx := l.bucketIndex(m) + 1 // shift so the first positive bucket is offset 1 from zero
	if idx < 1 {
		idx = 1
	}
	offset := int32(idx)
	if int64(offset) != idx || offset >= l.overflowIndex-l.zeroIndex {
		if neg {
			return l.underflowIndex
		}
		return l.overflowIndex
	}
	if neg {
		return l.zeroIndex - offset
	}
	return l.zeroIndex + offset
}

func (l OpenTelemetryExponentialBucketsLayout) regularBound(i int32, upper bool) float64 {
	if i == l.zeroIndex {
		if upper {
			return l.zeroThreshold
		}
		return -l.zeroThreshold
	}
	neg := i < l.zeroIndex
	offset := int64(i - l.zeroIndex)
	if neg {
		offset = -offset
	}
	bucket := offset - 1
	edge := bucket
	if upper {
		edge++
	}
	v := l.bucketLowerBound(edge)
	if neg {
		return -v
	}
	return v
}

func (l OpenTelemetryExponentialBucketsLayout) GetBinLowerBound(i int32) float64 {
	if i <= l.underflowIndex {
		return math.Inf(-1)
	}
	if i >= l.overflowIndex {
		if i == l.overflowIndex {
			return l.regularBound(l.overflowIndex-1, true)
		}
		return math.Inf(1)
	}
	return l.regularBound(i, false)
}

func (l OpenTelemetryExponentialBucketsLayout) GetBinUpperBound(i int32) float64 {
	if i >= l.overflowIndex {
		return math.Inf(1)
	}
	if i <= l.underflowIndex {
		if i == l.underflowIndex {
			return l.regularBound(l.underflowIndex+1, false)
		}
		return math.Inf(-1)
	}
	return l.regularBound(i, true)
}

func (l OpenTelemetryExponentialBucketsLayout) GetUnderflowBinIndex() int32 { return l.underflowIndex }
func (l OpenTelemetryExponentialBucketsLayout) GetOverflowBinIndex() int32  { return l.overflowIndex }

func (l OpenTelemetryExponentialBucketsLayout) Equal(other Layout) bool {
	o, ok := other.(OpenTelemetryExponentialBucketsLayout)
	if !ok {
		return false
	}
	return l.precision == o.precision && l.zeroThreshold == o.zeroThreshold &&
		l.valueRangeLow == o.valueRangeLow && l.valueRangeHigh == o.valueRangeHigh
}

func (l OpenTelemetryExponentialBucketsLayout) HashCode() uint64 {
	var buf [28]byte
	buf[0] = byte(l.precision >> 24)
	buf[1] = byte(l.precision >> 16)
	buf[2] = byte(l.precision >> 8)
	buf[3] = byte(l.precision)
	putFloat := func(off int, v float64) {
		bits := math.Float64bits(v)
		for i := 0; i < 8; i++ {
			buf[off+i] = byte(bits >> (56 - 8*i))
		}
	}
	putFloat(4, l.zeroThreshold)
	putFloat(12, l.valueRangeLow)
	putFloat(20, l.valueRangeHigh)
	return xxhash.Sum64(buf[:])
}

func (l OpenTelemetryExponentialBucketsLayout) String() string {
	return fmt.Sprintf("OpenTelemetryExponentialBucketsLayout{precision=%d, zeroThreshold=%g, valueRange=[%g,%g]}",
		l.precision, l.zeroThreshold, l.valueRangeLow, l.valueRangeHigh)
}
