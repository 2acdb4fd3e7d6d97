package layout

import (
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/gohistogram/sketch/sketcherr"
)

// logKind distinguishes the three log-family layouts for Equal, HashCode,
// and String, since they otherwise share every field and method.
type logKind int

const (
	logLinear logKind = iota
	logQuadratic
	logOptimal
)

func (k logKind) String() string {
	switch k {
	case logLinear:
		return "LogLinear"
	case logQuadratic:
		return "LogQuadratic"
	default:
		return "LogOptimal"
	}
}

func (k logKind) shape() bandShape {
	switch k {
	case logLinear:
		return linearShape{}
	case logQuadratic:
		return quadraticShape{}
	default:
		return optimalShape{}
	}
}

// logLayout is the shared engine behind LogLinearLayout, LogQuadraticLayout,
// and LogOptimalLayout. Positive values are assigned to octave bands
// anchored at half = absoluteError/2: octave m covers [half*2^m, half*2^(m+1)),
// subdivided into binsPerOctave bins by the kind's bandShape. Negative
// values mirror the same construction. Values with |x| < half fall into a
// single zero bin of width absoluteError, which trivially satisfies the
// combined error bound since max(absoluteError, relativeError*max(|lo|,|hi|))
// is always >= absoluteError.
type logLayout struct {
	kind logKind

	absoluteError float64
	relativeError float64
	valueRangeLow float64
	valueRangeHigh float64

	half           float64 // absoluteError / 2
	binsPerOctave  int64
	maxOctaves     int64 // octaves needed to cover max(|valueRangeLow|, valueRangeHigh)

	zeroIndex      int32
	underflowIndex int32
	overflowIndex  int32
}

func newLogLayout(kind logKind, absoluteError, relativeError, valueRangeLow, valueRangeHigh float64) (*logLayout, error) {
	if !(absoluteError > 0) || math.IsInf(absoluteError, 0) || math.IsNaN(absoluteError) {
		return nil, sketcherr.InvalidArgument("absoluteError must be positive and finite, got %v", absoluteError)
	}
	if !(relativeError > 0) || math.IsNaN(relativeError) || relativeError >= 1 {
		return nil, sketcherr.InvalidArgument("relativeError must be in (0,1), got %v", relativeError)
	}
	if math.IsNaN(valueRangeLow) || math.IsNaN(valueRangeHigh) {
		return nil, sketcherr.InvalidArgument("value range bounds must not be NaN")
	}
	if math.IsInf(valueRangeLow, 0) || math.IsInf(valueRangeHigh, 0) {
		return nil, sketcherr.InvalidArgument("value range bounds must be finite")
	}
	if valueRangeLow > valueRangeHigh {
		return nil, sketcherr.InvalidArgument("value range is reversed: low=%v high=%v", valueRangeLow, valueRangeHigh)
	}
	if !math.IsInf(valueRangeHigh, 0) && absoluteError > relativeError*valueRangeHigh {
		return nil, sketcherr.InvalidArgument(
			"absoluteError %v exceeds relativeError*valueRangeHigh (%v*%v=%v)",
			absoluteError, relativeError, valueRangeHigh, relativeError*valueRangeHigh)
	}

	l := &logLayout{
		kind:           kind,
		absoluteError:  absoluteError,
		relativeError:  relativeError,
		valueRangeLow:  valueRangeLow,
		valueRangeHigh: valueRangeHigh,
		half:           absoluteError / 2,
	}
	l.binsPerOctave = binsPerOctaveFor(kind.shape(), relativeError)

	octavesFor := func(v float64) int64 {
		if v <= l.half || math.IsInf(v, 0) {
			return 1
		}
		o := int64(math.Ceil(math.Log2(v/l.half))) + 1
		if o < 1 {
			o = 1
		}
		return o
	}
	octavesHigh := octavesFor(valueRangeHigh)
	octavesLow := octavesFor(-valueRangeLow)
	l.maxOctaves = octavesHigh
	if octavesLow > l.maxOctaves {
		l.maxOctaves = octavesLow
	}

	span := l.maxOctaves * l.binsPerOctave
	if span > (1<<30) {
		return nil, sketcherr.InvalidArgument("value range too wide for the given error bounds")
	}

	l.zeroIndex = 0
	l.overflowIndex = int32(span) + 1
	l.underflowIndex = -int32(span) - 1
	return l, nil
}

// binsPerOctaveFor searches for the smallest N such that every sub-bin
// produced by shape over [0,1), subdivided into N equal steps in
// shape-space, has a value ratio no larger than 1/(1-relativeError). The
// search runs once at construction time.
func binsPerOctaveFor(shape bandShape, relativeError float64) int64 {
	limit := 1 / (1 - relativeError)

	satisfies := func(n int64) bool {
		nf := float64(n)
		prevF := 1.0 // f = 1 + shape.inverse(0) = 1
		for k := int64(1); k <= n; k++ {
			f := 1 + shape.inverse(float64(k)/nf)
			if f/prevF > limit {
				return false
			}
			prevF = f
		}
		return true
	}

	n := int64(1)
	for !satisfies(n) {
		n *= 2
	}
	lo, hi := n/2, n
	if lo < 1 {
		lo = 1
	}
	for lo < hi {
		mid := lo + (hi-lo)/2
		if satisfies(mid) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return hi
}

func (l *logLayout) MapToBinIndex(x float64) int32 {
	if math.IsNaN(x) {
		return l.overflowIndex
	}
	if x >= -l.half && x < l.half {
		return l.zeroIndex
	}
	neg := x < 0
	m := math.Abs(x)
	if neg {
		// A negative bin covers [-upper, -lower) of its positive mirror, so
		// a magnitude sitting exactly on an edge belongs to the bin below it.
		m = math.Nextafter(m, 0)
	}

	octave := int64(math.Floor(math.Log2(m / l.half)))
	if octave < 0 {
		octave = 0
	}
	base := l.half * math.Exp2(float64(octave))
	t := m/base - 1
	if t < 0 {
		t = 0
	}
	if t >= 1 {
		t = math.Nextafter(1, 0)
	}
	y := l.kind.shape().forward(t)
	sub := int64(y * float64(l.binsPerOctave))
	if sub >= l.binsPerOctave {
		sub = l.binsPerOctave - 1
	}
	if sub < 0 {
		sub = 0
	}

	offset := octave*l.binsPerOctave + sub + 1
	// Rounding in Log2 and forward can land one bin away from the edges
	// regularBound reports; step to the bin whose edges hold m.
	if offset <= int64(l.overflowIndex) {
		if offset > 1 && m < l.regularBound(l.zeroIndex+int32(offset), false) {
			offset--
		} else if m >= l.regularBound(l.zeroIndex+int32(offset), true) {
			offset++
		}
	}
	if offset > int64(l.overflowIndex)-1 {
		if neg {
			return l.underflowIndex
		}
		return l.overflowIndex
	}
	if neg {
		return l.zeroIndex - int32(offset)
	}
	return l.zeroIndex + int32(offset)
}

func (l *logLayout) regularBound(i int32, upper bool) float64 {
	if i == l.zeroIndex {
		if upper {
			return l.half
		}
		return -l.half
	}
	neg := i < l.zeroIndex
	offset := int64(i - l.zeroIndex)
	if neg {
		offset = -offset
		upper = !upper // mirrored: the lower bound is minus the positive upper edge
	}
	offset-- // undo the +1 applied in MapToBinIndex
	octave := offset / l.binsPerOctave
	sub := offset % l.binsPerOctave
	base := l.half * math.Exp2(float64(octave))

	edge := sub
	if upper {
		edge++
	}
	y := float64(edge) / float64(l.binsPerOctave)
	t := l.kind.shape().inverse(y)
	v := base * (1 + t)
	if neg {
		return -v
	}
	return v
}

func (l *logLayout) GetBinLowerBound(i int32) float64 {
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

func (l *logLayout) GetBinUpperBound(i int32) float64 {
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

func (l *logLayout) GetUnderflowBinIndex() int32 { return l.underflowIndex }
func (l *logLayout) GetOverflowBinIndex() int32  { return l.overflowIndex }

func (l *logLayout) Equal(other Layout) bool {
	o, ok := asLogLayout(other, l.kind)
	if !ok {
		return false
	}
	return l.absoluteError == o.absoluteError &&
		l.relativeError == o.relativeError &&
		l.valueRangeLow == o.valueRangeLow &&
		l.valueRangeHigh == o.valueRangeHigh
}

func (l *logLayout) HashCode() uint64 {
	var buf [40]byte
	putFloat := func(off int, v float64) {
		bits := math.Float64bits(v)
		for i := 0; i < 8; i++ {
			buf[off+i] = byte(bits >> (56 - 8*i))
		}
	}
	putFloat(0, l.absoluteError)
	putFloat(8, l.relativeError)
	putFloat(16, l.valueRangeLow)
	putFloat(24, l.valueRangeHigh)
	putFloat(32, float64(l.kind))
	return xxhash.Sum64(buf[:])
}

func (l *logLayout) String() string {
	return fmt.Sprintf("%s{absoluteError=%g, relativeError=%g, valueRange=[%g,%g]}",
		l.kind, l.absoluteError, l.relativeError, l.valueRangeLow, l.valueRangeHigh)
}

func asLogLayout(other Layout, kind logKind) (*logLayout, bool) {
	switch kind {
	case logLinear:
		ll, ok := other.(LogLinearLayout)
		if !ok {
			return nil, false
		}
		return ll.l, true
	case logQuadratic:
		ll, ok := other.(LogQuadraticLayout)
		if !ok {
			return nil, false
		}
		return ll.l, true
	default:
		ll, ok := other.(LogOptimalLayout)
		if !ok {
			return nil, false
		}
		return ll.l, true
	}
}

// LogLinearLayout subdivides each power-of-two octave uniformly, the
// cheapest of the log-family mappings to evaluate and preferred when
// update speed dominates memory footprint.
type LogLinearLayout struct{ l *logLayout }

// NewLogLinear constructs a LogLinearLayout guaranteeing, for every finite
// x in [valueRangeLow, valueRangeHigh], that the bin containing x has
// width at most max(absoluteError, relativeError*max(|lo|,|hi|)).
func NewLogLinear(absoluteError, relativeError, valueRangeLow, valueRangeHigh float64) (LogLinearLayout, error) {
	l, err := newLogLayout(logLinear, absoluteError, relativeError, valueRangeLow, valueRangeHigh)
	if err != nil {
		return LogLinearLayout{}, err
	}
	return LogLinearLayout{l}, nil
}

func (x LogLinearLayout) MapToBinIndex(v float64) int32     { return x.l.MapToBinIndex(v) }
func (x LogLinearLayout) GetBinLowerBound(i int32) float64  { return x.l.GetBinLowerBound(i) }
func (x LogLinearLayout) GetBinUpperBound(i int32) float64  { return x.l.GetBinUpperBound(i) }
func (x LogLinearLayout) GetUnderflowBinIndex() int32       { return x.l.GetUnderflowBinIndex() }
func (x LogLinearLayout) GetOverflowBinIndex() int32        { return x.l.GetOverflowBinIndex() }
func (x LogLinearLayout) Equal(other Layout) bool           { return x.l.Equal(other) }
func (x LogLinearLayout) HashCode() uint64                  { return x.l.HashCode() }
func (x LogLinearLayout) String() string                    { return x.l.String() }

// LogQuadraticLayout subdivides each octave using a quadratic
// approximation of log2, trading a small amount of extra per-value
// arithmetic for noticeably fewer bins than LogLinearLayout at the same
// error bound.
type LogQuadraticLayout struct{ l *logLayout }

// NewLogQuadratic is the LogQuadraticLayout counterpart of NewLogLinear.
func NewLogQuadratic(absoluteError, relativeError, valueRangeLow, valueRangeHigh float64) (LogQuadraticLayout, error) {
	l, err := newLogLayout(logQuadratic, absoluteError, relativeError, valueRangeLow, valueRangeHigh)
	if err != nil {
		return LogQuadraticLayout{}, err
	}
	return LogQuadraticLayout{l}, nil
}

func (x LogQuadraticLayout) MapToBinIndex(v float64) int32    { return x.l.MapToBinIndex(v) }
func (x LogQuadraticLayout) GetBinLowerBound(i int32) float64 { return x.l.GetBinLowerBound(i) }
func (x LogQuadraticLayout) GetBinUpperBound(i int32) float64 { return x.l.GetBinUpperBound(i) }
func (x LogQuadraticLayout) GetUnderflowBinIndex() int32      { return x.l.GetUnderflowBinIndex() }
func (x LogQuadraticLayout) GetOverflowBinIndex() int32       { return x.l.GetOverflowBinIndex() }
func (x LogQuadraticLayout) Equal(other Layout) bool          { return x.l.Equal(other) }
func (x LogQuadraticLayout) HashCode() uint64                 { return x.l.HashCode() }
func (x LogQuadraticLayout) String() string                   { return x.l.String() }

// LogOptimalLayout subdivides each octave using the true logarithm,
// approaching the minimum possible bin count for the configured error
// bound at the cost of a log/exp call per lookup.
type LogOptimalLayout struct{ l *logLayout }

// NewLogOptimal is the LogOptimalLayout counterpart of NewLogLinear.
func NewLogOptimal(absoluteError, relativeError, valueRangeLow, valueRangeHigh float64) (LogOptimalLayout, error) {
	l, err := newLogLayout(logOptimal, absoluteError, relativeError, valueRangeLow, valueRangeHigh)
	if err != nil {
		return LogOptimalLayout{}, err
	}
	return LogOptimalLayout{l}, nil
}

func (x LogOptimalLayout) MapToBinIndex(v float64) int32    { return x.l.MapToBinIndex(v) }
func (x LogOptimalLayout) GetBinLowerBound(i int32) float64 { return x.l.GetBinLowerBound(i) }
func (x LogOptimalLayout) GetBinUpperBound(i int32) float64 { return x.l.GetBinUpperBound(i) }
func (x LogOptimalLayout) GetUnderflowBinIndex() int32      { return x.l.GetUnderflowBinIndex() }
func (x LogOptimalLayout) GetOverflowBinIndex() int32       { return x.l.GetOverflowBinIndex() }
func (x LogOptimalLayout) Equal(other Layout) bool          { return x.l.Equal(other) }
func (x LogOptimalLayout) HashCode() uint64                 { return x.l.HashCode() }
func (x LogOptimalLayout) String() string                   { return x.l.String() }
