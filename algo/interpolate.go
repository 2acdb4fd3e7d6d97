package algo

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Interpolate estimates the value at x on the line through (x1,y1) and
// (x2,y2). It is symmetric under swapping the two points, monotone in x,
// always within [min(y1,y2), max(y1,y2)], and returns y1 whenever y1 and
// y2 share the same IEEE-754 bit pattern (which also sidesteps the
// degenerate x1==x2 case when y1==y2).
//
// Two algebraically equivalent forms are averaged before clipping:
// y1 + (x-x1)/(x2-x1)*(y2-y1) and y2 - (x2-x)/(x2-x1)*(y2-y1). Averaging
// them cancels first-order rounding error and keeps the result symmetric
// under point order. When infinities make one form NaN (inf - inf), the
// other form is used directly instead of propagating the NaN.
func Interpolate(x, x1, y1, x2, y2 float64) float64 {
	if math.Float64bits(y1) == math.Float64bits(y2) {
		return y1
	}

	deltaX := x2 - x1
	deltaY := y2 - y1
	t := (x - x1) / deltaX
	s := (x2 - x) / deltaX

	approx1 := y1 + t*deltaY
	approx2 := y2 - s*deltaY

	lo, hi := y1, y2
	if lo > hi {
		lo, hi = hi, lo
	}

	var avg float64
	switch {
	case math.IsNaN(approx1) && math.IsNaN(approx2):
		return math.NaN()
	case math.IsNaN(approx1):
		avg = approx2
	case math.IsNaN(approx2):
		avg = approx1
	default:
		avg = (approx1 + approx2) * 0.5
	}

	return Clip(avg, lo, hi)
}

// clip returns v clamped to [lo, hi]. NaN inputs (for float types) pass
// through unchanged in either position that touches them, since a NaN
// comparison is always false and therefore never clamps.
func clip[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clip returns v clamped to [lo, hi].
func Clip(v, lo, hi float64) float64 { return clip(v, lo, hi) }

// ClipInt64 is the int64 analogue of Clip, used by the search helpers.
func ClipInt64(v, lo, hi int64) int64 { return clip(v, lo, hi) }
