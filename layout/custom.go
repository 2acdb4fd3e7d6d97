package layout

import (
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/gohistogram/sketch/algo"
	"github.com/gohistogram/sketch/sketcherr"
)

// CustomLayout maps values against an explicit, caller-supplied list of
// strictly increasing, finite breakpoints, rather than an error-bound
// formula. Regular bin i covers [breakpoints[i], breakpoints[i+1]) for i
// in [0, len(breakpoints)-2]; values below breakpoints[0] fall into the
// underflow bin and values at or above the last breakpoint fall into the
// overflow bin.
type CustomLayout struct {
	breakpoints []float64
}

// NewCustom validates and builds a CustomLayout. It requires at least two
// finite, strictly increasing breakpoints.
func NewCustom(breakpoints []float64) (CustomLayout, error) {
	if len(breakpoints) < 2 {
		return CustomLayout{}, sketcherr.InvalidArgument("custom layout needs at least 2 breakpoints, got %d", len(breakpoints))
	}
	cp := make([]float64, len(breakpoints))
	copy(cp, breakpoints)
	for i, b := range cp {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return CustomLayout{}, sketcherr.InvalidArgument("breakpoint %d is not finite: %v", i, b)
		}
		if i > 0 && cp[i-1] >= b {
			return CustomLayout{}, sketcherr.InvalidArgument(
				"breakpoints must be strictly increasing, got %v then %v at index %d", cp[i-1], b, i)
		}
	}
	return CustomLayout{breakpoints: cp}, nil
}

// MapToBinIndex finds the regular bin i such that breakpoints[i] <= x <
// breakpoints[i+1] via a binary search over the breakpoint slice,
// falling back to the underflow/overflow sentinels outside the range.
func (c CustomLayout) MapToBinIndex(x float64) int32 {
	if math.IsNaN(x) {
		return c.GetOverflowBinIndex()
	}
	bp := c.breakpoints
	if x < bp[0] {
		return c.GetUnderflowBinIndex()
	}
	if x >= bp[len(bp)-1] {
		return c.GetOverflowBinIndex()
	}

	// bp[len(bp)-1] > x is guaranteed by the caller already having
	// excluded x >= bp[len(bp)-1], satisfying FindFirst's precondition.
	j, err := algo.FindFirst(0, int64(len(bp)-1), func(idx int64) bool {
		return bp[idx] > x
	})
	if err != nil {
		// Unreachable given the guard above, but fall back to overflow
		// rather than panic if it ever is.
		return c.GetOverflowBinIndex()
	}
	return int32(j - 1)
}

func (c CustomLayout) GetBinLowerBound(i int32) float64 {
	switch {
	case i <= c.GetUnderflowBinIndex():
		return math.Inf(-1)
	case i >= c.GetOverflowBinIndex():
		return c.breakpoints[len(c.breakpoints)-1]
	default:
		return c.breakpoints[i]
	}
}

func (c CustomLayout) GetBinUpperBound(i int32) float64 {
	switch {
	case i <= c.GetUnderflowBinIndex():
		return c.breakpoints[0]
	case i >= c.GetOverflowBinIndex():
		return math.Inf(1)
	default:
		return c.breakpoints[i+1]
	}
}

func (c CustomLayout) GetUnderflowBinIndex() int32 { return -1 }
func (c CustomLayout) GetOverflowBinIndex() int32  { return int32(len(c.breakpoints)) - 1 }

func (c CustomLayout) Equal(other Layout) bool {
	o, ok := other.(CustomLayout)
	if !ok || len(o.breakpoints) != len(c.breakpoints) {
		return false
	}
	for i := range c.breakpoints {
		if c.breakpoints[i] != o.breakpoints[i] {
			return false
		}
	}
	return true
}

func (c CustomLayout) HashCode() uint64 {
	buf := make([]byte, 8*len(c.breakpoints))
	for i, b := range c.breakpoints {
		bits := math.Float64bits(b)
		for j := 0; j < 8; j++ {
			buf[8*i+j] = byte(bits >> (56 - 8*j))
		}
	}
	return xxhash.Sum64(buf)
}

func (c CustomLayout) String() string {
	return fmt.Sprintf("CustomLayout{breakpoints=%v}", c.breakpoints)
}
