// Package estimator implements the closed set of strategies used to turn a
// bin-relative rank into a concrete sample value, and a sorted-access
// quantile estimator built on top of them.
package estimator

// Bin is the minimal view a ValueEstimator needs of the bin a rank falls
// into: its clamped bounds, how many samples it holds, and whether it is
// the bin holding the histogram's global minimum or maximum.
type Bin interface {
	LowerBound() float64
	UpperBound() float64
	Count() uint64
	IsFirstNonEmptyBin() bool
	IsLastNonEmptyBin() bool
}

// ValueEstimator interpolates a concrete sample value for the sample at
// the given zero-based order within bin (0 <= order < bin.Count()), given
// the histogram's overall min and max for the global-extreme special
// cases every variant shares.
type ValueEstimator interface {
	Estimate(bin Bin, order uint64, min, max float64) float64
}

type uniformEstimator struct{}

// Uniform places a bin's k samples at k equidistant positions spanning
// [lower, upper], offset by half a step on each end, except that the bin
// holding the global minimum places its first sample exactly at min and
// the bin holding the global maximum places its last sample exactly at
// max. This is the default estimator.
var Uniform ValueEstimator = uniformEstimator{}

func (uniformEstimator) Estimate(bin Bin, order uint64, min, max float64) float64 {
	k := bin.Count()
	if bin.IsFirstNonEmptyBin() && order == 0 {
		return min
	}
	if bin.IsLastNonEmptyBin() && order == k-1 {
		return max
	}
	lo, hi := bin.LowerBound(), bin.UpperBound()
	return lo + (hi-lo)*(float64(order)+0.5)/float64(k)
}

type lowerBoundEstimator struct{}

// LowerBound places every sample at the bin's lower bound, except that
// the global maximum is placed exactly at max.
var LowerBound ValueEstimator = lowerBoundEstimator{}

func (lowerBoundEstimator) Estimate(bin Bin, order uint64, _, max float64) float64 {
	if bin.IsLastNonEmptyBin() && order == bin.Count()-1 {
		return max
	}
	return bin.LowerBound()
}

type upperBoundEstimator struct{}

// UpperBound places every sample at the bin's upper bound, except that
// the global minimum is placed exactly at min.
var UpperBound ValueEstimator = upperBoundEstimator{}

func (upperBoundEstimator) Estimate(bin Bin, order uint64, min, _ float64) float64 {
	if bin.IsFirstNonEmptyBin() && order == 0 {
		return min
	}
	return bin.UpperBound()
}

type midPointEstimator struct{}

// MidPoint places every sample at the bin's midpoint, except for the
// global minimum and maximum, which are placed exactly at min and max.
var MidPoint ValueEstimator = midPointEstimator{}

func (midPointEstimator) Estimate(bin Bin, order uint64, min, max float64) float64 {
	k := bin.Count()
	if bin.IsFirstNonEmptyBin() && order == 0 {
		return min
	}
	if bin.IsLastNonEmptyBin() && order == k-1 {
		return max
	}
	return (bin.LowerBound() + bin.UpperBound()) / 2
}
