package estimator

import (
	"math"

	"github.com/gohistogram/sketch/algo"
	"github.com/gohistogram/sketch/sketcherr"
)

// QuantileEstimator turns a probability p in [0,1] into an estimated
// sample value, given the total sample count n and sorted-order access to
// estimated values via GetValue-style rank lookups.
type QuantileEstimator interface {
	Estimate(p float64, n uint64, sorted func(rank uint64) float64) float64
}

type sciPyEstimator struct {
	alphap, betap float64
}

// NewSciPy returns the SciPy-style quantile estimator parameterized by
// (alphap, betap), both of which must lie in [0,1]. (0.5, 0.5) reproduces
// the median-unbiased default used when no parameters are given.
func NewSciPy(alphap, betap float64) (QuantileEstimator, error) {
	if math.IsNaN(alphap) || alphap < 0 || alphap > 1 {
		return nil, sketcherr.InvalidArgument("alphap must be in [0,1], got %v", alphap)
	}
	if math.IsNaN(betap) || betap < 0 || betap > 1 {
		return nil, sketcherr.InvalidArgument("betap must be in [0,1], got %v", betap)
	}
	return sciPyEstimator{alphap: alphap, betap: betap}, nil
}

func (e sciPyEstimator) Estimate(p float64, n uint64, sorted func(uint64) float64) float64 {
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted(0)
	}
	nf := float64(n)
	z := algo.Interpolate(p, 0, e.alphap-1, 1, nf-e.betap)
	z = algo.Clip(z, 0, nf-1)

	lo := uint64(math.Floor(z))
	frac := z - math.Floor(z)
	if lo+1 >= n {
		return sorted(lo)
	}
	loVal := sorted(lo)
	return loVal + frac*(sorted(lo+1)-loVal)
}
