// Package layout implements the closed set of value-to-bin-index mappings
// THE CORE histogram types record samples against. A Layout is an
// immutable, freely shareable pure function object: given a layout,
// MapToBinIndex is a total, non-decreasing function of its argument's
// natural double ordering, and GetBinLowerBound/GetBinUpperBound invert it
// for any regular bin index.
package layout

// Layout maps real values to bin indices and back, guaranteeing a bounded
// absolute or relative error on every bin. Implementations are value
// types: once constructed they never mutate, so a single Layout may be
// shared by any number of histograms and goroutines.
type Layout interface {
	// MapToBinIndex returns the bin index x falls into. NaN maps to the
	// overflow index. The mapping is monotone non-decreasing in the
	// natural ordering of doubles.
	MapToBinIndex(x float64) int32

	// GetBinLowerBound and GetBinUpperBound return the (possibly
	// infinite) bounds of the half-open interval bin i covers. For the
	// underflow bin, the lower bound is -Inf; for the overflow bin, the
	// upper bound is +Inf.
	GetBinLowerBound(i int32) float64
	GetBinUpperBound(i int32) float64

	// GetUnderflowBinIndex and GetOverflowBinIndex return the sentinel
	// indices bracketing the regular bins: GetUnderflowBinIndex() <= any
	// regular index <= GetOverflowBinIndex(), with at least one regular
	// index existing strictly between them.
	GetUnderflowBinIndex() int32
	GetOverflowBinIndex() int32

	// Equal reports whether other is configured identically to this
	// layout (same concrete type and same parameters).
	Equal(other Layout) bool

	// HashCode returns a stable hash over this layout's configuration,
	// suitable for use as a fast pre-check before a full Equal.
	HashCode() uint64

	// String returns a short human-readable description, used by
	// Histogram.String and error messages.
	String() string
}
