package sketch

// Option configures a rarely-changed construction knob on NewStatic or
// NewDynamic, following the functional-options idiom used throughout the
// ambient ecosystem this library draws on.
type Option func(*histogramOptions)

type histogramOptions struct {
	initialDynamicMode uint8
}

func defaultHistogramOptions() histogramOptions {
	return histogramOptions{initialDynamicMode: 0}
}

// WithInitialDynamicMode pre-sizes a dynamic histogram's bit-packed cells
// to start at mode m (one of 0..6, cell widths 1..64 bits) instead of
// mode 0, avoiding repeated promotion when the caller already knows
// counts will be large. NewDynamic and ReadAsDynamic hand the mode to the
// dynamic count storage; since that storage allocates its window lazily,
// the mode shows in memory from the first AddValue on. NewStatic ignores
// this option.
func WithInitialDynamicMode(m uint8) Option {
	return func(o *histogramOptions) {
		if m > 6 {
			m = 6
		}
		o.initialDynamicMode = m
	}
}
