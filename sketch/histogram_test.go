package sketch

import (
	"math"
	"strings"
	"testing"

	"github.com/gohistogram/sketch/estimator"
	"github.com/gohistogram/sketch/layout"
)

func quadraticLayout(t *testing.T) layout.Layout {
	t.Helper()
	l, err := layout.NewLogQuadratic(1e-5, 1e-2, -1e6, 1e6)
	if err != nil {
		t.Fatalf("NewLogQuadratic: %v", err)
	}
	return l
}

func TestEmptyHistogramQuantileIsNaN(t *testing.T) {
	l := quadraticLayout(t)
	h, err := NewStatic(l)
	if err != nil {
		t.Fatalf("NewStatic: %v", err)
	}
	if !h.IsEmpty() {
		t.Fatalf("fresh histogram should be empty")
	}
	if got := h.GetQuantile(0.5, sciPy(t), estimator.Uniform); !math.IsNaN(got) {
		t.Errorf("GetQuantile on empty histogram: got %v, want NaN", got)
	}
}

func sciPy(t *testing.T) estimator.QuantileEstimator {
	t.Helper()
	qe, err := estimator.NewSciPy(0.5, 0.5)
	if err != nil {
		t.Fatalf("NewSciPy: %v", err)
	}
	return qe
}

func TestAddValueUpdatesMinMaxTotal(t *testing.T) {
	h, err := NewStatic(quadraticLayout(t))
	if err != nil {
		t.Fatalf("NewStatic: %v", err)
	}
	if err := h.AddValue(5.5); err != nil {
		t.Fatalf("AddValue: %v", err)
	}
	if h.GetMin() != 5.5 || h.GetMax() != 5.5 {
		t.Errorf("min/max: got (%v,%v), want (5.5,5.5)", h.GetMin(), h.GetMax())
	}
	if h.GetTotalCount() != 1 {
		t.Errorf("total: got %d, want 1", h.GetTotalCount())
	}
}

func TestAddValueRejectsNaN(t *testing.T) {
	h, _ := NewStatic(quadraticLayout(t))
	if err := h.AddValue(math.NaN()); err == nil {
		t.Errorf("AddValue(NaN): expected error")
	}
}

func TestAddAscendingSequenceMatchesIndividualAdds(t *testing.T) {
	dynSeq, err := NewDynamic(quadraticLayout(t))
	if err != nil {
		t.Fatalf("NewDynamic: %v", err)
	}
	if err := dynSeq.AddAscendingSequence(func(i int64) float64 { return float64(i + 1) }, 50); err != nil {
		t.Fatalf("AddAscendingSequence: %v", err)
	}

	dynIndividual, err := NewDynamic(quadraticLayout(t))
	if err != nil {
		t.Fatalf("NewDynamic: %v", err)
	}
	for i := int64(0); i < 50; i++ {
		if err := dynIndividual.AddValue(float64(i + 1)); err != nil {
			t.Fatalf("AddValue: %v", err)
		}
	}

	if dynSeq.GetMin() != dynIndividual.GetMin() || dynSeq.GetMax() != dynIndividual.GetMax() {
		t.Errorf("min/max mismatch: seq (%v,%v) individual (%v,%v)",
			dynSeq.GetMin(), dynSeq.GetMax(), dynIndividual.GetMin(), dynIndividual.GetMax())
	}
	if dynSeq.GetTotalCount() != dynIndividual.GetTotalCount() {
		t.Errorf("total mismatch: seq %d individual %d", dynSeq.GetTotalCount(), dynIndividual.GetTotalCount())
	}
	for rank := uint64(0); rank < 50; rank++ {
		a := dynSeq.GetValue(rank, estimator.Uniform)
		b := dynIndividual.GetValue(rank, estimator.Uniform)
		if a != b {
			t.Errorf("rank %d: seq %v != individual %v", rank, a, b)
		}
	}
}

func TestGetValueExtremesAreExact(t *testing.T) {
	h, _ := NewDynamic(quadraticLayout(t))
	values := []float64{3, 1, 4, 1, 5, 9, 2, 6}
	for _, v := range values {
		if err := h.AddValue(v); err != nil {
			t.Fatalf("AddValue: %v", err)
		}
	}
	if got := h.GetValue(0, estimator.Uniform); got != h.GetMin() {
		t.Errorf("rank 0: got %v, want min %v", got, h.GetMin())
	}
	last := h.GetTotalCount() - 1
	if got := h.GetValue(last, estimator.Uniform); got != h.GetMax() {
		t.Errorf("rank %d: got %v, want max %v", last, got, h.GetMax())
	}
}

func TestRankMonotonicity(t *testing.T) {
	h, _ := NewDynamic(quadraticLayout(t))
	values := []float64{-500, -12.3, 0, 0.001, 3.5, 17, 204, 9999}
	for _, v := range values {
		if err := h.AddValue(v); err != nil {
			t.Fatalf("AddValue: %v", err)
		}
	}
	prev := math.Inf(-1)
	for rank := uint64(0); rank < h.GetTotalCount(); rank++ {
		got := h.GetValue(rank, estimator.Uniform)
		if got < prev {
			t.Errorf("rank %d: value %v is less than previous %v", rank, got, prev)
		}
		prev = got
	}
}

func TestQuantileBracket(t *testing.T) {
	h, _ := NewDynamic(quadraticLayout(t))
	for _, v := range []float64{-5.5, -1, 0, 2.2, 5.5, 100} {
		if err := h.AddValue(v); err != nil {
			t.Fatalf("AddValue: %v", err)
		}
	}
	qe := sciPy(t)
	if got := h.GetQuantile(0, qe, estimator.Uniform); got != h.GetMin() {
		t.Errorf("GetQuantile(0): got %v, want min %v", got, h.GetMin())
	}
	if got := h.GetQuantile(1, qe, estimator.Uniform); got != h.GetMax() {
		t.Errorf("GetQuantile(1): got %v, want max %v", got, h.GetMax())
	}
	for _, p := range []float64{0, 0.25, 0.5, 0.75, 1} {
		got := h.GetQuantile(p, qe, estimator.Uniform)
		if got < h.GetMin() || got > h.GetMax() {
			t.Errorf("GetQuantile(%v) = %v, outside [%v,%v]", p, got, h.GetMin(), h.GetMax())
		}
	}
}

func TestErrorGuaranteeWithinBound(t *testing.T) {
	absErr, relErr := 1e-5, 1e-2
	h, _ := NewDynamic(quadraticLayout(t))
	if err := h.AddValue(-5.5); err != nil {
		t.Fatalf("AddValue: %v", err)
	}
	qe := sciPy(t)
	got := h.GetQuantile(0.5, qe, estimator.Uniform)
	want := -5.5
	bound := math.Max(absErr, relErr*math.Abs(want))
	if math.Abs(got-want) > bound {
		t.Errorf("GetQuantile(0.5) = %v, want within %v of %v", got, bound, want)
	}
}

func TestUnderflowOverflowConservation(t *testing.T) {
	l, err := layout.NewCustom([]float64{0, 10, 20})
	if err != nil {
		t.Fatalf("NewCustom: %v", err)
	}
	h, err := NewDynamic(l)
	if err != nil {
		t.Fatalf("NewDynamic: %v", err)
	}
	for _, v := range []float64{-100, -1, 5, 15, 25, 1000} {
		if err := h.AddValue(v); err != nil {
			t.Fatalf("AddValue: %v", err)
		}
	}
	if h.GetUnderflowCount() != 2 {
		t.Errorf("underflow: got %d, want 2", h.GetUnderflowCount())
	}
	if h.GetOverflowCount() != 2 {
		t.Errorf("overflow: got %d, want 2", h.GetOverflowCount())
	}
	if h.GetTotalCount() != 6 {
		t.Errorf("total: got %d, want 6", h.GetTotalCount())
	}
}

func TestGetBinByRankOutOfRange(t *testing.T) {
	h, _ := NewDynamic(quadraticLayout(t))
	if err := h.AddValue(1); err != nil {
		t.Fatalf("AddValue: %v", err)
	}
	if _, err := h.GetBinByRank(1); err == nil {
		t.Errorf("GetBinByRank(1) on a single-sample histogram: expected error")
	}
}

func TestBinIteratorFirstLastFlags(t *testing.T) {
	h, _ := NewDynamic(quadraticLayout(t))
	for _, v := range []float64{1, 2, 3} {
		if err := h.AddValue(v); err != nil {
			t.Fatalf("AddValue: %v", err)
		}
	}
	it, err := h.GetBinByRank(0)
	if err != nil {
		t.Fatalf("GetBinByRank(0): %v", err)
	}
	if !it.IsFirstNonEmptyBin() {
		t.Errorf("rank 0 bin should be the first non-empty bin")
	}
	last, err := h.GetBinByRank(h.GetTotalCount() - 1)
	if err != nil {
		t.Fatalf("GetBinByRank(last): %v", err)
	}
	if !last.IsLastNonEmptyBin() {
		t.Errorf("last rank bin should be the last non-empty bin")
	}
}

func TestAddHistogramSameLayout(t *testing.T) {
	l := quadraticLayout(t)
	a, _ := NewDynamic(l)
	b, _ := NewDynamic(l)
	for _, v := range []float64{1, 2, 3} {
		if err := a.AddValue(v); err != nil {
			t.Fatalf("AddValue: %v", err)
		}
	}
	for _, v := range []float64{10, 20} {
		if err := b.AddValue(v); err != nil {
			t.Fatalf("AddValue: %v", err)
		}
	}
	if err := a.AddHistogram(b, estimator.Uniform); err != nil {
		t.Fatalf("AddHistogram: %v", err)
	}
	if a.GetTotalCount() != 5 {
		t.Errorf("total after merge: got %d, want 5", a.GetTotalCount())
	}
	if a.GetMax() != 20 {
		t.Errorf("max after merge: got %v, want 20", a.GetMax())
	}
}

func TestAddHistogramDifferentLayoutRebins(t *testing.T) {
	src, err := layout.NewLogLinear(1e-3, 1e-1, -1e3, 1e3)
	if err != nil {
		t.Fatalf("NewLogLinear: %v", err)
	}
	dst := quadraticLayout(t)

	a, _ := NewDynamic(dst)
	b, _ := NewDynamic(src)
	for _, v := range []float64{5, 6, 7} {
		if err := b.AddValue(v); err != nil {
			t.Fatalf("AddValue: %v", err)
		}
	}
	if err := a.AddHistogram(b, estimator.Uniform); err != nil {
		t.Fatalf("AddHistogram: %v", err)
	}
	if a.GetTotalCount() != 3 {
		t.Errorf("total after cross-layout merge: got %d, want 3", a.GetTotalCount())
	}
}

func TestGetPreprocessedCopyMatchesSource(t *testing.T) {
	h, _ := NewDynamic(quadraticLayout(t))
	for _, v := range []float64{-3, -1, 0, 2, 4, 9} {
		if err := h.AddValue(v); err != nil {
			t.Fatalf("AddValue: %v", err)
		}
	}
	pre := h.GetPreprocessedCopy()
	if pre.GetTotalCount() != h.GetTotalCount() {
		t.Errorf("preprocessed total: got %d, want %d", pre.GetTotalCount(), h.GetTotalCount())
	}
	for rank := uint64(0); rank < h.GetTotalCount(); rank++ {
		a := h.GetValue(rank, estimator.Uniform)
		b := pre.GetValue(rank, estimator.Uniform)
		if a != b {
			t.Errorf("rank %d: source %v != preprocessed %v", rank, a, b)
		}
	}
	if err := pre.AddValue(1); err == nil {
		t.Errorf("AddValue on preprocessed histogram: expected immutability error")
	}
	if pre.GetPreprocessedCopy() != pre {
		t.Errorf("GetPreprocessedCopy on an already-preprocessed histogram should return itself")
	}
}

func TestStringContainsLayoutSummary(t *testing.T) {
	h, _ := NewStatic(quadraticLayout(t))
	if err := h.AddValue(42); err != nil {
		t.Fatalf("AddValue: %v", err)
	}
	s := h.String()
	if !strings.Contains(s, h.GetLayout().String()) {
		t.Errorf("String() output %q does not contain the layout summary %q", s, h.GetLayout().String())
	}
}

func TestGetEstimatedFootprintInBytesGrowsWithData(t *testing.T) {
	h, _ := NewDynamic(quadraticLayout(t))
	empty := h.GetEstimatedFootprintInBytes()
	for i := 0; i < 1000; i++ {
		if err := h.AddValue(float64(i)); err != nil {
			t.Fatalf("AddValue: %v", err)
		}
	}
	if got := h.GetEstimatedFootprintInBytes(); got <= empty {
		t.Errorf("footprint after 1000 adds: got %d, want > %d", got, empty)
	}
}
