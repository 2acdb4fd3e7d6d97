package layout

import (
	"math"
	"testing"
)

func TestOTelExponentialMonotoneAndReversible(t *testing.T) {
	l, err := NewOTelExponential(3, 0, -1e6, 1e6)
	if err != nil {
		t.Fatalf("construct: %v", err)
	}

	values := []float64{-1e5, -100, -1, -0.001, 0, 0.001, 1, 100, 1e5}
	prev := l.GetUnderflowBinIndex()
	for _, v := range values {
		idx := l.MapToBinIndex(v)
		if idx < prev {
			t.Errorf("%v: index %d less than previous %d", v, idx, prev)
		}
		prev = idx
	}
}

func TestOTelExponentialZeroThreshold(t *testing.T) {
	l, err := NewOTelExponential(2, 0.01, -10, 10)
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	zIdx := l.MapToBinIndex(0)
	if l.MapToBinIndex(0.005) != zIdx {
		t.Errorf("value within zeroThreshold should map to the zero bin")
	}
	if l.MapToBinIndex(0.5) == zIdx {
		t.Errorf("value outside zeroThreshold should not map to the zero bin")
	}
}

func TestOTelExponentialRejectsInvalid(t *testing.T) {
	cases := []struct {
		precision                int
		zeroThreshold, lo, hi float64
	}{
		{-100, 0, -1, 1},
		{3, -1, -1, 1},
		{3, math.NaN(), -1, 1},
		{3, 0, 1, -1},
	}
	for _, c := range cases {
		if _, err := NewOTelExponential(c.precision, c.zeroThreshold, c.lo, c.hi); err == nil {
			t.Errorf("case %+v: expected error", c)
		}
	}
}

func TestOTelExponentialHigherScaleMeansMoreBuckets(t *testing.T) {
	coarse, _ := NewOTelExponential(0, 0, 1, 1024)
	fine, _ := NewOTelExponential(4, 0, 1, 1024)
	if fine.GetOverflowBinIndex() <= coarse.GetOverflowBinIndex() {
		t.Errorf("higher precision should need more buckets to cover the same range: coarse=%d fine=%d",
			coarse.GetOverflowBinIndex(), fine.GetOverflowBinIndex())
	}
}

func TestOTelExponentialEqual(t *testing.T) {
	a, _ := NewOTelExponential(2, 0, -1, 1)
	b, _ := NewOTelExponential(2, 0, -1, 1)
	c, _ := NewOTelExponential(3, 0, -1, 1)
	if !a.Equal(b) {
		t.Errorf("identical config should be Equal")
	}
	if a.Equal(c) {
		t.Errorf("different precision should not be Equal")
	}
}
