package sketch

import (
	"github.com/gohistogram/sketch/algo"
	"github.com/gohistogram/sketch/sketcherr"
)

// snapshotCounts is the frozen, sorted regular-bin count storage backing a
// preprocessedHistogram: two parallel slices of (bin index, count) pairs
// for every non-empty regular bin, searched by binary search. add always
// fails, since a preprocessed snapshot is immutable.
type snapshotCounts struct {
	idx []int32
	val []uint64
}

func newSnapshotCounts(source countStore) *snapshotCounts {
	s := &snapshotCounts{}
	bin, ok := source.firstNonEmpty()
	for ok {
		s.idx = append(s.idx, bin)
		s.val = append(s.val, source.get(bin))
		bin, ok = source.next(bin)
	}
	return s
}

func (s *snapshotCounts) search(bin int32) int {
	lo, hi := 0, len(s.idx)
	for lo < hi {
		mid := (lo + hi) / 2
		if s.idx[mid] < bin {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func (s *snapshotCounts) get(bin int32) uint64 {
	i := s.search(bin)
	if i < len(s.idx) && s.idx[i] == bin {
		return s.val[i]
	}
	return 0
}

func (s *snapshotCounts) add(bin int32, delta uint64) (uint64, error) {
	return 0, sketcherr.InvalidArgument("histogram is immutable")
}

func (s *snapshotCounts) firstNonEmpty() (int32, bool) {
	if len(s.idx) == 0 {
		return 0, false
	}
	return s.idx[0], true
}

func (s *snapshotCounts) lastNonEmpty() (int32, bool) {
	if len(s.idx) == 0 {
		return 0, false
	}
	return s.idx[len(s.idx)-1], true
}

func (s *snapshotCounts) next(bin int32) (int32, bool) {
	i := s.search(bin + 1)
	if i < len(s.idx) {
		return s.idx[i], true
	}
	return 0, false
}

func (s *snapshotCounts) prev(bin int32) (int32, bool) {
	i := s.search(bin) - 1
	if i >= 0 {
		return s.idx[i], true
	}
	return 0, false
}

func (s *snapshotCounts) footprintBytes() int { return len(s.idx)*4 + len(s.val)*8 }

// preprocessedHistogram is an immutable snapshot that adds a prefix-sum
// ladder over every non-empty logical bin (underflow, regular, overflow)
// on top of the shared histogram base, so GetBinByRank resolves in
// O(log n) instead of the base's O(n) end-relative scan.
type preprocessedHistogram struct {
	*histogram
	ladderIdx    []int32
	ladderPrefix []uint64
}

func newPreprocessedHistogram(source *histogram) *preprocessedHistogram {
	snap := newSnapshotCounts(source.counts)
	base := &histogram{
		layout:    source.layout,
		min:       source.min,
		max:       source.max,
		total:     source.total,
		underflow: source.underflow,
		overflow:  source.overflow,
		counts:    snap,
		mutable:   false,
	}

	var idxs []int32
	var vals []uint64
	if source.underflow > 0 {
		idxs = append(idxs, source.layout.GetUnderflowBinIndex())
		vals = append(vals, source.underflow)
	}
	idxs = append(idxs, snap.idx...)
	vals = append(vals, snap.val...)
	if source.overflow > 0 {
		idxs = append(idxs, source.layout.GetOverflowBinIndex())
		vals = append(vals, source.overflow)
	}

	prefix := make([]uint64, len(vals)+1)
	for i, v := range vals {
		prefix[i+1] = prefix[i] + v
	}

	return &preprocessedHistogram{histogram: base, ladderIdx: idxs, ladderPrefix: prefix}
}

func (ph *preprocessedHistogram) GetBinByRank(rank uint64) (BinIterator, error) {
	if rank >= ph.total {
		return nil, sketcherr.InvalidArgument("rank %d out of range [0,%d)", rank, ph.total)
	}
	n := int64(len(ph.ladderIdx))
	i, err := algo.FindFirst(0, n-1, func(j int64) bool { return ph.ladderPrefix[j+1] > rank })
	if err != nil {
		return nil, err
	}
	less := ph.ladderPrefix[i]
	count := ph.ladderPrefix[i+1] - less
	return &binIterator{
		h:       ph.histogram,
		index:   ph.ladderIdx[i],
		count:   count,
		less:    less,
		greater: ph.total - less - count,
	}, nil
}

func (ph *preprocessedHistogram) GetPreprocessedCopy() Histogram { return ph }

func (ph *preprocessedHistogram) GetEstimatedFootprintInBytes() int {
	return histogramFixedOverhead + ph.counts.footprintBytes() + len(ph.ladderIdx)*4 + len(ph.ladderPrefix)*8
}
