// Package serial implements the binary wire format (version 0) that lets a
// histogram be written to and read back from a byte stream without either
// side of the codec knowing anything about layouts, countStore storage
// strategies, or bin iterators. Write consumes a Source; Read drives a
// Builder. Both are small capability interfaces so the sketch package can
// implement them against its concrete histogram types while this package
// stays fully decoupled from sketch (avoiding an import cycle, since sketch
// is the package that calls into serial, not the other way around).
//
// The format itself: byte 0 is the version, byte 1 is an info byte packing
// a mode/special selector, a min<max flag, a saturated regular-bin-count
// class, and underflow/overflow presence flags. "Effective" counts are the
// real counts with one occurrence removed from whichever bin holds the
// global minimum and one removed from whichever holds the global maximum
// (the same bin, twice, if a single bin holds both) — this package writes
// and reads those effective counts mechanically; reconstructing the two
// excluded occurrences back onto the correct bin is the Builder
// implementation's job, done in Finalize once it knows the real Layout.
package serial

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"github.com/gohistogram/sketch/algo"
	"github.com/gohistogram/sketch/bitio"
	"github.com/gohistogram/sketch/sketcherr"
	"github.com/gohistogram/sketch/varint"
	"github.com/klauspost/compress/flate"
)

const formatVersion byte = 0

// Source is the write-side view Write needs from a histogram.
// ForEachRegularBin must call fn once per non-empty regular bin in
// ascending index order; fn returning false stops the walk early.
type Source interface {
	Min() float64
	Max() float64
	Total() uint64
	Underflow() uint64
	Overflow() uint64
	ForEachRegularBin(fn func(idx int32, count uint64) bool)
}

// Builder is the read-side counterpart. Read drives it exclusively through
// these methods and never constructs a histogram itself; Build returns
// whatever concrete type the Builder implementation was set up to produce.
//
// IncrementUnderflow, IncrementOverflow, and IncrementRegularCount receive
// effective counts straight off the wire. Finalize is called once, after
// every Increment call, with the decoded min and max; a Builder adds back
// the one (or two, if the same bin holds both extremes) occurrences that
// Write excluded, using its own Layout to find the right bin. RecordSingleValue
// is the separate, simpler path for a histogram holding exactly one value
// (total == 1), which the format never routes through the effective-count
// machinery at all.
type Builder interface {
	IncrementUnderflow(n uint64) error
	IncrementOverflow(n uint64) error
	AllocateRegularCounts(minBin, maxBin int32, mode uint8) error
	IncrementRegularCount(idx int32, n uint64) error
	RecordSingleValue(v float64) error
	Finalize(min, max float64) error
	Build() (any, error)
}

type regularBin struct {
	idx   int32
	count uint64
}

type logicalKind int

const (
	kindNone logicalKind = iota
	kindUnderflow
	kindRegular
	kindOverflow
)

func firstLogical(underflow, overflow uint64, bins []regularBin) (logicalKind, int) {
	if underflow > 0 {
		return kindUnderflow, 0
	}
	if len(bins) > 0 {
		return kindRegular, 0
	}
	if overflow > 0 {
		return kindOverflow, 0
	}
	return kindNone, 0
}

func lastLogical(underflow, overflow uint64, bins []regularBin) (logicalKind, int) {
	if overflow > 0 {
		return kindOverflow, 0
	}
	if len(bins) > 0 {
		return kindRegular, len(bins) - 1
	}
	if underflow > 0 {
		return kindUnderflow, 0
	}
	return kindNone, 0
}

func applyDecrement(kind logicalKind, pos int, effUnderflow, effOverflow *uint64, effBins []uint64) {
	switch kind {
	case kindUnderflow:
		*effUnderflow--
	case kindOverflow:
		*effOverflow--
	case kindRegular:
		effBins[pos]--
	}
}

// cellBits is the bit width of one packed count cell at the given mode:
// modes 0..6 hold 1,2,4,8,16,32,64 bits respectively.
func cellBits(mode uint8) int { return int(uint(1) << mode) }

// Write encodes src as a version-0 byte stream.
func Write(w io.Writer, src Source) error {
	bw := bufio.NewWriter(w)

	total := src.Total()
	if err := bw.WriteByte(formatVersion); err != nil {
		return sketcherr.IO(err)
	}

	if total == 0 {
		if err := bw.WriteByte(0); err != nil {
			return sketcherr.IO(err)
		}
		return flushWriter(bw)
	}

	if total == 1 {
		if err := bw.WriteByte(1 << 3); err != nil {
			return sketcherr.IO(err)
		}
		if err := writeDouble(bw, src.Min()); err != nil {
			return err
		}
		return flushWriter(bw)
	}

	var bins []regularBin
	src.ForEachRegularBin(func(idx int32, count uint64) bool {
		bins = append(bins, regularBin{idx, count})
		return true
	})

	underflow, overflow := src.Underflow(), src.Overflow()
	effUnderflow, effOverflow := underflow, overflow
	effBins := make([]uint64, len(bins))
	for i, b := range bins {
		effBins[i] = b.count
	}

	firstKind, firstPos := firstLogical(underflow, overflow, bins)
	lastKind, lastPos := lastLogical(underflow, overflow, bins)
	applyDecrement(firstKind, firstPos, &effUnderflow, &effOverflow, effBins)
	applyDecrement(lastKind, lastPos, &effUnderflow, &effOverflow, effBins)

	countOf := make(map[int32]uint64, len(bins))
	var firstEffIdx, lastEffIdx int32
	sawNonzero := false
	var effRegularSum uint64
	mode := uint8(0)
	for i, b := range bins {
		if effBins[i] == 0 {
			continue
		}
		if !sawNonzero {
			firstEffIdx = b.idx
			sawNonzero = true
		}
		lastEffIdx = b.idx
		effRegularSum += effBins[i]
		countOf[b.idx] = effBins[i]
		if m := algo.ModeForValue(effBins[i]); m > mode {
			mode = m
		}
	}

	// regularClass is the saturated sum of effective regular counts, not
	// the number of distinct bins touched: at 1 or 2 the written index (or
	// pair of indices) alone determines the distribution, so no count
	// bytes follow. 1 means a single bin holding count 1. 2 means either
	// one bin holding count 2 (first == last) or two bins each holding
	// count 1 (first != last) — fully determined by comparing the two
	// written indices. 3 or more always carries an explicit bit-packed
	// count per bin in [first, last], since the sum alone no longer pins
	// down the distribution.
	regularClass := effRegularSum
	if regularClass > 3 {
		regularClass = 3
	}

	info := (mode + 1) & 0x07
	if src.Min() != src.Max() {
		info |= 1 << 3
	}
	info |= byte(regularClass) << 4
	if effUnderflow >= 1 {
		info |= 1 << 6
	}
	if effOverflow >= 1 {
		info |= 1 << 7
	}

	if err := bw.WriteByte(info); err != nil {
		return sketcherr.IO(err)
	}
	if err := writeDouble(bw, src.Min()); err != nil {
		return err
	}
	if src.Min() != src.Max() {
		if err := writeDouble(bw, src.Max()); err != nil {
			return err
		}
	}
	if effUnderflow >= 1 {
		if err := varint.WriteUvarint(bw, effUnderflow-1); err != nil {
			return err
		}
	}
	if effOverflow >= 1 {
		if err := varint.WriteUvarint(bw, effOverflow-1); err != nil {
			return err
		}
	}
	if regularClass >= 1 {
		if err := varint.WriteVarint(bw, int64(firstEffIdx)); err != nil {
			return err
		}
	}
	if regularClass >= 2 {
		if err := varint.WriteVarint(bw, int64(lastEffIdx)); err != nil {
			return err
		}
	}
	if regularClass >= 3 {
		bitw := bitio.NewWriter(bw)
		bits := cellBits(mode)
		for idx := firstEffIdx; idx <= lastEffIdx; idx++ {
			if err := bitw.Write(countOf[idx], bits); err != nil {
				return err
			}
		}
		if err := bitw.Finish(); err != nil {
			return err
		}
	}

	return flushWriter(bw)
}

// Read decodes a version-0 byte stream, driving b through its Increment/
// Record/Finalize/Build sequence. Read itself does not call Build; the
// caller does, once Read returns a nil error.
func Read(r io.Reader, b Builder) error {
	br := bufio.NewReader(r)

	version, err := br.ReadByte()
	if err != nil {
		return readFailure(err, "reading version byte")
	}
	if version != formatVersion {
		return sketcherr.MalformedData("unknown serial version %d", version)
	}

	info, err := br.ReadByte()
	if err != nil {
		return readFailure(err, "reading info byte")
	}

	raw3 := info & 0x07
	if raw3 == 0 {
		if info&(1<<3) == 0 {
			return nil
		}
		v, err := readDouble(br)
		if err != nil {
			return err
		}
		return b.RecordSingleValue(v)
	}

	mode := raw3 - 1
	isMinSmallerThanMax := info&(1<<3) != 0
	regularClass := int((info >> 4) & 0x03)
	hasUnderflow := info&(1<<6) != 0
	hasOverflow := info&(1<<7) != 0

	min, err := readDouble(br)
	if err != nil {
		return err
	}
	max := min
	if isMinSmallerThanMax {
		if max, err = readDouble(br); err != nil {
			return err
		}
	}

	if hasUnderflow {
		u, err := varint.ReadUvarint(br)
		if err != nil {
			return err
		}
		if err := b.IncrementUnderflow(u + 1); err != nil {
			return err
		}
	}
	if hasOverflow {
		o, err := varint.ReadUvarint(br)
		if err != nil {
			return err
		}
		if err := b.IncrementOverflow(o + 1); err != nil {
			return err
		}
	}

	if regularClass >= 1 {
		first, err := varint.ReadVarint(br)
		if err != nil {
			return err
		}
		last := first
		if regularClass >= 2 {
			if last, err = varint.ReadVarint(br); err != nil {
				return err
			}
		}
		if last < first || last-first > int64(math.MaxInt32) {
			return sketcherr.MalformedData("regular bin range [%d,%d] is invalid", first, last)
		}
		if err := b.AllocateRegularCounts(int32(first), int32(last), mode); err != nil {
			return err
		}

		switch regularClass {
		case 1:
			// Sum of effective regular counts is exactly 1: the single
			// written index is the only non-empty bin, holding count 1.
			if err := b.IncrementRegularCount(int32(first), 1); err != nil {
				return err
			}
		case 2:
			// Sum is exactly 2, fully determined by whether the two
			// written indices coincide: one bin holding 2, or two bins
			// each holding 1.
			if first == last {
				if err := b.IncrementRegularCount(int32(first), 2); err != nil {
					return err
				}
			} else {
				if err := b.IncrementRegularCount(int32(first), 1); err != nil {
					return err
				}
				if err := b.IncrementRegularCount(int32(last), 1); err != nil {
					return err
				}
			}
		default:
			bitr := bitio.NewReader(br)
			bits := cellBits(mode)
			for idx := first; idx <= last; idx++ {
				v, err := bitr.Read(bits)
				if err != nil {
					return err
				}
				if v != 0 {
					if err := b.IncrementRegularCount(int32(idx), v); err != nil {
						return err
					}
				}
			}
		}
	}

	return b.Finalize(min, max)
}

// WriteCompressed wraps Write in a DEFLATE stream.
func WriteCompressed(w io.Writer, src Source) error {
	fw, err := flate.NewWriter(w, flate.DefaultCompression)
	if err != nil {
		return sketcherr.IO(err)
	}
	if err := Write(fw, src); err != nil {
		return err
	}
	if err := fw.Close(); err != nil {
		return sketcherr.IO(err)
	}
	return nil
}

// ReadCompressed is the inverse of WriteCompressed.
func ReadCompressed(r io.Reader, b Builder) error {
	fr := flate.NewReader(r)
	defer fr.Close()
	return Read(fr, b)
}

func writeDouble(w io.Writer, v float64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(v))
	if _, err := w.Write(buf[:]); err != nil {
		return sketcherr.IO(err)
	}
	return nil
}

func readDouble(r io.Reader) (float64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, readFailure(err, "reading double")
	}
	return math.Float64frombits(binary.BigEndian.Uint64(buf[:])), nil
}

func readFailure(err error, what string) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return sketcherr.MalformedData("unexpected end of stream %s", what)
	}
	return sketcherr.IO(err)
}

func flushWriter(bw *bufio.Writer) error {
	if err := bw.Flush(); err != nil {
		return sketcherr.IO(err)
	}
	return nil
}
