// Package bitio implements the bit-level writer and reader the binary
// format layers variable-width bin counts on top of. Bits accumulate in a
// 64-bit register and flush whole bytes big-endian, most-significant bit
// first, mirroring the big-endian byte order the rest of the wire format
// uses. This mirrors the accumulator-register shape of a classic
// bit-packed writer/reader pair (flush on overflow, drain the remainder
// on Finish), adapted here from little-endian 32-bit flushes to
// big-endian arbitrary-width flushes to match this format's byte order.
package bitio

import (
	"io"

	"github.com/gohistogram/sketch/sketcherr"
)

// Writer accumulates bit chunks of width 0..64 and flushes whole bytes,
// most-significant bit first, to an underlying io.Writer.
type Writer struct {
	w       io.Writer
	bits    uint64 // accumulator; the used bits occupy the low end
	used    int    // number of valid bits currently in the accumulator
	scratch [1]byte
}

// NewWriter returns a Writer that flushes completed bytes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write appends the low nBits bits of v (0 <= nBits <= 64) to the stream.
// Bits are taken from v most-significant-first within the nBits window.
func (bw *Writer) Write(v uint64, nBits int) error {
	if nBits == 0 {
		return nil
	}
	if nBits < 64 {
		v &= (uint64(1) << uint(nBits)) - 1
	}

	remaining := nBits
	for remaining > 0 {
		if bw.used == 64 {
			if err := bw.flushByte(); err != nil {
				return err
			}
		}
		free := 64 - bw.used
		take := remaining
		if take > free {
			take = free
		}
		// Place the top `take` bits of the remaining value into the low
		// `take` bits of the accumulator's next free slot.
		shiftOutOfV := uint(remaining - take)
		chunk := (v >> shiftOutOfV) & ((uint64(1) << uint(take)) - 1)
		bw.bits = (bw.bits << uint(take)) | chunk
		bw.used += take
		remaining -= take

		for bw.used >= 8 {
			if err := bw.flushByte(); err != nil {
				return err
			}
		}
	}
	return nil
}

// flushByte emits the 8 most-significant bits currently held, if a full
// byte is available; otherwise it is a no-op. Called internally once
// bw.used has reached or exceeded 8 (or 64, to make room).
func (bw *Writer) flushByte() error {
	if bw.used < 8 {
		return nil
	}
	shift := uint(bw.used - 8)
	b := byte(bw.bits >> shift)
	bw.used -= 8
	bw.bits &= (uint64(1) << uint(bw.used)) - 1
	bw.scratch[0] = b
	if _, err := bw.w.Write(bw.scratch[:1]); err != nil {
		return sketcherr.IO(err)
	}
	return nil
}

// Finish flushes any partial byte, padded with zero bits in the low
// positions (i.e. the valid bits occupy the most-significant end of the
// final byte), and resets the writer's internal state.
func (bw *Writer) Finish() error {
	if bw.used == 0 {
		return nil
	}
	pad := uint(8 - bw.used%8)
	if pad == 8 {
		pad = 0
	}
	b := byte(bw.bits << pad)
	bw.used = 0
	bw.bits = 0
	bw.scratch[0] = b
	if _, err := bw.w.Write(bw.scratch[:1]); err != nil {
		return sketcherr.IO(err)
	}
	return nil
}

// Reader pulls bit chunks of width 0..64 from an underlying io.Reader,
// mirroring Writer's buffering so that a sequence of Write calls followed
// by Finish can be read back by the same sequence of Read calls.
type Reader struct {
	r       io.Reader
	bits    uint64
	used    int
	scratch [1]byte
}

// NewReader returns a Reader that pulls bytes from r as needed.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Read returns the next nBits bits (0 <= nBits <= 64) as the low bits of
// the result.
func (br *Reader) Read(nBits int) (uint64, error) {
	if nBits == 0 {
		return 0, nil
	}
	var result uint64
	remaining := nBits
	for remaining > 0 {
		if br.used == 0 {
			if err := br.fillByte(); err != nil {
				return 0, err
			}
		}
		take := remaining
		if take > br.used {
			take = br.used
		}
		shift := uint(br.used - take)
		chunk := (br.bits >> shift) & ((uint64(1) << uint(take)) - 1)
		result = (result << uint(take)) | chunk
		br.used -= take
		br.bits &= (uint64(1) << uint(br.used)) - 1
		remaining -= take
	}
	return result, nil
}

func (br *Reader) fillByte() error {
	if _, err := io.ReadFull(br.r, br.scratch[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return sketcherr.MalformedData("unexpected end of stream reading bits")
		}
		return sketcherr.IO(err)
	}
	br.bits = (br.bits << 8) | uint64(br.scratch[0])
	br.used += 8
	return nil
}
