// Package varint implements the variable-length integer codecs used by
// the serialization format: an unsigned base-128 varint with MSB
// continuation bits, and a signed variant built on top of it via zigzag
// encoding. It deliberately does not reuse encoding/binary's varint
// helpers: this format's zigzag shift and its maximum-length truncation
// error need to match the wire format bit-for-bit, which encoding/binary
// does not expose control over.
package varint

import (
	"io"

	"github.com/gohistogram/sketch/sketcherr"
)

const (
	// MaxUvarint32Bytes is the longest a uint32 can encode to: ceil(32/7).
	MaxUvarint32Bytes = 5
	// MaxUvarint64Bytes is the longest a uint64 can encode to: ceil(64/7).
	MaxUvarint64Bytes = 10
)

// WriteUvarint writes v to w as an unsigned varint: 7 bits of payload per
// byte, low-order group first, with the high bit of every byte but the
// last set to 1 to signal continuation.
func WriteUvarint(w io.ByteWriter, v uint64) error {
	for v >= 0x80 {
		if err := w.WriteByte(byte(v) | 0x80); err != nil {
			return sketcherr.IO(err)
		}
		v >>= 7
	}
	if err := w.WriteByte(byte(v)); err != nil {
		return sketcherr.IO(err)
	}
	return nil
}

// ReadUvarint reads an unsigned varint from r. It fails with
// ErrMalformedData if the MaxUvarint64Bytes-th byte still has its
// continuation bit set (the stream cannot encode a valid uint64 in that
// case); no further byte is read.
func ReadUvarint(r io.ByteReader) (uint64, error) {
	var v uint64
	for shift := uint(0); ; shift += 7 {
		if shift >= 64 {
			return 0, sketcherr.MalformedData("varint exceeds 64 bits")
		}
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return 0, sketcherr.MalformedData("unexpected end of stream reading varint")
			}
			return 0, sketcherr.IO(err)
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, nil
		}
	}
}

// WriteVarint writes a signed integer using zigzag encoding, so that
// small-magnitude values (positive or negative) encode to few bytes:
// zigzag(n) = (n << 1) ^ (n >> 63).
func WriteVarint(w io.ByteWriter, v int64) error {
	return WriteUvarint(w, zigzagEncode(v))
}

// ReadVarint reads a signed zigzag-encoded varint written by WriteVarint.
func ReadVarint(r io.ByteReader) (int64, error) {
	u, err := ReadUvarint(r)
	if err != nil {
		return 0, err
	}
	return zigzagDecode(u), nil
}

func zigzagEncode(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63)
}

func zigzagDecode(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}
