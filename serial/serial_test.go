package serial

import (
	"bytes"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// modelSource/modelBuilder give the round-trip tests a Source/Builder pair
// that does not depend on the sketch package's histogram types, so this
// package's tests exercise only the wire format. Regular bin indices are
// plain ints in [0,999]; values outside that range route to the
// underflow/overflow sentinels, playing the role a real layout.Layout
// would play for Finalize's min/max-to-bin lookup.
type modelSource struct {
	min, max            float64
	underflow, overflow uint64
	regular             map[int32]uint64
}

func (m *modelSource) Min() float64      { return m.min }
func (m *modelSource) Max() float64      { return m.max }
func (m *modelSource) Underflow() uint64 { return m.underflow }
func (m *modelSource) Overflow() uint64  { return m.overflow }

func (m *modelSource) Total() uint64 {
	t := m.underflow + m.overflow
	for _, v := range m.regular {
		t += v
	}
	return t
}

func (m *modelSource) ForEachRegularBin(fn func(idx int32, count uint64) bool) {
	idxs := make([]int32, 0, len(m.regular))
	for idx := range m.regular {
		idxs = append(idxs, idx)
	}
	sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })
	for _, idx := range idxs {
		if !fn(idx, m.regular[idx]) {
			return
		}
	}
}

const (
	modelUnderflowIdx int32 = -1 << 20
	modelOverflowIdx  int32 = 1 << 20
)

type modelBuilder struct {
	underflow, overflow uint64
	regular             map[int32]uint64
	single              *float64
}

func newModelBuilder() *modelBuilder {
	return &modelBuilder{regular: map[int32]uint64{}}
}

func (b *modelBuilder) mapToBin(v float64) int32 {
	switch {
	case v < 0:
		return modelUnderflowIdx
	case v > 999:
		return modelOverflowIdx
	default:
		return int32(v)
	}
}

func (b *modelBuilder) bump(idx int32, n uint64) {
	switch idx {
	case modelUnderflowIdx:
		b.underflow += n
	case modelOverflowIdx:
		b.overflow += n
	default:
		b.regular[idx] += n
	}
}

func (b *modelBuilder) IncrementUnderflow(n uint64) error { b.underflow += n; return nil }
func (b *modelBuilder) IncrementOverflow(n uint64) error  { b.overflow += n; return nil }
func (b *modelBuilder) AllocateRegularCounts(minBin, maxBin int32, mode uint8) error {
	return nil
}
func (b *modelBuilder) IncrementRegularCount(idx int32, n uint64) error {
	b.regular[idx] += n
	return nil
}
func (b *modelBuilder) RecordSingleValue(v float64) error {
	b.single = &v
	b.bump(b.mapToBin(v), 1)
	return nil
}
func (b *modelBuilder) Finalize(min, max float64) error {
	b.bump(b.mapToBin(min), 1)
	b.bump(b.mapToBin(max), 1)
	return nil
}
func (b *modelBuilder) Build() (any, error) { return b, nil }

func TestWriteReadEmptyHistogramIsTwoZeroBytes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, &modelSource{min: math.Inf(1), max: math.Inf(-1)}))
	require.Equal(t, []byte{0x00, 0x00}, buf.Bytes())

	b := newModelBuilder()
	require.NoError(t, Read(&buf, b))
	require.Zero(t, b.underflow)
	require.Zero(t, b.overflow)
	require.Empty(t, b.regular)
	require.Nil(t, b.single)
}

func TestWriteReadSingleValueMatchesLiteralEncoding(t *testing.T) {
	src := &modelSource{min: 5.5, max: 5.5, regular: map[int32]uint64{5: 1}}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, src))

	want := []byte{0x00, 0x08, 0x40, 0x16, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	require.Equal(t, want, buf.Bytes())

	b := newModelBuilder()
	require.NoError(t, Read(&buf, b))
	require.NotNil(t, b.single)
	require.Equal(t, 5.5, *b.single)
}

func TestWriteReadRoundTripsDistinctRegularBins(t *testing.T) {
	src := &modelSource{
		min: -1, max: 1000,
		underflow: 3, overflow: 7,
		regular: map[int32]uint64{2: 4, 50: 1, 500: 12, 900: 9},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, src))

	b := newModelBuilder()
	require.NoError(t, Read(&buf, b))
	require.Equal(t, src.underflow, b.underflow)
	require.Equal(t, src.overflow, b.overflow)
	require.Equal(t, src.regular, b.regular)
}

func TestWriteReadRoundTripsWhenMinEqualsMax(t *testing.T) {
	src := &modelSource{min: 7, max: 7, regular: map[int32]uint64{7: 5}}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, src))

	b := newModelBuilder()
	require.NoError(t, Read(&buf, b))
	require.Equal(t, src.regular, b.regular)
	require.Zero(t, b.underflow)
	require.Zero(t, b.overflow)
}

func TestWriteReadRoundTripsWhenSingleBinHoldsAllMass(t *testing.T) {
	// Only one non-empty logical bin: both the min and max decrements land
	// on it, so its effective count can reach zero and the regular-bin
	// fields are entirely omitted from the wire; Finalize must still
	// recover the full original count via the min/max lookup alone.
	src := &modelSource{min: 3, max: 3, regular: map[int32]uint64{3: 2}}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, src))

	b := newModelBuilder()
	require.NoError(t, Read(&buf, b))
	require.Equal(t, src.regular, b.regular)
}

func TestWriteReadOmitsCountBytesWhenEffRegularSumIsOne(t *testing.T) {
	// A single regular bin whose effective count (after both the min and
	// max decrements land on it) is exactly 1: regularClass == 1, so the
	// written index alone determines the bin's count and no count payload
	// follows. Expected length: version(1) + info(1) + min double(8, min
	// == max so no second double) + first-index varint(1) = 11 bytes.
	src := &modelSource{min: 15, max: 15, regular: map[int32]uint64{15: 3}}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, src))
	require.Len(t, buf.Bytes(), 11)

	b := newModelBuilder()
	require.NoError(t, Read(&buf, b))
	require.Equal(t, src.regular, b.regular)
}

func TestWriteReadOmitsCountBytesWhenEffRegularSumIsTwoAcrossDistinctBins(t *testing.T) {
	// regularClass == 2 with two distinct non-empty bins (min/max land in
	// underflow/overflow, leaving the regular bins untouched): the first
	// and last written indices differ, so each is inferred to hold count
	// 1 with no count payload on the wire. Expected length: version(1) +
	// info(1) + min double(8) + max double(8) + first varint(1) + last
	// varint(1) = 20 bytes.
	src := &modelSource{
		min: -1, max: 1000,
		underflow: 1, overflow: 1,
		regular: map[int32]uint64{5: 1, 9: 1},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, src))
	require.Len(t, buf.Bytes(), 20)

	b := newModelBuilder()
	require.NoError(t, Read(&buf, b))
	require.Equal(t, src.underflow, b.underflow)
	require.Equal(t, src.overflow, b.overflow)
	require.Equal(t, src.regular, b.regular)
}

func TestWriteReadOmitsCountBytesWhenEffRegularSumIsTwoInOneBin(t *testing.T) {
	// regularClass == 2 again, but the first and last written indices
	// coincide: that bin is inferred to hold count 2 with no count
	// payload on the wire.
	src := &modelSource{
		min: -1, max: 1000,
		underflow: 1, overflow: 1,
		regular: map[int32]uint64{7: 2},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, src))
	require.Len(t, buf.Bytes(), 20)

	b := newModelBuilder()
	require.NoError(t, Read(&buf, b))
	require.Equal(t, src.underflow, b.underflow)
	require.Equal(t, src.overflow, b.overflow)
	require.Equal(t, src.regular, b.regular)
}

func TestWriteReadRoundTripsWhenAllMassIsUnderflow(t *testing.T) {
	src := &modelSource{min: -5, max: -5, underflow: 4}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, src))

	b := newModelBuilder()
	require.NoError(t, Read(&buf, b))
	require.Equal(t, src.underflow, b.underflow)
	require.Empty(t, b.regular)
	require.Zero(t, b.overflow)
}

func TestWriteReadRoundTripsWithAllSections(t *testing.T) {
	src := &modelSource{
		min: -100, max: 5000,
		underflow: 10, overflow: 20,
		regular: map[int32]uint64{0: 1, 1: 1, 100: 300, 999: 2},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, src))

	b := newModelBuilder()
	require.NoError(t, Read(&buf, b))
	require.Equal(t, src.underflow, b.underflow)
	require.Equal(t, src.overflow, b.overflow)
	require.Equal(t, src.regular, b.regular)
}

func TestWriteCompressedReadCompressedRoundTrips(t *testing.T) {
	src := &modelSource{
		min: -1, max: 1000,
		underflow: 1, overflow: 1,
		regular: map[int32]uint64{0: 100, 250: 1, 999: 50},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCompressed(&buf, src))

	b := newModelBuilder()
	require.NoError(t, ReadCompressed(&buf, b))
	require.Equal(t, src.underflow, b.underflow)
	require.Equal(t, src.overflow, b.overflow)
	require.Equal(t, src.regular, b.regular)
}

func TestReadRejectsUnknownVersion(t *testing.T) {
	b := newModelBuilder()
	err := Read(bytes.NewReader([]byte{0x01, 0x00}), b)
	require.ErrorContains(t, err, "unknown serial version")
}

func TestReadRejectsTruncatedStream(t *testing.T) {
	src := &modelSource{min: 1, max: 900, regular: map[int32]uint64{1: 5, 900: 5}}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, src))

	truncated := buf.Bytes()[:buf.Len()-2]
	b := newModelBuilder()
	err := Read(bytes.NewReader(truncated), b)
	require.Error(t, err)
}

func TestRegularBinRangeCoversInteriorZeroBins(t *testing.T) {
	// Bin 51's count is implied zero: it lies strictly between the first
	// and last non-zero regular bin and must round-trip as absent.
	src := &modelSource{min: 50, max: 52, regular: map[int32]uint64{50: 3, 52: 4}}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, src))

	b := newModelBuilder()
	require.NoError(t, Read(&buf, b))
	require.Equal(t, src.regular, b.regular)
	if _, ok := b.regular[51]; ok {
		t.Errorf("bin 51 should not appear in the reconstructed regular map")
	}
}
