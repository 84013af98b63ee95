package sample

import (
	"encoding/binary"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_MidpointOffset(t *testing.T) {
	s := Build(Inputs{XenTime: 1000, Begin: 900, End: 920, Name: `\\.\xeniface`})

	assert.Equal(t, uint64(20), s.Delay)
	assert.Equal(t, int64(110), s.Offset)
	assert.Equal(t, RefID, s.RefID)
	assert.Equal(t, uint8(3), s.LeapFlags)
	assert.Equal(t, uint8(0), s.Stratum)
	assert.Equal(t, FlagHardware, s.Flags)
	assert.Equal(t, `\\.\xeniface`, s.Name)
}

func TestBuild_NegativeDelayClamped(t *testing.T) {
	s := Build(Inputs{XenTime: 1000, Begin: 920, End: 900})

	assert.Zero(t, s.Delay)
	assert.Equal(t, int64(80), s.Offset)
}

func TestBuild_NegativeOffset(t *testing.T) {
	s := Build(Inputs{XenTime: 500, Begin: 900, End: 910})

	assert.Equal(t, int64(-395), s.Offset)
}

func TestBuild_CarriesFields(t *testing.T) {
	s := Build(Inputs{
		XenTime:     1000,
		Dispersion:  10000,
		Begin:       1000,
		End:         1000,
		TickCount:   42,
		PhaseOffset: -7,
	})

	assert.Equal(t, uint64(10000), s.Dispersion)
	assert.Equal(t, uint64(42), s.TickCount)
	assert.Equal(t, int64(-7), s.PhaseOffset)
	assert.Zero(t, s.Offset)
}

func TestTimeSample_Layout(t *testing.T) {
	s := Build(Inputs{XenTime: 1000, Begin: 900, End: 920, TickCount: 5, PhaseOffset: -1, Name: "xen"})

	b, err := s.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, Size)
	assert.Equal(t, 568, Size)

	le := binary.LittleEndian
	assert.Equal(t, uint32(Size), le.Uint32(b[0:]))
	assert.Equal(t, []byte("XEN "), b[4:8])
	assert.Equal(t, uint64(110), le.Uint64(b[8:]))
	assert.Equal(t, uint64(20), le.Uint64(b[16:]))
	assert.Equal(t, uint64(5), le.Uint64(b[32:]))
	assert.Equal(t, ^uint64(0), le.Uint64(b[40:]))
	assert.Equal(t, byte(3), b[48])
	assert.Equal(t, byte(0), b[49])
	assert.Equal(t, uint32(1), le.Uint32(b[52:]))
	assert.Equal(t, uint16('x'), le.Uint16(b[56:]))
	assert.Equal(t, uint16('n'), le.Uint16(b[60:]))
	assert.Zero(t, le.Uint16(b[62:]))
}

func TestTimeSample_Decode(t *testing.T) {
	want := Build(Inputs{XenTime: 123456789, Dispersion: 3, Begin: 100, End: 300, Name: `\\.\xeniface`})

	b, err := want.MarshalBinary()
	require.NoError(t, err)

	var got TimeSample
	require.NoError(t, got.UnmarshalBinary(b))
	assert.Equal(t, want, got)
}

func TestTimeSample_DecodeErrors(t *testing.T) {
	var s TimeSample
	assert.ErrorIs(t, s.UnmarshalBinary(make([]byte, Size-1)), ErrShortRecord)
	assert.ErrorIs(t, s.UnmarshalBinary(make([]byte, Size)), ErrBadSize)
}

func TestTimeSample_NameTruncated(t *testing.T) {
	long := strings.Repeat("a", 400)
	b, err := TimeSample{Name: long}.MarshalBinary()
	require.NoError(t, err)

	var got TimeSample
	require.NoError(t, got.UnmarshalBinary(b))
	assert.Len(t, got.Name, NameLen-1)
	assert.Zero(t, binary.LittleEndian.Uint16(b[Size-2:]))
}

func TestTimeSample_NameKeepsSurrogatePairs(t *testing.T) {
	// 254 ASCII units then a character needing two units
	name := strings.Repeat("a", NameLen-2) + "\U0001F600"
	b, err := TimeSample{Name: name}.MarshalBinary()
	require.NoError(t, err)

	var got TimeSample
	require.NoError(t, got.UnmarshalBinary(b))
	assert.Equal(t, strings.Repeat("a", NameLen-2), got.Name)
}

func TestTimeSample_Durations(t *testing.T) {
	s := TimeSample{Offset: -15000, Delay: 20, Dispersion: 10000}

	assert.Equal(t, -1500*time.Microsecond, s.OffsetDuration())
	assert.Equal(t, 2*time.Microsecond, s.DelayDuration())
	assert.Equal(t, time.Millisecond, s.DispersionDuration())
}
