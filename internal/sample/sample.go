// Package sample defines the time sample record handed to the time service and
// the arithmetic that builds one from a hypervisor reading.
package sample

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
	"unicode/utf16"

	"github.com/maximewewer/xentime-provider/internal/filetime"
)

// Record layout
const (
	// NameLen is the width of the unique name field in UTF-16 units, NUL included
	NameLen = 256

	nameOffset = 56

	// Size is the encoded length of a TimeSample
	Size = nameOffset + 2*NameLen
)

// Fixed tags carried by every sample
const (
	// RefID reads "XEN " in memory order
	RefID uint32 = 0x204E4558

	// LeapFlags 3 means the leap indicator is unknown
	LeapFlags uint8 = 3

	Stratum uint8 = 0

	// FlagHardware marks a hardware time source
	FlagHardware uint32 = 0x1
)

var (
	// ErrShortRecord is returned when decoding fewer than Size bytes
	ErrShortRecord = errors.New("time sample record too short")

	// ErrBadSize is returned when the size tag does not match Size
	ErrBadSize = errors.New("time sample size tag mismatch")
)

// TimeSample is one reconciled offset measurement. Offset, Delay and
// Dispersion are in 100ns ticks.
type TimeSample struct {
	RefID       uint32 `json:"refid"`
	Offset      int64  `json:"offset"`
	Delay       uint64 `json:"delay"`
	Dispersion  uint64 `json:"dispersion"`
	TickCount   uint64 `json:"tick_count"`
	PhaseOffset int64  `json:"phase_offset"`
	LeapFlags   uint8  `json:"leap_flags"`
	Stratum     uint8  `json:"stratum"`
	Flags       uint32 `json:"flags"`
	Name        string `json:"name"`
}

// OffsetDuration returns Offset as a duration
func (s TimeSample) OffsetDuration() time.Duration {
	return ticksToDuration(s.Offset)
}

// DelayDuration returns Delay as a duration
func (s TimeSample) DelayDuration() time.Duration {
	return ticksToDuration(int64(s.Delay))
}

// DispersionDuration returns Dispersion as a duration
func (s TimeSample) DispersionDuration() time.Duration {
	return ticksToDuration(int64(s.Dispersion))
}

func ticksToDuration(ticks int64) time.Duration {
	return time.Duration(ticks) * (time.Second / filetime.TicksPerSecond)
}

// MarshalBinary encodes the sample in the time service's native layout.
// Names longer than NameLen-1 units are truncated.
func (s TimeSample) MarshalBinary() ([]byte, error) {
	b := make([]byte, Size)
	le := binary.LittleEndian

	le.PutUint32(b[0:], Size)
	le.PutUint32(b[4:], s.RefID)
	le.PutUint64(b[8:], uint64(s.Offset))
	le.PutUint64(b[16:], s.Delay)
	le.PutUint64(b[24:], s.Dispersion)
	le.PutUint64(b[32:], s.TickCount)
	le.PutUint64(b[40:], uint64(s.PhaseOffset))
	b[48] = s.LeapFlags
	b[49] = s.Stratum
	le.PutUint32(b[52:], s.Flags)

	for i, u := range encodeName(s.Name) {
		le.PutUint16(b[nameOffset+2*i:], u)
	}
	return b, nil
}

// UnmarshalBinary decodes a record produced by MarshalBinary
func (s *TimeSample) UnmarshalBinary(b []byte) error {
	if len(b) < Size {
		return fmt.Errorf("%w: %d bytes", ErrShortRecord, len(b))
	}
	le := binary.LittleEndian
	if size := le.Uint32(b[0:]); size != Size {
		return fmt.Errorf("%w: %d", ErrBadSize, size)
	}

	s.RefID = le.Uint32(b[4:])
	s.Offset = int64(le.Uint64(b[8:]))
	s.Delay = le.Uint64(b[16:])
	s.Dispersion = le.Uint64(b[24:])
	s.TickCount = le.Uint64(b[32:])
	s.PhaseOffset = int64(le.Uint64(b[40:]))
	s.LeapFlags = b[48]
	s.Stratum = b[49]
	s.Flags = le.Uint32(b[52:])

	units := make([]uint16, 0, NameLen)
	for i := 0; i < NameLen; i++ {
		u := le.Uint16(b[nameOffset+2*i:])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	s.Name = string(utf16.Decode(units))
	return nil
}

// encodeName returns at most NameLen-1 units, never splitting a surrogate pair
func encodeName(name string) []uint16 {
	units := utf16.Encode([]rune(name))
	if len(units) < NameLen {
		return units
	}
	units = units[:NameLen-1]
	if last := units[len(units)-1]; last >= 0xD800 && last < 0xDC00 {
		units = units[:len(units)-1]
	}
	return units
}
