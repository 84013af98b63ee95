package xeniface

import (
	"encoding/binary"
	"fmt"
)

// TimeRecordSize is the size of the shared-info time response: a FILETIME
// (two 32-bit halves, low first) followed by a BOOLEAN, padded to 4 bytes.
const TimeRecordSize = 12

// suspendRecordSize is the size of a pointer-sized handle or token field.
const suspendRecordSize = 8

// TimeRecord is a wall-clock reading in 100ns ticks since 1601-01-01.
type TimeRecord struct {
	Time uint64
	// Local is set when Time is expressed in the guest's local time zone
	// rather than in UTC.
	Local bool
}

// MarshalBinary encodes the record in the driver's layout
func (r TimeRecord) MarshalBinary() ([]byte, error) {
	b := make([]byte, TimeRecordSize)
	binary.LittleEndian.PutUint32(b[0:4], uint32(r.Time))
	binary.LittleEndian.PutUint32(b[4:8], uint32(r.Time>>32))
	if r.Local {
		b[8] = 1
	}
	return b, nil
}

// UnmarshalBinary decodes a record written by the driver
func (r *TimeRecord) UnmarshalBinary(b []byte) error {
	if len(b) < TimeRecordSize {
		return fmt.Errorf("time record: got %d bytes, want %d: %w", len(b), TimeRecordSize, ErrShortResponse)
	}
	low := binary.LittleEndian.Uint32(b[0:4])
	high := binary.LittleEndian.Uint32(b[4:8])
	r.Time = uint64(high)<<32 | uint64(low)
	r.Local = b[8] != 0
	return nil
}

func putUint64(v uint64) []byte {
	b := make([]byte, suspendRecordSize)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func getUint64(b []byte) (uint64, error) {
	if len(b) < suspendRecordSize {
		return 0, fmt.Errorf("suspend record: got %d bytes, want %d: %w", len(b), suspendRecordSize, ErrShortResponse)
	}
	return binary.LittleEndian.Uint64(b), nil
}
