// Package filetime converts between Go time values and Windows FILETIME ticks
// (100ns intervals since 1601-01-01 UTC), the unit every time sample is expressed in.
package filetime

import (
	"errors"
	"time"
)

// Tick arithmetic
const (
	TicksPerMicrosecond = 10
	TicksPerMillisecond = 1000 * TicksPerMicrosecond
	TicksPerSecond      = 1000 * TicksPerMillisecond
)

// TickDuration is the length of one tick
const TickDuration = 100 * time.Nanosecond

// unixEpochTicks is 1970-01-01 expressed in ticks since 1601-01-01
const unixEpochTicks = 116444736000000000

// ErrOutOfRange is returned when a conversion lands before 1601
var ErrOutOfRange = errors.New("time before 1601-01-01")

// FromTime converts t to ticks. Times before 1601 clamp to zero.
func FromTime(t time.Time) uint64 {
	ticks := t.Unix()*TicksPerSecond + int64(t.Nanosecond())/100 + unixEpochTicks
	if ticks < 0 {
		return 0
	}
	return uint64(ticks)
}

// ToTime converts ticks to a UTC time.
func ToTime(ticks uint64) time.Time {
	rel := int64(ticks) - unixEpochTicks
	sec := rel / TicksPerSecond
	rem := rel % TicksPerSecond
	if rem < 0 {
		sec--
		rem += TicksPerSecond
	}
	return time.Unix(sec, rem*100).UTC()
}

// Now returns the current time in ticks
func Now() uint64 {
	return FromTime(time.Now())
}

// LocalToUniversal reinterprets ticks that encode wall-clock time in loc and returns
// the same instant in UTC ticks. Around DST transitions the wall time may be
// ambiguous or skipped; Go resolves those the same way time.Date does, so the
// result is only accurate to within the transition.
func LocalToUniversal(ticks uint64, loc *time.Location) (uint64, error) {
	if loc == nil {
		loc = time.Local
	}

	wall := ToTime(ticks)
	inLoc := time.Date(wall.Year(), wall.Month(), wall.Day(),
		wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), loc)

	if inLoc.Before(ToTime(0)) {
		return 0, ErrOutOfRange
	}
	return FromTime(inLoc), nil
}
