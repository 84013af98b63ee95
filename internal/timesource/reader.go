// Package timesource reads hypervisor wall-clock time through the Xen interface
// driver and decides which of its time sources to trust.
//
// Two sources exist. The direct source asks the driver for host time and is
// authoritative. Older drivers do not implement it; for those the guest clock
// in the shared-info page is read and corrected by the VM's RTC offset from the
// hypervisor store, under a Guard that rejects reads racing an offset change.
// A Policy chooses between them and falls back at most once.
package timesource

import (
	"fmt"
	"time"

	"github.com/maximewewer/xentime-provider/internal/filetime"
	"github.com/maximewewer/xentime-provider/internal/xeniface"
)

// LocalTimeDispersion is the uncertainty attached to a clock the driver reports
// in local time, covering the inaccuracy of the local to UTC conversion.
const LocalTimeDispersion = 1 * filetime.TicksPerMillisecond

// Reading is a hypervisor wall-clock value and its uncertainty, both in 100ns ticks.
type Reading struct {
	Time       uint64
	Dispersion uint64
}

// ReadFunc issues one time query on dev
type ReadFunc func(dev xeniface.Device) (Reading, error)

// ReadHostTime queries host time directly. Its dispersion is always zero.
func ReadHostTime(dev xeniface.Device) (Reading, error) {
	rec, err := xeniface.GetHostTime(dev)
	if err != nil {
		return Reading{}, err
	}
	return Reading{Time: rec.Time}, nil
}

// GuestClock reads the wall clock from the shared-info page
type GuestClock struct {
	// Location is the zone a local-time answer is interpreted in; nil means time.Local
	Location *time.Location
}

// Read returns the shared-info time in UTC. When the driver reports local time
// the value is converted and carries LocalTimeDispersion.
func (c GuestClock) Read(dev xeniface.Device) (Reading, error) {
	rec, err := xeniface.GetTime(dev)
	if err != nil {
		return Reading{}, err
	}

	if !rec.Local {
		return Reading{Time: rec.Time}, nil
	}

	utc, err := filetime.LocalToUniversal(rec.Time, c.Location)
	if err != nil {
		return Reading{}, fmt.Errorf("convert local time: %w", err)
	}
	return Reading{Time: utc, Dispersion: LocalTimeDispersion}, nil
}
