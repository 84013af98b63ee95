package sample

// Inputs are the measurements one update collects. Times are 100ns ticks.
type Inputs struct {
	// XenTime and Dispersion come from the hypervisor
	XenTime    uint64
	Dispersion uint64

	// Begin and End are local clock readings taken around the query
	Begin uint64
	End   uint64

	TickCount   uint64
	PhaseOffset int64

	// Name identifies the source, normally the device path
	Name string
}

// Delay returns End-Begin, or zero when the local clock went backwards
func (in Inputs) Delay() uint64 {
	delay := int64(in.End - in.Begin)
	if delay < 0 {
		return 0
	}
	return uint64(delay)
}

// Build composes a sample. The offset is corrected to the middle of the query,
// assuming the latency is symmetric.
func Build(in Inputs) TimeSample {
	delay := in.Delay()

	return TimeSample{
		RefID:       RefID,
		Offset:      int64(in.XenTime - in.Begin + delay/2),
		Delay:       delay,
		Dispersion:  in.Dispersion,
		TickCount:   in.TickCount,
		PhaseOffset: in.PhaseOffset,
		LeapFlags:   LeapFlags,
		Stratum:     Stratum,
		Flags:       FlagHardware,
		Name:        in.Name,
	}
}
