package provider

import "fmt"

// SysInfo selects a value GetTimeSysInfo returns
type SysInfo int

const (
	// TickCount is the local tick counter
	TickCount SysInfo = iota
	// PhaseOffset is the local clock's phase offset, signed, in 100ns ticks
	PhaseOffset
	// CurrentTime is the local wall clock in 100ns ticks since 1601
	CurrentTime
)

func (k SysInfo) String() string {
	switch k {
	case TickCount:
		return "tick_count"
	case PhaseOffset:
		return "phase_offset"
	case CurrentTime:
		return "current_time"
	default:
		return fmt.Sprintf("sysinfo(%d)", int(k))
	}
}

// Level is the severity of an event passed to Host.LogEvent
type Level int

const (
	LevelError Level = iota + 1
	LevelWarning
	LevelInformation
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	case LevelInformation:
		return "information"
	default:
		return "unknown"
	}
}

// Host is the time service the provider runs under. It is fixed for the
// lifetime of a Provider and its methods are called synchronously.
type Host interface {
	// GetTimeSysInfo returns a local clock value. PhaseOffset is returned in
	// two's complement.
	GetTimeSysInfo(kind SysInfo) (uint64, error)

	LogEvent(level Level, message string)

	// AlertSamplesAvailable asks the host to poll again soon
	AlertSamplesAvailable() error
}
