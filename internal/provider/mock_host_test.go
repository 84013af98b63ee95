package provider

import (
	"errors"
	"strings"
	"sync"
)

type loggedEvent struct {
	level   Level
	message string
}

// fakeHost serves CurrentTime from a queue, repeating the last value once empty
type fakeHost struct {
	mu sync.Mutex

	tickCount uint64
	phase     int64
	times     []uint64
	lastTime  uint64
	sysErr    map[SysInfo]error

	events   []loggedEvent
	alerts   int
	alertErr error
}

func newFakeHost(times ...uint64) *fakeHost {
	return &fakeHost{
		tickCount: 1234,
		phase:     -5,
		times:     times,
		sysErr:    make(map[SysInfo]error),
	}
}

func (h *fakeHost) GetTimeSysInfo(kind SysInfo) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.sysErr[kind]; err != nil {
		return 0, err
	}

	switch kind {
	case TickCount:
		return h.tickCount, nil
	case PhaseOffset:
		return uint64(h.phase), nil
	case CurrentTime:
		if len(h.times) > 0 {
			h.lastTime = h.times[0]
			h.times = h.times[1:]
		}
		return h.lastTime, nil
	default:
		return 0, errors.New("unknown sysinfo")
	}
}

func (h *fakeHost) LogEvent(level Level, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, loggedEvent{level: level, message: message})
}

func (h *fakeHost) AlertSamplesAvailable() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.alerts++
	return h.alertErr
}

func (h *fakeHost) pushTimes(times ...uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.times = append(h.times, times...)
}

func (h *fakeHost) alertCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.alerts
}

func (h *fakeHost) countEvents(level Level, contains string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, ev := range h.events {
		if ev.level == level && (contains == "" || strings.Contains(ev.message, contains)) {
			n++
		}
	}
	return n
}

