// Package host runs the provider outside a Windows time service. It supplies
// the local clock readings the provider asks for, keeps the events it logs and
// polls it on a fixed cadence, re-polling early when the provider raises an
// alert.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/maximewewer/xentime-provider/internal/filetime"
	"github.com/maximewewer/xentime-provider/internal/provider"
	"github.com/maximewewer/xentime-provider/internal/sample"
	"github.com/maximewewer/xentime-provider/pkg/logger"
	"github.com/maximewewer/xentime-provider/pkg/metrics"
)

// DefaultEventHistory is the number of provider events kept
const DefaultEventHistory = 32

// ErrUnknownSysInfo is returned for a SysInfo kind the host does not supply
var ErrUnknownSysInfo = errors.New("unknown system info kind")

// Config configures a Host
type Config struct {
	PollInterval time.Duration
	// AlertRate limits alert-driven re-polls per second
	AlertRate  float64
	AlertBurst int
	// EventHistory is the number of events kept; zero selects DefaultEventHistory
	EventHistory int
}

// Event is one message the provider logged through the host
type Event struct {
	Time    time.Time      `json:"time"`
	Level   provider.Level `json:"-"`
	Message string         `json:"message"`
}

// Sampler is the part of the provider the poll loop drives
type Sampler interface {
	GetSamples(buf []byte) (provider.Result, error)
}

// Collector runs after every poll
type Collector interface {
	CollectAll(ctx context.Context) error
}

// Host implements provider.Host
type Host struct {
	metrics *metrics.ProviderMetrics
	limiter *rate.Limiter
	alerts  chan struct{}
	reset   chan time.Duration
	start   time.Time
	now     func() time.Time

	mu       sync.Mutex
	interval time.Duration
	events   []Event
	history  int
}

var _ provider.Host = (*Host)(nil)

// New creates a host
func New(cfg Config, m *metrics.ProviderMetrics) *Host {
	if m == nil {
		m = metrics.NewProviderMetrics()
	}
	if cfg.EventHistory <= 0 {
		cfg.EventHistory = DefaultEventHistory
	}
	if cfg.AlertBurst <= 0 {
		cfg.AlertBurst = 1
	}

	return &Host{
		metrics:  m,
		limiter:  rate.NewLimiter(rate.Limit(cfg.AlertRate), cfg.AlertBurst),
		alerts:   make(chan struct{}, 1),
		reset:    make(chan time.Duration, 1),
		start:    time.Now(),
		now:      time.Now,
		interval: cfg.PollInterval,
		history:  cfg.EventHistory,
	}
}

// GetTimeSysInfo returns local clock values. The tick count is the monotonic
// time since the host started, in 100ns ticks. The phase offset is always zero
// since this host does not discipline the clock.
func (h *Host) GetTimeSysInfo(kind provider.SysInfo) (uint64, error) {
	switch kind {
	case provider.TickCount:
		return uint64(time.Since(h.start) / filetime.TickDuration), nil
	case provider.PhaseOffset:
		return 0, nil
	case provider.CurrentTime:
		return filetime.FromTime(h.now()), nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownSysInfo, kind)
	}
}

// LogEvent records an event. The provider has already written it to the
// process log.
func (h *Host) LogEvent(level provider.Level, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = append(h.events, Event{Time: h.now(), Level: level, Message: message})
	if over := len(h.events) - h.history; over > 0 {
		h.events = append(h.events[:0], h.events[over:]...)
	}
}

// Events returns the recorded events, oldest first
func (h *Host) Events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Event(nil), h.events...)
}

// AlertSamplesAvailable schedules an early poll. Alerts beyond the configured
// rate are dropped; the regular cadence picks up the sample instead.
func (h *Host) AlertSamplesAvailable() error {
	if !h.limiter.Allow() {
		h.metrics.AlertsTotal.WithLabelValues("limited").Inc()
		logger.Debug("host", "Alert rate limited")
		return nil
	}

	select {
	case h.alerts <- struct{}{}:
	default:
	}
	h.metrics.AlertsTotal.WithLabelValues("polled").Inc()
	return nil
}

// PollInterval returns the current poll interval
func (h *Host) PollInterval() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interval
}

// SetPollInterval changes the cadence of a running Run loop. It reports
// whether the interval changed.
func (h *Host) SetPollInterval(d time.Duration) bool {
	h.mu.Lock()
	if d <= 0 || d == h.interval {
		h.mu.Unlock()
		return false
	}
	h.interval = d
	h.mu.Unlock()

	select {
	case <-h.reset:
	default:
	}
	h.reset <- d
	return true
}

// Run polls s every poll interval, and after every accepted alert, until ctx
// is done. Each poll is followed by one run of collectors, if not nil.
func (h *Host) Run(ctx context.Context, s Sampler, collectors Collector) error {
	interval := h.PollInterval()
	log := logger.WithFields("host", map[string]interface{}{
		"poll_interval": interval.String(),
	})
	log.Info().Msg("Poll loop started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	buf := make([]byte, sample.Size)
	h.poll(ctx, s, collectors, buf)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Poll loop stopped")
			return nil
		case d := <-h.reset:
			ticker.Reset(d)
			log.Info().Str("poll_interval", d.String()).Msg("Poll interval changed")
			continue
		case <-ticker.C:
		case <-h.alerts:
		}
		h.poll(ctx, s, collectors, buf)
	}
}

func (h *Host) poll(ctx context.Context, s Sampler, collectors Collector, buf []byte) {
	res, err := s.GetSamples(buf)
	if err != nil {
		logger.SafeError("host", "GetSamples failed", err, nil)
	} else if res.Returned > 0 {
		var ts sample.TimeSample
		if err := ts.UnmarshalBinary(buf); err != nil {
			logger.Error("host", "Invalid sample record", err)
		} else {
			logger.SafeDebug("host", "Sample received", map[string]interface{}{
				"offset":     ts.OffsetDuration().Seconds(),
				"delay":      ts.DelayDuration().Seconds(),
				"dispersion": ts.DispersionDuration().Seconds(),
			})
		}
	}

	if collectors == nil {
		return
	}
	if err := collectors.CollectAll(ctx); err != nil {
		logger.SafeDebug("host", "Collection errors", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
