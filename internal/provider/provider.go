// Package provider is the time provider facade: the entry points a time service
// calls to obtain hypervisor time samples.
//
// Every poll runs one update. The update borrows the device session, takes two
// local clock readings around a hypervisor time query and caches the resulting
// sample. Any failure clears the cache, so a stale sample is never handed out.
package provider

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/maximewewer/xentime-provider/internal/device"
	"github.com/maximewewer/xentime-provider/internal/sample"
	"github.com/maximewewer/xentime-provider/internal/timesource"
	"github.com/maximewewer/xentime-provider/internal/xeniface"
	"github.com/maximewewer/xentime-provider/pkg/logger"
	"github.com/maximewewer/xentime-provider/pkg/metrics"
)

// Name identifies the provider to the host
const Name = "XenTimeProvider"

const fallbackWarning = "The Xen PV interface driver has indicated that Xen host time is not supported. " +
	"Falling back to guest time; reliability issues are likely."

var (
	// ErrBufferTooSmall is returned by GetSamples when the output buffer cannot
	// hold one record
	ErrBufferTooSmall = errors.New("sample buffer too small")

	// ErrShutdown is returned by Update after Shutdown
	ErrShutdown = errors.New("provider shut down")
)

// Config is the provider's reloadable configuration
type Config struct {
	// AllowFallback permits switching to the offset store source when the driver
	// does not implement host time
	AllowFallback bool

	// Location is the zone a local-time guest clock is interpreted in; nil means time.Local
	Location *time.Location
}

// Session is the device session the provider borrows from
type Session interface {
	Borrow() *device.Borrow
	Close() error
}

// Result is what GetSamples reports to the host
type Result struct {
	Available int
	Returned  int
}

// Provider produces time samples from the Xen interface driver
type Provider struct {
	host    Host
	session Session
	metrics *metrics.ProviderMetrics
	policy  *timesource.Policy
	guard   *timesource.Guard

	// mu serialises updates and guards everything below
	mu       sync.Mutex
	location *time.Location
	sample   *sample.TimeSample
	shutdown bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a provider. m may be nil, in which case metrics are kept but not
// registered anywhere.
func New(cfg Config, host Host, session Session, m *metrics.ProviderMetrics) *Provider {
	if m == nil {
		m = metrics.NewProviderMetrics()
	}

	p := &Provider{
		host:     host,
		session:  session,
		metrics:  m,
		location: cfg.Location,
		stop:     make(chan struct{}),
	}
	p.guard = timesource.NewGuard(p.readGuestClock)
	p.policy = timesource.NewPolicy(cfg.AllowFallback, timesource.ReadHostTime, p.guard.Read, p.onFallback)
	p.metrics.FallbackState.Set(metrics.FallbackStateNotYetProbed)

	p.logEvent(LevelInformation, "UpdateConfig", map[string]interface{}{
		"allow_fallback": cfg.AllowFallback,
	})
	return p
}

// readGuestClock runs inside Update, under mu
func (p *Provider) readGuestClock(dev xeniface.Device) (timesource.Reading, error) {
	return timesource.GuestClock{Location: p.location}.Read(dev)
}

func (p *Provider) onFallback(cause error) {
	p.metrics.FallbackTransitionsTotal.Inc()
	p.logEvent(LevelWarning, fallbackWarning, map[string]interface{}{
		"cause": cause.Error(),
	})
}

// Subscribe calls OnResume for every value received from events until
// Shutdown. It may be called more than once; after Shutdown it does nothing.
func (p *Provider) Subscribe(events <-chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shutdown {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-p.stop:
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				p.OnResume()
			}
		}
	}()
}

// Update replaces the cached sample with a fresh one. Errors matching
// timesource.ErrPending mean no sample could be taken this cycle and the host
// should simply poll again.
func (p *Provider) Update() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shutdown {
		return ErrShutdown
	}

	err := p.updateLocked()
	p.metrics.UpdatesTotal.WithLabelValues(updateResult(err)).Inc()
	p.metrics.FallbackState.Set(float64(p.policy.State()))
	return err
}

func (p *Provider) updateLocked() error {
	p.sample = nil

	b := p.session.Borrow()
	defer b.Release()

	if !b.Valid() {
		return device.ErrNotConnected
	}

	tickCount, err := p.host.GetTimeSysInfo(TickCount)
	if err != nil {
		return fmt.Errorf("get tick count: %w", err)
	}
	phaseOffset, err := p.host.GetTimeSysInfo(PhaseOffset)
	if err != nil {
		return fmt.Errorf("get phase offset: %w", err)
	}
	begin, err := p.host.GetTimeSysInfo(CurrentTime)
	if err != nil {
		return fmt.Errorf("get current time: %w", err)
	}

	start := time.Now()
	reading, source, err := p.policy.Resolve(b.Device)
	p.metrics.QueryDurationSeconds.WithLabelValues(source.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		if xeniface.IsDeviceGone(err) {
			b.Invalidate()
		}
		return fmt.Errorf("query %s: %w", source, err)
	}

	end, err := p.host.GetTimeSysInfo(CurrentTime)
	if err != nil {
		return fmt.Errorf("get current time: %w", err)
	}

	s := sample.Build(sample.Inputs{
		XenTime:     reading.Time,
		Dispersion:  reading.Dispersion,
		Begin:       begin,
		End:         end,
		TickCount:   tickCount,
		PhaseOffset: int64(phaseOffset),
		Name:        b.Path,
	})
	p.sample = &s

	logger.SafeDebug("provider", "Sample updated", map[string]interface{}{
		"source":     source.String(),
		"offset":     s.Offset,
		"delay":      s.Delay,
		"dispersion": s.Dispersion,
	})
	return nil
}

func updateResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, timesource.ErrTornRead):
		return "torn_read"
	case errors.Is(err, timesource.ErrPending):
		return "pending"
	default:
		return "error"
	}
}

// GetSamples runs an update and copies the cached sample, if any, into buf.
// Update failures are logged, not returned; they show up as zero samples
// available. A cached sample with buf shorter than sample.Size fails with
// ErrBufferTooSmall.
func (p *Provider) GetSamples(buf []byte) (Result, error) {
	if err := p.Update(); err != nil {
		p.logUpdateFailure(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sample == nil {
		p.metrics.SamplesServedTotal.WithLabelValues("empty").Inc()
		return Result{}, nil
	}

	res := Result{Available: 1}
	if len(buf) < sample.Size {
		p.metrics.SamplesServedTotal.WithLabelValues("buffer_too_small").Inc()
		return res, fmt.Errorf("%w: %d bytes, need %d", ErrBufferTooSmall, len(buf), sample.Size)
	}

	record, err := p.sample.MarshalBinary()
	if err != nil {
		return Result{}, err
	}
	copy(buf, record)
	res.Returned = 1

	p.metrics.SamplesServedTotal.WithLabelValues("returned").Inc()
	return res, nil
}

func (p *Provider) logUpdateFailure(err error) {
	fields := map[string]interface{}{"error": err.Error()}
	switch {
	case errors.Is(err, ErrShutdown):
		logger.Debug("provider", "Update skipped after shutdown")
	case errors.Is(err, timesource.ErrPending):
		p.logEvent(LevelInformation, "Update pending", fields)
	default:
		p.logEvent(LevelError, "Update failed", fields)
	}
}

// TimeJumped drops the cached sample. The next poll takes a new one.
func (p *Provider) TimeJumped() {
	p.mu.Lock()
	p.sample = nil
	p.mu.Unlock()

	p.metrics.TimeJumpsTotal.Inc()
	p.logEvent(LevelInformation, "TimeJumped", nil)
}

// OnResume tells the host fresh samples can be taken after a resume from
// suspend. It leaves the cached sample alone.
func (p *Provider) OnResume() {
	p.metrics.ResumeEventsTotal.Inc()
	p.logEvent(LevelInformation, "Resumed from suspend", nil)

	if err := p.host.AlertSamplesAvailable(); err != nil {
		p.logEvent(LevelError, "AlertSamplesAvailable failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// PollIntervalChanged is informational only
func (p *Provider) PollIntervalChanged() {
	p.logEvent(LevelInformation, "PollIntervalChanged", nil)
}

// UpdateConfig applies a reloaded configuration. A provider that has fallen
// back keeps doing so whatever the new setting.
func (p *Provider) UpdateConfig(cfg Config) {
	p.mu.Lock()
	p.location = cfg.Location
	p.mu.Unlock()

	p.policy.SetAllowFallback(cfg.AllowFallback)
	p.logEvent(LevelInformation, "UpdateConfig", map[string]interface{}{
		"allow_fallback": cfg.AllowFallback,
		"state":          p.policy.State().String(),
	})
}

// Shutdown closes the device session and drops the cached sample. The provider
// produces no samples afterwards.
func (p *Provider) Shutdown() error {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return nil
	}
	p.shutdown = true
	p.sample = nil
	close(p.stop)
	p.mu.Unlock()

	p.wg.Wait()
	p.logEvent(LevelInformation, "Shutdown", nil)
	return p.session.Close()
}

// Sample returns a copy of the cached sample
func (p *Provider) Sample() (sample.TimeSample, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sample == nil {
		return sample.TimeSample{}, false
	}
	return *p.sample, true
}

// State returns the time source state
func (p *Provider) State() timesource.State {
	return p.policy.State()
}

// AllowFallback returns the current fallback setting
func (p *Provider) AllowFallback() bool {
	return p.policy.AllowFallback()
}

// logEvent writes message to both the process log and the host's event log
func (p *Provider) logEvent(level Level, message string, fields map[string]interface{}) {
	switch level {
	case LevelError:
		logger.SafeError("provider", message, nil, fields)
	case LevelWarning:
		logger.SafeWarn("provider", message, fields)
	default:
		logger.SafeInfo("provider", message, fields)
	}

	if len(fields) > 0 {
		message = fmt.Sprintf("%s %v", message, fields)
	}
	p.host.LogEvent(level, message)
}
