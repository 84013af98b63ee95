package collector

import (
	"context"
	"sync"
	"time"

	"github.com/eclesh/welford"

	"github.com/maximewewer/xentime-provider/internal/sample"
	"github.com/maximewewer/xentime-provider/pkg/metrics"
)

// DefaultWindow is the number of offsets kept for running statistics
const DefaultWindow = 64

// SampleSource exposes the provider's cached sample
type SampleSource interface {
	Sample() (sample.TimeSample, bool)
}

// SampleCollector exports the last time sample and statistics over recent offsets
type SampleCollector struct {
	source  SampleSource
	device  string
	metrics *metrics.ProviderMetrics

	mu       sync.Mutex
	window   []float64
	size     int
	next     int
	lastTick uint64
	seen     bool
}

// NewSampleCollector creates a collector labelling metrics with device.
// A window below one selects DefaultWindow.
func NewSampleCollector(source SampleSource, device string, m *metrics.ProviderMetrics, window int) *SampleCollector {
	if window < 1 {
		window = DefaultWindow
	}
	return &SampleCollector{
		source:  source,
		device:  device,
		metrics: m,
		window:  make([]float64, 0, window),
		size:    window,
	}
}

// Name returns the name of the collector
func (c *SampleCollector) Name() string {
	return "sample"
}

// Enabled indicates if the collector is active
func (c *SampleCollector) Enabled() bool {
	return true
}

// Collect publishes the current sample
func (c *SampleCollector) Collect(ctx context.Context) error {
	start := time.Now()
	defer func() {
		c.metrics.CollectorDurationSeconds.WithLabelValues(c.Name()).Observe(time.Since(start).Seconds())
	}()

	s, ok := c.source.Sample()
	if !ok {
		c.metrics.SampleAvailable.WithLabelValues(c.device).Set(0)
		return nil
	}

	c.metrics.SampleAvailable.WithLabelValues(c.device).Set(1)
	c.metrics.SampleOffsetSeconds.WithLabelValues(c.device).Set(s.OffsetDuration().Seconds())
	c.metrics.SampleDelaySeconds.WithLabelValues(c.device).Set(s.DelayDuration().Seconds())
	c.metrics.SampleDispersionSeconds.WithLabelValues(c.device).Set(s.DispersionDuration().Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()

	// The same sample is served until the next successful update
	if c.seen && s.TickCount == c.lastTick {
		return nil
	}
	c.seen = true
	c.lastTick = s.TickCount
	c.add(s.OffsetDuration().Seconds())

	stats := welford.New()
	for _, v := range c.window {
		stats.Add(v)
	}

	c.metrics.SampleOffsetMean.WithLabelValues(c.device).Set(stats.Mean())
	c.metrics.SampleOffsetStddev.WithLabelValues(c.device).Set(stats.Stddev())
	c.metrics.SampleWindowCount.WithLabelValues(c.device).Set(float64(len(c.window)))
	return nil
}

func (c *SampleCollector) add(v float64) {
	if len(c.window) < c.size {
		c.window = append(c.window, v)
		return
	}
	c.window[c.next] = v
	c.next = (c.next + 1) % c.size
}
