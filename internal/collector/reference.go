package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/maximewewer/xentime-provider/internal/reference"
	"github.com/maximewewer/xentime-provider/pkg/logger"
	"github.com/maximewewer/xentime-provider/pkg/mathutil"
	"github.com/maximewewer/xentime-provider/pkg/metrics"
)

// BreakerStates reports circuit breaker state per server
type BreakerStates interface {
	State(server string) gobreaker.State
}

// ReferenceCollector queries NTP servers and measures how far the hypervisor's
// offset is from theirs. Both offsets are relative to the local clock, so
// their difference does not depend on it.
type ReferenceCollector struct {
	enabled bool
	servers []string
	querier reference.Querier
	source  SampleSource
	device  string
	scale   time.Duration
	metrics *metrics.ProviderMetrics
}

// ReferenceOptions configures a ReferenceCollector
type ReferenceOptions struct {
	Enabled bool
	Servers []string
	// Device labels the divergence and coherence metrics
	Device string
	// Scale is the divergence scoring a coherence of 0.5
	Scale time.Duration
}

// NewReferenceCollector creates a collector querying opts.Servers through querier
func NewReferenceCollector(querier reference.Querier, source SampleSource, m *metrics.ProviderMetrics, opts ReferenceOptions) *ReferenceCollector {
	return &ReferenceCollector{
		enabled: opts.Enabled,
		servers: opts.Servers,
		querier: querier,
		source:  source,
		device:  opts.Device,
		scale:   opts.Scale,
		metrics: m,
	}
}

// Name returns the name of the collector
func (c *ReferenceCollector) Name() string {
	return "reference"
}

// Enabled indicates if the collector is active
func (c *ReferenceCollector) Enabled() bool {
	return c.enabled && len(c.servers) > 0
}

// Collect queries every server once. It fails only when no server answered.
func (c *ReferenceCollector) Collect(ctx context.Context) error {
	start := time.Now()
	defer func() {
		c.metrics.CollectorDurationSeconds.WithLabelValues(c.Name()).Observe(time.Since(start).Seconds())
	}()

	s, haveSample := c.source.Sample()

	failed := 0
	var lastErr error
	for _, server := range c.servers {
		if err := ctx.Err(); err != nil {
			return err
		}

		resp, err := c.querier.Query(ctx, server)
		c.updateBreakerState(server)
		if err != nil {
			logger.SafeWarn("collector", "Reference query failed", map[string]interface{}{
				"server": server,
				"error":  err.Error(),
			})
			c.metrics.ReferenceReachable.WithLabelValues(server).Set(0)
			failed++
			lastErr = err
			continue
		}

		c.metrics.ReferenceReachable.WithLabelValues(server).Set(1)
		c.metrics.ReferenceOffsetSeconds.WithLabelValues(server).Set(resp.Offset.Seconds())
		c.metrics.ReferenceRTTSeconds.WithLabelValues(server).Set(resp.RTT.Seconds())
		c.metrics.ReferenceStratum.WithLabelValues(server).Set(float64(resp.Stratum))

		if !haveSample {
			continue
		}

		divergence := mathutil.AbsDuration(s.OffsetDuration() - resp.Offset)
		coherence := mathutil.Coherence(divergence, c.scale)

		c.metrics.ReferenceDivergenceSeconds.WithLabelValues(server, c.device).Set(divergence.Seconds())
		c.metrics.ReferenceCoherence.WithLabelValues(server, c.device).Set(coherence)

		logger.SafeDebug("collector", "Reference comparison", map[string]interface{}{
			"server":     server,
			"divergence": divergence.Seconds(),
			"coherence":  coherence,
		})
	}

	if failed == len(c.servers) && lastErr != nil {
		return fmt.Errorf("no reference server answered: %w", lastErr)
	}
	return nil
}

func (c *ReferenceCollector) updateBreakerState(server string) {
	states, ok := c.querier.(BreakerStates)
	if !ok {
		return
	}
	c.metrics.ReferenceCircuitState.WithLabelValues(server).Set(float64(states.State(server)))
}
