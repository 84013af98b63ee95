// Package collector turns provider state into Prometheus metrics.
//
// Two collectors are provided:
//   - SampleCollector: exports the cached time sample and running offset statistics
//   - ReferenceCollector: compares the sample offset against NTP reference servers
//
// Both implement Collector and are driven together through a Registry, once per
// host poll.
package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maximewewer/xentime-provider/pkg/logger"
)

// Collector represents a metrics collector
type Collector interface {
	// Collect updates the collector's metrics
	Collect(ctx context.Context) error

	// Name returns the name of the collector
	Name() string

	// Enabled indicates if the collector is active
	Enabled() bool
}

// Registry manages multiple collectors
type Registry struct {
	collectors []Collector
}

// NewRegistry creates a new collector registry
func NewRegistry() *Registry {
	return &Registry{
		collectors: make([]Collector, 0),
	}
}

// Register registers a collector
func (r *Registry) Register(c Collector) {
	r.collectors = append(r.collectors, c)
}

// CollectAll runs every enabled collector. A failing collector does not stop
// the others; all failures are joined into the returned error.
func (r *Registry) CollectAll(ctx context.Context) error {
	var errs []error

	for _, c := range r.collectors {
		if !c.Enabled() {
			continue
		}

		start := time.Now()
		err := c.Collect(ctx)
		logger.Metric(c.Name(), "all", time.Since(start), err == nil)
		if err != nil {
			logger.SafeWarn("collector", "Collection failed", map[string]interface{}{
				"collector": c.Name(),
				"error":     err.Error(),
			})
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		}
	}

	return errors.Join(errs...)
}

// List returns all registered collectors
func (r *Registry) List() []Collector {
	return r.collectors
}

// Count returns the number of registered collectors
func (r *Registry) Count() int {
	return len(r.collectors)
}

// EnabledCount returns the number of enabled collectors
func (r *Registry) EnabledCount() int {
	count := 0
	for _, c := range r.collectors {
		if c.Enabled() {
			count++
		}
	}
	return count
}
