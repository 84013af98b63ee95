package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry owns the Prometheus registry the server exposes
type Registry struct {
	registry *prometheus.Registry
	metrics  *ProviderMetrics
}

// NewRegistry creates a registry with metrics under DefaultNamespace
func NewRegistry() *Registry {
	return NewRegistryWithConfig(DefaultNamespace, "")
}

// NewRegistryWithConfig creates a registry with a custom namespace and subsystem
func NewRegistryWithConfig(namespace, subsystem string) *Registry {
	return &Registry{
		registry: prometheus.NewRegistry(),
		metrics:  NewProviderMetricsWithConfig(namespace, subsystem),
	}
}

// Register registers the provider metrics plus Go runtime and process collectors
func (r *Registry) Register() error {
	if err := r.registry.Register(r.metrics); err != nil {
		return err
	}

	r.registry.MustRegister(collectors.NewGoCollector())
	r.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return nil
}

// MustRegister is Register that panics on error
func (r *Registry) MustRegister() {
	if err := r.Register(); err != nil {
		panic(err)
	}
}

// GetRegistry returns the underlying Prometheus registry
func (r *Registry) GetRegistry() *prometheus.Registry {
	return r.registry
}

// GetMetrics returns the provider metrics
func (r *Registry) GetMetrics() *ProviderMetrics {
	return r.metrics
}
