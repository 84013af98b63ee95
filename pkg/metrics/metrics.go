package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name
const DefaultNamespace = "xentime"

// Values exported by FallbackState
const (
	FallbackStateNotYetProbed = 0
	FallbackStateDirect       = 1
	FallbackStateFallback     = 2
)

// ProviderMetrics holds every metric the provider exports
type ProviderMetrics struct {
	// Update cycle
	UpdatesTotal             *prometheus.CounterVec // result: success, pending, torn_read, error
	QueryDurationSeconds     *prometheus.HistogramVec
	FallbackState            prometheus.Gauge
	FallbackTransitionsTotal prometheus.Counter
	SamplesServedTotal       *prometheus.CounterVec // result: returned, empty, buffer_too_small
	TimeJumpsTotal           prometheus.Counter
	ResumeEventsTotal        prometheus.Counter

	// Device channel
	DeviceConnected     prometheus.Gauge
	DeviceConnectsTotal *prometheus.CounterVec

	// Last sample
	SampleAvailable         *prometheus.GaugeVec
	SampleOffsetSeconds     *prometheus.GaugeVec
	SampleDelaySeconds      *prometheus.GaugeVec
	SampleDispersionSeconds *prometheus.GaugeVec
	SampleOffsetMean        *prometheus.GaugeVec
	SampleOffsetStddev      *prometheus.GaugeVec
	SampleWindowCount       *prometheus.GaugeVec

	// NTP reference cross-check
	ReferenceOffsetSeconds     *prometheus.GaugeVec
	ReferenceRTTSeconds        *prometheus.GaugeVec
	ReferenceStratum           *prometheus.GaugeVec
	ReferenceReachable         *prometheus.GaugeVec
	ReferenceCircuitState      *prometheus.GaugeVec
	ReferenceDivergenceSeconds *prometheus.GaugeVec
	ReferenceCoherence         *prometheus.GaugeVec

	// Process
	BuildInfo                *prometheus.GaugeVec
	AlertsTotal              *prometheus.CounterVec // result: polled, limited
	CollectorDurationSeconds *prometheus.HistogramVec
}

type builder struct {
	namespace string
	subsystem string
}

func (b builder) gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: b.namespace, Subsystem: b.subsystem, Name: name, Help: help,
	})
}

func (b builder) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: b.namespace, Subsystem: b.subsystem, Name: name, Help: help,
	}, labels)
}

func (b builder) counter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: b.namespace, Subsystem: b.subsystem, Name: name, Help: help,
	})
}

func (b builder) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: b.namespace, Subsystem: b.subsystem, Name: name, Help: help,
	}, labels)
}

func (b builder) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: b.namespace, Subsystem: b.subsystem, Name: name, Help: help, Buckets: buckets,
	}, labels)
}

// NewProviderMetricsWithConfig creates all metrics under namespace and subsystem
func NewProviderMetricsWithConfig(namespace, subsystem string) *ProviderMetrics {
	b := builder{namespace: namespace, subsystem: subsystem}

	// Device queries are sub-millisecond when healthy
	queryBuckets := prometheus.ExponentialBuckets(0.00001, 4, 10)

	return &ProviderMetrics{
		UpdatesTotal: b.counterVec("updates_total",
			"Sample update cycles by outcome", "result"),
		QueryDurationSeconds: b.histogramVec("query_duration_seconds",
			"Duration of hypervisor time queries", queryBuckets, "source"),
		FallbackState: b.gauge("fallback_state",
			"Time source state (0=not yet probed, 1=direct host time, 2=fallback to offset store)"),
		FallbackTransitionsTotal: b.counter("fallback_transitions_total",
			"Transitions to the offset store source"),
		SamplesServedTotal: b.counterVec("samples_served_total",
			"GetSamples calls by outcome", "result"),
		TimeJumpsTotal: b.counter("time_jumps_total",
			"Clock jump notifications received"),
		ResumeEventsTotal: b.counter("resume_events_total",
			"Resume from suspend notifications received"),

		DeviceConnected: b.gauge("device_connected",
			"Whether the Xen interface device is open (1) or not (0)"),
		DeviceConnectsTotal: b.counterVec("device_connects_total",
			"Device open attempts by outcome", "result"),

		SampleAvailable: b.gaugeVec("sample_available",
			"Whether a time sample is cached (1) or not (0)", "device"),
		SampleOffsetSeconds: b.gaugeVec("sample_offset_seconds",
			"Hypervisor time minus local time of the last sample", "device"),
		SampleDelaySeconds: b.gaugeVec("sample_delay_seconds",
			"Query round-trip delay of the last sample", "device"),
		SampleDispersionSeconds: b.gaugeVec("sample_dispersion_seconds",
			"Dispersion of the last sample", "device"),
		SampleOffsetMean: b.gaugeVec("sample_offset_mean_seconds",
			"Running mean of sample offsets", "device"),
		SampleOffsetStddev: b.gaugeVec("sample_offset_stddev_seconds",
			"Running standard deviation of sample offsets", "device"),
		SampleWindowCount: b.gaugeVec("sample_window_count",
			"Samples in the running statistics window", "device"),

		ReferenceOffsetSeconds: b.gaugeVec("reference_offset_seconds",
			"Offset between local clock and the NTP reference", "server"),
		ReferenceRTTSeconds: b.gaugeVec("reference_rtt_seconds",
			"Round-trip time to the NTP reference", "server"),
		ReferenceStratum: b.gaugeVec("reference_stratum",
			"Stratum of the NTP reference", "server"),
		ReferenceReachable: b.gaugeVec("reference_reachable",
			"Whether the NTP reference answered (1) or not (0)", "server"),
		ReferenceCircuitState: b.gaugeVec("reference_circuit_state",
			"Circuit breaker state per reference (0=closed, 1=half-open, 2=open)", "server"),
		ReferenceDivergenceSeconds: b.gaugeVec("reference_divergence_seconds",
			"Absolute difference between hypervisor and NTP reference offsets", "server", "device"),
		ReferenceCoherence: b.gaugeVec("reference_coherence_score",
			"Agreement between hypervisor and NTP reference offsets (0-1, higher is better)", "server", "device"),

		BuildInfo: b.gaugeVec("build_info",
			"Build information", "version", "commit", "go_version"),
		AlertsTotal: b.counterVec("alerts_total",
			"Samples-available alerts by outcome", "result"),
		CollectorDurationSeconds: b.histogramVec("collector_duration_seconds",
			"Duration of metric collector runs", prometheus.DefBuckets, "collector"),
	}
}

// NewProviderMetrics creates all metrics under DefaultNamespace
func NewProviderMetrics() *ProviderMetrics {
	return NewProviderMetricsWithConfig(DefaultNamespace, "")
}

func (m *ProviderMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.UpdatesTotal,
		m.QueryDurationSeconds,
		m.FallbackState,
		m.FallbackTransitionsTotal,
		m.SamplesServedTotal,
		m.TimeJumpsTotal,
		m.ResumeEventsTotal,

		m.DeviceConnected,
		m.DeviceConnectsTotal,

		m.SampleAvailable,
		m.SampleOffsetSeconds,
		m.SampleDelaySeconds,
		m.SampleDispersionSeconds,
		m.SampleOffsetMean,
		m.SampleOffsetStddev,
		m.SampleWindowCount,

		m.ReferenceOffsetSeconds,
		m.ReferenceRTTSeconds,
		m.ReferenceStratum,
		m.ReferenceReachable,
		m.ReferenceCircuitState,
		m.ReferenceDivergenceSeconds,
		m.ReferenceCoherence,

		m.BuildInfo,
		m.AlertsTotal,
		m.CollectorDurationSeconds,
	}
}

// Describe implements prometheus.Collector
func (m *ProviderMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector
func (m *ProviderMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}
