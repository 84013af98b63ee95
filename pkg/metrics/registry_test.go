package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	helpers "github.com/maximewewer/xentime-provider/pkg/testing"
)

func gatheredNames(t testing.TB, reg *prometheus.Registry) map[string]bool {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register())

	// A second registration collides
	assert.Error(t, reg.Register())
}

func TestRegistry_MustRegister(t *testing.T) {
	reg := NewRegistry()
	assert.NotPanics(t, reg.MustRegister)
	assert.Panics(t, reg.MustRegister)
}

func TestRegistry_MetricNames(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register())

	m := reg.GetMetrics()
	m.UpdatesTotal.WithLabelValues("success").Inc()
	m.SampleOffsetSeconds.WithLabelValues("xen0").Set(0.001)
	m.BuildInfo.WithLabelValues("1.0.0", "abc", "go1.24").Set(1)

	names := gatheredNames(t, reg.GetRegistry())
	for _, want := range []string{
		"xentime_updates_total",
		"xentime_sample_offset_seconds",
		"xentime_build_info",
		"xentime_fallback_state",
		"xentime_device_connected",
		"go_goroutines",
	} {
		assert.True(t, names[want], "expected %s", want)
	}
}

func TestRegistry_NamingConventions(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register())

	m := reg.GetMetrics()
	m.UpdatesTotal.WithLabelValues("success").Inc()
	m.QueryDurationSeconds.WithLabelValues("host_time").Observe(0.0001)
	m.ReferenceCoherence.WithLabelValues("time.example.com", "xen0").Set(1)
	m.BuildInfo.WithLabelValues("1.0.0", "abc", "go1.24").Set(1)

	families, err := reg.GetRegistry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), DefaultNamespace+"_") {
			continue
		}
		helpers.ValidatePrometheusMetricName(t, mf.GetName())
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				helpers.ValidatePrometheusLabelName(t, label.GetName())
			}
		}
	}

	promReg := reg.GetRegistry()
	helpers.AssertMetricValue(t, promReg, "xentime_updates_total", map[string]string{"result": "success"}, 1)
	helpers.AssertMetricValue(t, promReg, "xentime_reference_coherence_score",
		map[string]string{"server": "time.example.com", "device": "xen0"}, 1)
	helpers.AssertMetricExists(t, promReg, "xentime_fallback_state", map[string]string{})
}

func TestRegistry_CustomNamespace(t *testing.T) {
	reg := NewRegistryWithConfig("guest", "time")
	require.NoError(t, reg.Register())
	reg.GetMetrics().TimeJumpsTotal.Inc()

	names := gatheredNames(t, reg.GetRegistry())
	assert.True(t, names["guest_time_time_jumps_total"])
}

func TestRegistry_SeparateInstances(t *testing.T) {
	reg1 := NewRegistry()
	reg2 := NewRegistry()

	require.NoError(t, reg1.Register())
	require.NoError(t, reg2.Register())
	assert.NotSame(t, reg1.GetRegistry(), reg2.GetRegistry())
}

func TestProviderMetrics_Values(t *testing.T) {
	m := NewProviderMetrics()
	prometheus.NewRegistry().MustRegister(m)

	m.UpdatesTotal.WithLabelValues("success").Inc()
	m.UpdatesTotal.WithLabelValues("success").Inc()
	m.UpdatesTotal.WithLabelValues("torn_read").Inc()
	m.FallbackState.Set(FallbackStateFallback)
	m.ReferenceDivergenceSeconds.WithLabelValues("time.example.com", "xen0").Set(0.25)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.UpdatesTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpdatesTotal.WithLabelValues("torn_read")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FallbackState))
	assert.Equal(t, 0.25, testutil.ToFloat64(m.ReferenceDivergenceSeconds.WithLabelValues("time.example.com", "xen0")))
}

func TestProviderMetrics_Histograms(t *testing.T) {
	m := NewProviderMetrics()
	reg := prometheus.NewRegistry()
	reg.MustRegister(m)

	m.QueryDurationSeconds.WithLabelValues("host_time").Observe(0.0001)
	m.CollectorDurationSeconds.WithLabelValues("sample").Observe(0.01)

	assert.Equal(t, 2, testutil.CollectAndCount(m, "xentime_query_duration_seconds", "xentime_collector_duration_seconds"))
}

func BenchmarkRegistry_Gather(b *testing.B) {
	reg := NewRegistry()
	require.NoError(b, reg.Register())
	promReg := reg.GetRegistry()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = promReg.Gather()
	}
}
