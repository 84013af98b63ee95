package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlers_MetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_metric",
		Help: "Test metric",
	})
	registry.MustRegister(gauge)
	gauge.Set(42)

	handlers := NewHandlers(testConfig(), registry, testDeps(nil, true))

	w := httptest.NewRecorder()
	handlers.MetricsHandler(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_metric 42")
}

func TestHandlers_HealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		connected  bool
		withSample bool
		wantCode   int
		wantStatus string
	}{
		{"healthy", true, true, http.StatusOK, "healthy"},
		{"no sample", true, false, http.StatusOK, "degraded"},
		{"not connected", false, false, http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSample()
			if !tt.withSample {
				s = nil
			}
			handlers := NewHandlers(testConfig(), prometheus.NewRegistry(), testDeps(s, tt.connected))

			w := httptest.NewRecorder()
			handlers.HealthHandler(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body["status"])
			assert.Equal(t, ServiceName, body["service"])
			assert.Equal(t, "direct_host_time", body["time_source"])
			assert.Equal(t, tt.withSample, body["sample_available"])

			events, ok := body["events"].([]interface{})
			require.True(t, ok)
			require.Len(t, events, 1)
			event := events[0].(map[string]interface{})
			assert.Equal(t, "information", event["level"])
			assert.Equal(t, "UpdateConfig", event["message"])
		})
	}
}

func TestHandlers_HealthHandler_NoEventLog(t *testing.T) {
	deps := testDeps(nil, true)
	deps.Events = nil
	handlers := NewHandlers(testConfig(), prometheus.NewRegistry(), deps)

	w := httptest.NewRecorder()
	handlers.HealthHandler(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "events")
}

func TestHandlers_SampleHandler(t *testing.T) {
	handlers := NewHandlers(testConfig(), prometheus.NewRegistry(), testDeps(testSample(), true))

	w := httptest.NewRecorder()
	handlers.SampleHandler(w, httptest.NewRequest(http.MethodGet, "/sample", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.InDelta(t, 0.025, body["offset_seconds"], 1e-12)
	assert.InDelta(t, 0.001, body["dispersion_seconds"], 1e-12)
	assert.Equal(t, "direct_host_time", body["time_source"])
	assert.Equal(t, `\\.\xeniface`, body["name"])
}

func TestHandlers_SampleHandler_NoSample(t *testing.T) {
	handlers := NewHandlers(testConfig(), prometheus.NewRegistry(), testDeps(nil, true))

	w := httptest.NewRecorder()
	handlers.SampleHandler(w, httptest.NewRequest(http.MethodGet, "/sample", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "no sample available")
}

func TestHandlers_IndexHandler(t *testing.T) {
	handlers := NewHandlers(testConfig(), prometheus.NewRegistry(), testDeps(nil, true))

	w := httptest.NewRecorder()
	handlers.IndexHandler(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Xen Time Provider")
	assert.Contains(t, w.Body.String(), "/sample")

	w = httptest.NewRecorder()
	handlers.IndexHandler(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
