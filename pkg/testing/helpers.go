// Package testutil holds helpers shared by the module's tests: NTP response
// builders, time sample fixtures and Prometheus assertions.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/beevik/ntp"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/maximewewer/xentime-provider/internal/filetime"
	"github.com/maximewewer/xentime-provider/internal/sample"
)

// TestDevicePath is the device path fixtures are named after
const TestDevicePath = `\\.\xeniface`

// CreateMockNTPResponse creates a valid mock NTP response for testing
func CreateMockNTPResponse(offset time.Duration, stratum uint8) *ntp.Response {
	now := time.Now()
	return &ntp.Response{
		Time:           now.Add(offset),
		ClockOffset:    offset,
		RTT:            50 * time.Millisecond,
		Precision:      time.Microsecond,
		Stratum:        stratum,
		ReferenceID:    0x4E495354, // NIST
		ReferenceTime:  now.Add(-1 * time.Hour),
		RootDelay:      10 * time.Millisecond,
		RootDispersion: 5 * time.Millisecond,
		RootDistance:   15 * time.Millisecond,
		Leap:           ntp.LeapNoWarning,
		MinError:       time.Millisecond,
		Poll:           64 * time.Second,
	}
}

// CreateKoDResponse creates a Kiss-of-Death NTP response
func CreateKoDResponse(code string) *ntp.Response {
	resp := CreateMockNTPResponse(0, 0)
	resp.KissCode = code
	return resp
}

// CreateUnsyncedResponse creates a response from a server that lost sync
func CreateUnsyncedResponse() *ntp.Response {
	resp := CreateMockNTPResponse(0, 16)
	resp.Leap = ntp.LeapNotInSync
	return resp
}

// CreateSample creates a time sample for TestDevicePath with offset expressed
// as a duration. tick distinguishes successive samples.
func CreateSample(tick uint64, offset time.Duration) sample.TimeSample {
	return sample.TimeSample{
		RefID:       sample.RefID,
		Offset:      int64(offset / filetime.TickDuration),
		Delay:       2 * filetime.TicksPerMicrosecond,
		Dispersion:  filetime.TicksPerMillisecond,
		TickCount:   tick,
		PhaseOffset: 0,
		LeapFlags:   sample.LeapFlags,
		Stratum:     sample.Stratum,
		Flags:       sample.FlagHardware,
		Name:        TestDevicePath,
	}
}

// AssertMetricValue validates a Prometheus metric value
func AssertMetricValue(t *testing.T, registry *prometheus.Registry, metricName string, labels map[string]string, expected float64) {
	t.Helper()

	m, found := findMetric(t, registry, metricName, labels)
	if !found {
		t.Errorf("Metric %s with labels %v not found", metricName, labels)
		return
	}

	var value float64
	switch {
	case m.GetGauge() != nil:
		value = m.GetGauge().GetValue()
	case m.GetCounter() != nil:
		value = m.GetCounter().GetValue()
	case m.GetHistogram() != nil:
		value = m.GetHistogram().GetSampleSum()
	default:
		t.Fatalf("Unsupported metric type for %s", metricName)
	}

	if value != expected {
		t.Errorf("Metric %s with labels %v: expected %f, got %f", metricName, labels, expected, value)
	}
}

// AssertMetricExists checks if a metric exists with given labels
func AssertMetricExists(t *testing.T, registry *prometheus.Registry, metricName string, labels map[string]string) {
	t.Helper()

	if _, found := findMetric(t, registry, metricName, labels); !found {
		t.Errorf("Metric %s with labels %v not found", metricName, labels)
	}
}

func findMetric(t *testing.T, registry *prometheus.Registry, metricName string, labels map[string]string) (*dto.Metric, bool) {
	t.Helper()

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	for _, mf := range families {
		if mf.GetName() != metricName {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m.GetLabel(), labels) {
				return m, true
			}
		}
	}
	return nil, false
}

// labelsMatch checks if metric labels match expected labels
func labelsMatch(metricLabels []*dto.LabelPair, expected map[string]string) bool {
	if len(metricLabels) != len(expected) {
		return false
	}

	for _, label := range metricLabels {
		expectedValue, exists := expected[label.GetName()]
		if !exists || expectedValue != label.GetValue() {
			return false
		}
	}

	return true
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("Timeout waiting for condition: %s", message)
		}
		<-ticker.C
	}
}

// NewTestHTTPServer creates a test HTTP server closed at the end of the test
func NewTestHTTPServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// ValidatePrometheusMetricName validates that a metric name follows Prometheus
// conventions and carries the xentime_ prefix
func ValidatePrometheusMetricName(t *testing.T, name string) {
	t.Helper()

	validName := regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)
	if !validName.MatchString(name) {
		t.Errorf("Invalid metric name: %s (must match [a-zA-Z_:][a-zA-Z0-9_:]*)", name)
	}

	if !strings.HasPrefix(name, "xentime_") {
		t.Errorf("Metric name %s should have xentime_ prefix", name)
	}
}

// ValidatePrometheusLabelName validates that a label name follows Prometheus conventions
func ValidatePrometheusLabelName(t *testing.T, name string) {
	t.Helper()

	validLabel := regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	if !validLabel.MatchString(name) {
		t.Errorf("Invalid label name: %s (must match [a-zA-Z_][a-zA-Z0-9_]*)", name)
	}

	for _, r := range []string{"__name__", "job", "instance"} {
		if name == r {
			t.Errorf("Label name %s is reserved", name)
		}
	}
}
