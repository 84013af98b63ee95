package server

import (
	"encoding/json"
	"html"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maximewewer/xentime-provider/internal/config"
	"github.com/maximewewer/xentime-provider/internal/host"
	"github.com/maximewewer/xentime-provider/internal/sample"
	"github.com/maximewewer/xentime-provider/internal/timesource"
	"github.com/maximewewer/xentime-provider/pkg/logger"
)

// ServiceName is reported by the health endpoint
const ServiceName = "xentime-provider"

// ProviderStatus is the provider state the endpoints report
type ProviderStatus interface {
	Sample() (sample.TimeSample, bool)
	State() timesource.State
	AllowFallback() bool
}

// DeviceStatus reports the device connection
type DeviceStatus interface {
	Connected() bool
	Path() string
}

// EventLog returns recent provider events
type EventLog interface {
	Events() []host.Event
}

// Deps are the components the handlers read from. Events may be nil.
type Deps struct {
	Provider ProviderStatus
	Device   DeviceStatus
	Events   EventLog
}

// Handlers contains HTTP request handlers
type Handlers struct {
	config   *config.Config
	registry *prometheus.Registry
	deps     Deps
}

// NewHandlers creates a new handlers instance
func NewHandlers(cfg *config.Config, registry *prometheus.Registry, deps Deps) *Handlers {
	return &Handlers{
		config:   cfg,
		registry: registry,
		deps:     deps,
	}
}

// MetricsHandler serves Prometheus metrics
func (h *Handlers) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	handler := promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{
		ErrorLog:      &loggerAdapter{},
		ErrorHandling: promhttp.ContinueOnError,
	})

	handler.ServeHTTP(w, r)
}

type deviceHealth struct {
	Path      string `json:"path"`
	Connected bool   `json:"connected"`
}

type eventView struct {
	Level string `json:"level"`
	host.Event
}

type healthResponse struct {
	Status          string       `json:"status"`
	Service         string       `json:"service"`
	Device          deviceHealth `json:"device"`
	TimeSource      string       `json:"time_source"`
	AllowFallback   bool         `json:"allow_fallback"`
	SampleAvailable bool         `json:"sample_available"`
	Events          []eventView  `json:"events,omitempty"`
}

// HealthHandler reports the device connection and time source state. It
// answers 503 while the device is not connected.
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	_, available := h.deps.Provider.Sample()

	resp := healthResponse{
		Status:  "healthy",
		Service: ServiceName,
		Device: deviceHealth{
			Path:      h.deps.Device.Path(),
			Connected: h.deps.Device.Connected(),
		},
		TimeSource:      h.deps.Provider.State().String(),
		AllowFallback:   h.deps.Provider.AllowFallback(),
		SampleAvailable: available,
	}
	if h.deps.Events != nil {
		for _, e := range h.deps.Events.Events() {
			resp.Events = append(resp.Events, eventView{Level: e.Level.String(), Event: e})
		}
	}

	status := http.StatusOK
	switch {
	case !resp.Device.Connected:
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	case !available:
		resp.Status = "degraded"
	}

	writeJSON(w, status, resp)
}

type sampleResponse struct {
	sample.TimeSample
	OffsetSeconds     float64 `json:"offset_seconds"`
	DelaySeconds      float64 `json:"delay_seconds"`
	DispersionSeconds float64 `json:"dispersion_seconds"`
	TimeSource        string  `json:"time_source"`
}

// SampleHandler returns the cached time sample, or 404 when there is none
func (h *Handlers) SampleHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := h.deps.Provider.Sample()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no sample available"})
		return
	}

	writeJSON(w, http.StatusOK, sampleResponse{
		TimeSample:        s,
		OffsetSeconds:     s.OffsetDuration().Seconds(),
		DelaySeconds:      s.DelayDuration().Seconds(),
		DispersionSeconds: s.DispersionDuration().Seconds(),
		TimeSource:        h.deps.Provider.State().String(),
	})
}

// IndexHandler serves the index page
func (h *Handlers) IndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)

	page := `<!DOCTYPE html>
<html>
<head>
    <title>Xen Time Provider</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        h1 { color: #333; }
        ul { list-style-type: none; padding: 0; }
        li { margin: 10px 0; }
        a { color: #0066cc; text-decoration: none; }
        a:hover { text-decoration: underline; }
        .info { background-color: #f0f0f0; padding: 15px; border-radius: 5px; }
    </style>
</head>
<body>
    <h1>Xen Time Provider</h1>
    <div class="info">
        <h2>Available Endpoints:</h2>
        <ul>
            <li><a href="/metrics">/metrics</a> - Prometheus metrics</li>
            <li><a href="/health">/health</a> - Health check</li>
            <li><a href="/sample">/sample</a> - Last time sample</li>
        </ul>
        <h2>Configuration:</h2>
        <ul>
            <li>Device: ` + html.EscapeString(h.config.Provider.DevicePath) + `</li>
            <li>Poll interval: ` + h.config.Provider.PollInterval.String() + `</li>
            <li>Fallback allowed: ` + strconv.FormatBool(h.config.Provider.AllowFallback) + `</li>
            <li>Simulated: ` + strconv.FormatBool(h.config.Provider.Simulate) + `</li>
            <li>NTP references: ` + strconv.Itoa(len(h.config.Reference.Servers)) + ` configured</li>
        </ul>
    </div>
</body>
</html>`

	w.Write([]byte(page))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("server", "Failed to encode response", err)
	}
}

// loggerAdapter adapts pkg/logger to promhttp logger interface
type loggerAdapter struct{}

func (l *loggerAdapter) Println(v ...interface{}) {
	msg := ""
	for i, val := range v {
		if i > 0 {
			msg += " "
		}
		if s, ok := val.(string); ok {
			msg += s
		} else if err, ok := val.(error); ok {
			msg += err.Error()
		}
	}
	logger.Error("promhttp", msg, nil)
}
