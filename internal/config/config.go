// Package config loads the provider's configuration.
//
// Loaders:
//
//	LoadFromEnvVarsOnly()               environment variables and defaults
//	LoadFromYamlFile(path)              YAML file and defaults
//	LoadFromYamlWithEnvOverrides(path)  YAML file, then environment variables
//	Reload(path)                        what the binary runs on SIGHUP
//
// Environment variables:
//
//	PROVIDER:   XENTIME_ALLOW_FALLBACK, XENTIME_DEVICE_PATH, XENTIME_POLL_INTERVAL,
//	            XENTIME_CONNECT_INTERVAL, XENTIME_SIMULATE, XENTIME_TIMEZONE
//	REFERENCE:  REFERENCE_ENABLED, REFERENCE_SERVERS (comma-separated),
//	            REFERENCE_TIMEOUT, REFERENCE_VERSION, REFERENCE_INTERVAL,
//	            REFERENCE_COHERENCE_SCALE
//	CIRCUIT_BREAKER: CIRCUIT_BREAKER_MAX_REQUESTS, CIRCUIT_BREAKER_INTERVAL,
//	            CIRCUIT_BREAKER_TIMEOUT, CIRCUIT_BREAKER_FAILURE_THRESHOLD
//	HOST:       HOST_ALERT_RATE, HOST_ALERT_BURST
//	SERVER:     XENTIME_ADDRESS, XENTIME_PORT, SERVER_READ_TIMEOUT,
//	            SERVER_WRITE_TIMEOUT, TLS_ENABLED, TLS_CERT_FILE, TLS_KEY_FILE
//	LOGGING:    LOG_LEVEL, LOG_FORMAT, LOG_ENABLE_FILE, LOG_FILE_PATH
//	METRICS:    METRICS_NAMESPACE, METRICS_SUBSYSTEM
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	// Windows hosts carry no zoneinfo database
	_ "time/tzdata"

	"github.com/goccy/go-yaml"

	"github.com/maximewewer/xentime-provider/pkg/logger"
)

// Config is the complete configuration
type Config struct {
	Provider  ProviderConfig  `yaml:"provider"`
	Reference ReferenceConfig `yaml:"reference"`
	Host      HostConfig      `yaml:"host"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ProviderConfig configures the time provider itself
type ProviderConfig struct {
	// AllowFallback permits deriving host time from the guest clock and the RTC
	// offset when the driver cannot report host time. Off unless set.
	AllowFallback   bool          `yaml:"allow_fallback"`
	DevicePath      string        `yaml:"device_path"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	ConnectInterval time.Duration `yaml:"connect_interval"`
	// Simulate answers queries from an in-process device backed by the local clock
	Simulate bool `yaml:"simulate"`
	// Timezone a local-time guest clock is interpreted in; empty means the system zone
	Timezone string `yaml:"timezone"`
}

// Location resolves Timezone. An empty Timezone yields nil, the system zone.
func (c ProviderConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return nil, nil
	}
	return time.LoadLocation(c.Timezone)
}

// ReferenceConfig configures the NTP cross-check of hypervisor samples
type ReferenceConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Servers  []string      `yaml:"servers"`
	Timeout  time.Duration `yaml:"timeout"`
	Version  int           `yaml:"version"`
	Interval time.Duration `yaml:"interval"`
	// CoherenceScale is the divergence at which the coherence score falls to 0.5
	CoherenceScale time.Duration        `yaml:"coherence_scale"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig configures the per-server circuit breakers
type CircuitBreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold float64       `yaml:"failure_threshold"`
}

// HostConfig configures the standalone host harness
type HostConfig struct {
	// AlertRate caps re-polls triggered by samples-available alerts, per second
	AlertRate  float64 `yaml:"alert_rate"`
	AlertBurst int     `yaml:"alert_burst"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Address      string        `yaml:"address"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled"`
	TLSCertFile  string        `yaml:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file"`
}

// LoggingConfig configures the logger
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	EnableFile bool   `yaml:"enable_file"`
	FilePath   string `yaml:"file_path"`
}

// MetricsConfig configures Prometheus metric names
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// LoadFromYamlFile reads configuration from a YAML file, without env overrides
func LoadFromYamlFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("config", "Failed to read config file", err)
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		logger.Error("config", "Failed to parse config file", err)
		return nil, fmt.Errorf("failed to parse YAML config file %s: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		logger.Error("config", "Invalid configuration", err)
		return nil, fmt.Errorf("configuration validation failed for %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromYamlWithEnvOverrides loads the YAML file, then applies environment
// variables on top. A missing or unreadable file falls back to defaults.
func LoadFromYamlWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadFromYamlFile(path)
	if err != nil {
		logger.Warn("config", "Failed to load YAML config file, falling back to env vars only")
		cfg = DefaultConfig()
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		logger.Error("config", "Invalid configuration after env overrides", err)
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFromEnvVarsOnly loads configuration from defaults and environment variables
func LoadFromEnvVarsOnly() (*Config, error) {
	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		logger.Error("config", "Invalid configuration from environment", err)
		return nil, fmt.Errorf("environment configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Reload re-reads the configuration the same way it was first loaded. An empty
// path means environment variables only.
func Reload(path string) (*Config, error) {
	if path == "" {
		return LoadFromEnvVarsOnly()
	}
	return LoadFromYamlWithEnvOverrides(path)
}

func applyEnvOverrides(cfg *Config) {
	// Provider
	envBool("XENTIME_ALLOW_FALLBACK", &cfg.Provider.AllowFallback)
	envString("XENTIME_DEVICE_PATH", &cfg.Provider.DevicePath)
	envDuration("XENTIME_POLL_INTERVAL", &cfg.Provider.PollInterval)
	envDuration("XENTIME_CONNECT_INTERVAL", &cfg.Provider.ConnectInterval)
	envBool("XENTIME_SIMULATE", &cfg.Provider.Simulate)
	envString("XENTIME_TIMEZONE", &cfg.Provider.Timezone)

	// Reference
	envBool("REFERENCE_ENABLED", &cfg.Reference.Enabled)
	if servers := os.Getenv("REFERENCE_SERVERS"); servers != "" {
		cfg.Reference.Servers = parseCommaSeparated(servers)
	}
	envDuration("REFERENCE_TIMEOUT", &cfg.Reference.Timeout)
	envInt("REFERENCE_VERSION", &cfg.Reference.Version)
	envDuration("REFERENCE_INTERVAL", &cfg.Reference.Interval)
	envDuration("REFERENCE_COHERENCE_SCALE", &cfg.Reference.CoherenceScale)

	// Circuit breaker
	if v := os.Getenv("CIRCUIT_BREAKER_MAX_REQUESTS"); v != "" {
		if r, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Reference.CircuitBreaker.MaxRequests = uint32(r)
		}
	}
	envDuration("CIRCUIT_BREAKER_INTERVAL", &cfg.Reference.CircuitBreaker.Interval)
	envDuration("CIRCUIT_BREAKER_TIMEOUT", &cfg.Reference.CircuitBreaker.Timeout)
	envFloat("CIRCUIT_BREAKER_FAILURE_THRESHOLD", &cfg.Reference.CircuitBreaker.FailureThreshold)

	// Host harness
	envFloat("HOST_ALERT_RATE", &cfg.Host.AlertRate)
	envInt("HOST_ALERT_BURST", &cfg.Host.AlertBurst)

	// Server
	envString("XENTIME_ADDRESS", &cfg.Server.Address)
	envInt("XENTIME_PORT", &cfg.Server.Port)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envBool("TLS_ENABLED", &cfg.Server.TLSEnabled)
	envString("TLS_CERT_FILE", &cfg.Server.TLSCertFile)
	envString("TLS_KEY_FILE", &cfg.Server.TLSKeyFile)

	// Logging
	envString("LOG_LEVEL", &cfg.Logging.Level)
	envString("LOG_FORMAT", &cfg.Logging.Format)
	envBool("LOG_ENABLE_FILE", &cfg.Logging.EnableFile)
	envString("LOG_FILE_PATH", &cfg.Logging.FilePath)

	// Metrics
	envString("METRICS_NAMESPACE", &cfg.Metrics.Namespace)
	envString("METRICS_SUBSYSTEM", &cfg.Metrics.Subsystem)
}

// The env helpers leave dst untouched when the variable is unset or unparsable

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func parseCommaSeparated(s string) []string {
	var result []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
