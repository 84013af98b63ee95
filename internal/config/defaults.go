package config

import "time"

// DefaultDevicePath is the Xen interface driver's device path
const DefaultDevicePath = `\\.\xeniface`

// ApplyDefaults fills in unset fields. AllowFallback has no default other than false.
func ApplyDefaults(cfg *Config) {
	// Provider
	if cfg.Provider.DevicePath == "" {
		cfg.Provider.DevicePath = DefaultDevicePath
	}
	if cfg.Provider.PollInterval == 0 {
		cfg.Provider.PollInterval = 16 * time.Second
	}
	if cfg.Provider.ConnectInterval == 0 {
		cfg.Provider.ConnectInterval = 5 * time.Second
	}

	// Reference
	if len(cfg.Reference.Servers) == 0 {
		cfg.Reference.Servers = []string{"pool.ntp.org"}
	}
	if cfg.Reference.Timeout == 0 {
		cfg.Reference.Timeout = 5 * time.Second
	}
	if cfg.Reference.Version == 0 {
		cfg.Reference.Version = 4
	}
	if cfg.Reference.Interval == 0 {
		cfg.Reference.Interval = 60 * time.Second
	}
	if cfg.Reference.CoherenceScale == 0 {
		cfg.Reference.CoherenceScale = 50 * time.Millisecond
	}
	if cfg.Reference.CircuitBreaker.MaxRequests == 0 {
		cfg.Reference.CircuitBreaker.MaxRequests = 3
	}
	if cfg.Reference.CircuitBreaker.Interval == 0 {
		cfg.Reference.CircuitBreaker.Interval = 60 * time.Second
	}
	if cfg.Reference.CircuitBreaker.Timeout == 0 {
		cfg.Reference.CircuitBreaker.Timeout = 30 * time.Second
	}
	if cfg.Reference.CircuitBreaker.FailureThreshold == 0 {
		cfg.Reference.CircuitBreaker.FailureThreshold = 0.6
	}

	// Host harness
	if cfg.Host.AlertRate == 0 {
		cfg.Host.AlertRate = 1
	}
	if cfg.Host.AlertBurst == 0 {
		cfg.Host.AlertBurst = 1
	}

	// Server
	if cfg.Server.Address == "" {
		cfg.Server.Address = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9569
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10 * time.Second
	}

	// Logging
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	// Metrics
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "xentime"
	}
}

// DefaultConfig returns a configuration with all defaults applied
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
