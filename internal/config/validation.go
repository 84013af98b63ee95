package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate checks the configuration after defaults have been applied
func Validate(cfg *Config) error {
	if err := validateProvider(&cfg.Provider); err != nil {
		return err
	}
	if err := validateReference(&cfg.Reference); err != nil {
		return err
	}
	if err := validateHost(&cfg.Host); err != nil {
		return err
	}
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}
	if err := validateLogging(&cfg.Logging); err != nil {
		return err
	}
	return validateMetrics(&cfg.Metrics)
}

func validateProvider(cfg *ProviderConfig) error {
	if cfg.DevicePath == "" {
		return errors.New("provider.device_path is required")
	}
	if cfg.PollInterval < time.Second || cfg.PollInterval > time.Hour {
		return fmt.Errorf("provider.poll_interval must be between 1s and 1h, got %s", cfg.PollInterval)
	}
	if cfg.ConnectInterval < 100*time.Millisecond || cfg.ConnectInterval > 10*time.Minute {
		return fmt.Errorf("provider.connect_interval must be between 100ms and 10m, got %s", cfg.ConnectInterval)
	}
	if _, err := cfg.Location(); err != nil {
		return fmt.Errorf("provider.timezone: %w", err)
	}
	return nil
}

func validateReference(cfg *ReferenceConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if len(cfg.Servers) == 0 {
		return errors.New("reference.servers must not be empty when reference is enabled")
	}
	if cfg.Timeout < time.Second || cfg.Timeout > 60*time.Second {
		return errors.New("reference.timeout must be between 1s and 60s")
	}
	if cfg.Version < 2 || cfg.Version > 4 {
		return fmt.Errorf("reference.version must be 2, 3, or 4, got %d", cfg.Version)
	}
	if cfg.Interval < 10*time.Second {
		return fmt.Errorf("reference.interval must be at least 10s, got %s", cfg.Interval)
	}
	if cfg.CoherenceScale <= 0 {
		return errors.New("reference.coherence_scale must be positive")
	}
	if t := cfg.CircuitBreaker.FailureThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("reference.circuit_breaker.failure_threshold must be in (0, 1], got %g", t)
	}
	return nil
}

func validateHost(cfg *HostConfig) error {
	if cfg.AlertRate <= 0 {
		return errors.New("host.alert_rate must be positive")
	}
	if cfg.AlertBurst < 1 {
		return errors.New("host.alert_burst must be at least 1")
	}
	return nil
}

func validateServer(cfg *ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.ReadTimeout < time.Second || cfg.ReadTimeout > 60*time.Second {
		return errors.New("read_timeout must be between 1s and 60s")
	}
	if cfg.WriteTimeout < time.Second || cfg.WriteTimeout > 60*time.Second {
		return errors.New("write_timeout must be between 1s and 60s")
	}
	if cfg.TLSEnabled {
		if cfg.TLSCertFile == "" {
			return errors.New("tls_cert_file is required when tls_enabled is true")
		}
		if cfg.TLSKeyFile == "" {
			return errors.New("tls_key_file is required when tls_enabled is true")
		}
	}
	return nil
}

var (
	validLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true}
	validFormats = map[string]bool{"json": true, "console": true}
)

func validateLogging(cfg *LoggingConfig) error {
	if !validLevels[cfg.Level] {
		return errors.New("invalid log level (must be debug, info, warn, error, fatal, or panic)")
	}
	if !validFormats[cfg.Format] {
		return errors.New("invalid log format (must be json or console)")
	}
	if cfg.EnableFile && cfg.FilePath == "" {
		return errors.New("file_path is required when enable_file is true")
	}
	return nil
}

func validateMetrics(cfg *MetricsConfig) error {
	if cfg.Namespace == "" {
		return errors.New("namespace is required")
	}
	return nil
}
