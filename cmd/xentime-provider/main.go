package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/maximewewer/xentime-provider/internal/collector"
	"github.com/maximewewer/xentime-provider/internal/config"
	"github.com/maximewewer/xentime-provider/internal/device"
	"github.com/maximewewer/xentime-provider/internal/filetime"
	"github.com/maximewewer/xentime-provider/internal/host"
	"github.com/maximewewer/xentime-provider/internal/provider"
	"github.com/maximewewer/xentime-provider/internal/reference"
	"github.com/maximewewer/xentime-provider/internal/resume"
	"github.com/maximewewer/xentime-provider/internal/server"
	"github.com/maximewewer/xentime-provider/internal/xeniface"
	"github.com/maximewewer/xentime-provider/pkg/logger"
	"github.com/maximewewer/xentime-provider/pkg/metrics"
	"github.com/sony/gobreaker"
)

var (
	// Build information
	version = "dev"
	commit  = ""
)

// simulatedVMRoot is the store root the simulated device reports
const simulatedVMRoot = "/vm/00000000-0000-0000-0000-000000000000"

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		println("xentime-provider version", version)
		os.Exit(0)
	}

	// Load configuration (before logger is initialized)
	cfg, err := loadConfig(*configFile)
	if err != nil {
		os.Stderr.WriteString("Failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitLogger(loggerConfig(cfg)); err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Startup(version, commit, map[string]interface{}{
		"go_version": runtime.Version(),
		"config":     cfg,
	})

	registry := metrics.NewRegistryWithConfig(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
	if err := registry.Register(); err != nil {
		logger.Fatal("main", "Failed to register metrics", err)
	}
	m := registry.GetMetrics()
	m.BuildInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)

	providerCfg, err := providerConfig(cfg)
	if err != nil {
		logger.Fatal("main", "Invalid provider configuration", err)
	}

	notifier := resume.NewNotifier(eventFactory(cfg))
	session := device.NewSession(cfg.Provider.DevicePath, opener(cfg), sessionHooks(notifier, m))

	h := host.New(host.Config{
		PollInterval: cfg.Provider.PollInterval,
		AlertRate:    cfg.Host.AlertRate,
		AlertBurst:   cfg.Host.AlertBurst,
	}, m)

	p := provider.New(providerCfg, h, session, m)
	p.Subscribe(notifier.Events())

	collectors := buildCollectors(cfg, p, m)
	logger.SafeInfo("main", "Registered collectors", map[string]interface{}{
		"total":   collectors.Count(),
		"enabled": collectors.EnabledCount(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = session.Run(ctx, cfg.Provider.ConnectInterval)
	}()

	hostErrChan := make(chan error, 1)
	go func() {
		hostErrChan <- h.Run(ctx, p, collectors)
	}()

	srv := server.New(cfg, registry.GetRegistry(), server.Deps{
		Provider: p,
		Device:   session,
		Events:   h,
	})
	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- srv.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

loop:
	for {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				reload(*configFile, p, h)
				continue
			}
			logger.SafeInfo("main", "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			break loop
		case err := <-serverErrChan:
			if err != nil {
				logger.Error("main", "Server error", err)
			}
			break loop
		case err := <-hostErrChan:
			if err != nil {
				logger.Error("main", "Poll loop error", err)
			}
			break loop
		}
	}
	cancel()

	if err := p.Shutdown(); err != nil {
		logger.Error("main", "Provider shutdown error", err)
	}
	notifier.Detach()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("main", "Server shutdown error", err)
	}

	logger.Shutdown("graceful")
}

// loadConfig loads configuration based on whether a config file is specified
func loadConfig(configFile string) (*config.Config, error) {
	if configFile != "" {
		// Environment variables > YAML file > defaults
		return config.LoadFromYamlWithEnvOverrides(configFile)
	}
	return config.LoadFromEnvVarsOnly()
}

func loggerConfig(cfg *config.Config) logger.Config {
	return logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		Component:  "xentime-provider",
		EnableFile: cfg.Logging.EnableFile,
	}
}

func providerConfig(cfg *config.Config) (provider.Config, error) {
	loc, err := cfg.Provider.Location()
	if err != nil {
		return provider.Config{}, err
	}
	return provider.Config{
		AllowFallback: cfg.Provider.AllowFallback,
		Location:      loc,
	}, nil
}

// opener returns the real driver opener, or one handing out a simulated
// device answering from the local clock
func opener(cfg *config.Config) device.OpenFunc {
	if !cfg.Provider.Simulate {
		return xeniface.Open
	}

	logger.Warn("main", "Simulation mode: samples come from the local clock, not the hypervisor")
	return func(path string) (xeniface.Device, error) {
		return simulatedDevice(), nil
	}
}

// eventFactory returns the resume event constructor. The simulated device
// signals in-process channel events.
func eventFactory(cfg *config.Config) func() (resume.Event, error) {
	if !cfg.Provider.Simulate {
		return resume.NewEvent
	}
	return func() (resume.Event, error) {
		return resume.NewChanEvent(), nil
	}
}

func simulatedDevice() *xeniface.MockDevice {
	dev := xeniface.NewMockDevice()
	now := func() xeniface.TimeRecord {
		return xeniface.TimeRecord{Time: filetime.Now()}
	}
	dev.SetHostTimeFunc(now)
	dev.SetGuestTimeFunc(now)
	dev.SetStoreValue("vm", simulatedVMRoot)
	dev.SetStoreValue(simulatedVMRoot+"/rtc/timeoffset", "0")
	return dev
}

func sessionHooks(notifier *resume.Notifier, m *metrics.ProviderMetrics) device.Hooks {
	return device.Hooks{
		OnConnect: func(dev xeniface.Device) {
			m.DeviceConnected.Set(1)
			m.DeviceConnectsTotal.WithLabelValues("success").Inc()
			if err := notifier.Attach(dev); err != nil {
				logger.SafeWarn("main", "Resume notifications unavailable", map[string]interface{}{
					"error": err.Error(),
				})
			}
		},
		OnDisconnect: func(xeniface.Device) {
			m.DeviceConnected.Set(0)
			notifier.Detach()
		},
		OnConnectFail: func(error) {
			m.DeviceConnectsTotal.WithLabelValues("failure").Inc()
		},
	}
}

func buildCollectors(cfg *config.Config, p *provider.Provider, m *metrics.ProviderMetrics) *collector.Registry {
	registry := collector.NewRegistry()
	registry.Register(collector.NewSampleCollector(p, cfg.Provider.DevicePath, m, collector.DefaultWindow))

	cb := cfg.Reference.CircuitBreaker
	querier := reference.NewBreakerClient(
		reference.NewClient(cfg.Reference.Timeout, cfg.Reference.Version),
		reference.BreakerConfig{
			MaxRequests:      cb.MaxRequests,
			Interval:         cb.Interval,
			Timeout:          cb.Timeout,
			FailureThreshold: cb.FailureThreshold,
			OnStateChange: func(server string, to gobreaker.State) {
				m.ReferenceCircuitState.WithLabelValues(server).Set(float64(to))
			},
		},
	)
	registry.Register(collector.NewReferenceCollector(querier, p, m, collector.ReferenceOptions{
		Enabled: cfg.Reference.Enabled,
		Servers: cfg.Reference.Servers,
		Device:  cfg.Provider.DevicePath,
		Scale:   cfg.Reference.CoherenceScale,
	}))

	return registry
}

// reload re-reads the configuration and applies the parts that can change at
// runtime: the fallback setting, time zone and poll interval
func reload(configFile string, p *provider.Provider, h *host.Host) {
	cfg, err := config.Reload(configFile)
	if err != nil {
		logger.Error("main", "Configuration reload failed", err)
		return
	}

	providerCfg, err := providerConfig(cfg)
	if err != nil {
		logger.Error("main", "Configuration reload failed", err)
		return
	}
	p.UpdateConfig(providerCfg)

	if h.SetPollInterval(cfg.Provider.PollInterval) {
		p.PollIntervalChanged()
	}

	logger.SafeInfo("main", "Configuration reloaded", map[string]interface{}{
		"allow_fallback": cfg.Provider.AllowFallback,
		"poll_interval":  cfg.Provider.PollInterval.String(),
	})
}
