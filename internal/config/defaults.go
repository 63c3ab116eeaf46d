package config

import (
	"strings"
	"time"
)

// ApplyDefaults fills zero-valued settings. Explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyServerDefaults(&cfg.Server)

	if len(cfg.Users) == 0 {
		cfg.Users = []UserConfig{{Name: "root", Password: "root"}}
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Listen == "" {
		cfg.Listen = ":9090"
	}
}

// applyServerDefaults leaves DataPort and MaxIdleTime alone since 0 is
// meaningful for both. Load and GetDefaultConfig set them up front.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Listen == "" {
		cfg.Listen = ":21"
	}
	if cfg.WelcomeMessage == "" {
		cfg.WelcomeMessage = "220 Hello!"
	}
	if cfg.DataTimeout == 0 {
		cfg.DataTimeout = 10 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// GetDefaultConfig returns a complete configuration with every default set.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{DataPort: 20, MaxIdleTime: 5 * time.Minute},
	}
	cfg.Telemetry.Insecure = true
	cfg.Telemetry.SampleRate = 1.0
	ApplyDefaults(cfg)
	return cfg
}
