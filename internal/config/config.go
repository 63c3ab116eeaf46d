// Package config loads the miniftpd configuration.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. MINIFTP_SERVER_DATA_PORT.
const EnvPrefix = "MINIFTP"

// Config is the miniftpd configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (MINIFTP_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry tracing of transfers
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Server holds the FTP listener and session settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Users are the accounts accepted by USER/PASS. A password may be a
	// bcrypt hash as produced by "miniftpd passwd".
	Users []UserConfig `mapstructure:"users" validate:"required,min=1,unique=Name,dive" yaml:"users"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR" yaml:"level"`

	// Format specifies the log output format: text or json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	// Enabled turns on span export. Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector (host:port)
	Endpoint string `mapstructure:"endpoint" validate:"required_if=Enabled true" yaml:"endpoint"`

	// Insecure disables TLS towards the collector
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate is the fraction of transfers traced (0.0 to 1.0)
	SampleRate float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1" yaml:"sample_rate"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Listen is the HTTP address serving /metrics and /healthz
	Listen string `mapstructure:"listen" validate:"required_if=Enabled true" yaml:"listen"`
}

// ServerConfig holds the FTP server settings.
type ServerConfig struct {
	// Listen is the command connection address. Default: ":21"
	Listen string `mapstructure:"listen" validate:"required" yaml:"listen"`

	// DataPort is the local port data connections originate from.
	// Default: 20. 0 picks an ephemeral port.
	DataPort int `mapstructure:"data_port" validate:"gte=0,lte=65535" yaml:"data_port"`

	// WelcomeMessage is sent on connect. Default: "220 Hello!"
	WelcomeMessage string `mapstructure:"welcome_message" validate:"required" yaml:"welcome_message"`

	// RootDir confines STOR/RETR paths to a directory. Empty uses paths as
	// sent by the client.
	RootDir string `mapstructure:"root_dir" yaml:"root_dir,omitempty"`

	// MaxIdleTime closes command connections idle for longer. 0 disables
	// the limit. Default: 5m
	MaxIdleTime time.Duration `mapstructure:"max_idle_time" validate:"gte=0" yaml:"max_idle_time"`

	// DataTimeout bounds dialing a client's data address. Default: 10s
	DataTimeout time.Duration `mapstructure:"data_timeout" validate:"gt=0" yaml:"data_timeout"`

	// MaxConnections limits simultaneous sessions. 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"gte=0" yaml:"max_connections"`

	// StrictPort rejects PORT addresses other than the client's own IP
	StrictPort bool `mapstructure:"strict_port" yaml:"strict_port"`

	// TransferRateLimit caps each data transfer, e.g. "10MB" or "512KiB".
	// Empty disables throttling.
	TransferRateLimit string `mapstructure:"transfer_rate_limit" yaml:"transfer_rate_limit,omitempty"`

	// TransferLog is an xferlog file path. Empty disables it.
	TransferLog string `mapstructure:"transfer_log" yaml:"transfer_log,omitempty"`

	// ShutdownTimeout is the maximum time to wait for sessions on shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0" yaml:"shutdown_timeout"`
}

// UserConfig is a single account.
type UserConfig struct {
	Name     string `mapstructure:"name" validate:"required" yaml:"name"`
	Password string `mapstructure:"password" validate:"required" yaml:"password"`
}

// Credentials returns the configured accounts as a name to password map.
func (c *Config) Credentials() map[string]string {
	creds := make(map[string]string, len(c.Users))
	for _, u := range c.Users {
		creds[u.Name] = u.Password
	}
	return creds
}

// Load loads configuration from file, environment, and defaults.
//
// An empty configPath searches the default location. A missing file is not
// an error: defaults plus environment overrides are used.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks the struct tags of cfg and the values that need parsing.
func Validate(cfg *Config) error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return err
	}
	if _, err := cfg.Server.TransferRate(); err != nil {
		return err
	}
	return nil
}

// TransferRate returns TransferRateLimit in bytes per second, 0 when unset.
func (c ServerConfig) TransferRate() (int64, error) {
	if c.TransferRateLimit == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.TransferRateLimit)
	if err != nil {
		return 0, fmt.Errorf("invalid transfer_rate_limit %q: %w", c.TransferRateLimit, err)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("transfer_rate_limit %q is too large", c.TransferRateLimit)
	}
	return int64(n), nil
}

// SaveConfig writes cfg as YAML, creating parent directories.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file holds passwords.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	// Example: MINIFTP_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper already knows about.
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// Zero is meaningful for these settings, so their defaults cannot be
	// filled in after unmarshaling.
	v.SetDefault("server.data_port", 20)
	v.SetDefault("server.max_idle_time", 5*time.Minute)
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sample_rate", 1.0)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// envKeys lists the scalar settings that can be overridden from the
// environment without appearing in the file.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"telemetry.enabled",
	"telemetry.endpoint",
	"telemetry.insecure",
	"telemetry.sample_rate",
	"metrics.enabled",
	"metrics.listen",
	"server.listen",
	"server.data_port",
	"server.welcome_message",
	"server.root_dir",
	"server.max_idle_time",
	"server.data_timeout",
	"server.max_connections",
	"server.strict_port",
	"server.transfer_rate_limit",
	"server.transfer_log",
	"server.shutdown_timeout",
}

// readConfigFile reports whether a configuration file was read.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// durationDecodeHook converts "30s", "5m" and raw nanosecond counts to
// time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/miniftp, ~/.config/miniftp, or "."
// when no home directory is known.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "miniftp")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "miniftp")
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
