package otex

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kzs0/otex/config"
	otexlog "github.com/kzs0/otex/log"
	"github.com/kzs0/otex/server"
)

// EnvPrefix prefixes every environment variable Config reads.
const EnvPrefix = "OTEX"

// Config configures Init. Every field can be set from the environment; see
// FromEnv. Configs built in code should start from DefaultConfig, since a
// zero TraceSampleRate records nothing.
type Config struct {
	// Service is the name of the service.
	Service string `envconfig:"SERVICE" default:"unknown"`
	Version string `envconfig:"VERSION"`

	// Export selects OTLP/HTTP exporters. When false, spans and log records
	// are written to stdout and metrics are only served on /metrics.
	Export   bool              `envconfig:"EXPORT" default:"true"`
	Endpoint string            `envconfig:"ENDPOINT"`
	Insecure bool              `envconfig:"INSECURE"`
	Headers  map[string]string `envconfig:"HEADERS"`
	// ExportTimeout bounds a single export call.
	ExportTimeout time.Duration `envconfig:"EXPORT_TIMEOUT" default:"10s"`

	// TraceSampleRate is the fraction of new traces recorded. Children follow
	// their parent's decision.
	TraceSampleRate float64 `envconfig:"TRACE_SAMPLE_RATE" default:"1.0"`

	// LogLevel is the minimum level for both the slog logger and telemetry
	// log records (debug, info, warn, error).
	LogLevel  string    `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string    `envconfig:"LOG_FORMAT" default:"json"`
	LogOutput io.Writer `ignored:"true"`
	// LogWriter receives local telemetry output when Export is false.
	// Defaults to os.Stdout.
	LogWriter io.Writer `ignored:"true"`

	MetricPrefix   string        `envconfig:"METRIC_PREFIX"`
	MetricInterval time.Duration `envconfig:"METRIC_INTERVAL" default:"60s"`
	RuntimeMetrics bool          `envconfig:"RUNTIME_METRICS" default:"true"`

	// ServerEnabled starts the observability server in Init.
	ServerEnabled           bool          `envconfig:"SERVER_ENABLED" default:"false"`
	ServerAddr              string        `envconfig:"SERVER_ADDR" default:":9090"`
	ServerMetrics           bool          `envconfig:"SERVER_METRICS" default:"true"`
	ServerPprof             bool          `envconfig:"SERVER_PPROF" default:"true"`
	ServerReadTimeout       time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	ServerReadHeaderTimeout time.Duration `envconfig:"SERVER_READ_HEADER_TIMEOUT" default:"5s"`
	ServerWriteTimeout      time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ServerIdleTimeout       time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"120s"`
	ServerMaxHeaderBytes    int           `envconfig:"SERVER_MAX_HEADER_BYTES" default:"1048576"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// DefaultConfig matches the environment defaults.
func DefaultConfig() Config {
	return Config{
		Service:                 "unknown",
		Export:                  true,
		ExportTimeout:           10 * time.Second,
		TraceSampleRate:         1.0,
		LogLevel:                "info",
		LogFormat:               "json",
		MetricInterval:          60 * time.Second,
		RuntimeMetrics:          true,
		ServerAddr:              ":9090",
		ServerMetrics:           true,
		ServerPprof:             true,
		ServerReadTimeout:       10 * time.Second,
		ServerReadHeaderTimeout: 5 * time.Second,
		ServerWriteTimeout:      30 * time.Second,
		ServerIdleTimeout:       120 * time.Second,
		ServerMaxHeaderBytes:    1 << 20,
		ShutdownTimeout:         30 * time.Second,
	}
}

// Validate implements config.Validator.
func (c Config) Validate() error {
	var errs []error
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		errs = append(errs, fmt.Errorf("trace sample rate %g outside [0, 1]", c.TraceSampleRate))
	}
	if _, err := otexlog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// FromEnv loads configuration from OTEX_* environment variables.
func FromEnv() (Config, error) {
	cfg, err := config.ParseWithPrefix[Config](EnvPrefix)
	if err != nil {
		return Config{}, fmt.Errorf("otex: failed to parse config from env: %w", err)
	}
	return cfg, nil
}

// FromFile loads a YAML file of OTEX_* settings, then the environment, which
// wins where both set a value.
func FromFile(path string) (Config, error) {
	cfg, err := config.Load[Config](EnvPrefix, path)
	if err != nil {
		return Config{}, fmt.Errorf("otex: failed to load config: %w", err)
	}
	return cfg, nil
}

// MustFromEnv is FromEnv that panics on error.
func MustFromEnv() Config {
	cfg, err := FromEnv()
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c Config) logLevel() slog.Level {
	level, _ := otexlog.ParseLevel(c.LogLevel)
	return level
}

func (c Config) serverConfig() server.Config {
	return server.Config{
		Addr:              c.ServerAddr,
		EnableMetrics:     c.ServerMetrics,
		EnablePprof:       c.ServerPprof,
		ReadTimeout:       c.ServerReadTimeout,
		ReadHeaderTimeout: c.ServerReadHeaderTimeout,
		WriteTimeout:      c.ServerWriteTimeout,
		IdleTimeout:       c.ServerIdleTimeout,
		MaxHeaderBytes:    c.ServerMaxHeaderBytes,
		ShutdownTimeout:   c.ShutdownTimeout,
	}
}
