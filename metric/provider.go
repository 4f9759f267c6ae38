package metric

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// ProviderConfig configures NewProvider.
type ProviderConfig struct {
	// Remote pushes metrics over OTLP/HTTP every Interval. When false they are
	// written to Writer every Interval and once more at shutdown.
	Remote   bool
	Endpoint string
	Insecure bool
	Headers  map[string]string
	Timeout  time.Duration
	Interval time.Duration
	// Writer defaults to os.Stdout.
	Writer io.Writer
	// Readers are attached next to the push reader, e.g. a Prometheus reader.
	Readers []metric.Reader
}

// Provider is the meter provider behind a Registry.
type Provider struct {
	*metric.MeterProvider
}

// NewProvider builds the meter provider for cfg.
func NewProvider(ctx context.Context, cfg ProviderConfig, res *resource.Resource) (*Provider, error) {
	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var readerOpts []metric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, metric.WithInterval(cfg.Interval))
	}
	opts := []metric.Option{metric.WithReader(metric.NewPeriodicReader(exp, readerOpts...))}
	for _, r := range cfg.Readers {
		opts = append(opts, metric.WithReader(r))
	}
	if res != nil {
		opts = append(opts, metric.WithResource(res))
	}
	return &Provider{MeterProvider: metric.NewMeterProvider(opts...)}, nil
}

func newExporter(ctx context.Context, cfg ProviderConfig) (metric.Exporter, error) {
	if !cfg.Remote {
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("metric: stdout exporter: %w", err)
		}
		return exp, nil
	}

	var expOpts []otlpmetrichttp.Option
	if cfg.Endpoint != "" {
		expOpts = append(expOpts, otlpmetrichttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		expOpts = append(expOpts, otlpmetrichttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		expOpts = append(expOpts, otlpmetrichttp.WithHeaders(cfg.Headers))
	}
	if cfg.Timeout > 0 {
		expOpts = append(expOpts, otlpmetrichttp.WithTimeout(cfg.Timeout))
	}
	exp, err := otlpmetrichttp.New(ctx, expOpts...)
	if err != nil {
		return nil, fmt.Errorf("metric: otlp exporter: %w", err)
	}
	return exp, nil
}
