package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
)

// ProviderConfig selects where telemetry log records go.
type ProviderConfig struct {
	// Remote selects OTLP over HTTP with batching. When false records are
	// written to Writer as they are emitted.
	Remote   bool
	Endpoint string
	Insecure bool
	Headers  map[string]string
	Timeout  time.Duration

	// Writer defaults to os.Stdout.
	Writer io.Writer

	// Exporter replaces the exporter Remote would select.
	Exporter sdklog.Exporter
}

// NewProvider builds a logger provider for cfg.
func NewProvider(ctx context.Context, cfg ProviderConfig, res *resource.Resource) (*sdklog.LoggerProvider, error) {
	exp := cfg.Exporter
	if exp == nil {
		var err error
		if exp, err = NewExporter(ctx, cfg); err != nil {
			return nil, err
		}
	}

	var proc sdklog.Processor
	if cfg.Remote {
		proc = sdklog.NewBatchProcessor(exp)
	} else {
		proc = sdklog.NewSimpleProcessor(exp)
	}

	opts := []sdklog.LoggerProviderOption{sdklog.WithProcessor(proc)}
	if res != nil {
		opts = append(opts, sdklog.WithResource(res))
	}
	return sdklog.NewLoggerProvider(opts...), nil
}

// NewExporter builds the log exporter cfg asks for.
func NewExporter(ctx context.Context, cfg ProviderConfig) (sdklog.Exporter, error) {
	if !cfg.Remote {
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		exp, err := stdoutlog.New(stdoutlog.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("log: stdout exporter: %w", err)
		}
		return exp, nil
	}

	var opts []otlploghttp.Option
	if cfg.Endpoint != "" {
		opts = append(opts, otlploghttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlploghttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlploghttp.WithHeaders(cfg.Headers))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, otlploghttp.WithTimeout(cfg.Timeout))
	}

	exp, err := otlploghttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("log: otlp exporter: %w", err)
	}
	return exp, nil
}
