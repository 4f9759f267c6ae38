package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/kzs0/otex/attr"
)

// Config selects and configures a span exporter.
type Config struct {
	// Remote selects OTLP over HTTP. When false spans are written to Writer.
	Remote bool
	// Endpoint is the collector host:port. Empty uses the SDK default, which
	// honours OTEL_EXPORTER_OTLP_* variables.
	Endpoint string
	Insecure bool
	Headers  map[string]string
	Timeout  time.Duration

	// Writer receives local output. Defaults to os.Stdout.
	Writer io.Writer
	// Pretty indents local output.
	Pretty bool
}

// NewSpanExporter builds the exporter cfg asks for.
func NewSpanExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	if !cfg.Remote {
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		opts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
		if cfg.Pretty {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		exp, err := stdouttrace.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("export: stdout span exporter: %w", err)
		}
		return exp, nil
	}

	var opts []otlptracehttp.Option
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, otlptracehttp.WithTimeout(cfg.Timeout))
	}

	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("export: otlp span exporter: %w", err)
	}
	return exp, nil
}

// NewResource describes the emitting process. Every process gets a random
// service.instance.id.
func NewResource(service, version string, extra attr.Set) *resource.Resource {
	kvs := []attribute.KeyValue{
		semconv.ServiceName(service),
		attribute.String("service.instance.id", uuid.NewString()),
	}
	if version != "" {
		kvs = append(kvs, semconv.ServiceVersion(version))
	}
	kvs = append(kvs, attr.KeyValues(extra.Attrs())...)
	return resource.NewWithAttributes(semconv.SchemaURL, kvs...)
}
