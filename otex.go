// Package otex wires tracing, telemetry logs and metrics for a process.
//
// Call Init once at startup and Shutdown before exit:
//
//	o, err := otex.Init(ctx, otex.MustFromEnv())
//	if err != nil {
//		return err
//	}
//	defer o.Shutdown(context.Background())
//
//	ctx, span := otex.NewSpan(ctx, "checkout", trace.SpanKindServer)
//	defer span.End()
//	otex.NewEvent(ctx, "cart.loaded", attr.Int("items", 3))
//
// Spans travel in context.Context. Use propagation to carry them across HTTP
// and gRPC, and trace.Bind or trace.Go to hand them to other goroutines.
package otex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/multierr"

	"github.com/kzs0/otex/attr"
	"github.com/kzs0/otex/export"
	"github.com/kzs0/otex/internal"
	otexlog "github.com/kzs0/otex/log"
	"github.com/kzs0/otex/metric"
	otexprom "github.com/kzs0/otex/metric/prometheus"
	"github.com/kzs0/otex/server"
	"github.com/kzs0/otex/trace"
)

// InstrumentationName is the scope name on everything otex emits.
const InstrumentationName = "github.com/kzs0/otex"

var (
	ErrAlreadyInitialized = errors.New("otex: already initialized")
	ErrNotInitialized     = errors.New("otex: not initialized")
	errShutdown           = errors.New("otex: shut down")
)

var global atomic.Pointer[Otex]

// spanPipeline is a span processor that can report its counters.
type spanPipeline interface {
	trace.SpanProcessor
	Stats() export.Stats
}

// Otex owns one process's telemetry pipelines.
type Otex struct {
	config   Config
	resource *resource.Resource
	logger   *slog.Logger
	reporter *internal.Reporter

	tracer *trace.Tracer
	spans  spanPipeline

	logs    *sdklog.LoggerProvider
	emitter *otexlog.Emitter

	meters  *metric.Provider
	metrics *metric.Registry
	prom    *promclient.Registry

	server *server.Server
	closed atomic.Bool
}

// Option adjusts New beyond what Config covers.
type Option func(*options)

type options struct {
	resourceAttrs []attr.Attr
	sampler       trace.Sampler
	spanExporter  sdktrace.SpanExporter
	logExporter   sdklog.Exporter
	batch         export.BatchConfig
}

// WithResourceAttrs adds attributes describing the process. They are also
// attached to every slog record.
func WithResourceAttrs(attrs ...attr.Attr) Option {
	return func(o *options) {
		o.resourceAttrs = append(o.resourceAttrs, attrs...)
	}
}

// WithSampler replaces the parent-based ratio sampler built from
// Config.TraceSampleRate.
func WithSampler(s trace.Sampler) Option {
	return func(o *options) {
		o.sampler = s
	}
}

// WithSpanExporter replaces the exporter Config.Export selects.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) {
		o.spanExporter = exp
	}
}

// WithLogExporter replaces the exporter Config.Export selects.
func WithLogExporter(exp sdklog.Exporter) Option {
	return func(o *options) {
		o.logExporter = exp
	}
}

// WithBatchConfig tunes the span batcher used when exporting.
func WithBatchConfig(cfg export.BatchConfig) Option {
	return func(o *options) {
		o.batch = cfg
	}
}

// New builds the pipelines for cfg without touching process-wide state.
// Most programs want Init.
func New(ctx context.Context, cfg Config, opts ...Option) (*Otex, error) {
	cfg, err := normalize(cfg)
	if err != nil {
		return nil, err
	}
	o := options{batch: export.DefaultBatchConfig()}
	for _, opt := range opts {
		opt(&o)
	}

	b := &Otex{
		config:   cfg,
		resource: export.NewResource(cfg.Service, cfg.Version, attr.NewSet(o.resourceAttrs...)),
	}

	handler := otexlog.NewHandler(&otexlog.HandlerOptions{
		Level:  cfg.logLevel(),
		Output: cfg.LogOutput,
		Format: cfg.LogFormat,
	})
	static := append([]attr.Attr{attr.String("service", cfg.Service)}, o.resourceAttrs...)
	b.logger = slog.New(handler.WithAttrs(otexlog.AttrsToSlog(static)))
	b.reporter = internal.NewReporter(b.logger, 10*time.Second, 3)

	if err := b.setupTracing(ctx, cfg, o); err != nil {
		return nil, err
	}
	if err := b.setupLogs(ctx, cfg, o); err != nil {
		_ = b.tracer.Shutdown(ctx)
		return nil, err
	}
	if err := b.setupMetrics(ctx, cfg); err != nil {
		_ = b.logs.Shutdown(ctx)
		_ = b.tracer.Shutdown(ctx)
		return nil, err
	}

	if cfg.ServerEnabled {
		b.startServer(cfg)
	}
	return b, nil
}

func normalize(cfg Config) (Config, error) {
	d := DefaultConfig()
	if cfg.Service == "" {
		cfg.Service = d.Service
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = d.ShutdownTimeout
	}
	if cfg.ExportTimeout == 0 {
		cfg.ExportTimeout = d.ExportTimeout
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("otex: invalid config: %w", err)
	}
	return cfg, nil
}

func (b *Otex) setupTracing(ctx context.Context, cfg Config, o options) error {
	exp := o.spanExporter
	if exp == nil {
		var err error
		exp, err = export.NewSpanExporter(ctx, export.Config{
			Remote:   cfg.Export,
			Endpoint: cfg.Endpoint,
			Insecure: cfg.Insecure,
			Headers:  cfg.Headers,
			Timeout:  cfg.ExportTimeout,
			Writer:   cfg.LogWriter,
		})
		if err != nil {
			return fmt.Errorf("otex: %w", err)
		}
	}

	if cfg.Export {
		batch := o.batch
		batch.ExportTimeout = cfg.ExportTimeout
		b.spans = export.NewBatchProcessor(exp, b.resource, b.reporter, batch)
	} else {
		b.spans = export.NewSimpleProcessor(exp, b.resource, b.reporter)
	}

	sampler := o.sampler
	if sampler == nil {
		sampler = trace.NewParentBasedSampler(trace.NewRatioSampler(cfg.TraceSampleRate))
	}
	b.tracer = trace.NewTracer(trace.TracerConfig{
		Name:      InstrumentationName,
		Sampler:   sampler,
		Processor: b.spans,
	})
	return nil
}

func (b *Otex) setupLogs(ctx context.Context, cfg Config, o options) error {
	logs, err := otexlog.NewProvider(ctx, otexlog.ProviderConfig{
		Remote:   cfg.Export,
		Endpoint: cfg.Endpoint,
		Insecure: cfg.Insecure,
		Headers:  cfg.Headers,
		Timeout:  cfg.ExportTimeout,
		Writer:   cfg.LogWriter,
		Exporter: o.logExporter,
	}, b.resource)
	if err != nil {
		return fmt.Errorf("otex: %w", err)
	}
	b.logs = logs

	// Locally the stdout exporter already prints every record.
	var mirror *slog.Logger
	if cfg.Export {
		mirror = b.logger
	}
	b.emitter = otexlog.NewEmitter(logs.Logger(InstrumentationName), mirror, severityFor(cfg.logLevel()))
	return nil
}

func (b *Otex) setupMetrics(ctx context.Context, cfg Config) error {
	var err error
	b.prom, err = otexprom.NewRegistry(otexprom.NewPipelineCollector(b.spans.Stats))
	if err != nil {
		return fmt.Errorf("otex: %w", err)
	}
	reader, err := otexprom.NewReader(b.prom)
	if err != nil {
		return fmt.Errorf("otex: %w", err)
	}

	meters, err := metric.NewProvider(ctx, metric.ProviderConfig{
		Remote:   cfg.Export,
		Endpoint: cfg.Endpoint,
		Insecure: cfg.Insecure,
		Headers:  cfg.Headers,
		Timeout:  cfg.ExportTimeout,
		Interval: cfg.MetricInterval,
		Writer:   cfg.LogWriter,
		Readers:  []sdkmetric.Reader{reader},
	}, b.resource)
	if err != nil {
		return fmt.Errorf("otex: %w", err)
	}
	b.meters = meters
	b.metrics = metric.NewRegistry(meters.Meter(InstrumentationName), cfg.MetricPrefix, b.reporter)

	if cfg.RuntimeMetrics {
		if err := metric.StartRuntime(meters, 0); err != nil {
			b.reporter.Report(ctx, "otex: runtime metrics disabled", err)
		}
	}
	return nil
}

func (b *Otex) startServer(cfg Config) {
	b.server = server.New(b.prom, cfg.serverConfig())
	b.server.AddCheck("otex", func(context.Context) error {
		if b.closed.Load() {
			return errShutdown
		}
		return nil
	})
	go func() {
		if err := b.server.ListenAndServe(); err != nil {
			b.logger.Error("otex: observability server stopped", slog.String("error", err.Error()))
		}
	}()
}

// severityFor maps the configured slog level onto the log record floor.
func severityFor(level slog.Level) otexlog.Severity {
	switch {
	case level >= slog.LevelError:
		return otexlog.SeverityError
	case level >= slog.LevelWarn:
		return otexlog.SeverityWarn
	case level >= slog.LevelInfo:
		return otexlog.SeverityInfo
	default:
		return otexlog.SeverityDebug
	}
}

// Init builds the pipelines and installs them process-wide. A second call
// returns ErrAlreadyInitialized and leaves the installed pipelines alone.
func Init(ctx context.Context, cfg Config, opts ...Option) (*Otex, error) {
	if global.Load() != nil {
		return nil, ErrAlreadyInitialized
	}
	b, err := New(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	if !global.CompareAndSwap(nil, b) {
		_ = b.Shutdown(ctx)
		return nil, ErrAlreadyInitialized
	}
	return b, nil
}

// MustInit is Init that panics on error.
func MustInit(ctx context.Context, cfg Config, opts ...Option) *Otex {
	b, err := Init(ctx, cfg, opts...)
	if err != nil {
		panic(err)
	}
	return b
}

// Global returns the installed pipelines, if any.
func Global() (*Otex, bool) {
	b := global.Load()
	return b, b != nil
}

func mustGlobal() *Otex {
	b := global.Load()
	if b == nil {
		panic(ErrNotInitialized)
	}
	return b
}

// Shutdown shuts down the installed pipelines.
func Shutdown(ctx context.Context) error {
	b := global.Load()
	if b == nil {
		return ErrNotInitialized
	}
	return b.Shutdown(ctx)
}

// Config returns the configuration after defaults were applied.
func (b *Otex) Config() Config { return b.config }

// Resource returns the resource attached to every exported span, record and
// metric.
func (b *Otex) Resource() *resource.Resource { return b.resource }

// Slog returns the process logger. It stamps trace_id and span_id from the
// context.
func (b *Otex) Slog() *slog.Logger { return b.logger }

// Tracer returns the tracer feeding the span pipeline.
func (b *Otex) Tracer() *trace.Tracer { return b.tracer }

// Logger returns the telemetry log emitter.
func (b *Otex) Logger() *otexlog.Emitter { return b.emitter }

// Meter returns the metric registry.
func (b *Otex) Meter() *metric.Registry { return b.metrics }

// Prometheus returns the registry served on /metrics.
func (b *Otex) Prometheus() *promclient.Registry { return b.prom }

// Server returns the observability server, or nil when it is disabled.
func (b *Otex) Server() *server.Server { return b.server }

// SpanStats returns the span pipeline counters.
func (b *Otex) SpanStats() export.Stats { return b.spans.Stats() }

// LoggerProvider returns the SDK logger provider, for bridges that emit
// through it directly.
func (b *Otex) LoggerProvider() *sdklog.LoggerProvider { return b.logs }

// Shutdown stops the observability server, then flushes and closes the log,
// metric and span pipelines in that order. Each step runs even if an earlier
// one failed; failures are logged and returned together. Open spans are not
// ended. Calls after the first return nil.
func (b *Otex) Shutdown(ctx context.Context) error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok && b.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.ShutdownTimeout)
		defer cancel()
	}

	var errs error
	step := func(name string, fn func(context.Context) error) {
		if err := fn(ctx); err != nil {
			b.reporter.Report(ctx, "otex: shutdown failed", err, slog.String("pipeline", name))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if b.server != nil {
		step("server", b.server.Shutdown)
	}
	step("logs", b.logs.Shutdown)
	step("metrics", b.meters.Shutdown)
	step("traces", b.tracer.Shutdown)
	return errs
}
