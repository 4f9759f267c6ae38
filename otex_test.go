package otex

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kzs0/otex/attr"
	otexlog "github.com/kzs0/otex/log"
	"github.com/kzs0/otex/trace"
)

type logRecord struct {
	body    string
	traceID string
	attrs   map[string]string
}

type logExporter struct {
	mu       sync.Mutex
	records  []logRecord
	shutdown func() error
}

func (e *logExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		lr := logRecord{body: r.Body().AsString(), traceID: r.TraceID().String(), attrs: map[string]string{}}
		r.WalkAttributes(func(kv otellog.KeyValue) bool {
			lr.attrs[kv.Key] = kv.Value.String()
			return true
		})
		e.records = append(e.records, lr)
	}
	return nil
}

func (e *logExporter) Shutdown(context.Context) error {
	if e.shutdown != nil {
		return e.shutdown()
	}
	return nil
}

func (e *logExporter) ForceFlush(context.Context) error { return nil }

func (e *logExporter) all() []logRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]logRecord(nil), e.records...)
}

// spanExporter is an in-memory exporter with a hookable Shutdown.
type spanExporter struct {
	*tracetest.InMemoryExporter
	shutdown func() error
}

func (e *spanExporter) Shutdown(context.Context) error {
	if e.shutdown != nil {
		return e.shutdown()
	}
	return nil
}

var _ sdktrace.SpanExporter = (*spanExporter)(nil)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Service = "otex-test"
	cfg.Export = false
	cfg.RuntimeMetrics = false
	cfg.LogOutput = &bytes.Buffer{}
	cfg.LogWriter = &bytes.Buffer{}
	return cfg
}

type fixture struct {
	otex  *Otex
	spans *spanExporter
	logs  *logExporter
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		spans: &spanExporter{InMemoryExporter: tracetest.NewInMemoryExporter()},
		logs:  &logExporter{},
	}
	opts = append([]Option{WithSpanExporter(f.spans), WithLogExporter(f.logs)}, opts...)
	b, err := New(context.Background(), testConfig(), opts...)
	require.NoError(t, err)
	f.otex = b
	t.Cleanup(func() { _ = b.Shutdown(context.Background()) })
	return f
}

// install makes f the process-wide bundle for the duration of the test.
func (f *fixture) install(t *testing.T) {
	t.Helper()
	require.True(t, global.CompareAndSwap(nil, f.otex), "another bundle is installed")
	t.Cleanup(func() { global.Store(nil) })
}

func TestAccessorsPanicBeforeInit(t *testing.T) {
	require.Nil(t, global.Load())

	assert.PanicsWithError(t, "otex: not initialized", func() { Tracer() })
	assert.PanicsWithError(t, "otex: not initialized", func() { Logger() })
	assert.PanicsWithError(t, "otex: not initialized", func() { Meter() })
	assert.ErrorIs(t, Shutdown(context.Background()), ErrNotInitialized)

	_, ok := Global()
	assert.False(t, ok)
}

func TestInitTwiceFails(t *testing.T) {
	cfg := testConfig()
	b, err := Init(context.Background(), cfg, WithSpanExporter(tracetest.NewInMemoryExporter()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = b.Shutdown(context.Background())
		global.Store(nil)
	})

	_, err = Init(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
	assert.Panics(t, func() { MustInit(context.Background(), cfg) })

	got, ok := Global()
	require.True(t, ok)
	assert.Same(t, b, got)
	assert.Same(t, b.Tracer(), Tracer())
}

func TestInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.TraceSampleRate = 1.5
	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trace sample rate")
}

func TestNewSpanEventsAndStatus(t *testing.T) {
	f := newFixture(t)
	f.install(t)

	ctx, span := NewSpan(context.Background(), "checkout", trace.SpanKindServer, attr.String("user", "u-1"))
	NewEvent(ctx, "cart.loaded", attr.Int("items", 3))
	NewErrorEvent(ctx, "payment.declined", "card declined")
	NewErrorEvent(ctx, "retry.failed", "second failure")
	span.End()

	spans := f.spans.GetSpans()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "checkout", s.Name)
	require.Len(t, s.Events, 3)
	assert.Equal(t, "cart.loaded", s.Events[0].Name)
	assert.Equal(t, codes.Error, s.Status.Code)
	assert.Equal(t, "card declined", s.Status.Description)
	assert.Equal(t, "otex-test", resourceValue(t, s, "service.name"))
}

func resourceValue(t *testing.T, s tracetest.SpanStub, key string) string {
	t.Helper()
	require.NotNil(t, s.Resource)
	for _, kv := range s.Resource.Attributes() {
		if string(kv.Key) == key {
			return kv.Value.AsString()
		}
	}
	return ""
}

func TestLogsCorrelateWithSpan(t *testing.T) {
	f := newFixture(t)
	f.install(t)

	ctx, span := NewSpan(context.Background(), "op", trace.SpanKindInternal)
	Info(ctx, "inside", attr.String("k", "v"))
	Log(ctx, otexlog.SeverityWarn, "user.login", "login slow")
	Debug(ctx, "below the floor")
	span.End()

	records := f.logs.all()
	require.Len(t, records, 2)
	assert.Equal(t, "inside", records[0].body)
	assert.Equal(t, span.SpanContext().TraceID.String(), records[0].traceID)
	assert.Equal(t, "v", records[0].attrs["k"])
	assert.Equal(t, "user.login", records[1].attrs[otexlog.EventNameKey])
}

func TestMetricsReachPrometheus(t *testing.T) {
	f := newFixture(t)
	f.install(t)

	ctx := context.Background()
	Counter("jobs.done").Add(ctx, 2)
	Histogram("jobs.latency").Record(ctx, 12)
	Gauge("jobs.queued").Set(ctx, 5)
	UpDownCounter("jobs.running").Add(ctx, 1)

	n, err := testutil.GatherAndCount(f.otex.Prometheus(), "jobs_done_total", "jobs_queued", "otex_spans_exported_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestShutdownOrderAndIdempotence(t *testing.T) {
	var mu sync.Mutex
	var order []string
	note := func(name string) func() error {
		return func() error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}

	f := newFixture(t)
	f.logs.shutdown = note("logs")
	f.spans.shutdown = note("traces")

	require.NoError(t, f.otex.Shutdown(context.Background()))
	assert.Equal(t, []string{"logs", "traces"}, order)

	assert.NoError(t, f.otex.Shutdown(context.Background()))
	assert.Len(t, order, 2)
}

func TestShutdownAttemptsEveryPipeline(t *testing.T) {
	f := newFixture(t)
	logErr := errors.New("log backend down")
	spanErr := errors.New("trace backend down")
	f.logs.shutdown = func() error { return logErr }
	f.spans.shutdown = func() error { return spanErr }

	err := f.otex.Shutdown(context.Background())
	assert.ErrorIs(t, err, logErr)
	assert.ErrorIs(t, err, spanErr)
}

func TestSpansAfterShutdownAreDropped(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.otex.Shutdown(context.Background()))

	_, span := f.otex.Tracer().Start(context.Background(), "late")
	assert.False(t, span.IsRecording())
	span.End()
	assert.Empty(t, f.spans.GetSpans())
}

func TestSamplerOption(t *testing.T) {
	f := newFixture(t, WithSampler(trace.NeverSample()))

	_, span := f.otex.Tracer().Start(context.Background(), "unsampled")
	assert.True(t, span.SpanContext().IsValid())
	assert.False(t, span.SpanContext().IsSampled())
	span.End()
	assert.Empty(t, f.spans.GetSpans())
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEX_SERVICE", "billing")
	t.Setenv("OTEX_EXPORT", "false")
	t.Setenv("OTEX_TRACE_SAMPLE_RATE", "0.25")
	t.Setenv("OTEX_HEADERS", "authorization:token")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "billing", cfg.Service)
	assert.False(t, cfg.Export)
	assert.Equal(t, 0.25, cfg.TraceSampleRate)
	assert.Equal(t, map[string]string{"authorization": "token"}, cfg.Headers)
	assert.Equal(t, DefaultConfig().ShutdownTimeout, cfg.ShutdownTimeout)
	assert.Equal(t, ":9090", cfg.ServerAddr)
}

func TestConfigFromEnvRejectsBadRate(t *testing.T) {
	t.Setenv("OTEX_TRACE_SAMPLE_RATE", "2")
	_, err := FromEnv()
	assert.Error(t, err)
	assert.Panics(t, func() { MustFromEnv() })
}
