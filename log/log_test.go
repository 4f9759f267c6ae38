package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/kzs0/otex/attr"
	"github.com/kzs0/otex/trace"
)

type captured struct {
	body     string
	severity otellog.Severity
	attrs    map[string]string
	traceID  string
	spanID   string
}

type memoryExporter struct {
	mu      sync.Mutex
	records []captured
}

func (m *memoryExporter) Export(_ context.Context, records []sdklog.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		c := captured{
			body:     r.Body().AsString(),
			severity: r.Severity(),
			attrs:    map[string]string{},
			traceID:  r.TraceID().String(),
			spanID:   r.SpanID().String(),
		}
		r.WalkAttributes(func(kv otellog.KeyValue) bool {
			c.attrs[kv.Key] = kv.Value.String()
			return true
		})
		m.records = append(m.records, c)
	}
	return nil
}

func (m *memoryExporter) Shutdown(context.Context) error   { return nil }
func (m *memoryExporter) ForceFlush(context.Context) error { return nil }

func (m *memoryExporter) all() []captured {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]captured(nil), m.records...)
}

func newTestEmitter(t *testing.T, mirror *slog.Logger, min Severity) (*Emitter, *memoryExporter) {
	t.Helper()
	exp := &memoryExporter{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exp)))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return NewEmitter(provider.Logger("test"), mirror, min), exp
}

func TestHandlerInjectsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&HandlerOptions{Output: &buf}))

	tracer := trace.NewTracer(trace.TracerConfig{})
	ctx, span := tracer.Start(context.Background(), "op")

	logger.InfoContext(ctx, "hello", slog.String("k", "v"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, span.SpanContext().TraceID.String(), line[TraceIDKey])
	assert.Equal(t, span.SpanContext().SpanID.String(), line[SpanIDKey])
}

func TestHandlerWithoutSpan(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&HandlerOptions{Output: &buf, Format: "text"}))
	logger.With("svc", "a").WithGroup("g").Info("plain", "x", 1)

	assert.NotContains(t, buf.String(), TraceIDKey)
	assert.Contains(t, buf.String(), "svc=a")
	assert.Contains(t, buf.String(), "g.x=1")
}

func TestHandlerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&HandlerOptions{Output: &buf, Level: slog.LevelWarn}))
	logger.Info("dropped")
	assert.Empty(t, buf.String())
}

func TestWrapIsIdempotent(t *testing.T) {
	h := NewHandler(nil)
	assert.Same(t, h, Wrap(h))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"Error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, "WARN", SeverityWarn.String())
	assert.Equal(t, slog.LevelError, SeverityError.Level())
	assert.Less(t, SeverityTrace.Level(), slog.LevelDebug)
	assert.Greater(t, SeverityFatal.Level(), slog.LevelError)

	s, ok := ParseSeverity("fatal")
	assert.True(t, ok)
	assert.Equal(t, SeverityFatal, s)
	_, ok = ParseSeverity("nope")
	assert.False(t, ok)
}

func TestEmitterSendsToOTelAndMirror(t *testing.T) {
	var buf bytes.Buffer
	mirror := slog.New(NewHandler(&HandlerOptions{Output: &buf, Level: slog.LevelDebug}))
	em, exp := newTestEmitter(t, mirror, SeverityDebug)

	tracer := trace.NewTracer(trace.TracerConfig{})
	ctx, span := tracer.Start(context.Background(), "op")

	em.Emit(ctx, Record{
		Severity:  SeverityWarn,
		EventName: "cache.evicted",
		Body:      "evicted entries",
		Attrs:     []attr.Attr{attr.Int("count", 3)},
	})

	records := exp.all()
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, "evicted entries", r.body)
	assert.Equal(t, otellog.SeverityWarn, r.severity)
	assert.Equal(t, "cache.evicted", r.attrs[EventNameKey])
	assert.Equal(t, "3", r.attrs["count"])
	assert.Equal(t, span.SpanContext().TraceID.String(), r.traceID)
	assert.Equal(t, span.SpanContext().SpanID.String(), r.spanID)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "cache.evicted", line[EventNameKey])
	assert.Equal(t, float64(3), line["count"])
}

func TestEmitterMinimumSeverity(t *testing.T) {
	em, exp := newTestEmitter(t, nil, SeverityInfo)

	em.Debug(context.Background(), "quiet")
	em.Trace(context.Background(), "quieter")
	em.Info(context.Background(), "loud")
	em.Warn(context.Background(), "louder")
	em.Error(context.Background(), "loudest")

	assert.Len(t, exp.all(), 3)
	assert.False(t, em.Enabled(SeverityDebug))
}

func TestNilEmitter(t *testing.T) {
	var em *Emitter
	assert.NotPanics(t, func() { em.Info(context.Background(), "nothing") })
}

func TestNewProviderLocal(t *testing.T) {
	var buf bytes.Buffer
	provider, err := NewProvider(context.Background(), ProviderConfig{Writer: &buf}, nil)
	require.NoError(t, err)

	em := NewEmitter(provider.Logger("test"), nil, SeverityTrace)
	em.Info(context.Background(), "to stdout")
	require.NoError(t, provider.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "to stdout")
}

func TestNewProviderExporterOverride(t *testing.T) {
	exp := &memoryExporter{}
	provider, err := NewProvider(context.Background(), ProviderConfig{Remote: true, Exporter: exp}, nil)
	require.NoError(t, err)

	NewEmitter(provider.Logger("test"), nil, SeverityTrace).Warn(context.Background(), "batched")
	require.NoError(t, provider.Shutdown(context.Background()))

	records := exp.all()
	require.Len(t, records, 1)
	assert.Equal(t, "batched", records[0].body)
}
