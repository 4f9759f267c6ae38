package otex

import (
	"context"

	"github.com/kzs0/otex/attr"
	otexlog "github.com/kzs0/otex/log"
	"github.com/kzs0/otex/metric"
	"github.com/kzs0/otex/trace"
)

// Tracer returns the installed tracer. It panics before Init.
func Tracer() *trace.Tracer {
	return mustGlobal().tracer
}

// Meter returns the installed metric registry. It panics before Init.
func Meter() *metric.Registry {
	return mustGlobal().metrics
}

// Logger returns the installed telemetry log emitter. It panics before Init.
func Logger() *otexlog.Emitter {
	return mustGlobal().emitter
}

// NewSpan starts a span as a child of whatever ctx carries, local or remote,
// and returns a context holding it. ctx itself is unchanged.
func NewSpan(ctx context.Context, name string, kind trace.SpanKind, attrs ...attr.Attr) (context.Context, *trace.Span) {
	return Tracer().Start(ctx, name, trace.WithSpanKind(kind), trace.WithAttrs(attrs...))
}

// NewEvent records an event on the span in ctx. Without a local live span it
// does nothing.
func NewEvent(ctx context.Context, name string, attrs ...attr.Attr) {
	trace.NewEvent(ctx, name, attrs...)
}

// NewErrorEvent records an event and marks the span in ctx failed. The first
// error description sticks.
func NewErrorEvent(ctx context.Context, name, description string, attrs ...attr.Attr) {
	trace.NewErrorEvent(ctx, name, description, attrs...)
}

// Log emits a telemetry log record correlated with the span in ctx.
// eventName may be empty.
func Log(ctx context.Context, severity otexlog.Severity, eventName, body string, attrs ...attr.Attr) {
	Logger().Emit(ctx, otexlog.Record{
		Severity:  severity,
		EventName: eventName,
		Body:      body,
		Attrs:     attrs,
	})
}

// Debug emits a telemetry log record at debug severity.
func Debug(ctx context.Context, msg string, attrs ...attr.Attr) {
	Logger().Debug(ctx, msg, attrs...)
}

// Info emits a telemetry log record at info severity.
func Info(ctx context.Context, msg string, attrs ...attr.Attr) {
	Logger().Info(ctx, msg, attrs...)
}

// Warn emits a telemetry log record at warn severity.
func Warn(ctx context.Context, msg string, attrs ...attr.Attr) {
	Logger().Warn(ctx, msg, attrs...)
}

// Error emits a telemetry log record at error severity.
func Error(ctx context.Context, msg string, attrs ...attr.Attr) {
	Logger().Error(ctx, msg, attrs...)
}

// Counter returns the named counter, creating it on first use.
func Counter(name string, opts ...metric.InstrumentOption) *metric.Counter {
	return Meter().Counter(name, opts...)
}

// UpDownCounter returns the named up/down counter, creating it on first use.
func UpDownCounter(name string, opts ...metric.InstrumentOption) *metric.UpDownCounter {
	return Meter().UpDownCounter(name, opts...)
}

// Histogram returns the named histogram, creating it on first use. Buckets
// given after the first call are ignored.
func Histogram(name string, opts ...metric.InstrumentOption) *metric.Histogram {
	return Meter().Histogram(name, opts...)
}

// Gauge returns the named gauge, creating it on first use.
func Gauge(name string, opts ...metric.InstrumentOption) *metric.Gauge {
	return Meter().Gauge(name, opts...)
}
