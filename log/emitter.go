package log

import (
	"context"
	"log/slog"
	"strings"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/kzs0/otex/attr"
	"github.com/kzs0/otex/export"
	"github.com/kzs0/otex/trace"
)

// EventNameKey carries a record's event name as an attribute.
const EventNameKey = "event.name"

// Severity follows the OpenTelemetry severity numbers.
type Severity int

const (
	SeverityTrace Severity = 1
	SeverityDebug Severity = 5
	SeverityInfo  Severity = 9
	SeverityWarn  Severity = 13
	SeverityError Severity = 17
	SeverityFatal Severity = 21
)

// String returns the severity text, e.g. "INFO".
func (s Severity) String() string {
	switch {
	case s >= SeverityFatal:
		return "FATAL"
	case s >= SeverityError:
		return "ERROR"
	case s >= SeverityWarn:
		return "WARN"
	case s >= SeverityInfo:
		return "INFO"
	case s >= SeverityDebug:
		return "DEBUG"
	default:
		return "TRACE"
	}
}

// Level maps s onto slog levels. Trace sits below Debug, Fatal above Error.
func (s Severity) Level() slog.Level {
	switch {
	case s >= SeverityFatal:
		return slog.LevelError + 4
	case s >= SeverityError:
		return slog.LevelError
	case s >= SeverityWarn:
		return slog.LevelWarn
	case s >= SeverityInfo:
		return slog.LevelInfo
	case s >= SeverityDebug:
		return slog.LevelDebug
	default:
		return slog.LevelDebug - 4
	}
}

// ParseSeverity accepts the names String returns, in any case.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return SeverityTrace, true
	case "DEBUG":
		return SeverityDebug, true
	case "INFO":
		return SeverityInfo, true
	case "WARN", "WARNING":
		return SeverityWarn, true
	case "ERROR":
		return SeverityError, true
	case "FATAL":
		return SeverityFatal, true
	}
	return 0, false
}

// Record is one telemetry log record.
type Record struct {
	Severity  Severity
	EventName string
	Body      string
	Attrs     []attr.Attr
	// Time defaults to now.
	Time time.Time
}

// Emitter sends records to an OpenTelemetry logger and mirrors them to slog.
// Either side may be nil. A nil *Emitter discards everything.
type Emitter struct {
	logger otellog.Logger
	mirror *slog.Logger
	min    Severity
}

// NewEmitter creates an emitter that drops records below min.
func NewEmitter(logger otellog.Logger, mirror *slog.Logger, min Severity) *Emitter {
	return &Emitter{logger: logger, mirror: mirror, min: min}
}

// Enabled reports whether a record of severity s would be emitted.
func (e *Emitter) Enabled(s Severity) bool {
	return e != nil && s >= e.min
}

// Emit sends r. The span active in ctx, if any, is recorded on it.
func (e *Emitter) Emit(ctx context.Context, r Record) {
	if !e.Enabled(r.Severity) {
		return
	}
	if r.Time.IsZero() {
		r.Time = time.Now()
	}

	if e.logger != nil {
		e.logger.Emit(otelContext(ctx), e.otelRecord(r))
	}
	if e.mirror != nil {
		attrs := make([]slog.Attr, 0, len(r.Attrs)+1)
		if r.EventName != "" {
			attrs = append(attrs, slog.String(EventNameKey, r.EventName))
		}
		attrs = append(attrs, AttrsToSlog(r.Attrs)...)
		e.mirror.LogAttrs(ctx, r.Severity.Level(), r.Body, attrs...)
	}
}

// Trace emits msg at trace severity.
func (e *Emitter) Trace(ctx context.Context, msg string, attrs ...attr.Attr) {
	e.Emit(ctx, Record{Severity: SeverityTrace, Body: msg, Attrs: attrs})
}

// Debug emits msg at debug severity.
func (e *Emitter) Debug(ctx context.Context, msg string, attrs ...attr.Attr) {
	e.Emit(ctx, Record{Severity: SeverityDebug, Body: msg, Attrs: attrs})
}

// Info emits msg at info severity.
func (e *Emitter) Info(ctx context.Context, msg string, attrs ...attr.Attr) {
	e.Emit(ctx, Record{Severity: SeverityInfo, Body: msg, Attrs: attrs})
}

// Warn emits msg at warn severity.
func (e *Emitter) Warn(ctx context.Context, msg string, attrs ...attr.Attr) {
	e.Emit(ctx, Record{Severity: SeverityWarn, Body: msg, Attrs: attrs})
}

// Error emits msg at error severity.
func (e *Emitter) Error(ctx context.Context, msg string, attrs ...attr.Attr) {
	e.Emit(ctx, Record{Severity: SeverityError, Body: msg, Attrs: attrs})
}

func (e *Emitter) otelRecord(r Record) otellog.Record {
	var rec otellog.Record
	rec.SetTimestamp(r.Time)
	rec.SetObservedTimestamp(time.Now())
	rec.SetSeverity(otellog.Severity(r.Severity))
	rec.SetSeverityText(r.Severity.String())
	rec.SetBody(otellog.StringValue(r.Body))

	kvs := make([]otellog.KeyValue, 0, len(r.Attrs)+1)
	if r.EventName != "" {
		kvs = append(kvs, otellog.String(EventNameKey, r.EventName))
	}
	for _, a := range r.Attrs {
		kvs = append(kvs, a.LogKeyValue())
	}
	rec.AddAttributes(kvs...)
	return rec
}

// otelContext exposes the active span to the SDK, which reads trace
// correlation from the OpenTelemetry span context.
func otelContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ctx
	}
	return oteltrace.ContextWithSpanContext(ctx, export.SpanContext(sc))
}
