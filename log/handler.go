// Package log wires structured logging to the active span.
//
// Handler is an slog.Handler that stamps trace_id and span_id on every record
// logged with a span-carrying context. Emitter sends telemetry log records to
// the OpenTelemetry log pipeline and mirrors them to slog.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/kzs0/otex/attr"
	"github.com/kzs0/otex/trace"
)

const (
	TraceIDKey = "trace_id"
	SpanIDKey  = "span_id"
)

// Handler decorates another slog.Handler with trace correlation.
type Handler struct {
	inner slog.Handler
}

// HandlerOptions configures NewHandler.
type HandlerOptions struct {
	Level     slog.Leveler
	AddSource bool
	// Output defaults to os.Stderr.
	Output io.Writer
	// Format is "json" (default) or "text".
	Format string
}

// NewHandler builds a JSON or text handler and wraps it.
func NewHandler(opts *HandlerOptions) *Handler {
	if opts == nil {
		opts = &HandlerOptions{}
	}
	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	ho := &slog.HandlerOptions{Level: opts.Level, AddSource: opts.AddSource}
	if strings.EqualFold(opts.Format, "text") {
		return Wrap(slog.NewTextHandler(output, ho))
	}
	return Wrap(slog.NewJSONHandler(output, ho))
}

// Wrap adds trace correlation to an existing handler.
func Wrap(inner slog.Handler) *Handler {
	if h, ok := inner.(*Handler); ok {
		return h
	}
	return &Handler{inner: inner}
}

// Enabled reports whether the wrapped handler handles level.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle adds trace_id and span_id when ctx carries a valid span.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String(TraceIDKey, sc.TraceID.String()),
			slog.String(SpanIDKey, sc.SpanID.String()),
		)
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs returns a correlating handler over the wrapped one with attrs.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{inner: h.inner.WithAttrs(attrs)}
}

// WithGroup returns a correlating handler over the wrapped one in group name.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name)}
}

// ParseLevel accepts debug, info, warn/warning and error in any case.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log: unknown level %q", s)
	}
}

// AttrToSlog converts one attribute, keeping its native kind.
func AttrToSlog(a attr.Attr) slog.Attr {
	switch a.Value.Kind() {
	case attr.KindString:
		return slog.String(a.Key, a.Value.AsString())
	case attr.KindInt64:
		return slog.Int64(a.Key, a.Value.AsInt64())
	case attr.KindUint64:
		return slog.Uint64(a.Key, a.Value.AsUint64())
	case attr.KindFloat64:
		return slog.Float64(a.Key, a.Value.AsFloat64())
	case attr.KindBool:
		return slog.Bool(a.Key, a.Value.AsBool())
	case attr.KindDuration:
		return slog.Duration(a.Key, a.Value.AsDuration())
	case attr.KindTime:
		return slog.Time(a.Key, a.Value.AsTime())
	default:
		return slog.Any(a.Key, a.Value.AsAny())
	}
}

// AttrsToSlog converts a list, keeping order.
func AttrsToSlog(attrs []attr.Attr) []slog.Attr {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = AttrToSlog(a)
	}
	return out
}
