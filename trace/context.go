package trace

import (
	"context"
)

type contextKey int

const spanKey contextKey = iota

// entry is what a context carries under spanKey. Exactly one of span and
// remote is meaningful; a zero entry marks a context explicitly cleared of
// any span.
type entry struct {
	span   *Span
	remote SpanContext
}

// ContextWithSpan returns a child of ctx whose active span is span.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	if span == nil {
		return ContextWithoutSpan(ctx)
	}
	return context.WithValue(ctx, spanKey, entry{span: span})
}

// ContextWithRemoteSpanContext returns a child of ctx whose parent identity is
// sc, a span living in another process. sc is marked remote.
func ContextWithRemoteSpanContext(ctx context.Context, sc SpanContext) context.Context {
	sc.IsRemote = true
	return context.WithValue(ctx, spanKey, entry{remote: sc})
}

// ContextWithoutSpan returns a child of ctx that carries no span, hiding any
// span ctx itself carries. Spans started from it begin a new trace.
func ContextWithoutSpan(ctx context.Context) context.Context {
	return context.WithValue(ctx, spanKey, entry{})
}

// SpanFromContext returns the local span active in ctx, or nil when ctx holds
// no span or only a remote parent.
func SpanFromContext(ctx context.Context) *Span {
	if ctx == nil {
		return nil
	}
	e, _ := ctx.Value(spanKey).(entry)
	return e.span
}

// SpanContextFromContext returns the identity of the span active in ctx,
// local or remote. The zero SpanContext is returned when there is none.
func SpanContextFromContext(ctx context.Context) SpanContext {
	if ctx == nil {
		return SpanContext{}
	}
	e, ok := ctx.Value(spanKey).(entry)
	if !ok {
		return SpanContext{}
	}
	if e.span != nil {
		return e.span.SpanContext()
	}
	return e.remote
}
