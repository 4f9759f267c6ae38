package propagation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kzs0/otex/trace"
)

var errZeroID = errors.New("propagation: traceparent carries an all-zero id")

// TraceparentHeader is the carrier key, lowercase as W3C requires.
const TraceparentHeader = "traceparent"

// TraceContext implements trace.Propagator for the traceparent field.
// tracestate is neither read nor written.
//
// The zero value is ready to use.
type TraceContext struct {
	// Logger, if set, receives a debug record for each rejected traceparent.
	Logger *slog.Logger
}

var _ trace.Propagator = TraceContext{}

// Inject writes traceparent for the span active in ctx. The carrier is left
// untouched when ctx holds no valid identity.
func (p TraceContext) Inject(ctx context.Context, carrier trace.TextMapCarrier) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return
	}
	carrier.Set(TraceparentHeader, Encode(sc))
}

// Extract returns ctx with the decoded remote parent. When traceparent is
// missing, malformed or carries zero IDs the result has any span ctx held
// removed.
func (p TraceContext) Extract(ctx context.Context, carrier trace.TextMapCarrier) context.Context {
	value := carrier.Get(TraceparentHeader)
	if value == "" {
		return trace.ContextWithoutSpan(ctx)
	}

	sc, err := decode(value)
	if err == nil && !sc.IsValid() {
		err = errZeroID
	}
	if err != nil {
		if p.Logger != nil {
			p.Logger.DebugContext(ctx, "propagation: ignoring traceparent",
				slog.String("value", value),
				slog.Any("error", err),
			)
		}
		return trace.ContextWithoutSpan(ctx)
	}
	return trace.ContextWithRemoteSpanContext(ctx, sc)
}

// Fields lists the carrier keys Inject writes.
func (p TraceContext) Fields() []string {
	return []string{TraceparentHeader}
}
