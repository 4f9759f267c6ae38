package trace

import (
	"context"

	"github.com/kzs0/otex/attr"
)

// NewEvent appends an event to the local span active in ctx. It does nothing
// when ctx has no local span, only a remote parent, or the span has ended.
func NewEvent(ctx context.Context, name string, attrs ...attr.Attr) {
	if span := SpanFromContext(ctx); span != nil {
		span.AddEvent(name, attrs...)
	}
}

// NewErrorEvent is NewEvent followed by marking the span failed with
// description. An earlier error status is kept.
func NewErrorEvent(ctx context.Context, name, description string, attrs ...attr.Attr) {
	span := SpanFromContext(ctx)
	if span == nil {
		return
	}
	span.AddEvent(name, attrs...)
	span.SetStatus(StatusError, description)
}

// RecordError records err on the local span active in ctx.
func RecordError(ctx context.Context, err error, attrs ...attr.Attr) {
	if span := SpanFromContext(ctx); span != nil {
		span.RecordError(err, attrs...)
	}
}

// SetAttr adds attributes to the local span active in ctx.
func SetAttr(ctx context.Context, attrs ...attr.Attr) {
	if span := SpanFromContext(ctx); span != nil {
		span.SetAttr(attrs...)
	}
}
