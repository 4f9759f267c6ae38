// Package export hands finished spans to an OpenTelemetry span exporter.
//
// Spans are converted into sdktrace.ReadOnlySpan snapshots when they end, so
// any exporter built for the OpenTelemetry SDK (OTLP, stdout, in-memory) can
// be used unchanged.
package export

import (
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/kzs0/otex/attr"
	"github.com/kzs0/otex/trace"
)

// Snapshot freezes span into the SDK's read-only form. res may be nil.
func Snapshot(span *trace.Span, res *resource.Resource) sdktrace.ReadOnlySpan {
	events := span.Events()
	sdkEvents := make([]sdktrace.Event, len(events))
	for i, ev := range events {
		sdkEvents[i] = sdktrace.Event{
			Name:       ev.Name,
			Time:       ev.Time,
			Attributes: attr.KeyValues(ev.Attrs),
		}
	}

	status := span.Status()

	return tracetest.SpanStub{
		Name:        span.Name(),
		SpanContext: SpanContext(span.SpanContext()),
		Parent:      SpanContext(span.Parent()),
		SpanKind:    SpanKind(span.Kind()),
		StartTime:   span.StartTime(),
		EndTime:     span.EndTime(),
		Attributes:  attr.KeyValues(span.Attrs()),
		Events:      sdkEvents,
		Status: sdktrace.Status{
			Code:        StatusCode(status.Code),
			Description: status.Description,
		},
		Resource:               res,
		InstrumentationLibrary: instrumentation.Library{Name: span.Scope()},
	}.Snapshot()
}

// SpanContext converts an identity into the OpenTelemetry form. Trace state
// is not carried over.
func SpanContext(sc trace.SpanContext) oteltrace.SpanContext {
	if !sc.IsValid() {
		return oteltrace.SpanContext{}
	}
	return oteltrace.NewSpanContext(oteltrace.SpanContextConfig{
		TraceID:    oteltrace.TraceID(sc.TraceID),
		SpanID:     oteltrace.SpanID(sc.SpanID),
		TraceFlags: oteltrace.TraceFlags(sc.Flags),
		Remote:     sc.IsRemote,
	})
}

// SpanKind converts a kind into the OpenTelemetry form.
func SpanKind(k trace.SpanKind) oteltrace.SpanKind {
	switch k {
	case trace.SpanKindServer:
		return oteltrace.SpanKindServer
	case trace.SpanKindClient:
		return oteltrace.SpanKindClient
	case trace.SpanKindProducer:
		return oteltrace.SpanKindProducer
	case trace.SpanKindConsumer:
		return oteltrace.SpanKindConsumer
	default:
		return oteltrace.SpanKindInternal
	}
}

// StatusCode converts a status code into the OpenTelemetry form.
func StatusCode(c trace.StatusCode) codes.Code {
	switch c {
	case trace.StatusOK:
		return codes.Ok
	case trace.StatusError:
		return codes.Error
	default:
		return codes.Unset
	}
}
