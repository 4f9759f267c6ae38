// Package trace models spans and their identities, and carries them through
// context.Context.
//
// A context holds at most one active span: either a local *Span or the
// SpanContext of a remote parent decoded from an inbound request. Starting a
// span from a context never mutates it; the child lives in the returned
// context and the parent stays reachable through it.
package trace

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/kzs0/otex/attr"
	"github.com/kzs0/otex/internal"
)

// SpanProcessor receives spans as they end. Implementations must not block
// OnEnd on network I/O.
type SpanProcessor interface {
	OnEnd(span *Span)
	ForceFlush(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Tracer creates spans. A nil *Tracer is usable and produces non-recording
// spans that still carry a valid identity.
type Tracer struct {
	name      string
	sampler   Sampler
	processor SpanProcessor
	shutdown  atomic.Bool
}

// TracerConfig configures a Tracer.
type TracerConfig struct {
	// Name identifies the instrumentation scope on exported spans.
	Name      string
	Sampler   Sampler
	Processor SpanProcessor
}

// NewTracer creates a tracer. A nil Sampler samples everything; a nil
// Processor discards finished spans.
func NewTracer(cfg TracerConfig) *Tracer {
	sampler := cfg.Sampler
	if sampler == nil {
		sampler = AlwaysSample()
	}
	return &Tracer{
		name:      cfg.Name,
		sampler:   sampler,
		processor: cfg.Processor,
	}
}

// Name returns the instrumentation scope name.
func (t *Tracer) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}

// StartOption configures span creation.
type StartOption func(*startConfig)

type startConfig struct {
	kind      SpanKind
	attrs     []attr.Attr
	parent    *SpanContext
	newRoot   bool
	timestamp time.Time
}

// WithSpanKind sets the span kind. The default is SpanKindInternal.
func WithSpanKind(kind SpanKind) StartOption {
	return func(c *startConfig) {
		c.kind = kind
	}
}

// WithAttrs adds initial attributes. It may be given more than once.
func WithAttrs(attrs ...attr.Attr) StartOption {
	return func(c *startConfig) {
		c.attrs = append(c.attrs, attrs...)
	}
}

// WithParent uses sc as the parent instead of whatever the context holds.
func WithParent(sc SpanContext) StartOption {
	return func(c *startConfig) {
		c.parent = &sc
	}
}

// WithNewRoot ignores any parent and starts a new trace.
func WithNewRoot() StartOption {
	return func(c *startConfig) {
		c.newRoot = true
	}
}

// WithTimestamp overrides the start time.
func WithTimestamp(ts time.Time) StartOption {
	return func(c *startConfig) {
		c.timestamp = ts
	}
}

// Start creates a span named name as a child of the span active in ctx and
// returns a new context in which it is active.
//
// If ctx holds a valid identity, local or remote, the new span joins its
// trace. Otherwise a fresh trace ID is minted. The span ID is always fresh.
func (t *Tracer) Start(ctx context.Context, name string, opts ...StartOption) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	var cfg startConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var parent SpanContext
	switch {
	case cfg.newRoot:
	case cfg.parent != nil:
		parent = *cfg.parent
	default:
		parent = SpanContextFromContext(ctx)
	}
	if !parent.IsValid() {
		parent = SpanContext{}
	}

	sc := SpanContext{SpanID: internal.NewSpanID()}
	if parent.IsValid() {
		sc.TraceID = parent.TraceID
		sc.Flags = parent.Flags
		sc.State = parent.State
	} else {
		sc.TraceID = internal.NewTraceID()
	}

	sampled := false
	if t != nil {
		sampler := t.sampler
		if sampler == nil {
			sampler = AlwaysSample()
		}
		sampled = sampler.ShouldSample(SamplingParameters{
			TraceID: sc.TraceID,
			Name:    name,
			Kind:    cfg.kind,
			Parent:  parent,
		})
	}
	sc.Flags = sc.Flags.WithSampled(sampled)

	start := cfg.timestamp
	if start.IsZero() {
		start = time.Now()
	}

	span := &Span{
		name:      name,
		sc:        sc,
		parent:    parent,
		kind:      cfg.kind,
		startTime: start,
		tracer:    t,
		recording: sampled && t != nil && !t.shutdown.Load(),
	}
	if span.recording && len(cfg.attrs) > 0 {
		span.attrs = append([]attr.Attr(nil), cfg.attrs...)
	}

	return ContextWithSpan(ctx, span), span
}

func (t *Tracer) finish(span *Span) {
	if t.processor == nil || t.shutdown.Load() {
		return
	}
	t.processor.OnEnd(span)
}

// ForceFlush asks the processor to export everything it holds.
func (t *Tracer) ForceFlush(ctx context.Context) error {
	if t == nil || t.processor == nil {
		return nil
	}
	return t.processor.ForceFlush(ctx)
}

// Shutdown flushes and stops the processor. Spans started afterwards are not
// recorded. Only the first call does anything.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || !t.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	if t.processor == nil {
		return nil
	}
	return t.processor.Shutdown(ctx)
}
