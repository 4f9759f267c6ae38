package export

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kzs0/otex/internal"
	"github.com/kzs0/otex/trace"
)

// BatchConfig configures NewBatchProcessor. Zero fields take the defaults.
type BatchConfig struct {
	// MaxQueueSize bounds the spans waiting for export. Spans ending while the
	// queue is full are dropped.
	MaxQueueSize int
	// BatchSize is the most spans handed to the exporter at once.
	BatchSize int
	// BatchTimeout is how long a partial batch waits before export.
	BatchTimeout time.Duration
	// ExportTimeout bounds each background export call.
	ExportTimeout time.Duration
}

// DefaultBatchConfig mirrors the OpenTelemetry SDK defaults.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxQueueSize:  2048,
		BatchSize:     512,
		BatchTimeout:  5 * time.Second,
		ExportTimeout: 30 * time.Second,
	}
}

func (c BatchConfig) withDefaults() BatchConfig {
	d := DefaultBatchConfig()
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = d.MaxQueueSize
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.BatchSize > c.MaxQueueSize {
		c.BatchSize = c.MaxQueueSize
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = d.BatchTimeout
	}
	if c.ExportTimeout <= 0 {
		c.ExportTimeout = d.ExportTimeout
	}
	return c
}

// Stats counts spans through a Processor.
type Stats struct {
	// Queued is spans handed over but neither exported nor failed yet. Spans
	// the SDK queue drops while full stay here until Shutdown moves them to
	// Dropped.
	Queued   int64
	Exported int64
	Dropped  int64
	Failed   int64
}

// Processor snapshots spans as they end and hands them to an OpenTelemetry
// SDK span processor.
type Processor struct {
	sdk      sdktrace.SpanProcessor
	exporter *countingExporter
	resource *resource.Resource

	accepted atomic.Int64
	dropped  atomic.Int64
	stopped  atomic.Bool
}

var _ trace.SpanProcessor = (*Processor)(nil)

// NewBatchProcessor exports from the background in batches through the SDK
// batch span processor. res is attached to every exported span. reporter
// may be nil.
func NewBatchProcessor(exporter sdktrace.SpanExporter, res *resource.Resource, reporter *internal.Reporter, cfg BatchConfig) *Processor {
	cfg = cfg.withDefaults()
	counted := &countingExporter{SpanExporter: exporter, reporter: reporter}
	return &Processor{
		sdk: sdktrace.NewBatchSpanProcessor(counted,
			sdktrace.WithMaxQueueSize(cfg.MaxQueueSize),
			sdktrace.WithMaxExportBatchSize(cfg.BatchSize),
			sdktrace.WithBatchTimeout(cfg.BatchTimeout),
			sdktrace.WithExportTimeout(cfg.ExportTimeout),
		),
		exporter: counted,
		resource: res,
	}
}

// NewSimpleProcessor exports each span synchronously as it ends. Meant for
// tests and local output, not production traffic.
func NewSimpleProcessor(exporter sdktrace.SpanExporter, res *resource.Resource, reporter *internal.Reporter) *Processor {
	counted := &countingExporter{SpanExporter: exporter, reporter: reporter}
	return &Processor{
		sdk:      sdktrace.NewSimpleSpanProcessor(counted),
		exporter: counted,
		resource: res,
	}
}

// OnEnd hands a snapshot of span to the SDK processor. Spans ending after
// Shutdown are counted as dropped.
func (p *Processor) OnEnd(span *trace.Span) {
	if p.stopped.Load() {
		p.dropped.Add(1)
		return
	}
	if !span.SpanContext().IsSampled() {
		return
	}
	p.accepted.Add(1)
	p.sdk.OnEnd(Snapshot(span, p.resource))
}

// ForceFlush exports everything queued.
func (p *Processor) ForceFlush(ctx context.Context) error {
	return p.sdk.ForceFlush(ctx)
}

// Shutdown flushes what is queued and shuts the exporter down. Later calls
// return nil.
func (p *Processor) Shutdown(ctx context.Context) error {
	if !p.stopped.CompareAndSwap(false, true) {
		return nil
	}
	err := p.sdk.Shutdown(ctx)
	if lost := p.pending(); lost > 0 {
		p.dropped.Add(lost)
		p.accepted.Add(-lost)
	}
	return err
}

// Stats returns a point-in-time view of the counters.
func (p *Processor) Stats() Stats {
	return Stats{
		Queued:   p.pending(),
		Exported: p.exporter.exported.Load(),
		Dropped:  p.dropped.Load(),
		Failed:   p.exporter.failed.Load(),
	}
}

func (p *Processor) pending() int64 {
	return max(0, p.accepted.Load()-p.exporter.exported.Load()-p.exporter.failed.Load())
}

// countingExporter tallies export outcomes and reports failures.
type countingExporter struct {
	sdktrace.SpanExporter
	reporter *internal.Reporter

	exported atomic.Int64
	failed   atomic.Int64
}

func (c *countingExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if err := c.SpanExporter.ExportSpans(ctx, spans); err != nil {
		c.failed.Add(int64(len(spans)))
		c.reporter.Report(ctx, "export: span export failed", err)
		return err
	}
	c.exported.Add(int64(len(spans)))
	return nil
}
