package metric

import (
	"context"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/kzs0/otex/attr"
)

// Counter only goes up.
type Counter struct {
	name string
	inst otelmetric.Float64Counter
}

// Name returns the full instrument name.
func (c *Counter) Name() string { return c.name }

// Add increments by v. Negative, NaN and infinite values are ignored.
func (c *Counter) Add(ctx context.Context, v float64, attrs ...attr.Attr) {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	c.inst.Add(ctx, v, measurement(attrs))
}

// Inc adds one.
func (c *Counter) Inc(ctx context.Context, attrs ...attr.Attr) {
	c.Add(ctx, 1, attrs...)
}

// UpDownCounter tracks a value that rises and falls, such as in-flight
// requests.
type UpDownCounter struct {
	name string
	inst otelmetric.Int64UpDownCounter
}

// Name returns the full instrument name.
func (u *UpDownCounter) Name() string { return u.name }

// Add adds v, which may be negative.
func (u *UpDownCounter) Add(ctx context.Context, v int64, attrs ...attr.Attr) {
	u.inst.Add(ctx, v, measurement(attrs))
}

// Histogram records a distribution.
type Histogram struct {
	name string
	inst otelmetric.Float64Histogram
}

// Name returns the full instrument name.
func (h *Histogram) Name() string { return h.name }

// Record adds one observation. NaN is ignored.
func (h *Histogram) Record(ctx context.Context, v float64, attrs ...attr.Attr) {
	if math.IsNaN(v) {
		return
	}
	h.inst.Record(ctx, v, measurement(attrs))
}

// Since records the milliseconds elapsed since start.
func (h *Histogram) Since(ctx context.Context, start time.Time, attrs ...attr.Attr) {
	h.Record(ctx, float64(time.Since(start))/float64(time.Millisecond), attrs...)
}

// Gauge holds the last value set for each attribute set.
type Gauge struct {
	name string

	mu     sync.Mutex
	points map[attribute.Distinct]gaugePoint
}

type gaugePoint struct {
	set   attribute.Set
	value float64
}

func newGauge(name string) *Gauge {
	return &Gauge{name: name, points: make(map[attribute.Distinct]gaugePoint)}
}

// Name returns the full instrument name.
func (g *Gauge) Name() string { return g.name }

// Set replaces the value reported for attrs at the next collection.
func (g *Gauge) Set(_ context.Context, v float64, attrs ...attr.Attr) {
	set := attr.NewSet(attrs...).OTelSet()
	g.mu.Lock()
	g.points[set.Equivalent()] = gaugePoint{set: set, value: v}
	g.mu.Unlock()
}

func (g *Gauge) observe(_ context.Context, o otelmetric.Float64Observer) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range g.points {
		o.Observe(p.value, otelmetric.WithAttributeSet(p.set))
	}
	return nil
}
