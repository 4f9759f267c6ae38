// Package metric records counters, histograms and gauges through the
// OpenTelemetry metric API.
//
// Instruments are looked up by name: asking a Registry for the same name twice
// returns the same instrument, so call sites can create instruments inline.
// Recording never fails; instrument creation errors are reported once and
// the instrument falls back to a no-op.
package metric

import (
	"context"
	"log/slog"
	"sync"

	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/kzs0/otex/attr"
	"github.com/kzs0/otex/internal"
)

// DefaultBuckets are histogram boundaries in milliseconds.
var DefaultBuckets = []float64{.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000}

// Registry creates and caches instruments on one meter.
type Registry struct {
	meter    otelmetric.Meter
	prefix   string
	reporter *internal.Reporter

	mu         sync.RWMutex
	counters   map[string]*Counter
	updowns    map[string]*UpDownCounter
	histograms map[string]*Histogram
	gauges     map[string]*Gauge
}

// NewRegistry uses meter for all instruments. A non-empty prefix is joined to
// every name with a dot. A nil meter records nothing.
func NewRegistry(meter otelmetric.Meter, prefix string, reporter *internal.Reporter) *Registry {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("")
	}
	return &Registry{
		meter:      meter,
		prefix:     prefix,
		reporter:   reporter,
		counters:   make(map[string]*Counter),
		updowns:    make(map[string]*UpDownCounter),
		histograms: make(map[string]*Histogram),
		gauges:     make(map[string]*Gauge),
	}
}

// InstrumentOption configures an instrument when it is first created.
type InstrumentOption func(*instrumentConfig)

type instrumentConfig struct {
	description string
	unit        string
	buckets     []float64
}

// WithDescription sets the help text.
func WithDescription(desc string) InstrumentOption {
	return func(c *instrumentConfig) { c.description = desc }
}

// WithUnit sets a UCUM unit such as "ms" or "By".
func WithUnit(unit string) InstrumentOption {
	return func(c *instrumentConfig) { c.unit = unit }
}

// WithBuckets sets explicit histogram boundaries.
func WithBuckets(buckets ...float64) InstrumentOption {
	return func(c *instrumentConfig) { c.buckets = buckets }
}

func newInstrumentConfig(opts []InstrumentOption) instrumentConfig {
	var c instrumentConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (r *Registry) fullName(name string) string {
	if r.prefix == "" {
		return name
	}
	return r.prefix + "." + name
}

func (r *Registry) report(name string, err error) {
	r.reporter.Report(context.Background(), "metric: instrument creation failed", err, slog.String("instrument", name))
}

// Counter returns the monotonic counter called name, creating it on first use.
func (r *Registry) Counter(name string, opts ...InstrumentOption) *Counter {
	name = r.fullName(name)
	r.mu.RLock()
	c, ok := r.counters[name]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}

	cfg := newInstrumentConfig(opts)
	inst, err := r.meter.Float64Counter(name,
		otelmetric.WithDescription(cfg.description),
		otelmetric.WithUnit(cfg.unit),
	)
	if err != nil {
		r.report(name, err)
		inst, _ = noop.NewMeterProvider().Meter("").Float64Counter(name)
	}
	c = &Counter{name: name, inst: inst}
	r.counters[name] = c
	return c
}

// UpDownCounter returns the non-monotonic counter called name.
func (r *Registry) UpDownCounter(name string, opts ...InstrumentOption) *UpDownCounter {
	name = r.fullName(name)
	r.mu.RLock()
	u, ok := r.updowns[name]
	r.mu.RUnlock()
	if ok {
		return u
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.updowns[name]; ok {
		return u
	}

	cfg := newInstrumentConfig(opts)
	inst, err := r.meter.Int64UpDownCounter(name,
		otelmetric.WithDescription(cfg.description),
		otelmetric.WithUnit(cfg.unit),
	)
	if err != nil {
		r.report(name, err)
		inst, _ = noop.NewMeterProvider().Meter("").Int64UpDownCounter(name)
	}
	u = &UpDownCounter{name: name, inst: inst}
	r.updowns[name] = u
	return u
}

// Histogram returns the histogram called name. Without WithBuckets it uses
// DefaultBuckets.
func (r *Registry) Histogram(name string, opts ...InstrumentOption) *Histogram {
	name = r.fullName(name)
	r.mu.RLock()
	h, ok := r.histograms[name]
	r.mu.RUnlock()
	if ok {
		return h
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}

	cfg := newInstrumentConfig(opts)
	buckets := cfg.buckets
	if len(buckets) == 0 {
		buckets = DefaultBuckets
	}
	inst, err := r.meter.Float64Histogram(name,
		otelmetric.WithDescription(cfg.description),
		otelmetric.WithUnit(cfg.unit),
		otelmetric.WithExplicitBucketBoundaries(buckets...),
	)
	if err != nil {
		r.report(name, err)
		inst, _ = noop.NewMeterProvider().Meter("").Float64Histogram(name)
	}
	h = &Histogram{name: name, inst: inst}
	r.histograms[name] = h
	return h
}

// Gauge returns the gauge called name. Its last set value per attribute set
// is reported at each collection.
func (r *Registry) Gauge(name string, opts ...InstrumentOption) *Gauge {
	name = r.fullName(name)
	r.mu.RLock()
	g, ok := r.gauges[name]
	r.mu.RUnlock()
	if ok {
		return g
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}

	cfg := newInstrumentConfig(opts)
	g = newGauge(name)
	_, err := r.meter.Float64ObservableGauge(name,
		otelmetric.WithDescription(cfg.description),
		otelmetric.WithUnit(cfg.unit),
		otelmetric.WithFloat64Callback(g.observe),
	)
	if err != nil {
		r.report(name, err)
	}
	r.gauges[name] = g
	return g
}

func measurement(attrs []attr.Attr) otelmetric.MeasurementOption {
	return otelmetric.WithAttributeSet(attr.NewSet(attrs...).OTelSet())
}
