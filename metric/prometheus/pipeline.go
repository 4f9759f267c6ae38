package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kzs0/otex/export"
)

// PipelineCollector reports the span export pipeline's own counters.
type PipelineCollector struct {
	stats func() export.Stats

	queued   *prometheus.Desc
	exported *prometheus.Desc
	dropped  *prometheus.Desc
	failed   *prometheus.Desc
}

var _ prometheus.Collector = (*PipelineCollector)(nil)

// NewPipelineCollector reads stats at every scrape.
func NewPipelineCollector(stats func() export.Stats) *PipelineCollector {
	return &PipelineCollector{
		stats:    stats,
		queued:   prometheus.NewDesc("otex_spans_queued", "Spans waiting for export.", nil, nil),
		exported: prometheus.NewDesc("otex_spans_exported_total", "Spans handed to the exporter successfully.", nil, nil),
		dropped:  prometheus.NewDesc("otex_spans_dropped_total", "Spans dropped because the queue was full or closed.", nil, nil),
		failed:   prometheus.NewDesc("otex_spans_failed_total", "Spans in batches the exporter rejected.", nil, nil),
	}
}

// Describe sends the four pipeline descriptors.
func (c *PipelineCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queued
	ch <- c.exported
	ch <- c.dropped
	ch <- c.failed
}

// Collect reads the stats once per scrape.
func (c *PipelineCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.queued, prometheus.GaugeValue, float64(s.Queued))
	ch <- prometheus.MustNewConstMetric(c.exported, prometheus.CounterValue, float64(s.Exported))
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(s.Dropped))
	ch <- prometheus.MustNewConstMetric(c.failed, prometheus.CounterValue, float64(s.Failed))
}
