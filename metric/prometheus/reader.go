// Package prometheus exposes otex metrics in the Prometheus text format.
//
// NewReader attaches to the meter provider like any other reader and
// registers a collector, so the same instruments feed both the push pipeline
// and a local /metrics endpoint.
package prometheus

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// NewReader returns a metric reader that registers a collector on reg. Every
// scrape of reg collects the meter provider the reader is attached to.
// Dotted names become underscored and counters gain a _total suffix.
func NewReader(reg prometheus.Registerer) (sdkmetric.Reader, error) {
	exp, err := otelprom.New(
		otelprom.WithRegisterer(reg),
		otelprom.WithoutScopeInfo(),
	)
	if err != nil {
		return nil, fmt.Errorf("prometheus: %w", err)
	}
	return exp, nil
}
