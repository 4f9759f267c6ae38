package metric

import (
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// StartRuntime records Go runtime statistics (goroutines, heap, GC) on mp.
// MemStats are read at most once per interval.
func StartRuntime(mp otelmetric.MeterProvider, interval time.Duration) error {
	opts := []runtime.Option{runtime.WithMeterProvider(mp)}
	if interval > 0 {
		opts = append(opts, runtime.WithMinimumReadMemStatsInterval(interval))
	}
	if err := runtime.Start(opts...); err != nil {
		return fmt.Errorf("metric: runtime instrumentation: %w", err)
	}
	return nil
}
