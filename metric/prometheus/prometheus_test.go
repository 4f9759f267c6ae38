package prometheus

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kzs0/otex/attr"
	"github.com/kzs0/otex/export"
	"github.com/kzs0/otex/metric"
)

func TestReader(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	reader, err := NewReader(reg)
	require.NoError(t, err)

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	meters := metric.NewRegistry(mp.Meter("test"), "", nil)
	ctx := context.Background()
	meters.Counter("http.requests").Add(ctx, 2, attr.String("http.method", "GET"))
	meters.Histogram("http.duration", metric.WithBuckets(10, 100)).Record(ctx, 42)
	meters.UpDownCounter("inflight").Add(ctx, 3)
	meters.Gauge("queue.depth").Set(ctx, 9)

	body := serveRegistry(t, reg)
	assert.Contains(t, body, `http_requests_total{http_method="GET"} 2`)
	assert.Contains(t, body, `http_duration_bucket{le="100"} 1`)
	assert.Contains(t, body, `http_duration_count 1`)
	assert.Contains(t, body, `inflight 3`)
	assert.Contains(t, body, `queue_depth 9`)

	n, err := testutil.GatherAndCount(reg, "http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPipelineCollector(t *testing.T) {
	stats := export.Stats{Queued: 4, Exported: 10, Dropped: 2, Failed: 1}
	c := NewPipelineCollector(func() export.Stats { return stats })

	assert.Equal(t, 4, testutil.CollectAndCount(c))
	body := scrape(t, c)
	assert.Contains(t, body, "otex_spans_exported_total 10")
	assert.Contains(t, body, "otex_spans_dropped_total 2")
	assert.Contains(t, body, "otex_spans_queued 4")
}

func TestNewRegistryIncludesGoCollector(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "go_goroutines")
}

func scrape(t *testing.T, c prometheus.Collector) string {
	t.Helper()
	reg, err := NewRegistry(c)
	require.NoError(t, err)
	return serveRegistry(t, reg)
}

func serveRegistry(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return strings.TrimSpace(string(b))
}
