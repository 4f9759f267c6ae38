package otex

import (
	"context"
	"io"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/kzs0/otex/metric"
	"github.com/kzs0/otex/trace"
	"github.com/kzs0/otex/transport"
)

// globalTracer starts spans on whatever tracer is installed when the request
// is made, or non-recording spans before Init.
type globalTracer struct{}

func (globalTracer) Start(ctx context.Context, name string, opts ...trace.StartOption) (context.Context, *trace.Span) {
	var t *trace.Tracer
	if b, ok := Global(); ok {
		t = b.tracer
	}
	return t.Start(ctx, name, opts...)
}

// instrumentedTransport resolves the installed pipelines per request.
type instrumentedTransport struct {
	base http.RoundTripper
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	tr := &transport.Transport{Base: t.base, Tracer: globalTracer{}}
	if b, ok := Global(); ok {
		tr.Duration = b.metrics.Histogram("http.client.duration", metric.WithUnit("ms"))
	}
	return tr.RoundTrip(req)
}

// NewClient creates an http.Client that starts a client span per request and
// sends traceparent. base may be nil.
//
// Usage:
//
//	client := otex.NewClient(&http.Client{Timeout: 30 * time.Second})
//	resp, err := client.Do(req.WithContext(ctx))
func NewClient(base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	return &http.Client{
		Transport:     &instrumentedTransport{base: base.Transport},
		CheckRedirect: base.CheckRedirect,
		Jar:           base.Jar,
		Timeout:       base.Timeout,
	}
}

// NewRetryableClient is NewClient with retries. Each attempt is its own
// client span.
func NewRetryableClient(cfg transport.RetryConfig) *http.Client {
	return transport.NewRetryableClient(&transport.Transport{Tracer: globalTracer{}}, cfg)
}

// NewResty returns an instrumented resty client.
func NewResty() *resty.Client {
	return transport.NewResty(&transport.Transport{Tracer: globalTracer{}})
}

// Do executes req with ctx through a one-off instrumented client. Reuse a
// NewClient client when making many requests.
//
// Usage:
//
//	req, _ := http.NewRequest("GET", "https://api.example.com/users", nil)
//	resp, err := otex.Do(ctx, req)
func Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return NewClient(nil).Do(req.WithContext(ctx))
}

// Get is a convenience function for instrumented GET requests.
func Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return Do(ctx, req)
}

// Post is a convenience function for instrumented POST requests.
func Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return Do(ctx, req)
}
