// Package transport instruments outbound HTTP calls.
//
// Transport is an http.RoundTripper that starts a client span per request and
// writes its traceparent header. NewRetryableClient and NewResty put it under
// the two client libraries otex supports; plain http.Client users can set it
// as their Transport directly.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/kzs0/otex/attr"
	"github.com/kzs0/otex/metric"
	"github.com/kzs0/otex/propagation"
	"github.com/kzs0/otex/trace"
)

// Tracer starts spans.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.StartOption) (context.Context, *trace.Span)
}

// Transport starts a client span for every request it carries and injects
// the span's identity into the request headers.
type Transport struct {
	// Base defaults to http.DefaultTransport.
	Base http.RoundTripper

	// Tracer may be nil, in which case requests pass through untouched
	// apart from propagating whatever span the request context holds.
	Tracer Tracer

	// Duration, if set, records each round trip in milliseconds.
	Duration *metric.Histogram
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if t.Tracer == nil {
		req = req.Clone(ctx)
		propagation.InjectHTTP(ctx, req)
		return t.base().RoundTrip(req)
	}

	ctx, span := t.Tracer.Start(ctx, "HTTP "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttrs(
			attr.String("http.method", req.Method),
			attr.String("http.url", req.URL.Redacted()),
			attr.String("http.host", req.URL.Host),
			attr.String("http.target", req.URL.Path),
		),
	)
	defer span.End()

	// RoundTrippers must not modify the caller's request.
	req = req.Clone(ctx)
	propagation.InjectHTTP(ctx, req)

	start := time.Now()
	resp, err := t.base().RoundTrip(req)
	labels := []attr.Attr{attr.String("http.method", req.Method)}

	if err != nil {
		span.RecordError(err)
		t.record(ctx, start, append(labels, attr.String("error", "transport"))...)
		return resp, err
	}

	span.SetAttr(attr.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(trace.StatusError, fmt.Sprintf("HTTP %d", resp.StatusCode))
	} else {
		span.SetStatus(trace.StatusOK, "")
	}
	t.record(ctx, start, append(labels, attr.Int("http.status_code", resp.StatusCode))...)
	return resp, nil
}

func (t *Transport) record(ctx context.Context, start time.Time, attrs ...attr.Attr) {
	if t.Duration != nil {
		t.Duration.Since(ctx, start, attrs...)
	}
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RetryConfig configures NewRetryableClient.
type RetryConfig struct {
	// RetryMax defaults to 3.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration
	Logger       *slog.Logger
}

// NewRetryableClient returns a standard *http.Client that retries failed
// requests. Every attempt gets its own client span, so retries are visible in
// the trace as siblings.
func NewRetryableClient(t *Transport, cfg RetryConfig) *http.Client {
	rc := retryablehttp.NewClient()
	if cfg.RetryMax > 0 {
		rc.RetryMax = cfg.RetryMax
	}
	if cfg.RetryWaitMin > 0 {
		rc.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		rc.RetryWaitMax = cfg.RetryWaitMax
	}
	if cfg.Timeout > 0 {
		rc.HTTPClient.Timeout = cfg.Timeout
	}
	rc.Logger = nil
	if cfg.Logger != nil {
		// *slog.Logger satisfies retryablehttp.LeveledLogger.
		rc.Logger = cfg.Logger
	}

	traced := *t
	if traced.Base == nil {
		traced.Base = rc.HTTPClient.Transport
	}
	rc.HTTPClient.Transport = &traced
	return rc.StandardClient()
}

// NewResty returns a resty client whose requests go through t.
func NewResty(t *Transport) *resty.Client {
	return resty.New().SetTransport(t)
}
