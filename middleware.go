package otex

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kzs0/otex/attr"
	"github.com/kzs0/otex/metric"
	"github.com/kzs0/otex/propagation"
	"github.com/kzs0/otex/trace"
)

// HTTPMiddleware starts a server span for every request. An inbound
// traceparent header becomes the span's remote parent; a malformed one is
// ignored and the request starts a new trace.
//
// Usage:
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("/users", handleUsers)
//	http.ListenAndServe(":8080", otex.HTTPMiddleware(mux))
func HTTPMiddleware(next http.Handler, opts ...MiddlewareOption) http.Handler {
	cfg := applyMiddlewareOptions(opts)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer, meter := cfg.resolve()
		start := time.Now()

		attrs := []attr.Attr{
			attr.String("http.method", r.Method),
			attr.String("http.path", r.URL.Path),
			attr.String("http.scheme", scheme(r)),
			attr.String("http.host", r.Host),
			attr.String("http.user_agent", r.UserAgent()),
		}
		if cfg.additionalAttrs != nil {
			attrs = append(attrs, cfg.additionalAttrs(r)...)
		}

		ctx := r.Context()
		if carrier := propagation.HeaderCarrier(r.Header); cfg.tracePropagation && carrier.Get(propagation.TraceparentHeader) != "" {
			ctx = propagation.TraceContext{}.Extract(ctx, carrier)
		}

		ctx, span := tracer.Start(ctx, cfg.operationName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttrs(attrs...),
		)
		defer span.End()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r.WithContext(ctx))

		span.SetAttr(attr.Int("http.status_code", rw.status))
		if cfg.failed(rw.status) {
			span.SetStatus(trace.StatusError, fmt.Sprintf("HTTP %d", rw.status))
		} else {
			span.SetStatus(trace.StatusOK, "")
		}

		if meter != nil {
			labels := cfg.metricLabels(append(attrs, attr.Int("http.status_code", rw.status)))
			meter.Counter("http.server.requests").Inc(ctx, labels...)
			meter.Histogram("http.server.duration", metric.WithUnit("ms")).Since(ctx, start, labels...)
		}
	})
}

func scheme(r *http.Request) string {
	if r.URL.Scheme != "" {
		return r.URL.Scheme
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// MiddlewareOption configures the HTTP middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	operationName      string
	additionalLabels   []string
	additionalAttrs    func(*http.Request) []attr.Attr
	successStatusCodes map[int]bool
	tracePropagation   bool
	tracer             *trace.Tracer
	meter              *metric.Registry
}

// WithOperationName sets the span name (default: "http.request").
func WithOperationName(name string) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.operationName = name
	}
}

// WithAdditionalLabels adds attribute keys, taken from the span attributes,
// to the request metrics. Defaults are http.method, http.path and
// http.status_code.
func WithAdditionalLabels(labels ...string) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.additionalLabels = append(cfg.additionalLabels, labels...)
	}
}

// WithAdditionalAttrs extracts extra span attributes from the request.
func WithAdditionalAttrs(fn func(*http.Request) []attr.Attr) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.additionalAttrs = fn
	}
}

// WithSuccessCodes defines which HTTP status codes are considered successful.
// Default: below 400.
func WithSuccessCodes(codes ...int) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.successStatusCodes = make(map[int]bool)
		for _, code := range codes {
			cfg.successStatusCodes[code] = true
		}
	}
}

// WithTracePropagation enables or disables reading traceparent.
// Default: enabled.
func WithTracePropagation(enable bool) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.tracePropagation = enable
	}
}

// WithMiddlewareTracer uses t and m instead of the installed pipelines.
// m may be nil to skip request metrics.
func WithMiddlewareTracer(t *trace.Tracer, m *metric.Registry) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.tracer = t
		cfg.meter = m
	}
}

func applyMiddlewareOptions(opts []MiddlewareOption) middlewareConfig {
	cfg := middlewareConfig{
		operationName:    "http.request",
		tracePropagation: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// resolve picks the pipelines per request so the middleware can be built
// before Init.
func (c *middlewareConfig) resolve() (*trace.Tracer, *metric.Registry) {
	if c.tracer != nil {
		return c.tracer, c.meter
	}
	if b, ok := Global(); ok {
		return b.tracer, b.metrics
	}
	return nil, nil
}

func (c *middlewareConfig) failed(status int) bool {
	if c.successStatusCodes != nil {
		return !c.successStatusCodes[status]
	}
	return status >= 400
}

func (c *middlewareConfig) metricLabels(attrs []attr.Attr) []attr.Attr {
	set := attr.NewSet(attrs...)
	keys := append([]string{"http.method", "http.path", "http.status_code"}, c.additionalLabels...)
	out := make([]attr.Attr, 0, len(keys))
	for _, k := range keys {
		if v, ok := set.Get(k); ok {
			out = append(out, attr.Attr{Key: k, Value: v})
		}
	}
	return out
}

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
