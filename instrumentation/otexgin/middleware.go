// Package otexgin traces requests served by gin.
//
//	r := gin.New()
//	r.Use(otexgin.Middleware())
package otexgin

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kzs0/otex"
	"github.com/kzs0/otex/attr"
	"github.com/kzs0/otex/propagation"
	"github.com/kzs0/otex/trace"
)

// Option configures Middleware.
type Option func(*config)

type config struct {
	tracer *trace.Tracer
	filter func(*gin.Context) bool
}

// WithTracer uses t instead of the tracer installed by otex.Init.
func WithTracer(t *trace.Tracer) Option {
	return func(c *config) {
		c.tracer = t
	}
}

// WithFilter skips tracing for requests where fn returns false, e.g. health
// probes.
func WithFilter(fn func(*gin.Context) bool) Option {
	return func(c *config) {
		c.filter = fn
	}
}

// Middleware starts a server span per request, named after the matched
// route. An inbound traceparent header becomes the span's remote parent.
// Handlers find the span in c.Request.Context().
func Middleware(opts ...Option) gin.HandlerFunc {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *gin.Context) {
		if cfg.filter != nil && !cfg.filter(c) {
			c.Next()
			return
		}

		tracer := cfg.tracer
		if tracer == nil {
			if b, ok := otex.Global(); ok {
				tracer = b.Tracer()
			}
		}

		route := c.FullPath()
		name := c.Request.Method + " " + route
		if route == "" {
			name = "HTTP " + c.Request.Method
		}

		ctx := c.Request.Context()
		if propagation.HeaderCarrier(c.Request.Header).Get(propagation.TraceparentHeader) != "" {
			ctx = propagation.ExtractHTTP(c.Request)
		}
		ctx, span := tracer.Start(ctx, name,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttrs(
				attr.String("http.method", c.Request.Method),
				attr.String("http.route", route),
				attr.String("http.target", c.Request.URL.Path),
				attr.String("http.client_ip", c.ClientIP()),
				attr.String("http.user_agent", c.Request.UserAgent()),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		code := c.Writer.Status()
		span.SetAttr(attr.Int("http.status_code", code))
		// A recorded error already fails the span and its message wins.
		for _, err := range c.Errors {
			span.RecordError(err.Err)
		}
		if code >= http.StatusBadRequest {
			span.SetStatus(trace.StatusError, fmt.Sprintf("HTTP %d", code))
		} else {
			span.SetStatus(trace.StatusOK, "")
		}
	}
}
