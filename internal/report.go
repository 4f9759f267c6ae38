package internal

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Reporter logs pipeline failures without flooding the log when a backend
// is down. Reports beyond the limit are counted and the count is attached
// to the next report that gets through.
type Reporter struct {
	logger     *slog.Logger
	limiter    *rate.Limiter
	suppressed atomic.Int64
	total      atomic.Int64
}

// NewReporter allows one report per interval with the given burst. A nil
// logger means slog.Default().
func NewReporter(logger *slog.Logger, interval time.Duration, burst int) *Reporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if burst <= 0 {
		burst = 1
	}
	return &Reporter{
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(interval), burst),
	}
}

// Report logs err at error level if the rate limit allows. nil errors are
// ignored.
func (r *Reporter) Report(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	if r == nil || err == nil {
		return
	}
	r.total.Add(1)
	if !r.limiter.Allow() {
		r.suppressed.Add(1)
		return
	}

	attrs = append(attrs, slog.String("error", err.Error()))
	if n := r.suppressed.Swap(0); n > 0 {
		attrs = append(attrs, slog.Int64("suppressed", n))
	}
	r.log().LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

// Total returns the number of errors reported, logged or not.
func (r *Reporter) Total() int64 {
	if r == nil {
		return 0
	}
	return r.total.Load()
}

func (r *Reporter) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}
