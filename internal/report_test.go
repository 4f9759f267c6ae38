package internal

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReporterRateLimits(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(slog.New(slog.NewTextHandler(&buf, nil)), time.Hour, 2)

	for i := 0; i < 5; i++ {
		r.Report(context.Background(), "export failed", errors.New("unreachable"))
	}

	assert.Equal(t, 2, strings.Count(buf.String(), "export failed"))
	assert.Equal(t, int64(5), r.Total())
	assert.Equal(t, int64(3), r.suppressed.Load())
}

func TestReporterIgnoresNil(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(slog.New(slog.NewTextHandler(&buf, nil)), time.Second, 1)
	r.Report(context.Background(), "x", nil)
	assert.Empty(t, buf.String())

	var nilReporter *Reporter
	assert.NotPanics(t, func() { nilReporter.Report(context.Background(), "x", errors.New("e")) })
	assert.Zero(t, nilReporter.Total())
}
