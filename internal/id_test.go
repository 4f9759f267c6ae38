package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDsAreNonZeroAndDistinct(t *testing.T) {
	seenTraces := make(map[TraceID]struct{})
	seenSpans := make(map[SpanID]struct{})

	for i := 0; i < 100; i++ {
		tid := NewTraceID()
		sid := NewSpanID()
		require.False(t, tid.IsZero())
		require.False(t, sid.IsZero())

		seenTraces[tid] = struct{}{}
		seenSpans[sid] = struct{}{}
	}

	assert.Len(t, seenTraces, 100)
	assert.Len(t, seenSpans, 100)
}

func TestIDHexRoundTrip(t *testing.T) {
	tid, err := TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	require.NoError(t, err)
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", tid.String())

	sid, err := SpanIDFromHex("b7ad6b7169203331")
	require.NoError(t, err)
	assert.Equal(t, "b7ad6b7169203331", sid.String())
}

func TestIDFromHexRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		trace string
		span  string
	}{
		{name: "short", trace: "0af7651916cd43dd", span: "b7ad6b71"},
		{name: "long", trace: "0af7651916cd43dd8448eb211c80319c00", span: "b7ad6b716920333100"},
		{name: "non-hex", trace: "0af7651916cd43dd8448eb211c80319z", span: "b7ad6b716920333z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TraceIDFromHex(tt.trace)
			assert.Error(t, err)
			_, err = SpanIDFromHex(tt.span)
			assert.Error(t, err)
		})
	}
}

func TestZeroIDs(t *testing.T) {
	assert.True(t, TraceID{}.IsZero())
	assert.True(t, SpanID{}.IsZero())
	assert.Equal(t, "00000000000000000000000000000000", TraceID{}.String())
}
