package internal

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// TraceID is a 16-byte identifier shared by every span of a trace.
type TraceID [16]byte

// SpanID is an 8-byte identifier of one span within a trace.
type SpanID [8]byte

var (
	ErrTraceIDLength = errors.New("trace id must be 32 hex characters")
	ErrSpanIDLength  = errors.New("span id must be 16 hex characters")
)

// NewTraceID returns a random, non-zero trace ID.
func NewTraceID() TraceID {
	var id TraceID
	for id.IsZero() {
		_, _ = rand.Read(id[:])
	}
	return id
}

// NewSpanID returns a random, non-zero span ID.
func NewSpanID() SpanID {
	var id SpanID
	for id.IsZero() {
		_, _ = rand.Read(id[:])
	}
	return id
}

// String returns the lowercase hex form of the trace ID.
func (t TraceID) String() string {
	return hex.EncodeToString(t[:])
}

// String returns the lowercase hex form of the span ID.
func (s SpanID) String() string {
	return hex.EncodeToString(s[:])
}

// IsZero reports whether every byte is zero. A zero ID is never valid for tracing.
func (t TraceID) IsZero() bool {
	return t == TraceID{}
}

// IsZero reports whether every byte is zero.
func (s SpanID) IsZero() bool {
	return s == SpanID{}
}

// TraceIDFromHex decodes exactly 32 hex characters into a TraceID.
func TraceIDFromHex(s string) (TraceID, error) {
	var id TraceID
	if len(s) != 2*len(id) {
		return id, ErrTraceIDLength
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return TraceID{}, fmt.Errorf("trace id: %w", err)
	}
	return id, nil
}

// SpanIDFromHex decodes exactly 16 hex characters into a SpanID.
func SpanIDFromHex(s string) (SpanID, error) {
	var id SpanID
	if len(s) != 2*len(id) {
		return id, ErrSpanIDLength
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return SpanID{}, fmt.Errorf("span id: %w", err)
	}
	return id, nil
}
