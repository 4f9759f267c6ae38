// Package w3c parses and formats the W3C Trace Context traceparent value
// (https://www.w3.org/TR/trace-context/).
//
// The format is carrier-agnostic: the same string travels in HTTP headers,
// gRPC metadata or message headers. Only version 00 is understood and only
// traceparent is handled; tracestate is neither read nor written.
package w3c

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kzs0/otex/internal"
)

// Traceparent format: version-trace-id-parent-id-trace-flags
//
//	00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01
const (
	Version = "00"

	versionLen = 2
	traceIDLen = 32
	spanIDLen  = 16
	flagsLen   = 2
	fieldCount = 4

	// Length of a well-formed version 00 value.
	Length = versionLen + 1 + traceIDLen + 1 + spanIDLen + 1 + flagsLen

	// SampledFlag is bit 0 of the trace flags.
	SampledFlag byte = 0x01
)

var (
	ErrFieldCount         = errors.New("w3c: traceparent must have 4 dash-separated fields")
	ErrUnsupportedVersion = errors.New("w3c: unsupported traceparent version")
	ErrInvalidTraceID     = errors.New("w3c: trace-id must be 32 lowercase hex characters")
	ErrInvalidSpanID      = errors.New("w3c: parent-id must be 16 lowercase hex characters")
	ErrInvalidFlags       = errors.New("w3c: trace-flags must be 2 lowercase hex characters")
)

// Traceparent is a decoded traceparent value.
type Traceparent struct {
	TraceID internal.TraceID
	SpanID  internal.SpanID
	Flags   byte
}

// Sampled reports whether the sampled bit is set.
func (tp Traceparent) Sampled() bool {
	return tp.Flags&SampledFlag != 0
}

// String formats tp as a version 00 traceparent.
func (tp Traceparent) String() string {
	return FormatTraceparent(tp.TraceID, tp.SpanID, tp.Flags)
}

// ParseTraceparent decodes a traceparent value. It checks shape only: an
// all-zero trace-id or parent-id decodes without error, and it is up to the
// caller to decide whether such an identity is usable.
func ParseTraceparent(value string) (Traceparent, error) {
	fields := strings.Split(value, "-")
	if len(fields) != fieldCount {
		return Traceparent{}, ErrFieldCount
	}

	if fields[0] != Version {
		return Traceparent{}, fmt.Errorf("%w: %q", ErrUnsupportedVersion, fields[0])
	}

	var tp Traceparent
	var err error

	if len(fields[1]) != traceIDLen || !isLowerHex(fields[1]) {
		return Traceparent{}, ErrInvalidTraceID
	}
	if tp.TraceID, err = internal.TraceIDFromHex(fields[1]); err != nil {
		return Traceparent{}, fmt.Errorf("%w: %w", ErrInvalidTraceID, err)
	}

	if len(fields[2]) != spanIDLen || !isLowerHex(fields[2]) {
		return Traceparent{}, ErrInvalidSpanID
	}
	if tp.SpanID, err = internal.SpanIDFromHex(fields[2]); err != nil {
		return Traceparent{}, fmt.Errorf("%w: %w", ErrInvalidSpanID, err)
	}

	if len(fields[3]) != flagsLen || !isLowerHex(fields[3]) {
		return Traceparent{}, ErrInvalidFlags
	}
	tp.Flags = unhex(fields[3][0])<<4 | unhex(fields[3][1])

	return tp, nil
}

// FormatTraceparent renders a version 00 traceparent. Flags are written as
// given, so undefined bits survive a round trip.
func FormatTraceparent(traceID internal.TraceID, spanID internal.SpanID, flags byte) string {
	var b strings.Builder
	b.Grow(Length)
	b.WriteString(Version)
	b.WriteByte('-')
	b.WriteString(traceID.String())
	b.WriteByte('-')
	b.WriteString(spanID.String())
	b.WriteByte('-')
	b.WriteByte(hexDigits[flags>>4])
	b.WriteByte(hexDigits[flags&0x0f])
	return b.String()
}

const hexDigits = "0123456789abcdef"

func isLowerHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// unhex expects c to have passed isLowerHex.
func unhex(c byte) byte {
	if c <= '9' {
		return c - '0'
	}
	return c - 'a' + 10
}
