package trace

import (
	"slices"

	"github.com/kzs0/otex/internal"
)

// TraceFlags is the W3C trace-flags byte. Bits other than FlagsSampled have no
// meaning here but are carried unchanged.
type TraceFlags byte

const FlagsSampled TraceFlags = 0x01

// IsSampled reports whether the sampled bit is set.
func (f TraceFlags) IsSampled() bool {
	return f&FlagsSampled != 0
}

// WithSampled returns f with the sampled bit set or cleared.
func (f TraceFlags) WithSampled(sampled bool) TraceFlags {
	if sampled {
		return f | FlagsSampled
	}
	return f &^ FlagsSampled
}

// Entry is one key/value member of a TraceState.
type Entry struct {
	Key   string
	Value string
}

// TraceState is an opaque, ordered list of vendor entries. It is carried with
// a SpanContext and inherited by child spans but never read from or written to
// the wire.
type TraceState []Entry

// Get returns the value of the first entry with key.
func (ts TraceState) Get(key string) (string, bool) {
	for _, e := range ts {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// SpanContext is the immutable identity of a span: what crosses process
// boundaries and what children inherit.
type SpanContext struct {
	TraceID internal.TraceID
	SpanID  internal.SpanID
	Flags   TraceFlags
	State   TraceState

	// IsRemote is true only for identities decoded from an inbound carrier.
	IsRemote bool
}

// IsValid reports whether both IDs are non-zero.
func (sc SpanContext) IsValid() bool {
	return !sc.TraceID.IsZero() && !sc.SpanID.IsZero()
}

// IsSampled reports whether the sampled flag is set.
func (sc SpanContext) IsSampled() bool {
	return sc.Flags.IsSampled()
}

// HasTraceID reports whether the trace ID is non-zero.
func (sc SpanContext) HasTraceID() bool {
	return !sc.TraceID.IsZero()
}

// Equal compares every field, trace state included.
func (sc SpanContext) Equal(o SpanContext) bool {
	return sc.TraceID == o.TraceID &&
		sc.SpanID == o.SpanID &&
		sc.Flags == o.Flags &&
		sc.IsRemote == o.IsRemote &&
		slices.Equal(sc.State, o.State)
}
