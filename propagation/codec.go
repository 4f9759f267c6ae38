// Package propagation carries span identity across process boundaries using
// the W3C traceparent format.
//
// Extract never fails: a missing or malformed traceparent yields a context
// with no span, and the receiving side starts a fresh trace.
package propagation

import (
	"github.com/kzs0/otex/trace"
	"github.com/kzs0/otex/trace/w3c"
)

// Decode parses a traceparent value. The result is marked remote and has an
// empty trace state. ok is false for any value that is not a well-formed
// version 00 traceparent.
//
// Decode checks shape only; all-zero IDs decode with ok true and it is the
// caller's job to check SpanContext.IsValid before using the result.
func Decode(value string) (sc trace.SpanContext, ok bool) {
	sc, err := decode(value)
	return sc, err == nil
}

func decode(value string) (trace.SpanContext, error) {
	tp, err := w3c.ParseTraceparent(value)
	if err != nil {
		return trace.SpanContext{}, err
	}
	return trace.SpanContext{
		TraceID:  tp.TraceID,
		SpanID:   tp.SpanID,
		Flags:    trace.TraceFlags(tp.Flags),
		IsRemote: true,
	}, nil
}

// Encode renders sc as a version 00 traceparent. It does not check validity.
func Encode(sc trace.SpanContext) string {
	return w3c.FormatTraceparent(sc.TraceID, sc.SpanID, byte(sc.Flags))
}
