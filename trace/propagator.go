package trace

import "context"

// TextMapCarrier is a string key/value store a propagator reads from and
// writes to: HTTP headers, gRPC metadata, message headers.
type TextMapCarrier interface {
	// Get returns the value for key, or "" if absent.
	Get(key string) string
	Set(key, value string)
	Keys() []string
}

// Propagator moves span identity across process boundaries.
type Propagator interface {
	// Inject writes the identity of the span active in ctx into carrier. It
	// writes nothing when ctx has no valid identity.
	Inject(ctx context.Context, carrier TextMapCarrier)

	// Extract returns a child of ctx carrying the identity found in carrier
	// as a remote parent. Missing or malformed input never fails the call:
	// the returned context then carries no span at all.
	Extract(ctx context.Context, carrier TextMapCarrier) context.Context

	// Fields lists the carrier keys the propagator uses.
	Fields() []string
}
