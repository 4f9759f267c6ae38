// Package otexgrpc carries spans across gRPC calls.
//
// The interceptors use the same traceparent format as HTTP, stored in the
// lowercase "traceparent" metadata key:
//
//	server := grpc.NewServer(
//		grpc.UnaryInterceptor(otexgrpc.UnaryServerInterceptor()),
//		grpc.StreamInterceptor(otexgrpc.StreamServerInterceptor()),
//	)
//
//	conn, err := grpc.NewClient(target,
//		grpc.WithUnaryInterceptor(otexgrpc.UnaryClientInterceptor()),
//		grpc.WithStreamInterceptor(otexgrpc.StreamClientInterceptor()),
//	)
package otexgrpc

import (
	"google.golang.org/grpc/metadata"

	"github.com/kzs0/otex/trace"
)

// MetadataCarrier adapts gRPC metadata to trace.TextMapCarrier. Keys are
// case-insensitive, as metadata stores them lowercase.
type MetadataCarrier metadata.MD

var _ trace.TextMapCarrier = MetadataCarrier{}

// Get returns the first value for key.
func (mc MetadataCarrier) Get(key string) string {
	if v := metadata.MD(mc).Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

// Set replaces the values under key.
func (mc MetadataCarrier) Set(key, value string) {
	metadata.MD(mc).Set(key, value)
}

// Keys returns the metadata keys.
func (mc MetadataCarrier) Keys() []string {
	keys := make([]string, 0, len(mc))
	for k := range mc {
		keys = append(keys, k)
	}
	return keys
}
