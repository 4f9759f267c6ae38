package otexgrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/kzs0/otex"
	"github.com/kzs0/otex/attr"
	"github.com/kzs0/otex/propagation"
	"github.com/kzs0/otex/trace"
)

// Option configures the interceptors.
type Option func(*config)

type config struct {
	tracer *trace.Tracer
}

// WithTracer uses t instead of the tracer installed by otex.Init.
func WithTracer(t *trace.Tracer) Option {
	return func(c *config) {
		c.tracer = t
	}
}

func newConfig(opts []Option) *config {
	c := &config{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *config) start(ctx context.Context, method string, kind trace.SpanKind) (context.Context, *trace.Span) {
	tracer := c.tracer
	if tracer == nil {
		if b, ok := otex.Global(); ok {
			tracer = b.Tracer()
		}
	}
	return tracer.Start(ctx, method,
		trace.WithSpanKind(kind),
		trace.WithAttrs(
			attr.String("rpc.system", "grpc"),
			attr.String("rpc.method", method),
		),
	)
}

// extract makes the caller's span, if the metadata carries one, the remote
// parent.
func extract(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	carrier := MetadataCarrier(md)
	if carrier.Get(propagation.TraceparentHeader) == "" {
		return ctx
	}
	return propagation.TraceContext{}.Extract(ctx, carrier)
}

// inject returns ctx with outgoing metadata carrying the span in ctx. The
// caller's metadata is copied, not modified.
func inject(ctx context.Context) context.Context {
	md, ok := metadata.FromOutgoingContext(ctx)
	if ok {
		md = md.Copy()
	} else {
		md = metadata.MD{}
	}
	propagation.TraceContext{}.Inject(ctx, MetadataCarrier(md))
	return metadata.NewOutgoingContext(ctx, md)
}

func finish(span *trace.Span, err error) {
	code := status.Code(err)
	span.SetAttr(attr.Int("rpc.grpc.status_code", int(code)))
	if err != nil {
		// Status first so the code, not the message, describes the failure.
		span.SetStatus(trace.StatusError, code.String())
		span.RecordError(err)
		return
	}
	span.SetStatus(trace.StatusOK, "")
}

// UnaryServerInterceptor starts a server span per call, parented on the
// caller's span when the metadata carries one.
func UnaryServerInterceptor(opts ...Option) grpc.UnaryServerInterceptor {
	c := newConfig(opts)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, span := c.start(extract(ctx), info.FullMethod, trace.SpanKindServer)
		defer span.End()

		resp, err := handler(ctx, req)
		finish(span, err)
		return resp, err
	}
}

// StreamServerInterceptor is UnaryServerInterceptor for streams. The span
// lasts as long as the handler.
func StreamServerInterceptor(opts ...Option) grpc.StreamServerInterceptor {
	c := newConfig(opts)
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, span := c.start(extract(ss.Context()), info.FullMethod, trace.SpanKindServer)
		defer span.End()

		err := handler(srv, &serverStream{ServerStream: ss, ctx: ctx})
		finish(span, err)
		return err
	}
}

// UnaryClientInterceptor starts a client span per call and sends it as the
// callee's parent.
func UnaryClientInterceptor(opts ...Option) grpc.UnaryClientInterceptor {
	c := newConfig(opts)
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
		ctx, span := c.start(ctx, method, trace.SpanKindClient)
		defer span.End()

		err := invoker(inject(ctx), method, req, reply, cc, callOpts...)
		finish(span, err)
		return err
	}
}

// StreamClientInterceptor starts a client span for opening the stream. The
// span ends once the stream is established; messages are not traced.
func StreamClientInterceptor(opts ...Option) grpc.StreamClientInterceptor {
	c := newConfig(opts)
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, callOpts ...grpc.CallOption) (grpc.ClientStream, error) {
		ctx, span := c.start(ctx, method, trace.SpanKindClient)
		defer span.End()

		cs, err := streamer(inject(ctx), desc, cc, method, callOpts...)
		finish(span, err)
		return cs, err
	}
}

// serverStream overrides Context so handlers see the server span.
type serverStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *serverStream) Context() context.Context {
	return s.ctx
}
