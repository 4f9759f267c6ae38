package propagation

import (
	"context"
	"net/http"
)

// InjectHTTP writes the identity of the span active in ctx into req's headers.
func InjectHTTP(ctx context.Context, req *http.Request) {
	TraceContext{}.Inject(ctx, HeaderCarrier(req.Header))
}

// ExtractHTTP returns req's context with the remote parent carried by its
// headers, or with no span if there is none.
func ExtractHTTP(req *http.Request) context.Context {
	return TraceContext{}.Extract(req.Context(), HeaderCarrier(req.Header))
}
