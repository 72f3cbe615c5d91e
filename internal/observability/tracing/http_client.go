package tracing

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type roundTripper struct {
	name string
	next http.RoundTripper
}

// WrapTransport adds a client span and propagation headers to outbound calls.
// name identifies the upstream, e.g. "stripe".
func WrapTransport(name string, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &roundTripper{name: name, next: next}
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := otel.Tracer("privatedrops/http-client").Start(req.Context(),
		rt.name+" "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	req = req.Clone(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	span.SetAttributes(SafeAttributes(
		attribute.String("peer.service", rt.name),
		attribute.String("http.method", req.Method),
		attribute.String("http.host", req.URL.Host),
	)...)

	resp, err := rt.next.RoundTrip(req)
	if err != nil {
		span.RecordError(SafeError(err))
		span.SetStatus(codes.Error, "transport error")
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, "upstream error")
	}
	return resp, nil
}
