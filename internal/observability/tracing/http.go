package tracing

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// WrapHTTPClient returns a copy of client whose requests run in client spans
// named after peer and carry W3C trace headers.
func WrapHTTPClient(client *http.Client, peer string) *http.Client {
	if client == nil {
		client = &http.Client{}
	}
	wrapped := *client
	next := wrapped.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	if peer = strings.TrimSpace(peer); peer == "" {
		peer = "external"
	}
	wrapped.Transport = roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		ctx, span := otel.Tracer("claimsync/http").Start(req.Context(), peer+" "+req.Method,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("peer.service", peer),
				attribute.String("http.request.method", req.Method),
				attribute.String("server.address", req.URL.Host),
			),
		)
		defer span.End()

		req = req.Clone(ctx)
		InjectContext(ctx, propagation.HeaderCarrier(req.Header))

		resp, err := next.RoundTrip(req)
		if err != nil {
			span.RecordError(SafeError(err))
			span.SetStatus(codes.Error, "transport error")
			return nil, err
		}
		span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
		if resp.StatusCode >= http.StatusBadRequest {
			span.SetStatus(codes.Error, resp.Status)
		}
		return resp, nil
	})
	return &wrapped
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }
