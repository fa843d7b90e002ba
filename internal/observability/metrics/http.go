package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetrics records operator API traffic through the OpenTelemetry meter.
type HTTPMetrics struct {
	duration metric.Float64Histogram
	requests metric.Int64Counter
	inFlight metric.Int64UpDownCounter
}

func NewHTTPMetrics(cfg Config, provider metric.MeterProvider) (*HTTPMetrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "claimsync"
	}
	meter := provider.Meter(name + "/http")

	duration, err := meter.Float64Histogram("claimsync.http.server.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("Operator API request latency."))
	if err != nil {
		return nil, err
	}
	requests, err := meter.Int64Counter("claimsync.http.server.requests",
		metric.WithDescription("Operator API requests by route and status class."))
	if err != nil {
		return nil, err
	}
	inFlight, err := meter.Int64UpDownCounter("claimsync.http.server.in_flight")
	if err != nil {
		return nil, err
	}
	return &HTTPMetrics{duration: duration, requests: requests, inFlight: inFlight}, nil
}

// GinMiddleware labels by route template so wallet and claim ids never become label values.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		route := FilterAttributes(attribute.String("route", routeLabel(c.FullPath())))
		m.inFlight.Add(ctx, 1, metric.WithAttributes(route...))
		start := time.Now()

		c.Next()

		m.inFlight.Add(ctx, -1, metric.WithAttributes(route...))
		attrs := metric.WithAttributes(FilterAttributes(
			attribute.String("route", routeLabel(c.FullPath())),
			attribute.String("method", c.Request.Method),
			attribute.String("status_class", statusClass(c.Writer.Status())),
		)...)
		m.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
		m.requests.Add(ctx, 1, attrs)
	}
}

// FilterAttributes drops empty values so unmatched routes do not create blank series.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if attr.Value.Type() == attribute.STRING && strings.TrimSpace(attr.Value.AsString()) == "" {
			continue
		}
		out = append(out, attr)
	}
	return out
}

func routeLabel(fullPath string) string {
	if fullPath = strings.TrimSpace(fullPath); fullPath == "" {
		return "unmatched"
	}
	return fullPath
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
