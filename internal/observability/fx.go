package observability

import (
	"github.com/smallbiznis/claimsync/internal/observability/logger"
	"github.com/smallbiznis/claimsync/internal/observability/metrics"
	"github.com/smallbiznis/claimsync/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	logger.Module,
	fx.Provide(tracing.ConfigFrom),
	fx.Provide(tracing.NewProvider),
	fx.Provide(metrics.ConfigFrom),
	fx.Provide(metrics.PipelineWithConfig),
	fx.Provide(func(cfg metrics.Config) (*metrics.HTTPMetrics, error) {
		return metrics.NewHTTPMetrics(cfg, otel.GetMeterProvider())
	}),
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
