package tracing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/claimsync/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultSamplingRatio = 0.1

// Config configures the tracer provider and its OTLP exporter.
type Config struct {
	Enabled          bool
	ServiceName      string
	ServiceVersion   string
	Environment      string
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64

	// ContractAddress tags every span with the watched contract.
	ContractAddress string
}

func ConfigFrom(cfg config.Config) Config {
	return Config{
		Enabled:          cfg.Tracing.Enabled,
		ServiceName:      cfg.AppName,
		ServiceVersion:   cfg.AppVersion,
		Environment:      cfg.Environment,
		ExporterEndpoint: strings.TrimSpace(cfg.Tracing.ExporterEndpoint),
		ExporterProtocol: strings.ToLower(strings.TrimSpace(cfg.Tracing.ExporterProtocol)),
		SamplingRatio:    cfg.Tracing.SamplingRatio,
		ContractAddress:  cfg.Chain.ContractAddress,
	}
}

type ProviderParams struct {
	fx.In

	Lc  fx.Lifecycle
	Cfg Config
	Log *zap.Logger
}

// NewProvider installs the global tracer provider. When tracing is disabled a
// noop provider is installed and nil is returned.
func NewProvider(p ProviderParams) (*sdktrace.TracerProvider, error) {
	SetPropagator()
	if !p.Cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return nil, nil
	}

	exporter, err := newExporter(p.Cfg.ExporterProtocol, p.Cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	ratio := samplingRatio(p.Cfg.SamplingRatio)
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(newResource(p.Cfg)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(provider)

	log := p.Log.Named("tracing")
	p.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("flushing spans")
			return provider.Shutdown(ctx)
		},
	})
	log.Info("tracing enabled",
		zap.String("endpoint", p.Cfg.ExporterEndpoint),
		zap.String("protocol", p.Cfg.ExporterProtocol),
		zap.Float64("sampling_ratio", ratio),
	)
	return provider, nil
}

func newResource(cfg Config) *resource.Resource {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	}
	if cfg.ContractAddress != "" {
		attrs = append(attrs, attribute.String("claimsync.contract_address", strings.ToLower(cfg.ContractAddress)))
	}
	return resource.NewSchemaless(attrs...)
}

func newExporter(protocol, endpoint string) (sdktrace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch protocol {
	case "", "grpc", "grpc/protobuf":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))
		}
		return otlptracegrpc.New(ctx, opts...)
	case "http", "http/protobuf":
		var opts []otlptracehttp.Option
		if endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported otlp protocol %q", protocol)
	}
}

func samplingRatio(value float64) float64 {
	switch {
	case value <= 0:
		return defaultSamplingRatio
	case value > 1:
		return 1
	default:
		return value
	}
}
