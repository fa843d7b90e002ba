package logger

import (
	"context"
	"strings"

	"github.com/smallbiznis/claimsync/internal/config"
	obscontext "github.com/smallbiznis/claimsync/internal/observability/context"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Module = fx.Module("logger",
	fx.Provide(New),
)

// New builds the process logger and installs it as the zap global.
func New(cfg config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	level := zapcore.InfoLevel
	if raw := strings.TrimSpace(cfg.LogLevel); raw != "" {
		if err := level.UnmarshalText([]byte(raw)); err != nil {
			return nil, err
		}
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	log, err := zcfg.Build(zap.Fields(
		zap.String("service", cfg.AppName),
		zap.String("version", cfg.AppVersion),
		zap.String("env", cfg.Environment),
	))
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)
	return log, nil
}

// FromContext returns the global logger decorated with trace, request and event fields.
func FromContext(ctx context.Context) *zap.Logger {
	return With(ctx, zap.L())
}

// With decorates log with the fields carried by ctx.
func With(ctx context.Context, log *zap.Logger) *zap.Logger {
	if log == nil {
		log = zap.L()
	}
	if ctx == nil {
		return log
	}

	fields := make([]zap.Field, 0, 6)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if ref, ok := obscontext.EventRefFromContext(ctx); ok {
		fields = append(fields,
			zap.String("event_kind", ref.Kind),
			zap.String("tx_hash", ref.TxHash),
			zap.Uint64("block_number", ref.BlockNumber),
			zap.Uint("log_index", ref.LogIndex),
		)
	}
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}
