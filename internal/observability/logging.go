// Package observability provides OpenTelemetry tracing, metrics, and structured logging
// with trace correlation for the support ticket pipeline.
package observability

import (
	"context"
	"os"

	"supportapp/internal/config"
	contextutils "supportapp/internal/utils"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps the zap logger with OpenTelemetry context support
type Logger struct {
	*zap.Logger
	provider *sdklog.LoggerProvider
}

// NewLogger creates an info level logger
func NewLogger(cfg *config.OpenTelemetryConfig) *Logger {
	return NewLoggerWithLevel(cfg, zap.InfoLevel)
}

// ParseLevel maps a level name such as "warn" to a zap level. Unknown names mean info.
func ParseLevel(name string) zapcore.Level {
	level, err := zapcore.ParseLevel(name)
	if err != nil || name == "" {
		return zap.InfoLevel
	}
	return level
}

// NewLoggerWithLevel creates a JSON stdout logger, teed to OTLP when an endpoint is configured.
// Disabled logging yields a no-op logger.
func NewLoggerWithLevel(cfg *config.OpenTelemetryConfig, level zapcore.Level) *Logger {
	if cfg == nil || !cfg.EnableLogging {
		return &Logger{Logger: zap.NewNop()}
	}

	zapLogger := newStdoutLogger(level)
	if cfg.Endpoint == "" {
		return &Logger{Logger: zapLogger}
	}

	otelCore, provider, err := newOTLPCore(cfg)
	if err != nil {
		zapLogger.Warn("OTLP log export disabled", zap.Error(err), zap.String("endpoint", cfg.Endpoint))
		return &Logger{Logger: zapLogger}
	}
	zapLogger.Debug("OTLP logging configured", zap.String("endpoint", cfg.Endpoint))

	return &Logger{
		Logger:   zap.New(zapcore.NewTee(zapLogger.Core(), otelCore)),
		provider: provider,
	}
}

func newStdoutLogger(level zapcore.Level) *zap.Logger {
	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if os.Getenv("ENV") == "development" {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return zap.NewExample()
	}
	return zapLogger
}

// newOTLPCore builds a zap core exporting records through an OTLP gRPC log exporter
func newOTLPCore(cfg *config.OpenTelemetryConfig) (zapcore.Core, *sdklog.LoggerProvider, error) {
	if cfg.Protocol != "" && cfg.Protocol != "grpc" {
		return nil, nil, unsupportedProtocol(cfg.Protocol + " (logs)")
	}
	ctx := context.Background()

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	host, insecure := otlpEndpoint(cfg)
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(host)}
	if insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(cfg.Headers))
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otlp log exporter: %w", err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	)
	return otelzap.NewCore(cfg.ServiceName, otelzap.WithLoggerProvider(provider)), provider, nil
}

// Debug logs a debug message with context
func (l *Logger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.logWithContext(ctx, zap.DebugLevel, msg, nil, fields...)
}

// Info logs an info message with context
func (l *Logger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.logWithContext(ctx, zap.InfoLevel, msg, nil, fields...)
}

// Warn logs a warning message with context
func (l *Logger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.logWithContext(ctx, zap.WarnLevel, msg, nil, fields...)
}

// Error logs an error message with context. A nil err adds no error field.
func (l *Logger) Error(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	l.logWithContext(ctx, zap.ErrorLevel, msg, err, fields...)
}

// logWithContext adds the trace and span ids of ctx and the submission id, when present
func (l *Logger) logWithContext(ctx context.Context, level zapcore.Level, msg string, err error, fields ...map[string]interface{}) {
	ce := l.Logger.Check(level, msg)
	if ce == nil {
		return
	}

	all := mergeFields(fields...)
	if err != nil {
		all["error"] = err.Error()
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		all["trace_id"] = sc.TraceID().String()
		all["span_id"] = sc.SpanID().String()
	}
	if id := contextutils.GetSubmissionIDFromContext(ctx); id != "" {
		if _, set := all["submission_id"]; !set {
			all["submission_id"] = id
		}
	}

	zapFields := make([]zap.Field, 0, len(all))
	for k, v := range all {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	ce.Write(zapFields...)
}

// mergeFields copies the field maps into a new map; later maps win on conflicts
func mergeFields(fields ...map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{})
	for _, fieldMap := range fields {
		for k, v := range fieldMap {
			merged[k] = v
		}
	}
	return merged
}

// Sync flushes buffered log entries, including those queued for OTLP export
func (l *Logger) Sync() error {
	if l.provider != nil {
		if err := l.provider.ForceFlush(context.Background()); err != nil {
			return err
		}
	}
	return l.Logger.Sync()
}
