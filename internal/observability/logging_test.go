package observability

import (
	"context"
	"errors"
	"testing"

	"supportapp/internal/config"
	contextutils "supportapp/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observedLogger(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &Logger{Logger: zap.New(core)}, logs
}

func TestLogWithContextAddsTraceInfo(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	logger, logs := observedLogger(zap.InfoLevel)

	ctx, span := tp.Tracer("test-tracer").Start(context.Background(), "test-span")
	defer span.End()

	logger.Info(ctx, "ticket created", map[string]interface{}{"issue_key": "SUP-1"})

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
	assert.Equal(t, "SUP-1", fields["issue_key"])
}

func TestLogWithContextNoSpan(t *testing.T) {
	logger, logs := observedLogger(zap.InfoLevel)

	logger.Info(context.Background(), "test message", nil)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.NotContains(t, fields, "trace_id")
	assert.NotContains(t, fields, "span_id")
}

func TestLogWithContextAddsSubmissionID(t *testing.T) {
	logger, logs := observedLogger(zap.InfoLevel)
	ctx := contextutils.WithSubmissionID(context.Background(), "sub-42")

	logger.Warn(ctx, "upload failed")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "sub-42", logs.All()[0].ContextMap()["submission_id"])
}

func TestLogger_ErrorField(t *testing.T) {
	logger, logs := observedLogger(zap.InfoLevel)

	logger.Error(context.Background(), "tracker failed", errors.New("status 502"), map[string]interface{}{"status": 502})
	logger.Error(context.Background(), "no cause", nil)

	require.Equal(t, 2, logs.Len())
	first := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, first.Level)
	assert.Equal(t, "status 502", first.ContextMap()["error"])
	assert.EqualValues(t, 502, first.ContextMap()["status"])
	assert.NotContains(t, logs.All()[1].ContextMap(), "error")
}

func TestLogger_DoesNotMutateCallerFields(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	logger, _ := observedLogger(zap.InfoLevel)
	ctx, span := tp.Tracer("test").Start(context.Background(), "span")
	defer span.End()

	fields := map[string]interface{}{"a": 1}
	logger.Info(ctx, "one", fields)
	logger.Error(ctx, "two", errors.New("boom"), fields)

	assert.Equal(t, map[string]interface{}{"a": 1}, fields)
}

func TestLogger_LevelFiltering(t *testing.T) {
	logger, logs := observedLogger(zap.WarnLevel)

	logger.Debug(context.Background(), "debug")
	logger.Info(context.Background(), "info")
	logger.Warn(context.Background(), "warn")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "warn", logs.All()[0].Message)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("loud"))
}

func TestNewLogger_Disabled(t *testing.T) {
	logger := NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	require.NotNil(t, logger)
	assert.Nil(t, logger.provider)
	assert.NotPanics(t, func() { logger.Info(context.Background(), "dropped") })

	assert.NotNil(t, NewLogger(nil))
}

func TestNewLogger_HTTPProtocolSkipsOTLP(t *testing.T) {
	logger := NewLogger(&config.OpenTelemetryConfig{EnableLogging: true, Endpoint: "localhost:4318", Protocol: "http"})
	require.NotNil(t, logger)
	assert.Nil(t, logger.provider)
}
