package observability

import (
	"context"
	"errors"
	"net/url"
	"os"
	"strings"

	"supportapp/internal/config"
	contextutils "supportapp/internal/utils"

	autosdk "go.opentelemetry.io/auto/sdk"
	"go.opentelemetry.io/otel"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Providers holds what SetupObservability installed. A nil field was not enabled.
type Providers struct {
	Tracer trace.TracerProvider
	Meter  *metric.MeterProvider
	Logs   *sdklog.LoggerProvider
}

// Shutdown flushes and stops every installed provider
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	// The auto SDK provider has no Shutdown method.
	if tp, ok := p.Tracer.(interface{ Shutdown(context.Context) error }); ok {
		errs = append(errs, tp.Shutdown(ctx))
	}
	if p.Meter != nil {
		errs = append(errs, p.Meter.Shutdown(ctx))
	}
	if p.Logs != nil {
		errs = append(errs, p.Logs.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// SetupObservability initializes tracing, metrics and logging for a service.
// serviceName overrides cfg.ServiceName when set; logLevel is a zap level name.
func SetupObservability(cfg *config.OpenTelemetryConfig, serviceName, logLevel string) (*Providers, *Logger, error) {
	if serviceName != "" {
		cfg.ServiceName = serviceName
	}
	if err := os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName); err != nil {
		return nil, nil, err
	}
	if err := os.Setenv("OTEL_SERVICE_VERSION", cfg.ServiceVersion); err != nil {
		return nil, nil, err
	}

	providers := &Providers{}
	logger := NewLoggerWithLevel(cfg, ParseLevel(logLevel))
	providers.Logs = logger.provider

	if cfg.EnableTracing {
		if cfg.UseAutoSDK {
			providers.Tracer = autosdk.TracerProvider()
		} else {
			tp, err := InitStandardTracing(cfg)
			if err != nil {
				return nil, nil, err
			}
			providers.Tracer = tp
		}
		otel.SetTracerProvider(providers.Tracer)
		InitTracing()
		InitGlobalTracer()

		logger.Info(context.Background(), "Tracing enabled", map[string]interface{}{
			"service_name": cfg.ServiceName,
			"auto_sdk":     cfg.UseAutoSDK,
		})
	}

	if cfg.EnableMetrics {
		mp, err := InitMetrics(cfg)
		if err != nil {
			return nil, nil, err
		}
		providers.Meter = mp
		otel.SetMeterProvider(mp)
	}

	return providers, logger, nil
}

// newResource describes the service to every exporter
func newResource(ctx context.Context, cfg *config.OpenTelemetryConfig) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otel resource: %w", err)
	}
	return res, nil
}

// otlpEndpoint turns the configured endpoint into the host:port the OTLP exporters expect.
// An http:// scheme implies an insecure connection.
func otlpEndpoint(cfg *config.OpenTelemetryConfig) (host string, insecure bool) {
	insecure = cfg.Insecure
	if !strings.Contains(cfg.Endpoint, "://") {
		return cfg.Endpoint, insecure
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Host == "" {
		return cfg.Endpoint, insecure
	}
	return u.Host, insecure || u.Scheme == "http"
}

func unsupportedProtocol(protocol string) error {
	return contextutils.WrapErrorf(contextutils.ErrInternalError, "unsupported otel protocol: %s", protocol)
}
