package observe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chinmina/chinmina-gateway/internal/config"
	"github.com/go-logr/zerologr"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ShutdownFunc flushes and stops the configured telemetry providers.
type ShutdownFunc func(context.Context) error

// Configure sets up the global OpenTelemetry trace and metric providers. When
// telemetry is disabled, the no-op global providers are left in place and the
// returned shutdown does nothing.
func Configure(ctx context.Context, cfg config.ObserveConfig) (ShutdownFunc, error) {
	if !cfg.Enabled {
		log.Info().Msg("telemetry: disabled")
		return func(context.Context) error { return nil }, nil
	}

	configureSDKLogging(cfg.SDKLogLevel)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	res, err := resource.New(ctx,
		resource.WithAttributes(attribute.String("service.name", cfg.ServiceName)),
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry resource creation failed: %w", err)
	}

	shutdowns := []ShutdownFunc{}
	shutdown := func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdowns {
			errs = append(errs, fn(ctx))
		}
		return errors.Join(errs...)
	}

	traceExporter, err := newTraceExporter(ctx, cfg.Type)
	if err != nil {
		return nil, fmt.Errorf("trace exporter creation failed: %w", err)
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter,
			sdktrace.WithBatchTimeout(time.Duration(cfg.TraceBatchTimeoutSeconds)*time.Second),
		),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	shutdowns = append(shutdowns, tracerProvider.Shutdown)

	if cfg.MetricsEnabled {
		metricExporter, err := newMetricExporter(ctx, cfg.Type)
		if err != nil {
			// release the tracer provider already started
			_ = shutdown(ctx)
			return nil, fmt.Errorf("metric exporter creation failed: %w", err)
		}

		meterProvider := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
				sdkmetric.WithInterval(time.Duration(cfg.MetricReadIntervalSeconds)*time.Second),
			)),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(meterProvider)
		shutdowns = append(shutdowns, meterProvider.Shutdown)
	}

	log.Info().
		Str("type", cfg.Type).
		Bool("metrics", cfg.MetricsEnabled).
		Str("service", cfg.ServiceName).
		Msg("telemetry: configured")

	return shutdown, nil
}

func newTraceExporter(ctx context.Context, exporterType string) (sdktrace.SpanExporter, error) {
	switch exporterType {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "grpc":
		return otlptracegrpc.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported exporter type %q", exporterType)
	}
}

func newMetricExporter(ctx context.Context, exporterType string) (sdkmetric.Exporter, error) {
	switch exporterType {
	case "stdout":
		return stdoutmetric.New()
	case "grpc":
		return otlpmetricgrpc.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported exporter type %q", exporterType)
	}
}

// configureSDKLogging routes the OpenTelemetry SDK's internal logging and
// errors through zerolog.
func configureSDKLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Warn().Str("level", level).Msg("telemetry: invalid SDK log level, using info")
		lvl = zerolog.InfoLevel
	}

	sdkLogger := log.Logger.With().Str("component", "otel").Logger().Level(lvl)
	otel.SetLogger(zerologr.New(&sdkLogger))

	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		sdkLogger.Warn().Err(err).Msg("telemetry: SDK error")
	}))
}
