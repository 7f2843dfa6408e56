package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

const (
	tracerName = "sprintstats"
	meterName  = "sprintstats"
)

// Providers holds the initialized observability providers.
type Providers struct {
	// Tracer is the named tracer for creating spans.
	Tracer trace.Tracer

	// Meter is the named meter for creating instruments.
	Meter metric.Meter

	// Logger writes to stderr with trace context injection.
	Logger *slog.Logger

	// Gatherer collects the metrics recorded through Meter. It is nil unless
	// Config.Prometheus is set.
	Gatherer prometheus.Gatherer

	// Shutdown flushes pending telemetry and releases resources.
	Shutdown func(ctx context.Context) error
}

// Init builds tracer and meter providers from cfg and registers them as the
// OTel globals. Without an OTLP endpoint tracing is a no-op, and metrics are a
// no-op too unless the Prometheus exporter is requested.
func Init(cfg Config) (Providers, error) {
	logger := NewLogger(os.Stderr, cfg)

	if cfg.OTLPEndpoint == "" && !cfg.Prometheus {
		return Providers{
			Tracer:   nooptrace.NewTracerProvider().Tracer(tracerName),
			Meter:    noopmetric.NewMeterProvider().Meter(meterName),
			Logger:   logger,
			Shutdown: func(context.Context) error { return nil },
		}, nil
	}

	res, err := buildResource(cfg)
	if err != nil {
		return Providers{}, err
	}

	ctx := context.Background()

	var shutdowns []func(context.Context) error

	tracer := nooptrace.NewTracerProvider().Tracer(tracerName)

	if cfg.OTLPEndpoint != "" {
		tp, tpErr := initTracerProvider(ctx, cfg, res)
		if tpErr != nil {
			return Providers{}, tpErr
		}

		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))

		tracer = tp.Tracer(tracerName)
		shutdowns = append(shutdowns, tp.Shutdown)
	}

	mp, gatherer, err := initMeterProvider(ctx, cfg, res)
	if err != nil {
		return Providers{}, errors.Join(err, runShutdowns(ctx, shutdowns))
	}

	otel.SetMeterProvider(mp)

	shutdowns = append(shutdowns, mp.Shutdown)

	timeout := time.Duration(cfg.ShutdownTimeoutSec) * time.Second

	return Providers{
		Tracer:   tracer,
		Meter:    mp.Meter(meterName),
		Logger:   logger,
		Gatherer: gatherer,
		Shutdown: func(shutdownCtx context.Context) error {
			if timeout > 0 {
				var cancel context.CancelFunc

				shutdownCtx, cancel = context.WithTimeout(shutdownCtx, timeout)
				defer cancel()
			}

			return runShutdowns(shutdownCtx, shutdowns)
		},
	}, nil
}

func runShutdowns(ctx context.Context, shutdowns []func(context.Context) error) error {
	var errs []error

	for _, fn := range shutdowns {
		errs = append(errs, fn(ctx))
	}

	return errors.Join(errs...)
}

func buildResource(cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		attribute.String("app.mode", string(cfg.Mode)),
	}

	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}

	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	return res, nil
}

func initTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}

	if cfg.OTLPInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	if len(cfg.OTLPHeaders) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.OTLPHeaders))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	), nil
}

// initMeterProvider attaches an OTLP periodic reader when an endpoint is set
// and a Prometheus exporter on a private registry when requested.
func initMeterProvider(
	ctx context.Context, cfg Config, res *resource.Resource,
) (*sdkmetric.MeterProvider, prometheus.Gatherer, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if cfg.OTLPEndpoint != "" {
		exporterOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}

		if cfg.OTLPInsecure {
			exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
		}

		if len(cfg.OTLPHeaders) > 0 {
			exporterOpts = append(exporterOpts, otlpmetricgrpc.WithHeaders(cfg.OTLPHeaders))
		}

		exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("create metric exporter: %w", err)
		}

		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	}

	var gatherer prometheus.Gatherer

	if cfg.Prometheus {
		registry := prometheus.NewRegistry()

		exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
		if err != nil {
			return nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
		}

		opts = append(opts, sdkmetric.WithReader(exporter))
		gatherer = registry
	}

	return sdkmetric.NewMeterProvider(opts...), gatherer, nil
}
