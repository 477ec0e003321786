package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config selects what gets exported.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// Endpoint is the OTLP/HTTP base URL, e.g. http://localhost:4318.
	// Empty keeps the SDK providers local: spans and metrics are still
	// recorded, nothing is exported.
	Endpoint string
	Tracing  bool
	Metrics  bool
}

// ShutdownFunc flushes and stops the providers.
type ShutdownFunc func(context.Context) error

// Providers are the installed SDK providers. Nil fields were not enabled.
type Providers struct {
	Tracer *sdktrace.TracerProvider
	Meter  *sdkmetric.MeterProvider
	Logger *sdklog.LoggerProvider
}

// Init installs global providers for the enabled signals. Logs are
// exported only when an endpoint is set.
func Init(ctx context.Context, cfg Config) (*Providers, ShutdownFunc, error) {
	p := &Providers{}
	noop := func(context.Context) error { return nil }
	if !cfg.Tracing && !cfg.Metrics && cfg.Endpoint == "" {
		return p, noop, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(versionOrDefault(cfg.ServiceVersion)),
		),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, noop, fmt.Errorf("create resource: %w", err)
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")

	if cfg.Tracing {
		p.Tracer, err = newTracerProvider(ctx, endpoint, res)
		if err != nil {
			return nil, noop, fmt.Errorf("init tracer provider: %w", err)
		}
		otel.SetTracerProvider(p.Tracer)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	if cfg.Metrics {
		p.Meter, err = newMeterProvider(ctx, endpoint, res)
		if err != nil {
			return nil, noop, errors.Join(fmt.Errorf("init meter provider: %w", err), p.shutdown(ctx))
		}
		otel.SetMeterProvider(p.Meter)
	}

	if endpoint != "" {
		p.Logger, err = newLoggerProvider(ctx, endpoint, res)
		if err != nil {
			return nil, noop, errors.Join(fmt.Errorf("init logger provider: %w", err), p.shutdown(ctx))
		}
		global.SetLoggerProvider(p.Logger)
	}

	return p, p.shutdown, nil
}

func (p *Providers) shutdown(ctx context.Context) error {
	var errs []error
	if p.Tracer != nil {
		errs = append(errs, p.Tracer.Shutdown(ctx))
	}
	if p.Meter != nil {
		errs = append(errs, p.Meter.Shutdown(ctx))
	}
	if p.Logger != nil {
		errs = append(errs, p.Logger.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func newTracerProvider(ctx context.Context, endpoint string, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if endpoint != "" {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpointURL(endpoint+"/v1/traces"),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxExportBatchSize(512),
		))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

func newMeterProvider(ctx context.Context, endpoint string, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if endpoint != "" {
		exporter, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpointURL(endpoint+"/v1/metrics"),
			otlpmetrichttp.WithInsecure(),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(15*time.Second),
		)))
	}
	return sdkmetric.NewMeterProvider(opts...), nil
}

func newLoggerProvider(ctx context.Context, endpoint string, res *resource.Resource) (*sdklog.LoggerProvider, error) {
	exporter, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpointURL(endpoint+"/v1/logs"),
		otlploghttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}
	return sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter,
			sdklog.WithExportInterval(5*time.Second),
			sdklog.WithExportMaxBatchSize(512),
		)),
		sdklog.WithResource(res),
	), nil
}

func versionOrDefault(v string) string {
	if v == "" {
		return "dev"
	}
	return v
}
