// Package observability sets up OpenTelemetry trace export.
//
// The exporter speaks OTLP/HTTP, so any collector listening on the
// standard 4318 port works: Grafana Agent, Datadog Agent, Jaeger, or the
// OpenTelemetry Collector itself. Tracing stays off until an endpoint is
// configured; Setup then installs a global tracer provider and returns a
// shutdown function that flushes pending spans.
package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// Config for the OTLP trace exporter.
type Config struct {
	// Endpoint is the collector OTLP/HTTP endpoint, host:port.
	Endpoint string
	// Insecure disables TLS for the exporter connection (local agents).
	Insecure bool
	// Environment is the deployment environment tag (dev, staging, prod).
	Environment string
	// ServiceName is attached to every span.
	ServiceName string
	// SampleRatio is the parent-based sampling ratio in [0,1].
	// Values outside the range are clamped; 0 uses the default of 1.0.
	SampleRatio float64
}

const (
	// DefaultEndpoint is the standard local OTLP HTTP endpoint.
	DefaultEndpoint = "localhost:4318"

	defaultServiceName = "vitalog"
	defaultEnvironment = "dev"
)

// noopShutdown is returned when tracing is disabled.
func noopShutdown(context.Context) error { return nil }

// Setup installs the global OTel tracer provider. With an empty Endpoint
// it does nothing and returns a no-op shutdown.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (shutdown func(context.Context) error, err error) {
	if cfg.Endpoint == "" {
		return noopShutdown, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultServiceName
	}
	if cfg.Environment == "" {
		cfg.Environment = defaultEnvironment
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.DeploymentEnvironmentName(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	)
	otel.SetTracerProvider(provider)

	logger.Debug("trace export enabled",
		"endpoint", cfg.Endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
		"sample_ratio", cfg.SampleRatio,
	)
	return provider.Shutdown, nil
}

// sampler builds a parent-based ratio sampler. A zero ratio means the
// option was left unset and samples everything.
func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio <= 0 || ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}
