// Package observability wires OpenTelemetry tracing to an OTLP collector.
//
// Spans are exported over OTLP HTTP to a collector (default localhost:4318)
// which owns authentication and forwarding to whatever backend it is
// configured for, so no vendor credential ever enters this process.
//
// Tracing is opt-in via config:
//
//	otel:
//	  enabled: true
//	  endpoint: "localhost:4318"
//	  service_name: "docent"
//	  environment: "dev"
//
// When the exporter cannot be created the application keeps running with
// tracing disabled instead of failing startup.
package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// DefaultEndpoint is the default local collector OTLP HTTP endpoint.
const DefaultEndpoint = "localhost:4318"

// Config for OTLP trace export.
type Config struct {
	// Endpoint is the collector OTLP HTTP endpoint (default: localhost:4318)
	Endpoint string
	// Environment is the deployment environment (dev, staging, prod)
	Environment string
	// ServiceName is the service name shown in the tracing backend
	ServiceName string
}

// Setup installs a global TracerProvider exporting to the configured
// collector and returns a shutdown function that flushes pending spans.
//
// If the exporter cannot be created, tracing is disabled and the returned
// shutdown is a no-op; startup continues either way.
func Setup(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "docent"
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(), // local collector, no TLS
	)
	if err != nil {
		slog.Warn("failed to create trace exporter, tracing disabled", "error", err)
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("deployment.environment", cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	slog.Debug("tracing enabled",
		"endpoint", endpoint,
		"service", serviceName,
		"environment", cfg.Environment,
	)

	return provider.Shutdown, nil
}
