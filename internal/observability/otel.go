// Package observability wires process-wide telemetry: the OpenTelemetry
// tracer provider with its OTLP/gRPC exporter, the request filter for the
// Gin tracing middleware, and Prometheus gauges over marketplace tables.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc/credentials"

	"github.com/thaihand/carry-backend/internal/config"
)

// SetupOTel installs a global tracer provider exporting over OTLP/gRPC and
// returns its shutdown, which flushes buffered spans. With tracing disabled
// both globals are left alone and the shutdown is a no-op. The exporter
// connects lazily, so an unreachable collector does not fail startup.
func SetupOTel(ctx context.Context, cfg config.OTELConfig, version string) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	tp, err := newTracerProvider(ctx, cfg, version, sdktrace.WithBatcher(exp))
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, err
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

// newTracerProvider builds the provider around a span processor option.
// Incoming sampled parents are always honored; new roots are sampled at
// cfg.SampleRatio.
func newTracerProvider(ctx context.Context, cfg config.OTELConfig, version string, processor sdktrace.TracerProviderOption) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(version),
		),
		resource.WithHost(),
		resource.WithProcessRuntimeVersion(),
	)
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}
	return sdktrace.NewTracerProvider(
		processor,
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(res),
	), nil
}

// untracedPrefixes are probe, scrape and docs endpoints.
var untracedPrefixes = []string{"/health", "/metrics", "/swagger/"}

// TraceFilter reports whether an inbound request should be traced. It is
// passed to otelgin.WithFilter.
func TraceFilter(r *http.Request) bool {
	for _, pre := range untracedPrefixes {
		if strings.HasPrefix(r.URL.Path, pre) {
			return false
		}
	}
	return true
}
