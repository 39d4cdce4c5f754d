// Package telemetry configures the OpenTelemetry meter provider and its
// exporter.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/ekaya-inc/ekaya-querycache/pkg/config"
)

// ServiceName identifies this service in exported metrics.
const ServiceName = "ekaya-querycache"

// Telemetry owns the meter provider for the process.
type Telemetry struct {
	mp      *sdkmetric.MeterProvider
	handler http.Handler
}

// Setup builds a meter provider for the configured exporter and installs it
// as the global provider.
func Setup(ctx context.Context, cfg config.MetricsConfig, version string) (*Telemetry, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build telemetry resource: %w", err)
	}

	t := &Telemetry{}
	reader, err := t.newReader(ctx, cfg.Exporter)
	if err != nil {
		return nil, err
	}

	t.mp = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(t.mp)
	return t, nil
}

// newReader creates the metrics reader for exporter. The prometheus reader
// also sets the scrape handler.
func (t *Telemetry) newReader(ctx context.Context, exporter string) (sdkmetric.Reader, error) {
	switch exporter {
	case config.MetricsExporterPrometheus:
		registry := prometheus.NewRegistry()
		exp, err := promexporter.New(promexporter.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		t.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
		return exp, nil

	case config.MetricsExporterStdout:
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stdout))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout metrics exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	case config.MetricsExporterOTLP:
		endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		if endpoint == "" {
			endpoint = os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
		}
		if endpoint == "" {
			return nil, fmt.Errorf("OTLP metrics endpoint not configured: set OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
		}
		exp, err := otlpmetricgrpc.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	case config.MetricsExporterNone, "":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(io.Discard))
		if err != nil {
			return nil, fmt.Errorf("failed to create discard metrics exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	default:
		return nil, fmt.Errorf("unknown metrics exporter: %q", exporter)
	}
}

// Meter returns a meter scoped to name.
func (t *Telemetry) Meter(name string) metric.Meter {
	return t.mp.Meter(name)
}

// Handler returns the Prometheus scrape handler, or nil when another
// exporter is configured.
func (t *Telemetry) Handler() http.Handler {
	return t.handler
}

// Shutdown flushes pending metrics and stops the provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.mp == nil {
		return nil
	}
	if err := t.mp.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down meter provider: %w", err)
	}
	return nil
}
