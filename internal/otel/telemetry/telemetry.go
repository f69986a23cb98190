package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/earthboundkid/versioninfo/v2"
	sentryotel "github.com/getsentry/sentry-go/otel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/dynoinc/incidentbridge/internal/otel/trace"
)

const (
	ExporterNone = "none"
	ExporterOTLP = "otlp"
)

type Config struct {
	ServiceName string
	Environment string
	Exporter    string
	SampleRate  float64
	// Sentry adds the Sentry span processor and propagator. sentry.Init must have run.
	Sentry bool
}

type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	// MetricsHandler serves the Prometheus exposition for /metrics.
	MetricsHandler http.Handler
}

// Setup builds the tracer and meter providers and installs them as the otel globals.
func Setup(ctx context.Context, c Config) (*Telemetry, error) {
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(c.ServiceName),
			semconv.ServiceVersion(versioninfo.Short()),
			semconv.DeploymentEnvironment(c.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("building resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch c.Exporter {
	case ExporterOTLP:
		exporter, err = otlptracehttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating OTLP exporter: %w", err)
		}
	case ExporterNone, "":
		exporter = trace.NewNoOpSpanExporter()
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", c.Exporter)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(trace.NewForceBasedSampler(c.SampleRate)),
		sdktrace.WithBatcher(exporter),
	}
	propagators := []propagation.TextMapPropagator{propagation.TraceContext{}, propagation.Baggage{}}
	if c.Sentry {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sentryotel.NewSentrySpanProcessor()))
		propagators = append(propagators, sentryotel.NewSentryPropagator())
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricExporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("creating prometheus exporter: %w", err), tp.Shutdown(ctx))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(metricExporter),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagators...))

	return &Telemetry{
		TracerProvider: tp,
		MeterProvider:  mp,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, nil
}

// Shutdown flushes pending spans and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(t.TracerProvider.Shutdown(ctx), t.MeterProvider.Shutdown(ctx))
}
