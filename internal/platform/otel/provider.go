// Package otel wires the OpenTelemetry trace and meter providers shared by
// every wordduel process.
package otel

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/louisbranch/wordduel/internal/platform/config"
)

// Settings controls trace and metric export. Both stay off unless an
// endpoint is set.
type Settings struct {
	Endpoint    string  `env:"WORDDUEL_OTEL_ENDPOINT"`
	Enabled     bool    `env:"WORDDUEL_OTEL_ENABLED" envDefault:"true"`
	SampleRatio float64 `env:"WORDDUEL_OTEL_SAMPLE_RATIO" envDefault:"1"`
	// MetricsEndpoint overrides the metrics URL. Empty means Endpoint with
	// the OTLP metrics path.
	MetricsEndpoint string        `env:"WORDDUEL_OTEL_METRICS_ENDPOINT"`
	MetricInterval  time.Duration `env:"WORDDUEL_OTEL_METRIC_INTERVAL" envDefault:"30s"`
}

// Active reports whether telemetry should be exported.
func (s Settings) Active() bool {
	return s.Enabled && s.Endpoint != ""
}

// metricsURL resolves where metrics are pushed.
func (s Settings) metricsURL() (string, error) {
	if s.MetricsEndpoint != "" {
		return s.MetricsEndpoint, nil
	}
	u, err := url.Parse(s.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse otel endpoint: %w", err)
	}
	u.Path = "/v1/metrics"
	return u.String(), nil
}

// Setup reads Settings from the environment and registers global tracer and
// meter providers for serviceName. When telemetry is inactive it returns a
// no-op shutdown and leaves the global providers untouched.
//
// The returned shutdown flushes pending spans and metrics and should be
// deferred.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	var settings Settings
	if err := config.ParseEnv(&settings); err != nil {
		return noop, err
	}
	return SetupWith(ctx, serviceName, settings)
}

// SetupWith is Setup with explicit settings.
func SetupWith(ctx context.Context, serviceName string, settings Settings) (func(context.Context) error, error) {
	if !settings.Active() {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(settings.Endpoint))
	if err != nil {
		return noop, fmt.Errorf("create trace exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noop, fmt.Errorf("build otel resource: %w", err)
	}

	metricsURL, err := settings.metricsURL()
	if err != nil {
		return noop, err
	}
	metricExporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(metricsURL))
	if err != nil {
		return noop, fmt.Errorf("create metric exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(settings.SampleRatio)),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, periodicOptions(settings.MetricInterval)...)),
		sdkmetric.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func periodicOptions(interval time.Duration) []sdkmetric.PeriodicReaderOption {
	if interval <= 0 {
		return nil
	}
	return []sdkmetric.PeriodicReaderOption{sdkmetric.WithInterval(interval)}
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	if ratio <= 0 {
		return sdktrace.NeverSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

func noop(context.Context) error { return nil }
