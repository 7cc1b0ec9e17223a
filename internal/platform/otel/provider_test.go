package otel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestSetupNoopWhenEndpointEmpty(t *testing.T) {
	t.Setenv("WORDDUEL_OTEL_ENDPOINT", "")
	t.Setenv("WORDDUEL_OTEL_ENABLED", "")

	shutdown, err := Setup(context.Background(), "duel")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupNoopWhenExplicitlyDisabled(t *testing.T) {
	t.Setenv("WORDDUEL_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("WORDDUEL_OTEL_ENABLED", "false")

	shutdown, err := Setup(context.Background(), "duel")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("noop shutdown should ignore cancelled context: %v", err)
	}
}

func TestSetupRejectsMalformedEnv(t *testing.T) {
	t.Setenv("WORDDUEL_OTEL_ENABLED", "not-a-bool")
	if _, err := Setup(context.Background(), "duel"); err == nil {
		t.Fatal("expected parse error for malformed enabled flag")
	}
}

func TestSetupWithEndpointCreatesProvider(t *testing.T) {
	// Non-routable address: nothing is exported before shutdown.
	restoreGlobals(t)
	shutdown, err := SetupWith(context.Background(), "duel", Settings{
		Endpoint:    "http://192.0.2.1:4318",
		Enabled:     true,
		SampleRatio: 0.5,
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, ok := otel.GetMeterProvider().(*sdkmetric.MeterProvider); !ok {
		t.Fatalf("meter provider = %T, want sdk meter provider", otel.GetMeterProvider())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = shutdown(ctx)
}

func TestSetupExportsMetricsOnShutdown(t *testing.T) {
	restoreGlobals(t)
	paths := make(chan string, 8)
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(collector.Close)

	shutdown, err := SetupWith(context.Background(), "duel", Settings{
		Endpoint:       collector.URL,
		Enabled:        true,
		SampleRatio:    1,
		MetricInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	counter, err := otel.Meter("test").Int64Counter("wordduel.test.events")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	counter.Add(context.Background(), 1)

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	select {
	case path := <-paths:
		if path != "/v1/metrics" {
			t.Fatalf("export path = %q, want /v1/metrics", path)
		}
	default:
		t.Fatal("expected metrics to be exported on shutdown")
	}
}

func TestMetricsURL(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		want     string
	}{
		{name: "derived", settings: Settings{Endpoint: "http://collector:4318"}, want: "http://collector:4318/v1/metrics"},
		{name: "derived replaces path", settings: Settings{Endpoint: "https://collector/v1/traces"}, want: "https://collector/v1/metrics"},
		{name: "override", settings: Settings{Endpoint: "http://a", MetricsEndpoint: "http://b/m"}, want: "http://b/m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.settings.metricsURL()
			if err != nil {
				t.Fatalf("metricsURL: %v", err)
			}
			if got != tt.want {
				t.Fatalf("metricsURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func restoreGlobals(t *testing.T) {
	t.Helper()
	tp, mp := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
	})
}

func TestSettingsActive(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		want     bool
	}{
		{name: "no endpoint", settings: Settings{Enabled: true}, want: false},
		{name: "disabled", settings: Settings{Endpoint: "http://x", Enabled: false}, want: false},
		{name: "active", settings: Settings{Endpoint: "http://x", Enabled: true}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.settings.Active(); got != tt.want {
				t.Fatalf("Active() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSamplerBounds(t *testing.T) {
	if got := sampler(2).Description(); got != "AlwaysOnSampler" {
		t.Fatalf("sampler(2) = %q, want AlwaysOnSampler", got)
	}
	if got := sampler(0).Description(); got != "AlwaysOffSampler" {
		t.Fatalf("sampler(0) = %q, want AlwaysOffSampler", got)
	}
}
