package server

import (
	"context"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// counterValue sums the data points of an int64 sum named name whose
// attributes include every attr.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}
	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %s data = %T, want int64 sum", name, m.Data)
			}
			for _, point := range sum.DataPoints {
				if hasAttributes(point.Attributes, attrs) {
					total += point.Value
				}
			}
		}
	}
	return total
}

func hasAttributes(set attribute.Set, attrs []attribute.KeyValue) bool {
	for _, want := range attrs {
		got, ok := set.Value(want.Key)
		if !ok || got != want.Value {
			return false
		}
	}
	return true
}

func TestServerCountsGuessesThroughMeterProvider(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	server, err := NewServer(Config{
		HTTPAddr:      "127.0.0.1:0",
		Supplier:      fixedWord("cat"),
		Signer:        newTestSigner(t),
		MeterProvider: provider,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(server.Close)
	srv := httptest.NewServer(server.httpServer.Handler)
	t.Cleanup(srv.Close)

	alice, bob, _, _ := startMatch(t, srv)
	alice.send(frameGuessMade, guessMadePayload{Letter: "ab"})
	forged := 999
	alice.send(frameGuessMade, guessMadePayload{Letter: "c", Score: &forged})
	var ack guessAck
	alice.expect(frameAck, &ack)
	if ack.Score != 10 {
		t.Fatalf("score = %d, want 10", ack.Score)
	}
	bob.expect(frameOpponentGuessMade, nil)

	if got := counterValue(t, reader, "wordduel.guesses.score_hint_mismatch"); got != 1 {
		t.Fatalf("score hint mismatches = %d, want 1", got)
	}
	if got := counterValue(t, reader, "wordduel.guesses", attribute.String("status", "applied")); got != 1 {
		t.Fatalf("applied guesses = %d, want 1", got)
	}
	if got := counterValue(t, reader, "wordduel.guesses.discarded"); got != 1 {
		t.Fatalf("discarded guesses = %d, want 1", got)
	}
	if got := counterValue(t, reader, "wordduel.rooms.started"); got != 1 {
		t.Fatalf("rooms started = %d, want 1", got)
	}
	if got := counterValue(t, reader, "wordduel.rooms.active"); got != 1 {
		t.Fatalf("active rooms = %d, want 1", got)
	}
}

func TestServerCountsFinishedRoomsByReason(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	srv := startTestServer(t, newTestService(t, func(cfg *serviceConfig) {
		cfg.MeterProvider = provider
	}))
	alice, _, _, _ := startMatch(t, srv)
	alice.guess("c")
	alice.guess("a")
	alice.guess("t")
	alice.expect(frameGameOver, nil)

	if got := counterValue(t, reader, "wordduel.rooms.finished", attribute.String("reason", "completed")); got != 1 {
		t.Fatalf("completed rooms = %d, want 1", got)
	}
	if got := counterValue(t, reader, "wordduel.rooms.active"); got != 0 {
		t.Fatalf("active rooms = %d, want 0", got)
	}
}
