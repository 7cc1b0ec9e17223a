package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

func startHealthServer(t *testing.T, services ...string) (*HealthServer, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := newHealthServer(listener, services...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx)
	}()
	return server, func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("serve: %v", err)
		}
	}
}

func TestDialWithHealthServing(t *testing.T) {
	server, stop := startHealthServer(t, "wordduel.v1.Duel")
	defer stop()
	server.MarkServing()

	conn, err := DialWithHealth(context.Background(), server.Addr(), 2*time.Second, nil)
	if err != nil {
		t.Fatalf("dial with health: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close conn: %v", err)
	}
}

func TestWaitForHealthTransitionsToServing(t *testing.T) {
	server, stop := startHealthServer(t)
	defer stop()

	go func() {
		time.Sleep(200 * time.Millisecond)
		server.MarkServing()
	}()

	conn, err := DialWithHealth(context.Background(), server.Addr(), 3*time.Second, nil)
	if err != nil {
		t.Fatalf("dial after transition: %v", err)
	}
	_ = conn.Close()
}

func TestDialWithHealthTimesOutWhenNotServing(t *testing.T) {
	server, stop := startHealthServer(t)
	defer stop()

	_, err := DialWithHealth(context.Background(), server.Addr(), 300*time.Millisecond, nil)
	if err == nil {
		t.Fatal("expected health wait to fail")
	}
	var dialErr *DialError
	if !errors.As(err, &dialErr) {
		t.Fatalf("expected *DialError, got %T", err)
	}
	if dialErr.Stage != DialStageHealth {
		t.Fatalf("stage = %s, want %s", dialErr.Stage, DialStageHealth)
	}
}

func TestWaitForHealthRejectsNilConn(t *testing.T) {
	if err := WaitForHealth(context.Background(), nil, "", nil); err == nil {
		t.Fatal("expected error for nil connection")
	}
}

func TestHealthServerReportsNamedService(t *testing.T) {
	server, stop := startHealthServer(t, "wordduel.v1.Duel")
	defer stop()
	server.MarkServing()

	conn, err := DialWithHealth(context.Background(), server.Addr(), 2*time.Second, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := WaitForHealth(ctx, conn, "wordduel.v1.Duel", nil); err != nil {
		t.Fatalf("named service health: %v", err)
	}
	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: "wordduel.v1.Duel"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("status = %s, want SERVING", resp.GetStatus())
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	_, stop := startHealthServer(t)
	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}
