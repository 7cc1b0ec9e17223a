package server

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	platformgrpc "github.com/louisbranch/wordduel/internal/platform/grpc"
)

func TestNewServerRequiresHTTPAddr(t *testing.T) {
	if _, err := NewServer(Config{Supplier: fixedWord("cat"), Signer: newTestSigner(t)}); err == nil {
		t.Fatal("expected error for empty http address")
	}
}

func TestNewServerRequiresSigner(t *testing.T) {
	if _, err := NewServer(Config{HTTPAddr: "127.0.0.1:0", Supplier: fixedWord("cat")}); err == nil {
		t.Fatal("expected error for missing signer")
	}
}

func TestNewServerRequiresSupplier(t *testing.T) {
	if _, err := NewServer(Config{HTTPAddr: "127.0.0.1:0", Signer: newTestSigner(t)}); err == nil {
		t.Fatal("expected error for missing supplier")
	}
}

func TestServeRunsHTTPAndHealth(t *testing.T) {
	server, err := NewServer(Config{
		HTTPAddr: "127.0.0.1:0",
		GRPCAddr: "127.0.0.1:0",
		MaxConns: 8,
		Supplier: fixedWord("cat"),
		Signer:   newTestSigner(t),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer server.Close()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, listener)
	}()

	resp, err := http.Get("http://" + listener.Addr().String() + "/up")
	if err != nil {
		cancel()
		t.Fatalf("get /up: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer dialCancel()
	conn, err := platformgrpc.DialWithHealth(dialCtx, server.health.Addr(), time.Second, t.Logf)
	if err != nil {
		cancel()
		t.Fatalf("dial health: %v", err)
	}
	if err := platformgrpc.WaitForHealth(dialCtx, conn, HealthService, t.Logf); err != nil {
		t.Fatalf("wait for %s: %v", HealthService, err)
	}
	_ = conn.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRunReturnsInitError(t *testing.T) {
	if err := Run(context.Background(), Config{}); err == nil {
		t.Fatal("expected init error")
	}
}
