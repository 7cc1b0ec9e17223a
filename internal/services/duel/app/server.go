// Package server runs the duel websocket server: matchmaking, one actor per
// active room, and the gRPC health endpoint operators probe.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	platformgrpc "github.com/louisbranch/wordduel/internal/platform/grpc"
	"github.com/louisbranch/wordduel/internal/platform/timeouts"
	"github.com/louisbranch/wordduel/internal/services/duel/domain/room"
	"github.com/louisbranch/wordduel/internal/services/duel/reconnect"
	"github.com/louisbranch/wordduel/internal/services/duel/words"
)

// HealthService is the gRPC health service name the duel server reports.
const HealthService = "wordduel.Duel"

// Config defines the duel server settings.
type Config struct {
	// HTTPAddr is the address the websocket server listens on.
	HTTPAddr string
	// GRPCAddr is the health server address. Empty disables it.
	GRPCAddr string
	// MaxConns caps concurrent HTTP connections. Zero means no cap.
	MaxConns int

	Supplier          words.Supplier
	Rules             room.Rules
	Signer            *reconnect.Signer
	WordTimeout       time.Duration
	ReconnectGrace    time.Duration
	FinishedRetention time.Duration

	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Server hosts the duel HTTP and health servers.
type Server struct {
	httpAddr        string
	maxConns        int
	shutdownTimeout time.Duration
	httpServer      *http.Server
	health          *platformgrpc.HealthServer
	svc             *duelService
}

// NewServer builds a configured duel server.
func NewServer(config Config) (*Server, error) {
	return NewServerWithContext(context.Background(), config)
}

// NewServerWithContext builds a configured duel server whose rooms live at
// most as long as ctx.
func NewServerWithContext(ctx context.Context, config Config) (*Server, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	svc, err := newDuelService(ctx, serviceConfig{
		Supplier:          config.Supplier,
		Rules:             config.Rules,
		WordTimeout:       config.WordTimeout,
		ReconnectGrace:    config.ReconnectGrace,
		FinishedRetention: config.FinishedRetention,
		Signer:            config.Signer,
		TracerProvider:    config.TracerProvider,
		MeterProvider:     config.MeterProvider,
	})
	if err != nil {
		return nil, err
	}

	var health *platformgrpc.HealthServer
	if grpcAddr := strings.TrimSpace(config.GRPCAddr); grpcAddr != "" {
		health, err = platformgrpc.NewHealthServer(grpcAddr, HealthService)
		if err != nil {
			svc.close()
			return nil, fmt.Errorf("init health server: %w", err)
		}
	}

	return &Server{
		httpAddr:        httpAddr,
		maxConns:        config.MaxConns,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer: &http.Server{
			Addr:              httpAddr,
			Handler:           newHandler(svc),
			ReadHeaderTimeout: config.ReadHeaderTimeout,
		},
		health: health,
		svc:    svc,
	}, nil
}

// Run creates and serves a duel server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServerWithContext(ctx, config)
	if err != nil {
		return fmt.Errorf("init duel server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve duel: %w", err)
	}
	return nil
}

// ListenAndServe listens on the configured address and serves until the
// context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("duel server is nil")
	}
	listener, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpAddr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve runs the HTTP server on listener and the health server side by side.
// Both stop when the context ends or either fails.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if s == nil {
		return errors.New("duel server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if s.maxConns > 0 {
		listener = netutil.LimitListener(listener, s.maxConns)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Printf("duel server listening on %s", listener.Addr())
		err := s.httpServer.Serve(listener)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	})
	if s.health != nil {
		group.Go(func() error {
			return s.health.Serve(groupCtx)
		})
		s.health.MarkServing()
	}
	group.Go(func() error {
		<-groupCtx.Done()
		s.svc.close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Close stops every room. It is safe to call more than once.
func (s *Server) Close() {
	if s == nil {
		return
	}
	s.svc.close()
}
