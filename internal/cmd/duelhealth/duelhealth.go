// Package duelhealth probes a running duel server through its gRPC health
// service.
package duelhealth

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/wordduel/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/wordduel/internal/platform/grpc"
	"github.com/louisbranch/wordduel/internal/platform/timeouts"
	server "github.com/louisbranch/wordduel/internal/services/duel/app"
)

// Config holds health probe configuration.
type Config struct {
	Addr    string        `env:"WORDDUEL_HEALTH_ADDR"    envDefault:"localhost:8091"`
	Timeout time.Duration `env:"WORDDUEL_HEALTH_TIMEOUT" envDefault:"5s"`
	Service string
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Service: server.HealthService}
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "duel gRPC health address")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "how long to wait for SERVING")
	fs.StringVar(&cfg.Service, "service", cfg.Service, "health service name (empty checks the whole server)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run waits until the server reports SERVING and writes the result to out.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		return errors.New("output is required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return errors.New("health address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = timeouts.GRPCDial
	}

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceDuelHealth, func(ctx context.Context) error {
		probeCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()

		conn, err := platformgrpc.DialWithHealth(probeCtx, addr, cfg.Timeout, log.Printf)
		if err != nil {
			return fmt.Errorf("probe %s: %w", addr, err)
		}
		defer func() {
			_ = conn.Close()
		}()
		if cfg.Service != "" {
			if err := platformgrpc.WaitForHealth(probeCtx, conn, cfg.Service, log.Printf); err != nil {
				return fmt.Errorf("probe %s service %q: %w", addr, cfg.Service, err)
			}
		}
		_, err = fmt.Fprintf(out, "%s SERVING\n", addr)
		return err
	})
}
