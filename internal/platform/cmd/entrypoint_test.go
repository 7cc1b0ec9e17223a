package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
	"time"

	"github.com/louisbranch/wordduel/internal/platform/timeouts"
)

type testConfig struct {
	Address string `env:"WORDDUEL_CMD_TEST_ADDRESS" envDefault:"127.0.0.1:8080"`
	Mode    string `env:"WORDDUEL_CMD_TEST_MODE" envDefault:"server"`
}

func TestParseConfigReadsEnvAndFlags(t *testing.T) {
	t.Setenv("WORDDUEL_CMD_TEST_ADDRESS", "env:9000")
	t.Setenv("WORDDUEL_CMD_TEST_MODE", "env-mode")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfgRef := testConfig{}
	if err := ParseConfig(&cfgRef); err != nil {
		t.Fatalf("load config defaults: %v", err)
	}
	fs.StringVar(&cfgRef.Address, "address", cfgRef.Address, "address")
	fs.StringVar(&cfgRef.Mode, "mode", cfgRef.Mode, "mode")

	if err := ParseArgs(fs, []string{"-address", "flag:9001"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if cfgRef.Address != "flag:9001" {
		t.Fatalf("expected flag value for address, got %q", cfgRef.Address)
	}
	if cfgRef.Mode != "env-mode" {
		t.Fatalf("expected env default mode, got %q", cfgRef.Mode)
	}
}

func TestParseArgsRejectsNilParser(t *testing.T) {
	if err := ParseArgs(nil, []string{}); err == nil {
		t.Fatal("expected parse args to reject nil parser")
	}
}

func TestRunWithTelemetryRejectsMissingInputs(t *testing.T) {
	if err := RunWithTelemetry(nil, "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(nil, ServiceDuel, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}

func TestRunWithTelemetryRunsLoop(t *testing.T) {
	t.Setenv("WORDDUEL_OTEL_ENDPOINT", "")
	called := false
	err := RunWithTelemetry(context.Background(), ServiceWordImport, func(context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("run with telemetry: %v", err)
	}
	if !called {
		t.Fatal("expected run function to be called")
	}
}

func TestRunWithTelemetryAndOptionsBoundsShutdown(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		want    time.Duration
	}{
		{name: "configured", timeout: 250 * time.Millisecond, want: 250 * time.Millisecond},
		{name: "default", want: timeouts.Shutdown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var remaining time.Duration
			original := setupTelemetry
			setupTelemetry = func(context.Context, string) (func(context.Context) error, error) {
				return func(ctx context.Context) error {
					deadline, ok := ctx.Deadline()
					if !ok {
						t.Fatal("expected shutdown deadline")
					}
					remaining = time.Until(deadline)
					return nil
				}, nil
			}
			t.Cleanup(func() { setupTelemetry = original })

			err := RunWithTelemetryAndOptions(context.Background(), ServiceDuel, RunOptions{ShutdownTimeout: tt.timeout},
				func(context.Context) error { return nil })
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if remaining <= 0 || remaining > tt.want {
				t.Fatalf("shutdown budget = %v, want within %v", remaining, tt.want)
			}
			if remaining < tt.want-time.Second/10 {
				t.Fatalf("shutdown budget = %v, want close to %v", remaining, tt.want)
			}
		})
	}
}

func TestRunWithTelemetryReturnsSetupError(t *testing.T) {
	original := setupTelemetry
	setupTelemetry = func(context.Context, string) (func(context.Context) error, error) {
		return nil, errors.New("boom")
	}
	t.Cleanup(func() { setupTelemetry = original })

	called := false
	err := RunWithTelemetry(context.Background(), ServiceDuel, func(context.Context) error {
		called = true
		return nil
	})
	if err == nil || called {
		t.Fatalf("err = %v called = %v, want setup error without running", err, called)
	}
}

func TestLogPrefix(t *testing.T) {
	if got := LogPrefix(ServiceDuel); got != "[DUEL] " {
		t.Fatalf("LogPrefix = %q, want %q", got, "[DUEL] ")
	}
	if got := LogPrefix(" word-import "); got != "[WORD-IMPORT] " {
		t.Fatalf("LogPrefix = %q, want %q", got, "[WORD-IMPORT] ")
	}
}
