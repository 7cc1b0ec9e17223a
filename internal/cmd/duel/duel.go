// Package duel parses duel command flags and composes the server entrypoint.
package duel

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/wordduel/internal/platform/cmd"
	server "github.com/louisbranch/wordduel/internal/services/duel/app"
	"github.com/louisbranch/wordduel/internal/services/duel/domain/room"
	"github.com/louisbranch/wordduel/internal/services/duel/reconnect"
	"github.com/louisbranch/wordduel/internal/services/duel/storage/sqlite"
	"github.com/louisbranch/wordduel/internal/services/duel/words"
)

// Word sources accepted by WORDDUEL_WORD_SOURCE.
const (
	WordSourceStatic = "static"
	WordSourceSQLite = "sqlite"
	WordSourceHTTP   = "http"
)

// Config holds duel command configuration.
type Config struct {
	HTTPAddr          string        `env:"WORDDUEL_HTTP_ADDR"           envDefault:":8090"`
	GRPCAddr          string        `env:"WORDDUEL_GRPC_ADDR"           envDefault:":8091"`
	MaxConns          int           `env:"WORDDUEL_MAX_CONNS"           envDefault:"1024"`
	WordSource        string        `env:"WORDDUEL_WORD_SOURCE"         envDefault:"static"`
	WordsDBPath       string        `env:"WORDDUEL_WORDS_DB_PATH"       envDefault:"data/words.db"`
	WordAPIURL        string        `env:"WORDDUEL_WORD_API_URL"        envDefault:"https://random-word-api.herokuapp.com/word"`
	WordTimeout       time.Duration `env:"WORDDUEL_WORD_TIMEOUT"        envDefault:"3s"`
	ReconnectGrace    time.Duration `env:"WORDDUEL_RECONNECT_GRACE"     envDefault:"30s"`
	FinishedRetention time.Duration `env:"WORDDUEL_FINISHED_RETENTION"  envDefault:"10s"`
	ReconnectKey      string        `env:"WORDDUEL_RECONNECT_HMAC_KEY"`
	ReconnectTokenTTL time.Duration `env:"WORDDUEL_RECONNECT_TOKEN_TTL" envDefault:"1h"`
	Reward            int           `env:"WORDDUEL_REWARD"              envDefault:"10"`
	MaxAttempts       int           `env:"WORDDUEL_MAX_ATTEMPTS"        envDefault:"6"`
	ShutdownTimeout   time.Duration `env:"WORDDUEL_SHUTDOWN_TIMEOUT"    envDefault:"5s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "duel HTTP listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "gRPC health listen address (empty disables it)")
	fs.IntVar(&cfg.MaxConns, "max-conns", cfg.MaxConns, "maximum concurrent HTTP connections")
	fs.StringVar(&cfg.WordSource, "word-source", cfg.WordSource, "word source: static, sqlite or http")
	fs.StringVar(&cfg.WordsDBPath, "words-db", cfg.WordsDBPath, "sqlite word catalog path")
	fs.StringVar(&cfg.WordAPIURL, "word-api-url", cfg.WordAPIURL, "random word API URL")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "graceful shutdown budget for HTTP and telemetry")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the word supplier and reconnect signer, then serves duels until
// the context ends.
func Run(ctx context.Context, cfg Config) error {
	options := entrypoint.RunOptions{ShutdownTimeout: cfg.ShutdownTimeout}
	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceDuel, options, func(ctx context.Context) error {
		supplier, closeSupplier, err := newSupplier(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := closeSupplier(); err != nil {
				log.Printf("duel: close word source: %v", err)
			}
		}()

		signer, err := newSigner(cfg)
		if err != nil {
			return err
		}

		if err := server.Run(ctx, server.Config{
			HTTPAddr:          cfg.HTTPAddr,
			GRPCAddr:          cfg.GRPCAddr,
			MaxConns:          cfg.MaxConns,
			Supplier:          supplier,
			Rules:             room.Rules{Reward: cfg.Reward, MaxAttempts: cfg.MaxAttempts},
			Signer:            signer,
			WordTimeout:       cfg.WordTimeout,
			ReconnectGrace:    cfg.ReconnectGrace,
			FinishedRetention: cfg.FinishedRetention,
			ShutdownTimeout:   cfg.ShutdownTimeout,
		}); err != nil {
			return fmt.Errorf("serve duel: %w", err)
		}
		return nil
	})
}

// newSupplier opens the configured word source. Every source is normalized
// so the registry only ever sees lower-case a-z words.
func newSupplier(cfg Config) (words.Supplier, func() error, error) {
	noClose := func() error { return nil }
	switch strings.ToLower(strings.TrimSpace(cfg.WordSource)) {
	case "", WordSourceStatic:
		static, err := words.NewStatic(words.DefaultList, nil)
		if err != nil {
			return nil, nil, err
		}
		return words.Normalizing{Next: static}, noClose, nil
	case WordSourceSQLite:
		store, err := sqlite.Open(cfg.WordsDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open word catalog: %w", err)
		}
		return words.Normalizing{Next: store}, store.Close, nil
	case WordSourceHTTP:
		if strings.TrimSpace(cfg.WordAPIURL) == "" {
			return nil, nil, errors.New("word API URL is required for the http word source")
		}
		return words.Normalizing{Next: words.NewHTTP(cfg.WordAPIURL, cfg.WordTimeout)}, noClose, nil
	default:
		return nil, nil, fmt.Errorf("unknown word source %q", cfg.WordSource)
	}
}

// newSigner decodes the configured reconnect key. Without one, a random key
// is generated and tokens stop working after a restart.
func newSigner(cfg Config) (*reconnect.Signer, error) {
	var key []byte
	if strings.TrimSpace(cfg.ReconnectKey) == "" {
		key = make([]byte, reconnect.MinKeyBytes)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate reconnect key: %w", err)
		}
		log.Printf("duel: WORDDUEL_RECONNECT_HMAC_KEY is not set; reconnect tokens will not survive a restart")
	} else {
		decoded, err := reconnect.DecodeKey(cfg.ReconnectKey)
		if err != nil {
			return nil, fmt.Errorf("decode reconnect key: %w", err)
		}
		key = decoded
	}
	signer, err := reconnect.NewSigner(reconnect.Config{Key: key, TTL: cfg.ReconnectTokenTTL})
	if err != nil {
		return nil, fmt.Errorf("init reconnect signer: %w", err)
	}
	return signer, nil
}
