// Package hmackey prints a random reconnect-token signing key in the
// KEY=value form the duel server reads from its environment.
package hmackey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/louisbranch/wordduel/internal/services/duel/reconnect"
)

// EnvVar is the variable the duel server reads its signing key from.
const EnvVar = "WORDDUEL_RECONNECT_HMAC_KEY"

// Config holds configuration for HMAC key generation.
type Config struct {
	Bytes  int
	EnvVar string
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Bytes: reconnect.MinKeyBytes, EnvVar: EnvVar}
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of random bytes")
	fs.StringVar(&cfg.EnvVar, "env", cfg.EnvVar, "variable name printed before the key")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run generates the key and writes it to out.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if cfg.Bytes < reconnect.MinKeyBytes {
		return fmt.Errorf("bytes must be at least %d", reconnect.MinKeyBytes)
	}
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}
	name := strings.TrimSpace(cfg.EnvVar)
	if name == "" {
		name = EnvVar
	}

	buf := make([]byte, cfg.Bytes)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return fmt.Errorf("generate random bytes: %w", err)
	}
	_, err := fmt.Fprintf(out, "%s=%s\n", name, hex.EncodeToString(buf))
	return err
}
