// Package main probes the duel server's gRPC health endpoint. It exits
// non-zero unless the server reports SERVING, which makes it usable as a
// container health check.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/louisbranch/wordduel/internal/cmd/duelhealth"
	"github.com/louisbranch/wordduel/internal/platform/config"
)

func main() {
	cfg, err := duelhealth.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Usagef("parse flags: %v", err)
	}
	if err := duelhealth.Run(context.Background(), cfg, os.Stdout); err != nil {
		config.Exitf("health: %v", err)
	}
}
