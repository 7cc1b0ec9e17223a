// Package main prints a fresh reconnect-token signing key for the duel server.
package main

import (
	"flag"
	"os"

	"github.com/louisbranch/wordduel/internal/platform/config"
	"github.com/louisbranch/wordduel/internal/tools/hmackey"
)

func main() {
	cfg, err := hmackey.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Usagef("parse flags: %v", err)
	}
	if err := hmackey.Run(cfg, os.Stdout, nil); err != nil {
		config.Exitf("generate key: %v", err)
	}
}
