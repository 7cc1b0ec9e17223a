// Package main imports a word list into the duel server's sqlite catalog.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	entrypoint "github.com/louisbranch/wordduel/internal/platform/cmd"
	"github.com/louisbranch/wordduel/internal/platform/config"
	"github.com/louisbranch/wordduel/internal/tools/wordimport"
)

func main() {
	cfg, err := wordimport.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Usagef("Error: %v", err)
	}
	log.SetPrefix(entrypoint.LogPrefix(entrypoint.ServiceWordImport))

	if _, err := wordimport.Run(context.Background(), cfg, os.Stdout); err != nil {
		config.Exitf("Error: %v", err)
	}
}
