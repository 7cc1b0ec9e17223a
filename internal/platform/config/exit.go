package config

import (
	"fmt"
	"io"
	"os"
)

// Exit codes shared by the command-line tools. Health probes rely on any
// non-zero status meaning "not serving".
const (
	ExitFailure = 1
	ExitUsage   = 2
)

var (
	exitStderr io.Writer = os.Stderr
	exitFunc             = os.Exit
)

// Exitf prints the message to stderr and exits with ExitFailure.
func Exitf(format string, args ...any) {
	ExitCodef(ExitFailure, format, args...)
}

// Usagef prints the message to stderr and exits with ExitUsage. Commands use
// it for flag and configuration errors.
func Usagef(format string, args ...any) {
	ExitCodef(ExitUsage, format, args...)
}

// ExitCodef prints the message to stderr and exits with code.
func ExitCodef(code int, format string, args ...any) {
	fmt.Fprintf(exitStderr, format+"\n", args...)
	exitFunc(code)
}
