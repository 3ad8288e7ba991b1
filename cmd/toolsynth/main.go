// toolsynth reconstructs a chain of MCP pipeline stages into one
// self-contained Go program.
//
// Usage:
//
//	toolsynth build <addr> -o <dir> [--strict]
//	toolsynth inspect <addr> [--search <query>]
//	toolsynth serve <dir>
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
