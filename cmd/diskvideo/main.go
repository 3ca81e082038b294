// Package main provides diskvideo, a tool drawing test images through disk video sessions and inspecting
// their snapshots.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	exitCode := run(ctx, os.Stdout, os.Stderr, os.Args[1:])
	cancel()

	os.Exit(exitCode)
}
