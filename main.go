// bankd - a concurrent bank session server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bankd/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "bankd: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
