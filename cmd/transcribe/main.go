package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"transcribe/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Error:", err)
			if hint := services.Hint(err); hint != "" {
				fmt.Fprintln(os.Stderr, "Hint:", hint)
			}
		}
	}
	stop()
	os.Exit(services.ExitCode(err))
}
