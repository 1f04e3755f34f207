package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/kestrelsec/a11yaudit/cmd"
	"github.com/kestrelsec/a11yaudit/internal/observability"
	"github.com/kestrelsec/a11yaudit/internal/reporting"
)

func main() {
	// Interrupts cancel the command context so browser sessions and the
	// report writer shut down cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()

	if err != nil {
		var gateErr *reporting.GateError
		switch {
		case errors.Is(err, context.Canceled):
			os.Exit(130)
		case errors.As(err, &gateErr):
			// Gate breaches are the CI-facing failure mode.
			os.Exit(2)
		default:
			os.Exit(1)
		}
	}
}
