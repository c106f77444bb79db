package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dogmatiq/dodeca/config"
	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := newContext()
	defer cancel()

	root := buildRoot(config.Environment())

	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newContext returns a cancelable context that is canceled when the process
// receives a SIGTERM or SIGINT.
func newContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sig)

		select {
		case <-ctx.Done():
		case <-sig:
			cancel()
		}
	}()

	return ctx, cancel
}

// buildRoot creates the root command and its subcommands.
func buildRoot(env config.Bucket) *cobra.Command {
	root := &cobra.Command{
		Use:           "accord",
		Short:         "Orchestrates contract negotiations and data transfers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		createRunCommand(env),
		createSchemaCommand(env),
	)

	return root
}
