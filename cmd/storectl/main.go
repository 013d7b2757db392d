package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"storeops/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		if cli.GetExitCode(err) == cli.ExitCommandError {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
