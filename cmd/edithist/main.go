// Command edithist is the reviewer CLI for the edit history engine: it
// inspects, accepts, rejects, and interactively reviews the journal of
// filesystem mutations an AI agent recorded while working in a workspace.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/edithist/edithist/cmd/edithist/cli"
	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	rootCmd := cli.NewRootCmd()
	err := rootCmd.ExecuteContext(ctx)

	if err != nil {
		var silent *cli.SilentError
		var exitErr *cli.ExitError

		switch {
		case errors.Is(err, cli.ErrInterrupted):
			fmt.Fprintln(rootCmd.OutOrStderr(), "interrupted.")
			cancel()
			os.Exit(cli.ExitUserInterrupt)
		case errors.As(err, &exitErr):
			cancel()
			os.Exit(exitErr.Code)
		case errors.As(err, &silent):
			// Command already printed the error.
			cancel()
			os.Exit(1)
		case strings.Contains(err.Error(), "unknown command") || strings.Contains(err.Error(), "unknown flag"):
			showSuggestion(rootCmd, err)
			cancel()
			os.Exit(2)
		default:
			fmt.Fprintln(rootCmd.OutOrStderr(), err)
			cancel()
			os.Exit(cli.ClassifyExit(err))
		}
	}
	cancel()
}

func showSuggestion(cmd *cobra.Command, err error) {
	fmt.Fprint(cmd.OutOrStderr(), cmd.UsageString())
	fmt.Fprintf(cmd.OutOrStderr(), "\nError: invalid usage: %v\n", err)
}
