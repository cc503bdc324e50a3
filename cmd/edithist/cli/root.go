// Package cli implements the edithist reviewer CLI: the cobra command tree
// over internal/review's Review Controller, grounded on the teacher's
// cmd/entire/cli command layer (root.go's one-constructor-per-file
// convention, help.go's custom help command, SIGINT-cancelable main).
package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version information, settable at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// globalFlags holds the persistent flags shared by every subcommand, per
// spec.md §6.2.
type globalFlags struct {
	workspace    string
	verbose      bool
	timeoutSecs  int
	forceCleanup bool
}

// NewRootCmd builds the edithist command tree.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "edithist",
		Short:         "Review the edit history engine's journal of agent-made file mutations",
		Long:          "edithist inspects, accepts, rejects, and interactively reviews the journal\nof filesystem mutations an AI agent recorded while working in a workspace.",
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if flags.forceCleanup {
				return runForceCleanup(cmd, flags)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.workspace, "workspace", "w", "", "Workspace root override (default: discovered from cwd)")
	cmd.PersistentFlags().BoolVar(&flags.verbose, "verbose", false, "Enable debug logging")
	cmd.PersistentFlags().IntVar(&flags.timeoutSecs, "timeout", 0, "Lock acquisition timeout in seconds (default: settings.json, else 10)")
	cmd.PersistentFlags().BoolVar(&flags.forceCleanup, "force-cleanup", false, "Sweep stale locks before running the command")

	cmd.AddCommand(newStatusCmd(flags))
	cmd.AddCommand(newShowCmd(flags))
	cmd.AddCommand(newAcceptCmd(flags))
	cmd.AddCommand(newRejectCmd(flags))
	cmd.AddCommand(newReviewCmd(flags))
	cmd.AddCommand(newCleanupCmd(flags))
	cmd.AddCommand(newVersionCmd())

	cmd.SetHelpCommand(NewHelpCmd(cmd))

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("edithist %s (%s)\n", Version, Commit)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
