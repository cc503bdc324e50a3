package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanupCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "cleanup",
		Aliases: []string{"clean"},
		Short:   "Sweep the history root for stale lock directories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := resolve(cmd, flags)
			if err != nil {
				return err
			}
			removed, err := cc.Controller.Cleanup()
			if err != nil {
				return err
			}
			if len(removed) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No stale locks found.")
				return nil
			}
			for _, path := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "removed stale lock %s\n", path)
			}
			return nil
		},
	}
}
