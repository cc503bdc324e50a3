package cli

import (
	"errors"
	"fmt"

	"github.com/edithist/edithist/internal/review"
	"github.com/spf13/cobra"
)

func newRejectCmd(flags *globalFlags) *cobra.Command {
	var editFlag, convFlag string

	cmd := &cobra.Command{
		Use:     "reject",
		Aliases: []string{"r"},
		Short:   "Reject a pending edit, or every pending edit in a conversation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := resolve(cmd, flags)
			if err != nil {
				return err
			}
			targets, err := resolveTargets(cc, editFlag, convFlag)
			if err != nil {
				return err
			}
			for _, editID := range targets {
				if err := rejectOne(cmd, cc, editID); err != nil {
					if errors.Is(err, ErrPromptCancelled) {
						fmt.Fprintln(cmd.OutOrStdout(), "reject cancelled.")
						return nil
					}
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&editFlag, "edit", "e", "", "Edit ID (or unique prefix) to reject")
	cmd.Flags().StringVarP(&convFlag, "conversation", "c", "", "Reject every pending edit in this conversation")

	return cmd
}

func rejectOne(cmd *cobra.Command, cc *commandContext, editID string) error {
	entries, err := cc.Controller.Status(review.StatusFilter{})
	if err != nil {
		return err
	}
	entry := findEntry(entries, editID)

	confirmed, err := confirmExternalModification(cmd, cc, entry, editID, "rejecting")
	if err != nil {
		return err
	}

	if err := cc.Controller.Reject(editID, confirmed); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rejected %s\n", shortID(editID))
	return nil
}
