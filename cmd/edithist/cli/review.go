package cli

import (
	"errors"
	"fmt"

	"github.com/edithist/edithist/internal/logstore"
	"github.com/spf13/cobra"
)

// filterByConversation restricts entries to those whose conversation id has
// convFilter as a prefix or suffix (matching status's -c semantics), or
// returns entries unchanged when convFilter is empty.
func filterByConversation(entries []logstore.Entry, convFilter string) []logstore.Entry {
	if convFilter == "" {
		return entries
	}
	var out []logstore.Entry
	for _, e := range entries {
		if len(e.ConversationID) >= len(convFilter) &&
			(e.ConversationID[:len(convFilter)] == convFilter || e.ConversationID[len(e.ConversationID)-len(convFilter):] == convFilter) {
			out = append(out, e)
		}
	}
	return out
}

func newReviewCmd(flags *globalFlags) *cobra.Command {
	var convFlag string

	cmd := &cobra.Command{
		Use:     "review",
		Aliases: []string{"v"},
		Short:   "Walk pending edits one at a time and accept, reject, or skip each",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := resolve(cmd, flags)
			if err != nil {
				return err
			}
			return runReviewLoop(cmd, cc, convFlag)
		},
	}

	cmd.Flags().StringVarP(&convFlag, "conversation", "c", "", "Only review pending edits from this conversation")

	return cmd
}

// reviewTally accumulates the summary review prints on quit, per spec.md
// §4.7's review command.
type reviewTally struct {
	accepted, rejected, skipped, remaining int
}

func runReviewLoop(cmd *cobra.Command, cc *commandContext, convFilter string) error {
	pending, err := cc.Controller.PendingOldestFirst()
	if err != nil {
		return err
	}
	pending = filterByConversation(pending, convFilter)

	if len(pending) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No pending edits.")
		return nil
	}

	var tally reviewTally
	for i, entry := range pending {
		fmt.Fprintf(cmd.OutOrStdout(), "\n[%d/%d] %s\n", i+1, len(pending), formatEntrySummary(entry))
		printEntryDiffOrSummary(cmd, cc, entry)

		action, err := promptReviewAction(fmt.Sprintf("%s %s?", entry.Operation, entry.FilePath))
		if err != nil && !errors.Is(err, ErrPromptCancelled) {
			return err
		}
		if errors.Is(err, ErrPromptCancelled) {
			action = reviewQuit
		}

		switch action {
		case reviewAccept:
			if rErr := acceptOne(cmd, cc, entry.EditID); rErr != nil {
				if errors.Is(rErr, ErrPromptCancelled) {
					tally.skipped++
					continue
				}
				return rErr
			}
			tally.accepted++
		case reviewReject:
			if rErr := rejectOne(cmd, cc, entry.EditID); rErr != nil {
				if errors.Is(rErr, ErrPromptCancelled) {
					tally.skipped++
					continue
				}
				return rErr
			}
			tally.rejected++
		case reviewSkip:
			tally.skipped++
		case reviewQuit:
			tally.remaining = len(pending) - i - 1
			printReviewSummary(cmd, tally)
			return nil
		}
	}

	printReviewSummary(cmd, tally)
	return nil
}

func printReviewSummary(cmd *cobra.Command, t reviewTally) {
	fmt.Fprintf(cmd.OutOrStdout(), "\naccepted=%d rejected=%d skipped=%d remaining=%d\n",
		t.accepted, t.rejected, t.skipped, t.remaining)
}
