package cli

import (
	"errors"
	"fmt"

	"github.com/edithist/edithist/internal/edithisterr"
	"github.com/edithist/edithist/internal/logstore"
	"github.com/edithist/edithist/internal/review"
	"github.com/spf13/cobra"
)

func newShowCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "show <id>",
		Aliases: []string{"sh", "s"},
		Short:   "Show a single edit or an entire conversation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := resolve(cmd, flags)
			if err != nil {
				return err
			}
			return runShow(cmd, cc, args[0])
		},
	}
	return cmd
}

func runShow(cmd *cobra.Command, cc *commandContext, identifier string) error {
	kind, entries, err := cc.Controller.Show(identifier)
	if err != nil {
		return err
	}

	switch kind {
	case review.MatchConversation:
		for _, e := range entries {
			printEntrySummary(cmd, e)
			printEntryDiffOrSummary(cmd, cc, e)
		}
		return nil
	case review.MatchEdit:
		printEntrySummary(cmd, entries[0])
		printEntryDiffOrSummary(cmd, cc, entries[0])
		return nil
	case review.MatchAmbiguous:
		labels := make([]string, len(entries))
		for i, e := range entries {
			labels[i] = formatEntrySummary(e)
		}
		choice, err := pickAmbiguous(fmt.Sprintf("Ambiguous id %q matches multiple entries:", identifier), labels)
		if err != nil {
			if errors.Is(err, ErrPromptCancelled) {
				return nil
			}
			return edithisterr.Wrap(edithisterr.AmbiguousIdentifier, err, "selecting among matches for %q", identifier)
		}
		printEntrySummary(cmd, entries[choice])
		printEntryDiffOrSummary(cmd, cc, entries[choice])
		return nil
	default:
		return edithisterr.New(edithisterr.IO, "no entry or conversation found matching %q", identifier)
	}
}

func printEntrySummary(cmd *cobra.Command, e logstore.Entry) {
	fmt.Fprintln(cmd.OutOrStdout(), formatEntrySummary(e))
}

func formatEntrySummary(e logstore.Entry) string {
	short := e.EditID
	if len(short) > 8 {
		short = short[:8]
	}
	extra := ""
	if e.Operation == logstore.OpMove {
		extra = fmt.Sprintf(" (from %s)", e.SourcePath)
	}
	return fmt.Sprintf("%s  conv=%s  %-9s %-8s %s  %s%s",
		short, e.ConversationID, e.Operation, e.Status, formatTimestampAbsolute(e.Timestamp), e.FilePath, extra)
}

func printEntryDiffOrSummary(cmd *cobra.Command, cc *commandContext, e logstore.Entry) {
	switch e.Operation {
	case logstore.OpCreate, logstore.OpReplace, logstore.OpEdit:
		diffText, err := cc.Controller.DiffText(e)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "  (failed to read diff: %v)\n", err)
			return
		}
		printDiff(cmd.OutOrStdout(), diffText, cc.ColorOn)
	case logstore.OpDelete:
		fmt.Fprintf(cmd.OutOrStdout(), "  deleted %s\n", e.FilePath)
	case logstore.OpMove:
		fmt.Fprintf(cmd.OutOrStdout(), "  moved %s -> %s\n", e.SourcePath, e.FilePath)
	case logstore.OpSnapshot:
		fmt.Fprintf(cmd.OutOrStdout(), "  snapshot of %s -> %s\n", e.FilePath, e.CheckpointFile)
	case logstore.OpRevert:
		fmt.Fprintf(cmd.OutOrStdout(), "  revert of %s (rejected edit %s)\n", e.FilePath, e.RejectedEditID)
	}
}
