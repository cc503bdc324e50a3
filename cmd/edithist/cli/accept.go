package cli

import (
	"errors"
	"fmt"

	"github.com/edithist/edithist/internal/edithisterr"
	"github.com/edithist/edithist/internal/logstore"
	"github.com/edithist/edithist/internal/review"
	"github.com/spf13/cobra"
)

func newAcceptCmd(flags *globalFlags) *cobra.Command {
	var editFlag, convFlag string

	cmd := &cobra.Command{
		Use:     "accept",
		Aliases: []string{"a"},
		Short:   "Accept a pending edit, or every pending edit in a conversation",
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
				if err := acceptOne(cmd, cc, editID); err != nil {
					if errors.Is(err, ErrPromptCancelled) {
						fmt.Fprintln(cmd.OutOrStdout(), "accept cancelled.")
						return nil
					}
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&editFlag, "edit", "e", "", "Edit ID (or unique prefix) to accept")
	cmd.Flags().StringVarP(&convFlag, "conversation", "c", "", "Accept every pending edit in this conversation")

	return cmd
}

// acceptOne accepts a single edit, prompting the user about any external
// modification before proceeding with confirmed=true, per spec.md §4.7
// step 1.
func acceptOne(cmd *cobra.Command, cc *commandContext, editID string) error {
	entries, err := cc.Controller.Status(review.StatusFilter{})
	if err != nil {
		return err
	}
	entry := findEntry(entries, editID)

	confirmed, err := confirmExternalModification(cmd, cc, entry, editID, "accepting")
	if err != nil {
		return err
	}

	if err := cc.Controller.Accept(editID, confirmed); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "accepted %s\n", shortID(editID))
	return nil
}

// resolveTargets resolves -e/-c into a list of actionable edit_ids,
// oldest-first for -c so cascaded accepts/rejects apply in journal order.
func resolveTargets(cc *commandContext, editFlag, convFlag string) ([]string, error) {
	switch {
	case editFlag != "" && convFlag != "":
		return nil, edithisterr.New(edithisterr.IO, "pass either -e or -c, not both")
	case editFlag != "":
		id, err := resolveEditID(cc, editFlag)
		if err != nil {
			return nil, err
		}
		return []string{id}, nil
	case convFlag != "":
		return resolveConversationTargets(cc, convFlag)
	default:
		return nil, edithisterr.New(edithisterr.IO, "pass -e <edit_id> or -c <conversation_id>")
	}
}

// resolveEditID resolves an edit-id prefix to a full edit_id, prompting on
// ambiguity.
func resolveEditID(cc *commandContext, identifier string) (string, error) {
	kind, entries, err := cc.Controller.Show(identifier)
	if err != nil {
		return "", err
	}
	switch kind {
	case review.MatchEdit:
		return entries[0].EditID, nil
	case review.MatchConversation:
		return "", edithisterr.New(edithisterr.IO, "%q looks like a conversation id; use -c instead of -e", identifier)
	case review.MatchAmbiguous:
		labels := make([]string, len(entries))
		for i, e := range entries {
			labels[i] = formatEntrySummary(e)
		}
		choice, err := pickAmbiguous(fmt.Sprintf("Ambiguous id %q matches multiple entries:", identifier), labels)
		if err != nil {
			return "", edithisterr.Wrap(edithisterr.AmbiguousIdentifier, err, "selecting among matches for %q", identifier)
		}
		return entries[choice].EditID, nil
	default:
		return "", edithisterr.New(edithisterr.IO, "no entry matching %q", identifier)
	}
}

// resolveConversationTargets returns every pending edit_id in a
// conversation (bookkeeping entries excluded), oldest first.
func resolveConversationTargets(cc *commandContext, identifier string) ([]string, error) {
	kind, entries, err := cc.Controller.Show(identifier)
	if err != nil {
		return nil, err
	}
	if kind != review.MatchConversation {
		return nil, edithisterr.New(edithisterr.IO, "%q does not match a conversation", identifier)
	}
	logstore.SortEntries(entries)

	var ids []string
	for _, e := range entries {
		if e.Operation == logstore.OpSnapshot || e.Operation == logstore.OpRevert {
			continue
		}
		if e.Status != logstore.StatusPending {
			continue
		}
		ids = append(ids, e.EditID)
	}
	return ids, nil
}

func findEntry(entries []logstore.Entry, editID string) logstore.Entry {
	for _, e := range entries {
		if e.EditID == editID {
			return e
		}
	}
	return logstore.Entry{EditID: editID}
}

func shortID(editID string) string {
	if len(editID) > 8 {
		return editID[:8]
	}
	return editID
}

// confirmExternalModification shows the diff between the file's current
// on-disk content and its journal-expected content (if they diverge) and
// asks the user whether to proceed anyway, per spec.md §4.7 step 1.
func confirmExternalModification(cmd *cobra.Command, cc *commandContext, entry logstore.Entry, editID, verb string) (bool, error) {
	mod, err := cc.Controller.CheckExternalModification(entry.FilePath)
	if err != nil {
		return false, err
	}
	if !mod.Modified {
		return false, nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s was modified outside the tracked tool calls:\n", entry.FilePath)
	printDiff(cmd.OutOrStdout(), mod.Diff, cc.ColorOn)

	ok, err := confirmYesNo(fmt.Sprintf("Proceed with %s %s anyway?", verb, shortID(editID)), "This overwrites the out-of-band change.")
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrPromptCancelled
	}
	return true, nil
}
