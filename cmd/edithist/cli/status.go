package cli

import (
	"fmt"
	"time"

	"github.com/edithist/edithist/internal/logstore"
	"github.com/edithist/edithist/internal/review"
	"github.com/spf13/cobra"
)

func newStatusCmd(flags *globalFlags) *cobra.Command {
	var conversation, file, statusStr, op, since string
	var limit int

	cmd := &cobra.Command{
		Use:     "status",
		Aliases: []string{"st"},
		Short:   "List journal entries, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := resolve(cmd, flags)
			if err != nil {
				return err
			}

			effectiveLimit := limit
			if effectiveLimit == unsetLimit {
				effectiveLimit = cc.Settings.DefaultStatusLimit
			}

			filter := review.StatusFilter{
				ConversationID: conversation,
				FilePath:       file,
				Status:         logstore.Status(statusStr),
				Operation:      logstore.Operation(op),
				Limit:          effectiveLimit,
			}
			if since != "" {
				d, err := parseTimeFilter(since)
				if err != nil {
					return NewExitError(ExitUnexpectedError, err)
				}
				filter.Since = time.Now().Add(-d)
			}

			entries, err := cc.Controller.Status(filter)
			if err != nil {
				return err
			}

			printStatusTable(cmd, entries, cc.ColorOn)
			return nil
		},
	}

	cmd.Flags().StringVarP(&conversation, "conversation", "c", "", "Filter by conversation ID prefix or suffix")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Filter by file path substring")
	cmd.Flags().StringVar(&statusStr, "status", "", "Filter by status (pending, accepted, rejected, done, failed)")
	cmd.Flags().StringVar(&op, "op", "", "Filter by operation (create, replace, edit, delete, move, snapshot, revert)")
	cmd.Flags().StringVar(&since, "since", "", "Only show entries within this window (e.g. 30s, 5m, 2d)")
	cmd.Flags().IntVar(&limit, "limit", unsetLimit, "Max entries to show (0 = unlimited; unset = settings default)")

	return cmd
}

// unsetLimit is the --limit flag's sentinel default, distinguishing "not
// passed" (use settings.json's default_status_limit) from an explicit
// "--limit 0" (unlimited, per spec.md §4.7).
const unsetLimit = -1

func printStatusTable(cmd *cobra.Command, entries []logstore.Entry, colorOn bool) {
	w := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(w, "No matching entries.")
		return
	}
	for _, e := range entries {
		short := e.EditID
		if len(short) > 8 {
			short = short[:8]
		}
		line := fmt.Sprintf("%s  %-9s %-8s %-7s %s", short, e.Operation, e.Status, formatTimestampRelative(e.Timestamp), e.FilePath)
		fmt.Fprintln(w, colorizeStatusLine(e.Status, line, colorOn))
	}
}

func colorizeStatusLine(status logstore.Status, line string, colorOn bool) string {
	switch status {
	case logstore.StatusAccepted, logstore.StatusDone:
		return colorize(colorOn, colorGreen, line)
	case logstore.StatusRejected, logstore.StatusFailed:
		return colorize(colorOn, colorRed, line)
	case logstore.StatusPending:
		return colorize(colorOn, colorYellow, line)
	default:
		return line
	}
}
