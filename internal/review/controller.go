// Package review implements the human-facing review workflow over the
// edit journal: listing, inspecting, accepting, rejecting, and interactively
// walking pending entries, plus stale-lock cleanup — the engine's Review
// Controller, grounded on the teacher's cmd/entire/cli command layer
// (status.go, rewind.go) generalized from git checkpoints to journal entries.
package review

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/edithist/edithist/internal/edithisterr"
	"github.com/edithist/edithist/internal/filelock"
	"github.com/edithist/edithist/internal/histpath"
	"github.com/edithist/edithist/internal/logstore"
	"github.com/edithist/edithist/internal/reconstruct"
	"github.com/google/uuid"
)

// Controller operates on one workspace's journal.
type Controller struct {
	WorkspaceRoot string
	HistoryRoot   string
	Store         *logstore.Store
}

// New returns a Controller rooted at workspaceRoot.
func New(workspaceRoot string) (*Controller, error) {
	historyRoot, err := histpath.HistoryRoot(workspaceRoot)
	if err != nil {
		return nil, err
	}
	return &Controller{
		WorkspaceRoot: workspaceRoot,
		HistoryRoot:   historyRoot,
		Store:         logstore.New(),
	}, nil
}

// StatusFilter narrows Status's result set. Zero values mean "no filter",
// including Limit: per spec.md §4.7, 0 means unlimited. Callers wanting
// the CLI's page-size default (DefaultStatusLimit) must set Limit to that
// value themselves before calling Status.
type StatusFilter struct {
	ConversationID string
	FilePath       string
	Status         logstore.Status
	Operation      logstore.Operation
	Since          time.Time
	Limit          int
}

// DefaultStatusLimit equals the built-in default of the settings field
// default_status_limit, which is what the CLI applies when the user doesn't
// pass --limit explicitly.
const DefaultStatusLimit = 50

// Status returns entries matching filter, newest first, paginated to
// filter.Limit entries (0 or negative means unlimited).
func (c *Controller) Status(filter StatusFilter) ([]logstore.Entry, error) {
	all, err := c.Store.ReadAll(c.HistoryRoot)
	if err != nil {
		return nil, err
	}

	var matched []logstore.Entry
	for _, e := range all {
		if filter.ConversationID != "" && !matchesConversationFilter(e.ConversationID, filter.ConversationID) {
			continue
		}
		if filter.FilePath != "" && !strings.Contains(e.FilePath, filter.FilePath) && !strings.Contains(e.SourcePath, filter.FilePath) {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.Operation != "" && e.Operation != filter.Operation {
			continue
		}
		if !filter.Since.IsZero() && e.Timestamp.Before(filter.Since) {
			continue
		}
		matched = append(matched, e)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[j].Timestamp.Before(matched[i].Timestamp)
	})

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// MatchKind classifies what an identifier given to Show resolved to.
type MatchKind int

// MatchKind values.
const (
	MatchNone MatchKind = iota
	MatchConversation
	MatchEdit
	MatchAmbiguous
)

// Show resolves identifier against edit_ids (by exact match or, for
// identifiers of 4 or more characters, by prefix) and conversation_ids (by
// exact match, or, when no edit_id matches, by a prefix or suffix shared by
// exactly one conversation), per spec.md §4.7. A
// conversation match returns all of that conversation's entries in
// chronological order. An ambiguous edit_id prefix returns every candidate
// so the caller can present a numbered picker and re-resolve with the
// chosen entry's full edit_id.
func (c *Controller) Show(identifier string) (MatchKind, []logstore.Entry, error) {
	all, err := c.Store.ReadAll(c.HistoryRoot)
	if err != nil {
		return MatchNone, nil, err
	}

	var conversationMatches []logstore.Entry
	var editMatches []logstore.Entry
	seenConversation := false
	for _, e := range all {
		if e.ConversationID == identifier {
			seenConversation = true
		}
		if e.EditID == identifier || (len(identifier) >= 4 && hasPrefix(e.EditID, identifier)) {
			editMatches = append(editMatches, e)
		}
	}
	if seenConversation {
		for _, e := range all {
			if e.ConversationID == identifier {
				conversationMatches = append(conversationMatches, e)
			}
		}
		logstore.SortEntries(conversationMatches)
		return MatchConversation, conversationMatches, nil
	}

	switch len(editMatches) {
	case 0:
		convIDs := map[string]bool{}
		for _, e := range all {
			if matchesConversationFilter(e.ConversationID, identifier) {
				convIDs[e.ConversationID] = true
			}
		}
		if len(convIDs) == 1 {
			for _, e := range all {
				if convIDs[e.ConversationID] {
					conversationMatches = append(conversationMatches, e)
				}
			}
			logstore.SortEntries(conversationMatches)
			return MatchConversation, conversationMatches, nil
		}
		return MatchNone, nil, edithisterr.New(edithisterr.IO, "no entry or conversation found matching %q", identifier)
	case 1:
		return MatchEdit, editMatches, nil
	default:
		logstore.SortEntries(editMatches)
		return MatchAmbiguous, editMatches, nil
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// matchesConversationFilter implements spec.md §4.7's "conversation
// prefix/suffix" matching for `status`'s -c flag.
func matchesConversationFilter(conversationID, filter string) bool {
	return strings.HasPrefix(conversationID, filter) || strings.HasSuffix(conversationID, filter)
}

// findByEditID scans every conversation log for the entry with the given
// edit_id, returning its log path alongside it.
func (c *Controller) findByEditID(editID string) (logstore.Entry, string, error) {
	logsDir := filepath.Join(c.HistoryRoot, histpath.LogsDir)
	matches, err := filepath.Glob(filepath.Join(logsDir, "*.log"))
	if err != nil {
		return logstore.Entry{}, "", edithisterr.Wrap(edithisterr.IO, err, "listing log files")
	}
	for _, logPath := range matches {
		entries, err := c.Store.Read(logPath)
		if err != nil {
			return logstore.Entry{}, "", err
		}
		for _, e := range entries {
			if e.EditID == editID {
				return e, logPath, nil
			}
		}
	}
	return logstore.Entry{}, "", edithisterr.New(edithisterr.IO, "no entry with edit_id %q", editID)
}

// ExternalModResult describes the outcome of checking a file for out-of-band
// edits before Accept or Reject proceeds.
type ExternalModResult struct {
	Modified bool
	Diff     string
}

// checkExternalModification compares filePath's current on-disk content
// against what the journal (including the entry under review) says it
// should be, per spec.md's external-modification-escalation invariant.
func (c *Controller) checkExternalModification(filePath string) (*ExternalModResult, error) {
	all, err := c.Store.ReadAll(c.HistoryRoot)
	if err != nil {
		return nil, err
	}

	expected, present, err := reconstruct.Preview(c.HistoryRoot, all, filePath, true)
	if err != nil {
		return nil, err
	}

	absPath, err := histpath.VerifyPathIsSafe(filePath, c.WorkspaceRoot)
	if err != nil {
		return nil, err
	}
	currentData, statErr := os.ReadFile(absPath) //nolint:gosec // already safety-checked
	currentPresent := statErr == nil
	if statErr != nil && !os.IsNotExist(statErr) {
		return nil, edithisterr.Wrap(edithisterr.IO, statErr, "reading %q", absPath)
	}

	if present != currentPresent {
		return &ExternalModResult{Modified: true, Diff: "(presence mismatch: journal and working tree disagree on whether the file exists)"}, nil
	}
	if !present {
		return &ExternalModResult{Modified: false}, nil
	}
	if histpath.HashBytes(expected) == histpath.HashBytes(currentData) {
		return &ExternalModResult{Modified: false}, nil
	}

	diff := diffForDisplay(string(expected), string(currentData), filePath)
	return &ExternalModResult{Modified: true, Diff: diff}, nil
}

// CheckExternalModification exposes checkExternalModification to callers
// (the CLI) that need to show the user a diff and ask for confirmation
// before calling Accept or Reject with confirmed=true.
func (c *Controller) CheckExternalModification(filePath string) (*ExternalModResult, error) {
	return c.checkExternalModification(filePath)
}

// Accept marks editID's entry accepted. It refuses (ExternalModification)
// if the tracked file was edited outside the tool since the journal last
// recorded its state, since accepting on top of an unknown base would lose
// the out-of-band edit silently — unless confirmed is true, meaning the
// caller already showed the user that divergence and got a yes.
func (c *Controller) Accept(editID string, confirmed bool) error {
	entry, logPath, err := c.findByEditID(editID)
	if err != nil {
		return err
	}
	if entry.Status == logstore.StatusRejected {
		return edithisterr.New(edithisterr.IO, "edit %q is rejected and cannot be accepted", editID)
	}
	if entry.Status == logstore.StatusAccepted {
		return nil
	}

	if !confirmed {
		mod, err := c.checkExternalModification(entry.FilePath)
		if err != nil {
			return err
		}
		if mod.Modified {
			return edithisterr.New(edithisterr.ExternalModification,
				"%q was modified outside the tracked tool calls; resolve manually before accepting:\n%s", entry.FilePath, mod.Diff)
		}
	}

	if err := c.Store.UpdateStatus(logPath, editID, logstore.StatusAccepted, entry.HashAfter); err != nil {
		return err
	}

	all, err := c.Store.ReadAll(c.HistoryRoot)
	if err != nil {
		return err
	}
	if _, err := reconstruct.Reconstruct(c.WorkspaceRoot, c.HistoryRoot, all, entry.FilePath, true); err != nil {
		return err
	}
	return nil
}

// Reject marks editID's entry rejected, snapshots the file's pending state
// for recovery, appends a revert bookkeeping entry, and reconstructs the
// file from its accepted-only history. If reconstruction fails, the status
// flip is rolled back so the journal never claims a rejection that didn't
// take effect. confirmed has the same meaning as in Accept.
func (c *Controller) Reject(editID string, confirmed bool) error {
	entry, logPath, err := c.findByEditID(editID)
	if err != nil {
		return err
	}
	if entry.Status == logstore.StatusRejected {
		return nil
	}

	if !confirmed {
		mod, err := c.checkExternalModification(entry.FilePath)
		if err != nil {
			return err
		}
		if mod.Modified {
			return edithisterr.New(edithisterr.ExternalModification,
				"%q was modified outside the tracked tool calls; resolve manually before rejecting:\n%s", entry.FilePath, mod.Diff)
		}
	}

	snapshotFile, err := c.snapshotBeforeReject(entry)
	if err != nil {
		return err
	}

	prevStatus := entry.Status
	if err := c.Store.UpdateStatus(logPath, editID, logstore.StatusRejected, nil); err != nil {
		return err
	}

	revert := logstore.Entry{
		EditID:         uuid.NewString(),
		ConversationID: entry.ConversationID,
		ToolCallIndex:  logstore.ToolCallIndexRevert,
		Timestamp:      time.Now().UTC(),
		Operation:      logstore.OpRevert,
		FilePath:       entry.FilePath,
		Status:         logstore.StatusDone,
		CheckpointFile: snapshotFile,
		RejectedEditID: editID,
	}
	if err := c.Store.Append(logPath, revert); err != nil {
		_ = c.Store.UpdateStatus(logPath, editID, prevStatus, entry.HashAfter)
		return err
	}

	all, err := c.Store.ReadAll(c.HistoryRoot)
	if err != nil {
		return err
	}
	if _, err := reconstruct.Reconstruct(c.WorkspaceRoot, c.HistoryRoot, all, entry.FilePath, false); err != nil {
		_ = c.Store.UpdateStatus(logPath, editID, prevStatus, entry.HashAfter)
		_ = c.Store.UpdateStatus(logPath, revert.EditID, logstore.StatusFailed, nil)
		return edithisterr.Wrap(edithisterr.ReconstructionFailed, err,
			"rejecting %q failed during reconstruction; the rejection has been rolled back", editID)
	}
	return nil
}

// snapshotBeforeReject copies the file's current on-disk content aside so
// a reject can be recovered from manually if needed, per spec.md §11's
// snapshot-before-reject supplement.
func (c *Controller) snapshotBeforeReject(entry logstore.Entry) (string, error) {
	absPath, err := histpath.VerifyPathIsSafe(entry.FilePath, c.WorkspaceRoot)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(absPath) //nolint:gosec // already safety-checked
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", edithisterr.Wrap(edithisterr.IO, err, "snapshotting %q before reject", absPath)
	}

	sanitized := histpath.SanitizeForFilename(entry.FilePath)
	rel := fmt.Sprintf("%s/%s/pre-reject-%s.chkpt", histpath.CheckpointsDir, entry.ConversationID, sanitized)
	abs := filepath.Join(c.HistoryRoot, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return "", edithisterr.Wrap(edithisterr.IO, err, "creating snapshot directory")
	}
	if err := os.WriteFile(abs, data, 0o600); err != nil {
		return "", edithisterr.Wrap(edithisterr.IO, err, "writing pre-reject snapshot")
	}
	return rel, nil
}

// Cleanup sweeps the history root for stale lock directories left behind
// by crashed processes.
func (c *Controller) Cleanup() ([]string, error) {
	return filelock.CleanupStaleLocksUnder(c.HistoryRoot)
}

// PendingOldestFirst returns every pending entry across all conversations,
// oldest first, for the interactive review loop.
func (c *Controller) PendingOldestFirst() ([]logstore.Entry, error) {
	all, err := c.Store.ReadAll(c.HistoryRoot)
	if err != nil {
		return nil, err
	}
	var pending []logstore.Entry
	for _, e := range all {
		if e.Status == logstore.StatusPending {
			pending = append(pending, e)
		}
	}
	logstore.SortEntries(pending)
	return pending, nil
}

// DiffText returns the unified diff recorded for an entry, for display
// during interactive review.
func (c *Controller) DiffText(entry logstore.Entry) (string, error) {
	if entry.DiffFile == "" {
		return "", nil
	}
	path := filepath.Join(c.HistoryRoot, histpath.DiffsDir, filepath.FromSlash(entry.DiffFile))
	data, err := os.ReadFile(path) //nolint:gosec // derived from validated history root
	if err != nil {
		return "", edithisterr.Wrap(edithisterr.IO, err, "reading diff for %q", entry.EditID)
	}
	return string(data), nil
}
