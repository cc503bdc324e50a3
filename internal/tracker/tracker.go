// Package tracker wraps mutating filesystem tool calls so each one is
// recorded as a journal entry: pre-state capture, checkpoint-on-first-touch,
// execution, post-state capture, diff generation, and log append — the Go
// re-expression of the original's track_edit_history decorator as an
// explicit wrapper around a caller-supplied mutation closure (spec.md's
// "Decorator wrapping -> explicit Tracker around a closure" design note).
package tracker

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/edithist/edithist/internal/diffengine"
	"github.com/edithist/edithist/internal/edithisterr"
	"github.com/edithist/edithist/internal/filelock"
	"github.com/edithist/edithist/internal/histpath"
	"github.com/edithist/edithist/internal/logstore"
	"github.com/google/uuid"
)

// Intent is the operation kind a caller asserts before a tool runs. Write
// tools assert IntentWrite and let the Tracker classify create vs replace
// from pre-existence; edit/delete/move tools assert their kind directly.
type Intent string

// Intent values.
const (
	IntentWrite  Intent = "write"
	IntentEdit   Intent = "edit"
	IntentDelete Intent = "delete"
	IntentMove   Intent = "move"
)

// Mutation describes one tracked tool call.
type Mutation struct {
	ConversationID string
	ToolName       string
	Intent         Intent
	TargetPath     string // workspace-relative
	SourcePath     string // workspace-relative; required when Intent is IntentMove
	Execute        func() error
}

// Tracker wraps mutating tool calls for one workspace.
type Tracker struct {
	WorkspaceRoot string
	HistoryRoot   string
	Store         *logstore.Store
	LockTimeout   time.Duration

	counters *Counters
}

// New returns a Tracker rooted at workspaceRoot, creating the history root
// layout if necessary.
func New(workspaceRoot string) (*Tracker, error) {
	historyRoot, err := histpath.HistoryRoot(workspaceRoot)
	if err != nil {
		return nil, err
	}
	return &Tracker{
		WorkspaceRoot: workspaceRoot,
		HistoryRoot:   historyRoot,
		Store:         logstore.New(),
		counters:      NewCounters(),
	}, nil
}

func (t *Tracker) timeout() time.Duration {
	if t.LockTimeout <= 0 {
		return filelock.DefaultTimeout
	}
	return t.LockTimeout
}

// Track executes m.Execute as one tracked operation, per spec.md §4.5's
// eleven-step contract. On success it returns the appended log entry. If
// Execute fails, no log entry is written (checkpoints/diffs created earlier
// in the same call are orphaned but harmless). If the mutation succeeds but
// the log append fails, Track returns an edithisterr.IO error describing
// the inconsistency rather than silently discarding the user's edit.
func (t *Tracker) Track(m Mutation) (*logstore.Entry, error) {
	toolCallIndex := t.counters.Next(m.ConversationID)

	targetAbs, err := histpath.VerifyPathIsSafe(m.TargetPath, t.WorkspaceRoot)
	if err != nil {
		return nil, err
	}
	var sourceAbs string
	if m.SourcePath != "" {
		sourceAbs, err = histpath.VerifyPathIsSafe(m.SourcePath, t.WorkspaceRoot)
		if err != nil {
			return nil, err
		}
	}

	op, err := classifyOperation(m, targetAbs)
	if err != nil {
		return nil, err
	}

	logPath := logstore.LogPathForConversation(t.HistoryRoot, m.ConversationID)

	// The log file is not locked here: Store.Read and Store.Append take the
	// log lock themselves, and a second lock on the same path from this
	// process would block until timeout.
	locks := []*filelock.Lock{filelock.New(targetAbs)}
	if sourceAbs != "" {
		locks = append(locks, filelock.New(sourceAbs))
	}
	filelock.SortLocksCanonical(locks)

	acquired := make([]*filelock.Lock, 0, len(locks))
	defer func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].Release() //nolint:errcheck // best effort on unwind
		}
	}()
	for _, l := range locks {
		if err := l.Acquire(t.timeout()); err != nil {
			return nil, err
		}
		acquired = append(acquired, l)
	}

	hashBefore, err := histpath.HashFile(targetAbs)
	if err != nil {
		return nil, err
	}
	var linesBefore string
	if op == logstore.OpReplace || op == logstore.OpEdit {
		linesBefore, err = readTextOrEmpty(targetAbs)
		if err != nil {
			return nil, err
		}
	}

	existing, err := t.Store.Read(logPath)
	if err != nil {
		return nil, err
	}
	checkpointFile, err := t.maybeCheckpoint(existing, m.ConversationID, m.TargetPath, targetAbs, hashBefore)
	if err != nil {
		return nil, err
	}

	if err := m.Execute(); err != nil {
		return nil, err
	}

	hashAfter, err := histpath.HashFile(targetAbs)
	if err != nil {
		return nil, edithisterr.Wrap(edithisterr.IO, err, "post-mutation hash of %q failed after successful mutation", targetAbs)
	}

	editID := uuid.NewString()

	var diffFile string
	if op == logstore.OpCreate || op == logstore.OpReplace || op == logstore.OpEdit {
		linesAfter, err := readTextOrEmpty(targetAbs)
		if err != nil {
			return nil, edithisterr.Wrap(edithisterr.IO, err, "post-mutation read of %q failed after successful mutation", targetAbs)
		}
		diffFile, err = t.writeDiff(m.ConversationID, editID, m.TargetPath, linesBefore, linesAfter)
		if err != nil {
			return nil, edithisterr.Wrap(edithisterr.IO, err, "diff generation failed after successful mutation to %q", targetAbs)
		}
	}

	entry := logstore.Entry{
		EditID:         editID,
		ConversationID: m.ConversationID,
		ToolCallIndex:  toolCallIndex,
		Timestamp:      time.Now().UTC(),
		Operation:      op,
		FilePath:       m.TargetPath,
		SourcePath:     m.SourcePath,
		ToolName:       m.ToolName,
		Status:         logstore.StatusPending,
		DiffFile:       diffFile,
		CheckpointFile: checkpointFile,
		HashBefore:     ptrOrNil(hashBefore),
		HashAfter:      ptrOrNil(hashAfter),
	}

	if err := t.Store.Append(logPath, entry); err != nil {
		return nil, edithisterr.Wrap(edithisterr.IO, err,
			"mutation to %q succeeded but the journal entry could not be recorded; the working tree and journal are now inconsistent", m.TargetPath)
	}

	return &entry, nil
}

func classifyOperation(m Mutation, targetAbs string) (logstore.Operation, error) {
	switch m.Intent {
	case IntentWrite:
		if fileExists(targetAbs) {
			return logstore.OpReplace, nil
		}
		return logstore.OpCreate, nil
	case IntentEdit:
		if !fileExists(targetAbs) {
			return "", edithisterr.New(edithisterr.IO, "cannot edit %q: file does not exist", m.TargetPath)
		}
		return logstore.OpEdit, nil
	case IntentDelete:
		return logstore.OpDelete, nil
	case IntentMove:
		if m.SourcePath == "" {
			return "", edithisterr.New(edithisterr.IO, "move requires a source path")
		}
		return logstore.OpMove, nil
	default:
		return "", edithisterr.New(edithisterr.IO, "unknown intent %q", m.Intent)
	}
}

// maybeCheckpoint copies targetAbs's current bytes into checkpoints/ if no
// prior entry in this conversation already references targetRelPath (as its
// file path or as a move's source path), per invariant 6: checkpoints are
// created at most once per (conversation, file).
func (t *Tracker) maybeCheckpoint(existing []logstore.Entry, conversationID, targetRelPath, targetAbs, hashBefore string) (string, error) {
	if hashBefore == "" {
		return "", nil // file does not exist yet; nothing to checkpoint
	}
	for _, e := range existing {
		if e.FilePath == targetRelPath || e.SourcePath == targetRelPath {
			return "", nil // already checkpointed earlier in this conversation
		}
	}

	data, err := os.ReadFile(targetAbs) //nolint:gosec // targetAbs already safety-checked
	if err != nil {
		return "", edithisterr.Wrap(edithisterr.IO, err, "reading %q for checkpoint", targetAbs)
	}

	sanitized := histpath.SanitizeForFilename(targetRelPath)
	// Stored relative to the history root, per spec.md §9's resolution of
	// the original's two conflicting checkpoint-path conventions.
	relCheckpoint := fmt.Sprintf("%s/%s/%s.chkpt", histpath.CheckpointsDir, conversationID, sanitized)
	absCheckpoint := filepath.Join(t.HistoryRoot, filepath.FromSlash(relCheckpoint))

	if err := os.MkdirAll(filepath.Dir(absCheckpoint), 0o750); err != nil {
		return "", edithisterr.Wrap(edithisterr.IO, err, "creating checkpoint directory for %q", relCheckpoint)
	}
	if err := os.WriteFile(absCheckpoint, data, 0o600); err != nil {
		return "", edithisterr.Wrap(edithisterr.IO, err, "writing checkpoint %q", relCheckpoint)
	}
	return relCheckpoint, nil
}

func (t *Tracker) writeDiff(conversationID, editID, targetRelPath, before, after string) (string, error) {
	diffText := diffengine.GenerateUnifiedDiff(before, after, targetRelPath)

	// Stored relative to the diffs directory, per spec.md §9's resolution
	// of the checkpoint/diff path convention, named after the owning edit
	// so diffs/<conversation_id>/<edit_id>.diff matches spec.md §6.
	relDiff := fmt.Sprintf("%s/%s.diff", conversationID, editID)
	absDiff := filepath.Join(t.HistoryRoot, histpath.DiffsDir, filepath.FromSlash(relDiff))

	if err := os.MkdirAll(filepath.Dir(absDiff), 0o750); err != nil {
		return "", err
	}
	if err := os.WriteFile(absDiff, []byte(diffText), 0o600); err != nil {
		return "", err
	}
	return relDiff, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func readTextOrEmpty(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path already safety-checked by caller
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", edithisterr.Wrap(edithisterr.IO, err, "reading %q", path)
	}
	return string(data), nil
}

func ptrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
