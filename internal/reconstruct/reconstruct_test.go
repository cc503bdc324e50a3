package reconstruct_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/edithist/edithist/internal/logstore"
	"github.com/edithist/edithist/internal/reconstruct"
	"github.com/edithist/edithist/internal/tracker"
	"github.com/stretchr/testify/require"
)

func newWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".mcp"), 0o750))
	return root
}

func readAll(t *testing.T, historyRoot string) []logstore.Entry {
	t.Helper()
	entries, err := logstore.New().ReadAll(historyRoot)
	require.NoError(t, err)
	return entries
}

func TestReconstructReplaysCreateThenEdits(t *testing.T) {
	root := newWorkspace(t)
	tr, err := tracker.New(root)
	require.NoError(t, err)

	target := filepath.Join(root, "a.txt")
	_, err = tr.Track(tracker.Mutation{
		ConversationID: "c1",
		ToolName:       "write_file",
		Intent:         tracker.IntentWrite,
		TargetPath:     "a.txt",
		Execute:        func() error { return os.WriteFile(target, []byte("line1\n"), 0o600) },
	})
	require.NoError(t, err)

	_, err = tr.Track(tracker.Mutation{
		ConversationID: "c1",
		ToolName:       "edit_file",
		Intent:         tracker.IntentEdit,
		TargetPath:     "a.txt",
		Execute:        func() error { return os.WriteFile(target, []byte("line1\nline2\n"), 0o600) },
	})
	require.NoError(t, err)

	// Simulate a lost/corrupted working tree: reconstruction must rebuild it
	// purely from the journal's checkpoints and diffs.
	require.NoError(t, os.Remove(target))

	entries := readAll(t, tr.HistoryRoot)
	result, err := reconstruct.Reconstruct(root, tr.HistoryRoot, entries, "a.txt", true)
	require.NoError(t, err)
	require.False(t, result.Deleted)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "line1\nline2\n", string(data))
}

func TestReconstructSkipsRejectedEntries(t *testing.T) {
	root := newWorkspace(t)
	tr, err := tracker.New(root)
	require.NoError(t, err)

	target := filepath.Join(root, "a.txt")
	_, err = tr.Track(tracker.Mutation{
		ConversationID: "c1",
		ToolName:       "write_file",
		Intent:         tracker.IntentWrite,
		TargetPath:     "a.txt",
		Execute:        func() error { return os.WriteFile(target, []byte("base\n"), 0o600) },
	})
	require.NoError(t, err)

	badEdit, err := tr.Track(tracker.Mutation{
		ConversationID: "c1",
		ToolName:       "edit_file",
		Intent:         tracker.IntentEdit,
		TargetPath:     "a.txt",
		Execute:        func() error { return os.WriteFile(target, []byte("base\nbad\n"), 0o600) },
	})
	require.NoError(t, err)

	logPath := logstore.LogPathForConversation(tr.HistoryRoot, "c1")
	require.NoError(t, tr.Store.UpdateStatus(logPath, badEdit.EditID, logstore.StatusRejected, nil))

	entries := readAll(t, tr.HistoryRoot)
	result, err := reconstruct.Reconstruct(root, tr.HistoryRoot, entries, "a.txt", true)
	require.NoError(t, err)
	require.False(t, result.Deleted)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "base\n", string(data))
}

func TestReconstructAcceptedOnlySkipsPending(t *testing.T) {
	root := newWorkspace(t)
	tr, err := tracker.New(root)
	require.NoError(t, err)

	target := filepath.Join(root, "a.txt")
	_, err = tr.Track(tracker.Mutation{
		ConversationID: "c1",
		ToolName:       "write_file",
		Intent:         tracker.IntentWrite,
		TargetPath:     "a.txt",
		Execute:        func() error { return os.WriteFile(target, []byte("base\n"), 0o600) },
	})
	require.NoError(t, err)

	pendingEdit, err := tr.Track(tracker.Mutation{
		ConversationID: "c1",
		ToolName:       "edit_file",
		Intent:         tracker.IntentEdit,
		TargetPath:     "a.txt",
		Execute:        func() error { return os.WriteFile(target, []byte("base\nextra\n"), 0o600) },
	})
	require.NoError(t, err)
	require.Equal(t, logstore.StatusPending, pendingEdit.Status)

	entries := readAll(t, tr.HistoryRoot)
	result, err := reconstruct.Reconstruct(root, tr.HistoryRoot, entries, "a.txt", false)
	require.NoError(t, err)
	require.False(t, result.Deleted)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "base\n", string(data))
}

func TestReconstructDeleteYieldsDeletedResult(t *testing.T) {
	root := newWorkspace(t)
	tr, err := tracker.New(root)
	require.NoError(t, err)

	target := filepath.Join(root, "a.txt")
	_, err = tr.Track(tracker.Mutation{
		ConversationID: "c1",
		ToolName:       "write_file",
		Intent:         tracker.IntentWrite,
		TargetPath:     "a.txt",
		Execute:        func() error { return os.WriteFile(target, []byte("base\n"), 0o600) },
	})
	require.NoError(t, err)

	_, err = tr.Track(tracker.Mutation{
		ConversationID: "c1",
		ToolName:       "delete_file",
		Intent:         tracker.IntentDelete,
		TargetPath:     "a.txt",
		Execute:        func() error { return os.Remove(target) },
	})
	require.NoError(t, err)

	entries := readAll(t, tr.HistoryRoot)
	result, err := reconstruct.Reconstruct(root, tr.HistoryRoot, entries, "a.txt", true)
	require.NoError(t, err)
	require.True(t, result.Deleted)
	_, statErr := os.Stat(target)
	require.True(t, os.IsNotExist(statErr))
}

func TestReconstructUnknownFileIsDeleted(t *testing.T) {
	root := newWorkspace(t)
	tr, err := tracker.New(root)
	require.NoError(t, err)

	result, err := reconstruct.Reconstruct(root, tr.HistoryRoot, nil, "never-tracked.txt", true)
	require.NoError(t, err)
	require.True(t, result.Deleted)
}
