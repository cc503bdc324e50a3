package tracker_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/edithist/edithist/internal/logstore"
	"github.com/edithist/edithist/internal/tracker"
	"github.com/stretchr/testify/require"
)

func newWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".mcp"), 0o750))
	return root
}

func TestTrackCreateWritesPendingEntry(t *testing.T) {
	root := newWorkspace(t)
	tr, err := tracker.New(root)
	require.NoError(t, err)

	target := filepath.Join(root, "a.txt")
	entry, err := tr.Track(tracker.Mutation{
		ConversationID: "c1",
		ToolName:       "write_file",
		Intent:         tracker.IntentWrite,
		TargetPath:     "a.txt",
		Execute: func() error {
			return os.WriteFile(target, []byte("hello\n"), 0o600)
		},
	})
	require.NoError(t, err)
	require.Equal(t, logstore.OpCreate, entry.Operation)
	require.Equal(t, logstore.StatusPending, entry.Status)
	require.Nil(t, entry.HashBefore)
	require.NotNil(t, entry.HashAfter)
	require.NotEmpty(t, entry.DiffFile)
	require.Empty(t, entry.CheckpointFile) // nothing to checkpoint; file didn't exist
}

func TestTrackReplaceChecksPointsOnFirstTouch(t *testing.T) {
	root := newWorkspace(t)
	target := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("hello\n"), 0o600))

	tr, err := tracker.New(root)
	require.NoError(t, err)

	entry, err := tr.Track(tracker.Mutation{
		ConversationID: "c1",
		ToolName:       "write_file",
		Intent:         tracker.IntentWrite,
		TargetPath:     "a.txt",
		Execute: func() error {
			return os.WriteFile(target, []byte("world\n"), 0o600)
		},
	})
	require.NoError(t, err)
	require.Equal(t, logstore.OpReplace, entry.Operation)
	require.NotEmpty(t, entry.CheckpointFile)

	checkpointAbs := filepath.Join(tr.HistoryRoot, filepath.FromSlash(entry.CheckpointFile))
	data, err := os.ReadFile(checkpointAbs)
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(data))

	// A second mutation in the same conversation must not checkpoint again.
	entry2, err := tr.Track(tracker.Mutation{
		ConversationID: "c1",
		ToolName:       "write_file",
		Intent:         tracker.IntentWrite,
		TargetPath:     "a.txt",
		Execute: func() error {
			return os.WriteFile(target, []byte("again\n"), 0o600)
		},
	})
	require.NoError(t, err)
	require.Empty(t, entry2.CheckpointFile)
}

func TestTrackEditOnMissingFileFails(t *testing.T) {
	root := newWorkspace(t)
	tr, err := tracker.New(root)
	require.NoError(t, err)

	_, err = tr.Track(tracker.Mutation{
		ConversationID: "c1",
		ToolName:       "edit_file",
		Intent:         tracker.IntentEdit,
		TargetPath:     "missing.txt",
		Execute:        func() error { return nil },
	})
	require.Error(t, err)
}

func TestTrackFailedExecuteWritesNoLogEntry(t *testing.T) {
	root := newWorkspace(t)
	tr, err := tracker.New(root)
	require.NoError(t, err)

	_, err = tr.Track(tracker.Mutation{
		ConversationID: "c1",
		ToolName:       "write_file",
		Intent:         tracker.IntentWrite,
		TargetPath:     "a.txt",
		Execute: func() error {
			return os.ErrPermission
		},
	})
	require.Error(t, err)

	entries, err := tr.Store.Read(logstore.LogPathForConversation(tr.HistoryRoot, "c1"))
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestTrackRejectsPathOutsideWorkspace(t *testing.T) {
	root := newWorkspace(t)
	tr, err := tracker.New(root)
	require.NoError(t, err)

	_, err = tr.Track(tracker.Mutation{
		ConversationID: "c1",
		ToolName:       "write_file",
		Intent:         tracker.IntentWrite,
		TargetPath:     "../outside.txt",
		Execute:        func() error { return nil },
	})
	require.Error(t, err)
}

func TestCountersIncreaseMonotonically(t *testing.T) {
	root := newWorkspace(t)
	tr, err := tracker.New(root)
	require.NoError(t, err)

	target := filepath.Join(root, "a.txt")
	var lastIndex int
	for i := 0; i < 3; i++ {
		entry, err := tr.Track(tracker.Mutation{
			ConversationID: "c1",
			ToolName:       "write_file",
			Intent:         tracker.IntentWrite,
			TargetPath:     "a.txt",
			Execute: func() error {
				return os.WriteFile(target, []byte("x\n"), 0o600)
			},
		})
		require.NoError(t, err)
		require.GreaterOrEqual(t, entry.ToolCallIndex, lastIndex)
		lastIndex = entry.ToolCallIndex
	}
}
