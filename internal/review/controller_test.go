package review_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/edithist/edithist/internal/edithisterr"
	"github.com/edithist/edithist/internal/logstore"
	"github.com/edithist/edithist/internal/review"
	"github.com/edithist/edithist/internal/tracker"
	"github.com/stretchr/testify/require"
)

func newWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".mcp"), 0o750))
	return root
}

func trackCreate(t *testing.T, tr *tracker.Tracker, conv, relPath, content string) *logstore.Entry {
	t.Helper()
	target := filepath.Join(tr.WorkspaceRoot, relPath)
	entry, err := tr.Track(tracker.Mutation{
		ConversationID: conv,
		ToolName:       "write_file",
		Intent:         tracker.IntentWrite,
		TargetPath:     relPath,
		Execute:        func() error { return os.WriteFile(target, []byte(content), 0o600) },
	})
	require.NoError(t, err)
	return entry
}

func TestStatusFiltersAndPaginates(t *testing.T) {
	root := newWorkspace(t)
	tr, err := tracker.New(root)
	require.NoError(t, err)
	trackCreate(t, tr, "c1", "a.txt", "a\n")
	trackCreate(t, tr, "c2", "b.txt", "b\n")

	ctl, err := review.New(root)
	require.NoError(t, err)

	all, err := ctl.Status(review.StatusFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	onlyC1, err := ctl.Status(review.StatusFilter{ConversationID: "c1"})
	require.NoError(t, err)
	require.Len(t, onlyC1, 1)
	require.Equal(t, "a.txt", onlyC1[0].FilePath)
}

func TestShowResolvesConversationAndEditID(t *testing.T) {
	root := newWorkspace(t)
	tr, err := tracker.New(root)
	require.NoError(t, err)
	entry := trackCreate(t, tr, "c1", "a.txt", "a\n")

	ctl, err := review.New(root)
	require.NoError(t, err)

	kind, entries, err := ctl.Show("c1")
	require.NoError(t, err)
	require.Equal(t, review.MatchConversation, kind)
	require.Len(t, entries, 1)

	kind, entries, err = ctl.Show(entry.EditID)
	require.NoError(t, err)
	require.Equal(t, review.MatchEdit, kind)
	require.Len(t, entries, 1)
}

func TestShowUnknownIdentifierErrors(t *testing.T) {
	root := newWorkspace(t)
	_, err := tracker.New(root)
	require.NoError(t, err)

	ctl, err := review.New(root)
	require.NoError(t, err)

	_, _, err = ctl.Show("does-not-exist")
	require.Error(t, err)
}

func TestAcceptFlipsStatusAndReconstructs(t *testing.T) {
	root := newWorkspace(t)
	tr, err := tracker.New(root)
	require.NoError(t, err)
	entry := trackCreate(t, tr, "c1", "a.txt", "a\n")

	ctl, err := review.New(root)
	require.NoError(t, err)
	require.NoError(t, ctl.Accept(entry.EditID, false))

	kind, entries, err := ctl.Show(entry.EditID)
	require.NoError(t, err)
	require.Equal(t, review.MatchEdit, kind)
	require.Equal(t, logstore.StatusAccepted, entries[0].Status)
}

func TestAcceptDetectsExternalModification(t *testing.T) {
	root := newWorkspace(t)
	tr, err := tracker.New(root)
	require.NoError(t, err)
	entry := trackCreate(t, tr, "c1", "a.txt", "a\n")

	// Simulate an out-of-band edit made outside any tracked tool call.
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("tampered\n"), 0o600))

	ctl, err := review.New(root)
	require.NoError(t, err)
	err = ctl.Accept(entry.EditID, false)
	require.Error(t, err)
	require.True(t, edithisterr.Is(err, edithisterr.ExternalModification))
}

func TestRejectRestoresPriorContentAndAppendsRevert(t *testing.T) {
	root := newWorkspace(t)
	tr, err := tracker.New(root)
	require.NoError(t, err)
	target := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("base\n"), 0o600))

	edit, err := tr.Track(tracker.Mutation{
		ConversationID: "c1",
		ToolName:       "edit_file",
		Intent:         tracker.IntentEdit,
		TargetPath:     "a.txt",
		Execute:        func() error { return os.WriteFile(target, []byte("base\nbad\n"), 0o600) },
	})
	require.NoError(t, err)

	ctl, err := review.New(root)
	require.NoError(t, err)
	require.NoError(t, ctl.Reject(edit.EditID, false))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "base\n", string(data))

	_, entries, err := ctl.Show("c1")
	require.NoError(t, err)
	var sawRevert bool
	for _, e := range entries {
		if e.Operation == logstore.OpRevert {
			sawRevert = true
			require.Equal(t, edit.EditID, e.RejectedEditID)
		}
	}
	require.True(t, sawRevert)
}

func TestCleanupDelegatesToFilelock(t *testing.T) {
	root := newWorkspace(t)
	_, err := tracker.New(root)
	require.NoError(t, err)

	ctl, err := review.New(root)
	require.NoError(t, err)

	removed, err := ctl.Cleanup()
	require.NoError(t, err)
	require.Empty(t, removed)
}
