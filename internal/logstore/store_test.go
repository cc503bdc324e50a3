package logstore_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/edithist/edithist/internal/logstore"
	"github.com/stretchr/testify/require"
)

func hashPtr(s string) *string { return &s }

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "c1.log")
	store := logstore.New()

	e1 := logstore.Entry{
		EditID:         "e1",
		ConversationID: "c1",
		ToolCallIndex:  1,
		Timestamp:      time.Now().UTC(),
		Operation:      logstore.OpCreate,
		FilePath:       "a.txt",
		Status:         logstore.StatusPending,
		HashBefore:     nil,
		HashAfter:      hashPtr("abc123"),
	}
	e2 := logstore.Entry{
		EditID:         "e2",
		ConversationID: "c1",
		ToolCallIndex:  2,
		Timestamp:      time.Now().Add(time.Millisecond).UTC(),
		Operation:      logstore.OpEdit,
		FilePath:       "a.txt",
		Status:         logstore.StatusPending,
		HashBefore:     hashPtr("abc123"),
		HashAfter:      hashPtr("def456"),
	}

	require.NoError(t, store.Write(logPath, []logstore.Entry{e2, e1}))

	got, err := store.Read(logPath)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "e1", got[0].EditID)
	require.Equal(t, "e2", got[1].EditID)
	require.Equal(t, "c1.log", got[0].LogFileSource)
}

func TestAppendPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "c1.log")
	store := logstore.New()

	base := time.Now().UTC()
	for i, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, store.Append(logPath, logstore.Entry{
			EditID:         id,
			ConversationID: "c1",
			ToolCallIndex:  i,
			Timestamp:      base.Add(time.Duration(i) * time.Millisecond),
			Operation:      logstore.OpEdit,
			FilePath:       "a.txt",
			Status:         logstore.StatusPending,
		}))
	}

	got, err := store.Read(logPath)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, []string{"e1", "e2", "e3"}, []string{got[0].EditID, got[1].EditID, got[2].EditID})
}

func TestUpdateStatusRewritesInPlace(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "c1.log")
	store := logstore.New()

	require.NoError(t, store.Append(logPath, logstore.Entry{
		EditID:         "e1",
		ConversationID: "c1",
		ToolCallIndex:  0,
		Timestamp:      time.Now().UTC(),
		Operation:      logstore.OpCreate,
		FilePath:       "a.txt",
		Status:         logstore.StatusPending,
	}))

	require.NoError(t, store.UpdateStatus(logPath, "e1", logstore.StatusAccepted, hashPtr("final")))

	got, err := store.Read(logPath)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, logstore.StatusAccepted, got[0].Status)
	require.Equal(t, "final", *got[0].HashAfter)
}

func TestUpdateStatusMissingEditReturnsError(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "c1.log")
	store := logstore.New()

	err := store.UpdateStatus(logPath, "missing", logstore.StatusAccepted, nil)
	require.Error(t, err)
}

func TestReadAllMergesLogFiles(t *testing.T) {
	root := t.TempDir()
	store := logstore.New()

	require.NoError(t, store.Append(logstore.LogPathForConversation(root, "c1"), logstore.Entry{
		EditID: "e1", ConversationID: "c1", ToolCallIndex: 0,
		Timestamp: time.Now().UTC(), Operation: logstore.OpCreate,
		FilePath: "a.txt", Status: logstore.StatusPending,
	}))
	require.NoError(t, store.Append(logstore.LogPathForConversation(root, "c2"), logstore.Entry{
		EditID: "e2", ConversationID: "c2", ToolCallIndex: 0,
		Timestamp: time.Now().Add(time.Second).UTC(), Operation: logstore.OpCreate,
		FilePath: "b.txt", Status: logstore.StatusPending,
	}))

	all, err := store.ReadAll(root)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "e1", all[0].EditID)
	require.Equal(t, "e2", all[1].EditID)
}
