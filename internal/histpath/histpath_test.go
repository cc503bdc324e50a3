package histpath_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/edithist/edithist/internal/edithisterr"
	"github.com/edithist/edithist/internal/histpath"
	"github.com/stretchr/testify/require"
)

func TestFindWorkspaceRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".mcp"), 0o750))

	sub := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(sub, 0o750))

	got, err := histpath.FindWorkspaceRoot(sub)
	require.NoError(t, err)
	require.Equal(t, root, got)
}

func TestFindWorkspaceRootNotFound(t *testing.T) {
	root := t.TempDir()
	_, err := histpath.FindWorkspaceRoot(root)
	require.Error(t, err)
	require.True(t, edithisterr.Is(err, edithisterr.WorkspaceNotFound))
}

func TestHistoryRootCreatesSubdirs(t *testing.T) {
	root := t.TempDir()
	historyRoot, err := histpath.HistoryRoot(root)
	require.NoError(t, err)

	for _, sub := range []string{histpath.LogsDir, histpath.DiffsDir, histpath.CheckpointsDir} {
		info, err := os.Stat(filepath.Join(historyRoot, sub))
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
}

func TestVerifyPathIsSafeRejectsEscape(t *testing.T) {
	root := t.TempDir()
	_, err := histpath.VerifyPathIsSafe("../../etc/passwd", root)
	require.Error(t, err)
	require.True(t, edithisterr.Is(err, edithisterr.AccessDenied))
}

func TestVerifyPathIsSafeRejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(root, "escape")
	require.NoError(t, os.Symlink(outside, link))

	_, err := histpath.VerifyPathIsSafe(filepath.Join("escape", "file.txt"), root)
	require.Error(t, err)
	require.True(t, edithisterr.Is(err, edithisterr.AccessDenied))
}

func TestVerifyPathIsSafeAllowsWithinWorkspace(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o750))

	got, err := histpath.VerifyPathIsSafe(filepath.Join("src", "main.go"), root)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "src", "main.go"), got)
}

func TestSanitizeForFilenameReplacesSeparators(t *testing.T) {
	got := histpath.SanitizeForFilename("src/pkg/main.go")
	require.Equal(t, "src_pkg_main.go", got)
}

func TestSanitizeForFilenameTruncatesLongPaths(t *testing.T) {
	long := strings.Repeat("a", 300)
	got := histpath.SanitizeForFilename(long)
	require.LessOrEqual(t, len(got), 200)
	require.NotEqual(t, long, got)
}

func TestHashFileMissingReturnsEmpty(t *testing.T) {
	h, err := histpath.HashFile(filepath.Join(t.TempDir(), "missing.txt"))
	require.NoError(t, err)
	require.Empty(t, h)
}

func TestHashFileMatchesHashBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello\n"), 0o600))

	h, err := histpath.HashFile(path)
	require.NoError(t, err)
	require.Equal(t, histpath.HashBytes([]byte("hello\n")), h)
}

func TestRelFromWorkspaceRejectsEscape(t *testing.T) {
	root := t.TempDir()
	_, err := histpath.RelFromWorkspace(filepath.Join(filepath.Dir(root), "other.txt"), root)
	require.Error(t, err)
	require.True(t, edithisterr.Is(err, edithisterr.AccessDenied))
}
