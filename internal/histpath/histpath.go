// Package histpath locates the workspace and history roots, validates that
// paths stay inside the workspace, sanitizes paths into safe filenames, and
// hashes file content. It has no dependency on the rest of the engine so
// that every other package can depend on it without risk of an import
// cycle.
package histpath

import (
	"crypto/sha1" //nolint:gosec // used only for filename-collision avoidance, not security
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/edithist/edithist/internal/edithisterr"
)

// MCPDirName is the marker directory whose presence identifies a workspace
// root.
const MCPDirName = ".mcp"

// HistoryDirName is the history root, relative to the workspace root.
const HistoryDirName = ".mcp/edit_history"

// Subdirectories of the history root.
const (
	LogsDir        = "logs"
	DiffsDir       = "diffs"
	CheckpointsDir = "checkpoints"
)

// maxSanitizedLen mirrors the ~200 byte common filesystem component limit
// used by the original implementation.
const maxSanitizedLen = 200

var unsafeFilenameChars = regexp.MustCompile(`[^\w\-_.]`)

// FindWorkspaceRoot ascends from start looking for a directory containing
// .mcp/ or .git/. Returns edithisterr.WorkspaceNotFound if neither is found
// before reaching the filesystem root.
func FindWorkspaceRoot(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", edithisterr.Wrap(edithisterr.IO, err, "resolving start path %q", start)
	}

	p := abs
	for {
		if isDir(filepath.Join(p, MCPDirName)) || isDir(filepath.Join(p, ".git")) {
			return p, nil
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", edithisterr.New(edithisterr.WorkspaceNotFound,
				"no %s or .git found on ancestor chain from %q", MCPDirName, start)
		}
		p = parent
	}
}

// HistoryRoot returns (creating if necessary) <workspace>/.mcp/edit_history
// and its three subdirectories.
func HistoryRoot(workspaceRoot string) (string, error) {
	root := filepath.Join(workspaceRoot, HistoryDirName)
	for _, sub := range []string{"", LogsDir, DiffsDir, CheckpointsDir} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o750); err != nil {
			return "", edithisterr.Wrap(edithisterr.IO, err, "creating history directory %q", filepath.Join(root, sub))
		}
	}
	return root, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// VerifyPathIsSafe resolves path (following symlinks on every existing
// ancestor) and confirms the result stays within workspaceRoot. path may be
// relative to workspaceRoot or absolute.
func VerifyPathIsSafe(path, workspaceRoot string) (string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(workspaceRoot, abs)
	}
	abs = filepath.Clean(abs)

	absWorkspace, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return "", edithisterr.Wrap(edithisterr.IO, err, "resolving workspace root %q", workspaceRoot)
	}

	if !withinDir(abs, absWorkspace) {
		return "", edithisterr.New(edithisterr.AccessDenied, "path %q is outside workspace %q", abs, absWorkspace)
	}

	resolved, err := resolveExistingAncestors(abs)
	if err != nil {
		return "", edithisterr.Wrap(edithisterr.IO, err, "resolving symlinks for %q", abs)
	}

	if !withinDir(resolved, absWorkspace) {
		return "", edithisterr.New(edithisterr.AccessDenied, "path %q resolves to %q, outside workspace %q", abs, resolved, absWorkspace)
	}

	return abs, nil
}

// withinDir reports whether target is dir itself or a descendant of dir.
func withinDir(target, dir string) bool {
	if target == dir {
		return true
	}
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolveExistingAncestors walks up from path until it finds an existing
// ancestor, resolves that ancestor through symlinks via filepath.EvalSymlinks,
// then re-appends the non-existent suffix. This lets callers validate
// not-yet-created files (e.g. the target of a create) against symlink
// escapes in their existing parent directories.
func resolveExistingAncestors(path string) (string, error) {
	suffix := ""
	p := path
	for {
		if _, err := os.Lstat(p); err == nil {
			real, err := filepath.EvalSymlinks(p)
			if err != nil {
				return "", err
			}
			if suffix == "" {
				return real, nil
			}
			return filepath.Join(real, suffix), nil
		}
		parent := filepath.Dir(p)
		if parent == p {
			// Nothing exists; return the original path unresolved.
			return path, nil
		}
		if suffix == "" {
			suffix = filepath.Base(p)
		} else {
			suffix = filepath.Join(filepath.Base(p), suffix)
		}
		p = parent
	}
}

// SanitizeForFilename turns a workspace-relative path into a safe filename
// component: separators and unsafe characters become underscores; results
// longer than 200 bytes are truncated with an 8-hex-char SHA-1 suffix of the
// original to preserve uniqueness.
func SanitizeForFilename(relPath string) string {
	sanitized := strings.NewReplacer(
		string(filepath.Separator), "_",
		":", "_",
		"\\", "_",
		"/", "_",
	).Replace(relPath)
	sanitized = unsafeFilenameChars.ReplaceAllString(sanitized, "_")

	if len(sanitized) > maxSanitizedLen {
		sum := sha1.Sum([]byte(relPath)) //nolint:gosec // filename-collision avoidance only
		suffix := hex.EncodeToString(sum[:])[:8]
		sanitized = sanitized[:maxSanitizedLen-9] + "_" + suffix
	}
	return sanitized
}

// HashFile returns the hex-encoded SHA-256 of a file's content, or ("", nil)
// if the file does not exist.
func HashFile(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path validated by caller via VerifyPathIsSafe
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", edithisterr.Wrap(edithisterr.IO, err, "hashing %q", path)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", edithisterr.Wrap(edithisterr.IO, err, "hashing %q", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the hex-encoded SHA-256 of b.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// RelFromWorkspace converts an absolute path to workspace-relative,
// returning an error if it escapes the workspace.
func RelFromWorkspace(absPath, workspaceRoot string) (string, error) {
	rel, err := filepath.Rel(workspaceRoot, absPath)
	if err != nil {
		return "", edithisterr.Wrap(edithisterr.AccessDenied, err, "path %q not relative to workspace %q", absPath, workspaceRoot)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", edithisterr.New(edithisterr.AccessDenied, "path %q is outside workspace %q", absPath, workspaceRoot)
	}
	return filepath.ToSlash(rel), nil
}

// AbsInWorkspace joins a workspace-relative path onto the workspace root.
func AbsInWorkspace(relPath, workspaceRoot string) string {
	return filepath.Join(workspaceRoot, filepath.FromSlash(relPath))
}

// FormatHashMismatch is a small helper used by callers reporting an
// ExternalModification error with both hashes for diagnostics.
func FormatHashMismatch(path, expected, actual string) string {
	return fmt.Sprintf("%s: expected hash %s, found %s", path, expected, actual)
}
