package diffengine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/edithist/edithist/internal/edithisterr"
)

// PatchTimeout bounds how long an external "patch" invocation may run.
const PatchTimeout = 15 * time.Second

// ApplyPatch invokes the system "patch" utility to apply diff against
// targetRelPath inside workspaceRoot, per spec.md §4.4:
// "patch --no-backup-if-mismatch -p1 [-R] <targetRelPath>", cwd=workspaceRoot.
func ApplyPatch(workspaceRoot, targetRelPath, diff string, reverse bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), PatchTimeout)
	defer cancel()

	args := []string{"--no-backup-if-mismatch", "-p1"}
	if reverse {
		args = append(args, "-R")
	}
	args = append(args, targetRelPath)

	cmd := exec.CommandContext(ctx, "patch", args...)
	cmd.Dir = workspaceRoot
	cmd.Stdin = bytes.NewReader([]byte(diff))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return edithisterr.Wrap(edithisterr.PatchFailed, err, "\"patch\" command not found")
		}
		return edithisterr.Wrap(edithisterr.PatchFailed, err,
			"patch failed for %q (reverse=%v): %s", targetRelPath, reverse, combinedOutput(&stdout, &stderr))
	}
	return nil
}

func combinedOutput(stdout, stderr *bytes.Buffer) string {
	return fmt.Sprintf("stdout: %s\nstderr: %s", stdout.String(), stderr.String())
}

// DiffAgainstCheckpoint produces a unified diff between a checkpoint file's
// content and the file's current on-disk content, with both headers
// rewritten to displayName — used to show the user what changed when an
// external modification is detected.
func DiffAgainstCheckpoint(currentPath, checkpointPath, displayName string) (string, error) {
	current, err := readOrEmpty(currentPath)
	if err != nil {
		return "", err
	}
	checkpoint, err := readOrEmpty(checkpointPath)
	if err != nil {
		return "", err
	}
	return GenerateUnifiedDiff(checkpoint, current, displayName), nil
}

func readOrEmpty(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path validated by caller
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", edithisterr.Wrap(edithisterr.IO, err, "reading %q", path)
	}
	return string(data), nil
}
