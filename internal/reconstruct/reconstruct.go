// Package reconstruct rebuilds a tracked file's content by replaying its
// recorded entries from the nearest usable checkpoint, honoring each
// entry's review status — the engine's Reconstructor.
package reconstruct

import (
	"os"
	"path/filepath"

	"github.com/edithist/edithist/internal/diffengine"
	"github.com/edithist/edithist/internal/edithisterr"
	"github.com/edithist/edithist/internal/histpath"
	"github.com/edithist/edithist/internal/logstore"
)

// sandboxFileName is the stable name a file is addressed by inside the
// ephemeral sandbox; move entries still rename it (per spec.md §9's
// rename-tracking requirement) even though the engine does not rely on the
// name to locate patch targets, since ApplyPatch is always given an
// explicit target path rather than trusting diff headers.
const sandboxFileName = "content"

// Result is the outcome of one reconstruction.
type Result struct {
	// FinalHash is the SHA-256 of the reconstructed content, or "" if the
	// file ends up deleted.
	FinalHash string
	// Deleted reports whether the reconstructed state has no file.
	Deleted bool
}

// Reconstruct rebuilds filePath (workspace-relative) from allEntries (the
// full, globally time-ordered entry set across all conversations) and
// atomically replaces the real file with the result. includePending
// selects "include pending" mode (typical during review) vs "accepted
// only" mode (used after a rejection).
func Reconstruct(workspaceRoot, historyRoot string, allEntries []logstore.Entry, filePath string, includePending bool) (*Result, error) {
	sandboxDir, currentName, present, err := buildSandbox(historyRoot, allEntries, filePath, includePending)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(sandboxDir)

	return finalize(workspaceRoot, filePath, sandboxDir, currentName, present)
}

// Preview replays filePath's entries the same way Reconstruct does, but
// returns the resulting bytes instead of touching the real workspace file.
// The Review Controller uses this to detect out-of-band edits: it compares
// Preview's output hash against the file's current on-disk hash before
// accepting or rejecting anything.
func Preview(historyRoot string, allEntries []logstore.Entry, filePath string, includePending bool) (data []byte, present bool, err error) {
	sandboxDir, currentName, present, err := buildSandbox(historyRoot, allEntries, filePath, includePending)
	if err != nil {
		return nil, false, err
	}
	defer os.RemoveAll(sandboxDir)

	if !present {
		return nil, false, nil
	}
	data, err = os.ReadFile(filepath.Join(sandboxDir, currentName)) //nolint:gosec // sandbox path constructed internally
	if err != nil {
		return nil, false, edithisterr.Wrap(edithisterr.IO, err, "reading previewed sandbox file")
	}
	return data, true, nil
}

// buildSandbox replays filePath's relevant entries from the nearest
// checkpoint into a fresh ephemeral directory and returns it along with the
// file's current sandbox-relative name and whether it exists. Callers must
// os.RemoveAll the returned directory.
func buildSandbox(historyRoot string, allEntries []logstore.Entry, filePath string, includePending bool) (sandboxDir, currentName string, present bool, err error) {
	relevant := relevantEntriesFor(allEntries, filePath)
	if len(relevant) == 0 {
		sandboxDir, err = os.MkdirTemp("", "edithist-reconstruct-*")
		if err != nil {
			return "", "", false, edithisterr.Wrap(edithisterr.IO, err, "creating sandbox directory")
		}
		return sandboxDir, sandboxFileName, false, nil
	}

	basepoint, checkpointRel := findClosestCheckpoint(relevant)

	sandboxDir, err = os.MkdirTemp("", "edithist-reconstruct-*")
	if err != nil {
		return "", "", false, edithisterr.Wrap(edithisterr.IO, err, "creating sandbox directory")
	}

	currentName = sandboxFileName
	if checkpointRel != "" {
		data, rErr := os.ReadFile(filepath.Join(historyRoot, filepath.FromSlash(checkpointRel))) //nolint:gosec // derived from validated history root
		if rErr != nil {
			os.RemoveAll(sandboxDir)
			return "", "", false, edithisterr.Wrap(edithisterr.IO, rErr, "reading checkpoint %q", checkpointRel)
		}
		if wErr := os.WriteFile(filepath.Join(sandboxDir, currentName), data, 0o600); wErr != nil {
			os.RemoveAll(sandboxDir)
			return "", "", false, edithisterr.Wrap(edithisterr.IO, wErr, "seeding sandbox from checkpoint %q", checkpointRel)
		}
		present = true
	}

	start := basepoint + 1
	if checkpointRel != "" {
		// The checkpoint holds the content from before relevant[basepoint]
		// ran, so that entry is replayed too (or skipped, per its status).
		start = basepoint
	}
	for i := start; i < len(relevant); i++ {
		entry := relevant[i]

		if entry.Status == logstore.StatusRejected {
			continue
		}
		if entry.Status == logstore.StatusPending && !includePending {
			continue
		}

		switch entry.Operation {
		case logstore.OpSnapshot, logstore.OpRevert:
			// Informational; does not mutate the sandbox.
			continue
		case logstore.OpDelete:
			if present {
				if rErr := os.Remove(filepath.Join(sandboxDir, currentName)); rErr != nil && !os.IsNotExist(rErr) {
					os.RemoveAll(sandboxDir)
					return "", "", false, edithisterr.Wrap(edithisterr.IO, rErr, "applying delete for %q", entry.EditID)
				}
			}
			present = false
		case logstore.OpMove:
			newName := filepath.Base(entry.FilePath)
			if present {
				if rErr := os.Rename(filepath.Join(sandboxDir, currentName), filepath.Join(sandboxDir, newName)); rErr != nil {
					os.RemoveAll(sandboxDir)
					return "", "", false, edithisterr.Wrap(edithisterr.IO, rErr, "applying move for %q", entry.EditID)
				}
			}
			currentName = newName
		case logstore.OpCreate, logstore.OpReplace, logstore.OpEdit:
			if entry.DiffFile == "" {
				os.RemoveAll(sandboxDir)
				return "", "", false, edithisterr.New(edithisterr.ReconstructionFailed, "entry %q has no diff file", entry.EditID)
			}
			diffPath := filepath.Join(historyRoot, histpath.DiffsDir, filepath.FromSlash(entry.DiffFile))
			diffBytes, rErr := os.ReadFile(diffPath) //nolint:gosec // derived from validated history root
			if rErr != nil {
				os.RemoveAll(sandboxDir)
				return "", "", false, edithisterr.Wrap(edithisterr.ReconstructionFailed, rErr, "reading diff %q for %q", entry.DiffFile, entry.EditID)
			}
			if aErr := diffengine.ApplyPatch(sandboxDir, currentName, string(diffBytes), false); aErr != nil {
				os.RemoveAll(sandboxDir)
				return "", "", false, edithisterr.Wrap(edithisterr.ReconstructionFailed, aErr, "applying diff for %q", entry.EditID)
			}
			present = true
		default:
			os.RemoveAll(sandboxDir)
			return "", "", false, edithisterr.New(edithisterr.ReconstructionFailed, "unknown operation %q on entry %q", entry.Operation, entry.EditID)
		}
	}

	return sandboxDir, currentName, present, nil
}

func finalize(workspaceRoot, filePath, sandboxDir, currentName string, present bool) (*Result, error) {
	realTarget, err := histpath.VerifyPathIsSafe(filePath, workspaceRoot)
	if err != nil {
		return nil, err
	}

	if !present {
		if err := os.Remove(realTarget); err != nil && !os.IsNotExist(err) {
			return nil, edithisterr.Wrap(edithisterr.IO, err, "removing %q for delete-final reconstruction", realTarget)
		}
		return &Result{Deleted: true}, nil
	}

	if err := os.MkdirAll(filepath.Dir(realTarget), 0o750); err != nil {
		return nil, edithisterr.Wrap(edithisterr.IO, err, "creating parent directory for %q", realTarget)
	}

	sandboxPath := filepath.Join(sandboxDir, currentName)
	data, err := os.ReadFile(sandboxPath) //nolint:gosec // sandbox path constructed internally
	if err != nil {
		return nil, edithisterr.Wrap(edithisterr.IO, err, "reading reconstructed sandbox file")
	}
	finalHash := histpath.HashBytes(data)

	tmp := realTarget + ".reconstruct.tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return nil, edithisterr.Wrap(edithisterr.IO, err, "staging reconstructed content for %q", realTarget)
	}
	if err := os.Rename(tmp, realTarget); err != nil {
		os.Remove(tmp)
		return nil, edithisterr.Wrap(edithisterr.IO, err, "replacing %q with reconstructed content", realTarget)
	}

	return &Result{FinalHash: finalHash}, nil
}

// relevantEntriesFor returns, in (timestamp, tool_call_index) order, every
// entry that belongs to filePath's identity — including entries recorded
// under an earlier name before a move renamed it to filePath, or a later
// name after a move renamed it away, found by iterating to a fixed point
// over the alias set.
func relevantEntriesFor(allEntries []logstore.Entry, filePath string) []logstore.Entry {
	aliases := map[string]bool{filePath: true}
	for {
		grew := false
		for _, e := range allEntries {
			if e.Operation != logstore.OpMove {
				continue
			}
			if aliases[e.FilePath] && !aliases[e.SourcePath] {
				aliases[e.SourcePath] = true
				grew = true
			}
			if aliases[e.SourcePath] && !aliases[e.FilePath] {
				aliases[e.FilePath] = true
				grew = true
			}
		}
		if !grew {
			break
		}
	}

	var relevant []logstore.Entry
	for _, e := range allEntries {
		if aliases[e.FilePath] || (e.SourcePath != "" && aliases[e.SourcePath]) {
			relevant = append(relevant, e)
		}
	}
	logstore.SortEntries(relevant)
	return relevant
}

// findClosestCheckpoint returns the index (within relevant) of the most
// recent mutating entry whose checkpoint_file is set, and its checkpoint
// path; snapshot and revert entries are bookkeeping and are not used as a
// starting point. The checkpoint file is not checked here: a missing or
// unreadable one makes buildSandbox fail. If
// none is found, reconstruction starts from empty at index -1 and replays
// every entry — correct whether the first entry is a create (the common
// case) or not (a checkpoint was skipped or lost, and this is the best
// available fallback), per spec.md §4.6 step 2.
func findClosestCheckpoint(relevant []logstore.Entry) (basepointIndex int, checkpointRel string) {
	for i := len(relevant) - 1; i >= 0; i-- {
		if relevant[i].Operation == logstore.OpSnapshot || relevant[i].Operation == logstore.OpRevert {
			continue
		}
		if relevant[i].CheckpointFile != "" {
			return i, relevant[i].CheckpointFile
		}
	}
	return -1, ""
}
