package logstore

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/edithist/edithist/internal/edithisterr"
	"github.com/edithist/edithist/internal/filelock"
	"github.com/edithist/edithist/internal/jsonutil"
	"github.com/edithist/edithist/internal/logging"
)

// Store reads and writes a single conversation's log file, all operations
// bracketed by the log file's lock so readers never observe a partial
// rewrite.
type Store struct {
	// LockTimeout bounds how long Read/Write/Append wait for the log lock.
	// Zero means filelock.DefaultTimeout.
	LockTimeout time.Duration
}

// New returns a Store with default settings.
func New() *Store { return &Store{} }

func (s *Store) timeout() time.Duration {
	if s.LockTimeout <= 0 {
		return filelock.DefaultTimeout
	}
	return s.LockTimeout
}

// Read parses logPath, tolerating malformed lines (skipped, not fatal), and
// returns entries in on-disk order with LogFileSource set to the file's
// base name. Read does not sort; callers that need global order across
// multiple log files should call SortEntries themselves.
func (s *Store) Read(logPath string) ([]Entry, error) {
	lock := filelock.New(logPath)
	if err := lock.Acquire(s.timeout()); err != nil {
		return nil, err
	}
	defer lock.Release()

	return s.readLocked(logPath)
}

func (s *Store) readLocked(logPath string) ([]Entry, error) {
	f, err := os.Open(logPath) //nolint:gosec // logPath is derived from workspace-relative conversation ids
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, edithisterr.Wrap(edithisterr.IO, err, "opening log file %q", logPath)
	}
	defer f.Close()

	base := filepath.Base(logPath)
	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := e.UnmarshalJSON(line); err != nil {
			// spec.md §7: LogCorruption warns and skips, does not abort the read.
			logging.Warn(context.Background(), "skipping malformed log line", "path", logPath, "line", lineNo, "error", err.Error())
			continue
		}
		e.LogFileSource = base
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, edithisterr.Wrap(edithisterr.IO, err, "reading log file %q (line %d)", logPath, lineNo)
	}
	return entries, nil
}

// Write atomically rewrites logPath with entries, sorted by
// (timestamp, tool_call_index) per invariant 1.
func (s *Store) Write(logPath string, entries []Entry) error {
	lock := filelock.New(logPath)
	if err := lock.Acquire(s.timeout()); err != nil {
		return err
	}
	defer lock.Release()

	return s.writeLocked(logPath, entries)
}

func (s *Store) writeLocked(logPath string, entries []Entry) error {
	SortEntries(entries)

	if err := os.MkdirAll(filepath.Dir(logPath), 0o750); err != nil {
		return edithisterr.Wrap(edithisterr.IO, err, "creating log directory for %q", logPath)
	}

	tmpPath := fmt.Sprintf("%s.tmp.%d", logPath, os.Getpid())
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // derived path
	if err != nil {
		return edithisterr.Wrap(edithisterr.IO, err, "creating temp log file %q", tmpPath)
	}

	w := bufio.NewWriter(f)
	for _, e := range entries {
		line, err := jsonutil.MarshalCompactLine(e)
		if err != nil {
			f.Close()
			os.Remove(tmpPath)
			return edithisterr.Wrap(edithisterr.IO, err, "encoding entry %q", e.EditID)
		}
		if _, err := w.Write(line); err != nil {
			f.Close()
			os.Remove(tmpPath)
			return edithisterr.Wrap(edithisterr.IO, err, "writing temp log file %q", tmpPath)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return edithisterr.Wrap(edithisterr.IO, err, "flushing temp log file %q", tmpPath)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return edithisterr.Wrap(edithisterr.IO, err, "syncing temp log file %q", tmpPath)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return edithisterr.Wrap(edithisterr.IO, err, "closing temp log file %q", tmpPath)
	}

	if err := os.Rename(tmpPath, logPath); err != nil {
		os.Remove(tmpPath)
		return edithisterr.Wrap(edithisterr.IO, err, "renaming %q to %q", tmpPath, logPath)
	}
	return nil
}

// Append reads the current entries, adds entry, and writes the result back,
// all under a single lock acquisition so the read-modify-write is atomic
// with respect to other Store operations on the same log file.
func (s *Store) Append(logPath string, entry Entry) error {
	lock := filelock.New(logPath)
	if err := lock.Acquire(s.timeout()); err != nil {
		return err
	}
	defer lock.Release()

	entries, err := s.readLocked(logPath)
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	return s.writeLocked(logPath, entries)
}

// UpdateStatus rewrites the entry matching editID in place, setting its
// Status (and, when non-nil, HashAfter). Returns edithisterr.IO wrapping
// a "not found" condition if no entry matches, per invariant 3 (one entry
// per edit_id, status transitions rewrite in place).
func (s *Store) UpdateStatus(logPath, editID string, status Status, hashAfter *string) error {
	lock := filelock.New(logPath)
	if err := lock.Acquire(s.timeout()); err != nil {
		return err
	}
	defer lock.Release()

	entries, err := s.readLocked(logPath)
	if err != nil {
		return err
	}

	found := false
	for i := range entries {
		if entries[i].EditID == editID {
			entries[i].Status = status
			if hashAfter != nil {
				entries[i].HashAfter = hashAfter
			}
			found = true
			break
		}
	}
	if !found {
		return edithisterr.New(edithisterr.IO, "edit %q not found in %q", editID, logPath)
	}

	return s.writeLocked(logPath, entries)
}

// SortEntries sorts entries in place by (timestamp, tool_call_index), the
// total order required by invariant 1.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.Before(entries[j].Timestamp)
		}
		return entries[i].ToolCallIndex < entries[j].ToolCallIndex
	})
}
