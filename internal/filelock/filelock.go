// Package filelock implements the engine's advisory, cross-process
// exclusive lock: a sibling "<path>.lockdir/pid.lock" directory+file pair
// with stale-owner detection and recovery.
//
// No third-party library in the example corpus wraps directory-based
// advisory locking with PID-liveness staleness checks; the corpus reaches
// for flock()-style locking only indirectly (go-git's on-disk lock uses the
// standard library the same way). This package therefore uses the standard
// library's syscall.Flock, which is the same primitive the original
// implementation's fcntl(LOCK_EX|LOCK_NB) relies on.
package filelock

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/edithist/edithist/internal/edithisterr"
)

// DefaultTimeout is the default duration Acquire waits before giving up.
const DefaultTimeout = 10 * time.Second

const pollInterval = 25 * time.Millisecond

// Lock represents one held (or about-to-be-acquired) advisory lock bound to
// a target path. Two Lock values for the same path exclude each other even
// within one process, since each takes its own flock on a separately opened
// pid file; the lock is therefore not reentrant.
type Lock struct {
	targetPath string
	lockDir    string
	lockFile   string

	mu     sync.Mutex
	file   *os.File
	locked bool
}

// New returns a Lock bound to targetPath. The lock is not acquired yet.
func New(targetPath string) *Lock {
	lockDir := targetPath + ".lockdir"
	return &Lock{
		targetPath: targetPath,
		lockDir:    lockDir,
		lockFile:   filepath.Join(lockDir, "pid.lock"),
	}
}

// Path returns the target path this lock is bound to, used by callers that
// need to sort locks into canonical acquisition order.
func (l *Lock) Path() string { return l.targetPath }

// Acquire blocks until the lock is held or timeout elapses, returning
// edithisterr.LockTimeout on expiry.
func (l *Lock) Acquire(timeout time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)

	// Initial stale check, mirroring the original's acquire-time sweep.
	checkStaleLock(l.lockDir, l.lockFile)

	for {
		// Recreated on every attempt: a previous holder's Release removes it.
		if err := os.MkdirAll(l.lockDir, 0o750); err != nil {
			return edithisterr.Wrap(edithisterr.IO, err, "creating lock directory %q", l.lockDir)
		}
		if err := l.tryLock(); err == nil {
			return nil
		}

		if time.Now().After(deadline) {
			// One final stale recheck before giving up, then one last try.
			if checkStaleLock(l.lockDir, l.lockFile) {
				if err := os.MkdirAll(l.lockDir, 0o750); err == nil {
					if err := l.tryLock(); err == nil {
						return nil
					}
				}
			}
			return edithisterr.New(edithisterr.LockTimeout, "could not acquire lock on %q within %s", l.targetPath, timeout)
		}

		time.Sleep(pollInterval)
	}
}

func (l *Lock) tryLock() error {
	f, err := os.OpenFile(l.lockFile, os.O_CREATE|os.O_RDWR, 0o600) //nolint:gosec // lock file path is derived, not user input
	if err != nil {
		return err
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return err
	}

	if err := f.Truncate(0); err != nil {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN) //nolint:errcheck // best effort on failure path
		f.Close()
		return err
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0); err != nil {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN) //nolint:errcheck // best effort on failure path
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN) //nolint:errcheck // best effort on failure path
		f.Close()
		return err
	}

	l.file = f
	l.locked = true
	return nil
}

// Release unlocks and removes the lock directory. Safe to call on an
// unlocked Lock, and safe to call more than once.
func (l *Lock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN) //nolint:errcheck // releasing regardless
		l.file.Close()
		l.file = nil
	}
	l.locked = false

	if err := os.RemoveAll(l.lockDir); err != nil {
		return edithisterr.Wrap(edithisterr.IO, err, "removing lock directory %q", l.lockDir)
	}
	return nil
}

// SortLocksCanonical sorts locks by their target path's absolute form, the
// canonical ordering the Tracker uses to acquire multiple locks without
// risking deadlock.
func SortLocksCanonical(locks []*Lock) {
	less := func(i, j int) bool { return locks[i].targetPath < locks[j].targetPath }
	// Simple insertion sort: call sites pass at most 2 locks (target,
	// source), so a full sort.Slice import is unnecessary overhead.
	for i := 1; i < len(locks); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			locks[j], locks[j-1] = locks[j-1], locks[j]
		}
	}
}

// checkStaleLock removes lockDir if it is missing its pid file, the pid
// file is empty/unparseable, or the recorded pid is not alive. Returns true
// if it cleaned something up.
func checkStaleLock(lockDir, lockFile string) bool {
	if _, err := os.Stat(lockDir); err != nil {
		return false
	}

	data, err := os.ReadFile(lockFile) //nolint:gosec // lock file path is derived, not user input
	if err != nil {
		forceCleanup(lockDir)
		return true
	}

	pidStr := strings.TrimSpace(string(data))
	if pidStr == "" {
		forceCleanup(lockDir)
		return true
	}

	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		forceCleanup(lockDir)
		return true
	}

	if isAlive(pid) {
		return false
	}

	forceCleanup(lockDir)
	return true
}

func forceCleanup(lockDir string) {
	_ = os.RemoveAll(lockDir)
}

// isAlive reports whether pid names a live process, using signal 0 the way
// the original implementation's os.kill(pid, 0) probe does.
func isAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return !errors.Is(err, os.ErrProcessDone) && !isNoSuchProcess(err)
}

func isNoSuchProcess(err error) bool {
	return errors.Is(err, syscall.ESRCH)
}

// CleanupStaleLocksUnder recursively scans root for "*.lockdir" directories
// and force-removes any whose owner is dead, missing, or unparseable.
// Returns the paths it removed.
func CleanupStaleLocksUnder(root string) ([]string, error) {
	var removed []string

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || !strings.HasSuffix(path, ".lockdir") {
			return nil
		}
		lockFile := filepath.Join(path, "pid.lock")
		if checkStaleLock(path, lockFile) {
			removed = append(removed, path)
		}
		return filepath.SkipDir
	})
	if err != nil {
		return removed, edithisterr.Wrap(edithisterr.IO, err, "scanning %q for stale locks", root)
	}
	return removed, nil
}
