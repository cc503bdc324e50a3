package filelock_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/edithist/edithist/internal/filelock"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a.log")
	lock := filelock.New(target)

	require.NoError(t, lock.Acquire(time.Second))
	require.NoError(t, lock.Release())

	_, err := os.Stat(target + ".lockdir")
	require.True(t, os.IsNotExist(err))
}

func TestAcquireTimesOutWhenHeldByLiveProcess(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a.log")

	first := filelock.New(target)
	require.NoError(t, first.Acquire(time.Second))
	defer first.Release()

	second := filelock.New(target)
	err := second.Acquire(100 * time.Millisecond)
	require.Error(t, err)
}

func TestAcquireRecoversStaleLock(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a.log")
	lockDir := target + ".lockdir"
	require.NoError(t, os.MkdirAll(lockDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(lockDir, "pid.lock"), []byte(strconv.Itoa(deadPID())), 0o600))

	lock := filelock.New(target)
	require.NoError(t, lock.Acquire(time.Second))
	require.NoError(t, lock.Release())
}

func TestCleanupStaleLocksUnder(t *testing.T) {
	root := t.TempDir()
	lockDir := filepath.Join(root, "logs", "c1.log.lockdir")
	require.NoError(t, os.MkdirAll(lockDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(lockDir, "pid.lock"), []byte(strconv.Itoa(deadPID())), 0o600))

	removed, err := filelock.CleanupStaleLocksUnder(root)
	require.NoError(t, err)
	require.Contains(t, removed, lockDir)

	_, statErr := os.Stat(lockDir)
	require.True(t, os.IsNotExist(statErr))
}

// deadPID returns a PID very unlikely to correspond to a live process.
func deadPID() int {
	return 1 << 30
}
