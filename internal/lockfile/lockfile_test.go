package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLock(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir)
	require.NoError(t, err)
	defer lock.Release()

	assert.Equal(t, filepath.Join(dir, LockFileName), lock.Path())
	data, err := os.ReadFile(lock.Path())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), parsePID(string(data)))
}

func TestAcquireLockConflict(t *testing.T) {
	dir := t.TempDir()

	first, err := AcquireLock(dir)
	require.NoError(t, err)
	defer first.Release()

	second, err := AcquireLock(dir)
	require.Error(t, err)
	assert.Nil(t, second)

	var lockErr *LockError
	require.True(t, errors.As(err, &lockErr))
	assert.Equal(t, first.Path(), lockErr.LockPath)
	assert.Contains(t, lockErr.Holder, "(running)")
	assert.Contains(t, err.Error(), "another CopilotRelay instance is already running")

	// The failed attempt must not clobber the holder's pid.
	data, err := os.ReadFile(first.Path())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), parsePID(string(data)))
}

func TestReleaseAndReacquire(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
	assert.NoError(t, lock.Release(), "second release is a no-op")

	_, err = os.Stat(filepath.Join(dir, LockFileName))
	assert.True(t, os.IsNotExist(err))

	again, err := AcquireLock(dir)
	require.NoError(t, err)
	assert.NoError(t, again.Release())
}

func TestAcquireLockCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")

	lock, err := AcquireLock(dir)
	require.NoError(t, err)
	defer lock.Release()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestAcquireLockEmptyDir(t *testing.T) {
	_, err := AcquireLock("  ")
	assert.ErrorIs(t, err, ErrEmptyStateDir)
}

func TestParsePID(t *testing.T) {
	tests := []struct {
		content string
		want    int
	}{
		{"pid=1234\n", 1234},
		{"pid=42\nstarted=2025-01-01T00:00:00Z\n", 42},
		{"started=2025-01-01T00:00:00Z\npid=7\n", 7},
		{"pid=abc\n", 0},
		{"", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parsePID(tt.content), tt.content)
	}
}

func TestIsProcessRunning(t *testing.T) {
	assert.True(t, isProcessRunning(os.Getpid()))
	assert.False(t, isProcessRunning(999999999))
}

func TestNilLockRelease(t *testing.T) {
	var l *Lock
	assert.NoError(t, l.Release())
}
