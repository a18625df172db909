// Package lockfile keeps two relays from running against the same state directory.
//
// Sessions and the de-duplication window live only in process memory, so a second relay
// behind the same webhook would double-reply and double-remind. The lock is an flock on a
// file in the state directory and is released by the kernel if the process dies.
package lockfile

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LockFileName is the name of the lock file created in the state directory
const LockFileName = "copilotrelay.lock"

// ErrEmptyStateDir is returned when no state directory is configured.
var ErrEmptyStateDir = errors.New("state directory cannot be empty")

// Lock is a held state directory lock.
type Lock struct {
	file *os.File
	path string
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// AcquireLock takes an exclusive, non-blocking lock on stateDir, creating the directory if
// needed. A *LockError is returned when another process already holds it.
func AcquireLock(stateDir string) (*Lock, error) {
	if strings.TrimSpace(stateDir) == "" {
		return nil, ErrEmptyStateDir
	}
	lockPath := filepath.Join(stateDir, LockFileName)

	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	// No O_TRUNC: a failed attempt must leave the holder's pid intact.
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		holder := describeHolder(lockPath)
		slog.Error("Lockfile.AcquireLock: state directory is locked", "lock_path", lockPath, "holder", holder, "error", err)
		return nil, &LockError{LockPath: lockPath, Holder: holder, Cause: err}
	}

	if err := writeOwner(file); err != nil {
		_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to write lock information to %s: %w", lockPath, err)
	}

	slog.Info("Lockfile.AcquireLock: lock acquired", "lock_path", lockPath, "pid", os.Getpid())
	return &Lock{file: file, path: lockPath}, nil
}

func writeOwner(file *os.File) error {
	if err := file.Truncate(0); err != nil {
		return err
	}
	owner := fmt.Sprintf("pid=%d\nstarted=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteAt([]byte(owner), 0); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		slog.Warn("Lockfile.writeOwner: sync failed", "error", err)
	}
	return nil
}

// Release unlocks and removes the lock file. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}

	var errs []error
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		errs = append(errs, fmt.Errorf("unlock: %w", err))
	}
	if err := l.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, fmt.Errorf("remove: %w", err))
	}
	l.file = nil

	if err := errors.Join(errs...); err != nil {
		slog.Error("Lockfile.Release: release incomplete", "lock_path", l.path, "error", err)
		return err
	}
	slog.Info("Lockfile.Release: lock released", "lock_path", l.path)
	return nil
}

// LockError reports that another process holds the state directory lock.
type LockError struct {
	LockPath string
	Holder   string
	Cause    error
}

func (e *LockError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "another CopilotRelay instance is already running with this state directory (lock file: %s)", e.LockPath)
	if e.Holder != "" {
		fmt.Fprintf(&b, "; holder: %s", e.Holder)
	}
	fmt.Fprintf(&b, "; if no other instance is running, remove the stale lock with: rm %s", e.LockPath)
	return b.String()
}

func (e *LockError) Unwrap() error {
	return e.Cause
}

// describeHolder summarizes the lock file contents for error messages.
func describeHolder(lockPath string) string {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return "unknown (lock file unreadable)"
	}
	pid := parsePID(string(data))
	switch {
	case pid <= 0:
		return "unknown (no pid recorded)"
	case isProcessRunning(pid):
		return fmt.Sprintf("PID %d (running)", pid)
	default:
		return fmt.Sprintf("PID %d (not running)", pid)
	}
}

// parsePID extracts the value of the first "pid=" line.
func parsePID(content string) int {
	for _, line := range strings.Split(content, "\n") {
		value, ok := strings.CutPrefix(strings.TrimSpace(line), "pid=")
		if !ok {
			continue
		}
		pid, err := strconv.Atoi(value)
		if err != nil {
			return 0
		}
		return pid
	}
	return 0
}

// isProcessRunning probes pid with signal 0.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
