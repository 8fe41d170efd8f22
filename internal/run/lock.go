package run

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// LockManager hands out per-group run locks as pid-stamped lock files.
// A lock file with a dead pid is stale and reclaimed; a live pid means
// another run is active and acquisition fails immediately.
type LockManager struct {
	lockDir string
}

func NewLockManager(stateDir string) (*LockManager, error) {
	lockDir := filepath.Join(stateDir, "locks")
	if err := os.MkdirAll(lockDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return &LockManager{lockDir: lockDir}, nil
}

type Lock struct {
	path     string
	released bool
}

func (lm *LockManager) lockPath(group string) string {
	return filepath.Join(lm.lockDir, group+".lock")
}

// Acquire takes the group's run lock or fails with AlreadyRunningError.
// It never blocks: the at-most-one-run-per-group rule is enforced by
// rejection, not queueing.
func (lm *LockManager) Acquire(group string) (*Lock, error) {
	lockFile := lm.lockPath(group)

	for {
		f, err := os.OpenFile(lockFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return &Lock{path: lockFile}, nil
		}

		pid, readErr := readLockPID(lockFile)
		if readErr != nil {
			if os.IsNotExist(readErr) {
				continue
			}
			return nil, fmt.Errorf("failed to read lock file %s: %w", lockFile, readErr)
		}

		if pid > 0 && processAlive(pid) {
			return nil, &AlreadyRunningError{Group: group, PID: pid}
		}

		// stale lock from a dead process
		if err := os.Remove(lockFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale lock %s: %w", lockFile, err)
		}
	}
}

// HolderPID returns the pid in the group's lock file, or 0 when the
// lock is not held.
func (lm *LockManager) HolderPID(group string) int {
	pid, err := readLockPID(lm.lockPath(group))
	if err != nil {
		return 0
	}
	return pid
}

// ForceRelease removes the group's lock file regardless of holder.
// Reconciliation uses it for locks left behind by dead processes.
func (lm *LockManager) ForceRelease(group string) error {
	if err := os.Remove(lm.lockPath(group)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (l *Lock) Release() {
	if l.released {
		return
	}
	l.released = true
	os.Remove(l.path)
}

func readLockPID(lockFile string) (int, error) {
	data, err := os.ReadFile(lockFile)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, nil
	}
	return pid, nil
}

func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
