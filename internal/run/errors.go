package run

import (
	"errors"
	"fmt"
)

// AlreadyRunningError means the group's run lock is held by a live
// process. Fatal, no side effects.
type AlreadyRunningError struct {
	Group string
	PID   int
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("a run is already active for group %s (pid %d)", e.Group, e.PID)
}

// PreflightError means the store was unreachable or unusable before
// anything was stopped. Fatal, no side effects.
type PreflightError struct {
	Err error
}

func (e *PreflightError) Error() string {
	return fmt.Sprintf("preflight failed: %v", e.Err)
}

func (e *PreflightError) Unwrap() error { return e.Err }

// StopError means a member failed to stop. Members stopped before the
// failure have already been restarted best-effort when this surfaces.
type StopError struct {
	Member string
	Err    error
}

func (e *StopError) Error() string {
	return fmt.Sprintf("failed to stop %s: %v", e.Member, e.Err)
}

func (e *StopError) Unwrap() error { return e.Err }

// SnapshotError covers failed captures and failed restores of snapshot
// data. Services are restarted before the run fails.
type SnapshotError struct {
	Op  string
	Err error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("snapshot %s failed: %v", e.Op, e.Err)
}

func (e *SnapshotError) Unwrap() error { return e.Err }

// UploadError means the remote flush kept failing after bounded
// retries. Services are restarted before the run fails.
type UploadError struct {
	Attempts int
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// PruneError is non-fatal: the backup succeeded, only retention cleanup
// did not.
type PruneError struct {
	Err error
}

func (e *PruneError) Error() string {
	return fmt.Sprintf("prune failed: %v", e.Err)
}

func (e *PruneError) Unwrap() error { return e.Err }

// RestartError means one or more members did not come back up. The
// group may be down, so this one is surfaced with urgency.
type RestartError struct {
	Members []string
	Err     error
}

func (e *RestartError) Error() string {
	return fmt.Sprintf("failed to restart %v: %v", e.Members, e.Err)
}

func (e *RestartError) Unwrap() error { return e.Err }

// SnapshotNotFoundError means a restore reference matched nothing.
// Fatal, restore only, no side effects.
type SnapshotNotFoundError struct {
	Group string
	Ref   string
}

func (e *SnapshotNotFoundError) Error() string {
	if e.Ref == "" {
		return fmt.Sprintf("no snapshots found for group %s", e.Group)
	}
	return fmt.Sprintf("no snapshot matching %q for group %s", e.Ref, e.Group)
}

// IsUrgent reports whether err represents a possible service outage
// that needs escalated alerting.
func IsUrgent(err error) bool {
	var restartErr *RestartError
	return errors.As(err, &restartErr)
}
