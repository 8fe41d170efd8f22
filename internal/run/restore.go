package run

import (
	"context"
	"strings"

	"github.com/stackback/stackback/internal/store"
	"github.com/stackback/stackback/pkg/models"
)

// RestoreOptions select the snapshot to restore. Ref is an explicit
// snapshot id (or unique prefix), or "latest"/"" for the newest regular
// snapshot. Choose, when set, is asked to pick from the group's
// snapshot list instead.
type RestoreOptions struct {
	Ref    string
	Choose func(snapshots []store.Snapshot) (store.SnapshotID, error)
}

// Restore executes one restore run for the group. A safety snapshot of
// the current state is captured before anything is stopped; without it
// the restore never proceeds. The guaranteed-restart contract matches
// Backup once StoppingServices has succeeded.
func (r *Runner) Restore(ctx context.Context, group models.ServiceGroup, opts RestoreOptions) (Record, error) {
	lock, err := r.Locks.Acquire(group.Name)
	if err != nil {
		return Record{}, err
	}
	defer lock.Release()

	rec, err := r.begin(group.Name, KindRestore)
	if err != nil {
		return Record{}, err
	}

	r.setState(&rec, StateSelectingSnapshot)
	target, err := r.selectSnapshot(ctx, group.Name, opts)
	if err != nil {
		return r.finish(ctx, &rec, err)
	}
	rec.SnapshotID = target
	if err := r.Records.Update(rec); err != nil {
		r.logf("failed to persist run record: %v", err)
	}

	// restoring without a safety net is disallowed: abort here and
	// nothing has been stopped yet
	r.setState(&rec, StateSafetySnapshot)
	safety, err := r.Store.Create(ctx, group.Name, group.DataPaths, []string{store.TagSafety})
	if err != nil {
		return r.finish(ctx, &rec, &SnapshotError{Op: "safety capture", Err: err})
	}
	r.indexAdd(safety)

	r.setState(&rec, StateStoppingServices)
	stopped, stopErr := r.stopMembers(ctx, group)
	if stopErr != nil {
		if restartErr := r.startMembers(context.WithoutCancel(ctx), reverseOf(stopped)); restartErr != nil {
			r.logf("best-effort restart after stop failure: %v", restartErr)
		}
		return r.finish(ctx, &rec, stopErr)
	}

	runCtx := context.WithoutCancel(ctx)

	var runErr error

	// the only irreversible step in the system
	r.setState(&rec, StateRestoringSnapshot)
	if err := r.Store.Restore(runCtx, target, r.RestoreTarget); err != nil {
		runErr = &SnapshotError{Op: "restore", Err: err}
	}

	r.setState(&rec, StateRestartingServices)
	if restartErr := r.startMembers(runCtx, group.StartOrder()); restartErr != nil {
		runErr = restartErr
	}

	return r.finish(runCtx, &rec, runErr)
}

// selectSnapshot resolves the requested reference against the store.
// Safety snapshots are never picked implicitly.
func (r *Runner) selectSnapshot(ctx context.Context, group string, opts RestoreOptions) (store.SnapshotID, error) {
	snapshots, err := r.Store.List(ctx, group)
	if err != nil {
		return "", &PreflightError{Err: err}
	}

	var regular []store.Snapshot
	for _, snap := range snapshots {
		if !snap.HasTag(store.TagSafety) {
			regular = append(regular, snap)
		}
	}

	if opts.Choose != nil {
		if len(regular) == 0 {
			return "", &SnapshotNotFoundError{Group: group}
		}
		return opts.Choose(regular)
	}

	ref := opts.Ref
	if ref == "" || ref == "latest" {
		if len(regular) == 0 {
			return "", &SnapshotNotFoundError{Group: group}
		}
		return regular[0].ID, nil
	}

	for _, snap := range snapshots {
		if string(snap.ID) == ref || strings.HasPrefix(string(snap.ID), ref) {
			return snap.ID, nil
		}
	}
	return "", &SnapshotNotFoundError{Group: group, Ref: ref}
}
