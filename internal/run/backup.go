package run

import (
	"context"

	"github.com/stackback/stackback/pkg/models"
)

// Backup executes one backup run for the group.
//
// Once StoppingServices succeeds, RestartingServices executes exactly
// once before the run reaches a terminal state, whatever happens to the
// snapshot steps in between. Cancellation via ctx is honored only until
// services start going down; after that the run is carried to
// completion on a detached context.
func (r *Runner) Backup(ctx context.Context, group models.ServiceGroup) (Record, error) {
	lock, err := r.Locks.Acquire(group.Name)
	if err != nil {
		return Record{}, err
	}
	defer lock.Release()

	rec, err := r.begin(group.Name, KindBackup)
	if err != nil {
		return Record{}, err
	}

	r.setState(&rec, StatePreflight)
	if err := r.Store.Verify(ctx); err != nil {
		return r.finish(ctx, &rec, &PreflightError{Err: err})
	}
	if err := ctx.Err(); err != nil {
		return r.finish(ctx, &rec, &PreflightError{Err: err})
	}

	r.setState(&rec, StateStoppingServices)
	stopped, stopErr := r.stopMembers(ctx, group)
	if stopErr != nil {
		// never leave the group partially down because of a backup
		if restartErr := r.startMembers(context.WithoutCancel(ctx), reverseOf(stopped)); restartErr != nil {
			r.logf("best-effort restart after stop failure: %v", restartErr)
		}
		return r.finish(ctx, &rec, stopErr)
	}

	// services are down: restart is now owed, cancellation is rejected
	runCtx := context.WithoutCancel(ctx)

	var runErr error

	r.setState(&rec, StateCapturingSnapshot)
	snapshot, err := r.Store.Create(runCtx, group.Name, group.DataPaths, nil)
	if err != nil {
		runErr = &SnapshotError{Op: "capture", Err: err}
	} else {
		rec.SnapshotID = snapshot.ID
		if err := r.Records.Update(rec); err != nil {
			r.logf("failed to persist run record: %v", err)
		}
		r.indexAdd(snapshot)

		r.setState(&rec, StateUploadingSnapshot)
		runErr = r.flushWithRetry(runCtx, snapshot.ID)
	}

	if runErr == nil {
		r.setState(&rec, StatePruning)
		if pruneErr := r.prune(runCtx, group.Name); pruneErr != nil {
			// a backup that failed to prune is still a successful backup
			r.logf("prune failed (non-fatal): %v", pruneErr)
		}
	}

	r.setState(&rec, StateRestartingServices)
	if restartErr := r.startMembers(runCtx, group.StartOrder()); restartErr != nil {
		// a possible outage beats whatever went wrong earlier
		runErr = restartErr
	}

	return r.finish(runCtx, &rec, runErr)
}
