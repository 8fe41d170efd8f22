package run

import (
	"context"
	"fmt"

	"github.com/stackback/stackback/pkg/models"
)

// Reconcile cleans up after runs that died with the process: every
// non-terminal record whose pid is gone is forced to Failed, its lock
// is released, and the group's members get an unconditional start
// sweep. It runs before any new run is accepted, so a crash mid-backup
// cannot leave a group down past the next invocation.
func (r *Runner) Reconcile(ctx context.Context, lookup func(name string) (models.ServiceGroup, error)) ([]Record, error) {
	var reconciled []Record

	for _, rec := range r.Records.Active("") {
		if rec.PID > 0 && processAlive(rec.PID) {
			// a live run in another process, leave it alone
			continue
		}

		r.logf("reconciling interrupted %s run %s for group %s", rec.Kind, rec.RunID, rec.GroupName)

		completed := r.clock()
		rec.State = StateFailed
		rec.Error = fmt.Sprintf("interrupted: process %d exited before the run finished", rec.PID)
		rec.CompletedAt = &completed
		if err := r.Records.Update(rec); err != nil {
			return reconciled, fmt.Errorf("failed to persist reconciled record %s: %w", rec.RunID, err)
		}

		if err := r.Locks.ForceRelease(rec.GroupName); err != nil {
			return reconciled, fmt.Errorf("failed to release stale lock for %s: %w", rec.GroupName, err)
		}

		group, err := lookup(rec.GroupName)
		if err != nil {
			// group no longer configured; nothing to sweep
			r.logf("no group definition for %s, skipping restart sweep", rec.GroupName)
			reconciled = append(reconciled, rec)
			continue
		}

		if err := r.startMembers(ctx, group.StartOrder()); err != nil {
			r.logf("restart sweep for %s: %v", rec.GroupName, err)
		}
		reconciled = append(reconciled, rec)
	}

	return reconciled, nil
}
