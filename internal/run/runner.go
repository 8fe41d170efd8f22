package run

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/stackback/stackback/internal/notify"
	"github.com/stackback/stackback/internal/retention"
	"github.com/stackback/stackback/internal/service"
	"github.com/stackback/stackback/internal/store"
	"github.com/stackback/stackback/pkg/models"
)

const (
	uploadMaxRetries     = 4 // 5 attempts total
	uploadInitialBackoff = time.Second
	uploadMaxBackoff     = 30 * time.Second
)

// Runner executes backup and restore runs for service groups. Runs for
// different groups may execute concurrently; the per-group lock keeps
// each group down to one active run.
type Runner struct {
	Store     store.Store
	Services  service.Controller
	Emitter   notify.Emitter
	Records   *RecordStore
	Locks     *LockManager
	Index     *store.Index
	Retention models.RetentionConfig

	// RestoreTarget is where snapshot content is written back; data
	// paths are absolute, so this is "/" in production.
	RestoreTarget string

	// Logf reports step progress and non-fatal errors. Nil means silent.
	Logf func(format string, args ...any)

	// upload retry knobs, defaulted in NewRunner
	UploadMaxRetries     uint64
	UploadBackoffInitial time.Duration

	now func() time.Time
}

func NewRunner(st store.Store, services service.Controller, emitter notify.Emitter, records *RecordStore, locks *LockManager, index *store.Index, policy models.RetentionConfig) *Runner {
	return &Runner{
		Store:                st,
		Services:             services,
		Emitter:              emitter,
		Records:              records,
		Locks:                locks,
		Index:                index,
		Retention:            policy,
		RestoreTarget:        "/",
		UploadMaxRetries:     uploadMaxRetries,
		UploadBackoffInitial: uploadInitialBackoff,
		now:                  time.Now,
	}
}

func (r *Runner) logf(format string, args ...any) {
	if r.Logf != nil {
		r.Logf(format, args...)
	}
}

func (r *Runner) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

func (r *Runner) setState(rec *Record, state State) {
	rec.State = state
	if err := r.Records.Update(*rec); err != nil {
		r.logf("failed to persist run state %s: %v", state, err)
	}
}

// begin persists the new record after the lock is held, so at most one
// non-terminal record exists per group.
func (r *Runner) begin(group string, kind Kind) (Record, error) {
	rec := newRecord(group, kind, r.clock())
	if err := r.Records.Append(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// finish drives the Notifying step and parks the record in its terminal
// state. Emitter failures are logged, never escalated.
func (r *Runner) finish(ctx context.Context, rec *Record, runErr error) (Record, error) {
	r.setState(rec, StateNotifying)

	completed := r.clock()
	event := notify.Event{
		Group:           rec.GroupName,
		Kind:            string(rec.Kind),
		DurationSeconds: completed.Sub(rec.StartedAt).Seconds(),
		SnapshotID:      string(rec.SnapshotID),
	}
	if runErr != nil {
		event.State = string(StateFailed)
		event.Error = runErr.Error()
	} else {
		event.State = string(StateCompleted)
	}
	if err := r.Emitter.Emit(ctx, event); err != nil {
		r.logf("notification failed (ignored): %v", err)
	}

	rec.CompletedAt = &completed
	if runErr != nil {
		rec.State = StateFailed
		rec.Error = runErr.Error()
	} else {
		rec.State = StateCompleted
	}
	if err := r.Records.Update(*rec); err != nil {
		r.logf("failed to persist run record: %v", err)
	}
	return *rec, runErr
}

// stopMembers stops the group's members in declared order and returns
// the members that were actually stopped, in stop order.
func (r *Runner) stopMembers(ctx context.Context, group models.ServiceGroup) ([]string, error) {
	var stopped []string
	for _, member := range group.Members {
		if err := ctx.Err(); err != nil {
			return stopped, &StopError{Member: member, Err: err}
		}
		r.logf("stopping %s", member)
		if err := r.Services.Stop(ctx, member); err != nil {
			return stopped, &StopError{Member: member, Err: err}
		}
		stopped = append(stopped, member)
	}
	return stopped, nil
}

// startMembers starts members in the given order, continuing past
// failures so one broken member does not keep the rest down.
func (r *Runner) startMembers(ctx context.Context, members []string) error {
	var failed []string
	var firstErr error
	for _, member := range members {
		r.logf("starting %s", member)
		if err := r.Services.Start(ctx, member); err != nil {
			failed = append(failed, member)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if len(failed) > 0 {
		return &RestartError{Members: failed, Err: firstErr}
	}
	return nil
}

func reverseOf(members []string) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[len(members)-1-i] = m
	}
	return out
}

// flushWithRetry pushes the snapshot to the remote tier, retrying
// transient network failures with bounded exponential backoff.
func (r *Runner) flushWithRetry(ctx context.Context, id store.SnapshotID) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.UploadBackoffInitial
	bo.MaxInterval = uploadMaxBackoff

	attempts := 0
	operation := func() error {
		attempts++
		err := r.Store.Flush(ctx, id)
		if err == nil {
			return nil
		}
		if store.IsTransient(err) {
			r.logf("upload attempt %d failed, retrying: %v", attempts, err)
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, r.UploadMaxRetries), ctx))
	if err != nil {
		return &UploadError{Attempts: attempts, Err: err}
	}
	return nil
}

// prune applies the retention policy to the group's snapshots.
func (r *Runner) prune(ctx context.Context, group string) error {
	snapshots, err := r.Store.List(ctx, group)
	if err != nil {
		return &PruneError{Err: fmt.Errorf("list snapshots: %w", err)}
	}
	remove := retention.Select(snapshots, r.Retention, r.clock())
	if len(remove) == 0 {
		return nil
	}
	r.logf("pruning %d snapshot(s)", len(remove))
	if err := r.Store.Forget(ctx, remove); err != nil {
		return &PruneError{Err: err}
	}
	if r.Index != nil {
		if err := r.Index.Remove(remove); err != nil {
			r.logf("failed to update snapshot index: %v", err)
		}
	}
	return nil
}

func (r *Runner) indexAdd(snapshot store.Snapshot) {
	if r.Index == nil {
		return
	}
	if err := r.Index.Add(snapshot); err != nil {
		r.logf("failed to update snapshot index: %v", err)
	}
}
