package store

import (
	"context"
	"errors"
	"sort"
	"time"
)

// TagSafety marks pre-restore safety snapshots. They live on a shorter
// retention window than regular snapshots.
const TagSafety = "safety"

// ErrSnapshotNotFound is returned when a snapshot reference does not
// resolve to any snapshot in the store.
var ErrSnapshotNotFound = errors.New("snapshot not found")

type SnapshotID string

// Snapshot is the metadata for one point-in-time capture of a service
// group's data paths. The content itself lives in the store.
type Snapshot struct {
	ID        SnapshotID `json:"id"`
	GroupName string     `json:"group_name"`
	CreatedAt time.Time  `json:"created_at"`
	SizeBytes int64      `json:"size_bytes"`
	Tags      []string   `json:"tags,omitempty"`
}

func (s Snapshot) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Store is the snapshot store capability the run controllers drive. The
// implementation guarantees that Create is atomic from the caller's
// perspective (a complete restorable snapshot exists afterward, or none
// does) and that Restore fully overwrites target paths before returning.
type Store interface {
	// Verify checks that the store is reachable and usable.
	Verify(ctx context.Context) error

	// Create captures the given paths into a new snapshot for group.
	Create(ctx context.Context, group string, paths []string, tags []string) (Snapshot, error)

	// Flush pushes a locally created snapshot to the remote tier.
	// Write-through stores return nil immediately.
	Flush(ctx context.Context, id SnapshotID) error

	// List returns the group's snapshots, newest first.
	List(ctx context.Context, group string) ([]Snapshot, error)

	// Restore writes the snapshot's content under target, overwriting
	// existing files.
	Restore(ctx context.Context, id SnapshotID, target string) error

	// Forget removes the given snapshots from the store.
	Forget(ctx context.Context, ids []SnapshotID) error
}

// SortNewestFirst orders snapshots by creation time, newest first.
func SortNewestFirst(snapshots []Snapshot) {
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})
}

// transientError marks a store error as a transient network condition
// that is worth retrying.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err so IsTransient reports true for it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err represents a transient network
// failure that upload retry logic may retry.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
