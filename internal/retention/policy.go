// Package retention decides which snapshots may be removed. Selection
// is a pure function over a snapshot list, so pruning is testable and
// idempotent by construction.
package retention

import (
	"time"

	"github.com/stackback/stackback/internal/store"
	"github.com/stackback/stackback/pkg/models"
)

// Select returns the snapshots eligible for removal under policy,
// evaluated at now. A regular snapshot is removable only if it is older
// than MaxAgeDays and at least MinKeep newer snapshots survive. Safety
// snapshots are judged only against SafetyMaxAge and never count toward
// the MinKeep floor.
func Select(snapshots []store.Snapshot, policy models.RetentionConfig, now time.Time) []store.SnapshotID {
	var regular, safety []store.Snapshot
	for _, snap := range snapshots {
		if snap.HasTag(store.TagSafety) {
			safety = append(safety, snap)
		} else {
			regular = append(regular, snap)
		}
	}

	var remove []store.SnapshotID

	store.SortNewestFirst(regular)
	maxAge := time.Duration(policy.MaxAgeDays) * 24 * time.Hour
	for i, snap := range regular {
		if i < policy.MinKeep {
			continue
		}
		if now.Sub(snap.CreatedAt) > maxAge {
			remove = append(remove, snap.ID)
		}
	}

	for _, snap := range safety {
		if now.Sub(snap.CreatedAt) > policy.SafetyMaxAge.Duration {
			remove = append(remove, snap.ID)
		}
	}

	return remove
}
