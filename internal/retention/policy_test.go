package retention_test

import (
	"testing"
	"time"

	"github.com/stackback/stackback/internal/retention"
	"github.com/stackback/stackback/internal/store"
	"github.com/stackback/stackback/pkg/models"
)

func policy(maxAgeDays, minKeep int, safetyMaxAge time.Duration) models.RetentionConfig {
	cfg := models.RetentionConfig{MaxAgeDays: maxAgeDays, MinKeep: minKeep}
	cfg.SafetyMaxAge.Duration = safetyMaxAge
	return cfg
}

func snapshotAged(id string, ageDays int, tags ...string) store.Snapshot {
	return store.Snapshot{
		ID:        store.SnapshotID(id),
		GroupName: "registry-stack",
		CreatedAt: time.Now().Add(-time.Duration(ageDays) * 24 * time.Hour),
		Tags:      tags,
	}
}

func TestSelectKeepsMinimumRegardlessOfAge(t *testing.T) {
	snapshots := []store.Snapshot{
		snapshotAged("d10", 10),
		snapshotAged("d20", 20),
		snapshotAged("d31", 31),
		snapshotAged("d40", 40),
		snapshotAged("d50", 50),
	}

	remove := retention.Select(snapshots, policy(30, 3, 48*time.Hour), time.Now())

	got := map[store.SnapshotID]bool{}
	for _, id := range remove {
		got[id] = true
	}
	// the 3 newest survive even though d31 is past max age; only the
	// over-age snapshots beyond that floor are removed
	if len(remove) != 2 || !got["d40"] || !got["d50"] {
		t.Fatalf("expected {d40, d50}, got %v", remove)
	}
}

func TestSelectNothingUnderMinKeep(t *testing.T) {
	snapshots := []store.Snapshot{
		snapshotAged("d90", 90),
		snapshotAged("d60", 60),
	}
	if remove := retention.Select(snapshots, policy(30, 3, 48*time.Hour), time.Now()); len(remove) != 0 {
		t.Fatalf("min keep floor must hold, got %v", remove)
	}
}

func TestSelectIsIdempotent(t *testing.T) {
	snapshots := []store.Snapshot{
		snapshotAged("d10", 10),
		snapshotAged("d20", 20),
		snapshotAged("d31", 31),
		snapshotAged("d40", 40),
		snapshotAged("d50", 50),
	}
	cfg := policy(30, 3, 48*time.Hour)
	now := time.Now()

	remove := retention.Select(snapshots, cfg, now)
	removed := map[store.SnapshotID]bool{}
	for _, id := range remove {
		removed[id] = true
	}

	var survivors []store.Snapshot
	for _, snap := range snapshots {
		if !removed[snap.ID] {
			survivors = append(survivors, snap)
		}
	}

	if again := retention.Select(survivors, cfg, now); len(again) != 0 {
		t.Fatalf("selection on an already-pruned list must be empty, got %v", again)
	}
}

func TestSelectSafetyWindowIsIndependent(t *testing.T) {
	snapshots := []store.Snapshot{
		snapshotAged("regular", 10),
		snapshotAged("fresh-safety", 1, store.TagSafety),
		snapshotAged("old-safety", 3, store.TagSafety),
	}

	remove := retention.Select(snapshots, policy(30, 3, 48*time.Hour), time.Now())
	if len(remove) != 1 || remove[0] != "old-safety" {
		t.Fatalf("expected only old-safety removed, got %v", remove)
	}
}

func TestSelectSafetyDoesNotConsumeMinKeep(t *testing.T) {
	// three safety snapshots must not shield an over-age regular one
	snapshots := []store.Snapshot{
		snapshotAged("s1", 1, store.TagSafety),
		snapshotAged("s2", 1, store.TagSafety),
		snapshotAged("s3", 1, store.TagSafety),
		snapshotAged("r1", 10),
		snapshotAged("r2", 20),
		snapshotAged("r3", 25),
		snapshotAged("r4", 40),
	}

	remove := retention.Select(snapshots, policy(30, 3, 96*time.Hour), time.Now())
	if len(remove) != 1 || remove[0] != "r4" {
		t.Fatalf("expected r4 removed, got %v", remove)
	}
}

func TestSelectEmptyList(t *testing.T) {
	if remove := retention.Select(nil, policy(30, 3, 48*time.Hour), time.Now()); len(remove) != 0 {
		t.Fatalf("expected empty selection, got %v", remove)
	}
}
