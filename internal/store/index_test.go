package store

import (
	"testing"
	"time"
)

func indexSnapshot(id, group string, age time.Duration) Snapshot {
	return Snapshot{
		ID:        SnapshotID(id),
		GroupName: group,
		CreatedAt: time.Now().Add(-age),
	}
}

func TestIndexPersistsAcrossLoads(t *testing.T) {
	dir := t.TempDir()

	ix := NewIndex(dir)
	if err := ix.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := ix.Add(indexSnapshot("snap-a", "recipe-app", time.Hour)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := ix.Add(indexSnapshot("snap-b", "recipe-app", 0)); err != nil {
		t.Fatalf("add: %v", err)
	}

	reloaded := NewIndex(dir)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	snapshots := reloaded.List("recipe-app")
	if len(snapshots) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snapshots))
	}
	if snapshots[0].ID != "snap-b" {
		t.Fatalf("expected newest first, got %s", snapshots[0].ID)
	}
}

func TestIndexRemove(t *testing.T) {
	ix := NewIndex(t.TempDir())
	if err := ix.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	ix.Add(indexSnapshot("snap-a", "recipe-app", time.Hour))
	ix.Add(indexSnapshot("snap-b", "recipe-app", 0))

	if err := ix.Remove([]SnapshotID{"snap-a"}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	snapshots := ix.List("")
	if len(snapshots) != 1 || snapshots[0].ID != "snap-b" {
		t.Fatalf("unexpected snapshots: %+v", snapshots)
	}
}

func TestIndexListFiltersByGroup(t *testing.T) {
	ix := NewIndex(t.TempDir())
	if err := ix.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	ix.Add(indexSnapshot("snap-a", "recipe-app", time.Hour))
	ix.Add(indexSnapshot("snap-b", "registry-stack", 0))

	if got := ix.List("recipe-app"); len(got) != 1 || got[0].ID != "snap-a" {
		t.Fatalf("filtered list: %+v", got)
	}
	if got := ix.List(""); len(got) != 2 {
		t.Fatalf("unfiltered list: %+v", got)
	}
}

func TestIndexLoadMissingFileIsEmpty(t *testing.T) {
	ix := NewIndex(t.TempDir())
	if err := ix.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := ix.List(""); len(got) != 0 {
		t.Fatalf("expected empty index, got %+v", got)
	}
}

func TestIndexMergesWritersOverOneFile(t *testing.T) {
	dir := t.TempDir()

	// two indexes over one state dir, as two concurrent processes
	ix1 := NewIndex(dir)
	ix2 := NewIndex(dir)
	if err := ix1.Load(); err != nil {
		t.Fatalf("load ix1: %v", err)
	}
	if err := ix2.Load(); err != nil {
		t.Fatalf("load ix2: %v", err)
	}

	if err := ix1.Add(indexSnapshot("snap-a", "recipe-app", time.Hour)); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if err := ix2.Add(indexSnapshot("snap-b", "registry-stack", 0)); err != nil {
		t.Fatalf("add b: %v", err)
	}

	fresh := NewIndex(dir)
	if err := fresh.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := fresh.List(""); len(got) != 2 {
		t.Fatalf("an add was lost: %+v", got)
	}

	if err := ix1.Remove([]SnapshotID{"snap-a"}); err != nil {
		t.Fatalf("remove: %v", err)
	}

	fresh = NewIndex(dir)
	if err := fresh.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	got := fresh.List("")
	if len(got) != 1 || got[0].ID != "snap-b" {
		t.Fatalf("expected only snap-b to remain, got %+v", got)
	}
}
