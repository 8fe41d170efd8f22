package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/stackback/stackback/internal/fsutil"
)

// Index is a local cache of snapshot metadata, persisted as JSON so the
// snapshot list survives process restarts and stays readable when the
// store is unreachable. Like the run record file it is shared by
// concurrent runs in separate processes, so writes merge pending adds
// and removes into the current file content under a cross-process lock.
type Index struct {
	mu        sync.Mutex
	path      string
	snapshots []Snapshot
	added     []Snapshot
	removed   map[SnapshotID]bool
}

func NewIndex(stateDir string) *Index {
	return &Index{
		path:    filepath.Join(stateDir, "snapshots.json"),
		removed: make(map[SnapshotID]bool),
	}
}

func (ix *Index) Load() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(ix.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	snapshots, err := readIndex(ix.path)
	if err != nil {
		return err
	}
	ix.snapshots = snapshots
	return nil
}

func readIndex(path string) ([]Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Snapshot{}, nil
		}
		return nil, fmt.Errorf("failed to read snapshot index: %w", err)
	}

	var file struct {
		Snapshots []Snapshot `json:"snapshots"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot index: %w", err)
	}
	return file.Snapshots, nil
}

func (ix *Index) save() error {
	return fsutil.WithFileLock(ix.path+".lock", func() error {
		merged, err := readIndex(ix.path)
		if err != nil {
			return err
		}

		present := make(map[SnapshotID]bool, len(merged))
		for _, snap := range merged {
			present[snap.ID] = true
		}
		for _, snap := range ix.added {
			if !present[snap.ID] {
				present[snap.ID] = true
				merged = append(merged, snap)
			}
		}
		kept := merged[:0]
		for _, snap := range merged {
			if !ix.removed[snap.ID] {
				kept = append(kept, snap)
			}
		}
		merged = kept

		file := struct {
			Snapshots []Snapshot `json:"snapshots"`
		}{Snapshots: merged}
		data, err := json.MarshalIndent(file, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot index: %w", err)
		}
		if err := fsutil.AtomicWriteFile(ix.path, data, 0644); err != nil {
			return fmt.Errorf("failed to write snapshot index: %w", err)
		}

		ix.snapshots = merged
		ix.added = nil
		ix.removed = make(map[SnapshotID]bool)
		return nil
	})
}

func (ix *Index) Add(snapshot Snapshot) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.snapshots = append(ix.snapshots, snapshot)
	ix.added = append(ix.added, snapshot)
	return ix.save()
}

func (ix *Index) Remove(ids []SnapshotID) error {
	if len(ids) == 0 {
		return nil
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, id := range ids {
		ix.removed[id] = true
	}
	kept := ix.snapshots[:0]
	for _, snap := range ix.snapshots {
		if !ix.removed[snap.ID] {
			kept = append(kept, snap)
		}
	}
	ix.snapshots = kept
	return ix.save()
}

// List returns cached snapshots for the group (all groups when group is
// empty), newest first.
func (ix *Index) List(group string) []Snapshot {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	var out []Snapshot
	for _, snap := range ix.snapshots {
		if group == "" || snap.GroupName == group {
			out = append(out, snap)
		}
	}
	SortNewestFirst(out)
	return out
}
