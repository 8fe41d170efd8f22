package run

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lucsky/cuid"

	"github.com/stackback/stackback/internal/fsutil"
	"github.com/stackback/stackback/internal/store"
)

type Kind string

const (
	KindBackup  Kind = "backup"
	KindRestore Kind = "restore"
)

type State string

const (
	StateIdle               State = "idle"
	StatePreflight          State = "preflight"
	StateSelectingSnapshot  State = "selecting_snapshot"
	StateSafetySnapshot     State = "safety_snapshot"
	StateStoppingServices   State = "stopping_services"
	StateCapturingSnapshot  State = "capturing_snapshot"
	StateUploadingSnapshot  State = "uploading_snapshot"
	StatePruning            State = "pruning"
	StateRestoringSnapshot  State = "restoring_snapshot"
	StateRestartingServices State = "restarting_services"
	StateNotifying          State = "notifying"
	StateCompleted          State = "completed"
	StateFailed             State = "failed"
)

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Record is the audit/state entry for one run. It transitions only
// through its owning controller and is persisted on every transition so
// an interrupted run is visible to reconciliation.
type Record struct {
	RunID       string           `json:"run_id"`
	GroupName   string           `json:"group_name"`
	Kind        Kind             `json:"kind"`
	State       State            `json:"state"`
	PID         int              `json:"pid"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Error       string           `json:"error,omitempty"`
	SnapshotID  store.SnapshotID `json:"snapshot_id,omitempty"`
}

func newRecord(group string, kind Kind, now time.Time) Record {
	return Record{
		RunID:     cuid.New(),
		GroupName: group,
		Kind:      kind,
		State:     StateIdle,
		PID:       os.Getpid(),
		StartedAt: now,
	}
}

// RecordStore persists run records as JSON in the state directory. The
// file is shared by concurrent runs for different groups in separate
// processes, so every write merges into the current file content under
// a cross-process lock instead of rewriting it from this process's
// in-memory copy; a blind rewrite would drop another process's
// non-terminal record and hide it from reconciliation.
type RecordStore struct {
	mu      sync.Mutex
	path    string
	records []Record
	dirty   map[string]bool
}

func NewRecordStore(stateDir string) *RecordStore {
	return &RecordStore{
		path:  filepath.Join(stateDir, "runs.json"),
		dirty: make(map[string]bool),
	}
}

func (rs *RecordStore) Load() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(rs.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	records, err := readRecords(rs.path)
	if err != nil {
		return err
	}
	rs.records = records
	return nil
}

func readRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("failed to read run records: %w", err)
	}

	var file struct {
		Runs []Record `json:"runs"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse run records: %w", err)
	}
	return file.Runs, nil
}

// save overlays this process's changed records onto the current file
// content by RunID, under the file lock. Records another process wrote
// since our last read survive untouched.
func (rs *RecordStore) save() error {
	return fsutil.WithFileLock(rs.path+".lock", func() error {
		merged, err := readRecords(rs.path)
		if err != nil {
			return err
		}

		position := make(map[string]int, len(merged))
		for i, rec := range merged {
			position[rec.RunID] = i
		}
		for _, rec := range rs.records {
			if !rs.dirty[rec.RunID] {
				continue
			}
			if i, ok := position[rec.RunID]; ok {
				merged[i] = rec
			} else {
				position[rec.RunID] = len(merged)
				merged = append(merged, rec)
			}
		}

		file := struct {
			Runs []Record `json:"runs"`
		}{Runs: merged}
		data, err := json.MarshalIndent(file, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal run records: %w", err)
		}
		if err := fsutil.AtomicWriteFile(rs.path, data, 0644); err != nil {
			return fmt.Errorf("failed to write run records: %w", err)
		}

		rs.records = merged
		rs.dirty = make(map[string]bool)
		return nil
	})
}

func (rs *RecordStore) Append(record Record) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.records = append(rs.records, record)
	rs.dirty[record.RunID] = true
	return rs.save()
}

func (rs *RecordStore) Update(record Record) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for i := range rs.records {
		if rs.records[i].RunID == record.RunID {
			rs.records[i] = record
			rs.dirty[record.RunID] = true
			return rs.save()
		}
	}
	return fmt.Errorf("run record not found: %s", record.RunID)
}

// Active returns the non-terminal records, optionally filtered by
// group. At most one should exist per group; reconciliation handles
// leftovers from dead processes.
func (rs *RecordStore) Active(group string) []Record {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	var out []Record
	for _, record := range rs.records {
		if record.State.Terminal() {
			continue
		}
		if group == "" || record.GroupName == group {
			out = append(out, record)
		}
	}
	return out
}

// List returns records newest first, optionally filtered by group.
func (rs *RecordStore) List(group string) []Record {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	var out []Record
	for _, record := range rs.records {
		if group == "" || record.GroupName == group {
			out = append(out, record)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
