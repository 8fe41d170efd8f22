package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stackback/stackback/internal/notify"
	"github.com/stackback/stackback/internal/service"
	"github.com/stackback/stackback/internal/store"
	"github.com/stackback/stackback/pkg/models"
)

// fakeStore keeps snapshot content in memory. Create reads the real
// files under the given paths so round-trip tests work against a
// t.TempDir.
type fakeStore struct {
	mu        sync.Mutex
	snapshots []store.Snapshot
	content   map[store.SnapshotID]map[string][]byte
	nextID    int

	verifyErr  error
	createErr  error
	flushErrs  []error // consumed per Flush call; nil entry means success
	listErr    error
	restoreErr error
	forgetErr  error

	onCreate func()

	flushCalls int
	forgotten  []store.SnapshotID
}

func newFakeStore() *fakeStore {
	return &fakeStore{content: make(map[store.SnapshotID]map[string][]byte)}
}

func (f *fakeStore) Verify(ctx context.Context) error { return f.verifyErr }

func (f *fakeStore) Create(ctx context.Context, group string, paths []string, tags []string) (store.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onCreate != nil {
		f.onCreate()
	}
	if f.createErr != nil {
		return store.Snapshot{}, f.createErr
	}

	files := make(map[string][]byte)
	for _, path := range paths {
		filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return nil
			}
			data, readErr := os.ReadFile(p)
			if readErr != nil {
				return nil
			}
			files[p] = data
			return nil
		})
	}

	f.nextID++
	snap := store.Snapshot{
		ID:        store.SnapshotID(fmt.Sprintf("snap-%03d", f.nextID)),
		GroupName: group,
		CreatedAt: time.Now().Add(time.Duration(f.nextID) * time.Second),
		Tags:      tags,
	}
	for _, data := range files {
		snap.SizeBytes += int64(len(data))
	}
	f.snapshots = append(f.snapshots, snap)
	f.content[snap.ID] = files
	return snap, nil
}

func (f *fakeStore) Flush(ctx context.Context, id store.SnapshotID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCalls++
	if len(f.flushErrs) > 0 {
		err := f.flushErrs[0]
		f.flushErrs = f.flushErrs[1:]
		return err
	}
	return nil
}

func (f *fakeStore) List(ctx context.Context, group string) ([]store.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []store.Snapshot
	for _, snap := range f.snapshots {
		if snap.GroupName == group {
			out = append(out, snap)
		}
	}
	store.SortNewestFirst(out)
	return out, nil
}

func (f *fakeStore) Restore(ctx context.Context, id store.SnapshotID, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.restoreErr != nil {
		return f.restoreErr
	}
	files, ok := f.content[id]
	if !ok {
		return store.ErrSnapshotNotFound
	}
	for path, data := range files {
		full := filepath.Join(target, path)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(full, data, 0644); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStore) Forget(ctx context.Context, ids []store.SnapshotID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forgetErr != nil {
		return f.forgetErr
	}
	f.forgotten = append(f.forgotten, ids...)
	removed := make(map[store.SnapshotID]bool, len(ids))
	for _, id := range ids {
		removed[id] = true
	}
	kept := f.snapshots[:0]
	for _, snap := range f.snapshots {
		if !removed[snap.ID] {
			kept = append(kept, snap)
		}
	}
	f.snapshots = kept
	return nil
}

// seed registers a snapshot without touching the filesystem.
func (f *fakeStore) seed(id, group string, age time.Duration, tags ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, store.Snapshot{
		ID:        store.SnapshotID(id),
		GroupName: group,
		CreatedAt: time.Now().Add(-age),
		Tags:      tags,
	})
	f.content[store.SnapshotID(id)] = map[string][]byte{}
}

// fakeController records stop/start calls as "stop:name"/"start:name".
type fakeController struct {
	mu       sync.Mutex
	calls    []string
	running  map[string]bool
	stopErr  map[string]error
	startErr map[string]error

	onStop func(member string)
}

func newFakeController(members ...string) *fakeController {
	running := make(map[string]bool)
	for _, m := range members {
		running[m] = true
	}
	return &fakeController{
		running:  running,
		stopErr:  make(map[string]error),
		startErr: make(map[string]error),
	}
}

func (f *fakeController) Stop(ctx context.Context, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "stop:"+member)
	if f.onStop != nil {
		f.onStop(member)
	}
	if err := f.stopErr[member]; err != nil {
		return err
	}
	f.running[member] = false
	return nil
}

func (f *fakeController) Start(ctx context.Context, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "start:"+member)
	if err := f.startErr[member]; err != nil {
		return err
	}
	f.running[member] = true
	return nil
}

func (f *fakeController) Status(ctx context.Context, member string) (service.MemberStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state := "exited"
	if f.running[member] {
		state = "running"
	}
	return service.MemberStatus{Name: member, State: state, Running: f.running[member]}, nil
}

func (f *fakeController) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeController) allRunning(members []string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range members {
		if !f.running[m] {
			return false
		}
	}
	return true
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (f *fakeEmitter) Emit(ctx context.Context, event notify.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

func (f *fakeEmitter) last() (notify.Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return notify.Event{}, false
	}
	return f.events[len(f.events)-1], true
}

func testGroup() models.ServiceGroup {
	return models.ServiceGroup{
		Name:      "recipe-app",
		Kind:      models.GroupComposite,
		Members:   []string{"worker", "api", "db"},
		DataPaths: []string{"/srv/recipe-app"},
	}
}

// newTestRunner wires a Runner against fakes with state in a temp dir.
func newTestRunner(t *testing.T, st *fakeStore, ctrl *fakeController) (*Runner, *fakeEmitter) {
	t.Helper()

	stateDir := t.TempDir()
	records := NewRecordStore(stateDir)
	if err := records.Load(); err != nil {
		t.Fatalf("load records: %v", err)
	}
	locks, err := NewLockManager(stateDir)
	if err != nil {
		t.Fatalf("lock manager: %v", err)
	}
	index := store.NewIndex(stateDir)
	if err := index.Load(); err != nil {
		t.Fatalf("load index: %v", err)
	}

	emitter := &fakeEmitter{}
	policy := models.RetentionConfig{MaxAgeDays: 30, MinKeep: 3}
	policy.SafetyMaxAge.Duration = 48 * time.Hour

	r := NewRunner(st, ctrl, emitter, records, locks, index, policy)
	r.Logf = t.Logf
	r.UploadBackoffInitial = time.Millisecond
	return r, emitter
}
