package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type fakeRemote struct {
	mu sync.Mutex

	tasks  []Task
	counts StatusCounts
	config AppConfig

	tasksErr  error
	countsErr error
	configErr error
}

func (f *fakeRemote) FetchTaskList(ctx context.Context) ([]Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tasksErr != nil {
		return nil, f.tasksErr
	}
	out := make([]Task, len(f.tasks))
	copy(out, f.tasks)
	return out, nil
}

func (f *fakeRemote) FetchStatusCounts(ctx context.Context) (StatusCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countsErr != nil {
		return StatusCounts{}, f.countsErr
	}
	return f.counts, nil
}

func (f *fakeRemote) FetchConfig(ctx context.Context) (AppConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.configErr != nil {
		return AppConfig{}, f.configErr
	}
	return f.config, nil
}

func (f *fakeRemote) set(tasks []Task, counts StatusCounts, config AppConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = tasks
	f.counts = counts
	f.config = config
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRefreshAppliesAllThreeTogether(t *testing.T) {
	remote := &fakeRemote{}
	remote.set(
		[]Task{{ID: 1, Status: TaskStatusPending}},
		StatusCounts{Total: 1, Pending: 1},
		AppConfig{RootPath: "/data/inbox2"},
	)
	state := NewState("/data/inbox")
	syncer := NewSynchronizer(remote, state, nil, nil, testLogger(), time.Second)

	if err := syncer.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	snap, ok := state.Snapshot()
	if !ok {
		t.Fatalf("expected a snapshot after successful refresh")
	}
	if len(snap.Tasks) != 1 || snap.Tasks[0].ID != 1 {
		t.Fatalf("unexpected tasks: %+v", snap.Tasks)
	}
	if snap.Counts.Total != 1 || snap.Counts.Pending != 1 {
		t.Fatalf("unexpected counts: %+v", snap.Counts)
	}
	if snap.Config.RootPath != "/data/inbox2" {
		t.Fatalf("unexpected config: %+v", snap.Config)
	}
	if state.RootPath() != "/data/inbox2" {
		t.Fatalf("root path must derive from the fetched config")
	}
}

func TestFailedRefreshLeavesPreviousSnapshotUntouched(t *testing.T) {
	remote := &fakeRemote{}
	remote.set(
		[]Task{{ID: 7, Status: TaskStatusPending}},
		StatusCounts{Total: 1, Pending: 1},
		AppConfig{RootPath: "/data/inbox"},
	)
	state := NewState("/data/inbox")
	syncer := NewSynchronizer(remote, state, nil, nil, testLogger(), time.Second)

	if err := syncer.Refresh(context.Background()); err != nil {
		t.Fatalf("seed refresh failed: %v", err)
	}
	before, _ := state.Snapshot()

	// Tasks and config would fetch fine; the counts query fails. Nothing of
	// the cycle may be applied.
	remote.mu.Lock()
	remote.tasks = []Task{{ID: 7, Status: TaskStatusSent}, {ID: 8, Status: TaskStatusPending}}
	remote.countsErr = errors.New("status failed")
	remote.mu.Unlock()

	err := syncer.Refresh(context.Background())
	if err == nil {
		t.Fatalf("expected refresh error")
	}
	if err.Error() != "status failed" {
		t.Fatalf("unexpected error: %v", err)
	}

	after, _ := state.Snapshot()
	if len(after.Tasks) != len(before.Tasks) || after.Tasks[0].Status != before.Tasks[0].Status {
		t.Fatalf("failed cycle must not touch the task list: %+v", after.Tasks)
	}
	if after.Counts != before.Counts {
		t.Fatalf("failed cycle must not touch the counts: %+v", after.Counts)
	}
	if after.Config != before.Config {
		t.Fatalf("failed cycle must not touch the config: %+v", after.Config)
	}
	if !after.FetchedAt.Equal(before.FetchedAt) {
		t.Fatalf("failed cycle must not advance the snapshot time")
	}
}

func TestSelectionSurvivesRefreshWithStatusChurn(t *testing.T) {
	remote := &fakeRemote{}
	remote.set(
		[]Task{{ID: 7, Status: TaskStatusPending}},
		StatusCounts{Total: 1, Pending: 1},
		AppConfig{},
	)
	state := NewState("/data/inbox")
	selection := NewSelection()
	syncer := NewSynchronizer(remote, state, nil, nil, testLogger(), time.Second)

	if err := syncer.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	selection.Toggle(7)

	remote.set(
		[]Task{{ID: 7, Status: TaskStatusSent}},
		StatusCounts{Total: 1, Sent: 1},
		AppConfig{},
	)
	if err := syncer.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	if !selection.Has(7) {
		t.Fatalf("id 7 must stay selected across a status change")
	}
	snap, _ := state.Snapshot()
	if snap.Tasks[0].Status != TaskStatusSent {
		t.Fatalf("refresh must still apply the new status")
	}
}

func TestRefreshAfterCloseIsDiscarded(t *testing.T) {
	remote := &fakeRemote{}
	remote.set(nil, StatusCounts{Total: 3}, AppConfig{})
	state := NewState("/data/inbox")
	syncer := NewSynchronizer(remote, state, nil, nil, testLogger(), time.Second)

	syncer.Close()

	if err := syncer.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh after close must not error: %v", err)
	}
	if _, ok := state.Snapshot(); ok {
		t.Fatalf("results arriving after teardown must be discarded")
	}
}

type recordingHistory struct {
	mu      sync.Mutex
	samples []StatusCounts
}

func (r *recordingHistory) RecordStatusSample(ctx context.Context, counts StatusCounts, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, counts)
	return nil
}

func TestRefreshRecordsOneSamplePerSuccessfulCycle(t *testing.T) {
	remote := &fakeRemote{}
	remote.set(nil, StatusCounts{Total: 2, Sent: 2}, AppConfig{})
	state := NewState("/data/inbox")
	history := &recordingHistory{}
	syncer := NewSynchronizer(remote, state, history, nil, testLogger(), time.Second)

	if err := syncer.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	remote.mu.Lock()
	remote.configErr = errors.New("get config failed")
	remote.mu.Unlock()
	_ = syncer.Refresh(context.Background())

	history.mu.Lock()
	defer history.mu.Unlock()
	if len(history.samples) != 1 {
		t.Fatalf("expected exactly one sample (failed cycles record nothing), got %d", len(history.samples))
	}
	if history.samples[0].Sent != 2 {
		t.Fatalf("unexpected sample: %+v", history.samples[0])
	}
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []struct {
		prev, curr StatusCounts
		hadPrev    bool
	}
}

func (r *recordingObserver) ObserveCounts(prev, curr StatusCounts, hadPrev bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, struct {
		prev, curr StatusCounts
		hadPrev    bool
	}{prev, curr, hadPrev})
}

func TestRefreshNotifiesObserverWithPreviousCounts(t *testing.T) {
	remote := &fakeRemote{}
	remote.set(nil, StatusCounts{Total: 5, Pending: 5}, AppConfig{})
	state := NewState("/data/inbox")
	observer := &recordingObserver{}
	syncer := NewSynchronizer(remote, state, nil, observer, testLogger(), time.Second)

	if err := syncer.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	remote.set(nil, StatusCounts{Total: 5, Sent: 4, Failed: 1}, AppConfig{})
	if err := syncer.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	observer.mu.Lock()
	defer observer.mu.Unlock()
	if len(observer.calls) != 2 {
		t.Fatalf("expected two observer calls, got %d", len(observer.calls))
	}
	if observer.calls[0].hadPrev {
		t.Fatalf("first cycle has no previous counts")
	}
	if !observer.calls[1].hadPrev || observer.calls[1].prev.Pending != 5 || observer.calls[1].curr.Failed != 1 {
		t.Fatalf("second call must carry previous and current counts: %+v", observer.calls[1])
	}
}

func TestConcurrentRefreshesApplyInCompletionOrder(t *testing.T) {
	remote := &fakeRemote{}
	remote.set(nil, StatusCounts{Total: 1}, AppConfig{RootPath: "/a"})
	state := NewState("/data/inbox")
	syncer := NewSynchronizer(remote, state, nil, nil, testLogger(), time.Second)

	// Two cycles back to back: the later-completing one wins, whatever the
	// earlier one saw.
	if err := syncer.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	remote.set(nil, StatusCounts{Total: 2}, AppConfig{RootPath: "/b"})
	if err := syncer.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	snap, _ := state.Snapshot()
	if snap.Counts.Total != 2 || snap.Config.RootPath != "/b" {
		t.Fatalf("last completed cycle must win: %+v", snap)
	}
}
