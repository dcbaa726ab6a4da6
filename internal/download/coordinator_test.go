package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ytget/psn-updater/internal/model"
)

type downloaderFunc func(ctx context.Context, entry model.PackageEntry, dest string, sink ProgressSink) (*model.VerifiedFile, error)

func (f downloaderFunc) Download(ctx context.Context, entry model.PackageEntry, dest string, sink ProgressSink) (*model.VerifiedFile, error) {
	return f(ctx, entry, dest, sink)
}

func newTasks(dir string, urls ...string) []*model.DownloadTask {
	tasks := make([]*model.DownloadTask, len(urls))
	for i, u := range urls {
		entry := model.PackageEntry{Version: u, URL: u, Size: 10}
		tasks[i] = model.NewDownloadTask(entry, filepath.Join(dir, filepath.Base(u)+".pkg"))
	}
	return tasks
}

func TestCoordinatorIsolatesFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("package"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	tasks := []*model.DownloadTask{
		model.NewDownloadTask(model.PackageEntry{Version: "1", URL: srv.URL + "/1.pkg"}, filepath.Join(dir, "1.pkg")),
		model.NewDownloadTask(model.PackageEntry{Version: "2", URL: "http://127.0.0.1:1/2.pkg"}, filepath.Join(dir, "2.pkg")),
		model.NewDownloadTask(model.PackageEntry{Version: "3", URL: srv.URL + "/3.pkg"}, filepath.Join(dir, "3.pkg")),
	}

	c := NewCoordinator(NewHTTPDownloader(Options{}), CoordinatorOptions{MaxParallel: 3})
	result, err := c.Run(context.Background(), tasks)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if result.Succeeded != 2 || result.Failed != 1 {
		t.Errorf("Expected 2 succeeded and 1 failed, got %d and %d", result.Succeeded, result.Failed)
	}
	if result.Unverified != 2 {
		t.Errorf("Expected 2 unverified, got %d", result.Unverified)
	}
	if result.AllSucceeded() {
		t.Error("Expected AllSucceeded to be false")
	}

	expected := []model.TaskStatus{model.TaskStatusCompleted, model.TaskStatusFailed, model.TaskStatusCompleted}
	for i, task := range result.Tasks {
		if task.Status != expected[i] {
			t.Errorf("Task %d: expected %s, got %s", i+1, expected[i], task.Status)
		}
	}
	if result.Tasks[1].Failure != model.FailureNetwork {
		t.Errorf("Expected network failure, got %s", result.Tasks[1].Failure)
	}
	if result.Tasks[1].LastError == "" {
		t.Error("Expected last error to be recorded")
	}
}

func TestCoordinatorDroppedConnectionFailsTask(t *testing.T) {
	srv := serveTruncated(t, 1000, []byte("0123456789"))

	dir := t.TempDir()
	tasks := []*model.DownloadTask{
		model.NewDownloadTask(model.PackageEntry{Version: "1", URL: srv.URL + "/1.pkg", Size: 1000}, filepath.Join(dir, "1.pkg")),
	}

	c := NewCoordinator(NewHTTPDownloader(Options{ChunkSize: 4}), CoordinatorOptions{})
	result, err := c.Run(context.Background(), tasks)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if result.Succeeded != 0 || result.Failed != 1 {
		t.Fatalf("Expected 0 succeeded and 1 failed, got %d and %d", result.Succeeded, result.Failed)
	}
	task := result.Tasks[0]
	if task.Status != model.TaskStatusFailed {
		t.Errorf("Expected %s, got %s", model.TaskStatusFailed, task.Status)
	}
	if task.Failure != model.FailureNetwork {
		t.Errorf("Expected network failure, got %s", task.Failure)
	}
	if task.BytesTransferred != 10 {
		t.Errorf("Expected 10 bytes transferred, got %d", task.BytesTransferred)
	}
}

func TestCoordinatorBoundsConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	dl := downloaderFunc(func(ctx context.Context, entry model.PackageEntry, dest string, sink ProgressSink) (*model.VerifiedFile, error) {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		sink.Transferred(entry.Size)
		return &model.VerifiedFile{Path: dest, Size: entry.Size}, nil
	})

	var c *Coordinator
	var observedMax atomic.Int32
	observer := ObserverFunc(func(model.DownloadTask) {
		p := c.Snapshot()
		n := int32(p.InProgress + p.Verifying)
		for {
			m := observedMax.Load()
			if n <= m || observedMax.CompareAndSwap(m, n) {
				break
			}
		}
	})
	c = NewCoordinator(dl, CoordinatorOptions{MaxParallel: 2, Observer: observer})

	result, err := c.Run(context.Background(), newTasks(t.TempDir(), "a", "b", "c", "d", "e"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Succeeded != 5 {
		t.Errorf("Expected 5 succeeded, got %d", result.Succeeded)
	}
	if peak.Load() > 2 {
		t.Errorf("Expected at most 2 concurrent downloads, got %d", peak.Load())
	}
	if observedMax.Load() > 2 {
		t.Errorf("Expected at most 2 in-progress tasks in snapshots, got %d", observedMax.Load())
	}
}

func TestCoordinatorRejectsInvalidRuns(t *testing.T) {
	ok := downloaderFunc(func(context.Context, model.PackageEntry, string, ProgressSink) (*model.VerifiedFile, error) {
		return &model.VerifiedFile{}, nil
	})
	dir := t.TempDir()

	tests := []struct {
		name     string
		max      int
		tasks    []*model.DownloadTask
		expected error
	}{
		{"zero parallel", 0, newTasks(dir, "a"), ErrInvalidConfig},
		{"nil task", 1, []*model.DownloadTask{nil}, ErrInvalidConfig},
		{"duplicate destination", 2, append(newTasks(dir, "a"), newTasks(dir, "a")...), ErrDuplicateDestination},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := NewCoordinator(ok, CoordinatorOptions{MaxParallel: test.max})
			result, err := c.Run(context.Background(), test.tasks)
			if !errors.Is(err, test.expected) {
				t.Errorf("Expected %v, got %v", test.expected, err)
			}
			if result != nil {
				t.Errorf("Expected no result, got %+v", result)
			}
		})
	}
}

func TestCoordinatorCancelQueuedAndRunning(t *testing.T) {
	dl := downloaderFunc(func(ctx context.Context, entry model.PackageEntry, dest string, sink ProgressSink) (*model.VerifiedFile, error) {
		<-ctx.Done()
		return nil, &Error{Kind: ErrCancelled, Path: dest, Err: ctx.Err()}
	})

	tasks := newTasks(t.TempDir(), "first", "second")
	var c *Coordinator
	var once sync.Once
	cancelErrs := make(chan error, 2)
	observer := ObserverFunc(func(task model.DownloadTask) {
		if task.ID == tasks[0].ID && task.Status == model.TaskStatusInProgress {
			once.Do(func() {
				cancelErrs <- c.Cancel(tasks[1].ID)
				cancelErrs <- c.Cancel(tasks[0].ID)
			})
		}
	})
	c = NewCoordinator(dl, CoordinatorOptions{MaxParallel: 1, Observer: observer})

	result, err := c.Run(context.Background(), tasks)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	close(cancelErrs)
	for err := range cancelErrs {
		if err != nil {
			t.Errorf("Expected cancel to succeed, got %v", err)
		}
	}

	for i, task := range result.Tasks {
		if task.Status != model.TaskStatusFailed || task.Failure != model.FailureCancelled {
			t.Errorf("Task %d: expected Failed(cancelled), got %s(%s)", i, task.Status, task.Failure)
		}
	}

	if err := c.Cancel(tasks[0].ID); !errors.Is(err, ErrTaskFinished) {
		t.Errorf("Expected ErrTaskFinished, got %v", err)
	}
	if err := c.Cancel("task-missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
}

func TestCoordinatorCancelledContext(t *testing.T) {
	var calls atomic.Int32
	dl := downloaderFunc(func(context.Context, model.PackageEntry, string, ProgressSink) (*model.VerifiedFile, error) {
		calls.Add(1)
		return &model.VerifiedFile{}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewCoordinator(dl, CoordinatorOptions{MaxParallel: 2}).Run(ctx, newTasks(t.TempDir(), "a", "b", "c"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Failed != 3 {
		t.Errorf("Expected 3 failed, got %d", result.Failed)
	}
	if calls.Load() != 0 {
		t.Errorf("Expected no downloads, got %d", calls.Load())
	}
}

func TestCoordinatorSnapshot(t *testing.T) {
	dl := downloaderFunc(func(ctx context.Context, entry model.PackageEntry, dest string, sink ProgressSink) (*model.VerifiedFile, error) {
		sink.Transferred(entry.Size)
		sink.Verifying()
		return &model.VerifiedFile{Path: dest, Size: entry.Size, Verified: entry.Version != "b"}, nil
	})

	var mu sync.Mutex
	seen := make(map[model.TaskStatus]bool)
	observer := ObserverFunc(func(task model.DownloadTask) {
		mu.Lock()
		seen[task.Status] = true
		mu.Unlock()
	})

	c := NewCoordinator(dl, CoordinatorOptions{MaxParallel: 1, Observer: observer})
	if p := c.Snapshot(); p.Total() != 0 {
		t.Errorf("Expected empty snapshot before run, got %d tasks", p.Total())
	}

	result, err := c.Run(context.Background(), newTasks(t.TempDir(), "a", "b"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Verified != 1 || result.Unverified != 1 {
		t.Errorf("Expected 1 verified and 1 unverified, got %d and %d", result.Verified, result.Unverified)
	}

	p := c.Snapshot()
	if p.Completed != 2 || !p.Done() {
		t.Errorf("Expected 2 completed, got %+v", p)
	}
	if p.BytesTransferred != 20 || p.BytesTotal != 20 {
		t.Errorf("Expected 20/20 bytes, got %d/%d", p.BytesTransferred, p.BytesTotal)
	}

	for _, status := range []model.TaskStatus{model.TaskStatusInProgress, model.TaskStatusVerifying, model.TaskStatusCompleted} {
		if !seen[status] {
			t.Errorf("Expected observer to see %s", status)
		}
	}
}
