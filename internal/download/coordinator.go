package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/ytget/psn-updater/internal/model"
)

// Default values
const (
	DefaultMaxParallel = 3
	MaxParallelLimit   = 10
)

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	// MaxParallel bounds the number of simultaneously active downloads.
	// It must be at least 1.
	MaxParallel int

	// Observer receives every task state change. Optional.
	Observer Observer

	Logger *slog.Logger
}

// Coordinator runs download tasks over a fixed-size worker pool.
type Coordinator struct {
	dl          Downloader
	maxParallel int
	observer    Observer
	log         *slog.Logger

	mu      sync.Mutex
	running bool
	tasks   []*model.DownloadTask
	byID    map[string]*model.DownloadTask
	cancels map[string]context.CancelFunc
}

// NewCoordinator creates a coordinator that downloads with dl
func NewCoordinator(dl Downloader, opts CoordinatorOptions) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Coordinator{
		dl:          dl,
		maxParallel: opts.MaxParallel,
		observer:    opts.Observer,
		log:         opts.Logger,
		byID:        make(map[string]*model.DownloadTask),
		cancels:     make(map[string]context.CancelFunc),
	}
}

// Run downloads every task and blocks until all reached a terminal state.
// Per-task failures are recorded on the tasks and in the result; Run itself
// only fails when the run cannot start. Cancelling ctx cancels every
// unfinished task.
func (c *Coordinator) Run(ctx context.Context, tasks []*model.DownloadTask) (*model.AggregateResult, error) {
	if err := c.validate(tasks); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	c.running = true
	c.tasks = tasks
	c.byID = make(map[string]*model.DownloadTask, len(tasks))
	for _, t := range tasks {
		t.Status = model.TaskStatusQueued
		t.BytesTransferred = 0
		t.Failure = model.FailureNone
		t.LastError = ""
		t.Verified = false
		c.byID[t.ID] = t
	}
	c.mu.Unlock()

	c.log.Info("download run started", "tasks", len(tasks), "max_parallel", c.maxParallel)

	jobs := make(chan *model.DownloadTask)
	workers := min(c.maxParallel, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				c.runTask(ctx, t)
			}
		}()
	}
	for _, t := range tasks {
		jobs <- t
	}
	close(jobs)
	wg.Wait()

	c.mu.Lock()
	final := make([]model.DownloadTask, len(tasks))
	for i, t := range tasks {
		final[i] = *t
	}
	c.running = false
	c.mu.Unlock()

	result := model.NewAggregateResult(final)
	c.log.Info("download run finished",
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"verified", result.Verified,
		"unverified", result.Unverified)
	return result, nil
}

func (c *Coordinator) validate(tasks []*model.DownloadTask) error {
	if c.dl == nil {
		return fmt.Errorf("%w: no downloader", ErrInvalidConfig)
	}
	if c.maxParallel < 1 {
		return fmt.Errorf("%w: max parallel downloads must be at least 1, got %d", ErrInvalidConfig, c.maxParallel)
	}
	seenPath := make(map[string]string, len(tasks))
	seenID := make(map[string]bool, len(tasks))
	for i, t := range tasks {
		if t == nil {
			return fmt.Errorf("%w: task %d is nil", ErrInvalidConfig, i)
		}
		if t.ID == "" || seenID[t.ID] {
			return fmt.Errorf("%w: task %d has an empty or repeated id %q", ErrInvalidConfig, i, t.ID)
		}
		seenID[t.ID] = true
		if t.Destination == "" {
			return fmt.Errorf("%w: task %s has no destination", ErrInvalidConfig, t.ID)
		}
		dest := filepath.Clean(t.Destination)
		if other, ok := seenPath[dest]; ok {
			return fmt.Errorf("%w: %s (tasks %s and %s)", ErrDuplicateDestination, dest, other, t.ID)
		}
		seenPath[dest] = t.ID
	}
	return nil
}

func (c *Coordinator) runTask(ctx context.Context, t *model.DownloadTask) {
	c.mu.Lock()
	if t.Status != model.TaskStatusQueued {
		// cancelled while waiting for a slot
		c.mu.Unlock()
		return
	}
	if err := ctx.Err(); err != nil {
		snap := c.finishLocked(t, nil, &Error{Kind: ErrCancelled, Path: t.Destination, Err: err})
		c.mu.Unlock()
		c.notify(snap)
		return
	}
	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.cancels[t.ID] = cancel
	t.Status = model.TaskStatusInProgress
	t.StartedAt = time.Now()
	snap := *t
	c.mu.Unlock()
	c.notify(snap)

	vf, err := c.dl.Download(taskCtx, t.Entry, t.Destination, &taskSink{c: c, t: t})

	c.mu.Lock()
	delete(c.cancels, t.ID)
	snap = c.finishLocked(t, vf, err)
	c.mu.Unlock()
	c.notify(snap)

	if err != nil {
		c.log.Warn("download failed", "task", t.ID, "package", snap.GetDisplayTitle(), "reason", snap.Failure.String(), "error", err)
	} else {
		c.log.Info("download completed", "task", t.ID, "package", snap.GetDisplayTitle(), "verified", snap.Verified)
	}
}

// finishLocked moves t to its terminal state. c.mu must be held.
func (c *Coordinator) finishLocked(t *model.DownloadTask, vf *model.VerifiedFile, err error) model.DownloadTask {
	t.FinishedAt = time.Now()
	if err != nil {
		t.Status = model.TaskStatusFailed
		t.Failure = Reason(err)
		t.LastError = err.Error()
		t.Verified = false
		var de *Error
		if errors.As(err, &de) && de.BytesTransferred > t.BytesTransferred {
			t.BytesTransferred = de.BytesTransferred
		}
		return *t
	}
	t.Status = model.TaskStatusCompleted
	t.Failure = model.FailureNone
	if vf != nil {
		t.Verified = vf.Verified
		if vf.Size > t.BytesTransferred {
			t.BytesTransferred = vf.Size
		}
	}
	return *t
}

// Cancel cancels a queued or running task of the current run. A queued
// task fails immediately; a running task stops at its next chunk boundary.
func (c *Coordinator) Cancel(taskID string) error {
	c.mu.Lock()
	t, ok := c.byID[taskID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if t.Status.IsFinished() {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrTaskFinished, taskID, t.Status)
	}
	if cancel, running := c.cancels[taskID]; running {
		c.mu.Unlock()
		cancel()
		return nil
	}
	snap := c.finishLocked(t, nil, &Error{Kind: ErrCancelled, Path: t.Destination})
	c.mu.Unlock()
	c.notify(snap)
	return nil
}

// Snapshot returns copies of all tasks of the current or last run with
// per-state counts. It is safe to call at any time.
func (c *Coordinator) Snapshot() model.Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	tasks := make([]model.DownloadTask, len(c.tasks))
	for i, t := range c.tasks {
		tasks[i] = *t
	}
	return model.NewProgress(tasks)
}

func (c *Coordinator) notify(task model.DownloadTask) {
	if c.observer != nil {
		c.observer.TaskUpdated(task)
	}
}

// taskSink records transfer progress of one task under the coordinator lock.
type taskSink struct {
	c *Coordinator
	t *model.DownloadTask
}

func (s *taskSink) Transferred(total int64) {
	s.c.mu.Lock()
	s.t.BytesTransferred = total
	snap := *s.t
	s.c.mu.Unlock()
	s.c.notify(snap)
}

func (s *taskSink) Verifying() {
	s.c.mu.Lock()
	s.t.Status = model.TaskStatusVerifying
	snap := *s.t
	s.c.mu.Unlock()
	s.c.notify(snap)
}
