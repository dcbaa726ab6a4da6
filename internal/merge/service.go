package merge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ytget/psn-updater/internal/model"
	"github.com/ytget/psn-updater/internal/platform"
)

// Naming constants
const (
	PackageExtension = ".pkg"
	TaskIDPrefix     = "merge-"
	copyBufferSize   = 1 << 20
)

var (
	ErrNotMergeable = errors.New("merge: packages are not all parts of a split package")
	ErrFileName     = errors.New("merge: part file name does not match its part number")
)

// Task tracks one merge run
type Task struct {
	ID          string
	Dir         string
	Outputs     []string // merged package paths
	Parts       int
	PartsMerged int
	Status      model.TaskStatus
	LastError   string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Percent returns the merge progress 0..100
func (t Task) Percent() int {
	if t.Parts == 0 {
		return 0
	}
	return t.PartsMerged * 100 / t.Parts
}

var _ Merger = (*Service)(nil)

// Service merges split packages
type Service struct {
	onUpdate func(Task) // callback for progress updates
	log      *slog.Logger
}

// NewService creates a new merge service
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{log: logger}
}

// SetUpdateCallback sets the callback function for task updates
func (s *Service) SetUpdateCallback(callback func(Task)) {
	s.onUpdate = callback
}

// Merge copies every downloaded part to its offset in the merged package.
// A part whose URL names "<base>_<n-1>.pkg" with part number n is read from
// its task destination and written into "<base>.pkg" next to it. Parts are
// processed in part number order.
func (s *Service) Merge(ctx context.Context, parts []model.DownloadTask) (*Task, error) {
	task := &Task{
		ID:        generateTaskID(),
		Parts:     len(parts),
		Status:    model.TaskStatusInProgress,
		StartedAt: time.Now(),
	}

	plan, err := planParts(parts)
	if err != nil {
		return s.fail(task, err)
	}
	task.Dir = filepath.Dir(plan[0].source)
	s.notifyUpdate(task)

	s.log.Info("merge started", "dir", task.Dir, "parts", len(plan))

	started := make(map[string]bool)
	for _, p := range plan {
		if err := ctx.Err(); err != nil {
			return s.fail(task, err)
		}

		n, err := copyAt(ctx, p.source, p.target, p.entry.Offset, !started[p.target])
		if err != nil {
			return s.fail(task, fmt.Errorf("merge %s into %s: %w", filepath.Base(p.source), filepath.Base(p.target), err))
		}
		if !started[p.target] {
			started[p.target] = true
			task.Outputs = append(task.Outputs, p.target)
		}

		task.PartsMerged++
		s.log.Info("merged part", "part", p.entry.PartNumber, "bytes", n, "from", p.source, "to", p.target)
		s.notifyUpdate(task)
	}

	task.Status = model.TaskStatusCompleted
	task.FinishedAt = time.Now()
	s.notifyUpdate(task)
	return task, nil
}

// Parts merges the downloaded parts and calls progress with each merged part
// number. It returns the merged package paths.
func Parts(ctx context.Context, parts []model.DownloadTask, progress func(part int)) ([]string, error) {
	s := NewService(nil)
	if progress != nil {
		merged := 0
		s.SetUpdateCallback(func(t Task) {
			if t.PartsMerged > merged {
				merged = t.PartsMerged
				progress(merged)
			}
		})
	}
	task, err := s.Merge(ctx, parts)
	if err != nil {
		return nil, err
	}
	return task.Outputs, nil
}

type partPlan struct {
	entry  model.PackageEntry
	source string // downloaded part
	target string // merged package
}

func planParts(parts []model.DownloadTask) ([]partPlan, error) {
	if len(parts) == 0 {
		return nil, ErrNotMergeable
	}
	for _, p := range parts {
		if !p.Entry.IsPart() {
			return nil, fmt.Errorf("%w: %s", ErrNotMergeable, p.Entry.ID())
		}
	}

	sorted := slices.Clone(parts)
	slices.SortStableFunc(sorted, func(a, b model.DownloadTask) int {
		return a.Entry.PartNumber - b.Entry.PartNumber
	})

	plan := make([]partPlan, 0, len(sorted))
	for _, p := range sorted {
		// The destination may carry a collision suffix, so the part
		// number is checked against the vendor file name.
		name := p.Entry.FileName()
		if name == "" {
			return nil, fmt.Errorf("%w: no file name in %s", ErrFileName, p.Entry.URL)
		}
		suffix := fmt.Sprintf("_%d%s", p.Entry.PartNumber-1, PackageExtension)
		if !strings.HasSuffix(name, suffix) {
			return nil, fmt.Errorf("%w: %s does not end with %s", ErrFileName, name, suffix)
		}
		if p.Destination == "" {
			return nil, fmt.Errorf("%w: part %d has no destination", ErrNotMergeable, p.Entry.PartNumber)
		}
		plan = append(plan, partPlan{
			entry:  p.Entry,
			source: p.Destination,
			target: filepath.Join(filepath.Dir(p.Destination), strings.TrimSuffix(name, suffix)+PackageExtension),
		})
	}
	return plan, nil
}

// copyAt copies src into dst starting at offset. The first write to a
// destination truncates it.
func copyAt(ctx context.Context, src, dst string, offset int64, truncate bool) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	flags := os.O_CREATE | os.O_WRONLY
	if truncate {
		flags |= os.O_TRUNC
	}
	out, err := os.OpenFile(dst, flags, platform.DefaultFilePermissions)
	if err != nil {
		return 0, err
	}

	w := io.NewOffsetWriter(out, offset)
	n, err := io.CopyBuffer(w, &ctxReader{ctx: ctx, r: in}, make([]byte, copyBufferSize))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// fail sets an error state for a task
func (s *Service) fail(task *Task, err error) (*Task, error) {
	task.Status = model.TaskStatusFailed
	task.LastError = err.Error()
	task.FinishedAt = time.Now()
	s.log.Warn("merge failed", "dir", task.Dir, "error", err)
	s.notifyUpdate(task)
	return task, err
}

// notifyUpdate calls the update callback if set
func (s *Service) notifyUpdate(task *Task) {
	if s.onUpdate != nil {
		s.onUpdate(*task)
	}
}

// generateTaskID generates a unique task ID using UUID v7 for time ordering
func generateTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf(TaskIDPrefix+"%d", time.Now().UnixNano())
	}
	return TaskIDPrefix + id.String()
}
