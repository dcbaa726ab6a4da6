package model

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// TaskIDPrefix prefixes every generated task identifier
const TaskIDPrefix = "task-"

// DownloadTask pairs a package entry with its destination and progress state
type DownloadTask struct {
	ID               string
	Entry            PackageEntry
	Destination      string
	Status           TaskStatus
	BytesTransferred int64
	Failure          FailureReason // set when Status is TaskStatusFailed
	LastError        string        // last error message if any
	Verified         bool          // checksum matched
	StartedAt        time.Time
	FinishedAt       time.Time
}

// NewDownloadTask creates a queued task for entry written to destination
func NewDownloadTask(entry PackageEntry, destination string) *DownloadTask {
	return &DownloadTask{
		ID:          generateTaskID(),
		Entry:       entry,
		Destination: destination,
		Status:      TaskStatusQueued,
	}
}

// Percent returns the transfer progress 0..100 based on the declared size
func (dt *DownloadTask) Percent() int {
	if dt.Status == TaskStatusCompleted {
		return 100
	}
	if dt.Entry.Size <= 0 {
		return 0
	}
	p := int(dt.BytesTransferred * 100 / dt.Entry.Size)
	if p > 100 {
		p = 100
	}
	return p
}

// GetDisplayTitle returns the entry id, destination file name, or URL in order of preference
func (dt *DownloadTask) GetDisplayTitle() string {
	if id := dt.Entry.ID(); id != "" {
		return id
	}
	if dt.Destination != "" {
		return filepath.Base(dt.Destination)
	}
	return dt.Entry.URL
}

// VerifiedFile is the outcome of a successful transfer
type VerifiedFile struct {
	Path     string
	Size     int64
	Verified bool // false when no checksum was available to check
}

// Progress is a point-in-time view of a download run
type Progress struct {
	Tasks []DownloadTask

	Queued     int
	InProgress int
	Verifying  int
	Completed  int
	Failed     int

	BytesTransferred int64
	BytesTotal       int64 // sum of declared sizes
}

// Total returns the number of tasks in the run
func (p Progress) Total() int {
	return len(p.Tasks)
}

// Done reports whether every task reached a terminal state
func (p Progress) Done() bool {
	return p.Completed+p.Failed == len(p.Tasks)
}

// Percent returns the byte progress 0..100 across all tasks
func (p Progress) Percent() float64 {
	if p.BytesTotal <= 0 {
		if len(p.Tasks) == 0 {
			return 0
		}
		return float64(p.Completed+p.Failed) / float64(len(p.Tasks)) * 100
	}
	pct := float64(p.BytesTransferred) / float64(p.BytesTotal) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// NewProgress counts the states of tasks
func NewProgress(tasks []DownloadTask) Progress {
	p := Progress{Tasks: tasks}
	for _, t := range tasks {
		switch t.Status {
		case TaskStatusQueued:
			p.Queued++
		case TaskStatusInProgress:
			p.InProgress++
		case TaskStatusVerifying:
			p.Verifying++
		case TaskStatusCompleted:
			p.Completed++
		case TaskStatusFailed:
			p.Failed++
		}
		p.BytesTransferred += t.BytesTransferred
		if t.Entry.Size > 0 {
			p.BytesTotal += t.Entry.Size
		}
	}
	return p
}

// AggregateResult summarizes the terminal state of every task of a run
type AggregateResult struct {
	Tasks []DownloadTask // input order

	Succeeded  int
	Failed     int
	Verified   int
	Unverified int
}

// NewAggregateResult counts the terminal states of tasks
func NewAggregateResult(tasks []DownloadTask) *AggregateResult {
	r := &AggregateResult{Tasks: tasks}
	for _, t := range tasks {
		switch t.Status {
		case TaskStatusCompleted:
			r.Succeeded++
			if t.Verified {
				r.Verified++
			} else {
				r.Unverified++
			}
		default:
			r.Failed++
		}
	}
	return r
}

// AllSucceeded reports whether every task completed
func (r *AggregateResult) AllSucceeded() bool {
	return r.Failed == 0
}

// FailedTasks returns the tasks that did not complete
func (r *AggregateResult) FailedTasks() []DownloadTask {
	var failed []DownloadTask
	for _, t := range r.Tasks {
		if t.Status != TaskStatusCompleted {
			failed = append(failed, t)
		}
	}
	return failed
}

// generateTaskID generates a unique task ID
func generateTaskID() string {
	return TaskIDPrefix + uuid.NewString()
}
