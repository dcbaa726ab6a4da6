package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ytget/psn-updater/internal/model"
)

const linePrefix = "[psn-updater]"

// Options configures the progress reporter.
type Options struct {
	// Title is shown in the header, usually "<TITLEID> - <title>".
	Title string

	// Tasks are the tasks of the run, used for the header and totals.
	Tasks []*model.DownloadTask

	// Output is where to write progress output.
	// Default: os.Stdout
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 500ms
	UpdateInterval time.Duration
}

// Reporter outputs human-readable progress information. It implements the
// download coordinator observer.
type Reporter struct {
	opts Options

	mu         sync.Mutex
	tasks      map[string]model.DownloadTask
	order      []string
	startTime  time.Time
	lastUpdate time.Time
	lastBytes  int64
	stopCh     chan struct{}
	doneCh     chan struct{}
	started    bool
	stopped    bool
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}

	r := &Reporter{
		opts:   opts,
		tasks:  make(map[string]model.DownloadTask, len(opts.Tasks)),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	for _, t := range opts.Tasks {
		r.tasks[t.ID] = *t
		r.order = append(r.order, t.ID)
	}
	return r
}

// Start prints the header and begins periodic output.
func (r *Reporter) Start() {
	r.mu.Lock()
	r.started = true
	r.startTime = time.Now()
	r.lastUpdate = r.startTime
	p := r.progressLocked()
	r.mu.Unlock()

	fmt.Fprintf(r.opts.Output, "%s %s: %d package(s), %s\n",
		linePrefix, r.opts.Title, p.Total(), formatBytes(p.BytesTotal))

	go r.updateLoop()
}

// Stop stops periodic output and prints the final status. It waits until
// the last line is written.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped || !r.started {
		r.stopped = true
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh
}

// TaskUpdated records the latest state of a task.
func (r *Reporter) TaskUpdated(task model.DownloadTask) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[task.ID]; !ok {
		r.order = append(r.order, task.ID)
	}
	r.tasks[task.ID] = task
}

// Progress returns the aggregate of the recorded task states.
func (r *Reporter) Progress() model.Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progressLocked()
}

func (r *Reporter) progressLocked() model.Progress {
	tasks := make([]model.DownloadTask, 0, len(r.order))
	for _, id := range r.order {
		tasks = append(tasks, r.tasks[id])
	}
	return model.NewProgress(tasks)
}

// updateLoop periodically updates the progress display.
func (r *Reporter) updateLoop() {
	defer close(r.doneCh)
	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

// printProgress outputs the current progress.
func (r *Reporter) printProgress() {
	r.mu.Lock()
	p := r.progressLocked()
	now := time.Now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	speed := float64(p.BytesTransferred-r.lastBytes) / elapsed
	r.lastUpdate = now
	r.lastBytes = p.BytesTransferred
	r.mu.Unlock()

	eta := "calculating..."
	if speed > 0 && p.BytesTotal > p.BytesTransferred {
		eta = formatDuration(time.Duration(float64(p.BytesTotal-p.BytesTransferred) / speed * float64(time.Second)))
	}

	fmt.Fprintf(r.opts.Output, "\r%s Progress: %.1f%% | %s / %s | Speed: %s/s | ETA: %s    ",
		linePrefix,
		p.Percent(),
		formatBytes(p.BytesTransferred),
		formatBytes(p.BytesTotal),
		formatBytes(int64(speed)),
		eta,
	)
}

// printFinalStatus outputs the final summary with every failed task.
func (r *Reporter) printFinalStatus() {
	r.mu.Lock()
	p := r.progressLocked()
	elapsed := time.Since(r.startTime)
	r.mu.Unlock()

	var speed float64
	if elapsed.Seconds() > 0 {
		speed = float64(p.BytesTransferred) / elapsed.Seconds()
	}

	fmt.Fprintf(r.opts.Output, "\n%s Packages: %d completed | %d in-progress | %d queued | %d failed\n",
		linePrefix, p.Completed, p.InProgress+p.Verifying, p.Queued, p.Failed)
	fmt.Fprintf(r.opts.Output, "%s Transferred %s in %s (%s/s)\n",
		linePrefix, formatBytes(p.BytesTransferred), formatDuration(elapsed), formatBytes(int64(speed)))

	for _, t := range p.Tasks {
		if t.Status == model.TaskStatusFailed {
			fmt.Fprintf(r.opts.Output, "%s Failed: %s (%s): %s\n", linePrefix, t.GetDisplayTitle(), t.Failure, t.LastError)
		}
	}
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case b >= TB:
		return fmt.Sprintf("%.2f TB", float64(b)/float64(TB))
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes renders a byte count in binary units with two decimals,
// e.g. 1536 as "1.50 KB". Counts below 1 KiB are printed as "N B".
func FormatBytes(b int64) string {
	return formatBytes(b)
}
