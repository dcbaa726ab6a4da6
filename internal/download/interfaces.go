package download

import (
	"context"

	"github.com/ytget/psn-updater/internal/model"
)

// Downloader transfers one package entry to a destination path.
type Downloader interface {
	Download(ctx context.Context, entry model.PackageEntry, destination string, sink ProgressSink) (*model.VerifiedFile, error)
}

// ProgressSink receives progress of a single transfer.
type ProgressSink interface {
	// Transferred is called after each written chunk with the cumulative byte count.
	Transferred(total int64)

	// Verifying is called once the stream completed and the digest is compared.
	Verifying()
}

// ProgressFunc adapts a function to ProgressSink. Verifying is a no-op.
type ProgressFunc func(total int64)

func (f ProgressFunc) Transferred(total int64) { f(total) }
func (f ProgressFunc) Verifying()              {}

// Observer is notified of every task state change during a coordinator run.
// It receives a copy of the task and is never called with the coordinator
// lock held, so it may call Snapshot or Cancel.
type Observer interface {
	TaskUpdated(task model.DownloadTask)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(task model.DownloadTask)

func (f ObserverFunc) TaskUpdated(task model.DownloadTask) { f(task) }

type nopSink struct{}

func (nopSink) Transferred(int64) {}
func (nopSink) Verifying()        {}
