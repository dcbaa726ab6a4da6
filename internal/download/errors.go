package download

import (
	"context"
	"errors"
	"fmt"

	"github.com/ytget/psn-updater/internal/model"
)

// Download error kinds.
var (
	ErrIO               = errors.New("download: i/o failure")
	ErrNetwork          = errors.New("download: network failure")
	ErrChecksumMismatch = errors.New("download: checksum mismatch")
	ErrCancelled        = errors.New("download: cancelled")
)

// Coordinator errors.
var (
	ErrInvalidConfig        = errors.New("download: invalid configuration")
	ErrDuplicateDestination = errors.New("download: duplicate destination")
	ErrAlreadyRunning       = errors.New("download: run already in progress")
	ErrTaskNotFound         = errors.New("download: task not found")
	ErrTaskFinished         = errors.New("download: task already finished")
)

// Error describes a failed transfer. Kind is one of ErrIO, ErrNetwork,
// ErrChecksumMismatch or ErrCancelled. The destination file is left in
// place for every kind.
type Error struct {
	Kind             error
	Path             string
	BytesTransferred int64

	// Expected and Actual are the digests compared on ErrChecksumMismatch.
	Expected string
	Actual   string

	// Short is set when fewer bytes than the declared size arrived.
	Short bool

	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Path)
	if e.Kind == ErrChecksumMismatch && e.Actual != "" {
		msg += fmt.Sprintf(" (expected %s, got %s)", e.Expected, e.Actual)
	}
	if e.Short {
		msg += " (short transfer)"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Reason maps a download error to the failure reason recorded on a task.
func Reason(err error) model.FailureReason {
	switch {
	case err == nil:
		return model.FailureNone
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return model.FailureCancelled
	case errors.Is(err, ErrChecksumMismatch):
		return model.FailureChecksumMismatch
	case errors.Is(err, ErrNetwork):
		return model.FailureNetwork
	default:
		return model.FailureIO
	}
}
