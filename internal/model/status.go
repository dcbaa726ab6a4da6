package model

// TaskStatus represents the status of a download task
type TaskStatus string

const (
	// TaskStatusQueued means the task waits for a free download slot
	TaskStatusQueued TaskStatus = "Queued"

	// TaskStatusInProgress means the package is being transferred
	TaskStatusInProgress TaskStatus = "InProgress"

	// TaskStatusVerifying means the transfer finished and the checksum is being compared
	TaskStatusVerifying TaskStatus = "Verifying"

	// TaskStatusCompleted means the task finished successfully
	TaskStatusCompleted TaskStatus = "Completed"

	// TaskStatusFailed means the task failed; see FailureReason
	TaskStatusFailed TaskStatus = "Failed"
)

// String returns the string representation of TaskStatus
func (ts TaskStatus) String() string {
	return string(ts)
}

// IsActive returns true if the task occupies a download slot
func (ts TaskStatus) IsActive() bool {
	return ts == TaskStatusInProgress || ts == TaskStatusVerifying
}

// IsFinished returns true if the task is in a terminal state
func (ts TaskStatus) IsFinished() bool {
	return ts == TaskStatusCompleted || ts == TaskStatusFailed
}

// FailureReason classifies why a task ended in TaskStatusFailed
type FailureReason string

const (
	FailureNone             FailureReason = ""
	FailureIO               FailureReason = "io"
	FailureNetwork          FailureReason = "network"
	FailureChecksumMismatch FailureReason = "checksum_mismatch"
	FailureCancelled        FailureReason = "cancelled"
)

// String returns the string representation of FailureReason
func (fr FailureReason) String() string {
	if fr == FailureNone {
		return "none"
	}
	return string(fr)
}
