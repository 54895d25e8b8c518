package audit

import "errors"

var (
	// ErrNotFound is returned when the referenced audit does not exist
	ErrNotFound = errors.New("audit not found")

	// ErrInvalidState is returned when an operation is not legal in the
	// audit's current status
	ErrInvalidState = errors.New("audit is in an invalid state for this operation")

	// ErrQueueUnavailable is returned when the job queue rejected an enqueue.
	// The audit record is persisted as failed before this is surfaced.
	ErrQueueUnavailable = errors.New("job queue unavailable")
)
