package interfaces

import "context"

// SchedulerService discovers due audit schedules and triggers new audits.
// It owns its cron lifecycle; no ambient global state.
type SchedulerService interface {
	// Start begins the periodic schedule-check and reconciliation jobs
	Start() error

	// Stop halts the scheduler
	Stop() error

	// IsRunning returns true if the scheduler is active
	IsRunning() bool

	// ProcessDueSchedules scans for due schedules and triggers an audit for
	// each. Failures are isolated per schedule; the scan itself never
	// propagates errors to its invocation context.
	ProcessDueSchedules(ctx context.Context) error

	// ReconcileStalled fails stale in-progress audits and re-enqueues audits
	// orphaned in pending
	ReconcileStalled(ctx context.Context) error
}
