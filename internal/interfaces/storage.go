package interfaces

import (
	"context"
	"time"

	"github.com/seolens/seolens/internal/models"
)

// AuditStorage persists audit records. It is the single source of truth for
// audit state.
type AuditStorage interface {
	// SaveAudit inserts or replaces an audit record
	SaveAudit(ctx context.Context, audit *models.Audit) error

	// GetAudit returns the audit or ErrNotFound
	GetAudit(ctx context.Context, auditID string) (*models.Audit, error)

	// UpdateAudit replaces the stored record. Progress percentage is clamped
	// so it never decreases while the audit is in_progress.
	UpdateAudit(ctx context.Context, audit *models.Audit) error

	// DeleteAudit removes the audit row and cascades dependent history rows
	DeleteAudit(ctx context.Context, auditID string) error

	// ListAuditsByProject returns audits for a project, newest first
	ListAuditsByProject(ctx context.Context, projectID string) ([]*models.Audit, error)

	// GetAuditsByStatus returns audits currently in the given status
	GetAuditsByStatus(ctx context.Context, status models.AuditStatus) ([]*models.Audit, error)

	// UpdateHeartbeat stamps the audit's last-heartbeat time
	UpdateHeartbeat(ctx context.Context, auditID string) error
}

// ScheduleStorage persists recurring-audit schedules
type ScheduleStorage interface {
	SaveSchedule(ctx context.Context, schedule *models.AuditSchedule) error
	GetSchedule(ctx context.Context, scheduleID string) (*models.AuditSchedule, error)
	DeleteSchedule(ctx context.Context, scheduleID string) error

	// GetDueSchedules returns active schedules with NextRunAt <= now
	GetDueSchedules(ctx context.Context, now time.Time) ([]*models.AuditSchedule, error)
}

// ProjectStorage persists the minimal project entity the pipeline needs
type ProjectStorage interface {
	SaveProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, projectID string) (*models.Project, error)
	DeleteProject(ctx context.Context, projectID string) error
}

// JobHistoryStorage keeps a bounded history of finished queue jobs for
// observability. Oldest entries beyond the retention limits are pruned on
// insert.
type JobHistoryStorage interface {
	RecordJob(ctx context.Context, record *models.JobRecord) error
	ListJobs(ctx context.Context, status string, limit int) ([]*models.JobRecord, error)
}

// StorageManager aggregates the typed stores over one database connection
type StorageManager interface {
	AuditStorage() AuditStorage
	ScheduleStorage() ScheduleStorage
	ProjectStorage() ProjectStorage
	JobHistoryStorage() JobHistoryStorage
	Close() error
}
