package interfaces

import (
	"context"

	"github.com/seolens/seolens/internal/models"
)

// StartAuditRequest describes a direct audit start. SiteURL is optional and
// defaults to the project's current URL; Options is a partial overlay on the
// normalized defaults.
type StartAuditRequest struct {
	ProjectID string
	SiteURL   string
	Options   *models.AuditOptionsPatch
}

// AuditProgress is the external progress view exposed to polling clients
type AuditProgress struct {
	AuditID         string             `json:"audit_id"`
	Status          models.AuditStatus `json:"status"`
	Progress        float64            `json:"progress"` // 0-100
	PagesDiscovered int                `json:"pages_discovered"`
	PagesProcessed  int                `json:"pages_processed"`
	Error           string             `json:"error,omitempty"`
}

// AuditService is the sole authority for creating, mutating, and retiring
// audit records, and for translating an audit intent into queued work.
type AuditService interface {
	// StartAudit creates a pending audit and enqueues its crawl job.
	// On enqueue failure the audit is marked failed and ErrQueueUnavailable
	// is returned along with the id of the failed record.
	StartAudit(ctx context.Context, req StartAuditRequest) (string, error)

	// UpdateAudit merges partial option updates into a non-running audit.
	// Returns ErrInvalidState while the audit is in_progress.
	UpdateAudit(ctx context.Context, auditID string, patch *models.AuditOptionsPatch) error

	// DeleteAudit removes the audit and its dependent history rows
	DeleteAudit(ctx context.Context, auditID string) error

	// RestartAudit resets a finished or pending audit and re-enqueues its
	// crawl job with the previously stored options
	RestartAudit(ctx context.Context, auditID string) error

	// GenerateReport enqueues report generation for a completed audit.
	// Returns ErrInvalidState unless the audit is completed.
	GenerateReport(ctx context.Context, auditID string, format string) error

	// GetAudit returns the stored audit record
	GetAudit(ctx context.Context, auditID string) (*models.Audit, error)

	// Progress maps internal audit state to the external progress view
	Progress(ctx context.Context, auditID string) (*AuditProgress, error)
}
