package audit

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/seolens/seolens/internal/interfaces"
	"github.com/seolens/seolens/internal/models"
	badgerstore "github.com/seolens/seolens/internal/storage/badger"
)

// Service is the sole authority over audit records. Every create, mutate,
// and retire path goes through here; the worker and scheduler call in rather
// than touching storage directly.
type Service struct {
	storage interfaces.StorageManager
	queue   interfaces.QueueManager
	logger  arbor.ILogger
}

// NewService creates a new audit lifecycle service
func NewService(storage interfaces.StorageManager, queue interfaces.QueueManager, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		queue:   queue,
		logger:  logger,
	}
}

// StartAudit creates a pending audit and enqueues its crawl job. The record
// is persisted before the enqueue so a crash between the two leaves a
// reconcilable pending row, not a lost request. If the enqueue itself fails
// the audit is finalized as failed and ErrQueueUnavailable is returned.
func (s *Service) StartAudit(ctx context.Context, req interfaces.StartAuditRequest) (string, error) {
	if req.ProjectID == "" {
		return "", fmt.Errorf("project ID is required")
	}

	siteURL := req.SiteURL
	if siteURL == "" {
		project, err := s.storage.ProjectStorage().GetProject(ctx, req.ProjectID)
		if err != nil {
			if err == badgerstore.ErrNotFound {
				return "", fmt.Errorf("project %s: %w", req.ProjectID, ErrNotFound)
			}
			return "", fmt.Errorf("failed to resolve project URL: %w", err)
		}
		siteURL = project.SiteURL
	}
	if siteURL == "" {
		return "", fmt.Errorf("site URL is required")
	}

	options := models.DefaultAuditOptions()
	if req.Options != nil {
		options = req.Options.Apply(options)
	}
	if err := options.Validate(); err != nil {
		return "", fmt.Errorf("invalid audit options: %w", err)
	}

	audit := models.NewAudit(req.ProjectID, siteURL, options)
	if err := s.storage.AuditStorage().SaveAudit(ctx, audit); err != nil {
		return "", fmt.Errorf("failed to persist audit: %w", err)
	}

	if err := s.enqueueRun(ctx, audit.ID); err != nil {
		audit.MarkFailed("failed to enqueue audit job: " + err.Error())
		if updErr := s.storage.AuditStorage().UpdateAudit(ctx, audit); updErr != nil {
			s.logger.Error().Err(updErr).Str("audit_id", audit.ID).Msg("Failed to finalize audit after enqueue failure")
		}
		s.logger.Error().Err(err).Str("audit_id", audit.ID).Msg("Audit enqueue failed")
		return audit.ID, ErrQueueUnavailable
	}

	s.logger.Info().
		Str("audit_id", audit.ID).
		Str("project_id", req.ProjectID).
		Str("site_url", siteURL).
		Msg("Audit started")
	return audit.ID, nil
}

// UpdateAudit merges partial option updates into a non-running audit.
// Options are frozen while the audit is in_progress.
func (s *Service) UpdateAudit(ctx context.Context, auditID string, patch *models.AuditOptionsPatch) error {
	audit, err := s.GetAudit(ctx, auditID)
	if err != nil {
		return err
	}
	if audit.Status == models.AuditStatusInProgress {
		return fmt.Errorf("audit %s is running: %w", auditID, ErrInvalidState)
	}
	if patch == nil {
		return nil
	}

	merged := patch.Apply(audit.Options)
	if err := merged.Validate(); err != nil {
		return fmt.Errorf("invalid audit options: %w", err)
	}
	audit.Options = merged

	if err := s.storage.AuditStorage().UpdateAudit(ctx, audit); err != nil {
		return fmt.Errorf("failed to update audit: %w", err)
	}
	s.logger.Debug().Str("audit_id", auditID).Msg("Audit options updated")
	return nil
}

// DeleteAudit removes the audit and its dependent rows. Deleting a running
// audit is allowed; the in-flight job detects the missing record at its next
// checkpoint and stops quietly.
func (s *Service) DeleteAudit(ctx context.Context, auditID string) error {
	if err := s.storage.AuditStorage().DeleteAudit(ctx, auditID); err != nil {
		if err == badgerstore.ErrNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete audit: %w", err)
	}
	s.logger.Info().Str("audit_id", auditID).Msg("Audit deleted")
	return nil
}

// RestartAudit resets a non-running audit to pending, clears prior results,
// and re-enqueues the crawl with the previously stored options.
func (s *Service) RestartAudit(ctx context.Context, auditID string) error {
	audit, err := s.GetAudit(ctx, auditID)
	if err != nil {
		return err
	}
	if audit.Status == models.AuditStatusInProgress {
		return fmt.Errorf("audit %s is running: %w", auditID, ErrInvalidState)
	}

	audit.ResetForRestart()
	if err := s.storage.AuditStorage().UpdateAudit(ctx, audit); err != nil {
		return fmt.Errorf("failed to reset audit: %w", err)
	}

	if err := s.enqueueRun(ctx, audit.ID); err != nil {
		audit.MarkFailed("failed to enqueue audit job: " + err.Error())
		if updErr := s.storage.AuditStorage().UpdateAudit(ctx, audit); updErr != nil {
			s.logger.Error().Err(updErr).Str("audit_id", audit.ID).Msg("Failed to finalize audit after enqueue failure")
		}
		return ErrQueueUnavailable
	}

	s.logger.Info().Str("audit_id", auditID).Msg("Audit restarted")
	return nil
}

// GenerateReport enqueues report generation for a completed audit
func (s *Service) GenerateReport(ctx context.Context, auditID string, format string) error {
	audit, err := s.GetAudit(ctx, auditID)
	if err != nil {
		return err
	}
	if audit.Status != models.AuditStatusCompleted {
		return fmt.Errorf("audit %s is not completed: %w", auditID, ErrInvalidState)
	}
	if format == "" {
		format = "pdf"
	}

	msg, err := models.NewJobMessage(models.JobTypeGenerateReport, models.GenerateReportPayload{
		AuditID: auditID,
		Format:  format,
	})
	if err != nil {
		return err
	}
	if err := s.queue.Enqueue(ctx, msg); err != nil {
		s.logger.Error().Err(err).Str("audit_id", auditID).Msg("Report enqueue failed")
		return ErrQueueUnavailable
	}

	s.logger.Info().Str("audit_id", auditID).Str("format", format).Msg("Report generation queued")
	return nil
}

// GetAudit returns the stored audit record
func (s *Service) GetAudit(ctx context.Context, auditID string) (*models.Audit, error) {
	audit, err := s.storage.AuditStorage().GetAudit(ctx, auditID)
	if err != nil {
		if err == badgerstore.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get audit: %w", err)
	}
	return audit, nil
}

// Progress maps internal audit state to the external progress view
func (s *Service) Progress(ctx context.Context, auditID string) (*interfaces.AuditProgress, error) {
	audit, err := s.GetAudit(ctx, auditID)
	if err != nil {
		return nil, err
	}
	view := ComputeProgress(audit)
	return &view, nil
}

func (s *Service) enqueueRun(ctx context.Context, auditID string) error {
	msg, err := models.NewJobMessage(models.JobTypeRunAudit, models.RunAuditPayload{AuditID: auditID})
	if err != nil {
		return err
	}
	return s.queue.Enqueue(ctx, msg)
}
