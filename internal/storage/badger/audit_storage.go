package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/seolens/seolens/internal/interfaces"
	"github.com/seolens/seolens/internal/models"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = badgerhold.ErrNotFound

// AuditStorage implements the AuditStorage interface for Badger
type AuditStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// auditRecord is the persisted shape. Stored separately from models.Audit so
// badgerhold indexing stays an implementation detail of this package.
type auditRecord struct {
	ID        string `badgerhold:"key"`
	ProjectID string `badgerhold:"index"`
	Status    string `badgerhold:"index"`
	Audit     models.Audit
}

// NewAuditStorage creates a new AuditStorage instance
func NewAuditStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AuditStorage {
	return &AuditStorage{db: db, logger: logger}
}

func (s *AuditStorage) SaveAudit(ctx context.Context, audit *models.Audit) error {
	if audit.ID == "" {
		return fmt.Errorf("audit ID is required")
	}

	record := auditRecord{
		ID:        audit.ID,
		ProjectID: audit.ProjectID,
		Status:    string(audit.Status),
		Audit:     *audit,
	}
	if err := s.db.Store().Upsert(audit.ID, record); err != nil {
		return fmt.Errorf("failed to save audit: %w", err)
	}

	s.logger.Trace().
		Str("audit_id", audit.ID).
		Str("status", string(audit.Status)).
		Msg("Audit saved")
	return nil
}

func (s *AuditStorage) GetAudit(ctx context.Context, auditID string) (*models.Audit, error) {
	var record auditRecord
	if err := s.db.Store().Get(auditID, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get audit: %w", err)
	}
	audit := record.Audit
	return &audit, nil
}

// UpdateAudit replaces the stored record. While the audit is in_progress the
// progress percentage is clamped against the stored value so it never moves
// backwards, which keeps retried progress writes idempotent.
func (s *AuditStorage) UpdateAudit(ctx context.Context, audit *models.Audit) error {
	var existing auditRecord
	err := s.db.Store().Get(audit.ID, &existing)
	if err == badgerhold.ErrNotFound {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get audit for update: %w", err)
	}

	if audit.Status == models.AuditStatusInProgress &&
		existing.Audit.ProgressPercentage != nil && audit.ProgressPercentage != nil &&
		*audit.ProgressPercentage < *existing.Audit.ProgressPercentage {
		clamped := *existing.Audit.ProgressPercentage
		audit.ProgressPercentage = &clamped
	}

	record := auditRecord{
		ID:        audit.ID,
		ProjectID: audit.ProjectID,
		Status:    string(audit.Status),
		Audit:     *audit,
	}
	if err := s.db.Store().Upsert(audit.ID, record); err != nil {
		return fmt.Errorf("failed to update audit: %w", err)
	}
	return nil
}

// DeleteAudit removes the audit row and its dependent history rows
func (s *AuditStorage) DeleteAudit(ctx context.Context, auditID string) error {
	var record auditRecord
	if err := s.db.Store().Get(auditID, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get audit for delete: %w", err)
	}

	if err := s.db.Store().Delete(auditID, &auditRecord{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete audit: %w", err)
	}

	// Cascade: ranking/history rows keyed by audit id
	if err := s.db.Store().DeleteMatching(&auditHistoryRow{},
		badgerhold.Where("AuditID").Eq(auditID)); err != nil && err != badgerhold.ErrNotFound {
		s.logger.Warn().Err(err).Str("audit_id", auditID).Msg("Failed to cascade audit history rows")
	}

	s.logger.Debug().Str("audit_id", auditID).Msg("Audit deleted")
	return nil
}

func (s *AuditStorage) ListAuditsByProject(ctx context.Context, projectID string) ([]*models.Audit, error) {
	var records []auditRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("ProjectID").Eq(projectID).Index("ProjectID")); err != nil {
		return nil, fmt.Errorf("failed to list audits: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Audit.CreatedAt.After(records[j].Audit.CreatedAt)
	})

	result := make([]*models.Audit, 0, len(records))
	for i := range records {
		audit := records[i].Audit
		result = append(result, &audit)
	}
	return result, nil
}

func (s *AuditStorage) GetAuditsByStatus(ctx context.Context, status models.AuditStatus) ([]*models.Audit, error) {
	var records []auditRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("Status").Eq(string(status)).Index("Status")); err != nil {
		return nil, fmt.Errorf("failed to find audits by status: %w", err)
	}

	result := make([]*models.Audit, 0, len(records))
	for i := range records {
		audit := records[i].Audit
		result = append(result, &audit)
	}
	return result, nil
}

func (s *AuditStorage) UpdateHeartbeat(ctx context.Context, auditID string) error {
	var record auditRecord
	err := s.db.Store().Get(auditID, &record)
	if err == badgerhold.ErrNotFound {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	now := time.Now()
	record.Audit.LastHeartbeat = &now
	return s.db.Store().Upsert(auditID, record)
}

// auditHistoryRow is a dependent row cascaded on audit deletion. Ranking
// history itself is owned externally; this keeps the cascade contract local.
type auditHistoryRow struct {
	ID        string `badgerhold:"key"`
	AuditID   string `badgerhold:"index"`
	CreatedAt time.Time
	Payload   []byte
}
