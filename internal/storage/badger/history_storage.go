package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/seolens/seolens/internal/interfaces"
	"github.com/seolens/seolens/internal/models"
)

// JobHistoryStorage keeps a bounded history of finished queue jobs.
// Retention: most-recent completedLimit completed / failedLimit failed.
type JobHistoryStorage struct {
	db             *BadgerDB
	logger         arbor.ILogger
	completedLimit int
	failedLimit    int
}

type jobHistoryRecord struct {
	ID     string `badgerhold:"key"`
	Status string `badgerhold:"index"`
	Record models.JobRecord
}

// NewJobHistoryStorage creates a new JobHistoryStorage instance
func NewJobHistoryStorage(db *BadgerDB, logger arbor.ILogger, completedLimit, failedLimit int) interfaces.JobHistoryStorage {
	if completedLimit <= 0 {
		completedLimit = 100
	}
	if failedLimit <= 0 {
		failedLimit = 200
	}
	return &JobHistoryStorage{
		db:             db,
		logger:         logger,
		completedLimit: completedLimit,
		failedLimit:    failedLimit,
	}
}

// RecordJob stores a finished job and prunes entries beyond the retention
// limit for that status.
func (s *JobHistoryStorage) RecordJob(ctx context.Context, record *models.JobRecord) error {
	if record.ID == "" {
		return fmt.Errorf("job record ID is required")
	}

	entry := jobHistoryRecord{
		ID:     record.ID,
		Status: record.Status,
		Record: *record,
	}
	if err := s.db.Store().Upsert(record.ID, entry); err != nil {
		return fmt.Errorf("failed to record job: %w", err)
	}

	limit := s.completedLimit
	if record.Status == "failed" {
		limit = s.failedLimit
	}
	if err := s.prune(record.Status, limit); err != nil {
		s.logger.Warn().Err(err).Str("status", record.Status).Msg("Failed to prune job history")
	}
	return nil
}

func (s *JobHistoryStorage) ListJobs(ctx context.Context, status string, limit int) ([]*models.JobRecord, error) {
	var entries []jobHistoryRecord
	if err := s.db.Store().Find(&entries, badgerhold.Where("Status").Eq(status).Index("Status")); err != nil {
		return nil, fmt.Errorf("failed to list job history: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Record.FinishedAt.After(entries[j].Record.FinishedAt)
	})
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}

	result := make([]*models.JobRecord, 0, len(entries))
	for i := range entries {
		record := entries[i].Record
		result = append(result, &record)
	}
	return result, nil
}

func (s *JobHistoryStorage) prune(status string, limit int) error {
	var entries []jobHistoryRecord
	if err := s.db.Store().Find(&entries, badgerhold.Where("Status").Eq(status).Index("Status")); err != nil {
		return err
	}
	if len(entries) <= limit {
		return nil
	}

	// Oldest first, then drop everything past the retention window
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Record.FinishedAt.Before(entries[j].Record.FinishedAt)
	})
	for _, entry := range entries[:len(entries)-limit] {
		if err := s.db.Store().Delete(entry.ID, &jobHistoryRecord{}); err != nil && err != badgerhold.ErrNotFound {
			return err
		}
	}
	return nil
}
