package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/seolens/seolens/internal/interfaces"
	"github.com/seolens/seolens/internal/models"
)

// ScheduleStorage implements the ScheduleStorage interface for Badger
type ScheduleStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

type scheduleRecord struct {
	ID        string `badgerhold:"key"`
	ProjectID string `badgerhold:"index"`
	IsActive  bool   `badgerhold:"index"`
	NextRunAt time.Time
	Schedule  models.AuditSchedule
}

// NewScheduleStorage creates a new ScheduleStorage instance
func NewScheduleStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ScheduleStorage {
	return &ScheduleStorage{db: db, logger: logger}
}

func (s *ScheduleStorage) SaveSchedule(ctx context.Context, schedule *models.AuditSchedule) error {
	if schedule.ID == "" {
		return fmt.Errorf("schedule ID is required")
	}

	record := scheduleRecord{
		ID:        schedule.ID,
		ProjectID: schedule.ProjectID,
		IsActive:  schedule.IsActive,
		NextRunAt: schedule.NextRunAt,
		Schedule:  *schedule,
	}
	if err := s.db.Store().Upsert(schedule.ID, record); err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	return nil
}

func (s *ScheduleStorage) GetSchedule(ctx context.Context, scheduleID string) (*models.AuditSchedule, error) {
	var record scheduleRecord
	if err := s.db.Store().Get(scheduleID, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	schedule := record.Schedule
	return &schedule, nil
}

func (s *ScheduleStorage) DeleteSchedule(ctx context.Context, scheduleID string) error {
	if err := s.db.Store().Delete(scheduleID, &scheduleRecord{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	return nil
}

// GetDueSchedules returns active schedules whose NextRunAt has elapsed.
// Inactive schedules are never returned regardless of NextRunAt.
func (s *ScheduleStorage) GetDueSchedules(ctx context.Context, now time.Time) ([]*models.AuditSchedule, error) {
	var records []scheduleRecord
	if err := s.db.Store().Find(&records,
		badgerhold.Where("IsActive").Eq(true).And("NextRunAt").Le(now)); err != nil {
		return nil, fmt.Errorf("failed to query due schedules: %w", err)
	}

	result := make([]*models.AuditSchedule, 0, len(records))
	for i := range records {
		schedule := records[i].Schedule
		result = append(result, &schedule)
	}
	return result, nil
}
