package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditFrequency is the recurrence cadence of a schedule
type AuditFrequency string

const (
	FrequencyDaily   AuditFrequency = "daily"
	FrequencyWeekly  AuditFrequency = "weekly"
	FrequencyMonthly AuditFrequency = "monthly"
)

// AuditSchedule is a recurring-audit configuration for a project.
// Only LastRunAt/NextRunAt are mutated by the scheduler; everything else
// changes through external CRUD.
type AuditSchedule struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"project_id"`
	Frequency AuditFrequency `json:"frequency"`
	IsActive  bool           `json:"is_active"`
	LastRunAt *time.Time     `json:"last_run_at,omitempty"`
	NextRunAt time.Time      `json:"next_run_at"`
	Options   AuditOptions   `json:"options"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewAuditSchedule creates an active schedule whose first run is due at next
func NewAuditSchedule(projectID string, frequency AuditFrequency, next time.Time, opts AuditOptions) *AuditSchedule {
	return &AuditSchedule{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Frequency: frequency,
		IsActive:  true,
		NextRunAt: next,
		Options:   opts,
		CreatedAt: time.Now(),
	}
}

// IsDue reports whether the schedule should trigger at the given instant
func (s *AuditSchedule) IsDue(now time.Time) bool {
	return s.IsActive && !s.NextRunAt.After(now)
}

// NextRunAfter computes the next run deterministically from frequency and the
// current instant. An unrecognized frequency defaults to weekly.
func NextRunAfter(now time.Time, frequency AuditFrequency) time.Time {
	switch frequency {
	case FrequencyDaily:
		return now.AddDate(0, 0, 1)
	case FrequencyMonthly:
		return now.AddDate(0, 1, 0)
	case FrequencyWeekly:
		return now.AddDate(0, 0, 7)
	default:
		return now.AddDate(0, 0, 7)
	}
}

// Advance records a trigger at now and moves NextRunAt into the future
func (s *AuditSchedule) Advance(now time.Time) {
	runAt := now
	s.LastRunAt = &runAt
	s.NextRunAt = NextRunAfter(now, s.Frequency)
}
