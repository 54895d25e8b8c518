package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextRunAfter(t *testing.T) {
	now := time.Date(2026, time.January, 15, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		frequency AuditFrequency
		want      time.Time
	}{
		{name: "daily", frequency: FrequencyDaily, want: now.AddDate(0, 0, 1)},
		{name: "weekly", frequency: FrequencyWeekly, want: now.AddDate(0, 0, 7)},
		{name: "monthly", frequency: FrequencyMonthly, want: now.AddDate(0, 1, 0)},
		{name: "unknown defaults to weekly", frequency: AuditFrequency("hourly"), want: now.AddDate(0, 0, 7)},
		{name: "empty defaults to weekly", frequency: AuditFrequency(""), want: now.AddDate(0, 0, 7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextRunAfter(now, tt.frequency))
		})
	}
}

func TestNextRunAfterMonthlyRollover(t *testing.T) {
	// AddDate normalizes; Jan 31 + 1 month lands in early March
	now := time.Date(2026, time.January, 31, 12, 0, 0, 0, time.UTC)
	next := NextRunAfter(now, FrequencyMonthly)
	assert.Equal(t, time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC), next)
}

func TestScheduleIsDue(t *testing.T) {
	now := time.Now()
	schedule := NewAuditSchedule("project-1", FrequencyDaily, now.Add(-time.Minute), DefaultAuditOptions())

	assert.True(t, schedule.IsDue(now))

	schedule.NextRunAt = now.Add(time.Hour)
	assert.False(t, schedule.IsDue(now))

	// Inactive schedules are never due
	schedule.NextRunAt = now.Add(-time.Hour)
	schedule.IsActive = false
	assert.False(t, schedule.IsDue(now))
}

func TestScheduleAdvance(t *testing.T) {
	now := time.Now()
	schedule := NewAuditSchedule("project-1", FrequencyWeekly, now.Add(-time.Minute), DefaultAuditOptions())

	schedule.Advance(now)

	require.NotNil(t, schedule.LastRunAt)
	assert.Equal(t, now, *schedule.LastRunAt)
	assert.Equal(t, now.AddDate(0, 0, 7), schedule.NextRunAt)
	assert.False(t, schedule.IsDue(now))
}
