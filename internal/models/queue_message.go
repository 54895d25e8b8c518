package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNoMessage is returned when the queue is empty
var ErrNoMessage = errors.New("no messages in queue")

// Queue job type tags. The worker dispatches on these.
const (
	JobTypeRunAudit       = "run_audit"
	JobTypeGenerateReport = "generate_report"
	JobTypeScheduleCheck  = "check_audit_schedules"
)

// JobMessage is the structure stored in the queue.
// Keep it simple - just enough to route the job.
type JobMessage struct {
	Type    string          `json:"type"`    // Job type for worker routing
	Payload json.RawMessage `json:"payload"` // Job-specific data (passed through)
}

// RunAuditPayload is the payload of a run_audit job
type RunAuditPayload struct {
	AuditID string `json:"audit_id"`
}

// GenerateReportPayload is the payload of a generate_report job
type GenerateReportPayload struct {
	AuditID string `json:"audit_id"`
	Format  string `json:"format"`
}

// NewJobMessage builds a routed message with a marshaled payload
func NewJobMessage(jobType string, payload interface{}) (JobMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return JobMessage{}, fmt.Errorf("failed to marshal job payload: %w", err)
	}
	return JobMessage{Type: jobType, Payload: data}, nil
}

// JobRecord is one entry in the bounded completed/failed job history kept for
// observability.
type JobRecord struct {
	ID         string        `json:"id"`
	MessageID  string        `json:"message_id"`
	Type       string        `json:"type"`
	Status     string        `json:"status"` // "completed" or "failed"
	Attempts   int           `json:"attempts"`
	Error      string        `json:"error,omitempty"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
}
