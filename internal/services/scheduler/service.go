package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/seolens/seolens/internal/common"
	"github.com/seolens/seolens/internal/interfaces"
	"github.com/seolens/seolens/internal/models"
)

// Service drives recurring audits. The cron tick does not run audits itself:
// it enqueues a check_audit_schedules job so the scan shares the worker's
// serialization and durability. A second tick runs the reconciliation sweep
// that cleans up audits orphaned by crashes.
type Service struct {
	storage        interfaces.StorageManager
	queue          interfaces.QueueManager
	audits         interfaces.AuditService
	cron           *cron.Cron
	checkSchedule  string
	sweepSchedule  string
	staleAfter     time.Duration
	pendingTimeout time.Duration
	logger         arbor.ILogger
	mu             sync.Mutex
	running        bool
}

// NewService creates a new scheduler service
func NewService(
	storage interfaces.StorageManager,
	queue interfaces.QueueManager,
	audits interfaces.AuditService,
	config *common.Config,
	logger arbor.ILogger,
) *Service {
	return &Service{
		storage:        storage,
		queue:          queue,
		audits:         audits,
		cron:           cron.New(),
		checkSchedule:  config.Scheduler.CheckSchedule,
		sweepSchedule:  config.Scheduler.SweepSchedule,
		staleAfter:     common.Duration(config.Scheduler.StaleAfter, 10*time.Minute),
		pendingTimeout: common.Duration(config.Scheduler.PendingTimeout, 10*time.Minute),
		logger:         logger,
	}
}

// Start begins the periodic schedule-check and reconciliation jobs
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if _, err := s.cron.AddFunc(s.checkSchedule, s.enqueueScheduleCheck); err != nil {
		return fmt.Errorf("failed to add schedule-check cron job: %w", err)
	}
	if _, err := s.cron.AddFunc(s.sweepSchedule, s.runSweep); err != nil {
		return fmt.Errorf("failed to add reconciliation cron job: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("check_schedule", s.checkSchedule).
		Str("sweep_schedule", s.sweepSchedule).
		Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning returns true if the scheduler is active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// enqueueScheduleCheck pushes a check_audit_schedules job onto the queue.
// An enqueue failure here is logged and absorbed; the next tick tries again.
func (s *Service) enqueueScheduleCheck() {
	msg, err := models.NewJobMessage(models.JobTypeScheduleCheck, struct{}{})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to build schedule-check message")
		return
	}
	if err := s.queue.Enqueue(context.Background(), msg); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to enqueue schedule check")
	}
}

// runSweep executes the reconciliation sweep from the cron tick
func (s *Service) runSweep() {
	if err := s.ReconcileStalled(context.Background()); err != nil {
		s.logger.Error().Err(err).Msg("Reconciliation sweep failed")
	}
}

// HandleScheduleCheck is the worker handler for check_audit_schedules jobs
func (s *Service) HandleScheduleCheck(ctx context.Context, _ *models.JobMessage) error {
	return s.ProcessDueSchedules(ctx)
}

// ProcessDueSchedules scans for due schedules and triggers an audit for each.
// One schedule failing never blocks the others, and every scanned schedule is
// advanced so a broken project cannot retrigger on every tick.
func (s *Service) ProcessDueSchedules(ctx context.Context) error {
	now := time.Now()
	due, err := s.storage.ScheduleStorage().GetDueSchedules(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to query due schedules: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	s.logger.Info().Int("count", len(due)).Msg("Processing due audit schedules")

	triggered := 0
	for _, schedule := range due {
		if err := s.triggerSchedule(ctx, schedule, now); err != nil {
			s.logger.Error().
				Err(err).
				Str("schedule_id", schedule.ID).
				Str("project_id", schedule.ProjectID).
				Msg("Failed to trigger scheduled audit")
		} else {
			triggered++
		}

		schedule.Advance(now)
		if err := s.storage.ScheduleStorage().SaveSchedule(ctx, schedule); err != nil {
			s.logger.Error().
				Err(err).
				Str("schedule_id", schedule.ID).
				Msg("Failed to advance schedule")
		}
	}

	s.logger.Info().
		Int("due", len(due)).
		Int("triggered", triggered).
		Msg("Schedule check finished")
	return nil
}

func (s *Service) triggerSchedule(ctx context.Context, schedule *models.AuditSchedule, now time.Time) error {
	auditID, err := s.audits.StartAudit(ctx, interfaces.StartAuditRequest{
		ProjectID: schedule.ProjectID,
		Options:   optionsAsPatch(schedule.Options),
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("schedule_id", schedule.ID).
		Str("project_id", schedule.ProjectID).
		Str("audit_id", auditID).
		Str("frequency", string(schedule.Frequency)).
		Msg("Scheduled audit triggered")
	return nil
}

// ReconcileStalled fails stale in-progress audits and re-enqueues pending
// audits that lost their queue message (crash between persist and enqueue,
// or a dropped poison message).
func (s *Service) ReconcileStalled(ctx context.Context) error {
	now := time.Now()

	running, err := s.storage.AuditStorage().GetAuditsByStatus(ctx, models.AuditStatusInProgress)
	if err != nil {
		return fmt.Errorf("failed to query in-progress audits: %w", err)
	}
	for _, audit := range running {
		lastSeen := audit.StartedAt
		if audit.LastHeartbeat != nil {
			lastSeen = *audit.LastHeartbeat
		}
		if now.Sub(lastSeen) < s.staleAfter {
			continue
		}

		audit.MarkFailed(fmt.Sprintf("audit stalled: no heartbeat for %s", s.staleAfter))
		if err := s.storage.AuditStorage().UpdateAudit(ctx, audit); err != nil {
			s.logger.Error().Err(err).Str("audit_id", audit.ID).Msg("Failed to fail stale audit")
			continue
		}
		s.logger.Warn().
			Str("audit_id", audit.ID).
			Str("last_seen", lastSeen.Format(time.RFC3339)).
			Msg("Stale in-progress audit marked failed")
	}

	pending, err := s.storage.AuditStorage().GetAuditsByStatus(ctx, models.AuditStatusPending)
	if err != nil {
		return fmt.Errorf("failed to query pending audits: %w", err)
	}
	for _, audit := range pending {
		if now.Sub(audit.CreatedAt) < s.pendingTimeout {
			continue
		}

		msg, err := models.NewJobMessage(models.JobTypeRunAudit, models.RunAuditPayload{AuditID: audit.ID})
		if err != nil {
			continue
		}
		if err := s.queue.Enqueue(ctx, msg); err != nil {
			s.logger.Warn().Err(err).Str("audit_id", audit.ID).Msg("Failed to re-enqueue orphaned audit")
			continue
		}
		s.logger.Info().
			Str("audit_id", audit.ID).
			Str("created_at", audit.CreatedAt.Format(time.RFC3339)).
			Msg("Re-enqueued orphaned pending audit")
	}

	return nil
}

// optionsAsPatch turns a stored option snapshot into a full overlay so the
// scheduled audit runs with exactly the schedule's options
func optionsAsPatch(o models.AuditOptions) *models.AuditOptionsPatch {
	return &models.AuditOptionsPatch{
		MaxPages:       &o.MaxPages,
		MaxDepth:       &o.MaxDepth,
		FollowPatterns: &o.FollowPatterns,
		IgnorePatterns: &o.IgnorePatterns,
		UserAgent:      &o.UserAgent,
		UseJavascript:  &o.UseJavascript,
		IncludeSitemap: &o.IncludeSitemap,
		IncludeRobots:  &o.IncludeRobots,
		CrawlSingleURL: &o.CrawlSingleURL,
	}
}
