package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/seolens/seolens/internal/common"
	"github.com/seolens/seolens/internal/interfaces"
	"github.com/seolens/seolens/internal/models"
)

// Sentinel aborts used by the crawl checkpoint. Both mean the record is no
// longer ours to finish, so the job ends without error.
var (
	errAuditGone    = errors.New("audit record no longer exists")
	errAuditAborted = errors.New("audit was finalized externally")
)

// Handler executes queued audit jobs. It owns the crawl-to-record plumbing:
// status transitions, page-level progress checkpoints, and finalization.
type Handler struct {
	storage      interfaces.StorageManager
	crawler      interfaces.CrawlerService
	reports      interfaces.ReportService
	insights     interfaces.InsightService
	crawlTimeout time.Duration
	logger       arbor.ILogger
}

// NewHandler creates a new audit job handler
func NewHandler(
	storage interfaces.StorageManager,
	crawler interfaces.CrawlerService,
	reports interfaces.ReportService,
	insights interfaces.InsightService,
	config *common.Config,
	logger arbor.ILogger,
) *Handler {
	return &Handler{
		storage:      storage,
		crawler:      crawler,
		reports:      reports,
		insights:     insights,
		crawlTimeout: common.Duration(config.Crawler.CrawlTimeout, 30*time.Minute),
		logger:       logger,
	}
}

// HandleRunAudit processes a run_audit message: transition to in_progress,
// crawl with a hard timeout, persist results, finalize. A missing or
// externally-failed record stops the job quietly.
func (h *Handler) HandleRunAudit(ctx context.Context, msg *models.JobMessage) error {
	var payload models.RunAuditPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("invalid run_audit payload: %w", err)
	}

	audit, err := h.storage.AuditStorage().GetAudit(ctx, payload.AuditID)
	if err != nil {
		// Deleted between enqueue and dequeue; nothing to do
		h.logger.Info().Str("audit_id", payload.AuditID).Msg("Audit gone before run, skipping")
		return nil
	}
	if audit.IsTerminal() {
		h.logger.Info().
			Str("audit_id", audit.ID).
			Str("status", string(audit.Status)).
			Msg("Audit already finalized, skipping")
		return nil
	}

	audit.MarkStarted()
	if err := h.storage.AuditStorage().UpdateAudit(ctx, audit); err != nil {
		return fmt.Errorf("failed to mark audit in progress: %w", err)
	}

	crawlCtx, cancel := context.WithTimeout(ctx, h.crawlTimeout)
	defer cancel()

	result, err := h.crawler.Crawl(crawlCtx, interfaces.CrawlRequest{
		AuditID:   audit.ID,
		ProjectID: audit.ProjectID,
		SiteURL:   audit.SiteURL,
		Options:   audit.Options,
	}, h.checkpoint(audit.ID, audit.Options.MaxPages))

	if errors.Is(err, errAuditGone) || errors.Is(err, errAuditAborted) {
		h.logger.Info().Str("audit_id", audit.ID).Msg("Crawl abandoned, audit no longer active")
		return nil
	}
	if err != nil {
		return fmt.Errorf("crawl failed for audit %s: %w", audit.ID, err)
	}

	return h.finalize(ctx, audit.ID, result)
}

// checkpoint returns the page-level progress callback for one audit run.
// Each call re-reads the record so a concurrent delete or external failure
// aborts the crawl instead of resurrecting the row.
func (h *Handler) checkpoint(auditID string, maxPages int) interfaces.CrawlProgressFunc {
	return func(pagesDiscovered, pagesProcessed int) error {
		ctx := context.Background()

		current, err := h.storage.AuditStorage().GetAudit(ctx, auditID)
		if err != nil {
			return errAuditGone
		}
		if current.IsTerminal() {
			return errAuditAborted
		}

		current.TotalPages = pagesDiscovered
		if maxPages > 0 {
			pct := float64(pagesProcessed) / float64(maxPages) * 100.0
			if pct > 95.0 {
				pct = 95.0
			}
			current.ProgressPercentage = &pct
		}
		now := time.Now()
		current.LastHeartbeat = &now

		if err := h.storage.AuditStorage().UpdateAudit(ctx, current); err != nil {
			h.logger.Warn().Err(err).Str("audit_id", auditID).Msg("Failed to checkpoint crawl progress")
		}
		return nil
	}
}

// finalize persists crawl results and transitions the audit to completed
func (h *Handler) finalize(ctx context.Context, auditID string, result *interfaces.CrawlResult) error {
	audit, err := h.storage.AuditStorage().GetAudit(ctx, auditID)
	if err != nil {
		h.logger.Info().Str("audit_id", auditID).Msg("Audit gone before finalize, discarding results")
		return nil
	}
	if audit.IsTerminal() {
		return nil
	}

	audit.PageResults = result.Pages
	audit.TotalPages = len(result.Pages)

	summary := models.IssueSummary{}
	for _, issue := range result.Issues {
		summary.Add(issue.Severity)
	}
	for _, page := range result.Pages {
		for _, issue := range page.Issues {
			summary.Add(issue.Severity)
		}
	}
	audit.IssuesSummary = summary

	if h.insights != nil && h.insights.Enabled() {
		if insights, err := h.insights.Generate(ctx, audit); err != nil {
			h.logger.Warn().Err(err).Str("audit_id", auditID).Msg("Insight generation failed, completing without insights")
		} else {
			audit.Insights = insights
		}
	}

	audit.MarkCompleted()
	if err := h.storage.AuditStorage().UpdateAudit(ctx, audit); err != nil {
		return fmt.Errorf("failed to finalize audit: %w", err)
	}

	h.logger.Info().
		Str("audit_id", auditID).
		Int("total_pages", audit.TotalPages).
		Int("issues", audit.IssuesSummary.Total).
		Msg("Audit completed")
	return nil
}

// FinalizeFailed is the worker's failure hook for run_audit jobs. It marks
// the audit failed once the attempt budget is exhausted, unless the record
// is already gone or terminal.
func (h *Handler) FinalizeFailed(ctx context.Context, msg *models.JobMessage, jobErr error) {
	var payload models.RunAuditPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		h.logger.Warn().Err(err).Msg("Cannot finalize failed audit: bad payload")
		return
	}

	audit, err := h.storage.AuditStorage().GetAudit(ctx, payload.AuditID)
	if err != nil {
		return
	}
	if audit.IsTerminal() {
		return
	}

	audit.MarkFailed(jobErr.Error())
	if err := h.storage.AuditStorage().UpdateAudit(ctx, audit); err != nil {
		h.logger.Error().Err(err).Str("audit_id", audit.ID).Msg("Failed to mark audit failed")
		return
	}
	h.logger.Warn().
		Str("audit_id", audit.ID).
		Str("error", jobErr.Error()).
		Msg("Audit failed after exhausting attempts")
}

// HandleGenerateReport processes a generate_report message
func (h *Handler) HandleGenerateReport(ctx context.Context, msg *models.JobMessage) error {
	var payload models.GenerateReportPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("invalid generate_report payload: %w", err)
	}

	audit, err := h.storage.AuditStorage().GetAudit(ctx, payload.AuditID)
	if err != nil {
		h.logger.Info().Str("audit_id", payload.AuditID).Msg("Audit gone before report generation, skipping")
		return nil
	}
	if audit.Status != models.AuditStatusCompleted {
		h.logger.Warn().
			Str("audit_id", audit.ID).
			Str("status", string(audit.Status)).
			Msg("Skipping report for non-completed audit")
		return nil
	}

	path, err := h.reports.Generate(ctx, audit, payload.Format)
	if err != nil {
		return fmt.Errorf("report generation failed for audit %s: %w", audit.ID, err)
	}

	h.logger.Info().
		Str("audit_id", audit.ID).
		Str("format", payload.Format).
		Str("path", path).
		Msg("Report generated")
	return nil
}
