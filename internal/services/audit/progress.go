package audit

import (
	"github.com/seolens/seolens/internal/interfaces"
	"github.com/seolens/seolens/internal/models"
)

// Progress floor/ceiling constants for the external view. A pending audit
// already reads 5% so clients see movement immediately; an in-progress
// estimate never reads 100% before the terminal state lands.
const (
	progressPending    = 5.0
	progressInProgress = 95.0
	progressCompleted  = 100.0
	progressFailed     = 0.0
)

// ComputeProgress maps stored audit state to the external progress view.
// Pure function; all inputs come from the record.
func ComputeProgress(audit *models.Audit) interfaces.AuditProgress {
	view := interfaces.AuditProgress{
		AuditID:         audit.ID,
		Status:          audit.Status,
		PagesDiscovered: audit.TotalPages,
		PagesProcessed:  len(audit.PageResults),
	}

	switch audit.Status {
	case models.AuditStatusPending:
		view.Progress = progressPending

	case models.AuditStatusInProgress:
		if audit.ProgressPercentage != nil {
			view.Progress = *audit.ProgressPercentage
		} else if audit.Options.MaxPages > 0 {
			view.Progress = float64(audit.TotalPages) / float64(audit.Options.MaxPages) * 100.0
		}
		if view.Progress > progressInProgress {
			view.Progress = progressInProgress
		}

	case models.AuditStatusCompleted:
		view.Progress = progressCompleted

	case models.AuditStatusFailed:
		view.Progress = progressFailed
		view.Error = audit.ErrorMessage
	}

	return view
}
