package interfaces

import (
	"context"

	"github.com/seolens/seolens/internal/models"
)

// ReportService renders a completed audit into a downloadable document
type ReportService interface {
	// Generate writes the report and returns the output path
	Generate(ctx context.Context, audit *models.Audit, format string) (string, error)
}

// InsightService produces AI-generated insight text for completed audits
type InsightService interface {
	// Enabled reports whether insight generation is configured
	Enabled() bool

	// Generate returns insight text for the audit's findings
	Generate(ctx context.Context, audit *models.Audit) (*models.AIInsights, error)
}
