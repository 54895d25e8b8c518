package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"

	"github.com/seolens/seolens/internal/common"
	"github.com/seolens/seolens/internal/models"
)

// Service renders completed audits into downloadable documents.
// Supported formats: pdf, json.
type Service struct {
	outputDir string
	logger    arbor.ILogger
}

// NewService creates a new report service
func NewService(config *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		outputDir: config.Reports.OutputDir,
		logger:    logger,
	}
}

// Generate writes the report and returns the output path
func (s *Service) Generate(ctx context.Context, audit *models.Audit, format string) (string, error) {
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	switch format {
	case "", "pdf":
		return s.generatePDF(audit)
	case "json":
		return s.generateJSON(audit)
	default:
		return "", fmt.Errorf("unsupported report format %q", format)
	}
}

func (s *Service) generateJSON(audit *models.Audit) (string, error) {
	path := filepath.Join(s.outputDir, fmt.Sprintf("audit-%s.json", audit.ID))

	data, err := json.MarshalIndent(audit, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal audit: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

func (s *Service) generatePDF(audit *models.Audit) (string, error) {
	path := filepath.Join(s.outputDir, fmt.Sprintf("audit-%s.pdf", audit.ID))

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "SEO Audit Report", "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Site: %s", audit.SiteURL), "", 1, "L", false, 0, "")
	if audit.CompletedAt != nil {
		pdf.CellFormat(0, 6, fmt.Sprintf("Completed: %s", audit.CompletedAt.Format(time.RFC1123)), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, fmt.Sprintf("Pages crawled: %d", audit.TotalPages), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Issue Summary", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Critical: %d", audit.IssuesSummary.Critical), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Warnings: %d", audit.IssuesSummary.Warning), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Info: %d", audit.IssuesSummary.Info), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	if audit.Insights != nil && audit.Insights.Summary != "" {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 8, "Insights", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(0, 5, audit.Insights.Summary, "", "L", false)
		pdf.Ln(4)
	}

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Pages", "", 1, "L", false, 0, "")
	for _, page := range audit.PageResults {
		pdf.SetFont("Arial", "B", 9)
		pdf.MultiCell(0, 5, fmt.Sprintf("%s  [%d]", page.URL, page.StatusCode), "", "L", false)
		pdf.SetFont("Arial", "", 9)
		for _, issue := range page.Issues {
			pdf.MultiCell(0, 5, fmt.Sprintf("  - [%s] %s", issue.Severity, issue.Message), "", "L", false)
		}
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("failed to write PDF: %w", err)
	}

	s.logger.Debug().Str("audit_id", audit.ID).Str("path", path).Msg("PDF report written")
	return path, nil
}
