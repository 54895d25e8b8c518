package insights

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/seolens/seolens/internal/common"
	"github.com/seolens/seolens/internal/models"
)

const insightMaxTokens = 1024

// Service generates audit insight summaries with the Anthropic API.
// Without an API key the service is disabled and audits complete without
// insights.
type Service struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
	enabled bool
	logger  arbor.ILogger
}

// NewService creates a new insight service
func NewService(config *common.Config, logger arbor.ILogger) *Service {
	svc := &Service{
		model:   config.Insights.Model,
		timeout: common.Duration(config.Insights.Timeout, 2*time.Minute),
		logger:  logger,
	}

	if config.Insights.APIKey == "" {
		logger.Info().Msg("Insight generation disabled: no API key configured")
		return svc
	}

	svc.client = anthropic.NewClient(option.WithAPIKey(config.Insights.APIKey))
	svc.enabled = true

	logger.Info().
		Str("model", svc.model).
		Dur("timeout", svc.timeout).
		Msg("Insight service initialized")
	return svc
}

// Enabled reports whether insight generation is configured
func (s *Service) Enabled() bool {
	return s.enabled
}

// Generate returns insight text for the audit's findings
func (s *Service) Generate(ctx context.Context, audit *models.Audit) (*models.AIInsights, error) {
	if !s.enabled {
		return nil, fmt.Errorf("insight service is not configured")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: insightMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: "You are an SEO consultant. Summarize audit findings into a short, prioritized action list for a site owner. Be specific and concise."},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(audit))),
		},
	}

	resp, err := s.client.Messages.New(timeoutCtx, params)
	if err != nil {
		return nil, fmt.Errorf("insight API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("no insight text generated")
	}

	s.logger.Debug().
		Str("audit_id", audit.ID).
		Int("length", text.Len()).
		Msg("Insights generated")

	return &models.AIInsights{
		Summary:     text.String(),
		GeneratedAt: time.Now(),
	}, nil
}

// buildPrompt condenses the audit into a prompt. Only aggregate findings go
// to the API, never raw page content.
func buildPrompt(audit *models.Audit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Site: %s\n", audit.SiteURL)
	fmt.Fprintf(&b, "Pages crawled: %d\n", audit.TotalPages)
	fmt.Fprintf(&b, "Issues: %d critical, %d warnings, %d info\n\n",
		audit.IssuesSummary.Critical, audit.IssuesSummary.Warning, audit.IssuesSummary.Info)

	b.WriteString("Most common findings:\n")
	counts := make(map[string]int)
	for _, page := range audit.PageResults {
		for _, issue := range page.Issues {
			counts[issue.Message]++
		}
	}
	written := 0
	for message, count := range counts {
		if written >= 20 {
			break
		}
		fmt.Fprintf(&b, "- %s (%d pages)\n", message, count)
		written++
	}

	return b.String()
}
