package interfaces

import (
	"context"

	"github.com/seolens/seolens/internal/models"
)

// CrawlRequest is the contract handed to the crawler collaborator
type CrawlRequest struct {
	AuditID   string
	ProjectID string
	SiteURL   string
	Options   models.AuditOptions
}

// CrawlResult is what the crawler returns on success
type CrawlResult struct {
	Pages  []models.PageResult
	Issues []models.Issue
}

// CrawlProgressFunc is invoked by the crawler at page-level checkpoints.
// Returning an error aborts the crawl; the run-audit handler uses this to
// stop quietly when the audit record vanished or was failed externally.
type CrawlProgressFunc func(pagesDiscovered, pagesProcessed int) error

// CrawlerService performs the actual crawl. Internals are opaque to the
// pipeline; only this contract matters.
type CrawlerService interface {
	Crawl(ctx context.Context, req CrawlRequest, progress CrawlProgressFunc) (*CrawlResult, error)
}
