// -----------------------------------------------------------------------
// Audit - one crawl-and-analyze run against a project's site URL
// -----------------------------------------------------------------------

package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// AuditStatus represents the lifecycle state of an audit
type AuditStatus string

const (
	AuditStatusPending    AuditStatus = "pending"
	AuditStatusInProgress AuditStatus = "in_progress"
	AuditStatusCompleted  AuditStatus = "completed"
	AuditStatusFailed     AuditStatus = "failed"
)

// IssueSeverity classifies a finding
type IssueSeverity string

const (
	SeverityCritical IssueSeverity = "critical"
	SeverityWarning  IssueSeverity = "warning"
	SeverityInfo     IssueSeverity = "info"
)

// DefaultUserAgent identifies the auditor to crawled sites
const DefaultUserAgent = "SEO SaaS Auditor/1.0"

var validate = validator.New()

// AuditOptions is the typed crawl configuration snapshot stored on each audit.
// Options are immutable once the audit transitions to in_progress.
type AuditOptions struct {
	MaxPages       int      `json:"max_pages" toml:"max_pages" validate:"gte=1,lte=10000"`
	MaxDepth       int      `json:"max_depth" toml:"max_depth" validate:"gte=1,lte=20"`
	FollowPatterns []string `json:"follow_patterns" toml:"follow_patterns"`
	IgnorePatterns []string `json:"ignore_patterns" toml:"ignore_patterns"`
	UserAgent      string   `json:"user_agent" toml:"user_agent" validate:"required"`
	UseJavascript  bool     `json:"use_javascript" toml:"use_javascript"`
	IncludeSitemap bool     `json:"include_sitemap" toml:"include_sitemap"`
	IncludeRobots  bool     `json:"include_robots" toml:"include_robots"`
	CrawlSingleURL bool     `json:"crawl_single_url" toml:"crawl_single_url"`
}

// DefaultAuditOptions returns the normalized option defaults. The pattern
// lists default to nil, which is also what a stored empty list deserializes
// to, so a persisted snapshot compares equal to the defaults it came from.
func DefaultAuditOptions() AuditOptions {
	return AuditOptions{
		MaxPages:       100,
		MaxDepth:       3,
		UserAgent:      DefaultUserAgent,
		UseJavascript:  true,
		IncludeSitemap: true,
		IncludeRobots:  true,
		CrawlSingleURL: false,
	}
}

// Validate checks option bounds at the construction boundary
func (o *AuditOptions) Validate() error {
	return validate.Struct(o)
}

// AuditOptionsPatch carries partial option updates. Nil fields are left
// untouched by Apply.
type AuditOptionsPatch struct {
	MaxPages       *int      `json:"max_pages,omitempty"`
	MaxDepth       *int      `json:"max_depth,omitempty"`
	FollowPatterns *[]string `json:"follow_patterns,omitempty"`
	IgnorePatterns *[]string `json:"ignore_patterns,omitempty"`
	UserAgent      *string   `json:"user_agent,omitempty"`
	UseJavascript  *bool     `json:"use_javascript,omitempty"`
	IncludeSitemap *bool     `json:"include_sitemap,omitempty"`
	IncludeRobots  *bool     `json:"include_robots,omitempty"`
	CrawlSingleURL *bool     `json:"crawl_single_url,omitempty"`
}

// Apply merges the patch into options, returning the merged copy
func (p *AuditOptionsPatch) Apply(o AuditOptions) AuditOptions {
	if p.MaxPages != nil {
		o.MaxPages = *p.MaxPages
	}
	if p.MaxDepth != nil {
		o.MaxDepth = *p.MaxDepth
	}
	if p.FollowPatterns != nil {
		o.FollowPatterns = *p.FollowPatterns
	}
	if p.IgnorePatterns != nil {
		o.IgnorePatterns = *p.IgnorePatterns
	}
	if p.UserAgent != nil {
		o.UserAgent = *p.UserAgent
	}
	if p.UseJavascript != nil {
		o.UseJavascript = *p.UseJavascript
	}
	if p.IncludeSitemap != nil {
		o.IncludeSitemap = *p.IncludeSitemap
	}
	if p.IncludeRobots != nil {
		o.IncludeRobots = *p.IncludeRobots
	}
	if p.CrawlSingleURL != nil {
		o.CrawlSingleURL = *p.CrawlSingleURL
	}
	return o
}

// IssueSummary holds finding counts by severity for one audit
type IssueSummary struct {
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	Info     int `json:"info"`
	Total    int `json:"total"`
}

// Add counts one issue of the given severity
func (s *IssueSummary) Add(severity IssueSeverity) {
	switch severity {
	case SeverityCritical:
		s.Critical++
	case SeverityWarning:
		s.Warning++
	case SeverityInfo:
		s.Info++
	}
	s.Total++
}

// Issue is a single SEO finding reported by the crawler
type Issue struct {
	Severity IssueSeverity `json:"severity"`
	Message  string        `json:"message"`
	URLs     []string      `json:"urls,omitempty"`
}

// PageResult holds the structured findings for one crawled page
type PageResult struct {
	URL         string  `json:"url"`
	StatusCode  int     `json:"status_code"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	H1Count     int     `json:"h1_count"`
	WordCount   int     `json:"word_count"`
	Depth       int     `json:"depth"`
	LoadTimeMS  int64   `json:"load_time_ms"`
	Issues      []Issue `json:"issues,omitempty"`
}

// AIInsights caches generated insight text with a freshness timestamp
type AIInsights struct {
	Summary     string    `json:"summary"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Audit represents one audit run of one project against one site URL.
//
// Invariants:
//   - CompletedAt is set iff status is completed or failed
//   - ProgressPercentage never decreases while status is in_progress
//   - ErrorMessage is set only when status is failed
//   - Options are immutable while status is in_progress
type Audit struct {
	ID                 string       `json:"id"`
	ProjectID          string       `json:"project_id"`
	SiteURL            string       `json:"site_url"`
	Status             AuditStatus  `json:"status"`
	StartedAt          time.Time    `json:"started_at"`
	CompletedAt        *time.Time   `json:"completed_at,omitempty"`
	TotalPages         int          `json:"total_pages"`
	ProgressPercentage *float64     `json:"progress_percentage,omitempty"` // nil until first estimate
	Options            AuditOptions `json:"options"`
	PageResults        []PageResult `json:"page_results,omitempty"`
	IssuesSummary      IssueSummary `json:"issues_summary"`
	ErrorMessage       string       `json:"error_message,omitempty"`
	Insights           *AIInsights  `json:"insights,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	LastHeartbeat      *time.Time   `json:"last_heartbeat,omitempty"`
}

// NewAudit creates a pending audit with a zeroed issue summary
func NewAudit(projectID, siteURL string, opts AuditOptions) *Audit {
	now := time.Now()
	return &Audit{
		ID:            uuid.New().String(),
		ProjectID:     projectID,
		SiteURL:       siteURL,
		Status:        AuditStatusPending,
		StartedAt:     now,
		Options:       opts,
		IssuesSummary: IssueSummary{},
		CreatedAt:     now,
	}
}

// IsTerminal returns true when the audit reached a final state
func (a *Audit) IsTerminal() bool {
	return a.Status == AuditStatusCompleted || a.Status == AuditStatusFailed
}

// MarkStarted transitions the audit to in_progress
func (a *Audit) MarkStarted() {
	a.Status = AuditStatusInProgress
	now := time.Now()
	a.LastHeartbeat = &now
}

// MarkCompleted transitions the audit to completed and pins progress at 100
func (a *Audit) MarkCompleted() {
	a.Status = AuditStatusCompleted
	now := time.Now()
	a.CompletedAt = &now
	full := 100.0
	a.ProgressPercentage = &full
}

// MarkFailed transitions the audit to failed with the terminal error
func (a *Audit) MarkFailed(errMsg string) {
	a.Status = AuditStatusFailed
	a.ErrorMessage = errMsg
	now := time.Now()
	a.CompletedAt = &now
}

// ResetForRestart returns the audit to pending with a fresh start timestamp,
// keeping the previously stored options
func (a *Audit) ResetForRestart() {
	a.Status = AuditStatusPending
	a.StartedAt = time.Now()
	a.CompletedAt = nil
	a.TotalPages = 0
	a.ProgressPercentage = nil
	a.PageResults = nil
	a.IssuesSummary = IssueSummary{}
	a.ErrorMessage = ""
	a.LastHeartbeat = nil
}
