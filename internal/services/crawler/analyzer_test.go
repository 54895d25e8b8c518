package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/seolens/seolens/internal/models"
)

const healthyHTML = `<!DOCTYPE html>
<html>
<head>
	<title>A descriptive page title for testing</title>
	<meta name="description" content="A meta description long enough to pass the minimum length check for pages.">
	<meta name="viewport" content="width=device-width, initial-scale=1">
	<link rel="canonical" href="https://example.com/page">
</head>
<body>
	<h1>Heading</h1>
	<img src="/a.png" alt="a picture">
	<img src="/b.png">
	<a href="/about">About</a>
	<a href="https://example.com/contact#team">Contact</a>
	<a href="#top">Top</a>
	<a href="mailto:hi@example.com">Mail</a>
	<a href="javascript:void(0)">Click</a>
	<p>Some body text here.</p>
</body>
</html>`

func TestParseDocument(t *testing.T) {
	page, err := parseDocument("https://example.com/page", healthyHTML)
	require.NoError(t, err)

	assert.Equal(t, "A descriptive page title for testing", page.Title)
	assert.Contains(t, page.Description, "long enough to pass")
	assert.Equal(t, 1, page.H1Count)
	assert.True(t, page.HasCanonical)
	assert.True(t, page.HasViewportMeta)
	assert.Equal(t, 2, page.ImagesTotal)
	assert.Equal(t, 1, page.ImagesNoAlt)

	// Relative links resolved, fragments stripped, non-page schemes skipped
	assert.Equal(t, []string{
		"https://example.com/about",
		"https://example.com/contact",
	}, page.Links)
	assert.Greater(t, page.WordCount, 0)
}

func TestParseDocumentEmptyPage(t *testing.T) {
	page, err := parseDocument("https://example.com/", "<html><body></body></html>")
	require.NoError(t, err)

	assert.Empty(t, page.Title)
	assert.Empty(t, page.Description)
	assert.Zero(t, page.H1Count)
	assert.False(t, page.HasCanonical)
	assert.Empty(t, page.Links)
}

func TestAnalyzePage(t *testing.T) {
	healthy := &parsedPage{
		Title:           "A descriptive page title for testing",
		Description:     "A meta description long enough to pass the minimum length check for pages.",
		H1Count:         1,
		WordCount:       500,
		HasCanonical:    true,
		HasViewportMeta: true,
	}

	tests := []struct {
		name       string
		statusCode int
		mutate     func(p *parsedPage)
		severity   models.IssueSeverity
		message    string
	}{
		{
			name:     "missing title is critical",
			mutate:   func(p *parsedPage) { p.Title = "" },
			severity: models.SeverityCritical,
			message:  "missing page title",
		},
		{
			name:     "short title is a warning",
			mutate:   func(p *parsedPage) { p.Title = "Home" },
			severity: models.SeverityWarning,
			message:  "title too short",
		},
		{
			name:     "missing description is a warning",
			mutate:   func(p *parsedPage) { p.Description = "" },
			severity: models.SeverityWarning,
			message:  "missing meta description",
		},
		{
			name:     "missing H1 is a warning",
			mutate:   func(p *parsedPage) { p.H1Count = 0 },
			severity: models.SeverityWarning,
			message:  "missing H1 heading",
		},
		{
			name:     "multiple H1s are informational",
			mutate:   func(p *parsedPage) { p.H1Count = 3 },
			severity: models.SeverityInfo,
			message:  "multiple H1 headings",
		},
		{
			name:     "images without alt text",
			mutate:   func(p *parsedPage) { p.ImagesTotal = 4; p.ImagesNoAlt = 2 },
			severity: models.SeverityWarning,
			message:  "images missing alt text",
		},
		{
			name:     "thin content is informational",
			mutate:   func(p *parsedPage) { p.WordCount = 40 },
			severity: models.SeverityInfo,
			message:  "thin content",
		},
		{
			name:     "missing viewport is a warning",
			mutate:   func(p *parsedPage) { p.HasViewportMeta = false },
			severity: models.SeverityWarning,
			message:  "missing viewport meta tag",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := *healthy
			tt.mutate(&page)

			issues := analyzePage("https://example.com/page", 200, &page)
			require.Len(t, issues, 1)
			assert.Equal(t, tt.severity, issues[0].Severity)
			assert.Contains(t, issues[0].Message, tt.message)
			assert.Equal(t, []string{"https://example.com/page"}, issues[0].URLs)
		})
	}
}

func TestAnalyzePageHealthy(t *testing.T) {
	issues := analyzePage("https://example.com/page", 200, &parsedPage{
		Title:           "A descriptive page title for testing",
		Description:     "A meta description long enough to pass the minimum length check for pages.",
		H1Count:         1,
		WordCount:       500,
		HasCanonical:    true,
		HasViewportMeta: true,
	})
	assert.Empty(t, issues)
}

func TestAnalyzePageErrorStatusShortCircuits(t *testing.T) {
	// An error page gets one critical finding, not a pile of content findings
	issues := analyzePage("https://example.com/missing", 404, &parsedPage{})
	require.Len(t, issues, 1)
	assert.Equal(t, models.SeverityCritical, issues[0].Severity)
	assert.Contains(t, issues[0].Message, "HTTP 404")
}

func TestAnalyzeSiteDuplicates(t *testing.T) {
	pages := []models.PageResult{
		{URL: "https://example.com/a", StatusCode: 200, Title: "Same Title", Description: "Same description"},
		{URL: "https://example.com/b", StatusCode: 200, Title: "Same Title", Description: "Same description"},
		{URL: "https://example.com/c", StatusCode: 200, Title: "Unique Title", Description: "Unique description"},
		{URL: "https://example.com/d", StatusCode: 404, Title: "Same Title"},
	}

	issues := analyzeSite(pages)
	require.Len(t, issues, 2)

	var titleIssue, descIssue *models.Issue
	for i := range issues {
		switch issues[i].Severity {
		case models.SeverityWarning:
			titleIssue = &issues[i]
		case models.SeverityInfo:
			descIssue = &issues[i]
		}
	}

	require.NotNil(t, titleIssue)
	assert.Contains(t, titleIssue.Message, "duplicate title")
	// The 404 page is excluded from duplicate detection
	assert.Len(t, titleIssue.URLs, 2)

	require.NotNil(t, descIssue)
	assert.Contains(t, descIssue.Message, "duplicate meta description")
}

func TestLinkFilter(t *testing.T) {
	tests := []struct {
		name    string
		follow  []string
		ignore  []string
		url     string
		allowed bool
	}{
		{name: "no patterns allow everything", url: "https://example.com/anything", allowed: true},
		{name: "ignore pattern rejects", ignore: []string{`\.pdf$`}, url: "https://example.com/doc.pdf", allowed: false},
		{name: "ignore pattern passes others", ignore: []string{`\.pdf$`}, url: "https://example.com/doc", allowed: true},
		{name: "follow patterns act as allow-list", follow: []string{`/blog/`}, url: "https://example.com/shop/item", allowed: false},
		{name: "follow pattern match allowed", follow: []string{`/blog/`}, url: "https://example.com/blog/post", allowed: true},
		{name: "ignore wins over follow", follow: []string{`/blog/`}, ignore: []string{`/blog/draft`}, url: "https://example.com/blog/draft-1", allowed: false},
		{name: "invalid pattern skipped", follow: []string{`[invalid`}, url: "https://example.com/page", allowed: true},
	}

	logger := arbor.NewLogger()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := newLinkFilter(tt.follow, tt.ignore, logger)
			assert.Equal(t, tt.allowed, filter.Allow(tt.url))
		})
	}
}

func TestRobotsRulesAllowed(t *testing.T) {
	permissive := &robotsRules{}
	assert.True(t, permissive.Allowed("https://example.com/admin"))

	rules := &robotsRules{disallow: []string{"/admin", "/private/"}}
	assert.False(t, rules.Allowed("https://example.com/admin"))
	assert.False(t, rules.Allowed("https://example.com/admin/users"))
	assert.False(t, rules.Allowed("https://example.com/private/notes"))
	assert.True(t, rules.Allowed("https://example.com/blog"))
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/", "https://example.com"},
		{"https://example.com/page#section", "https://example.com/page"},
		{"https://example.com/page", "https://example.com/page"},
		{"https://example.com/page?q=1", "https://example.com/page?q=1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeURL(tt.in))
	}
}
