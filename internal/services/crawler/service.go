package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/seolens/seolens/internal/common"
	"github.com/seolens/seolens/internal/interfaces"
	"github.com/seolens/seolens/internal/models"
)

// Service crawls a site breadth-first and analyzes each page for SEO
// findings. Crawl state lives entirely on the stack of one Crawl call, so a
// single Service is safe for the worker to reuse across audits.
type Service struct {
	requestTimeout    time.Duration
	requestsPerSecond int
	maxBodySize       int
	jsWaitTime        time.Duration
	logger            arbor.ILogger
}

// NewService creates a new crawler service
func NewService(config *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		requestTimeout:    common.Duration(config.Crawler.RequestTimeout, 30*time.Second),
		requestsPerSecond: config.Crawler.RequestsPerSecond,
		maxBodySize:       config.Crawler.MaxBodySize,
		jsWaitTime:        common.Duration(config.Crawler.JavaScriptWaitTime, 3*time.Second),
		logger:            logger,
	}
}

// crawlTarget is one frontier entry
type crawlTarget struct {
	url   string
	depth int
}

// Crawl walks the site from its seed URLs up to the configured page and
// depth limits. The progress callback fires after every processed page;
// a non-nil return aborts the crawl and is passed through unchanged.
func (s *Service) Crawl(ctx context.Context, req interfaces.CrawlRequest, progress interfaces.CrawlProgressFunc) (*interfaces.CrawlResult, error) {
	seed, err := url.Parse(req.SiteURL)
	if err != nil || seed.Host == "" {
		return nil, fmt.Errorf("invalid site URL %q", req.SiteURL)
	}

	opts := req.Options
	fetcher := newHTTPFetcher(opts.UserAgent, s.requestTimeout, s.maxBodySize, s.logger)

	var renderer *jsRenderer
	if opts.UseJavascript {
		renderer = newJSRenderer(opts.UserAgent, s.jsWaitTime, s.logger)
		defer renderer.Close()
	}

	filter := newLinkFilter(opts.FollowPatterns, opts.IgnorePatterns, s.logger)

	var robots *robotsRules
	if opts.IncludeRobots {
		robots = s.fetchRobotsRules(ctx, fetcher, req.SiteURL, opts.UserAgent)
	} else {
		robots = &robotsRules{}
	}

	rps := s.requestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), 1)

	frontier := []crawlTarget{{url: normalizeURL(req.SiteURL), depth: 0}}
	if opts.IncludeSitemap && !opts.CrawlSingleURL {
		for _, loc := range s.fetchSitemapURLs(ctx, fetcher, req.SiteURL) {
			frontier = append(frontier, crawlTarget{url: normalizeURL(loc), depth: 0})
		}
	}

	s.logger.Info().
		Str("audit_id", req.AuditID).
		Str("site_url", req.SiteURL).
		Int("max_pages", opts.MaxPages).
		Int("seeds", len(frontier)).
		Bool("use_javascript", opts.UseJavascript).
		Msg("Crawl started")

	visited := make(map[string]bool)
	var pages []models.PageResult

	for len(frontier) > 0 && len(pages) < opts.MaxPages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("crawl aborted: %w", err)
		}

		target := frontier[0]
		frontier = frontier[1:]

		if visited[target.url] {
			continue
		}
		visited[target.url] = true

		if !s.crawlable(target.url, seed.Host, filter, robots) {
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("crawl aborted: %w", err)
		}

		page, links := s.processPage(ctx, fetcher, renderer, target)
		pages = append(pages, page)

		if !opts.CrawlSingleURL && target.depth < opts.MaxDepth {
			for _, link := range links {
				link = normalizeURL(link)
				if !visited[link] {
					frontier = append(frontier, crawlTarget{url: link, depth: target.depth + 1})
				}
			}
		}

		discovered := len(visited) + len(frontier)
		if err := progress(discovered, len(pages)); err != nil {
			return nil, err
		}

		if opts.CrawlSingleURL {
			break
		}
	}

	result := &interfaces.CrawlResult{
		Pages:  pages,
		Issues: analyzeSite(pages),
	}

	s.logger.Info().
		Str("audit_id", req.AuditID).
		Int("pages", len(pages)).
		Int("site_issues", len(result.Issues)).
		Msg("Crawl finished")
	return result, nil
}

// processPage fetches, parses, and analyzes one URL. Fetch failures become a
// critical finding on the page rather than a crawl error.
func (s *Service) processPage(ctx context.Context, fetcher *httpFetcher, renderer *jsRenderer, target crawlTarget) (models.PageResult, []string) {
	page := models.PageResult{
		URL:   target.url,
		Depth: target.depth,
	}

	var fetched *fetchResult
	var err error
	if renderer != nil {
		fetched, err = renderer.Fetch(ctx, target.url)
		if err != nil {
			// Rendering can fail on non-HTML resources; retry plain
			s.logger.Debug().Err(err).Str("url", target.url).Msg("JS render failed, falling back to HTTP fetch")
			fetched, err = fetcher.Fetch(ctx, target.url)
		}
	} else {
		fetched, err = fetcher.Fetch(ctx, target.url)
	}

	if err != nil {
		page.Issues = []models.Issue{{
			Severity: models.SeverityCritical,
			Message:  fmt.Sprintf("failed to fetch page: %v", err),
			URLs:     []string{target.url},
		}}
		return page, nil
	}

	page.StatusCode = fetched.StatusCode
	page.LoadTimeMS = fetched.LoadTime.Milliseconds()

	if !isHTMLContent(fetched.ContentType) {
		return page, nil
	}

	parsed, err := parseDocument(target.url, fetched.Body)
	if err != nil {
		page.Issues = []models.Issue{{
			Severity: models.SeverityWarning,
			Message:  fmt.Sprintf("failed to parse page: %v", err),
			URLs:     []string{target.url},
		}}
		return page, nil
	}

	page.Title = parsed.Title
	page.Description = parsed.Description
	page.H1Count = parsed.H1Count
	page.WordCount = parsed.WordCount
	page.Issues = analyzePage(target.url, fetched.StatusCode, parsed)

	return page, parsed.Links
}

// crawlable applies scope, pattern, and robots checks to a candidate URL
func (s *Service) crawlable(pageURL, seedHost string, filter *linkFilter, robots *robotsRules) bool {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	if !strings.EqualFold(parsed.Host, seedHost) {
		return false
	}
	if !filter.Allow(pageURL) {
		return false
	}
	return robots.Allowed(pageURL)
}

// normalizeURL strips fragments and trailing slashes so the visited set
// deduplicates equivalent URLs
func normalizeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	parsed.Fragment = ""
	if parsed.Path == "/" {
		parsed.Path = ""
	}
	return parsed.String()
}
