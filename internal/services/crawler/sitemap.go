package crawler

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
)

// sitemapURLSet is the <urlset> document shape
type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc string `xml:"loc"`
}

// sitemapIndex is the <sitemapindex> document shape used by large sites
type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []sitemapURL `xml:"sitemap"`
}

// fetchSitemapURLs retrieves the site's sitemap and returns the listed page
// URLs. Sitemap indexes are followed one level deep. Errors are soft: a site
// without a sitemap just seeds from its root.
func (s *Service) fetchSitemapURLs(ctx context.Context, fetcher *httpFetcher, siteURL string) []string {
	sitemapLoc, err := resolveAgainst(siteURL, "/sitemap.xml")
	if err != nil {
		return nil
	}
	return s.readSitemap(ctx, fetcher, sitemapLoc, true)
}

func (s *Service) readSitemap(ctx context.Context, fetcher *httpFetcher, sitemapLoc string, followIndex bool) []string {
	result, err := fetcher.Fetch(ctx, sitemapLoc)
	if err != nil || result.StatusCode != 200 {
		s.logger.Debug().Str("url", sitemapLoc).Msg("No sitemap available")
		return nil
	}

	var urls []string

	var urlset sitemapURLSet
	if err := xml.Unmarshal([]byte(result.Body), &urlset); err == nil && len(urlset.URLs) > 0 {
		for _, entry := range urlset.URLs {
			if loc := strings.TrimSpace(entry.Loc); loc != "" {
				urls = append(urls, loc)
			}
		}
		return urls
	}

	if followIndex {
		var index sitemapIndex
		if err := xml.Unmarshal([]byte(result.Body), &index); err == nil {
			for _, child := range index.Sitemaps {
				if loc := strings.TrimSpace(child.Loc); loc != "" {
					urls = append(urls, s.readSitemap(ctx, fetcher, loc, false)...)
				}
			}
		}
	}

	return urls
}

// robotsRules holds the disallow prefixes applicable to our user agent
type robotsRules struct {
	disallow []string
}

// fetchRobotsRules retrieves and parses robots.txt. A missing or unreadable
// file yields permissive rules.
func (s *Service) fetchRobotsRules(ctx context.Context, fetcher *httpFetcher, siteURL, userAgent string) *robotsRules {
	rules := &robotsRules{}

	robotsLoc, err := resolveAgainst(siteURL, "/robots.txt")
	if err != nil {
		return rules
	}

	result, err := fetcher.Fetch(ctx, robotsLoc)
	if err != nil || result.StatusCode != 200 {
		s.logger.Debug().Str("url", robotsLoc).Msg("No robots.txt available")
		return rules
	}

	// Collect Disallow lines from the wildcard group and any group whose
	// User-agent token appears in our user agent string
	applies := false
	for _, line := range strings.Split(result.Body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			applies = value == "*" || strings.Contains(strings.ToLower(userAgent), strings.ToLower(value))
		case "disallow":
			if applies && value != "" {
				rules.disallow = append(rules.disallow, value)
			}
		}
	}

	return rules
}

// Allowed reports whether the URL path is crawlable under the parsed rules
func (r *robotsRules) Allowed(pageURL string) bool {
	if len(r.disallow) == 0 {
		return true
	}
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	for _, prefix := range r.disallow {
		if strings.HasPrefix(parsed.Path, prefix) {
			return false
		}
	}
	return true
}

// resolveAgainst joins a site URL with an absolute path
func resolveAgainst(siteURL, path string) (string, error) {
	base, err := url.Parse(siteURL)
	if err != nil {
		return "", fmt.Errorf("invalid site URL: %w", err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
