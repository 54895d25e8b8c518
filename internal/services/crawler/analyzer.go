package crawler

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/seolens/seolens/internal/models"
)

// Title and description length bounds used by the page checks. These follow
// common SERP display limits.
const (
	titleMinLength       = 10
	titleMaxLength       = 60
	descriptionMinLength = 50
	descriptionMaxLength = 160
	thinContentWords     = 150
)

// parsedPage is the structured extraction of one HTML document
type parsedPage struct {
	Title           string
	Description     string
	H1Count         int
	WordCount       int
	Links           []string
	ImagesNoAlt     int
	ImagesTotal     int
	HasCanonical    bool
	HasViewportMeta bool
}

// parseDocument extracts SEO-relevant structure from the page body.
// Links are resolved to absolute URLs against the page URL.
func parseDocument(pageURL, body string) (*parsedPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	page := &parsedPage{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}

	if desc, exists := doc.Find(`meta[name="description"]`).First().Attr("content"); exists {
		page.Description = strings.TrimSpace(desc)
	}

	page.H1Count = doc.Find("h1").Length()
	page.HasCanonical = doc.Find(`link[rel="canonical"]`).Length() > 0
	page.HasViewportMeta = doc.Find(`meta[name="viewport"]`).Length() > 0

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		page.ImagesTotal++
		if alt, exists := sel.Attr("alt"); !exists || strings.TrimSpace(alt) == "" {
			page.ImagesNoAlt++
		}
	})

	base, baseErr := url.Parse(pageURL)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") ||
			strings.HasPrefix(href, "javascript:") {
			return
		}
		if baseErr == nil {
			if ref, err := url.Parse(href); err == nil {
				resolved := base.ResolveReference(ref)
				resolved.Fragment = ""
				page.Links = append(page.Links, resolved.String())
				return
			}
		}
		page.Links = append(page.Links, href)
	})

	bodyText := strings.TrimSpace(doc.Find("body").Text())
	page.WordCount = len(strings.Fields(bodyText))

	return page, nil
}

// analyzePage produces the per-page findings
func analyzePage(pageURL string, statusCode int, page *parsedPage) []models.Issue {
	var issues []models.Issue

	add := func(severity models.IssueSeverity, message string) {
		issues = append(issues, models.Issue{
			Severity: severity,
			Message:  message,
			URLs:     []string{pageURL},
		})
	}

	if statusCode >= 400 {
		add(models.SeverityCritical, fmt.Sprintf("page returned HTTP %d", statusCode))
		return issues
	}

	switch {
	case page.Title == "":
		add(models.SeverityCritical, "missing page title")
	case len(page.Title) < titleMinLength:
		add(models.SeverityWarning, fmt.Sprintf("title too short (%d chars)", len(page.Title)))
	case len(page.Title) > titleMaxLength:
		add(models.SeverityWarning, fmt.Sprintf("title too long (%d chars)", len(page.Title)))
	}

	switch {
	case page.Description == "":
		add(models.SeverityWarning, "missing meta description")
	case len(page.Description) < descriptionMinLength:
		add(models.SeverityInfo, fmt.Sprintf("meta description too short (%d chars)", len(page.Description)))
	case len(page.Description) > descriptionMaxLength:
		add(models.SeverityInfo, fmt.Sprintf("meta description too long (%d chars)", len(page.Description)))
	}

	switch {
	case page.H1Count == 0:
		add(models.SeverityWarning, "missing H1 heading")
	case page.H1Count > 1:
		add(models.SeverityInfo, fmt.Sprintf("multiple H1 headings (%d)", page.H1Count))
	}

	if page.ImagesNoAlt > 0 {
		add(models.SeverityWarning, fmt.Sprintf("%d of %d images missing alt text", page.ImagesNoAlt, page.ImagesTotal))
	}
	if page.WordCount > 0 && page.WordCount < thinContentWords {
		add(models.SeverityInfo, fmt.Sprintf("thin content (%d words)", page.WordCount))
	}
	if !page.HasCanonical {
		add(models.SeverityInfo, "missing canonical link")
	}
	if !page.HasViewportMeta {
		add(models.SeverityWarning, "missing viewport meta tag")
	}

	return issues
}

// analyzeSite produces cross-page findings: duplicate titles and duplicate
// meta descriptions across the crawled set
func analyzeSite(pages []models.PageResult) []models.Issue {
	var issues []models.Issue

	byTitle := make(map[string][]string)
	byDescription := make(map[string][]string)
	for _, page := range pages {
		if page.StatusCode >= 400 {
			continue
		}
		if page.Title != "" {
			byTitle[page.Title] = append(byTitle[page.Title], page.URL)
		}
		if page.Description != "" {
			byDescription[page.Description] = append(byDescription[page.Description], page.URL)
		}
	}

	for title, urls := range byTitle {
		if len(urls) > 1 {
			issues = append(issues, models.Issue{
				Severity: models.SeverityWarning,
				Message:  fmt.Sprintf("duplicate title %q on %d pages", title, len(urls)),
				URLs:     urls,
			})
		}
	}
	for _, urls := range byDescription {
		if len(urls) > 1 {
			issues = append(issues, models.Issue{
				Severity: models.SeverityInfo,
				Message:  fmt.Sprintf("duplicate meta description on %d pages", len(urls)),
				URLs:     urls,
			})
		}
	}

	return issues
}
