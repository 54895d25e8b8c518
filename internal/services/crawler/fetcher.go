package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// fetchResult is one fetched page before parsing
type fetchResult struct {
	StatusCode  int
	Body        string
	ContentType string
	LoadTime    time.Duration
}

// httpFetcher retrieves pages over plain HTTP
type httpFetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int
	logger      arbor.ILogger
}

func newHTTPFetcher(userAgent string, requestTimeout time.Duration, maxBodySize int, logger arbor.ILogger) *httpFetcher {
	return &httpFetcher{
		client:      &http.Client{Timeout: requestTimeout},
		userAgent:   userAgent,
		maxBodySize: maxBodySize,
		logger:      logger,
	}
}

func (f *httpFetcher) Fetch(ctx context.Context, pageURL string) (*fetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(f.maxBodySize)))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &fetchResult{
		StatusCode:  resp.StatusCode,
		Body:        string(body),
		ContentType: resp.Header.Get("Content-Type"),
		LoadTime:    time.Since(start),
	}, nil
}

// jsRenderer fetches pages through a headless browser so client-rendered
// markup is visible to the parser. One browser per crawl; callers must Close.
type jsRenderer struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
	waitTime    time.Duration
	logger      arbor.ILogger
}

func newJSRenderer(userAgent string, waitTime time.Duration, logger arbor.ILogger) *jsRenderer {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	return &jsRenderer{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		cancel:      cancel,
		waitTime:    waitTime,
		logger:      logger,
	}
}

func (r *jsRenderer) Fetch(ctx context.Context, pageURL string) (*fetchResult, error) {
	tabCtx, tabCancel := chromedp.NewContext(r.browserCtx)
	defer tabCancel()

	if deadline, ok := ctx.Deadline(); ok {
		var timeoutCancel context.CancelFunc
		tabCtx, timeoutCancel = context.WithDeadline(tabCtx, deadline)
		defer timeoutCancel()
	}

	// Watch for the document response so the real status code is reported
	// instead of assuming 200 on successful navigation
	statusCode := http.StatusOK
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if resp, ok := ev.(*network.EventResponseReceived); ok {
			if resp.Type == network.ResourceTypeDocument && resp.Response.URL == pageURL {
				statusCode = int(resp.Response.Status)
			}
		}
	})

	start := time.Now()
	var html string
	err := chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.Navigate(pageURL),
		chromedp.Sleep(r.waitTime),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}

	return &fetchResult{
		StatusCode:  statusCode,
		Body:        html,
		ContentType: "text/html",
		LoadTime:    time.Since(start),
	}, nil
}

func (r *jsRenderer) Close() {
	r.cancel()
	r.allocCancel()
}

// isHTMLContent reports whether a response should be parsed as a page
func isHTMLContent(contentType string) bool {
	return contentType == "" ||
		strings.Contains(contentType, "text/html") ||
		strings.Contains(contentType, "application/xhtml")
}
