package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"
	"github.com/temoto/robotstxt"

	"github.com/singlebitxyz/gulp/internal/apperr"
)

const crawlerUserAgent = "gulp-crawler/1.0 (+https://github.com/singlebitxyz/gulp)"

// CrawlResult is the C2 contract's output: extracted content plus the
// dedup hints the ingestion coordinator uses to decide whether to re-chunk.
type CrawlResult struct {
	Text         string
	Title        string
	CanonicalURL string
	ETag         string
	LastModified string
	Checksum     string
}

// CrawlerService implements the C2 fetch protocol: canonicalize, check
// robots.txt, fetch (with a headless-browser fallback for thin pages),
// extract main content, and checksum the result.
type CrawlerService struct {
	client          *http.Client
	minVisibleChars int
	timeout         time.Duration
}

// NewCrawlerService creates a CrawlerService.
func NewCrawlerService(minVisibleChars int, timeout time.Duration) *CrawlerService {
	return &CrawlerService{
		client:          &http.Client{Timeout: timeout},
		minVisibleChars: minVisibleChars,
		timeout:         timeout,
	}
}

// Crawl fetches and extracts the main content of a URL per the C2 contract.
func (s *CrawlerService) Crawl(ctx context.Context, rawURL string) (*CrawlResult, error) {
	canonical, err := canonicalizeURL(rawURL)
	if err != nil {
		return nil, apperr.Wrap(apperr.ValidationFailed, "invalid source URL", err)
	}

	allowed, err := s.checkRobots(ctx, canonical)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProviderUnavailable, "robots.txt fetch failed", err)
	}
	if !allowed {
		return nil, apperr.New(apperr.RobotsDenied, "robots.txt disallows crawling this path")
	}

	html, etag, lastModified, err := s.fetch(ctx, canonical)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProviderUnavailable, "fetch failed", err)
	}

	art, visibleChars := extractArticle(html, canonical)
	if visibleChars < s.minVisibleChars {
		rendered, rerr := s.fetchRendered(ctx, canonical)
		if rerr == nil {
			if renderedArt, renderedChars := extractArticle(rendered, canonical); renderedChars > visibleChars {
				art, visibleChars = renderedArt, renderedChars
			}
		}
	}

	text := strings.TrimSpace(art.TextContent)
	if len(text) < s.minVisibleChars {
		return nil, apperr.New(apperr.InsufficientContent, "extracted text below minimum character threshold")
	}

	title := strings.TrimSpace(art.Title)
	checksum := sha256.Sum256([]byte(text))

	return &CrawlResult{
		Text:         text,
		Title:        title,
		CanonicalURL: canonical,
		ETag:         etag,
		LastModified: lastModified,
		Checksum:     hex.EncodeToString(checksum[:]),
	}, nil
}

func (s *CrawlerService) checkRobots(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, err
	}
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", crawlerUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		// Unreachable robots.txt is treated as permissive, matching common
		// crawler behavior when a site has none.
		return true, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return true, nil
	}
	if resp.StatusCode != http.StatusOK {
		return true, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, err
	}
	robotsData, err := robotstxt.FromBytes(data)
	if err != nil {
		return true, nil
	}
	return robotsData.TestAgent(u.Path, crawlerUserAgent), nil
}

func (s *CrawlerService) fetch(ctx context.Context, rawURL string) (html, etag, lastModified string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", "", err
	}
	req.Header.Set("User-Agent", crawlerUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", "", fmt.Errorf("service.CrawlerService.fetch: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return "", "", "", err
	}

	return string(body), resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), nil
}

// fetchRendered retries the page through a headless Chrome instance for
// client-rendered pages whose server-side HTML carries little visible text.
func (s *CrawlerService) fetchRendered(ctx context.Context, rawURL string) (string, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(crawlerUserAgent),
	)...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelTimeout := context.WithTimeout(browserCtx, s.timeout)
	defer cancelTimeout()

	var rendered string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &rendered),
	)
	if err != nil {
		return "", fmt.Errorf("service.CrawlerService.fetchRendered: %w", err)
	}
	return rendered, nil
}

// extractArticle runs the readability extractor and reports how many
// visible characters it recovered, so the caller can decide whether a
// headless-rendered retry is worth attempting.
func extractArticle(html, pageURL string) (readability.Article, int) {
	base, _ := url.Parse(pageURL)
	art, err := readability.FromReader(strings.NewReader(html), base)
	if err != nil {
		return readability.Article{}, 0
	}
	return art, len(strings.TrimSpace(art.TextContent))
}

// canonicalizeURL lowercases scheme and host, strips the fragment, and
// normalizes a bare-root trailing slash.
func canonicalizeURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("service.canonicalizeURL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("service.canonicalizeURL: unsupported scheme %q", u.Scheme)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

// urlLastSegment returns the last non-empty path segment of a URL, used as
// a fallback heading/title source when a source has none of its own.
func urlLastSegment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	trimmed := strings.TrimRight(u.Path, "/")
	if trimmed == "" {
		return ""
	}
	return path.Base(trimmed)
}
