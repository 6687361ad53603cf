package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/singlebitxyz/gulp/internal/apperr"
)

func articleHTML(paragraphs int) string {
	var sb strings.Builder
	sb.WriteString("<html><head><title>Test Article Title</title></head><body><article><h1>Test Article Title</h1>")
	for i := 0; i < paragraphs; i++ {
		sb.WriteString("<p>This is a reasonably long paragraph of article body text used to exceed the minimum visible character threshold for extraction during tests. Paragraph number ")
		sb.WriteString(strings.Repeat("x", 10))
		sb.WriteString("</p>")
	}
	sb.WriteString("</article></body></html>")
	return sb.String()
}

func newCrawlerTestServer(t *testing.T, robotsBody string, robotsStatus int, html string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(robotsStatus)
		w.Write([]byte(robotsBody))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(html))
	})
	return httptest.NewServer(mux)
}

func TestCrawlerService_Crawl_Success(t *testing.T) {
	srv := newCrawlerTestServer(t, "User-agent: *\nAllow: /\n", http.StatusOK, articleHTML(5))
	defer srv.Close()

	c := NewCrawlerService(50, 5*time.Second)
	result, err := c.Crawl(context.Background(), srv.URL+"/article")
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if result.Title != "Test Article Title" {
		t.Errorf("title = %q, want %q", result.Title, "Test Article Title")
	}
	if len(result.Text) < 50 {
		t.Errorf("expected extracted text above threshold, got %d chars", len(result.Text))
	}
	if result.Checksum == "" {
		t.Error("expected non-empty checksum")
	}
	if result.ETag != `"abc123"` {
		t.Errorf("etag = %q, want %q", result.ETag, `"abc123"`)
	}
}

func TestCrawlerService_Crawl_RobotsDenied(t *testing.T) {
	srv := newCrawlerTestServer(t, "User-agent: *\nDisallow: /\n", http.StatusOK, articleHTML(5))
	defer srv.Close()

	c := NewCrawlerService(50, 5*time.Second)
	_, err := c.Crawl(context.Background(), srv.URL+"/article")
	if err == nil {
		t.Fatal("expected RobotsDenied error")
	}
	if apperr.KindOf(err) != apperr.RobotsDenied {
		t.Errorf("kind = %s, want RobotsDenied", apperr.KindOf(err))
	}
}

func TestCrawlerService_Crawl_RobotsAllowsSpecificPath(t *testing.T) {
	srv := newCrawlerTestServer(t, "User-agent: *\nDisallow: /private\n", http.StatusOK, articleHTML(5))
	defer srv.Close()

	c := NewCrawlerService(50, 5*time.Second)
	_, err := c.Crawl(context.Background(), srv.URL+"/article")
	if err != nil {
		t.Fatalf("expected path outside Disallow to be permitted, got: %v", err)
	}
}

func TestCrawlerService_Crawl_InsufficientContent(t *testing.T) {
	thin := "<html><head><title>Thin</title></head><body><p>short</p></body></html>"
	srv := newCrawlerTestServer(t, "User-agent: *\nAllow: /\n", http.StatusOK, thin)
	defer srv.Close()

	// minVisibleChars set high enough that the thin page never passes and
	// the headless fallback (unavailable in this test environment) would
	// also not help, so Crawl must fail with InsufficientContent rather
	// than hang retrying.
	c := NewCrawlerService(5000, 2*time.Second)
	_, err := c.Crawl(context.Background(), srv.URL+"/thin")
	if err == nil {
		t.Fatal("expected InsufficientContent error")
	}
}

func TestCrawlerService_Crawl_MissingRobotsTxtIsPermissive(t *testing.T) {
	srv := newCrawlerTestServer(t, "", http.StatusNotFound, articleHTML(5))
	defer srv.Close()

	c := NewCrawlerService(50, 5*time.Second)
	_, err := c.Crawl(context.Background(), srv.URL+"/article")
	if err != nil {
		t.Fatalf("expected missing robots.txt to be treated as permissive, got: %v", err)
	}
}

func TestCanonicalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"HTTP://Example.COM/Path#frag", "http://example.com/Path"},
		{"https://example.com", "https://example.com/"},
		{"https://example.com/a/b/", "https://example.com/a/b/"},
	}
	for _, tt := range tests {
		got, err := canonicalizeURL(tt.in)
		if err != nil {
			t.Fatalf("canonicalizeURL(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("canonicalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCanonicalizeURL_RejectsNonHTTP(t *testing.T) {
	if _, err := canonicalizeURL("ftp://example.com/file"); err == nil {
		t.Fatal("expected error for non-http(s) scheme")
	}
}

func TestURLLastSegment(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://example.com/docs/guide", "guide"},
		{"https://example.com/docs/guide/", "guide"},
		{"https://example.com/", ""},
		{"https://example.com", ""},
	}
	for _, tt := range tests {
		if got := urlLastSegment(tt.in); got != tt.want {
			t.Errorf("urlLastSegment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
