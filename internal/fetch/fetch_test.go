package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/IntelDigest/internal/catalog"
)

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Test Feed</title>
<link>https://example.com</link>
<description>Test</description>
<item>
  <title>First story</title>
  <link>https://example.com/first?utm_source=rss</link>
  <description>&lt;p&gt;Opening line. Second line. Third line.&lt;/p&gt;</description>
  <pubDate>Mon, 09 Mar 2026 08:00:00 +0000</pubDate>
</item>
<item>
  <title>Second story</title>
  <link>https://example.com/second</link>
  <pubDate>Tue, 10 Mar 2026 08:00:00 +0000</pubDate>
</item>
<item>
  <title></title>
  <link>https://example.com/untitled</link>
</item>
</channel>
</rss>`

func newTestFetcher(timeout time.Duration) *Fetcher {
	return New(Options{
		Timeout: timeout,
		Now:     func() time.Time { return testNow },
	})
}

func TestFetchSourceParsesFeed(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, testRSS)
	}))
	defer srv.Close()

	f := newTestFetcher(time.Second)
	articles, err := f.FetchSource(context.Background(), catalog.Source{Name: "Skift", URL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}
	if gotUA != DefaultUserAgent {
		t.Errorf("expected User-Agent %q, got %q", DefaultUserAgent, gotUA)
	}

	first := articles[0]
	if first.URL != "https://example.com/first" {
		t.Errorf("unexpected URL %q", first.URL)
	}
	if first.PublishedAt != "2026-03-09" {
		t.Errorf("unexpected date %q", first.PublishedAt)
	}
	if first.Summary != "Opening line. Second line." {
		t.Errorf("unexpected summary %q", first.Summary)
	}
	if first.Publisher != "Skift" {
		t.Errorf("unexpected publisher %q", first.Publisher)
	}
	if articles[1].Summary != "Second story" {
		t.Errorf("expected title as summary, got %q", articles[1].Summary)
	}
}

func TestFetchSourceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestFetcher(time.Second).FetchSource(context.Background(), catalog.Source{Name: "X", URL: srv.URL})
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("expected HTTP 500 error, got %v", err)
	}
}

func TestFetchSourceMalformedFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not a feed")
	}))
	defer srv.Close()

	_, err := newTestFetcher(time.Second).FetchSource(context.Background(), catalog.Source{Name: "X", URL: srv.URL})
	if err == nil {
		t.Error("expected parse error")
	}
}

func TestFetchAllIsolatesFailures(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testRSS)
	}))
	defer good.Close()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer bad.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	f := newTestFetcher(200 * time.Millisecond)
	result := f.FetchAll(context.Background(), []catalog.Source{
		{Name: "Good", URL: good.URL},
		{Name: "Bad", URL: bad.URL},
		{Name: "Slow", URL: slow.URL},
	})

	if len(result.Articles) != 2 {
		t.Errorf("expected 2 articles from the healthy source, got %d", len(result.Articles))
	}
	if result.Sources["Good"] != 2 {
		t.Errorf("expected Good to contribute 2, got %d", result.Sources["Good"])
	}
	if _, ok := result.Failures["Bad"]; !ok {
		t.Error("expected Bad to be recorded as failed")
	}
	if _, ok := result.Failures["Slow"]; !ok {
		t.Error("expected Slow to time out")
	}
}

func TestFetchAllPreservesSourceOrder(t *testing.T) {
	feedFor := func(title string) string {
		return strings.Replace(testRSS, "First story", title, 1)
	}
	a := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		fmt.Fprint(w, feedFor("From A"))
	}))
	defer a.Close()
	b := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedFor("From B"))
	}))
	defer b.Close()

	result := newTestFetcher(time.Second).FetchAll(context.Background(), []catalog.Source{
		{Name: "A", URL: a.URL},
		{Name: "B", URL: b.URL},
	})
	if len(result.Articles) != 4 {
		t.Fatalf("expected 4 articles, got %d", len(result.Articles))
	}
	if result.Articles[0].Title != "From A" || result.Articles[2].Title != "From B" {
		t.Errorf("expected source order to be preserved, got %q then %q",
			result.Articles[0].Title, result.Articles[2].Title)
	}
}
