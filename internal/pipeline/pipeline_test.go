package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/IntelDigest/internal/config"
	"github.com/TobiSchelling/IntelDigest/internal/database"
	"github.com/TobiSchelling/IntelDigest/internal/deliver"
	"github.com/TobiSchelling/IntelDigest/internal/digest"
	"github.com/TobiSchelling/IntelDigest/internal/fetch"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type feedItem struct {
	title string
	path  string
	date  string
}

// mockProvider implements llm.Provider for testing.
type mockProvider struct {
	response string
	err      error
}

func (m *mockProvider) Generate(_ context.Context, _ string, _ int) (string, error) {
	return m.response, m.err
}

func (m *mockProvider) IsConfigured() bool { return true }

type fakeSender struct {
	err error
}

func (f *fakeSender) Send(_ context.Context, _ deliver.Payload) error { return f.err }

func feedServer(t *testing.T, items []feedItem) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>Feed</title><link>https://example.com</link><description>Feed</description>`)
		for _, it := range items {
			d, _ := time.Parse("2006-01-02", it.date)
			fmt.Fprintf(&b, "<item><title>%s</title><link>http://%s%s?utm_source=rss</link><pubDate>%s</pubDate></item>",
				it.title, r.Host, it.path, d.Add(8*time.Hour).Format(time.RFC1123Z))
		}
		b.WriteString(`</channel></rss>`)
		fmt.Fprint(w, b.String())
	}))
	t.Cleanup(srv.Close)
	return srv
}

type fixture struct {
	cfg     *config.Config
	db      *database.DB
	console *bytes.Buffer
}

// newFixture serves three feeds: ten items, two older than the window, one
// near-duplicate pair, and two items below the relevance threshold.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	alpha := feedServer(t, []feedItem{
		{"AI travel planner launches for solo women", "/a1", "2026-03-10"},
		{"Thailand hostel bookings climb", "/a2", "2026-03-09"},
		{"Local bakery opens new storefront", "/a3", "2026-03-10"},
	})
	beta := feedServer(t, []feedItem{
		{"Generative AI reshapes airline customer service", "/b1", "2026-03-10"},
		{"Women safety features arrive in travel apps", "/b2", "2026-03-10"},
		{"City council debates parking fees", "/b3", "2026-03-10"},
		{"Vietnam digital nomad visa update", "/b4", "2026-02-20"},
	})
	skift := feedServer(t, []feedItem{
		{"AI Travel Planner Launches For Solo Women", "/c1", "2026-03-10"},
		{"Travel tech startup funding round", "/c2", "2026-02-25"},
		{"Morocco tourism growth continues", "/c3", "2026-03-08"},
	})

	cfg := config.Default()
	cfg.Period = database.PeriodDaily
	cfg.MaxAgeDays = 7
	cfg.MinRelevanceScore = 0.3
	cfg.MaxArticlesDaily = 3
	cfg.Delivery.Recipients = nil
	cfg.Sources = []config.Feed{
		{Name: "Alpha Wire", URL: alpha.URL, Category: "travel_news"},
		{Name: "Beta Journal", URL: beta.URL, Category: "ai_tech"},
		{Name: "Skift", URL: skift.URL, Category: "travel_industry"},
	}

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return &fixture{cfg: cfg, db: db, console: &bytes.Buffer{}}
}

func (f *fixture) pipeline(gen *digest.Generator, sender deliver.Sender) *Pipeline {
	now := func() time.Time { return testNow }
	return New(f.cfg, f.db, Deps{
		Fetcher:   fetch.New(fetch.Options{Timeout: 2 * time.Second, Now: now}),
		Generator: gen,
		Deliverer: deliver.NewDeliverer(sender, f.console),
		Now:       now,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestRunEndToEnd(t *testing.T) {
	f := newFixture(t)
	r, err := f.pipeline(digest.NewGenerator(nil, 0), nil).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	counts := []struct {
		name      string
		got, want int
	}{
		{"raw", r.Raw, 10},
		{"recent", r.Recent, 8},
		{"unique", r.Unique, 7},
		{"relevant", r.Relevant, 5},
		{"stored", r.Stored, 5},
		{"selected", r.Selected, 3},
	}
	for _, c := range counts {
		if c.got != c.want {
			t.Errorf("%s: expected %d, got %d", c.name, c.want, c.got)
		}
	}
	if r.Stage != StageDone {
		t.Errorf("expected stage done, got %s", r.Stage)
	}
	if r.Status != database.StatusPrinted {
		t.Errorf("expected printed status, got %s", r.Status)
	}
	if r.DigestSource != digest.SourceExtractive {
		t.Errorf("expected extractive digest, got %s", r.DigestSource)
	}

	stats, err := f.db.GetStats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Articles != 5 || stats.Digests != 1 || stats.LinkedPairs != 3 || stats.Sources != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}

	d, err := f.db.GetDigest(r.DigestID)
	if err != nil || d == nil {
		t.Fatalf("expected stored digest, got %v (%v)", d, err)
	}
	if d.SentStatus != database.StatusPrinted {
		t.Errorf("expected stored status printed, got %s", d.SentStatus)
	}

	linked, err := f.db.GetDigestArticles(r.DigestID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	titles := map[string]bool{}
	for _, a := range linked {
		titles[a.Title] = true
	}
	for _, want := range []string{
		"AI Travel Planner Launches For Solo Women",
		"Women safety features arrive in travel apps",
		"Generative AI reshapes airline customer service",
	} {
		if !titles[want] {
			t.Errorf("expected %q linked to digest, got %v", want, titles)
		}
	}

	skift, err := f.db.GetArticleByURL(f.cfg.Sources[2].URL + "/c1")
	if err != nil || skift == nil {
		t.Fatalf("expected Skift article stored with normalized URL, got %v (%v)", skift, err)
	}
	if skift.RelevanceScore != 1.0 || skift.Publisher != "Skift" {
		t.Errorf("unexpected stored article %+v", skift)
	}

	out := f.console.String()
	if !strings.Contains(out, "AI Travel Planner Launches For Solo Women") || strings.Contains(out, "Local bakery") {
		t.Errorf("unexpected console output:\n%s", out)
	}
	if d.ContentText == "" || strings.TrimSpace(out) != d.ContentText {
		t.Error("expected console to echo the stored digest text")
	}
}

func TestRunIsIdempotentForArticles(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(digest.NewGenerator(nil, 0), nil)
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	r, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if r.Stored != 0 {
		t.Errorf("expected no new articles on rerun, got %d", r.Stored)
	}

	stats, _ := f.db.GetStats()
	if stats.Articles != 5 || stats.Sources != 3 {
		t.Errorf("expected no duplicate rows, got %+v", stats)
	}
	if stats.Digests != 2 || stats.LinkedPairs != 6 {
		t.Errorf("expected second digest linked to existing articles, got %+v", stats)
	}
}

func TestRunFallsBackWhenLLMFails(t *testing.T) {
	f := newFixture(t)
	gen := digest.NewGenerator(&mockProvider{err: errors.New("timeout")}, 0)
	r, err := f.pipeline(gen, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.DigestSource != digest.SourceExtractive {
		t.Errorf("expected extractive fallback, got %s", r.DigestSource)
	}
	d, _ := f.db.GetDigest(r.DigestID)
	if d == nil || !strings.Contains(d.ContentMarkdown, "AI Travel Planner Launches For Solo Women") {
		t.Error("expected non-empty fallback digest")
	}
}

func TestRunUsesLLMDigest(t *testing.T) {
	f := newFixture(t)
	gen := digest.NewGenerator(&mockProvider{response: `{"digest": "# Today\n\nThree stories worth reading."}`}, 0)
	r, err := f.pipeline(gen, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.DigestSource != digest.SourceLLM {
		t.Errorf("expected llm digest, got %s", r.DigestSource)
	}
	d, _ := f.db.GetDigest(r.DigestID)
	if d.ContentMarkdown != "# Today\n\nThree stories worth reading." {
		t.Errorf("unexpected markdown %q", d.ContentMarkdown)
	}
	if d.ContentText != "Today\n\nThree stories worth reading." {
		t.Errorf("unexpected text %q", d.ContentText)
	}
}

func TestRunDeliveryOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		sender     deliver.Sender
		want       database.SentStatus
		wantEchoed bool
	}{
		{"sent", &fakeSender{}, database.StatusSent, false},
		{"failed", &fakeSender{err: errors.New("smtp down")}, database.StatusFailed, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.cfg.Delivery.Recipients = []string{"team@example.com"}
			r, err := f.pipeline(digest.NewGenerator(nil, 0), tt.sender).Run(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.Status != tt.want {
				t.Errorf("expected %s, got %s", tt.want, r.Status)
			}
			d, _ := f.db.GetDigest(r.DigestID)
			if d.SentStatus != tt.want {
				t.Errorf("expected stored %s, got %s", tt.want, d.SentStatus)
			}
			if echoed := f.console.Len() > 0; echoed != tt.wantEchoed {
				t.Errorf("expected echoed=%v, got console %q", tt.wantEchoed, f.console.String())
			}
		})
	}
}

func TestRunFetchOnly(t *testing.T) {
	f := newFixture(t)
	f.cfg.FetchOnly = true
	r, err := f.pipeline(digest.NewGenerator(nil, 0), nil).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Stage != StageFetchOnly || r.Stored != 5 {
		t.Errorf("unexpected result %+v", r)
	}
	stats, _ := f.db.GetStats()
	if stats.Digests != 0 || stats.Articles != 5 {
		t.Errorf("expected articles without digest, got %+v", stats)
	}
	if f.console.Len() != 0 {
		t.Error("expected nothing printed in fetch-only mode")
	}
}

func TestRunNoRelevantArticles(t *testing.T) {
	f := newFixture(t)
	f.cfg.Sources = f.cfg.Sources[:2]
	f.cfg.MinRelevanceScore = 0.9
	r, err := f.pipeline(digest.NewGenerator(nil, 0), nil).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Stage != StageNoDigest || r.Relevant != 0 {
		t.Errorf("unexpected result %+v", r)
	}
	stats, _ := f.db.GetStats()
	if stats.Digests != 0 {
		t.Errorf("expected no digest row, got %d", stats.Digests)
	}
}

func TestRunSurvivesFailingSource(t *testing.T) {
	f := newFixture(t)
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()
	f.cfg.Sources = append(f.cfg.Sources, config.Feed{Name: "Down", URL: down.URL, Category: "travel_news"})

	r, err := f.pipeline(digest.NewGenerator(nil, 0), nil).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.FailedSources != 1 || r.Raw != 10 || r.Status != database.StatusPrinted {
		t.Errorf("unexpected result %+v", r)
	}
}

func TestRunWeeklyUsesWeeklyLimit(t *testing.T) {
	f := newFixture(t)
	f.cfg.Period = database.PeriodWeekly
	f.cfg.MaxArticlesWeekly = 4
	r, err := f.pipeline(digest.NewGenerator(nil, 0), nil).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Selected != 4 {
		t.Errorf("expected 4 selected, got %d", r.Selected)
	}
	d, _ := f.db.GetDigest(r.DigestID)
	if d.Period != database.PeriodWeekly {
		t.Errorf("expected weekly digest, got %s", d.Period)
	}
}
