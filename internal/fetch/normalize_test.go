package fetch

import (
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://example.com/a?utm_source=x&id=3&ref=tw#frag", "https://example.com/a?id=3"},
		{"https://example.com/a?utm_medium=email&utm_campaign=spring", "https://example.com/a"},
		{"https://example.com/a?b=2&a=1", "https://example.com/a?b=2&a=1"},
		{"https://example.com/a?source=rss&page=2", "https://example.com/a?page=2"},
		{"https://example.com/path#section", "https://example.com/path"},
		{"not a url", "not a url"},
	}
	for _, tt := range tests {
		if got := NormalizeURL(tt.in); got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractSummaryFirstTwoSentences(t *testing.T) {
	got := ExtractSummary("<p>First sentence. Second one!</p><p>Third?</p>", "Title")
	if got != "First sentence. Second one!" {
		t.Errorf("unexpected summary %q", got)
	}
}

func TestExtractSummaryNoTerminator(t *testing.T) {
	content := strings.Repeat("word ", 60)
	got := ExtractSummary(content, "Title")
	if n := len([]rune(got)); n > 200 {
		t.Errorf("expected at most 200 characters, got %d", n)
	}
	if !strings.HasPrefix(got, "word word") {
		t.Errorf("unexpected summary %q", got)
	}
}

func TestExtractSummaryEmptyFallsBackToTitle(t *testing.T) {
	for _, content := range []string{"", "   ", "<p> </p>"} {
		if got := ExtractSummary(content, "The Title"); got != "The Title" {
			t.Errorf("ExtractSummary(%q) = %q, want title", content, got)
		}
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"<p>Hello <b>world</b></p><p>Next</p>", "Hello world Next"},
		{"Fish &amp; chips", "Fish & chips"},
		{"<div>Keep<script>alert(1)</script> this</div>", "Keep this"},
		{"plain\n\n  text", "plain text"},
	}
	for _, tt := range tests {
		if got := StripHTML(tt.in); got != tt.want {
			t.Errorf("StripHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeItemRejectsMissingFields(t *testing.T) {
	if _, ok := NormalizeItem(&gofeed.Item{Link: "https://example.com/a"}, "P", testNow); ok {
		t.Error("expected item without title to be rejected")
	}
	if _, ok := NormalizeItem(&gofeed.Item{Title: "T"}, "P", testNow); ok {
		t.Error("expected item without link to be rejected")
	}
}

func TestNormalizeItemGUIDFallback(t *testing.T) {
	a, ok := NormalizeItem(&gofeed.Item{Title: "T", GUID: "https://example.com/guid"}, "P", testNow)
	if !ok {
		t.Fatal("expected item to be accepted")
	}
	if a.URL != "https://example.com/guid" {
		t.Errorf("expected GUID link, got %q", a.URL)
	}
}

func TestNormalizeItemDates(t *testing.T) {
	published := time.Date(2026, 3, 8, 23, 30, 0, 0, time.UTC)
	updated := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		item *gofeed.Item
		want string
	}{
		{"parsed", &gofeed.Item{PublishedParsed: &published}, "2026-03-08"},
		{"raw string", &gofeed.Item{Published: "2026-03-07 10:00:00"}, "2026-03-07"},
		{"updated", &gofeed.Item{UpdatedParsed: &updated}, "2026-03-05"},
		{"missing", &gofeed.Item{}, "2026-03-10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.item.Title = "T"
			tt.item.Link = "https://example.com/a"
			a, ok := NormalizeItem(tt.item, "P", testNow)
			if !ok {
				t.Fatal("expected item to be accepted")
			}
			if a.PublishedAt != tt.want {
				t.Errorf("expected %s, got %s", tt.want, a.PublishedAt)
			}
		})
	}
}

func TestNormalizeItemUsesDescriptionWhenNoContent(t *testing.T) {
	a, _ := NormalizeItem(&gofeed.Item{
		Title:       "T",
		Link:        "https://example.com/a?utm_source=feed",
		Description: "<p>Short description here.</p>",
	}, "Skift", testNow)
	if a.Summary != "Short description here." {
		t.Errorf("unexpected summary %q", a.Summary)
	}
	if a.URL != "https://example.com/a" {
		t.Errorf("expected normalized URL, got %q", a.URL)
	}
	if a.Publisher != "Skift" {
		t.Errorf("expected publisher Skift, got %q", a.Publisher)
	}
}
