package fetch

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"github.com/TobiSchelling/IntelDigest/internal/database"
)

const maxSummaryRunes = 200

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+`)

// NormalizeItem converts a feed item into an Article credited to publisher.
// Items without a title or link are rejected.
func NormalizeItem(item *gofeed.Item, publisher string, now time.Time) (database.Article, bool) {
	link := itemLink(item)
	title := strings.TrimSpace(item.Title)
	if link == "" || title == "" {
		return database.Article{}, false
	}

	return database.Article{
		URL:         NormalizeURL(link),
		Title:       title,
		Publisher:   publisher,
		PublishedAt: publishedDate(item, now),
		Summary:     ExtractSummary(itemContent(item), title),
	}, true
}

func itemLink(item *gofeed.Item) string {
	link := strings.TrimSpace(item.Link)
	if link == "" && strings.HasPrefix(item.GUID, "http") {
		link = strings.TrimSpace(item.GUID)
	}
	return link
}

func itemContent(item *gofeed.Item) string {
	if strings.TrimSpace(item.Content) != "" {
		return item.Content
	}
	return item.Description
}

// publishedDate prefers the parsed publish date, then a lenient parse of the
// raw string, then the updated date, then today.
func publishedDate(item *gofeed.Item, now time.Time) string {
	if item.PublishedParsed != nil {
		return database.DateOf(*item.PublishedParsed)
	}
	if item.Published != "" {
		if t, err := dateparse.ParseAny(item.Published); err == nil {
			return database.DateOf(t)
		}
	}
	if item.UpdatedParsed != nil {
		return database.DateOf(*item.UpdatedParsed)
	}
	return database.DateOf(now)
}

// NormalizeURL removes tracking parameters (utm_*, ref, source) and the
// fragment. Other parameters keep their order. URLs that cannot be parsed as
// absolute are returned unchanged.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}

	if u.RawQuery != "" {
		var kept []string
		for _, pair := range strings.Split(u.RawQuery, "&") {
			if pair == "" {
				continue
			}
			key, _, _ := strings.Cut(pair, "=")
			if k, err := url.QueryUnescape(key); err == nil {
				key = k
			}
			if isTrackingParam(key) {
				continue
			}
			kept = append(kept, pair)
		}
		u.RawQuery = strings.Join(kept, "&")
	}
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

func isTrackingParam(key string) bool {
	return strings.HasPrefix(key, "utm_") || key == "ref" || key == "source"
}

// ExtractSummary strips markup from content and keeps its first two
// sentences. Content without sentence terminators is cut to 200 characters;
// empty content yields the title.
func ExtractSummary(content, title string) string {
	text := StripHTML(content)
	if text == "" {
		return title
	}

	sentences := sentenceRe.FindAllString(text, 2)
	if len(sentences) == 0 {
		return truncateRunes(text, maxSummaryRunes)
	}
	for i, s := range sentences {
		sentences[i] = strings.TrimSpace(s)
	}
	return strings.Join(sentences, " ")
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "tr": true, "td": true, "th": true, "section": true,
	"article": true, "figure": true, "figcaption": true, "pre": true, "hr": true,
}

// StripHTML returns the visible text of an HTML fragment with whitespace
// collapsed to single spaces.
func StripHTML(raw string) string {
	if !strings.ContainsAny(raw, "<&") {
		return collapseSpace(raw)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return collapseSpace(raw)
	}
	doc.Find("script, style, noscript").Remove()

	var b strings.Builder
	for _, n := range doc.Nodes {
		writeText(&b, n)
	}
	return collapseSpace(b.String())
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if blockElements[n.Data] {
			b.WriteByte(' ')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if n.Type == html.ElementNode && blockElements[n.Data] {
		b.WriteByte(' ')
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
