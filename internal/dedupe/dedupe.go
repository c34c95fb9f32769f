// Package dedupe collapses near-duplicate articles.
//
// Two articles are duplicates when their URLs have the same shape (host
// without "www.", path without trailing slash, query ignored) or when their
// title token sets have a Jaccard similarity of at least Threshold.
package dedupe

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/TobiSchelling/IntelDigest/internal/database"
)

// Threshold is the title similarity at or above which two articles are
// considered the same story.
const Threshold = 0.8

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "on": true, "for": true, "with": true, "at": true,
	"by": true, "from": true, "is": true, "are": true,
}

type fingerprint struct {
	urlKey string
	tokens map[string]struct{}
}

// Dedupe returns articles with later near-duplicates removed. Input is
// expected in descending score order, so the kept article of each group is the
// highest scored one.
func Dedupe(articles []database.Article) []database.Article {
	kept := make([]database.Article, 0, len(articles))
	var prints []fingerprint
	seenURL := make(map[string]bool)

	for _, a := range articles {
		fp := fingerprint{urlKey: URLKey(a.URL), tokens: TitleTokens(a.Title)}
		if fp.urlKey != "" && seenURL[fp.urlKey] {
			continue
		}
		dup := false
		for _, p := range prints {
			if Similarity(fp.tokens, p.tokens) >= Threshold {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		if fp.urlKey != "" {
			seenURL[fp.urlKey] = true
		}
		prints = append(prints, fp)
		kept = append(kept, a)
	}
	return kept
}

// URLKey reduces a URL to its host and path. Unparseable URLs yield "".
func URLKey(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	return host + strings.TrimRight(u.Path, "/")
}

// TitleTokens splits a title into its lowercase words, minus stop words.
func TitleTokens(title string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make(map[string]struct{}, len(words))
	for _, w := range words {
		if stopWords[w] {
			continue
		}
		tokens[w] = struct{}{}
	}
	return tokens
}

// Similarity is the Jaccard index of two token sets. Empty sets never match.
func Similarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
