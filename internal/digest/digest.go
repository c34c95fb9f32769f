// Package digest writes the periodic digest from the selected articles.
package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/TobiSchelling/IntelDigest/internal/database"
	"github.com/TobiSchelling/IntelDigest/internal/llm"
)

// Source values record which path produced a digest.
const (
	SourceLLM        = "llm"
	SourceExtractive = "extractive"
)

const defaultMaxTokens = 2048

const digestPrompt = `You are writing the %s intelligence digest for a small product team building an AI trip-planning app for women who travel solo.

Below are the %d most relevant articles from the last period, ranked by relevance. Write a markdown digest that:
- opens with a one-paragraph "Why it matters" summary of the period,
- then has one "## " section per article, in the given order, titled with a markdown link to the article,
- gives two or three sentences per article on what happened and what it means for the product,
- stays factual and avoids marketing language.

Articles:
%s

Respond with ONLY this JSON:
{
    "digest": "The full markdown digest"
}`

// Result is a generated digest.
type Result struct {
	Markdown string
	Text     string
	Source   string
}

// Generator writes digests with a language model and falls back to an
// extractive digest when the model is unavailable or fails.
type Generator struct {
	provider  llm.Provider
	maxTokens int
}

// NewGenerator creates a generator. provider may be nil.
func NewGenerator(provider llm.Provider, maxTokens int) *Generator {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Generator{provider: provider, maxTokens: maxTokens}
}

// Generate returns a digest for articles. It never fails: any model error
// yields the extractive digest.
func (g *Generator) Generate(ctx context.Context, articles []database.Article, period database.Period) Result {
	markdown, err := g.generateWithLLM(ctx, articles, period)
	if err != nil {
		slog.Warn("llm digest failed, using extractive digest", "err", err)
		markdown = Extractive(articles, period)
		return Result{Markdown: markdown, Text: PlainText(markdown), Source: SourceExtractive}
	}
	return Result{Markdown: markdown, Text: PlainText(markdown), Source: SourceLLM}
}

var errNoProvider = errors.New("no llm provider configured")

func (g *Generator) generateWithLLM(ctx context.Context, articles []database.Article, period database.Period) (string, error) {
	if g.provider == nil {
		return "", errNoProvider
	}

	prompt := fmt.Sprintf(digestPrompt, period, len(articles), formatArticles(articles))
	response, err := g.provider.Generate(ctx, prompt, g.maxTokens)
	if err != nil {
		return "", err
	}

	parsed := llm.ParseJSONResponse(response)
	if parsed == nil {
		return "", fmt.Errorf("malformed llm response")
	}
	markdown, _ := parsed["digest"].(string)
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return "", fmt.Errorf("llm response has no digest")
	}
	return markdown, nil
}

func formatArticles(articles []database.Article) string {
	parts := make([]string, 0, len(articles))
	for i, a := range articles {
		parts = append(parts, fmt.Sprintf("[%d] %s\n  Publisher: %s\n  Published: %s\n  URL: %s\n  Relevance: %.2f\n  Summary: %s",
			i+1, a.Title, a.Publisher, a.PublishedAt, a.URL, a.RelevanceScore, a.Summary))
	}
	return strings.Join(parts, "\n\n")
}

// Title returns the display title of a digest for period.
func Title(period database.Period) string {
	if period == database.PeriodWeekly {
		return "Weekly Travel & AI Digest"
	}
	return "Daily Travel & AI Digest"
}

// Extractive builds a digest from the articles' own titles and summaries.
// It depends only on its arguments.
func Extractive(articles []database.Article, period database.Period) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", Title(period))
	if len(articles) == 1 {
		b.WriteString("The most relevant story this period.\n")
	} else {
		fmt.Fprintf(&b, "The %d most relevant stories this period, ranked by relevance.\n", len(articles))
	}

	for i, a := range articles {
		fmt.Fprintf(&b, "\n## %d. [%s](%s)\n\n", i+1, escapeLinkText(a.Title), a.URL)
		fmt.Fprintf(&b, "*%s · %s · relevance %.2f*\n", a.Publisher, database.FormatDateDisplay(a.PublishedAt), a.RelevanceScore)
		if a.Summary != "" && a.Summary != a.Title {
			fmt.Fprintf(&b, "\n%s\n", a.Summary)
		}
	}
	return b.String()
}

var linkTextEscaper = strings.NewReplacer("[", `\[`, "]", `\]`)

func escapeLinkText(s string) string {
	return linkTextEscaper.Replace(s)
}
