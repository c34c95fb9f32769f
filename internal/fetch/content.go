package fetch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

const (
	minContentLength = 100
	maxPageBytes     = 5 << 20
)

// ContentFetcher extracts readable article text from a web page.
type ContentFetcher struct {
	client    *http.Client
	userAgent string
}

// NewContentFetcher creates a content fetcher sharing the feed client.
func NewContentFetcher(client *http.Client, userAgent string) *ContentFetcher {
	return &ContentFetcher{client: client, userAgent: userAgent}
}

// Fetch returns the main text of the page at articleURL, or "" when the page
// has too little extractable text.
func (c *ContentFetcher) Fetch(ctx context.Context, articleURL string) (string, error) {
	parsedURL, err := url.Parse(articleURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) < minContentLength {
		return "", nil
	}
	return text, nil
}
