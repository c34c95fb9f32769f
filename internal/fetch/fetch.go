// Package fetch retrieves the configured feeds and normalizes their items
// into articles.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/IntelDigest/internal/catalog"
	"github.com/TobiSchelling/IntelDigest/internal/database"
)

const (
	DefaultTimeout     = 15 * time.Second
	DefaultUserAgent   = "IntelDigest/1.0 (news aggregator)"
	DefaultConcurrency = 8
)

// Options configures a Fetcher. Zero values select the defaults.
type Options struct {
	Timeout     time.Duration
	UserAgent   string
	Concurrency int
	// FetchMissingContent downloads the article page for items that carry
	// no content or description.
	FetchMissingContent bool
	Client              *http.Client
	Now                 func() time.Time
}

// Result holds the outcome of fetching every source.
type Result struct {
	Articles []database.Article
	Sources  map[string]int
	Failures map[string]error
}

// Fetcher retrieves feeds concurrently.
type Fetcher struct {
	client      *http.Client
	userAgent   string
	timeout     time.Duration
	concurrency int
	content     *ContentFetcher
	now         func() time.Time
}

// New creates a Fetcher.
func New(opts Options) *Fetcher {
	f := &Fetcher{
		client:      opts.Client,
		userAgent:   opts.UserAgent,
		timeout:     opts.Timeout,
		concurrency: opts.Concurrency,
		now:         opts.Now,
	}
	if f.client == nil {
		f.client = &http.Client{}
	}
	if f.userAgent == "" {
		f.userAgent = DefaultUserAgent
	}
	if f.timeout <= 0 {
		f.timeout = DefaultTimeout
	}
	if f.concurrency <= 0 {
		f.concurrency = DefaultConcurrency
	}
	if f.now == nil {
		f.now = time.Now
	}
	if opts.FetchMissingContent {
		f.content = NewContentFetcher(f.client, f.userAgent)
	}
	return f
}

// FetchAll fetches every source concurrently. A failing source is logged and
// contributes nothing; it never affects the others.
func (f *Fetcher) FetchAll(ctx context.Context, sources []catalog.Source) *Result {
	perSource := make([][]database.Article, len(sources))
	errs := make([]error, len(sources))

	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, src := range sources {
		g.Go(func() error {
			articles, err := f.FetchSource(ctx, src)
			if err != nil {
				slog.Warn("feed fetch failed", "source", src.Name, "url", src.URL, "err", err)
				errs[i] = err
				return nil
			}
			slog.Debug("feed fetched", "source", src.Name, "articles", len(articles))
			perSource[i] = articles
			return nil
		})
	}
	_ = g.Wait()

	r := &Result{Sources: make(map[string]int), Failures: make(map[string]error)}
	for i, src := range sources {
		if errs[i] != nil {
			r.Failures[src.Name] = errs[i]
			continue
		}
		r.Articles = append(r.Articles, perSource[i]...)
		r.Sources[src.Name] += len(perSource[i])
	}
	return r
}

// FetchSource fetches and normalizes one feed within the per-source timeout.
func (f *Fetcher) FetchSource(ctx context.Context, src catalog.Source) ([]database.Article, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	feed, err := f.fetchFeed(ctx, src.URL)
	if err != nil {
		return nil, err
	}

	now := f.now()
	articles := make([]database.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		a, ok := NormalizeItem(item, src.Name, now)
		if !ok {
			continue
		}
		if f.content != nil && StripHTML(itemContent(item)) == "" {
			text, err := f.content.Fetch(ctx, itemLink(item))
			if err != nil {
				slog.Debug("content fetch failed", "url", a.URL, "err", err)
			} else if text != "" {
				a.Summary = ExtractSummary(text, a.Title)
			}
		}
		articles = append(articles, a)
	}
	return articles, nil
}

func (f *Fetcher) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &httpError{code: resp.StatusCode}
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}
	return feed, nil
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP %d %s", e.code, http.StatusText(e.code))
}
