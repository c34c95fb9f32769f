// Package pipeline runs one digest cycle: fetch, filter, score, dedupe,
// persist, write and deliver.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/TobiSchelling/IntelDigest/internal/catalog"
	"github.com/TobiSchelling/IntelDigest/internal/config"
	"github.com/TobiSchelling/IntelDigest/internal/database"
	"github.com/TobiSchelling/IntelDigest/internal/dedupe"
	"github.com/TobiSchelling/IntelDigest/internal/deliver"
	"github.com/TobiSchelling/IntelDigest/internal/digest"
	"github.com/TobiSchelling/IntelDigest/internal/fetch"
	"github.com/TobiSchelling/IntelDigest/internal/llm"
	"github.com/TobiSchelling/IntelDigest/internal/score"
)

// Stage names where a run can stop.
const (
	StageDone      = "done"
	StageFetchOnly = "fetch-only"
	StageNoDigest  = "no-relevant-articles"
)

// Fetcher retrieves articles from every source.
type Fetcher interface {
	FetchAll(ctx context.Context, sources []catalog.Source) *fetch.Result
}

// Deps are the collaborators of a Pipeline. Nil fields are built from the
// config.
type Deps struct {
	Fetcher   Fetcher
	Scorer    *score.Scorer
	Generator *digest.Generator
	Deliverer *deliver.Deliverer
	Console   io.Writer
	Now       func() time.Time
	Logger    *slog.Logger
}

// Result holds the counts and outcome of a run.
type Result struct {
	RunID         string
	Period        database.Period
	Stage         string
	Raw           int
	FailedSources int
	Recent        int
	Unique        int
	Relevant      int
	Stored        int
	Selected      int
	DigestID      int64
	DigestSource  string
	Status        database.SentStatus
}

// Pipeline orchestrates a digest run.
type Pipeline struct {
	cfg       *config.Config
	db        *database.DB
	fetcher   Fetcher
	scorer    *score.Scorer
	generator *digest.Generator
	deliverer *deliver.Deliverer
	now       func() time.Time
	logger    *slog.Logger
}

// New creates a new pipeline.
func New(cfg *config.Config, db *database.DB, deps Deps) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		db:        db,
		fetcher:   deps.Fetcher,
		scorer:    deps.Scorer,
		generator: deps.Generator,
		deliverer: deps.Deliverer,
		now:       deps.Now,
		logger:    deps.Logger,
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.fetcher == nil {
		p.fetcher = fetch.New(fetch.Options{
			Timeout:             cfg.FetchTimeout(),
			UserAgent:           cfg.Fetch.UserAgent,
			Concurrency:         cfg.Fetch.Concurrency,
			FetchMissingContent: cfg.Fetch.FetchMissingContent,
			Now:                 p.now,
		})
	}
	if p.scorer == nil {
		p.scorer = score.Default()
	}
	if p.generator == nil {
		p.generator = digest.NewGenerator(llm.CreateProvider(cfg.LLMSettings()), cfg.Summarization.MaxTokens)
	}
	if p.deliverer == nil {
		console := deps.Console
		if console == nil {
			console = os.Stdout
		}
		p.deliverer = deliver.NewDeliverer(newSender(cfg), console)
	}
	return p
}

func newSender(cfg *config.Config) deliver.Sender {
	d := cfg.Delivery
	if d.SMTPHost == "" {
		return nil
	}
	from := d.FromAddress
	if from == "" {
		from = d.SMTPUser
	}
	return deliver.NewSMTPSender(d.SMTPHost, d.SMTPPort, d.SMTPUser, cfg.SMTPPassword(), from)
}

// Run executes one digest cycle. Only store errors are returned; fetch,
// generation and delivery failures degrade the run instead.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	now := p.now()
	period := p.cfg.Period
	r := &Result{RunID: uuid.NewString(), Period: period}
	log := p.logger.With("run", r.RunID)
	log.Info("run started", "period", period, "at", now.UTC().Format(time.RFC3339))

	sources := p.cfg.Catalog()
	for _, src := range sources {
		if _, err := p.db.InsertSource(src.Record()); err != nil {
			return r, fmt.Errorf("registering source %s: %w", src.Name, err)
		}
	}
	log.Info("sources registered", "count", len(sources))

	fetched := p.fetcher.FetchAll(ctx, sources)
	r.Raw = len(fetched.Articles)
	r.FailedSources = len(fetched.Failures)
	log.Info("fetched", "articles", r.Raw, "failed_sources", r.FailedSources)

	recent := fetch.FilterByDate(fetched.Articles, p.cfg.MaxAgeDays, now)
	r.Recent = len(recent)
	log.Info("filtered by date", "articles", r.Recent, "max_age_days", p.cfg.MaxAgeDays)

	scored := p.scorer.ScoreAndSort(recent, now)
	unique := dedupe.Dedupe(scored)
	r.Unique = len(unique)
	log.Info("deduplicated", "articles", r.Unique)

	relevant := make([]database.Article, 0, len(unique))
	for _, a := range unique {
		if a.RelevanceScore >= p.cfg.MinRelevanceScore {
			relevant = append(relevant, a)
		}
	}
	r.Relevant = len(relevant)
	log.Info("above relevance threshold", "articles", r.Relevant, "threshold", p.cfg.MinRelevanceScore)

	ids, err := p.persist(relevant, r)
	if err != nil {
		return r, err
	}
	log.Info("stored", "new_articles", r.Stored)

	if p.cfg.FetchOnly {
		r.Stage = StageFetchOnly
		log.Info("fetch-only mode, skipping digest")
		return r, nil
	}

	top := relevant
	if n := p.cfg.MaxArticles(); len(top) > n {
		top = top[:n]
	}
	r.Selected = len(top)
	if len(top) == 0 {
		r.Stage = StageNoDigest
		log.Info("no relevant articles, skipping digest")
		return r, nil
	}

	log.Info("generating digest", "articles", len(top))
	gen := p.generator.Generate(ctx, top, period)
	r.DigestSource = gen.Source

	date := database.DateOf(now)
	html, err := digest.FormatForEmail(gen.Markdown, period, date)
	if err != nil {
		log.Warn("email formatting failed, sending plain text only", "err", err)
		html = ""
	}

	digestID, err := p.db.InsertDigest(database.Digest{
		RunAt:           database.RunAtOf(now),
		Period:          period,
		ContentMarkdown: gen.Markdown,
		ContentText:     gen.Text,
	})
	if err != nil {
		return r, fmt.Errorf("storing digest: %w", err)
	}
	r.DigestID = digestID

	for _, a := range top {
		id, ok := ids[a.URL]
		if !ok {
			continue
		}
		if err := p.db.LinkArticleToDigest(digestID, id); err != nil {
			return r, fmt.Errorf("linking article %d to digest %d: %w", id, digestID, err)
		}
	}
	log.Info("digest saved", "digest_id", digestID, "source", gen.Source)

	payload := deliver.BuildPayload(gen.Text, html, period, p.cfg.Delivery.Recipients, date)
	r.Status = p.deliverer.Deliver(ctx, payload)
	if err := p.db.UpdateDigestStatus(digestID, r.Status); err != nil {
		return r, fmt.Errorf("updating digest status: %w", err)
	}

	r.Stage = StageDone
	log.Info("run complete", "digest_id", digestID, "status", r.Status)
	return r, nil
}

// persist stores new articles and returns the row id of every relevant
// article, including ones stored by earlier runs.
func (p *Pipeline) persist(articles []database.Article, r *Result) (map[string]int64, error) {
	ids := make(map[string]int64, len(articles))
	for _, a := range articles {
		id, err := p.db.InsertArticle(a)
		if err != nil {
			return nil, fmt.Errorf("storing article %s: %w", a.URL, err)
		}
		if id > 0 {
			r.Stored++
			ids[a.URL] = id
			continue
		}
		existing, err := p.db.GetArticleByURL(a.URL)
		if err != nil {
			return nil, fmt.Errorf("looking up article %s: %w", a.URL, err)
		}
		if existing != nil {
			ids[a.URL] = existing.ID
		}
	}
	return ids, nil
}
