// Package feeds fetches RSS/Atom feeds and turns their items into articles.
package feeds

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"newslens/internal/cache"
	"newslens/internal/config"
	"newslens/internal/core"
	"newslens/internal/logger"

	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
)

const (
	// UnknownSource names articles from feeds without a title.
	UnknownSource = "Unknown Source"

	maxFeedBytes     = 10 << 20
	extractorWorkers = 5
)

// Options controls fetching.
type Options struct {
	UserAgent       string
	Timeout         time.Duration
	MaxItemsPerFeed int
	ExtractFullText bool
	CacheTTL        time.Duration // 0 disables feed body caching
}

// OptionsFromConfig maps the feeds and redis sections of the configuration.
func OptionsFromConfig(cfg config.Feeds, redis config.Redis) Options {
	return Options{
		UserAgent:       cfg.UserAgent,
		Timeout:         config.Duration(cfg.Timeout, 30*time.Second),
		MaxItemsPerFeed: cfg.MaxItemsPerFeed,
		ExtractFullText: cfg.ExtractFullText,
		CacheTTL:        config.Duration(redis.FeedTTL, 0),
	}
}

// Fetcher downloads and parses feeds.
type Fetcher struct {
	client *http.Client
	parser *gofeed.Parser
	cache  cache.Cache
	opts   Options
	now    func() time.Time
	log    *slog.Logger
}

// NewFetcher creates a fetcher. c may be nil.
func NewFetcher(c cache.Cache, opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "newslens/1.0"
	}
	if c == nil {
		c = cache.Noop{}
	}
	return &Fetcher{
		client: &http.Client{Timeout: opts.Timeout},
		parser: gofeed.NewParser(),
		cache:  c,
		opts:   opts,
		now:    time.Now,
		log:    logger.With("component", "feeds"),
	}
}

// FetchFeed returns the articles of one feed. The source name is the feed
// title; summaries are stripped of HTML.
func (f *Fetcher) FetchFeed(ctx context.Context, feedURL string) ([]core.Article, error) {
	body, err := f.body(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	feed, err := f.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", feedURL, err)
	}

	source := strings.TrimSpace(feed.Title)
	if source == "" {
		source = UnknownSource
	}

	fetchedAt := f.now().UTC()
	articles := make([]core.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if f.opts.MaxItemsPerFeed > 0 && len(articles) >= f.opts.MaxItemsPerFeed {
			break
		}
		link := strings.TrimSpace(item.Link)
		if link == "" {
			f.log.Warn("Skipping feed item without link", "feed", feedURL, "title", item.Title)
			continue
		}

		summary := CleanHTML(item.Description)
		if summary == "" {
			summary = CleanHTML(item.Content)
		}

		a := core.Article{
			URL:        link,
			SourceName: source,
			SourceType: core.SourceRSS,
			Title:      CleanHTML(item.Title),
			Summary:    summary,
			FetchedAt:  fetchedAt,
		}
		switch {
		case item.PublishedParsed != nil:
			t := item.PublishedParsed.UTC()
			a.PublicationDate = &t
		case item.UpdatedParsed != nil:
			t := item.UpdatedParsed.UTC()
			a.PublicationDate = &t
		}
		articles = append(articles, a)
	}

	if f.opts.ExtractFullText {
		f.extractAll(articles)
	}
	return articles, nil
}

// body returns the raw feed document, from the cache when possible.
func (f *Fetcher) body(ctx context.Context, feedURL string) ([]byte, error) {
	key := cache.FeedKey(feedURL)
	if f.opts.CacheTTL > 0 {
		if cached, err := f.cache.Get(ctx, key); err != nil {
			f.log.Warn("Feed cache lookup failed", "feed", feedURL, "error", err.Error())
		} else if cached != "" {
			f.log.Debug("Feed served from cache", "feed", feedURL)
			return []byte(cached), nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", feedURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned status %d", feedURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed %s: %w", feedURL, err)
	}

	if f.opts.CacheTTL > 0 {
		if err := f.cache.Set(ctx, key, body, f.opts.CacheTTL); err != nil {
			f.log.Warn("Failed to cache feed", "feed", feedURL, "error", err.Error())
		}
	}
	return body, nil
}

// extractAll fills Content with the readable text of each article page using
// a small worker pool. Failures leave Content empty.
func (f *Fetcher) extractAll(articles []core.Article) {
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < extractorWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				page, err := readability.FromURL(articles[i].URL, f.opts.Timeout)
				if err != nil {
					f.log.Debug("Full-text extraction failed", "url", articles[i].URL, "error", err.Error())
					continue
				}
				articles[i].Content = strings.TrimSpace(page.TextContent)
			}
		}()
	}
	for i := range articles {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

// FeedResult reports one feed of a FetchAll run.
type FeedResult struct {
	URL      string `json:"url"`
	Articles int    `json:"articles"`
	Error    string `json:"error,omitempty"`
}

// FetchAll fetches feeds one after another. A failing feed is reported and
// skipped.
func (f *Fetcher) FetchAll(ctx context.Context, feedURLs []string) ([]core.Article, []FeedResult) {
	var all []core.Article
	results := make([]FeedResult, 0, len(feedURLs))
	for _, u := range feedURLs {
		if ctx.Err() != nil {
			results = append(results, FeedResult{URL: u, Error: ctx.Err().Error()})
			continue
		}
		f.log.Info("Fetching articles", "feed", u)
		articles, err := f.FetchFeed(ctx, u)
		if err != nil {
			f.log.Error("Failed to fetch or parse feed", "feed", u, "error", err.Error())
			results = append(results, FeedResult{URL: u, Error: err.Error()})
			continue
		}
		f.log.Info("Fetched articles", "feed", u, "count", len(articles))
		results = append(results, FeedResult{URL: u, Articles: len(articles)})
		all = append(all, articles...)
	}
	return all, results
}

// Saver persists fetched articles. persistence.ArticleStore satisfies it.
type Saver interface {
	UpsertArticles(ctx context.Context, articles []core.Article) (core.UpsertResult, error)
}

// IngestReport summarizes a fetch-and-save run.
type IngestReport struct {
	Fetched int               `json:"fetched_count"`
	Saved   core.UpsertResult `json:"saved"`
	Feeds   []FeedResult      `json:"feeds"`
}

// Ingest fetches every feed and upserts the articles by URL.
func (f *Fetcher) Ingest(ctx context.Context, store Saver, feedURLs []string) (IngestReport, error) {
	articles, results := f.FetchAll(ctx, feedURLs)
	report := IngestReport{Fetched: len(articles), Feeds: results}
	if len(articles) == 0 {
		f.log.Info("No articles fetched")
		return report, nil
	}

	saved, err := store.UpsertArticles(ctx, articles)
	if err != nil {
		return report, fmt.Errorf("failed to save articles: %w", err)
	}
	report.Saved = saved
	f.log.Info("Saved fetched articles", "inserted", saved.Inserted, "updated", saved.Updated, "failed", saved.Failed)
	return report, nil
}
