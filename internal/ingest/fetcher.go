// Package ingest brings articles into the system: RSS feed polling, the
// queue consumer, and the bundled sample dataset. Everything it produces is
// a news.Article; persistence and pipeline processing happen elsewhere.
package ingest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"dalal.st/pulse/internal/langdetect"
	"dalal.st/pulse/internal/news"
)

// Feed is one RSS source to poll.
type Feed struct {
	Name string
	URL  string
}

// DefaultFeeds covers the exchange and regulator feeds plus the market desks
// of the major Indian financial dailies.
var DefaultFeeds = []Feed{
	{Name: "NSE", URL: "https://www.nseindia.com/rss"},
	{Name: "BSE", URL: "https://www.bseindia.com/rss"},
	{Name: "RBI", URL: "https://www.rbi.org.in/rss"},
	{Name: "Moneycontrol", URL: "https://www.moneycontrol.com/rss/marketreports.xml"},
	{Name: "Economic Times", URL: "https://economictimes.indiatimes.com/markets/rssfeeds/1977021501.cms"},
	{Name: "LiveMint", URL: "https://www.livemint.com/rss/markets"},
	{Name: "Business Standard", URL: "https://www.business-standard.com/rss/markets-106.rss"},
}

const (
	defaultPerFeedLimit = 10
	defaultFeedTimeout  = 15 * time.Second
	defaultSeenCapacity = 4096
	defaultSeenTTL      = 24 * time.Hour
)

// ParseFeedSpec parses a comma-separated list of Name=URL pairs, the format
// of the feeds environment override. An empty spec returns nil, meaning the
// default feeds.
func ParseFeedSpec(spec string) ([]Feed, error) {
	trimmed := strings.TrimSpace(spec)
	if trimmed == "" {
		return nil, nil
	}

	parts := strings.Split(trimmed, ",")
	feeds := make([]Feed, 0, len(parts))
	for _, part := range parts {
		pair := strings.TrimSpace(part)
		if pair == "" {
			continue
		}
		name, url, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		url = strings.TrimSpace(url)
		if !ok || name == "" || url == "" {
			return nil, fmt.Errorf("invalid feed entry %q, want Name=URL", pair)
		}
		feeds = append(feeds, Feed{Name: name, URL: url})
	}
	return feeds, nil
}

// Fetcher polls RSS feeds and turns their newest items into articles. It
// keeps a seen-cache across polls, so an item is returned once even when
// consecutive polls overlap.
type Fetcher struct {
	feeds     []Feed
	parser    *gofeed.Parser
	client    *http.Client
	seen      *SeenCache
	perFeed   int
	timeout   time.Duration
	fetchBody bool
	logger    zerolog.Logger
}

type FetcherOptions struct {
	Feeds        []Feed
	PerFeedLimit int
	FeedTimeout  time.Duration
	// FetchBody downloads and extracts the linked page when a feed item has
	// no usable summary.
	FetchBody bool
}

func NewFetcher(opts FetcherOptions, logger zerolog.Logger) *Fetcher {
	feeds := opts.Feeds
	if len(feeds) == 0 {
		feeds = DefaultFeeds
	}
	perFeed := opts.PerFeedLimit
	if perFeed <= 0 {
		perFeed = defaultPerFeedLimit
	}
	timeout := opts.FeedTimeout
	if timeout <= 0 {
		timeout = defaultFeedTimeout
	}
	return &Fetcher{
		feeds:     feeds,
		parser:    gofeed.NewParser(),
		client:    &http.Client{Timeout: timeout},
		seen:      NewSeenCache(defaultSeenCapacity, defaultSeenTTL),
		perFeed:   perFeed,
		timeout:   timeout,
		fetchBody: opts.FetchBody,
		logger:    logger,
	}
}

// FetchAll polls every feed concurrently and returns the fresh articles in
// feed declaration order. A failing feed is logged and skipped; the poll
// itself never fails.
func (f *Fetcher) FetchAll(ctx context.Context) []news.Article {
	perFeed := make([][]news.Article, len(f.feeds))

	g, gctx := errgroup.WithContext(ctx)
	for i, feed := range f.feeds {
		g.Go(func() error {
			articles, err := f.fetchFeed(gctx, feed)
			if err != nil {
				f.logger.Warn().Err(err).Str("feed", feed.Name).Msg("feed poll failed; skipping")
				return nil
			}
			perFeed[i] = articles
			return nil
		})
	}
	_ = g.Wait()

	var all []news.Article
	for _, articles := range perFeed {
		all = append(all, articles...)
	}
	return all
}

func (f *Fetcher) fetchFeed(ctx context.Context, feed Feed) ([]news.Article, error) {
	feedCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	parsed, err := f.parser.ParseURLWithContext(feed.URL, feedCtx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feed.Name, err)
	}

	articles := f.buildArticles(feed, parsed)

	if f.fetchBody {
		for i := range articles {
			if articles[i].Content != "" || articles[i].URL == "" {
				continue
			}
			body, err := fetchReadableBody(feedCtx, f.client, articles[i].URL)
			if err != nil {
				f.logger.Debug().Err(err).Str("url", articles[i].URL).Msg("body fetch failed")
				continue
			}
			articles[i].Content = body
		}
	}

	for i := range articles {
		articles[i].Language = langdetect.DetectISO6391(articles[i].CombinedText())
	}

	fresh := f.filterNew(articles)
	f.logger.Debug().
		Str("feed", feed.Name).
		Int("items", len(parsed.Items)).
		Int("fresh", len(fresh)).
		Msg("feed polled")
	return fresh, nil
}

// buildArticles maps the newest feed items to articles. Items without a guid
// or link have no stable identity and are dropped.
func (f *Fetcher) buildArticles(feed Feed, parsed *gofeed.Feed) []news.Article {
	prefix := sourcePrefix(feed.Name)

	items := parsed.Items
	if len(items) > f.perFeed {
		items = items[:f.perFeed]
	}

	articles := make([]news.Article, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		key := item.GUID
		if key == "" {
			key = item.Link
		}
		if key == "" {
			continue
		}

		content := stripHTML(item.Content)
		if content == "" {
			content = stripHTML(item.Description)
		}

		article := news.Article{
			ID:      prefix + "_" + key,
			Title:   strings.TrimSpace(item.Title),
			Content: content,
			Source:  feed.Name,
			URL:     item.Link,
		}
		if item.PublishedParsed != nil {
			published := *item.PublishedParsed
			article.PublishedAt = &published
		}
		articles = append(articles, article)
	}
	return articles
}

// filterNew drops articles an earlier poll already returned and marks the
// rest as seen.
func (f *Fetcher) filterNew(articles []news.Article) []news.Article {
	fresh := make([]news.Article, 0, len(articles))
	for _, article := range articles {
		if f.seen.IsSeen(article.ID) {
			continue
		}
		f.seen.MarkSeen(article.ID)
		fresh = append(fresh, article)
	}
	return fresh
}

func sourcePrefix(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, " ", ""))
}
