package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dalal.st/pulse/internal/news"
)

// ArticleRecord is the full stored-article read model, dedup verdict
// included. The JSON field names follow the public API surface.
type ArticleRecord struct {
	ArticleID            string     `json:"id"`
	Title                string     `json:"title"`
	Content              string     `json:"content"`
	Source               string     `json:"source,omitempty"`
	PublishedAt          *time.Time `json:"published_at,omitempty"`
	URL                  *string    `json:"url,omitempty"`
	Language             string     `json:"language,omitempty"`
	Status               string     `json:"status"`
	IsDuplicate          bool       `json:"is_duplicate"`
	DuplicateOfArticleID *string    `json:"duplicate_of,omitempty"`
	SimilarityScore      *float64   `json:"similarity_score,omitempty"`
	StoryKey             *string    `json:"story_key,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	ProcessedAt          *time.Time `json:"processed_at,omitempty"`
}

// ArticleListOptions controls article listing queries. Empty Status or
// Source means no filter.
type ArticleListOptions struct {
	Status string
	Source string
	Limit  int
}

// StockNewsItem is one non-duplicate article matched to a symbol together
// with the stored impact row that matched it.
type StockNewsItem struct {
	Article news.Article     `json:"article"`
	Impact  news.StockImpact `json:"impact"`
}

// SaveArticles inserts articles as pending work, skipping rows whose
// external id is already stored. It returns the number of rows actually
// inserted.
func (p *Pool) SaveArticles(ctx context.Context, articles []news.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	const q = `
INSERT INTO news.articles (
	article_id,
	title,
	content,
	source,
	published_at,
	url,
	language,
	status,
	created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', now())
ON CONFLICT (article_id) DO NOTHING
`

	tx, err := p.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	inserted := 0
	for _, article := range articles {
		id := strings.TrimSpace(article.ID)
		if id == "" {
			continue
		}
		tag, err := tx.Exec(ctx, q,
			id,
			article.Title,
			article.Content,
			article.Source,
			utcOrNil(article.PublishedAt),
			nullableString(article.URL),
			article.Language,
		)
		if err != nil {
			return 0, fmt.Errorf("insert article %s: %w", id, err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return inserted, nil
}

// ListPendingArticles returns up to limit unprocessed articles in insertion
// order.
func (p *Pool) ListPendingArticles(ctx context.Context, limit int) ([]news.Article, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	a.article_id,
	a.title,
	a.content,
	a.source,
	a.published_at,
	a.url,
	a.language
FROM news.articles a
WHERE a.status = 'pending'
ORDER BY a.created_at ASC, a.id ASC
LIMIT $1
`

	rows, err := p.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending articles: %w", err)
	}
	defer rows.Close()

	return scanNewsArticles(rows, limit)
}

// ListAnalyzedArticles returns processed, non-duplicate articles for query
// retrieval, newest first. Non-English articles are stored but never served
// to the query engine.
func (p *Pool) ListAnalyzedArticles(ctx context.Context) ([]news.Article, error) {
	const q = `
SELECT
	a.article_id,
	a.title,
	a.content,
	a.source,
	a.published_at,
	a.url,
	a.language
FROM news.articles a
WHERE a.status = 'processed'
  AND a.is_duplicate = FALSE
  AND a.language IN ('', 'en')
ORDER BY a.published_at DESC NULLS LAST, a.id DESC
`

	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query analyzed articles: %w", err)
	}
	defer rows.Close()

	return scanNewsArticles(rows, 64)
}

// GetArticleByExternalID returns one stored article or ErrNoRows.
func (p *Pool) GetArticleByExternalID(ctx context.Context, articleID string) (*ArticleRecord, error) {
	id := strings.TrimSpace(articleID)
	if id == "" {
		return nil, fmt.Errorf("article id is required")
	}

	const q = `
SELECT
	a.article_id,
	a.title,
	a.content,
	a.source,
	a.published_at,
	a.url,
	a.language,
	a.status,
	a.is_duplicate,
	a.duplicate_of_article_id,
	a.similarity_score,
	a.story_key,
	a.created_at,
	a.processed_at
FROM news.articles a
WHERE a.article_id = $1
LIMIT 1
`

	var row ArticleRecord
	if err := p.QueryRow(ctx, q, id).Scan(
		&row.ArticleID,
		&row.Title,
		&row.Content,
		&row.Source,
		&row.PublishedAt,
		&row.URL,
		&row.Language,
		&row.Status,
		&row.IsDuplicate,
		&row.DuplicateOfArticleID,
		&row.SimilarityScore,
		&row.StoryKey,
		&row.CreatedAt,
		&row.ProcessedAt,
	); err != nil {
		if IsNoRows(err) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query article by external id: %w", err)
	}
	return &row, nil
}

// ListArticles lists stored articles newest first.
func (p *Pool) ListArticles(ctx context.Context, opts ArticleListOptions) ([]ArticleRecord, error) {
	if opts.Limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	a.article_id,
	a.title,
	a.content,
	a.source,
	a.published_at,
	a.url,
	a.language,
	a.status,
	a.is_duplicate,
	a.duplicate_of_article_id,
	a.similarity_score,
	a.story_key,
	a.created_at,
	a.processed_at
FROM news.articles a
WHERE ($1 = '' OR a.status = $1)
  AND ($2 = '' OR a.source = $2)
ORDER BY a.created_at DESC, a.id DESC
LIMIT $3
`

	rows, err := p.Query(ctx, q, strings.TrimSpace(opts.Status), strings.TrimSpace(opts.Source), opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	items := make([]ArticleRecord, 0, opts.Limit)
	for rows.Next() {
		var row ArticleRecord
		if err := rows.Scan(
			&row.ArticleID,
			&row.Title,
			&row.Content,
			&row.Source,
			&row.PublishedAt,
			&row.URL,
			&row.Language,
			&row.Status,
			&row.IsDuplicate,
			&row.DuplicateOfArticleID,
			&row.SimilarityScore,
			&row.StoryKey,
			&row.CreatedAt,
			&row.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("scan article row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate article rows: %w", err)
	}

	return items, nil
}

// ArticlesBySymbol lists non-duplicate articles carrying a stored impact for
// the symbol, newest first, each with its impact row.
func (p *Pool) ArticlesBySymbol(ctx context.Context, symbol string, limit int) ([]StockNewsItem, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if normalized == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	const q = `
SELECT
	a.article_id,
	a.title,
	a.content,
	a.source,
	a.published_at,
	a.url,
	a.language,
	si.symbol,
	si.confidence,
	si.impact_type,
	si.reasoning
FROM news.stock_impacts si
JOIN news.articles a
	ON a.article_id = si.article_id
WHERE si.symbol = $1
  AND a.is_duplicate = FALSE
ORDER BY a.published_at DESC NULLS LAST, a.id DESC
LIMIT $2
`

	rows, err := p.Query(ctx, q, normalized, limit)
	if err != nil {
		return nil, fmt.Errorf("query articles by symbol: %w", err)
	}
	defer rows.Close()

	items := make([]StockNewsItem, 0, limit)
	for rows.Next() {
		var (
			row StockNewsItem
			url *string
		)
		if err := rows.Scan(
			&row.Article.ID,
			&row.Article.Title,
			&row.Article.Content,
			&row.Article.Source,
			&row.Article.PublishedAt,
			&url,
			&row.Article.Language,
			&row.Impact.Symbol,
			&row.Impact.Confidence,
			&row.Impact.ImpactType,
			&row.Impact.Reasoning,
		); err != nil {
			return nil, fmt.Errorf("scan stock news row: %w", err)
		}
		if url != nil {
			row.Article.URL = *url
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock news rows: %w", err)
	}

	return items, nil
}

// MarkArticleProcessed marks one article as analyzed and records the story
// it represents or belongs to. An empty storyKey clears the column.
func (p *Pool) MarkArticleProcessed(ctx context.Context, articleID, storyKey string, processedAt time.Time) error {
	const q = `
UPDATE news.articles
SET
	status = 'processed',
	is_duplicate = FALSE,
	duplicate_of_article_id = NULL,
	similarity_score = NULL,
	story_key = $2,
	processed_at = $3
WHERE article_id = $1
`

	tag, err := p.Exec(ctx, q, strings.TrimSpace(articleID), nullableString(storyKey), processedAt.UTC())
	if err != nil {
		return fmt.Errorf("mark article processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

// MarkArticleDuplicate marks one article as a duplicate of another,
// recording the representative's external id and the story both joined.
func (p *Pool) MarkArticleDuplicate(ctx context.Context, articleID, duplicateOf, storyKey string, similarity *float64, processedAt time.Time) error {
	const q = `
UPDATE news.articles
SET
	status = 'processed',
	is_duplicate = TRUE,
	duplicate_of_article_id = $2,
	similarity_score = $3,
	story_key = $4,
	processed_at = $5
WHERE article_id = $1
`

	tag, err := p.Exec(ctx, q,
		strings.TrimSpace(articleID),
		strings.TrimSpace(duplicateOf),
		similarity,
		nullableString(storyKey),
		processedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("mark article duplicate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

func scanNewsArticles(rows *Rows, capacity int) ([]news.Article, error) {
	if capacity < 0 {
		capacity = 0
	}

	items := make([]news.Article, 0, capacity)
	for rows.Next() {
		var (
			row news.Article
			url *string
		)
		if err := rows.Scan(
			&row.ID,
			&row.Title,
			&row.Content,
			&row.Source,
			&row.PublishedAt,
			&url,
			&row.Language,
		); err != nil {
			return nil, fmt.Errorf("scan article row: %w", err)
		}
		if url != nil {
			row.URL = *url
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate article rows: %w", err)
	}
	return items, nil
}

func nullableString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func utcOrNil(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
