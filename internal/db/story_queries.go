package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dalal.st/pulse/internal/news"
)

// StoryRecord is the stored consolidated-story read model. The JSON field
// names follow the public API surface, where the story key is the story id.
type StoryRecord struct {
	StoryKey            string     `json:"story_id"`
	ConsolidatedTitle   string     `json:"consolidated_title"`
	ConsolidatedContent string     `json:"consolidated_content"`
	ArticleIDs          []string   `json:"article_ids"`
	Sources             []string   `json:"sources,omitempty"`
	PublishedAt         *time.Time `json:"published_at,omitempty"`
	URL                 string     `json:"url,omitempty"`
	ArticleCount        int        `json:"article_count"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// StoryDetail is one story plus the stored member article rows.
type StoryDetail struct {
	Story    StoryRecord     `json:"story"`
	Articles []ArticleRecord `json:"articles"`
}

// ReplaceStory upserts one consolidated story by its story key. Reprocessing
// a batch replaces the consolidated fields and the membership lists.
func (p *Pool) ReplaceStory(ctx context.Context, story news.Story, now time.Time) error {
	key := strings.TrimSpace(story.StoryID)
	if key == "" {
		return fmt.Errorf("story key is required")
	}

	articleIDs, err := encodeStringList(story.ArticleIDs)
	if err != nil {
		return fmt.Errorf("encode story article ids: %w", err)
	}
	sources, err := encodeStringList(story.Sources)
	if err != nil {
		return fmt.Errorf("encode story sources: %w", err)
	}

	const q = `
INSERT INTO news.stories (
	story_key,
	consolidated_title,
	consolidated_content,
	article_ids,
	sources,
	published_at,
	url,
	created_at,
	updated_at
)
VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6, $7, $8, $8)
ON CONFLICT (story_key)
DO UPDATE SET
	consolidated_title = EXCLUDED.consolidated_title,
	consolidated_content = EXCLUDED.consolidated_content,
	article_ids = EXCLUDED.article_ids,
	sources = EXCLUDED.sources,
	published_at = EXCLUDED.published_at,
	url = EXCLUDED.url,
	updated_at = EXCLUDED.updated_at
`

	if _, err := p.Exec(ctx, q,
		key,
		story.ConsolidatedTitle,
		story.ConsolidatedContent,
		articleIDs,
		sources,
		utcOrNil(story.PublishedAt),
		nullableString(story.URL),
		now.UTC(),
	); err != nil {
		return fmt.Errorf("upsert story: %w", err)
	}
	return nil
}

// ListStories lists consolidated stories, newest first.
func (p *Pool) ListStories(ctx context.Context, limit int) ([]StoryRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	s.story_key,
	s.consolidated_title,
	s.consolidated_content,
	s.article_ids,
	s.sources,
	s.published_at,
	s.url,
	s.created_at,
	s.updated_at
FROM news.stories s
ORDER BY s.created_at DESC, s.id DESC
LIMIT $1
`

	rows, err := p.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query stories: %w", err)
	}
	defer rows.Close()

	items := make([]StoryRecord, 0, limit)
	for rows.Next() {
		row, err := scanStoryRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate story rows: %w", err)
	}

	return items, nil
}

// GetStoryByKey returns one story and its member articles, or ErrNoRows.
func (p *Pool) GetStoryByKey(ctx context.Context, storyKey string) (*StoryDetail, error) {
	key := strings.TrimSpace(storyKey)
	if key == "" {
		return nil, fmt.Errorf("story key is required")
	}

	const storyQuery = `
SELECT
	s.story_key,
	s.consolidated_title,
	s.consolidated_content,
	s.article_ids,
	s.sources,
	s.published_at,
	s.url,
	s.created_at,
	s.updated_at
FROM news.stories s
WHERE s.story_key = $1
LIMIT 1
`

	var (
		header     StoryRecord
		articleIDs []byte
		sources    []byte
		url        *string
	)
	if err := p.QueryRow(ctx, storyQuery, key).Scan(
		&header.StoryKey,
		&header.ConsolidatedTitle,
		&header.ConsolidatedContent,
		&articleIDs,
		&sources,
		&header.PublishedAt,
		&url,
		&header.CreatedAt,
		&header.UpdatedAt,
	); err != nil {
		if IsNoRows(err) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query story by key: %w", err)
	}
	if err := decodeStringList(articleIDs, &header.ArticleIDs); err != nil {
		return nil, fmt.Errorf("decode story article ids: %w", err)
	}
	if err := decodeStringList(sources, &header.Sources); err != nil {
		return nil, fmt.Errorf("decode story sources: %w", err)
	}
	if url != nil {
		header.URL = *url
	}
	header.ArticleCount = len(header.ArticleIDs)

	const membersQuery = `
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
WHERE a.story_key = $1
ORDER BY a.created_at ASC, a.id ASC
`

	memberRows, err := p.Query(ctx, membersQuery, key)
	if err != nil {
		return nil, fmt.Errorf("query story members: %w", err)
	}
	defer memberRows.Close()

	members := make([]ArticleRecord, 0, header.ArticleCount)
	for memberRows.Next() {
		var member ArticleRecord
		if err := memberRows.Scan(
			&member.ArticleID,
			&member.Title,
			&member.Content,
			&member.Source,
			&member.PublishedAt,
			&member.URL,
			&member.Language,
			&member.Status,
			&member.IsDuplicate,
			&member.DuplicateOfArticleID,
			&member.SimilarityScore,
			&member.StoryKey,
			&member.CreatedAt,
			&member.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("scan story member: %w", err)
		}
		members = append(members, member)
	}
	if err := memberRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate story members: %w", err)
	}

	return &StoryDetail{
		Story:    header,
		Articles: members,
	}, nil
}

func scanStoryRecord(rows *Rows) (StoryRecord, error) {
	var (
		row        StoryRecord
		articleIDs []byte
		sources    []byte
		url        *string
	)
	if err := rows.Scan(
		&row.StoryKey,
		&row.ConsolidatedTitle,
		&row.ConsolidatedContent,
		&articleIDs,
		&sources,
		&row.PublishedAt,
		&url,
		&row.CreatedAt,
		&row.UpdatedAt,
	); err != nil {
		return StoryRecord{}, fmt.Errorf("scan story row: %w", err)
	}

	if err := decodeStringList(articleIDs, &row.ArticleIDs); err != nil {
		return StoryRecord{}, fmt.Errorf("decode story article ids: %w", err)
	}
	if err := decodeStringList(sources, &row.Sources); err != nil {
		return StoryRecord{}, fmt.Errorf("decode story sources: %w", err)
	}
	if url != nil {
		row.URL = *url
	}
	row.ArticleCount = len(row.ArticleIDs)
	return row, nil
}

func encodeStringList(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}

func decodeStringList(raw []byte, dest *[]string) error {
	if len(raw) == 0 {
		*dest = nil
		return nil
	}
	return json.Unmarshal(raw, dest)
}
