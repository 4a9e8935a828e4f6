package db

import (
	"context"
	"fmt"
	"time"

	"dalal.st/pulse/internal/news"
)

// ArticleCounts stores per-status article counters.
type ArticleCounts struct {
	Total      int64 `json:"total"`
	Pending    int64 `json:"pending"`
	Processed  int64 `json:"processed"`
	Duplicates int64 `json:"duplicates"`
}

// PipelineStats is the read model returned by the stats command and
// endpoint: volume counters plus the impact summary by type and confidence
// band.
type PipelineStats struct {
	Articles  ArticleCounts      `json:"articles"`
	Stories   int64              `json:"stories"`
	Entities  int64              `json:"entities"`
	Impacts   news.ImpactSummary `json:"impacts"`
	LastRunAt *time.Time         `json:"last_run_at,omitempty"`
}

// QueryPipelineStats aggregates stored volumes and the impact breakdown.
// Confidence bands use the mapper's inclusive floors: high at 0.8, medium at
// 0.5.
func (p *Pool) QueryPipelineStats(ctx context.Context) (*PipelineStats, error) {
	stats := &PipelineStats{}

	const countsQuery = `
SELECT
	(SELECT COUNT(*) FROM news.articles) AS articles_total,
	(SELECT COUNT(*) FROM news.articles a WHERE a.status = 'pending') AS articles_pending,
	(SELECT COUNT(*) FROM news.articles a WHERE a.status = 'processed') AS articles_processed,
	(SELECT COUNT(*) FROM news.articles a WHERE a.is_duplicate) AS articles_duplicates,
	(SELECT COUNT(*) FROM news.stories) AS stories,
	(SELECT COUNT(*) FROM news.entities) AS entities,
	(SELECT MAX(r.finished_at) FROM news.pipeline_runs r WHERE r.status = 'succeeded') AS last_run_at
`

	if err := p.QueryRow(ctx, countsQuery).Scan(
		&stats.Articles.Total,
		&stats.Articles.Pending,
		&stats.Articles.Processed,
		&stats.Articles.Duplicates,
		&stats.Stories,
		&stats.Entities,
		&stats.LastRunAt,
	); err != nil {
		return nil, fmt.Errorf("query stats counts: %w", err)
	}

	const impactsQuery = `
SELECT
	COUNT(*) AS total,
	COUNT(*) FILTER (WHERE si.impact_type = 'direct') AS direct,
	COUNT(*) FILTER (WHERE si.impact_type = 'sector') AS sector,
	COUNT(*) FILTER (WHERE si.impact_type = 'regulatory') AS regulatory,
	COUNT(*) FILTER (WHERE si.confidence >= 0.8) AS high,
	COUNT(*) FILTER (WHERE si.confidence >= 0.5 AND si.confidence < 0.8) AS medium,
	COUNT(*) FILTER (WHERE si.confidence < 0.5) AS low
FROM news.stock_impacts si
`

	if err := p.QueryRow(ctx, impactsQuery).Scan(
		&stats.Impacts.TotalImpacts,
		&stats.Impacts.DirectImpacts,
		&stats.Impacts.SectorImpacts,
		&stats.Impacts.RegulatoryImpacts,
		&stats.Impacts.HighConfidence,
		&stats.Impacts.MediumConfidence,
		&stats.Impacts.LowConfidence,
	); err != nil {
		return nil, fmt.Errorf("query stats impacts: %w", err)
	}

	return stats, nil
}
