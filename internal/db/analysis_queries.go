package db

import (
	"context"
	"fmt"
	"strings"

	"dalal.st/pulse/internal/news"
)

// ReplaceEntities replaces every stored entity for one article with the
// freshly extracted set. Categories keep the fixed canonical order so reads
// reproduce extraction order.
func (p *Pool) ReplaceEntities(ctx context.Context, articleID string, set news.EntitySet) error {
	id := strings.TrimSpace(articleID)
	if id == "" {
		return fmt.Errorf("article id is required")
	}

	tx, err := p.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const deleteQ = `
DELETE FROM news.entities
WHERE article_id = $1
`
	if _, err := tx.Exec(ctx, deleteQ, id); err != nil {
		return fmt.Errorf("delete article entities: %w", err)
	}

	const insertQ = `
INSERT INTO news.entities (
	article_id,
	category,
	name,
	confidence,
	created_at
)
VALUES ($1, $2, $3, $4, now())
`
	for _, category := range set.Categories() {
		for _, entity := range category.Entities {
			if _, err := tx.Exec(ctx, insertQ, id, category.Name, entity.Name, entity.Confidence); err != nil {
				return fmt.Errorf("insert %s entity: %w", category.Name, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ReplaceImpacts replaces every stored stock impact for one article with the
// freshly mapped list.
func (p *Pool) ReplaceImpacts(ctx context.Context, articleID string, impacts []news.StockImpact) error {
	id := strings.TrimSpace(articleID)
	if id == "" {
		return fmt.Errorf("article id is required")
	}

	tx, err := p.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const deleteQ = `
DELETE FROM news.stock_impacts
WHERE article_id = $1
`
	if _, err := tx.Exec(ctx, deleteQ, id); err != nil {
		return fmt.Errorf("delete article impacts: %w", err)
	}

	const insertQ = `
INSERT INTO news.stock_impacts (
	article_id,
	symbol,
	confidence,
	impact_type,
	reasoning,
	created_at
)
VALUES ($1, $2, $3, $4, $5, now())
`
	for _, impact := range impacts {
		if _, err := tx.Exec(ctx, insertQ, id, impact.Symbol, impact.Confidence, impact.ImpactType, impact.Reasoning); err != nil {
			return fmt.Errorf("insert impact %s: %w", impact.Symbol, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// EntitiesForArticle returns the stored entity set for one article, grouped
// back into categories in insertion order.
func (p *Pool) EntitiesForArticle(ctx context.Context, articleID string) (news.EntitySet, error) {
	id := strings.TrimSpace(articleID)
	if id == "" {
		return news.EntitySet{}, fmt.Errorf("article id is required")
	}

	const q = `
SELECT
	e.category,
	e.name,
	e.confidence
FROM news.entities e
WHERE e.article_id = $1
ORDER BY e.id ASC
`

	rows, err := p.Query(ctx, q, id)
	if err != nil {
		return news.EntitySet{}, fmt.Errorf("query article entities: %w", err)
	}
	defer rows.Close()

	var set news.EntitySet
	for rows.Next() {
		var (
			category string
			entity   news.Entity
		)
		if err := rows.Scan(&category, &entity.Name, &entity.Confidence); err != nil {
			return news.EntitySet{}, fmt.Errorf("scan entity row: %w", err)
		}
		appendEntity(&set, category, entity)
	}
	if err := rows.Err(); err != nil {
		return news.EntitySet{}, fmt.Errorf("iterate entity rows: %w", err)
	}

	return set, nil
}

// ImpactsForArticle returns the stored impacts for one article in insertion
// order.
func (p *Pool) ImpactsForArticle(ctx context.Context, articleID string) ([]news.StockImpact, error) {
	id := strings.TrimSpace(articleID)
	if id == "" {
		return nil, fmt.Errorf("article id is required")
	}

	const q = `
SELECT
	si.symbol,
	si.confidence,
	si.impact_type,
	si.reasoning
FROM news.stock_impacts si
WHERE si.article_id = $1
ORDER BY si.id ASC
`

	rows, err := p.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("query article impacts: %w", err)
	}
	defer rows.Close()

	return scanStockImpacts(rows)
}

// ImpactIndex returns every stored impact for processed, non-duplicate
// articles, keyed by external article id. The query engine uses it as its
// persisted retrieval index.
func (p *Pool) ImpactIndex(ctx context.Context) (map[string][]news.StockImpact, error) {
	const q = `
SELECT
	si.article_id,
	si.symbol,
	si.confidence,
	si.impact_type,
	si.reasoning
FROM news.stock_impacts si
JOIN news.articles a
	ON a.article_id = si.article_id
WHERE a.status = 'processed'
  AND a.is_duplicate = FALSE
ORDER BY si.article_id ASC, si.id ASC
`

	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query impact index: %w", err)
	}
	defer rows.Close()

	index := make(map[string][]news.StockImpact)
	for rows.Next() {
		var (
			articleID string
			impact    news.StockImpact
		)
		if err := rows.Scan(&articleID, &impact.Symbol, &impact.Confidence, &impact.ImpactType, &impact.Reasoning); err != nil {
			return nil, fmt.Errorf("scan impact index row: %w", err)
		}
		index[articleID] = append(index[articleID], impact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate impact index rows: %w", err)
	}

	return index, nil
}

// ListEntitiesGrouped returns every stored entity grouped by category. Rows
// are not deduplicated across articles; the same name keeps one row per
// article that mentioned it.
func (p *Pool) ListEntitiesGrouped(ctx context.Context) (map[string][]news.Entity, error) {
	const q = `
SELECT
	e.category,
	e.name,
	e.confidence
FROM news.entities e
ORDER BY e.category ASC, e.id ASC
`

	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query entities grouped: %w", err)
	}
	defer rows.Close()

	grouped := make(map[string][]news.Entity)
	for rows.Next() {
		var (
			category string
			entity   news.Entity
		)
		if err := rows.Scan(&category, &entity.Name, &entity.Confidence); err != nil {
			return nil, fmt.Errorf("scan grouped entity row: %w", err)
		}
		grouped[category] = append(grouped[category], entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grouped entity rows: %w", err)
	}

	return grouped, nil
}

func appendEntity(set *news.EntitySet, category string, entity news.Entity) {
	switch category {
	case "companies":
		set.Companies = append(set.Companies, entity)
	case "sectors":
		set.Sectors = append(set.Sectors, entity)
	case "regulators":
		set.Regulators = append(set.Regulators, entity)
	case "people":
		set.People = append(set.People, entity)
	case "events":
		set.Events = append(set.Events, entity)
	}
}

func scanStockImpacts(rows *Rows) ([]news.StockImpact, error) {
	impacts := make([]news.StockImpact, 0, 8)
	for rows.Next() {
		var impact news.StockImpact
		if err := rows.Scan(&impact.Symbol, &impact.Confidence, &impact.ImpactType, &impact.Reasoning); err != nil {
			return nil, fmt.Errorf("scan impact row: %w", err)
		}
		impacts = append(impacts, impact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate impact rows: %w", err)
	}
	return impacts, nil
}
