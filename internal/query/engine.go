package query

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"dalal.st/pulse/internal/extract"
	"dalal.st/pulse/internal/news"
	"dalal.st/pulse/internal/nlp"
	"dalal.st/pulse/internal/stockmap"
)

// DefaultThreshold is the minimum cosine similarity for thematic retrieval.
const DefaultThreshold = 0.7

// Engine answers free-text queries over an article set. Intent drives the
// retrieval strategy; the thematic fallback needs the embedder and yields
// zero results rather than an error when it is nil or failing.
type Engine struct {
	extractor *extract.Extractor
	embedder  nlp.Embedder
	stocks    *stockmap.Tables
	threshold float64
	logger    zerolog.Logger
}

func NewEngine(extractor *extract.Extractor, embedder nlp.Embedder, stocks *stockmap.Tables, threshold float64, logger zerolog.Logger) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Engine{
		extractor: extractor,
		embedder:  embedder,
		stocks:    stocks,
		threshold: threshold,
		logger:    logger,
	}
}

// Process extracts entities from the query text alone, classifies intent, and
// retrieves matching articles. impactsByArticle is the optional persisted
// impact index; without it company retrieval falls back to text matching
// only. The result list is deduplicated by article id in first-occurrence
// order.
func (e *Engine) Process(ctx context.Context, query string, articles []news.Article, impactsByArticle map[string][]news.StockImpact) news.QueryResult {
	entities := e.extractor.Extract(ctx, query, "")
	intent := classifyIntent(query, entities)

	var relevant []news.Article
	switch intent {
	case news.IntentCompanySpecific:
		relevant = e.companyArticles(entities, articles, impactsByArticle)
	case news.IntentSectorWide:
		relevant = sectorArticles(entities, articles)
	case news.IntentRegulatorSpecific:
		relevant = regulatorArticles(entities, articles)
	default:
		relevant = e.thematicArticles(ctx, query, articles)
	}

	relevant = dedupeByID(relevant)
	return news.QueryResult{
		Query:    query,
		Intent:   intent,
		Entities: entities,
		Articles: relevant,
		Count:    len(relevant),
	}
}

// classifyIntent applies the fixed precedence: company mention, then sector
// (entity match or the literal words "sector"/"industry"), then regulator,
// then thematic keywords, then general. The order is the tie-break for
// queries that satisfy several checks.
func classifyIntent(query string, entities news.EntitySet) news.QueryIntent {
	lower := strings.ToLower(query)

	for _, company := range entities.Companies {
		if strings.Contains(lower, strings.ToLower(company.Name)) {
			return news.IntentCompanySpecific
		}
	}
	for _, sector := range entities.Sectors {
		if strings.Contains(lower, strings.ToLower(sector.Name)) {
			return news.IntentSectorWide
		}
	}
	if strings.Contains(lower, "sector") || strings.Contains(lower, "industry") {
		return news.IntentSectorWide
	}
	for _, regulator := range entities.Regulators {
		if strings.Contains(lower, strings.ToLower(regulator.Name)) {
			return news.IntentRegulatorSpecific
		}
	}
	if strings.Contains(lower, "rate") || strings.Contains(lower, "interest") || strings.Contains(lower, "policy") {
		return news.IntentThematic
	}
	return news.IntentGeneral
}

// targetSymbols is the ticker set implied by the query's company and sector
// entities, used to intersect with the persisted impact index.
func (e *Engine) targetSymbols(entities news.EntitySet) map[string]struct{} {
	symbols := make(map[string]struct{})
	for _, company := range entities.Companies {
		for _, mapping := range e.stocks.MapCompany(company.Name) {
			symbols[mapping.Symbol] = struct{}{}
		}
	}
	for _, sector := range entities.Sectors {
		for _, mapping := range e.stocks.MapSector(sector.Name) {
			symbols[mapping.Symbol] = struct{}{}
		}
	}
	return symbols
}

// companyArticles returns articles that mention a target company in their
// text, plus articles whose indexed impacts intersect the target ticker set.
func (e *Engine) companyArticles(entities news.EntitySet, articles []news.Article, impactsByArticle map[string][]news.StockImpact) []news.Article {
	targets := e.targetSymbols(entities)

	var relevant []news.Article
	for _, article := range articles {
		textLower := strings.ToLower(article.CombinedText())

		matched := false
		for _, company := range entities.Companies {
			if strings.Contains(textLower, strings.ToLower(company.Name)) {
				relevant = append(relevant, article)
				matched = true
				break
			}
		}
		if matched || len(impactsByArticle) == 0 {
			continue
		}
		for _, impact := range impactsByArticle[article.ID] {
			if _, ok := targets[impact.Symbol]; ok {
				relevant = append(relevant, article)
				break
			}
		}
	}
	return relevant
}

func sectorArticles(entities news.EntitySet, articles []news.Article) []news.Article {
	var relevant []news.Article
	for _, article := range articles {
		textLower := strings.ToLower(article.CombinedText())
		for _, sector := range entities.Sectors {
			if strings.Contains(textLower, strings.ToLower(sector.Name)) {
				relevant = append(relevant, article)
				break
			}
		}
	}
	return relevant
}

func regulatorArticles(entities news.EntitySet, articles []news.Article) []news.Article {
	var relevant []news.Article
	for _, article := range articles {
		textUpper := strings.ToUpper(article.CombinedText())
		for _, regulator := range entities.Regulators {
			if strings.Contains(textUpper, strings.ToUpper(regulator.Name)) {
				relevant = append(relevant, article)
				break
			}
		}
	}
	return relevant
}

// thematicArticles embeds the query and every article text in one batch and
// returns articles at or above the similarity threshold, most similar first.
func (e *Engine) thematicArticles(ctx context.Context, query string, articles []news.Article) []news.Article {
	if e.embedder == nil {
		e.logger.Warn().Msg("embedder unavailable; thematic query returns no results")
		return nil
	}
	if len(articles) == 0 {
		return nil
	}

	texts := make([]string, 0, len(articles)+1)
	texts = append(texts, query)
	for _, article := range articles {
		texts = append(texts, article.CombinedText())
	}
	vectors, err := e.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		e.logger.Warn().Err(err).Msg("query embedding failed; thematic query returns no results")
		return nil
	}
	if len(vectors) != len(texts) {
		e.logger.Warn().
			Int("want", len(texts)).
			Int("got", len(vectors)).
			Msg("embedding count mismatch; thematic query returns no results")
		return nil
	}

	type scored struct {
		article    news.Article
		similarity float64
	}
	matches := make([]scored, 0, len(articles))
	for i, article := range articles {
		similarity := nlp.Cosine(vectors[0], vectors[i+1])
		if similarity >= e.threshold {
			matches = append(matches, scored{article: article, similarity: similarity})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].similarity > matches[j].similarity
	})

	relevant := make([]news.Article, len(matches))
	for i, match := range matches {
		relevant[i] = match.article
	}
	return relevant
}

func dedupeByID(articles []news.Article) []news.Article {
	if len(articles) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(articles))
	unique := make([]news.Article, 0, len(articles))
	for _, article := range articles {
		if _, ok := seen[article.ID]; ok {
			continue
		}
		seen[article.ID] = struct{}{}
		unique = append(unique, article)
	}
	return unique
}
