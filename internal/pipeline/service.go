package pipeline

import (
	"context"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"dalal.st/pulse/internal/dedup"
	"dalal.st/pulse/internal/extract"
	"dalal.st/pulse/internal/impact"
	"dalal.st/pulse/internal/news"
)

// Service chains the three processing stages over one batch of articles:
// duplicate grouping, entity extraction, and stock impact mapping. Stages run
// strictly in that order; within the extraction stage the targets fan out
// across workers and results keep the batch order.
type Service struct {
	dedup     *dedup.Engine
	extractor *extract.Extractor
	mapper    *impact.Mapper
	logger    zerolog.Logger
}

func NewService(dedupEngine *dedup.Engine, extractor *extract.Extractor, mapper *impact.Mapper, logger zerolog.Logger) *Service {
	return &Service{
		dedup:     dedupEngine,
		extractor: extractor,
		mapper:    mapper,
		logger:    logger,
	}
}

// Result is the outcome of one batch run. Entities and Impacts are keyed by
// the representative article id of each duplicate group; if the batch yielded
// no stories at all, extraction falls back to the raw articles and the maps
// are keyed by article id instead.
type Result struct {
	Stories  []news.Story
	Groups   []news.DuplicateGroup
	Entities map[string]news.EntitySet
	Impacts  map[string][]news.StockImpact
}

// target is one unit of extraction work: a story representation when
// deduplication produced stories, otherwise a raw article.
type target struct {
	id      string
	title   string
	content string
}

// ProcessBatch runs all stages over the batch and returns everything the run
// produced. It never fails: stage components degrade internally (an
// unavailable embedder means every article becomes its own story, a failed
// recognizer leaves the pattern passes in place).
func (s *Service) ProcessBatch(ctx context.Context, articles []news.Article) Result {
	result := Result{
		Entities: make(map[string]news.EntitySet),
		Impacts:  make(map[string][]news.StockImpact),
	}

	result.Groups = s.dedup.IdentifyDuplicates(ctx, articles)

	var targets []target
	for _, group := range result.Groups {
		story, ok := s.dedup.ConsolidateStory(group.ArticleIDs, articles)
		if !ok {
			continue
		}
		result.Stories = append(result.Stories, story)
		targets = append(targets, target{
			id:      group.RepresentativeID,
			title:   story.ConsolidatedTitle,
			content: story.ConsolidatedContent,
		})
	}
	if len(targets) == 0 {
		for _, a := range articles {
			targets = append(targets, target{id: a.ID, title: a.Title, content: a.Content})
		}
	}

	sets := make([]news.EntitySet, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, t := range targets {
		g.Go(func() error {
			sets[i] = s.extractor.Extract(gctx, t.content, t.title)
			return nil
		})
	}
	// Workers never return errors; extraction degrades instead of failing.
	_ = g.Wait()

	for i, t := range targets {
		result.Entities[t.id] = sets[i]
		result.Impacts[t.id] = s.mapper.MapEntities(sets[i])
	}

	s.logger.Info().
		Int("articles", len(articles)).
		Int("stories", len(result.Stories)).
		Int("extraction_targets", len(targets)).
		Msg("batch processed")
	return result
}
