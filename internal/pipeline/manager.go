package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dalal.st/pulse/internal/db"
	"dalal.st/pulse/internal/globaltime"
	"dalal.st/pulse/internal/news"
)

const (
	// DefaultInterval is how often a scheduled manager claims pending work.
	DefaultInterval = time.Hour
	// DefaultBatchSize caps how many pending articles one pass claims.
	DefaultBatchSize = 100
)

// Run triggers recorded on news.pipeline_runs.
const (
	TriggerInterval = "interval"
	TriggerManual   = "manual"
)

// Store is the persistence surface an analysis pass drives. *db.Pool
// implements it.
type Store interface {
	ListPendingArticles(ctx context.Context, limit int) ([]news.Article, error)
	ReplaceStory(ctx context.Context, story news.Story, now time.Time) error
	ReplaceEntities(ctx context.Context, articleID string, set news.EntitySet) error
	ReplaceImpacts(ctx context.Context, articleID string, impacts []news.StockImpact) error
	MarkArticleProcessed(ctx context.Context, articleID, storyKey string, processedAt time.Time) error
	MarkArticleDuplicate(ctx context.Context, articleID, duplicateOf, storyKey string, similarity *float64, processedAt time.Time) error
	StartPipelineRun(ctx context.Context, runUUID, triggeredBy string, startedAt time.Time) error
	FinishPipelineRun(ctx context.Context, runUUID, status string, counts db.PipelineRunCounts, errorMessage string, finishedAt time.Time) error
}

// RunReport summarizes one analysis pass. A zero report with an empty
// RunUUID means the pass found no pending work.
type RunReport struct {
	RunUUID           string `json:"run_uuid,omitempty"`
	ArticlesClaimed   int    `json:"articles_claimed"`
	ArticlesProcessed int    `json:"articles_processed"`
	Skipped           int    `json:"skipped"`
	StoriesCreated    int    `json:"stories_created"`
	DuplicatesFound   int    `json:"duplicates_found"`
	EntitiesExtracted int    `json:"entities_extracted"`
	ImpactsMapped     int    `json:"impacts_mapped"`
}

// Manager claims pending articles in batches, runs them through the
// processing stages, and persists what each pass produced: consolidated
// stories, duplicate verdicts, extracted entities, stock impacts, and a
// bookkeeping row per run.
type Manager struct {
	store     Store
	service   *Service
	batchSize int
	logger    zerolog.Logger
}

func NewManager(store Store, service *Service, batchSize int, logger zerolog.Logger) *Manager {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Manager{
		store:     store,
		service:   service,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run executes analysis passes on a fixed interval until the context is
// cancelled. The first pass starts immediately.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	if m == nil || m.store == nil || m.service == nil {
		return fmt.Errorf("pipeline manager is not initialized")
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	m.logger.Info().
		Dur("interval", interval).
		Int("batch_size", m.batchSize).
		Msg("pipeline manager started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		report, err := m.RunOnce(ctx, TriggerInterval)
		switch {
		case err != nil && !errors.Is(err, context.Canceled):
			m.logger.Error().Err(err).Str("run_uuid", report.RunUUID).Msg("analysis pass failed")
		case err == nil && report.ArticlesClaimed > 0:
			m.logger.Info().
				Str("run_uuid", report.RunUUID).
				Int("articles", report.ArticlesProcessed).
				Int("stories", report.StoriesCreated).
				Int("duplicates", report.DuplicatesFound).
				Msg("analysis pass finished")
		}

		select {
		case <-ctx.Done():
			m.logger.Info().Msg("pipeline manager stopping")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce claims one batch of pending articles and processes it end to end.
// An empty queue is not a run: nothing is recorded and the report comes back
// zero. Once a run row is started, any persistence failure finishes it as
// failed and surfaces the error; work persisted before the failure stays.
func (m *Manager) RunOnce(ctx context.Context, triggeredBy string) (RunReport, error) {
	if m == nil || m.store == nil || m.service == nil {
		return RunReport{}, fmt.Errorf("pipeline manager is not initialized")
	}
	if strings.TrimSpace(triggeredBy) == "" {
		triggeredBy = TriggerManual
	}

	claimed, err := m.store.ListPendingArticles(ctx, m.batchSize)
	if err != nil {
		return RunReport{}, fmt.Errorf("list pending articles: %w", err)
	}
	if len(claimed) == 0 {
		return RunReport{}, nil
	}

	report := RunReport{
		RunUUID:         uuid.NewString(),
		ArticlesClaimed: len(claimed),
	}
	if err := m.store.StartPipelineRun(ctx, report.RunUUID, triggeredBy, globaltime.UTC()); err != nil {
		return report, fmt.Errorf("start pipeline run: %w", err)
	}

	runErr := m.runBatch(ctx, claimed, &report)

	status := db.RunStatusSucceeded
	errorMessage := ""
	if runErr != nil {
		status = db.RunStatusFailed
		errorMessage = runErr.Error()
	}
	counts := db.PipelineRunCounts{
		ArticlesProcessed: report.ArticlesProcessed,
		StoriesCreated:    report.StoriesCreated,
		EntitiesExtracted: report.EntitiesExtracted,
		ImpactsMapped:     report.ImpactsMapped,
	}
	if err := m.store.FinishPipelineRun(ctx, report.RunUUID, status, counts, errorMessage, globaltime.UTC()); err != nil {
		if runErr == nil {
			return report, fmt.Errorf("finish pipeline run: %w", err)
		}
		m.logger.Error().Err(err).Str("run_uuid", report.RunUUID).Msg("finish pipeline run")
	}

	return report, runErr
}

// runBatch analyzes one claimed batch and persists the outcome. Articles the
// stages cannot read are marked processed without analysis so they leave the
// queue; everything else flows through deduplication, extraction, and impact
// mapping, keyed by the representative of each duplicate group.
func (m *Manager) runBatch(ctx context.Context, claimed []news.Article, report *RunReport) error {
	now := globaltime.UTC()

	analyzable := make([]news.Article, 0, len(claimed))
	for _, article := range claimed {
		if analyzableLanguage(article.Language) {
			analyzable = append(analyzable, article)
			continue
		}
		if err := m.store.MarkArticleProcessed(ctx, article.ID, "", now); err != nil {
			return fmt.Errorf("skip article %s: %w", article.ID, err)
		}
		report.ArticlesProcessed++
		report.Skipped++
		m.logger.Debug().
			Str("article_id", article.ID).
			Str("language", article.Language).
			Msg("article stored without analysis")
	}
	if len(analyzable) == 0 {
		return nil
	}

	result := m.service.ProcessBatch(ctx, analyzable)

	for _, story := range result.Stories {
		representative := story.ArticleIDs[0]

		if err := m.store.ReplaceStory(ctx, story, now); err != nil {
			return fmt.Errorf("persist story %s: %w", story.StoryID, err)
		}
		report.StoriesCreated++

		if err := m.persistAnalysis(ctx, representative, result); err != nil {
			return err
		}
		report.EntitiesExtracted += result.Entities[representative].Count()
		report.ImpactsMapped += len(result.Impacts[representative])

		if err := m.store.MarkArticleProcessed(ctx, representative, story.StoryID, now); err != nil {
			return fmt.Errorf("mark representative %s: %w", representative, err)
		}
		report.ArticlesProcessed++

		for _, member := range story.ArticleIDs[1:] {
			if err := m.store.MarkArticleDuplicate(ctx, member, representative, story.StoryID, nil, now); err != nil {
				return fmt.Errorf("mark duplicate %s: %w", member, err)
			}
			report.ArticlesProcessed++
			report.DuplicatesFound++
		}
	}

	// No stories means the stages fell back to per-article output.
	if len(result.Stories) == 0 {
		for _, article := range analyzable {
			if err := m.persistAnalysis(ctx, article.ID, result); err != nil {
				return err
			}
			report.EntitiesExtracted += result.Entities[article.ID].Count()
			report.ImpactsMapped += len(result.Impacts[article.ID])

			if err := m.store.MarkArticleProcessed(ctx, article.ID, "", now); err != nil {
				return fmt.Errorf("mark article %s: %w", article.ID, err)
			}
			report.ArticlesProcessed++
		}
	}

	return nil
}

func (m *Manager) persistAnalysis(ctx context.Context, articleID string, result Result) error {
	if err := m.store.ReplaceEntities(ctx, articleID, result.Entities[articleID]); err != nil {
		return fmt.Errorf("persist entities for %s: %w", articleID, err)
	}
	if err := m.store.ReplaceImpacts(ctx, articleID, result.Impacts[articleID]); err != nil {
		return fmt.Errorf("persist impacts for %s: %w", articleID, err)
	}
	return nil
}

// analyzableLanguage reports whether the extraction stages can read the
// language tag. Untagged text counts: detection gives up on short headlines.
func analyzableLanguage(lang string) bool {
	return lang == "" || lang == "en"
}
