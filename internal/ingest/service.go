package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"dalal.st/pulse/internal/globaltime"
	"dalal.st/pulse/internal/langdetect"
	"dalal.st/pulse/internal/news"
)

// Service routes every intake path through one persistence sink: API
// submissions, feed polls, file loads, and the embedded sample set.
type Service struct {
	sink     Sink
	fetcher  *Fetcher
	detector func(text string) string
	logger   zerolog.Logger
}

type ServiceOptions struct {
	// Fetcher is required for PollFeeds only.
	Fetcher *Fetcher
	// Detector tags article language; nil uses the lingua detector.
	Detector func(text string) string
}

func NewService(sink Sink, opts ServiceOptions, logger zerolog.Logger) *Service {
	detector := opts.Detector
	if detector == nil {
		detector = langdetect.DetectISO6391
	}
	return &Service{
		sink:     sink,
		fetcher:  opts.Fetcher,
		detector: detector,
		logger:   logger,
	}
}

// IngestSubmitted stores articles handed in over the API. Articles without
// an id get NEW_<timestamp>_<index>; missing publication times default to
// now; language tags are normalized, or detected when absent.
func (s *Service) IngestSubmitted(ctx context.Context, articles []news.Article) (int, error) {
	stamp := globaltime.UTC().Format("20060102150405")
	for i := range articles {
		if strings.TrimSpace(articles[i].ID) == "" {
			articles[i].ID = fmt.Sprintf("NEW_%s_%d", stamp, i)
		}
		if articles[i].PublishedAt == nil {
			now := globaltime.UTC()
			articles[i].PublishedAt = &now
		}
		articles[i].Language = langdetect.NormalizeCode(articles[i].Language)
		if articles[i].Language == "" {
			articles[i].Language = s.detector(articles[i].CombinedText())
		}
	}

	saved, err := s.sink.SaveArticles(ctx, articles)
	if err != nil {
		return 0, fmt.Errorf("save submitted articles: %w", err)
	}
	s.logger.Info().Int("received", len(articles)).Int("saved", saved).Msg("articles ingested")
	return saved, nil
}

// PollFeeds fetches every configured feed once and stores the fresh items.
func (s *Service) PollFeeds(ctx context.Context) (int, error) {
	if s.fetcher == nil {
		return 0, fmt.Errorf("no fetcher configured")
	}

	articles := s.fetcher.FetchAll(ctx)
	saved, err := s.sink.SaveArticles(ctx, articles)
	if err != nil {
		return 0, fmt.Errorf("save polled articles: %w", err)
	}
	s.logger.Info().Int("fetched", len(articles)).Int("saved", saved).Msg("feeds polled")
	return saved, nil
}

// IngestSample stores the embedded sample dataset.
func (s *Service) IngestSample(ctx context.Context) (int, error) {
	articles, err := SampleArticles()
	if err != nil {
		return 0, err
	}

	saved, err := s.sink.SaveArticles(ctx, articles)
	if err != nil {
		return 0, fmt.Errorf("save sample articles: %w", err)
	}
	s.logger.Info().Int("saved", saved).Msg("sample dataset ingested")
	return saved, nil
}

// IngestFile stores articles from a JSON file holding an article array in
// the sample dataset format.
func (s *Service) IngestFile(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read articles file: %w", err)
	}

	var articles []news.Article
	if err := json.Unmarshal(raw, &articles); err != nil {
		return 0, fmt.Errorf("decode articles file: %w", err)
	}

	saved, err := s.sink.SaveArticles(ctx, articles)
	if err != nil {
		return 0, fmt.Errorf("save file articles: %w", err)
	}
	s.logger.Info().Str("path", path).Int("saved", saved).Msg("file ingested")
	return saved, nil
}
