package app

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"dalal.st/pulse/internal/config"
	"dalal.st/pulse/internal/db"
	"dalal.st/pulse/internal/dedup"
	"dalal.st/pulse/internal/extract"
	"dalal.st/pulse/internal/impact"
	"dalal.st/pulse/internal/ingest"
	"dalal.st/pulse/internal/nlp"
	"dalal.st/pulse/internal/pipeline"
	"dalal.st/pulse/internal/query"
	"dalal.st/pulse/internal/stockmap"
)

// modelCapabilities returns the embedder and recognizer backed by the
// configured model service. Both come back nil when no service is configured
// and the stages run degraded.
func modelCapabilities(cfg *config.Config, logger zerolog.Logger) (nlp.Embedder, nlp.Recognizer) {
	client := nlp.NewClient(nlp.Options{BaseURL: cfg.ModelServiceURL}, logger)
	if client == nil {
		return nil, nil
	}
	return client, client
}

// loadStockTables builds the entity-to-stock mapping tables, applying the
// configured overlay file on top of the built-ins.
func loadStockTables(cfg *config.Config) (*stockmap.Tables, error) {
	tables := stockmap.New()
	path := strings.TrimSpace(cfg.StockOverlayPath)
	if path == "" {
		return tables, nil
	}
	if err := tables.LoadOverlay(path); err != nil {
		return nil, fmt.Errorf("load stock overlay %s: %w", path, err)
	}
	return tables, nil
}

// buildManager assembles the full analysis pipeline around the pool.
func buildManager(cfg *config.Config, pool *db.Pool, logger zerolog.Logger) (*pipeline.Manager, error) {
	embedder, recognizer := modelCapabilities(cfg, logger)
	tables, err := loadStockTables(cfg)
	if err != nil {
		return nil, err
	}

	service := pipeline.NewService(
		dedup.NewEngine(embedder, cfg.SimilarityThreshold, logger),
		extract.NewExtractor(recognizer, logger),
		impact.NewMapper(tables, logger),
		logger,
	)
	return pipeline.NewManager(pool, service, cfg.BatchSize, logger), nil
}

// buildQueryEngine assembles the retrieval engine used by serve and the
// query command.
func buildQueryEngine(cfg *config.Config, logger zerolog.Logger) (*query.Engine, error) {
	embedder, recognizer := modelCapabilities(cfg, logger)
	tables, err := loadStockTables(cfg)
	if err != nil {
		return nil, err
	}
	return query.NewEngine(extract.NewExtractor(recognizer, logger), embedder, tables, cfg.QueryThreshold, logger), nil
}

// buildFetcher assembles the RSS fetcher from the configured feed list.
func buildFetcher(cfg *config.Config, logger zerolog.Logger) (*ingest.Fetcher, error) {
	feeds := ingest.DefaultFeeds
	if strings.TrimSpace(cfg.Feeds) != "" {
		parsed, err := ingest.ParseFeedSpec(cfg.Feeds)
		if err != nil {
			return nil, fmt.Errorf("parse PULSE_FEEDS: %w", err)
		}
		feeds = parsed
	}
	return ingest.NewFetcher(ingest.FetcherOptions{
		Feeds:     feeds,
		FetchBody: cfg.FetchFullText,
	}, logger), nil
}
