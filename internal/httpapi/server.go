package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"dalal.st/pulse/internal/db"
	"dalal.st/pulse/internal/dedup"
	"dalal.st/pulse/internal/globaltime"
	"dalal.st/pulse/internal/ingest"
	"dalal.st/pulse/internal/news"
	"dalal.st/pulse/internal/query"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	maxDemoGroups    = 5
)

// Store is the read side of the API: everything the handlers fetch from
// storage. *db.Pool implements it.
type Store interface {
	Ping(ctx context.Context) error
	ListAnalyzedArticles(ctx context.Context) ([]news.Article, error)
	GetArticleByExternalID(ctx context.Context, articleID string) (*db.ArticleRecord, error)
	EntitiesForArticle(ctx context.Context, articleID string) (news.EntitySet, error)
	ImpactsForArticle(ctx context.Context, articleID string) ([]news.StockImpact, error)
	ImpactIndex(ctx context.Context) (map[string][]news.StockImpact, error)
	ListEntitiesGrouped(ctx context.Context) (map[string][]news.Entity, error)
	ArticlesBySymbol(ctx context.Context, symbol string, limit int) ([]db.StockNewsItem, error)
	ListStories(ctx context.Context, limit int) ([]db.StoryRecord, error)
	GetStoryByKey(ctx context.Context, storyKey string) (*db.StoryDetail, error)
	QueryPipelineStats(ctx context.Context) (*db.PipelineStats, error)
}

// KeyStore is the API-key side of storage, split out so auth tests stub it
// independently of content reads.
type KeyStore interface {
	CountAPIKeys(ctx context.Context) (int64, error)
	ListAPIKeys(ctx context.Context) ([]db.APIKeyRecord, error)
	TouchAPIKey(ctx context.Context, id int64, usedAt time.Time) error
}

// Ingestor queues submitted articles for the next pipeline pass.
type Ingestor interface {
	IngestSubmitted(ctx context.Context, articles []news.Article) (int, error)
}

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// RequireAPIKey forces the ingest guard even while no keys exist.
	RequireAPIKey bool
	// CORSAllowedOrigins defaults to allowing any origin.
	CORSAllowedOrigins []string
}

type Server struct {
	store    Store
	keys     KeyStore
	ingestor Ingestor
	queries  *query.Engine
	deduper  *dedup.Engine
	logger   zerolog.Logger
	opts     Options

	// keyCache remembers verified plaintext keys so bcrypt runs once per
	// key, not once per request.
	keyCache sync.Map
}

func NewServer(store Store, keys KeyStore, ingestor Ingestor, queries *query.Engine, deduper *dedup.Engine, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8090
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	origins := opts.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return &Server{
		store:    store,
		keys:     keys,
		ingestor: ingestor,
		queries:  queries,
		deduper:  deduper,
		logger:   logger,
		opts: Options{
			Host:               host,
			Port:               port,
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			ShutdownTimeout:    shutdownTimeout,
			RequireAPIKey:      opts.RequireAPIKey,
			CORSAllowedOrigins: origins,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit("2M"))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.opts.CORSAllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", apiKeyHeader},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	e.GET("/", s.handleRoot)
	e.GET("/healthz", s.handleHealth)
	e.POST("/ingest", s.handleIngest, s.requireAPIKey())
	e.GET("/query", s.handleQuery)
	e.GET("/news/:id", s.handleNewsDetail)
	e.GET("/entities", s.handleEntities)
	e.GET("/stocks/:symbol/news", s.handleStockNews)
	e.GET("/stories", s.handleStories)
	e.GET("/stories/:key", s.handleStoryDetail)
	e.GET("/stats", s.handleStats)
	e.GET("/deduplication-demo", s.handleDedupDemo)

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("pulse api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("pulse api server stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleRoot(c echo.Context) error {
	return success(c, map[string]any{
		"message": "Financial News Intelligence System API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"ingest":   "POST /ingest - Ingest new news articles",
			"query":    "GET /query?q=<query> - Query news with natural language",
			"news":     "GET /news/:id - Get one article with entities and impacts",
			"entities": "GET /entities - Get extracted entities grouped by category",
			"stocks":   "GET /stocks/:symbol/news - Get news for a specific stock",
			"stories":  "GET /stories - Get consolidated stories",
			"stats":    "GET /stats - Get pipeline statistics",
			"dedup":    "GET /deduplication-demo - Duplicate detection over the sample set",
		},
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.store.Ping(c.Request().Context()); err != nil {
		s.logger.Error().Err(err).Msg("health ping failed")
		return fail(c, http.StatusServiceUnavailable, "Database unreachable", nil)
	}
	return success(c, map[string]any{
		"service": "pulse",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleQuery(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return failValidation(c, map[string]string{"q": "is required"})
	}

	ctx := c.Request().Context()
	articles, err := s.store.ListAnalyzedArticles(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("query article load failed")
		return internalError(c, "Failed to load articles")
	}
	impacts, err := s.store.ImpactIndex(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("query impact index load failed")
		return internalError(c, "Failed to load stock impacts")
	}

	result := s.queries.Process(ctx, q, articles, impacts)
	return success(c, result)
}

// articleEntity is the flattened entity row on the article detail response.
type articleEntity struct {
	Type       string  `json:"type"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

type articleDetail struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Content      string             `json:"content"`
	Source       string             `json:"source,omitempty"`
	PublishedAt  *time.Time         `json:"published_at,omitempty"`
	URL          *string            `json:"url,omitempty"`
	Language     string             `json:"language,omitempty"`
	Status       string             `json:"status"`
	IsDuplicate  bool               `json:"is_duplicate"`
	DuplicateOf  *string            `json:"duplicate_of,omitempty"`
	StoryKey     *string            `json:"story_key,omitempty"`
	Entities     []articleEntity    `json:"entities"`
	StockImpacts []news.StockImpact `json:"stock_impacts"`
}

func (s *Server) handleNewsDetail(c echo.Context) error {
	articleID := strings.TrimSpace(c.Param("id"))
	if articleID == "" {
		return failValidation(c, map[string]string{"id": "is required"})
	}

	ctx := c.Request().Context()
	record, err := s.store.GetArticleByExternalID(ctx, articleID)
	if err != nil {
		if db.IsNoRows(err) {
			return failNotFound(c, "Article not found")
		}
		s.logger.Error().Err(err).Str("article_id", articleID).Msg("article lookup failed")
		return internalError(c, "Failed to load article")
	}

	entities, err := s.store.EntitiesForArticle(ctx, articleID)
	if err != nil {
		s.logger.Error().Err(err).Str("article_id", articleID).Msg("article entities load failed")
		return internalError(c, "Failed to load entities")
	}
	impacts, err := s.store.ImpactsForArticle(ctx, articleID)
	if err != nil {
		s.logger.Error().Err(err).Str("article_id", articleID).Msg("article impacts load failed")
		return internalError(c, "Failed to load stock impacts")
	}

	return success(c, buildArticleDetail(record, entities, impacts))
}

func buildArticleDetail(record *db.ArticleRecord, entities news.EntitySet, impacts []news.StockImpact) articleDetail {
	if record == nil {
		return articleDetail{Entities: []articleEntity{}, StockImpacts: []news.StockImpact{}}
	}
	if impacts == nil {
		impacts = []news.StockImpact{}
	}
	return articleDetail{
		ID:           record.ArticleID,
		Title:        record.Title,
		Content:      record.Content,
		Source:       record.Source,
		PublishedAt:  record.PublishedAt,
		URL:          record.URL,
		Language:     record.Language,
		Status:       record.Status,
		IsDuplicate:  record.IsDuplicate,
		DuplicateOf:  record.DuplicateOfArticleID,
		StoryKey:     record.StoryKey,
		Entities:     flattenEntities(entities),
		StockImpacts: impacts,
	}
}

func flattenEntities(set news.EntitySet) []articleEntity {
	flat := make([]articleEntity, 0, set.Count())
	for _, category := range set.Categories() {
		for _, entity := range category.Entities {
			flat = append(flat, articleEntity{
				Type:       category.Name,
				Name:       entity.Name,
				Confidence: entity.Confidence,
			})
		}
	}
	return flat
}

func (s *Server) handleEntities(c echo.Context) error {
	grouped, err := s.store.ListEntitiesGrouped(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("entity listing failed")
		return internalError(c, "Failed to load entities")
	}
	return success(c, grouped)
}

// stockImpactBrief is the impact row nested under a stock-news article; the
// symbol is the path parameter and is not repeated per row.
type stockImpactBrief struct {
	Confidence float64 `json:"confidence"`
	ImpactType string  `json:"impact_type"`
	Reasoning  string  `json:"reasoning"`
}

type stockNewsArticle struct {
	news.Article
	Impact stockImpactBrief `json:"impact"`
}

type stockNewsResponse struct {
	Symbol   string             `json:"symbol"`
	Articles []stockNewsArticle `json:"articles"`
	Count    int                `json:"count"`
}

func (s *Server) handleStockNews(c echo.Context) error {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		return failValidation(c, map[string]string{"symbol": "is required"})
	}
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultListLimit, 1, maxListLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	items, err := s.store.ArticlesBySymbol(c.Request().Context(), symbol, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("stock news load failed")
		return internalError(c, "Failed to load stock news")
	}

	articles := make([]stockNewsArticle, 0, len(items))
	for _, item := range items {
		articles = append(articles, stockNewsArticle{
			Article: item.Article,
			Impact: stockImpactBrief{
				Confidence: item.Impact.Confidence,
				ImpactType: item.Impact.ImpactType,
				Reasoning:  item.Impact.Reasoning,
			},
		})
	}

	return success(c, stockNewsResponse{
		Symbol:   symbol,
		Articles: articles,
		Count:    len(articles),
	})
}

func (s *Server) handleStories(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultListLimit, 1, maxListLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	stories, err := s.store.ListStories(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("story listing failed")
		return internalError(c, "Failed to load stories")
	}

	return success(c, map[string]any{
		"stories": stories,
		"count":   len(stories),
	})
}

func (s *Server) handleStoryDetail(c echo.Context) error {
	storyKey := strings.TrimSpace(c.Param("key"))
	if storyKey == "" {
		return failValidation(c, map[string]string{"key": "is required"})
	}

	detail, err := s.store.GetStoryByKey(c.Request().Context(), storyKey)
	if err != nil {
		if db.IsNoRows(err) {
			return failNotFound(c, "Story not found")
		}
		s.logger.Error().Err(err).Str("story_key", storyKey).Msg("story lookup failed")
		return internalError(c, "Failed to load story")
	}

	return success(c, detail)
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.store.QueryPipelineStats(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("stats load failed")
		return internalError(c, "Failed to load stats")
	}
	return success(c, stats)
}

type demoGroup struct {
	UniqueStoryID     string         `json:"unique_story_id"`
	DuplicateIDs      []string       `json:"duplicate_ids"`
	ConsolidatedTitle string         `json:"consolidated_title"`
	Articles          []news.Article `json:"articles"`
}

type demoExample struct {
	Articles    []news.Article `json:"articles"`
	Explanation string         `json:"explanation"`
}

type dedupDemoResponse struct {
	TotalArticles      int         `json:"total_articles"`
	UniqueStories      int         `json:"unique_stories"`
	DuplicateGroups    int         `json:"duplicate_groups"`
	RateHikeExample    demoExample `json:"rbi_rate_hike_example"`
	AllDuplicateGroups []demoGroup `json:"all_duplicate_groups"`
}

// rateHikeExampleIDs are the embedded sample articles that paraphrase the
// same RBI rate decision; the demo endpoint calls them out by id.
var rateHikeExampleIDs = []string{"N2", "N5", "N6", "N9"}

// handleDedupDemo runs duplicate grouping over the embedded sample set so
// the behavior is inspectable without any stored data.
func (s *Server) handleDedupDemo(c echo.Context) error {
	articles, err := ingest.SampleArticles()
	if err != nil {
		s.logger.Error().Err(err).Msg("sample article load failed")
		return internalError(c, "Failed to load sample articles")
	}

	stories, groups := s.deduper.Deduplicate(c.Request().Context(), articles)

	byID := make(map[string]news.Article, len(articles))
	for _, article := range articles {
		byID[article.ID] = article
	}
	storyByRep := make(map[string]news.Story, len(stories))
	for _, story := range stories {
		if len(story.ArticleIDs) > 0 {
			storyByRep[story.ArticleIDs[0]] = story
		}
	}

	demoGroups := make([]demoGroup, 0, len(groups))
	for _, group := range groups {
		if len(group.ArticleIDs) < 2 {
			continue
		}
		story := storyByRep[group.RepresentativeID]
		members := make([]news.Article, 0, len(group.ArticleIDs))
		for _, id := range group.ArticleIDs {
			if article, ok := byID[id]; ok {
				members = append(members, article)
			}
		}
		demoGroups = append(demoGroups, demoGroup{
			UniqueStoryID:     story.StoryID,
			DuplicateIDs:      group.ArticleIDs,
			ConsolidatedTitle: story.ConsolidatedTitle,
			Articles:          members,
		})
	}

	exampleArticles := make([]news.Article, 0, len(rateHikeExampleIDs))
	for _, id := range rateHikeExampleIDs {
		if article, ok := byID[id]; ok {
			exampleArticles = append(exampleArticles, article)
		}
	}

	shown := demoGroups
	if len(shown) > maxDemoGroups {
		shown = shown[:maxDemoGroups]
	}

	return success(c, dedupDemoResponse{
		TotalArticles:   len(articles),
		UniqueStories:   len(stories),
		DuplicateGroups: len(demoGroups),
		RateHikeExample: demoExample{
			Articles:    exampleArticles,
			Explanation: "These 4 articles (N2, N5, N6, N9) all describe the same RBI rate hike event with different wording. They are identified as duplicates using semantic similarity.",
		},
		AllDuplicateGroups: shown,
	})
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}
