package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"dalal.st/pulse/internal/db"
	"dalal.st/pulse/internal/dedup"
	"dalal.st/pulse/internal/extract"
	"dalal.st/pulse/internal/news"
	"dalal.st/pulse/internal/query"
	"dalal.st/pulse/internal/stockmap"
)

type stockNewsCall struct {
	symbol string
	limit  int
}

type fakeContentStore struct {
	pingErr        error
	analyzed       []news.Article
	analyzedErr    error
	records        map[string]*db.ArticleRecord
	entities       map[string]news.EntitySet
	impacts        map[string][]news.StockImpact
	impactIndex    map[string][]news.StockImpact
	grouped        map[string][]news.Entity
	stockNews      map[string][]db.StockNewsItem
	stockNewsCalls []stockNewsCall
	stories        []db.StoryRecord
	storyLimits    []int
	storyByKey     map[string]*db.StoryDetail
	stats          *db.PipelineStats
	statsErr       error
}

func newFakeContentStore() *fakeContentStore {
	return &fakeContentStore{
		records:     map[string]*db.ArticleRecord{},
		entities:    map[string]news.EntitySet{},
		impacts:     map[string][]news.StockImpact{},
		impactIndex: map[string][]news.StockImpact{},
		grouped:     map[string][]news.Entity{},
		stockNews:   map[string][]db.StockNewsItem{},
		storyByKey:  map[string]*db.StoryDetail{},
	}
}

func (s *fakeContentStore) Ping(_ context.Context) error {
	return s.pingErr
}

func (s *fakeContentStore) ListAnalyzedArticles(_ context.Context) ([]news.Article, error) {
	if s.analyzedErr != nil {
		return nil, s.analyzedErr
	}
	return s.analyzed, nil
}

func (s *fakeContentStore) GetArticleByExternalID(_ context.Context, articleID string) (*db.ArticleRecord, error) {
	row, exists := s.records[articleID]
	if !exists {
		return nil, db.ErrNoRows
	}
	copyRow := *row
	return &copyRow, nil
}

func (s *fakeContentStore) EntitiesForArticle(_ context.Context, articleID string) (news.EntitySet, error) {
	return s.entities[articleID], nil
}

func (s *fakeContentStore) ImpactsForArticle(_ context.Context, articleID string) ([]news.StockImpact, error) {
	return s.impacts[articleID], nil
}

func (s *fakeContentStore) ImpactIndex(_ context.Context) (map[string][]news.StockImpact, error) {
	return s.impactIndex, nil
}

func (s *fakeContentStore) ListEntitiesGrouped(_ context.Context) (map[string][]news.Entity, error) {
	return s.grouped, nil
}

func (s *fakeContentStore) ArticlesBySymbol(_ context.Context, symbol string, limit int) ([]db.StockNewsItem, error) {
	s.stockNewsCalls = append(s.stockNewsCalls, stockNewsCall{symbol: symbol, limit: limit})
	return s.stockNews[symbol], nil
}

func (s *fakeContentStore) ListStories(_ context.Context, limit int) ([]db.StoryRecord, error) {
	s.storyLimits = append(s.storyLimits, limit)
	return s.stories, nil
}

func (s *fakeContentStore) GetStoryByKey(_ context.Context, storyKey string) (*db.StoryDetail, error) {
	detail, exists := s.storyByKey[storyKey]
	if !exists {
		return nil, db.ErrNoRows
	}
	return detail, nil
}

func (s *fakeContentStore) QueryPipelineStats(_ context.Context) (*db.PipelineStats, error) {
	if s.statsErr != nil {
		return nil, s.statsErr
	}
	return s.stats, nil
}

// rateMarkerEmbedder collapses every text mentioning a rate move onto one
// axis and spreads everything else over its own axis, so grouping is exact.
type rateMarkerEmbedder struct{}

func (rateMarkerEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vec := make([]float64, len(texts)+1)
		if strings.Contains(text, "rate") {
			vec[0] = 1
		} else {
			vec[i+1] = 1
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func newTestServer(store *fakeContentStore) *Server {
	extractor := extract.NewExtractor(nil, zerolog.Nop())
	return &Server{
		store:   store,
		queries: query.NewEngine(extractor, nil, stockmap.New(), 0, zerolog.Nop()),
		deduper: dedup.NewEngine(nil, 0, zerolog.Nop()),
		logger:  zerolog.Nop(),
	}
}

func newJSONContext(
	method string,
	path string,
	body string,
) (*echo.Echo, echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e, e.NewContext(req, rec), rec
}

type jsendEnvelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    int             `json:"code"`
}

func decodeJSend(t *testing.T, rec *httptest.ResponseRecorder) jsendEnvelope {
	t.Helper()

	var envelope jsendEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response envelope: %v", err)
	}
	return envelope
}

func TestHandleRoot_DescribesService(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeContentStore())
	_, c, rec := newJSONContext(http.MethodGet, "/", "")

	if err := server.handleRoot(c); err != nil {
		t.Fatalf("handleRoot returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}

	envelope := decodeJSend(t, rec)
	if envelope.Status != "success" {
		t.Fatalf("unexpected envelope status: %q", envelope.Status)
	}

	var data struct {
		Message   string            `json:"message"`
		Version   string            `json:"version"`
		Endpoints map[string]string `json:"endpoints"`
	}
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		t.Fatalf("decode root data: %v", err)
	}
	if data.Message != "Financial News Intelligence System API" {
		t.Fatalf("unexpected message: %q", data.Message)
	}
	if data.Version != "1.0.0" {
		t.Fatalf("unexpected version: %q", data.Version)
	}
	if len(data.Endpoints) == 0 {
		t.Fatalf("expected endpoint listing, got none")
	}
}

func TestHandleHealth_ReportsService(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeContentStore())
	_, c, rec := newJSONContext(http.MethodGet, "/healthz", "")

	if err := server.handleHealth(c); err != nil {
		t.Fatalf("handleHealth returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}

	var data struct {
		Service string `json:"service"`
	}
	if err := json.Unmarshal(decodeJSend(t, rec).Data, &data); err != nil {
		t.Fatalf("decode health data: %v", err)
	}
	if data.Service != "pulse" {
		t.Fatalf("unexpected service name: %q", data.Service)
	}
}

func TestHandleHealth_DatabaseDown(t *testing.T) {
	t.Parallel()

	store := newFakeContentStore()
	store.pingErr = errors.New("connection refused")
	server := newTestServer(store)
	_, c, rec := newJSONContext(http.MethodGet, "/healthz", "")

	if err := server.handleHealth(c); err != nil {
		t.Fatalf("handleHealth returned error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if envelope := decodeJSend(t, rec); envelope.Status != "fail" {
		t.Fatalf("unexpected envelope status: %q", envelope.Status)
	}
}

func TestHandleQuery_RequiresQueryParameter(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeContentStore())
	_, c, rec := newJSONContext(http.MethodGet, "/query", "")

	if err := server.handleQuery(c); err != nil {
		t.Fatalf("handleQuery returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusBadRequest)
	}

	var data struct {
		ValidationErrors map[string]string `json:"validation_errors"`
	}
	if err := json.Unmarshal(decodeJSend(t, rec).Data, &data); err != nil {
		t.Fatalf("decode validation data: %v", err)
	}
	if data.ValidationErrors["q"] == "" {
		t.Fatalf("expected validation error for q, got %v", data.ValidationErrors)
	}
}

func TestHandleQuery_CompanyIntent(t *testing.T) {
	t.Parallel()

	store := newFakeContentStore()
	store.analyzed = []news.Article{
		{ID: "A1", Title: "Infosys wins multi-year cloud deal", Content: "Infosys signed a contract with a European retailer."},
		{ID: "A2", Title: "Monsoon forecast upgraded", Content: "The weather office expects above-normal rainfall."},
	}
	store.impactIndex = map[string][]news.StockImpact{
		"A1": {{Symbol: "INFY", Confidence: 0.9, ImpactType: news.ImpactDirect, Reasoning: "Direct mention of Infosys"}},
	}
	server := newTestServer(store)
	_, c, rec := newJSONContext(http.MethodGet, "/query?q=What%20is%20happening%20with%20Infosys%3F", "")

	if err := server.handleQuery(c); err != nil {
		t.Fatalf("handleQuery returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}

	var result news.QueryResult
	if err := json.Unmarshal(decodeJSend(t, rec).Data, &result); err != nil {
		t.Fatalf("decode query result: %v", err)
	}
	if result.Intent != news.IntentCompanySpecific {
		t.Fatalf("unexpected intent: got %q want %q", result.Intent, news.IntentCompanySpecific)
	}
	if result.Count != 1 || len(result.Articles) != 1 {
		t.Fatalf("unexpected article count: got %d (%d listed)", result.Count, len(result.Articles))
	}
	if result.Articles[0].ID != "A1" {
		t.Fatalf("unexpected article: got %q want A1", result.Articles[0].ID)
	}
	if len(result.Entities.Companies) == 0 {
		t.Fatalf("expected Infosys in extracted companies, got %+v", result.Entities)
	}
}

func TestHandleNewsDetail_NotFound(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeContentStore())
	_, c, rec := newJSONContext(http.MethodGet, "/news/NOPE", "")
	c.SetParamNames("id")
	c.SetParamValues("NOPE")

	if err := server.handleNewsDetail(c); err != nil {
		t.Fatalf("handleNewsDetail returned error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusNotFound)
	}
	if envelope := decodeJSend(t, rec); envelope.Message != "Article not found" {
		t.Fatalf("unexpected message: %q", envelope.Message)
	}
}

func TestHandleNewsDetail_FlattensEntities(t *testing.T) {
	t.Parallel()

	published := time.Date(2025, 1, 15, 9, 15, 0, 0, time.UTC)
	articleURL := "https://example.com/news/A1"
	storyKey := "STORY_A1"

	store := newFakeContentStore()
	store.records["A1"] = &db.ArticleRecord{
		ArticleID:   "A1",
		Title:       "RBI raises repo rate",
		Content:     "The central bank tightened policy.",
		Source:      "Economic Times",
		PublishedAt: &published,
		URL:         &articleURL,
		Language:    "en",
		Status:      "processed",
		StoryKey:    &storyKey,
	}
	store.entities["A1"] = news.EntitySet{
		Companies:  []news.Entity{{Name: "Infosys", Confidence: 0.9}},
		Regulators: []news.Entity{{Name: "RBI", Confidence: 0.9}},
	}
	store.impacts["A1"] = []news.StockImpact{
		{Symbol: "INFY", Confidence: 0.8, ImpactType: news.ImpactDirect, Reasoning: "Direct mention of Infosys"},
	}
	server := newTestServer(store)
	_, c, rec := newJSONContext(http.MethodGet, "/news/A1", "")
	c.SetParamNames("id")
	c.SetParamValues("A1")

	if err := server.handleNewsDetail(c); err != nil {
		t.Fatalf("handleNewsDetail returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}

	var detail articleDetail
	if err := json.Unmarshal(decodeJSend(t, rec).Data, &detail); err != nil {
		t.Fatalf("decode article detail: %v", err)
	}
	if detail.ID != "A1" || detail.Status != "processed" {
		t.Fatalf("unexpected detail header: %+v", detail)
	}
	if len(detail.Entities) != 2 {
		t.Fatalf("expected 2 flattened entities, got %d", len(detail.Entities))
	}
	if detail.Entities[0].Type != "companies" || detail.Entities[0].Name != "Infosys" {
		t.Fatalf("unexpected first entity: %+v", detail.Entities[0])
	}
	if detail.Entities[1].Type != "regulators" || detail.Entities[1].Name != "RBI" {
		t.Fatalf("unexpected second entity: %+v", detail.Entities[1])
	}
	if len(detail.StockImpacts) != 1 || detail.StockImpacts[0].Symbol != "INFY" {
		t.Fatalf("unexpected stock impacts: %+v", detail.StockImpacts)
	}
}

func TestHandleEntities_ReturnsGroupedMap(t *testing.T) {
	t.Parallel()

	store := newFakeContentStore()
	store.grouped = map[string][]news.Entity{
		"regulators": {{Name: "RBI", Confidence: 0.9}},
		"companies":  {{Name: "Infosys", Confidence: 0.9}, {Name: "TCS", Confidence: 0.9}},
	}
	server := newTestServer(store)
	_, c, rec := newJSONContext(http.MethodGet, "/entities", "")

	if err := server.handleEntities(c); err != nil {
		t.Fatalf("handleEntities returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}

	var grouped map[string][]news.Entity
	if err := json.Unmarshal(decodeJSend(t, rec).Data, &grouped); err != nil {
		t.Fatalf("decode grouped entities: %v", err)
	}
	if len(grouped["companies"]) != 2 || len(grouped["regulators"]) != 1 {
		t.Fatalf("unexpected grouping: %+v", grouped)
	}
}

func TestHandleStockNews_UppercasesSymbol(t *testing.T) {
	t.Parallel()

	store := newFakeContentStore()
	store.stockNews["INFY"] = []db.StockNewsItem{
		{
			Article: news.Article{ID: "A1", Title: "Infosys wins deal", Content: "Infosys signed a contract."},
			Impact:  news.StockImpact{Symbol: "INFY", Confidence: 0.8, ImpactType: news.ImpactDirect, Reasoning: "Direct mention of Infosys"},
		},
	}
	server := newTestServer(store)
	_, c, rec := newJSONContext(http.MethodGet, "/stocks/infy/news", "")
	c.SetParamNames("symbol")
	c.SetParamValues("infy")

	if err := server.handleStockNews(c); err != nil {
		t.Fatalf("handleStockNews returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}
	if len(store.stockNewsCalls) != 1 || store.stockNewsCalls[0].symbol != "INFY" {
		t.Fatalf("unexpected store calls: %+v", store.stockNewsCalls)
	}
	if store.stockNewsCalls[0].limit != defaultListLimit {
		t.Fatalf("unexpected limit: got %d want %d", store.stockNewsCalls[0].limit, defaultListLimit)
	}

	var resp stockNewsResponse
	if err := json.Unmarshal(decodeJSend(t, rec).Data, &resp); err != nil {
		t.Fatalf("decode stock news: %v", err)
	}
	if resp.Symbol != "INFY" || resp.Count != 1 {
		t.Fatalf("unexpected response header: symbol=%q count=%d", resp.Symbol, resp.Count)
	}
	if resp.Articles[0].ID != "A1" || resp.Articles[0].Impact.ImpactType != news.ImpactDirect {
		t.Fatalf("unexpected article row: %+v", resp.Articles[0])
	}
}

func TestHandleStockNews_RejectsBadLimit(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeContentStore())
	_, c, rec := newJSONContext(http.MethodGet, "/stocks/INFY/news?limit=abc", "")
	c.SetParamNames("symbol")
	c.SetParamValues("INFY")

	if err := server.handleStockNews(c); err != nil {
		t.Fatalf("handleStockNews returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleStories_ListsWithDefaultLimit(t *testing.T) {
	t.Parallel()

	store := newFakeContentStore()
	store.stories = []db.StoryRecord{
		{StoryKey: "STORY_N2", ConsolidatedTitle: "RBI raises repo rate", ArticleCount: 4},
	}
	server := newTestServer(store)
	_, c, rec := newJSONContext(http.MethodGet, "/stories", "")

	if err := server.handleStories(c); err != nil {
		t.Fatalf("handleStories returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}
	if len(store.storyLimits) != 1 || store.storyLimits[0] != defaultListLimit {
		t.Fatalf("unexpected story limits: %+v", store.storyLimits)
	}

	var data struct {
		Stories []db.StoryRecord `json:"stories"`
		Count   int              `json:"count"`
	}
	if err := json.Unmarshal(decodeJSend(t, rec).Data, &data); err != nil {
		t.Fatalf("decode story list: %v", err)
	}
	if data.Count != 1 || data.Stories[0].StoryKey != "STORY_N2" {
		t.Fatalf("unexpected story list: %+v", data)
	}
}

func TestHandleStoryDetail_NotFound(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeContentStore())
	_, c, rec := newJSONContext(http.MethodGet, "/stories/STORY_MISSING", "")
	c.SetParamNames("key")
	c.SetParamValues("STORY_MISSING")

	if err := server.handleStoryDetail(c); err != nil {
		t.Fatalf("handleStoryDetail returned error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusNotFound)
	}
	if envelope := decodeJSend(t, rec); envelope.Message != "Story not found" {
		t.Fatalf("unexpected message: %q", envelope.Message)
	}
}

func TestHandleStats_ReturnsAggregates(t *testing.T) {
	t.Parallel()

	store := newFakeContentStore()
	store.stats = &db.PipelineStats{
		Stories:  3,
		Entities: 12,
		Impacts:  news.ImpactSummary{TotalImpacts: 7, DirectImpacts: 4},
	}
	server := newTestServer(store)
	_, c, rec := newJSONContext(http.MethodGet, "/stats", "")

	if err := server.handleStats(c); err != nil {
		t.Fatalf("handleStats returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}

	var stats db.PipelineStats
	if err := json.Unmarshal(decodeJSend(t, rec).Data, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Stories != 3 || stats.Impacts.TotalImpacts != 7 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestHandleDedupDemo_GroupsParaphrases(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeContentStore())
	server.deduper = dedup.NewEngine(rateMarkerEmbedder{}, 0, zerolog.Nop())
	_, c, rec := newJSONContext(http.MethodGet, "/deduplication-demo", "")

	if err := server.handleDedupDemo(c); err != nil {
		t.Fatalf("handleDedupDemo returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}

	var demo dedupDemoResponse
	if err := json.Unmarshal(decodeJSend(t, rec).Data, &demo); err != nil {
		t.Fatalf("decode demo response: %v", err)
	}
	if demo.TotalArticles != 10 {
		t.Fatalf("unexpected total articles: %d", demo.TotalArticles)
	}
	if demo.UniqueStories != 7 {
		t.Fatalf("unexpected unique story count: %d", demo.UniqueStories)
	}
	if demo.DuplicateGroups != 1 || len(demo.AllDuplicateGroups) != 1 {
		t.Fatalf("unexpected duplicate groups: %+v", demo)
	}

	group := demo.AllDuplicateGroups[0]
	if group.UniqueStoryID != "STORY_N2" {
		t.Fatalf("unexpected story id: %q", group.UniqueStoryID)
	}
	wantIDs := []string{"N2", "N5", "N6", "N9"}
	if len(group.DuplicateIDs) != len(wantIDs) {
		t.Fatalf("unexpected duplicate ids: %v", group.DuplicateIDs)
	}
	for i, id := range wantIDs {
		if group.DuplicateIDs[i] != id {
			t.Fatalf("unexpected duplicate ids: got %v want %v", group.DuplicateIDs, wantIDs)
		}
	}
	if len(group.Articles) != 4 || group.ConsolidatedTitle == "" {
		t.Fatalf("unexpected group payload: %+v", group)
	}
	if len(demo.RateHikeExample.Articles) != 4 {
		t.Fatalf("unexpected example article count: %d", len(demo.RateHikeExample.Articles))
	}
}

func TestHandleDedupDemo_DegradesWithoutEmbedder(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeContentStore())
	_, c, rec := newJSONContext(http.MethodGet, "/deduplication-demo", "")

	if err := server.handleDedupDemo(c); err != nil {
		t.Fatalf("handleDedupDemo returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}

	var demo dedupDemoResponse
	if err := json.Unmarshal(decodeJSend(t, rec).Data, &demo); err != nil {
		t.Fatalf("decode demo response: %v", err)
	}
	if demo.UniqueStories != demo.TotalArticles {
		t.Fatalf("expected every article to stand alone, got %d stories for %d articles", demo.UniqueStories, demo.TotalArticles)
	}
	if demo.DuplicateGroups != 0 || len(demo.AllDuplicateGroups) != 0 {
		t.Fatalf("expected no duplicate groups, got %+v", demo.AllDuplicateGroups)
	}
	if len(demo.RateHikeExample.Articles) != 4 {
		t.Fatalf("unexpected example article count: %d", len(demo.RateHikeExample.Articles))
	}
}
