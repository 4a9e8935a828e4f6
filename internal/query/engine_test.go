package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"dalal.st/pulse/internal/extract"
	"dalal.st/pulse/internal/news"
	"dalal.st/pulse/internal/stockmap"
)

type fakeEmbedder struct {
	vectors [][]float64
	err     error
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.vectors) != len(texts) {
		return nil, fmt.Errorf("fake embedder: %d texts but %d canned vectors", len(texts), len(f.vectors))
	}
	return f.vectors, nil
}

func newTestEngine(embedder *fakeEmbedder) *Engine {
	extractor := extract.NewExtractor(nil, zerolog.Nop())
	if embedder == nil {
		return NewEngine(extractor, nil, stockmap.New(), 0, zerolog.Nop())
	}
	return NewEngine(extractor, embedder, stockmap.New(), 0, zerolog.Nop())
}

func TestClassifyIntent_Precedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		want  news.QueryIntent
	}{
		{"company mention", "HDFC Bank news", news.IntentCompanySpecific},
		{"company beats sector word", "HDFC Bank sector update", news.IntentCompanySpecific},
		{"sector entity", "Banking sector update", news.IntentSectorWide},
		{"literal sector beats regulator", "RBI sector review", news.IntentSectorWide},
		{"literal industry", "industry outlook this week", news.IntentSectorWide},
		{"regulator", "SEBI tightens norms", news.IntentRegulatorSpecific},
		{"regulator beats thematic", "RBI policy changes", news.IntentRegulatorSpecific},
		{"thematic rate", "Interest rate impact", news.IntentThematic},
		{"thematic policy", "new monetary policy stance", news.IntentThematic},
		{"general", "market overview", news.IntentGeneral},
	}

	engine := newTestEngine(nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			result := engine.Process(context.Background(), tc.query, nil, nil)
			if result.Intent != tc.want {
				t.Fatalf("unexpected intent for %q: got %s want %s", tc.query, result.Intent, tc.want)
			}
		})
	}
}

func TestProcess_CompanyTextAndImpactIndex(t *testing.T) {
	t.Parallel()

	articles := []news.Article{
		{ID: "A1", Title: "HDFC Bank announces dividend", Content: "Board approves payout"},
		{ID: "A2", Title: "Lenders rally on strong credit growth", Content: "Broad gains across the street"},
		{ID: "A3", Title: "Monsoon forecast revised", Content: "Rainfall above normal"},
	}
	impacts := map[string][]news.StockImpact{
		"A2": {{Symbol: "HDFCBANK", Confidence: 0.49, ImpactType: news.ImpactSector}},
		"A3": {{Symbol: "TATAMOTORS", Confidence: 0.7, ImpactType: news.ImpactSector}},
	}

	engine := newTestEngine(nil)
	result := engine.Process(context.Background(), "HDFC Bank news", articles, impacts)

	if result.Intent != news.IntentCompanySpecific {
		t.Fatalf("unexpected intent: %s", result.Intent)
	}
	if result.Count != 2 || len(result.Articles) != 2 {
		t.Fatalf("unexpected result count: %d (%+v)", result.Count, result.Articles)
	}
	if result.Articles[0].ID != "A1" || result.Articles[1].ID != "A2" {
		t.Fatalf("unexpected articles: %s, %s", result.Articles[0].ID, result.Articles[1].ID)
	}
}

func TestProcess_CompanyWithoutIndexUsesTextOnly(t *testing.T) {
	t.Parallel()

	articles := []news.Article{
		{ID: "A1", Title: "HDFC Bank announces dividend", Content: ""},
		{ID: "A2", Title: "Lenders rally", Content: ""},
	}

	engine := newTestEngine(nil)
	result := engine.Process(context.Background(), "HDFC Bank news", articles, nil)

	if result.Count != 1 || result.Articles[0].ID != "A1" {
		t.Fatalf("unexpected result without impact index: %+v", result.Articles)
	}
}

func TestProcess_SectorMatchesSectorNameInText(t *testing.T) {
	t.Parallel()

	// Retrieval matches the extracted sector NAME as a substring, so only
	// articles literally containing "banking" qualify.
	articles := []news.Article{
		{ID: "B1", Title: "HDFC Bank expands banking services", Content: "New branches planned"},
		{ID: "B2", Title: "ICICI Bank grows corporate banking book", Content: "Strong quarter"},
		{ID: "B3", Title: "Auto sales rise", Content: "Festive demand"},
	}

	engine := newTestEngine(nil)
	result := engine.Process(context.Background(), "Banking sector update", articles, nil)

	if result.Intent != news.IntentSectorWide {
		t.Fatalf("unexpected intent: %s", result.Intent)
	}
	if result.Count != 2 || result.Articles[0].ID != "B1" || result.Articles[1].ID != "B2" {
		t.Fatalf("unexpected articles: %+v", result.Articles)
	}
}

func TestProcess_RegulatorMatchesCaseInsensitively(t *testing.T) {
	t.Parallel()

	articles := []news.Article{
		{ID: "R1", Title: "SEBI tightens disclosure norms", Content: ""},
		{ID: "R2", Title: "Sebi board meets on Friday", Content: ""},
		{ID: "R3", Title: "Budget session begins", Content: ""},
	}

	engine := newTestEngine(nil)
	result := engine.Process(context.Background(), "SEBI update", articles, nil)

	if result.Intent != news.IntentRegulatorSpecific {
		t.Fatalf("unexpected intent: %s", result.Intent)
	}
	if result.Count != 2 || result.Articles[0].ID != "R1" || result.Articles[1].ID != "R2" {
		t.Fatalf("unexpected articles: %+v", result.Articles)
	}
}

func TestProcess_ThematicSortsBySimilarity(t *testing.T) {
	t.Parallel()

	articles := []news.Article{
		{ID: "T1", Title: "one", Content: ""},
		{ID: "T2", Title: "two", Content: ""},
		{ID: "T3", Title: "three", Content: ""},
	}
	// Index 0 is the query vector. T1 scores 0.6 (below threshold), T2 scores
	// 0.8, T3 scores 1.0: expect T3 before T2 and no T1.
	embedder := &fakeEmbedder{vectors: [][]float64{
		{1, 0},
		{0.6, 0.8},
		{0.8, 0.6},
		{1, 0},
	}}

	engine := newTestEngine(embedder)
	result := engine.Process(context.Background(), "Interest rate impact", articles, nil)

	if result.Intent != news.IntentThematic {
		t.Fatalf("unexpected intent: %s", result.Intent)
	}
	if result.Count != 2 || result.Articles[0].ID != "T3" || result.Articles[1].ID != "T2" {
		t.Fatalf("unexpected thematic ranking: %+v", result.Articles)
	}
}

func TestProcess_ThematicWithoutEmbedderReturnsEmpty(t *testing.T) {
	t.Parallel()

	articles := []news.Article{{ID: "T1", Title: "one", Content: ""}}
	engine := newTestEngine(nil)

	result := engine.Process(context.Background(), "Interest rate impact", articles, nil)
	if result.Intent != news.IntentThematic {
		t.Fatalf("unexpected intent: %s", result.Intent)
	}
	if result.Count != 0 || len(result.Articles) != 0 {
		t.Fatalf("expected zero results without embedder, got %+v", result.Articles)
	}
}

func TestProcess_DeduplicatesByID(t *testing.T) {
	t.Parallel()

	duplicate := news.Article{ID: "A1", Title: "HDFC Bank announces dividend", Content: ""}
	articles := []news.Article{duplicate, duplicate}

	engine := newTestEngine(nil)
	result := engine.Process(context.Background(), "HDFC Bank news", articles, nil)

	if result.Count != 1 {
		t.Fatalf("expected id-level dedup of results, got %+v", result.Articles)
	}
}

func TestProcess_EchoesQueryAndEntities(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(nil)
	result := engine.Process(context.Background(), "HDFC Bank news", nil, nil)

	if result.Query != "HDFC Bank news" {
		t.Fatalf("unexpected query echo: %q", result.Query)
	}
	if len(result.Entities.Companies) == 0 || result.Entities.Companies[0].Name != "HDFC Bank" {
		t.Fatalf("expected query entities in result, got %+v", result.Entities)
	}
	if result.Count != 0 {
		t.Fatalf("unexpected count for empty article set: %d", result.Count)
	}
}
