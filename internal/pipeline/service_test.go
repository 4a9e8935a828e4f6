package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"dalal.st/pulse/internal/dedup"
	"dalal.st/pulse/internal/extract"
	"dalal.st/pulse/internal/impact"
	"dalal.st/pulse/internal/news"
	"dalal.st/pulse/internal/nlp"
	"dalal.st/pulse/internal/stockmap"
)

// markerEmbedder assigns each text the vector of the first marker it
// contains. Markers used in a test must be disjoint.
type markerEmbedder struct {
	vectors map[string][]float64
}

func (f *markerEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = []float64{0, 0}
		for marker, vector := range f.vectors {
			if strings.Contains(text, marker) {
				out[i] = vector
				break
			}
		}
	}
	return out, nil
}

func newTestService(embedder nlp.Embedder) *Service {
	return NewService(
		dedup.NewEngine(embedder, 0, zerolog.Nop()),
		extract.NewExtractor(nil, zerolog.Nop()),
		impact.NewMapper(stockmap.New(), zerolog.Nop()),
		zerolog.Nop(),
	)
}

func TestProcessBatch_KeysResultsByRepresentative(t *testing.T) {
	t.Parallel()

	articles := []news.Article{
		{ID: "A1", Title: "Markets open higher", Content: "Shares rose in early trade."},
		{ID: "A2", Title: "Markets open higher on bank earnings", Content: "Shares rose in early trade as HDFC Bank led the gainers."},
		{ID: "A3", Title: "SEBI issues consultation paper", Content: "The regulator sought comments on proposed rules."},
	}
	embedder := &markerEmbedder{vectors: map[string][]float64{
		"Markets": {1, 0},
		"SEBI":    {0, 1},
	}}
	svc := newTestService(embedder)

	result := svc.ProcessBatch(context.Background(), articles)

	if len(result.Groups) != 2 || len(result.Stories) != 2 {
		t.Fatalf("unexpected shape: %d groups, %d stories", len(result.Groups), len(result.Stories))
	}
	if result.Stories[0].StoryID != "STORY_A1" {
		t.Fatalf("unexpected first story id: %q", result.Stories[0].StoryID)
	}

	// Extraction ran over the consolidated text, so the company mentioned
	// only by the duplicate member shows up under the representative.
	if _, ok := result.Entities["A2"]; ok {
		t.Fatalf("duplicate member A2 must not be a result key")
	}
	leadEntities := result.Entities["A1"]
	if len(leadEntities.Companies) == 0 || leadEntities.Companies[0].Name != "HDFC Bank" {
		t.Fatalf("unexpected companies for A1: %+v", leadEntities.Companies)
	}
	leadImpacts := result.Impacts["A1"]
	if len(leadImpacts) == 0 || leadImpacts[0].Symbol != "HDFCBANK" || leadImpacts[0].ImpactType != news.ImpactDirect {
		t.Fatalf("unexpected impacts for A1: %+v", leadImpacts)
	}

	regulatorImpacts := result.Impacts["A3"]
	if len(regulatorImpacts) == 0 {
		t.Fatalf("no impacts for A3")
	}
	for _, imp := range regulatorImpacts {
		if imp.ImpactType != news.ImpactRegulatory {
			t.Fatalf("unexpected impact type for A3: %+v", imp)
		}
	}
}

func TestProcessBatch_NilEmbedderMakesEveryArticleAStory(t *testing.T) {
	t.Parallel()

	articles := []news.Article{
		{ID: "B1", Title: "Infosys wins deal", Content: "Infosys signed a new client."},
		{ID: "B2", Title: "Infosys wins deal", Content: "Infosys signed a new client."},
	}
	svc := newTestService(nil)

	result := svc.ProcessBatch(context.Background(), articles)

	if len(result.Stories) != 2 {
		t.Fatalf("unexpected story count without embedder: got %d want 2", len(result.Stories))
	}
	for _, id := range []string{"B1", "B2"} {
		if _, ok := result.Entities[id]; !ok {
			t.Fatalf("missing entities for %s", id)
		}
		if _, ok := result.Impacts[id]; !ok {
			t.Fatalf("missing impacts for %s", id)
		}
	}
}

func TestProcessBatch_EmptyBatch(t *testing.T) {
	t.Parallel()

	svc := newTestService(nil)
	result := svc.ProcessBatch(context.Background(), nil)

	if len(result.Groups) != 0 || len(result.Stories) != 0 {
		t.Fatalf("expected empty run, got %d groups and %d stories", len(result.Groups), len(result.Stories))
	}
	if result.Entities == nil || result.Impacts == nil {
		t.Fatalf("result maps must be allocated")
	}
	if len(result.Entities) != 0 || len(result.Impacts) != 0 {
		t.Fatalf("expected no stage output for empty batch")
	}
}
