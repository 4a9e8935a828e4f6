package dedup

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"dalal.st/pulse/internal/news"
)

// fakeEmbedder returns canned vectors index-aligned with the requested texts.
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

func testArticles(n int) []news.Article {
	articles := make([]news.Article, n)
	for i := range articles {
		articles[i] = news.Article{
			ID:      fmt.Sprintf("N%d", i+1),
			Title:   fmt.Sprintf("Title %d", i+1),
			Content: fmt.Sprintf("Content %d", i+1),
		}
	}
	return articles
}

func assertPartition(t *testing.T, groups []news.DuplicateGroup, articles []news.Article) {
	t.Helper()

	seen := make(map[string]int)
	for _, group := range groups {
		for _, id := range group.ArticleIDs {
			seen[id]++
		}
	}
	if len(seen) != len(articles) {
		t.Fatalf("unexpected partition size: got %d ids want %d", len(seen), len(articles))
	}
	for _, a := range articles {
		if seen[a.ID] != 1 {
			t.Fatalf("article %s appears %d times across groups, want exactly once", a.ID, seen[a.ID])
		}
	}
}

func TestIdentifyDuplicates_GroupsAllSimilarArticles(t *testing.T) {
	t.Parallel()

	// Four paraphrases of the same announcement: identical vectors, so every
	// pairwise similarity is 1.0 and the first article anchors all four.
	articles := testArticles(4)
	same := []float64{0.6, 0.8}
	embedder := &fakeEmbedder{vectors: [][]float64{same, same, same, same}}
	engine := NewEngine(embedder, 0, zerolog.Nop())

	groups := engine.IdentifyDuplicates(context.Background(), articles)
	assertPartition(t, groups, articles)
	if len(groups) != 1 {
		t.Fatalf("unexpected group count: got %d want 1", len(groups))
	}
	if groups[0].RepresentativeID != "N1" {
		t.Fatalf("unexpected representative: got %s want N1", groups[0].RepresentativeID)
	}
	if len(groups[0].ArticleIDs) != 4 {
		t.Fatalf("unexpected member count: got %d want 4", len(groups[0].ArticleIDs))
	}
}

func TestIdentifyDuplicates_GreedyNotTransitive(t *testing.T) {
	t.Parallel()

	// cos(a,b) ≈ 0.866, cos(b,c) ≈ 0.866, cos(a,c) = 0.5. The anchor claims b;
	// c resembles b but not a, so c starts its own group rather than chaining.
	articles := testArticles(3)
	embedder := &fakeEmbedder{vectors: [][]float64{
		{1, 0},
		{0.8660254, 0.5},
		{0.5, 0.8660254},
	}}
	engine := NewEngine(embedder, 0.85, zerolog.Nop())

	groups := engine.IdentifyDuplicates(context.Background(), articles)
	assertPartition(t, groups, articles)
	if len(groups) != 2 {
		t.Fatalf("unexpected group count: got %d want 2", len(groups))
	}
	if groups[0].RepresentativeID != "N1" || len(groups[0].ArticleIDs) != 2 {
		t.Fatalf("unexpected first group: %+v", groups[0])
	}
	if groups[1].RepresentativeID != "N3" || len(groups[1].ArticleIDs) != 1 {
		t.Fatalf("unexpected second group: %+v", groups[1])
	}
}

func TestIdentifyDuplicates_ThresholdIsInclusive(t *testing.T) {
	t.Parallel()

	// Identical integer vectors give an exact cosine of 1.0. With the
	// threshold also at 1.0 the pair must still merge: the comparison is ≥,
	// not strictly greater.
	articles := testArticles(2)
	embedder := &fakeEmbedder{vectors: [][]float64{
		{3, 4},
		{3, 4},
	}}
	engine := NewEngine(embedder, 1.0, zerolog.Nop())

	groups := engine.IdentifyDuplicates(context.Background(), articles)
	if len(groups) != 1 {
		t.Fatalf("expected similarity == threshold to merge, got %d groups", len(groups))
	}
}

func TestIdentifyDuplicates_NilEmbedderDegradesToSingletons(t *testing.T) {
	t.Parallel()

	articles := testArticles(3)
	engine := NewEngine(nil, 0, zerolog.Nop())

	groups := engine.IdentifyDuplicates(context.Background(), articles)
	assertPartition(t, groups, articles)
	if len(groups) != 3 {
		t.Fatalf("unexpected group count without embedder: got %d want 3", len(groups))
	}
	for i, group := range groups {
		if group.RepresentativeID != articles[i].ID || len(group.ArticleIDs) != 1 {
			t.Fatalf("unexpected singleton group %d: %+v", i, group)
		}
	}
}

func TestIdentifyDuplicates_EmbedderFailureDegradesToSingletons(t *testing.T) {
	t.Parallel()

	articles := testArticles(3)
	engine := NewEngine(&fakeEmbedder{err: errors.New("model service down")}, 0, zerolog.Nop())

	groups := engine.IdentifyDuplicates(context.Background(), articles)
	assertPartition(t, groups, articles)
	if len(groups) != 3 {
		t.Fatalf("unexpected group count on embedder failure: got %d want 3", len(groups))
	}
}

func TestIdentifyDuplicates_EmptyBatch(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil, 0, zerolog.Nop())
	if groups := engine.IdentifyDuplicates(context.Background(), nil); groups != nil {
		t.Fatalf("expected nil groups for empty batch, got %v", groups)
	}
}

func TestConsolidateStory_PicksLongestAndEarliest(t *testing.T) {
	t.Parallel()

	early := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	late := time.Date(2026, 8, 21, 9, 0, 0, 0, time.UTC)
	articles := []news.Article{
		{ID: "N1", Title: "Short", Content: "The longest content of the whole group", Source: "nse", PublishedAt: &late, URL: "https://example.com/n1"},
		{ID: "N2", Title: "A much longer headline here", Content: "tiny", Source: "bse", PublishedAt: &early},
		{ID: "N3", Title: "Mid title", Content: "medium text", Source: "nse"},
	}
	engine := NewEngine(nil, 0, zerolog.Nop())

	story, ok := engine.ConsolidateStory([]string{"N1", "N2", "N3"}, articles)
	if !ok {
		t.Fatalf("expected story to consolidate")
	}
	if story.StoryID != "STORY_N1" {
		t.Fatalf("unexpected story id: got %s want STORY_N1", story.StoryID)
	}
	if story.ConsolidatedTitle != "A much longer headline here" {
		t.Fatalf("unexpected consolidated title: %q", story.ConsolidatedTitle)
	}
	if story.ConsolidatedContent != "The longest content of the whole group" {
		t.Fatalf("unexpected consolidated content: %q", story.ConsolidatedContent)
	}
	if len(story.Sources) != 2 || story.Sources[0] != "nse" || story.Sources[1] != "bse" {
		t.Fatalf("unexpected sources: %v", story.Sources)
	}
	if story.PublishedAt == nil || !story.PublishedAt.Equal(early) {
		t.Fatalf("unexpected published_at: %v", story.PublishedAt)
	}
	if story.URL != "https://example.com/n1" {
		t.Fatalf("unexpected url: %q", story.URL)
	}
	if len(story.ArticleIDs) != 3 {
		t.Fatalf("unexpected member ids: %v", story.ArticleIDs)
	}
}

func TestConsolidateStory_FirstLongestWinsOnTies(t *testing.T) {
	t.Parallel()

	articles := []news.Article{
		{ID: "N1", Title: "same size", Content: "aaa"},
		{ID: "N2", Title: "SAME SIZE", Content: "bbb"},
	}
	engine := NewEngine(nil, 0, zerolog.Nop())

	story, ok := engine.ConsolidateStory([]string{"N1", "N2"}, articles)
	if !ok {
		t.Fatalf("expected story to consolidate")
	}
	if story.ConsolidatedTitle != "same size" {
		t.Fatalf("tie should keep the first-encountered title, got %q", story.ConsolidatedTitle)
	}
	if story.ConsolidatedContent != "aaa" {
		t.Fatalf("tie should keep the first-encountered content, got %q", story.ConsolidatedContent)
	}
}

func TestConsolidateStory_SkipsUnknownIDs(t *testing.T) {
	t.Parallel()

	articles := []news.Article{{ID: "N2", Title: "Known", Content: "body"}}
	engine := NewEngine(nil, 0, zerolog.Nop())

	story, ok := engine.ConsolidateStory([]string{"missing", "N2"}, articles)
	if !ok {
		t.Fatalf("expected story despite unresolvable id")
	}
	if story.StoryID != "STORY_N2" {
		t.Fatalf("story should anchor on the first resolvable id, got %s", story.StoryID)
	}
	if len(story.ArticleIDs) != 1 || story.ArticleIDs[0] != "N2" {
		t.Fatalf("unexpected member ids: %v", story.ArticleIDs)
	}

	if _, ok := engine.ConsolidateStory([]string{"missing"}, articles); ok {
		t.Fatalf("expected no story when no id resolves")
	}
}

func TestDeduplicate_StoriesMatchGroups(t *testing.T) {
	t.Parallel()

	articles := testArticles(4)
	same := []float64{1, 0}
	other := []float64{0, 1}
	embedder := &fakeEmbedder{vectors: [][]float64{same, same, other, other}}
	engine := NewEngine(embedder, 0.85, zerolog.Nop())

	stories, groups := engine.Deduplicate(context.Background(), articles)
	assertPartition(t, groups, articles)
	if len(stories) != len(groups) {
		t.Fatalf("story/group count mismatch: %d stories %d groups", len(stories), len(groups))
	}
	for i, story := range stories {
		if story.StoryID != "STORY_"+groups[i].RepresentativeID {
			t.Fatalf("story %d does not match its group: %s vs %s", i, story.StoryID, groups[i].RepresentativeID)
		}
	}
}
