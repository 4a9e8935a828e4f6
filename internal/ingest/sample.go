package ingest

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"dalal.st/pulse/internal/news"
)

//go:embed data/sample_news.json
var sampleNewsJSON []byte

// SampleArticles returns the bundled demo dataset: ten Indian financial news
// items, four of which (N2, N5, N6, N9) describe the same RBI rate hike in
// different words. Every call decodes a fresh slice, so callers may mutate
// the result.
func SampleArticles() ([]news.Article, error) {
	var articles []news.Article
	if err := json.Unmarshal(sampleNewsJSON, &articles); err != nil {
		return nil, fmt.Errorf("decode embedded sample news: %w", err)
	}
	return articles, nil
}
